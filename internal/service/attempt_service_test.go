package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/repository"
)

func TestStartCreatesSessionWithFixedOrder(t *testing.T) {
	fx := newEngineFixture()

	state, err := fx.attempt.StartOrResume(context.Background(), fixtureUserID, fx.assessment.ID)
	require.NoError(t, err)

	assert.Equal(t, model.SessionStatusInProgress, state.Session.Status)
	assert.Equal(t, fixtureStart, state.Session.StartedAt)
	assert.Equal(t, fx.questionIDs, state.Session.QuestionOrder, "order materialized from the paper at start")
	assert.Equal(t, 30*60, state.RemainingSeconds)
	assert.Empty(t, state.Answers)
	require.NotNil(t, state.Paper)
	assert.Len(t, state.Paper.Questions, 4)
}

func TestStartResumesExistingSession(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()

	first, err := fx.attempt.StartOrResume(ctx, fixtureUserID, fx.assessment.ID)
	require.NoError(t, err)

	require.NoError(t, fx.answer.SubmitAnswer(ctx, first.Session.ID, fixtureUserID, fx.questionIDs[1], 2, nil))
	fx.advance(10 * time.Minute)

	second, err := fx.attempt.StartOrResume(ctx, fixtureUserID, fx.assessment.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, 20*60, second.RemainingSeconds, "deadline recomputed from started_at, not reset")
	assert.Equal(t, map[uuid.UUID]int{fx.questionIDs[1]: 2}, second.Answers)
}

func TestStartResumePastDeadlineReturnsTerminal(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()

	first, err := fx.attempt.StartOrResume(ctx, fixtureUserID, fx.assessment.ID)
	require.NoError(t, err)
	require.NoError(t, fx.answer.SubmitAnswer(ctx, first.Session.ID, fixtureUserID, fx.questionIDs[0], 0, nil))

	fx.advance(45 * time.Minute)

	state, err := fx.attempt.StartOrResume(ctx, fixtureUserID, fx.assessment.ID)
	require.NoError(t, err)

	assert.Equal(t, model.SessionStatusTimedOut, state.Session.Status)
	assert.Equal(t, 0, state.RemainingSeconds)
	require.NotNil(t, state.Session.Score)
	assert.Equal(t, 25, *state.Session.Score, "overdue resume scores the answers that exist")
}

func TestStartUnpublishedAssessment(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()

	fx.assessment.Status = model.AssessmentStatusDraft

	_, err := fx.attempt.StartOrResume(ctx, fixtureUserID, fx.assessment.ID)
	assert.ErrorIs(t, err, ErrNotAvailable)

	_, err = fx.attempt.StartOrResume(ctx, fixtureUserID, uuid.New())
	assert.ErrorIs(t, err, ErrNotAvailable, "unknown assessments are indistinguishable from unpublished ones")
}

// racingSessionStore misses the first live-session lookup, forcing the
// service down the create path against a row another request already
// inserted.
type racingSessionStore struct {
	*fakeSessionStore
	missed bool
}

func (r *racingSessionStore) GetInProgress(ctx context.Context, assessmentID uuid.UUID, userID int) (*model.Session, error) {
	if !r.missed {
		r.missed = true
		return nil, repository.ErrNotFound
	}
	return r.fakeSessionStore.GetInProgress(ctx, assessmentID, userID)
}

func TestStartDoubleStartRecoversWinner(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()

	racing := &racingSessionStore{fakeSessionStore: fx.sessions}
	attempt := NewAttemptService(racing, fx.answers, fx.assessments, fx.resolver, fx.completion, nopLogger())
	attempt.now = func() time.Time { return fx.clock }

	// The concurrent winner's row is already stored when our insert runs.
	winner := startAttempt(t, fx)

	state, err := attempt.StartOrResume(ctx, fixtureUserID, fx.assessment.ID)
	require.NoError(t, err, "the caller never sees the creation race")
	assert.Equal(t, winner.ID, state.Session.ID)
}

func TestGetStateOwnershipAndRemaining(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	fx.advance(29 * time.Minute)

	state, err := fx.attempt.GetState(ctx, sess.ID, fixtureUserID)
	require.NoError(t, err)
	assert.Equal(t, 60, state.RemainingSeconds)

	_, err = fx.attempt.GetState(ctx, sess.ID, fixtureUserID+1)
	assert.ErrorIs(t, err, ErrNotFound, "other users cannot probe the session")
}

func TestResetAttempt(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	require.NoError(t, fx.attempt.ResetAttempt(ctx, sess.ID))

	_, err := fx.attempt.GetState(ctx, sess.ID, fixtureUserID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, fx.attempt.ResetAttempt(ctx, sess.ID), ErrNotFound)
}
