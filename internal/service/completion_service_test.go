package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestra/attestra-backend/internal/model"
)

// startAttempt creates a live session for the fixture candidate.
func startAttempt(t *testing.T, fx *engineFixture) *model.Session {
	t.Helper()
	state, err := fx.attempt.StartOrResume(context.Background(), fixtureUserID, fx.assessment.ID)
	require.NoError(t, err)
	return state.Session
}

func TestCompleteScoresAgainstAnswerKey(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	// Key is i%4 per question: answer three correctly, one wrong.
	for i, qid := range fx.questionIDs {
		selected := i % 4
		if i == 3 {
			selected = (i + 1) % 4
		}
		require.NoError(t, fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID, qid, selected, nil))
	}

	result, err := fx.completion.Complete(ctx, sess.ID, fixtureUserID, model.ReasonManual)
	require.NoError(t, err)

	assert.Equal(t, model.SessionStatusCompleted, result.Status)
	assert.Equal(t, 75, result.Score)
	assert.True(t, result.Passed)
	assert.Equal(t, fx.clock, result.CompletedAt)

	// Correctness flags persisted for review.
	answers, err := fx.answers.ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	correct := 0
	for _, a := range answers {
		require.NotNil(t, a.IsCorrect)
		if *a.IsCorrect {
			correct++
		}
	}
	assert.Equal(t, 3, correct)

	require.Equal(t, 1, fx.notifier.count())
	assert.Equal(t, 75, fx.notifier.results[0].Score)
}

func TestCompleteUnansweredCountIncorrect(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	// Two of four answered correctly, the rest left blank.
	for i := 0; i < 2; i++ {
		require.NoError(t, fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID, fx.questionIDs[i], i%4, nil))
	}

	result, err := fx.completion.Complete(ctx, sess.ID, fixtureUserID, model.ReasonManual)
	require.NoError(t, err)

	assert.Equal(t, 50, result.Score)
	assert.False(t, result.Passed, "50 is below the pass score of 70")
}

func TestCompleteIsIdempotent(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	require.NoError(t, fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID, fx.questionIDs[0], 0, nil))

	first, err := fx.completion.Complete(ctx, sess.ID, fixtureUserID, model.ReasonManual)
	require.NoError(t, err)

	// A second trigger, even with a different reason, replays the
	// persisted result without rescoring.
	fx.advance(time.Minute)
	second, err := fx.completion.Complete(ctx, sess.ID, fixtureUserID, model.ReasonExpired)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
	assert.Equal(t, 1, fx.notifier.count(), "only the finalizing call notifies")
}

func TestCompleteManualPastDeadlineBecomesTimedOut(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	// The client claims a manual finish, but the server clock is past
	// the deadline. The server classification wins.
	fx.advance(31 * time.Minute)

	result, err := fx.completion.Complete(ctx, sess.ID, fixtureUserID, model.ReasonManual)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusTimedOut, result.Status)
}

func TestCompleteConcurrentTriggersSingleResult(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	require.NoError(t, fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID, fx.questionIDs[0], 0, nil))

	// Manual submit racing the expiry sweep. Exactly one writer wins
	// the status transition; the loser must surface the winner's
	// persisted result, not its own computation.
	var wg sync.WaitGroup
	results := make([]*AttemptResult, 2)
	errs := make([]error, 2)
	reasons := []model.CompletionReason{model.ReasonManual, model.ReasonExpired}
	for i := range reasons {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = fx.completion.Complete(ctx, sess.ID, fixtureUserID, reasons[i])
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, results[0].Status, results[1].Status)

	stored, err := fx.sessions.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Score)
	assert.Equal(t, results[0].Score, *stored.Score)
	assert.Equal(t, 1, fx.notifier.count(), "one terminal transition, one notification")
}

func TestCompleteUnknownOrForeignSession(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	_, err := fx.completion.Complete(ctx, sess.ID, fixtureUserID+1, model.ReasonManual)
	assert.ErrorIs(t, err, ErrNotFound, "foreign sessions look missing")

	_, err = fx.completion.Complete(ctx, uuid.New(), fixtureUserID, model.ReasonManual)
	assert.ErrorIs(t, err, ErrNotFound)
}
