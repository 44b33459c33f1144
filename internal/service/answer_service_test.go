package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestra/attestra-backend/internal/model"
)

func TestSubmitAnswerUpsertLastWriteWins(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)
	qid := fx.questionIDs[0]

	require.NoError(t, fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID, qid, 1, nil))
	require.NoError(t, fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID, qid, 3, nil))

	answers, err := fx.answers.ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1, "same question overwrites, never duplicates")
	assert.Equal(t, 3, answers[0].SelectedIndex)
	assert.Nil(t, answers[0].IsCorrect, "correctness is not evaluated at submit time")
}

func TestSubmitAnswerRejectsClosedSession(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	_, err := fx.completion.Complete(ctx, sess.ID, fixtureUserID, model.ReasonManual)
	require.NoError(t, err)

	err = fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID, fx.questionIDs[0], 1, nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSubmitAnswerRaceWithFinalize(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	// The session reads as live but the store write loses to a
	// concurrent finalize. The guard turns that into a clean rejection.
	fx.answers.forceClosed = true
	err := fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID, fx.questionIDs[0], 1, nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSubmitAnswerOwnershipAndQuestionSet(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	err := fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID+1, fx.questionIDs[0], 1, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	err = fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID, uuid.New(), 1, nil)
	assert.ErrorIs(t, err, ErrNotFound, "questions outside the attempt's order are rejected")
}

func TestSubmitAnswerRecordsClockDrift(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	fx.advance(10 * time.Minute)

	// Server-side remaining is 20min; the client countdown claims 45s less.
	clientRemaining := 20*60 - 45
	require.NoError(t, fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID, fx.questionIDs[0], 1, &clientRemaining))

	require.Len(t, fx.telemetry.samples, 1)
	sample := fx.telemetry.samples[0]
	assert.Equal(t, sess.ID, sample.SessionID)
	assert.Equal(t, 20*60, sample.ServerRemaining)
	assert.Equal(t, 45, sample.DriftSeconds)

	// Without a client countdown no sample is produced.
	require.NoError(t, fx.answer.SubmitAnswer(ctx, sess.ID, fixtureUserID, fx.questionIDs[1], 2, nil))
	assert.Len(t, fx.telemetry.samples, 1)
}
