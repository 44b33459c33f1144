package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestra/attestra-backend/internal/model"
)

func TestRecordFocusLossAppendsToLog(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	require.NoError(t, fx.proctoring.RecordFocusLoss(ctx, sess.ID, fixtureUserID))
	require.NoError(t, fx.proctoring.RecordFocusLoss(ctx, sess.ID, fixtureUserID))

	stored, err := fx.sessions.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TabSwitchCount)
	require.Len(t, stored.TabSwitchLog, 2)
	assert.Equal(t, model.FocusEventTabHidden, stored.TabSwitchLog[0].Type)
	assert.Equal(t, fx.clock, stored.TabSwitchLog[0].Timestamp)

	assert.Len(t, fx.monitor.events, 2, "each violation fans out to live monitors")
}

func TestRecordFocusLossRejectsClosedSession(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	_, err := fx.completion.Complete(ctx, sess.ID, fixtureUserID, model.ReasonManual)
	require.NoError(t, err)

	err = fx.proctoring.RecordFocusLoss(ctx, sess.ID, fixtureUserID)
	assert.ErrorIs(t, err, ErrSessionClosed)

	stored, getErr := fx.sessions.GetByID(ctx, sess.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 0, stored.TabSwitchCount, "rejected events are not recorded")
}

func TestRecordFocusLossOwnership(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)

	err := fx.proctoring.RecordFocusLoss(ctx, sess.ID, fixtureUserID+1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetViolationsRoleAndOrgGates(t *testing.T) {
	fx := newEngineFixture()
	ctx := context.Background()
	sess := startAttempt(t, fx)
	require.NoError(t, fx.proctoring.RecordFocusLoss(ctx, sess.ID, fixtureUserID))

	_, err := fx.proctoring.GetViolations(ctx, sess.ID, candidateViewer())
	assert.ErrorIs(t, err, ErrUnauthorized, "candidates cannot read violation logs")

	foreign := managerViewer()
	foreign.OrgID = fixtureOrgID + 1
	_, err = fx.proctoring.GetViolations(ctx, sess.ID, foreign)
	assert.ErrorIs(t, err, ErrUnauthorized, "managers are scoped to their own organization")

	report, err := fx.proctoring.GetViolations(ctx, sess.ID, managerViewer())
	require.NoError(t, err)
	assert.Equal(t, sess.ID, report.SessionID)
	assert.Equal(t, fixtureUserID, report.UserID)
	assert.Equal(t, 1, report.TabSwitchCount)
	require.Len(t, report.TabSwitchLog, 1)

	_, err = fx.proctoring.GetViolations(ctx, uuid.New(), managerViewer())
	assert.ErrorIs(t, err, ErrNotFound)
}
