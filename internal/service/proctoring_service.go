package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/model"
)

// ViolationReport is the manager-scoped view of an attempt's violations.
type ViolationReport struct {
	SessionID      uuid.UUID          `json:"session_id"`
	UserID         int                `json:"user_id"`
	TabSwitchCount int                `json:"tab_switch_count"`
	TabSwitchLog   []model.FocusEvent `json:"tab_switch_log"`
}

// Viewer identifies the caller for role-gated reads.
type Viewer struct {
	UserID int
	OrgID  int
	Role   model.Role
}

// ProctoringService records focus-loss events against in-progress
// attempts. Purely observational: it never blocks, pauses, or fails an
// exam — violations are advisory data surfaced to reviewers later.
type ProctoringService struct {
	sessions    SessionStore
	assessments AssessmentStore
	monitor     MonitorPublisher
	log         zerolog.Logger
	now         func() time.Time
}

// NewProctoringService creates a new ProctoringService.
func NewProctoringService(
	sessions SessionStore,
	assessments AssessmentStore,
	monitor MonitorPublisher,
	log zerolog.Logger,
) *ProctoringService {
	return &ProctoringService{
		sessions:    sessions,
		assessments: assessments,
		monitor:     monitor,
		log:         log.With().Str("component", "proctoring_service").Logger(),
		now:         time.Now,
	}
}

// RecordFocusLoss appends one tab_hidden event to the session's
// violation log. The counter increment and log append happen in a
// single atomic store operation, so concurrent events from multiple
// tabs cannot lose updates.
func (s *ProctoringService) RecordFocusLoss(ctx context.Context, sessionID uuid.UUID, userID int) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return ErrNotFound
	}
	if sess.UserID != userID {
		return ErrNotFound
	}

	event := model.FocusEvent{Timestamp: s.now(), Type: model.FocusEventTabHidden}
	ok, err := s.sessions.AppendFocusLoss(ctx, sessionID, event)
	if err != nil {
		return fmt.Errorf("append focus loss: %w", err)
	}
	if !ok {
		// Violations on closed sessions are rejected, not recorded.
		return ErrSessionClosed
	}

	// Best-effort fan-out to attached live monitors.
	if err := s.monitor.PublishMonitorEvent(ctx, sess.AssessmentID, map[string]any{
		"type":       "focus_loss",
		"session_id": sess.ID,
		"user_id":    sess.UserID,
		"timestamp":  event.Timestamp,
	}); err != nil {
		s.log.Debug().Err(err).Str("session_id", sess.ID.String()).Msg("Monitor publish failed")
	}

	return nil
}

// GetViolations returns the violation log for one attempt. Restricted
// to content managers (and up) of the owning organization.
func (s *ProctoringService) GetViolations(ctx context.Context, sessionID uuid.UUID, viewer Viewer) (*ViolationReport, error) {
	if !model.HasMinimumRole(viewer.Role, model.RoleContentManager) {
		return nil, ErrUnauthorized
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ErrNotFound
	}

	assessment, err := s.assessments.GetByID(ctx, sess.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if assessment.OrgID != viewer.OrgID {
		return nil, ErrUnauthorized
	}

	log := sess.TabSwitchLog
	if log == nil {
		log = []model.FocusEvent{}
	}

	return &ViolationReport{
		SessionID:      sess.ID,
		UserID:         sess.UserID,
		TabSwitchCount: sess.TabSwitchCount,
		TabSwitchLog:   log,
	}, nil
}
