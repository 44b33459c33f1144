package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/model"
)

// ClockDriftSample is one clock-drift telemetry data point, comparing
// the client's countdown against the server-computed remaining time.
type ClockDriftSample struct {
	SessionID       uuid.UUID `json:"session_id"`
	UserID          int       `json:"user_id"`
	ClientRemaining int       `json:"client_remaining"`
	ServerRemaining int       `json:"server_remaining"`
	DriftSeconds    int       `json:"drift_seconds"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// TelemetrySink receives drift samples. Best-effort; diagnostics only.
type TelemetrySink interface {
	RecordClockDrift(ctx context.Context, sample ClockDriftSample) error
}

// AnswerService handles answer submission during an attempt.
type AnswerService struct {
	sessions    SessionStore
	answers     AnswerStore
	assessments AssessmentStore
	telemetry   TelemetrySink
	log         zerolog.Logger
	now         func() time.Time
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(
	sessions SessionStore,
	answers AnswerStore,
	assessments AssessmentStore,
	telemetry TelemetrySink,
	log zerolog.Logger,
) *AnswerService {
	return &AnswerService{
		sessions:    sessions,
		answers:     answers,
		assessments: assessments,
		telemetry:   telemetry,
		log:         log.With().Str("component", "answer_service").Logger(),
		now:         time.Now,
	}
}

// SubmitAnswer upserts the candidate's choice for one question.
// Correctness is not evaluated here — scoring owns the answer key, so
// the key never has to travel toward the client. The store-level guard
// rejects writes that race a just-finalized session.
func (s *AnswerService) SubmitAnswer(ctx context.Context, sessionID uuid.UUID, userID int, questionID uuid.UUID, selectedIndex int, clientRemaining *int) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return ErrNotFound
	}
	if sess.UserID != userID {
		return ErrNotFound
	}
	if sess.Status.Terminal() {
		return ErrSessionClosed
	}

	inOrder := false
	for _, qid := range sess.QuestionOrder {
		if qid == questionID {
			inOrder = true
			break
		}
	}
	if !inOrder {
		return ErrNotFound
	}

	now := s.now()
	ok, err := s.answers.Upsert(ctx, sessionID, questionID, selectedIndex, now)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	if !ok {
		// Session went terminal between the read above and the write.
		return ErrSessionClosed
	}

	if clientRemaining != nil {
		s.recordDrift(ctx, sess, *clientRemaining, now)
	}

	return nil
}

// recordDrift enqueues a clock-drift sample. The client countdown is
// telemetry only — it never feeds the authoritative deadline — so any
// failure here is logged and swallowed.
func (s *AnswerService) recordDrift(ctx context.Context, sess *model.Session, clientRemaining int, now time.Time) {
	assessment, err := s.assessments.GetByID(ctx, sess.AssessmentID)
	if err != nil {
		s.log.Debug().Err(err).Msg("Drift sample skipped: assessment lookup failed")
		return
	}

	serverRemaining := int((assessment.TimeLimit() - now.Sub(sess.StartedAt)).Seconds())
	if serverRemaining < 0 {
		serverRemaining = 0
	}

	sample := ClockDriftSample{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		ClientRemaining: clientRemaining,
		ServerRemaining: serverRemaining,
		DriftSeconds:    serverRemaining - clientRemaining,
		RecordedAt:      now,
	}
	if err := s.telemetry.RecordClockDrift(ctx, sample); err != nil {
		s.log.Debug().Err(err).Str("session_id", sess.ID.String()).Msg("Drift sample enqueue failed")
	}
}
