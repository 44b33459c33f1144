package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/repository"
)

// Store interfaces consumed by the engine services. The pgx
// repositories satisfy them in production; tests use in-memory fakes so
// the concurrency properties (CAS finalize, double-start recovery,
// closed-session barriers) can be exercised without a database.

// SessionStore is the persistent record of attempts.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	GetInProgress(ctx context.Context, assessmentID uuid.UUID, userID int) (*model.Session, error)
	GetLatest(ctx context.Context, assessmentID uuid.UUID, userID int) (*model.Session, error)
	Finalize(ctx context.Context, id uuid.UUID, status model.SessionStatus, score int, passed bool, completedAt time.Time) (bool, error)
	AppendFocusLoss(ctx context.Context, id uuid.UUID, event model.FocusEvent) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AnswerStore is the per-question answer persistence.
type AnswerStore interface {
	Upsert(ctx context.Context, sessionID, questionID uuid.UUID, selectedIndex int, submittedAt time.Time) (bool, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error)
	MarkCorrectness(ctx context.Context, sessionID uuid.UUID, questionIDs []uuid.UUID, correct []bool) error
}

// AssessmentStore is the read-only view of the content collaborator's
// assessment configuration.
type AssessmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
}

// AttemptStore lists terminal sessions for the analytics aggregator.
type AttemptStore interface {
	ListTerminalByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]repository.AttemptRecord, error)
	ListTerminalByOrg(ctx context.Context, orgID int) ([]repository.AttemptRecord, error)
}

// QuestionSetResolver materializes question content and answer keys.
// The candidate-facing paper never contains correct indexes.
type QuestionSetResolver interface {
	Paper(ctx context.Context, assessment *model.Assessment) (*model.AssessmentPaper, error)
	AnswerKey(ctx context.Context, assessmentID uuid.UUID) (model.AnswerKey, error)
}

// Notifier dispatches result notifications. Callers treat dispatch as
// fire-and-forget and swallow errors.
type Notifier interface {
	NotifyResult(ctx context.Context, userID int, assessmentID uuid.UUID, score int, passed bool) error
}

// MonitorPublisher fans live proctoring events out to attached monitor
// streams. Best-effort; a lost event only delays the next poll refresh.
type MonitorPublisher interface {
	PublishMonitorEvent(ctx context.Context, assessmentID uuid.UUID, payload any) error
}
