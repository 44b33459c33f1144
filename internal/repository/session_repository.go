package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attestra/attestra-backend/internal/model"
)

// SessionRepository handles attempt session data access. All status
// transitions are conditional on the row still being IN_PROGRESS, so
// racing writers cannot double-finalize an attempt.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, assessment_id, user_id, status, started_at, question_order, tab_switch_count, tab_switch_log, score, passed, completed_at`

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	var orderRaw, logRaw []byte
	err := row.Scan(
		&s.ID, &s.AssessmentID, &s.UserID, &s.Status, &s.StartedAt,
		&orderRaw, &s.TabSwitchCount, &logRaw, &s.Score, &s.Passed, &s.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(orderRaw, &s.QuestionOrder); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(logRaw, &s.TabSwitchLog); err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new IN_PROGRESS session. The partial unique index on
// (user_id, assessment_id) WHERE status = 'IN_PROGRESS' makes the insert
// lose cleanly under a concurrent double-start; the loser gets
// ErrDuplicate and is expected to re-read the winning row.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	orderRaw, err := json.Marshal(s.QuestionOrder)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO assessment_sessions (assessment_id, user_id, status, started_at, question_order)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, assessment_id) WHERE status = 'IN_PROGRESS' DO NOTHING
		 RETURNING id`,
		s.AssessmentID, s.UserID, model.SessionStatusInProgress, s.StartedAt, orderRaw,
	).Scan(&s.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	s.Status = model.SessionStatusInProgress
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions WHERE id = $1`, id))
}

// GetInProgress retrieves the single IN_PROGRESS session for a
// (user, assessment) pair, or ErrNotFound.
func (r *SessionRepository) GetInProgress(ctx context.Context, assessmentID uuid.UUID, userID int) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM assessment_sessions
		 WHERE assessment_id = $1 AND user_id = $2 AND status = $3`,
		assessmentID, userID, model.SessionStatusInProgress))
}

// GetLatest retrieves the most recent session for a (user, assessment)
// pair regardless of status.
func (r *SessionRepository) GetLatest(ctx context.Context, assessmentID uuid.UUID, userID int) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM assessment_sessions
		 WHERE assessment_id = $1 AND user_id = $2
		 ORDER BY started_at DESC
		 LIMIT 1`,
		assessmentID, userID))
}

// Finalize applies the terminal transition with compare-and-swap
// semantics: the update only lands if the row is still IN_PROGRESS.
// Returns false when another caller already finalized the session.
func (r *SessionRepository) Finalize(ctx context.Context, id uuid.UUID, status model.SessionStatus, score int, passed bool, completedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET status = $2, score = $3, passed = $4, completed_at = $5
		 WHERE id = $1 AND status = $6`,
		id, status, score, passed, completedAt, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AppendFocusLoss atomically increments the violation counter and
// appends one event to the log in a single statement. The IN_PROGRESS
// guard doubles as the closed-session barrier: zero rows affected means
// the attempt is already terminal.
func (r *SessionRepository) AppendFocusLoss(ctx context.Context, id uuid.UUID, event model.FocusEvent) (bool, error) {
	raw, err := json.Marshal([]model.FocusEvent{event})
	if err != nil {
		return false, err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET tab_switch_count = tab_switch_count + 1,
		     tab_switch_log = tab_switch_log || $2::jsonb
		 WHERE id = $1 AND status = $3`,
		id, raw, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes a session and (via FK cascade) its answers. Only the
// administrative reset path calls this; the engine never deletes.
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assessment_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AttemptRecord is the analytics projection of one terminal session.
type AttemptRecord struct {
	SessionID    uuid.UUID           `json:"session_id"`
	AssessmentID uuid.UUID           `json:"assessment_id"`
	UserID       int                 `json:"user_id"`
	UserName     string              `json:"user_name"`
	Status       model.SessionStatus `json:"status"`
	Score        *int                `json:"score"`
	Passed       *bool               `json:"passed"`
	CompletedAt  *time.Time          `json:"completed_at"`
}

const attemptRecordQuery = `
	SELECT s.id, s.assessment_id, s.user_id, u.name, s.status, s.score, s.passed, s.completed_at
	FROM assessment_sessions s
	JOIN users u ON s.user_id = u.id
	JOIN assessments a ON s.assessment_id = a.id
	WHERE s.status IN ('COMPLETED', 'TIMED_OUT')`

// ListTerminalByAssessment retrieves terminal attempts for one assessment,
// ordered deterministically so tie order in rankings is stable per run.
func (r *SessionRepository) ListTerminalByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]AttemptRecord, error) {
	rows, err := r.pool.Query(ctx,
		attemptRecordQuery+` AND s.assessment_id = $1 ORDER BY s.completed_at ASC, s.id ASC`,
		assessmentID)
	if err != nil {
		return nil, err
	}
	return collectAttemptRecords(rows)
}

// ListTerminalByOrg retrieves terminal attempts across an organization.
func (r *SessionRepository) ListTerminalByOrg(ctx context.Context, orgID int) ([]AttemptRecord, error) {
	rows, err := r.pool.Query(ctx,
		attemptRecordQuery+` AND a.org_id = $1 ORDER BY s.completed_at ASC, s.id ASC`,
		orgID)
	if err != nil {
		return nil, err
	}
	return collectAttemptRecords(rows)
}

// LiveAttempt is the monitor projection of one in-progress session.
type LiveAttempt struct {
	SessionID      uuid.UUID `json:"session_id"`
	UserID         int       `json:"user_id"`
	UserName       string    `json:"user_name"`
	StartedAt      time.Time `json:"started_at"`
	TabSwitchCount int       `json:"tab_switch_count"`
	AnsweredCount  int       `json:"answered_count"`
}

// ListLiveByAssessment retrieves every in-progress attempt for one
// assessment with its current answered count, for monitor snapshots.
func (r *SessionRepository) ListLiveByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]LiveAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.user_id, u.name, s.started_at, s.tab_switch_count,
		        (SELECT COUNT(*) FROM session_answers sa WHERE sa.session_id = s.id)
		 FROM assessment_sessions s
		 JOIN users u ON s.user_id = u.id
		 WHERE s.assessment_id = $1 AND s.status = $2
		 ORDER BY s.started_at ASC`,
		assessmentID, model.SessionStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []LiveAttempt
	for rows.Next() {
		var a LiveAttempt
		if err := rows.Scan(&a.SessionID, &a.UserID, &a.UserName, &a.StartedAt, &a.TabSwitchCount, &a.AnsweredCount); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func collectAttemptRecords(rows pgx.Rows) ([]AttemptRecord, error) {
	defer rows.Close()

	var records []AttemptRecord
	for rows.Next() {
		var rec AttemptRecord
		if err := rows.Scan(&rec.SessionID, &rec.AssessmentID, &rec.UserID, &rec.UserName, &rec.Status, &rec.Score, &rec.Passed, &rec.CompletedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
