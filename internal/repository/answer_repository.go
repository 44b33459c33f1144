package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attestra/attestra-backend/internal/model"
)

// AnswerRepository handles per-question answer rows.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert writes the (session, question) answer row, overwriting any
// previous choice. The EXISTS guard runs in the same statement as the
// write, so a submit racing a finalize cannot land on a closed session:
// zero rows affected means the session was no longer IN_PROGRESS.
func (r *AnswerRepository) Upsert(ctx context.Context, sessionID, questionID uuid.UUID, selectedIndex int, submittedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, selected_index, submitted_at)
		 SELECT $1, $2, $3, $4
		 WHERE EXISTS (
		 	SELECT 1 FROM assessment_sessions WHERE id = $1 AND status = $5
		 )
		 ON CONFLICT (session_id, question_id)
		 DO UPDATE SET selected_index = EXCLUDED.selected_index,
		               submitted_at = EXCLUDED.submitted_at,
		               is_correct = NULL`,
		sessionID, questionID, selectedIndex, submittedAt, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListBySession retrieves all answers for a session.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_id, selected_index, is_correct, submitted_at
		 FROM session_answers
		 WHERE session_id = $1`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.SelectedIndex, &a.IsCorrect, &a.SubmittedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// MarkCorrectness bulk-writes the scored correctness flags for a session
// using UNNEST, one round trip for the whole attempt.
func (r *AnswerRepository) MarkCorrectness(ctx context.Context, sessionID uuid.UUID, questionIDs []uuid.UUID, correct []bool) error {
	if len(questionIDs) == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE session_answers AS a
		 SET is_correct = t.correct
		 FROM (
		 	SELECT u.question_id, u.correct
		 	FROM UNNEST($2::uuid[], $3::bool[]) AS u (question_id, correct)
		 ) AS t
		 WHERE a.session_id = $1
		   AND a.question_id = t.question_id`,
		sessionID, questionIDs, correct)
	return err
}
