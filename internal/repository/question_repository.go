package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attestra/attestra-backend/internal/model"
)

// QuestionRepository handles question data access for the resolver.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByAssessment retrieves the ordered question set, keys included.
func (r *QuestionRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, assessment_id, stem, options, correct_index, order_num
		 FROM questions
		 WHERE assessment_id = $1
		 ORDER BY order_num ASC, id ASC`, assessmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.AssessmentID, &q.Stem, &q.Options, &q.CorrectIndex, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
