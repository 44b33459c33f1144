package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attestra/attestra-backend/internal/model"
)

// AssessmentRepository handles read-only assessment data access. The
// session engine never writes assessments; authoring happens elsewhere.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// GetByID retrieves an assessment by its ID.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, org_id, title, question_count, time_limit_minutes, pass_score, status, created_at, updated_at
		 FROM assessments
		 WHERE id = $1`, id,
	).Scan(&a.ID, &a.OrgID, &a.Title, &a.QuestionCount, &a.TimeLimitMinutes, &a.PassScore, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListPublished retrieves all published assessments, used for cache prewarm.
func (r *AssessmentRepository) ListPublished(ctx context.Context) ([]model.Assessment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, org_id, title, question_count, time_limit_minutes, pass_score, status, created_at, updated_at
		 FROM assessments
		 WHERE status = $1
		 ORDER BY created_at`, model.AssessmentStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		var a model.Assessment
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Title, &a.QuestionCount, &a.TimeLimitMinutes, &a.PassScore, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByOrg retrieves assessments visible to candidates of an organization.
func (r *AssessmentRepository) ListByOrg(ctx context.Context, orgID int) ([]model.Assessment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, org_id, title, question_count, time_limit_minutes, pass_score, status, created_at, updated_at
		 FROM assessments
		 WHERE org_id = $1 AND status = $2
		 ORDER BY created_at DESC`, orgID, model.AssessmentStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		var a model.Assessment
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Title, &a.QuestionCount, &a.TimeLimitMinutes, &a.PassScore, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
