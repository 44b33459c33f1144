package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attestra/attestra-backend/internal/model"
)

// NotificationRepository handles in-app notification reads. Writes go
// through the notification worker's bulk path.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// ListByUser retrieves the most recent notifications for a user.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID, limit int) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, assessment_id, kind, score, passed, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.AssessmentID, &n.Kind, &n.Score, &n.Passed, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
