package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/attestra/attestra-backend/internal/config"
)

// ResultNotification is the queue payload the notification worker
// consumes. Timestamps travel as unix seconds to keep the wire format
// stable across clock zones.
type ResultNotification struct {
	UserID       int    `json:"user_id"`
	AssessmentID string `json:"assessment_id"`
	Score        int    `json:"score"`
	Passed       bool   `json:"passed"`
	Timestamp    int64  `json:"timestamp"`
}

// RedisNotifier enqueues result notifications for asynchronous
// delivery. The completion path only pays for one RPush; persistence
// and fan-out happen in the worker.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier creates a new RedisNotifier.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// NotifyResult pushes a RESULT_READY notification onto the worker queue.
func (n *RedisNotifier) NotifyResult(ctx context.Context, userID int, assessmentID uuid.UUID, score int, passed bool) error {
	payload := ResultNotification{
		UserID:       userID,
		AssessmentID: assessmentID.String(),
		Score:        score,
		Passed:       passed,
		Timestamp:    time.Now().Unix(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := n.rdb.RPush(ctx, config.WorkerKey.NotificationsQueue, data).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
