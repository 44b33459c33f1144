package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/attestra/attestra-backend/internal/config"
)

// RedisMonitorPublisher fans live attempt events out to attached
// monitor streams over Redis Pub/Sub. Delivery is at-most-once and
// unacknowledged; the periodic refresh in the stream handler covers
// anything a monitor misses.
type RedisMonitorPublisher struct {
	rdb *redis.Client
}

// NewRedisMonitorPublisher creates a new RedisMonitorPublisher.
func NewRedisMonitorPublisher(rdb *redis.Client) *RedisMonitorPublisher {
	return &RedisMonitorPublisher{rdb: rdb}
}

// PublishMonitorEvent serializes the payload and publishes it to the
// assessment's monitor channel.
func (p *RedisMonitorPublisher) PublishMonitorEvent(ctx context.Context, assessmentID uuid.UUID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal monitor event: %w", err)
	}

	channel := config.CacheKey.AssessmentMonitorChannel(assessmentID.String())
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish monitor event: %w", err)
	}
	return nil
}
