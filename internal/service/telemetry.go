package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/attestra/attestra-backend/internal/config"
)

// RedisTelemetrySink enqueues clock-drift samples for the telemetry
// worker. Samples are diagnostics, so the queue is fire-and-forget from
// the submit path's point of view.
type RedisTelemetrySink struct {
	rdb *redis.Client
}

// NewRedisTelemetrySink creates a new RedisTelemetrySink.
func NewRedisTelemetrySink(rdb *redis.Client) *RedisTelemetrySink {
	return &RedisTelemetrySink{rdb: rdb}
}

// RecordClockDrift pushes one sample onto the telemetry queue.
func (t *RedisTelemetrySink) RecordClockDrift(ctx context.Context, sample ClockDriftSample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshal drift sample: %w", err)
	}

	if err := t.rdb.RPush(ctx, config.WorkerKey.ClockTelemetryQueue, data).Err(); err != nil {
		return fmt.Errorf("enqueue drift sample: %w", err)
	}
	return nil
}
