package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/config"
	"github.com/attestra/attestra-backend/internal/service"
)

// TelemetryWorker consumes the clock-drift queue and persists samples
// into clock_drift_events. Drift data is diagnostics only, so a sample
// that fails twice is dropped rather than requeued forever.
type TelemetryWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewTelemetryWorker creates a new TelemetryWorker.
func NewTelemetryWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *TelemetryWorker {
	return &TelemetryWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "telemetry_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *TelemetryWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]*service.ClockDriftSample, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flush(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			if len(buffer) > 0 {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				w.flush(shutdownCtx, buffer)
				cancel()
			}
			w.log.Info().Msg("Worker stopped")
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.ClockTelemetryQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var sample service.ClockDriftSample
		if err := json.Unmarshal([]byte(result[1]), &sample); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &sample)
	}
}

func (w *TelemetryWorker) flush(ctx context.Context, batch []*service.ClockDriftSample) {
	rows := make([][]interface{}, 0, len(batch))
	for _, s := range batch {
		rows = append(rows, []interface{}{
			s.SessionID, s.UserID, s.ClientRemaining, s.ServerRemaining, s.DriftSeconds, s.RecordedAt,
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"clock_drift_events"},
		[]string{"session_id", "user_id", "client_remaining", "server_remaining", "drift_seconds", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	if err == nil {
		return
	}

	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
	for _, s := range batch {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO clock_drift_events (session_id, user_id, client_remaining, server_remaining, drift_seconds, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			s.SessionID, s.UserID, s.ClientRemaining, s.ServerRemaining, s.DriftSeconds, s.RecordedAt,
		)
		if err != nil {
			// Sessions reset by an admin cascade their drift rows away;
			// a sample racing that delete hits an FK error and is dropped.
			w.log.Debug().Err(err).Str("session_id", s.SessionID.String()).Msg("Dropping drift sample")
		}
	}
}
