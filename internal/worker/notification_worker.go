package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/config"
	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/service"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// NotificationWorker consumes the result notification queue and persists
// rows into the notifications table in batches. Finalizing an attempt
// only pays for the enqueue; this worker absorbs the write load.
type NotificationWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewNotificationWorker creates a new NotificationWorker.
func NewNotificationWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *NotificationWorker {
	return &NotificationWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "notification_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]*service.ResultNotification, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.NotificationsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // queue empty, loop back to check the flush timer
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

		var payload service.ResultNotification
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON can never succeed on retry. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then row-by-row fallback with requeue.
func (w *NotificationWorker) flushSafe(ctx context.Context, batch []*service.ResultNotification) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *NotificationWorker) bulkInsert(ctx context.Context, batch []*service.ResultNotification) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, p := range batch {
		assessmentID, err := uuid.Parse(p.AssessmentID)
		if err != nil {
			// Trigger the fallback, which handles the bad UUID individually.
			return err
		}
		rows = append(rows, []interface{}{
			p.UserID, assessmentID, model.NotificationResultReady, p.Score, p.Passed, time.Unix(p.Timestamp, 0),
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"notifications"},
		[]string{"user_id", "assessment_id", "kind", "score", "passed", "created_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *NotificationWorker) fallbackInsert(ctx context.Context, batch []*service.ResultNotification) {
	requeueList := make([]*service.ResultNotification, 0)

	for _, p := range batch {
		assessmentID, err := uuid.Parse(p.AssessmentID)
		if err != nil {
			w.log.Error().Str("assessment_id", p.AssessmentID).Msg("Dropping notification with invalid UUID")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO notifications (user_id, assessment_id, kind, score, passed, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			p.UserID, assessmentID, model.NotificationResultReady, p.Score, p.Passed, time.Unix(p.Timestamp, 0),
		)
		if err != nil {
			w.log.Error().Err(err).Int("user_id", p.UserID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *NotificationWorker) requeue(ctx context.Context, items []*service.ResultNotification) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.NotificationsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Avoid thrashing while the database is down.
		time.Sleep(2 * time.Second)
	}
}

func (w *NotificationWorker) shutdown(buffer []*service.ResultNotification) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
