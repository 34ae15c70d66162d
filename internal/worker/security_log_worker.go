package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/SwiftTim/hub2/internal/config"
	"github.com/SwiftTim/hub2/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// LogStore is the persistence half of the worker.
type LogStore interface {
	CopyLogs(ctx context.Context, batch []model.SuspiciousActivity) (int64, error)
	InsertLog(ctx context.Context, ev model.SuspiciousActivity) error
}

// SecurityLogWorker drains the security log queue into Postgres in batches.
type SecurityLogWorker struct {
	store LogStore
	rdb   *redis.Client
	log   zerolog.Logger
}

func NewSecurityLogWorker(store LogStore, rdb *redis.Client, log zerolog.Logger) *SecurityLogWorker {
	return &SecurityLogWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "security_log_worker").Logger(),
	}
}

func (w *SecurityLogWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SecurityLogWorker started")

	buffer := make([]model.SuspiciousActivity, 0, BatchSize)
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

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistSecurityLogsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		ev, err := decodeEvent([]byte(result[1]))
		if err != nil {
			// Malformed payloads cannot be retried.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed security log event")
			continue
		}
		buffer = append(buffer, ev)
	}
}

func decodeEvent(data []byte) (model.SuspiciousActivity, error) {
	var ev model.SuspiciousActivity
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, err
	}
	if ev.ID == uuid.Nil || ev.AssessmentID == uuid.Nil || ev.StudentID == uuid.Nil {
		return ev, errors.New("event is missing an identifier")
	}
	if ev.ActivityType == "" {
		return ev, errors.New("event is missing an activity type")
	}
	if ev.RiskLevel == "" {
		ev.RiskLevel = model.RiskLow
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	return ev, nil
}

// flushSafe attempts a bulk insert, then a row-by-row insert, then requeues
// whatever still failed.
func (w *SecurityLogWorker) flushSafe(ctx context.Context, batch []model.SuspiciousActivity) {
	if failed := w.flush(ctx, batch); len(failed) > 0 {
		w.requeue(ctx, failed)
	}
}

// flush returns the events that could not be written.
func (w *SecurityLogWorker) flush(ctx context.Context, batch []model.SuspiciousActivity) []model.SuspiciousActivity {
	_, err := w.store.CopyLogs(ctx, batch)
	if err == nil {
		return nil
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	var failed []model.SuspiciousActivity
	for _, ev := range batch {
		if err := w.store.InsertLog(ctx, ev); err != nil {
			w.log.Error().Err(err).
				Str("event_id", ev.ID.String()).
				Str("student_id", ev.StudentID.String()).
				Msg("Insert failed, requeueing")
			failed = append(failed, ev)
		}
	}
	return failed
}

func (w *SecurityLogWorker) requeue(ctx context.Context, items []model.SuspiciousActivity) {
	pipe := w.rdb.Pipeline()
	for _, ev := range items {
		data, _ := json.Marshal(ev)
		pipe.RPush(ctx, config.WorkerKey.PersistSecurityLogsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue security log events. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed events back to Redis")
	// Back off while the database is unavailable.
	time.Sleep(2 * time.Second)
}

func (w *SecurityLogWorker) shutdown(buffer []model.SuspiciousActivity) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
