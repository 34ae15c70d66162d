package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/SwiftTim/hub2/internal/config"
	"github.com/SwiftTim/hub2/internal/model"
	"github.com/SwiftTim/hub2/internal/proctor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	deliverAttempts = 3
	deliverBackoff  = 200 * time.Millisecond
	drainTimeout    = 5 * time.Second
)

type deliverFunc func(ctx context.Context, ev model.SuspiciousActivity) error

// SecurityLogPublisher streams session events to the security log queue
// without blocking the session. High-risk and lifecycle events are also
// fanned out to lecturers watching the assessment.
type SecurityLogPublisher struct {
	events  chan model.SuspiciousActivity
	deliver deliverFunc
	dropped atomic.Int64
	log     zerolog.Logger
}

// NewSecurityLogPublisher creates a publisher backed by Redis.
func NewSecurityLogPublisher(rdb *redis.Client, buffer int, log zerolog.Logger) *SecurityLogPublisher {
	return newSecurityLogPublisher(redisDelivery(rdb), buffer, log)
}

func newSecurityLogPublisher(deliver deliverFunc, buffer int, log zerolog.Logger) *SecurityLogPublisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &SecurityLogPublisher{
		events:  make(chan model.SuspiciousActivity, buffer),
		deliver: deliver,
		log:     log.With().Str("component", "security_log_publisher").Logger(),
	}
}

// Publish enqueues ev. When the buffer is full the event is dropped and
// counted; the caller is never blocked.
func (p *SecurityLogPublisher) Publish(ev model.SuspiciousActivity) {
	select {
	case p.events <- ev:
	default:
		n := p.dropped.Add(1)
		p.log.Warn().
			Str("event_id", ev.ID.String()).
			Str("activity_type", string(ev.ActivityType)).
			Int64("dropped_total", n).
			Msg("Security log buffer full, dropping event")
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (p *SecurityLogPublisher) Dropped() int64 { return p.dropped.Load() }

// Run delivers events in publish order until ctx is cancelled, then drains
// whatever is still buffered.
func (p *SecurityLogPublisher) Run(ctx context.Context) {
	p.log.Info().Int("buffer", cap(p.events)).Msg("SecurityLogPublisher started")
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case ev := <-p.events:
			p.send(ctx, ev)
		}
	}
}

func (p *SecurityLogPublisher) send(ctx context.Context, ev model.SuspiciousActivity) {
	var err error
	for attempt := 1; attempt <= deliverAttempts; attempt++ {
		if err = p.deliver(ctx, ev); err == nil {
			return
		}
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * deliverBackoff):
		}
	}
	p.log.Error().Err(err).
		Str("event_id", ev.ID.String()).
		Str("student_id", ev.StudentID.String()).
		Msg("Failed to deliver security log event")
}

func (p *SecurityLogPublisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case ev := <-p.events:
			if err := p.deliver(ctx, ev); err != nil {
				p.log.Error().Err(err).Str("event_id", ev.ID.String()).Msg("Failed to deliver event during shutdown")
			}
		default:
			return
		}
	}
}

// broadcast reports whether lecturers should see ev live.
func broadcast(ev model.SuspiciousActivity) bool {
	switch ev.ActivityType {
	case model.ActivityAssessmentStarted, model.ActivityAssessmentSubmitted:
		return true
	}
	return proctor.Alerting(ev.RiskLevel)
}

// AlertFor projects an event onto the lecturer-facing alert.
func AlertFor(ev model.SuspiciousActivity) model.MonitorAlert {
	return model.MonitorAlert{
		EventID:      ev.ID,
		AssessmentID: ev.AssessmentID,
		StudentID:    ev.StudentID,
		ActivityType: ev.ActivityType,
		RiskLevel:    ev.RiskLevel,
		Description:  ev.Description,
		OccurredAt:   ev.OccurredAt,
	}
}

func redisDelivery(rdb *redis.Client) deliverFunc {
	return func(ctx context.Context, ev model.SuspiciousActivity) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}

		pipe := rdb.Pipeline()
		pipe.RPush(ctx, config.WorkerKey.PersistSecurityLogsQueue, data)
		if broadcast(ev) {
			alert, err := json.Marshal(AlertFor(ev))
			if err != nil {
				return fmt.Errorf("marshal alert: %w", err)
			}
			pipe.Publish(ctx, config.CacheKey.AssessmentMonitorChannel(ev.AssessmentID.String()), alert)
		}
		_, err = pipe.Exec(ctx)
		return err
	}
}
