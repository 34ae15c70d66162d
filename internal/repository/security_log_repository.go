package repository

import (
	"context"

	"github.com/SwiftTim/hub2/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SecurityLogRepository persists proctoring telemetry.
type SecurityLogRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityLogRepository creates a new SecurityLogRepository.
func NewSecurityLogRepository(pool *pgxpool.Pool) *SecurityLogRepository {
	return &SecurityLogRepository{pool: pool}
}

var securityLogColumns = []string{"id", "assessment_id", "user_id", "activity_type", "details", "risk_level", "created_at"}

// logDetails folds the description into the stored details object.
func logDetails(ev model.SuspiciousActivity) map[string]any {
	details := make(map[string]any, len(ev.Details)+1)
	for k, v := range ev.Details {
		details[k] = v
	}
	if ev.Description != "" {
		details["description"] = ev.Description
	}
	return details
}

// CopyLogs bulk inserts a batch with the COPY protocol. A duplicate id fails
// the whole batch; callers fall back to InsertLog.
func (r *SecurityLogRepository) CopyLogs(ctx context.Context, batch []model.SuspiciousActivity) (int64, error) {
	return r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"assessment_security_logs"},
		securityLogColumns,
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			ev := batch[i]
			return []any{ev.ID, ev.AssessmentID, ev.StudentID, string(ev.ActivityType),
				logDetails(ev), string(ev.RiskLevel), ev.OccurredAt}, nil
		}),
	)
}

// InsertLog writes a single event. Redelivered events are ignored.
func (r *SecurityLogRepository) InsertLog(ctx context.Context, ev model.SuspiciousActivity) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO assessment_security_logs (id, assessment_id, user_id, activity_type, details, risk_level, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.AssessmentID, ev.StudentID, string(ev.ActivityType), logDetails(ev), string(ev.RiskLevel), ev.OccurredAt,
	)
	return err
}
