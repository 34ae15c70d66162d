package repository

import (
	"context"

	"github.com/SwiftTim/hub2/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitorRepository serves the lecturer's live view of an assessment.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// RiskSummary counts logged events per student and risk level. Lifecycle
// events are excluded.
func (r *MonitorRepository) RiskSummary(ctx context.Context, assessmentID uuid.UUID) ([]model.StudentRiskSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT l.user_id, u.name,
		        COUNT(*) FILTER (WHERE l.risk_level = 'high')   AS high_count,
		        COUNT(*) FILTER (WHERE l.risk_level = 'medium') AS medium_count,
		        COUNT(*) FILTER (WHERE l.risk_level = 'low')    AS low_count,
		        MAX(l.created_at)
		 FROM assessment_security_logs l
		 JOIN users u ON u.id = l.user_id
		 WHERE l.assessment_id = $1
		   AND l.activity_type NOT IN ($2, $3)
		 GROUP BY l.user_id, u.name
		 ORDER BY high_count DESC, medium_count DESC, u.name`,
		assessmentID, string(model.ActivityAssessmentStarted), string(model.ActivityAssessmentSubmitted),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]model.StudentRiskSummary, 0)
	for rows.Next() {
		var s model.StudentRiskSummary
		if err := rows.Scan(&s.StudentID, &s.StudentName, &s.HighCount, &s.MediumCount, &s.LowCount, &s.LastEventAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ActiveStudentCount returns how many attempts are still in progress.
func (r *MonitorRepository) ActiveStudentCount(ctx context.Context, assessmentID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assessment_attempts WHERE assessment_id = $1 AND status = $2`,
		assessmentID, model.AttemptStatusInProgress,
	).Scan(&n)
	return n, err
}
