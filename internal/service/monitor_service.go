package service

import (
	"context"
	"sync"

	"github.com/SwiftTim/hub2/internal/model"
	"github.com/google/uuid"
)

// MonitorSource reads the aggregates shown to proctors.
type MonitorSource interface {
	RiskSummary(ctx context.Context, assessmentID uuid.UUID) ([]model.StudentRiskSummary, error)
	ActiveStudentCount(ctx context.Context, assessmentID uuid.UUID) (int, error)
}

// MonitorService orchestrates live proctoring views.
type MonitorService struct {
	source MonitorSource
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(source MonitorSource) *MonitorService {
	return &MonitorService{source: source}
}

// MonitorSnapshot is the state a proctor sees on attach and on refresh.
type MonitorSnapshot struct {
	ActiveStudents int                        `json:"active_students"`
	FlaggedCount   int                        `json:"flagged_students"`
	HighRiskTotal  int                        `json:"high_risk_total"`
	Students       []model.StudentRiskSummary `json:"students"`
}

// Snapshot fetches risk counts and the active count concurrently. Risk counts
// are required; the active count is best-effort.
func (s *MonitorService) Snapshot(ctx context.Context, assessmentID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		summaries  []model.StudentRiskSummary
		active     int
		summaryErr error
		activeErr  error
		wg         sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		summaries, summaryErr = s.source.RiskSummary(ctx, assessmentID)
	}()
	go func() {
		defer wg.Done()
		active, activeErr = s.source.ActiveStudentCount(ctx, assessmentID)
	}()
	wg.Wait()

	if summaryErr != nil {
		return nil, summaryErr
	}

	snap := &MonitorSnapshot{Students: summaries}
	if snap.Students == nil {
		snap.Students = []model.StudentRiskSummary{}
	}
	if activeErr == nil {
		snap.ActiveStudents = active
	}
	for _, st := range summaries {
		if st.HighCount > 0 {
			snap.FlaggedCount++
		}
		snap.HighRiskTotal += st.HighCount
	}
	return snap, nil
}
