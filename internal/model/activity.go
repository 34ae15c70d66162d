package model

import (
	"time"

	"github.com/google/uuid"
)

// ActivityType names a kind of suspicious (or lifecycle) event.
type ActivityType string

const (
	ActivityTabSwitch       ActivityType = "tab_switch"
	ActivityCopyPaste       ActivityType = "copy_paste"
	ActivityFullscreenExit  ActivityType = "fullscreen_exit"
	ActivityBlockedShortcut ActivityType = "blocked_shortcut"
	ActivityRightClick      ActivityType = "right_click"
	ActivityAppBackgrounded ActivityType = "app_backgrounded"
	ActivityBackNavigation  ActivityType = "back_navigation"

	ActivityAssessmentStarted   ActivityType = "assessment_started"
	ActivityAssessmentSubmitted ActivityType = "assessment_submitted"
)

// RiskLevel grades an activity.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// SuspiciousActivity is an ephemeral detector event. It is appended to the
// attempt's textual log and streamed to the security log independently.
type SuspiciousActivity struct {
	ID           uuid.UUID      `json:"id"` // idempotency key for at-least-once delivery
	AssessmentID uuid.UUID      `json:"assessment_id"`
	StudentID    uuid.UUID      `json:"student_id"`
	ActivityType ActivityType   `json:"activity_type"`
	RiskLevel    RiskLevel      `json:"risk_level"`
	Description  string         `json:"description"`
	Details      map[string]any `json:"details,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// MonitorAlert is broadcast to lecturers watching an assessment.
type MonitorAlert struct {
	EventID      uuid.UUID    `json:"event_id"`
	AssessmentID uuid.UUID    `json:"assessment_id"`
	StudentID    uuid.UUID    `json:"student_id"`
	ActivityType ActivityType `json:"activity_type"`
	RiskLevel    RiskLevel    `json:"risk_level"`
	Description  string       `json:"description"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

// StudentRiskSummary aggregates the security log for one student.
type StudentRiskSummary struct {
	StudentID   uuid.UUID  `json:"student_id"`
	StudentName string     `json:"student_name"`
	HighCount   int        `json:"high_count"`
	MediumCount int        `json:"medium_count"`
	LowCount    int        `json:"low_count"`
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
}
