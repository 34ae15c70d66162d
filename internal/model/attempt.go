package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusGraded     AttemptStatus = "graded"
)

// Final reports whether the attempt can no longer be changed by the student.
func (s AttemptStatus) Final() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusGraded
}

// AssessmentAttempt is one student's single attempt at one assessment.
type AssessmentAttempt struct {
	ID                   uuid.UUID         `json:"id"`
	AssessmentID         uuid.UUID         `json:"assessment_id"`
	StudentID            uuid.UUID         `json:"student_id"`
	Status               AttemptStatus     `json:"status"`
	Answers              map[string]string `json:"answers"`
	StartedAt            time.Time         `json:"started_at"`
	SubmittedAt          *time.Time        `json:"submitted_at,omitempty"`
	Score                *float64          `json:"score,omitempty"`
	TimeTaken            *int              `json:"time_taken,omitempty"` // minutes
	TabSwitches          int               `json:"tab_switches"`
	CopyPasteAttempts    int               `json:"copy_paste_attempts"`
	KeyboardActivity     int               `json:"keyboard_activity"`
	SuspiciousActivities []string          `json:"suspicious_activities"`
}

// FinalAttempt is the single durable write that ends an attempt.
type FinalAttempt struct {
	AttemptID            uuid.UUID
	Answers              map[string]string
	SubmittedAt          time.Time
	Score                float64
	MaxScore             float64
	TimeTakenMinutes     int
	TabSwitches          int
	CopyPasteAttempts    int
	KeyboardActivity     int
	SuspiciousActivities []string
}
