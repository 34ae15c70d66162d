package model

import (
	"time"

	"github.com/google/uuid"
)

// Assessment is a timed, windowed test (CAT) owned by one unit.
type Assessment struct {
	ID               uuid.UUID `json:"id"`
	UnitID           uuid.UUID `json:"unit_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	DurationMinutes  int       `json:"duration_minutes"`
	AntiCheatEnabled bool      `json:"anti_cheat_enabled"`
	CreatedBy        uuid.UUID `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// WindowOpen reports whether now falls within [StartTime, EndTime).
func (a *Assessment) WindowOpen(now time.Time) bool {
	return !now.Before(a.StartTime) && now.Before(a.EndTime)
}

// Duration returns the attempt length as a time.Duration.
func (a *Assessment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

// AssessmentView is what a student receives on entry. Correct answers are never included.
type AssessmentView struct {
	AssessmentID     uuid.UUID            `json:"assessment_id"`
	AttemptID        uuid.UUID            `json:"attempt_id"`
	Title            string               `json:"title"`
	Description      string               `json:"description,omitempty"`
	DurationMinutes  int                  `json:"duration_minutes"`
	AntiCheatEnabled bool                 `json:"anti_cheat_enabled"`
	StartedAt        time.Time            `json:"started_at"`
	RemainingMs      int64                `json:"remaining_ms"`
	Answers          map[string]string    `json:"answers"`
	Questions        []QuestionForStudent `json:"questions"`
}
