package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypeEssay          QuestionType = "essay"
)

// Objective reports whether the type can be auto-graded by exact match.
func (t QuestionType) Objective() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeTrueFalse
}

// Question belongs to exactly one assessment.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	AssessmentID  uuid.UUID    `json:"assessment_id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer *string      `json:"correct_answer,omitempty"`
	Marks         float64      `json:"marks"`
	Position      int          `json:"position"`
	CreatedAt     time.Time    `json:"created_at"`
}

// QuestionForStudent is a question without the correct answer.
type QuestionForStudent struct {
	ID           uuid.UUID    `json:"id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Options      []string     `json:"options,omitempty"`
	Marks        float64      `json:"marks"`
	Position     int          `json:"position"`
}

// ForStudent strips grading data from q.
func (q Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		Options:      q.Options,
		Marks:        q.Marks,
		Position:     q.Position,
	}
}
