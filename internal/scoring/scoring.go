// Package scoring auto-grades submitted attempts.
package scoring

import "github.com/SwiftTim/hub2/internal/model"

// Result summarises an auto-grade pass.
type Result struct {
	Score         float64 `json:"score"`
	MaxScore      float64 `json:"max_score"`
	AutoMaxScore  float64 `json:"auto_max_score"`
	AutoGraded    int     `json:"auto_graded"`
	PendingManual int     `json:"pending_manual"`
}

// Grade scores objective questions by exact match against their canonical
// answer. Short-answer and essay questions contribute 0 and are counted as
// pending manual grading.
func Grade(questions []model.Question, answers map[string]string) Result {
	var r Result
	for _, q := range questions {
		r.MaxScore += q.Marks
		if !q.QuestionType.Objective() {
			r.PendingManual++
			continue
		}
		r.AutoGraded++
		r.AutoMaxScore += q.Marks
		if q.CorrectAnswer == nil {
			continue
		}
		if ans, ok := answers[q.ID.String()]; ok && ans == *q.CorrectAnswer {
			r.Score += q.Marks
		}
	}
	return r
}
