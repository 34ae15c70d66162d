package repository

import (
	"context"

	"github.com/SwiftTim/hub2/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssessmentRepository reads assessments and their questions.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// GetByID retrieves an assessment. pgx.ErrNoRows is returned when it does not exist.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	var createdBy *uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT id, unit_id, title, description, start_time, end_time,
		        duration_minutes, anti_cheat_enabled, created_by, created_at
		 FROM assessments
		 WHERE id = $1`, id,
	).Scan(&a.ID, &a.UnitID, &a.Title, &a.Description, &a.StartTime, &a.EndTime,
		&a.DurationMinutes, &a.AntiCheatEnabled, &createdBy, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if createdBy != nil {
		a.CreatedBy = *createdBy
	}
	return a, nil
}

// ListQuestions returns the assessment's questions ordered by position.
func (r *AssessmentRepository) ListQuestions(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, assessment_id, question_text, question_type, options,
		        correct_answer, marks::float8, position, created_at
		 FROM assessment_questions
		 WHERE assessment_id = $1
		 ORDER BY position ASC, created_at ASC`, assessmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.AssessmentID, &q.QuestionText, &q.QuestionType, &q.Options,
			&q.CorrectAnswer, &q.Marks, &q.Position, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
