package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SwiftTim/hub2/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRepository handles assessment attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, assessment_id, student_id, status, answers, started_at, submitted_at,
	score::float8, time_taken, tab_switches, copy_paste_attempts, keyboard_activity, suspicious_activities`

func scanAttempt(row pgx.Row) (*model.AssessmentAttempt, error) {
	a := &model.AssessmentAttempt{}
	err := row.Scan(&a.ID, &a.AssessmentID, &a.StudentID, &a.Status, &a.Answers, &a.StartedAt, &a.SubmittedAt,
		&a.Score, &a.TimeTaken, &a.TabSwitches, &a.CopyPasteAttempts, &a.KeyboardActivity, &a.SuspiciousActivities)
	if err != nil {
		return nil, err
	}
	if a.Answers == nil {
		a.Answers = map[string]string{}
	}
	return a, nil
}

// GetByAssessmentAndStudent retrieves the attempt for an assessment-student pair.
func (r *AttemptRepository) GetByAssessmentAndStudent(ctx context.Context, assessmentID, studentID uuid.UUID) (*model.AssessmentAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM assessment_attempts
		 WHERE assessment_id = $1 AND student_id = $2`, assessmentID, studentID,
	))
}

// Create inserts a new in-progress attempt. When another request created the
// attempt first, pgx.ErrNoRows is returned and the caller should refetch.
func (r *AttemptRepository) Create(ctx context.Context, a *model.AssessmentAttempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assessment_attempts (assessment_id, student_id, status, answers, started_at)
		 VALUES ($1, $2, $3, '{}', $4)
		 ON CONFLICT (assessment_id, student_id) DO NOTHING
		 RETURNING id`,
		a.AssessmentID, a.StudentID, model.AttemptStatusInProgress, a.StartedAt,
	).Scan(&a.ID)
}

// UpdateAnswers overwrites the answer map while the attempt is in progress.
func (r *AttemptRepository) UpdateAnswers(ctx context.Context, attemptID uuid.UUID, answers map[string]string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE assessment_attempts
		 SET answers = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		answers, attemptID, model.AttemptStatusInProgress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotActive
	}
	return nil
}

// Finalize writes the submitted state and the provisional result in one
// transaction. Only an in-progress attempt can be finalized.
func (r *AttemptRepository) Finalize(ctx context.Context, f model.FinalAttempt) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var assessmentID, studentID uuid.UUID
	err = tx.QueryRow(ctx,
		`UPDATE assessment_attempts
		 SET status = $1, answers = $2, submitted_at = $3, score = $4, time_taken = $5,
		     tab_switches = $6, copy_paste_attempts = $7, keyboard_activity = $8,
		     suspicious_activities = $9, updated_at = NOW()
		 WHERE id = $10 AND status = $11
		 RETURNING assessment_id, student_id`,
		model.AttemptStatusSubmitted, f.Answers, f.SubmittedAt, f.Score, f.TimeTakenMinutes,
		f.TabSwitches, f.CopyPasteAttempts, f.KeyboardActivity,
		f.SuspiciousActivities, f.AttemptID, model.AttemptStatusInProgress,
	).Scan(&assessmentID, &studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAttemptNotActive
		}
		return fmt.Errorf("update attempt: %w", err)
	}

	percentage := 0.0
	if f.MaxScore > 0 {
		percentage = f.Score / f.MaxScore * 100
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO assessment_results (assessment_id, user_id, score, total_marks, percentage, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (assessment_id, user_id) DO UPDATE
		 SET score = EXCLUDED.score, total_marks = EXCLUDED.total_marks, percentage = EXCLUDED.percentage`,
		assessmentID, studentID, f.Score, f.MaxScore, percentage, f.SubmittedAt,
	); err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}

	return tx.Commit(ctx)
}
