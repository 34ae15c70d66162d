package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrollmentRepository answers unit membership questions.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// IsActive reports whether the student has an active enrollment in the unit.
func (r *EnrollmentRepository) IsActive(ctx context.Context, unitID, studentID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM unit_enrollments
		   WHERE unit_id = $1 AND student_id = $2 AND status = 'active'
		 )`, unitID, studentID,
	).Scan(&ok)
	return ok, err
}

// IsLecturer reports whether the user teaches the unit owning the assessment.
func (r *EnrollmentRepository) IsLecturer(ctx context.Context, assessmentID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM assessments a
		   JOIN units u ON u.id = a.unit_id
		   WHERE a.id = $1 AND u.lecturer_id = $2
		 )`, assessmentID, userID,
	).Scan(&ok)
	return ok, err
}
