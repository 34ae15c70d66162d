package repository

import (
	"context"
	"fmt"

	"github.com/SwiftTim/hub2/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportDataRepository runs the read-only aggregation queries behind reports.
type ReportDataRepository struct {
	pool *pgxpool.Pool
}

// NewReportDataRepository creates a new ReportDataRepository.
func NewReportDataRepository(pool *pgxpool.Pool) *ReportDataRepository {
	return &ReportDataRepository{pool: pool}
}

// Student returns the identity block printed on every report.
func (r *ReportDataRepository) Student(ctx context.Context, userID uuid.UUID) (model.StudentInfo, error) {
	s := model.StudentInfo{ID: userID}
	var number *string
	err := r.pool.QueryRow(ctx,
		`SELECT name, email, student_number FROM users WHERE id = $1`, userID,
	).Scan(&s.Name, &s.Email, &number)
	if err != nil {
		return s, err
	}
	if number != nil {
		s.StudentNumber = *number
	}
	return s, nil
}

// Marks unions assessment results with graded assignment submissions.
func (r *ReportDataRepository) Marks(ctx context.Context, userID uuid.UUID) ([]model.MarkRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.code, u.name, 'assessment' AS type,
		        ar.score::float8, ar.total_marks::float8, ar.percentage,
		        ar.created_at AS assessment_date
		 FROM assessment_results ar
		 JOIN assessments a ON ar.assessment_id = a.id
		 JOIN units u ON a.unit_id = u.id
		 WHERE ar.user_id = $1
		 UNION ALL
		 SELECT u.code, u.name, 'assignment' AS type,
		        asg.grade::float8, asg.total_marks::float8,
		        (asg.grade::float8 / NULLIF(asg.total_marks::float8, 0) * 100),
		        COALESCE(asg.graded_at, asg.submitted_at) AS assessment_date
		 FROM assignment_submissions asg
		 JOIN assignments ass ON asg.assignment_id = ass.id
		 JOIN units u ON ass.unit_id = u.id
		 WHERE asg.user_id = $1 AND asg.grade IS NOT NULL
		 ORDER BY assessment_date DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query marks: %w", err)
	}
	defer rows.Close()

	var out []model.MarkRow
	for rows.Next() {
		var m model.MarkRow
		if err := rows.Scan(&m.UnitCode, &m.UnitName, &m.Kind, &m.Score, &m.TotalMarks, &m.Percentage, &m.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Submissions lists the student's assignment history, newest first.
func (r *ReportDataRepository) Submissions(ctx context.Context, userID uuid.UUID) ([]model.SubmissionRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.title, a.description, a.due_date, u.code, u.name,
		        asub.submitted_at, asub.grade::float8, asub.feedback, asub.status
		 FROM assignment_submissions asub
		 JOIN assignments a ON asub.assignment_id = a.id
		 JOIN units u ON a.unit_id = u.id
		 WHERE asub.user_id = $1
		 ORDER BY asub.submitted_at DESC NULLS LAST`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []model.SubmissionRow
	for rows.Next() {
		var s model.SubmissionRow
		if err := rows.Scan(&s.Title, &s.Description, &s.DueDate, &s.UnitCode, &s.UnitName,
			&s.SubmittedAt, &s.Grade, &s.Feedback, &s.Status); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Analytics gathers engagement counts, average scores and the last 30 active days.
func (r *ReportDataRepository) Analytics(ctx context.Context, userID uuid.UUID) (*model.Analytics, error) {
	a := &model.Analytics{}

	// Subqueries instead of a LEFT JOIN fan-out keep the counts independent.
	err := r.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(DISTINCT resource_id) FROM resource_downloads WHERE user_id = $1),
		   (SELECT COUNT(DISTINCT group_id) FROM messages WHERE sender_id = $1),
		   (SELECT COUNT(DISTINCT assessment_id) FROM assessment_results WHERE user_id = $1)`, userID,
	).Scan(&a.Engagement.ResourcesDownloaded, &a.Engagement.GroupsParticipated, &a.Engagement.AssessmentsTaken)
	if err != nil {
		return nil, fmt.Errorf("query engagement: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT
		   (SELECT AVG(percentage) FROM assessment_results WHERE user_id = $1),
		   (SELECT AVG(grade::float8 / NULLIF(total_marks::float8, 0) * 100)
		      FROM assignment_submissions WHERE user_id = $1 AND grade IS NOT NULL)`, userID,
	).Scan(&a.Performance.AvgAssessmentScore, &a.Performance.AvgAssignmentScore)
	if err != nil {
		return nil, fmt.Errorf("query performance: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT DATE(created_at)::timestamptz AS activity_date, COUNT(*)
		 FROM (
		   SELECT created_at FROM messages WHERE sender_id = $1
		   UNION ALL
		   SELECT submitted_at AS created_at FROM assignment_submissions WHERE user_id = $1 AND submitted_at IS NOT NULL
		   UNION ALL
		   SELECT created_at FROM assessment_results WHERE user_id = $1
		 ) activities
		 GROUP BY DATE(created_at)
		 ORDER BY activity_date DESC
		 LIMIT 30`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d model.ActivityDay
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		a.Activity = append(a.Activity, d)
	}
	return a, rows.Err()
}
