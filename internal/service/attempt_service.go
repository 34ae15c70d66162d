package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SwiftTim/hub2/internal/clock"
	"github.com/SwiftTim/hub2/internal/model"
	"github.com/SwiftTim/hub2/internal/proctor"
	"github.com/SwiftTim/hub2/internal/session"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Entry and access errors.
var (
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrWindowClosed       = errors.New("assessment window is closed")
	ErrNotEnrolled        = errors.New("student is not enrolled in the unit")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")
	ErrNotAssessmentStaff = errors.New("not a lecturer of this assessment's unit")
)

// AssessmentSource reads assessments and their questions.
type AssessmentSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
	ListQuestions(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error)
}

// EnrollmentSource answers membership questions.
type EnrollmentSource interface {
	IsActive(ctx context.Context, unitID, studentID uuid.UUID) (bool, error)
	IsLecturer(ctx context.Context, assessmentID, userID uuid.UUID) (bool, error)
}

// AttemptStore persists attempts. It also backs live sessions.
type AttemptStore interface {
	session.Store
	GetByAssessmentAndStudent(ctx context.Context, assessmentID, studentID uuid.UUID) (*model.AssessmentAttempt, error)
	Create(ctx context.Context, a *model.AssessmentAttempt) error
}

// Entry is an eligible, in-progress attempt ready to become a session.
type Entry struct {
	Assessment *model.Assessment
	Attempt    *model.AssessmentAttempt
	Questions  []model.Question
}

// View builds the student-facing payload. Correct answers are stripped.
func (e *Entry) View(now time.Time) model.AssessmentView {
	questions := make([]model.QuestionForStudent, 0, len(e.Questions))
	for _, q := range e.Questions {
		questions = append(questions, q.ForStudent())
	}
	remaining := e.Attempt.StartedAt.Add(e.Assessment.Duration()).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	answers := e.Attempt.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	return model.AssessmentView{
		AssessmentID:     e.Assessment.ID,
		AttemptID:        e.Attempt.ID,
		Title:            e.Assessment.Title,
		Description:      e.Assessment.Description,
		DurationMinutes:  e.Assessment.DurationMinutes,
		AntiCheatEnabled: e.Assessment.AntiCheatEnabled,
		StartedAt:        e.Attempt.StartedAt,
		RemainingMs:      remaining.Milliseconds(),
		Answers:          answers,
		Questions:        questions,
	}
}

// AttemptService decides whether a student may enter an assessment and
// builds live sessions.
type AttemptService struct {
	assessments AssessmentSource
	enrollments EnrollmentSource
	attempts    AttemptStore
	clock       clock.Clock
	debounce    time.Duration
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	assessments AssessmentSource,
	enrollments EnrollmentSource,
	attempts AttemptStore,
	c clock.Clock,
	debounce time.Duration,
	log zerolog.Logger,
) *AttemptService {
	if c == nil {
		c = clock.Real()
	}
	return &AttemptService{
		assessments: assessments,
		enrollments: enrollments,
		attempts:    attempts,
		clock:       c,
		debounce:    debounce,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// Clock returns the clock sessions are driven by.
func (s *AttemptService) Clock() clock.Clock { return s.clock }

// Enter checks the window and enrollment, then returns the student's attempt,
// creating it on first visit. A finalized attempt is refused.
func (s *AttemptService) Enter(ctx context.Context, assessmentID, studentID uuid.UUID) (*Entry, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	now := s.clock.Now()
	if !assessment.WindowOpen(now) {
		return nil, ErrWindowClosed
	}

	enrolled, err := s.enrollments.IsActive(ctx, assessment.UnitID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	attempt, err := s.attempts.GetByAssessmentAndStudent(ctx, assessmentID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}

	if attempt == nil {
		attempt = &model.AssessmentAttempt{
			AssessmentID: assessmentID,
			StudentID:    studentID,
			Status:       model.AttemptStatusInProgress,
			Answers:      map[string]string{},
			StartedAt:    now,
		}
		if err := s.attempts.Create(ctx, attempt); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("create attempt: %w", err)
			}
			// Concurrent entry created it first.
			attempt, err = s.attempts.GetByAssessmentAndStudent(ctx, assessmentID, studentID)
			if err != nil {
				return nil, fmt.Errorf("concurrent entry detected, but fetch failed: %w", err)
			}
		} else {
			s.log.Info().
				Str("assessment_id", assessmentID.String()).
				Str("student_id", studentID.String()).
				Msg("Attempt created")
		}
	}

	if attempt.Status.Final() {
		return nil, ErrAlreadySubmitted
	}

	questions, err := s.assessments.ListQuestions(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return &Entry{Assessment: assessment, Attempt: attempt, Questions: questions}, nil
}

// NewSession wires a live session for an entry.
func (s *AttemptService) NewSession(e *Entry, sink session.EventSink, onSave func(session.SaveStatus, error)) (*session.Session, error) {
	return session.New(session.Config{
		Assessment:   e.Assessment,
		Attempt:      e.Attempt,
		Questions:    e.Questions,
		Store:        s.attempts,
		Sink:         sink,
		Clock:        s.clock,
		Debounce:     s.debounce,
		Detectors:    proctor.DefaultOptions(),
		Logger:       s.log,
		OnSaveStatus: onSave,
	})
}

// CanMonitor reports whether a staff member may watch an assessment. Admins
// may watch any assessment.
func (s *AttemptService) CanMonitor(ctx context.Context, assessmentID uuid.UUID, claims *Claims) (*model.Assessment, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if claims.Role == RoleAdmin {
		return assessment, nil
	}
	ok, err := s.enrollments.IsLecturer(ctx, assessmentID, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("check lecturer: %w", err)
	}
	if !ok {
		return nil, ErrNotAssessmentStaff
	}
	return assessment, nil
}
