// Package session implements the proctored assessment state machine. A
// Session is owned by one connection; its only mutators are Start, Tick,
// RecordAnswer, RecordEvent, Submit and Close.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"sync"
	"time"

	"github.com/SwiftTim/hub2/internal/clock"
	"github.com/SwiftTim/hub2/internal/model"
	"github.com/SwiftTim/hub2/internal/proctor"
	"github.com/SwiftTim/hub2/internal/scoring"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxActivityLog bounds the textual suspicious-activity log kept on the attempt.
const MaxActivityLog = 500

// DefaultDebounce is the auto-save quiet period.
const DefaultDebounce = 2 * time.Second

var (
	ErrNotStarted         = errors.New("session not started")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrFinalized          = errors.New("attempt is finalized")
	ErrEnvironmentLocked  = errors.New("interaction locked until fullscreen is restored")
	ErrAttemptNotActive   = errors.New("attempt is not in progress")
	ErrTimeUp             = errors.New("assessment time is up")
	ErrInvalidQuestionID  = errors.New("question id is not a valid uuid")
)

// State is the session lifecycle state.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateExpired    State = "expired"
)

// Done reports whether the state is terminal.
func (s State) Done() bool { return s == StateSubmitted || s == StateExpired }

// Store persists attempt state.
type Store interface {
	// UpdateAnswers overwrites the answer map of an in-progress attempt.
	UpdateAnswers(ctx context.Context, attemptID uuid.UUID, answers map[string]string) error
	// Finalize applies the single final write. It must fail when the attempt
	// is no longer in progress.
	Finalize(ctx context.Context, f model.FinalAttempt) error
}

// EventSink receives every detector and lifecycle event. Publish must not block.
type EventSink interface {
	Publish(ev model.SuspiciousActivity)
}

// Config wires a Session.
type Config struct {
	Assessment *model.Assessment
	Attempt    *model.AssessmentAttempt
	Questions  []model.Question
	Store      Store
	Sink       EventSink
	Clock      clock.Clock
	Debounce   time.Duration
	Detectors  proctor.Options
	Logger     zerolog.Logger

	// OnSaveStatus is called from the auto-save goroutine.
	OnSaveStatus func(SaveStatus, error)
}

// Result describes a successful final submission.
type Result struct {
	Score            float64   `json:"score"`
	MaxScore         float64   `json:"max_score"`
	PendingManual    int       `json:"pending_manual"`
	TimeTakenMinutes int       `json:"time_taken"`
	SubmittedAt      time.Time `json:"submitted_at"`
	Expired          bool      `json:"expired"`
}

// Snapshot is a read-only copy of session state.
type Snapshot struct {
	State                State             `json:"state"`
	RemainingMs          int64             `json:"remaining_ms"`
	Answers              map[string]string `json:"answers"`
	TabSwitches          int               `json:"tab_switches"`
	CopyPasteAttempts    int               `json:"copy_paste_attempts"`
	KeyboardActivity     int               `json:"keyboard_activity"`
	SuspiciousActivities []string          `json:"suspicious_activities"`
	SaveStatus           SaveStatus        `json:"save_status"`
	Locked               bool              `json:"locked"`
}

// TickResult is returned by Tick.
type TickResult struct {
	Remaining time.Duration
	// Submitted is set on the tick that performed the expiry submission.
	Submitted *Result
}

// Session is one student's live attempt.
type Session struct {
	mu sync.Mutex

	assessment *model.Assessment
	attemptID  uuid.UUID
	studentID  uuid.UUID
	startedAt  time.Time
	questions  []model.Question

	store   Store
	sink    EventSink
	clock   clock.Clock
	log     zerolog.Logger
	monitor *proctor.Monitor
	saver   *autosaver
	opts    proctor.Options

	state       State
	answers     map[string]string
	tabSwitches int
	copyPaste   int
	keyboard    int
	activity    []string
	result      *Result
	closed      bool
}

// New builds a session for an in-progress attempt. The stored answer map seeds the session.
func New(cfg Config) (*Session, error) {
	if cfg.Assessment == nil || cfg.Attempt == nil {
		return nil, errors.New("session: assessment and attempt are required")
	}
	if cfg.Attempt.Status.Final() {
		return nil, ErrAlreadySubmitted
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	s := &Session{
		assessment:  cfg.Assessment,
		attemptID:   cfg.Attempt.ID,
		studentID:   cfg.Attempt.StudentID,
		startedAt:   cfg.Attempt.StartedAt,
		questions:   cfg.Questions,
		store:       cfg.Store,
		sink:        cfg.Sink,
		clock:       cfg.Clock,
		opts:        cfg.Detectors,
		state:       StateNotStarted,
		answers:     maps.Clone(cfg.Attempt.Answers),
		tabSwitches: cfg.Attempt.TabSwitches,
		copyPaste:   cfg.Attempt.CopyPasteAttempts,
		keyboard:    cfg.Attempt.KeyboardActivity,
		activity:    append([]string(nil), cfg.Attempt.SuspiciousActivities...),
		log: cfg.Logger.With().
			Str("component", "session").
			Str("attempt_id", cfg.Attempt.ID.String()).
			Logger(),
	}
	if s.answers == nil {
		s.answers = make(map[string]string)
	}

	attemptID := s.attemptID
	s.saver = newAutosaver(cfg.Clock, cfg.Debounce, func(ctx context.Context, answers map[string]string) error {
		return s.store.UpdateAnswers(ctx, attemptID, answers)
	}, func(st SaveStatus, err error) {
		if err != nil {
			s.log.Warn().Err(err).Msg("Auto-save failed")
		}
		if cfg.OnSaveStatus != nil {
			cfg.OnSaveStatus(st, err)
		}
	})

	return s, nil
}

// Start moves the session into progress and acquires the detectors when
// anti-cheat is enabled.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return nil
	}
	if s.assessment.AntiCheatEnabled {
		s.monitor = proctor.NewMonitor(s.opts)
	}
	s.state = StateInProgress
	now := s.clock.Now()
	s.mu.Unlock()

	s.emit(&model.SuspiciousActivity{
		ActivityType: model.ActivityAssessmentStarted,
		RiskLevel:    proctor.RiskFor(model.ActivityAssessmentStarted),
		Description:  "Assessment started at " + now.Format("15:04:05"),
		OccurredAt:   now,
	})
	return nil
}

// Deadline is startedAt plus the assessment duration.
func (s *Session) Deadline() time.Time {
	return s.startedAt.Add(s.assessment.Duration())
}

// Remaining returns max(0, deadline - now).
func (s *Session) Remaining() time.Duration {
	return remaining(s.Deadline(), s.clock.Now())
}

func remaining(deadline, now time.Time) time.Duration {
	if d := deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Tick recomputes the remaining time. When it reaches zero the attempt is
// submitted exactly once; a failed expiry submission is retried on the next tick.
func (s *Session) Tick(ctx context.Context) (TickResult, error) {
	rem := s.Remaining()
	out := TickResult{Remaining: rem}
	if rem > 0 {
		return out, nil
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateInProgress {
		return out, nil
	}

	res, err := s.submit(ctx, true)
	switch {
	case err == nil:
		out.Submitted = res
		return out, nil
	case errors.Is(err, ErrAlreadySubmitted), errors.Is(err, ErrSubmissionInFlight):
		return out, nil
	default:
		return out, err
	}
}

// RecordAnswer stores an answer and schedules an auto-save. The question id
// is stored in canonical lowercase form, which is how grading looks it up.
// Answers are not validated against the question type. Once the deadline
// has passed edits are refused, even while the expiry write is being retried.
func (s *Session) RecordAnswer(questionID, answer string) error {
	qid, err := uuid.Parse(questionID)
	if err != nil {
		return ErrInvalidQuestionID
	}

	s.mu.Lock()
	switch {
	case s.state == StateNotStarted:
		s.mu.Unlock()
		return ErrNotStarted
	case s.state != StateInProgress:
		s.mu.Unlock()
		return ErrFinalized
	case s.Remaining() == 0:
		s.mu.Unlock()
		return ErrTimeUp
	case s.monitor != nil && s.monitor.Locked():
		s.mu.Unlock()
		return ErrEnvironmentLocked
	}
	s.answers[qid.String()] = answer
	snapshot := maps.Clone(s.answers)
	s.mu.Unlock()

	s.saver.Schedule(snapshot)
	return nil
}

// RecordEvent classifies a raw environment signal, updates counters and the
// activity log, and streams any resulting event to the sink. While a
// submission is in flight, or once the deadline has passed, the attempt
// record is frozen: events still reach the sink but counters stay put.
func (s *Session) RecordEvent(sig proctor.Signal) proctor.Outcome {
	s.mu.Lock()
	if s.monitor == nil || (s.state != StateInProgress && s.state != StateSubmitting) {
		s.mu.Unlock()
		return proctor.Outcome{}
	}
	out := s.monitor.Observe(sig, s.clock.Now())
	if s.state == StateSubmitting || s.Remaining() == 0 {
		s.mu.Unlock()
		if out.Event != nil {
			s.emit(out.Event)
		}
		return out
	}
	switch out.Counter {
	case proctor.CounterTabSwitches:
		s.tabSwitches++
	case proctor.CounterCopyPaste:
		s.copyPaste++
	case proctor.CounterKeyboard:
		s.keyboard++
	}
	if out.Event != nil && len(s.activity) < MaxActivityLog {
		s.activity = append(s.activity, out.Event.Description)
	}
	s.mu.Unlock()

	if out.Event != nil {
		s.emit(out.Event)
	}
	return out
}

// Submit performs the manual submission.
func (s *Session) Submit(ctx context.Context) (*Result, error) {
	return s.submit(ctx, false)
}

func (s *Session) submit(ctx context.Context, expired bool) (*Result, error) {
	s.mu.Lock()
	switch s.state {
	case StateNotStarted:
		s.mu.Unlock()
		return nil, ErrNotStarted
	case StateSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case StateSubmitted, StateExpired:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	s.state = StateSubmitting
	// Past the deadline the attempt is an expiry, stamped at the deadline
	// no matter how late the write lands.
	now := s.clock.Now()
	if deadline := s.Deadline(); !now.Before(deadline) {
		now = deadline
		expired = true
	}
	final := model.FinalAttempt{
		AttemptID:            s.attemptID,
		Answers:              maps.Clone(s.answers),
		SubmittedAt:          now,
		TimeTakenMinutes:     timeTaken(s.startedAt, now, s.assessment.Duration()),
		TabSwitches:          s.tabSwitches,
		CopyPasteAttempts:    s.copyPaste,
		KeyboardActivity:     s.keyboard,
		SuspiciousActivities: append([]string{}, s.activity...),
	}
	s.mu.Unlock()

	graded := scoring.Grade(s.questions, final.Answers)
	final.Score = graded.Score
	final.MaxScore = graded.MaxScore

	if err := s.store.Finalize(ctx, final); err != nil {
		s.mu.Lock()
		s.state = StateInProgress
		s.mu.Unlock()
		s.log.Error().Err(err).Bool("expired", expired).Msg("Final submission failed")
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	res := &Result{
		Score:            graded.Score,
		MaxScore:         graded.MaxScore,
		PendingManual:    graded.PendingManual,
		TimeTakenMinutes: final.TimeTakenMinutes,
		SubmittedAt:      now,
		Expired:          expired,
	}

	s.mu.Lock()
	if expired {
		s.state = StateExpired
	} else {
		s.state = StateSubmitted
	}
	s.result = res
	monitor := s.monitor
	s.mu.Unlock()

	s.saver.Stop()
	if monitor != nil {
		monitor.Release()
	}

	s.emit(&model.SuspiciousActivity{
		ActivityType: model.ActivityAssessmentSubmitted,
		RiskLevel:    proctor.RiskFor(model.ActivityAssessmentSubmitted),
		Description:  "Assessment submitted at " + now.Format("15:04:05"),
		Details:      map[string]any{"expired": expired, "score": graded.Score},
		OccurredAt:   now,
	})

	s.log.Info().
		Float64("score", res.Score).
		Int("time_taken", res.TimeTakenMinutes).
		Bool("expired", expired).
		Msg("Attempt submitted")

	return res, nil
}

// timeTaken is the elapsed time clamped to [0, duration], rounded to minutes.
func timeTaken(startedAt, now time.Time, duration time.Duration) int {
	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > duration {
		elapsed = duration
	}
	return int(math.Round(elapsed.Minutes()))
}

// Result returns the final result once the session is done.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:                s.state,
		RemainingMs:          remaining(s.Deadline(), s.clock.Now()).Milliseconds(),
		Answers:              maps.Clone(s.answers),
		TabSwitches:          s.tabSwitches,
		CopyPasteAttempts:    s.copyPaste,
		KeyboardActivity:     s.keyboard,
		SuspiciousActivities: append([]string{}, s.activity...),
		SaveStatus:           s.saver.Status(),
		Locked:               s.monitor != nil && s.monitor.Locked(),
	}
}

// Close releases detectors and timers. An unsubmitted session flushes its
// pending answers first. Close is idempotent.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	active := s.state == StateInProgress
	monitor := s.monitor
	s.mu.Unlock()

	if active {
		s.saver.Flush(ctx)
	}
	s.saver.Stop()
	if monitor != nil {
		monitor.Release()
	}
}

func (s *Session) emit(ev *model.SuspiciousActivity) {
	if s.sink == nil {
		return
	}
	e := *ev
	e.ID = uuid.New()
	e.AssessmentID = s.assessment.ID
	e.StudentID = s.studentID
	s.sink.Publish(e)
}
