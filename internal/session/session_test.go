package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SwiftTim/hub2/internal/clock"
	"github.com/SwiftTim/hub2/internal/model"
	"github.com/SwiftTim/hub2/internal/proctor"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu          sync.Mutex
	saves       []map[string]string
	finals      []model.FinalAttempt
	saveErr     error
	finalizeErr error
	onFinalize  func()
}

func (f *fakeStore) UpdateAnswers(_ context.Context, _ uuid.UUID, answers map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, answers)
	return nil
}

func (f *fakeStore) Finalize(_ context.Context, final model.FinalAttempt) error {
	if f.onFinalize != nil {
		f.onFinalize()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finals = append(f.finals, final)
	return nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []model.SuspiciousActivity
}

func (f *fakeSink) Publish(ev model.SuspiciousActivity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeSink) ofType(t model.ActivityType) []model.SuspiciousActivity {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SuspiciousActivity
	for _, e := range f.events {
		if e.ActivityType == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	clock    *clock.Fake
	store    *fakeStore
	sink     *fakeSink
	session  *Session
	q1, q2   model.Question
	statuses []SaveStatus
}

func strptr(s string) *string { return &s }

func newFixture(t *testing.T, antiCheat bool) *fixture {
	t.Helper()
	windowStart := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	entered := windowStart.Add(5 * time.Minute)

	f := &fixture{
		clock: clock.NewFake(entered),
		store: &fakeStore{},
		sink:  &fakeSink{},
	}
	assessment := &model.Assessment{
		ID:               uuid.New(),
		StartTime:        windowStart,
		EndTime:          windowStart.Add(time.Hour),
		DurationMinutes:  30,
		AntiCheatEnabled: antiCheat,
	}
	f.q1 = model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeMultipleChoice, Marks: 5, CorrectAnswer: strptr("B")}
	f.q2 = model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeMultipleChoice, Marks: 10, CorrectAnswer: strptr("D")}
	attempt := &model.AssessmentAttempt{
		ID:           uuid.New(),
		AssessmentID: assessment.ID,
		StudentID:    uuid.New(),
		Status:       model.AttemptStatusInProgress,
		StartedAt:    entered,
	}

	var mu sync.Mutex
	s, err := New(Config{
		Assessment: assessment,
		Attempt:    attempt,
		Questions:  []model.Question{f.q1, f.q2},
		Store:      f.store,
		Sink:       f.sink,
		Clock:      f.clock,
		Debounce:   2 * time.Second,
		Detectors:  proctor.DefaultOptions(),
		Logger:     zerolog.Nop(),
		OnSaveStatus: func(st SaveStatus, _ error) {
			mu.Lock()
			f.statuses = append(f.statuses, st)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	f.session = s
	return f
}

func TestSession_ExpiryAutoSubmitsOnce(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.clock.Advance(29*time.Minute + 59*time.Second)
	tick, err := f.session.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Second, tick.Remaining)
	assert.Nil(t, tick.Submitted)

	f.clock.Advance(time.Second) // 10:35
	tick, err = f.session.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, tick.Submitted)
	assert.True(t, tick.Submitted.Expired)
	assert.Equal(t, 30, tick.Submitted.TimeTakenMinutes)
	assert.Equal(t, StateExpired, f.session.State())

	f.clock.Advance(time.Second)
	tick, err = f.session.Tick(ctx)
	require.NoError(t, err)
	assert.Nil(t, tick.Submitted)

	require.Len(t, f.store.finals, 1)
	assert.Equal(t, 30, f.store.finals[0].TimeTakenMinutes)
}

func TestSession_ManualThenExpiryIsSingleWrite(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.session.RecordAnswer(f.q1.ID.String(), "B"))
	require.NoError(t, f.session.RecordAnswer(f.q2.ID.String(), "A"))

	f.clock.Advance(10 * time.Minute)
	res, err := f.session.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Score)
	assert.Equal(t, 10, res.TimeTakenMinutes)
	assert.False(t, res.Expired)

	_, err = f.session.Submit(ctx)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	f.clock.Advance(time.Hour)
	tick, err := f.session.Tick(ctx)
	require.NoError(t, err)
	assert.Nil(t, tick.Submitted)

	require.Len(t, f.store.finals, 1)
	assert.Equal(t, 5.0, f.store.finals[0].Score)
	assert.ErrorIs(t, f.session.RecordAnswer(f.q1.ID.String(), "C"), ErrFinalized)
}

func TestSession_ConcurrentSubmitLoserIsNoop(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	var inner error
	f.store.onFinalize = func() {
		_, inner = f.session.Submit(ctx)
	}
	_, err := f.session.Submit(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrSubmissionInFlight)
	assert.Len(t, f.store.finals, 1)
}

func TestSession_FailedSubmitCanRetry(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.store.finalizeErr = errors.New("connection reset")
	_, err := f.session.Submit(ctx)
	require.Error(t, err)
	assert.Equal(t, StateInProgress, f.session.State())
	assert.Empty(t, f.store.finals)
	assert.NoError(t, f.session.RecordAnswer(f.q1.ID.String(), "B"))

	f.store.finalizeErr = nil
	res, err := f.session.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Score)
	assert.Len(t, f.store.finals, 1)
}

func TestSession_FailedExpirySubmitRetriesOnNextTick(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.store.finalizeErr = errors.New("db down")
	f.clock.Advance(30 * time.Minute)
	_, err := f.session.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, StateInProgress, f.session.State())

	f.store.finalizeErr = nil
	f.clock.Advance(time.Second)
	tick, err := f.session.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, tick.Submitted)
	assert.Equal(t, 30, tick.Submitted.TimeTakenMinutes)
	assert.Equal(t, f.session.Deadline(), tick.Submitted.SubmittedAt)
}

func TestSession_ThreeTabSwitches(t *testing.T) {
	f := newFixture(t, true)

	for i := 0; i < 3; i++ {
		f.session.RecordEvent(proctor.Signal{Kind: proctor.SignalVisibility, State: proctor.StateHidden})
		f.clock.Advance(time.Second)
		f.session.RecordEvent(proctor.Signal{Kind: proctor.SignalVisibility, State: proctor.StateVisible})
		f.clock.Advance(time.Second)
	}

	_, err := f.session.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, f.store.finals, 1)
	final := f.store.finals[0]

	assert.Equal(t, 3, final.TabSwitches)
	assert.Equal(t, []string{
		"Left tab at 10:05:00",
		"Left tab at 10:05:02",
		"Left tab at 10:05:04",
	}, final.SuspiciousActivities)

	high := f.sink.ofType(model.ActivityTabSwitch)
	require.Len(t, high, 3)
	for i, ev := range high {
		assert.Equal(t, model.RiskHigh, ev.RiskLevel)
		assert.NotEqual(t, uuid.Nil, ev.ID)
		if i > 0 {
			assert.True(t, ev.OccurredAt.After(high[i-1].OccurredAt))
		}
	}
}

func TestSession_CountersAndLock(t *testing.T) {
	f := newFixture(t, true)

	f.session.RecordEvent(proctor.Signal{Kind: proctor.SignalKeydown, Key: "h"})
	f.session.RecordEvent(proctor.Signal{Kind: proctor.SignalKeydown, Key: "i"})
	out := f.session.RecordEvent(proctor.Signal{Kind: proctor.SignalClipboard, State: proctor.StatePaste})
	assert.True(t, out.Suppress)

	out = f.session.RecordEvent(proctor.Signal{Kind: proctor.SignalFullscreen, State: proctor.StateExit})
	assert.True(t, out.Lock)
	assert.ErrorIs(t, f.session.RecordAnswer(f.q1.ID.String(), "B"), ErrEnvironmentLocked)

	f.session.RecordEvent(proctor.Signal{Kind: proctor.SignalFullscreen, State: proctor.StateEnter})
	assert.NoError(t, f.session.RecordAnswer(f.q1.ID.String(), "B"))

	snap := f.session.Snapshot()
	assert.Equal(t, 2, snap.KeyboardActivity)
	assert.Equal(t, 1, snap.CopyPasteAttempts)
	assert.Len(t, snap.SuspiciousActivities, 2)
	assert.False(t, snap.Locked)
}

func TestSession_AntiCheatDisabledIgnoresSignals(t *testing.T) {
	f := newFixture(t, false)

	out := f.session.RecordEvent(proctor.Signal{Kind: proctor.SignalVisibility, State: proctor.StateHidden})
	assert.Nil(t, out.Event)
	assert.Equal(t, 0, f.session.Snapshot().TabSwitches)
	assert.Empty(t, f.sink.ofType(model.ActivityTabSwitch))
	assert.Len(t, f.sink.ofType(model.ActivityAssessmentStarted), 1)
}

func TestSession_AutosaveCoalesces(t *testing.T) {
	f := newFixture(t, false)
	id := f.q1.ID.String()

	for _, ans := range []string{"A", "B", "C", "D", "B"} {
		require.NoError(t, f.session.RecordAnswer(id, ans))
		f.clock.Advance(500 * time.Millisecond)
	}
	assert.Empty(t, f.store.saves)

	f.clock.Advance(2 * time.Second)
	require.Len(t, f.store.saves, 1)
	assert.Equal(t, "B", f.store.saves[0][id])
	assert.Equal(t, []SaveStatus{SaveSaving, SaveSaved}, f.statuses)
}

func TestSession_AutosaveErrorIsRecoverable(t *testing.T) {
	f := newFixture(t, false)
	id := f.q1.ID.String()

	f.store.saveErr = errors.New("timeout")
	require.NoError(t, f.session.RecordAnswer(id, "A"))
	f.clock.Advance(2 * time.Second)
	assert.Equal(t, SaveError, f.session.Snapshot().SaveStatus)
	assert.Equal(t, "A", f.session.Snapshot().Answers[id])

	f.store.saveErr = nil
	require.NoError(t, f.session.RecordAnswer(id, "B"))
	f.clock.Advance(2 * time.Second)
	assert.Equal(t, SaveSaved, f.session.Snapshot().SaveStatus)
	require.Len(t, f.store.saves, 1)
}

func TestSession_CloseFlushesPendingAnswers(t *testing.T) {
	f := newFixture(t, true)
	id := f.q2.ID.String()

	require.NoError(t, f.session.RecordAnswer(id, "D"))
	f.session.Close(context.Background())
	f.session.Close(context.Background())

	require.Len(t, f.store.saves, 1)
	assert.Equal(t, "D", f.store.saves[0][id])
	assert.Equal(t, 0, f.clock.Pending())
}

func TestSession_ResumeSeedsAnswers(t *testing.T) {
	c := clock.NewFake(time.Now())
	qid := uuid.NewString()
	s, err := New(Config{
		Assessment: &model.Assessment{ID: uuid.New(), DurationMinutes: 10},
		Attempt: &model.AssessmentAttempt{
			ID:          uuid.New(),
			Status:      model.AttemptStatusInProgress,
			StartedAt:   c.Now(),
			Answers:     map[string]string{qid: "true"},
			TabSwitches: 2,
		},
		Store:  &fakeStore{},
		Clock:  c,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.Equal(t, StateNotStarted, s.State())
	assert.ErrorIs(t, s.RecordAnswer(qid, "false"), ErrNotStarted)

	require.NoError(t, s.Start())
	snap := s.Snapshot()
	assert.Equal(t, "true", snap.Answers[qid])
	assert.Equal(t, 2, snap.TabSwitches)
}

func TestNew_RefusesFinalAttempt(t *testing.T) {
	_, err := New(Config{
		Assessment: &model.Assessment{},
		Attempt:    &model.AssessmentAttempt{Status: model.AttemptStatusGraded},
	})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestTimeTaken(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"before start", start.Add(-time.Minute), 0},
		{"rounds down", start.Add(4*time.Minute + 29*time.Second), 4},
		{"rounds up", start.Add(4*time.Minute + 30*time.Second), 5},
		{"clamped to duration", start.Add(2 * time.Hour), 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timeTaken(start, tt.now, 30*time.Minute))
		})
	}
}

func TestSession_AnswerKeysAreCanonical(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.session.RecordAnswer(strings.ToUpper(f.q1.ID.String()), "B"))
	require.NoError(t, f.session.RecordAnswer("urn:uuid:"+f.q2.ID.String(), "D"))
	assert.ErrorIs(t, f.session.RecordAnswer("question-3", "A"), ErrInvalidQuestionID)

	snap := f.session.Snapshot()
	assert.Equal(t, map[string]string{f.q1.ID.String(): "B", f.q2.ID.String(): "D"}, snap.Answers)

	res, err := f.session.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15.0, res.Score)
}

func TestSession_NoEditsAfterDeadlineWhileExpiryRetries(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	deadline := f.session.Deadline()

	require.NoError(t, f.session.RecordAnswer(f.q1.ID.String(), "B"))
	f.store.finalizeErr = errors.New("db down")
	f.clock.Advance(30 * time.Minute)
	_, err := f.session.Tick(ctx)
	require.Error(t, err)
	require.Equal(t, StateInProgress, f.session.State())

	assert.ErrorIs(t, f.session.RecordAnswer(f.q2.ID.String(), "D"), ErrTimeUp)
	out := f.session.RecordEvent(proctor.Signal{Kind: proctor.SignalVisibility, State: proctor.StateHidden})
	require.NotNil(t, out.Event)
	assert.Len(t, f.sink.ofType(model.ActivityTabSwitch), 1)

	f.store.finalizeErr = nil
	f.clock.Advance(5 * time.Minute)
	tick, err := f.session.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, tick.Submitted)
	assert.Equal(t, 5.0, tick.Submitted.Score)
	assert.True(t, tick.Submitted.Expired)
	assert.Equal(t, deadline, tick.Submitted.SubmittedAt)

	require.Len(t, f.store.finals, 1)
	final := f.store.finals[0]
	assert.NotContains(t, final.Answers, f.q2.ID.String())
	assert.Equal(t, deadline, final.SubmittedAt)
	assert.Equal(t, 30, final.TimeTakenMinutes)
	assert.Zero(t, final.TabSwitches)
}

func TestSession_EventsDuringSubmitReachSink(t *testing.T) {
	f := newFixture(t, true)

	var during proctor.Outcome
	f.store.onFinalize = func() {
		during = f.session.RecordEvent(proctor.Signal{Kind: proctor.SignalVisibility, State: proctor.StateHidden})
	}
	f.store.finalizeErr = errors.New("connection reset")
	_, err := f.session.Submit(context.Background())
	require.Error(t, err)

	require.NotNil(t, during.Event)
	events := f.sink.ofType(model.ActivityTabSwitch)
	require.Len(t, events, 1)
	assert.Equal(t, f.session.assessment.ID, events[0].AssessmentID)
	assert.Zero(t, f.session.Snapshot().TabSwitches)
}
