package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SwiftTim/hub2/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogStore struct {
	copyErr   error
	failIDs   map[uuid.UUID]bool
	copied    []model.SuspiciousActivity
	inserted  []model.SuspiciousActivity
	copyCalls int
}

func (f *fakeLogStore) CopyLogs(_ context.Context, batch []model.SuspiciousActivity) (int64, error) {
	f.copyCalls++
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.copied = append(f.copied, batch...)
	return int64(len(batch)), nil
}

func (f *fakeLogStore) InsertLog(_ context.Context, ev model.SuspiciousActivity) error {
	if f.failIDs[ev.ID] {
		return errors.New("connection refused")
	}
	f.inserted = append(f.inserted, ev)
	return nil
}

func event(t model.ActivityType) model.SuspiciousActivity {
	return model.SuspiciousActivity{
		ID:           uuid.New(),
		AssessmentID: uuid.New(),
		StudentID:    uuid.New(),
		ActivityType: t,
		RiskLevel:    model.RiskMedium,
		OccurredAt:   time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC),
	}
}

func TestFlush_BulkPath(t *testing.T) {
	store := &fakeLogStore{}
	w := NewSecurityLogWorker(store, nil, zerolog.Nop())

	batch := []model.SuspiciousActivity{event(model.ActivityTabSwitch), event(model.ActivityCopyPaste)}
	failed := w.flush(context.Background(), batch)

	assert.Empty(t, failed)
	assert.Len(t, store.copied, 2)
	assert.Empty(t, store.inserted)
}

func TestFlush_FallsBackRowByRow(t *testing.T) {
	a, b, c := event(model.ActivityTabSwitch), event(model.ActivityRightClick), event(model.ActivityFullscreenExit)
	store := &fakeLogStore{
		copyErr: errors.New("duplicate key value violates unique constraint"),
		failIDs: map[uuid.UUID]bool{b.ID: true},
	}
	w := NewSecurityLogWorker(store, nil, zerolog.Nop())

	failed := w.flush(context.Background(), []model.SuspiciousActivity{a, b, c})

	require.Len(t, failed, 1)
	assert.Equal(t, b.ID, failed[0].ID)
	require.Len(t, store.inserted, 2)
	assert.Equal(t, a.ID, store.inserted[0].ID)
	assert.Equal(t, c.ID, store.inserted[1].ID)
}

func TestDecodeEvent(t *testing.T) {
	ev := event(model.ActivityBlockedShortcut)
	ev.RiskLevel = ""

	data := []byte(`{"id":"` + ev.ID.String() + `","assessment_id":"` + ev.AssessmentID.String() +
		`","student_id":"` + ev.StudentID.String() + `","activity_type":"blocked_shortcut"}`)
	got, err := decodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, model.RiskLow, got.RiskLevel)
	assert.False(t, got.OccurredAt.IsZero())

	_, err = decodeEvent([]byte(`{not json`))
	assert.Error(t, err)

	_, err = decodeEvent([]byte(`{"activity_type":"tab_switch"}`))
	assert.Error(t, err)
}
