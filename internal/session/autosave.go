package session

import (
	"context"
	"sync"
	"time"

	"github.com/SwiftTim/hub2/internal/clock"
)

// SaveStatus is the local auto-save indicator.
type SaveStatus string

const (
	SaveIdle   SaveStatus = ""
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveError  SaveStatus = "error"
)

const saveTimeout = 5 * time.Second

// autosaver debounces answer-map writes. Only the latest pending snapshot is
// ever written; a fire during an in-flight write is replayed once it returns.
type autosaver struct {
	mu       sync.Mutex
	clock    clock.Clock
	delay    time.Duration
	save     func(ctx context.Context, answers map[string]string) error
	onStatus func(SaveStatus, error)

	timer    clock.Timer
	pending  map[string]string
	inFlight bool
	rerun    bool
	stopped  bool
	status   SaveStatus
}

func newAutosaver(c clock.Clock, delay time.Duration, save func(context.Context, map[string]string) error, onStatus func(SaveStatus, error)) *autosaver {
	return &autosaver{clock: c, delay: delay, save: save, onStatus: onStatus}
}

// Schedule replaces the pending snapshot and restarts the quiet period.
func (a *autosaver) Schedule(snapshot map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.pending = snapshot
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = a.clock.AfterFunc(a.delay, a.fire)
}

func (a *autosaver) fire() {
	a.mu.Lock()
	if a.inFlight {
		a.rerun = true
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.drain(context.Background())
}

// drain writes pending snapshots until none is left.
func (a *autosaver) drain(parent context.Context) {
	for {
		a.mu.Lock()
		if a.stopped || a.pending == nil || a.inFlight {
			a.mu.Unlock()
			return
		}
		snapshot := a.pending
		a.pending = nil
		a.inFlight = true
		a.rerun = false
		a.mu.Unlock()

		a.report(SaveSaving, nil)
		ctx, cancel := context.WithTimeout(parent, saveTimeout)
		err := a.save(ctx, snapshot)
		cancel()

		a.mu.Lock()
		a.inFlight = false
		again := a.rerun && a.pending != nil
		a.rerun = false
		a.mu.Unlock()

		if err != nil {
			a.report(SaveError, err)
		} else {
			a.report(SaveSaved, nil)
		}
		if !again {
			return
		}
	}
}

func (a *autosaver) report(s SaveStatus, err error) {
	a.mu.Lock()
	a.status = s
	cb := a.onStatus
	a.mu.Unlock()
	if cb != nil {
		cb(s, err)
	}
}

// Status returns the last reported save status.
func (a *autosaver) Status() SaveStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Flush cancels the quiet period and writes any pending snapshot now.
func (a *autosaver) Flush(ctx context.Context) {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	a.drain(ctx)
}

// Stop cancels the timer and discards pending work. Schedule becomes a no-op.
func (a *autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.pending = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
