// Package clock abstracts wall-clock time so timed sessions can be driven
// deterministically in tests. Both clocks are backed by clockwork.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the subset of the time package used by sessions.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// Timer is a cancelable one-shot callback.
type Timer interface {
	Stop() bool
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return adapter{c: clockwork.NewRealClock()} }

type adapter struct{ c clockwork.Clock }

func (a adapter) Now() time.Time { return a.c.Now() }

func (a adapter) AfterFunc(d time.Duration, f func()) Timer { return a.c.AfterFunc(d, f) }

func (a adapter) NewTicker(d time.Duration) Ticker { return ticker{t: a.c.NewTicker(d)} }

type ticker struct{ t clockwork.Ticker }

func (t ticker) C() <-chan time.Time { return t.t.Chan() }
func (t ticker) Stop()               { t.t.Stop() }

// Fake is a manually advanced Clock. clockwork runs AfterFunc callbacks on
// their own goroutines; Advance returns only once every callback that came
// due has finished, so tests can assert right after it.
type Fake struct {
	fc *clockwork.FakeClock

	mu    sync.Mutex
	armed map[*fakeTimer]struct{}
	due   sync.WaitGroup
}

// NewFake returns a Fake clock frozen at start.
func NewFake(start time.Time) *Fake {
	return &Fake{
		fc:    clockwork.NewFakeClockAt(start),
		armed: make(map[*fakeTimer]struct{}),
	}
}

func (f *Fake) Now() time.Time { return f.fc.Now() }

func (f *Fake) NewTicker(d time.Duration) Ticker { return ticker{t: f.fc.NewTicker(d)} }

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{clock: f, at: f.fc.Now().Add(d)}
	f.mu.Lock()
	f.armed[t] = struct{}{}
	f.mu.Unlock()

	t.inner = f.fc.AfterFunc(d, func() {
		f.mu.Lock()
		delete(f.armed, t)
		counted := t.counted
		f.mu.Unlock()
		if counted {
			defer f.due.Done()
		}
		fn()
	})
	return t
}

// Pending returns the number of armed timers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.armed)
}

// Set jumps the clock to t and fires everything that became due.
func (f *Fake) Set(t time.Time) {
	f.Advance(t.Sub(f.Now()))
}

// Advance moves the clock forward by d and waits for the callbacks of every
// timer that came due. Tickers are advanced by clockwork.
func (f *Fake) Advance(d time.Duration) {
	target := f.fc.Now().Add(d)

	f.mu.Lock()
	for t := range f.armed {
		if !t.counted && !t.at.After(target) {
			t.counted = true
			f.due.Add(1)
		}
	}
	f.mu.Unlock()

	f.fc.Advance(d)
	f.due.Wait()
}

type fakeTimer struct {
	clock   *Fake
	at      time.Time
	inner   clockwork.Timer
	counted bool
}

func (t *fakeTimer) Stop() bool {
	if !t.inner.Stop() {
		return false
	}
	f := t.clock
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, t)
	if t.counted {
		t.counted = false
		f.due.Done()
	}
	return true
}
