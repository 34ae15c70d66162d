package proctor

import (
	"sync"
	"time"
)

// Options toggles individual detectors. All are on by default.
type Options struct {
	Fullscreen  bool
	Visibility  bool
	Clipboard   bool
	ContextMenu bool
	Shortcuts   bool
}

// DefaultOptions enables every detector.
func DefaultOptions() Options {
	return Options{
		Fullscreen:  true,
		Visibility:  true,
		Clipboard:   true,
		ContextMenu: true,
		Shortcuts:   true,
	}
}

// Monitor composes the enabled detectors for one session. It is acquired on
// session entry and must be released on every exit path; a released
// Monitor ignores all signals.
type Monitor struct {
	mu         sync.Mutex
	detectors  []Detector
	fullscreen *fullscreenDetector
	released   bool
}

// NewMonitor returns a Monitor with the enabled detectors registered.
func NewMonitor(opts Options) *Monitor {
	m := &Monitor{}
	if opts.Fullscreen {
		m.fullscreen = &fullscreenDetector{}
		m.detectors = append(m.detectors, m.fullscreen)
	}
	if opts.Visibility {
		m.detectors = append(m.detectors, visibilityDetector{})
	}
	if opts.Clipboard {
		m.detectors = append(m.detectors, clipboardDetector{})
	}
	if opts.ContextMenu {
		m.detectors = append(m.detectors, contextMenuDetector{})
	}
	if opts.Shortcuts {
		m.detectors = append(m.detectors, shortcutDetector{})
	}
	return m
}

// Observe classifies sig. Signals no enabled detector handles yield a zero Outcome.
func (m *Monitor) Observe(sig Signal, now time.Time) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return Outcome{}
	}
	for _, d := range m.detectors {
		if d.Handles(sig.Kind) {
			return d.Detect(sig, now)
		}
	}
	return Outcome{}
}

// Locked reports whether interaction is blocked pending fullscreen restore.
func (m *Monitor) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.released && m.fullscreen != nil && m.fullscreen.locked
}

// Release detaches every detector. Safe to call more than once.
func (m *Monitor) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
	m.detectors = nil
	if m.fullscreen != nil {
		m.fullscreen.locked = false
	}
}

// Released reports whether Release has been called.
func (m *Monitor) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}
