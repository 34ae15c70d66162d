package proctor

import (
	"strings"
	"time"

	"github.com/SwiftTim/hub2/internal/model"
)

// Outcome is the result of classifying one Signal.
type Outcome struct {
	Event    *model.SuspiciousActivity `json:"event,omitempty"`
	Suppress bool                      `json:"suppress,omitempty"`
	Lock     bool                      `json:"lock,omitempty"`
	Unlock   bool                      `json:"unlock,omitempty"`
	Counter  Counter                   `json:"-"`
}

// Detector handles one family of signals.
type Detector interface {
	Handles(kind SignalKind) bool
	Detect(sig Signal, now time.Time) Outcome
}

func newEvent(t model.ActivityType, description string, now time.Time, details map[string]any) *model.SuspiciousActivity {
	return &model.SuspiciousActivity{
		ActivityType: t,
		RiskLevel:    RiskFor(t),
		Description:  description,
		Details:      details,
		OccurredAt:   now,
	}
}

// visibilityDetector flags the page or app leaving the foreground and back navigation.
type visibilityDetector struct{}

func (visibilityDetector) Handles(k SignalKind) bool {
	return k == SignalVisibility || k == SignalAppState || k == SignalNavigation
}

func (visibilityDetector) Detect(sig Signal, now time.Time) Outcome {
	switch {
	case sig.Kind == SignalVisibility && sig.State == StateHidden:
		return Outcome{
			Event:   newEvent(model.ActivityTabSwitch, stamp("Left tab", now), now, sig.Details),
			Counter: CounterTabSwitches,
		}
	case sig.Kind == SignalAppState && sig.State == StateBackground:
		return Outcome{
			Event:   newEvent(model.ActivityAppBackgrounded, stamp("App backgrounded", now), now, sig.Details),
			Counter: CounterTabSwitches,
		}
	case sig.Kind == SignalNavigation && sig.State == StateBack:
		return Outcome{
			Event:    newEvent(model.ActivityBackNavigation, stamp("Back navigation attempt", now), now, sig.Details),
			Suppress: true,
		}
	}
	return Outcome{}
}

// fullscreenDetector locks the session while fullscreen is exited.
// A client that reports fullscreen as unsupported degrades to no enforcement.
type fullscreenDetector struct {
	unsupported bool
	locked      bool
}

func (d *fullscreenDetector) Handles(k SignalKind) bool { return k == SignalFullscreen }

func (d *fullscreenDetector) Detect(sig Signal, now time.Time) Outcome {
	switch sig.State {
	case StateUnsupported:
		d.unsupported = true
		unlock := d.locked
		d.locked = false
		return Outcome{Unlock: unlock}
	case StateExit:
		out := Outcome{Event: newEvent(model.ActivityFullscreenExit, stamp("Exited fullscreen", now), now, sig.Details)}
		if !d.unsupported {
			d.locked = true
			out.Lock = true
		}
		return out
	case StateEnter:
		if d.locked {
			d.locked = false
			return Outcome{Unlock: true}
		}
	}
	return Outcome{}
}

// clipboardDetector suppresses copy, cut and paste.
type clipboardDetector struct{}

func (clipboardDetector) Handles(k SignalKind) bool { return k == SignalClipboard }

func (clipboardDetector) Detect(sig Signal, now time.Time) Outcome {
	switch sig.State {
	case StateCopy, StatePaste, StateCut:
		details := map[string]any{"action": sig.State}
		for k, v := range sig.Details {
			details[k] = v
		}
		return Outcome{
			Event:    newEvent(model.ActivityCopyPaste, stamp("Copy/paste attempt", now), now, details),
			Suppress: true,
			Counter:  CounterCopyPaste,
		}
	}
	return Outcome{}
}

// contextMenuDetector suppresses right-click.
type contextMenuDetector struct{}

func (contextMenuDetector) Handles(k SignalKind) bool { return k == SignalContextMenu }

func (contextMenuDetector) Detect(sig Signal, now time.Time) Outcome {
	return Outcome{
		Event:    newEvent(model.ActivityRightClick, stamp("Right-click attempt", now), now, sig.Details),
		Suppress: true,
	}
}

// shortcutDetector suppresses a fixed set of key combinations. Every other
// keystroke only bumps the keyboard activity counter.
type shortcutDetector struct{}

func (shortcutDetector) Handles(k SignalKind) bool { return k == SignalKeydown }

func (shortcutDetector) Detect(sig Signal, now time.Time) Outcome {
	combo, blocked := BlockedShortcut(sig)
	if !blocked {
		return Outcome{Counter: CounterKeyboard}
	}
	return Outcome{
		Event:    newEvent(model.ActivityBlockedShortcut, stamp("Blocked shortcut: "+combo, now), now, map[string]any{"key": combo}),
		Suppress: true,
	}
}

// BlockedShortcut reports whether sig is a suppressed key combination and
// returns its display name. Meta is treated as Ctrl.
func BlockedShortcut(sig Signal) (string, bool) {
	key := strings.ToLower(sig.Key)
	mod := sig.Ctrl || sig.Meta

	if key == "f12" {
		return "F12", true
	}
	if !mod {
		return "", false
	}
	if sig.Shift && (key == "i" || key == "j") {
		return "Ctrl+Shift+" + strings.ToUpper(key), true
	}
	switch key {
	case "c", "v", "a", "s", "f", "u":
		return "Ctrl+" + strings.ToUpper(key), true
	}
	return "", false
}
