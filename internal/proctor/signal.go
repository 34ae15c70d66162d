// Package proctor classifies raw environment signals from a student's client
// into suspicious-activity events and enforcement directives.
package proctor

import "time"

// SignalKind identifies the environment source of a Signal.
type SignalKind string

const (
	SignalVisibility  SignalKind = "visibility" // State: hidden | visible
	SignalFullscreen  SignalKind = "fullscreen" // State: enter | exit | unsupported
	SignalClipboard   SignalKind = "clipboard"  // State: copy | paste | cut | unsupported
	SignalContextMenu SignalKind = "context_menu"
	SignalKeydown     SignalKind = "keydown"
	SignalAppState    SignalKind = "app_state"  // State: background | active
	SignalNavigation  SignalKind = "navigation" // State: back
)

// Signal states.
const (
	StateHidden      = "hidden"
	StateVisible     = "visible"
	StateEnter       = "enter"
	StateExit        = "exit"
	StateUnsupported = "unsupported"
	StateCopy        = "copy"
	StatePaste       = "paste"
	StateCut         = "cut"
	StateBackground  = "background"
	StateActive      = "active"
	StateBack        = "back"
)

// Signal is one raw observation forwarded by the client.
type Signal struct {
	Kind    SignalKind     `json:"kind" binding:"required,oneof=visibility fullscreen clipboard context_menu keydown app_state navigation"`
	State   string         `json:"state,omitempty"`
	Key     string         `json:"key,omitempty"`
	Ctrl    bool           `json:"ctrl,omitempty"`
	Shift   bool           `json:"shift,omitempty"`
	Meta    bool           `json:"meta,omitempty"`
	Alt     bool           `json:"alt,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Counter names the attempt counter an outcome increments.
type Counter int

const (
	CounterNone Counter = iota
	CounterTabSwitches
	CounterCopyPaste
	CounterKeyboard
)

func stamp(prefix string, at time.Time) string {
	return prefix + " at " + at.Format("15:04:05")
}
