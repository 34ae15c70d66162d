package websocket

import (
	"github.com/SwiftTim/hub2/internal/model"
	"github.com/SwiftTim/hub2/internal/proctor"
	"github.com/SwiftTim/hub2/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionActivity Action = "activity"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload is the single inbound message shape; fields are used per action.
type RequestPayload struct {
	Action Action          `json:"action"`
	QID    string          `json:"q_id,omitempty"`
	Answer string          `json:"ans,omitempty"`
	Signal *proctor.Signal `json:"signal,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventSaved     Event = "saved"
	EventDirective Event = "directive"
	EventSubmitted Event = "submitted"
	EventRedirect  Event = "redirect"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse is sent once after the session starts.
type StateResponse struct {
	Event    Event                `json:"event"`
	View     model.AssessmentView `json:"view"`
	Snapshot session.Snapshot     `json:"snapshot"`
}

type TickResponse struct {
	Event       Event `json:"event"`
	RemainingMs int64 `json:"remaining_ms"`
}

// SavedResponse reports auto-save progress.
type SavedResponse struct {
	Event  Event              `json:"event"`
	Status session.SaveStatus `json:"status"`
	Error  string             `json:"error,omitempty"`
}

// DirectiveResponse tells the client how to enforce the restricted
// environment after a signal.
type DirectiveResponse struct {
	Event        Event              `json:"event"`
	Suppress     bool               `json:"suppress"`
	Lock         bool               `json:"lock"`
	Unlock       bool               `json:"unlock"`
	ActivityType model.ActivityType `json:"activity_type,omitempty"`
	RiskLevel    model.RiskLevel    `json:"risk_level,omitempty"`
	Description  string             `json:"description,omitempty"`
}

type SubmittedResponse struct {
	Event  Event          `json:"event"`
	Result session.Result `json:"result"`
}

// RedirectResponse asks the client to leave the session. The connection is
// closed afterwards.
type RedirectResponse struct {
	Event  Event  `json:"event"`
	Reason string `json:"reason"`
	To     string `json:"to"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// Redirect reasons.
const (
	ReasonWindowClosed     = "window_closed"
	ReasonNotEnrolled      = "not_enrolled"
	ReasonAlreadySubmitted = "already_submitted"
	ReasonNotFound         = "not_found"
	ReasonSubmitted        = "submitted"
)
