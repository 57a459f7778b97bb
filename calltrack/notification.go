package calltrack

import "time"

// Notification types emitted by the tracker
const (
	// NotifyCallState announces a call creation or state transition
	NotifyCallState = "call_state"
	// NotifyCallEnded is the single terminal notification per call
	NotifyCallEnded = "call_ended"
	// NotifyAMIEvent mirrors every processed event for observability
	NotifyAMIEvent = "ami_event"
)

// Notification is the unit delivered to listeners (the websocket hub, the
// NATS publisher). Call notifications carry a copy of the call; raw event
// notifications carry the flattened event fields.
type Notification struct {
	Type      string            `json:"type"`
	Call      *Call             `json:"call,omitempty"`
	Event     map[string]string `json:"event,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Listener receives notifications in wire order. Listeners run on the
// tracker's consumer goroutine and must not block.
type Listener func(Notification)
