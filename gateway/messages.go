package gateway

import (
	stderrors "errors"
	"time"

	"github.com/c360/callstreams/calltrack"
	"github.com/c360/callstreams/errors"
)

// Command types accepted from subscribers
const (
	CommandOriginate      = "originate_call"
	CommandHangup         = "hangup_call"
	CommandGetStatus      = "get_status"
	CommandGetActiveCalls = "get_active_calls"
)

// Command is a client-issued request, one JSON object per message
type Command struct {
	Type       string `json:"type"`
	ToNumber   string `json:"to_number,omitempty"`
	FromNumber string `json:"from_number,omitempty"`
	Channel    string `json:"channel,omitempty"`
}

// Reply is returned to the issuing client only, never broadcast
type Reply struct {
	Type        string `json:"type"`
	RequestType string `json:"request_type"`
	OK          bool   `json:"ok"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Message     string `json:"message,omitempty"`
	Data        any    `json:"data,omitempty"`
}

// Snapshot is sent once to every new subscriber so late joiners see the
// current live call set, not just future deltas
type Snapshot struct {
	Type      string           `json:"type"`
	Calls     []calltrack.Call `json:"calls"`
	Timestamp time.Time        `json:"timestamp"`
}

// Status summarizes gateway state for subscribers and the HTTP surface
type Status struct {
	Type        string    `json:"type,omitempty"`
	Connected   bool      `json:"connected"`
	ManagerAddr string    `json:"manager_addr"`
	ActiveCalls int       `json:"active_calls"`
	Subscribers int       `json:"subscribers"`
	Timestamp   time.Time `json:"timestamp"`
}

// Error kinds surfaced in command replies
const (
	ErrorKindTimeout        = "action_timeout"
	ErrorKindRejected       = "action_rejected"
	ErrorKindConnectionLost = "connection_lost"
	ErrorKindNoConnection   = "no_connection"
	ErrorKindInvalidRequest = "invalid_request"
	ErrorKindInternal       = "internal"
)

// ErrorKind maps an error to the wire-level discriminator clients switch on
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, errors.ErrActionTimeout):
		return ErrorKindTimeout
	case stderrors.Is(err, errors.ErrActionRejected):
		return ErrorKindRejected
	case stderrors.Is(err, errors.ErrConnectionLost):
		return ErrorKindConnectionLost
	case stderrors.Is(err, errors.ErrNoConnection):
		return ErrorKindNoConnection
	case errors.IsInvalid(err):
		return ErrorKindInvalidRequest
	default:
		return ErrorKindInternal
	}
}

// okReply builds a success reply for a command
func okReply(requestType string, data any) Reply {
	return Reply{Type: "reply", RequestType: requestType, OK: true, Data: data}
}

// errReply builds a failure reply carrying the error kind and message
func errReply(requestType string, err error) Reply {
	return Reply{
		Type:        "reply",
		RequestType: requestType,
		OK:          false,
		ErrorKind:   ErrorKind(err),
		Message:     err.Error(),
	}
}
