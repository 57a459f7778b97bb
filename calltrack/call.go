package calltrack

import (
	"strings"
	"time"
)

// CallState is the lifecycle state of a tracked call
type CallState string

const (
	// StateInitiated means the channel exists but is not yet ringing
	StateInitiated CallState = "initiated"
	// StateRinging means the far end is being alerted
	StateRinging CallState = "ringing"
	// StateUp means the call was answered
	StateUp CallState = "up"
	// StateTerminated is terminal; the call leaves the live set after it
	StateTerminated CallState = "terminated"
)

// CallType classifies where a call entered the system
type CallType string

const (
	CallTypeIncomingGSM CallType = "incoming_gsm"
	CallTypeInternal    CallType = "internal"
	CallTypeSIPTrunk    CallType = "sip_trunk"
)

// Call is the derived state for one PBX channel. The tracker owns the live
// set; everything handed out is a copy.
type Call struct {
	Channel     string    `json:"channel"`
	UniqueID    string    `json:"unique_id,omitempty"`
	State       CallState `json:"state"`
	CallerID    string    `json:"caller_id,omitempty"`
	Extension   string    `json:"extension,omitempty"`
	CallType    CallType  `json:"call_type"`
	DestChannel string    `json:"dest_channel,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// classifyChannel derives the call type from the channel name and dialplan
// context. GSM dongle channels identify themselves by technology prefix;
// trunk traffic by naming convention or context.
func classifyChannel(channel, dialContext string) CallType {
	lower := strings.ToLower(channel)
	switch {
	case strings.HasPrefix(lower, "gsm/"),
		strings.HasPrefix(lower, "dongle/"),
		strings.HasPrefix(lower, "mobile/"),
		strings.HasPrefix(lower, "quectel/"),
		dialContext == "from-gsm":
		return CallTypeIncomingGSM
	case strings.Contains(lower, "trunk"),
		dialContext == "from-trunk",
		dialContext == "from-pstn":
		return CallTypeSIPTrunk
	default:
		return CallTypeInternal
	}
}

// mapChannelState converts a state-change event's description or numeric
// code to a lifecycle state. Unrecognized values return "" and leave the
// call state untouched.
func mapChannelState(desc, code string) CallState {
	switch strings.ToLower(desc) {
	case "ring", "ringing":
		return StateRinging
	case "up":
		return StateUp
	}
	switch code {
	case "4", "5":
		return StateRinging
	case "6":
		return StateUp
	}
	return ""
}
