package ami

// Kind partitions incoming frames by how the client must route them.
type Kind int

const (
	// KindUnknown covers frames with neither a Response nor an Event field.
	// They are counted and logged, never dispatched.
	KindUnknown Kind = iota
	// KindResponse is a reply to a previously sent action.
	KindResponse
	// KindEvent is an unsolicited notification from the PBX.
	KindEvent
)

// String returns a string representation of the frame kind.
func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Classify determines how a frame must be routed. A Response field wins over
// an Event field when both are present (list responses carry both).
func Classify(f *Frame) Kind {
	if f == nil || f.Len() == 0 {
		return KindUnknown
	}
	if f.Has("Response") {
		return KindResponse
	}
	if f.Has("Event") {
		return KindEvent
	}
	return KindUnknown
}
