package component

import (
	"context"
	"time"
)

// State is a component's position in its lifecycle. The service layer
// records transitions through these states as it drives components up
// and down.
type State int

const (
	StateCreated State = iota
	StateInitialized
	StateStarted
	StateStopped
	// StateFailed marks a component whose Initialize, Start or Stop
	// returned an error
	StateFailed
)

func (cs State) String() string {
	switch cs {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LifecycleComponent is what the service layer starts and stops. The
// split is deliberate: Initialize allocates and wires without a context,
// Start receives the run context, Stop gets a timeout for graceful
// shutdown. A component never stores the context it receives; the
// service layer owns it and cancels it to coordinate shutdown.
type LifecycleComponent interface {
	Discoverable
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}
