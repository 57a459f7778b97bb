// Package callstreams bridges a PBX manager interface to WebSocket
// subscribers.
//
// # Overview
//
// CallStreams maintains one persistent TCP connection to a PBX manager
// interface, tracks the life of every channel it hears about, and fans
// live call state out to WebSocket clients. Clients can also issue
// commands (originate, hangup, status queries) that the gateway relays
// to the PBX. Optionally every notification is mirrored onto NATS
// subjects for other systems to consume.
//
// # Architecture
//
//	┌──────────────────────────────────────┐
//	│           PBX (manager TCP)          │  Login, actions, events
//	└──────────────────┬───────────────────┘
//	                   │ CRLF-framed protocol
//	┌──────────────────▼───────────────────┐
//	│            ami.Client                │  Frame reassembly, action
//	│  (reconnect, ActionID correlation)   │  correlation, event stream
//	└──────────────────┬───────────────────┘
//	                   │ event frames
//	┌──────────────────▼───────────────────┐
//	│         calltrack.Tracker            │  Channel to call mapping,
//	│   (state machine, notifications)     │  lifecycle notifications
//	└──────┬─────────────────────┬─────────┘
//	       │                     │
//	┌──────▼─────────┐   ┌───────▼────────┐
//	│ websocket.Hub  │   │ natspub        │  Fan-out to subscribers,
//	│ (subscribers,  │   │ (NATS mirror)  │  best-effort NATS publish
//	│  commands)     │   └────────────────┘
//	└────────────────┘
//
// # Packages
//
//   - ami: manager connection, wire framing, frame classification, actions
//   - calltrack: call state tracking from the event stream
//   - gateway: shared command/reply/status types and command dispatch
//   - gateway/websocket: subscriber hub with snapshot-on-subscribe
//   - gateway/http: client-facing HTTP server (/ws/calls, /status,
//     /calls/active, /healthz)
//   - output/natspub: optional NATS notification mirror
//   - natsclient: NATS connection management with circuit breaker
//   - service: composition root and lifecycle
//   - config: layered JSON configuration with env overrides
//   - component, errors, health, metric: shared infrastructure
//   - pkg/buffer, pkg/retry, pkg/security, pkg/tlsutil: utilities
//
// # Running
//
// Build and run the gateway:
//
//	go build -o bin/callstreams ./cmd/callstreams
//	./bin/callstreams --config configs/gateway.json
//
// With no config file, built-in defaults plus CALLSTREAMS_* environment
// overrides apply.
package callstreams
