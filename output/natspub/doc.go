// Package natspub publishes call tracker notifications to NATS so systems
// outside the gateway can consume telephony events without holding a
// WebSocket subscription.
//
// # Subjects
//
// Notifications map to subjects under a configurable prefix (default
// "telephony"):
//
//	call_state  → telephony.call.state
//	call_ended  → telephony.call.ended
//	ami_event   → telephony.ami.event.<event name, lowercased>
//
// Call notifications carry a flat JSON payload with the channel, state,
// caller id and call type. Raw event notifications carry the flattened
// event fields.
//
// # Delivery Semantics
//
// The publisher is a best-effort mirror. Notify enqueues into a bounded
// circular queue and never blocks the tracker; a single consumer goroutine
// publishes with bounded retries. Notifications are dropped when the queue
// overflows (oldest first) or when retries are exhausted, and both cases
// are counted in metrics. Consumers that need durable delivery should
// subscribe through a durable transport instead.
//
// # Usage
//
//	pub, err := natspub.NewPublisher(natspub.PublisherDeps{
//	    Name:   "nats-publisher",
//	    Config: natspub.DefaultConfig(),
//	    Client: natsClient,
//	})
//	if err != nil {
//	    return err
//	}
//	tracker.AddListener(pub.Notify)
//	pub.Start(ctx)
package natspub
