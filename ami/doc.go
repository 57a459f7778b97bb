// Package ami implements the manager-socket side of the gateway: a frame
// codec for the line-oriented manager protocol and a resilient client that
// keeps one authenticated session open to the PBX.
//
// # Wire format
//
// The manager protocol exchanges frames of "Key: Value" lines terminated by
// a blank line. Outgoing frames are actions; incoming frames are either
// responses (correlated to an action by ActionID) or unsolicited events
// describing channel activity on the PBX.
//
// FrameReader reassembles frames from the TCP stream regardless of how the
// kernel chunks it: a frame split across a dozen reads and a read containing
// a dozen frames both decode identically.
//
// # Client
//
// Client owns the socket for its whole lifetime. It dials, consumes the
// protocol banner, authenticates, and then splits traffic two ways: responses
// resolve pending SendAction calls through a correlation table, and events
// flow through a drop-oldest ring buffer to the Events channel.
//
// Connection loss fails every pending action with ErrConnectionLost and
// triggers reconnection with exponential backoff (1s doubling to a 30s cap).
// Repeated authentication failures are treated as permanent and stop the
// retry loop.
//
// # Usage
//
//	client := ami.NewClient(ami.ClientDeps{
//		Name:            "pbx",
//		Config:          ami.DefaultConfig(),
//		MetricsRegistry: registry,
//		Logger:          logger,
//	})
//	if err := client.Initialize(); err != nil {
//		return err
//	}
//	if err := client.Start(ctx); err != nil {
//		return err
//	}
//	defer client.Stop(5 * time.Second)
//
//	for frame := range client.Events() {
//		// track channel state
//	}
package ami
