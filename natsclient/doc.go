// Package natsclient wraps the NATS Go client for the gateway's event
// mirror: call state changes are published onto NATS subjects so other
// platform services can consume them without holding a WebSocket
// subscription to the gateway.
//
// On top of the library's own reconnection it layers a circuit breaker,
// connection status tracking, and an optional RTT probe loop, so a dead
// broker degrades the mirror without stalling call processing.
//
// # Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("callstreams-gateway"),
//	    natsclient.WithMaxReconnects(-1),
//	    natsclient.WithReconnectWait(2*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "telephony.call.state", []byte(`{"channel":"SIP/101-0001"}`))
//
//	err = client.Subscribe(ctx, "telephony.>", func(msgCtx context.Context, data []byte) {
//	    // msgCtx carries a 30s per-message processing timeout
//	})
//
// # Circuit Breaker
//
// Connection failures accumulate; once a round reaches the threshold
// (default 5) the circuit opens and Connect fails fast with
// ErrCircuitOpen instead of hammering a broker that is down. A probe
// reopens attempts after a backoff that doubles on every tripped round,
// capped at WithMaxBackoff (default one minute). A successful connect or
// library-level reconnect resets the breaker.
//
//	if err := client.Connect(ctx); errors.Is(err, natsclient.ErrCircuitOpen) {
//	    // back off; the breaker will allow a probe attempt on its own
//	}
//
// Tuning:
//
//	natsclient.WithCircuitBreakerThreshold(10)
//	natsclient.WithMaxBackoff(30*time.Second)
//
// # Status and Health
//
// The client moves through Disconnected, Connecting, Connected,
// Reconnecting and CircuitOpen. Status returns the current state,
// GetStatus a snapshot with failure count, last failure time, reconnect
// count and RTT, and WaitForConnection blocks until healthy or the
// context expires.
//
// Callbacks report transitions as they happen; the gateway feeds these
// into its health monitor:
//
//	natsclient.WithHealthInterval(10*time.Second)
//	natsclient.WithHealthChangeCallback(func(healthy bool) { ... })
//	natsclient.WithDisconnectCallback(func(err error) { ... })
//	natsclient.WithConnectionLostCallback(func(err error) { ... })
//
// # Errors
//
// Operations against a down broker return sentinel errors callers can
// test with errors.Is: ErrNotConnected from Publish, Subscribe and RTT,
// ErrCircuitOpen from Connect while the circuit is open, and
// ErrConnectionTimeout from WaitForConnection when the context expires.
//
// # Authentication
//
// WithCredentials, WithToken and WithTLS configure broker auth.
// Credentials are cleared from memory when the client is closed.
//
// # Concurrency
//
// All methods are safe for concurrent use. Close is idempotent.
package natsclient
