// Package websocket fans call notifications out to connected subscribers
// and carries their commands back in.
//
// The hub owns the subscriber set. On connect a subscriber immediately
// receives a snapshot of the live call set (and a status message when a
// status source is wired), then every call_state, call_ended, and ami_event
// notification in wire order. A failed write evicts only that subscriber;
// delivery to the rest is unaffected and the broadcaster's caller never
// sees the failure.
//
// Inbound messages are JSON commands dispatched through the gateway command
// handler; the reply goes back to the issuing subscriber only. Per-subscriber
// write locks keep broadcast and reply messages from interleaving, and a
// ping loop prunes connections that stop answering.
package websocket
