// Package calltrack derives call lifecycle state from the manager event
// stream.
//
// The tracker is the single writer of the channel-to-call mapping. Events
// drive a small state machine (initiated, ringing, up, terminated): channel
// creation inserts a call, state changes advance it, hangup emits one
// terminal notification and removes it. Events referencing a channel the
// tracker has never seen synthesize a call in the initiated state instead of
// being dropped, so the externally visible feed stays complete even when
// events arrive out of order or after a restart.
//
// Listeners (the websocket hub, the NATS publisher) receive notifications in
// wire order on the tracker's consumer goroutine. Snapshot, Get, and
// ActiveCount serve concurrent readers with copies. Reset clears the live
// set after a reconnect; the PBX is re-queried for ground truth.
//
// When configured with an extension, the tracker redirects incoming GSM
// calls there as soon as their channel appears.
package calltrack
