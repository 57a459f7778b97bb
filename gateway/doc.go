// Package gateway defines the client-facing message vocabulary and command
// dispatch shared by the websocket hub and the HTTP surface.
//
// Subscribers send JSON commands (originate_call, hangup_call, get_status,
// get_active_calls) and receive JSON notifications: a snapshot of live calls
// on subscribe, call_state and call_ended deltas afterwards, plus mirrored
// raw events. Command replies go to the issuing client only; state changes
// caused by a command still reach everyone through the normal event path.
//
// Commands translates originate and hangup into manager actions; status and
// active-call queries are answered from local state with no PBX round trip.
// Failures surface as a structured reply with an error_kind discriminator
// (action_timeout, action_rejected, connection_lost, invalid_request,
// internal) and a human-readable message.
package gateway
