// Package chat implements the real-time messaging core: who may follow a
// conversation, and how an accepted message is stored and fanned out.
//
// # Components
//
//   - Guard: the one membership check used by both join and send
//   - Registry: conversation -> live connections, mutated by join/leave
//   - Router: authorize, validate, persist, then broadcast
//   - Broadcaster: delivers an encoded event to a membership snapshot
//   - Hub: the entry points a transport calls on connection events
//
// # Ordering
//
// The Router holds a per-conversation lock from the store append until the
// fan-out has queued the event on every member. Each connection therefore
// receives a conversation's messages in storage order. Different connections
// may still observe them at different times.
//
// # Failures
//
// Send failures are returned to the caller only. Delivery failures to single
// connections are reported as *TransportError and logged; the transport is
// expected to close such connections, which removes them via OnDisconnect.
package chat
