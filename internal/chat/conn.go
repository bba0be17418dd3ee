// ABOUTME: Connection abstraction the messaging core uses to address live sessions
// ABOUTME: Implemented by the websocket transport and by test doubles

package chat

// Conn is a live transport session owned by an authenticated user.
// A user may hold several Conns at once (tabs, devices).
type Conn interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() string

	// UserID is the verified identity the connection was opened with.
	UserID() string

	// Send queues an encoded event for delivery. It must not block on the
	// network; implementations buffer and return an error when the session
	// is closed or cannot keep up.
	Send(payload []byte) error
}
