// ABOUTME: Websocket connection with a bounded outbound queue and a single writer goroutine
// ABOUTME: Implements chat.Conn; a full queue closes the connection to bound backpressure

package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrConnectionClosed is returned by Send after the connection has closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrSendBufferFull is returned when a slow client falls too far behind.
	ErrSendBufferFull = errors.New("connection send buffer full")
)

// ConnectionOptions tunes a Connection's write side.
type ConnectionOptions struct {
	SendBuffer int
	WriteWait  time.Duration
	PingPeriod time.Duration
}

// Connection wraps a websocket and serializes outbound writes through a buffered
// channel. It is safe for concurrent use.
type Connection struct {
	id     string
	userID string

	ws   *websocket.Conn
	opts ConnectionOptions

	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewConnection constructs a Connection for the given user. Call Start to begin writing.
func NewConnection(userID string, ws *websocket.Conn, opts ConnectionOptions) *Connection {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 128
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 30 * time.Second
	}
	return &Connection{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		opts:   opts,
		send:   make(chan []byte, opts.SendBuffer),
		done:   make(chan struct{}),
	}
}

// ID returns the connection's unique id.
func (c *Connection) ID() string { return c.id }

// UserID returns the verified user the connection belongs to.
func (c *Connection) UserID() string { return c.userID }

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues payload for delivery without blocking. If the buffer is full
// the connection is marked closed and the socket is torn down in the background.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		// The close frame waits on the write lock, which a stalled writer holds
		c.once.Do(func() {
			close(c.done)
			go c.closeSocket(websocket.ClosePolicyViolation, "send buffer full")
		})
		return ErrSendBufferFull
	}
}

// Close sends a close frame and tears down the socket. Safe to call repeatedly.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		c.closeSocket(code, reason)
	})
}

func (c *Connection) closeSocket(code int, reason string) {
	deadline := time.Now().Add(c.opts.WriteWait)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.ws.Close()
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
