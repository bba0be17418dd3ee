// ABOUTME: Boundary between the transport layer and the messaging core
// ABOUTME: Translates connection lifecycle and requests into registry and router calls

package chat

import (
	"context"
	"log/slog"

	"github.com/2389/pairchat/internal/store"
)

// SendInput is a send request as it arrives from a connection.
type SendInput struct {
	ConversationID string
	Content        string
	Type           string // wire name, case-insensitive; empty means text
	MediaURL       *string
}

// Hub is what a transport drives. Callers must invoke OnDisconnect only after
// the connection's last OnJoin has returned, so a closed connection is never
// left in a membership set.
type Hub struct {
	registry *Registry
	router   *Router
	logger   *slog.Logger
}

// NewHub creates a hub over an existing registry and router.
func NewHub(registry *Registry, router *Router, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry: registry,
		router:   router,
		logger:   logger.With("component", "hub"),
	}
}

// New wires a guard, registry, router and hub over a single store.
func New(s store.Store, broadcaster Broadcaster, logger *slog.Logger) *Hub {
	guard := NewGuard(s)
	registry := NewRegistry(guard, logger)
	router := NewRouter(guard, registry, s, broadcaster, logger)
	return NewHub(registry, router, logger)
}

// Registry exposes the hub's membership registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// OnConnect is called once the transport has a verified identity for conn.
func (h *Hub) OnConnect(conn Conn) {
	h.logger.Debug("connection opened", "conn_id", conn.ID(), "user_id", conn.UserID())
}

// OnJoin subscribes conn to a conversation. Returns ErrJoinRejected when the
// user may not view it.
func (h *Hub) OnJoin(ctx context.Context, conn Conn, conversationID string) error {
	return h.registry.Join(ctx, conn, conversationID)
}

// OnLeave unsubscribes conn from a conversation.
func (h *Hub) OnLeave(conn Conn, conversationID string) {
	h.registry.Leave(conn, conversationID)
}

// OnSend submits a message as conn's user.
func (h *Hub) OnSend(ctx context.Context, conn Conn, in SendInput) (*store.Message, error) {
	return h.router.Send(ctx, SendRequest{
		SenderID:       conn.UserID(),
		ConversationID: in.ConversationID,
		Content:        in.Content,
		Type:           store.MessageType(in.Type),
		MediaURL:       in.MediaURL,
	})
}

// OnDisconnect drops conn from every conversation.
func (h *Hub) OnDisconnect(conn Conn) {
	h.registry.LeaveAll(conn)
	h.logger.Debug("connection closed", "conn_id", conn.ID(), "user_id", conn.UserID())
}
