// ABOUTME: Message router implementing authorize, validate, persist, broadcast
// ABOUTME: Serializes sends per conversation so fan-out order matches storage order

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/pairchat/internal/store"
)

// SendRequest is a message submission from an authenticated sender.
type SendRequest struct {
	SenderID       string
	ConversationID string
	Content        string
	Type           store.MessageType // wire name, parsed after authorization; empty means text
	MediaURL       *string
}

// Router accepts messages into conversations.
type Router struct {
	guard       *Guard
	registry    *Registry
	messages    store.MessageStore
	broadcaster Broadcaster
	locks       KeyedMutex
	logger      *slog.Logger
}

// NewRouter wires a router. Pass nil logger for default.
func NewRouter(guard *Guard, registry *Registry, messages store.MessageStore, broadcaster Broadcaster, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		guard:       guard,
		registry:    registry,
		messages:    messages,
		broadcaster: broadcaster,
		logger:      logger.With("component", "router"),
	}
}

// Send authorizes, validates and persists a message, then broadcasts it to the
// conversation's current members. The returned message carries the ID and
// CreatedAt assigned by the store. Once the append commits the message is
// delivered even if ctx is cancelled afterwards.
func (r *Router) Send(ctx context.Context, req SendRequest) (*store.Message, error) {
	membership, err := r.guard.CheckMembership(ctx, req.SenderID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	switch membership {
	case MembershipNotFound:
		return nil, ErrConversationNotFound
	case MembershipNotMember:
		return nil, ErrForbidden
	}

	msgType, mediaURL, err := validatePayload(req)
	if err != nil {
		return nil, err
	}

	unlock, err := r.locks.Lock(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("waiting to append: %w", err)
	}
	defer unlock()

	msg := &store.Message{
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Content:        req.Content,
		MediaURL:       mediaURL,
		Type:           msgType,
	}
	if err := r.messages.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		r.logger.Error("failed to persist message",
			"conversation_id", req.ConversationID,
			"sender_id", req.SenderID,
			"error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	payload, err := EncodeReceiveMessage(msg)
	if err != nil {
		// The message is stored; members can still fetch it from history
		r.logger.Error("failed to encode message event", "message_id", msg.ID, "error", err)
		return msg, nil
	}

	members := r.registry.MembersOf(req.ConversationID)
	report := r.broadcaster.DeliverToGroup(context.WithoutCancel(ctx), Delivery{
		ConversationID: req.ConversationID,
		MessageID:      msg.ID,
		Payload:        payload,
		Members:        members,
	})

	r.logger.Debug("message accepted",
		"conversation_id", req.ConversationID,
		"message_id", msg.ID,
		"sender_id", req.SenderID,
		"members", len(members),
		"delivered", report.Delivered,
		"failed", len(report.Failed))

	return msg, nil
}

// validatePayload enforces content-or-media and a known type.
// The type name is case-insensitive and a blank media URL counts as absent.
func validatePayload(req SendRequest) (store.MessageType, *string, error) {
	msgType, err := store.ParseMessageType(string(req.Type))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	var mediaURL *string
	if req.MediaURL != nil && strings.TrimSpace(*req.MediaURL) != "" {
		url := strings.TrimSpace(*req.MediaURL)
		mediaURL = &url
	}

	if strings.TrimSpace(req.Content) == "" && mediaURL == nil {
		return "", nil, fmt.Errorf("%w: content or media is required", ErrInvalidPayload)
	}

	return msgType, mediaURL, nil
}
