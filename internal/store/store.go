// ABOUTME: Store interfaces and data types for pairchat persistence
// ABOUTME: Defines Conversation, Message and the atomic append contract shared by all backends

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when creating a conversation whose ID is taken
var ErrDuplicateConversation = errors.New("conversation already exists")

// ErrInvalidConversation is returned when a conversation does not have two distinct participants
var ErrInvalidConversation = errors.New("conversation requires two distinct participants")

// ErrInvalidMessageType is returned by ParseMessageType for unknown type names
var ErrInvalidMessageType = errors.New("unknown message type")

// MessageType enumerates the kinds of message content
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeImage
}

// ParseMessageType maps a wire name onto a MessageType.
// The empty string means text. Matching is case-insensitive.
func ParseMessageType(s string) (MessageType, error) {
	t := MessageType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return MessageTypeText, nil
	}
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMessageType, s)
	}
	return t, nil
}

// Conversation is a two-participant chat channel.
// The participant pair never changes after creation.
type Conversation struct {
	ID            string
	ParticipantA  string
	ParticipantB  string
	CreatedAt     time.Time
	LastMessageAt *time.Time // nil until the first message is appended
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	if c == nil || userID == "" {
		return false
	}
	return userID == c.ParticipantA || userID == c.ParticipantB
}

// Validate checks the conversation identity and participant invariants.
func (c *Conversation) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConversation)
	}
	if c.ParticipantA == "" || c.ParticipantB == "" {
		return fmt.Errorf("%w: both participants are required", ErrInvalidConversation)
	}
	if c.ParticipantA == c.ParticipantB {
		return ErrInvalidConversation
	}
	return nil
}

// Message is an immutable entry in a conversation's history.
// ID and CreatedAt are assigned by the store when the message is appended.
type Message struct {
	ID             int64
	ConversationID string
	SenderID       string
	Content        string
	MediaURL       *string
	Type           MessageType
	CreatedAt      time.Time
}

// ConversationStore is the durable record of conversations.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// UpdateLastMessageAt advances the conversation's activity timestamp.
	// Timestamps older than the stored value are ignored.
	UpdateLastMessageAt(ctx context.Context, id string, ts time.Time) error
}

// MessageStore is the durable, append-only record of messages.
type MessageStore interface {
	// AppendMessage assigns msg.ID and msg.CreatedAt, inserts the message and
	// advances the conversation's LastMessageAt in a single transaction.
	// IDs strictly increase and CreatedAt never decreases within a conversation.
	// Returns ErrNotFound if the conversation does not exist.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns messages with ID greater than afterID in ascending
	// order. A limit of 0 or less returns every remaining message.
	ListMessages(ctx context.Context, conversationID string, afterID int64, limit int) ([]*Message, error)
}

// Store combines the conversation and message stores behind one handle
type Store interface {
	ConversationStore
	MessageStore

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}

// nextCreatedAt returns the timestamp for a new message: now, unless the
// conversation already holds a later message, in which case that time is reused
// so CreatedAt stays non-decreasing under clock skew.
func nextCreatedAt(now time.Time, last *time.Time) time.Time {
	if last != nil && last.After(now) {
		return *last
	}
	return now
}
