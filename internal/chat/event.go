// ABOUTME: Versioned wire representation of a delivered message
// ABOUTME: The ReceiveMessage event is the only payload broadcast to conversation members

package chat

import (
	"encoding/json"
	"time"

	"github.com/2389/pairchat/internal/store"
)

const (
	// EventReceiveMessage is the event type broadcast for every accepted message.
	EventReceiveMessage = "ReceiveMessage"

	// EventVersion is bumped on any incompatible change to MessageView.
	EventVersion = 1
)

// MessageView is the public representation of a persisted message.
// MediaURL is always present and is null when the message has no media.
type MessageView struct {
	ID             int64   `json:"id"`
	ConversationID string  `json:"conversationId"`
	SenderID       string  `json:"senderId"`
	Content        string  `json:"content"`
	MediaURL       *string `json:"mediaUrl"`
	MessageType    string  `json:"messageType"`
	CreatedAt      string  `json:"createdAt"`
}

// ReceiveMessageEvent wraps a MessageView with its event type and schema version.
type ReceiveMessageEvent struct {
	Type    string      `json:"type"`
	Version int         `json:"version"`
	Message MessageView `json:"message"`
}

// NewMessageView builds the public representation of msg.
func NewMessageView(msg *store.Message) MessageView {
	return MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		MediaURL:       msg.MediaURL,
		MessageType:    string(msg.Type),
		CreatedAt:      msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// EncodeReceiveMessage serializes the ReceiveMessage event for msg.
func EncodeReceiveMessage(msg *store.Message) ([]byte, error) {
	return json.Marshal(ReceiveMessageEvent{
		Type:    EventReceiveMessage,
		Version: EventVersion,
		Message: NewMessageView(msg),
	})
}
