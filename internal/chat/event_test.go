// ABOUTME: Tests for the ReceiveMessage wire event
// ABOUTME: Pins the field names, version and timestamp format

package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pairchat/internal/store"
)

func TestEncodeReceiveMessage_Shape(t *testing.T) {
	created := time.Date(2026, 2, 3, 4, 5, 6, 789000000, time.FixedZone("EST", -5*3600))
	payload, err := EncodeReceiveMessage(&store.Message{
		ID:             42,
		ConversationID: "conv-1",
		SenderID:       "u1",
		Content:        "hey",
		Type:           store.MessageTypeText,
		CreatedAt:      created,
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, "ReceiveMessage", raw["type"])
	assert.Equal(t, float64(1), raw["version"])

	msg, ok := raw["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(42), msg["id"])
	assert.Equal(t, "conv-1", msg["conversationId"])
	assert.Equal(t, "u1", msg["senderId"])
	assert.Equal(t, "hey", msg["content"])
	assert.Equal(t, "text", msg["messageType"])
	assert.Equal(t, "2026-02-03T09:05:06.789Z", msg["createdAt"])

	mediaURL, present := msg["mediaUrl"]
	assert.True(t, present, "mediaUrl must always be present")
	assert.Nil(t, mediaURL)
}

func TestEncodeReceiveMessage_WithMedia(t *testing.T) {
	payload, err := EncodeReceiveMessage(&store.Message{
		ID:             7,
		ConversationID: "conv-1",
		SenderID:       "u2",
		MediaURL:       strPtr("https://cdn.example.com/a.png"),
		Type:           store.MessageTypeImage,
		CreatedAt:      time.Now(),
	})
	require.NoError(t, err)

	var ev ReceiveMessageEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, EventReceiveMessage, ev.Type)
	assert.Equal(t, EventVersion, ev.Version)
	assert.Equal(t, "image", ev.Message.MessageType)
	require.NotNil(t, ev.Message.MediaURL)
	assert.Equal(t, "https://cdn.example.com/a.png", *ev.Message.MediaURL)
	assert.Empty(t, ev.Message.Content)
}
