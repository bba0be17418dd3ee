// ABOUTME: JSON frames exchanged with websocket clients
// ABOUTME: Inbound join/leave/send requests and the acks and errors sent back

package realtime

import (
	"encoding/json"

	"github.com/2389/pairchat/internal/chat"
)

// Inbound frame types.
const (
	FrameJoin  = "join"
	FrameLeave = "leave"
	FrameSend  = "send"
)

// Outbound frame types. Message events use chat.EventReceiveMessage.
const (
	FrameConnected    = "connected"
	FrameJoined       = "joined"
	FrameJoinRejected = "join_rejected"
	FrameLeft         = "left"
	FrameSent         = "sent"
	FrameError        = "error"
)

// Transport-level error codes. Core failures use the chat.Code* values.
const (
	CodeBadRequest      = "bad_request"
	CodeUnsupportedType = "unsupported_type"
)

// inboundFrame is any request from a client. RequestID is echoed in replies.
type inboundFrame struct {
	Type           string  `json:"type"`
	RequestID      string  `json:"requestId,omitempty"`
	ConversationID string  `json:"conversationId,omitempty"`
	Content        string  `json:"content,omitempty"`
	MessageType    string  `json:"messageType,omitempty"`
	MediaURL       *string `json:"mediaUrl,omitempty"`
}

type connectedFrame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
}

type ackFrame struct {
	Type           string `json:"type"`
	RequestID      string `json:"requestId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

type sentFrame struct {
	Type      string           `json:"type"`
	RequestID string           `json:"requestId,omitempty"`
	Message   chat.MessageView `json:"message"`
}

type errorFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Code      string `json:"code"`
	Error     string `json:"error"`
}

// errorMessages are the client-facing texts per code. Internal detail stays in logs.
var errorMessages = map[string]string{
	chat.CodeConversationNotFound: "conversation not found",
	chat.CodeForbidden:            "not a participant of this conversation",
	chat.CodeInvalidPayload:       "message needs content or media and a known type",
	chat.CodePersistence:          "message could not be saved",
	chat.CodeTimeout:              "request timed out",
	chat.CodeInternal:             "internal error",
}

func encodeFrame(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		// Frames are plain structs of strings; this cannot fail
		panic(err)
	}
	return payload
}
