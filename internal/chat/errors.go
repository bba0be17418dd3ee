// ABOUTME: Error taxonomy for join and send failures in the messaging core
// ABOUTME: Maps each failure onto the stable code reported to the calling connection

package chat

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConversationNotFound means the conversation id is unknown.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrForbidden means the caller is not one of the conversation's participants.
	ErrForbidden = errors.New("not a participant of this conversation")

	// ErrInvalidPayload means the message has neither content nor media, or an unknown type.
	ErrInvalidPayload = errors.New("invalid message payload")

	// ErrPersistence means the durable store failed to record the message.
	ErrPersistence = errors.New("failed to persist message")

	// ErrJoinRejected is returned for any refused join. It deliberately carries
	// no detail about whether the conversation exists.
	ErrJoinRejected = errors.New("join rejected")
)

// Error codes sent to clients in error frames.
const (
	CodeConversationNotFound = "conversation_not_found"
	CodeForbidden            = "forbidden"
	CodeInvalidPayload       = "invalid_payload"
	CodePersistence          = "persistence_error"
	CodeJoinRejected         = "join_rejected"
	CodeTimeout              = "timeout"
	CodeInternal             = "internal_error"
)

// TransportError records a failed delivery to one connection during fan-out.
// It never fails the send that produced it.
type TransportError struct {
	ConnID string
	UserID string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("deliver to connection %s (user %s): %v", e.ConnID, e.UserID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the client-facing code for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrConversationNotFound):
		return CodeConversationNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrInvalidPayload):
		return CodeInvalidPayload
	case errors.Is(err, ErrPersistence):
		return CodePersistence
	case errors.Is(err, ErrJoinRejected):
		return CodeJoinRejected
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeTimeout
	default:
		return CodeInternal
	}
}
