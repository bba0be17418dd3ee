// ABOUTME: Authorization guard deciding whether a user belongs to a conversation
// ABOUTME: The single membership check shared by join and send

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/pairchat/internal/store"
)

// Membership is the outcome of a membership check.
type Membership int

const (
	// MembershipNotMember is the zero value so an unset result denies access.
	MembershipNotMember Membership = iota
	MembershipMember
	MembershipNotFound
)

func (m Membership) String() string {
	switch m {
	case MembershipMember:
		return "member"
	case MembershipNotFound:
		return "not_found"
	default:
		return "not_member"
	}
}

// Guard checks callers against a conversation's fixed participant pair.
type Guard struct {
	conversations store.ConversationStore
}

// NewGuard creates a guard backed by the given conversation store.
func NewGuard(conversations store.ConversationStore) *Guard {
	return &Guard{conversations: conversations}
}

// CheckMembership reports whether callerID is a participant of conversationID.
// Store failures are returned wrapped in ErrPersistence.
func (g *Guard) CheckMembership(ctx context.Context, callerID, conversationID string) (Membership, error) {
	conv, err := g.conversations.GetConversation(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return MembershipNotFound, nil
	}
	if err != nil {
		return MembershipNotMember, fmt.Errorf("%w: looking up conversation: %w", ErrPersistence, err)
	}

	if conv.HasParticipant(callerID) {
		return MembershipMember, nil
	}
	return MembershipNotMember, nil
}
