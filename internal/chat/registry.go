// ABOUTME: In-memory registry of which live connections follow which conversations
// ABOUTME: Joins are authorized by the guard; snapshots never see a partial join or leave

package chat

import (
	"context"
	"log/slog"
	"sync"
)

// RegistryStats summarizes registry occupancy.
type RegistryStats struct {
	Conversations int `json:"conversations"`
	Connections   int `json:"connections"`
	Memberships   int `json:"memberships"`
}

// Registry maps conversations to their joined connections. It is owned by
// whoever creates it; there is no package-level instance.
type Registry struct {
	guard  *Guard
	logger *slog.Logger

	mu     sync.RWMutex
	groups map[string]map[string]Conn     // conversationID -> connID -> conn
	joined map[string]map[string]struct{} // connID -> conversationIDs
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(guard *Guard, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		guard:  guard,
		logger: logger.With("component", "registry"),
		groups: make(map[string]map[string]Conn),
		joined: make(map[string]map[string]struct{}),
	}
}

// Join adds conn to the conversation's membership set if its user is a
// participant. Any refusal returns ErrJoinRejected without touching state.
// Joining twice is a no-op.
func (r *Registry) Join(ctx context.Context, conn Conn, conversationID string) error {
	membership, err := r.guard.CheckMembership(ctx, conn.UserID(), conversationID)
	if err != nil {
		return err
	}
	if membership != MembershipMember {
		r.logger.Debug("join rejected",
			"conversation_id", conversationID,
			"conn_id", conn.ID(),
			"user_id", conn.UserID(),
			"membership", membership.String())
		return ErrJoinRejected
	}

	r.mu.Lock()
	group, ok := r.groups[conversationID]
	if !ok {
		group = make(map[string]Conn)
		r.groups[conversationID] = group
	}
	group[conn.ID()] = conn

	convs, ok := r.joined[conn.ID()]
	if !ok {
		convs = make(map[string]struct{})
		r.joined[conn.ID()] = convs
	}
	convs[conversationID] = struct{}{}
	r.mu.Unlock()

	r.logger.Debug("connection joined",
		"conversation_id", conversationID,
		"conn_id", conn.ID(),
		"user_id", conn.UserID())
	return nil
}

// MembersOf returns a snapshot of the connections joined to conversationID.
func (r *Registry) MembersOf(conversationID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.groups[conversationID]
	members := make([]Conn, 0, len(group))
	for _, conn := range group {
		members = append(members, conn)
	}
	return members
}

// Leave removes conn from one conversation.
func (r *Registry) Leave(conn Conn, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(conn.ID(), conversationID)
}

// LeaveAll removes conn from every conversation it joined.
func (r *Registry) LeaveAll(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conversationID := range r.joined[conn.ID()] {
		r.removeLocked(conn.ID(), conversationID)
	}
}

func (r *Registry) removeLocked(connID, conversationID string) {
	if group, ok := r.groups[conversationID]; ok {
		delete(group, connID)
		if len(group) == 0 {
			delete(r.groups, conversationID)
		}
	}
	if convs, ok := r.joined[connID]; ok {
		delete(convs, conversationID)
		if len(convs) == 0 {
			delete(r.joined, connID)
		}
	}
}

// ConversationsOf lists the conversations conn has joined.
func (r *Registry) ConversationsOf(conn Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	convs := r.joined[conn.ID()]
	result := make([]string, 0, len(convs))
	for id := range convs {
		result = append(result, id)
	}
	return result
}

// Stats returns current occupancy counts.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		Conversations: len(r.groups),
		Connections:   len(r.joined),
	}
	for _, group := range r.groups {
		stats.Memberships += len(group)
	}
	return stats
}
