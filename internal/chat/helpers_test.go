// ABOUTME: Shared test doubles for the chat package
// ABOUTME: Recording connections and a seeded in-memory store

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/2389/pairchat/internal/store"
)

var errConnClosed = errors.New("connection closed")

// testConn records every payload it is sent.
type testConn struct {
	id     string
	userID string

	mu       sync.Mutex
	payloads [][]byte
	closed   bool
}

func newTestConn(id, userID string) *testConn {
	return &testConn{id: id, userID: userID}
}

func (c *testConn) ID() string     { return c.id }
func (c *testConn) UserID() string { return c.userID }

func (c *testConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *testConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// events decodes every received payload.
func (c *testConn) events(t *testing.T) []ReceiveMessageEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	events := make([]ReceiveMessageEvent, 0, len(c.payloads))
	for _, p := range c.payloads {
		var ev ReceiveMessageEvent
		require.NoError(t, json.Unmarshal(p, &ev))
		events = append(events, ev)
	}
	return events
}

// newTestHub returns a hub over a MockStore seeded with conversation "conv-1"
// between u1 and u2.
func newTestHub(t *testing.T) (*Hub, *store.MockStore) {
	t.Helper()
	s := store.NewMockStore()
	require.NoError(t, s.CreateConversation(context.Background(), &store.Conversation{
		ID:           "conv-1",
		ParticipantA: "u1",
		ParticipantB: "u2",
	}))
	return New(s, NewFanOut(nil), nil), s
}

func strPtr(s string) *string {
	return &s
}

func newConversation(id, a, b string) *store.Conversation {
	return &store.Conversation{ID: id, ParticipantA: a, ParticipantB: b}
}
