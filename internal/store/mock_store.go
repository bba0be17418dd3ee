// ABOUTME: Mock Store implementation for testing
// ABOUTME: In-memory conversations and messages with injectable append/lookup failures

package store

import (
	"context"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by conversation ID
	messages      map[string][]*Message    // keyed by conversation ID
	nextID        int64

	// appendErr, when set, is returned by AppendMessage without storing anything
	appendErr error
	// getErr, when set, is returned by GetConversation
	getErr error

	now func() time.Time
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
		now:           time.Now,
	}
}

// FailAppends makes every following AppendMessage return err. Pass nil to clear.
func (m *MockStore) FailAppends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

// FailLookups makes every following GetConversation return err. Pass nil to clear.
func (m *MockStore) FailLookups(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// SetClock replaces the time source used for CreatedAt assignment.
func (m *MockStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conv.ID]; exists {
		return ErrDuplicateConversation
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = m.now().UTC()
	}

	c := *conv
	m.conversations[c.ID] = &c
	return nil
}

// GetConversation retrieves a copy of a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(c), nil
}

// UpdateLastMessageAt advances last_message_at; older timestamps are ignored.
func (m *MockStore) UpdateLastMessageAt(ctx context.Context, id string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advanceLocked(id, ts)
}

func (m *MockStore) advanceLocked(id string, ts time.Time) error {
	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	ts = ts.UTC()
	if c.LastMessageAt == nil || c.LastMessageAt.Before(ts) {
		c.LastMessageAt = &ts
	}
	return nil
}

// AppendMessage assigns an ID and CreatedAt, stores the message and advances
// the conversation's LastMessageAt under a single lock.
func (m *MockStore) AppendMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appendErr != nil {
		return m.appendErr
	}

	c, ok := m.conversations[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}

	m.nextID++
	msg.ID = m.nextID
	msg.CreatedAt = nextCreatedAt(m.now().UTC(), c.LastMessageAt)

	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], copyMessage(msg))

	return m.advanceLocked(msg.ConversationID, msg.CreatedAt)
}

// ListMessages returns copies of messages after afterID in ascending order.
func (m *MockStore) ListMessages(ctx context.Context, conversationID string, afterID int64, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Message
	for _, msg := range m.messages[conversationID] {
		if msg.ID <= afterID {
			continue
		}
		result = append(result, copyMessage(msg))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// MessageCount returns how many messages a conversation holds.
func (m *MockStore) MessageCount(conversationID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[conversationID])
}

// Ping always succeeds.
func (m *MockStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

func copyMessage(msg *Message) *Message {
	result := *msg
	if msg.MediaURL != nil {
		url := *msg.MediaURL
		result.MediaURL = &url
	}
	return &result
}

func copyConversation(c *Conversation) *Conversation {
	result := *c
	if c.LastMessageAt != nil {
		last := *c.LastMessageAt
		result.LastMessageAt = &last
	}
	return &result
}

// Compile-time interface checks
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
