// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session // keyed by session ID
	order    []string            // session IDs in insertion order
	events   []*Event            // append order
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
	}
}

// OpenSession stores a new session.
func (m *MockStore) OpenSession(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sess.ID]; exists {
		return fmt.Errorf("inserting session: duplicate id %s", sess.ID)
	}
	if sess.ConnectedAt.IsZero() {
		sess.ConnectedAt = time.Now().UTC()
	}

	// Make a copy to avoid external modification
	s := *sess
	m.sessions[s.ID] = &s
	m.order = append(m.order, s.ID)
	return nil
}

// CloseSession stamps the disconnect time.
func (m *MockStore) CloseSession(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	s.DisconnectedAt = &at
	return nil
}

// RenameSession updates the latest name.
func (m *MockStore) RenameSession(ctx context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Name = name
	return nil
}

// GetSession retrieves a session by ID.
func (m *MockStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// ListSessions returns sessions newest first.
func (m *MockStore) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = normalizeLimit(limit)
	var out []*Session
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.sessions[m.order[i]]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConnectedAt.After(out[j].ConnectedAt)
	})
	return out, nil
}

// AppendEvent appends an event. The session must exist.
func (m *MockStore) AppendEvent(ctx context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[e.SessionID]; !ok {
		return fmt.Errorf("inserting event: %w", ErrNotFound)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

// ListEvents returns matching events newest first.
func (m *MockStore) ListEvents(ctx context.Context, f EventFilter) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := normalizeLimit(f.Limit)
	var out []*Event
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.events[i]
		if f.SessionID != nil && e.SessionID != *f.SessionID {
			continue
		}
		if f.Kind != nil && e.Kind != *f.Kind {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Compile-time interface checks
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MockStore)(nil)
)
