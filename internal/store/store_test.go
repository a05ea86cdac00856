// ABOUTME: Tests for the session journal
// ABOUTME: Runs the same behaviour checks against SQLiteStore and MockStore

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// eachStore runs fn against every Store implementation.
func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, setupTestStore(t)) })
	t.Run("mock", func(t *testing.T) { fn(t, NewMockStore()) })
}

func openTestSession(t *testing.T, s Store, id, name string, at time.Time) {
	t.Helper()
	err := s.OpenSession(context.Background(), &Session{
		ID:          id,
		Name:        name,
		RemoteAddr:  "127.0.0.1:50000",
		Fingerprint: "SHA256:test",
		KeyBits:     512,
		ConnectedAt: at,
	})
	require.NoError(t, err)
}

func TestStore_SessionLifecycle(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		connected := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		openTestSession(t, s, "sess-1", "client-1", connected)

		got, err := s.GetSession(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "client-1", got.Name)
		assert.Equal(t, 512, got.KeyBits)
		assert.True(t, got.ConnectedAt.Equal(connected))
		assert.Nil(t, got.DisconnectedAt)

		require.NoError(t, s.RenameSession(ctx, "sess-1", "alice"))
		disconnected := connected.Add(time.Minute)
		require.NoError(t, s.CloseSession(ctx, "sess-1", disconnected))

		got, err = s.GetSession(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Name)
		require.NotNil(t, got.DisconnectedAt)
		assert.True(t, got.DisconnectedAt.Equal(disconnected))
	})
}

func TestStore_UnknownSession(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.GetSession(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.CloseSession(ctx, "missing", time.Now()), ErrNotFound)
		assert.ErrorIs(t, s.RenameSession(ctx, "missing", "bob"), ErrNotFound)

		err = s.AppendEvent(ctx, &Event{SessionID: "missing", AgentName: "x", Kind: EventPing})
		assert.Error(t, err)
	})
}

func TestStore_ListSessions_NewestFirst(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		openTestSession(t, s, "a", "client-1", base)
		openTestSession(t, s, "b", "client-2", base.Add(time.Second))
		openTestSession(t, s, "c", "client-3", base.Add(1500*time.Millisecond))

		sessions, err := s.ListSessions(context.Background(), 0)
		require.NoError(t, err)
		require.Len(t, sessions, 3)
		assert.Equal(t, "c", sessions[0].ID)
		assert.Equal(t, "b", sessions[1].ID)
		assert.Equal(t, "a", sessions[2].ID)

		sessions, err = s.ListSessions(context.Background(), 1)
		require.NoError(t, err)
		assert.Len(t, sessions, 1)
	})
}

func TestStore_Events(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		openTestSession(t, s, "sess-1", "client-1", time.Now())
		openTestSession(t, s, "sess-2", "client-2", time.Now())

		first := &Event{SessionID: "sess-1", AgentName: "client-1", Kind: EventOutbound, Text: "whoami"}
		require.NoError(t, s.AppendEvent(ctx, first))
		assert.NotEmpty(t, first.ID)
		assert.False(t, first.Timestamp.IsZero())

		require.NoError(t, s.AppendEvent(ctx, &Event{SessionID: "sess-1", AgentName: "client-1", Kind: EventInbound, Text: "root"}))
		require.NoError(t, s.AppendEvent(ctx, &Event{SessionID: "sess-2", AgentName: "client-2", Kind: EventPing}))

		all, err := s.ListEvents(ctx, EventFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, EventPing, all[0].Kind)
		assert.Equal(t, "root", all[1].Text)
		assert.Equal(t, "whoami", all[2].Text)

		sid := "sess-1"
		bySession, err := s.ListEvents(ctx, EventFilter{SessionID: &sid})
		require.NoError(t, err)
		assert.Len(t, bySession, 2)

		kind := EventInbound
		byKind, err := s.ListEvents(ctx, EventFilter{Kind: &kind})
		require.NoError(t, err)
		require.Len(t, byKind, 1)
		assert.Equal(t, "root", byKind[0].Text)

		limited, err := s.ListEvents(ctx, EventFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}

func TestSQLiteStore_RejectsUnknownKind(t *testing.T) {
	s := setupTestStore(t)
	openTestSession(t, s, "sess-1", "client-1", time.Now())

	err := s.AppendEvent(context.Background(), &Event{SessionID: "sess-1", AgentName: "client-1", Kind: "bogus"})
	assert.Error(t, err)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "journal.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	openTestSession(t, s, "sess-1", "client-1", time.Now())
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "client-1", got.Name)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeLimit(0))
	assert.Equal(t, 100, normalizeLimit(-5))
	assert.Equal(t, 7, normalizeLimit(7))
	assert.Equal(t, 1000, normalizeLimit(5000))
}
