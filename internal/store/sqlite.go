// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides session and event persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id      TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			remote_addr     TEXT NOT NULL,
			fingerprint     TEXT NOT NULL,
			key_bits        INTEGER NOT NULL,
			connected_at    TEXT NOT NULL,
			disconnected_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_connected ON sessions(connected_at DESC);

		CREATE TABLE IF NOT EXISTS events (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id   TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			kind       TEXT NOT NULL,
			text       TEXT NOT NULL DEFAULT '',
			ts         TEXT NOT NULL,

			FOREIGN KEY (session_id) REFERENCES sessions(session_id),
			CHECK (kind IN ('renamed', 'outbound', 'inbound', 'ping', 'pong', 'rekey'))
		);

		CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// OpenSession inserts a new session row.
func (s *SQLiteStore) OpenSession(ctx context.Context, sess *Session) error {
	if sess.ConnectedAt.IsZero() {
		sess.ConnectedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sessions (session_id, name, remote_addr, fingerprint, key_bits, connected_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.Name,
		sess.RemoteAddr,
		sess.Fingerprint,
		sess.KeyBits,
		formatTime(sess.ConnectedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("opened session", "session_id", sess.ID, "name", sess.Name)
	return nil
}

// CloseSession records the disconnect time.
func (s *SQLiteStore) CloseSession(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET disconnected_at = ? WHERE session_id = ?`,
		formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return expectOneRow(res)
}

// RenameSession updates the session's latest name.
func (s *SQLiteStore) RenameSession(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET name = ? WHERE session_id = ?`,
		name, id,
	)
	if err != nil {
		return fmt.Errorf("renaming session: %w", err)
	}
	return expectOneRow(res)
}

const sessionColumns = `session_id, name, remote_addr, fingerprint, key_bits, connected_at, disconnected_at`

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions returns sessions newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY connected_at DESC, rowid DESC LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// AppendEvent inserts a journal event.
func (s *SQLiteStore) AppendEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO events (event_id, session_id, agent_name, kind, text, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.SessionID,
		e.AgentName,
		string(e.Kind),
		e.Text,
		formatTime(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// ListEvents returns matching events newest first.
func (s *SQLiteStore) ListEvents(ctx context.Context, f EventFilter) ([]*Event, error) {
	var kind *string
	if f.Kind != nil {
		k := string(*f.Kind)
		kind = &k
	}

	query := `
		SELECT event_id, session_id, agent_name, kind, text, ts
		FROM events
		WHERE (? IS NULL OR session_id = ?)
		  AND (? IS NULL OR kind = ?)
		ORDER BY seq DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query,
		f.SessionID, f.SessionID,
		kind, kind,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var kindStr, tsStr string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.AgentName, &kindStr, &e.Text, &tsStr); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Kind = EventKind(kindStr)
		if e.Timestamp, err = parseTime(tsStr); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var sess Session
	var connectedStr string
	var disconnectedStr sql.NullString

	if err := scanner.Scan(
		&sess.ID,
		&sess.Name,
		&sess.RemoteAddr,
		&sess.Fingerprint,
		&sess.KeyBits,
		&connectedStr,
		&disconnectedStr,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	var err error
	if sess.ConnectedAt, err = parseTime(connectedStr); err != nil {
		return nil, err
	}
	if disconnectedStr.Valid {
		t, err := parseTime(disconnectedStr.String)
		if err != nil {
			return nil, err
		}
		sess.DisconnectedAt = &t
	}
	return &sess, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
