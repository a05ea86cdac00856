// Package store provides the control node's session journal using SQLite.
//
// # Data Models
//
//   - Session: one handshaken agent connection, from registration to disconnect
//   - Event: something that happened on a session (rename, content in or out, ping, pong)
//
// Sessions are keyed by the agent's SessionID, which survives renames, so the
// journal can follow an agent across identity changes.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The journal is optional. When database.path is empty the control node runs
// without one.
//
// # Error Handling
//
//   - ErrNotFound: Requested session does not exist
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests of code that depends on Store.
package store
