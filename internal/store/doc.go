// Package store provides durable storage for conversations and messages.
//
// # Architecture
//
// Two interfaces describe what the messaging core consumes:
//
//   - ConversationStore: conversations and their activity timestamp
//   - MessageStore: the append-only, per-conversation ordered message log
//
// Store combines both. Three implementations exist:
//
//   - SQLiteStore: modernc.org/sqlite, the default single-node backend
//   - PostgresStore: pgx pool for shared deployments
//   - MockStore: in-memory, with fault injection for tests
//
// # Append Contract
//
// AppendMessage is the only way messages are written. In one transaction it
// assigns the message ID and CreatedAt, inserts the row, and advances the
// conversation's LastMessageAt to the same timestamp. A message therefore never
// exists without its conversation reflecting it.
//
// IDs strictly increase within a conversation. CreatedAt never decreases: if
// the clock reads earlier than the conversation's LastMessageAt, the latter is
// reused.
//
// # Timestamps
//
// SQLite stores timestamps as fixed-width UTC text with nanoseconds so that
// SQL comparisons order correctly. Postgres uses TIMESTAMPTZ, which keeps
// microseconds; PostgresStore truncates before writing.
package store
