// Package store provides SQLite-backed durable storage for the feed
// database's command log.
//
// The store holds two tables:
//   - commands: one row per committed update, keyed by a logical seq
//   - checkpoints: serialised snapshots covering a prefix of the log
//
// # Commit marker
//
// Every row carries a domain-separated SHA-256 checksum of its content.
// Recovery treats a row whose checksum does not verify as torn: it and
// everything after it are discarded.
//
// # Ordering
//
// All ordering uses seq (a logical clock owned by the engine), never wall
// time. Timestamps are stored for display only.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=FULL: an acknowledged append is on disk
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// The store knows nothing about what a command means; payloads are opaque
// bytes encoded by package state.
package store
