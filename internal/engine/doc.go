// Package engine implements the feed store's transaction engine.
//
// The engine is the only way state changes. It sequences read-only
// queries and state-changing updates against one committed snapshot,
// persists every accepted update to the durable log, and rebuilds state
// by replaying the log at startup.
//
// ARCHITECTURE:
//
// Single Writer, Many Readers:
// Updates take a writer mutex, so at most one runs at a time. Queries load
// the published snapshot with one atomic read and never wait. Snapshots are
// persistent data structures: publishing a new one does not disturb a
// reader still holding the old one.
//
// Update Flow:
//  1. Take the writer lock
//  2. Compute next := cmd.Apply(current); a failure or panic aborts here
//  3. Append the encoded command to the log at seq = last+1
//  4. Publish next
//
// An update that fails before step 4 leaves no trace: not in memory and
// not in the log.
//
// Recovery:
// Open loads the newest checkpoint, then replays the entries after it. An
// entry that is out of sequence, fails its checksum, does not decode or
// does not apply is a torn write; it and everything after it are deleted.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Log entries are numbered by Clock, never by wall time. Commit timestamps
// are recorded for display only.
//
// Deterministic Replay:
// Commands carry their complete input, and Apply depends on nothing but
// the snapshot and the command, so replay reproduces identical tables and
// indexes.
package engine
