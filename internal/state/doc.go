// Package state holds the in-memory tables and secondary indexes of the
// feed store, and the commands that move it from one version to the next.
//
// Tables:
//   - categories: id -> Category, listed in insertion order
//   - feeds:      id -> Feed, listed in insertion order
//   - items:      id -> Item, ordered by id for cursor scans
//
// Secondary indexes:
//   - itemsByFeed:     feed id     -> set of item ids
//   - itemsByCategory: category id -> set of item ids
//
// Persons have no table of their own; they are embedded by value in feed
// and item records and can be enumerated with Snapshot.Persons.
//
// All structures are persistent (github.com/benbjohnson/immutable), so a
// Snapshot is a cheap, immutable value. The transaction engine publishes a
// new Snapshot per commit; readers holding an older one are unaffected.
//
// # Identity on insert
//
// Categories and feeds upsert by natural key: the derived id is probed
// upward past slots held by records with a different key, and a record
// with the same key is replaced in place. Items probe upward from the id
// derived from their update time, replacing an occupant only when it is
// the same entry (same feed, URL and title).
package state
