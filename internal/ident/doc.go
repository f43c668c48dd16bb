// Package ident derives the stable integer identifiers used by every table
// in the feed store.
//
// Categories, feeds and persons are identified by a domain-separated
// SHA-256 of their natural key (category name, feed URL, person
// name+email). Items are identified by their update timestamp so that id
// order is time order and a cursor can scan forward from any instant.
//
// # Identity rules
//
//   - Derivation is pure: the same natural key yields the same id on every
//     run and every machine. Keys are NFC-normalised before hashing so that
//     visually identical names do not split into two entities.
//   - ID(0) is reserved and means "not yet persisted". A derivation that
//     would produce zero yields 1 instead.
//   - Ids are never negative; the sign bit of the hash is cleared.
//   - Collisions are resolved by the table that owns the id, using
//     NextFree to probe upward from the derived candidate.
package ident
