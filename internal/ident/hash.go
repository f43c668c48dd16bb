package ident

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ID identifies a record within its table. The zero value means the record
// has not been persisted yet.
type ID int64

// Unset is the reserved "not yet persisted" identifier.
const Unset ID = 0

// Domain prefixes for hashed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCategory = "feedstore/category/v1"
	DomainFeed     = "feedstore/feed/v1"
	DomainPerson   = "feedstore/person/v1"
)

// IsSet reports whether the id refers to a persisted record.
func (id ID) IsSet() bool {
	return id != Unset
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Parse reads an id written by String.
func Parse(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Unset, err
	}
	return ID(n), nil
}

// Derive hashes a natural key into an identifier.
// Format: SHA256(domain + 0x00 + NFC(key)), first 8 bytes big-endian with
// the sign bit cleared. The null separator prevents domain/key boundary
// ambiguity.
func Derive(domain string, key []byte) ID {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(norm.NFC.Bytes(key))
	sum := h.Sum(nil)

	n := binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63)
	if n == 0 {
		return 1
	}
	return ID(n)
}

// CategoryID derives a category id from the category name.
func CategoryID(name string) ID {
	return Derive(DomainCategory, []byte(name))
}

// FeedID derives a feed id from the feed URL.
func FeedID(url string) ID {
	return Derive(DomainFeed, []byte(url))
}

// PersonID derives a person id from name and email.
func PersonID(name, email string) ID {
	key := make([]byte, 0, len(name)+len(email)+1)
	key = append(key, name...)
	key = append(key, 0x00)
	key = append(key, email...)
	return Derive(DomainPerson, key)
}

// ItemID derives an item id from the item's update time. The mapping is
// monotonic (nanoseconds since the Unix epoch) so that item id order is
// update-time order. Instants at or before the epoch map to 1.
func ItemID(updatedAt time.Time) ID {
	if updatedAt.IsZero() {
		return 1
	}
	n := updatedAt.UnixNano()
	if n <= 0 {
		return 1
	}
	return ID(n)
}

// NextFree probes candidate, candidate+1, ... and returns the first id for
// which occupied reports false. Zero and negative ids are skipped, so the
// probe wraps from the largest id back to 1.
func NextFree(candidate ID, occupied func(ID) bool) ID {
	return Probe(candidate, occupied)
}

// Probe walks the same sequence as NextFree, calling visit for each slot
// until visit returns false. It returns the slot visit stopped at.
func Probe(candidate ID, visit func(ID) bool) ID {
	id := candidate
	if id <= 0 {
		id = 1
	}
	for visit(id) {
		id = id.next()
	}
	return id
}

func (id ID) next() ID {
	n := id + 1
	if n <= 0 {
		return 1
	}
	return n
}
