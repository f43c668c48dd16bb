package state

import (
	"slices"

	"github.com/benbjohnson/immutable"

	"github.com/roach88/feedstore/internal/ident"
)

// idHasher and idComparer let identifiers key the persistent maps.
type idHasher struct{}

func (idHasher) Hash(key ident.ID) uint32 {
	k := uint64(key)
	return uint32(k ^ (k >> 32))
}

func (idHasher) Equal(a, b ident.ID) bool { return a == b }

type idComparer struct{}

func (idComparer) Compare(a, b ident.ID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

type idSet = immutable.SortedMap[ident.ID, struct{}]

func newIDSet() *idSet {
	return immutable.NewSortedMap[ident.ID, struct{}](idComparer{})
}

// NestedIndex maps an outer key (a feed or category id) to the set of item
// ids filed under it. It is persistent: every mutator returns a new index
// and leaves the receiver untouched.
type NestedIndex struct {
	sets *immutable.Map[ident.ID, *idSet]
}

// NewNestedIndex returns an empty index.
func NewNestedIndex() NestedIndex {
	return NestedIndex{sets: immutable.NewMap[ident.ID, *idSet](idHasher{})}
}

// AddMember files member under outer, creating the set if absent. Adding
// an existing member returns an equivalent index.
func (x NestedIndex) AddMember(outer, member ident.ID) NestedIndex {
	set, ok := x.sets.Get(outer)
	if !ok {
		set = newIDSet()
	}
	if _, exists := set.Get(member); exists {
		return x
	}
	return NestedIndex{sets: x.sets.Set(outer, set.Set(member, struct{}{}))}
}

// Remove drops member from outer's set. Empty sets are removed entirely so
// that an index rebuilt from tables compares equal to a maintained one.
func (x NestedIndex) Remove(outer, member ident.ID) NestedIndex {
	set, ok := x.sets.Get(outer)
	if !ok {
		return x
	}
	if _, exists := set.Get(member); !exists {
		return x
	}
	set = set.Delete(member)
	if set.Len() == 0 {
		return NestedIndex{sets: x.sets.Delete(outer)}
	}
	return NestedIndex{sets: x.sets.Set(outer, set)}
}

// Contains reports whether member is filed under outer.
func (x NestedIndex) Contains(outer, member ident.ID) bool {
	set, ok := x.sets.Get(outer)
	if !ok {
		return false
	}
	_, exists := set.Get(member)
	return exists
}

// Members returns the ids filed under outer in ascending order.
func (x NestedIndex) Members(outer ident.ID) []ident.ID {
	set, ok := x.sets.Get(outer)
	if !ok {
		return nil
	}
	out := make([]ident.ID, 0, set.Len())
	itr := set.Iterator()
	for !itr.Done() {
		id, _, _ := itr.Next()
		out = append(out, id)
	}
	return out
}

// Size returns the number of members filed under outer.
func (x NestedIndex) Size(outer ident.ID) int {
	set, ok := x.sets.Get(outer)
	if !ok {
		return 0
	}
	return set.Len()
}

// Len returns the number of outer keys with at least one member.
func (x NestedIndex) Len() int {
	return x.sets.Len()
}

// Keys returns the outer keys in ascending order.
func (x NestedIndex) Keys() []ident.ID {
	keys := make([]ident.ID, 0, x.sets.Len())
	itr := x.sets.Iterator()
	for !itr.Done() {
		k, _, _ := itr.Next()
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Equal reports whether both indexes hold exactly the same memberships.
func (x NestedIndex) Equal(o NestedIndex) bool {
	if x.Len() != o.Len() {
		return false
	}
	for _, k := range x.Keys() {
		a, b := x.Members(k), o.Members(k)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}
