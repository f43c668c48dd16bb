package ident

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_Deterministic(t *testing.T) {
	keys := []string{"Tech", "http://a.example/feed", "", "日本語", "a\x00b"}
	for _, k := range keys {
		t.Run(k, func(t *testing.T) {
			a := Derive(DomainFeed, []byte(k))
			b := Derive(DomainFeed, []byte(k))
			assert.Equal(t, a, b)
			assert.True(t, a.IsSet(), "derived id must never be zero")
			assert.Greater(t, int64(a), int64(0), "derived id must be positive")
		})
	}
}

func TestDerive_DomainSeparation(t *testing.T) {
	assert.NotEqual(t, CategoryID("news"), FeedID("news"),
		"same key in different domains must not share an id")
}

func TestDerive_NFCNormalisation(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"
	require.NotEqual(t, composed, decomposed)
	assert.Equal(t, CategoryID(composed), CategoryID(decomposed))
}

func TestPersonID_SeparatesNameAndEmail(t *testing.T) {
	assert.NotEqual(t, PersonID("ab", "c"), PersonID("a", "bc"))
	assert.Equal(t, PersonID("Ann", "ann@example.com"), PersonID("Ann", "ann@example.com"))
}

func TestItemID_PreservesTimeOrder(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := ItemID(base)
	later := ItemID(base.Add(time.Nanosecond))

	assert.Equal(t, ID(base.UnixNano()), earlier)
	assert.Less(t, int64(earlier), int64(later))
}

func TestItemID_ZeroAndPreEpoch(t *testing.T) {
	assert.Equal(t, ID(1), ItemID(time.Time{}))
	assert.Equal(t, ID(1), ItemID(time.Unix(0, 0)))
	assert.Equal(t, ID(1), ItemID(time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestItemID_IgnoresLocation(t *testing.T) {
	utc := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	zone := time.FixedZone("UTC+2", 2*60*60)
	assert.Equal(t, ItemID(utc), ItemID(utc.In(zone)))
}

func TestNextFree(t *testing.T) {
	taken := map[ID]bool{10: true, 11: true, 13: true}
	occupied := func(id ID) bool { return taken[id] }

	assert.Equal(t, ID(12), NextFree(10, occupied))
	assert.Equal(t, ID(12), NextFree(12, occupied))
	assert.Equal(t, ID(14), NextFree(13, occupied))
}

func TestNextFree_WrapsPastMax(t *testing.T) {
	taken := map[ID]bool{math.MaxInt64: true, 1: true}
	occupied := func(id ID) bool { return taken[id] }

	assert.Equal(t, ID(2), NextFree(math.MaxInt64, occupied))
}

func TestNextFree_ZeroCandidate(t *testing.T) {
	assert.Equal(t, ID(1), NextFree(0, func(ID) bool { return false }))
}

func TestParse_RoundTrip(t *testing.T) {
	id := FeedID("http://a.example/feed")
	got, err := Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = Parse("not-a-number")
	assert.Error(t, err)
}
