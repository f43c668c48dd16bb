package state

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
)

func TestSnapshot_OlderVersionsUnchanged(t *testing.T) {
	s0, _, feed := seedFeed(t)
	s1, _ := mustApply(t, s0, InsertItem{Item: newItem(feed.ID, "http://a.example/1", testTime)})
	s2, _ := mustApply(t, s1, InsertItem{Item: newItem(feed.ID, "http://a.example/2", testTime.Add(time.Second))})

	assert.Equal(t, 0, s0.ItemCount())
	assert.Equal(t, 1, s1.ItemCount())
	assert.Equal(t, 2, s2.ItemCount())
	assert.Len(t, s1.ItemsByFeed(feed.ID), 1)
	assert.Len(t, s2.ItemsByFeed(feed.ID), 2)
}

func TestSnapshot_ItemAtOrAfter(t *testing.T) {
	s, _, feed := seedFeed(t)
	s, _ = mustApply(t, s, InsertItem{Item: newItem(feed.ID, "http://a.example/1", testTime)})
	s, _ = mustApply(t, s, InsertItem{Item: newItem(feed.ID, "http://a.example/2", testTime.Add(time.Hour))})

	got, ok := s.ItemAtOrAfter(ident.ItemID(testTime) + 1)
	require.True(t, ok)
	assert.Equal(t, "http://a.example/2", got.URL)

	got, ok = s.ItemAtOrAfter(1)
	require.True(t, ok)
	assert.Equal(t, "http://a.example/1", got.URL)

	_, ok = s.ItemAtOrAfter(ident.ItemID(testTime.Add(2 * time.Hour)))
	assert.False(t, ok)
}

func TestSnapshot_ItemsFrom(t *testing.T) {
	s, _, feed := seedFeed(t)
	for i := 0; i < 5; i++ {
		s, _ = mustApply(t, s, InsertItem{Item: newItem(feed.ID, "http://a.example/"+string(rune('a'+i)), testTime.Add(time.Duration(i)*time.Minute))})
	}

	all := s.ItemsFrom(1, 0)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Less(t, int64(all[i-1].ID), int64(all[i].ID))
	}

	page := s.ItemsFrom(all[2].ID, 2)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].ID, page[0].ID)
	assert.Equal(t, all[3].ID, page[1].ID)
}

func TestSnapshot_ReturnsCopies(t *testing.T) {
	s, _, feed := seedFeed(t)
	it := newItem(feed.ID, "http://a.example/1", testTime)
	it.Tags = []string{"go"}
	s, res := mustApply(t, s, InsertItem{Item: it})

	got, _ := s.Item(res.ID)
	got.Tags[0] = "mutated"

	again, _ := s.Item(res.ID)
	assert.Equal(t, []string{"go"}, again.Tags)
}

func TestSnapshot_Persons(t *testing.T) {
	s, _ := mustApply(t, Empty(), InsertFeed{Feed: model.Feed{
		URL:     "http://a.example/feed",
		Authors: []model.Person{{Name: "Ann", Email: "ann@example.com"}},
	}})
	feed, _ := s.FindFeed("http://a.example/feed")

	it := newItem(feed.ID, "http://a.example/1", testTime)
	it.Authors = []model.Person{{Name: "Ann", Email: "ann@example.com"}, {Name: "Bob"}}
	s, _ = mustApply(t, s, InsertItem{Item: it})

	persons := s.Persons()
	require.Len(t, persons, 2)
	assert.Equal(t, "Ann", persons[0].Name)
	assert.Equal(t, ident.PersonID("Ann", "ann@example.com"), persons[0].ID)
	assert.Equal(t, "Bob", persons[1].Name)
}

func TestSnapshot_FindCategory(t *testing.T) {
	s, cat, _ := seedFeed(t)

	got, ok := s.FindCategory("Tech")
	require.True(t, ok)
	assert.Equal(t, cat, got)

	_, ok = s.FindCategory("Nope")
	assert.False(t, ok)
}

func TestDumpLoad_ReproducesSnapshot(t *testing.T) {
	s, _, feed := seedFeed(t)
	it := newItem(feed.ID, "http://a.example/1", testTime)
	it.Authors = []model.Person{{Name: "Ann"}}
	it.Contributors = []model.Person{{Name: "Cy", URL: "http://cy.example/"}}
	it.Tags = []string{"go", "db"}
	s, _ = mustApply(t, s, InsertItem{Item: it})
	s, _ = mustApply(t, s, InsertItem{Item: newItem(feed.ID, "http://a.example/2", testTime)})
	s, _ = mustApply(t, s, RecordFetch{FeedID: feed.ID, Error: model.StrPtr("boom"), At: testTime})

	payload, err := EncodeDump(s.Dump())
	require.NoError(t, err)

	loaded, err := Load(payload)
	require.NoError(t, err)
	assert.True(t, s.Equal(loaded))
	assert.Equal(t, s.Dump(), loaded.Dump())
}

func TestLoad_RejectsBadPayload(t *testing.T) {
	_, err := Load([]byte(`{"version":99}`))
	assert.Error(t, err)

	_, err = Load([]byte(`{"version":1,"extra":true}`))
	assert.Error(t, err)

	_, err = Load([]byte(`not json`))
	assert.Error(t, err)
}

func TestCodec_RoundTripReplays(t *testing.T) {
	_, _, feed := seedFeed(t)
	cmds := []Command{
		InsertCategory{Category: model.Category{Name: "Tech"}},
		InsertFeed{Feed: model.Feed{URL: "http://a.example/feed", Title: "A", CategoryID: model.IDPtr(ident.CategoryID("Tech"))}},
		InsertItem{Item: newItem(feed.ID, "http://a.example/<1>&", testTime)},
		RecordFetch{FeedID: feed.ID, Error: model.StrPtr("HTTP 500"), At: testTime},
		SetUnsubscribed{FeedID: feed.ID, Unsubscribed: true},
		RefreshFeed{FeedID: feed.ID, Meta: model.Feed{Title: "Fetched", Authors: []model.Person{{Name: "Ann"}}, UpdatedAt: testTime}},
		InsertCategory{Category: model.Category{Name: "News\xff"}},
		InsertFeed{Feed: model.Feed{URL: "http://b.example/\xfe", CategoryID: model.IDPtr(ident.CategoryID("News\ufffd"))}},
	}

	live, replayed := Empty(), Empty()
	for _, cmd := range cmds {
		live, _ = mustApply(t, live, cmd)

		kind, payload, err := Encode(cmd)
		require.NoError(t, err)
		assert.Equal(t, cmd.Kind(), kind)
		assert.NotContains(t, string(payload), `\u003c`, "html must not be escaped")

		decoded, err := Decode(kind, payload)
		require.NoError(t, err)
		replayed, _ = mustApply(t, replayed, decoded)
	}
	assert.True(t, live.Equal(replayed))
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode("drop_table", []byte(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownCommand))

	_, err = Decode(KindSetUnsubscribed, []byte(`{"feed_id":1,"bogus":2}`))
	assert.Error(t, err)

	_, err = Decode(KindInsertItem, []byte(`{"item":`))
	assert.Error(t, err)
}
