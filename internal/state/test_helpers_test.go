package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
)

var testTime = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// mustApply applies cmd and fails the test on error.
func mustApply(t *testing.T, s *Snapshot, cmd Command) (*Snapshot, Result) {
	t.Helper()
	next, res, err := cmd.Apply(s)
	require.NoError(t, err)
	require.NotNil(t, next)
	return next, res
}

// seedFeed returns a snapshot holding category "Tech" and one feed in it.
func seedFeed(t *testing.T) (*Snapshot, model.Category, model.Feed) {
	t.Helper()
	s, res := mustApply(t, Empty(), InsertCategory{Category: model.Category{Name: "Tech"}})
	cat := res.Record.(model.Category)
	s, res = mustApply(t, s, InsertFeed{Feed: model.Feed{
		URL:        "http://a.example/feed",
		Title:      "A",
		CategoryID: model.IDPtr(cat.ID),
	}})
	return s, cat, res.Record.(model.Feed)
}

func newItem(feedID ident.ID, url string, updated time.Time) model.Item {
	return model.Item{
		FeedID:    feedID,
		URL:       url,
		Title:     "title " + url,
		Content:   model.HTML("<p>" + url + "</p>"),
		UpdatedAt: updated,
	}
}
