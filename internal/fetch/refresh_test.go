package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedstore/internal/feeddb"
	"github.com/roach88/feedstore/internal/model"
	"github.com/roach88/feedstore/internal/testutil"
)

var refreshTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const refreshAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Good Feed</title>
  <updated>2024-05-02T00:00:00Z</updated>
  <entry>
    <title>One</title>
    <link href="http://good.example/1"/>
    <id>urn:1</id>
    <updated>2024-05-01T10:00:00Z</updated>
    <content type="html">&lt;p&gt;one&lt;/p&gt;</content>
  </entry>
  <entry>
    <title>Two</title>
    <link href="http://good.example/2"/>
    <id>urn:2</id>
    <updated>2024-05-01T11:00:00Z</updated>
    <content type="text">two</content>
  </entry>
</feed>`

type refreshFixture struct {
	db       *feeddb.DB
	srv      *httptest.Server
	unsubHit atomic.Int32
	r        *Refresher
}

func newRefreshFixture(t *testing.T) *refreshFixture {
	t.Helper()
	fx := &refreshFixture{}

	mux := http.NewServeMux()
	mux.HandleFunc("/good", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(refreshAtom))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/junk", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed"))
	})
	mux.HandleFunc("/unsub", func(w http.ResponseWriter, r *http.Request) {
		fx.unsubHit.Add(1)
		w.Write([]byte(refreshAtom))
	})
	fx.srv = httptest.NewServer(mux)
	t.Cleanup(fx.srv.Close)

	db, err := feeddb.Open(context.Background(), feeddb.Config{Path: filepath.Join(t.TempDir(), "feeds.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	fx.db = db

	fx.r = NewRefresher(db, NewFetcher(Options{PerHostRate: 1000}),
		WithConcurrency(2),
		WithClock(testutil.NewStepClock(refreshTime, 0).Now))
	return fx
}

func (fx *refreshFixture) addFeed(t *testing.T, path string, cat *model.Category) model.Feed {
	t.Helper()
	f := model.Feed{URL: fx.srv.URL + path, Title: path}
	if cat != nil {
		f.CategoryID = model.IDPtr(cat.ID)
	}
	stored, err := fx.db.InsertFeed(context.Background(), f)
	require.NoError(t, err)
	return stored
}

func TestRefreshAll(t *testing.T) {
	ctx := context.Background()
	fx := newRefreshFixture(t)

	cat, err := fx.db.InsertCategory(ctx, model.Category{Name: "Tech"})
	require.NoError(t, err)
	good := fx.addFeed(t, "/good", &cat)
	broken := fx.addFeed(t, "/broken", nil)
	junk := fx.addFeed(t, "/junk", nil)
	unsub := fx.addFeed(t, "/unsub", nil)
	_, err = fx.db.SetUnsubscribed(ctx, unsub.ID, true)
	require.NoError(t, err)

	sum, err := fx.r.RefreshAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Feeds)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 2, sum.Items)
	assert.Equal(t, int32(0), fx.unsubHit.Load(), "unsubscribed feeds are not fetched")

	t.Run("good feed updated", func(t *testing.T) {
		f, found, err := fx.db.LookupFeed(ctx, good.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Good Feed", f.Title)
		require.NotNil(t, f.CategoryID)
		assert.Equal(t, cat.ID, *f.CategoryID)
		assert.Nil(t, f.LastError)
		assert.Equal(t, refreshTime, f.UpdatedAt)

		items, err := fx.db.ItemsByCategory(ctx, cat.ID)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "One", items[0].Title)
		assert.Equal(t, model.HTML("<p>one</p>"), items[0].Content)
	})

	t.Run("fetch failure recorded verbatim", func(t *testing.T) {
		f, _, err := fx.db.LookupFeed(ctx, broken.ID)
		require.NoError(t, err)
		require.NotNil(t, f.LastError)
		assert.Equal(t, "HTTP 503 Service Unavailable", *f.LastError)
	})

	t.Run("parse failure leaves feed untouched", func(t *testing.T) {
		f, _, err := fx.db.LookupFeed(ctx, junk.ID)
		require.NoError(t, err)
		assert.Equal(t, junk, f)
	})
}

func TestRefreshAll_Idempotent(t *testing.T) {
	ctx := context.Background()
	fx := newRefreshFixture(t)
	fx.addFeed(t, "/good", nil)

	_, err := fx.r.RefreshAll(ctx)
	require.NoError(t, err)
	_, err = fx.r.RefreshAll(ctx)
	require.NoError(t, err)

	stats, err := fx.db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, feeddb.Stats{Feeds: 1, Items: 2}, stats)
}

func TestRefreshFeed_ClearsPreviousError(t *testing.T) {
	ctx := context.Background()
	fx := newRefreshFixture(t)
	good := fx.addFeed(t, "/good", nil)

	failed, err := fx.db.RecordFetchError(ctx, good.ID, "HTTP 500 Internal Server Error", refreshTime.Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, failed.LastError)

	n, err := fx.r.RefreshFeed(ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, _, err := fx.db.LookupFeed(ctx, good.ID)
	require.NoError(t, err)
	assert.Nil(t, f.LastError)
}

func TestRefreshFeed_ReturnsFetchError(t *testing.T) {
	fx := newRefreshFixture(t)
	broken := fx.addFeed(t, "/broken", nil)

	_, err := fx.r.RefreshFeed(context.Background(), broken)

	assert.Equal(t, KindHTTPStatus, KindOf(err))
}

func TestRefreshAll_CancelledContext(t *testing.T) {
	fx := newRefreshFixture(t)
	fx.addFeed(t, "/good", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fx.r.RefreshAll(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

// gatedGetter announces each fetch and answers once release is closed.
type gatedGetter struct {
	body    []byte
	called  chan struct{}
	release chan struct{}
}

func (g *gatedGetter) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	g.called <- struct{}{}
	select {
	case <-g.release:
		return g.body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefreshAll_KeepsChangesMadeDuringFetch(t *testing.T) {
	ctx := context.Background()
	fx := newRefreshFixture(t)

	tech, err := fx.db.InsertCategory(ctx, model.Category{Name: "Tech"})
	require.NoError(t, err)
	news, err := fx.db.InsertCategory(ctx, model.Category{Name: "News"})
	require.NoError(t, err)
	feed := fx.addFeed(t, "/good", &tech)

	g := &gatedGetter{
		body:    []byte(refreshAtom),
		called:  make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r := NewRefresher(fx.db, g, WithClock(testutil.NewStepClock(refreshTime, 0).Now))

	var sum Summary
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		sum, runErr = r.RefreshAll(ctx)
	}()

	<-g.called
	moved := feed
	moved.CategoryID = model.IDPtr(news.ID)
	_, err = fx.db.InsertFeed(ctx, moved)
	require.NoError(t, err)
	_, err = fx.db.SetUnsubscribed(ctx, feed.ID, true)
	require.NoError(t, err)
	close(g.release)
	<-done

	require.NoError(t, runErr)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 2, sum.Items)

	f, found, err := fx.db.LookupFeed(ctx, feed.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Good Feed", f.Title)
	assert.True(t, f.Unsubscribed, "unsubscribe during the fetch is kept")
	require.NotNil(t, f.CategoryID)
	assert.Equal(t, news.ID, *f.CategoryID, "category move during the fetch is kept")

	items, err := fx.db.ItemsByCategory(ctx, news.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
