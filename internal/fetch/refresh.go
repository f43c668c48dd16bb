package fetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/feedstore/internal/convert"
	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
)

// DefaultConcurrency is how many feeds a refresh fetches at once.
const DefaultConcurrency = 4

// Store is the part of the feed database a refresh writes to.
type Store interface {
	ListFeeds(ctx context.Context) ([]model.Feed, error)
	RefreshFeed(ctx context.Context, feedID ident.ID, meta model.Feed) (model.Feed, error)
	InsertItem(ctx context.Context, it model.Item) (model.Item, error)
	RecordFetchError(ctx context.Context, feedID ident.ID, msg string, at time.Time) (model.Feed, error)
	RecordFetchSuccess(ctx context.Context, feedID ident.ID, at time.Time) (model.Feed, error)
}

// Getter retrieves a document by URL. *Fetcher implements it.
type Getter interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Result is the outcome of refreshing one feed.
type Result struct {
	FeedID ident.ID `json:"feed_id"`
	URL    string   `json:"url"`
	Items  int      `json:"items"`
	Err    error    `json:"-"`
}

// Summary aggregates a RefreshAll run.
type Summary struct {
	Feeds   int      `json:"feeds"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Items   int      `json:"items"`
	Results []Result `json:"results"`
}

// Refresher pulls every subscribed feed into the store.
type Refresher struct {
	store       Store
	getter      Getter
	concurrency int
	now         func() time.Time
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithConcurrency bounds how many feeds are fetched at once.
func WithConcurrency(n int) RefresherOption {
	return func(r *Refresher) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithClock sets the time source used for fetch timestamps and date
// fallbacks.
func WithClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		r.now = now
	}
}

// NewRefresher creates a Refresher writing to store.
func NewRefresher(store Store, getter Getter, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:       store,
		getter:      getter,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RefreshAll refreshes every subscribed feed. Per-feed failures are
// reported in the Summary, not returned; the error is only non-nil when
// the feed list cannot be read or ctx is cancelled.
func (r *Refresher) RefreshAll(ctx context.Context) (Summary, error) {
	feeds, err := r.store.ListFeeds(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list feeds: %w", err)
	}

	var subscribed []model.Feed
	for _, f := range feeds {
		if !f.Unsubscribed {
			subscribed = append(subscribed, f)
		}
	}

	results := make([]Result, len(subscribed))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, f := range subscribed {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = Result{FeedID: f.ID, URL: f.URL, Err: ctx.Err()}
				return nil
			}
			n, err := r.RefreshFeed(ctx, f)
			results[i] = Result{FeedID: f.ID, URL: f.URL, Items: n, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{
		Feeds:   len(subscribed),
		Skipped: len(feeds) - len(subscribed),
		Results: results,
	}
	for _, res := range results {
		if res.Err != nil {
			sum.Failed++
			continue
		}
		sum.Items += res.Items
	}
	slog.Info("refresh finished",
		"feeds", sum.Feeds,
		"failed", sum.Failed,
		"items", sum.Items)
	return sum, ctx.Err()
}

// RefreshFeed fetches, parses and stores one feed, returning how many
// items were stored. A fetch failure is recorded on the feed. A document
// that does not parse leaves the store untouched.
func (r *Refresher) RefreshFeed(ctx context.Context, feed model.Feed) (int, error) {
	now := r.now().UTC()

	body, err := r.getter.Fetch(ctx, feed.URL)
	if err != nil {
		slog.Warn("fetch failed", "feed", feed.URL, "error", err)
		if _, rerr := r.store.RecordFetchError(ctx, feed.ID, err.Error(), now); rerr != nil {
			return 0, fmt.Errorf("record fetch error for %s: %w", feed.URL, rerr)
		}
		return 0, err
	}

	parsed, d, err := convert.Parse(bytes.NewReader(body))
	if err != nil {
		slog.Warn("parse failed", "feed", feed.URL, "error", err)
		return 0, fmt.Errorf("%s: %w", feed.URL, err)
	}

	// feed may be stale by now; RefreshFeed merges into the stored record.
	meta := convert.Feed(d, parsed, feed.URL, nil, now)
	stored, err := r.store.RefreshFeed(ctx, feed.ID, meta)
	if err != nil {
		return 0, fmt.Errorf("store feed %s: %w", feed.URL, err)
	}

	n := 0
	for _, pi := range parsed.Items {
		it := convert.Item(d, pi, stored.ID, now)
		if _, err := r.store.InsertItem(ctx, it); err != nil {
			slog.Warn("item skipped", "feed", feed.URL, "item", it.URL, "error", err)
			continue
		}
		n++
	}

	if _, err := r.store.RecordFetchSuccess(ctx, stored.ID, now); err != nil {
		return n, fmt.Errorf("record fetch for %s: %w", feed.URL, err)
	}
	slog.Debug("feed refreshed", "feed", feed.URL, "dialect", d, "items", n)
	return n, nil
}
