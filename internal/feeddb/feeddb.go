// Package feeddb is the public face of the feed store: an explicit handle
// over the transaction engine exposing the lookups, listings and inserts
// the conversion and import code needs.
//
// Every read runs as an engine query against one committed snapshot, and
// every write is one engine update. A DB is safe for concurrent use.
package feeddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/feedstore/internal/engine"
	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
	"github.com/roach88/feedstore/internal/state"
	"github.com/roach88/feedstore/internal/store"
)

// Config controls how a DB is opened.
type Config struct {
	// Path is the SQLite file holding the durable log.
	Path string

	// CheckpointEvery writes a checkpoint after every n commits (0 = never).
	CheckpointEvery int

	// ForceRecover opens a damaged log even when nothing survives.
	ForceRecover bool

	// Engine carries extra engine options (tests inject clocks and txids).
	Engine []engine.Option
}

// DB is an open feed store.
type DB struct {
	store *store.Store
	eng   *engine.Engine
}

// Open opens (or creates) the store at cfg.Path and recovers its state.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("open feed store: empty path")
	}

	s, err := store.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open feed store: %w", err)
	}

	opts := []engine.Option{engine.WithCheckpointEvery(cfg.CheckpointEvery)}
	if cfg.ForceRecover {
		opts = append(opts, engine.WithForceRecover())
	}
	opts = append(opts, cfg.Engine...)

	eng, _, err := engine.Open(ctx, s, opts...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open feed store: %w", err)
	}
	return &DB{store: s, eng: eng}, nil
}

// Close flushes nothing (every commit is already durable) and releases the
// database file.
func (db *DB) Close() error {
	return db.eng.Close()
}

// Recovery reports what was replayed when the store was opened.
func (db *DB) Recovery() engine.Report {
	return db.eng.Report()
}

// LastSeq returns the sequence number of the last committed update.
func (db *DB) LastSeq() int64 {
	return db.eng.LastSeq()
}

// Stats counts the records of each kind.
type Stats struct {
	Categories int `json:"categories"`
	Feeds      int `json:"feeds"`
	Items      int `json:"items"`
}

// Stats returns the current record counts.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := db.eng.Query(ctx, func(s *state.Snapshot) error {
		st = Stats{
			Categories: s.CategoryCount(),
			Feeds:      s.FeedCount(),
			Items:      s.ItemCount(),
		}
		return nil
	})
	return st, err
}

// ListCategories returns every category in insertion order.
func (db *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	err := db.eng.Query(ctx, func(s *state.Snapshot) error {
		out = s.Categories()
		return nil
	})
	return out, err
}

// ListFeeds returns every feed in insertion order.
func (db *DB) ListFeeds(ctx context.Context) ([]model.Feed, error) {
	var out []model.Feed
	err := db.eng.Query(ctx, func(s *state.Snapshot) error {
		out = s.Feeds()
		return nil
	})
	return out, err
}

// ListPersons returns every distinct author and contributor.
func (db *DB) ListPersons(ctx context.Context) ([]model.Person, error) {
	var out []model.Person
	err := db.eng.Query(ctx, func(s *state.Snapshot) error {
		out = s.Persons()
		return nil
	})
	return out, err
}

// ItemsByFeed returns the feed's items in ascending id order.
func (db *DB) ItemsByFeed(ctx context.Context, feedID ident.ID) ([]model.Item, error) {
	var out []model.Item
	err := db.eng.Query(ctx, func(s *state.Snapshot) error {
		out = resolveItems(s, s.ItemsByFeed(feedID))
		return nil
	})
	return out, err
}

// ItemsByCategory returns the items of every feed in the category, in
// ascending id order.
func (db *DB) ItemsByCategory(ctx context.Context, categoryID ident.ID) ([]model.Item, error) {
	var out []model.Item
	err := db.eng.Query(ctx, func(s *state.Snapshot) error {
		out = resolveItems(s, s.ItemsByCategory(categoryID))
		return nil
	})
	return out, err
}

// ItemsFrom returns up to limit items with id >= key, ascending.
// A limit <= 0 returns them all.
func (db *DB) ItemsFrom(ctx context.Context, key ident.ID, limit int) ([]model.Item, error) {
	var out []model.Item
	err := db.eng.Query(ctx, func(s *state.Snapshot) error {
		out = s.ItemsFrom(key, limit)
		return nil
	})
	return out, err
}

func resolveItems(s *state.Snapshot, ids []ident.ID) []model.Item {
	out := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := s.Item(id); ok {
			out = append(out, it)
		}
	}
	return out
}

// LookupCategory returns the category stored at id.
func (db *DB) LookupCategory(ctx context.Context, id ident.ID) (c model.Category, found bool, err error) {
	err = db.eng.Query(ctx, func(s *state.Snapshot) error {
		c, found = s.Category(id)
		return nil
	})
	return c, found, err
}

// LookupFeed returns the feed stored at id.
func (db *DB) LookupFeed(ctx context.Context, id ident.ID) (f model.Feed, found bool, err error) {
	err = db.eng.Query(ctx, func(s *state.Snapshot) error {
		f, found = s.Feed(id)
		return nil
	})
	return f, found, err
}

// LookupItem returns the first item whose id is greater than or equal to
// key. Item ids grow with update time, so ident.ItemID(t) is a cursor for
// "the first item updated at or after t".
func (db *DB) LookupItem(ctx context.Context, key ident.ID) (it model.Item, found bool, err error) {
	err = db.eng.Query(ctx, func(s *state.Snapshot) error {
		it, found = s.ItemAtOrAfter(key)
		return nil
	})
	return it, found, err
}

// InsertCategory upserts c by name and returns the stored record.
func (db *DB) InsertCategory(ctx context.Context, c model.Category) (model.Category, error) {
	res, err := db.eng.Update(ctx, state.InsertCategory{Category: c})
	if err != nil {
		return model.Category{}, err
	}
	return res.Record.(model.Category), nil
}

// InsertFeed upserts f by URL and returns the stored record.
func (db *DB) InsertFeed(ctx context.Context, f model.Feed) (model.Feed, error) {
	res, err := db.eng.Update(ctx, state.InsertFeed{Feed: f})
	if err != nil {
		return model.Feed{}, err
	}
	return res.Record.(model.Feed), nil
}

// RefreshFeed merges fetched metadata into the stored feed feedID. The
// stored category, subscription flag and last error are kept.
func (db *DB) RefreshFeed(ctx context.Context, feedID ident.ID, meta model.Feed) (model.Feed, error) {
	res, err := db.eng.Update(ctx, state.RefreshFeed{FeedID: feedID, Meta: meta})
	if err != nil {
		return model.Feed{}, err
	}
	return res.Record.(model.Feed), nil
}

// InsertItem stores it and files it in both secondary indexes.
func (db *DB) InsertItem(ctx context.Context, it model.Item) (model.Item, error) {
	res, err := db.eng.Update(ctx, state.InsertItem{Item: it})
	if err != nil {
		return model.Item{}, err
	}
	return res.Record.(model.Item), nil
}

// RecordFetchError stores msg verbatim as the feed's last error.
func (db *DB) RecordFetchError(ctx context.Context, feedID ident.ID, msg string, at time.Time) (model.Feed, error) {
	return db.recordFetch(ctx, state.RecordFetch{FeedID: feedID, Error: model.StrPtr(msg), At: at})
}

// RecordFetchSuccess clears the feed's last error.
func (db *DB) RecordFetchSuccess(ctx context.Context, feedID ident.ID, at time.Time) (model.Feed, error) {
	return db.recordFetch(ctx, state.RecordFetch{FeedID: feedID, At: at})
}

func (db *DB) recordFetch(ctx context.Context, cmd state.RecordFetch) (model.Feed, error) {
	res, err := db.eng.Update(ctx, cmd)
	if err != nil {
		return model.Feed{}, err
	}
	return res.Record.(model.Feed), nil
}

// SetUnsubscribed flags or unflags a feed. Unsubscribed feeds are kept;
// the refresher skips them.
func (db *DB) SetUnsubscribed(ctx context.Context, feedID ident.ID, unsubscribed bool) (model.Feed, error) {
	res, err := db.eng.Update(ctx, state.SetUnsubscribed{FeedID: feedID, Unsubscribed: unsubscribed})
	if err != nil {
		return model.Feed{}, err
	}
	return res.Record.(model.Feed), nil
}

// Checkpoint snapshots the store and compacts the log.
func (db *DB) Checkpoint(ctx context.Context) error {
	return db.eng.Checkpoint(ctx)
}

// Wipe deletes every record and truncates the durable log. Irreversible.
func (db *DB) Wipe(ctx context.Context) error {
	return db.eng.Wipe(ctx)
}

// LogCounts reports the size of the durable log.
func (db *DB) LogCounts(ctx context.Context) (store.Counts, error) {
	return db.store.Counts(ctx)
}
