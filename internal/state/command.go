package state

import (
	"fmt"
	"time"

	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
)

// Kind names a command in the durable log.
type Kind string

const (
	KindInsertCategory  Kind = "insert_category"
	KindInsertFeed      Kind = "insert_feed"
	KindInsertItem      Kind = "insert_item"
	KindRecordFetch     Kind = "record_fetch"
	KindSetUnsubscribed Kind = "set_unsubscribed"
	KindRefreshFeed     Kind = "refresh_feed"
)

// Command is a state transition. Apply must be deterministic: given equal
// snapshots it returns equal results, so replaying a log reproduces the
// exact tables and indexes that existed when it was written. Apply never
// modifies its input.
type Command interface {
	Kind() Kind
	Apply(s *Snapshot) (*Snapshot, Result, error)
}

// Result describes what a command did.
type Result struct {
	// ID is the identifier the affected record lives under.
	ID ident.ID
	// Created is false when an existing record was replaced.
	Created bool
	// Record is the stored version: model.Category, model.Feed or model.Item.
	Record any
}

// InsertCategory upserts a category by name.
type InsertCategory struct {
	Category model.Category `json:"category"`
}

func (InsertCategory) Kind() Kind { return KindInsertCategory }

func (c InsertCategory) Apply(s *Snapshot) (*Snapshot, Result, error) {
	rec := c.Category.Normalized()
	if rec.Name == "" {
		return nil, Result{}, fmt.Errorf("insert category: %w: empty name", ErrInvalidRecord)
	}

	created := true
	rec.ID = ident.Probe(ident.CategoryID(rec.Name), func(id ident.ID) bool {
		existing, occupied := s.Category(id)
		if !occupied {
			return false
		}
		if existing.Name == rec.Name {
			created = false
			return false
		}
		return true
	})

	return s.PutCategory(rec), Result{ID: rec.ID, Created: created, Record: rec}, nil
}

// InsertFeed upserts a feed by URL. The stored record is replaced whole.
type InsertFeed struct {
	Feed model.Feed `json:"feed"`
}

func (InsertFeed) Kind() Kind { return KindInsertFeed }

func (c InsertFeed) Apply(s *Snapshot) (*Snapshot, Result, error) {
	rec := c.Feed.Normalized()
	if rec.URL == "" {
		return nil, Result{}, fmt.Errorf("insert feed: %w: empty url", ErrInvalidRecord)
	}
	if cat, ok := rec.InCategory(); ok && !s.HasCategory(cat) {
		return nil, Result{}, fmt.Errorf("insert feed %s: %w %d", rec.URL, ErrUnknownCategory, cat)
	}

	created := true
	rec.ID = ident.Probe(ident.FeedID(rec.URL), func(id ident.ID) bool {
		existing, occupied := s.feeds.Get(id)
		if !occupied {
			return false
		}
		if existing.URL == rec.URL {
			created = false
			return false
		}
		return true
	})

	return s.PutFeed(rec), Result{ID: rec.ID, Created: created, Record: rec.Clone()}, nil
}

// InsertItem stores an item under the first free id at or above the id
// derived from its update time. An occupant describing the same entry is
// replaced instead of probed past.
type InsertItem struct {
	Item model.Item `json:"item"`
}

func (InsertItem) Kind() Kind { return KindInsertItem }

func (c InsertItem) Apply(s *Snapshot) (*Snapshot, Result, error) {
	rec := c.Item.Normalized()
	if !rec.FeedID.IsSet() || !s.HasFeed(rec.FeedID) {
		return nil, Result{}, fmt.Errorf("insert item %q: %w %d", rec.URL, ErrUnknownFeed, rec.FeedID)
	}

	created := true
	rec.ID = ident.Probe(ident.ItemID(rec.UpdatedAt), func(id ident.ID) bool {
		existing, occupied := s.items.Get(id)
		if !occupied {
			return false
		}
		if existing.SameEntry(rec) {
			created = false
			return false
		}
		return true
	})

	return s.PutItem(rec), Result{ID: rec.ID, Created: created, Record: rec.Clone()}, nil
}

// RefreshFeed merges freshly fetched metadata into a stored feed. URL,
// category, subscription flag and last error stay as stored, so changes
// committed while the fetch was running are kept. An empty fetched title
// keeps the stored one.
type RefreshFeed struct {
	FeedID ident.ID   `json:"feed_id"`
	Meta   model.Feed `json:"meta"`
}

func (RefreshFeed) Kind() Kind { return KindRefreshFeed }

func (c RefreshFeed) Apply(s *Snapshot) (*Snapshot, Result, error) {
	f, ok := s.Feed(c.FeedID)
	if !ok {
		return nil, Result{}, fmt.Errorf("refresh feed: %w %d", ErrUnknownFeed, c.FeedID)
	}
	meta := c.Meta.Normalized()
	if meta.Title != "" {
		f.Title = meta.Title
	}
	f.Description = meta.Description
	f.Language = meta.Language
	f.Authors = meta.Authors
	f.Contributors = meta.Contributors
	f.Rights = meta.Rights
	f.Image = meta.Image
	if !meta.UpdatedAt.IsZero() {
		f.UpdatedAt = meta.UpdatedAt
	}
	f = f.Normalized()
	return s.PutFeed(f), Result{ID: f.ID, Record: f.Clone()}, nil
}

// RecordFetch stores the outcome of the latest fetch on a feed. A nil Error
// clears any previous failure.
type RecordFetch struct {
	FeedID ident.ID  `json:"feed_id"`
	Error  *string   `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

func (RecordFetch) Kind() Kind { return KindRecordFetch }

func (c RecordFetch) Apply(s *Snapshot) (*Snapshot, Result, error) {
	f, ok := s.Feed(c.FeedID)
	if !ok {
		return nil, Result{}, fmt.Errorf("record fetch: %w %d", ErrUnknownFeed, c.FeedID)
	}
	f.LastError = nil
	if c.Error != nil {
		f.LastError = model.StrPtr(*c.Error)
	}
	if !c.At.IsZero() {
		f.UpdatedAt = c.At
	}
	f = f.Normalized()
	return s.PutFeed(f), Result{ID: f.ID, Record: f.Clone()}, nil
}

// SetUnsubscribed flags or unflags a feed as unsubscribed.
type SetUnsubscribed struct {
	FeedID       ident.ID `json:"feed_id"`
	Unsubscribed bool     `json:"unsubscribed"`
}

func (SetUnsubscribed) Kind() Kind { return KindSetUnsubscribed }

func (c SetUnsubscribed) Apply(s *Snapshot) (*Snapshot, Result, error) {
	f, ok := s.Feed(c.FeedID)
	if !ok {
		return nil, Result{}, fmt.Errorf("set unsubscribed: %w %d", ErrUnknownFeed, c.FeedID)
	}
	f.Unsubscribed = c.Unsubscribed
	return s.PutFeed(f), Result{ID: f.ID, Record: f.Clone()}, nil
}
