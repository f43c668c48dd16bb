package feeddb

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/state"
)

// Table names a table that has a natural key.
type Table string

const (
	// TableCategories is keyed by category name.
	TableCategories Table = "categories"
	// TableFeeds is keyed by feed URL.
	TableFeeds Table = "feeds"
)

// ErrUnknownTable reports a table without a natural key lookup.
var ErrUnknownTable = errors.New("unknown table")

// ParseTable validates a table name.
func ParseTable(s string) (Table, error) {
	switch t := Table(s); t {
	case TableCategories, TableFeeds:
		return t, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownTable, s)
	}
}

// Match is a record found by natural key. Record is a model.Category or a
// model.Feed depending on the table.
type Match struct {
	ID     ident.ID
	Record any
}

// FindUniqueByKey looks up the record whose natural key is key. Callers
// use it to reuse an existing category or feed instead of inserting a
// duplicate.
func (db *DB) FindUniqueByKey(ctx context.Context, table Table, key string) (m Match, found bool, err error) {
	if _, err := ParseTable(string(table)); err != nil {
		return Match{}, false, err
	}

	err = db.eng.Query(ctx, func(s *state.Snapshot) error {
		switch table {
		case TableCategories:
			if c, ok := s.FindCategory(key); ok {
				m, found = Match{ID: c.ID, Record: c}, true
			}
		case TableFeeds:
			if f, ok := s.FindFeed(key); ok {
				m, found = Match{ID: f.ID, Record: f}, true
			}
		}
		return nil
	})
	return m, found, err
}
