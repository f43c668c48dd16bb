// Package model defines the records held by the feed store.
//
// Records are plain values. A record read from the store is a copy; the
// store never hands out memory shared with a committed snapshot, and
// changing a record means inserting a whole new version under the same id.
package model

import (
	"time"

	"github.com/roach88/feedstore/internal/ident"
)

// Category is a flat, named bucket that feeds may belong to.
type Category struct {
	ID   ident.ID `json:"id"`
	Name string   `json:"name"`
}

// Key returns the category's natural key.
func (c Category) Key() string { return c.Name }

// Feed is a syndication feed subscription.
type Feed struct {
	ID           ident.ID  `json:"id"`
	CategoryID   *ident.ID `json:"category_id,omitempty"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Language     string    `json:"language"`
	Authors      []Person  `json:"authors,omitempty"`
	Contributors []Person  `json:"contributors,omitempty"`
	Rights       string    `json:"rights"`
	Image        *Image    `json:"image,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastError    *string   `json:"last_error,omitempty"`
	Unsubscribed bool      `json:"unsubscribed"`
}

// Key returns the feed's natural key.
func (f Feed) Key() string { return f.URL }

// InCategory reports whether the feed is attached to a category, and which.
func (f Feed) InCategory() (ident.ID, bool) {
	if f.CategoryID == nil || !f.CategoryID.IsSet() {
		return ident.Unset, false
	}
	return *f.CategoryID, true
}

// Item is a single entry of a feed.
type Item struct {
	ID           ident.ID  `json:"id"`
	FeedID       ident.ID  `json:"feed_id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Tags         []string  `json:"tags,omitempty"`
	Authors      []Person  `json:"authors,omitempty"`
	Contributors []Person  `json:"contributors,omitempty"`
	Rights       string    `json:"rights"`
	Content      Content   `json:"content"`
	PublishedAt  time.Time `json:"published_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SameEntry reports whether two items describe the same feed entry. Items
// whose derived ids collide are only merged when this holds.
func (i Item) SameEntry(o Item) bool {
	return i.FeedID == o.FeedID && i.URL == o.URL && i.Title == o.Title
}

// Person is an author or contributor, embedded by value in feeds and items.
type Person struct {
	ID    ident.ID `json:"id"`
	Name  string   `json:"name"`
	URL   string   `json:"url"`
	Email string   `json:"email"`
}

// Image is the optional logo of a feed.
type Image struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// StrPtr returns a pointer to s, for optional string fields.
func StrPtr(s string) *string {
	return &s
}

// IDPtr returns a pointer to id, for optional references.
func IDPtr(id ident.ID) *ident.ID {
	return &id
}
