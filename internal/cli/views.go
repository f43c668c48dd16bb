package cli

import (
	"time"

	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
)

// CategoryView is one row of `feedstore categories`.
type CategoryView struct {
	ID    ident.ID `json:"id"`
	Name  string   `json:"name"`
	Feeds int      `json:"feeds"`
}

// FeedView is one row of `feedstore feeds`.
type FeedView struct {
	ID        ident.ID `json:"id"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Category  string   `json:"category,omitempty"`
	Status    string   `json:"status"`
	LastError string   `json:"last_error,omitempty"`
}

// ItemView is one row of `feedstore items`.
type ItemView struct {
	ID        ident.ID  `json:"id"`
	FeedID    ident.ID  `json:"feed_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Kind      string    `json:"content_kind"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Feed status values.
const (
	StatusOK           = "ok"
	StatusError        = "error"
	StatusUnsubscribed = "unsubscribed"
)

func feedView(f model.Feed, categoryNames map[ident.ID]string) FeedView {
	v := FeedView{ID: f.ID, URL: f.URL, Title: f.Title, Status: StatusOK}
	if cat, ok := f.InCategory(); ok {
		v.Category = categoryNames[cat]
	}
	switch {
	case f.Unsubscribed:
		v.Status = StatusUnsubscribed
	case f.LastError != nil:
		v.Status = StatusError
	}
	if f.LastError != nil {
		v.LastError = *f.LastError
	}
	return v
}

func itemView(it model.Item) ItemView {
	return ItemView{
		ID:        it.ID,
		FeedID:    it.FeedID,
		Title:     it.Title,
		URL:       it.URL,
		Kind:      it.Content.Kind.String(),
		UpdatedAt: it.UpdatedAt.UTC(),
	}
}
