package model

import (
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Clone returns a deep copy of the feed.
func (f Feed) Clone() Feed {
	out := f
	if f.CategoryID != nil {
		id := *f.CategoryID
		out.CategoryID = &id
	}
	out.Authors = clonePersons(f.Authors)
	out.Contributors = clonePersons(f.Contributors)
	if f.Image != nil {
		img := *f.Image
		out.Image = &img
	}
	if f.LastError != nil {
		msg := *f.LastError
		out.LastError = &msg
	}
	return out
}

// Normalized returns the category with its name in valid UTF-8. The id is
// derived from the name, so it must be cleaned before hashing.
func (c Category) Normalized() Category {
	c.Name = validUTF8(c.Name)
	return c
}

// Normalized returns the canonical form of the feed: strings in valid
// UTF-8, times in UTC without monotonic readings, empty lists as nil, an
// unset category as nil. Two feeds that survive a JSON round trip compare
// equal only in this form.
func (f Feed) Normalized() Feed {
	out := f.Clone()
	if out.CategoryID != nil && !out.CategoryID.IsSet() {
		out.CategoryID = nil
	}
	out.URL = validUTF8(out.URL)
	out.Title = validUTF8(out.Title)
	out.Description = validUTF8(out.Description)
	out.Language = validUTF8(out.Language)
	out.Rights = validUTF8(out.Rights)
	out.Authors = normalizePersons(out.Authors)
	out.Contributors = normalizePersons(out.Contributors)
	if out.Image != nil {
		out.Image.URL = validUTF8(out.Image.URL)
		out.Image.Title = validUTF8(out.Image.Title)
		out.Image.Description = validUTF8(out.Image.Description)
		out.Image.Link = validUTF8(out.Image.Link)
	}
	if out.LastError != nil {
		*out.LastError = validUTF8(*out.LastError)
	}
	out.UpdatedAt = normalizeTime(out.UpdatedAt)
	return out
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	if i.Tags != nil {
		out.Tags = append([]string(nil), i.Tags...)
	}
	out.Authors = clonePersons(i.Authors)
	out.Contributors = clonePersons(i.Contributors)
	return out
}

// Normalized returns the canonical form of the item. See Feed.Normalized.
func (i Item) Normalized() Item {
	out := i.Clone()
	if len(out.Tags) == 0 {
		out.Tags = nil
	}
	for n, tag := range out.Tags {
		out.Tags[n] = validUTF8(tag)
	}
	out.URL = validUTF8(out.URL)
	out.Title = validUTF8(out.Title)
	out.Summary = validUTF8(out.Summary)
	out.Rights = validUTF8(out.Rights)
	out.Content.Body = validUTF8(out.Content.Body)
	out.Authors = normalizePersons(out.Authors)
	out.Contributors = normalizePersons(out.Contributors)
	out.PublishedAt = normalizeTime(out.PublishedAt)
	out.UpdatedAt = normalizeTime(out.UpdatedAt)
	return out
}

func clonePersons(in []Person) []Person {
	if in == nil {
		return nil
	}
	return append([]Person(nil), in...)
}

func normalizePersons(in []Person) []Person {
	if len(in) == 0 {
		return nil
	}
	for n, p := range in {
		in[n] = Person{
			ID:    p.ID,
			Name:  validUTF8(p.Name),
			URL:   validUTF8(p.URL),
			Email: validUTF8(p.Email),
		}
	}
	return in
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC()
}

// validUTF8 replaces every byte that is not part of a valid UTF-8 sequence
// with U+FFFD, one replacement per byte. encoding/json writes invalid bytes
// the same way, so a cleaned record reads back from the log unchanged.
func validUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, err := unicode.UTF8.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}
