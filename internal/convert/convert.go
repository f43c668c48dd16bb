// Package convert turns parsed syndication documents into store records.
//
// Parsing is gofeed's job; this package decides what each dialect's fields
// mean for a model.Feed or model.Item and fills defaults where the
// document is silent: empty strings for missing text, a zero-size image
// when the feed names an image without dimensions, and a caller-supplied
// fallback for dates that are missing or unparseable.
package convert

import (
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
)

// Feed builds the feed record for a parsed document fetched from feedURL.
func Feed(d Dialect, parsed *gofeed.Feed, feedURL string, categoryID *ident.ID, fallback time.Time) model.Feed {
	f := model.Feed{
		CategoryID:  categoryID,
		URL:         feedURL,
		Title:       strings.TrimSpace(parsed.Title),
		Description: strings.TrimSpace(parsed.Description),
		Language:    parsed.Language,
		Authors:     persons(parsed.Authors, parsed.Author),
	}
	if parsed.Image != nil && parsed.Image.URL != "" {
		f.Image = &model.Image{URL: parsed.Image.URL, Title: parsed.Image.Title}
	}

	dc := parsed.DublinCoreExt
	switch d {
	case Atom, RSS:
		f.Rights = parsed.Copyright
		f.UpdatedAt = firstDate(fallback, parsed.UpdatedParsed, parsed.PublishedParsed)
	case RSS1:
		// RDF channels carry most metadata in Dublin Core.
		f.Rights = first(parsed.Copyright, dcField(dc, func(x *ext.DublinCoreExtension) []string { return x.Rights }))
		f.UpdatedAt = firstDate(fallback, parsed.UpdatedParsed, parsed.PublishedParsed, dcDate(dc))
		if f.Language == "" {
			f.Language = dcField(dc, func(x *ext.DublinCoreExtension) []string { return x.Language })
		}
	}
	if f.Rights == "" {
		f.Rights = dcField(dc, func(x *ext.DublinCoreExtension) []string { return x.Rights })
	}
	f.Contributors = dcPersons(dc, func(x *ext.DublinCoreExtension) []string { return x.Contributor })
	return f
}

// Item builds the item record for one entry of a feed stored as feedID.
func Item(d Dialect, parsed *gofeed.Item, feedID ident.ID, fallback time.Time) model.Item {
	it := model.Item{
		FeedID:       feedID,
		URL:          itemURL(parsed),
		Title:        strings.TrimSpace(parsed.Title),
		Summary:      strings.TrimSpace(parsed.Description),
		Tags:         parsed.Categories,
		Authors:      persons(parsed.Authors, parsed.Author),
		Contributors: dcPersons(parsed.DublinCoreExt, func(x *ext.DublinCoreExtension) []string { return x.Contributor }),
		Rights:       dcField(parsed.DublinCoreExt, func(x *ext.DublinCoreExtension) []string { return x.Rights }),
	}
	if len(it.Authors) == 0 {
		it.Authors = dcPersons(parsed.DublinCoreExt, func(x *ext.DublinCoreExtension) []string { return x.Creator })
	}

	body := parsed.Content
	if body == "" {
		body = parsed.Description
	}

	switch d {
	case Atom:
		// Atom entries: <updated> is mandatory, <published> optional.
		it.UpdatedAt = firstDate(fallback, parsed.UpdatedParsed, parsed.PublishedParsed)
		it.PublishedAt = firstDate(it.UpdatedAt, parsed.PublishedParsed)
		it.Content = atomContent(body)
	case RSS:
		it.PublishedAt = firstDate(fallback, parsed.PublishedParsed, parsed.UpdatedParsed)
		it.UpdatedAt = firstDate(it.PublishedAt, parsed.UpdatedParsed)
		it.Content = markupContent(body)
	case RSS1:
		it.PublishedAt = firstDate(fallback, parsed.PublishedParsed, parsed.UpdatedParsed, dcDate(parsed.DublinCoreExt))
		it.UpdatedAt = it.PublishedAt
		it.Content = markupContent(body)
	}
	return it
}

// Person converts one gofeed person.
func Person(p *gofeed.Person) model.Person {
	name := strings.TrimSpace(p.Name)
	email := strings.TrimSpace(p.Email)
	return model.Person{
		ID:    ident.PersonID(name, email),
		Name:  name,
		Email: email,
	}
}

// persons converts an author list, falling back to the single deprecated
// author field, and drops duplicates and empty entries.
func persons(list []*gofeed.Person, single *gofeed.Person) []model.Person {
	if len(list) == 0 && single != nil {
		list = []*gofeed.Person{single}
	}
	var out []model.Person
	seen := make(map[ident.ID]bool)
	for _, p := range list {
		if p == nil {
			continue
		}
		mp := Person(p)
		if mp.Name == "" && mp.Email == "" {
			continue
		}
		if seen[mp.ID] {
			continue
		}
		seen[mp.ID] = true
		out = append(out, mp)
	}
	return out
}

func dcPersons(dc *ext.DublinCoreExtension, pick func(*ext.DublinCoreExtension) []string) []model.Person {
	if dc == nil {
		return nil
	}
	var list []*gofeed.Person
	for _, name := range pick(dc) {
		list = append(list, &gofeed.Person{Name: name})
	}
	return persons(list, nil)
}

func dcField(dc *ext.DublinCoreExtension, pick func(*ext.DublinCoreExtension) []string) string {
	if dc == nil {
		return ""
	}
	for _, v := range pick(dc) {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func dcDate(dc *ext.DublinCoreExtension) *time.Time {
	s := dcField(dc, func(x *ext.DublinCoreExtension) []string { return x.Date })
	if s == "" {
		return nil
	}
	t, err := ParseDateStrict(s)
	if err != nil {
		return nil
	}
	return &t
}

func itemURL(parsed *gofeed.Item) string {
	if parsed.Link != "" {
		return parsed.Link
	}
	for _, l := range parsed.Links {
		if l != "" {
			return l
		}
	}
	return parsed.GUID
}

func firstDate(fallback time.Time, candidates ...*time.Time) time.Time {
	for _, c := range candidates {
		if c != nil && !c.IsZero() {
			return c.UTC()
		}
	}
	return fallback.UTC()
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var (
	markupPattern = regexp.MustCompile(`<[a-zA-Z/!]|&[a-zA-Z#][a-zA-Z0-9]*;`)
	xhtmlPattern  = regexp.MustCompile(`^\s*<div[^>]+xmlns=["']http://www\.w3\.org/1999/xhtml["']`)
)

func markupContent(body string) model.Content {
	if markupPattern.MatchString(body) {
		return model.HTML(body)
	}
	return model.Text(body)
}

func atomContent(body string) model.Content {
	if xhtmlPattern.MatchString(body) {
		return model.XHTML(body)
	}
	return markupContent(body)
}
