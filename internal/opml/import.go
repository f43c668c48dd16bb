package opml

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/feedstore/internal/feeddb"
	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
)

// Target is the part of the feed database an import writes to.
type Target interface {
	FindUniqueByKey(ctx context.Context, table feeddb.Table, key string) (feeddb.Match, bool, error)
	InsertCategory(ctx context.Context, c model.Category) (model.Category, error)
	InsertFeed(ctx context.Context, f model.Feed) (model.Feed, error)
}

// Summary counts what an import did.
type Summary struct {
	CategoriesCreated int `json:"categories_created"`
	CategoriesReused  int `json:"categories_reused"`
	FeedsCreated      int `json:"feeds_created"`
	FeedsReused       int `json:"feeds_reused"`
}

// Import reads an OPML document and files its outlines into t. Category
// outlines resolve or create a category by name; feed outlines resolve
// an existing feed by URL or create one under the enclosing category.
// Categories are flat, so a nested category outline replaces its parent
// for the feeds beneath it. The document is parsed in full before
// anything is written; a malformed document writes nothing.
func Import(ctx context.Context, t Target, r io.Reader) (Summary, error) {
	doc, err := Parse(r)
	if err != nil {
		return Summary{}, err
	}
	imp := importer{target: t}
	if err := imp.walk(ctx, doc.Body.Outlines, nil); err != nil {
		return imp.sum, err
	}
	slog.Info("opml imported",
		"categories_created", imp.sum.CategoriesCreated,
		"feeds_created", imp.sum.FeedsCreated,
		"feeds_reused", imp.sum.FeedsReused)
	return imp.sum, nil
}

type importer struct {
	target Target
	sum    Summary
}

func (imp *importer) walk(ctx context.Context, outlines []Outline, parent *ident.ID) error {
	for _, o := range outlines {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := parent
		switch {
		case o.IsFeed():
			if err := imp.feed(ctx, o, parent); err != nil {
				return err
			}
		case o.Label() != "":
			id, err := imp.category(ctx, o.Label())
			if err != nil {
				return err
			}
			next = &id
		}
		if err := imp.walk(ctx, o.Outlines, next); err != nil {
			return err
		}
	}
	return nil
}

func (imp *importer) category(ctx context.Context, name string) (ident.ID, error) {
	m, found, err := imp.target.FindUniqueByKey(ctx, feeddb.TableCategories, name)
	if err != nil {
		return ident.Unset, fmt.Errorf("find category %q: %w", name, err)
	}
	if found {
		imp.sum.CategoriesReused++
		return m.ID, nil
	}
	c, err := imp.target.InsertCategory(ctx, model.Category{Name: name})
	if err != nil {
		return ident.Unset, fmt.Errorf("create category %q: %w", name, err)
	}
	imp.sum.CategoriesCreated++
	return c.ID, nil
}

func (imp *importer) feed(ctx context.Context, o Outline, category *ident.ID) error {
	url := strings.TrimSpace(o.XMLURL)
	_, found, err := imp.target.FindUniqueByKey(ctx, feeddb.TableFeeds, url)
	if err != nil {
		return fmt.Errorf("find feed %s: %w", url, err)
	}
	if found {
		imp.sum.FeedsReused++
		return nil
	}

	f := model.Feed{URL: url, Title: o.Label()}
	if category != nil {
		f.CategoryID = model.IDPtr(*category)
	}
	if _, err := imp.target.InsertFeed(ctx, f); err != nil {
		return fmt.Errorf("create feed %s: %w", url, err)
	}
	imp.sum.FeedsCreated++
	return nil
}

// Source is the part of the feed database an export reads.
type Source interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListFeeds(ctx context.Context) ([]model.Feed, error)
}

// Export writes every subscribed feed as OPML 2.0, one outline per
// category in category order, uncategorised feeds last at the top level.
func Export(ctx context.Context, s Source, w io.Writer, title string, now time.Time) error {
	cats, err := s.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	feeds, err := s.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	byCat := make(map[ident.ID][]Outline)
	var loose []Outline
	for _, f := range feeds {
		if f.Unsubscribed {
			continue
		}
		label := f.Title
		if label == "" {
			label = f.URL
		}
		o := Outline{Text: label, Title: label, Type: "rss", XMLURL: f.URL}
		if cat, ok := f.InCategory(); ok {
			byCat[cat] = append(byCat[cat], o)
			continue
		}
		loose = append(loose, o)
	}

	doc := &OPML{
		Version: "2.0",
		Head:    Head{Title: title, DateCreated: dateCreated(now)},
	}
	for _, c := range cats {
		children := byCat[c.ID]
		if len(children) == 0 {
			continue
		}
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{Text: c.Name, Title: c.Name, Outlines: children})
	}
	doc.Body.Outlines = append(doc.Body.Outlines, loose...)
	return Encode(w, doc)
}
