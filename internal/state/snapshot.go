package state

import (
	"reflect"

	"github.com/benbjohnson/immutable"

	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
)

// Snapshot is one committed version of every table and index.
//
// A Snapshot is never modified after construction. Put methods return a new
// Snapshot that shares unchanged structure with the receiver, so a reader
// holding an older Snapshot keeps a consistent view while writers move on.
//
// INVARIANTS:
//   - every id in categoryOrder/feedOrder/itemOrder is present in its table
//     exactly once, in first-insertion order
//   - item i is in itemsByFeed[i.FeedID] iff i is in the item table
//   - item i is in itemsByCategory[c] iff its feed exists and has category c
type Snapshot struct {
	categories    *immutable.Map[ident.ID, model.Category]
	categoryOrder *immutable.List[ident.ID]

	feeds     *immutable.Map[ident.ID, model.Feed]
	feedOrder *immutable.List[ident.ID]

	items     *immutable.SortedMap[ident.ID, model.Item]
	itemOrder *immutable.List[ident.ID]

	itemsByFeed     NestedIndex
	itemsByCategory NestedIndex
}

// Empty returns a snapshot with no records.
func Empty() *Snapshot {
	return &Snapshot{
		categories:      immutable.NewMap[ident.ID, model.Category](idHasher{}),
		categoryOrder:   immutable.NewList[ident.ID](),
		feeds:           immutable.NewMap[ident.ID, model.Feed](idHasher{}),
		feedOrder:       immutable.NewList[ident.ID](),
		items:           immutable.NewSortedMap[ident.ID, model.Item](idComparer{}),
		itemOrder:       immutable.NewList[ident.ID](),
		itemsByFeed:     NewNestedIndex(),
		itemsByCategory: NewNestedIndex(),
	}
}

func (s *Snapshot) clone() *Snapshot {
	c := *s
	return &c
}

// --- Categories ---

// Category returns the category stored at id.
func (s *Snapshot) Category(id ident.ID) (model.Category, bool) {
	return s.categories.Get(id)
}

// HasCategory reports whether id is occupied in the category table.
func (s *Snapshot) HasCategory(id ident.ID) bool {
	_, ok := s.categories.Get(id)
	return ok
}

// Categories returns all categories in insertion order.
func (s *Snapshot) Categories() []model.Category {
	out := make([]model.Category, 0, s.categoryOrder.Len())
	itr := s.categoryOrder.Iterator()
	for !itr.Done() {
		_, id := itr.Next()
		c, _ := s.categories.Get(id)
		out = append(out, c)
	}
	return out
}

// CategoryCount returns the number of categories.
func (s *Snapshot) CategoryCount() int {
	return s.categories.Len()
}

// PutCategory inserts or replaces the category at c.ID.
func (s *Snapshot) PutCategory(c model.Category) *Snapshot {
	next := s.clone()
	if _, exists := s.categories.Get(c.ID); !exists {
		next.categoryOrder = s.categoryOrder.Append(c.ID)
	}
	next.categories = s.categories.Set(c.ID, c)
	return next
}

// FindCategory probes for the category named name.
func (s *Snapshot) FindCategory(name string) (model.Category, bool) {
	var found model.Category
	var ok bool
	ident.Probe(ident.CategoryID(name), func(id ident.ID) bool {
		c, occupied := s.categories.Get(id)
		if !occupied {
			return false
		}
		if c.Name == name {
			found, ok = c, true
			return false
		}
		return true
	})
	return found, ok
}

// --- Feeds ---

// Feed returns a copy of the feed stored at id.
func (s *Snapshot) Feed(id ident.ID) (model.Feed, bool) {
	f, ok := s.feeds.Get(id)
	if !ok {
		return model.Feed{}, false
	}
	return f.Clone(), true
}

// HasFeed reports whether id is occupied in the feed table.
func (s *Snapshot) HasFeed(id ident.ID) bool {
	_, ok := s.feeds.Get(id)
	return ok
}

// Feeds returns copies of all feeds in insertion order.
func (s *Snapshot) Feeds() []model.Feed {
	out := make([]model.Feed, 0, s.feedOrder.Len())
	itr := s.feedOrder.Iterator()
	for !itr.Done() {
		_, id := itr.Next()
		f, _ := s.feeds.Get(id)
		out = append(out, f.Clone())
	}
	return out
}

// FeedCount returns the number of feeds.
func (s *Snapshot) FeedCount() int {
	return s.feeds.Len()
}

// PutFeed inserts or replaces the feed at f.ID. When a replacement moves
// the feed to another category, the feed's items move between category
// sets in the same step.
func (s *Snapshot) PutFeed(f model.Feed) *Snapshot {
	f = f.Clone()
	next := s.clone()

	prev, exists := s.feeds.Get(f.ID)
	if !exists {
		next.feedOrder = s.feedOrder.Append(f.ID)
	}
	next.feeds = s.feeds.Set(f.ID, f)

	oldCat, hadCat := prev.InCategory()
	newCat, hasCat := f.InCategory()
	if exists && (hadCat != hasCat || oldCat != newCat) {
		byCat := s.itemsByCategory
		for _, itemID := range s.itemsByFeed.Members(f.ID) {
			if hadCat {
				byCat = byCat.Remove(oldCat, itemID)
			}
			if hasCat {
				byCat = byCat.AddMember(newCat, itemID)
			}
		}
		next.itemsByCategory = byCat
	}
	return next
}

// FindFeed probes for the feed with the given URL.
func (s *Snapshot) FindFeed(url string) (model.Feed, bool) {
	var found model.Feed
	var ok bool
	ident.Probe(ident.FeedID(url), func(id ident.ID) bool {
		f, occupied := s.feeds.Get(id)
		if !occupied {
			return false
		}
		if f.URL == url {
			found, ok = f.Clone(), true
			return false
		}
		return true
	})
	return found, ok
}

// --- Items ---

// Item returns a copy of the item stored at exactly id.
func (s *Snapshot) Item(id ident.ID) (model.Item, bool) {
	it, ok := s.items.Get(id)
	if !ok {
		return model.Item{}, false
	}
	return it.Clone(), true
}

// HasItem reports whether id is occupied in the item table.
func (s *Snapshot) HasItem(id ident.ID) bool {
	_, ok := s.items.Get(id)
	return ok
}

// ItemAtOrAfter returns the item with the smallest id >= key.
func (s *Snapshot) ItemAtOrAfter(key ident.ID) (model.Item, bool) {
	itr := s.items.Iterator()
	itr.Seek(key)
	if itr.Done() {
		return model.Item{}, false
	}
	_, it, ok := itr.Next()
	if !ok {
		return model.Item{}, false
	}
	return it.Clone(), true
}

// ItemsFrom returns up to limit items with id >= key in ascending id order.
// A limit <= 0 means no limit.
func (s *Snapshot) ItemsFrom(key ident.ID, limit int) []model.Item {
	var out []model.Item
	itr := s.items.Iterator()
	itr.Seek(key)
	for !itr.Done() {
		if limit > 0 && len(out) >= limit {
			break
		}
		_, it, _ := itr.Next()
		out = append(out, it.Clone())
	}
	return out
}

// Items returns copies of all items in insertion order.
func (s *Snapshot) Items() []model.Item {
	out := make([]model.Item, 0, s.itemOrder.Len())
	itr := s.itemOrder.Iterator()
	for !itr.Done() {
		_, id := itr.Next()
		it, _ := s.items.Get(id)
		out = append(out, it.Clone())
	}
	return out
}

// ItemCount returns the number of items.
func (s *Snapshot) ItemCount() int {
	return s.items.Len()
}

// PutItem inserts or replaces the item at it.ID and files it in both
// secondary indexes.
func (s *Snapshot) PutItem(it model.Item) *Snapshot {
	it = it.Clone()
	next := s.clone()

	byFeed, byCat := s.itemsByFeed, s.itemsByCategory
	prev, exists := s.items.Get(it.ID)
	if exists {
		byFeed = byFeed.Remove(prev.FeedID, it.ID)
		if cat, ok := s.feedCategory(prev.FeedID); ok {
			byCat = byCat.Remove(cat, it.ID)
		}
	} else {
		next.itemOrder = s.itemOrder.Append(it.ID)
	}
	next.items = s.items.Set(it.ID, it)

	byFeed = byFeed.AddMember(it.FeedID, it.ID)
	if cat, ok := s.feedCategory(it.FeedID); ok {
		byCat = byCat.AddMember(cat, it.ID)
	}
	next.itemsByFeed, next.itemsByCategory = byFeed, byCat
	return next
}

// --- Indexes ---

// ItemsByFeed returns the ids of the feed's items in ascending order.
func (s *Snapshot) ItemsByFeed(feedID ident.ID) []ident.ID {
	return s.itemsByFeed.Members(feedID)
}

// ItemsByCategory returns the ids of the category's items in ascending order.
func (s *Snapshot) ItemsByCategory(categoryID ident.ID) []ident.ID {
	return s.itemsByCategory.Members(categoryID)
}

// FeedIndex exposes the items-by-feed index.
func (s *Snapshot) FeedIndex() NestedIndex { return s.itemsByFeed }

// CategoryIndex exposes the items-by-category index.
func (s *Snapshot) CategoryIndex() NestedIndex { return s.itemsByCategory }

func (s *Snapshot) feedCategory(feedID ident.ID) (ident.ID, bool) {
	f, ok := s.feeds.Get(feedID)
	if !ok {
		return ident.Unset, false
	}
	return f.InCategory()
}

// Rebuild recomputes both secondary indexes from the tables.
func (s *Snapshot) Rebuild() *Snapshot {
	next := s.clone()
	byFeed, byCat := NewNestedIndex(), NewNestedIndex()
	itr := s.items.Iterator()
	for !itr.Done() {
		id, it, _ := itr.Next()
		byFeed = byFeed.AddMember(it.FeedID, id)
		if cat, ok := s.feedCategory(it.FeedID); ok {
			byCat = byCat.AddMember(cat, id)
		}
	}
	next.itemsByFeed, next.itemsByCategory = byFeed, byCat
	return next
}

// Persons returns every distinct author and contributor referenced by a
// feed or item, in first-seen order (feeds first, then items).
func (s *Snapshot) Persons() []model.Person {
	seen := make(map[ident.ID]bool)
	var out []model.Person
	add := func(ps []model.Person) {
		for _, p := range ps {
			id := p.ID
			if !id.IsSet() {
				id = ident.PersonID(p.Name, p.Email)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			p.ID = id
			out = append(out, p)
		}
	}
	for _, f := range s.Feeds() {
		add(f.Authors)
		add(f.Contributors)
	}
	for _, it := range s.Items() {
		add(it.Authors)
		add(it.Contributors)
	}
	return out
}

// Equal reports whether two snapshots hold the same records in the same
// order with the same index memberships.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s.CategoryCount() != o.CategoryCount() || s.FeedCount() != o.FeedCount() || s.ItemCount() != o.ItemCount() {
		return false
	}
	if !reflect.DeepEqual(s.Categories(), o.Categories()) {
		return false
	}
	if !reflect.DeepEqual(s.Feeds(), o.Feeds()) {
		return false
	}
	if !reflect.DeepEqual(s.Items(), o.Items()) {
		return false
	}
	return s.itemsByFeed.Equal(o.itemsByFeed) && s.itemsByCategory.Equal(o.itemsByCategory)
}
