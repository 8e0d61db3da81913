// Package reconcile mirrors the remote change feed into a client-local,
// newest-first list of bookmarks.
package reconcile

import "github.com/starford/linkshelf/internal/models"

// Collection is an ordered bookmark sequence. It is not safe for concurrent use.
type Collection struct {
	items []models.Bookmark
}

// New returns a collection seeded with a copy of initial, kept in the given order.
func New(initial []models.Bookmark) *Collection {
	items := make([]models.Bookmark, len(initial))
	copy(items, initial)
	return &Collection{items: items}
}

// Apply folds one change notification into the sequence.
//
// created prepends without checking for an existing id, so a repeated
// created yields a duplicate. updated replaces the matching element in
// place and is dropped when the id is absent. deleted removes every element
// carrying the id and is a no-op when none does.
func (c *Collection) Apply(ch models.Change) {
	switch ch.Kind {
	case models.ChangeCreated:
		if ch.Record == nil {
			return
		}
		c.items = append([]models.Bookmark{*ch.Record}, c.items...)

	case models.ChangeUpdated:
		if ch.Record == nil {
			return
		}
		for i := range c.items {
			if c.items[i].ID == ch.Record.ID {
				c.items[i] = *ch.Record
			}
		}

	case models.ChangeDeleted:
		kept := c.items[:0]
		for _, b := range c.items {
			if b.ID != ch.BookmarkID {
				kept = append(kept, b)
			}
		}
		// Zero the tail so dropped records are not retained by the backing array.
		for i := len(kept); i < len(c.items); i++ {
			c.items[i] = models.Bookmark{}
		}
		c.items = kept
	}
}

// Items returns a copy of the current sequence.
func (c *Collection) Items() []models.Bookmark {
	out := make([]models.Bookmark, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of elements.
func (c *Collection) Len() int {
	return len(c.items)
}
