package sync

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/unioncms/unioncms/internal/domain"
)

// Cache is the local content cache: a disposable, rebuildable projection of
// the remote store, one slice per collection. It serves instant reads and is
// refreshed by subscription callbacks.
type Cache struct {
	store *gocache.Cache
}

func NewCache() *Cache {
	return &Cache{
		store: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

// ReplaceCollection swaps the cached slice for a collection wholesale.
func (c *Cache) ReplaceCollection(kind domain.Kind, items []domain.Item) {
	c.store.Set(string(kind), items, gocache.NoExpiration)
}

// Collection returns the cached slice for a collection, or nil when the
// collection has not been fetched yet.
func (c *Cache) Collection(kind domain.Kind) []domain.Item {
	cached, found := c.store.Get(string(kind))
	if !found {
		return nil
	}
	items, ok := cached.([]domain.Item)
	if !ok {
		return nil
	}
	return items
}

// Item scans the cached collection for one document.
func (c *Cache) Item(kind domain.Kind, id string) (domain.Item, bool) {
	for _, item := range c.Collection(kind) {
		if item.ID == id {
			return item, true
		}
	}
	return domain.Item{}, false
}

// Upsert replaces or appends one document in the cached collection.
func (c *Cache) Upsert(item domain.Item) {
	items := c.Collection(item.Kind)
	for i := range items {
		if items[i].ID == item.ID {
			next := make([]domain.Item, len(items))
			copy(next, items)
			next[i] = item
			c.ReplaceCollection(item.Kind, next)
			return
		}
	}
	next := make([]domain.Item, 0, len(items)+1)
	next = append(next, items...)
	next = append(next, item)
	c.ReplaceCollection(item.Kind, next)
}

// Remove drops one document from the cached collection.
func (c *Cache) Remove(kind domain.Kind, id string) {
	items := c.Collection(kind)
	next := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			next = append(next, item)
		}
	}
	c.ReplaceCollection(kind, next)
}

// Clear drops every cached collection.
func (c *Cache) Clear() {
	c.store.Flush()
}
