// internal/media/collection.go
package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/AlverezYari/camroll/pkg/medialib"
	"github.com/rs/zerolog/log"
)

// AssetSource lists existing library contents.
type AssetSource interface {
	ListAssets(ctx context.Context) ([]medialib.Asset, error)
}

// Collection is the newest-first set of media shown in the gallery. Item IDs
// are unique and every item has a non-empty URI.
type Collection struct {
	mu          sync.RWMutex
	items       []Item
	subscribers map[chan struct{}]struct{}
}

func NewCollection() *Collection {
	return &Collection{subscribers: make(map[chan struct{}]struct{})}
}

// Load replaces the collection wholesale. Items without a URI and repeated
// IDs are dropped; the first occurrence wins.
func (c *Collection) Load(items []Item) {
	seen := make(map[ID]struct{}, len(items))
	next := make([]Item, 0, len(items))
	for _, item := range items {
		if item.URI == "" {
			log.Warn().Str("id", string(item.ID)).Msg("Dropping media item without a locator")
			continue
		}
		if _, dup := seen[item.ID]; dup {
			log.Warn().Str("id", string(item.ID)).Msg("Dropping duplicate media item")
			continue
		}
		seen[item.ID] = struct{}{}
		next = append(next, item)
	}

	c.mu.Lock()
	c.items = next
	c.mu.Unlock()
	c.notify()
}

// LoadFrom hydrates the collection from src. When src fails the collection
// is emptied and the error returned for reporting.
func (c *Collection) LoadFrom(ctx context.Context, src AssetSource) error {
	assets, err := src.ListAssets(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load media library")
		c.Load(nil)
		return fmt.Errorf("%w: %w", ErrLoadFailure, err)
	}
	c.Load(FromAssets(assets))
	return nil
}

// Prepend inserts item at the front. It reports false, leaving the
// collection untouched, when the ID is already present or the URI is empty.
func (c *Collection) Prepend(item Item) bool {
	if item.URI == "" {
		log.Warn().Str("id", string(item.ID)).Msg("Rejecting media item without a locator")
		return false
	}

	c.mu.Lock()
	for _, existing := range c.items {
		if existing.ID == item.ID {
			c.mu.Unlock()
			log.Warn().Str("id", string(item.ID)).Msg("Rejecting duplicate media item")
			return false
		}
	}
	next := make([]Item, 0, len(c.items)+1)
	next = append(next, item)
	c.items = append(next, c.items...)
	c.mu.Unlock()

	c.notify()
	return true
}

// Snapshot returns a copy of the items, newest first.
func (c *Collection) Snapshot() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Lookup finds an item by ID.
func (c *Collection) Lookup(id ID) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// Subscribe returns a channel that receives a signal after each change.
// Signals coalesce; a slow reader sees at least one after the last change.
func (c *Collection) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, ch)
			c.mu.Unlock()
		})
	}
}

func (c *Collection) notify() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for ch := range c.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
