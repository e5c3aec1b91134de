package models

import (
	"errors"
	"fmt"
	"strings"
)

// Item is a placeable item offered to the audience each round.
type Item struct {
	Key   string `json:"key" yaml:"key"`
	Emoji string `json:"emoji" yaml:"emoji"`
	Label string `json:"label" yaml:"label"`
}

// Catalog is the fixed, ordered set of items. The position of an item is also
// its event type on the game wire, so the order must match the running game.
type Catalog struct {
	items []Item
	index map[string]int
}

var (
	ErrEmptyCatalog  = errors.New("catalog has no items")
	ErrDuplicateItem = errors.New("duplicate item key")
)

// NewCatalog validates items and freezes their order.
func NewCatalog(items []Item) (*Catalog, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		items: make([]Item, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, it := range items {
		key := strings.ToLower(strings.TrimSpace(it.Key))
		if key == "" {
			return nil, fmt.Errorf("item %q: empty key", it.Label)
		}
		if _, dup := c.index[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, key)
		}
		it.Key = key
		c.index[key] = len(c.items)
		c.items = append(c.items, it)
	}
	return c, nil
}

// DefaultItems is the catalog the game ships with.
func DefaultItems() []Item {
	return []Item{
		{Key: "freeze", Emoji: "🧊", Label: "Freeze Orb"},
		{Key: "fire", Emoji: "🔥", Label: "Power Core"},
		{Key: "wind", Emoji: "💨", Label: "Wind Boots"},
		{Key: "shield", Emoji: "🧱", Label: "Shield Stone"},
		{Key: "chaos", Emoji: "🎭", Label: "Chaos Mask"},
		{Key: "warp", Emoji: "🌀", Label: "Space Warp"},
		{Key: "bomb", Emoji: "⏳", Label: "Time Bomb"},
		{Key: "spout", Emoji: "🌋", Label: "Flame Spout"},
		{Key: "gravity", Emoji: "🌑", Label: "Gravity Well"},
		{Key: "shock", Emoji: "⚡", Label: "Shock Pulse"},
		{Key: "tornado", Emoji: "🌪️", Label: "Micro Tornado"},
		{Key: "meteor", Emoji: "💥", Label: "Impact Meteor"},
		{Key: "luck", Emoji: "🌈", Label: "Luck Capsule"},
		{Key: "seed", Emoji: "🌿", Label: "Growth Seed"},
	}
}

// Items returns a copy of the catalog in order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Keys returns the item keys in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.items))
	for i, it := range c.items {
		keys[i] = it.Key
	}
	return keys
}

// Lookup returns the item for key.
func (c *Catalog) Lookup(key string) (Item, bool) {
	i, ok := c.index[key]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Index returns the catalog position of key, or -1.
func (c *Catalog) Index(key string) int {
	if i, ok := c.index[key]; ok {
		return i
	}
	return -1
}

func (c *Catalog) Len() int { return len(c.items) }
