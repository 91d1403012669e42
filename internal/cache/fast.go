package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the fast tier when no size is configured.
const DefaultMaxEntries = 200

// MemoryCache is a [FastCache] that evicts the oldest inserted entry once full.
//
// Eviction is by insertion order, not recency: reading an entry or overwriting an
// existing key does not move it.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List
	items      map[string]*list.Element
}

// NewMemoryCache creates a [MemoryCache] holding at most maxEntries.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

func (c *MemoryCache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	return el.Value.(Entry), true
}

// Set stores entry. A new key evicts the oldest entry when the cache is full; an existing key is updated in place.
func (c *MemoryCache) Set(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[entry.Key]; ok {
		el.Value = entry
		return
	}

	if c.order.Len() >= c.maxEntries {
		c.removeElement(c.order.Front())
	}
	c.items[entry.Key] = c.order.PushBack(entry)
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

func (c *MemoryCache) DeleteExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(Entry).Expired(now) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

// Trim evicts the oldest entries until at most n remain and returns how many were dropped.
func (c *MemoryCache) Trim(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for c.order.Len() > n && c.order.Len() > 0 {
		c.removeElement(c.order.Front())
		removed++
	}
	return removed
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element)
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys lists keys from oldest to newest.
func (c *MemoryCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(Entry).Key)
	}
	return keys
}

func (c *MemoryCache) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.items, el.Value.(Entry).Key)
}
