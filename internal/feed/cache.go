package feed

import (
	"container/list"
	"sync"
	"time"
)

const extractCacheMaxEntries = 512

// extractCache remembers extracted article text per URL for ttl, evicting
// the least recently used entry beyond maxEntries. A nil cache stores nothing.
type extractCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

type extractCacheEntry struct {
	url       string
	text      string
	expiresAt time.Time
}

func newExtractCache(maxEntries int, ttl time.Duration) *extractCache {
	if maxEntries <= 0 || ttl <= 0 {
		return nil
	}

	return &extractCache{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (c *extractCache) get(url string) (string, bool) {
	if c == nil || url == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[url]
	if !ok {
		return "", false
	}

	entry := elem.Value.(*extractCacheEntry) //nolint:forcetypeassert // Only entries are stored.
	if c.now().After(entry.expiresAt) {
		c.remove(elem)

		return "", false
	}

	c.order.MoveToFront(elem)

	return entry.text, true
}

func (c *extractCache) put(url string, text string) {
	if c == nil || url == "" || text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiresAt := now.Add(c.ttl)

	if elem, ok := c.entries[url]; ok {
		entry := elem.Value.(*extractCacheEntry) //nolint:forcetypeassert // Only entries are stored.
		entry.text = text
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	c.entries[url] = c.order.PushFront(&extractCacheEntry{
		url:       url,
		text:      text,
		expiresAt: expiresAt,
	})

	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*extractCacheEntry).expiresAt) { //nolint:forcetypeassert // Only entries are stored.
			c.remove(elem)
		}
		elem = prev
	}

	for len(c.entries) > c.maxEntries {
		c.remove(c.order.Back())
	}
}

func (c *extractCache) len() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *extractCache) remove(elem *list.Element) {
	delete(c.entries, elem.Value.(*extractCacheEntry).url) //nolint:forcetypeassert // Only entries are stored.
	c.order.Remove(elem)
}
