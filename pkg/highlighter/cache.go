package highlighter

import (
	"container/list"
	"sync"
)

// DefaultCacheSize is the number of rendered lines kept
const DefaultCacheSize = 4096

type cacheEntry struct {
	key      string
	segments []Segment
}

// lineCache is a fixed size LRU of rendered lines
type lineCache struct {
	mu      sync.Mutex
	size    int
	order   *list.List
	entries map[string]*list.Element
	hits    uint64
	misses  uint64
}

func newLineCache(size int) *lineCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &lineCache{
		size:    size,
		order:   list.New(),
		entries: make(map[string]*list.Element, size),
	}
}

func (c *lineCache) get(key string) ([]Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).segments, true
}

func (c *lineCache) add(key string, segments []Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).segments = segments
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, segments: segments})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *lineCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element, c.size)
}

func (c *lineCache) stats() (hits, misses uint64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.order.Len()
}
