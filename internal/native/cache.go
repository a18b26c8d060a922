package native

import (
	"container/list"
	"sync"
)

// operationCache keeps built operations keyed by their inputs, evicting the
// least recently used entry past max. Each entry holds one reference to its
// operation; get hands out a further reference to the caller.
type operationCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

type cacheEntry struct {
	key string
	op  *Operation
}

func newOperationCache(max int) *operationCache {
	return &operationCache{
		max:     max,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *operationCache) get(key string) *Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil
	}
	c.order.MoveToFront(el)
	op := el.Value.(*cacheEntry).op
	op.Ref()
	return op
}

func (c *operationCache) put(key string, op *Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.max <= 0 {
		return
	}
	if _, ok := c.entries[key]; ok {
		return
	}
	op.Ref()
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, op: op})
	c.trimLocked()
}

func (c *operationCache) remove(op *Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, el := range c.entries {
		if el.Value.(*cacheEntry).op == op {
			c.order.Remove(el)
			delete(c.entries, key)
			op.Release()
			return
		}
	}
}

func (c *operationCache) setMax(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.max = n
	c.trimLocked()
}

func (c *operationCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *operationCache) dropAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.order.Len() > 0 {
		c.evictLocked(c.order.Back())
	}
}

func (c *operationCache) trimLocked() {
	for c.order.Len() > max(c.max, 0) {
		c.evictLocked(c.order.Back())
	}
}

func (c *operationCache) evictLocked(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	c.order.Remove(el)
	delete(c.entries, entry.key)
	entry.op.Release()
}
