// Package cache provides the bounded, concurrency-safe metadata cache
// sitting in front of inode, directory, and extent-map decoding (spec §5).
// No example repo in the corpus imports a third-party LRU; container/list
// gives the same O(1) move-to-front/evict primitives the standard library
// documents for exactly this use, so it is used here in place of one (see
// DESIGN.md). Concurrent request collapsing for duplicate in-flight keys
// uses golang.org/x/sync/singleflight, the same library rawhide's detect
// package would reach for under concurrent probing (see DESIGN.md).
package cache

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultCapacity is the default number of entries kept per Cache.
const DefaultCapacity = 1024

// Cache is a bounded LRU keyed by an arbitrary comparable key, with
// singleflight collapsing of concurrent misses for the same key.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	cap      int
	ll       *list.List
	items    map[K]*list.Element
	group    singleflight.Group
	keyToStr func(K) string
}

type entry[K comparable, V any] struct {
	key K
	val V
}

// New builds a Cache holding at most capacity entries. keyToStr renders a
// key to the string singleflight.Group keys its in-flight call table by.
func New[K comparable, V any](capacity int, keyToStr func(K) string) *Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[K, V]{
		cap:      capacity,
		ll:       list.New(),
		items:    make(map[K]*list.Element),
		keyToStr: keyToStr,
	}
}

// Get returns the cached value for key, if present, moving it to the front
// of the eviction order.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*entry[K, V]).val, true
	}
	var zero V
	return zero, false
}

// Put inserts or updates key's cached value, evicting the least recently
// used entry if the cache is at capacity.
func (c *Cache[K, V]) Put(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).val = val
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&entry[K, V]{key: key, val: val})
	c.items[key] = el
	if c.ll.Len() > c.cap {
		c.evictOldest()
	}
}

func (c *Cache[K, V]) evictOldest() {
	oldest := c.ll.Back()
	if oldest == nil {
		return
	}
	c.ll.Remove(oldest)
	delete(c.items, oldest.Value.(*entry[K, V]).key)
}

// GetOrLoad returns the cached value for key, computing and inserting it
// via load on a miss. Concurrent GetOrLoad calls for the same key share a
// single in-flight load (singleflight.Group.Do), so a hot block under
// parallel reads is decoded exactly once.
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(c.keyToStr(key), func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Len reports the number of entries currently cached.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
