// Package requestcache holds recently computed results keyed by item
// identity in two tiers: a strong LRU of the most recently used entries,
// and a weak LRU of entries the garbage collector may reclaim.
//
// A Cache is not safe for concurrent use. It is meant to be owned by a
// single goroutine, such as a Bubble Tea update loop.
package requestcache

import (
	"weak"

	"github.com/vimeo/galaxycache/lru"
)

// DefaultSize is the default capacity of each tier.
const DefaultSize = 5

// entry boxes a value so the weak tier has a heap object to point at.
type entry[V any] struct {
	v V
}

// Cache is a bounded two-tier LRU map.
type Cache[K comparable, V any] struct {
	strongSize int
	weakSize   int
	hard       *lru.TypedCache[K, *entry[V]]
	soft       *lru.TypedCache[K, weak.Pointer[entry[V]]]
}

// New creates a Cache holding up to strongSize entries strongly and up to
// weakSize entries weakly. Non-positive sizes fall back to DefaultSize.
func New[K comparable, V any](strongSize, weakSize int) *Cache[K, V] {
	if strongSize <= 0 {
		strongSize = DefaultSize
	}
	if weakSize <= 0 {
		weakSize = DefaultSize
	}
	c := &Cache[K, V]{strongSize: strongSize, weakSize: weakSize}
	c.reset()
	return c
}

// NewStrongOnly creates a Cache without a weak tier. Entries evicted from
// the strong tier are dropped immediately.
func NewStrongOnly[K comparable, V any](size int) *Cache[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	c := &Cache[K, V]{strongSize: size}
	c.reset()
	return c
}

func (c *Cache[K, V]) reset() {
	c.hard = &lru.TypedCache[K, *entry[V]]{MaxEntries: c.strongSize}
	if c.weakSize == 0 {
		c.soft = nil
		return
	}
	c.soft = &lru.TypedCache[K, weak.Pointer[entry[V]]]{MaxEntries: c.weakSize}
	c.hard.OnEvicted = c.demote
}

// demote moves an entry evicted from the strong tier into the weak tier.
func (c *Cache[K, V]) demote(k K, e *entry[V]) {
	c.soft.Add(k, weak.Make(e))
}

// Get returns the value stored for k. A weak entry that is still alive is
// promoted back to the strong tier; a reclaimed one is dropped and
// reported as a miss.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	if e, ok := c.hard.Get(k); ok {
		return e.v, true
	}
	var zero V
	if c.soft == nil {
		return zero, false
	}
	p, ok := c.soft.Get(k)
	if !ok {
		return zero, false
	}
	c.soft.Remove(k)
	e := p.Value()
	if e == nil {
		return zero, false
	}
	c.hard.Add(k, e)
	return e.v, true
}

// Set stores v for k, replacing any entry for k in either tier.
func (c *Cache[K, V]) Set(k K, v V) {
	if c.soft != nil {
		c.soft.Remove(k)
	}
	c.hard.Add(k, &entry[V]{v: v})
}

// Remove drops any entry for k.
func (c *Cache[K, V]) Remove(k K) {
	if c.soft != nil {
		c.soft.Remove(k)
	}
	// Removing from the strong tier would demote through OnEvicted.
	if _, ok := c.hard.Get(k); ok {
		c.hard.OnEvicted = nil
		c.hard.Remove(k)
		if c.soft != nil {
			c.hard.OnEvicted = c.demote
		}
	}
}

// Clear drops every entry in both tiers.
func (c *Cache[K, V]) Clear() {
	c.reset()
}

// Len returns the number of strongly held entries.
func (c *Cache[K, V]) Len() int {
	return c.hard.Len()
}

// WeakLen returns the number of weak entries, including ones the garbage
// collector has already reclaimed but Get has not yet observed.
func (c *Cache[K, V]) WeakLen() int {
	if c.soft == nil {
		return 0
	}
	return c.soft.Len()
}
