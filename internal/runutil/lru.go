// internal/runutil/lru.go
package runutil

import "container/list"

// LRUMap is a size-bounded map with O(1) get/put and least-recently-used
// eviction.
type LRUMap[K comparable, V any] struct {
	cap int
	ll  *list.List
	m   map[K]*list.Element
}

type lruNode[K comparable, V any] struct {
	k K
	v V
}

func NewLRUMap[K comparable, V any](capacity int) *LRUMap[K, V] {
	if capacity <= 0 {
		capacity = 1 << 16
	}
	return &LRUMap[K, V]{cap: capacity, ll: list.New(), m: make(map[K]*list.Element)}
}

// Get returns the value for k and marks it recently used.
func (c *LRUMap[K, V]) Get(k K) (V, bool) {
	if e, ok := c.m[k]; ok {
		c.ll.MoveToFront(e)
		return e.Value.(*lruNode[K, V]).v, true
	}
	var zero V
	return zero, false
}

// Put stores v under k, evicting the least recently used entry when full.
// It reports whether an entry was evicted.
func (c *LRUMap[K, V]) Put(k K, v V) bool {
	if e, ok := c.m[k]; ok {
		e.Value.(*lruNode[K, V]).v = v
		c.ll.MoveToFront(e)
		return false
	}
	c.m[k] = c.ll.PushFront(&lruNode[K, V]{k: k, v: v})
	if c.ll.Len() <= c.cap {
		return false
	}
	tail := c.ll.Back()
	c.ll.Remove(tail)
	delete(c.m, tail.Value.(*lruNode[K, V]).k)
	return true
}

// Delete removes k if present.
func (c *LRUMap[K, V]) Delete(k K) {
	if e, ok := c.m[k]; ok {
		c.ll.Remove(e)
		delete(c.m, k)
	}
}

func (c *LRUMap[K, V]) Len() int { return c.ll.Len() }
