package cache

import (
	"math"
	"reflect"
	"sync"
)

const nilIndex int32 = -1

type entry[K comparable, V any] struct {
	key   K
	value V
	cost  int
	prev  int32
	next  int32
}

// LRU is a thread-safe least-recently-used cache bounded by both total cost
// and entry count. Entries live in a slice arena linked by indices; freed
// slots are recycled through a free list. Limits <= 0 mean unbounded.
type LRU[K comparable, V any] struct {
	mu         sync.Mutex
	index      map[K]int32
	entries    []entry[K, V]
	free       []int32
	head, tail int32 // head is most recent, tail least recent
	totalCost  int
	costLimit  int
	countLimit int
}

// NewLRU creates an empty cache.
func NewLRU[K comparable, V any](costLimit, countLimit int) *LRU[K, V] {
	return &LRU[K, V]{
		index:      make(map[K]int32),
		head:       nilIndex,
		tail:       nilIndex,
		costLimit:  normalizeLimit(costLimit),
		countLimit: normalizeLimit(countLimit),
	}
}

func normalizeLimit(n int) int {
	if n <= 0 {
		return math.MaxInt
	}
	return n
}

// SetValue inserts or replaces key and marks it most recent, then evicts
// from the least-recent end until both limits hold. A nil value removes key.
func (c *LRU[K, V]) SetValue(key K, value V, cost int) {
	if isNil(value) {
		c.RemoveValue(key)
		return
	}
	if cost < 0 {
		cost = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[key]; ok {
		e := &c.entries[i]
		c.totalCost += cost - e.cost
		e.value = value
		e.cost = cost
		c.moveToFrontLocked(i)
	} else {
		i := c.allocLocked(entry[K, V]{key: key, value: value, cost: cost, prev: nilIndex, next: nilIndex})
		c.index[key] = i
		c.pushFrontLocked(i)
		c.totalCost += cost
	}
	c.evictLocked()
}

// Value returns the value for key and marks it most recent.
func (c *LRU[K, V]) Value(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFrontLocked(i)
	return c.entries[i].value, true
}

// Contains reports presence without touching recency.
func (c *LRU[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[key]
	return ok
}

// RemoveValue deletes key and returns the value it held.
func (c *LRU[K, V]) RemoveValue(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	v := c.entries[i].value
	c.removeLocked(i)
	return v, true
}

// RemoveAllValues empties the cache.
func (c *LRU[K, V]) RemoveAllValues() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.index)
	clear(c.entries)
	c.entries = c.entries[:0]
	c.free = c.free[:0]
	c.head, c.tail = nilIndex, nilIndex
	c.totalCost = 0
}

// Clear empties the cache. Hosts call it on memory pressure.
func (c *LRU[K, V]) Clear() { c.RemoveAllValues() }

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// TotalCost returns the summed cost of all entries.
func (c *LRU[K, V]) TotalCost() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalCost
}

// CostLimit returns the cost bound.
func (c *LRU[K, V]) CostLimit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.costLimit
}

// CountLimit returns the entry-count bound.
func (c *LRU[K, V]) CountLimit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countLimit
}

// SetCostLimit changes the cost bound and evicts as needed.
func (c *LRU[K, V]) SetCostLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.costLimit = normalizeLimit(n)
	c.evictLocked()
}

// SetCountLimit changes the entry-count bound and evicts as needed.
func (c *LRU[K, V]) SetCountLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.countLimit = normalizeLimit(n)
	c.evictLocked()
}

// Keys returns keys from least to most recent.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, len(c.index))
	for i := c.tail; i != nilIndex; i = c.entries[i].prev {
		keys = append(keys, c.entries[i].key)
	}
	return keys
}

// Values returns values from least to most recent.
func (c *LRU[K, V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()
	vals := make([]V, 0, len(c.index))
	for i := c.tail; i != nilIndex; i = c.entries[i].prev {
		vals = append(vals, c.entries[i].value)
	}
	return vals
}

// Subscribe empties the cache every time signal fires until unsubscribe is
// called or signal is closed.
func (c *LRU[K, V]) Subscribe(signal <-chan struct{}) (unsubscribe func()) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			case _, ok := <-signal:
				if !ok {
					return
				}
				c.RemoveAllValues()
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped
		})
	}
}

// evictLocked drops least-recent entries until both limits hold.
func (c *LRU[K, V]) evictLocked() {
	for c.tail != nilIndex && (c.totalCost > c.costLimit || len(c.index) > c.countLimit) {
		c.removeLocked(c.tail)
	}
}

func (c *LRU[K, V]) allocLocked(e entry[K, V]) int32 {
	if n := len(c.free); n > 0 {
		i := c.free[n-1]
		c.free = c.free[:n-1]
		c.entries[i] = e
		return i
	}
	c.entries = append(c.entries, e)
	return int32(len(c.entries) - 1)
}

func (c *LRU[K, V]) removeLocked(i int32) {
	c.unlinkLocked(i)
	e := &c.entries[i]
	delete(c.index, e.key)
	c.totalCost -= e.cost
	*e = entry[K, V]{prev: nilIndex, next: nilIndex}
	c.free = append(c.free, i)
}

func (c *LRU[K, V]) pushFrontLocked(i int32) {
	e := &c.entries[i]
	e.prev = nilIndex
	e.next = c.head
	if c.head != nilIndex {
		c.entries[c.head].prev = i
	}
	c.head = i
	if c.tail == nilIndex {
		c.tail = i
	}
}

func (c *LRU[K, V]) unlinkLocked(i int32) {
	e := &c.entries[i]
	if e.prev != nilIndex {
		c.entries[e.prev].next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nilIndex {
		c.entries[e.next].prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nilIndex, nilIndex
}

func (c *LRU[K, V]) moveToFrontLocked(i int32) {
	if c.head == i {
		return
	}
	c.unlinkLocked(i)
	c.pushFrontLocked(i)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
