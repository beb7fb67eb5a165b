// Package lru is a size-bounded least-recently-used cache with optional
// expiry.
//
// A Cache is not safe for concurrent use. It is meant to be actor state,
// touched only from the owning actor's handler.
package lru

import (
	"container/list"
	"time"
)

type Options struct {
	// Size defaults to 128.
	Size int
	// TTL expires entries this long after Put. Zero keeps them until evicted.
	TTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type entry[V any] struct {
	key     string
	val     V
	expires time.Time
}

type Cache[V any] struct {
	size  int
	ttl   time.Duration
	now   func() time.Time
	ll    *list.List
	items map[string]*list.Element
}

func New[V any](opts Options) *Cache[V] {
	if opts.Size <= 0 {
		opts.Size = 128
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache[V]{
		size:  opts.Size,
		ttl:   opts.TTL,
		now:   opts.Now,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

// Get returns the value for key and marks it as recently used. Expired
// entries are removed and reported as missing.
func (c *Cache[V]) Get(key string) (v V, ok bool) {
	ele, ok := c.items[key]
	if !ok {
		return v, false
	}
	e := ele.Value.(*entry[V])
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.remove(ele)
		return v, false
	}
	c.ll.MoveToFront(ele)
	return e.val, true
}

// Put stores val, evicting the least recently used entry when full.
func (c *Cache[V]) Put(key string, val V) {
	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}
	if ele, ok := c.items[key]; ok {
		c.ll.MoveToFront(ele)
		e := ele.Value.(*entry[V])
		e.val, e.expires = val, expires
		return
	}
	c.items[key] = c.ll.PushFront(&entry[V]{key: key, val: val, expires: expires})
	if c.ll.Len() > c.size {
		c.remove(c.ll.Back())
	}
}

func (c *Cache[V]) Delete(key string) {
	if ele, ok := c.items[key]; ok {
		c.remove(ele)
	}
}

func (c *Cache[V]) Len() int { return c.ll.Len() }

func (c *Cache[V]) remove(ele *list.Element) {
	c.ll.Remove(ele)
	delete(c.items, ele.Value.(*entry[V]).key)
}
