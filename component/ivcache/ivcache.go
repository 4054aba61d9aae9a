// Package ivcache keeps the IVs of recently accepted handshakes so a replayed
// handshake can be refused.
package ivcache

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the number of IVs remembered per listener.
const DefaultCapacity = 1000

// Cache is a bounded, insertion-ordered set of IVs with FIFO eviction. One
// Cache is shared by every server session of a listener.
type Cache struct {
	capacity int
	list     *list.List
	index    map[string]*list.Element
	m        sync.Mutex
}

func New(cap int) *Cache {
	if cap <= 0 {
		cap = DefaultCapacity
	}
	return &Cache{
		capacity: cap,
		list:     list.New(),
		index:    make(map[string]*list.Element, cap+1),
	}
}

// Add reports whether iv was unseen and records it. The membership check and
// the insert happen under one lock, so of two racing callers with the same iv
// exactly one gets true.
func (c *Cache) Add(iv []byte) bool {
	key := string(iv)

	c.m.Lock()
	defer c.m.Unlock()
	if _, exist := c.index[key]; exist {
		return false
	}
	c.index[key] = c.list.PushBack(key)
	if c.list.Len() > c.capacity {
		oldest := c.list.Front()
		c.list.Remove(oldest)
		delete(c.index, oldest.Value.(string))
	}
	return true
}

func (c *Cache) Contains(iv []byte) bool {
	c.m.Lock()
	defer c.m.Unlock()
	_, exist := c.index[string(iv)]
	return exist
}

func (c *Cache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return c.list.Len()
}
