package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LRU is an in-process Store with TTL and size-based eviction.
type LRU struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
}

type lruItem struct {
	key       string
	value     string
	expiresAt time.Time
}

// NewLRU creates a new LRU cache with TTL.
func NewLRU(maxSize int, ttl time.Duration) *LRU {
	return &LRU{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get retrieves a value from the cache.
func (c *LRU) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		return "", false
	}
	item := elem.Value.(*lruItem)
	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return "", false
	}

	c.order.MoveToFront(elem)
	return item.value, true
}

// Set stores a value, evicting the least recently used entry when over
// capacity.
func (c *LRU) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &lruItem{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.order.MoveToFront(elem)
		return nil
	}

	c.items[key] = c.order.PushFront(item)
	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
	return nil
}

// Delete removes a key if present.
func (c *LRU) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
	return nil
}

func (c *LRU) removeElement(elem *list.Element) {
	item := elem.Value.(*lruItem)
	delete(c.items, item.key)
	c.order.Remove(elem)
}

// CleanExpired removes all expired entries and reports how many were dropped.
func (c *LRU) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*lruItem).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}
