// ABOUTME: Thread-safe TTL cache remembering recently relayed message keys
// ABOUTME: Lets each node deliver a cross-node event at most once within the window

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry is one remembered key. Entries live in the order list oldest first;
// every entry shares the same TTL so list order is also expiry order.
type entry struct {
	key     string
	expires time.Time
}

// Cache remembers keys for a fixed TTL, holding at most maxSize of them.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a cache and starts a background sweeper that runs every ttl/2
// (at least once per second, at most once per minute).
func New(ttl time.Duration, maxSize int) *Cache {
	c := newCache(ttl, maxSize, time.Now)
	go c.sweep(sweepInterval(ttl))
	return c
}

func newCache(ttl time.Duration, maxSize int, now func() time.Time) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
}

func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval < time.Second {
		return time.Second
	}
	if interval > time.Minute {
		return time.Minute
	}
	return interval
}

// Seen reports whether key was admitted within the TTL.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	return ok && c.now().Before(elem.Value.(*entry).expires)
}

// Admit records key and reports whether it was new. A false result means the
// key was already admitted within the TTL and the caller should drop it.
func (c *Cache) Admit(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.entries[key]; ok {
		if now.Before(elem.Value.(*entry).expires) {
			return false
		}
		c.removeLocked(elem)
	}

	c.expireLocked(now)
	for len(c.entries) >= c.maxSize {
		c.removeLocked(c.order.Front())
	}

	c.entries[key] = c.order.PushBack(&entry{key: key, expires: now.Add(c.ttl)})
	return true
}

// Len returns the number of remembered keys, including any not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// expireLocked drops expired entries from the front of the order list.
func (c *Cache) expireLocked(now time.Time) {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		if now.Before(front.Value.(*entry).expires) {
			return
		}
		c.removeLocked(front)
	}
}

func (c *Cache) removeLocked(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*entry).key)
}

func (c *Cache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.expireLocked(c.now())
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

// Close stops the background sweeper. It is safe to call multiple times.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
