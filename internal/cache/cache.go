// Package cache is a small in-process key/value store with per-entry expiry.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value   string
	expires time.Time
}

// TTL is safe for concurrent use. Expired entries are dropped lazily on Get
// and swept on Set.
type TTL struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New returns an empty cache that reads the time from now (time.Now if nil).
func New(now func() time.Time) *TTL {
	if now == nil {
		now = time.Now
	}
	return &TTL{entries: map[string]entry{}, now: now}
}

// Set stores value under key for ttl, replacing any previous value.
func (c *TTL) Set(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry{value: value, expires: now.Add(ttl)}
}

// Get returns the value under key if it has not expired.
func (c *TTL) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

func (c *TTL) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
