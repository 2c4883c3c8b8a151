// Package cache is the ephemeral tier: volatile, re-derivable data
// (balances, prices, gas estimates, NFT and DApp metadata, swap
// quotes) keyed with per-class TTLs. Nothing in this tier is secret
// and everything can be dropped at any time.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Class selects the expiry policy for an entry.
type Class string

const (
	ClassBalance Class = "balance"
	ClassPrice   Class = "price"
	ClassGas     Class = "gas"
	ClassNFT     Class = "nft"
	ClassDApp    Class = "dapp"
	ClassQuote   Class = "quote"
	ClassHistory Class = "history"
)

// Priority hints at eviction order when an integrator bounds the
// cache size. Expiry correctness never depends on it.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// DefaultTTLs per entry class.
var DefaultTTLs = map[Class]time.Duration{
	ClassBalance: 30 * time.Second,
	ClassPrice:   60 * time.Second,
	ClassGas:     15 * time.Second,
	ClassNFT:     5 * time.Minute,
	ClassDApp:    24 * time.Hour,
	ClassQuote:   30 * time.Second,
	ClassHistory: 24 * time.Hour,
}

type entry struct {
	value       interface{}
	class       Class
	priority    Priority
	lastUpdated time.Time
	// validUntil is set for quote entries only: a quote is a
	// time-bounded price commitment, so its deadline is absolute
	// rather than rolling.
	validUntil time.Time
	ttl        time.Duration
}

// expired evaluates the entry against its own timestamps, never
// against cache-wide state. This is what makes SweepExpired safe to
// race with Set: a sweep only removes an entry that is stale by its
// own clock, so a fresh Set under the same key survives.
func (e *entry) expired(now time.Time) bool {
	if !e.validUntil.IsZero() && !now.Before(e.validUntil) {
		return true
	}
	return now.Sub(e.lastUpdated) > e.ttl
}

// Cache is a concurrency-safe TTL map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttls    map[Class]time.Duration
	now     func() time.Time
}

// New creates a cache with the default TTL classes.
func New() *Cache {
	return NewWithTTLs(nil)
}

// NewWithTTLs creates a cache with per-class TTL overrides.
func NewWithTTLs(overrides map[Class]time.Duration) *Cache {
	ttls := make(map[Class]time.Duration, len(DefaultTTLs))
	for class, ttl := range DefaultTTLs {
		ttls[class] = ttl
	}
	for class, ttl := range overrides {
		ttls[class] = ttl
	}
	return &Cache{
		entries: make(map[string]*entry),
		ttls:    ttls,
		now:     time.Now,
	}
}

// Set stores a value under the class's TTL.
func (c *Cache) Set(key string, value interface{}, class Class, priority Priority) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{
		value:       value,
		class:       class,
		priority:    priority,
		lastUpdated: c.now(),
		ttl:         c.ttls[class],
	}
}

// SetQuote stores a swap quote bounded by an explicit deadline. The
// class TTL still applies as an upper bound.
func (c *Cache) SetQuote(key string, value interface{}, validUntil time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{
		value:       value,
		class:       ClassQuote,
		priority:    PriorityNormal,
		lastUpdated: c.now(),
		validUntil:  validUntil,
		ttl:         c.ttls[ClassQuote],
	}
}

// Get returns the value, or false if the key is missing or expired.
// Expired entries are never returned even if a sweep has not run yet.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.value, true
}

// Invalidate removes every entry whose key starts with the prefix.
// Returns the number of entries removed.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// SweepExpired drops physically present but expired entries. It is an
// optimization only; Get is already lazy. Idempotent and safe to call
// concurrently with Get/Set.
func (c *Cache) SweepExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// ClearAll empties the cache. Called on lock and security resets; it
// touches nothing outside this tier.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len reports the number of physically present entries, expired or
// not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
