// Package cache provides the bounded, bidirectional handle/DID mapping cache.
//
// Every entry is reachable from both its handle and its DID, and the two
// indexes always describe the same set of pairs: a handle maps to at most one
// DID and a DID to at most one handle. Entries expire lazily, at read time,
// once their TTL has passed. When a brand-new pair is inserted into a full
// cache the entry with the oldest access time is evicted.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/atref/atref/internal/identity"
	"github.com/atref/atref/internal/telemetry"
)

const (
	// DefaultCapacity is the maximum number of pairs held by default
	DefaultCapacity = 100

	// DefaultTTL is how long a pair stays valid after it was written
	DefaultTTL = time.Hour

	directionHandle = "handle"
	directionDID    = "did"
)

// Entry is one handle/DID pair
type Entry struct {
	Handle         string
	DID            string
	LastAccessedAt time.Time
	ExpiresAt      time.Time
}

// Stats reports cache effectiveness
type Stats struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
	Size   int `json:"size"`
}

// Observer is notified synchronously after every mutation with a fresh
// snapshot of the cache. Returned errors are logged and never undo the
// mutation.
type Observer func(ctx context.Context, snap Snapshot) error

// Cache is the bidirectional mapping. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	byHandle map[string]*Entry
	byDID    map[string]*Entry
	hits     int
	misses   int

	capacity int
	ttl      time.Duration
	clock    clock.PassiveClock
	observer Observer
	metrics  *telemetry.CacheMetrics

	// version increases with every mutation under mu. notifyMu orders
	// observer calls; snapshots older than notified are dropped.
	version  uint64
	notifyMu sync.Mutex
	notified uint64
}

// Option configures a Cache
type Option func(*Cache)

// WithCapacity sets the maximum number of pairs; values below 1 are ignored
func WithCapacity(capacity int) Option {
	return func(c *Cache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithTTL sets the entry lifetime; non-positive values are ignored
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source
func WithClock(clk clock.PassiveClock) Option {
	return func(c *Cache) {
		c.clock = clk
	}
}

// WithObserver sets the mutation observer
func WithObserver(observer Observer) Option {
	return func(c *Cache) {
		c.observer = observer
	}
}

// WithMetrics sets the cache metrics
func WithMetrics(metrics *telemetry.CacheMetrics) Option {
	return func(c *Cache) {
		c.metrics = metrics
	}
}

// New creates an empty cache
func New(opts ...Option) *Cache {
	c := &Cache{
		byHandle: make(map[string]*Entry),
		byDID:    make(map[string]*Entry),
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put records that handle and did refer to each other. Any previous pair
// holding either key is replaced.
func (c *Cache) Put(ctx context.Context, handle, did string) error {
	if err := identity.ValidateHandle(handle); err != nil {
		return err
	}
	if err := identity.ValidateDID(did); err != nil {
		return err
	}

	c.mu.Lock()
	now := c.clock.Now()

	if e, ok := c.byHandle[handle]; ok && e.DID == did {
		e.LastAccessedAt = now
		e.ExpiresAt = now.Add(c.ttl)
		snap, version := c.captureLocked()
		c.mu.Unlock()
		c.notify(ctx, "put", snap, version)
		return nil
	}

	if e, ok := c.byHandle[handle]; ok {
		c.removeLocked(e)
	}
	if e, ok := c.byDID[did]; ok {
		c.removeLocked(e)
	}

	var evicted *Entry
	if len(c.byDID) >= c.capacity {
		evicted = c.evictLocked()
	}

	e := &Entry{Handle: handle, DID: did, LastAccessedAt: now, ExpiresAt: now.Add(c.ttl)}
	c.byHandle[handle] = e
	c.byDID[did] = e
	snap, version := c.captureLocked()
	c.mu.Unlock()

	if evicted != nil {
		logr.FromContextOrDiscard(ctx).V(1).Info("Evicted least recently used mapping",
			"handle", evicted.Handle, "did", evicted.DID)
	}
	c.notify(ctx, "put", snap, version)
	return nil
}

// GetByHandle returns the DID cached for handle
func (c *Cache) GetByHandle(ctx context.Context, handle string) (string, bool) {
	e, ok := c.get(ctx, directionHandle, handle)
	if !ok {
		return "", false
	}
	return e.DID, true
}

// GetByDID returns the handle cached for did
func (c *Cache) GetByDID(ctx context.Context, did string) (string, bool) {
	e, ok := c.get(ctx, directionDID, did)
	if !ok {
		return "", false
	}
	return e.Handle, true
}

func (c *Cache) get(ctx context.Context, direction, key string) (Entry, bool) {
	c.mu.Lock()
	index := c.byHandle
	if direction == directionDID {
		index = c.byDID
	}

	e, ok := index[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.metrics.RecordLookup(ctx, direction, false)
		return Entry{}, false
	}

	now := c.clock.Now()
	if !now.Before(e.ExpiresAt) {
		c.removeLocked(e)
		c.misses++
		snap, version := c.captureLocked()
		c.mu.Unlock()
		c.metrics.RecordLookup(ctx, direction, false)
		c.notify(ctx, "expire", snap, version)
		return Entry{}, false
	}

	e.LastAccessedAt = now
	c.hits++
	hit := *e
	c.mu.Unlock()
	c.metrics.RecordLookup(ctx, direction, true)
	return hit, true
}

// Clear removes every pair and zeroes the statistics
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	clear(c.byHandle)
	clear(c.byDID)
	c.hits = 0
	c.misses = 0
	snap, version := c.captureLocked()
	c.mu.Unlock()

	c.notify(ctx, "clear", snap, version)
}

// Stats returns the hit and miss counters and the current size
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.byDID)}
}

// Entries returns a copy of every cached pair, expired ones included
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, 0, len(c.byDID))
	for _, e := range c.byDID {
		entries = append(entries, *e)
	}
	return entries
}

// removeLocked drops e from both indexes
func (c *Cache) removeLocked(e *Entry) {
	delete(c.byHandle, e.Handle)
	delete(c.byDID, e.DID)
}

// evictLocked removes the entry with the oldest access time
func (c *Cache) evictLocked() *Entry {
	var oldest *Entry
	for _, e := range c.byDID {
		if oldest == nil || e.LastAccessedAt.Before(oldest.LastAccessedAt) {
			oldest = e
		}
	}
	if oldest != nil {
		c.removeLocked(oldest)
	}
	return oldest
}

// captureLocked returns the state after a mutation and its version
func (c *Cache) captureLocked() (Snapshot, uint64) {
	c.version++
	return c.snapshotLocked(), c.version
}

// notify hands snap to the observer unless a newer snapshot was already
// handed over. Calls are serialized, so the observer sees versions in
// increasing order and must not mutate the cache itself.
func (c *Cache) notify(ctx context.Context, mutation string, snap Snapshot, version uint64) {
	if c.observer == nil {
		return
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if version <= c.notified {
		logr.FromContextOrDiscard(ctx).V(1).Info("Skipping superseded cache snapshot",
			"mutation", mutation, "version", version, "notified", c.notified)
		return
	}
	c.notified = version

	if err := c.observer(ctx, snap); err != nil {
		logr.FromContextOrDiscard(ctx).Error(err, "Cache observer failed", "mutation", mutation)
	}
}
