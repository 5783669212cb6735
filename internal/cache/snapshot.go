package cache

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-logr/logr"

	"github.com/atref/atref/internal/identity"
)

// Snapshot is the persisted form of the cache, keyed by DID
type Snapshot map[string]SnapshotEntry

// SnapshotEntry is one persisted pair. Times are Unix milliseconds.
type SnapshotEntry struct {
	Handle         string `json:"handle"`
	LastAccessedAt int64  `json:"lastAccessedAt"`
	ExpiresAt      int64  `json:"expiresAt,omitempty"`
}

// Snapshot returns the current pairs in persisted form
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(c.byDID))
	for did, e := range c.byDID {
		snap[did] = SnapshotEntry{
			Handle:         e.Handle,
			LastAccessedAt: e.LastAccessedAt.UnixMilli(),
			ExpiresAt:      e.ExpiresAt.UnixMilli(),
		}
	}
	return snap
}

// Restore loads persisted pairs into the cache without notifying the
// observer. Rows with malformed keys or that are already expired are
// skipped. When the snapshot holds more pairs than fit, or two rows claim
// the same handle, the most recently accessed rows win. Rows without an
// expiry get a fresh TTL measured from their last access. It returns the
// number of pairs loaded.
func (c *Cache) Restore(ctx context.Context, snap Snapshot) int {
	logger := logr.FromContextOrDiscard(ctx)

	rows := make([]Entry, 0, len(snap))
	for did, row := range snap {
		if identity.ValidateDID(did) != nil || !identity.IsValidHandle(row.Handle) {
			logger.V(1).Info("Skipping malformed snapshot row", "did", did, "handle", row.Handle)
			continue
		}
		accessed := time.UnixMilli(row.LastAccessedAt)
		expires := accessed.Add(c.ttl)
		if row.ExpiresAt != 0 {
			expires = time.UnixMilli(row.ExpiresAt)
		}
		rows = append(rows, Entry{Handle: row.Handle, DID: did, LastAccessedAt: accessed, ExpiresAt: expires})
	}

	slices.SortFunc(rows, func(a, b Entry) int {
		return cmp.Or(b.LastAccessedAt.Compare(a.LastAccessedAt), cmp.Compare(a.DID, b.DID))
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	loaded := 0
	for i := range rows {
		e := rows[i]
		if len(c.byDID) >= c.capacity {
			break
		}
		if !now.Before(e.ExpiresAt) {
			continue
		}
		if _, ok := c.byHandle[e.Handle]; ok {
			continue
		}
		if _, ok := c.byDID[e.DID]; ok {
			continue
		}
		c.byHandle[e.Handle] = &e
		c.byDID[e.DID] = &e
		loaded++
	}
	return loaded
}
