package snapshot

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/atref/atref/internal/cache"
	"github.com/atref/atref/internal/telemetry"
)

// NewObserver returns a cache observer that saves every snapshot to store.
// Failures are counted and returned for the cache to log.
func NewObserver(store Store, metrics *telemetry.CacheMetrics) cache.Observer {
	return func(ctx context.Context, snap cache.Snapshot) error {
		if err := store.Save(ctx, snap); err != nil {
			metrics.RecordPersistFailure(ctx)
			return fmt.Errorf("failed to persist cache snapshot: %w", err)
		}
		return nil
	}
}

// Warm loads the persisted snapshot into c. A snapshot that cannot be read
// is logged and ignored so that startup never depends on it.
func Warm(ctx context.Context, store Store, c *cache.Cache) int {
	logger := logr.FromContextOrDiscard(ctx)

	snap, err := store.Load(ctx)
	if err != nil {
		logger.Error(err, "Failed to load cache snapshot, starting empty")
		return 0
	}

	loaded := c.Restore(ctx, snap)
	logger.V(1).Info("Restored cache snapshot", "rows", len(snap), "loaded", loaded)
	return loaded
}
