package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SnapshotRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src, clk := newTestCache(t)
	require.NoError(t, src.Put(ctx, aliceHandle, aliceDID))
	clk.Step(time.Minute)
	require.NoError(t, src.Put(ctx, bobHandle, bobDID))

	snap := src.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, SnapshotEntry{
		Handle:         aliceHandle,
		LastAccessedAt: epoch.UnixMilli(),
		ExpiresAt:      epoch.Add(DefaultTTL).UnixMilli(),
	}, snap[aliceDID])

	dst, _ := newTestCache(t)
	assert.Equal(t, 2, dst.Restore(ctx, snap))

	did, ok := dst.GetByHandle(ctx, bobHandle)
	require.True(t, ok)
	assert.Equal(t, bobDID, did)
	handle, ok := dst.GetByDID(ctx, aliceDID)
	require.True(t, ok)
	assert.Equal(t, aliceHandle, handle)
}

func TestCache_RestoreSkipsInvalidRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fresh := epoch.Add(-time.Minute).UnixMilli()
	snap := Snapshot{
		aliceDID:       {Handle: aliceHandle, LastAccessedAt: fresh},
		"did:plc:nope": {Handle: "nope.example", LastAccessedAt: fresh},
		bobDID:         {Handle: "not a handle", LastAccessedAt: fresh},
		plcDID(3): {
			Handle:         "expired.example",
			LastAccessedAt: epoch.Add(-2 * time.Hour).UnixMilli(),
			ExpiresAt:      epoch.Add(-time.Hour).UnixMilli(),
		},
		plcDID(4): {Handle: "stale.example", LastAccessedAt: epoch.Add(-3 * time.Hour).UnixMilli()},
	}

	observed := false
	c, _ := newTestCache(t, WithObserver(func(context.Context, Snapshot) error {
		observed = true
		return nil
	}))

	assert.Equal(t, 1, c.Restore(ctx, snap))
	assert.False(t, observed, "restoring does not write back")

	did, ok := c.GetByHandle(ctx, aliceHandle)
	require.True(t, ok)
	assert.Equal(t, aliceDID, did)

	_, ok = c.GetByHandle(ctx, "nope.example")
	assert.False(t, ok, "a did:plc with a short identifier is not restored")
}

func TestCache_RestoreKeepsMostRecent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	at := func(d time.Duration) int64 { return epoch.Add(-d).UnixMilli() }
	snap := Snapshot{
		plcDID(1): {Handle: "one.example", LastAccessedAt: at(3 * time.Minute)},
		plcDID(2): {Handle: "two.example", LastAccessedAt: at(2 * time.Minute)},
		plcDID(3): {Handle: "three.example", LastAccessedAt: at(time.Minute)},
		// same handle as plcDID(3) but older, so it loses
		plcDID(4): {Handle: "three.example", LastAccessedAt: at(4 * time.Minute)},
	}

	c, _ := newTestCache(t, WithCapacity(2))
	assert.Equal(t, 2, c.Restore(ctx, snap))

	did, ok := c.GetByHandle(ctx, "three.example")
	require.True(t, ok)
	assert.Equal(t, plcDID(3), did)
	_, ok = c.GetByHandle(ctx, "two.example")
	assert.True(t, ok)
	_, ok = c.GetByHandle(ctx, "one.example")
	assert.False(t, ok)
}
