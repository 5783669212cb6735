package app

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atref/atref/internal/cache"
	"github.com/atref/atref/internal/snapshot"
	"github.com/atref/atref/internal/versions"
)

const plcDID = "did:plc:ewvi7nxzyoun6zhxrhs64oiz"

// run executes the root command. Commands share the global viper instance,
// so tests in this package do not run in parallel.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(zap.NewAtomicLevel())
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version", "--format", "json")
	require.NoError(t, err)

	var info versions.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, versions.GetVersionInfo(), info)
}

func TestAdaptersCmd(t *testing.T) {
	out, err := run(t, "adapters")
	require.NoError(t, err)

	assert.Contains(t, out, "bsky.app")
	assert.Contains(t, out, "plc.directory")
}

func TestResolveCmd(t *testing.T) {
	t.Setenv("ATREF_CACHE_PERSIST", "false")

	t.Run("json output", func(t *testing.T) {
		input := "at://" + plcDID + "/app.bsky.feed.post/3k2yihcrp6f2c"
		out, err := run(t, "resolve", "--format", "json", input)
		require.NoError(t, err)

		var results []resolveOutput
		require.NoError(t, json.Unmarshal([]byte(out), &results))
		require.Len(t, results, 1)
		require.NotNil(t, results[0].Record)
		assert.Equal(t, input, results[0].Record.URI)
		assert.Equal(t, "/profile/"+plcDID+"/post/3k2yihcrp6f2c", results[0].Record.DisplayPath)
	})

	t.Run("failures are reported and returned", func(t *testing.T) {
		out, err := run(t, "resolve", "--format", "json", "https://example.com/about")
		require.ErrorContains(t, err, "failed to resolve 1 of 1 inputs")

		var results []resolveOutput
		require.NoError(t, json.Unmarshal([]byte(out), &results))
		require.Len(t, results, 1)
		assert.Nil(t, results[0].Record)
		assert.Contains(t, results[0].Error, "no actionable destination")
	})

	t.Run("table output", func(t *testing.T) {
		out, err := run(t, "resolve", plcDID)
		require.NoError(t, err)
		assert.Contains(t, out, "at://"+plcDID)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := run(t, "resolve", "--format", "yaml", plcDID)
		require.ErrorContains(t, err, "unsupported format")
	})

	t.Run("requires an input", func(t *testing.T) {
		_, err := run(t, "resolve")
		require.Error(t, err)
	})
}

func TestCacheCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	t.Setenv("ATREF_CACHE_SNAPSHOTPATH", path)

	now := time.Now()
	store := snapshot.NewFileStore(path)
	require.NoError(t, store.Save(context.Background(), cache.Snapshot{
		plcDID: {Handle: "alice.example", LastAccessedAt: now.UnixMilli(), ExpiresAt: now.Add(time.Hour).UnixMilli()},
		"did:web:bob.example": {Handle: "bob.example", LastAccessedAt: now.Add(-2 * time.Hour).UnixMilli()},
	}))

	out, err := run(t, "cache", "stats", "--format", "json")
	require.NoError(t, err)

	var stats snapshotStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, snapshotStats{Path: path, Size: 2, Expired: 1}, stats)

	_, err = run(t, "cache", "clear")
	require.NoError(t, err)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestCacheCmd_PersistenceDisabled(t *testing.T) {
	t.Setenv("ATREF_CACHE_PERSIST", "false")

	_, err := run(t, "cache", "stats")
	require.ErrorContains(t, err, "cache persistence is disabled")
}
