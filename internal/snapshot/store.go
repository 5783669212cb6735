// Package snapshot persists cache snapshots on the local filesystem.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"

	"github.com/atref/atref/internal/cache"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

const (
	// FileName is the name of the snapshot file
	FileName = "mappings.json"

	// AppDirName is the directory created under the user cache home
	AppDirName = "atref"

	lockRetryDelay = 50 * time.Millisecond
)

// Store loads and saves cache snapshots
type Store interface {
	// Load returns the persisted snapshot.
	// Returns an empty snapshot if nothing was saved yet (first run).
	Load(ctx context.Context) (cache.Snapshot, error)

	// Save replaces the persisted snapshot
	Save(ctx context.Context, snap cache.Snapshot) error
}

// fileStore implements Store with a JSON file guarded by an advisory lock
type fileStore struct {
	path string
}

// NewFileStore creates a file-based store writing to path
func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

// DefaultPath returns the snapshot location under the XDG cache home
func DefaultPath() (string, error) {
	path, err := xdg.CacheFile(filepath.Join(AppDirName, FileName))
	if err != nil {
		return "", fmt.Errorf("failed to resolve snapshot path: %w", err)
	}
	return path, nil
}

// Save writes the snapshot to a temporary file and renames it into place
func (f *fileStore) Save(ctx context.Context, snap cache.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	unlock, err := f.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if snap == nil {
		snap = cache.Snapshot{}
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary snapshot file: %w", err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	return nil
}

// Load reads the snapshot file
func (f *fileStore) Load(ctx context.Context) (cache.Snapshot, error) {
	if _, err := os.Stat(filepath.Dir(f.path)); errors.Is(err, fs.ErrNotExist) {
		return cache.Snapshot{}, nil
	}

	unlock, err := f.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// #nosec G304 -- path comes from configuration, not from request input
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cache.Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	snap := cache.Snapshot{}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// lock takes the advisory lock next to the snapshot file
func (f *fileStore) lock(ctx context.Context) (func(), error) {
	fl := flock.New(f.path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock snapshot file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock snapshot file: %s is busy", f.path)
	}
	return func() { _ = fl.Unlock() }, nil
}
