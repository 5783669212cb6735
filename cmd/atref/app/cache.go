package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/atref/atref/internal/cache"
)

// snapshotStats summarizes a persisted snapshot
type snapshotStats struct {
	Path    string `json:"path"`
	Size    int    `json:"size"`
	Expired int    `json:"expired"`
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persisted handle to DID mappings",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the persisted cache size",
		Args:  cobra.NoArgs,
		RunE:  runCacheStats,
	}
	statsCmd.Flags().String("format", "table", "Output format (table or json)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every persisted mapping",
		Args:  cobra.NoArgs,
		RunE:  runCacheClear,
	}

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, path, err := snapshotStore(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("cache persistence is disabled")
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return err
	}

	stats := snapshotStats{Path: path, Size: len(snap)}
	now := time.Now()
	for _, row := range snap {
		if !now.Before(expiresAt(row, cfg.GetCacheTTL())) {
			stats.Expired++
		}
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Path", "Mappings", "Expired")
	if err := table.Append(stats.Path, fmt.Sprint(stats.Size), fmt.Sprint(stats.Expired)); err != nil {
		return err
	}
	return table.Render()
}

// expiresAt mirrors the restore rule: rows written without an expiry live
// for one TTL after their last access
func expiresAt(row cache.SnapshotEntry, ttl time.Duration) time.Time {
	if row.ExpiresAt != 0 {
		return time.UnixMilli(row.ExpiresAt)
	}
	return time.UnixMilli(row.LastAccessedAt).Add(ttl)
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, path, err := snapshotStore(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("cache persistence is disabled")
	}

	if err := store.Save(ctx, cache.Snapshot{}); err != nil {
		return err
	}
	logr.FromContextOrDiscard(ctx).Info("Cleared cache snapshot", "path", path)
	return nil
}
