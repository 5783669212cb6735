package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/atref/atref/internal/canonical"
	"github.com/atref/atref/internal/orchestrator"
)

const resolveShutdownTimeout = 5 * time.Second

// resolveOutput is one line of `atref resolve --format json`
type resolveOutput struct {
	Input  string            `json:"input"`
	Record *canonical.Record `json:"record,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <input>...",
		Short: "Resolve handles, DIDs, at:// URIs or links",
		Long: `Resolve one or more references into canonical records.

Inputs may be handles (alice.bsky.social), DIDs, at:// URIs, or links to
supported services such as https://bsky.app/profile/alice.bsky.social/post/3k2y...`,
		Args: cobra.MinimumNArgs(1),
		RunE: runResolve,
	}
	cmd.Flags().String("format", "table", "Output format (table or json)")
	cmd.Flags().Bool("strict", false, "Fail instead of returning partial records when a lookup fails")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "table" && format != "json" {
		return fmt.Errorf("unsupported format %q: expected table or json", format)
	}
	strict, err := cmd.Flags().GetBool("strict")
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strict {
		degrade := false
		cfg.Degrade = &degrade
	}

	eng, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveShutdownTimeout)
		defer cancel()
		eng.close(shutdownCtx)
	}()

	results, err := eng.orchestrator.ResolveAll(ctx, args)
	if err != nil {
		return err
	}

	if format == "json" {
		err = writeResultsJSON(cmd.OutOrStdout(), results)
	} else {
		err = writeResultsTable(cmd.OutOrStdout(), results)
	}
	if err != nil {
		return err
	}

	if n := countFailed(results); n > 0 {
		return fmt.Errorf("failed to resolve %d of %d inputs", n, len(results))
	}
	return nil
}

func countFailed(results []orchestrator.Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func writeResultsJSON(w io.Writer, results []orchestrator.Result) error {
	out := make([]resolveOutput, 0, len(results))
	for _, r := range results {
		item := resolveOutput{Input: r.Input, Record: r.Record}
		if r.Err != nil {
			item.Record = nil
			item.Error = r.Err.Error()
		}
		out = append(out, item)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeResultsTable(w io.Writer, results []orchestrator.Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("Input", "Handle", "DID", "URI", "Path")
	for _, r := range results {
		if r.Err != nil {
			if err := table.Append(r.Input, "", "", "error: "+r.Err.Error(), ""); err != nil {
				return err
			}
			continue
		}
		rec := r.Record
		if err := table.Append(r.Input, rec.Handle, rec.DID, rec.URI, rec.DisplayPath); err != nil {
			return err
		}
	}
	return table.Render()
}
