package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/dshills/gamesearch-mcp/internal/catalog"
	"github.com/dshills/gamesearch-mcp/internal/indexer"
	"github.com/dshills/gamesearch-mcp/internal/mcp"
	"github.com/dshills/gamesearch-mcp/internal/storage"
	"github.com/dshills/gamesearch-mcp/internal/transport/httpapi"
	"github.com/dshills/gamesearch-mcp/pkg/types"
)

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// warm loads everything in the background so the first request is fast.
// Failures are logged; requests retry the load on demand.
func warm(ctx context.Context, d *deps) {
	go func() {
		if err := d.catalog.Warm(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("warm-up incomplete", zap.Error(err))
		}
	}()
}

func mcpCommand(c *cli.Context) error {
	d, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	ctx, stop := signalContext(c)
	defer stop()

	d.logger.Info("MCP server starting on stdio",
		zap.String("version", version),
		zap.String("data_dir", d.cfg.DataDir))
	if c.Bool("warm") {
		warm(ctx, d)
	}

	server := mcp.NewServer(d.catalog, d.store, d.logger.Named("mcp"))
	if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	d.logger.Info("MCP server stopped")
	return nil
}

func serveCommand(c *cli.Context) error {
	d, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	addr := d.cfg.HTTP.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	ctx, stop := signalContext(c)
	defer stop()
	if c.Bool("warm") {
		warm(ctx, d)
	}

	api := httpapi.NewServer(d.catalog, d.store, d.logger.Named("http"))
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Router(),
		ReadTimeout:  time.Duration(d.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(d.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		d.logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	d.logger.Info("server stopped gracefully")
	return nil
}

func cacheCommand(c *cli.Context) error {
	d, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	workers := d.cfg.Indexer.Workers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}

	ctx, stop := signalContext(c)
	defer stop()

	stats, err := d.indexer.Run(ctx, indexer.Config{
		SourceDir:   d.cfg.SourceDir,
		DataDir:     d.cfg.DataDir,
		Collections: splitList(c.StringSlice("collections")),
		Workers:     workers,
		Force:       c.Bool("force"),
	})
	if stats != nil {
		printStatistics(c, stats)
	}
	if err != nil {
		return err
	}
	if stats.CollectionsFailed > 0 {
		return fmt.Errorf("%d collection(s) failed:\n  %s",
			stats.CollectionsFailed, strings.Join(stats.ErrorMessages, "\n  "))
	}
	return nil
}

func printStatistics(c *cli.Context, stats *indexer.Statistics) {
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tOUTCOME\tENTITIES\tDIMENSION\tDURATION")
	for _, r := range stats.Results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			r.Collection, r.Outcome, r.Entities, r.Dimension, r.Duration.Round(time.Millisecond))
	}
	_ = w.Flush()
	fmt.Fprintf(c.App.Writer, "\n%d indexed, %d skipped, %d failed in %s\n",
		stats.CollectionsIndexed, stats.CollectionsSkipped, stats.CollectionsFailed,
		stats.Duration.Round(time.Millisecond))
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("usage: gamesearch search %s", c.Command.ArgsUsage)
	}
	collection := c.Args().First()
	query := strings.Join(c.Args().Tail(), " ")

	limit := c.Int("limit")
	if limit < 1 {
		return fmt.Errorf("limit must be at least 1, got %d", limit)
	}
	fields := splitList(c.StringSlice("fields"))
	for _, f := range fields {
		if err := types.ValidateFieldPath(f); err != nil {
			return err
		}
	}

	d, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	ctx, stop := signalContext(c)
	defer stop()

	srch, err := d.catalog.Searcher(ctx, collection)
	if err != nil {
		return err
	}
	hits, err := srch.Search(ctx, query, limit)
	if err != nil {
		return err
	}

	type result struct {
		Score  float64      `json:"score"`
		Entity types.Entity `json:"entity"`
	}
	results := make([]result, 0, len(hits))
	for _, hit := range hits {
		projected, err := types.ExtractFields(hit.Entity, fields)
		if err != nil {
			return err
		}
		results = append(results, result{Score: hit.Score, Entity: projected})
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func statusCommand(c *cli.Context) error {
	d, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	ctx := c.Context
	rows, err := d.store.ListCollections(ctx)
	if err != nil {
		return err
	}
	cached := make(map[string]*storage.Collection, len(rows))
	for _, r := range rows {
		cached[r.Name] = r
	}

	schema, err := d.store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "data dir:  %s\nmanifest:  %s (schema %s)\n\n", d.cfg.DataDir, d.cfg.DBPath, schema)

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tSEARCHABLE\tENTITIES\tDIMENSION\tMODEL\tINDEXED")
	for _, def := range catalog.Definitions() {
		r, ok := cached[def.Name]
		if !ok {
			fmt.Fprintf(w, "%s\t%t\t-\t-\t-\tnot cached\n", def.Name, def.Searchable)
			continue
		}
		model := r.Model
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%s\t%s\n",
			def.Name, def.Searchable, r.EntityCount, r.Dimension, model, r.IndexedAt.Local().Format(time.RFC3339))
	}
	_ = w.Flush()

	run, err := d.store.LatestRun(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Fprintln(c.App.Writer, "\nno cache build recorded")
	case err != nil:
		return err
	default:
		fmt.Fprintf(c.App.Writer, "\nlast build: %s (%s): %d indexed, %d skipped, %d failed\n",
			run.FinishedAt.Local().Format(time.RFC3339), run.Duration().Round(time.Millisecond),
			run.Indexed, run.Skipped, run.Failed)
	}
	return nil
}

func versionCommand(c *cli.Context) error {
	fmt.Fprintf(c.App.Writer, "gamesearch %s\n", version)
	fmt.Fprintf(c.App.Writer, "Build Time:     %s\n", buildTime)
	fmt.Fprintf(c.App.Writer, "Build Mode:     %s\n", storage.BuildMode)
	fmt.Fprintf(c.App.Writer, "SQLite Driver:  %s\n", storage.DriverName)
	fmt.Fprintf(c.App.Writer, "Schema Version: %s\n", storage.CurrentSchemaVersion)
	return nil
}

// splitList flattens repeated and comma-separated flag values
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
