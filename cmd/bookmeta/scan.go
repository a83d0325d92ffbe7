package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/yuanying/bookmeta/internal/library"
	"github.com/yuanying/bookmeta/internal/progress"
)

func newScanCmd(a *app) *cobra.Command {
	var (
		workers    int
		timeout    time.Duration
		database   string
		prune      bool
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "scan DIR",
		Short: "Scan a directory tree into the library database",
		Long: `scan walks DIR, extracts the metadata of every book file and stores it in
the SQLite library database. Files unchanged since the previous scan are
served from the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Timeout = timeout
			}
			if cmd.Flags().Changed("database") {
				cfg.Database = database
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			store, err := library.OpenStore(ctx, library.DefaultStoreOptions(cfg.Database))
			if err != nil {
				return err
			}
			defer store.Close()

			scanner := library.NewScanner(a.pipeline(), store, library.ScanOptions{
				Workers:    cfg.Workers,
				Timeout:    cfg.Timeout,
				Extensions: cfg.Extensions,
				Prune:      prune,
				Logger:     slog.Default(),
			})
			return runScan(ctx, scanner, args[0], !noProgress)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent extractions")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-file extraction timeout")
	cmd.Flags().StringVarP(&database, "database", "d", "", "database file path")
	cmd.Flags().BoolVar(&prune, "prune", false, "remove books that no longer exist under DIR")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable progress bar")
	return cmd
}

func runScan(ctx context.Context, scanner *library.Scanner, root string, showProgress bool) error {
	start := time.Now()

	files, err := scanner.Files(root)
	if err != nil {
		return err
	}
	slog.Info("Starting scan", "root", root, "files", len(files))

	bar := progress.New(len(files), showProgress)
	scanner.OnFile(func(path string) { bar.Increment(filepath.Base(path)) })

	summary, err := scanner.ScanFiles(ctx, root, files)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("scan interrupted: %w", err)
	}

	slog.Info("Scan complete",
		"files", summary.Files,
		"cached", summary.Cached,
		"extracted", summary.Extracted,
		"complete", summary.Complete,
		"partial", summary.Partial,
		"placeholder", summary.Placeholder,
		"timed_out", summary.TimedOut,
		"pruned", summary.Pruned,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func newListCmd(a *app) *cobra.Command {
	var (
		database string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the books stored in the library database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Database
			if cmd.Flags().Changed("database") {
				path = database
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("library database: %w", err)
			}

			store, err := library.OpenStore(cmd.Context(), library.DefaultStoreOptions(path))
			if err != nil {
				return err
			}
			defer store.Close()

			books, err := store.Books(cmd.Context())
			if err != nil {
				return err
			}

			views := make([]bookView, 0, len(books))
			for _, b := range books {
				views = append(views, newBookView(b.Key.Path, b.Result))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, views)
			}
			for i, v := range views {
				if i > 0 {
					fmt.Fprintln(out)
				}
				writeText(out, v)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "database file path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}
