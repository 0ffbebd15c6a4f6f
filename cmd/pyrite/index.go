package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jward/pyrite"
)

var (
	flagForce   bool
	flagWorkers int
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a Python project",
	Long:  "Builds every Python module under path, computes class MROs and writes classes, symbols and imports to the SQLite database. Unchanged files are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 0, "summarising workers (default: config, then one per CPU)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)

	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return err
	}
	if flagForce {
		if err := os.Remove(cfg.Database); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", cfg.Database)
	}

	var extra []pyrite.Option
	if flagWorkers > 0 {
		extra = append(extra, pyrite.WithWorkers(flagWorkers))
	}
	// The indexed tree must be importable for cross-module MROs.
	extra = append(extra, pyrite.WithSearchPath(append([]string{targetDir}, cfg.SearchPath...)...))
	engine, _, err := openEngine(repoRoot, true, extra...)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats, err := engine.IndexDirectory(ctx, targetDir)
	if stats != nil {
		printIndexStats(targetDir, cfg.Database, stats)
	}
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	return nil
}

func printIndexStats(dir, db string, s *pyrite.IndexStats) {
	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", dir, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  modules:    %s indexed, %s unchanged, %s dependents, %s removed\n",
		humanize.Comma(int64(s.Indexed)), humanize.Comma(int64(s.Skipped)),
		humanize.Comma(int64(s.Dependents)), humanize.Comma(int64(s.Removed)))
	fmt.Fprintf(os.Stderr, "  classes:    %s (%d without an MRO)\n", humanize.Comma(int64(s.Classes)), s.MROErrors)
	fmt.Fprintf(os.Stderr, "  symbols:    %s\n", humanize.Comma(int64(s.Symbols)))
	fmt.Fprintf(os.Stderr, "  imports:    %s\n", humanize.Comma(int64(s.Imports)))
	if s.Failed > 0 {
		fmt.Fprintf(os.Stderr, "  failed:     %d\n", s.Failed)
	}
	if info, err := os.Stat(db); err == nil {
		fmt.Fprintf(os.Stderr, "Database: %s (%s)\n", db, humanize.Bytes(uint64(info.Size())))
	}
}
