package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/pyrite"
	"github.com/jward/pyrite/internal/config"
)

var (
	flagDB      string
	flagFormat  string
	flagConfig  string
	flagVerbose bool
	flagSelect  string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "pyrite",
	Short:         "Static inference for Python code",
	Long:          "Pyrite infers the values of Python expressions and the MROs of classes without running the code, and can index a project into SQLite for queries.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .pyrite/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: pyrite.yaml or .pyrite.yaml in the repo root)")
	rootCmd.PersistentFlags().StringVar(&flagSelect, "select", "", "gjson path selecting part of the JSON output (e.g. results.#.qualname)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging on stderr")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(mroCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(replCmd)
}

// loadConfig reads the configuration of the project at repoRoot with paths
// made absolute. --db wins over the configured database.
func loadConfig(repoRoot string) (*config.Config, error) {
	cfg, err := config.Load(repoRoot, flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.Database = flagDB
	}
	cfg.ResolvePaths(repoRoot)
	if len(cfg.SearchPath) == 0 {
		cfg.SearchPath = []string{repoRoot}
	}
	return cfg, nil
}

// openEngine builds an Engine for the project at repoRoot. Without
// withDB the index is not opened.
func openEngine(repoRoot string, withDB bool, extra ...pyrite.Option) (*pyrite.Engine, *config.Config, error) {
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return nil, nil, err
	}
	opts := []pyrite.Option{pyrite.WithConfig(cfg), pyrite.WithLogger(slog.Default())}
	if !withDB {
		opts = append(opts, pyrite.WithDatabase(""))
	}
	e, err := pyrite.New(append(opts, extra...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, cfg, nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// cwdRepoRoot is findRepoRoot from the working directory.
func cwdRepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return findRepoRoot(cwd), nil
}
