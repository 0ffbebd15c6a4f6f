// Package config loads pyrite settings from a YAML file, a .env file and
// PYRITE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jward/pyrite/internal/mro"
)

// FileNames are the config files Load looks for, in order.
var FileNames = []string{"pyrite.yaml", ".pyrite.yaml"}

type Config struct {
	// SearchPath lists the roots modules are imported from.
	SearchPath []string `yaml:"search_path"`
	// MaxMRODepth bounds MRO resolution (default mro.DefaultMaxDepth).
	MaxMRODepth int `yaml:"max_mro_depth"`
	// Database is the SQLite index path (default .pyrite/index.db).
	Database string `yaml:"database"`
	// PluginsDir loads brain plugins from disk instead of the embedded set.
	PluginsDir string `yaml:"plugins_dir"`
	// DisablePlugins names plugins that are not run.
	DisablePlugins []string `yaml:"disable_plugins"`
	// Workers sizes the indexing pool. Zero means one per CPU.
	Workers int `yaml:"workers"`
	// CheckStaleness makes cached models compare file mtimes on every access.
	CheckStaleness bool `yaml:"check_staleness"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		MaxMRODepth: mro.DefaultMaxDepth,
		Database:    filepath.Join(".pyrite", "index.db"),
	}
}

// Load reads configuration for the project rooted at dir. An explicit path
// must exist; otherwise the first of FileNames found in dir is used, and a
// missing file leaves the defaults in place. Environment overrides apply
// last.
func Load(dir, path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg := Default()

	// 2. Load YAML config
	if path == "" {
		path = find(dir)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// 3. Override with environment variables if present
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func find(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		} else if !errors.Is(err, fs.ErrNotExist) {
			return p // let ReadFile report it
		}
	}
	return ""
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PYRITE_SEARCH_PATH"); v != "" {
		c.SearchPath = filepath.SplitList(v)
	}
	if v := os.Getenv("PYRITE_DATABASE"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("PYRITE_PLUGINS_DIR"); v != "" {
		c.PluginsDir = v
	}
	if v := os.Getenv("PYRITE_DISABLE_PLUGINS"); v != "" {
		c.DisablePlugins = splitComma(v)
	}
	if v := os.Getenv("PYRITE_MAX_MRO_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PYRITE_MAX_MRO_DEPTH: %w", err)
		}
		c.MaxMRODepth = n
	}
	if v := os.Getenv("PYRITE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PYRITE_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("PYRITE_CHECK_STALENESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: PYRITE_CHECK_STALENESS: %w", err)
		}
		c.CheckStaleness = b
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.MaxMRODepth <= 0 {
		return fmt.Errorf("config: max_mro_depth must be positive, got %d", c.MaxMRODepth)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// ResolvePaths makes relative search path entries and the database path
// absolute against root.
func (c *Config) ResolvePaths(root string) {
	for i, p := range c.SearchPath {
		if !filepath.IsAbs(p) {
			c.SearchPath[i] = filepath.Join(root, p)
		}
	}
	if c.Database != "" && !filepath.IsAbs(c.Database) {
		c.Database = filepath.Join(root, c.Database)
	}
	if c.PluginsDir != "" && !filepath.IsAbs(c.PluginsDir) {
		c.PluginsDir = filepath.Join(root, c.PluginsDir)
	}
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
