package pyrite

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/jward/pyrite/internal/manager"
	"github.com/jward/pyrite/internal/store"
)

// IndexStats reports what an indexing run did.
type IndexStats struct {
	Discovered int
	Indexed    int
	Skipped    int
	Dependents int // unchanged modules re-summarised because an import changed
	Removed    int
	Failed     int
	Classes    int
	Symbols    int
	Imports    int
	MROErrors  int
	Duration   time.Duration
}

// workItem holds everything a summarising worker needs.
type workItem struct {
	path     string
	id       ModuleIdentity
	moduleID int64
	batch    *store.BatchedStore
	sum      summary
	err      error
}

// IndexDirectory discovers the Python files under root and indexes them
// with module names relative to root. Modules indexed earlier from under
// root whose files are gone are removed. Imports between the indexed
// modules resolve only when root is on the engine's search path.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (*IndexStats, error) {
	if e.store == nil {
		return nil, fmt.Errorf("pyrite: index: no database configured")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("pyrite: index: %w", err)
	}
	paths, err := discoverFiles(root)
	if err != nil {
		return nil, fmt.Errorf("pyrite: index: %w", err)
	}
	removed, err := e.pruneMissing(root, paths)
	if err != nil {
		return nil, fmt.Errorf("pyrite: index: %w", err)
	}
	stats, err := e.IndexFiles(ctx, root, paths)
	if stats != nil {
		stats.Removed = removed
	}
	return stats, err
}

// IndexFiles summarises the given files into the database in three phases:
//
//	Phase A (serial):   hash check, delete old rows, upsert module records.
//	Phase B (parallel): build models, compute MROs, buffer rows per module.
//	Phase C (serial):   commit buffered rows.
//
// Unchanged files (same content hash) are skipped unless the brain plugins
// changed since the last run. Modules that import a changed module,
// directly or transitively, are re-summarised afterwards since their MROs
// may depend on it. Failures of single files are collected; the run
// continues.
func (e *Engine) IndexFiles(ctx context.Context, root string, paths []string) (*IndexStats, error) {
	if e.store == nil {
		return nil, fmt.Errorf("pyrite: index: no database configured")
	}
	start := time.Now()
	stats := &IndexStats{Discovered: len(paths)}
	force := e.PluginsChanged()
	if force {
		e.logger.Info("brain plugins changed, reindexing everything")
	}

	var errs []error
	items, changed, prepErrs := e.prepareFiles(root, paths, force)
	errs = append(errs, prepErrs...)
	stats.Skipped = len(paths) - len(items) - len(prepErrs)
	e.summariseAll(ctx, items)
	errs = append(errs, e.commitAll(items, stats)...)
	stats.Indexed = len(items)

	// Blast radius: re-summarise indexed dependents of what changed.
	if len(changed) > 0 {
		dependents, err := e.dependentPaths(changed, items)
		if err != nil {
			errs = append(errs, err)
		}
		if len(dependents) > 0 {
			// Dependents are rebuilt so no cached inference refers to the
			// old trees of the modules they import.
			for _, path := range dependents {
				if m, err := e.store.ModuleByPath(path); err == nil && m != nil {
					e.mgr.Invalidate(ModuleIdentity{Name: m.Name, Path: path})
				}
			}
			again, _, prepErrs := e.prepareFiles("", dependents, true)
			errs = append(errs, prepErrs...)
			e.summariseAll(ctx, again)
			errs = append(errs, e.commitAll(again, stats)...)
			stats.Dependents = len(again)
		}
	}

	e.storePluginsHash()
	stats.Failed = len(errs)
	stats.Duration = time.Since(start)
	e.logger.Info("index complete",
		slog.Int("indexed", stats.Indexed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("dependents", stats.Dependents),
		slog.Int("failed", stats.Failed),
		slog.Duration("elapsed", stats.Duration),
	)
	if len(errs) > 0 {
		return stats, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}

// prepareFiles does Phase A for each path. root names new modules; with an
// empty root the stored module name is reused. It returns the items to
// summarise and the names of modules whose content changed.
func (e *Engine) prepareFiles(root string, paths []string, force bool) ([]*workItem, []string, []error) {
	var (
		items   []*workItem
		changed []string
		errs    []error
	)
	for _, path := range paths {
		item, contentChanged, skip, err := e.prepareFile(root, path, force)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		items = append(items, item)
		if contentChanged {
			changed = append(changed, item.id.Name)
		}
	}
	return items, changed, errs
}

func (e *Engine) prepareFile(root, path string, force bool) (item *workItem, contentChanged, skip bool, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(xxhash.Sum64(content))

	existing, err := e.store.ModuleByPath(path)
	if err != nil {
		return nil, false, false, fmt.Errorf("lookup module: %w", err)
	}
	if existing != nil && existing.Hash == hash && !force {
		return nil, false, true, nil
	}

	var name string
	switch {
	case root != "":
		if name, err = manager.ModuleName(root, path); err != nil {
			return nil, false, false, err
		}
	case existing != nil:
		name = existing.Name
	default:
		id, err := e.identityFor(path)
		if err != nil {
			return nil, false, false, err
		}
		name = id.Name
	}
	id := ModuleIdentity{Name: name, Path: path}
	contentChanged = existing == nil || existing.Hash != hash
	if contentChanged {
		// The cached model no longer matches the file.
		e.mgr.Invalidate(id)
	}

	now := time.Now().UTC()
	rec := &store.Module{
		Name:        name,
		Path:        path,
		Hash:        hash,
		Package:     filepath.Base(path) == "__init__.py",
		LineCount:   bytes.Count(content, []byte{'\n'}) + 1,
		LastIndexed: now,
	}
	if existing != nil {
		if err := e.store.DeleteModuleData(existing.ID); err != nil {
			return nil, false, false, fmt.Errorf("delete old data: %w", err)
		}
		if existing.Name != name {
			if err := e.store.DeleteModule(existing.ID); err != nil {
				return nil, false, false, fmt.Errorf("delete renamed module: %w", err)
			}
			existing = nil
		}
	}
	if existing != nil {
		rec.ID = existing.ID
		if err := e.store.UpdateModule(rec); err != nil {
			return nil, false, false, err
		}
	} else if _, err := e.store.InsertModule(rec); err != nil {
		return nil, false, false, err
	}

	return &workItem{
		path:     path,
		id:       id,
		moduleID: rec.ID,
		batch:    store.NewBatchedStore(e.store),
	}, contentChanged, false, nil
}

// summariseAll is Phase B: a bounded worker pool building and summarising
// each item into its own batch. Errors stay on the item.
func (e *Engine) summariseAll(ctx context.Context, items []*workItem) {
	if len(items) == 0 {
		return
	}
	workers := e.workers
	if workers <= 0 {
		workers = goruntime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(workers, len(items))))
	for _, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				item.err = err
				return nil
			}
			model, err := e.mgr.GetOrBuild(gctx, item.id)
			if err != nil {
				item.err = fmt.Errorf("build: %w", err)
				return nil
			}
			item.sum, item.err = e.summarise(model, item.moduleID, item.batch)
			return nil
		})
	}
	_ = g.Wait()
}

// commitAll is Phase C. Module records are updated with the build metadata
// of the committed model.
func (e *Engine) commitAll(items []*workItem, stats *IndexStats) []error {
	var errs []error
	for _, item := range items {
		if item.err != nil {
			errs = append(errs, fmt.Errorf("summarise %s: %w", item.path, item.err))
			continue
		}
		if err := e.store.CommitBatch(item.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", item.path, err))
			continue
		}
		if model, ok := e.mgr.Cached(item.id); ok {
			rec, err := e.store.ModuleByID(item.moduleID)
			if err == nil && rec != nil {
				rec.Version = int64(model.Version)
				rec.BuiltAt = model.BuiltAt.UTC()
				rec.Synthetic = model.Synthetic
				rec.Package = model.Package
				if err := e.store.UpdateModule(rec); err != nil {
					errs = append(errs, fmt.Errorf("update %s: %w", item.path, err))
				}
			}
		}
		stats.Classes += item.sum.classes
		stats.Symbols += item.sum.symbols
		stats.Imports += item.sum.imports
		stats.MROErrors += item.sum.mroErrs
	}
	return errs
}

// dependentPaths returns the file paths of indexed modules importing any
// of changed, leaving out the items just summarised.
func (e *Engine) dependentPaths(changed []string, done []*workItem) ([]string, error) {
	names, err := e.store.DependentModules(changed)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(done))
	for _, item := range done {
		seen[item.path] = true
	}
	var paths []string
	for _, name := range names {
		m, err := e.store.ModuleByName(name)
		if err != nil {
			return nil, err
		}
		if m == nil || m.Path == "" || seen[m.Path] {
			continue
		}
		seen[m.Path] = true
		paths = append(paths, m.Path)
	}
	sort.Strings(paths)
	return paths, nil
}

// pruneMissing deletes modules indexed from under root that are no longer
// among paths.
func (e *Engine) pruneMissing(root string, paths []string) (int, error) {
	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p] = true
	}
	mods, err := e.store.Modules()
	if err != nil {
		return 0, err
	}
	prefix := root + string(filepath.Separator)
	removed := 0
	for _, m := range mods {
		if !strings.HasPrefix(m.Path, prefix) || present[m.Path] {
			continue
		}
		if err := e.store.DeleteModule(m.ID); err != nil {
			return removed, err
		}
		e.mgr.Invalidate(ModuleIdentity{Name: m.Name, Path: m.Path})
		removed++
	}
	return removed, nil
}

// skipDirs are directories never indexed.
var skipDirs = map[string]bool{
	"__pycache__":   true,
	"node_modules":  true,
	"venv":          true,
	"env":           true,
	"build":         true,
	"dist":          true,
	"site-packages": true,
}

// discoverFiles lists the .py files under root. Inside a git work tree git
// decides what is ignored; otherwise a top-level .gitignore is honoured.
// Hidden directories and skipDirs are always skipped.
func discoverFiles(root string) ([]string, error) {
	tracked := gitListFiles(root)
	var gi *ignore.GitIgnore
	if tracked == nil {
		gi, _ = ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(name) != ".py" || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		switch {
		case tracked != nil && !tracked[filepath.ToSlash(rel)]:
			return nil
		case gi != nil && gi.MatchesPath(rel):
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// gitListFiles returns the tracked and untracked-but-not-ignored files of
// the git work tree at root, or nil when root is not one.
func gitListFiles(root string) map[string]bool {
	if info, err := os.Stat(filepath.Join(root, ".git")); err != nil || !info.IsDir() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}
	files := make(map[string]bool)
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = true
		}
	}
	return files
}
