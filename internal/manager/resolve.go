package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jward/pyrite/internal/errs"
)

// source is a resolved module ready to build.
type source struct {
	id        ModuleIdentity
	content   []byte
	pkg       bool
	file      bool
	synthetic bool
	modTime   time.Time
	size      int64
}

// load reads a file-backed source. Resolution only locates files so cache
// hits never read them.
func (src *source) load() error {
	if !src.file || src.content != nil {
		return nil
	}
	info, err := os.Stat(src.id.Path)
	if err != nil {
		return errs.Wrap(errs.ErrImport, err, "stat %s", src.id.Path)
	}
	content, err := os.ReadFile(src.id.Path)
	if err != nil {
		return errs.Wrap(errs.ErrImport, err, "read %s", src.id.Path)
	}
	src.content, src.modTime, src.size = content, info.ModTime(), info.Size()
	return nil
}

// overlay is source registered in memory for a module name.
type overlay struct {
	content []byte
	pkg     bool
}

func cacheKey(id ModuleIdentity) string {
	return id.Name + "\x00" + id.Path
}

// resolve locates the source of id: an explicit path, a registered overlay,
// the search path, or an empty synthetic module when only extenders target
// the name.
func (s *state) resolve(id ModuleIdentity) (*source, error) {
	if id.Path != "" {
		return fileSource(id, strings.HasSuffix(filepath.Base(id.Path), "__init__.py"))
	}

	s.mu.Lock()
	ov, hasOverlay := s.overlays[id.Name]
	dirs := append([]string(nil), s.searchPath...)
	_, extended := s.extenders[id.Name]
	s.mu.Unlock()

	if hasOverlay {
		return &source{id: id, content: ov.content, pkg: ov.pkg}, nil
	}

	rel := filepath.FromSlash(strings.ReplaceAll(id.Name, ".", "/"))
	for _, dir := range dirs {
		file := filepath.Join(dir, rel+".py")
		if fileExists(file) {
			return fileSource(ModuleIdentity{Name: id.Name, Path: file}, false)
		}
		init := filepath.Join(dir, rel, "__init__.py")
		if fileExists(init) {
			return fileSource(ModuleIdentity{Name: id.Name, Path: init}, true)
		}
		if dirExists(filepath.Join(dir, rel)) {
			// Namespace package.
			return &source{id: ModuleIdentity{Name: id.Name, Path: filepath.Join(dir, rel)}, pkg: true}, nil
		}
	}

	if extended {
		return &source{id: id, synthetic: true}, nil
	}
	return nil, errs.New(errs.ErrImport, "no module named %q", id.Name)
}

func fileSource(id ModuleIdentity, pkg bool) (*source, error) {
	if !fileExists(id.Path) {
		return nil, errs.New(errs.ErrImport, "no module file %s", id.Path)
	}
	return &source{id: id, pkg: pkg, file: true}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ModuleName derives the dotted module name of file relative to root:
// pkg/sub/mod.py is pkg.sub.mod and pkg/__init__.py is pkg.
func ModuleName(root, file string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", fmt.Errorf("manager: module name for %s: %w", file, err)
	}
	rel = filepath.ToSlash(strings.TrimSuffix(rel, ".py"))
	rel = strings.TrimSuffix(rel, "/__init__")
	if rel == "__init__" {
		rel = filepath.Base(root)
	}
	return strings.ReplaceAll(rel, "/", "."), nil
}
