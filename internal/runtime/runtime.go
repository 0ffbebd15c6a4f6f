// Package runtime embeds a Risor VM that runs brain plugins: scripts that
// teach the engine about modules it cannot infer from source alone.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
)

// Host receives the registrations plugins make.
type Host interface {
	// RegisterModuleExtender adds the definitions of a Python source to
	// every build of the target module.
	RegisterModuleExtender(target, source string)
	// RegisterCallStub infers calls of the function with the given
	// qualified name through the same-named function defined in source.
	RegisterCallStub(qualname, source string) error
	// RegisterSource makes a module name resolve to Python source.
	RegisterSource(name, source string, pkg bool)
}

// Runtime runs Risor plugin scripts against a Host. Scripts, and the
// modules they import, come from a single fs.FS.
type Runtime struct {
	host   Host
	fsys   fs.FS
	logger *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts from fsys instead of from disk.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger sets the logger behind the scripts' log object.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRuntime creates a Runtime registering into host and loading scripts
// from scriptsDir, unless WithRuntimeFS supplies them. host may be nil for
// scripts that only log. With neither a directory nor an FS there are no
// plugins and only RunSource is useful.
func NewRuntime(host Host, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{host: host, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.fsys == nil && scriptsDir != "" {
		r.fsys = os.DirFS(scriptsDir)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

// RunPlugins runs every .risor script at the top of the script source in
// name order, skipping the names in disabled (with or without extension).
// A failing plugin does not stop the others; the failures are joined.
func (r *Runtime) RunPlugins(ctx context.Context, disabled ...string) error {
	names, err := r.Plugins()
	if err != nil {
		return err
	}
	var failed []error
	for _, name := range names {
		if slices.Contains(disabled, name) || slices.Contains(disabled, strings.TrimSuffix(name, ".risor")) {
			r.logger.Debug("plugin disabled", slog.String("plugin", name))
			continue
		}
		if err := r.RunScript(ctx, name, map[string]any{"plugin_name": strings.TrimSuffix(name, ".risor")}); err != nil {
			r.logger.Warn("plugin failed", slog.String("plugin", name), slog.String("error", err.Error()))
			failed = append(failed, err)
			continue
		}
		r.logger.Debug("plugin loaded", slog.String("plugin", name))
	}
	if len(failed) > 0 {
		return fmt.Errorf("runtime: %d plugin(s) failed: %w", len(failed), errors.Join(failed...))
	}
	return nil
}

// Plugins lists the plugin scripts in name order.
func (r *Runtime) Plugins() ([]string, error) {
	if r.fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("runtime: listing plugins: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".risor" {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// PluginsHash digests the names and contents of every plugin. A change
// means previously indexed results may no longer hold.
func (r *Runtime) PluginsHash() (string, error) {
	names, err := r.Plugins()
	if err != nil {
		return "", err
	}
	d := xxhash.New()
	for _, name := range names {
		src, err := r.LoadScript(name)
		if err != nil {
			return "", err
		}
		_, _ = d.WriteString(name)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(src)
		_, _ = d.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", d.Sum64()), nil
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	opts := make([]risor.Option, 0, len(globals)+1)
	names := make([]string, 0, len(globals))
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
		names = append(names, name)
	}
	// Plugins may import shared helpers from the same FS.
	if r.fsys != nil {
		opts = append(opts, risor.WithImporter(importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: names,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return fmt.Errorf("runtime: plugin %s: %w", label, err)
	}
	return nil
}

// LoadScript reads a plugin script. The path is relative to the plugin
// source; a leading slash is ignored.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys == nil {
		return "", fmt.Errorf("runtime: loading %s: no plugin source configured", path)
	}
	name := strings.TrimPrefix(filepath.ToSlash(path), "/")
	data, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return "", fmt.Errorf("runtime: loading %s: %w", name, err)
	}
	return string(data), nil
}

func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log": mustProxy(&logObject{logger: r.logger}),
	}
	if r.host != nil {
		globals["register_extender"] = makeRegisterExtenderFn(r.host)
		globals["register_call_stub"] = makeRegisterCallStubFn(r.host)
		globals["register_source"] = makeRegisterSourceFn(r.host)
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
