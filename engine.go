package pyrite

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jward/pyrite/brain"
	"github.com/jward/pyrite/internal/config"
	"github.com/jward/pyrite/internal/inference"
	"github.com/jward/pyrite/internal/manager"
	"github.com/jward/pyrite/internal/mro"
	"github.com/jward/pyrite/internal/nodes"
	"github.com/jward/pyrite/internal/runtime"
	"github.com/jward/pyrite/internal/store"
)

// Engine ties the model manager, the inference engine, the brain plugins
// and the optional SQLite index together.
type Engine struct {
	mgr     *manager.Manager
	inf     *inference.Engine
	runtime *runtime.Runtime
	store   *store.Store
	logger  *slog.Logger
	unwatch func()

	dbPath          string
	searchPath      []string
	pluginsFS       fs.FS
	pluginsDir      string
	disabledPlugins []string
	noPlugins       bool
	maxMRODepth     int
	workers         int
	checkStaleness  bool
	isolated        bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDatabase enables the SQLite index at path. Without it IndexFiles,
// IndexDirectory and Query are unavailable.
func WithDatabase(path string) Option {
	return func(e *Engine) { e.dbPath = path }
}

// WithSearchPath sets the roots modules are imported from.
func WithSearchPath(dirs ...string) Option {
	return func(e *Engine) { e.searchPath = append([]string(nil), dirs...) }
}

// WithPluginsFS loads brain plugins from fsys instead of the embedded set.
func WithPluginsFS(fsys fs.FS) Option {
	return func(e *Engine) { e.pluginsFS = fsys }
}

// WithPluginsDir loads brain plugins from a directory on disk. It takes
// precedence over WithPluginsFS.
func WithPluginsDir(dir string) Option {
	return func(e *Engine) { e.pluginsDir = dir }
}

// WithDisabledPlugins skips the named plugins.
func WithDisabledPlugins(names ...string) Option {
	return func(e *Engine) { e.disabledPlugins = append(e.disabledPlugins, names...) }
}

// WithoutPlugins runs no brain plugins at all.
func WithoutPlugins() Option {
	return func(e *Engine) { e.noPlugins = true }
}

// WithMaxMRODepth bounds MRO resolution.
func WithMaxMRODepth(depth int) Option {
	return func(e *Engine) { e.maxMRODepth = depth }
}

// WithWorkers sizes the indexing worker pool. Zero means one per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithStalenessCheck makes cached models compare their file's modification
// time on every access.
func WithStalenessCheck(enabled bool) Option {
	return func(e *Engine) { e.checkStaleness = enabled }
}

// WithLogger sets the logger used by every component.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIsolatedManager gives the Engine a private model manager instead of
// the process-wide one.
func WithIsolatedManager() Option {
	return func(e *Engine) { e.isolated = true }
}

// WithConfig applies a loaded configuration. Options after it override it.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		if len(cfg.SearchPath) > 0 {
			e.searchPath = append([]string(nil), cfg.SearchPath...)
		}
		if cfg.Database != "" {
			e.dbPath = cfg.Database
		}
		if cfg.PluginsDir != "" {
			e.pluginsDir = cfg.PluginsDir
		}
		if cfg.MaxMRODepth > 0 {
			e.maxMRODepth = cfg.MaxMRODepth
		}
		e.disabledPlugins = append(e.disabledPlugins, cfg.DisablePlugins...)
		e.workers = cfg.Workers
		e.checkStaleness = cfg.CheckStaleness
	}
}

// New creates an Engine. Brain plugins run before New returns; a plugin
// that fails to load fails New.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:      slog.Default(),
		maxMRODepth: mro.DefaultMaxDepth,
		pluginsFS:   brain.FS,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.dbPath != "" {
		if dir := filepath.Dir(e.dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("pyrite: create database dir: %w", err)
			}
		}
		s, err := store.NewStore(e.dbPath)
		if err != nil {
			return nil, fmt.Errorf("pyrite: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("pyrite: migrate: %w", err)
		}
		e.store = s
	}

	mgrOpts := []manager.Option{
		manager.WithLogger(e.logger),
		manager.WithStalenessCheck(e.checkStaleness),
	}
	if len(e.searchPath) > 0 {
		mgrOpts = append(mgrOpts, manager.WithSearchPath(e.searchPath...))
	}
	if e.isolated {
		e.mgr = manager.NewIsolated(mgrOpts...)
	} else {
		e.mgr = manager.New(mgrOpts...)
	}

	e.inf = inference.New(e.mgr,
		inference.WithMaxMRODepth(e.maxMRODepth),
		inference.WithLogger(e.logger),
	)
	// Cached inference results die with the tree they were computed on.
	e.unwatch = e.mgr.OnEvict(func(m *manager.Model) { e.inf.Invalidate(m.Tree.Serial()) })

	rtOpts := []runtime.RuntimeOption{runtime.WithRuntimeLogger(e.logger)}
	if e.pluginsDir == "" && e.pluginsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.pluginsFS))
	}
	e.runtime = runtime.NewRuntime(e, e.pluginsDir, rtOpts...)

	if !e.noPlugins {
		if err := e.runtime.RunPlugins(context.Background(), e.disabledPlugins...); err != nil {
			e.Close()
			return nil, fmt.Errorf("pyrite: %w", err)
		}
	}
	return e, nil
}

// Close detaches the Engine from the model manager and releases its
// database. Models stay cached for other Engines on the shared manager.
func (e *Engine) Close() error {
	if e.unwatch != nil {
		e.unwatch()
		e.unwatch = nil
	}
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Manager returns the model manager.
func (e *Engine) Manager() *Manager { return e.mgr }

// Inference returns the inference engine.
func (e *Engine) Inference() *inference.Engine { return e.inf }

// Store returns the underlying Store, or nil without a database.
func (e *Engine) Store() *Store { return e.store }

// Query returns a QueryBuilder over the index, or nil without a database.
func (e *Engine) Query() *QueryBuilder {
	if e.store == nil {
		return nil
	}
	return &QueryBuilder{store: e.store}
}

// Infer returns the possible values of n. A nil ic starts a fresh query.
func (e *Engine) Infer(n *Node, ic *InferenceContext) ([]Value, error) {
	vals, err := e.inf.Infer(n, ic)
	if err != nil {
		return nil, fmt.Errorf("pyrite: infer %s: %w", n, err)
	}
	return vals, nil
}

// InferOrFail is Infer that also fails when nothing could be inferred.
func (e *Engine) InferOrFail(n *Node, ic *InferenceContext) ([]Value, error) {
	vals, err := e.inf.InferOrFail(n, ic)
	if err != nil {
		return nil, fmt.Errorf("pyrite: infer %s: %w", n, err)
	}
	return vals, nil
}

// ComputeMRO returns the MRO of class, degrading unresolvable bases.
func (e *Engine) ComputeMRO(class *Node) ([]*Node, error) {
	return e.inf.ComputeMRO(class)
}

// ComputeMROStrict returns the MRO of class or the resolution error.
func (e *Engine) ComputeMROStrict(class *Node) ([]*Node, error) {
	return e.inf.ComputeMROStrict(class)
}

// RegisterInferenceTip adds an inference tip for nodes of kind.
func (e *Engine) RegisterInferenceTip(kind Kind, pred Predicate, h Handler, opts ...TipOption) error {
	if err := e.inf.RegisterTip(kind, pred, h, opts...); err != nil {
		return fmt.Errorf("pyrite: register tip: %w", err)
	}
	return nil
}

// RegisterModuleExtender adds the definitions of a Python source to every
// build of target.
func (e *Engine) RegisterModuleExtender(target, source string) {
	e.mgr.RegisterModuleExtender(target, source)
}

// RegisterSource makes a module name resolve to Python source.
func (e *Engine) RegisterSource(name, source string, pkg bool) {
	e.mgr.RegisterSource(name, source, pkg)
}

// stubModulePrefix namespaces the modules holding call stub sources.
const stubModulePrefix = "pyrite_stub."

// RegisterCallStub makes calls to the function qualname infer through the
// same-named function defined in source, evaluated with the call's
// arguments.
func (e *Engine) RegisterCallStub(qualname, source string) error {
	short := qualname[strings.LastIndex(qualname, ".")+1:]
	if short == "" {
		return fmt.Errorf("pyrite: call stub %q: empty function name", qualname)
	}
	modName := stubModulePrefix + qualname
	e.mgr.RegisterSource(modName, source, false)

	mod, err := e.mgr.Import(modName)
	if err != nil {
		return fmt.Errorf("pyrite: call stub %q: %w", qualname, err)
	}
	if stubFunction(mod, short) == nil {
		return fmt.Errorf("pyrite: call stub %q: source defines no function %s", qualname, short)
	}

	e.inf.RegisterCallStub(qualname, func(_ *nodes.Node, cc *inference.CallContext, ic *inference.Context) []inference.Value {
		// Re-imported on every call so the stub survives cache eviction.
		mod, err := e.mgr.Import(modName)
		if err != nil {
			return []inference.Value{inference.Uninferable}
		}
		fn := stubFunction(mod, short)
		if fn == nil {
			return []inference.Value{inference.Uninferable}
		}
		return e.inf.CallFunction(fn, cc, ic)
	})
	return nil
}

func stubFunction(mod *nodes.Node, name string) *nodes.Node {
	defs := mod.LocalNodes(name)
	for i := len(defs) - 1; i >= 0; i-- {
		if defs[i].Kind() == nodes.FunctionDef {
			return defs[i]
		}
	}
	return nil
}

// Module returns the module tree for an absolute dotted name.
func (e *Engine) Module(ctx context.Context, name string) (*Node, error) {
	model, err := e.mgr.GetOrBuild(ctx, ModuleIdentity{Name: name})
	if err != nil {
		return nil, fmt.Errorf("pyrite: module %s: %w", name, err)
	}
	return model.Module, nil
}

// ParseSource registers src as the module name and returns its tree. The
// module is importable by that name afterwards.
func (e *Engine) ParseSource(ctx context.Context, name, src string) (*Node, error) {
	e.mgr.RegisterSource(name, src, false)
	return e.Module(ctx, name)
}

// File returns the model of the Python file at path. The module is named
// relative to the search path root containing it.
func (e *Engine) File(ctx context.Context, path string) (*Model, error) {
	id, err := e.identityFor(path)
	if err != nil {
		return nil, err
	}
	model, err := e.mgr.GetOrBuild(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pyrite: file %s: %w", path, err)
	}
	return model, nil
}

func (e *Engine) identityFor(path string) (ModuleIdentity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ModuleIdentity{}, fmt.Errorf("pyrite: resolve %s: %w", path, err)
	}
	for _, dir := range e.mgr.SearchPath() {
		rel, err := filepath.Rel(dir, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		name, err := manager.ModuleName(dir, abs)
		if err != nil {
			return ModuleIdentity{}, err
		}
		return ModuleIdentity{Name: name, Path: abs}, nil
	}
	name := strings.TrimSuffix(filepath.Base(abs), ".py")
	if name == "__init__" {
		name = filepath.Base(filepath.Dir(abs))
	}
	return ModuleIdentity{Name: name, Path: abs}, nil
}

// NodeAt returns the innermost node of module spanning (line, col). Lines
// are 1-based and columns 0-based.
func (e *Engine) NodeAt(module *Node, line, col int) *Node {
	return nodes.NodeAt(module, line, col)
}

// NodeAtPath is NodeAt on the file at path.
func (e *Engine) NodeAtPath(ctx context.Context, path string, line, col int) (*Node, error) {
	model, err := e.File(ctx, path)
	if err != nil {
		return nil, err
	}
	n := nodes.NodeAt(model.Module, line, col)
	if n == nil {
		return nil, fmt.Errorf("pyrite: no node at %s:%d:%d", path, line, col)
	}
	return n, nil
}

// InferAt infers the innermost expression at (line, col) of the file at
// path.
func (e *Engine) InferAt(ctx context.Context, path string, line, col int) ([]Value, error) {
	n, err := e.NodeAtPath(ctx, path, line, col)
	if err != nil {
		return nil, err
	}
	return e.Infer(n, nil)
}

// Class finds the class with the dotted name (relative to the module, for
// example "Outer.Inner") in module.
func (e *Engine) Class(module *Node, name string) (*Node, error) {
	scope := module
	var found *Node
	for _, part := range strings.Split(name, ".") {
		found = nil
		defs := scope.LocalNodes(part)
		for i := len(defs) - 1; i >= 0; i-- {
			if defs[i].Kind() == nodes.ClassDef {
				found = defs[i]
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("pyrite: no class %s in %s", name, module.QualName())
		}
		scope = found
	}
	return found, nil
}

// Watch marks cached models stale when their files under the search path
// change. It returns once the watcher is running.
func (e *Engine) Watch(ctx context.Context) error {
	return e.mgr.Watch(ctx, e.mgr.SearchPath()...)
}

// Plugins lists the brain plugins available to the Engine.
func (e *Engine) Plugins() ([]string, error) {
	return e.runtime.Plugins()
}

// PluginsChanged reports whether the brain plugins differ from those the
// index was built with. It is true for an index built without a recorded
// hash.
func (e *Engine) PluginsChanged() bool {
	if e.store == nil {
		return false
	}
	current, err := e.runtime.PluginsHash()
	if err != nil {
		return true
	}
	stored, ok, err := e.store.Metadata(pluginsHashKey)
	if err != nil || !ok {
		return true
	}
	return stored != current
}

const pluginsHashKey = "plugins_hash"

func (e *Engine) storePluginsHash() {
	h, err := e.runtime.PluginsHash()
	if err != nil {
		e.logger.Warn("plugins hash", slog.String("error", err.Error()))
		return
	}
	if err := e.store.SetMetadata(pluginsHashKey, h); err != nil {
		e.logger.Warn("store plugins hash", slog.String("error", err.Error()))
	}
}
