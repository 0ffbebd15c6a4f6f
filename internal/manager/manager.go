// Package manager implements the model manager: a process-wide cache of
// built module trees keyed by module identity, with source resolution,
// build deduplication, transforms, module extenders and invalidation.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jward/pyrite/internal/builder"
	"github.com/jward/pyrite/internal/builtins"
	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
)

// Builder turns module source into a tree.
type Builder interface {
	Build(ctx context.Context, src builder.Source) (*nodes.Tree, error)
}

// state is the shared state behind every Manager handle.
type state struct {
	mu       sync.Mutex
	models   map[string]*Model
	overlays map[string]overlay

	searchPath     []string
	transforms     []Transform
	nodeTransforms []NodeTransform
	extenders      map[string][]string
	listeners      []evictListener
	nextListener   uint64

	builder        Builder
	logger         *slog.Logger
	checkStaleness bool

	group   singleflight.Group
	version atomic.Uint64
}

func newState() *state {
	s := &state{
		models:    make(map[string]*Model),
		overlays:  make(map[string]overlay),
		extenders: make(map[string][]string),
		logger:    slog.Default(),
	}
	s.builder = builder.New(s.logger)
	s.registerDefaults()
	return s
}

func (s *state) registerDefaults() {
	s.overlays[builtins.ModuleName] = overlay{content: builtins.Source()}
}

var (
	borgOnce  sync.Once
	borgState *state
)

// Manager is a handle on model manager state. Handles from New share one
// process-wide state; handles from NewIsolated own theirs.
type Manager struct {
	s *state
}

// Option configures the state behind a Manager.
type Option func(*state)

// WithSearchPath sets the directories modules are resolved in, in order.
func WithSearchPath(dirs ...string) Option {
	return func(s *state) { s.searchPath = append([]string(nil), dirs...) }
}

// WithBuilder replaces the tree-sitter builder.
func WithBuilder(b Builder) Option {
	return func(s *state) { s.builder = b }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *state) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStalenessCheck makes GetOrBuild compare a cached model's file
// modification time and size with the file on disk.
func WithStalenessCheck(enabled bool) Option {
	return func(s *state) { s.checkStaleness = enabled }
}

// New returns a handle on the shared process-wide state. Options apply to
// that shared state.
func New(opts ...Option) *Manager {
	borgOnce.Do(func() { borgState = newState() })
	m := &Manager{s: borgState}
	m.configure(opts)
	return m
}

// NewIsolated returns a Manager with private state.
func NewIsolated(opts ...Option) *Manager {
	m := &Manager{s: newState()}
	m.configure(opts)
	return m
}

func (m *Manager) configure(opts []Option) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, opt := range opts {
		opt(m.s)
	}
}

// SearchPath returns the configured search path.
func (m *Manager) SearchPath() []string {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]string(nil), m.s.searchPath...)
}

// RegisterSource makes name resolve to src without touching the file
// system. A cached model of the same name is evicted.
func (m *Manager) RegisterSource(name, src string, pkg bool) {
	m.s.mu.Lock()
	m.s.overlays[name] = overlay{content: []byte(src), pkg: pkg}
	m.s.mu.Unlock()
	m.Invalidate(ModuleIdentity{Name: name})
}

// GetOrBuild returns the cached model for id, building it on first use or
// when it went stale. Concurrent first builds of one module share a single
// build. Failed builds are not cached.
func (m *Manager) GetOrBuild(ctx context.Context, id ModuleIdentity) (*Model, error) {
	src, err := m.s.resolve(id)
	if err != nil {
		return nil, err
	}
	key := cacheKey(src.id)

	m.s.mu.Lock()
	cached := m.s.models[key]
	m.s.mu.Unlock()
	if cached != nil && !m.isStale(cached) {
		return cached, nil
	}

	v, err, _ := m.s.group.Do(key, func() (any, error) {
		m.s.mu.Lock()
		current := m.s.models[key]
		m.s.mu.Unlock()
		if current != nil && current != cached && !current.Stale() {
			return current, nil
		}
		model, err := m.build(ctx, src)
		if err != nil {
			return nil, err
		}
		m.s.mu.Lock()
		old := m.s.models[key]
		m.s.models[key] = model
		listeners := m.s.evictListeners()
		m.s.mu.Unlock()
		if old != nil {
			for _, fn := range listeners {
				fn(old)
			}
		}
		return model, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// Import implements the inference engine's loader: it returns the module
// tree for an absolute dotted name.
func (m *Manager) Import(name string) (*nodes.Node, error) {
	model, err := m.GetOrBuild(context.Background(), ModuleIdentity{Name: name})
	if err != nil {
		return nil, err
	}
	return model.Module, nil
}

// Cached returns the cached model for id without building.
func (m *Manager) Cached(id ModuleIdentity) (*Model, bool) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if id.Path != "" {
		model, ok := m.s.models[cacheKey(id)]
		return model, ok
	}
	for _, model := range m.s.models {
		if model.Identity.Name == id.Name {
			return model, true
		}
	}
	return nil, false
}

// Models returns every cached model.
func (m *Manager) Models() []*Model {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]*Model, 0, len(m.s.models))
	for _, model := range m.s.models {
		out = append(out, model)
	}
	return out
}

// OnEvict registers fn to run for every model dropped from the cache, by
// invalidation or by a rebuild replacing it.
// The returned func unregisters fn; calling it again is a no-op.
func (m *Manager) OnEvict(fn func(*Model)) (cancel func()) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.nextListener++
	id := m.s.nextListener
	m.s.listeners = append(m.s.listeners, evictListener{id: id, fn: fn})
	return func() {
		m.s.mu.Lock()
		defer m.s.mu.Unlock()
		m.s.listeners = slices.DeleteFunc(m.s.listeners, func(l evictListener) bool { return l.id == id })
	}
}

type evictListener struct {
	id uint64
	fn func(*Model)
}

// evictListeners copies the listener funcs. Callers hold s.mu.
func (s *state) evictListeners() []func(*Model) {
	out := make([]func(*Model), len(s.listeners))
	for i, l := range s.listeners {
		out[i] = l.fn
	}
	return out
}

// Invalidate evicts the models of id. Without a path every model of that
// name is evicted. It reports whether anything was evicted.
func (m *Manager) Invalidate(id ModuleIdentity) bool {
	m.s.mu.Lock()
	var evicted []*Model
	for key, model := range m.s.models {
		if model.Identity.Name != id.Name {
			continue
		}
		if id.Path != "" && model.Identity.Path != id.Path {
			continue
		}
		evicted = append(evicted, model)
		delete(m.s.models, key)
	}
	listeners := m.s.evictListeners()
	m.s.mu.Unlock()

	for _, model := range evicted {
		for _, fn := range listeners {
			fn(model)
		}
	}
	return len(evicted) > 0
}

// Reset clears cached models, transforms, extenders and source overlays.
// Eviction listeners are notified for every dropped model and stay
// registered.
func (m *Manager) Reset() {
	m.s.mu.Lock()
	evicted := make([]*Model, 0, len(m.s.models))
	for _, model := range m.s.models {
		evicted = append(evicted, model)
	}
	m.s.models = make(map[string]*Model)
	m.s.overlays = make(map[string]overlay)
	m.s.transforms = nil
	m.s.nodeTransforms = nil
	m.s.extenders = make(map[string][]string)
	m.s.registerDefaults()
	listeners := m.s.evictListeners()
	m.s.mu.Unlock()

	for _, model := range evicted {
		for _, fn := range listeners {
			fn(model)
		}
	}
}

func (m *Manager) isStale(model *Model) bool {
	if model.Stale() {
		return true
	}
	if !m.s.checkStaleness || model.modTime.IsZero() {
		return false
	}
	info, err := os.Stat(model.Identity.Path)
	if err != nil || !info.ModTime().Equal(model.modTime) || info.Size() != model.size {
		model.MarkStale()
		return true
	}
	return false
}

// build parses src, then applies extenders, node transforms and module
// transforms in registration order.
func (m *Manager) build(ctx context.Context, src *source) (*Model, error) {
	start := time.Now()
	if err := src.load(); err != nil {
		return nil, err
	}
	tree, err := m.s.builder.Build(ctx, builder.Source{
		Name:    src.id.Name,
		Path:    src.id.Path,
		Package: src.pkg,
		Content: src.content,
	})
	if err != nil {
		return nil, err
	}

	model := &Model{
		Identity:   src.id,
		Tree:       tree,
		Module:     tree.Root(),
		Package:    src.pkg,
		Synthetic:  src.synthetic,
		BuildID:    uuid.New(),
		SourceHash: xxhash.Sum64(src.content),
		modTime:    src.modTime,
		size:       src.size,
	}

	m.s.mu.Lock()
	extensions := append([]string(nil), m.s.extenders[src.id.Name]...)
	nodeTransforms := append([]NodeTransform(nil), m.s.nodeTransforms...)
	transforms := append([]Transform(nil), m.s.transforms...)
	m.s.mu.Unlock()

	for i, ext := range extensions {
		if err := m.extend(ctx, model, ext, i); err != nil {
			return nil, err
		}
	}
	if len(nodeTransforms) > 0 {
		applyNodeTransforms(model.Module, nodeTransforms)
		model.Transformed = true
	}
	for _, t := range transforms {
		if t.Predicate != nil && !t.Predicate(model) {
			continue
		}
		if err := t.Apply(model); err != nil {
			return nil, errs.Wrap(errs.ErrBuilding, err, "transform %q failed on %s", t.Name, src.id)
		}
		model.Transformed = true
	}

	model.Version = m.s.version.Add(1)
	model.BuiltAt = time.Now()
	m.s.logger.Debug("module built",
		slog.String("module", src.id.Name),
		slog.String("path", src.id.Path),
		slog.Uint64("version", model.Version),
		slog.Duration("elapsed", time.Since(start)),
	)
	return model, nil
}

// extend grafts the definitions of an extension source into the model.
func (m *Manager) extend(ctx context.Context, model *Model, ext string, n int) error {
	name := fmt.Sprintf("%s.<extension %d>", model.Identity.Name, n)
	extTree, err := m.s.builder.Build(ctx, builder.Source{Name: name, Content: []byte(ext)})
	if err != nil {
		return errs.Wrap(errs.ErrBuilding, err, "module extender for %s", model.Identity.Name)
	}
	graftDefinitions(model.Module, extTree.Root())
	model.Transformed = true
	return nil
}
