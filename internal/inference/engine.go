// Package inference implements the inference engine: a registry of
// per-kind inference tips, a dispatcher with a shared write-once result
// cache and per-query cycle breaking, and the default tips for Python
// names, attributes, calls, operators, imports and super().
package inference

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/jward/pyrite/internal/builtins"
	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/mro"
	"github.com/jward/pyrite/internal/nodes"
)

const (
	// MaxValues caps the values of one inference; truncated results end
	// with Uninferable.
	MaxValues = 100
	// maxCallDepth bounds nested call frames.
	maxCallDepth = 64
)

// Loader provides module trees by absolute dotted name. The model manager
// implements it.
type Loader interface {
	Import(name string) (*nodes.Node, error)
}

// Engine infers values for nodes.
type Engine struct {
	loader   Loader
	registry *Registry
	resolver *mro.Resolver
	cache    cache
	logger   *slog.Logger

	stubs sync.Map // qualified name → CallStub

	builtinsOnce sync.Once
	builtinsMod  *nodes.Node
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	maxMRODepth int
	logger      *slog.Logger
	registry    *Registry
}

// WithMaxMRODepth bounds MRO resolution depth.
func WithMaxMRODepth(depth int) Option {
	return func(o *engineOptions) { o.maxMRODepth = depth }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithRegistry makes the engine use (and populate) an existing registry.
func WithRegistry(r *Registry) Option {
	return func(o *engineOptions) { o.registry = r }
}

// New creates an Engine loading modules through loader and registers the
// default tips.
func New(loader Loader, opts ...Option) *Engine {
	o := engineOptions{maxMRODepth: mro.DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	e := &Engine{loader: loader, registry: o.registry, logger: o.logger}
	e.resolver = mro.New(e, e.objectClass, o.maxMRODepth)
	e.registerDefaults()
	return e
}

// Registry returns the tip registry.
func (e *Engine) Registry() *Registry { return e.registry }

// RegisterTip adds an inference tip. See Registry.Register.
func (e *Engine) RegisterTip(kind nodes.Kind, pred Predicate, h Handler, opts ...TipOption) error {
	return e.registry.Register(kind, pred, h, opts...)
}

// Infer returns the possible values of n. Local failures come back as
// [Uninferable]; MRO, super and building failures of n itself are returned
// as errors. A nil ic starts a fresh query.
func (e *Engine) Infer(n *nodes.Node, ic *Context) ([]Value, error) {
	if ic == nil {
		ic = NewContext()
	}
	vals, err := e.infer(n, ic)
	if err != nil && errs.IsStructural(err) {
		return nil, err
	}
	return vals, nil
}

// InferOrFail is Infer for callers that need an answer: the local failure,
// or errs.ErrInference for an empty result, is returned as an error.
func (e *Engine) InferOrFail(n *nodes.Node, ic *Context) ([]Value, error) {
	if ic == nil {
		ic = NewContext()
	}
	vals, err := e.infer(n, ic)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, errs.New(errs.ErrInference, "inference produced no values").At(n)
	}
	return vals, nil
}

// ComputeMRO returns the MRO of class, degrading unresolvable bases.
func (e *Engine) ComputeMRO(class *nodes.Node) ([]*nodes.Node, error) {
	return e.resolver.Compute(class)
}

// ComputeMROStrict returns the MRO of class, failing on unresolvable bases.
func (e *Engine) ComputeMROStrict(class *nodes.Node) ([]*nodes.Node, error) {
	return e.resolver.ComputeStrict(class)
}

// Invalidate drops cached results for nodes of the tree with serial.
func (e *Engine) Invalidate(serial uint64) {
	e.cache.drop(serial)
}

// Reset drops every cached result.
func (e *Engine) Reset() { e.cache.reset() }

// infer is the cached, cycle-breaking entry point used by every handler.
func (e *Engine) infer(n *nodes.Node, ic *Context) ([]Value, error) {
	if n == nil {
		return nil, nil
	}
	if n.IsSynthetic() {
		return e.dispatch(n, ic)
	}
	key := cacheKey{id: n.ID(), sig: ic.sig}
	if hit, ok := e.cache.load(n, key); ok {
		ic.sess.replay(hit.diags)
		return hit.values, hit.err
	}
	if ic.depth() > maxCallDepth {
		return []Value{Uninferable}, nil
	}

	f, ok := ic.sess.enter(progressKey{node: n.Key(), sig: ic.shallow})
	if !ok {
		// Re-entry of an in-progress inference contributes nothing.
		return nil, nil
	}
	vals, err := e.dispatch(n, ic)
	diags := ic.sess.leave(f)
	if f.tainted {
		return vals, err
	}
	won := e.cache.store(n, key, &entry{values: vals, err: err, diags: diags})
	return won.values, won.err
}

// dispatch runs the handlers for n until one does not decline.
func (e *Engine) dispatch(n *nodes.Node, ic *Context) ([]Value, error) {
	for _, h := range e.registry.Lookup(n) {
		res := h(n, ic)
		if res.declined {
			continue
		}
		if res.err != nil {
			if errors.Is(res.err, errs.ErrUseInferenceDefault) {
				continue
			}
			return []Value{Uninferable}, res.err
		}
		return truncate(dedupe(res.values)), nil
	}
	ic.sess.record(errs.New(errs.ErrInference, "no inference tip for %s", n.Kind()).At(n))
	return nil, nil
}

func truncate(vals []Value) []Value {
	if len(vals) <= MaxValues {
		return vals
	}
	out := append([]Value(nil), vals[:MaxValues-1]...)
	return append(out, Uninferable)
}

// values infers n for use inside another inference: failures become
// Uninferable, and nested structural failures are recorded as diagnostics.
func (e *Engine) values(n *nodes.Node, ic *Context) []Value {
	vals, err := e.infer(n, ic)
	if err != nil {
		if errs.IsStructural(err) {
			ic.sess.record(err)
		}
		if len(vals) == 0 {
			return []Value{Uninferable}
		}
	}
	return vals
}

// builtinsModule returns the loaded builtins module, or nil.
func (e *Engine) builtinsModule() *nodes.Node {
	e.builtinsOnce.Do(func() {
		if e.loader == nil {
			return
		}
		mod, err := e.loader.Import(builtins.ModuleName)
		if err != nil {
			e.logger.Warn("builtins module unavailable", slog.String("error", err.Error()))
			return
		}
		e.builtinsMod = mod
	})
	return e.builtinsMod
}

// builtinClass returns the builtins class called name, or nil.
func (e *Engine) builtinClass(name string) *nodes.Node {
	mod := e.builtinsModule()
	if mod == nil {
		return nil
	}
	for _, def := range mod.Bindings(name) {
		if def.Kind() == nodes.ClassDef {
			return def
		}
	}
	return nil
}

// isBuiltin reports whether def is the builtins definition called name.
func (e *Engine) isBuiltin(def *nodes.Node, name string) bool {
	mod := e.builtinsModule()
	return mod != nil && def.Root() == mod && def.Name == name
}

func (e *Engine) objectClass() *nodes.Node { return e.builtinClass("object") }

// InferBases implements mro.BaseInferer: each base expression of class
// resolves to the classes it may denote.
func (e *Engine) InferBases(class *nodes.Node) [][]*nodes.Node {
	bases := class.Bases()
	out := make([][]*nodes.Node, 0, len(bases))
	ic := NewContext()
	for _, b := range bases {
		var cands []*nodes.Node
		for _, v := range e.values(b, ic) {
			if c, ok := asNode(v, nodes.ClassDef); ok && !containsNode(cands, c) {
				cands = append(cands, c)
			}
		}
		out = append(out, cands)
	}
	return out
}

func containsNode(list []*nodes.Node, n *nodes.Node) bool {
	for _, m := range list {
		if m == n {
			return true
		}
	}
	return false
}

// classOf returns the class of a value: the instance's class, the builtins
// class of a literal or function, or `type` for classes.
func (e *Engine) classOf(v Value) *nodes.Node {
	switch x := v.(type) {
	case *Instance:
		return x.Class
	case *BoundMethod, *UnboundMethod:
		return e.builtinClass("function")
	case *nodes.Node:
		switch x.Kind() {
		case nodes.ClassDef:
			return e.builtinClass("type")
		case nodes.FunctionDef, nodes.Lambda:
			return e.builtinClass("function")
		case nodes.Module:
			return e.builtinClass("module")
		case nodes.Const, nodes.JoinedStr, nodes.List, nodes.Tuple, nodes.Set, nodes.Dict:
			return e.builtinClass(x.PyType())
		}
	}
	return nil
}

// isSubclass reports whether sub has sup in its MRO.
func (e *Engine) isSubclass(sub, sup *nodes.Node) bool {
	classes, err := e.resolver.Compute(sub)
	if err != nil {
		return false
	}
	return containsNode(classes, sup)
}
