package inference

import (
	"sync"

	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
)

// Result is a handler's answer for one node.
type Result struct {
	values   []Value
	err      error
	declined bool
}

// Produced answers with values. An empty set is a valid answer.
func Produced(values ...Value) Result { return Result{values: values} }

// Declined lets the next handler for the node try.
func Declined() Result { return Result{declined: true} }

// Failed answers with an error. Local failures are reported as Uninferable;
// structural ones (MRO, super, building) surface to the caller of Infer.
// errs.ErrUseInferenceDefault behaves like Declined.
func Failed(err error) Result { return Result{err: err} }

// Values returns the produced values.
func (r Result) Values() []Value { return r.values }

// Err returns the failure, if any.
func (r Result) Err() error { return r.err }

// IsDeclined reports whether the handler declined the node.
func (r Result) IsDeclined() bool { return r.declined }

// Predicate selects the nodes a tip applies to. A nil predicate matches
// every node of the tip's kind.
type Predicate func(n *nodes.Node) bool

// Handler infers a node.
type Handler func(n *nodes.Node, ic *Context) Result

type tip struct {
	name    string
	kind    nodes.Kind
	pred    Predicate
	handler Handler
}

type tipOptions struct {
	name     string
	override bool
}

// TipOption configures Register.
type TipOption func(*tipOptions)

// WithTipName names a tip. Registering a second tip under the same name
// fails with errs.ErrInferenceOverwrite unless WithOverride is given.
func WithTipName(name string) TipOption {
	return func(o *tipOptions) { o.name = name }
}

// WithOverride replaces an existing tip of the same name.
func WithOverride() TipOption {
	return func(o *tipOptions) { o.override = true }
}

// Registry maps node kinds to inference tips. Later registrations take
// precedence over earlier ones.
type Registry struct {
	mu    sync.RWMutex
	tips  map[nodes.Kind][]*tip
	named map[string]*tip
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tips:  make(map[nodes.Kind][]*tip),
		named: make(map[string]*tip),
	}
}

// Register adds a tip for nodes of kind matching pred.
func (r *Registry) Register(kind nodes.Kind, pred Predicate, h Handler, opts ...TipOption) error {
	var o tipOptions
	for _, opt := range opts {
		opt(&o)
	}
	t := &tip{name: o.name, kind: kind, pred: pred, handler: h}

	r.mu.Lock()
	defer r.mu.Unlock()
	if o.name != "" {
		if old, ok := r.named[o.name]; ok {
			if !o.override {
				return errs.New(errs.ErrInferenceOverwrite, "inference tip %q is already registered", o.name)
			}
			r.remove(old)
		}
		r.named[o.name] = t
	}
	r.tips[kind] = append(r.tips[kind], t)
	return nil
}

func (r *Registry) remove(old *tip) {
	list := r.tips[old.kind]
	for i, t := range list {
		if t == old {
			r.tips[old.kind] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	delete(r.named, old.name)
}

// Lookup returns the handlers whose predicates match n, newest first.
func (r *Registry) Lookup(n *nodes.Node) []Handler {
	r.mu.RLock()
	list := r.tips[n.Kind()]
	r.mu.RUnlock()

	var out []Handler
	for i := len(list) - 1; i >= 0; i-- {
		if t := list[i]; t.pred == nil || t.pred(n) {
			out = append(out, t.handler)
		}
	}
	return out
}

// Names returns the registered tip names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.named))
	for name := range r.named {
		out = append(out, name)
	}
	return out
}
