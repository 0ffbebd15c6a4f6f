package manager

import (
	"slices"

	"github.com/jward/pyrite/internal/nodes"
)

// Transform rewrites a freshly built module before it is cached. Apply runs
// only on models Predicate accepts (all models when Predicate is nil). An
// Apply error fails the build and nothing is cached.
type Transform struct {
	Name      string
	Predicate func(*Model) bool
	Apply     func(*Model) error
}

// NodeTransform replaces nodes of one kind. Rewrite returns the replacement,
// which must belong to the same tree, or nil to keep the node.
type NodeTransform struct {
	Kind      nodes.Kind
	Predicate func(*nodes.Node) bool
	Rewrite   func(*nodes.Node) *nodes.Node
}

// RegisterTransform adds a module transform. Transforms run in registration
// order and apply to modules built afterwards; cached models are untouched
// until they are invalidated.
func (m *Manager) RegisterTransform(t Transform) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.transforms = append(m.s.transforms, t)
}

// RegisterNodeTransform adds a node-level transform for kind.
func (m *Manager) RegisterNodeTransform(kind nodes.Kind, pred func(*nodes.Node) bool, rewrite func(*nodes.Node) *nodes.Node) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.nodeTransforms = append(m.s.nodeTransforms, NodeTransform{Kind: kind, Predicate: pred, Rewrite: rewrite})
}

// RegisterModuleExtender makes every build of target also contain the
// top-level definitions of source. A target with no source of its own
// becomes a synthetic module holding just those definitions. The cached
// target model is evicted so the next import sees the extension.
// Registering the same source for a target twice has no effect.
func (m *Manager) RegisterModuleExtender(target, source string) {
	m.s.mu.Lock()
	if slices.Contains(m.s.extenders[target], source) {
		m.s.mu.Unlock()
		return
	}
	m.s.extenders[target] = append(m.s.extenders[target], source)
	m.s.mu.Unlock()
	m.Invalidate(ModuleIdentity{Name: target})
}

// applyNodeTransforms collects matches first so replacements never see a
// half-rewritten tree.
func applyNodeTransforms(mod *nodes.Node, transforms []NodeTransform) {
	for _, t := range transforms {
		var matches []*nodes.Node
		nodes.Walk(mod, func(n *nodes.Node) bool {
			if n.Kind() == t.Kind && (t.Predicate == nil || t.Predicate(n)) {
				matches = append(matches, n)
			}
			return true
		})
		for _, n := range matches {
			parent := n.Parent()
			if parent == nil {
				continue
			}
			if repl := t.Rewrite(n); repl != nil && repl != n {
				parent.ReplaceChild(n, repl)
			}
		}
	}
}

// graftDefinitions copies every top-level statement of ext into mod and
// binds the names ext defines at module level. Grafted bindings come after
// the native ones, so they win.
func graftDefinitions(mod, ext *nodes.Node) {
	mapping := make(map[nodes.ID]nodes.ID)
	for _, stmt := range ext.Body() {
		_, m := mod.Graft(stmt, nodes.ListBody)
		for from, to := range m {
			mapping[from] = to
		}
	}
	tree := mod.Tree()
	locals := ext.Locals()
	for _, name := range locals.Names() {
		for _, id := range locals.Get(name) {
			if to, ok := mapping[id]; ok {
				mod.AddLocal(name, tree.Node(to))
			}
		}
	}
}
