package builder

import (
	"strings"

	"github.com/jward/pyrite/internal/nodes"
)

// bind populates the locals of every scope in the module and the instance
// attributes of every class. global and nonlocal declarations apply to the
// whole scope, so they are collected first.
func bind(mod *nodes.Node) {
	nodes.Walk(mod, func(n *nodes.Node) bool {
		switch n.Kind() {
		case nodes.Global:
			if s := n.Scope(); s != nil {
				for _, name := range n.Names {
					s.DeclareGlobal(name)
				}
			}
		case nodes.Nonlocal:
			if s := n.Scope(); s != nil {
				for _, name := range n.Names {
					s.DeclareNonlocal(name)
				}
			}
		}
		return true
	})

	nodes.Walk(mod, func(n *nodes.Node) bool {
		switch n.Kind() {
		case nodes.FunctionDef, nodes.ClassDef:
			bindName(n.Scope(), n.Name, n)
		case nodes.Name:
			if n.Ctx == nodes.Store || n.Ctx == nodes.Del {
				bindName(n.Scope(), n.Name, n)
			}
		case nodes.Attribute:
			if n.Ctx == nodes.Store {
				bindInstanceAttr(n)
			}
		case nodes.Import:
			for _, a := range n.Aliases {
				name := a.AsName
				if name == "" {
					// `import a.b.c` binds `a`.
					name, _, _ = strings.Cut(a.Name, ".")
				}
				bindName(n.Scope(), name, n)
			}
		case nodes.ImportFrom:
			for _, a := range n.Aliases {
				if a.Name != "*" {
					bindName(n.Scope(), a.Bound(), n)
				}
			}
		}
		return true
	})
}

func bindName(scope *nodes.Node, name string, def *nodes.Node) {
	if scope == nil {
		return
	}
	if scope.Kind() != nodes.Module {
		if scope.IsGlobal(name) {
			scope = scope.Root()
		} else if scope.IsNonlocal(name) {
			return
		}
	}
	scope.AddLocal(name, def)
}

// bindInstanceAttr records `self.x = ...` inside a method on the class.
func bindInstanceAttr(attr *nodes.Node) {
	recv := attr.Value()
	if recv == nil || recv.Kind() != nodes.Name {
		return
	}
	fn := attr.Scope()
	if fn == nil || fn.Kind() != nodes.FunctionDef || fn.FunctionType() != nodes.Method {
		return
	}
	params := fn.Args().Params()
	if len(params) == 0 || params[0].Name != recv.Name {
		return
	}
	if class := fn.Scope(); class != nil && class.Kind() == nodes.ClassDef {
		class.AddInstanceAttr(attr.Name, attr)
	}
}
