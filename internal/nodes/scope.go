package nodes

import "github.com/jward/pyrite/internal/errs"

func (n *Node) inList(f ListField, id ID) bool {
	for _, c := range n.lists[f] {
		if c == id {
			return true
		}
	}
	return false
}

// inBody reports whether child is part of the scope's own code (as opposed to
// decorators, bases, defaults or annotations evaluated in the enclosing scope).
func (n *Node) inBody(child ID) bool {
	if n.kind == Lambda {
		return n.slots[SlotValue] == child
	}
	return n.inList(ListBody, child)
}

// Scope returns the scope node in which n is evaluated or bound. Parameters
// belong to their function; defaults, decorators, bases and annotations
// belong to the enclosing scope. The root module has no scope.
func (n *Node) Scope() *Node {
	cur := n
	for p := cur.Parent(); p != nil; cur, p = p, p.Parent() {
		if p.kind == Arguments {
			if p.inList(ListParams, cur.id) || p.inList(ListKwOnly, cur.id) ||
				p.slots[SlotVararg] == cur.id || p.slots[SlotKwarg] == cur.id {
				return p.Parent()
			}
			continue
		}
		if p.kind.IsScope() && p.inBody(cur.id) {
			return p
		}
	}
	return nil
}

// Frame returns n itself when it is a scope node, otherwise its Scope.
func (n *Node) Frame() *Node {
	if n.kind.IsScope() {
		return n
	}
	return n.Scope()
}

// Statement returns the innermost statement containing n.
func (n *Node) Statement() *Node {
	cur := n
	for {
		p := cur.Parent()
		if p == nil {
			return cur
		}
		if p.inList(ListBody, cur.id) || p.inList(ListOrElse, cur.id) ||
			p.inList(ListFinal, cur.id) || p.inList(ListHandlers, cur.id) {
			return cur
		}
		cur = p
	}
}

// IsAncestorOf reports whether n is a proper ancestor of other.
func (n *Node) IsAncestorOf(other *Node) bool {
	if n.tree != other.tree {
		return false
	}
	for p := other.Parent(); p != nil; p = p.Parent() {
		if p == n {
			return true
		}
	}
	return false
}

// Lookup resolves name as referenced from n through the scope chain
// (local, enclosing functions, module). Class scopes are visible only to
// code directly in the class body. It returns the scope that binds the
// name and the visible defining nodes, or a nil scope when the module
// does not bind the name (the caller falls back to builtins).
//
// Within the referencing scope only bindings in earlier statements are
// visible. A later unconditional binding hides earlier ones, and an
// unconditional Del hides everything before it: referencing the name
// afterwards fails with errs.ErrUnresolvableName.
func (n *Node) Lookup(name string) (*Node, []*Node, error) {
	scope := n.Scope()
	if scope == nil {
		scope = n.Root()
	}
	same := true
	for scope != nil {
		switch {
		case scope.kind != Module && scope.IsGlobal(name):
			scope, same = scope.Root(), false
			continue
		case scope.kind != Module && scope.IsNonlocal(name):
			scope, same = outerScope(scope), false
			continue
		}

		if ids := scope.locals.Get(name); len(ids) > 0 {
			defs, deleted := visibleBindings(scope, scope.resolve(ids), n, same)
			if len(defs) > 0 {
				return scope, defs, nil
			}
			if deleted {
				return scope, nil, errs.New(errs.ErrUnresolvableName, "name %q is used after del", name).At(n)
			}
			if same && (scope.kind == FunctionDef || scope.kind == Lambda) {
				return scope, nil, errs.New(errs.ErrUnresolvableName, "local %q referenced before assignment", name).At(n)
			}
		}
		scope, same = outerScope(scope), false
	}
	return nil, nil, nil
}

// outerScope returns the next scope to search from s, skipping class bodies.
func outerScope(s *Node) *Node {
	next := s.Scope()
	for next != nil && next.kind == ClassDef {
		next = next.Scope()
	}
	return next
}

func visibleBindings(scope *Node, defs []*Node, ref *Node, same bool) ([]*Node, bool) {
	refStmt := ref.Statement()
	var out []*Node
	deleted := false
	for _, d := range defs {
		stmt := d.Statement()
		if same && !isParam(d) && !bindingVisible(stmt, refStmt) {
			continue
		}
		unconditional := stmt.Parent() == scope
		if d.kind == Name && d.Ctx == Del {
			if unconditional {
				out = out[:0]
				deleted = true
			}
			continue
		}
		if unconditional {
			out = out[:0]
		}
		out = append(out, d)
		deleted = false
	}
	return out, deleted
}

// isParam reports whether d is a parameter. Parameters are bound before
// any statement of their function runs.
func isParam(d *Node) bool {
	p := d.Parent()
	return p != nil && p.kind == Arguments
}

func bindingVisible(bindStmt, refStmt *Node) bool {
	if bindStmt == refStmt {
		return false
	}
	if bindStmt.tree != refStmt.tree {
		return true
	}
	return bindStmt.Pos.Before(refStmt.Pos) || bindStmt.IsAncestorOf(refStmt)
}

// Bindings returns the definitions of name visible once the scope has run to
// completion: an unconditional binding hides earlier ones and a trailing
// unconditional del hides everything.
func (n *Node) Bindings(name string) []*Node {
	if n.locals == nil {
		return nil
	}
	defs, _ := visibleBindings(n, n.resolve(n.locals.Get(name)), n, false)
	return defs
}
