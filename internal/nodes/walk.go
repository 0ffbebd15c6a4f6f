package nodes

// Walk visits n and its descendants in source order. Returning false from
// fn skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}

// WalkScope visits the descendants of a scope node that belong to it,
// without descending into nested functions, lambdas or classes.
func WalkScope(scope *Node, fn func(*Node)) {
	for _, c := range scope.Children() {
		walkScope(scope, c, fn)
	}
}

func walkScope(scope, n *Node, fn func(*Node)) {
	fn(n)
	if n.kind.IsScope() {
		// Decorators, defaults and bases still belong to the outer scope.
		for _, c := range n.Children() {
			if c.Scope() == scope {
				walkScope(scope, c, fn)
			}
		}
		return
	}
	for _, c := range n.Children() {
		walkScope(scope, c, fn)
	}
}

// NodeAt returns the innermost node whose span contains (line, col), or nil.
func NodeAt(root *Node, line, col int) *Node {
	var found *Node
	Walk(root, func(n *Node) bool {
		if n.kind == Module {
			return true
		}
		if !n.Pos.Contains(line, col) {
			return false
		}
		found = n
		return true
	})
	return found
}

// ReturnsOf returns the Return statements belonging to a function body.
func ReturnsOf(fn *Node) []*Node {
	var out []*Node
	WalkScope(fn, func(n *Node) {
		if n.kind == Return {
			out = append(out, n)
		}
	})
	return out
}
