package nodes

// Locals is an insertion-ordered symbol table: name → defining nodes.
// Both the name order and the order of each name's definitions are
// preserved; later definitions shadow earlier ones during lookup.
type Locals struct {
	names []string
	defs  map[string][]ID
}

func newLocals() *Locals {
	return &Locals{defs: make(map[string][]ID)}
}

// Add appends a defining node for name.
func (l *Locals) Add(name string, id ID) {
	if _, ok := l.defs[name]; !ok {
		l.names = append(l.names, name)
	}
	l.defs[name] = append(l.defs[name], id)
}

// Get returns the defining handles for name in insertion order.
func (l *Locals) Get(name string) []ID {
	return l.defs[name]
}

// Has reports whether name has any definition.
func (l *Locals) Has(name string) bool {
	_, ok := l.defs[name]
	return ok
}

// Names returns the bound names in first-definition order.
func (l *Locals) Names() []string {
	return append([]string(nil), l.names...)
}

// Len returns the number of distinct names.
func (l *Locals) Len() int { return len(l.names) }

// AddLocal binds name to def in the scope node n.
func (n *Node) AddLocal(name string, def *Node) {
	if n.locals == nil {
		return
	}
	n.mustOwn(def)
	n.locals.Add(name, def.id)
}

// AddInstanceAttr records a `self.name = ...` target on a class.
func (n *Node) AddInstanceAttr(name string, target *Node) {
	if n.instanceAttrs == nil {
		return
	}
	n.mustOwn(target)
	n.instanceAttrs.Add(name, target.id)
}
