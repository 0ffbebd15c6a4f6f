package nodes

import "slices"

// Graft copies the subtree rooted at src (usually from another tree) into
// n's tree, appends the copy to n's field f and returns it together with the
// handle mapping from src's tree to the copies. Locals and instance
// attributes inside the subtree are remapped; references leaving the
// subtree are dropped.
//
// The grafted statement gets a zero position so same-scope lookups treat it
// as bound before any native statement.
func (n *Node) Graft(src *Node, f ListField) (*Node, map[ID]ID) {
	mapping := make(map[ID]ID)
	cp := n.tree.copySubtree(src, mapping)
	for oldID, newID := range mapping {
		orig := src.tree.Node(oldID)
		dst := n.tree.Node(newID)
		if orig.locals != nil {
			dst.locals = remapLocals(orig.locals, mapping)
		}
		if orig.instanceAttrs != nil {
			dst.instanceAttrs = remapLocals(orig.instanceAttrs, mapping)
		}
		for name := range orig.globals {
			dst.DeclareGlobal(name)
		}
		for name := range orig.nonlocals {
			dst.DeclareNonlocal(name)
		}
	}
	cp.Pos = Position{}
	n.Append(f, cp)
	return cp, mapping
}

func (t *Tree) copySubtree(src *Node, mapping map[ID]ID) *Node {
	cp := t.New(src.kind, src.Pos)
	cp.Ctx = src.Ctx
	cp.Name = src.Name
	cp.Op = src.Op
	cp.Ops = slices.Clone(src.Ops)
	cp.Literal = src.Literal
	cp.Level = src.Level
	cp.Aliases = slices.Clone(src.Aliases)
	cp.Names = slices.Clone(src.Names)
	cp.Generator = src.Generator
	mapping[src.id] = cp.id

	for s := range numSlots {
		if child := src.Slot(s); child != nil {
			cp.SetSlot(s, t.copySubtree(child, mapping))
		}
	}
	for f := range numLists {
		for _, id := range src.lists[f] {
			child := src.tree.Node(id)
			if child == nil {
				cp.Append(f, nil)
				continue
			}
			cp.Append(f, t.copySubtree(child, mapping))
		}
	}
	return cp
}

func remapLocals(l *Locals, mapping map[ID]ID) *Locals {
	out := newLocals()
	for _, name := range l.names {
		for _, id := range l.defs[name] {
			if nid, ok := mapping[id]; ok {
				out.Add(name, nid)
			}
		}
	}
	return out
}
