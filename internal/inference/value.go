package inference

import (
	"github.com/cespare/xxhash/v2"

	"github.com/jward/pyrite/internal/nodes"
)

// Value is one possible result of inferring an expression. *nodes.Node
// implements it for classes, functions, modules and literals.
type Value interface {
	PyType() string
}

type uninferable struct{}

func (uninferable) PyType() string { return "Uninferable" }
func (uninferable) String() string { return "Uninferable" }

// Uninferable marks a value the engine cannot determine.
var Uninferable Value = uninferable{}

// IsUninferable reports whether v is the Uninferable marker.
func IsUninferable(v Value) bool {
	_, ok := v.(uninferable)
	return ok
}

// Instance is an instance of a class. A super proxy is an Instance whose
// attribute lookups walk the remaining MRO and bind to the original receiver.
type Instance struct {
	Class *nodes.Node

	superMRO  []*nodes.Node
	superSelf Value
}

// NewInstance returns an instance of class.
func NewInstance(class *nodes.Node) *Instance { return &Instance{Class: class} }

func (i *Instance) PyType() string {
	if i.IsSuper() {
		return "super"
	}
	return i.Class.Name
}

// IsSuper reports whether the instance is a super() proxy.
func (i *Instance) IsSuper() bool { return i.superMRO != nil }

// Receiver returns the object a super proxy binds to, or i itself.
func (i *Instance) Receiver() Value {
	if i.superSelf != nil {
		return i.superSelf
	}
	return i
}

func (i *Instance) String() string {
	if i.IsSuper() {
		return "super(" + i.Class.QualName() + ")"
	}
	return "Instance of " + i.Class.QualName()
}

// BoundMethod is a function fetched through an instance (or a classmethod
// fetched through its class). Receiver binds to the first parameter.
type BoundMethod struct {
	Func     *nodes.Node
	Receiver Value
}

func (*BoundMethod) PyType() string { return "method" }

func (b *BoundMethod) String() string { return "BoundMethod " + b.Func.QualName() }

// UnboundMethod is a plain method fetched through its class.
type UnboundMethod struct {
	Func  *nodes.Node
	Class *nodes.Node
}

func (*UnboundMethod) PyType() string { return "function" }

func (u *UnboundMethod) String() string { return "UnboundMethod " + u.Func.QualName() }

// valueKey identifies a value for deduplication and context signatures.
// Literal nodes built during inference hash by content.
func valueKey(v Value) uint64 {
	d := xxhash.New()
	writeValueKey(d, v)
	return d.Sum64()
}

func writeValueKey(d *xxhash.Digest, v Value) {
	switch x := v.(type) {
	case *nodes.Node:
		if x.IsSynthetic() {
			_, _ = d.WriteString("syn:" + x.PyType() + ":" + nodes.FormatLiteral(x.Literal))
			for _, e := range x.Elts() {
				writeValueKey(d, e)
			}
			return
		}
		writeUint(d, 'n', x.Key())
	case *Instance:
		writeUint(d, 'i', x.Class.Key())
		if x.superSelf != nil {
			writeUint(d, 's', uint64(len(x.superMRO)))
			writeValueKey(d, x.superSelf)
		}
	case *BoundMethod:
		writeUint(d, 'b', x.Func.Key())
		writeValueKey(d, x.Receiver)
	case *UnboundMethod:
		writeUint(d, 'u', x.Func.Key())
		writeUint(d, 'c', x.Class.Key())
	default:
		_, _ = d.WriteString(v.PyType())
	}
}

func writeUint(d *xxhash.Digest, tag byte, v uint64) {
	var buf [9]byte
	buf[0] = tag
	for i := range 8 {
		buf[i+1] = byte(v >> (8 * i))
	}
	_, _ = d.Write(buf[:])
}

// dedupe drops repeated values, keeping first occurrences.
func dedupe(vals []Value) []Value {
	if len(vals) < 2 {
		return vals
	}
	seen := make(map[uint64]bool, len(vals))
	out := vals[:0:0]
	for _, v := range vals {
		k := valueKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// asNode returns v as a node of one of the given kinds.
func asNode(v Value, kinds ...nodes.Kind) (*nodes.Node, bool) {
	n, ok := v.(*nodes.Node)
	if !ok {
		return nil, false
	}
	if len(kinds) == 0 {
		return n, true
	}
	for _, k := range kinds {
		if n.Kind() == k {
			return n, true
		}
	}
	return nil, false
}

// constValue returns the literal payload of a Const value.
func constValue(v Value) (any, bool) {
	n, ok := asNode(v, nodes.Const)
	if !ok {
		return nil, false
	}
	return n.Literal, true
}
