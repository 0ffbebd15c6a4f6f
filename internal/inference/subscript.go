package inference

import (
	"github.com/jward/pyrite/internal/nodes"
)

// inferSubscript indexes literal sequences, dicts and strings by constant
// keys, and calls __getitem__ on instances.
func (e *Engine) inferSubscript(n *nodes.Node, ic *Context) Result {
	switch n.Ctx {
	case nodes.Store:
		return Produced(Uninferable)
	case nodes.Del:
		return Produced()
	}
	var out []Value
	for _, container := range e.values(n.Value(), ic) {
		for _, index := range e.values(n.Slot(nodes.SlotSlice), ic) {
			if len(out) > MaxValues {
				return Produced(out...)
			}
			out = append(out, e.index(container, index, ic)...)
		}
	}
	return Produced(out...)
}

func (e *Engine) index(container, index Value, ic *Context) []Value {
	if IsUninferable(container) || IsUninferable(index) {
		return []Value{Uninferable}
	}
	switch x := container.(type) {
	case *nodes.Node:
		switch x.Kind() {
		case nodes.Tuple, nodes.List:
			i, ok := constIndex(index)
			if !ok {
				break
			}
			elts := x.Elts()
			for _, el := range elts {
				if el.Kind() == nodes.Starred {
					return []Value{Uninferable}
				}
			}
			if i < 0 {
				i += int64(len(elts))
			}
			if i < 0 || i >= int64(len(elts)) {
				return []Value{Uninferable}
			}
			return e.values(elts[i], ic)
		case nodes.Dict:
			keys, vals := x.Keys(), x.Elts()
			for i := len(keys) - 1; i >= 0; i-- {
				if keys[i] == nil {
					return []Value{Uninferable}
				}
				if keys[i].Kind() != nodes.Const {
					continue
				}
				if eq, known := equal(keys[i], index); known && eq {
					return e.values(vals[i], ic)
				}
			}
			return []Value{Uninferable}
		case nodes.Const:
			i, ok := constIndex(index)
			if !ok {
				break
			}
			switch s := x.Literal.(type) {
			case string:
				runes := []rune(s)
				if i < 0 {
					i += int64(len(runes))
				}
				if i >= 0 && i < int64(len(runes)) {
					return []Value{nodes.NewConst(string(runes[i]))}
				}
			case nodes.Bytes:
				if i < 0 {
					i += int64(len(s))
				}
				if i >= 0 && i < int64(len(s)) {
					return []Value{nodes.NewConst(int64(s[i]))}
				}
			}
			return []Value{Uninferable}
		case nodes.ClassDef:
			// Generic aliases such as list[int] stand for the class itself.
			return []Value{x}
		}
	case *Instance:
		if vals, ok := e.callSpecial(x, "__getitem__", index, ic); ok {
			return vals
		}
	}
	return []Value{Uninferable}
}

func constIndex(v Value) (int64, bool) {
	c, ok := constValue(v)
	if !ok {
		return 0, false
	}
	return toInt(c)
}
