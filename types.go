package pyrite

import (
	"github.com/jward/pyrite/internal/inference"
	"github.com/jward/pyrite/internal/manager"
	"github.com/jward/pyrite/internal/nodes"
	"github.com/jward/pyrite/internal/store"
)

// Public type aliases for the internal types used by the Engine and
// QueryBuilder APIs. External consumers use these names; no conversion is
// needed.

type Node = nodes.Node
type Kind = nodes.Kind
type Value = inference.Value
type Instance = inference.Instance
type BoundMethod = inference.BoundMethod
type UnboundMethod = inference.UnboundMethod
type InferenceContext = inference.Context
type CallContext = inference.CallContext
type Result = inference.Result
type Predicate = inference.Predicate
type Handler = inference.Handler
type TipOption = inference.TipOption

type Manager = manager.Manager
type Model = manager.Model
type ModuleIdentity = manager.ModuleIdentity
type Transform = manager.Transform

type Store = store.Store
type Module = store.Module
type Class = store.Class
type Symbol = store.Symbol
type Import = store.Import

// Name reference contexts.
const (
	ContextLoad  = nodes.Load
	ContextStore = nodes.Store
	ContextDel   = nodes.Del
)

// Uninferable is the value of anything the engine cannot determine.
var Uninferable = inference.Uninferable

// IsUninferable reports whether v is Uninferable.
func IsUninferable(v Value) bool { return inference.IsUninferable(v) }
