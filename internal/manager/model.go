package manager

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jward/pyrite/internal/nodes"
)

// ModuleIdentity names a module. Path is optional: when set, the module is
// built from that file instead of being resolved through overlays and the
// search path.
type ModuleIdentity struct {
	Name string
	Path string
}

func (id ModuleIdentity) String() string {
	if id.Path == "" {
		return id.Name
	}
	return id.Name + " (" + id.Path + ")"
}

// Model is one built module together with its build metadata.
type Model struct {
	Identity  ModuleIdentity
	Tree      *nodes.Tree
	Module    *nodes.Node
	Package   bool
	Synthetic bool

	BuildID     uuid.UUID
	Version     uint64
	SourceHash  uint64
	BuiltAt     time.Time
	Transformed bool

	modTime time.Time
	size    int64
	stale   atomic.Bool
}

// Stale reports whether the model's source changed after it was built.
func (m *Model) Stale() bool { return m.stale.Load() }

// MarkStale flags the model for rebuilding on next access.
func (m *Model) MarkStale() { m.stale.Store(true) }
