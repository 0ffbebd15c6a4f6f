package store

import "time"

// Module is one indexed module.
type Module struct {
	ID          int64
	Name        string
	Path        string
	Hash        string
	Package     bool
	Synthetic   bool
	Version     int64
	LineCount   int
	BuiltAt     time.Time
	LastIndexed time.Time
}

// Class is a class definition with its persisted MRO. MRO holds qualified
// names; MROError is set instead when linearisation failed.
type Class struct {
	ID        int64
	ModuleID  int64
	Name      string
	QualName  string
	StartLine int
	StartCol  int
	EndLine   int
	MRO       []string
	MROError  string
}

// ClassBase is one declared base of a class, by inferred qualified name.
type ClassBase struct {
	ID      int64
	ClassID int64
	Ordinal int
	Base    string
}

// Symbol is a name bound in a module, class or function scope.
type Symbol struct {
	ID            int64
	ModuleID      int64
	ClassID       *int64
	Scope         string
	Name          string
	Kind          string
	SignatureHash string
	StartLine     int
	StartCol      int
	EndLine       int
}

// Import is an import edge from a module to an absolute module name.
type Import struct {
	ID       int64
	ModuleID int64
	Imported string
	Alias    *string
	Line     int
}

// Symbol kinds.
const (
	KindClass    = "class"
	KindFunction = "function"
	KindMethod   = "method"
	KindVariable = "variable"
	KindImport   = "import"
)
