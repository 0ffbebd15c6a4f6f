package nodes

import "fmt"

// Context is the role a name reference plays where it appears.
type Context uint8

const (
	Load Context = iota
	Store
	Del
)

func (c Context) String() string {
	switch c {
	case Load:
		return "Load"
	case Store:
		return "Store"
	case Del:
		return "Del"
	}
	return fmt.Sprintf("Context(%d)", uint8(c))
}

// Kind is the syntactic or semantic kind of a node.
type Kind uint8

const (
	Module Kind = iota
	ClassDef
	FunctionDef
	Lambda
	Arguments

	Name
	Attribute
	Call
	Keyword
	Starred
	BinOp
	UnaryOp
	BoolOp
	Compare
	Const
	JoinedStr
	List
	Tuple
	Set
	Dict
	Subscript
	IfExp

	Assign
	AugAssign
	AnnAssign
	Expr
	Return
	If
	For
	While
	Try
	ExceptHandler
	Delete
	Pass
	Break
	Continue
	Raise
	Import
	ImportFrom
	Global
	Nonlocal

	// Empty stands in for constructs the builder does not model
	// (comprehensions, await, yield, ...). It infers as Uninferable.
	Empty

	numKinds
)

var kindNames = [numKinds]string{
	Module:        "Module",
	ClassDef:      "ClassDef",
	FunctionDef:   "FunctionDef",
	Lambda:        "Lambda",
	Arguments:     "Arguments",
	Name:          "Name",
	Attribute:     "Attribute",
	Call:          "Call",
	Keyword:       "Keyword",
	Starred:       "Starred",
	BinOp:         "BinOp",
	UnaryOp:       "UnaryOp",
	BoolOp:        "BoolOp",
	Compare:       "Compare",
	Const:         "Const",
	JoinedStr:     "JoinedStr",
	List:          "List",
	Tuple:         "Tuple",
	Set:           "Set",
	Dict:          "Dict",
	Subscript:     "Subscript",
	IfExp:         "IfExp",
	Assign:        "Assign",
	AugAssign:     "AugAssign",
	AnnAssign:     "AnnAssign",
	Expr:          "Expr",
	Return:        "Return",
	If:            "If",
	For:           "For",
	While:         "While",
	Try:           "Try",
	ExceptHandler: "ExceptHandler",
	Delete:        "Delete",
	Pass:          "Pass",
	Break:         "Break",
	Continue:      "Continue",
	Raise:         "Raise",
	Import:        "Import",
	ImportFrom:    "ImportFrom",
	Global:        "Global",
	Nonlocal:      "Nonlocal",
	Empty:         "Empty",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// KindByName maps a kind name ("ClassDef") back to its Kind.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// IsScope reports whether nodes of this kind own a locals table.
func (k Kind) IsScope() bool {
	switch k {
	case Module, ClassDef, FunctionDef, Lambda:
		return true
	}
	return false
}
