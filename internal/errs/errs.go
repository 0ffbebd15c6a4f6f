// Package errs defines the error taxonomy shared by the builder, the manager
// and the inference engine.
//
// Every failure carries a Kind. Kinds form a tree (AttributeInference is an
// Inference, InconsistentMro is an Mro, ...) and errors.Is matches a typed
// error against its own kind and every ancestor:
//
//	errors.Is(err, errs.ErrMro) // true for DuplicateBases, InconsistentMro, TooManyLevels
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies one class of failure.
type Kind struct {
	name   string
	parent *Kind
}

// Error makes a Kind usable directly as a sentinel with errors.Is.
func (k *Kind) Error() string { return k.name }

// Name returns the kind's name.
func (k *Kind) Name() string { return k.name }

// Parent returns the enclosing kind, or nil for the root.
func (k *Kind) Parent() *Kind { return k.parent }

// IsA reports whether k equals other or descends from it.
func (k *Kind) IsA(other *Kind) bool {
	for cur := k; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

func newKind(name string, parent *Kind) *Kind {
	return &Kind{name: name, parent: parent}
}

// Root of the taxonomy.
var ErrAstroid = newKind("AstroidError", nil)

// Build-time failures. Fatal to the model under construction.
var (
	ErrBuilding = newKind("AstroidBuildingError", ErrAstroid)
	ErrImport   = newKind("AstroidImportError", ErrBuilding)
	ErrSyntax   = newKind("AstroidSyntaxError", ErrBuilding)
	ErrType     = newKind("AstroidTypeError", ErrBuilding)
	ErrValue    = newKind("AstroidValueError", ErrBuilding)
	ErrIndex    = newKind("AstroidIndexError", ErrBuilding)
)

// Local resolution failures. Converted to Uninferable by Infer.
var (
	ErrInference          = newKind("InferenceError", ErrResolve)
	ErrNameInference      = newKind("NameInferenceError", ErrInference)
	ErrAttributeInference = newKind("AttributeInferenceError", ErrInference)
	ErrNotFound           = newKind("NotFoundError", ErrAttributeInference)
	ErrUnresolvableName   = newKind("UnresolvableName", ErrNameInference)
)

// ErrResolve groups the resolution failures.
var ErrResolve = newKind("ResolveError", ErrAstroid)

// Structural failures surfaced to callers.
var (
	ErrMro               = newKind("MroError", ErrResolve)
	ErrInconsistentMro   = newKind("InconsistentMroError", ErrMro)
	ErrDuplicateBases    = newKind("DuplicateBasesError", ErrMro)
	ErrTooManyLevels     = newKind("TooManyLevelsError", ErrMro)
	ErrSuper             = newKind("SuperError", ErrResolve)
	ErrSuperArgumentType = newKind("SuperArgumentTypeError", ErrSuper)
)

// Operator protocol failures, recorded as diagnostics.
var (
	ErrOperation       = newKind("OperationError", ErrAstroid)
	ErrBinaryOperation = newKind("BinaryOperationError", ErrOperation)
	ErrUnaryOperation  = newKind("UnaryOperationError", ErrOperation)
)

// Miscellaneous.
var (
	ErrUseInferenceDefault = newKind("UseInferenceDefault", ErrAstroid)
	ErrNoDefault           = newKind("NoDefault", ErrAstroid)
	ErrInferenceOverwrite  = newKind("InferenceOverwriteError", ErrAstroid)
)

// Error is a typed failure. Node, when set, is a short description of the
// node the failure is about (kind and position).
type Error struct {
	Kind *Kind
	Msg  string
	Node string
	Err  error
}

// New creates an Error of the given kind.
func New(kind *Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping err.
func Wrap(kind *Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// At attaches a node description and returns e.
func (e *Error) At(node fmt.Stringer) *Error {
	if node != nil {
		e.Node = node.String()
	}
	return e
}

func (e *Error) Error() string {
	msg := e.Kind.name
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Node != "" {
		msg += " (" + e.Node + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches target kinds against e's kind and its ancestors.
func (e *Error) Is(target error) bool {
	k, ok := target.(*Kind)
	if !ok {
		return false
	}
	return e.Kind.IsA(k)
}

// KindOf returns the kind of the first *Error in err's chain, or nil.
func KindOf(err error) *Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// IsStructural reports whether err signals an ill-formed query rather than an
// unknown answer. Structural failures are surfaced; everything else is
// converted to Uninferable. Only the outermost typed error counts, so an
// inference failure caused by a failed import stays local.
func IsStructural(err error) bool {
	k := KindOf(err)
	return k != nil && (k.IsA(ErrMro) || k.IsA(ErrSuper) || k.IsA(ErrBuilding))
}
