package pyrite

import (
	"errors"
	"fmt"

	"github.com/jward/pyrite/internal/store"
)

// ErrMROUnavailable is returned for a class whose MRO could not be
// linearised when it was indexed.
var ErrMROUnavailable = errors.New("mro unavailable")

// ClassResult is a class with the module it lives in and its declared
// bases.
type ClassResult struct {
	store.Class
	ModuleName string
	ModulePath string
	Bases      []string
}

// Location returns where the class is defined.
func (c *ClassResult) Location() Location {
	return Location{File: c.ModulePath, StartLine: c.StartLine, StartCol: c.StartCol, EndLine: c.EndLine}
}

// ClassHierarchy is everything recorded about one class's place in the
// inheritance graph.
type ClassHierarchy struct {
	Class      *ClassResult
	MRO        []string
	Subclasses []*ClassResult // direct and indirect
	Methods    []SymbolResult
}

// Classes returns the classes of a module in source order.
func (q *QueryBuilder) Classes(module string) ([]*ClassResult, error) {
	m, err := q.moduleByName(module)
	if err != nil {
		return nil, fmt.Errorf("classes: %w", err)
	}
	classes, err := q.store.ClassesByModule(m.ID)
	if err != nil {
		return nil, fmt.Errorf("classes: %w", err)
	}
	out, err := q.classResults(classes)
	if err != nil {
		return nil, fmt.Errorf("classes: %w", err)
	}
	return out, nil
}

// Class returns the class with the given qualified name, or nil.
// When several modules define it the first indexed wins.
func (q *QueryBuilder) Class(qualname string) (*ClassResult, error) {
	classes, err := q.store.ClassesByQualName(qualname)
	if err != nil {
		return nil, fmt.Errorf("class: %w", err)
	}
	if len(classes) == 0 {
		return nil, nil
	}
	out, err := q.classResults(classes[:1])
	if err != nil {
		return nil, fmt.Errorf("class: %w", err)
	}
	return out[0], nil
}

// ClassMRO returns the recorded MRO of a class as qualified names, the
// class itself first. A class whose linearisation failed yields
// ErrMROUnavailable wrapping the recorded reason.
func (q *QueryBuilder) ClassMRO(qualname string) ([]string, error) {
	c, err := q.Class(qualname)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("class mro: %s is not indexed", qualname)
	}
	if c.MROError != "" {
		return nil, fmt.Errorf("class mro: %s: %w: %s", qualname, ErrMROUnavailable, c.MROError)
	}
	return c.MRO, nil
}

// Subclasses returns every indexed class deriving from qualname, directly
// or through other indexed classes.
func (q *QueryBuilder) Subclasses(qualname string) ([]*ClassResult, error) {
	classes, err := q.store.Subclasses(qualname)
	if err != nil {
		return nil, err
	}
	out, err := q.classResults(classes)
	if err != nil {
		return nil, fmt.Errorf("subclasses: %w", err)
	}
	return out, nil
}

// Hierarchy gathers the class, its MRO, its subclasses and its methods.
// It returns nil with no error for an unknown class. A failed MRO leaves
// MRO empty; the reason is on Class.MROError.
func (q *QueryBuilder) Hierarchy(qualname string) (*ClassHierarchy, error) {
	c, err := q.Class(qualname)
	if err != nil || c == nil {
		return nil, err
	}
	h := &ClassHierarchy{Class: c}
	if c.MROError == "" {
		h.MRO = c.MRO
	}
	if h.Subclasses, err = q.Subclasses(qualname); err != nil {
		return nil, fmt.Errorf("hierarchy: %w", err)
	}
	classID := c.ID
	methods, err := q.Symbols(SymbolFilter{Kinds: []string{store.KindMethod}, ClassID: &classID},
		Sort{Field: SortByLine}, Pagination{Limit: maxLimit})
	if err != nil {
		return nil, fmt.Errorf("hierarchy: %w", err)
	}
	h.Methods = methods.Items
	return h, nil
}

func (q *QueryBuilder) classResults(classes []*store.Class) ([]*ClassResult, error) {
	modules := make(map[int64]*store.Module)
	out := make([]*ClassResult, 0, len(classes))
	for _, c := range classes {
		m, ok := modules[c.ModuleID]
		if !ok {
			var err error
			if m, err = q.store.ModuleByID(c.ModuleID); err != nil {
				return nil, err
			}
			modules[c.ModuleID] = m
		}
		cr := &ClassResult{Class: *c}
		if m != nil {
			cr.ModuleName, cr.ModulePath = m.Name, m.Path
		}
		bases, err := q.store.ClassBases(c.ID)
		if err != nil {
			return nil, err
		}
		for _, b := range bases {
			cr.Bases = append(cr.Bases, b.Base)
		}
		out = append(out, cr)
	}
	return out, nil
}
