// Package mro computes C3 method resolution orders for class nodes.
package mro

import (
	"errors"
	"strings"

	"github.com/jward/pyrite/internal/errs"
	"github.com/jward/pyrite/internal/nodes"
)

// DefaultMaxDepth bounds how deep the resolver chases indirect bases before
// failing with errs.ErrTooManyLevels.
const DefaultMaxDepth = 200

// maxCombinations bounds how many candidate base combinations are tried
// when bases are ambiguous.
const maxCombinations = 64

// BaseInferer resolves the declared bases of a class. It returns one entry
// per declared base expression holding the candidate classes it may denote.
// An empty entry means the base could not be resolved.
type BaseInferer interface {
	InferBases(class *nodes.Node) [][]*nodes.Node
}

// Resolver computes and memoises MROs. Results are stored in the class
// node's write-once slot, so a Resolver carries no cache of its own.
type Resolver struct {
	bases    BaseInferer
	root     func() *nodes.Node
	maxDepth int
}

// New creates a Resolver. root returns the universal base class (`object`)
// used for implicit bases and degraded results; it may return nil when no
// builtins are loaded.
func New(bases BaseInferer, root func() *nodes.Node, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{bases: bases, root: root, maxDepth: maxDepth}
}

// MaxDepth returns the configured depth bound.
func (r *Resolver) MaxDepth() int { return r.maxDepth }

// Compute returns the MRO of class. A class whose bases cannot be resolved
// gets the degraded order [class, object] without an error; subclasses of
// such a class linearise over the degraded order.
func (r *Resolver) Compute(class *nodes.Node) ([]*nodes.Node, error) {
	res, err := r.compute(class, 0, nil)
	if errors.Is(err, errUnresolved) {
		return res, nil
	}
	return res, err
}

// ComputeStrict is Compute for callers that demand full resolution:
// unresolvable bases anywhere in the hierarchy fail with errs.ErrMro.
func (r *Resolver) ComputeStrict(class *nodes.Node) ([]*nodes.Node, error) {
	res, err := r.compute(class, 0, nil)
	if errors.Is(err, errUnresolved) {
		return nil, errs.Wrap(errs.ErrMro, err, "cannot resolve bases of %s", class.Name).At(class)
	}
	return res, err
}

var (
	// errUnresolved accompanies a best-effort result built over at least
	// one unresolvable base.
	errUnresolved = errors.New("unresolvable base")
	errCycle      = errors.New("class hierarchy contains a cycle")
)

func (r *Resolver) degraded(class *nodes.Node) []*nodes.Node {
	out := []*nodes.Node{class}
	if obj := r.objectClass(); obj != nil && obj != class {
		out = append(out, obj)
	}
	return out
}

func (r *Resolver) objectClass() *nodes.Node {
	if r.root == nil {
		return nil
	}
	return r.root()
}

func (r *Resolver) compute(class *nodes.Node, depth int, visiting []*nodes.Node) ([]*nodes.Node, error) {
	if cached := class.CachedMRO(); cached != nil {
		return cached.Classes, cached.Err
	}
	if depth > r.maxDepth {
		return nil, errs.New(errs.ErrTooManyLevels, "resolution of %s exceeded %d levels", class.Name, r.maxDepth).At(class)
	}
	for _, v := range visiting {
		if v == class {
			return nil, errs.Wrap(errs.ErrMro, errCycle, "%s", class.Name).At(class)
		}
	}

	res, err := r.linearize(class, depth, append(visiting, class))
	// Depth failures depend on where resolution started.
	if errors.Is(err, errs.ErrTooManyLevels) {
		return res, err
	}
	entry := class.StoreMRO(&nodes.MROEntry{Classes: res, Err: err})
	return entry.Classes, entry.Err
}

func (r *Resolver) linearize(class *nodes.Node, depth int, visiting []*nodes.Node) ([]*nodes.Node, error) {
	declared := r.bases.InferBases(class)

	if len(declared) == 0 {
		return r.degraded(class), nil
	}
	for _, cands := range declared {
		if len(cands) == 0 {
			return r.degraded(class), errUnresolved
		}
	}

	if err := checkDuplicates(class, declared); err != nil {
		return nil, err
	}

	var failures []error
	for _, bases := range combinations(declared) {
		res, partial, err := r.merge(class, bases, depth, visiting)
		if err == nil {
			if partial {
				return res, errUnresolved
			}
			return res, nil
		}
		if errors.Is(err, errs.ErrTooManyLevels) || errors.Is(err, errCycle) {
			return nil, err
		}
		failures = append(failures, err)
	}
	if len(failures) == 1 {
		return nil, failures[0]
	}
	return nil, errs.Wrap(errs.ErrMro, errors.Join(failures...),
		"no candidate linearisation of %s is consistent", class.Name).At(class)
}

// checkDuplicates fails when a base resolves unambiguously to the same class
// as an earlier one.
func checkDuplicates(class *nodes.Node, declared [][]*nodes.Node) error {
	seen := make(map[*nodes.Node]bool)
	for _, cands := range declared {
		if len(cands) != 1 {
			continue
		}
		if seen[cands[0]] {
			return errs.New(errs.ErrDuplicateBases, "duplicate base %s in %s", cands[0].Name, class.Name).At(class)
		}
		seen[cands[0]] = true
	}
	return nil
}

func (r *Resolver) merge(class *nodes.Node, bases []*nodes.Node, depth int, visiting []*nodes.Node) ([]*nodes.Node, bool, error) {
	seqs := make([][]*nodes.Node, 0, len(bases)+1)
	partial := false
	for _, b := range bases {
		bm, err := r.compute(b, depth+1, visiting)
		switch {
		case errors.Is(err, errUnresolved):
			partial = true
		case err != nil:
			return nil, false, err
		}
		seqs = append(seqs, append([]*nodes.Node(nil), bm...))
	}
	seqs = append(seqs, append([]*nodes.Node(nil), bases...))

	res, ok := c3(seqs)
	if !ok {
		names := make([]string, len(bases))
		for i, b := range bases {
			names[i] = b.Name
		}
		return nil, false, errs.New(errs.ErrInconsistentMro,
			"cannot create a consistent method resolution order for bases %s of %s",
			strings.Join(names, ", "), class.Name).At(class)
	}
	return append([]*nodes.Node{class}, res...), partial, nil
}

// c3 merges the sequences: repeatedly take the first head that does not
// appear in the tail of any sequence.
func c3(seqs [][]*nodes.Node) ([]*nodes.Node, bool) {
	var out []*nodes.Node
	for {
		nonEmpty := seqs[:0]
		for _, s := range seqs {
			if len(s) > 0 {
				nonEmpty = append(nonEmpty, s)
			}
		}
		seqs = nonEmpty
		if len(seqs) == 0 {
			return out, true
		}

		var head *nodes.Node
		for _, s := range seqs {
			cand := s[0]
			if !inTail(cand, seqs) {
				head = cand
				break
			}
		}
		if head == nil {
			return nil, false
		}
		out = append(out, head)
		for i, s := range seqs {
			if s[0] == head {
				seqs[i] = s[1:]
			}
		}
	}
}

func inTail(n *nodes.Node, seqs [][]*nodes.Node) bool {
	for _, s := range seqs {
		for _, m := range s[1:] {
			if m == n {
				return true
			}
		}
	}
	return false
}

// combinations expands ambiguous bases into concrete base lists, capped at
// maxCombinations.
func combinations(declared [][]*nodes.Node) [][]*nodes.Node {
	out := [][]*nodes.Node{{}}
	for _, cands := range declared {
		var next [][]*nodes.Node
		for _, prefix := range out {
			for _, c := range cands {
				combo := append(append([]*nodes.Node(nil), prefix...), c)
				next = append(next, combo)
				if len(next) >= maxCombinations {
					break
				}
			}
			if len(next) >= maxCombinations {
				break
			}
		}
		out = next
	}
	return out
}
