package pyrite

import (
	"fmt"
	"strings"

	"github.com/jward/pyrite/internal/store"
)

// QueryBuilder answers questions about the indexed modules from the
// database alone; nothing is parsed or inferred at query time.
type QueryBuilder struct {
	store *store.Store
}

// Pagination pages list results. The zero value is the first page of
// defaultLimit rows.
type Pagination struct {
	Offset int
	Limit  int // capped at maxLimit
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

func (p Pagination) normalize() Pagination {
	p.Offset = max(p.Offset, 0)
	switch {
	case p.Limit <= 0:
		p.Limit = defaultLimit
	case p.Limit > maxLimit:
		p.Limit = maxLimit
	}
	return p
}

// SortField names the column results are ordered by. Not every listing
// honours every field; SortByName is the fallback.
type SortField string

const (
	SortByName   SortField = "name"
	SortByKind   SortField = "kind"
	SortByModule SortField = "module"
	SortByLine   SortField = "line"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

type Sort struct {
	Field SortField
	Order SortOrder
}

// PagedResult is one page of a listing. TotalCount counts every match, not
// just the page.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int
}

// Location is where an indexed class or symbol is defined.
type Location struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
}

func sortDirection(order SortOrder) string {
	if order == Desc {
		return "DESC"
	}
	return "ASC"
}

// prefixCols qualifies every column of a store column list with alias.
func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes LIKE wildcards for use with ESCAPE '\'. Python names
// are full of underscores, which must match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// moduleByName looks a module up and reports a missing one as an error.
func (q *QueryBuilder) moduleByName(name string) (*store.Module, error) {
	m, err := q.store.ModuleByName(name)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("module %q is not indexed", name)
	}
	return m, nil
}
