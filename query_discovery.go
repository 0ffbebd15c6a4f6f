package pyrite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jward/pyrite/internal/store"
)

// SymbolResult is a symbol with the module it lives in.
type SymbolResult struct {
	store.Symbol
	ModuleName string
	ModulePath string
}

// SymbolFilter specifies which symbols to include. All fields are optional.
type SymbolFilter struct {
	Kinds        []string // match any of these kinds
	ModuleID     *int64   // restrict to one module
	ClassID      *int64   // restrict to the body of one class
	Scope        *string  // exact scope qualname
	ModulePrefix *string  // restrict to a module and its submodules
}

func symbolSortColumn(field SortField) string {
	switch field {
	case SortByKind:
		return "s.kind"
	case SortByModule:
		return "m.name"
	case SortByLine:
		return "s.start_line"
	default:
		return "s.name"
	}
}

func (f SymbolFilter) where() ([]string, []any) {
	var (
		where []string
		args  []any
	)
	if len(f.Kinds) > 0 {
		where = append(where, "s.kind IN ("+strings.Repeat("?,", len(f.Kinds)-1)+"?)")
		for _, k := range f.Kinds {
			args = append(args, k)
		}
	}
	if f.ModuleID != nil {
		where = append(where, "s.module_id = ?")
		args = append(args, *f.ModuleID)
	}
	if f.ClassID != nil {
		where = append(where, "s.class_id = ?")
		args = append(args, *f.ClassID)
	}
	if f.Scope != nil {
		where = append(where, "s.scope = ?")
		args = append(args, *f.Scope)
	}
	if f.ModulePrefix != nil && *f.ModulePrefix != "" {
		where = append(where, `(m.name = ? OR m.name LIKE ? ESCAPE '\')`)
		args = append(args, *f.ModulePrefix, escapeLike(*f.ModulePrefix+".")+"%")
	}
	return where, args
}

// Symbols lists symbols matching filter.
func (q *QueryBuilder) Symbols(filter SymbolFilter, sort Sort, page Pagination) (*PagedResult[SymbolResult], error) {
	where, args := filter.where()
	res, err := q.pagedSymbols(where, args, sort, page)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	return res, nil
}

// SearchSymbols matches symbol names against a glob pattern where * stands
// for any run of characters.
func (q *QueryBuilder) SearchSymbols(pattern string, filter SymbolFilter, sort Sort, page Pagination) (*PagedResult[SymbolResult], error) {
	where, args := filter.where()
	if pattern != "" && pattern != "*" {
		like := strings.ReplaceAll(escapeLike(pattern), "*", "%")
		where = append(where, `s.name LIKE ? ESCAPE '\'`)
		args = append(args, like)
	}
	res, err := q.pagedSymbols(where, args, sort, page)
	if err != nil {
		return nil, fmt.Errorf("search symbols: %w", err)
	}
	return res, nil
}

func (q *QueryBuilder) pagedSymbols(where []string, args []any, sort Sort, page Pagination) (*PagedResult[SymbolResult], error) {
	page = page.normalize()
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM symbols s JOIN modules m ON m.id = s.module_id ` + whereClause
	if err := q.store.DB().QueryRow(countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	dataSQL := fmt.Sprintf(
		`SELECT %s, m.name, m.path FROM symbols s
		 JOIN modules m ON m.id = s.module_id
		 %s
		 ORDER BY %s %s, s.id
		 LIMIT ? OFFSET ?`,
		prefixCols("s", store.SymbolCols), whereClause, symbolSortColumn(sort.Field), sortDirection(sort.Order),
	)
	rows, err := q.store.DB().Query(dataSQL, append(append([]any{}, args...), page.Limit, page.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	items := []SymbolResult{}
	for rows.Next() {
		var sr SymbolResult
		var hash sql.NullString
		err := rows.Scan(&sr.ID, &sr.ModuleID, &sr.ClassID, &sr.Scope, &sr.Name, &sr.Kind,
			&hash, &sr.StartLine, &sr.StartCol, &sr.EndLine, &sr.ModuleName, &sr.ModulePath)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		sr.SignatureHash = hash.String
		items = append(items, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return &PagedResult[SymbolResult]{Items: items, TotalCount: total}, nil
}

// Modules lists indexed modules, optionally restricted to a package and
// its submodules.
func (q *QueryBuilder) Modules(prefix string, sort Sort, page Pagination) (*PagedResult[store.Module], error) {
	page = page.normalize()
	var (
		where string
		args  []any
	)
	if prefix != "" {
		where = `WHERE name = ? OR name LIKE ? ESCAPE '\'`
		args = append(args, prefix, escapeLike(prefix+".")+"%")
	}

	var total int
	if err := q.store.DB().QueryRow("SELECT COUNT(*) FROM modules "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("modules: count: %w", err)
	}

	order := "name"
	if sort.Field == SortByLine {
		order = "line_count"
	}
	dataSQL := fmt.Sprintf("SELECT %s FROM modules %s ORDER BY %s %s, id LIMIT ? OFFSET ?",
		store.ModuleCols, where, order, sortDirection(sort.Order))
	rows, err := q.store.DB().Query(dataSQL, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("modules: query: %w", err)
	}
	defer rows.Close()

	items := []store.Module{}
	for rows.Next() {
		m, err := store.ScanModuleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("modules: scan: %w", err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("modules: rows: %w", err)
	}
	return &PagedResult[store.Module]{Items: items, TotalCount: total}, nil
}

// ProjectSummary is a high-level overview of the index.
type ProjectSummary struct {
	Modules     int
	Packages    int
	Lines       int
	Classes     int
	MROErrors   int
	Symbols     int
	Imports     int
	KindCounts  map[string]int
	LastIndexed time.Time
}

// Summary returns counts over the whole index.
func (q *QueryBuilder) Summary() (*ProjectSummary, error) {
	s := &ProjectSummary{KindCounts: make(map[string]int)}
	db := q.store.DB()

	var last sql.NullString
	err := db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(package), 0), COALESCE(SUM(line_count), 0), MAX(last_indexed) FROM modules`).
		Scan(&s.Modules, &s.Packages, &s.Lines, &last)
	if err != nil {
		return nil, fmt.Errorf("summary: modules: %w", err)
	}
	if last.Valid {
		s.LastIndexed = parseTimestamp(last.String)
	}
	err = db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN mro_error IS NOT NULL AND mro_error != '' THEN 1 ELSE 0 END), 0) FROM classes`).
		Scan(&s.Classes, &s.MROErrors)
	if err != nil {
		return nil, fmt.Errorf("summary: classes: %w", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM imports`).Scan(&s.Imports); err != nil {
		return nil, fmt.Errorf("summary: imports: %w", err)
	}

	rows, err := db.Query(`SELECT kind, COUNT(*) FROM symbols GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("summary: kinds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("summary: scan kind: %w", err)
		}
		s.KindCounts[kind] = count
		s.Symbols += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("summary: kind rows: %w", err)
	}
	return s, nil
}

// parseTimestamp reads the aggregate of a TIMESTAMP column, which sqlite
// returns as text.
func parseTimestamp(v string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
