package pyrite

import (
	"fmt"
	"sort"

	"github.com/jward/pyrite/internal/store"
)

// ImportEdge is one import statement between two modules.
type ImportEdge struct {
	From     string
	To       string
	Alias    string
	Line     int
	Resolved bool // To is an indexed module
}

// ImportGraph is the transitive import closure around one module. Nodes
// are reached by BFS over edges loaded in one pass.
type ImportGraph struct {
	Root  string
	Nodes map[string]int // module name -> BFS depth from Root
	Edges []ImportEdge
}

// Dependencies returns the imports of a module in source order.
func (q *QueryBuilder) Dependencies(module string) ([]ImportEdge, error) {
	m, err := q.moduleByName(module)
	if err != nil {
		return nil, fmt.Errorf("dependencies: %w", err)
	}
	imports, err := q.store.ImportsByModule(m.ID)
	if err != nil {
		return nil, fmt.Errorf("dependencies: %w", err)
	}
	indexed, err := q.moduleNames()
	if err != nil {
		return nil, fmt.Errorf("dependencies: %w", err)
	}
	edges := make([]ImportEdge, 0, len(imports))
	for _, imp := range imports {
		edges = append(edges, newImportEdge(module, imp, indexed))
	}
	return edges, nil
}

// Dependents returns the modules importing module directly, or also
// through other modules when transitive is set.
func (q *QueryBuilder) Dependents(module string, transitive bool) ([]string, error) {
	if transitive {
		names, err := q.store.DependentModules([]string{module})
		if err != nil {
			return nil, fmt.Errorf("dependents: %w", err)
		}
		return names, nil
	}
	ids, err := q.store.ModulesImporting(module)
	if err != nil {
		return nil, fmt.Errorf("dependents: %w", err)
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		m, err := q.store.ModuleByID(id)
		if err != nil {
			return nil, fmt.Errorf("dependents: %w", err)
		}
		if m != nil {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ImportClosure walks imports outward from module up to maxDepth hops
// (unbounded when maxDepth <= 0). Unindexed targets appear as leaves.
func (q *QueryBuilder) ImportClosure(module string, maxDepth int) (*ImportGraph, error) {
	if _, err := q.moduleByName(module); err != nil {
		return nil, fmt.Errorf("import closure: %w", err)
	}
	forward, err := q.loadImports()
	if err != nil {
		return nil, fmt.Errorf("import closure: %w", err)
	}
	indexed, err := q.moduleNames()
	if err != nil {
		return nil, fmt.Errorf("import closure: %w", err)
	}

	g := &ImportGraph{Root: module, Nodes: map[string]int{module: 0}}
	queue := []string{module}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		depth := g.Nodes[cur]
		if maxDepth > 0 && depth >= maxDepth {
			continue
		}
		for _, imp := range forward[cur] {
			g.Edges = append(g.Edges, newImportEdge(cur, imp, indexed))
			if _, seen := g.Nodes[imp.Imported]; seen {
				continue
			}
			g.Nodes[imp.Imported] = depth + 1
			queue = append(queue, imp.Imported)
		}
	}
	return g, nil
}

// loadImports bulk-loads every import edge keyed by importing module name.
func (q *QueryBuilder) loadImports() (map[string][]*store.Import, error) {
	rows, err := q.store.DB().Query(
		`SELECT m.name, i.id, i.module_id, i.imported, i.alias, i.line
		 FROM imports i JOIN modules m ON m.id = i.module_id
		 ORDER BY m.name, i.line, i.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]*store.Import)
	for rows.Next() {
		var from string
		imp := &store.Import{}
		if err := rows.Scan(&from, &imp.ID, &imp.ModuleID, &imp.Imported, &imp.Alias, &imp.Line); err != nil {
			return nil, err
		}
		out[from] = append(out[from], imp)
	}
	return out, rows.Err()
}

func (q *QueryBuilder) moduleNames() (map[string]bool, error) {
	mods, err := q.store.Modules()
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(mods))
	for _, m := range mods {
		names[m.Name] = true
	}
	return names, nil
}

func newImportEdge(from string, imp *store.Import, indexed map[string]bool) ImportEdge {
	e := ImportEdge{From: from, To: imp.Imported, Line: imp.Line, Resolved: indexed[imp.Imported]}
	if imp.Alias != nil {
		e.Alias = *imp.Alias
	}
	return e
}
