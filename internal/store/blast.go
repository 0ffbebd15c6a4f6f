package store

import "fmt"

// ModulesImporting returns the IDs of modules that import name directly.
func (s *Store) ModulesImporting(name string) ([]int64, error) {
	rows, err := s.db.Query("SELECT DISTINCT module_id FROM imports WHERE imported = ? ORDER BY module_id", name)
	if err != nil {
		return nil, fmt.Errorf("modules importing: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// DependentModules returns the names of every module that imports any of
// names directly or transitively. The names themselves are excluded unless
// they sit on an import cycle.
func (s *Store) DependentModules(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	query := `WITH RECURSIVE dependents(name) AS (
			SELECT DISTINCT m.name FROM imports i JOIN modules m ON m.id = i.module_id
			WHERE i.imported IN (` + placeholderList(len(names)) + `)
			UNION
			SELECT m.name FROM imports i
			JOIN modules m ON m.id = i.module_id
			JOIN dependents d ON i.imported = d.name
		)
		SELECT name FROM dependents ORDER BY name`
	rows, err := s.db.Query(query, stringsToArgs(names)...)
	if err != nil {
		return nil, fmt.Errorf("dependent modules: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan module name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Subclasses returns every class that has qualname as a direct or indirect
// declared base, by qualified name.
func (s *Store) Subclasses(qualname string) ([]*Class, error) {
	query := `WITH RECURSIVE subs(id, qualname) AS (
			SELECT c.id, c.qualname FROM class_bases b JOIN classes c ON c.id = b.class_id
			WHERE b.base = ?
			UNION
			SELECT c.id, c.qualname FROM class_bases b
			JOIN classes c ON c.id = b.class_id
			JOIN subs s ON b.base = s.qualname
		)
		SELECT ` + prefixed("c", ClassCols) + ` FROM classes c WHERE c.id IN (SELECT id FROM subs)
		ORDER BY c.qualname`
	classes, err := s.queryClasses(query, qualname)
	if err != nil {
		return nil, fmt.Errorf("subclasses: %w", err)
	}
	return classes, nil
}

type idRows interface {
	Next() bool
	Scan(...any) error
	Err() error
}

func scanIDs(rows idRows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
