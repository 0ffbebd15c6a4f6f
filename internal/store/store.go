package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite persistence layer for indexed module summaries.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS modules (
  id              INTEGER PRIMARY KEY,
  name            TEXT NOT NULL,
  path            TEXT NOT NULL DEFAULT '',
  hash            TEXT,
  package         BOOLEAN DEFAULT FALSE,
  synthetic       BOOLEAN DEFAULT FALSE,
  version         INTEGER DEFAULT 0,
  line_count      INTEGER DEFAULT 0,
  built_at        TIMESTAMP,
  last_indexed    TIMESTAMP,
  UNIQUE (name, path)
);

CREATE TABLE IF NOT EXISTS classes (
  id              INTEGER PRIMARY KEY,
  module_id       INTEGER NOT NULL REFERENCES modules(id),
  name            TEXT NOT NULL,
  qualname        TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  mro             BLOB,
  mro_error       TEXT
);

CREATE TABLE IF NOT EXISTS class_bases (
  id              INTEGER PRIMARY KEY,
  class_id        INTEGER NOT NULL REFERENCES classes(id),
  ordinal         INTEGER NOT NULL,
  base            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  module_id       INTEGER NOT NULL REFERENCES modules(id),
  class_id        INTEGER REFERENCES classes(id),
  scope           TEXT NOT NULL DEFAULT '',
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  signature_hash  TEXT,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER
);

CREATE TABLE IF NOT EXISTS imports (
  id              INTEGER PRIMARY KEY,
  module_id       INTEGER NOT NULL REFERENCES modules(id),
  imported        TEXT NOT NULL,
  alias           TEXT,
  line            INTEGER
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_modules_name ON modules(name);
CREATE INDEX IF NOT EXISTS idx_classes_module ON classes(module_id);
CREATE INDEX IF NOT EXISTS idx_classes_qualname ON classes(qualname);
CREATE INDEX IF NOT EXISTS idx_class_bases_class ON class_bases(class_id);
CREATE INDEX IF NOT EXISTS idx_class_bases_base ON class_bases(base);
CREATE INDEX IF NOT EXISTS idx_symbols_module ON symbols(module_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_class ON symbols(class_id);
CREATE INDEX IF NOT EXISTS idx_imports_module ON imports(module_id);
CREATE INDEX IF NOT EXISTS idx_imports_imported ON imports(imported);
`

// DeleteModuleData transactionally removes everything recorded for a module
// except the module row itself, children first to respect FK constraints.
func (s *Store) DeleteModuleData(moduleID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM class_bases WHERE class_id IN (SELECT id FROM classes WHERE module_id = ?)",
		"DELETE FROM symbols WHERE module_id = ?",
		"DELETE FROM imports WHERE module_id = ?",
		"DELETE FROM classes WHERE module_id = ?",
	} {
		if _, err := tx.Exec(q, moduleID); err != nil {
			return fmt.Errorf("delete module data: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteModule removes a module and all of its data.
func (s *Store) DeleteModule(moduleID int64) error {
	if err := s.DeleteModuleData(moduleID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM modules WHERE id = ?", moduleID); err != nil {
		return fmt.Errorf("delete module: %w", err)
	}
	return nil
}
