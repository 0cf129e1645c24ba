// Package store persists the generation manifest: which inputs were
// generated in which run, and the programs, layers and operations each one
// produced.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the generation manifest.
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

// Migrate creates all manifest tables and indexes, and adds columns that
// manifests written by older versions lack. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, c := range addedColumns {
		var n int
		if err := s.db.QueryRow(
			"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", c.table, c.column,
		).Scan(&n); err != nil {
			return fmt.Errorf("migrate: inspect %s: %w", c.table, err)
		}
		if n > 0 {
			continue
		}
		if _, err := s.db.Exec("ALTER TABLE " + c.table + " ADD COLUMN " + c.column + " " + c.def); err != nil {
			return fmt.Errorf("migrate: add %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

// addedColumns lists columns introduced after a table was first created.
var addedColumns = []struct{ table, column, def string }{
	{"runs", "removed", "INTEGER DEFAULT 0"},
	{"files", "settings", "TEXT NOT NULL DEFAULT ''"},
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
  id              TEXT PRIMARY KEY,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP,
  files           INTEGER DEFAULT 0,
  skipped         INTEGER DEFAULT 0,
  removed         INTEGER DEFAULT 0,
  programs        INTEGER DEFAULT 0,
  errors          INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  package         TEXT NOT NULL,
  output          TEXT NOT NULL,
  hash            TEXT NOT NULL,
  output_hash     TEXT NOT NULL,
  settings        TEXT NOT NULL DEFAULT '',
  run_id          TEXT REFERENCES runs(id),
  generated_at    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS programs (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  name            TEXT NOT NULL,
  func_name       TEXT NOT NULL,
  receiver        TEXT,
  line            INTEGER,
  rewritten       INTEGER DEFAULT 0,
  passthrough     BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS layers (
  id              INTEGER PRIMARY KEY,
  program_id      INTEGER NOT NULL REFERENCES programs(id),
  ordinal         INTEGER NOT NULL,
  name            TEXT NOT NULL,
  label           TEXT NOT NULL,
  interface       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS operations (
  id              INTEGER PRIMARY KEY,
  program_id      INTEGER NOT NULL REFERENCES programs(id),
  layer_ordinal   INTEGER NOT NULL,
  name            TEXT NOT NULL,
  alias           TEXT,
  mode            TEXT NOT NULL,
  access_path     TEXT NOT NULL,
  shadowed        BOOLEAN DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_files_run ON files(run_id);
CREATE INDEX IF NOT EXISTS idx_programs_file ON programs(file_id);
CREATE INDEX IF NOT EXISTS idx_programs_name ON programs(name);
CREATE INDEX IF NOT EXISTS idx_layers_program ON layers(program_id);
CREATE INDEX IF NOT EXISTS idx_operations_program ON operations(program_id);
`

// DeleteFileData transactionally removes a file and everything generated
// from it. Deletes in reverse-dependency order to respect FK constraints.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileDataTx(tx, fileID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return tx.Commit()
}

// deleteFileDataTx removes the programs of a file, keeping the file row.
func deleteFileDataTx(tx *sql.Tx, fileID int64) error {
	rows, err := tx.Query("SELECT id FROM programs WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("query programs: %w", err)
	}
	var programIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan program id: %w", err)
		}
		programIDs = append(programIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate program ids: %w", err)
	}
	rows.Close()

	if len(programIDs) > 0 {
		placeholders := placeholderList(len(programIDs))
		args := int64sToArgs(programIDs)
		for _, q := range []string{
			"DELETE FROM operations WHERE program_id IN (" + placeholders + ")",
			"DELETE FROM layers WHERE program_id IN (" + placeholders + ")",
		} {
			if _, err := tx.Exec(q, args...); err != nil {
				return fmt.Errorf("delete program children: %w", err)
			}
		}
	}
	if _, err := tx.Exec("DELETE FROM programs WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("delete programs: %w", err)
	}
	return nil
}
