package store

import (
	"database/sql"
	"fmt"
)

// CommitFile records a generated file and its programs within a single
// transaction, replacing whatever an earlier run recorded for the same
// path. IDs are written back into f and programs.
//
// Insert order respects FK dependencies:
//  1. File (upserted by path)
//  2. Programs (depend on file_id)
//  3. Layers and Operations (depend on program_id)
func (s *Store) CommitFile(f *File, programs []*Program) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit file: begin: %w", err)
	}
	defer tx.Rollback()

	fileID, err := upsertFileTx(tx, f)
	if err != nil {
		return fmt.Errorf("commit file: %s: %w", f.Path, err)
	}
	f.ID = fileID

	if err := deleteFileDataTx(tx, fileID); err != nil {
		return fmt.Errorf("commit file: %s: %w", f.Path, err)
	}

	for _, p := range programs {
		p.FileID = fileID
		id, err := insertProgramTx(tx, p)
		if err != nil {
			return fmt.Errorf("commit file: program %q: %w", p.Name, err)
		}
		p.ID = id

		for _, l := range p.Layers {
			l.ProgramID = id
			if l.ID, err = insertLayerTx(tx, l); err != nil {
				return fmt.Errorf("commit file: layer %q: %w", l.Name, err)
			}
		}
		for _, op := range p.Operations {
			op.ProgramID = id
			if op.ID, err = insertOperationTx(tx, op); err != nil {
				return fmt.Errorf("commit file: operation %q: %w", op.Name, err)
			}
		}
	}

	return tx.Commit()
}

// --- Transaction-scoped insert helpers ---

func upsertFileTx(tx *sql.Tx, f *File) (int64, error) {
	_, err := tx.Exec(
		`INSERT INTO files (path, package, output, hash, output_hash, settings, run_id, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			package = excluded.package,
			output = excluded.output,
			hash = excluded.hash,
			output_hash = excluded.output_hash,
			settings = excluded.settings,
			run_id = excluded.run_id,
			generated_at = excluded.generated_at`,
		f.Path, f.Package, f.Output, f.Hash, f.OutputHash, f.Settings, nullString(f.RunID), f.GeneratedAt,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func insertProgramTx(tx *sql.Tx, p *Program) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO programs (file_id, name, func_name, receiver, line, rewritten, passthrough)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.FileID, p.Name, p.FuncName, p.Receiver, p.Line, p.Rewritten, p.Passthrough,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertLayerTx(tx *sql.Tx, l *Layer) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO layers (program_id, ordinal, name, label, interface)
		 VALUES (?, ?, ?, ?, ?)`,
		l.ProgramID, l.Ordinal, l.Name, l.Label, l.Interface,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertOperationTx(tx *sql.Tx, op *Operation) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO operations (program_id, layer_ordinal, name, alias, mode, access_path, shadowed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op.ProgramID, op.LayerOrdinal, op.Name, op.Alias, op.Mode, op.AccessPath, op.Shadowed,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
