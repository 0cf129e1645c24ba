package store

import (
	"database/sql"
	"fmt"
)

// --- File queries ---

// FileByPath returns the file recorded for path, or nil.
func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	var runID sql.NullString
	err := s.db.QueryRow(
		"SELECT id, path, package, output, hash, output_hash, settings, run_id, generated_at FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Package, &f.Output, &f.Hash, &f.OutputHash, &f.Settings, &runID, &f.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	f.RunID = runID.String
	return f, nil
}

// Files returns every recorded file ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT id, path, package, output, hash, output_hash, settings, run_id, generated_at FROM files ORDER BY path",
	)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		var runID sql.NullString
		if err := rows.Scan(&f.ID, &f.Path, &f.Package, &f.Output, &f.Hash, &f.OutputHash, &f.Settings, &runID, &f.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.RunID = runID.String
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Program queries ---

const programColumns = `p.id, p.file_id, p.name, p.func_name, p.receiver, p.line, p.rewritten, p.passthrough, f.path`

func scanProgram(row interface{ Scan(...any) error }) (*Program, error) {
	p := &Program{}
	var receiver sql.NullString
	if err := row.Scan(&p.ID, &p.FileID, &p.Name, &p.FuncName, &receiver, &p.Line, &p.Rewritten, &p.Passthrough, &p.Path); err != nil {
		return nil, err
	}
	p.Receiver = receiver.String
	return p, nil
}

func (s *Store) queryPrograms(where string, args ...any) ([]*Program, error) {
	rows, err := s.db.Query(
		"SELECT "+programColumns+" FROM programs p JOIN files f ON f.id = p.file_id "+where+" ORDER BY f.path, p.line",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("programs: %w", err)
	}
	defer rows.Close()
	var programs []*Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

// Programs returns every recorded program, without layers or operations.
func (s *Store) Programs() ([]*Program, error) {
	return s.queryPrograms("")
}

// ProgramsByFile returns the programs generated from one file.
func (s *Store) ProgramsByFile(fileID int64) ([]*Program, error) {
	return s.queryPrograms("WHERE p.file_id = ?", fileID)
}

// ProgramsByName returns every program called name with its layers and
// operations. Names are unique per package, not per manifest.
func (s *Store) ProgramsByName(name string) ([]*Program, error) {
	programs, err := s.queryPrograms("WHERE p.name = ?", name)
	if err != nil {
		return nil, err
	}
	for _, p := range programs {
		if err := s.loadDetail(p); err != nil {
			return nil, err
		}
	}
	return programs, nil
}

func (s *Store) loadDetail(p *Program) error {
	rows, err := s.db.Query(
		"SELECT id, program_id, ordinal, name, label, interface FROM layers WHERE program_id = ? ORDER BY ordinal", p.ID,
	)
	if err != nil {
		return fmt.Errorf("layers: %w", err)
	}
	for rows.Next() {
		l := &Layer{}
		if err := rows.Scan(&l.ID, &l.ProgramID, &l.Ordinal, &l.Name, &l.Label, &l.Interface); err != nil {
			rows.Close()
			return fmt.Errorf("scan layer: %w", err)
		}
		p.Layers = append(p.Layers, l)
	}
	rows.Close()

	rows, err = s.db.Query(
		`SELECT id, program_id, layer_ordinal, name, alias, mode, access_path, shadowed
		 FROM operations WHERE program_id = ? ORDER BY layer_ordinal, id`, p.ID,
	)
	if err != nil {
		return fmt.Errorf("operations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		op := &Operation{}
		var alias sql.NullString
		if err := rows.Scan(&op.ID, &op.ProgramID, &op.LayerOrdinal, &op.Name, &alias, &op.Mode, &op.AccessPath, &op.Shadowed); err != nil {
			return fmt.Errorf("scan operation: %w", err)
		}
		op.Alias = alias.String
		p.Operations = append(p.Operations, op)
	}
	return rows.Err()
}
