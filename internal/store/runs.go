package store

import (
	"database/sql"
	"fmt"
	"time"
)

// BeginRun records the start of a run.
func (s *Store) BeginRun(id string, startedAt time.Time) (*Run, error) {
	_, err := s.db.Exec("INSERT INTO runs (id, started_at) VALUES (?, ?)", id, startedAt)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return &Run{ID: id, StartedAt: startedAt}, nil
}

// FinishRun stores the final counters of r.
func (s *Store) FinishRun(r *Run, finishedAt time.Time) error {
	r.FinishedAt = &finishedAt
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, files = ?, skipped = ?, removed = ?, programs = ?, errors = ? WHERE id = ?`,
		finishedAt, r.Files, r.Skipped, r.Removed, r.Programs, r.Errors, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RunByID returns a run, or nil when it does not exist.
func (s *Store) RunByID(id string) (*Run, error) {
	r := &Run{}
	var finished sql.NullTime
	err := s.db.QueryRow(
		"SELECT id, started_at, finished_at, files, skipped, removed, programs, errors FROM runs WHERE id = ?", id,
	).Scan(&r.ID, &r.StartedAt, &finished, &r.Files, &r.Skipped, &r.Removed, &r.Programs, &r.Errors)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run by id: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return r, nil
}

// LatestRun returns the most recently started run, or nil.
func (s *Store) LatestRun() (*Run, error) {
	var id string
	err := s.db.QueryRow("SELECT id FROM runs ORDER BY started_at DESC LIMIT 1").Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return s.RunByID(id)
}
