package store

import "time"

// Run is one invocation of the generator.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Files      int        `json:"files"`
	Skipped    int        `json:"skipped"`
	Removed    int        `json:"removed"`
	Programs   int        `json:"programs"`
	Errors     int        `json:"errors"`
}

// File is a generated input file. Settings fingerprints the generator
// version and options its output was produced with.
type File struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	Package     string    `json:"package"`
	Output      string    `json:"output"`
	Hash        string    `json:"hash"`
	OutputHash  string    `json:"output_hash"`
	Settings    string    `json:"settings"`
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Program is one synthesized program.
type Program struct {
	ID          int64  `json:"id"`
	FileID      int64  `json:"file_id"`
	Name        string `json:"name"`
	FuncName    string `json:"func_name"`
	Receiver    string `json:"receiver,omitempty"`
	Line        int    `json:"line"`
	Rewritten   int    `json:"rewritten"`
	Passthrough bool   `json:"passthrough"`

	// Filled by the detail queries.
	Path       string       `json:"path,omitempty"`
	Layers     []*Layer     `json:"layers,omitempty"`
	Operations []*Operation `json:"operations,omitempty"`
}

// Layer is one composite type of a program.
type Layer struct {
	ID        int64  `json:"id"`
	ProgramID int64  `json:"program_id"`
	Ordinal   int    `json:"ordinal"`
	Name      string `json:"name"`
	Label     string `json:"label"`
	Interface string `json:"interface"`
}

// Operation is one declared effect operation and where its calls go.
type Operation struct {
	ID           int64  `json:"id"`
	ProgramID    int64  `json:"program_id"`
	LayerOrdinal int    `json:"layer"`
	Name         string `json:"name"`
	Alias        string `json:"alias,omitempty"`
	Mode         string `json:"mode"`
	AccessPath   string `json:"access_path"`
	// Shadowed marks an operation whose call name an earlier effect already
	// claimed; its calls never reach this layer.
	Shadowed bool `json:"shadowed,omitempty"`
}
