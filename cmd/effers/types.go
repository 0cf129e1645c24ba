package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIRun summarizes one generation run.
type CLIRun struct {
	ID       string `json:"id"`
	Files    int    `json:"files"`
	Skipped  int    `json:"skipped"`
	Removed  int    `json:"removed"`
	Programs int    `json:"programs"`
	Errors   int    `json:"errors"`
}

// CLIFileReport is the outcome of generating one input file.
type CLIFileReport struct {
	Path     string   `json:"path"`
	Output   string   `json:"output,omitempty"`
	Status   string   `json:"status"`
	Programs []string `json:"programs,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// CLIGenerate is the result of the generate command.
type CLIGenerate struct {
	Runs  []CLIRun        `json:"runs"`
	Files []CLIFileReport `json:"files"`
}

// CLIMatch is an annotated function found by list.
type CLIMatch struct {
	File      string `json:"file"`
	Func      string `json:"func"`
	Method    bool   `json:"method,omitempty"`
	Directive string `json:"directive"`
	Line      int    `json:"line"`
}

// CLIProgram is a JSON-friendly manifest program.
type CLIProgram struct {
	Name        string         `json:"name"`
	Func        string         `json:"func"`
	File        string         `json:"file,omitempty"`
	Line        int            `json:"line"`
	Receiver    string         `json:"receiver,omitempty"`
	Rewritten   int            `json:"rewritten"`
	Passthrough bool           `json:"passthrough,omitempty"`
	Effects     int            `json:"effects"`
	Shadowed    int            `json:"shadowed,omitempty"`
	Layers      []CLILayer     `json:"layers,omitempty"`
	Operations  []CLIOperation `json:"operations,omitempty"`
}

// CLILayer is one layer of a program.
type CLILayer struct {
	Ordinal   int    `json:"ordinal"`
	Name      string `json:"name"`
	Label     string `json:"label"`
	Interface string `json:"interface"`
}

// CLIOperation is one declared operation of a program.
type CLIOperation struct {
	Layer      int    `json:"layer"`
	Name       string `json:"name"`
	Alias      string `json:"alias,omitempty"`
	Mode       string `json:"mode"`
	AccessPath string `json:"access_path"`
	Shadowed   bool   `json:"shadowed,omitempty"`
}
