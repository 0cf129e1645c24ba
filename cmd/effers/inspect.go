package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/effers"
)

// inspectLimit caps the listing; use search to page past it.
const inspectLimit = 500

var inspectCmd = &cobra.Command{
	Use:   "inspect [program]",
	Short: "Show generated programs recorded in the manifest",
	Long:  "Without arguments, lists every recorded program. Lists at most 500; use search to page. With a program name, shows its layers and where each operation's calls are routed.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return outputError("inspect", err)
	}
	defer engine.Close()

	if len(args) == 0 {
		result, err := engine.Query().Programs(effers.ProgramFilter{}, effers.Sort{Field: effers.SortByFile}, effers.Pagination{Limit: inspectLimit})
		if err != nil {
			return outputError("inspect", err)
		}
		out := make([]CLIProgram, 0, len(result.Items))
		for _, r := range result.Items {
			out = append(out, programResultToCLI(r))
		}
		return outputResult(CLIResult{Command: "inspect", Results: out, TotalCount: &result.TotalCount})
	}

	progs, err := engine.Program(args[0])
	if err != nil {
		return outputError("inspect", err)
	}
	switch len(progs) {
	case 0:
		return outputError("inspect", fmt.Errorf("program %q not found", args[0]))
	case 1:
		return outputResult(CLIResult{Command: "inspect", Results: toCLIProgram(progs[0])})
	}
	out := make([]CLIProgram, 0, len(progs))
	for _, p := range progs {
		out = append(out, toCLIProgram(p))
	}
	return outputResult(CLIResult{Command: "inspect", Results: out})
}

// openEngine opens the manifest from the --db flag path (or default).
func openEngine() (*effers.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("manifest not found: %s (run 'effers generate' first)", dbPath)
	}
	return effers.New(dbPath, effers.WithLogger(logger))
}

func toCLIProgram(p *effers.Program) CLIProgram {
	out := CLIProgram{
		Name:        p.Name,
		Func:        p.FuncName,
		File:        p.Path,
		Line:        p.Line,
		Receiver:    p.Receiver,
		Rewritten:   p.Rewritten,
		Passthrough: p.Passthrough,
		Effects:     len(p.Layers),
	}
	for _, l := range p.Layers {
		out.Layers = append(out.Layers, CLILayer{
			Ordinal:   l.Ordinal,
			Name:      l.Name,
			Label:     l.Label,
			Interface: l.Interface,
		})
	}
	for _, op := range p.Operations {
		out.Operations = append(out.Operations, CLIOperation{
			Layer:      op.LayerOrdinal,
			Name:       op.Name,
			Alias:      op.Alias,
			Mode:       op.Mode,
			AccessPath: op.AccessPath,
			Shadowed:   op.Shadowed,
		})
	}
	return out
}
