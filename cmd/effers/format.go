package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// outputResult writes result to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// formatGenerateText formats generate results as aligned columns followed
// by a summary line per run.
func formatGenerateText(w io.Writer, g CLIGenerate) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSTATUS\tOUTPUT\tPROGRAMS")
	for _, f := range g.Files {
		detail := strings.Join(f.Programs, ",")
		if f.Error != "" {
			detail = f.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Path, f.Status, f.Output, detail)
	}
	tw.Flush()
	for _, r := range g.Runs {
		fmt.Fprintf(w, "\nRun %s: %d generated, %d unchanged, %d removed, %d programs, %d errors\n",
			r.ID, r.Files, r.Skipped, r.Removed, r.Programs, r.Errors)
	}
}

// formatMatchesText formats list results as "file:line" lines.
func formatMatchesText(w io.Writer, matches []CLIMatch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATION\tFUNC\tDIRECTIVE")
	for _, m := range matches {
		name := m.Func
		if m.Method {
			name += " (method)"
		}
		fmt.Fprintf(tw, "%s:%d\t%s\t%s\n", m.File, m.Line, name, m.Directive)
	}
	tw.Flush()
}

// formatProgramsText formats programs as aligned columns.
func formatProgramsText(w io.Writer, progs []CLIProgram) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFUNC\tEFFECTS\tREWRITTEN\tLOCATION")
	for _, p := range progs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s:%d\n", p.Name, p.Func, p.Effects, p.Rewritten, p.File, p.Line)
	}
	tw.Flush()
}

// formatProgramDetailText formats one program with its layers and
// operations.
func formatProgramDetailText(w io.Writer, p CLIProgram) {
	fmt.Fprintf(w, "Program: %s\n", p.Name)
	fmt.Fprintf(w, "Function: %s (%s:%d)\n", p.Func, p.File, p.Line)
	fmt.Fprintf(w, "Receiver: %s\n", p.Receiver)
	fmt.Fprintf(w, "Rewritten calls: %d\n", p.Rewritten)
	if p.Passthrough {
		fmt.Fprintln(w, "Passthrough: no effects")
	}
	fmt.Fprintln(w)

	if len(p.Layers) > 0 {
		fmt.Fprintln(w, "Layers:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, l := range p.Layers {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\n", l.Ordinal, l.Label, l.Name, l.Interface)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(p.Operations) > 0 {
		fmt.Fprintln(w, "Operations:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, op := range p.Operations {
			call := op.Name
			if op.Alias != "" {
				call = op.Alias + " -> " + op.Name
			}
			note := ""
			if op.Shadowed {
				note = "shadowed"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", call, op.Mode, op.AccessPath, note)
		}
		tw.Flush()
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIGenerate:
		formatGenerateText(w, v)
	case []CLIMatch:
		formatMatchesText(w, v)
	case []CLIProgram:
		formatProgramsText(w, v)
	case CLIProgram:
		formatProgramDetailText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		if progs, ok := result.Results.([]CLIProgram); ok && len(progs) < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", len(progs), count)
		}
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
