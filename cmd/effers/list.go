package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jward/effers"
	"github.com/jward/effers/internal/scan"
)

var listCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "List annotated functions",
	Long:  "Scans Go files under path (a directory or a single file) for //effers:program directives without generating anything. Files that do not compile are scanned too.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return outputError("list", fmt.Errorf("resolving path %q: %w", target, err))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return outputError("list", fmt.Errorf("path not found: %s", abs))
	}

	paths := []string{abs}
	if info.IsDir() {
		if paths, err = effers.ListFiles(abs, cfg.Suffix); err != nil {
			return outputError("list", err)
		}
	}

	matches := []CLIMatch{}
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return outputError("list", fmt.Errorf("reading %s: %w", path, err))
		}
		found, err := scan.Directives(cmd.Context(), src)
		if err != nil {
			logger.Warn("scan failed", zap.String("path", path), zap.Error(err))
			continue
		}
		for _, m := range found {
			matches = append(matches, CLIMatch{
				File:      path,
				Func:      m.Func,
				Method:    m.Method,
				Directive: m.Directive,
				Line:      m.Line,
			})
		}
	}
	return outputResult(CLIResult{Command: "list", Results: matches})
}
