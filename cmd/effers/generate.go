package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jward/effers"
	"github.com/jward/effers/internal/runtime"
)

var (
	flagPackages     bool
	flagForce        bool
	flagStrict       bool
	flagSerial       bool
	flagSuffix       string
	flagNamingScript string
)

var generateCmd = &cobra.Command{
	Use:   "generate [paths...]",
	Short: "Generate programs from annotated functions",
	Long: "Generates an output file next to every input file under the given directories or among the given files. " +
		"With --packages, arguments are package patterns loaded with the effers build tag.",
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVar(&flagPackages, "packages", false, "treat arguments as package patterns (default ./...)")
	generateCmd.Flags().BoolVar(&flagForce, "force", false, "regenerate files even when unchanged")
	generateCmd.Flags().BoolVar(&flagStrict, "strict", false, "fail when two effects claim the same operation name")
	generateCmd.Flags().BoolVar(&flagSerial, "serial", false, "generate one file at a time")
	generateCmd.Flags().StringVar(&flagSuffix, "suffix", "_effers", "suffix inserted before .go in output file names")
	generateCmd.Flags().StringVar(&flagNamingScript, "naming-script", "", "Risor script that names programs without an explicit name")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cwd, err := os.Getwd()
	if err != nil {
		return outputError("generate", fmt.Errorf("getting cwd: %w", err))
	}
	if len(args) == 0 {
		if flagPackages {
			args = []string{"./..."}
		} else {
			args = []string{"."}
		}
	}

	dbPath := resolveDBPath(findRepoRoot(cwd))
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return outputError("generate", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
	}

	opts := []effers.Option{
		effers.WithLogger(logger),
		effers.WithSuffix(flagSuffix),
		effers.WithStrict(flagStrict),
		effers.WithForce(flagForce),
		effers.WithParallel(!flagSerial),
	}
	if flagNamingScript != "" {
		namer, err := loadNamer(flagNamingScript)
		if err != nil {
			return outputError("generate", err)
		}
		opts = append(opts, effers.WithNamer(namer))
	}

	engine, err := effers.New(dbPath, opts...)
	if err != nil {
		return outputError("generate", fmt.Errorf("creating engine: %w", err))
	}
	defer engine.Close()

	ctx := cmd.Context()
	var (
		reports []*effers.Report
		errs    error
	)
	if flagPackages {
		report, err := engine.GeneratePackages(ctx, cwd, args...)
		if report != nil {
			reports = append(reports, report)
		}
		errs = multierr.Append(errs, err)
	} else {
		var files []string
		for _, arg := range args {
			abs, err := filepath.Abs(arg)
			if err != nil {
				return outputError("generate", fmt.Errorf("resolving path %q: %w", arg, err))
			}
			info, err := os.Stat(abs)
			if err != nil {
				return outputError("generate", fmt.Errorf("path not found: %s", abs))
			}
			if !info.IsDir() {
				files = append(files, abs)
				continue
			}
			report, err := engine.GenerateDirectory(ctx, abs)
			if report != nil {
				reports = append(reports, report)
			}
			errs = multierr.Append(errs, err)
		}
		if len(files) > 0 {
			report, err := engine.GenerateFiles(ctx, files)
			if report != nil {
				reports = append(reports, report)
			}
			errs = multierr.Append(errs, err)
		}
	}

	logger.Debug("generate finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.String("db", dbPath))

	result := toCLIGenerate(reports)
	if err := outputResult(CLIResult{Command: "generate", Results: result}); err != nil {
		return err
	}
	if errs != nil {
		errorHandled = true
		return fmt.Errorf("%d file(s) failed", len(multierr.Errors(errs)))
	}
	return nil
}

// loadNamer builds a ScriptNamer for the script at path, resolving imports
// relative to the script's directory.
func loadNamer(path string) (effers.Namer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving naming script %q: %w", path, err)
	}
	rt := runtime.NewRuntime(filepath.Dir(abs), runtime.WithRuntimeLogger(logger))
	namer, err := runtime.NewScriptNamer(rt, filepath.Base(abs))
	if err != nil {
		return nil, fmt.Errorf("loading naming script: %w", err)
	}
	return namer, nil
}

func toCLIGenerate(reports []*effers.Report) CLIGenerate {
	out := CLIGenerate{Runs: []CLIRun{}, Files: []CLIFileReport{}}
	for _, r := range reports {
		out.Runs = append(out.Runs, CLIRun{
			ID:       r.Run.ID,
			Files:    r.Run.Files,
			Skipped:  r.Run.Skipped,
			Removed:  r.Run.Removed,
			Programs: r.Run.Programs,
			Errors:   r.Run.Errors,
		})
		for _, f := range r.Files {
			status := "generated"
			switch {
			case f.Error != "":
				status = "failed"
			case f.Skipped:
				status = "unchanged"
			case f.Removed:
				status = "removed"
			}
			out.Files = append(out.Files, CLIFileReport{
				Path:     f.Path,
				Output:   f.Output,
				Status:   status,
				Programs: f.Programs,
				Error:    f.Error,
			})
		}
	}
	return out
}
