package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/jward/effers"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	// TempDir has no .git directory anywhere in its ancestry
	// (unless /tmp itself is a repo, which would be unusual).
	dir := t.TempDir()

	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestResolveDBPath(t *testing.T) {
	defer func(old string) { flagDB = old }(flagDB)

	flagDB = ""
	assert.Equal(t, filepath.Join("/repo", ".effers", "manifest.db"), resolveDBPath("/repo"))

	flagDB = "custom.db"
	assert.Equal(t, filepath.Join("/repo", "custom.db"), resolveDBPath("/repo"))

	flagDB = "/abs/custom.db"
	assert.Equal(t, "/abs/custom.db", resolveDBPath("/repo"))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	err := validateFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json or text")
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("EFFERS_DB", "env.db")
	t.Setenv("EFFERS_FORMAT", "text")
	t.Setenv("EFFERS_STRICT", "true")
	t.Setenv("EFFERS_LOG_LEVEL", "debug")

	c, err := loadEnv()
	require.NoError(t, err)
	assert.Equal(t, "env.db", c.DB)
	assert.Equal(t, "text", c.Format)
	assert.True(t, c.Strict)
	assert.Equal(t, "_effers", c.Suffix)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoadEnv_Invalid(t *testing.T) {
	t.Setenv("EFFERS_STRICT", "sometimes")
	_, err := loadEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestApplyEnv_FlagsOverride(t *testing.T) {
	defer func(db, format string, strict bool, suffix string) {
		flagDB, flagFormat, flagStrict, flagSuffix = db, format, strict, suffix
	}(flagDB, flagFormat, flagStrict, flagSuffix)

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&flagDB, "db", "", "")
	cmd.Flags().StringVar(&flagFormat, "format", "json", "")
	cmd.Flags().BoolVar(&flagStrict, "strict", false, "")
	cmd.Flags().StringVar(&flagSuffix, "suffix", "_effers", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--format", "json"}))

	applyEnv(cmd, envConfig{DB: "env.db", Format: "text", Strict: true, Suffix: ".gen"})
	assert.Equal(t, "env.db", flagDB)
	assert.Equal(t, "json", flagFormat, "an explicit flag wins")
	assert.True(t, flagStrict)
	assert.Equal(t, ".gen", flagSuffix)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()
	l, err := newLogger("error", false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))

	l, err = newLogger("error", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger("loud", false)
	require.Error(t, err)
}

func TestToCLIGenerate(t *testing.T) {
	t.Parallel()
	reports := []*effers.Report{{
		Run: &effers.Run{ID: "run-1", Files: 1, Skipped: 1, Removed: 1, Programs: 2, Errors: 1},
		Files: []*effers.FileReport{
			{Path: "a.go", Output: "a_effers.go", Programs: []string{"A", "B"}},
			{Path: "b.go", Output: "b_effers.go", Skipped: true},
			{Path: "c.go", Error: "boom"},
			{Path: "d.go", Output: "d_effers.go", Removed: true},
		},
	}}

	g := toCLIGenerate(reports)
	require.Len(t, g.Runs, 1)
	assert.Equal(t, "run-1", g.Runs[0].ID)
	assert.Equal(t, 1, g.Runs[0].Removed)
	require.Len(t, g.Files, 4)
	assert.Equal(t, "generated", g.Files[0].Status)
	assert.Equal(t, "unchanged", g.Files[1].Status)
	assert.Equal(t, "failed", g.Files[2].Status)
	assert.Equal(t, "removed", g.Files[3].Status)

	var buf bytes.Buffer
	require.NoError(t, outputResultText(&buf, CLIResult{Command: "generate", Results: g}))
	assert.Contains(t, buf.String(), "PATH")
	assert.Contains(t, buf.String(), "A,B")
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "Run run-1: 1 generated, 1 unchanged, 1 removed, 2 programs, 1 errors")
}

func TestToCLIProgram(t *testing.T) {
	t.Parallel()
	p := toCLIProgram(&effers.Program{
		Name: "Counter", FuncName: "count", Path: "count.go", Line: 20, Receiver: "prog", Rewritten: 2,
		Layers: []*effers.Layer{{Ordinal: 0, Name: "CounterWithPrinter", Label: "A", Interface: "Printer"}},
		Operations: []*effers.Operation{
			{LayerOrdinal: 0, Name: "Print", Alias: "p", Mode: "shared", AccessPath: "Handler"},
			{LayerOrdinal: 0, Name: "Flush", Mode: "none", AccessPath: "Handler", Shadowed: true},
		},
	})
	assert.Equal(t, "count", p.Func)
	assert.Equal(t, 1, p.Effects)
	require.Len(t, p.Layers, 1)
	require.Len(t, p.Operations, 2)

	var buf bytes.Buffer
	require.NoError(t, outputResultText(&buf, CLIResult{Command: "inspect", Results: p}))
	text := buf.String()
	assert.Contains(t, text, "Program: Counter")
	assert.Contains(t, text, "Function: count (count.go:20)")
	assert.Contains(t, text, "p -> Print")
	assert.Contains(t, text, "shadowed")
}

func TestOutputResultText_Unsupported(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{Results: 42})
	require.Error(t, err)
}

func TestProgramResultToCLI(t *testing.T) {
	t.Parallel()
	p := programResultToCLI(effers.ProgramResult{
		Program:  effers.Program{Name: "Shadowed", FuncName: "shadowed", Path: "shadow.go", Line: 9},
		Effects:  2,
		Shadowed: 1,
	})
	assert.Equal(t, "Shadowed", p.Name)
	assert.Equal(t, 2, p.Effects)
	assert.Equal(t, 1, p.Shadowed)
}

func TestBuildSort(t *testing.T) {
	defer func(s, o string) { flagSort, flagOrder = s, o }(flagSort, flagOrder)

	flagSort, flagOrder = "effects", "desc"
	assert.Equal(t, effers.Sort{Field: effers.SortByEffects, Order: effers.Desc}, buildSort())

	flagSort, flagOrder = "bogus", ""
	assert.Equal(t, effers.Sort{Field: effers.SortByName, Order: effers.Asc}, buildSort())
}

func TestBuildPagination(t *testing.T) {
	defer func(l, o int) { flagLimit, flagOffset = l, o }(flagLimit, flagOffset)

	flagLimit, flagOffset = 10, 20
	assert.Equal(t, effers.Pagination{Limit: 10, Offset: 20}, buildPagination())
}

func TestOutputResultText_PaginationFooter(t *testing.T) {
	t.Parallel()
	progs := []CLIProgram{{Name: "Counter", Func: "count", Effects: 2, File: "count.go", Line: 20}}

	total := 3
	var buf bytes.Buffer
	require.NoError(t, outputResultText(&buf, CLIResult{Command: "search", Results: progs, TotalCount: &total}))
	assert.Contains(t, buf.String(), "EFFECTS")
	assert.Contains(t, buf.String(), "Showing 1 of 3 results")

	total = 1
	buf.Reset()
	require.NoError(t, outputResultText(&buf, CLIResult{Command: "search", Results: progs, TotalCount: &total}))
	assert.NotContains(t, buf.String(), "Showing")
}
