package gen

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		prev int
		want string
	}{
		{0, "Handler"},
		{1, "Prev.Handler"},
		{2, "Prev.Prev.Handler"},
	}
	for _, tt := range tests {
		path := AccessPath{Prev: tt.prev, Mode: ModeShared}
		assert.Equal(t, tt.want, path.String())
		assert.Len(t, path.Steps(), tt.prev+1)
	}
}

func TestNewTable_AccessPaths(t *testing.T) {
	t.Parallel()
	effects := threeEffects(t)
	table := NewTable(effects, BuildChain("Prog", effects, nil))

	pr, ok := table.Lookup("Print")
	require.True(t, ok)
	assert.Equal(t, "Prev.Prev.Handler", pr.Path.String())
	assert.Equal(t, "A", pr.Label)
	assert.Equal(t, ModeShared, pr.Path.Mode)

	debug, ok := table.Lookup("Debug")
	require.True(t, ok)
	assert.Equal(t, "Prev.Handler", debug.Path.String())

	inc, ok := table.Lookup("Increment")
	require.True(t, ok)
	assert.Equal(t, "Handler", inc.Path.String())
	assert.Equal(t, 2, inc.Effect)
	assert.Equal(t, []string{"inc", "Incrementer"}, inc.Interface)

	_, ok = table.Lookup("Missing")
	assert.False(t, ok)

	var calls []string
	for _, target := range table.Targets() {
		calls = append(calls, target.Op.CallName())
	}
	assert.Equal(t, []string{"Print", "Debug", "Increment"}, calls)
}

func TestNewTable_FirstDeclarationWins(t *testing.T) {
	t.Parallel()
	effects := []Effect{
		mustEffect(t, []string{"Printer"}, Operation{Name: "Print", Mode: ModeShared}),
		mustEffect(t, []string{"Logger"}, Operation{Name: "Log", Alias: "Print", Mode: ModeMutable}),
	}
	table := NewTable(effects, BuildChain("Prog", effects, nil))

	target, ok := table.Lookup("Print")
	require.True(t, ok)
	assert.Equal(t, 0, target.Effect)
	assert.Equal(t, []Shadow{{Name: "Print", Winner: 0, Loser: 1}}, table.Shadows())
}

const rewriteSrc = `package p

func body(val uint8) uint8 {
	if printerAvailable() {
		p("hey hi hello")
	}
	Debug(fmt.Sprint(val))
	go func() { Increment() }()
	unrelated()
	x.p("method call")
	return val + 3
}
`

func rewriteBody(t *testing.T, effects []Effect) (string, int) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", rewriteSrc, 0)
	require.NoError(t, err)
	fn := f.Decls[0].(*ast.FuncDecl)

	table := NewTable(effects, BuildChain("Prog", effects, nil))
	n := table.Rewrite(fn.Body, "prog")

	var buf bytes.Buffer
	require.NoError(t, printer.Fprint(&buf, fset, fn.Body))
	return buf.String(), n
}

func TestRewrite(t *testing.T) {
	t.Parallel()
	effects := []Effect{
		mustEffect(t, []string{"Printer"},
			Operation{Name: "Print", Alias: "p", Mode: ModeShared},
			Operation{Name: "Available", Alias: "printerAvailable"}),
		mustEffect(t, []string{"Logger"}, Operation{Name: "Debug", Mode: ModeMutable}),
		mustEffect(t, []string{"inc", "Incrementer"}, Operation{Name: "Increment", Mode: ModeOwned}),
	}
	out, n := rewriteBody(t, effects)

	assert.Equal(t, 4, n)
	assert.Contains(t, out, `if Printer.Available(prog.Prev.Prev.Handler) {`)
	assert.Contains(t, out, `Printer.Print(prog.Prev.Prev.Handler, "hey hi hello")`)
	assert.Contains(t, out, `Logger.Debug(prog.Prev.Handler, fmt.Sprint(val))`)
	assert.Contains(t, out, `go func() { inc.Incrementer.Increment(prog.Handler) }()`)
	assert.Contains(t, out, `unrelated()`)
	assert.Contains(t, out, `x.p("method call")`)
	assert.Contains(t, out, `return val + 3`)
}

func TestRewrite_NestedCalls(t *testing.T) {
	t.Parallel()
	effects := []Effect{
		mustEffect(t, []string{"Printer"}, Operation{Name: "Print", Mode: ModeShared}),
		mustEffect(t, []string{"Namer"}, Operation{Name: "Name", Mode: ModeShared}),
	}
	fset := token.NewFileSet()
	expr, err := parser.ParseExprFrom(fset, "x.go", `Print(Name())`, 0)
	require.NoError(t, err)

	stmt := &ast.ExprStmt{X: expr}
	block := &ast.BlockStmt{List: []ast.Stmt{stmt}}
	table := NewTable(effects, BuildChain("Prog", effects, nil))
	assert.Equal(t, 2, table.Rewrite(block, "prog"))

	var buf bytes.Buffer
	require.NoError(t, printer.Fprint(&buf, fset, stmt))
	assert.Equal(t, `Printer.Print(prog.Prev.Handler, Namer.Name(prog.Handler))`, buf.String())
}

func TestRewrite_NoEffects(t *testing.T) {
	t.Parallel()
	out, n := rewriteBody(t, nil)
	assert.Zero(t, n)
	assert.Contains(t, out, `p("hey hi hello")`)
}
