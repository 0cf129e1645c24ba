package gen

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEffect(t *testing.T, path []string, ops ...Operation) Effect {
	t.Helper()
	eff, err := NewEffect(path, ops)
	require.NoError(t, err)
	return eff
}

func threeEffects(t *testing.T) []Effect {
	t.Helper()
	return []Effect{
		mustEffect(t, []string{"Printer"}, Operation{Name: "Print", Mode: ModeShared}),
		mustEffect(t, []string{"Logger"}, Operation{Name: "Debug", Mode: ModeMutable}),
		mustEffect(t, []string{"inc", "Incrementer"}, Operation{Name: "Increment", Mode: ModeOwned}),
	}
}

func renderNode(t *testing.T, node ast.Node) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, printer.Fprint(&buf, token.NewFileSet(), node))
	return buf.String()
}

func TestBuildChain_Shape(t *testing.T) {
	t.Parallel()
	layers := BuildChain("Prog", threeEffects(t), nil)
	require.Len(t, layers, 3)

	tests := []struct {
		name   string
		labels []string
		prev   string
		self   string
	}{
		{"ProgWithPrinter", []string{"A"}, "Prog", "ProgWithPrinter[A]"},
		{"ProgWithPrinterLogger", []string{"A", "B"}, "ProgWithPrinter[A]", "ProgWithPrinterLogger[A, B]"},
		{"ProgWithPrinterLoggerIncrementer", []string{"A", "B", "C"}, "ProgWithPrinterLogger[A, B]", "ProgWithPrinterLoggerIncrementer[A, B, C]"},
	}
	for i, tt := range tests {
		l := layers[i]
		assert.Equal(t, i, l.Index)
		assert.Equal(t, tt.name, l.Name)
		assert.Equal(t, tt.labels, l.Labels)
		assert.Equal(t, tt.labels[i], l.Label)
		assert.Len(t, l.TypeParams().List, i+1, "layer %d declares one parameter per attached effect", i)
		assert.Equal(t, tt.prev, l.Prev.String())
		assert.Equal(t, tt.prev, types.ExprString(l.Prev.Expr()))
		assert.Equal(t, tt.self, l.Self().String())
		assert.Equal(t, tt.self, types.ExprString(l.Self().Expr()))
	}

	assert.Equal(t, []string{"inc", "Incrementer"}, layers[2].Bound())
	assert.Equal(t, "inc.Incrementer", types.ExprString(layers[2].TypeParams().List[2].Type))
}

func TestBuildChain_NoEffects(t *testing.T) {
	t.Parallel()
	assert.Empty(t, BuildChain("Prog", nil, nil))
}

func TestBuildChain_SkipsReservedLabels(t *testing.T) {
	t.Parallel()
	layers := BuildChain("Prog", threeEffects(t), map[string]bool{"A": true, "C": true})
	assert.Equal(t, []string{"B", "D", "E"}, layers[2].Labels)
}

func TestBuildChain_Deterministic(t *testing.T) {
	t.Parallel()
	a := BuildChain("Prog", threeEffects(t), nil)
	b := BuildChain("Prog", threeEffects(t), nil)
	assert.Equal(t, a, b)
}

func TestBuildChain_ManyEffects(t *testing.T) {
	t.Parallel()
	var effects []Effect
	for range 28 {
		effects = append(effects, mustEffect(t, []string{"E"}))
	}
	layers := BuildChain("Prog", effects, nil)
	last := layers[len(layers)-1]
	assert.Len(t, last.Labels, 28)
	assert.Equal(t, "Z", last.Labels[25])
	assert.Equal(t, "AA", last.Labels[26])
	assert.Equal(t, "BB", last.Labels[27])
}

func TestLayer_Spec(t *testing.T) {
	t.Parallel()
	layers := BuildChain("Prog", threeEffects(t), nil)
	out := renderNode(t, &ast.GenDecl{Tok: token.TYPE, Specs: []ast.Spec{layers[1].Spec()}})
	assert.Contains(t, out, "type ProgWithPrinterLogger[A Printer, B Logger] struct")
	assert.Contains(t, out, "Prev")
	assert.Contains(t, out, "ProgWithPrinter[A]")
	assert.Contains(t, out, "Handler")
}

func TestBuilders(t *testing.T) {
	t.Parallel()
	layers := BuildChain("Prog", threeEffects(t), nil)
	adders, constructors := Builders(layers)
	require.Len(t, adders, 3)
	require.Len(t, constructors, 3)

	first := renderNode(t, adders[0])
	assert.Contains(t, first, "func (p Prog) Add(h Printer) ProgWithPrinter[Printer]")
	assert.Contains(t, first, "return ProgWithPrinter[Printer]{Prev: p, Handler: h}")

	last := renderNode(t, adders[2])
	assert.Contains(t, last, "func (p ProgWithPrinterLogger[A, B]) Add(h inc.Incrementer) ProgWithPrinterLoggerIncrementer[A, B, inc.Incrementer]")

	ctor := renderNode(t, constructors[1])
	assert.Contains(t, ctor, "func NewProgWithPrinterLogger[A Printer, B Logger](p ProgWithPrinter[A], h B) ProgWithPrinterLogger[A, B]")
	assert.Contains(t, ctor, "return ProgWithPrinterLogger[A, B]{Prev: p, Handler: h}")
	assert.Equal(t, "NewProgWithPrinter", ConstructorName(layers[0]))
}

func TestBuilders_AvoidPackageNames(t *testing.T) {
	t.Parallel()
	effects := []Effect{mustEffect(t, []string{"p", "Printer"}), mustEffect(t, []string{"h", "Logger"})}
	adders, _ := Builders(BuildChain("Prog", effects, nil))
	assert.Contains(t, renderNode(t, adders[0]), "func (p1 Prog) Add(h1 p.Printer)")
}

func TestBuilders_FreshNodes(t *testing.T) {
	t.Parallel()
	layers := BuildChain("Prog", threeEffects(t), nil)
	adders, _ := Builders(layers)
	result := adders[1].Type.Results.List[0].Type
	lit := adders[1].Body.List[0].(*ast.ReturnStmt).Results[0].(*ast.CompositeLit)
	assert.NotSame(t, result, lit.Type)
}

func TestFreeName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "prog", freeName("prog", nil))
	assert.Equal(t, "prog1", freeName("prog", map[string]bool{"prog": true}))
	assert.Equal(t, "prog2", freeName("prog", map[string]bool{"prog": true, "prog1": true}))
}
