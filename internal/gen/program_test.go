package gen

import (
	"bytes"
	"context"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const programSrc = `package p

type Printer interface {
	Print(s string)
	Available() bool
}

type Logger interface {
	Debug(s string)
	Info(s string)
}

type ioPrinter struct{}

func (ioPrinter) Print(s string)  {}
func (ioPrinter) Available() bool { return true }

type fileLogger struct{ lines []string }

func (l *fileLogger) Debug(s string) { l.lines = append(l.lines, "debug: "+s) }
func (l *fileLogger) Info(s string)  { l.lines = append(l.lines, "info: "+s) }

// myProgram greets and logs.
//
//effers:program MyCoolProgram => Printer(Print(shared) as p, Available as printerAvailable),
//	Logger(Debug(mutable), Info(owned))
func myProgram(val uint8) uint8 {
	if printerAvailable() {
		p("hey hi hello")
	}
	Debug("this is a debug-level log")
	Info("this is an info-level log")
	return val + 3
}
`

// generateSource parses src and generates every annotated function.
func generateSource(t *testing.T, src string, opts Options) (*token.FileSet, *ast.File, map[*ast.FuncDecl]*Program) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", src, parser.ParseComments)
	require.NoError(t, err)

	progs := make(map[*ast.FuncDecl]*Program)
	for _, d := range f.Decls {
		fn, ok := d.(*ast.FuncDecl)
		if !ok {
			continue
		}
		dir, ok := FindDirective(fn.Doc)
		if !ok {
			continue
		}
		decl, err := dir.Parse(fset)
		require.NoError(t, err)
		prog, err := Generate(fn, decl, opts)
		require.NoError(t, err)
		progs[fn] = prog
	}
	return fset, f, progs
}

// renderSource prints f with every program expanded, followed by extra.
func renderSource(t *testing.T, fset *token.FileSet, f *ast.File, progs map[*ast.FuncDecl]*Program, extra string) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("package " + f.Name.Name + "\n\n")
	for _, d := range f.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok && progs[fn] != nil {
			for _, gd := range progs[fn].Decls {
				for _, line := range gd.Doc {
					buf.WriteString("// " + line + "\n")
				}
				pfset := token.NewFileSet()
				if gd.Original {
					pfset = fset
				}
				require.NoError(t, printer.Fprint(&buf, pfset, gd.Node))
				buf.WriteString("\n\n")
			}
			continue
		}
		require.NoError(t, printer.Fprint(&buf, fset, d))
		buf.WriteString("\n\n")
	}
	buf.WriteString(extra)
	return buf.String()
}

func typeCheck(src string) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "out.go", src, parser.ParseComments)
	if err != nil {
		return err
	}
	_, err = (&types.Config{}).Check("p", fset, []*ast.File{f}, nil)
	return err
}

func TestGenerate_TypeChecks(t *testing.T) {
	t.Parallel()
	uses := map[string]string{
		"constructors": `var _ uint8 = NewMyCoolProgramWithPrinterLogger(NewMyCoolProgramWithPrinter(MyCoolProgram{}, ioPrinter{}), &fileLogger{}).Run(3)`,
		"add":          `var _ uint8 = MyCoolProgram{}.Add(ioPrinter{}).Add(&fileLogger{}).Run(3)`,
		"mixed":        `var _ uint8 = NewMyCoolProgramWithPrinter(MyCoolProgram{}, ioPrinter{}).Add(&fileLogger{}).Run(3)`,
	}
	for name, use := range uses {
		t.Run(name, func(t *testing.T) {
			fset, f, progs := generateSource(t, programSrc, Options{})
			out := renderSource(t, fset, f, progs, use+"\n")
			assert.NoError(t, typeCheck(out), out)
		})
	}
}

func TestGenerate_RejectsMisuse(t *testing.T) {
	t.Parallel()
	uses := map[string]string{
		"out of order add":         `var _ = MyCoolProgram{}.Add(&fileLogger{})`,
		"out of order constructor": `var _ = NewMyCoolProgramWithPrinterLogger(MyCoolProgram{}, &fileLogger{})`,
		"run before saturation":    `var _ uint8 = MyCoolProgram{}.Add(ioPrinter{}).Run(3)`,
		"run on root":              `var _ uint8 = MyCoolProgram{}.Run(3)`,
		"wrong handler":            `var _ = MyCoolProgram{}.Add(ioPrinter{}).Add(ioPrinter{})`,
	}
	for name, use := range uses {
		t.Run(name, func(t *testing.T) {
			fset, f, progs := generateSource(t, programSrc, Options{})
			out := renderSource(t, fset, f, progs, use+"\n")
			assert.Error(t, typeCheck(out), out)
		})
	}
}

func TestGenerate_Declarations(t *testing.T) {
	t.Parallel()
	_, _, progs := generateSource(t, programSrc, Options{})
	require.Len(t, progs, 1)
	var prog *Program
	for _, p := range progs {
		prog = p
	}

	assert.Equal(t, "MyCoolProgram", prog.Name)
	assert.Equal(t, "myProgram", prog.FuncName)
	assert.Equal(t, "prog", prog.Receiver)
	assert.Equal(t, 4, prog.Rewritten)
	assert.False(t, prog.Passthrough)
	assert.Equal(t, "MyCoolProgramWithPrinterLogger", prog.Last().Name)

	var kinds []string
	for _, d := range prog.Decls {
		switch n := d.Node.(type) {
		case *ast.GenDecl:
			kinds = append(kinds, "type "+n.Specs[0].(*ast.TypeSpec).Name.Name)
		case *ast.FuncDecl:
			if n.Recv != nil {
				kinds = append(kinds, "method "+types.ExprString(n.Recv.List[0].Type)+"."+n.Name.Name)
			} else {
				kinds = append(kinds, "func "+n.Name.Name)
			}
		}
	}
	assert.Equal(t, []string{
		"type MyCoolProgram",
		"type MyCoolProgramWithPrinter",
		"type MyCoolProgramWithPrinterLogger",
		"method MyCoolProgram.Add",
		"method MyCoolProgramWithPrinter[A].Add",
		"func NewMyCoolProgramWithPrinter",
		"func NewMyCoolProgramWithPrinterLogger",
		"method MyCoolProgramWithPrinterLogger[A, B].Run",
	}, kinds)

	run := prog.Decls[len(prog.Decls)-1]
	assert.True(t, run.Original)
	assert.Equal(t, []string{
		"Run executes myProgram with the attached handlers.",
		"",
		"myProgram greets and logs.",
	}, run.Doc)

	printerAdd := prog.Decls[3]
	assert.Equal(t, []string{"Add attaches the Printer handler."}, printerAdd.Doc)
}

func TestGenerate_RootPrintsEmptyStruct(t *testing.T) {
	t.Parallel()
	_, _, progs := generateSource(t, programSrc, Options{})
	require.Len(t, progs, 1)
	for _, prog := range progs {
		var buf bytes.Buffer
		require.NoError(t, printer.Fprint(&buf, token.NewFileSet(), prog.Decls[0].Node))
		assert.Equal(t, "type MyCoolProgram struct{}", buf.String())
	}
}

func TestGenerate_DefaultName(t *testing.T) {
	t.Parallel()
	src := `package p

type Counter interface{ Count() }

//effers:program Counter(Count(mutable))
func count_things() { Count() }
`
	_, _, progs := generateSource(t, src, Options{})
	for _, prog := range progs {
		assert.Equal(t, "CountThings", prog.Name)
		assert.Equal(t, "CountThingsWithCounter", prog.Last().Name)
	}
}

func TestGenerate_Passthrough(t *testing.T) {
	t.Parallel()
	src := `package p

// plus adds three.
//
//effers:program
func plus(val uint8) uint8 {
	return val + 3
}
`
	fset, f, progs := generateSource(t, src, Options{})
	fn := f.Decls[0].(*ast.FuncDecl)
	prog := progs[fn]
	require.NotNil(t, prog)

	assert.True(t, prog.Passthrough)
	assert.Empty(t, prog.Layers)
	require.Len(t, prog.Decls, 1)
	assert.Same(t, fn, prog.Decls[0].Node)
	assert.Nil(t, fn.Doc)
	assert.Equal(t, []string{"plus adds three."}, prog.Decls[0].Doc)

	out := renderSource(t, fset, f, progs, "var _ uint8 = plus(5)\n")
	assert.NoError(t, typeCheck(out), out)
}

const shadowSrc = `package p

type Printer interface{ Print(s string) }
type Logger interface{ Print(s string) }

//effers:program Printer(Print(shared)), Logger(Print(shared))
func run() { Print("x") }
`

func TestGenerate_Shadowing(t *testing.T) {
	t.Parallel()

	_, _, progs := generateSource(t, shadowSrc, Options{})
	for _, prog := range progs {
		target, ok := prog.Table.Lookup("Print")
		require.True(t, ok)
		assert.Equal(t, []string{"Printer"}, target.Interface)
		assert.Len(t, prog.Table.Shadows(), 1)
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", shadowSrc, parser.ParseComments)
	require.NoError(t, err)
	fn := f.Decls[2].(*ast.FuncDecl)
	dir, ok := FindDirective(fn.Doc)
	require.True(t, ok)
	decl, err := dir.Parse(fset)
	require.NoError(t, err)

	_, err = Generate(fn, decl, Options{Strict: true})
	require.ErrorIs(t, err, ErrAmbiguousOperation)
	assert.Contains(t, err.Error(), "Printer")
	assert.Contains(t, err.Error(), "Logger")
}

func TestGenerate_Unsupported(t *testing.T) {
	t.Parallel()
	decl := Declaration{Effects: []Effect{mustEffect(t, []string{"Printer"}, Operation{Name: "Print", Mode: ModeShared})}}

	srcs := map[string]string{
		"method":  "package p\ntype T struct{}\nfunc (T) run() {}\n",
		"generic": "package p\nfunc run[T any]() {}\n",
		"no body": "package p\nfunc run()\n",
	}
	for name, src := range srcs {
		t.Run(name, func(t *testing.T) {
			f, err := parser.ParseFile(token.NewFileSet(), "p.go", src, 0)
			require.NoError(t, err)
			fn := f.Decls[len(f.Decls)-1].(*ast.FuncDecl)
			_, err = Generate(fn, decl, Options{})
			assert.ErrorIs(t, err, ErrUnsupportedFunc)
		})
	}
}

func TestGenerate_Collisions(t *testing.T) {
	t.Parallel()
	src := `package p

type Printer interface{ Print(s string) }

type stdout struct{}

func (stdout) Print(s string) {}

//effers:program Prog => Printer(Print(shared))
func run() {
	prog := "x"
	var A = prog
	Print(A)
}
`
	fset, f, progs := generateSource(t, src, Options{})
	fn := f.Decls[3].(*ast.FuncDecl)
	prog := progs[fn]
	require.NotNil(t, prog)
	assert.Equal(t, "prog1", prog.Receiver)
	assert.Equal(t, []string{"B"}, prog.Last().Labels)

	out := renderSource(t, fset, f, progs, "func use() { Prog{}.Add(stdout{}).Run() }\n")
	assert.NoError(t, typeCheck(out), out)
}

func TestGenerate_ReceiverOption(t *testing.T) {
	t.Parallel()
	src := `package p

type Printer interface{ Print(s string) }

//effers:program Printer(Print(shared))
func run() { Print("x") }
`
	_, _, progs := generateSource(t, src, Options{Receiver: "self"})
	for _, prog := range progs {
		assert.Equal(t, "self", prog.Receiver)
	}
}

func TestGenerate_UnresolvableName(t *testing.T) {
	t.Parallel()
	f, err := parser.ParseFile(token.NewFileSet(), "p.go", "package p\nfunc _() {}\n", 0)
	require.NoError(t, err)
	fn := f.Decls[0].(*ast.FuncDecl)
	_, err = Generate(fn, Declaration{}, Options{})
	assert.ErrorIs(t, err, ErrUnresolvableDefaultName)
}

func TestDefaultProgramName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"myProgram", "MyProgram"},
		{"my_program", "MyProgram"},
		{"Already", "Already"},
		{"éclair", "Éclair"},
	}
	for _, tt := range tests {
		got, err := DefaultProgramName(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := DefaultProgramName("_")
	assert.ErrorIs(t, err, ErrUnresolvableDefaultName)
}

func TestDefaultNamer(t *testing.T) {
	t.Parallel()
	name, err := DefaultNamer.ProgramName(context.Background(), "count_things")
	require.NoError(t, err)
	assert.Equal(t, "CountThings", name)

	fp, ok := DefaultNamer.(Fingerprinter)
	require.True(t, ok)
	assert.Equal(t, "default", fp.Fingerprint())
}
