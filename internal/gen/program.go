package gen

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"
)

// RunName is the name of the terminal method holding the rewritten body.
const RunName = "Run"

// Version identifies the shape of generated code. It changes whenever the
// same input and options would generate different output.
const Version = "2"

// Options tunes Generate.
type Options struct {
	// Strict turns shadowed operation names into ErrAmbiguousOperation.
	Strict bool
	// Receiver is the preferred name of Run's composite receiver.
	Receiver string
}

// Decl is one generated top-level declaration.
type Decl struct {
	// Doc holds the doc comment lines, without comment markers.
	Doc  []string
	Node ast.Decl
	// Original reports that Node keeps positions of the input file, so it
	// must be printed with that file's FileSet and comments.
	Original bool
}

// Program is the synthesized form of one annotated function.
type Program struct {
	Name     string
	FuncName string
	Effects  []Effect
	Layers   []Layer
	Table    *Table
	// Receiver names Run's composite receiver.
	Receiver string
	// Rewritten counts the call sites bound to handlers.
	Rewritten int
	// Passthrough reports a program without effects, emitted unchanged.
	Passthrough bool
	Decls       []Decl
}

// Last returns the saturated layer. It panics for passthrough programs.
func (p *Program) Last() Layer {
	return p.Layers[len(p.Layers)-1]
}

// Generate synthesizes the program for fn under decl. It takes ownership
// of fn: the body is rewritten in place and reused by the Run method.
//
// The declarations are, in order: the program root, every layer type, every
// Add method, every layer constructor and the Run method. A declaration
// without effects yields fn itself.
func Generate(fn *ast.FuncDecl, decl Declaration, opts Options) (*Program, error) {
	name := decl.Program
	if name == "" {
		var err error
		if name, err = DefaultProgramName(fn.Name.Name); err != nil {
			return nil, err
		}
	}
	if !token.IsIdentifier(name) {
		return nil, fmt.Errorf("%w: %q is not an identifier", ErrUnresolvableDefaultName, name)
	}

	doc := DocLines(fn.Doc)
	prog := &Program{
		Name:     name,
		FuncName: fn.Name.Name,
		Effects:  decl.Effects,
	}
	if len(decl.Effects) == 0 {
		fn.Doc = nil
		prog.Passthrough = true
		prog.Table = NewTable(nil, nil)
		prog.Decls = []Decl{{Doc: doc, Node: fn, Original: true}}
		return prog, nil
	}

	if fn.Recv != nil {
		return nil, fmt.Errorf("%w: %s is a method", ErrUnsupportedFunc, fn.Name.Name)
	}
	if fn.Type.TypeParams != nil && len(fn.Type.TypeParams.List) > 0 {
		return nil, fmt.Errorf("%w: %s declares type parameters", ErrUnsupportedFunc, fn.Name.Name)
	}
	if fn.Body == nil {
		return nil, fmt.Errorf("%w: %s has no body", ErrUnsupportedFunc, fn.Name.Name)
	}

	used := identsIn(fn)
	reserved := map[string]bool{name: true}
	for k := range used {
		reserved[k] = true
	}
	for _, eff := range decl.Effects {
		reserved[eff.Path[0]] = true
		reserved[eff.Path[len(eff.Path)-1]] = true
	}

	prog.Layers = BuildChain(name, decl.Effects, reserved)
	prog.Table = NewTable(decl.Effects, prog.Layers)
	if opts.Strict {
		if shadows := prog.Table.Shadows(); len(shadows) > 0 {
			s := shadows[0]
			return nil, fmt.Errorf("%w: %q is declared by %s and %s",
				ErrAmbiguousOperation, s.Name,
				decl.Effects[s.Winner].Interface(), decl.Effects[s.Loser].Interface())
		}
	}

	base := opts.Receiver
	if base == "" {
		base = "prog"
	}
	taken := make(map[string]bool, len(used))
	for k := range used {
		taken[k] = true
	}
	for _, eff := range decl.Effects {
		taken[eff.Path[0]] = true
	}
	prog.Receiver = freeName(base, taken)
	prog.Rewritten = prog.Table.Rewrite(fn.Body, prog.Receiver)

	prog.Decls = prog.assemble(fn, doc)
	return prog, nil
}

func (p *Program) assemble(fn *ast.FuncDecl, doc []string) []Decl {
	var decls []Decl

	order := make([]string, len(p.Effects))
	for i, eff := range p.Effects {
		order[i] = eff.Interface()
	}
	decls = append(decls, Decl{
		Doc: []string{
			fmt.Sprintf("%s is the root of the %s program, with no handlers attached.", p.Name, p.FuncName),
			fmt.Sprintf("Attach handlers with Add in this order: %s. Then call %s.", strings.Join(order, ", "), RunName),
		},
		Node: &ast.GenDecl{Tok: token.TYPE, Specs: []ast.Spec{&ast.TypeSpec{
			Name: ast.NewIdent(p.Name),
			// Valid braces on one line print as struct{}.
			Type: &ast.StructType{Fields: &ast.FieldList{Opening: 1, Closing: 1}},
		}}},
	})

	for _, l := range p.Layers {
		decls = append(decls, Decl{
			Doc:  []string{fmt.Sprintf("%s is %s with a %s handler attached.", l.Name, l.Prev.Name, p.Effects[l.Index].Interface())},
			Node: &ast.GenDecl{Tok: token.TYPE, Specs: []ast.Spec{l.Spec()}},
		})
	}

	adders, constructors := Builders(p.Layers)
	for i, fd := range adders {
		decls = append(decls, Decl{
			Doc:  []string{fmt.Sprintf("Add attaches the %s handler.", p.Effects[i].Interface())},
			Node: fd,
		})
	}
	for i, fd := range constructors {
		decls = append(decls, Decl{
			Doc:  []string{fmt.Sprintf("%s attaches a %s handler to p, keeping its concrete type.", fd.Name.Name, p.Effects[i].Interface())},
			Node: fd,
		})
	}

	run := &ast.FuncDecl{
		Recv: &ast.FieldList{
			Opening: fn.Type.Func,
			List: []*ast.Field{{
				Names: []*ast.Ident{{NamePos: fn.Type.Func, Name: p.Receiver}},
				Type:  p.Last().Self().Expr(),
			}},
			Closing: fn.Type.Func,
		},
		Name: &ast.Ident{NamePos: fn.Name.NamePos, Name: RunName},
		Type: fn.Type,
		Body: fn.Body,
	}
	runDoc := []string{fmt.Sprintf("%s executes %s with the attached handlers.", RunName, p.FuncName)}
	if len(doc) > 0 {
		runDoc = append(runDoc, "")
		runDoc = append(runDoc, doc...)
	}
	return append(decls, Decl{Doc: runDoc, Node: run, Original: true})
}

// DocLines returns the text lines of doc without the program directive and
// its continuation lines.
func DocLines(doc *ast.CommentGroup) []string {
	if doc == nil {
		return nil
	}
	skip := make(map[*ast.Comment]bool)
	if d, ok := FindDirective(doc); ok {
		for _, c := range d.Comments {
			skip[c] = true
		}
	}
	var kept []*ast.Comment
	for _, c := range doc.List {
		if !skip[c] {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	text := strings.TrimRight((&ast.CommentGroup{List: kept}).Text(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func identsIn(n ast.Node) map[string]bool {
	names := make(map[string]bool)
	ast.Inspect(n, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok {
			names[id.Name] = true
		}
		return true
	})
	return names
}
