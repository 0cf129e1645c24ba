// Package emit renders generated programs back into Go source.
package emit

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"
	"path/filepath"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/jward/effers/internal/gen"
)

// BuildTag guards input files; generated files carry its negation.
const BuildTag = "effers"

// DefaultSuffix is appended to the input file's base name.
const DefaultSuffix = "_effers"

// OutputPath returns the generated file path for an input file.
func OutputPath(input, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + suffix + ext
}

// IsOutput reports whether path looks like a generated file.
func IsOutput(path, suffix string) bool {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return strings.HasSuffix(strings.TrimSuffix(path, filepath.Ext(path)), suffix)
}

var printCfg = printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}

// File renders the output file for file. Every function in programs (keyed
// by the original declaration) is replaced by its generated declarations;
// all other declarations are copied through, imports included: generated
// code only references packages the input already names. The result is
// gofmt-formatted with sorted imports.
func File(fset *token.FileSet, file *ast.File, filename string, programs map[*ast.FuncDecl]*gen.Program) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by effers from %s. DO NOT EDIT.\n\n", filepath.Base(filename))
	fmt.Fprintf(&buf, "//go:build !%s\n\n", BuildTag)
	fmt.Fprintf(&buf, "package %s\n\n", file.Name.Name)

	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			if prog, ok := programs[fn]; ok {
				if err := writeProgram(&buf, fset, file, prog); err != nil {
					return nil, fmt.Errorf("emit: %s: %w", prog.Name, err)
				}
				continue
			}
		}
		if err := writeOriginal(&buf, fset, file, decl); err != nil {
			return nil, fmt.Errorf("emit: %w", err)
		}
		buf.WriteString("\n\n")
	}

	out, err := imports.Process(filename, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("emit: format %s: %w", filename, err)
	}
	return out, nil
}

// Program renders the declarations of a single program, for previews and
// tests. Original nodes are printed with fset.
func Program(fset *token.FileSet, prog *gen.Program) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeProgram(&buf, fset, nil, prog); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeProgram(buf *bytes.Buffer, fset *token.FileSet, file *ast.File, prog *gen.Program) error {
	for _, d := range prog.Decls {
		writeDoc(buf, d.Doc)
		var err error
		if d.Original {
			err = writeOriginal(buf, fset, file, d.Node)
		} else {
			err = printCfg.Fprint(buf, token.NewFileSet(), d.Node)
		}
		if err != nil {
			return err
		}
		buf.WriteString("\n\n")
	}
	return nil
}

// writeOriginal prints a node that still carries positions from the input
// file, keeping the comments inside it.
func writeOriginal(buf *bytes.Buffer, fset *token.FileSet, file *ast.File, node ast.Node) error {
	if file == nil {
		return printCfg.Fprint(buf, fset, node)
	}
	var comments []*ast.CommentGroup
	for _, cg := range file.Comments {
		if cg.Pos() >= startOf(node) && cg.End() <= node.End() {
			comments = append(comments, cg)
		}
	}
	return printCfg.Fprint(buf, fset, &printer.CommentedNode{Node: node, Comments: comments})
}

// startOf includes a declaration's doc comment.
func startOf(node ast.Node) token.Pos {
	switch d := node.(type) {
	case *ast.FuncDecl:
		if d.Doc != nil {
			return d.Doc.Pos()
		}
	case *ast.GenDecl:
		if d.Doc != nil {
			return d.Doc.Pos()
		}
	}
	return node.Pos()
}

func writeDoc(buf *bytes.Buffer, lines []string) {
	for _, line := range lines {
		if line == "" {
			buf.WriteString("//\n")
			continue
		}
		buf.WriteString("// " + line + "\n")
	}
}
