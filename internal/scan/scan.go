// Package scan finds program directives in Go source without type
// information, using the tree-sitter Go grammar. It is tolerant of files
// that do not compile, which annotated input files never do on their own.
package scan

import (
	"context"
	"fmt"
	"go/ast"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/jward/effers/internal/gen"
)

// Match is one annotated function.
type Match struct {
	// Func is the function name.
	Func string `json:"func"`
	// Method reports a method declaration, which cannot become a program.
	Method bool `json:"method,omitempty"`
	// Directive is the directive text after the prefix, continuation lines
	// joined.
	Directive string `json:"directive"`
	// Line is the 1-based line of the directive comment.
	Line int `json:"line"`
	// FuncLine is the 1-based line of the func keyword.
	FuncLine int `json:"func_line"`
}

const funcQuery = `[
  (function_declaration name: (identifier) @name) @func
  (method_declaration name: (field_identifier) @name) @func
]`

var (
	lang     *sitter.Language
	query    *sitter.Query
	queryErr error
	once     sync.Once
)

func compile() {
	once.Do(func() {
		lang = golang.GetLanguage()
		query, queryErr = sitter.NewQuery([]byte(funcQuery), lang)
	})
}

// Directives returns every function in src whose doc comment carries a
// program directive, in source order.
func Directives(ctx context.Context, src []byte) ([]Match, error) {
	compile()
	if queryErr != nil {
		return nil, fmt.Errorf("scan: compile query: %w", queryErr)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("scan: parse: %w", err)
	}
	defer tree.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, tree.RootNode())

	var matches []Match
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		var fn, name *sitter.Node
		for _, c := range m.Captures {
			switch query.CaptureNameForId(c.Index) {
			case "func":
				fn = c.Node
			case "name":
				name = c.Node
			}
		}
		if fn == nil || name == nil {
			continue
		}
		d, line, ok := directiveOf(fn, src)
		if !ok {
			continue
		}
		matches = append(matches, Match{
			Func:      name.Content(src),
			Method:    fn.Type() == "method_declaration",
			Directive: strings.TrimSpace(d.Text),
			Line:      line,
			FuncLine:  int(fn.StartPoint().Row) + 1,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].FuncLine < matches[j].FuncLine })
	return matches, nil
}

// HasDirectives reports whether src contains at least one annotated
// function.
func HasDirectives(ctx context.Context, src []byte) (bool, error) {
	if !strings.Contains(string(src), gen.DirectivePrefix) {
		return false, nil
	}
	matches, err := Directives(ctx, src)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// directiveOf collects the comment lines directly above fn, the way go/ast
// builds a doc comment group, and looks for a directive among them.
func directiveOf(fn *sitter.Node, src []byte) (gen.Directive, int, bool) {
	var (
		nodes []*sitter.Node
		next  = fn
	)
	for prev := fn.PrevNamedSibling(); prev != nil && prev.Type() == "comment"; prev = prev.PrevNamedSibling() {
		if prev.EndPoint().Row+1 < next.StartPoint().Row {
			break
		}
		nodes = append(nodes, prev)
		next = prev
	}
	if len(nodes) == 0 {
		return gen.Directive{}, 0, false
	}

	doc := &ast.CommentGroup{}
	rows := make(map[*ast.Comment]int, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		c := &ast.Comment{Text: nodes[i].Content(src)}
		doc.List = append(doc.List, c)
		rows[c] = int(nodes[i].StartPoint().Row) + 1
	}
	d, ok := gen.FindDirective(doc)
	if !ok {
		return gen.Directive{}, 0, false
	}
	return d, rows[d.Comments[0]], true
}
