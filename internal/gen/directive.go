package gen

import (
	"errors"
	"fmt"
	"go/ast"
	"go/scanner"
	"go/token"
	"strings"
)

// DirectivePrefix starts every program directive.
const DirectivePrefix = "//effers:program"

// Directive is a program directive lifted out of a doc comment, with its
// continuation lines joined.
type Directive struct {
	Text string
	// Comments holds the directive line and its continuation lines.
	Comments []*ast.Comment
	segments []segment
}

// segment maps an offset of Text back to the comment it came from.
type segment struct {
	start int
	pos   token.Pos
}

// FindDirective returns the program directive of doc, if any. A directive
// whose text ends in "=>" or "," continues on the next comment line.
func FindDirective(doc *ast.CommentGroup) (Directive, bool) {
	if doc == nil {
		return Directive{}, false
	}
	for i, c := range doc.List {
		rest, ok := strings.CutPrefix(c.Text, DirectivePrefix)
		if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
			continue
		}
		d := Directive{
			Text:     rest,
			Comments: []*ast.Comment{c},
			segments: []segment{{start: 0, pos: c.Slash + token.Pos(len(DirectivePrefix))}},
		}
		for _, next := range doc.List[i+1:] {
			if !continues(d.Text) || !strings.HasPrefix(next.Text, "//") {
				break
			}
			d.Text += " "
			d.segments = append(d.segments, segment{start: len(d.Text), pos: next.Slash + 2})
			d.Text += next.Text[2:]
			d.Comments = append(d.Comments, next)
		}
		return d, true
	}
	return Directive{}, false
}

func continues(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasSuffix(text, "=>") || strings.HasSuffix(text, ",")
}

// Parse parses the directive, reporting positions within fset.
func (d Directive) Parse(fset *token.FileSet) (Declaration, error) {
	decl, err := ParseDirective(d.Text)
	if err != nil {
		var derr *DirectiveError
		if errors.As(err, &derr) {
			derr.Pos = d.position(fset, derr.Pos.Offset)
		}
		return Declaration{}, err
	}
	for i := range decl.Effects {
		decl.Effects[i].Pos = d.position(fset, decl.Effects[i].Pos.Offset)
	}
	return decl, nil
}

func (d Directive) position(fset *token.FileSet, offset int) token.Position {
	seg := d.segments[0]
	for _, s := range d.segments {
		if s.start <= offset {
			seg = s
		}
	}
	if fset == nil || !seg.pos.IsValid() {
		return token.Position{Offset: offset, Line: 1, Column: offset + 1}
	}
	return fset.Position(seg.pos + token.Pos(offset-seg.start))
}

type lexeme struct {
	off int
	tok token.Token
	lit string
}

func (l lexeme) String() string {
	if l.lit != "" {
		return l.lit
	}
	return l.tok.String()
}

type directiveParser struct {
	text string
	toks []lexeme
	i    int
}

// ParseDirective parses directive text of the form
//
//	[Name =>] Effect(op [(mode)] [as alias], ...), ...
//
// Errors are *DirectiveError values whose Pos carries the offset into text.
func ParseDirective(text string) (Declaration, error) {
	p, err := lex(text)
	if err != nil {
		return Declaration{}, err
	}

	var decl Declaration
	if p.at(token.IDENT) && p.peek(1).tok == token.ASSIGN && p.peek(2).tok == token.GTR {
		decl.Program = p.next().lit
		p.i += 2
	}
	for !p.at(token.EOF) {
		eff, err := p.effect()
		if err != nil {
			return Declaration{}, err
		}
		decl.Effects = append(decl.Effects, eff)
		if p.at(token.EOF) {
			break
		}
		if _, err := p.expect(token.COMMA, ""); err != nil {
			return Declaration{}, err
		}
	}
	return decl, nil
}

func lex(text string) (*directiveParser, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("directive", -1, len(text))
	var (
		s    scanner.Scanner
		serr *DirectiveError
	)
	s.Init(file, []byte(text), func(pos token.Position, msg string) {
		if serr == nil {
			serr = &DirectiveError{Pos: token.Position{Offset: pos.Offset, Line: 1, Column: pos.Offset + 1}, Msg: msg}
		}
	}, 0)

	p := &directiveParser{text: text}
	for {
		pos, tok, lit := s.Scan()
		off := file.Offset(pos)
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		if tok == token.EOF {
			p.toks = append(p.toks, lexeme{off: len(text), tok: token.EOF})
			break
		}
		p.toks = append(p.toks, lexeme{off: off, tok: tok, lit: lit})
	}
	if serr != nil {
		return nil, serr
	}
	return p, nil
}

func (p *directiveParser) peek(n int) lexeme {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *directiveParser) at(tok token.Token) bool {
	return p.peek(0).tok == tok
}

func (p *directiveParser) next() lexeme {
	l := p.peek(0)
	if l.tok != token.EOF {
		p.i++
	}
	return l
}

func (p *directiveParser) errorf(at lexeme, clauseStart int, format string, args ...any) error {
	clause := ""
	if clauseStart >= 0 {
		clause = p.clause(clauseStart)
	}
	return &DirectiveError{
		Pos:    token.Position{Offset: at.off, Line: 1, Column: at.off + 1},
		Clause: clause,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// clause returns the text of the effect clause starting at off, up to its
// closing parenthesis or the end of the directive.
func (p *directiveParser) clause(off int) string {
	depth := 0
	for i := off; i < len(p.text); i++ {
		switch p.text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return strings.TrimSpace(p.text[off : i+1])
			}
		}
	}
	return strings.TrimSpace(p.text[off:])
}

func (p *directiveParser) expect(tok token.Token, what string) (lexeme, error) {
	l := p.next()
	if l.tok != tok {
		if what == "" {
			what = tok.String()
		}
		return l, p.errorf(l, -1, "expected %s, found %s", what, l)
	}
	return l, nil
}

func (p *directiveParser) effect() (Effect, error) {
	start := p.peek(0)
	if start.tok != token.IDENT {
		return Effect{}, p.errorf(start, start.off, "expected interface reference, found %s", start)
	}
	path := []string{p.next().lit}
	for p.at(token.PERIOD) {
		p.next()
		seg := p.next()
		if seg.tok != token.IDENT {
			return Effect{}, p.errorf(seg, start.off, "expected identifier after '.', found %s", seg)
		}
		path = append(path, seg.lit)
	}
	if l := p.next(); l.tok != token.LPAREN {
		return Effect{}, p.errorf(l, start.off, "expected '(' after %s, found %s", strings.Join(path, "."), l)
	}

	var ops []Operation
	for !p.at(token.RPAREN) {
		op, err := p.operation(start.off)
		if err != nil {
			return Effect{}, err
		}
		ops = append(ops, op)
		if p.at(token.COMMA) {
			p.next()
			continue
		}
		if !p.at(token.RPAREN) {
			l := p.peek(0)
			return Effect{}, p.errorf(l, start.off, "expected ',' or ')' in operation list, found %s", l)
		}
	}
	p.next()

	eff, err := NewEffect(path, ops)
	if err != nil {
		return Effect{}, p.errorf(start, start.off, "%s", strings.TrimPrefix(err.Error(), ErrMalformedDeclaration.Error()+": "))
	}
	eff.Pos = token.Position{Offset: start.off, Line: 1, Column: start.off + 1}
	return eff, nil
}

func (p *directiveParser) operation(clauseStart int) (Operation, error) {
	name := p.next()
	if name.tok != token.IDENT {
		return Operation{}, p.errorf(name, clauseStart, "expected operation name, found %s", name)
	}
	op := Operation{Name: name.lit}

	if p.at(token.LPAREN) {
		open := p.next()
		var words []string
		for !p.at(token.RPAREN) {
			l := p.next()
			switch l.tok {
			case token.AND:
				words = append(words, "&")
			case token.IDENT:
				words = append(words, l.lit)
			default:
				return Operation{}, p.errorf(l, clauseStart, "unexpected %s in self-access mode of %s", l, op.Name)
			}
		}
		p.next()
		mode, err := ParseMode(strings.Join(words, " "))
		if err != nil {
			return Operation{}, p.errorf(open, clauseStart, "%v", err)
		}
		op.Mode = mode
	}

	if p.at(token.IDENT) && p.peek(0).lit == "as" {
		p.next()
		alias := p.next()
		if alias.tok != token.IDENT {
			return Operation{}, p.errorf(alias, clauseStart, "expected alias after 'as', found %s", alias)
		}
		op.Alias = alias.lit
	}
	return op, nil
}
