package gen

import (
	"go/ast"
	"go/token"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

// AccessPath locates one attached handler inside the saturated composite:
// Prev steps into the Prev field, then one step into Handler.
type AccessPath struct {
	Prev int
	Mode Mode
}

// Steps returns the field names walked from the composite receiver.
func (a AccessPath) Steps() []string {
	steps := make([]string, 0, a.Prev+1)
	for range a.Prev {
		steps = append(steps, prevField)
	}
	return append(steps, handlerField)
}

func (a AccessPath) String() string {
	return strings.Join(a.Steps(), ".")
}

// Expr builds recv.Prev...Prev.Handler with every node at pos.
func (a AccessPath) Expr(recv string, pos token.Pos) ast.Expr {
	var x ast.Expr = &ast.Ident{NamePos: pos, Name: recv}
	for _, step := range a.Steps() {
		x = &ast.SelectorExpr{X: x, Sel: &ast.Ident{NamePos: pos, Name: step}}
	}
	return x
}

// Target is what a call name resolves to.
type Target struct {
	// Effect is the declaration index of the effect exposing the operation.
	Effect    int
	Interface []string
	Op        Operation
	// Label is the type parameter standing for the effect's handler type.
	Label string
	Path  AccessPath
}

// Callee returns the qualified method expression, e.g. Printer.Print.
func (t Target) Callee(pos token.Pos) ast.Expr {
	return &ast.SelectorExpr{
		X:   pathExpr(t.Interface, pos),
		Sel: &ast.Ident{NamePos: pos, Name: t.Op.Name},
	}
}

// Receiver returns the first argument of a rewritten call: the handler
// reached through the access path. Operations declared without a
// self-access mode take it too, since a method expression on an interface
// needs a receiver and the attached handler is always present.
func (t Target) Receiver(recv string, pos token.Pos) ast.Expr {
	return t.Path.Expr(recv, pos)
}

// Shadow records a call name exposed by two effects. The earlier
// declaration wins.
type Shadow struct {
	Name   string
	Winner int
	Loser  int
}

// Table maps call names to targets. It is built once per program.
type Table struct {
	targets map[string]Target
	order   []string
	shadows []Shadow
}

// NewTable builds the lookup table for effects attached through layers.
func NewTable(effects []Effect, layers []Layer) *Table {
	t := &Table{targets: make(map[string]Target)}
	if len(layers) == 0 {
		return t
	}
	labels := layers[len(layers)-1].Labels
	n := len(effects)
	for i, eff := range effects {
		for _, op := range eff.Ops {
			call := op.CallName()
			if prior, ok := t.targets[call]; ok {
				t.shadows = append(t.shadows, Shadow{Name: call, Winner: prior.Effect, Loser: i})
				continue
			}
			t.targets[call] = Target{
				Effect:    i,
				Interface: eff.Path,
				Op:        op,
				Label:     labels[i],
				Path:      AccessPath{Prev: n - i - 1, Mode: op.Mode},
			}
			t.order = append(t.order, call)
		}
	}
	return t
}

// Lookup resolves a call name.
func (t *Table) Lookup(call string) (Target, bool) {
	target, ok := t.targets[call]
	return target, ok
}

// Targets returns every resolvable target in declaration order.
func (t *Table) Targets() []Target {
	out := make([]Target, len(t.order))
	for i, call := range t.order {
		out[i] = t.targets[call]
	}
	return out
}

// Shadows returns the call names hidden by an earlier declaration.
func (t *Table) Shadows() []Shadow {
	return t.shadows
}

// Rewrite replaces every call whose callee is a bare identifier found in
// the table with a qualified call against the handler reached from recv.
// Other calls are left alone. It returns the number of rewritten calls.
func (t *Table) Rewrite(node ast.Node, recv string) int {
	n := 0
	astutil.Apply(node, nil, func(c *astutil.Cursor) bool {
		call, ok := c.Node().(*ast.CallExpr)
		if !ok {
			return true
		}
		id, ok := call.Fun.(*ast.Ident)
		if !ok {
			return true
		}
		target, ok := t.targets[id.Name]
		if !ok {
			return true
		}
		args := make([]ast.Expr, 0, len(call.Args)+1)
		args = append(args, target.Receiver(recv, id.NamePos))
		c.Replace(&ast.CallExpr{
			Fun:      target.Callee(id.NamePos),
			Lparen:   call.Lparen,
			Args:     append(args, call.Args...),
			Ellipsis: call.Ellipsis,
			Rparen:   call.Rparen,
		})
		n++
		return true
	})
	return n
}
