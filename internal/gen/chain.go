package gen

import (
	"go/ast"
	"strings"
)

// Field names of every generated composite.
const (
	prevField    = "Prev"
	handlerField = "Handler"
)

// TypeRef is a possibly instantiated generated type, e.g. ProgWithPrinter[A].
type TypeRef struct {
	Name string
	Args []string
}

func (t TypeRef) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	return t.Name + "[" + strings.Join(t.Args, ", ") + "]"
}

// Expr returns the type expression for t.
func (t TypeRef) Expr() ast.Expr {
	return instantiate(t.Name, idents(t.Args))
}

// Layer describes the composite after Index+1 effects have been attached.
type Layer struct {
	Index int
	Name  string
	// Label names the newest slot.
	Label string
	// Labels names every slot 0..Index, oldest first.
	Labels []string
	// Bounds holds the interface path constraining each slot.
	Bounds [][]string
	// Prev is the type of the Prev field: the program root for layer 0,
	// otherwise the previous layer instantiated with all but the last label.
	Prev TypeRef
}

// Self returns the layer instantiated with its own labels.
func (l Layer) Self() TypeRef {
	return TypeRef{Name: l.Name, Args: l.Labels}
}

// Bound returns the interface path of the newest slot.
func (l Layer) Bound() []string {
	return l.Bounds[len(l.Bounds)-1]
}

// TypeParams returns the layer's full type parameter list, each slot bound
// by its interface.
func (l Layer) TypeParams() *ast.FieldList {
	list := make([]*ast.Field, len(l.Labels))
	for i, label := range l.Labels {
		list[i] = field(label, pathExpr(l.Bounds[i], 0))
	}
	return fields(list...)
}

// Spec returns the layer's type declaration:
//
//	type ProgWithAB[A a, B b] struct {
//		Prev    ProgWithA[A]
//		Handler B
//	}
func (l Layer) Spec() *ast.TypeSpec {
	return &ast.TypeSpec{
		Name:       ast.NewIdent(l.Name),
		TypeParams: l.TypeParams(),
		Type: &ast.StructType{Fields: fields(
			field(prevField, l.Prev.Expr()),
			field(handlerField, ast.NewIdent(l.Label)),
		)},
	}
}

// BuildChain synthesizes the ordered layers for program over effects.
// Labels in reserved are never used as slot names. Zero effects yield no
// layers.
func BuildChain(program string, effects []Effect, reserved map[string]bool) []Layer {
	var (
		labels Labels
		slots  []string
		bounds [][]string
		layers []Layer
	)
	prev := TypeRef{Name: program}
	name := program + "With"
	for i, eff := range effects {
		bounds = append(bounds, eff.Path)
		slots = append(slots, labels.NextExcept(reserved))
		name += eff.Name

		layer := Layer{
			Index:  i,
			Name:   name,
			Label:  slots[len(slots)-1],
			Labels: append([]string(nil), slots...),
			Bounds: append([][]string(nil), bounds...),
			Prev:   prev,
		}
		layers = append(layers, layer)
		prev = layer.Self()
	}
	return layers
}
