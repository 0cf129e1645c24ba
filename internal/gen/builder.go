package gen

import (
	"go/ast"
	"strconv"
)

// attachNames picks the receiver and handler parameter names of the
// attachment functions so that neither shadows a package used in an
// interface path.
func attachNames(layers []Layer) (recv, handler string) {
	taken := make(map[string]bool)
	for _, l := range layers {
		for _, b := range l.Bounds {
			taken[b[0]] = true
		}
	}
	return freeName("p", taken), freeName("h", taken)
}

// freeName returns base, or base followed by the smallest number that is
// not taken.
func freeName(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for i := 1; ; i++ {
		name := base + strconv.Itoa(i)
		if !taken[name] {
			return name
		}
	}
}

// Adder synthesizes the Add method attaching layer's newest handler:
//
//	func (p ProgWithA[A]) Add(h b) ProgWithAB[A, b] {
//		return ProgWithAB[A, b]{Prev: p, Handler: h}
//	}
//
// Go methods cannot introduce type parameters, so the new slot is
// instantiated with its interface; attaching out of order still fails to
// compile because h is typed by the newest interface.
func Adder(layer Layer, recv, handler string) *ast.FuncDecl {
	next := func() ast.Expr {
		args := append(idents(layer.Labels[:layer.Index]), pathExpr(layer.Bound(), 0))
		return instantiate(layer.Name, args)
	}
	return &ast.FuncDecl{
		Recv: fields(field(recv, layer.Prev.Expr())),
		Name: ast.NewIdent("Add"),
		Type: &ast.FuncType{
			Params:  fields(field(handler, pathExpr(layer.Bound(), 0))),
			Results: fields(field("", next())),
		},
		Body: returnStmt(compositeLit(next(), recv, handler)),
	}
}

// Constructor synthesizes the generic counterpart of Adder, which keeps the
// handler's concrete type in the new slot:
//
//	func NewProgWithAB[A a, B b](p ProgWithA[A], h B) ProgWithAB[A, B] {
//		return ProgWithAB[A, B]{Prev: p, Handler: h}
//	}
func Constructor(layer Layer, recv, handler string) *ast.FuncDecl {
	return &ast.FuncDecl{
		Name: ast.NewIdent(ConstructorName(layer)),
		Type: &ast.FuncType{
			TypeParams: layer.TypeParams(),
			Params: fields(
				field(recv, layer.Prev.Expr()),
				field(handler, ast.NewIdent(layer.Label)),
			),
			Results: fields(field("", layer.Self().Expr())),
		},
		Body: returnStmt(compositeLit(layer.Self().Expr(), recv, handler)),
	}
}

// ConstructorName is the name of the generic constructor of layer.
func ConstructorName(layer Layer) string {
	return "New" + layer.Name
}

// Builders synthesizes one Add method per layer, in declaration order,
// followed by one constructor per layer.
func Builders(layers []Layer) (adders, constructors []*ast.FuncDecl) {
	recv, handler := attachNames(layers)
	for _, l := range layers {
		adders = append(adders, Adder(l, recv, handler))
	}
	for _, l := range layers {
		constructors = append(constructors, Constructor(l, recv, handler))
	}
	return adders, constructors
}
