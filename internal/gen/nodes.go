package gen

import (
	"go/ast"
	"go/token"
)

// pathExpr builds the expression for a dotted reference such as
// inc.Incrementer.
func pathExpr(path []string, pos token.Pos) ast.Expr {
	var x ast.Expr = &ast.Ident{NamePos: pos, Name: path[0]}
	for _, seg := range path[1:] {
		x = &ast.SelectorExpr{X: x, Sel: &ast.Ident{NamePos: pos, Name: seg}}
	}
	return x
}

// instantiate builds name[args...], or the bare name without args.
func instantiate(name string, args []ast.Expr) ast.Expr {
	x := ast.NewIdent(name)
	switch len(args) {
	case 0:
		return x
	case 1:
		return &ast.IndexExpr{X: x, Index: args[0]}
	default:
		return &ast.IndexListExpr{X: x, Indices: args}
	}
}

func idents(names []string) []ast.Expr {
	out := make([]ast.Expr, len(names))
	for i, n := range names {
		out[i] = ast.NewIdent(n)
	}
	return out
}

func field(name string, typ ast.Expr) *ast.Field {
	f := &ast.Field{Type: typ}
	if name != "" {
		f.Names = []*ast.Ident{ast.NewIdent(name)}
	}
	return f
}

func fields(fs ...*ast.Field) *ast.FieldList {
	return &ast.FieldList{List: fs}
}

// compositeLit builds typ{Prev: prev, Handler: handler}.
func compositeLit(typ ast.Expr, prev, handler string) *ast.CompositeLit {
	return &ast.CompositeLit{
		Type: typ,
		Elts: []ast.Expr{
			&ast.KeyValueExpr{Key: ast.NewIdent(prevField), Value: ast.NewIdent(prev)},
			&ast.KeyValueExpr{Key: ast.NewIdent(handlerField), Value: ast.NewIdent(handler)},
		},
	}
}

func returnStmt(x ast.Expr) *ast.BlockStmt {
	return &ast.BlockStmt{List: []ast.Stmt{&ast.ReturnStmt{Results: []ast.Expr{x}}}}
}
