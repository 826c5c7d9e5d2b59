// Package attr holds the compilation context: every attribute computed for a
// syntax node by one phase and read by a later one lives in a side table here
// instead of on the node. A Tables value lives for exactly one compilation.
package attr

import (
	"github.com/raymyers/prevc/pkg/ast"
	"github.com/raymyers/prevc/pkg/imc"
	"github.com/raymyers/prevc/pkg/mem"
	"github.com/raymyers/prevc/pkg/semtype"
)

// Tables is the set of side tables of one compilation run.
type Tables struct {
	// Name resolution: names, calls and component names to their declarations.
	DeclaredAt map[ast.Node]ast.Decl

	// Type resolution.
	OfType   map[ast.Expr]semtype.Type
	IsType   map[*ast.TypeExpr]semtype.Type
	DeclType map[ast.Decl]semtype.Type
	// Record types with the component declarations they own, in order.
	Records map[*semtype.Rec][]*ast.CompDecl

	// Memory layout.
	Frames   map[*ast.FunDecl]*mem.Frame
	Accesses map[ast.Decl]mem.Access
	Strings  map[*ast.Atom]*mem.AbsAccess

	// Intermediate code.
	ExprIR map[ast.Expr]imc.Expr
	StmtIR map[ast.Stmt]imc.Stmt
}

// New returns empty tables.
func New() *Tables {
	return &Tables{
		DeclaredAt: make(map[ast.Node]ast.Decl),
		OfType:     make(map[ast.Expr]semtype.Type),
		IsType:     make(map[*ast.TypeExpr]semtype.Type),
		DeclType:   make(map[ast.Decl]semtype.Type),
		Records:    make(map[*semtype.Rec][]*ast.CompDecl),
		Frames:     make(map[*ast.FunDecl]*mem.Frame),
		Accesses:   make(map[ast.Decl]mem.Access),
		Strings:    make(map[*ast.Atom]*mem.AbsAccess),
		ExprIR:     make(map[ast.Expr]imc.Expr),
		StmtIR:     make(map[ast.Stmt]imc.Stmt),
	}
}
