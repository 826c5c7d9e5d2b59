// Package memory lays out frames and variable accesses.
//
// Frame layout (callee's view, addresses grow upwards):
//
//	+---------------------------+
//	| parameters                |  FP + 8, FP + 16, ...
//	| static link               |  FP + 0
//	+---------------------------+  <- FP (caller's SP)
//	| local variables           |  FP - 8, FP - 16, ...
//	| saved FP, return address  |  16 bytes
//	| spill slots               |  appended by the register allocator
//	| outgoing arguments        |  SP + 0 ...
//	+---------------------------+  <- SP
package memory

import (
	"github.com/raymyers/prevc/pkg/ast"
	"github.com/raymyers/prevc/pkg/attr"
	"github.com/raymyers/prevc/pkg/mem"
	"github.com/raymyers/prevc/pkg/report"
)

// Evaluator computes the memory layout of a resolved program.
type Evaluator struct {
	tables *attr.Tables
}

// funContext accumulates sizes while a function is being laid out.
type funContext struct {
	depth    int64
	locsSize int64
	parsSize int64
	argsSize int64
}

// NewEvaluator creates an evaluator that fills the layout tables of t.
func NewEvaluator(t *attr.Tables) *Evaluator {
	return &Evaluator{tables: t}
}

// Layout computes frames, accesses, component offsets and string data.
func (ev *Evaluator) Layout(prog *ast.Program) (err error) {
	defer report.Recover(&err)

	for rec, comps := range ev.tables.Records {
		var offset int64
		for i, comp := range comps {
			size := rec.Comps[i].Type.Size()
			ev.tables.Accesses[comp] = mem.RelAccess{Size: size, Offset: offset}
			offset += size
		}
	}

	ev.decls(prog.Decls, nil)
	return nil
}

func (ev *Evaluator) decls(decls []ast.Decl, ctx *funContext) {
	for _, d := range decls {
		switch d := d.(type) {
		case *ast.FunDecl:
			ev.fun(d, ctx)
		case *ast.VarDecl:
			ev.variable(d, ctx)
		case *ast.TypeDecl:
		default:
			report.Internal("unexpected declaration %T", d)
		}
	}
}

func (ev *Evaluator) size(d ast.Decl) int64 {
	t := ev.tables.DeclType[d]
	if t == nil {
		report.Internal("untyped declaration %s", d.DeclName())
	}
	return t.Size()
}

func (ev *Evaluator) fun(fun *ast.FunDecl, parent *funContext) {
	ctx := &funContext{depth: 1}
	label := mem.NamedLabel(fun.Name)
	if parent != nil {
		ctx.depth = parent.depth + 1
		label = mem.NewLabel()
	}

	for _, par := range fun.Pars {
		size := ev.size(par)
		ctx.parsSize += size
		ev.tables.Accesses[par] = mem.RelAccess{Size: size, Offset: ctx.parsSize, Depth: ctx.depth}
	}

	if fun.Expr != nil {
		ev.expr(fun.Expr, ctx)
	}

	ev.tables.Frames[fun] = mem.NewFrame(label, ctx.depth-1, ctx.locsSize, ctx.argsSize)
}

func (ev *Evaluator) variable(v *ast.VarDecl, ctx *funContext) {
	size := ev.size(v)
	if ctx == nil {
		ev.tables.Accesses[v] = mem.AbsAccess{Size: size, Label: mem.NamedLabel(v.Name)}
		return
	}

	ctx.locsSize += size
	ev.tables.Accesses[v] = mem.RelAccess{Size: size, Offset: -ctx.locsSize, Depth: ctx.depth}
}

func (ctx *funContext) needArgs(size int64) {
	if size > ctx.argsSize {
		ctx.argsSize = size
	}
}

func (ev *Evaluator) expr(e ast.Expr, ctx *funContext) {
	switch e := e.(type) {
	case *ast.Atom:
		if e.Kind == ast.AtomStr {
			init := e.Value
			ev.tables.Strings[e] = &mem.AbsAccess{
				Size:  int64(len(e.Value)+1) * mem.WordSize,
				Label: mem.NewLabel(),
				Init:  &init,
			}
		}

	case *ast.Pfx:
		ev.expr(e.Expr, ctx)
		if e.Op == ast.PfxNew || e.Op == ast.PfxDel {
			ctx.needArgs(2 * mem.WordSize)
		}

	case *ast.Sfx:
		ev.expr(e.Expr, ctx)

	case *ast.Bin:
		ev.expr(e.Fst, ctx)
		ev.expr(e.Snd, ctx)

	case *ast.Name:
		if _, ok := ev.tables.DeclaredAt[e].(*ast.FunDecl); ok {
			ctx.needArgs(mem.WordSize)
		}

	case *ast.Arr:
		ev.expr(e.Arr, ctx)
		ev.expr(e.Idx, ctx)

	case *ast.Rec:
		ev.expr(e.Rec, ctx)

	case *ast.Call:
		size := int64(mem.WordSize)
		for _, arg := range e.Args {
			ev.expr(arg, ctx)
			t := ev.tables.OfType[arg]
			if t == nil {
				report.Internal("untyped argument of %s", e.Ident)
			}
			size += t.Size()
		}
		ctx.needArgs(size)

	case *ast.StmtExpr:
		for _, s := range e.Stmts {
			ev.stmt(s, ctx)
		}

	case *ast.Cast:
		ev.expr(e.Expr, ctx)

	case *ast.Where:
		ev.decls(e.Decls, ctx)
		ev.expr(e.Expr, ctx)

	default:
		report.Internal("unexpected expression %T", e)
	}
}

func (ev *Evaluator) stmt(s ast.Stmt, ctx *funContext) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		ev.expr(s.Expr, ctx)
	case *ast.AssignStmt:
		ev.expr(s.Dst, ctx)
		ev.expr(s.Src, ctx)
	case *ast.IfStmt:
		ev.expr(s.Cond, ctx)
		ev.stmt(s.Then, ctx)
		if s.Else != nil {
			ev.stmt(s.Else, ctx)
		}
	case *ast.WhileStmt:
		ev.expr(s.Cond, ctx)
		ev.stmt(s.Body, ctx)
	default:
		report.Internal("unexpected statement %T", s)
	}
}
