// Package imcgen translates typed function bodies into intermediate code
// trees. Every generated expression and statement is recorded in the
// ExprIR/StmtIR side tables so later listings can map code back to syntax.
package imcgen

import (
	"strconv"

	"github.com/raymyers/prevc/pkg/ast"
	"github.com/raymyers/prevc/pkg/attr"
	"github.com/raymyers/prevc/pkg/imc"
	"github.com/raymyers/prevc/pkg/mem"
	"github.com/raymyers/prevc/pkg/report"
	"github.com/raymyers/prevc/pkg/semtype"
)

// Runtime support routines reached through new and del.
var (
	NewLabel = mem.NamedLabel("new")
	DelLabel = mem.NamedLabel("del")
)

// Offset of the sole argument of a runtime support call; offset 0 holds
// the result.
const runtimeArgOffset = 8

// Generator walks declarations keeping the stack of enclosing frames,
// innermost last.
type Generator struct {
	tables *attr.Tables
	frames []*mem.Frame
}

// NewGenerator creates a generator filling the IR tables of t.
func NewGenerator(t *attr.Tables) *Generator {
	return &Generator{tables: t}
}

// GenerateProgram generates code for every function body of the program,
// nested functions included. Bodies end up in tables.ExprIR.
func (g *Generator) GenerateProgram(prog *ast.Program) (err error) {
	defer report.Recover(&err)

	g.decls(prog.Decls)

	return nil
}

// GenerateFunction generates the body of one function given the frames of
// its enclosing functions, innermost last.
func (g *Generator) GenerateFunction(fun *ast.FunDecl, enclosing []*mem.Frame) (body imc.Expr, err error) {
	defer report.Recover(&err)

	g.frames = append(g.frames[:0], enclosing...)
	g.fun(fun)

	return g.tables.ExprIR[fun.Expr], nil
}

func (g *Generator) decls(decls []ast.Decl) {
	for _, d := range decls {
		if fun, ok := d.(*ast.FunDecl); ok {
			g.fun(fun)
		}
	}
}

func (g *Generator) fun(fun *ast.FunDecl) {
	frame := g.tables.Frames[fun]
	if frame == nil {
		report.Internal("no frame for function %s", fun.Name)
	}

	g.frames = append(g.frames, frame)
	if fun.Expr != nil {
		g.expr(fun.Expr)
	}
	g.frames = g.frames[:len(g.frames)-1]
}

func (g *Generator) top() *mem.Frame {
	if len(g.frames) == 0 {
		report.Internal("expression outside of a function")
	}
	return g.frames[len(g.frames)-1]
}

// frameAddr follows hops static links starting from the current frame pointer.
func (g *Generator) frameAddr(hops int64) imc.Expr {
	var fp imc.Expr = imc.TEMP{Temp: g.top().FP}
	for i := int64(0); i < hops; i++ {
		fp = imc.MEM{Addr: fp}
	}
	return fp
}

// staticLink computes the static link passed to a function with frame callee.
func (g *Generator) staticLink(callee *mem.Frame) imc.Expr {
	return g.frameAddr(g.top().Depth - callee.Depth)
}

func (g *Generator) expr(e ast.Expr) imc.Expr {
	code := g.genExpr(e)
	g.tables.ExprIR[e] = code
	return code
}

func (g *Generator) genExpr(e ast.Expr) imc.Expr {
	switch e := e.(type) {
	case *ast.Atom:
		return g.atom(e)

	case *ast.Pfx:
		sub := g.expr(e.Expr)
		switch e.Op {
		case ast.PfxAdd:
			return sub
		case ast.PfxSub:
			return imc.UNOP{Oper: imc.NEG, Sub: sub}
		case ast.PfxNot:
			return imc.UNOP{Oper: imc.NOT, Sub: sub}
		case ast.PfxPtr:
			return memOperand(sub).Addr
		case ast.PfxNew:
			return runtimeCall(NewLabel, sub)
		case ast.PfxDel:
			return runtimeCall(DelLabel, sub)
		}
		report.Internal("unknown prefix operator %d", e.Op)

	case *ast.Sfx:
		return imc.MEM{Addr: g.expr(e.Expr)}

	case *ast.Bin:
		fst := g.expr(e.Fst)
		snd := g.expr(e.Snd)
		return imc.BINOP{Oper: binOper(e.Op), Fst: fst, Snd: snd}

	case *ast.Name:
		return g.name(e)

	case *ast.Arr:
		base := memOperand(g.expr(e.Arr))
		idx := g.expr(e.Idx)
		elem := g.tables.OfType[e]
		if elem == nil {
			report.Internal("untyped array access at %d:%d", e.Line, e.Col)
		}
		return imc.MEM{Addr: imc.BINOP{
			Oper: imc.ADD,
			Fst:  base.Addr,
			Snd:  imc.BINOP{Oper: imc.MUL, Fst: idx, Snd: imc.CONST{Value: elem.Size()}},
		}}

	case *ast.Rec:
		rec := memOperand(g.expr(e.Rec))
		comp, ok := g.tables.DeclaredAt[e.Comp].(*ast.CompDecl)
		if !ok {
			report.Internal("unresolved component %s", e.Comp.Ident)
		}
		acc := g.relAccess(comp)
		return imc.MEM{Addr: imc.BINOP{Oper: imc.ADD, Fst: rec.Addr, Snd: imc.CONST{Value: acc.Offset}}}

	case *ast.Call:
		return g.call(e)

	case *ast.StmtExpr:
		return g.stmtExpr(e)

	case *ast.Cast:
		sub := g.expr(e.Expr)
		if semtype.IsChar(g.tables.IsType[e.Type]) {
			return imc.BINOP{Oper: imc.MOD, Fst: sub, Snd: imc.CONST{Value: 256}}
		}
		return sub

	case *ast.Where:
		g.decls(e.Decls)
		return g.expr(e.Expr)
	}

	report.Internal("unexpected expression %T", e)
	return nil
}

func (g *Generator) atom(a *ast.Atom) imc.Expr {
	switch a.Kind {
	case ast.AtomVoid, ast.AtomPtr:
		return imc.CONST{Value: 0}
	case ast.AtomBool:
		if a.Value == "true" {
			return imc.CONST{Value: 1}
		}
		return imc.CONST{Value: 0}
	case ast.AtomChar:
		if len(a.Value) < 3 {
			report.Internal("malformed char constant %q", a.Value)
		}
		return imc.CONST{Value: int64(a.Value[len(a.Value)-2])}
	case ast.AtomInt:
		v, err := strconv.ParseInt(a.Value, 10, 64)
		if err != nil {
			report.Internal("malformed int constant %q", a.Value)
		}
		return imc.CONST{Value: v}
	case ast.AtomStr:
		s := g.tables.Strings[a]
		if s == nil {
			report.Internal("no static data for string %q", a.Value)
		}
		return imc.NAME{Label: s.Label}
	}

	report.Internal("unknown atom kind %d", a.Kind)
	return nil
}

func (g *Generator) name(n *ast.Name) imc.Expr {
	switch decl := g.tables.DeclaredAt[n].(type) {
	case *ast.FunDecl:
		// A parameterless function named as an expression is called.
		callee := g.frame(decl)
		return imc.CALL{
			Label: callee.Label,
			Offs:  []int64{0},
			Args:  []imc.Expr{g.staticLink(callee)},
		}

	case *ast.VarDecl, *ast.ParDecl:
		switch acc := g.tables.Accesses[decl].(type) {
		case mem.AbsAccess:
			return imc.MEM{Addr: imc.NAME{Label: acc.Label}}
		case mem.RelAccess:
			fp := g.frameAddr(g.top().Depth - acc.Depth + 1)
			return imc.MEM{Addr: imc.BINOP{Oper: imc.ADD, Fst: fp, Snd: imc.CONST{Value: acc.Offset}}}
		default:
			report.Internal("no access for %s", n.Ident)
		}

	case nil:
		report.Internal("unresolved name %s", n.Ident)
	}

	report.Internal("name %s does not denote a value", n.Ident)
	return nil
}

func (g *Generator) call(c *ast.Call) imc.Expr {
	fun, ok := g.tables.DeclaredAt[c].(*ast.FunDecl)
	if !ok {
		report.Internal("call of unresolved function %s", c.Ident)
	}
	if len(fun.Pars) != len(c.Args) {
		report.Internal("call of %s with %d arguments, want %d", c.Ident, len(c.Args), len(fun.Pars))
	}

	callee := g.frame(fun)
	offs := []int64{0}
	args := []imc.Expr{g.staticLink(callee)}
	for i, arg := range c.Args {
		offs = append(offs, g.relAccess(fun.Pars[i]).Offset)
		args = append(args, g.expr(arg))
	}

	return imc.CALL{Label: callee.Label, Offs: offs, Args: args}
}

func (g *Generator) stmtExpr(se *ast.StmtExpr) imc.Expr {
	if len(se.Stmts) == 0 {
		return imc.SEXPR{Stmt: imc.STMTS{}, Expr: imc.CONST{Value: 0}}
	}

	var stmts []imc.Stmt
	for _, s := range se.Stmts[:len(se.Stmts)-1] {
		stmts = append(stmts, g.stmt(s))
	}

	last := g.stmt(se.Stmts[len(se.Stmts)-1])
	if es, ok := last.(imc.ESTMT); ok {
		return imc.SEXPR{Stmt: imc.STMTS{Stmts: stmts}, Expr: es.Expr}
	}
	stmts = append(stmts, last)
	return imc.SEXPR{Stmt: imc.STMTS{Stmts: stmts}, Expr: imc.CONST{Value: 0}}
}

func (g *Generator) stmt(s ast.Stmt) imc.Stmt {
	code := g.genStmt(s)
	g.tables.StmtIR[s] = code
	return code
}

func (g *Generator) genStmt(s ast.Stmt) imc.Stmt {
	switch s := s.(type) {
	case *ast.ExprStmt:
		return imc.ESTMT{Expr: g.expr(s.Expr)}

	case *ast.AssignStmt:
		dst := g.expr(s.Dst)
		src := g.expr(s.Src)
		return imc.MOVE{Dst: dst, Src: src}

	case *ast.IfStmt:
		cond := g.expr(s.Cond)
		then := g.stmt(s.Then)
		var els imc.Stmt = imc.STMTS{}
		if s.Else != nil {
			els = g.stmt(s.Else)
		}

		pos, neg, end := mem.NewLabel(), mem.NewLabel(), mem.NewLabel()
		return imc.Seq(
			imc.CJUMP{Cond: cond, Pos: pos, Neg: neg},
			imc.LABEL{Label: pos}, then,
			imc.JUMP{Label: end},
			imc.LABEL{Label: neg}, els,
			imc.LABEL{Label: end},
		)

	case *ast.WhileStmt:
		cond := g.expr(s.Cond)
		body := g.stmt(s.Body)

		check, bodyLabel, end := mem.NewLabel(), mem.NewLabel(), mem.NewLabel()
		return imc.Seq(
			imc.LABEL{Label: check},
			imc.CJUMP{Cond: cond, Pos: bodyLabel, Neg: end},
			imc.LABEL{Label: bodyLabel}, body,
			imc.JUMP{Label: check},
			imc.LABEL{Label: end},
		)
	}

	report.Internal("unexpected statement %T", s)
	return nil
}

func (g *Generator) frame(fun *ast.FunDecl) *mem.Frame {
	f := g.tables.Frames[fun]
	if f == nil {
		report.Internal("no frame for function %s", fun.Name)
	}
	return f
}

func (g *Generator) relAccess(d ast.Decl) mem.RelAccess {
	acc, ok := g.tables.Accesses[d].(mem.RelAccess)
	if !ok {
		report.Internal("no relative access for %s", d.DeclName())
	}
	return acc
}

func memOperand(e imc.Expr) imc.MEM {
	m, ok := e.(imc.MEM)
	if !ok {
		report.Internal("expected a memory operand, got %s", imc.ExprString(e))
	}
	return m
}

func runtimeCall(label mem.Label, arg imc.Expr) imc.CALL {
	return imc.CALL{Label: label, Offs: []int64{runtimeArgOffset}, Args: []imc.Expr{arg}}
}

func binOper(op ast.BinOp) imc.BinOper {
	switch op {
	case ast.Or:
		return imc.OR
	case ast.And:
		return imc.AND
	case ast.Equ:
		return imc.EQU
	case ast.Neq:
		return imc.NEQ
	case ast.Lth:
		return imc.LTH
	case ast.Gth:
		return imc.GTH
	case ast.Leq:
		return imc.LEQ
	case ast.Geq:
		return imc.GEQ
	case ast.Add:
		return imc.ADD
	case ast.Sub:
		return imc.SUB
	case ast.Mul:
		return imc.MUL
	case ast.Div:
		return imc.DIV
	case ast.Mod:
		return imc.MOD
	}
	report.Internal("unknown binary operator %d", op)
	return 0
}
