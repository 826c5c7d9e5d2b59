// Package imclin linearizes intermediate code: it canonicalizes statement
// trees into flat statement lists and collects code and data chunks.
//
// In canonical code no expression contains a SEXPR, every operator and call
// works on temps evaluated beforehand in left-to-right order, and every MOVE
// writes either a temp or a memory location whose address is a temp.
package imclin

import (
	"github.com/raymyers/prevc/pkg/imc"
	"github.com/raymyers/prevc/pkg/mem"
	"github.com/raymyers/prevc/pkg/report"
)

// CanonStmt canonicalizes a statement into a flat list.
func CanonStmt(s imc.Stmt) (stmts []imc.Stmt, err error) {
	defer report.Recover(&err)

	return canonStmt(s), nil
}

// CanonExpr canonicalizes an expression. The returned statements must run
// before the returned expression is evaluated.
func CanonExpr(e imc.Expr) (stmts []imc.Stmt, result imc.Expr, err error) {
	defer report.Recover(&err)

	result = canonExpr(e, &stmts)
	return stmts, result, nil
}

func canonStmt(s imc.Stmt) []imc.Stmt {
	var stmts []imc.Stmt

	switch s := s.(type) {
	case imc.CJUMP:
		cond := canonExpr(s.Cond, &stmts)
		stmts = append(stmts, imc.CJUMP{Cond: cond, Pos: s.Pos, Neg: s.Neg})

	case imc.ESTMT:
		e := canonExpr(s.Expr, &stmts)
		stmts = append(stmts, imc.ESTMT{Expr: e})

	case imc.JUMP, imc.LABEL:
		stmts = append(stmts, s)

	case imc.MOVE:
		switch dst := s.Dst.(type) {
		case imc.MEM:
			// The address is computed before the value.
			addr := materialize(canonExpr(dst.Addr, &stmts), &stmts)
			src := canonExpr(s.Src, &stmts)
			stmts = append(stmts, imc.MOVE{Dst: imc.MEM{Addr: addr}, Src: src})
		case imc.TEMP:
			src := canonExpr(s.Src, &stmts)
			stmts = append(stmts, imc.MOVE{Dst: dst, Src: src})
		default:
			report.Internal("move to %s", imc.ExprString(s.Dst))
		}

	case imc.STMTS:
		for _, s := range s.Stmts {
			stmts = append(stmts, canonStmt(s)...)
		}

	default:
		report.Internal("unexpected statement %T", s)
	}

	return stmts
}

func canonExpr(e imc.Expr, stmts *[]imc.Stmt) imc.Expr {
	switch e := e.(type) {
	case imc.BINOP:
		fst := materialize(canonExpr(e.Fst, stmts), stmts)
		snd := materialize(canonExpr(e.Snd, stmts), stmts)
		return materialize(imc.BINOP{Oper: e.Oper, Fst: fst, Snd: snd}, stmts)

	case imc.CALL:
		args := make([]imc.Expr, len(e.Args))
		for i, arg := range e.Args {
			args[i] = materialize(canonExpr(arg, stmts), stmts)
		}
		offs := append([]int64(nil), e.Offs...)
		return materialize(imc.CALL{Label: e.Label, Offs: offs, Args: args}, stmts)

	case imc.CONST, imc.NAME, imc.TEMP:
		return e

	case imc.MEM:
		return imc.MEM{Addr: canonExpr(e.Addr, stmts)}

	case imc.SEXPR:
		*stmts = append(*stmts, canonStmt(e.Stmt)...)
		return canonExpr(e.Expr, stmts)

	case imc.UNOP:
		return imc.UNOP{Oper: e.Oper, Sub: canonExpr(e.Sub, stmts)}
	}

	report.Internal("unexpected expression %T", e)
	return nil
}

// materialize moves e into a fresh temp.
func materialize(e imc.Expr, stmts *[]imc.Stmt) imc.TEMP {
	t := imc.TEMP{Temp: mem.NewTemp()}
	*stmts = append(*stmts, imc.MOVE{Dst: t, Src: e})
	return t
}
