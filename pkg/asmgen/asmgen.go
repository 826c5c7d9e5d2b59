// Package asmgen selects MMIX instructions for canonical intermediate code.
//
// Selection is a recursive maximal munch: every expression is turned into
// instructions leaving its value in a fresh temp; statements emit directly
// into the function's instruction list. The stack pointer $254 is a fixed
// register that never appears as a temp.
package asmgen

import (
	"fmt"

	"github.com/raymyers/prevc/pkg/asm"
	"github.com/raymyers/prevc/pkg/imc"
	"github.com/raymyers/prevc/pkg/imclin"
	"github.com/raymyers/prevc/pkg/mem"
	"github.com/raymyers/prevc/pkg/report"
)

// SP is the stack pointer register.
const SP = "$254"

// ArgPassing selects how call arguments are stored into the outgoing
// argument area.
type ArgPassing int

const (
	// ArgsImmediate stores with an immediate displacement from SP when the
	// offset fits in 8 bits and through an address register otherwise.
	ArgsImmediate ArgPassing = iota
	// ArgsRegister always computes the argument address into a register.
	ArgsRegister
)

// maxImmediate is the largest unsigned 8-bit immediate operand.
const maxImmediate = 255

// Options control instruction selection.
type Options struct {
	Args ArgPassing
}

type selector struct {
	opts   Options
	instrs []asm.Instr
}

// SelectProgram selects instructions for every code chunk.
func SelectProgram(lin *imclin.Program, opts Options) ([]*asm.Code, error) {
	codes := make([]*asm.Code, 0, len(lin.Code))
	for _, chunk := range lin.Code {
		code, err := SelectCode(chunk, opts)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// SelectCode selects instructions for one code chunk.
func SelectCode(chunk *imclin.CodeChunk, opts Options) (code *asm.Code, err error) {
	defer report.Recover(&err)

	s := &selector{opts: opts}
	s.stmts(chunk.Stmts)

	return &asm.Code{
		Frame:  chunk.Frame,
		Entry:  chunk.Entry,
		Exit:   chunk.Exit,
		Instrs: s.instrs,
	}, nil
}

// SelectStmts selects instructions for a statement list.
func SelectStmts(stmts []imc.Stmt, opts Options) (instrs []asm.Instr, err error) {
	defer report.Recover(&err)

	s := &selector{opts: opts}
	s.stmts(stmts)

	return s.instrs, nil
}

// SelectExpr selects instructions for an expression and returns the temp
// holding its value.
func SelectExpr(e imc.Expr, opts Options) (instrs []asm.Instr, res mem.Temp, err error) {
	defer report.Recover(&err)

	s := &selector{opts: opts}
	res = s.expr(e)

	return s.instrs, res, nil
}

func (s *selector) emit(i asm.Instr) {
	s.instrs = append(s.instrs, i)
}

func (s *selector) oper(template string, uses, defs []mem.Temp) {
	s.emit(asm.NewOper(template, uses, defs, nil))
}

func temps(ts ...mem.Temp) []mem.Temp { return ts }

func (s *selector) stmts(stmts []imc.Stmt) {
	for i, st := range stmts {
		var next imc.Stmt
		if i+1 < len(stmts) {
			next = stmts[i+1]
		}
		s.stmt(st, next)
	}
}

func (s *selector) stmt(st, next imc.Stmt) {
	switch st := st.(type) {
	case imc.CJUMP:
		cond := s.expr(st.Cond)
		s.emit(asm.NewOper("BNZ `s0,"+st.Pos.String(), temps(cond), nil, []mem.Label{st.Pos, st.Neg}))
		// BNZ falls through; reach the negative label explicitly unless it
		// comes next.
		if l, ok := next.(imc.LABEL); !ok || l.Label != st.Neg {
			s.jump(st.Neg)
		}

	case imc.ESTMT:
		s.expr(st.Expr)

	case imc.JUMP:
		s.jump(st.Label)

	case imc.LABEL:
		s.emit(asm.NewLabel(st.Label))

	case imc.MOVE:
		switch dst := st.Dst.(type) {
		case imc.MEM:
			addr := s.expr(dst.Addr)
			src := s.expr(st.Src)
			s.oper("STO `s0,`s1,0", temps(src, addr), nil)
		case imc.TEMP:
			src := s.expr(st.Src)
			s.emit(asm.NewMove(src, dst.Temp))
		default:
			report.Internal("move to %s", imc.ExprString(st.Dst))
		}

	case imc.STMTS:
		s.stmts(st.Stmts)

	default:
		report.Internal("unexpected statement %T", st)
	}
}

func (s *selector) jump(l mem.Label) {
	s.emit(asm.NewJump("JMP "+l.String(), nil, []mem.Label{l}))
}

func (s *selector) expr(e imc.Expr) mem.Temp {
	switch e := e.(type) {
	case imc.BINOP:
		return s.binop(e)

	case imc.CALL:
		return s.call(e)

	case imc.CONST:
		return s.constant(e.Value)

	case imc.MEM:
		addr := s.expr(e.Addr)
		dst := mem.NewTemp()
		s.oper("LDO `d0,`s0,0", temps(addr), temps(dst))
		return dst

	case imc.NAME:
		dst := mem.NewTemp()
		s.oper("LDA `d0,"+e.Label.String(), nil, temps(dst))
		return dst

	case imc.TEMP:
		return e.Temp

	case imc.UNOP:
		return s.unop(e)

	case imc.SEXPR:
		report.Internal("statement expression in canonical code")
	}

	report.Internal("unexpected expression %T", e)
	return 0
}

var relational = map[imc.BinOper]string{
	imc.EQU: "ZSZ",
	imc.NEQ: "ZSNZ",
	imc.LTH: "ZSN",
	imc.GTH: "ZSP",
	imc.LEQ: "ZSNP",
	imc.GEQ: "ZSNN",
}

func (s *selector) binop(e imc.BINOP) mem.Temp {
	fst := s.expr(e.Fst)
	snd := s.expr(e.Snd)
	dst := mem.NewTemp()

	switch e.Oper {
	case imc.OR, imc.AND, imc.ADD, imc.SUB, imc.MUL, imc.DIV:
		s.oper(e.Oper.String()+" `d0,`s0,`s1", temps(fst, snd), temps(dst))

	case imc.MOD:
		// The remainder of a division is left in rR.
		s.oper("DIV `d0,`s0,`s1", temps(fst, snd), temps(dst))
		s.oper("GET `d0,rR", nil, temps(dst))

	case imc.EQU, imc.NEQ, imc.LTH, imc.GTH, imc.LEQ, imc.GEQ:
		s.oper("CMP `d0,`s0,`s1", temps(fst, snd), temps(dst))
		s.oper(relational[e.Oper]+" `d0,`s0,1", temps(dst), temps(dst))

	default:
		report.Internal("unexpected binary operator %v", e.Oper)
	}

	return dst
}

func (s *selector) unop(e imc.UNOP) mem.Temp {
	sub := s.expr(e.Sub)

	dst := mem.NewTemp()
	if _, ok := e.Sub.(imc.CONST); ok {
		dst = sub
	}

	switch e.Oper {
	case imc.NEG:
		s.oper("NEG `d0,`s0", temps(sub), temps(dst))
	case imc.NOT:
		// 1 - x, negating first so that no intermediate overflows.
		neg := mem.NewTemp()
		s.oper("NEG `d0,`s0", temps(sub), temps(neg))
		// Booleans are 0 or 1, so 1 - x is their negation.
		s.oper("ADD `d0,`s0,1", temps(neg), temps(dst))
	default:
		report.Internal("unexpected unary operator %v", e.Oper)
	}

	return dst
}

var wydeLoads = [...]string{"SETL", "INCML", "INCMH", "INCH"}

// constant loads v 16 bits at a time, low to high. The low wyde is always
// set; higher wydes only when nonzero. The increments read the register
// they update.
func (s *selector) constant(v int64) mem.Temp {
	dst := mem.NewTemp()
	for i, op := range wydeLoads {
		wyde := uint64(v) >> (16 * i) & 0xFFFF
		switch {
		case i == 0:
			s.oper(fmt.Sprintf("%s `d0,%d", op, wyde), nil, temps(dst))
		case wyde != 0:
			s.oper(fmt.Sprintf("%s `d0,%d", op, wyde), temps(dst), temps(dst))
		}
	}
	return dst
}

// Constant selects instructions loading v into a fresh temp.
func Constant(v int64) ([]asm.Instr, mem.Temp) {
	s := &selector{}
	t := s.constant(v)
	return s.instrs, t
}

func (s *selector) call(c imc.CALL) mem.Temp {
	if len(c.Offs) != len(c.Args) {
		report.Internal("call to %s with %d offsets and %d arguments", c.Label, len(c.Offs), len(c.Args))
	}

	args := make([]mem.Temp, len(c.Args))
	for i, arg := range c.Args {
		args[i] = s.expr(arg)
	}

	for i, off := range c.Offs {
		if s.opts.Args == ArgsImmediate && off >= 0 && off <= maxImmediate {
			s.oper(fmt.Sprintf("STO `s0,%s,%d", SP, off), temps(args[i]), nil)
			continue
		}
		offset := s.constant(off)
		addr := mem.NewTemp()
		s.oper("ADD `d0,"+SP+",`s0", temps(offset), temps(addr))
		s.oper("STO `s0,`s1,0", temps(args[i], addr), nil)
	}

	s.emit(asm.NewCall("PUSHJ `w,"+c.Label.String(), c.Label))

	res := mem.NewTemp()
	s.oper("LDO `d0,"+SP+",0", nil, temps(res))
	return res
}
