// Package imc defines the intermediate code: tree-shaped expressions and
// statements shared by the IR builder, the canonicalizer and the instruction
// selector.
//
// Both node families are closed sums. Passes switch over the concrete types
// and treat an unexpected variant as an internal error.
package imc

import "github.com/raymyers/prevc/pkg/mem"

// Expr is an expression node.
type Expr interface {
	implExpr()
}

// Stmt is a statement node.
type Stmt interface {
	implStmt()
}

// --- Expressions ---

// CONST is an integer constant.
type CONST struct {
	Value int64
}

// MEM is an 8-byte memory read at Addr; as a MOVE destination it is a store.
type MEM struct {
	Addr Expr
}

// TEMP reads a temp; as a MOVE destination it is an assignment.
type TEMP struct {
	Temp mem.Temp
}

// NAME is the address of a label.
type NAME struct {
	Label mem.Label
}

// BinOper enumerates binary operators.
type BinOper int

const (
	OR BinOper = iota
	AND
	EQU
	NEQ
	LTH
	GTH
	LEQ
	GEQ
	ADD
	SUB
	MUL
	DIV
	MOD
)

var binOperNames = [...]string{"OR", "AND", "EQU", "NEQ", "LTH", "GTH", "LEQ", "GEQ", "ADD", "SUB", "MUL", "DIV", "MOD"}

func (o BinOper) String() string {
	if int(o) < len(binOperNames) {
		return binOperNames[o]
	}
	return "BINOP?"
}

// IsRelational reports whether o compares its operands.
func (o BinOper) IsRelational() bool {
	return o >= EQU && o <= GEQ
}

// BINOP applies Oper to Fst and Snd.
type BINOP struct {
	Oper BinOper
	Fst  Expr
	Snd  Expr
}

// UnOper enumerates unary operators.
type UnOper int

const (
	NEG UnOper = iota
	NOT
)

func (o UnOper) String() string {
	switch o {
	case NEG:
		return "NEG"
	case NOT:
		return "NOT"
	}
	return "UNOP?"
}

// UNOP applies Oper to Sub.
type UNOP struct {
	Oper UnOper
	Sub  Expr
}

// CALL calls Label. Args[i] is stored at offset Offs[i] of the callee's
// frame; Args[0] is the static link at offset 0.
type CALL struct {
	Label mem.Label
	Offs  []int64
	Args  []Expr
}

// SEXPR executes Stmt and then yields Expr. It only exists between the IR
// builder and the canonicalizer.
type SEXPR struct {
	Stmt Stmt
	Expr Expr
}

func (CONST) implExpr() {}
func (MEM) implExpr()   {}
func (TEMP) implExpr()  {}
func (NAME) implExpr()  {}
func (BINOP) implExpr() {}
func (UNOP) implExpr()  {}
func (CALL) implExpr()  {}
func (SEXPR) implExpr() {}

// --- Statements ---

// ESTMT evaluates Expr for its side effects.
type ESTMT struct {
	Expr Expr
}

// MOVE stores Src into Dst, which must be a TEMP or a MEM.
type MOVE struct {
	Dst Expr
	Src Expr
}

// CJUMP branches to Pos if Cond is nonzero and to Neg otherwise.
type CJUMP struct {
	Cond Expr
	Pos  mem.Label
	Neg  mem.Label
}

// JUMP is an unconditional jump.
type JUMP struct {
	Label mem.Label
}

// LABEL defines a jump target.
type LABEL struct {
	Label mem.Label
}

// STMTS is a sequence of statements.
type STMTS struct {
	Stmts []Stmt
}

func (ESTMT) implStmt() {}
func (MOVE) implStmt()  {}
func (CJUMP) implStmt() {}
func (JUMP) implStmt()  {}
func (LABEL) implStmt() {}
func (STMTS) implStmt() {}

// Seq builds a STMTS node.
func Seq(stmts ...Stmt) STMTS {
	return STMTS{Stmts: stmts}
}
