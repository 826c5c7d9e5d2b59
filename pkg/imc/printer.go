package imc

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs intermediate code, one statement per line.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new intermediate code printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintStmt prints a statement; nested sequences are indented.
func (p *Printer) PrintStmt(s Stmt) {
	p.printStmt(s, 0)
}

// PrintStmts prints a linear statement list.
func (p *Printer) PrintStmts(stmts []Stmt) {
	for _, s := range stmts {
		p.printStmt(s, 0)
	}
}

func (p *Printer) printStmt(s Stmt, depth int) {
	indent := strings.Repeat("  ", depth)
	if seq, ok := s.(STMTS); ok {
		fmt.Fprintf(p.w, "%sSTMTS\n", indent)
		for _, s := range seq.Stmts {
			p.printStmt(s, depth+1)
		}
		return
	}
	fmt.Fprintf(p.w, "%s%s\n", indent, StmtString(s))
}

// ExprString renders an expression on a single line.
func ExprString(e Expr) string {
	switch e := e.(type) {
	case CONST:
		return fmt.Sprintf("CONST(%d)", e.Value)
	case MEM:
		return "MEM(" + ExprString(e.Addr) + ")"
	case TEMP:
		return "TEMP(" + e.Temp.String() + ")"
	case NAME:
		return "NAME(" + e.Label.String() + ")"
	case BINOP:
		return fmt.Sprintf("BINOP(%s,%s,%s)", e.Oper, ExprString(e.Fst), ExprString(e.Snd))
	case UNOP:
		return fmt.Sprintf("UNOP(%s,%s)", e.Oper, ExprString(e.Sub))
	case CALL:
		var b strings.Builder
		fmt.Fprintf(&b, "CALL(%s", e.Label)
		for i, arg := range e.Args {
			fmt.Fprintf(&b, ",%d:%s", e.Offs[i], ExprString(arg))
		}
		b.WriteString(")")
		return b.String()
	case SEXPR:
		return "SEXPR(" + StmtString(e.Stmt) + "," + ExprString(e.Expr) + ")"
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("?%T", e)
	}
}

// StmtString renders a statement on a single line.
func StmtString(s Stmt) string {
	switch s := s.(type) {
	case ESTMT:
		return "ESTMT(" + ExprString(s.Expr) + ")"
	case MOVE:
		return "MOVE(" + ExprString(s.Dst) + "," + ExprString(s.Src) + ")"
	case CJUMP:
		return fmt.Sprintf("CJUMP(%s,%s,%s)", ExprString(s.Cond), s.Pos, s.Neg)
	case JUMP:
		return fmt.Sprintf("JUMP(%s)", s.Label)
	case LABEL:
		return fmt.Sprintf("LABEL(%s)", s.Label)
	case STMTS:
		parts := make([]string, len(s.Stmts))
		for i, s := range s.Stmts {
			parts[i] = StmtString(s)
		}
		return "STMTS(" + strings.Join(parts, ",") + ")"
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("?%T", s)
	}
}
