package imclin

import (
	"github.com/raymyers/prevc/pkg/ast"
	"github.com/raymyers/prevc/pkg/attr"
	"github.com/raymyers/prevc/pkg/imc"
	"github.com/raymyers/prevc/pkg/mem"
	"github.com/raymyers/prevc/pkg/report"
)

// DataChunk is a statically allocated block of memory.
type DataChunk struct {
	Label mem.Label
	Size  int64
	Init  *string
}

// CodeChunk is the linearized body of one function. Stmts starts with
// LABEL Entry; control leaves through a jump to Exit, which is not part of
// the chunk.
type CodeChunk struct {
	Frame *mem.Frame
	Entry mem.Label
	Exit  mem.Label
	Stmts []imc.Stmt
}

// Program is the linearized program.
type Program struct {
	Data []*DataChunk
	Code []*CodeChunk
}

// Linearize collects the data chunks of global variables and string
// constants and linearizes every function with a body, in source order.
func Linearize(prog *ast.Program, t *attr.Tables) (lin *Program, err error) {
	defer report.Recover(&err)

	lin = &Program{}

	for _, d := range prog.Decls {
		v, ok := d.(*ast.VarDecl)
		if !ok {
			continue
		}
		acc, ok := t.Accesses[v].(mem.AbsAccess)
		if !ok {
			report.Internal("global variable %s has no static access", v.Name)
		}
		lin.Data = append(lin.Data, &DataChunk{Label: acc.Label, Size: acc.Size, Init: acc.Init})
	}

	ast.Inspect(prog, func(n ast.Node) bool {
		if a, ok := n.(*ast.Atom); ok {
			if acc := t.Strings[a]; acc != nil {
				lin.Data = append(lin.Data, &DataChunk{Label: acc.Label, Size: acc.Size, Init: acc.Init})
			}
		}
		return true
	})

	for _, fun := range ast.Functions(prog) {
		if fun.Expr == nil {
			continue
		}
		lin.Code = append(lin.Code, linearizeFunction(fun, t))
	}

	return lin, nil
}

// LinearizeFunction builds the code chunk of fun from its frame and the
// intermediate code of its body.
func LinearizeFunction(fun *ast.FunDecl, t *attr.Tables) (chunk *CodeChunk, err error) {
	defer report.Recover(&err)

	return linearizeFunction(fun, t), nil
}

func linearizeFunction(fun *ast.FunDecl, t *attr.Tables) *CodeChunk {
	frame := t.Frames[fun]
	if frame == nil {
		report.Internal("no frame for function %s", fun.Name)
	}
	body := t.ExprIR[fun.Expr]
	if body == nil {
		report.Internal("no code for function %s", fun.Name)
	}

	chunk, err := NewCodeChunk(frame, body)
	if err != nil {
		panic(err)
	}
	return chunk
}

// NewCodeChunk wraps the body expression of a function into
// LABEL entry; MOVE(TEMP RV, body); JUMP exit and canonicalizes it.
func NewCodeChunk(frame *mem.Frame, body imc.Expr) (chunk *CodeChunk, err error) {
	defer report.Recover(&err)

	entry := mem.NewLabel()
	exit := mem.NewLabel()

	stmts := canonStmt(imc.Seq(
		imc.LABEL{Label: entry},
		imc.MOVE{Dst: imc.TEMP{Temp: frame.RV}, Src: body},
		imc.JUMP{Label: exit},
	))

	return &CodeChunk{Frame: frame, Entry: entry, Exit: exit, Stmts: stmts}, nil
}
