package imcgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/prevc/pkg/ast"
	"github.com/raymyers/prevc/pkg/attr"
	"github.com/raymyers/prevc/pkg/frontend"
	"github.com/raymyers/prevc/pkg/imc"
	"github.com/raymyers/prevc/pkg/imcgen"
	"github.com/raymyers/prevc/pkg/imclin"
	"github.com/raymyers/prevc/pkg/interp"
	"github.com/raymyers/prevc/pkg/memory"
)

func generate(t *testing.T, src string) (*ast.Program, *attr.Tables) {
	t.Helper()

	prog, tables, err := frontend.Load([]byte(src))
	require.NoError(t, err)
	require.NoError(t, memory.NewEvaluator(tables).Layout(prog))
	require.NoError(t, imcgen.NewGenerator(tables).GenerateProgram(prog))
	return prog, tables
}

// runTrees interprets the generated trees directly, without linearizing
// the function bodies.
func runTrees(t *testing.T, prog *ast.Program, tables *attr.Tables) int64 {
	t.Helper()

	lin, err := imclin.Linearize(prog, tables)
	require.NoError(t, err)

	m := interp.New(nil, nil)
	for _, d := range lin.Data {
		m.LoadData(d)
	}
	for _, fun := range ast.Functions(prog) {
		if fun.Expr != nil {
			m.AddTree(tables.Frames[fun], tables.ExprIR[fun.Expr])
		}
	}

	code, err := m.Run()
	require.NoError(t, err)
	return code
}

func TestGenerateAndRun(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int64
	}{
		{"static link", `
- fun: main
  type: int
  body: {call: [outer, 7]}
- fun: outer
  type: int
  pars: [{n: int}]
  body:
    where:
      decls:
        - {var: k, type: int}
        - fun: inner
          type: int
          pars: [{m: int}]
          body: {add: [{mul: [n, k]}, m]}
      expr: [{assign: [k, 3]}, {call: [inner, 2]}]
`, 23},
		{"records in arrays", `
- typ: pt
  type: "{x:int,y:int}"
- var: arr
  type: "[4]pt"
- fun: main
  type: int
  body:
    where:
      decls: [{var: i, type: int}, {var: s, type: int}]
      expr:
        - assign: [i, 0]
        - while:
            cond: {lt: [i, 4]}
            do:
              - assign: [{field: [{index: [arr, i]}, x]}, i]
              - assign: [{field: [{index: [arr, i]}, y]}, {mul: [i, i]}]
              - assign: [i, {add: [i, 1]}]
        - assign: [s, 0]
        - assign: [i, 0]
        - while:
            cond: {lt: [i, 4]}
            do:
              - assign: [s, {add: [s, {add: [{field: [{index: [arr, i]}, x]}, {field: [{index: [arr, i]}, y]}]}]}]
              - assign: [i, {add: [i, 1]}]
        - s
`, 20},
		{"address of", `
- fun: main
  type: int
  body:
    where:
      decls: [{var: x, type: int}, {var: p, type: "^int"}]
      expr:
        - assign: [x, 5]
        - assign: [p, {addr: x}]
        - assign: [{deref: p}, {add: [{deref: p}, 37]}]
        - x
`, 42},
		{"char cast", `
- fun: main
  type: int
  body: {cast: [{cast: [300, char]}, int]}
`, 44},
		{"signs", `
- fun: main
  type: int
  body: {sub: [{neg: 3}, {pos: 4}]}
`, -7},
		{"if else", `
- fun: main
  type: int
  body:
    where:
      decls: [{var: r, type: int}]
      expr:
        - if:
            cond: {or: [{not: true}, {ge: [{char: b}, {char: a}]}]}
            then: {assign: [r, 1]}
            else: {assign: [r, 2]}
        - r
`, 1},
		{"statement expression value", `
- fun: main
  type: int
  body: {add: [f, 9]}
- fun: f
  type: int
  body: [{assign: [g, 4]}, {add: [g, 1]}]
- var: g
  type: int
`, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, tables := generate(t, tt.src)
			assert.Equal(t, tt.want, runTrees(t, prog, tables))
		})
	}
}

func TestParameterlessFunctionIsCalled(t *testing.T) {
	prog, tables := generate(t, `
- fun: one
  type: int
  body: 1
- fun: main
  type: int
  body: {add: [one, one]}
`)

	sum := prog.Decls[1].(*ast.FunDecl).Expr.(*ast.Bin)
	call, ok := tables.ExprIR[sum.Fst].(imc.CALL)
	require.True(t, ok)
	assert.Equal(t, tables.Frames[prog.Decls[0].(*ast.FunDecl)].Label, call.Label)
	assert.Equal(t, []int64{0}, call.Offs)
	assert.Equal(t, imc.TEMP{Temp: tables.Frames[prog.Decls[1].(*ast.FunDecl)].FP}, call.Args[0])
}

func TestRuntimeCalls(t *testing.T) {
	prog, tables := generate(t, `
- fun: main
  type: int
  body:
    where:
      decls: [{var: p, type: "^int"}]
      expr:
        - assign: [p, {new: 8}]
        - {del: p}
        - 0
`)

	var calls []imc.CALL
	ast.Inspect(prog, func(n ast.Node) bool {
		if p, ok := n.(*ast.Pfx); ok {
			calls = append(calls, tables.ExprIR[p].(imc.CALL))
		}
		return true
	})

	require.Len(t, calls, 2)
	assert.Equal(t, imcgen.NewLabel, calls[0].Label)
	assert.Equal(t, imcgen.DelLabel, calls[1].Label)
	for _, c := range calls {
		assert.Equal(t, []int64{8}, c.Offs)
	}
}

func TestStatementsRecorded(t *testing.T) {
	prog, tables := generate(t, `
- fun: main
  type: int
  body:
    where:
      decls: [{var: i, type: int}]
      expr:
        - while:
            cond: {lt: [i, 3]}
            do: {assign: [i, {add: [i, 1]}]}
        - i
`)

	var stmts int
	ast.Inspect(prog, func(n ast.Node) bool {
		if s, ok := n.(ast.Stmt); ok {
			assert.NotNil(t, tables.StmtIR[s], "no code for %T", s)
			stmts++
		}
		return true
	})
	assert.Equal(t, 3, stmts)

	assert.Equal(t, int64(3), runTrees(t, prog, tables))
}
