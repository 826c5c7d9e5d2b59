package asmgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/prevc/pkg/asm"
	"github.com/raymyers/prevc/pkg/imc"
	"github.com/raymyers/prevc/pkg/imclin"
	"github.com/raymyers/prevc/pkg/mem"
)

// opcodes returns the mnemonic of every instruction, labels as "label".
func opcodes(instrs []asm.Instr) []string {
	var res []string
	for _, i := range instrs {
		switch i := i.(type) {
		case *asm.Oper:
			res = append(res, strings.Fields(i.Template)[0])
		case *asm.Move:
			res = append(res, "SET")
		case *asm.Label:
			res = append(res, "label")
		}
	}
	return res
}

func templates(instrs []asm.Instr) []string {
	var res []string
	for _, i := range instrs {
		if op, ok := i.(*asm.Oper); ok {
			res = append(res, op.Template)
		}
	}
	return res
}

func TestConstant(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		want  []string
	}{
		{"zero", 0, []string{"SETL `d0,0"}},
		{"small", 42, []string{"SETL `d0,42"}},
		{"65537", 0x10001, []string{"SETL `d0,1", "INCML `d0,1"}},
		{"high only", 1 << 48, []string{"SETL `d0,0", "INCH `d0,1"}},
		{"minus one", -1, []string{"SETL `d0,65535", "INCML `d0,65535", "INCMH `d0,65535", "INCH `d0,65535"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instrs, res, err := SelectExpr(imc.CONST{Value: tt.value}, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, templates(instrs))
			assert.Empty(t, instrs[0].Uses())
			for k, i := range instrs {
				assert.Equal(t, []mem.Temp{res}, i.Defs())
				if k > 0 {
					assert.Equal(t, []mem.Temp{res}, i.Uses())
				}
			}
		})
	}
}

func TestRelational(t *testing.T) {
	want := map[imc.BinOper]string{
		imc.EQU: "ZSZ", imc.NEQ: "ZSNZ", imc.LTH: "ZSN",
		imc.GTH: "ZSP", imc.LEQ: "ZSNP", imc.GEQ: "ZSNN",
	}

	for op, zs := range want {
		t.Run(op.String(), func(t *testing.T) {
			a, b := mem.NewTemp(), mem.NewTemp()
			e := imc.BINOP{Oper: op, Fst: imc.TEMP{Temp: a}, Snd: imc.TEMP{Temp: b}}

			instrs, res, err := SelectExpr(e, Options{})
			require.NoError(t, err)
			require.Len(t, instrs, 2)

			cmp := instrs[0].(*asm.Oper)
			assert.Equal(t, "CMP `d0,`s0,`s1", cmp.Template)
			assert.Equal(t, []mem.Temp{a, b}, cmp.Uses())
			assert.Equal(t, []mem.Temp{res}, cmp.Defs())

			sign := instrs[1].(*asm.Oper)
			assert.Equal(t, zs+" `d0,`s0,1", sign.Template)
			assert.Equal(t, []mem.Temp{res}, sign.Uses())
			assert.Equal(t, []mem.Temp{res}, sign.Defs())
		})
	}
}

func TestArithmetic(t *testing.T) {
	a, b := mem.NewTemp(), mem.NewTemp()
	for _, op := range []imc.BinOper{imc.OR, imc.AND, imc.ADD, imc.SUB, imc.MUL, imc.DIV} {
		instrs, _, err := SelectExpr(imc.BINOP{Oper: op, Fst: imc.TEMP{Temp: a}, Snd: imc.TEMP{Temp: b}}, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{op.String() + " `d0,`s0,`s1"}, templates(instrs))
	}

	instrs, res, err := SelectExpr(imc.BINOP{Oper: imc.MOD, Fst: imc.TEMP{Temp: a}, Snd: imc.TEMP{Temp: b}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"DIV `d0,`s0,`s1", "GET `d0,rR"}, templates(instrs))
	assert.Equal(t, []mem.Temp{res}, instrs[1].Defs())
}

func TestUnary(t *testing.T) {
	a := mem.NewTemp()

	instrs, res, err := SelectExpr(imc.UNOP{Oper: imc.NOT, Sub: imc.TEMP{Temp: a}}, Options{})
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	assert.Equal(t, []string{"NEG `d0,`s0", "ADD `d0,`s0,1"}, templates(instrs))
	assert.Equal(t, []mem.Temp{a}, instrs[0].Uses())
	assert.Equal(t, instrs[0].Defs(), instrs[1].Uses())
	assert.Equal(t, []mem.Temp{res}, instrs[1].Defs())

	// A constant operand's register is reused.
	instrs, res, err = SelectExpr(imc.UNOP{Oper: imc.NEG, Sub: imc.CONST{Value: 5}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"SETL `d0,5", "NEG `d0,`s0"}, templates(instrs))
	assert.Equal(t, []mem.Temp{res}, instrs[0].Defs())
}

func TestMemoryAccess(t *testing.T) {
	a, v := mem.NewTemp(), mem.NewTemp()

	instrs, res, err := SelectExpr(imc.MEM{Addr: imc.TEMP{Temp: a}}, Options{})
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, "LDO `d0,`s0,0", instrs[0].(*asm.Oper).Template)
	assert.Equal(t, []mem.Temp{a}, instrs[0].Uses())
	assert.Equal(t, []mem.Temp{res}, instrs[0].Defs())

	instrs, err = SelectStmts([]imc.Stmt{imc.MOVE{Dst: imc.MEM{Addr: imc.TEMP{Temp: a}}, Src: imc.TEMP{Temp: v}}}, Options{})
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, "STO `s0,`s1,0", instrs[0].(*asm.Oper).Template)
	assert.Equal(t, []mem.Temp{v, a}, instrs[0].Uses())
	assert.Empty(t, instrs[0].Defs())

	instrs, res, err = SelectExpr(imc.NAME{Label: "_x"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"LDA `d0,_x"}, templates(instrs))
	assert.Equal(t, []mem.Temp{res}, instrs[0].Defs())
}

func TestMoveToTemp(t *testing.T) {
	a, b := mem.NewTemp(), mem.NewTemp()
	instrs, err := SelectStmts([]imc.Stmt{imc.MOVE{Dst: imc.TEMP{Temp: a}, Src: imc.TEMP{Temp: b}}}, Options{})
	require.NoError(t, err)
	require.Len(t, instrs, 1)

	mv, ok := instrs[0].(*asm.Move)
	require.True(t, ok)
	assert.Equal(t, b, mv.Src)
	assert.Equal(t, a, mv.Dst)
}

func TestBadMove(t *testing.T) {
	_, err := SelectStmts([]imc.Stmt{imc.MOVE{Dst: imc.CONST{Value: 1}, Src: imc.CONST{Value: 2}}}, Options{})
	assert.Error(t, err)
}

func TestConditionalJump(t *testing.T) {
	c := mem.NewTemp()
	pos, neg := mem.NewLabel(), mem.NewLabel()
	cjump := imc.CJUMP{Cond: imc.TEMP{Temp: c}, Pos: pos, Neg: neg}

	t.Run("negative label follows", func(t *testing.T) {
		instrs, err := SelectStmts([]imc.Stmt{cjump, imc.LABEL{Label: neg}}, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"BNZ", "label"}, opcodes(instrs))

		bnz := instrs[0].(*asm.Oper)
		assert.Equal(t, []mem.Label{pos, neg}, bnz.Jumps())
		assert.Equal(t, asm.FlowNext, bnz.Flow())
		assert.Equal(t, []mem.Temp{c}, bnz.Uses())
	})

	t.Run("positive label follows", func(t *testing.T) {
		instrs, err := SelectStmts([]imc.Stmt{cjump, imc.LABEL{Label: pos}}, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"BNZ", "JMP", "label"}, opcodes(instrs))

		jmp := instrs[1].(*asm.Oper)
		assert.Equal(t, []mem.Label{neg}, jmp.Jumps())
		assert.Equal(t, asm.FlowJump, jmp.Flow())
	})
}

func TestCall(t *testing.T) {
	f := mem.NamedLabel("f")
	sl, x := mem.NewTemp(), mem.NewTemp()
	call := imc.CALL{
		Label: f,
		Offs:  []int64{0, 8, 512},
		Args:  []imc.Expr{imc.TEMP{Temp: sl}, imc.TEMP{Temp: x}, imc.TEMP{Temp: x}},
	}

	t.Run("immediate offsets", func(t *testing.T) {
		instrs, res, err := SelectExpr(call, Options{Args: ArgsImmediate})
		require.NoError(t, err)

		assert.Equal(t, []string{
			"STO `s0,$254,0",
			"STO `s0,$254,8",
			"SETL `d0,512",
			"ADD `d0,$254,`s0",
			"STO `s0,`s1,0",
			"PUSHJ `w,_f",
			"LDO `d0,$254,0",
		}, templates(instrs))

		pushj := instrs[5].(*asm.Oper)
		assert.Equal(t, asm.FlowCall, pushj.Flow())
		assert.Equal(t, []mem.Label{f}, pushj.Jumps())
		assert.Equal(t, []mem.Temp{res}, instrs[6].Defs())
	})

	t.Run("register offsets", func(t *testing.T) {
		instrs, _, err := SelectExpr(call, Options{Args: ArgsRegister})
		require.NoError(t, err)

		assert.Equal(t, []string{
			"SETL", "ADD", "STO",
			"SETL", "ADD", "STO",
			"SETL", "ADD", "STO",
			"PUSHJ", "LDO",
		}, opcodes(instrs))

		store := instrs[2].(*asm.Oper)
		add := instrs[1].(*asm.Oper)
		assert.Equal(t, []mem.Temp{sl, add.Defs()[0]}, store.Uses())
	})
}

func TestSelectCode(t *testing.T) {
	frame := mem.NewFrame(mem.NamedLabel("main"), 0, 0, 8)
	chunk, err := imclin.NewCodeChunk(frame, imc.BINOP{Oper: imc.LTH, Fst: imc.CONST{Value: 1}, Snd: imc.CONST{Value: 2}})
	require.NoError(t, err)

	code, err := SelectCode(chunk, Options{})
	require.NoError(t, err)

	assert.Equal(t, frame, code.Frame)
	assert.Equal(t, chunk.Exit, code.Exit)
	require.NotEmpty(t, code.Instrs)
	assert.Equal(t, chunk.Entry, code.Instrs[0].(*asm.Label).Label)

	last := code.Instrs[len(code.Instrs)-1].(*asm.Oper)
	assert.Equal(t, []mem.Label{chunk.Exit}, last.Jumps())
	assert.True(t, code.Temps().Contains(frame.RV))
}
