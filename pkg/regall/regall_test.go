package regall

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/prevc/pkg/asm"
	"github.com/raymyers/prevc/pkg/asmgen"
	"github.com/raymyers/prevc/pkg/imc"
	"github.com/raymyers/prevc/pkg/imclin"
	"github.com/raymyers/prevc/pkg/mem"
	"github.com/raymyers/prevc/pkg/report"
)

func ts(temps ...mem.Temp) []mem.Temp { return temps }

// checkValid fails if two temps that are live at the same time share a
// register.
func checkValid(t *testing.T, code *asm.Code) {
	t.Helper()

	fp := code.Frame.FP
	assert.Equal(t, FPReg, code.Regs[fp])

	for k, instr := range code.Instrs {
		for _, u := range instr.Uses() {
			_, ok := code.Regs[u]
			assert.True(t, ok, "instr %d: %v has no register", k, u)
		}
		for _, d := range instr.Defs() {
			_, ok := code.Regs[d]
			assert.True(t, ok, "instr %d: %v has no register", k, d)
		}

		out := instr.Live().Out.Slice()
		for a, u := range out {
			for _, v := range out[a+1:] {
				if u == fp || v == fp {
					continue
				}
				assert.NotEqual(t, code.Regs[u], code.Regs[v], "instr %d: %v and %v share a register", k, u, v)
			}
		}
		for _, d := range instr.Defs() {
			for _, v := range out {
				if v != d && v != fp {
					assert.NotEqual(t, code.Regs[d], code.Regs[v], "instr %d: def %v clobbers %v", k, d, v)
				}
			}
		}
	}

	for temp, reg := range code.Regs {
		if temp != fp {
			assert.True(t, reg >= 0 && reg < MaxRegs, "register %d of %v", reg, temp)
		}
	}
}

func newCode(instrs ...asm.Instr) *asm.Code {
	frame := mem.NewFrame(mem.NewLabel(), 0, 0, 0)
	exit := mem.NewLabel()
	return &asm.Code{Frame: frame, Entry: mem.NewLabel(), Exit: exit, Instrs: instrs}
}

func TestAllocateSimple(t *testing.T) {
	a, b, c := mem.NewTemp(), mem.NewTemp(), mem.NewTemp()
	code := newCode(
		asm.NewOper("SETL `d0,1", nil, ts(a), nil),
		asm.NewOper("SETL `d0,2", nil, ts(b), nil),
		asm.NewOper("ADD `d0,`s0,`s1", ts(a, b), ts(c), nil),
	)
	code.Instrs = append(code.Instrs,
		asm.NewMove(c, code.Frame.RV),
		asm.NewJump("JMP "+code.Exit.String(), nil, []mem.Label{code.Exit}),
	)

	res, err := Allocate(code, 8)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Rounds)
	assert.Empty(t, res.Spilled)
	assert.Zero(t, code.TempSize)
	assert.NotEqual(t, code.Regs[a], code.Regs[b], "a and b interfere")
	checkValid(t, code)
}

func TestDeadDefinitionInterferes(t *testing.T) {
	// b is defined but never used while a is live.
	a, b := mem.NewTemp(), mem.NewTemp()
	code := newCode(
		asm.NewOper("SETL `d0,1", nil, ts(a), nil),
		asm.NewOper("SETL `d0,2", nil, ts(b), nil),
		asm.NewOper("STO `s0,$254,0", ts(a), nil, nil),
	)

	_, err := Allocate(code, 4)
	require.NoError(t, err)
	assert.NotEqual(t, code.Regs[a], code.Regs[b])
}

// pressure defines n temps, keeps them all live and then sums them up.
func pressure(n int) *asm.Code {
	code := newCode()

	var vals []mem.Temp
	for i := 0; i < n; i++ {
		v := mem.NewTemp()
		vals = append(vals, v)
		code.Instrs = append(code.Instrs, asm.NewOper("SETL `d0,"+strconv.Itoa(i+1), nil, ts(v), nil))
	}

	sum := vals[0]
	for _, v := range vals[1:] {
		s := mem.NewTemp()
		code.Instrs = append(code.Instrs, asm.NewOper("ADD `d0,`s0,`s1", ts(sum, v), ts(s), nil))
		sum = s
	}

	code.Instrs = append(code.Instrs,
		asm.NewMove(sum, code.Frame.RV),
		asm.NewJump("JMP "+code.Exit.String(), nil, []mem.Label{code.Exit}),
	)
	return code
}

// constValue recovers the constant loaded into t by SETL and INC* wyde loads.
func constValue(t *testing.T, instrs []asm.Instr, tmp mem.Temp) int64 {
	t.Helper()

	shifts := map[string]uint{"SETL": 0, "INCML": 16, "INCMH": 32, "INCH": 48}
	var v uint64
	found := false
	for _, instr := range instrs {
		op, ok := instr.(*asm.Oper)
		if !ok || len(op.Dst) != 1 || op.Dst[0] != tmp {
			continue
		}
		f := strings.Fields(op.Template)
		shift, ok := shifts[f[0]]
		require.True(t, ok, "unexpected definition %s", op.Template)
		n, err := strconv.ParseUint(strings.TrimPrefix(f[1], "`d0,"), 10, 16)
		require.NoError(t, err)
		v |= n << shift
		found = true
	}
	require.True(t, found, "no definition of %v", tmp)
	return int64(v)
}

func TestForcedSpill(t *testing.T) {
	const k = 3
	code := pressure(k + 1)
	temps := len(code.Temps())

	res, err := Allocate(code, k)
	require.NoError(t, err)

	require.NotEmpty(t, res.Spilled)
	assert.LessOrEqual(t, res.Rounds, temps+1)
	assert.Equal(t, int64(len(res.Spilled))*mem.WordSize, code.TempSize)
	checkValid(t, code)

	loads := make(map[int64]int)
	stores := make(map[int64]int)
	for _, instr := range code.Instrs {
		op, ok := instr.(*asm.Oper)
		if !ok {
			continue
		}
		switch op.Template {
		case "LDO `d0,`s0,`s1":
			assert.Equal(t, code.Frame.FP, op.Src[0])
			loads[constValue(t, code.Instrs, op.Src[1])]++
		case "STO `s0,`s1,`s2":
			assert.Equal(t, code.Frame.FP, op.Src[1])
			stores[constValue(t, code.Instrs, op.Src[2])]++
		}
	}

	for _, temp := range res.Spilled {
		off, ok := code.Spills[temp]
		require.True(t, ok)
		assert.Less(t, off, -int64(mem.SavedRegsSize))
		assert.Positive(t, stores[off], "no store to slot %d of %v", off, temp)
		if temp != code.Frame.RV {
			assert.Positive(t, loads[off], "no load from slot %d of %v", off, temp)
		}
	}
}

func TestSpillRewrite(t *testing.T) {
	a, b := mem.NewTemp(), mem.NewTemp()
	code := newCode(
		asm.NewOper("SETL `d0,1", nil, ts(a), nil),
		asm.NewOper("ZSN `d0,`s0,1", ts(a), ts(a), nil),
		asm.NewMove(a, b),
	)
	code.Spills = make(map[mem.Temp]int64)

	created := spill(code, a)

	assert.Equal(t, int64(mem.WordSize), code.TempSize)
	assert.Equal(t, -int64(mem.SavedRegsSize+mem.WordSize), code.Spills[a])
	for _, instr := range code.Instrs {
		assert.NotContains(t, instr.Uses(), a)
		assert.NotContains(t, instr.Defs(), a)
	}

	// The instruction that both reads and writes a gets a load and a store
	// around it using one temp.
	var zsn *asm.Oper
	for k, instr := range code.Instrs {
		if op, ok := instr.(*asm.Oper); ok && strings.HasPrefix(op.Template, "ZSN") {
			zsn = op
			prev := code.Instrs[k-1].(*asm.Oper)
			assert.Equal(t, "LDO `d0,`s0,`s1", prev.Template)
			assert.Equal(t, zsn.Src, prev.Dst)
		}
	}
	require.NotNil(t, zsn)
	assert.Equal(t, zsn.Src, zsn.Dst)
	assert.True(t, created.Contains(zsn.Src[0]))

	mv := code.Instrs[len(code.Instrs)-1].(*asm.Move)
	assert.Equal(t, b, mv.Dst)
	assert.True(t, created.Contains(mv.Src))
}

func TestRegisterBudget(t *testing.T) {
	t.Run("out of range", func(t *testing.T) {
		for _, k := range []int{0, MinRegs - 1, MaxRegs + 1} {
			_, err := Allocate(pressure(2), k)
			var cfg *report.ConfigError
			assert.ErrorAs(t, err, &cfg, "k=%d", k)
		}
	})

	t.Run("instruction needs more registers", func(t *testing.T) {
		a, b, c := mem.NewTemp(), mem.NewTemp(), mem.NewTemp()
		code := newCode(
			asm.NewOper("SETL `d0,1", nil, ts(a), nil),
			asm.NewOper("SETL `d0,2", nil, ts(b), nil),
			asm.NewOper("SETL `d0,3", nil, ts(c), nil),
			asm.NewOper("STO `s0,`s1,`s2", ts(a, b, c), nil, nil),
		)

		_, err := Allocate(code, MinRegs)
		var cfg *report.ConfigError
		require.ErrorAs(t, err, &cfg)
		assert.Contains(t, cfg.Msg, "STO")
	})

	t.Run("smallest budget", func(t *testing.T) {
		code := pressure(4)
		_, err := Allocate(code, MinRegs)
		require.NoError(t, err)
		checkValid(t, code)
	})
}

func TestAllocateSelectedLoop(t *testing.T) {
	// s = 0; i = 10; while i > 0 do (s = s + i * i; i = i - 1); s
	frame := mem.NewFrame(mem.NamedLabel("sum"), 0, 8, 16)
	s, i := imc.TEMP{Temp: mem.NewTemp()}, imc.TEMP{Temp: mem.NewTemp()}
	check, body, end := mem.NewLabel(), mem.NewLabel(), mem.NewLabel()
	prog := imc.SEXPR{
		Stmt: imc.Seq(
			imc.MOVE{Dst: s, Src: imc.CONST{Value: 0}},
			imc.MOVE{Dst: i, Src: imc.CONST{Value: 10}},
			imc.LABEL{Label: check},
			imc.CJUMP{Cond: imc.BINOP{Oper: imc.GTH, Fst: i, Snd: imc.CONST{Value: 0}}, Pos: body, Neg: end},
			imc.LABEL{Label: body},
			imc.MOVE{Dst: s, Src: imc.BINOP{Oper: imc.ADD, Fst: s, Snd: imc.BINOP{Oper: imc.MUL, Fst: i, Snd: i}}},
			imc.MOVE{Dst: i, Src: imc.BINOP{Oper: imc.SUB, Fst: i, Snd: imc.CONST{Value: 1}}},
			imc.JUMP{Label: check},
			imc.LABEL{Label: end},
		),
		Expr: s,
	}

	for _, k := range []int{3, 4, 8} {
		t.Run(strconv.Itoa(k), func(t *testing.T) {
			chunk, err := imclin.NewCodeChunk(frame, prog)
			require.NoError(t, err)
			code, err := asmgen.SelectCode(chunk, asmgen.Options{})
			require.NoError(t, err)
			temps := len(code.Temps())

			res, err := Allocate(code, k)
			require.NoError(t, err)
			assert.LessOrEqual(t, res.Rounds, temps+1)
			checkValid(t, code)
		})
	}
}
