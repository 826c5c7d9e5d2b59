package regall

import (
	"github.com/raymyers/prevc/pkg/asm"
	"github.com/raymyers/prevc/pkg/asmgen"
	"github.com/raymyers/prevc/pkg/mem"
	"github.com/raymyers/prevc/pkg/report"
)

// spill moves t into a new frame slot below the saved registers. Every
// instruction using t loads a fresh temp from the slot first; every
// instruction defining t stores its fresh temp afterwards. It returns the
// temps it created.
func spill(code *asm.Code, t mem.Temp) asm.TempSet {
	code.TempSize += mem.WordSize
	offset := -code.Frame.LocsSize - mem.SavedRegsSize - code.TempSize
	code.Spills[t] = offset

	fp := code.Frame.FP
	created := asm.NewTempSet()

	instrs := make([]asm.Instr, 0, len(code.Instrs))
	for _, instr := range code.Instrs {
		inUse := contains(instr.Uses(), t)
		inDef := contains(instr.Defs(), t)
		if !inUse && !inDef {
			instrs = append(instrs, instr)
			continue
		}

		tmp := mem.NewTemp()
		created.Add(tmp)

		if inUse {
			load, off := asmgen.Constant(offset)
			created.Add(off)
			instrs = append(instrs, load...)
			instrs = append(instrs, asm.NewOper("LDO `d0,`s0,`s1", []mem.Temp{fp, off}, []mem.Temp{tmp}, nil))
		}

		instrs = append(instrs, replace(instr, t, tmp))

		if inDef {
			load, off := asmgen.Constant(offset)
			created.Add(off)
			instrs = append(instrs, load...)
			instrs = append(instrs, asm.NewOper("STO `s0,`s1,`s2", []mem.Temp{tmp, fp, off}, nil, nil))
		}
	}

	code.Instrs = instrs
	return created
}

func contains(ts []mem.Temp, t mem.Temp) bool {
	for _, u := range ts {
		if u == t {
			return true
		}
	}
	return false
}

func substitute(ts []mem.Temp, old, repl mem.Temp) []mem.Temp {
	res := make([]mem.Temp, len(ts))
	for i, t := range ts {
		if t == old {
			t = repl
		}
		res[i] = t
	}
	return res
}

// replace returns a copy of instr with old renamed to repl.
func replace(instr asm.Instr, old, repl mem.Temp) asm.Instr {
	switch i := instr.(type) {
	case *asm.Oper:
		return &asm.Oper{
			Template: i.Template,
			Src:      substitute(i.Src, old, repl),
			Dst:      substitute(i.Dst, old, repl),
			Targets:  i.Targets,
			Kind:     i.Kind,
		}
	case *asm.Move:
		return asm.NewMove(substitute([]mem.Temp{i.Src}, old, repl)[0], substitute([]mem.Temp{i.Dst}, old, repl)[0])
	}

	report.Internal("spilled temp %s in %T", old, instr)
	return nil
}
