// Package regall assigns physical registers to temps by graph coloring.
//
// Every allocation round recomputes liveness, builds the interference graph,
// simplifies it onto a stack (choosing potential spills when no low-degree
// node is left) and colors it with the K registers $0..$K-1. Temps that
// cannot be colored are moved to frame slots and the round is repeated.
// The frame pointer is not part of the graph; it always lives in $253.
package regall

import (
	"github.com/raymyers/prevc/pkg/asm"
	"github.com/raymyers/prevc/pkg/livean"
	"github.com/raymyers/prevc/pkg/mem"
	"github.com/raymyers/prevc/pkg/report"
)

const (
	// HeapReg holds the heap pointer.
	HeapReg = 252
	// FPReg holds the frame pointer.
	FPReg = 253
	// MaxRegs is the largest register budget: $K is the call window and
	// must stay below the heap pointer.
	MaxRegs = HeapReg - 1
	// MinRegs is the smallest register budget: spill code holds a value and
	// a frame offset at the same time.
	MinRegs = 2
)

// Result describes a finished allocation.
type Result struct {
	// Rounds is the number of build-color attempts, the last one successful.
	Rounds int
	// Spilled lists every temp moved to memory, in spill order.
	Spilled []mem.Temp
}

// Allocate colors code with k registers. On success code.Regs maps every
// temp of the final instruction list to its register, code.Spills maps
// spilled temps to their frame slots and code.TempSize covers the slots.
//
// Allocation fails with a ConfigError when k is out of range, when some
// instruction needs more than k registers at once, or when the spill loop
// does not finish within one round per distinct temp of the code as given.
func Allocate(code *asm.Code, k int) (res *Result, err error) {
	defer report.Recover(&err)

	if k < MinRegs || k > MaxRegs {
		return nil, report.Config("register count %d out of range [%d,%d]", k, MinRegs, MaxRegs)
	}

	fp := code.Frame.FP
	temps := code.Temps()
	delete(temps, fp)
	maxRounds := len(temps) + 1

	if code.Spills == nil {
		code.Spills = make(map[mem.Temp]int64)
	}
	avoid := asm.NewTempSet()
	res = &Result{}

	for {
		res.Rounds++
		if res.Rounds > maxRounds {
			return nil, report.Config("%s: no coloring with %d registers after %d rounds", code.Frame.Label, k, maxRounds)
		}

		if err := checkPressure(code.Instrs, fp, k); err != nil {
			return nil, err
		}

		if _, err := livean.Analyze(code); err != nil {
			return nil, err
		}

		g := build(code.Instrs, fp, k, avoid)
		g.reduce()
		spilled := g.assignColors()

		if len(spilled) == 0 {
			code.Regs = make(map[mem.Temp]int, len(g.nodes)+1)
			for _, n := range g.nodes {
				code.Regs[n.temp] = n.color
			}
			code.Regs[fp] = FPReg
			return res, nil
		}

		for _, t := range spilled {
			newTemps := spill(code, t)
			avoid.AddAll(newTemps)
			res.Spilled = append(res.Spilled, t)
		}
	}
}

// checkPressure rejects instructions that need more than k registers by
// themselves. A definition may reuse the register of a use.
func checkPressure(instrs []asm.Instr, fp mem.Temp, k int) error {
	for _, instr := range instrs {
		uses := asm.NewTempSet(instr.Uses()...)
		defs := asm.NewTempSet(instr.Defs()...)
		delete(uses, fp)
		delete(defs, fp)

		need := len(uses)
		if len(defs) > need {
			need = len(defs)
		}
		if need > k {
			return report.Config("instruction %q needs %d registers, only %d available",
				instr.Format(asm.Registers{Window: -1}), need, k)
		}
	}
	return nil
}
