// Package livean computes the live-in and live-out sets of every instruction
// of a function by iterating the dataflow equations to a fixed point.
package livean

import (
	"github.com/raymyers/prevc/pkg/asm"
	"github.com/raymyers/prevc/pkg/mem"
	"github.com/raymyers/prevc/pkg/report"
)

// Analyze recomputes the liveness sets of code. The function's exit label
// is outside the instruction list; jumping to it keeps the return value live
// unless it has been spilled to memory.
func Analyze(code *asm.Code) (passes int, err error) {
	exit := asm.NewTempSet()
	if _, spilled := code.Spills[code.Frame.RV]; !spilled {
		exit.Add(code.Frame.RV)
	}
	return AnalyzeInstrs(code.Instrs, map[mem.Label]asm.TempSet{code.Exit: exit})
}

// AnalyzeInstrs recomputes the liveness sets of instrs. exits gives the
// live-in sets of labels outside the list. It returns the number of passes
// over the list.
func AnalyzeInstrs(instrs []asm.Instr, exits map[mem.Label]asm.TempSet) (passes int, err error) {
	defer report.Recover(&err)

	labels := make(map[mem.Label]int)
	for i, instr := range instrs {
		if l, ok := instr.(*asm.Label); ok {
			labels[l.Label] = i
		}
	}

	succs := make([][]int, len(instrs))
	extra := make([]asm.TempSet, len(instrs))
	for i, instr := range instrs {
		if instr.Flow() != asm.FlowJump && i+1 < len(instrs) {
			succs[i] = append(succs[i], i+1)
		}
		if instr.Flow() == asm.FlowCall {
			continue
		}
		for _, l := range instr.Jumps() {
			if j, ok := labels[l]; ok {
				succs[i] = append(succs[i], j)
				continue
			}
			live, ok := exits[l]
			if !ok {
				report.Internal("jump to unknown label %s", l)
			}
			if extra[i] == nil {
				extra[i] = asm.NewTempSet()
			}
			extra[i].AddAll(live)
		}
	}

	for _, instr := range instrs {
		live := instr.Live()
		live.Reset()
		for _, t := range instr.Uses() {
			live.In.Add(t)
		}
	}

	for changed := true; changed; {
		changed = false
		passes++

		for i := len(instrs) - 1; i >= 0; i-- {
			live := instrs[i].Live()

			if extra[i] != nil && live.Out.AddAll(extra[i]) {
				changed = true
			}
			for _, j := range succs[i] {
				if live.Out.AddAll(instrs[j].Live().In) {
					changed = true
				}
			}

			defs := asm.NewTempSet(instrs[i].Defs()...)
			for t := range live.Out {
				if !defs.Contains(t) && !live.In.Contains(t) {
					live.In.Add(t)
					changed = true
				}
			}
		}
	}

	return passes, nil
}
