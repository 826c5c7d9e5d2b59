// Package asm defines target instructions over temps: operations described
// by an assembly template, register moves and labels. Instructions carry the
// live-in and live-out sets computed by the liveness analysis.
//
// Templates refer to operands by position: `s0, `s1, ... are the used temps,
// `d0, ... the defined temps and `w is the register window of a call, whose
// number is only known once the register budget is fixed.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/raymyers/prevc/pkg/mem"
)

// Flow describes how control leaves an instruction.
type Flow int

const (
	// FlowNext continues with the next instruction and, if the instruction
	// has jump targets, possibly with one of them.
	FlowNext Flow = iota
	// FlowJump continues only with one of the jump targets.
	FlowJump
	// FlowCall continues with the next instruction. Its jump target is the
	// callee and is not part of the function's control flow.
	FlowCall
)

// Instr is a target instruction.
type Instr interface {
	Uses() []mem.Temp
	Defs() []mem.Temp
	Jumps() []mem.Label
	Flow() Flow
	// Live returns the liveness sets owned by the instruction.
	Live() *Liveness
	// Format renders the instruction with temps replaced by register names.
	Format(regs Registers) string

	implInstr()
}

// Liveness holds the temps live immediately before and after an
// instruction.
type Liveness struct {
	In  TempSet
	Out TempSet
}

// Live implements Instr.
func (l *Liveness) Live() *Liveness { return l }

// Reset empties both sets.
func (l *Liveness) Reset() {
	l.In = NewTempSet()
	l.Out = NewTempSet()
}

// Oper is an operation given by a template.
type Oper struct {
	Liveness

	Template string
	Src      []mem.Temp
	Dst      []mem.Temp
	Targets  []mem.Label
	Kind     Flow
}

// Move copies Src into Dst. The allocator may drop it once both end up in
// the same register.
type Move struct {
	Liveness

	Src mem.Temp
	Dst mem.Temp
}

// Label marks a jump target.
type Label struct {
	Liveness

	Label mem.Label
}

// NewOper builds a fallthrough operation.
func NewOper(template string, uses, defs []mem.Temp, jumps []mem.Label) *Oper {
	return &Oper{Template: template, Src: uses, Dst: defs, Targets: jumps, Kind: FlowNext}
}

// NewJump builds an operation that never falls through.
func NewJump(template string, uses []mem.Temp, jumps []mem.Label) *Oper {
	return &Oper{Template: template, Src: uses, Targets: jumps, Kind: FlowJump}
}

// NewCall builds a call to callee.
func NewCall(template string, callee mem.Label) *Oper {
	return &Oper{Template: template, Targets: []mem.Label{callee}, Kind: FlowCall}
}

// NewMove builds a register move.
func NewMove(src, dst mem.Temp) *Move {
	return &Move{Src: src, Dst: dst}
}

// NewLabel builds a label instruction.
func NewLabel(l mem.Label) *Label {
	return &Label{Label: l}
}

func (i *Oper) Uses() []mem.Temp    { return i.Src }
func (i *Oper) Defs() []mem.Temp    { return i.Dst }
func (i *Oper) Jumps() []mem.Label  { return i.Targets }
func (i *Oper) Flow() Flow          { return i.Kind }
func (i *Move) Uses() []mem.Temp    { return []mem.Temp{i.Src} }
func (i *Move) Defs() []mem.Temp    { return []mem.Temp{i.Dst} }
func (i *Move) Jumps() []mem.Label  { return nil }
func (i *Move) Flow() Flow          { return FlowNext }
func (i *Label) Uses() []mem.Temp   { return nil }
func (i *Label) Defs() []mem.Temp   { return nil }
func (i *Label) Jumps() []mem.Label { return nil }
func (i *Label) Flow() Flow         { return FlowNext }

func (*Oper) implInstr()  {}
func (*Move) implInstr()  {}
func (*Label) implInstr() {}

// Registers maps temps to register numbers. Temps without a register are
// printed by name. Window is the register number substituted for `w; a
// negative Window leaves it unexpanded.
type Registers struct {
	Colors map[mem.Temp]int
	Window int
}

func (r Registers) name(t mem.Temp) string {
	if c, ok := r.Colors[t]; ok {
		return "$" + strconv.Itoa(c)
	}
	return t.String()
}

// Format expands the template.
func (i *Oper) Format(regs Registers) string {
	var b strings.Builder

	s := i.Template
	for len(s) > 0 {
		p := strings.IndexByte(s, '`')
		if p < 0 || p+1 >= len(s) {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:p])
		s = s[p+1:]

		kind := s[0]
		s = s[1:]
		if kind == 'w' {
			if regs.Window < 0 {
				b.WriteString("`w")
			} else {
				b.WriteString("$" + strconv.Itoa(regs.Window))
			}
			continue
		}

		n := 0
		for n < len(s) && s[n] >= '0' && s[n] <= '9' {
			n++
		}
		idx, err := strconv.Atoi(s[:n])
		s = s[n:]

		var temps []mem.Temp
		switch kind {
		case 's':
			temps = i.Src
		case 'd':
			temps = i.Dst
		}
		if err != nil || idx >= len(temps) {
			fmt.Fprintf(&b, "`%c%d?", kind, idx)
			continue
		}
		b.WriteString(regs.name(temps[idx]))
	}

	return b.String()
}

// Format renders the move as SET.
func (i *Move) Format(regs Registers) string {
	return "SET " + regs.name(i.Dst) + "," + regs.name(i.Src)
}

// Format renders the label.
func (i *Label) Format(Registers) string {
	return i.Label.String()
}

func (i *Oper) String() string  { return i.Format(Registers{Window: -1}) }
func (i *Move) String() string  { return i.Format(Registers{}) }
func (i *Label) String() string { return i.Label.String() }

// IsLabel reports whether i is a label.
func IsLabel(i Instr) bool {
	_, ok := i.(*Label)
	return ok
}
