package asm

import (
	"fmt"
	"io"

	"github.com/raymyers/prevc/pkg/mem"
)

// Code is the instruction list of one function. Instrs starts with the
// entry label; the exit label is emitted by the epilogue.
type Code struct {
	Frame  *mem.Frame
	Entry  mem.Label
	Exit   mem.Label
	Instrs []Instr

	// TempSize is the size of the spill area below the saved registers.
	TempSize int64
	// Regs is the register assignment, filled in by the allocator.
	Regs map[mem.Temp]int
	// Spills maps spilled temps to their FP-relative slots.
	Spills map[mem.Temp]int64
}

// FrameSize is the full frame size including spill slots.
func (c *Code) FrameSize() int64 {
	return c.Frame.Size + c.TempSize
}

// Temps returns every temp used or defined by the code.
func (c *Code) Temps() TempSet {
	s := NewTempSet()
	for _, i := range c.Instrs {
		for _, t := range i.Uses() {
			s.Add(t)
		}
		for _, t := range i.Defs() {
			s.Add(t)
		}
	}
	return s
}

// Printer writes instruction listings.
type Printer struct {
	w io.Writer

	// Live adds the live-in and live-out sets of every instruction.
	Live bool
	// Window is the register number printed for `w, negative to keep it.
	Window int
}

// NewPrinter creates a listing printer.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, Window: -1}
}

// PrintCode lists one function, with registers if it has been allocated.
func (p *Printer) PrintCode(c *Code) {
	regs := Registers{Colors: c.Regs, Window: p.Window}

	fmt.Fprintf(p.w, "%s: %s entry=%s exit=%s temps=%d\n", c.Frame.Label, c.Frame, c.Entry, c.Exit, c.TempSize)
	for _, i := range c.Instrs {
		text := i.Format(regs)
		if IsLabel(i) {
			text += ":"
		} else {
			text = "\t" + text
		}

		if p.Live {
			live := i.Live()
			fmt.Fprintf(p.w, "%-32s in=%s out=%s\n", text, live.In, live.Out)
			continue
		}
		fmt.Fprintln(p.w, text)
	}
	fmt.Fprintln(p.w)
}

// PrintProgram lists every function.
func (p *Printer) PrintProgram(codes []*Code) {
	for _, c := range codes {
		p.PrintCode(c)
	}
}
