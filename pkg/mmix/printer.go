// Package mmix writes a finished program as an MMIXAL source file: static
// data, start-up code, every function wrapped in its prologue and epilogue,
// and the runtime support routines.
//
// Register conventions: $0..$K-1 hold temps, $K is the call window, $252 is
// the heap pointer, $253 the frame pointer and $254 the stack pointer.
package mmix

import (
	"fmt"
	"io"
	"strings"

	"github.com/raymyers/prevc/pkg/asm"
	"github.com/raymyers/prevc/pkg/imclin"
	"github.com/raymyers/prevc/pkg/mem"
	"github.com/raymyers/prevc/pkg/report"
)

const (
	StackTop  int64 = 0x7FFFFFFFFFFFFFF8
	DataStart int64 = 0x2000000000000000
)

// Size of the I/O buffers at the start of the data segment.
const ioDataSize = 24

// Program is everything that goes into one output file.
type Program struct {
	Data []*imclin.DataChunk
	Code []*asm.Code
}

// Printer writes MMIXAL.
type Printer struct {
	w io.Writer
	k int
}

// NewPrinter creates a printer for code allocated with k registers.
func NewPrinter(w io.Writer, k int) *Printer {
	return &Printer{w: w, k: k}
}

func (p *Printer) line(label, instr string) {
	if instr == "" {
		fmt.Fprintf(p.w, "%s\n", label)
		return
	}
	fmt.Fprintf(p.w, "%s\t%s\n", label, instr)
}

func (p *Printer) loadConst(reg string, v int64) {
	ops := [...]string{"SETL", "INCML", "INCMH", "INCH"}
	for i, op := range ops {
		wyde := uint64(v) >> (16 * i) & 0xFFFF
		if i == 0 || wyde != 0 {
			p.line("", fmt.Sprintf("%s %s,%d", op, reg, wyde))
		}
	}
}

// PrintProgram writes the whole program.
func (p *Printer) PrintProgram(prog *Program) (err error) {
	defer report.Recover(&err)

	dataSize := p.printData(prog.Data)
	fmt.Fprintln(p.w)

	p.line("", "LOC #100")
	p.printStart(dataSize)
	fmt.Fprintln(p.w)

	for _, code := range prog.Code {
		p.PrintCode(code)
		fmt.Fprintln(p.w)
	}

	p.printRuntime()
	return nil
}

func (p *Printer) printData(chunks []*imclin.DataChunk) int64 {
	p.line("", "LOC Data_Segment")
	p.line("OutBuf", "BYTE 0,0")
	p.line("InBuf", "BYTE 0")
	p.line("Arg", "OCTA InBuf,1")

	size := int64(ioDataSize)
	for _, d := range chunks {
		label := d.Label.String()
		switch {
		case d.Init != nil:
			var chars []string
			for _, c := range []byte(*d.Init) {
				chars = append(chars, fmt.Sprint(c))
			}
			chars = append(chars, "0")
			p.line(label, "OCTA "+strings.Join(chars, ","))
		case d.Size > mem.WordSize:
			p.line(label, "OCTA")
			p.line("", fmt.Sprintf("LOC %s+%d", label, d.Size))
		default:
			p.line(label, "OCTA")
		}
		size += d.Size
	}

	return size
}

func (p *Printer) printStart(dataSize int64) {
	p.line("Main", "SET $0,252")
	p.line("", "PUT rG,$0")
	for i := 0; i < 4; i++ {
		p.line("", "GREG 0")
	}

	p.loadConst("$0", StackTop)
	p.line("", "ADD $254,$0,0")
	p.loadConst("$0", DataStart+dataSize)
	p.line("", "ADD $252,$0,0")

	p.line("", fmt.Sprintf("PUSHJ $%d,_main", p.k))
	p.line("", "TRAP 0,Halt,0")
}

// PrintCode writes one function with its prologue and epilogue.
func (p *Printer) PrintCode(code *asm.Code) {
	frame := code.Frame
	regs := asm.Registers{Colors: code.Regs, Window: p.k}

	// Prologue: save FP and the return address below the locals, then
	// move FP and SP.
	p.line(frame.Label.String(), "SWYM")
	p.loadConst("$0", mem.SavedRegsSize+frame.LocsSize)
	p.line("", "NEG $0,$0")
	p.line("", "STO $253,$254,$0")
	p.line("", "ADD $0,$0,8")
	p.line("", "GET $1,rJ")
	p.line("", "STO $1,$254,$0")
	p.line("", "ADD $253,$254,0")
	p.loadConst("$0", code.FrameSize())
	p.line("", "SUB $254,$254,$0")
	p.line("", "JMP "+code.Entry.String())

	var pending []string
	for _, instr := range code.Instrs {
		if l, ok := instr.(*asm.Label); ok {
			pending = append(pending, l.Label.String())
			continue
		}
		if mv, ok := instr.(*asm.Move); ok && p.sameRegister(code, mv) {
			continue
		}

		label := ""
		if n := len(pending); n > 0 {
			for _, l := range pending[:n-1] {
				p.line(l, "SWYM")
			}
			label = pending[n-1]
			pending = pending[:0]
		}
		p.line(label, instr.Format(regs))
	}
	for _, l := range pending {
		p.line(l, "SWYM")
	}

	// Epilogue: store the result at FP, restore SP, FP and the return
	// address and return.
	p.line(code.Exit.String(), "SWYM")
	if reg, ok := code.Regs[frame.RV]; ok {
		p.line("", fmt.Sprintf("STO $%d,$253,0", reg))
	} else if off, ok := code.Spills[frame.RV]; ok {
		p.loadConst("$1", off)
		p.line("", "LDO $0,$253,$1")
		p.line("", "STO $0,$253,0")
	} else {
		report.Internal("%s: return value has no location", frame.Label)
	}
	p.line("", "ADD $254,$253,0")
	p.loadConst("$0", mem.SavedRegsSize+frame.LocsSize)
	p.line("", "NEG $0,$0")
	p.line("", "LDO $253,$254,$0")
	p.line("", "ADD $0,$0,8")
	p.line("", "LDO $0,$254,$0")
	p.line("", "PUT rJ,$0")
	p.line("", "POP 0,0")
}

func (p *Printer) sameRegister(code *asm.Code, mv *asm.Move) bool {
	src, ok1 := code.Regs[mv.Src]
	dst, ok2 := code.Regs[mv.Dst]
	return ok1 && ok2 && src == dst
}

// printRuntime writes the support routines. Each takes its argument at
// $254+8 and leaves its result at $254+0.
func (p *Printer) printRuntime() {
	p.line("_getChar", "LDA $255,Arg")
	p.line("", "TRAP 0,Fread,StdIn")
	p.line("", "LDA $255,InBuf")
	p.line("", "LDB $0,$255,0")
	p.line("", "STO $0,$254,0")
	p.line("", "POP 0,0")

	p.line("_putChar", "LDO $0,$254,8")
	p.line("", "LDA $255,OutBuf")
	p.line("", "STB $0,$255,0")
	p.line("", "TRAP 0,Fputs,StdOut")
	p.line("", "POP 0,0")

	p.line("_new", "STO $252,$254,0")
	p.line("", "LDO $0,$254,8")
	p.line("", "ADD $252,$252,$0")
	p.line("", "POP 0,0")

	p.line("_del", "POP 0,0")

	p.line("_exit", "TRAP 0,Halt,0")
}
