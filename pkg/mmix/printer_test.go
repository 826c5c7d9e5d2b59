package mmix

import (
	"bytes"
	"strings"
	"testing"

	"github.com/raymyers/prevc/pkg/asm"
	"github.com/raymyers/prevc/pkg/imclin"
	"github.com/raymyers/prevc/pkg/mem"
)

func TestPrintCode(t *testing.T) {
	frame := mem.NewFrame(mem.NamedLabel("main"), 0, 8, 16)
	a := mem.NewTemp()
	entry, mid, exit := mem.NewLabel(), mem.NewLabel(), mem.NewLabel()

	code := &asm.Code{
		Frame: frame,
		Entry: entry,
		Exit:  exit,
		Instrs: []asm.Instr{
			asm.NewLabel(entry),
			asm.NewLabel(mid),
			asm.NewOper("SETL `d0,7", nil, []mem.Temp{a}, nil),
			asm.NewMove(a, frame.RV),
			asm.NewCall("PUSHJ `w,_f", mem.NamedLabel("f")),
			asm.NewJump("JMP "+exit.String(), nil, []mem.Label{exit}),
		},
		TempSize: 8,
		Regs:     map[mem.Temp]int{a: 2, frame.RV: 2, frame.FP: 253},
	}

	var buf bytes.Buffer
	NewPrinter(&buf, 8).PrintCode(code)
	out := buf.String()

	wants := []string{
		"_main\tSWYM\n",
		// saved registers plus locals, then frame size plus spill slot
		"\tSETL $0,24\n",
		"\tSETL $0,48\n",
		"\tJMP " + entry.String() + "\n",
		// a label followed by a label
		entry.String() + "\tSWYM\n",
		mid.String() + "\tSETL $2,7\n",
		"\tPUSHJ $8,_f\n",
		exit.String() + "\tSWYM\n",
		"\tSTO $2,$253,0\n",
		"\tPOP 0,0\n",
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}

	// The move between equal registers is dropped.
	if strings.Contains(out, "SET $2,$2") {
		t.Errorf("redundant move kept:\n%s", out)
	}
}

func TestPrintSpilledReturnValue(t *testing.T) {
	frame := mem.NewFrame(mem.NamedLabel("f"), 0, 0, 0)
	code := &asm.Code{
		Frame:  frame,
		Entry:  mem.NewLabel(),
		Exit:   mem.NewLabel(),
		Regs:   map[mem.Temp]int{frame.FP: 253},
		Spills: map[mem.Temp]int64{frame.RV: -24},
	}
	code.Instrs = []asm.Instr{asm.NewLabel(code.Entry)}

	var buf bytes.Buffer
	NewPrinter(&buf, 4).PrintCode(code)
	out := buf.String()

	for _, want := range []string{"\tLDO $0,$253,$1\n", "\tSTO $0,$253,0\n", code.Entry.String() + "\tSWYM\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestPrintProgram(t *testing.T) {
	hello := "hi"
	data := []*imclin.DataChunk{
		{Label: "_x", Size: 8},
		{Label: "_arr", Size: 80},
		{Label: "L1", Size: 24, Init: &hello},
	}

	var buf bytes.Buffer
	if err := NewPrinter(&buf, 8).PrintProgram(&Program{Data: data}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	wants := []string{
		"\tLOC Data_Segment\n",
		"_x\tOCTA\n",
		"_arr\tOCTA\n\tLOC _arr+80\n",
		"L1\tOCTA 104,105,0\n",
		"\tLOC #100\n",
		"Main\tSET $0,252\n",
		"\tPUSHJ $8,_main\n",
		"_new\tSTO $252,$254,0\n",
		"_putChar\tLDO $0,$254,8\n",
		"_exit\tTRAP 0,Halt,0\n",
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestPrintMissingReturnValue(t *testing.T) {
	frame := mem.NewFrame(mem.NamedLabel("f"), 0, 0, 0)
	code := &asm.Code{Frame: frame, Entry: mem.NewLabel(), Exit: mem.NewLabel()}

	var buf bytes.Buffer
	err := NewPrinter(&buf, 4).PrintProgram(&Program{Code: []*asm.Code{code}})
	if err == nil {
		t.Fatal("expected an error")
	}
}
