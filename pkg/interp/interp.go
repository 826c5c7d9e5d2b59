// Package interp executes intermediate code directly. It runs both the trees
// produced by imcgen and the canonical statement lists produced by imclin,
// so the two can be compared on the same program.
//
// Memory is a sparse map of 8-byte words. Every function activation owns its
// temps; its frame pointer is the caller's stack pointer and its stack
// pointer is FP - Frame.Size.
package interp

import (
	"bufio"
	"io"

	"tlog.app/go/errors"

	"github.com/raymyers/prevc/pkg/imc"
	"github.com/raymyers/prevc/pkg/imclin"
	"github.com/raymyers/prevc/pkg/mem"
)

const (
	StackTop  int64 = 0x7FFFFFFFFFFFFFF8
	DataStart int64 = 0x2000000000000000

	// DefaultMaxSteps bounds the number of executed statements.
	DefaultMaxSteps = 10_000_000
)

// Function is a unit the machine can call.
type Function struct {
	Frame *mem.Frame
	Stmts []imc.Stmt
}

// Machine is an intermediate code interpreter.
type Machine struct {
	MaxSteps int

	words  map[int64]int64
	labels map[mem.Label]int64
	funcs  map[mem.Label]*Function
	heap   int64
	sp     int64
	steps  int

	in  *bufio.Reader
	out io.Writer
}

type activation struct {
	fun   *Function
	temps map[mem.Temp]int64
}

// runtimeError aborts execution.
type runtimeError struct {
	err error
}

// exitSignal is raised by the _exit routine.
type exitSignal struct {
	code int64
}

// New creates a machine reading _getChar input from in and writing _putChar
// output to out. Either may be nil.
func New(in io.Reader, out io.Writer) *Machine {
	m := &Machine{
		MaxSteps: DefaultMaxSteps,
		words:    make(map[int64]int64),
		labels:   make(map[mem.Label]int64),
		funcs:    make(map[mem.Label]*Function),
		heap:     DataStart,
		sp:       StackTop,
		out:      out,
	}
	if in != nil {
		m.in = bufio.NewReader(in)
	}
	return m
}

// LoadProgram loads the data and code chunks of a linearized program.
func (m *Machine) LoadProgram(p *imclin.Program) {
	for _, d := range p.Data {
		m.LoadData(d)
	}
	for _, c := range p.Code {
		m.AddFunction(c.Frame, c.Stmts)
	}
}

// LoadData allocates a data chunk and stores its initial contents, one
// character per word followed by a zero word.
func (m *Machine) LoadData(d *imclin.DataChunk) {
	addr := m.alloc(d.Size)
	m.labels[d.Label] = addr
	if d.Init != nil {
		for i, c := range []byte(*d.Init) {
			m.words[addr+int64(i)*mem.WordSize] = int64(c)
		}
	}
}

// AddFunction registers a function under its frame label. The body runs
// until it falls off its end or jumps to a label it does not define.
func (m *Machine) AddFunction(frame *mem.Frame, stmts []imc.Stmt) {
	m.funcs[frame.Label] = &Function{Frame: frame, Stmts: stmts}
}

// AddTree registers a function whose body is an unlinearized expression.
func (m *Machine) AddTree(frame *mem.Frame, body imc.Expr) {
	m.AddFunction(frame, []imc.Stmt{imc.MOVE{Dst: imc.TEMP{Temp: frame.RV}, Src: body}})
}

// Address returns the address of a data label.
func (m *Machine) Address(l mem.Label) (int64, bool) {
	addr, ok := m.labels[l]
	return addr, ok
}

// Load reads the word at addr.
func (m *Machine) Load(addr int64) int64 {
	return m.words[addr]
}

// Steps returns the number of statements executed so far.
func (m *Machine) Steps() int {
	return m.steps
}

// Call calls the function at label with the given arguments; args[0] is the
// static link. Arguments are stored at consecutive words of the callee's
// frame.
func (m *Machine) Call(label mem.Label, args ...int64) (res int64, err error) {
	defer m.recover(&err, nil)

	offs := make([]int64, len(args))
	for i := range args {
		offs[i] = int64(i) * mem.WordSize
	}
	return m.call(label, offs, args), nil
}

// Run calls _main and returns its result, or the code passed to _exit.
func (m *Machine) Run() (code int64, err error) {
	defer m.recover(&err, &code)

	return m.call(mem.NamedLabel("main"), []int64{0}, []int64{0}), nil
}

func (m *Machine) recover(err *error, code *int64) {
	r := recover()
	if r == nil {
		return
	}

	switch r := r.(type) {
	case runtimeError:
		*err = r.err
	case exitSignal:
		if code == nil {
			*err = errors.New("exit %d", r.code)
			return
		}
		*code = r.code
	default:
		panic(r)
	}
}

func (m *Machine) fail(format string, args ...interface{}) {
	panic(runtimeError{err: errors.New(format, args...)})
}

func (m *Machine) alloc(size int64) int64 {
	addr := m.heap
	m.heap += (size + mem.WordSize - 1) / mem.WordSize * mem.WordSize
	return addr
}

func (m *Machine) call(label mem.Label, offs, args []int64) int64 {
	for i, off := range offs {
		m.words[m.sp+off] = args[i]
	}

	if rt, ok := routines[label]; ok {
		return rt(m)
	}

	fun := m.funcs[label]
	if fun == nil {
		m.fail("call to undefined function %s", label)
	}

	act := &activation{fun: fun, temps: make(map[mem.Temp]int64)}
	fp := m.sp
	act.temps[fun.Frame.FP] = fp
	m.sp = fp - fun.Frame.Size

	// A jump out of the body is the jump to the exit label.
	m.exec(act, fun.Stmts)

	m.sp = fp
	rv := act.temps[fun.Frame.RV]
	m.words[fp] = rv
	return rv
}

// exec runs a statement list. A jump to a label the list does not define
// leaves the list and is reported to the caller.
func (m *Machine) exec(act *activation, stmts []imc.Stmt) (mem.Label, bool) {
	stmts = flatten(stmts)
	labels := make(map[mem.Label]int)
	for i, s := range stmts {
		if l, ok := s.(imc.LABEL); ok {
			labels[l.Label] = i
		}
	}

	for pc := 0; pc < len(stmts); pc++ {
		m.steps++
		if m.MaxSteps > 0 && m.steps > m.MaxSteps {
			m.fail("step limit %d exceeded", m.MaxSteps)
		}

		var target mem.Label
		switch s := stmts[pc].(type) {
		case imc.LABEL:
			continue
		case imc.ESTMT:
			m.eval(act, s.Expr)
			continue
		case imc.MOVE:
			m.move(act, s)
			continue
		case imc.JUMP:
			target = s.Label
		case imc.CJUMP:
			target = s.Neg
			if m.eval(act, s.Cond) != 0 {
				target = s.Pos
			}
		default:
			m.fail("unexpected statement %T", s)
		}

		i, ok := labels[target]
		if !ok {
			return target, true
		}
		pc = i
	}

	return "", false
}

func (m *Machine) move(act *activation, s imc.MOVE) {
	switch dst := s.Dst.(type) {
	case imc.TEMP:
		act.temps[dst.Temp] = m.eval(act, s.Src)
	case imc.MEM:
		addr := m.eval(act, dst.Addr)
		m.words[addr] = m.eval(act, s.Src)
	default:
		m.fail("move to %s", imc.ExprString(s.Dst))
	}
}

func (m *Machine) eval(act *activation, e imc.Expr) int64 {
	switch e := e.(type) {
	case imc.CONST:
		return e.Value
	case imc.TEMP:
		return act.temps[e.Temp]
	case imc.MEM:
		return m.words[m.eval(act, e.Addr)]
	case imc.NAME:
		addr, ok := m.labels[e.Label]
		if !ok {
			m.fail("unknown label %s", e.Label)
		}
		return addr
	case imc.BINOP:
		fst := m.eval(act, e.Fst)
		snd := m.eval(act, e.Snd)
		return m.binop(e.Oper, fst, snd)
	case imc.UNOP:
		v := m.eval(act, e.Sub)
		if e.Oper == imc.NOT {
			return 1 - v
		}
		return -v
	case imc.CALL:
		args := make([]int64, len(e.Args))
		for i, arg := range e.Args {
			args[i] = m.eval(act, arg)
		}
		return m.call(e.Label, e.Offs, args)
	case imc.SEXPR:
		if l, ok := m.exec(act, []imc.Stmt{e.Stmt}); ok {
			m.fail("jump to %s leaves a statement expression", l)
		}
		return m.eval(act, e.Expr)
	}

	m.fail("unexpected expression %T", e)
	return 0
}

func (m *Machine) binop(op imc.BinOper, x, y int64) int64 {
	switch op {
	case imc.OR:
		return x | y
	case imc.AND:
		return x & y
	case imc.EQU:
		return b2i(x == y)
	case imc.NEQ:
		return b2i(x != y)
	case imc.LTH:
		return b2i(x < y)
	case imc.GTH:
		return b2i(x > y)
	case imc.LEQ:
		return b2i(x <= y)
	case imc.GEQ:
		return b2i(x >= y)
	case imc.ADD:
		return x + y
	case imc.SUB:
		return x - y
	case imc.MUL:
		return x * y
	case imc.DIV, imc.MOD:
		if y == 0 {
			m.fail("division by zero")
		}
		q, r := floorDiv(x, y)
		if op == imc.DIV {
			return q
		}
		return r
	}

	m.fail("unexpected operator %v", op)
	return 0
}

// floorDiv divides rounding towards negative infinity, like the target's
// DIV instruction.
func floorDiv(x, y int64) (q, r int64) {
	q, r = x/y, x%y
	if r != 0 && (r < 0) != (y < 0) {
		q--
		r += y
	}
	return q, r
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func flatten(stmts []imc.Stmt) []imc.Stmt {
	var res []imc.Stmt
	for _, s := range stmts {
		if seq, ok := s.(imc.STMTS); ok {
			res = append(res, flatten(seq.Stmts)...)
			continue
		}
		res = append(res, s)
	}
	return res
}
