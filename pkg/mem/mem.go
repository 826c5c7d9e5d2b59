// Package mem models the memory layout seen by the code generator: temps
// (abstract registers), labels, function frames and variable accesses.
//
// Frames and accesses are produced by the layout phase and consumed as
// read-only descriptors. Temps and labels are process-wide unique so that
// functions can be compiled independently, possibly in parallel.
package mem

import (
	"fmt"

	"go.uber.org/atomic"
)

var (
	tempCount  = atomic.NewInt64(0)
	labelCount = atomic.NewInt64(0)
)

// Temp is an abstract register with an unbounded supply.
type Temp int64

// NewTemp returns a temp never returned before in this process.
func NewTemp() Temp {
	return Temp(tempCount.Inc())
}

func (t Temp) String() string {
	return fmt.Sprintf("T%d", int64(t))
}

// Label names a code or data address.
type Label string

// NewLabel returns a fresh anonymous label.
func NewLabel() Label {
	return Label(fmt.Sprintf("L%d", labelCount.Inc()))
}

// NamedLabel returns the label of a global entity.
func NamedLabel(name string) Label {
	return Label("_" + name)
}

func (l Label) String() string {
	return string(l)
}

// Bookkeeping area between the locals and the outgoing arguments: the
// caller's frame pointer and the return address.
const SavedRegsSize = 16

// WordSize is the size of every scalar value.
const WordSize = 8

// Frame describes the activation record of one function.
type Frame struct {
	Label    Label // entry point of the function
	Depth    int64 // static nesting depth, 0 for global functions
	LocsSize int64 // bytes of local variables
	ArgsSize int64 // bytes of the outgoing argument area, static link included
	Size     int64 // LocsSize + SavedRegsSize + ArgsSize

	FP Temp // frame pointer
	RV Temp // return value
}

// NewFrame creates a frame with fresh FP and RV temps.
func NewFrame(label Label, depth, locsSize, argsSize int64) *Frame {
	return &Frame{
		Label:    label,
		Depth:    depth,
		LocsSize: locsSize,
		ArgsSize: argsSize,
		Size:     locsSize + SavedRegsSize + argsSize,
		FP:       NewTemp(),
		RV:       NewTemp(),
	}
}

func (f *Frame) String() string {
	return fmt.Sprintf("FRAME(%s,depth=%d,locs=%d,args=%d,size=%d,FP=%s,RV=%s)",
		f.Label, f.Depth, f.LocsSize, f.ArgsSize, f.Size, f.FP, f.RV)
}

// Access describes where a variable, parameter or record component lives.
type Access interface {
	implAccess()
	ByteSize() int64
}

// AbsAccess is a statically allocated entity addressed by a label.
type AbsAccess struct {
	Size  int64
	Label Label
	Init  *string // initial contents, for string constants
}

// RelAccess is an entity at a fixed offset from a frame pointer or from the
// start of a record.
type RelAccess struct {
	Size   int64
	Offset int64
	Depth  int64 // declaring frame's depth plus one, 0 for record components
}

func (AbsAccess) implAccess() {}
func (RelAccess) implAccess() {}

func (a AbsAccess) ByteSize() int64 { return a.Size }
func (a RelAccess) ByteSize() int64 { return a.Size }
