package interp

import (
	"io"

	"github.com/raymyers/prevc/pkg/mem"
)

// Runtime support routines. Each finds its single argument at SP+8.
var routines = map[mem.Label]func(m *Machine) int64{
	mem.NamedLabel("new"): func(m *Machine) int64 {
		return m.alloc(m.arg())
	},
	mem.NamedLabel("del"): func(m *Machine) int64 {
		return 0
	},
	mem.NamedLabel("putChar"): func(m *Machine) int64 {
		if m.out != nil {
			_, _ = m.out.Write([]byte{byte(m.arg())})
		}
		return 0
	},
	mem.NamedLabel("getChar"): func(m *Machine) int64 {
		if m.in == nil {
			return -1
		}
		c, err := m.in.ReadByte()
		if err == io.EOF {
			return -1
		}
		if err != nil {
			m.fail("getChar: %v", err)
		}
		return int64(c)
	},
	mem.NamedLabel("exit"): func(m *Machine) int64 {
		panic(exitSignal{code: m.arg()})
	},
}

func (m *Machine) arg() int64 {
	return m.words[m.sp+mem.WordSize]
}
