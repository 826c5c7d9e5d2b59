package asm

import (
	"sort"
	"strings"

	"github.com/raymyers/prevc/pkg/mem"
)

// TempSet is a set of temps.
type TempSet map[mem.Temp]struct{}

// NewTempSet creates a set holding ts.
func NewTempSet(ts ...mem.Temp) TempSet {
	s := make(TempSet, len(ts))
	for _, t := range ts {
		s[t] = struct{}{}
	}
	return s
}

func (s TempSet) Add(t mem.Temp) {
	s[t] = struct{}{}
}

func (s TempSet) Contains(t mem.Temp) bool {
	_, ok := s[t]
	return ok
}

// AddAll adds every element of o and reports whether s grew.
func (s TempSet) AddAll(o TempSet) bool {
	n := len(s)
	for t := range o {
		s[t] = struct{}{}
	}
	return len(s) != n
}

// Union returns a new set.
func (s TempSet) Union(o TempSet) TempSet {
	r := s.Copy()
	r.AddAll(o)
	return r
}

// Minus returns a new set.
func (s TempSet) Minus(o TempSet) TempSet {
	r := make(TempSet, len(s))
	for t := range s {
		if !o.Contains(t) {
			r[t] = struct{}{}
		}
	}
	return r
}

func (s TempSet) Equal(o TempSet) bool {
	if len(s) != len(o) {
		return false
	}
	for t := range s {
		if !o.Contains(t) {
			return false
		}
	}
	return true
}

func (s TempSet) Copy() TempSet {
	r := make(TempSet, len(s))
	for t := range s {
		r[t] = struct{}{}
	}
	return r
}

// Slice returns the elements in increasing order.
func (s TempSet) Slice() []mem.Temp {
	r := make([]mem.Temp, 0, len(s))
	for t := range s {
		r = append(r, t)
	}
	sort.Slice(r, func(i, j int) bool { return r[i] < r[j] })
	return r
}

func (s TempSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, t := range s.Slice() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.String())
	}
	b.WriteByte('}')
	return b.String()
}
