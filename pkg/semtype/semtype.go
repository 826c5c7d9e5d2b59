// Package semtype defines resolved semantic types. Every scalar occupies one
// 8-byte word; aggregates are laid out without padding.
package semtype

import (
	"fmt"
	"strings"
)

// Type is a resolved type.
type Type interface {
	implType()
	Size() int64
	String() string
}

type Void struct{}
type Char struct{}
type Int struct{}
type Bool struct{}

// Ptr is a pointer to Base.
type Ptr struct {
	Base Type
}

// Arr is an array of Len elements.
type Arr struct {
	Elem Type
	Len  int64
}

// Comp is one named record component.
type Comp struct {
	Name string
	Type Type
}

// Rec is a record.
type Rec struct {
	Comps []Comp
}

// Name is a named type; Type is filled in once the declaration is resolved,
// which allows recursive types through pointers.
type Name struct {
	Ident string
	Type  Type
}

func (Void) implType()  {}
func (Char) implType()  {}
func (Int) implType()   {}
func (Bool) implType()  {}
func (*Ptr) implType()  {}
func (*Arr) implType()  {}
func (*Rec) implType()  {}
func (*Name) implType() {}

func (Void) Size() int64 { return 8 }
func (Char) Size() int64 { return 8 }
func (Int) Size() int64  { return 8 }
func (Bool) Size() int64 { return 8 }
func (*Ptr) Size() int64 { return 8 }

func (a *Arr) Size() int64 { return a.Len * a.Elem.Size() }

func (r *Rec) Size() int64 {
	var size int64
	for _, c := range r.Comps {
		size += c.Type.Size()
	}
	return size
}

func (n *Name) Size() int64 { return n.Type.Size() }

func (Void) String() string   { return "void" }
func (Char) String() string   { return "char" }
func (Int) String() string    { return "int" }
func (Bool) String() string   { return "bool" }
func (p *Ptr) String() string { return "^" + p.Base.String() }
func (a *Arr) String() string { return fmt.Sprintf("[%d]%s", a.Len, a.Elem) }
func (n *Name) String() string {
	return n.Ident
}

func (r *Rec) String() string {
	parts := make([]string, len(r.Comps))
	for i, c := range r.Comps {
		parts[i] = c.Name + ":" + c.Type.String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Actual strips type names.
func Actual(t Type) Type {
	for {
		n, ok := t.(*Name)
		if !ok || n.Type == nil {
			return t
		}
		t = n.Type
	}
}

// IsChar reports whether t is char after stripping names.
func IsChar(t Type) bool {
	_, ok := Actual(t).(Char)
	return ok
}
