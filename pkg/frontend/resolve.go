package frontend

import (
	"fmt"
	"strconv"

	"go.uber.org/multierr"

	"github.com/raymyers/prevc/pkg/ast"
	"github.com/raymyers/prevc/pkg/attr"
	"github.com/raymyers/prevc/pkg/semtype"
)

type scope struct {
	parent *scope
	names  map[string]ast.Decl
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]ast.Decl)}
}

func (s *scope) lookup(name string) ast.Decl {
	for ; s != nil; s = s.parent {
		if d, ok := s.names[name]; ok {
			return d
		}
	}
	return nil
}

type resolver struct {
	t    *attr.Tables
	errs error
}

// Resolve binds names to declarations and computes the type of every
// declaration and expression of prog. All errors found are reported
// together.
func Resolve(prog *ast.Program) (*attr.Tables, error) {
	r := &resolver{t: attr.New()}
	for _, d := range prog.Decls {
		r.reserved(d)
	}
	r.decls(prog.Decls, newScope(nil))
	if r.errs != nil {
		return nil, r.errs
	}
	return r.t, nil
}

// Runtime support routines own these global labels; they may be declared
// as functions without a body only.
var runtimeNames = map[string]bool{"new": true, "del": true, "putChar": true, "getChar": true, "exit": true}

func (r *resolver) reserved(d ast.Decl) {
	if !runtimeNames[d.DeclName()] {
		return
	}
	switch d := d.(type) {
	case *ast.FunDecl:
		if d.Expr != nil {
			r.errorf(d, "runtime function %s cannot have a body", d.Name)
		}
	case *ast.VarDecl:
		r.errorf(d, "%s is the name of a runtime function", d.Name)
	}
}

func (r *resolver) errorf(n ast.Node, format string, args ...interface{}) {
	r.errs = multierr.Append(r.errs, &Error{Pos: n.Position(), Msg: fmt.Sprintf(format, args...)})
}

// decls resolves one block of mutually visible declarations.
func (r *resolver) decls(decls []ast.Decl, sc *scope) {
	for _, d := range decls {
		if _, dup := sc.names[d.DeclName()]; dup {
			r.errorf(d, "%s redeclared in this block", d.DeclName())
			continue
		}
		sc.names[d.DeclName()] = d
	}

	var named []*semtype.Name
	for _, d := range decls {
		if td, ok := d.(*ast.TypeDecl); ok {
			n := &semtype.Name{Ident: td.Name}
			r.t.DeclType[td] = n
			named = append(named, n)
		}
	}
	for _, d := range decls {
		if td, ok := d.(*ast.TypeDecl); ok {
			r.t.DeclType[td].(*semtype.Name).Type = r.typeOf(td.Type, sc)
		}
	}
	for _, n := range named {
		if n.Type == nil {
			n.Type = semtype.Void{}
			continue
		}
		if !finite(n, map[*semtype.Name]bool{}) {
			r.errorf(declOf(decls, n), "type %s is infinite", n.Ident)
			n.Type = semtype.Void{}
		}
	}

	for _, d := range decls {
		switch d := d.(type) {
		case *ast.VarDecl:
			t := r.typeOf(d.Type, sc)
			if isVoid(t) {
				r.errorf(d, "variable %s of type void", d.Name)
			}
			r.t.DeclType[d] = t
		case *ast.FunDecl:
			for _, p := range d.Pars {
				t := r.typeOf(p.Type, sc)
				if t != nil && !isScalar(t) {
					r.errorf(p, "parameter %s must have a scalar type, not %s", p.Name, t)
				}
				r.t.DeclType[p] = t
			}
			t := r.typeOf(d.Type, sc)
			if t != nil && !isScalar(t) && !isVoid(t) {
				r.errorf(d, "function %s must return a scalar or void, not %s", d.Name, t)
			}
			r.t.DeclType[d] = t
		}
	}

	for _, d := range decls {
		if fun, ok := d.(*ast.FunDecl); ok && fun.Expr != nil {
			r.body(fun, sc)
		}
	}
}

func declOf(decls []ast.Decl, n *semtype.Name) ast.Decl {
	for _, d := range decls {
		if td, ok := d.(*ast.TypeDecl); ok && td.Name == n.Ident {
			return td
		}
	}
	return nil
}

func (r *resolver) body(fun *ast.FunDecl, sc *scope) {
	inner := newScope(sc)
	for _, p := range fun.Pars {
		if _, dup := inner.names[p.Name]; dup {
			r.errorf(p, "duplicate parameter %s", p.Name)
			continue
		}
		inner.names[p.Name] = p
	}

	got := r.expr(fun.Expr, inner)
	want := r.t.DeclType[fun]
	if got == nil || want == nil || isVoid(want) {
		return
	}
	if !assignable(want, got) {
		r.errorf(fun.Expr, "function %s returns %s, body has type %s", fun.Name, want, got)
	}
}

// typeOf resolves a type expression; nil marks an erroneous type.
func (r *resolver) typeOf(te *ast.TypeExpr, sc *scope) semtype.Type {
	p := &typeParser{r: r, te: te, sc: sc, text: te.Text}
	t := p.parse()
	if t != nil && p.pos < len(p.text) {
		p.fail("unexpected %q", p.text[p.pos:])
		t = nil
	}
	if p.failed {
		return nil
	}
	r.t.IsType[te] = t
	return t
}

type typeParser struct {
	r      *resolver
	te     *ast.TypeExpr
	sc     *scope
	text   string
	pos    int
	failed bool
}

func (p *typeParser) fail(format string, args ...interface{}) {
	if !p.failed {
		p.r.errorf(p.te, "type %q: %s", p.text, fmt.Sprintf(format, args...))
	}
	p.failed = true
}

func (p *typeParser) skip() {
	for p.pos < len(p.text) && (p.text[p.pos] == ' ' || p.text[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skip()
	if p.pos < len(p.text) {
		return p.text[p.pos]
	}
	return 0
}

func (p *typeParser) expect(c byte) bool {
	if p.peek() != c {
		p.fail("expected %q", string(c))
		return false
	}
	p.pos++
	return true
}

func (p *typeParser) word(digits bool) string {
	p.skip()
	start := p.pos
	for p.pos < len(p.text) {
		c := p.text[p.pos]
		if !(c >= '0' && c <= '9' || !digits && (c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z')) {
			break
		}
		p.pos++
	}
	return p.text[start:p.pos]
}

func (p *typeParser) parse() semtype.Type {
	switch p.peek() {
	case 0:
		p.fail("missing type")
		return nil

	case '^':
		p.pos++
		base := p.parse()
		if base == nil {
			return nil
		}
		return &semtype.Ptr{Base: base}

	case '[':
		p.pos++
		n, err := strconv.ParseInt(p.word(true), 10, 64)
		if err != nil || n <= 0 {
			p.fail("array length must be a positive integer")
			return nil
		}
		if !p.expect(']') {
			return nil
		}
		elem := p.parse()
		if elem == nil {
			return nil
		}
		return &semtype.Arr{Elem: elem, Len: n}

	case '{':
		p.pos++
		return p.record()
	}

	name := p.word(false)
	if !isIdent(name) {
		p.fail("expected a type name")
		return nil
	}

	switch name {
	case "int":
		return semtype.Int{}
	case "char":
		return semtype.Char{}
	case "bool":
		return semtype.Bool{}
	case "void":
		return semtype.Void{}
	}

	td, ok := p.sc.lookup(name).(*ast.TypeDecl)
	if !ok {
		p.fail("%s is not a type", name)
		return nil
	}
	p.r.t.DeclaredAt[p.te] = td
	return p.r.t.DeclType[td]
}

func (p *typeParser) record() semtype.Type {
	rec := &semtype.Rec{}
	var comps []*ast.CompDecl
	for {
		name := p.word(false)
		if !isIdent(name) {
			p.fail("expected a component name")
			return nil
		}
		for _, c := range rec.Comps {
			if c.Name == name {
				p.fail("duplicate component %s", name)
				return nil
			}
		}
		if !p.expect(':') {
			return nil
		}

		start := p.pos
		t := p.parse()
		if t == nil {
			return nil
		}
		rec.Comps = append(rec.Comps, semtype.Comp{Name: name, Type: t})
		comps = append(comps, &ast.CompDecl{
			Pos:  p.te.Pos,
			Name: name,
			Type: &ast.TypeExpr{Pos: p.te.Pos, Text: p.text[start:p.pos]},
		})

		if p.peek() == '}' {
			p.pos++
			break
		}
		if !p.expect(',') {
			return nil
		}
	}

	p.r.t.Records[rec] = comps
	for i, c := range comps {
		p.r.t.DeclType[c] = rec.Comps[i].Type
	}
	return rec
}

// finite reports whether t has a finite size, that is every cycle through
// type names passes a pointer.
func finite(t semtype.Type, visiting map[*semtype.Name]bool) bool {
	switch t := t.(type) {
	case *semtype.Name:
		if visiting[t] {
			return false
		}
		if t.Type == nil {
			return true
		}
		visiting[t] = true
		ok := finite(t.Type, visiting)
		delete(visiting, t)
		return ok
	case *semtype.Arr:
		return finite(t.Elem, visiting)
	case *semtype.Rec:
		for _, c := range t.Comps {
			if !finite(c.Type, visiting) {
				return false
			}
		}
	}
	return true
}
