package frontend

import (
	"github.com/raymyers/prevc/pkg/ast"
	"github.com/raymyers/prevc/pkg/semtype"
)

var (
	intType  semtype.Type = semtype.Int{}
	boolType semtype.Type = semtype.Bool{}
	voidType semtype.Type = semtype.Void{}
)

// expr types e, records the result and returns it; nil marks an erroneous
// expression whose error has already been reported.
func (r *resolver) expr(e ast.Expr, sc *scope) semtype.Type {
	if e == nil {
		return nil
	}
	t := r.exprType(e, sc)
	if t != nil {
		r.t.OfType[e] = t
	}
	return t
}

func (r *resolver) exprType(e ast.Expr, sc *scope) semtype.Type {
	switch e := e.(type) {
	case *ast.Atom:
		switch e.Kind {
		case ast.AtomInt:
			return intType
		case ast.AtomChar:
			return semtype.Char{}
		case ast.AtomBool:
			return boolType
		case ast.AtomVoid:
			return voidType
		case ast.AtomPtr:
			return &semtype.Ptr{Base: voidType}
		case ast.AtomStr:
			return &semtype.Ptr{Base: semtype.Char{}}
		}

	case *ast.Name:
		return r.name(e, sc)

	case *ast.Pfx:
		return r.prefix(e, sc)

	case *ast.Sfx:
		t := r.expr(e.Expr, sc)
		if t == nil {
			return nil
		}
		ptr, ok := semtype.Actual(t).(*semtype.Ptr)
		if !ok {
			r.errorf(e, "dereference of non-pointer type %s", t)
			return nil
		}
		if isVoid(ptr.Base) {
			r.errorf(e, "dereference of a void pointer")
			return nil
		}
		return ptr.Base

	case *ast.Bin:
		return r.binary(e, sc)

	case *ast.Arr:
		at := r.expr(e.Arr, sc)
		it := r.expr(e.Idx, sc)
		if at == nil {
			return nil
		}
		arr, ok := semtype.Actual(at).(*semtype.Arr)
		if !ok {
			r.errorf(e, "indexing non-array type %s", at)
			return nil
		}
		if !r.addressable(e.Arr) {
			r.errorf(e, "indexed array is not addressable")
		}
		if it != nil && !isInt(it) {
			r.errorf(e.Idx, "array index must be an int, not %s", it)
		}
		return arr.Elem

	case *ast.Rec:
		t := r.expr(e.Rec, sc)
		if t == nil {
			return nil
		}
		rec, ok := semtype.Actual(t).(*semtype.Rec)
		if !ok {
			r.errorf(e, "component access on non-record type %s", t)
			return nil
		}
		if !r.addressable(e.Rec) {
			r.errorf(e, "record is not addressable")
		}
		for i, comp := range r.t.Records[rec] {
			if comp.Name == e.Comp.Ident {
				r.t.DeclaredAt[e.Comp] = comp
				return rec.Comps[i].Type
			}
		}
		r.errorf(e.Comp, "record %s has no component %s", t, e.Comp.Ident)
		return nil

	case *ast.Call:
		return r.call(e, sc)

	case *ast.StmtExpr:
		var t semtype.Type = voidType
		for i, s := range e.Stmts {
			st := r.stmt(s, sc)
			if i == len(e.Stmts)-1 {
				t = st
			}
		}
		return t

	case *ast.Cast:
		from := r.expr(e.Expr, sc)
		to := r.typeOf(e.Type, sc)
		if from == nil || to == nil {
			return nil
		}
		if !isCastable(from) || !isCastable(to) {
			r.errorf(e, "cannot cast %s to %s", from, to)
			return nil
		}
		return to

	case *ast.Where:
		inner := newScope(sc)
		r.decls(e.Decls, inner)
		return r.expr(e.Expr, inner)
	}

	r.errorf(e, "unexpected expression %T", e)
	return nil
}

func (r *resolver) name(e *ast.Name, sc *scope) semtype.Type {
	d := sc.lookup(e.Ident)
	if d == nil {
		r.errorf(e, "undefined: %s", e.Ident)
		return nil
	}
	r.t.DeclaredAt[e] = d

	switch d := d.(type) {
	case *ast.VarDecl, *ast.ParDecl:
		return r.t.DeclType[d]
	case *ast.FunDecl:
		if len(d.Pars) != 0 {
			r.errorf(e, "function %s used as a value needs %d arguments", d.Name, len(d.Pars))
			return nil
		}
		return r.t.DeclType[d]
	}

	r.errorf(e, "%s is not a value", e.Ident)
	return nil
}

func (r *resolver) prefix(e *ast.Pfx, sc *scope) semtype.Type {
	t := r.expr(e.Expr, sc)
	if t == nil {
		return nil
	}

	switch e.Op {
	case ast.PfxAdd, ast.PfxSub:
		if !isInt(t) {
			r.errorf(e, "sign applied to %s", t)
			return nil
		}
		return intType
	case ast.PfxNot:
		if !isBool(t) {
			r.errorf(e, "negation applied to %s", t)
			return nil
		}
		return boolType
	case ast.PfxPtr:
		if !r.addressable(e.Expr) {
			r.errorf(e, "cannot take the address of this expression")
			return nil
		}
		return &semtype.Ptr{Base: t}
	case ast.PfxNew:
		if !isInt(t) {
			r.errorf(e, "new needs a size in bytes, not %s", t)
			return nil
		}
		return &semtype.Ptr{Base: voidType}
	case ast.PfxDel:
		if !isPtr(t) {
			r.errorf(e, "del needs a pointer, not %s", t)
			return nil
		}
		return voidType
	}

	r.errorf(e, "unknown prefix operator %d", e.Op)
	return nil
}

func (r *resolver) binary(e *ast.Bin, sc *scope) semtype.Type {
	fst := r.expr(e.Fst, sc)
	snd := r.expr(e.Snd, sc)
	if fst == nil || snd == nil {
		return nil
	}

	switch e.Op {
	case ast.Or, ast.And:
		if isBool(fst) && isBool(snd) {
			return boolType
		}
	case ast.Equ, ast.Neq:
		if isScalar(fst) && (assignable(fst, snd) || assignable(snd, fst)) {
			return boolType
		}
	case ast.Lth, ast.Gth, ast.Leq, ast.Geq:
		if isInt(fst) && isInt(snd) || isChar(fst) && isChar(snd) {
			return boolType
		}
	default:
		if isInt(fst) && isInt(snd) {
			return intType
		}
	}

	r.errorf(e, "invalid operands %s and %s", fst, snd)
	return nil
}

func (r *resolver) call(e *ast.Call, sc *scope) semtype.Type {
	var args []semtype.Type
	for _, a := range e.Args {
		args = append(args, r.expr(a, sc))
	}

	fun, ok := sc.lookup(e.Ident).(*ast.FunDecl)
	if !ok {
		r.errorf(e, "%s is not a function", e.Ident)
		return nil
	}
	r.t.DeclaredAt[e] = fun

	if len(args) != len(fun.Pars) {
		r.errorf(e, "call of %s with %d arguments, want %d", e.Ident, len(args), len(fun.Pars))
		return nil
	}
	for i, a := range args {
		want := r.t.DeclType[fun.Pars[i]]
		if a != nil && want != nil && !assignable(want, a) {
			r.errorf(e.Args[i], "argument %d of %s has type %s, want %s", i+1, e.Ident, a, want)
		}
	}
	return r.t.DeclType[fun]
}

// stmt checks s and returns the value type of an expression statement, void
// for the others.
func (r *resolver) stmt(s ast.Stmt, sc *scope) semtype.Type {
	switch s := s.(type) {
	case *ast.ExprStmt:
		return r.expr(s.Expr, sc)

	case *ast.AssignStmt:
		dst := r.expr(s.Dst, sc)
		src := r.expr(s.Src, sc)
		if !r.addressable(s.Dst) {
			r.errorf(s, "cannot assign to this expression")
		}
		if dst != nil && src != nil {
			if !isScalar(dst) {
				r.errorf(s, "cannot assign values of type %s", dst)
			} else if !assignable(dst, src) {
				r.errorf(s, "cannot assign %s to %s", src, dst)
			}
		}

	case *ast.IfStmt:
		r.cond(s.Cond, sc)
		r.stmt(s.Then, sc)
		if s.Else != nil {
			r.stmt(s.Else, sc)
		}

	case *ast.WhileStmt:
		r.cond(s.Cond, sc)
		r.stmt(s.Body, sc)
	}

	return voidType
}

func (r *resolver) cond(e ast.Expr, sc *scope) {
	if t := r.expr(e, sc); t != nil && !isBool(t) {
		r.errorf(e, "condition must be a bool, not %s", t)
	}
}

// addressable reports whether e denotes a memory location.
func (r *resolver) addressable(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Name:
		switch r.t.DeclaredAt[e].(type) {
		case *ast.VarDecl, *ast.ParDecl:
			return true
		}
	case *ast.Sfx, *ast.Arr, *ast.Rec:
		return true
	}
	return false
}

func isInt(t semtype.Type) bool {
	_, ok := semtype.Actual(t).(semtype.Int)
	return ok
}

func isChar(t semtype.Type) bool {
	return semtype.IsChar(t)
}

func isBool(t semtype.Type) bool {
	_, ok := semtype.Actual(t).(semtype.Bool)
	return ok
}

func isVoid(t semtype.Type) bool {
	_, ok := semtype.Actual(t).(semtype.Void)
	return ok
}

func isPtr(t semtype.Type) bool {
	_, ok := semtype.Actual(t).(*semtype.Ptr)
	return ok
}

func isScalar(t semtype.Type) bool {
	return isInt(t) || isChar(t) || isBool(t) || isPtr(t)
}

func isCastable(t semtype.Type) bool {
	return isInt(t) || isChar(t) || isPtr(t)
}

// assignable reports whether a value of type src can be stored in dst. Void
// pointers convert to and from every pointer type.
func assignable(dst, src semtype.Type) bool {
	if equal(dst, src, map[[2]semtype.Type]bool{}) {
		return true
	}
	dp, ok1 := semtype.Actual(dst).(*semtype.Ptr)
	sp, ok2 := semtype.Actual(src).(*semtype.Ptr)
	return ok1 && ok2 && (isVoid(dp.Base) || isVoid(sp.Base))
}

// equal compares types structurally; seen breaks cycles through names.
func equal(a, b semtype.Type, seen map[[2]semtype.Type]bool) bool {
	an, ok1 := a.(*semtype.Name)
	bn, ok2 := b.(*semtype.Name)
	if ok1 && ok2 && an == bn {
		return true
	}
	key := [2]semtype.Type{a, b}
	if seen[key] {
		return true
	}
	seen[key] = true

	switch a := semtype.Actual(a).(type) {
	case *semtype.Ptr:
		b, ok := semtype.Actual(b).(*semtype.Ptr)
		return ok && equal(a.Base, b.Base, seen)
	case *semtype.Arr:
		b, ok := semtype.Actual(b).(*semtype.Arr)
		return ok && a.Len == b.Len && equal(a.Elem, b.Elem, seen)
	case *semtype.Rec:
		b, ok := semtype.Actual(b).(*semtype.Rec)
		if !ok || len(a.Comps) != len(b.Comps) {
			return false
		}
		for i := range a.Comps {
			if a.Comps[i].Name != b.Comps[i].Name || !equal(a.Comps[i].Type, b.Comps[i].Type, seen) {
				return false
			}
		}
		return true
	default:
		return a == semtype.Actual(b)
	}
}
