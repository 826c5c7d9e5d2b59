// Package frontend loads programs that have already been parsed, written as
// YAML documents, and resolves them into the compilation context consumed by
// the code generator.
//
// A program is a sequence of declarations:
//
//	- typ: list
//	  type: "{head:int,tail:^list}"
//	- var: count
//	  type: int
//	- fun: main
//	  type: int
//	  pars: [{n: int}]
//	  body: {add: [n, 1]}
//
// Scalars are integer, boolean and nil atoms, the void atom "none", or names.
// Every other expression is a single-key mapping naming its operator; a
// sequence is a statement expression.
package frontend

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/raymyers/prevc/pkg/ast"
	"github.com/raymyers/prevc/pkg/attr"
)

// Error is a diagnostic attached to a source position.
type Error struct {
	Pos ast.Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Pos.Line, e.Pos.Col, e.Msg)
}

var binOps = map[string]ast.BinOp{
	"or": ast.Or, "and": ast.And,
	"eq": ast.Equ, "ne": ast.Neq, "lt": ast.Lth, "gt": ast.Gth, "le": ast.Leq, "ge": ast.Geq,
	"add": ast.Add, "sub": ast.Sub, "mul": ast.Mul, "div": ast.Div, "mod": ast.Mod,
}

var pfxOps = map[string]ast.PfxOp{
	"pos": ast.PfxAdd, "neg": ast.PfxSub, "not": ast.PfxNot,
	"addr": ast.PfxPtr, "new": ast.PfxNew, "del": ast.PfxDel,
}

type loader struct {
	errs error
}

// LoadFile reads, parses and resolves the program stored at path.
func LoadFile(path string) (*ast.Program, *attr.Tables, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read program")
	}

	prog, t, err := Load(src)
	if err != nil {
		return nil, nil, errors.Wrap(err, "%v", path)
	}

	return prog, t, nil
}

// Load parses and resolves a program.
func Load(src []byte) (*ast.Program, *attr.Tables, error) {
	prog, err := Parse(src)
	if err != nil {
		return nil, nil, err
	}

	t, err := Resolve(prog)
	if err != nil {
		return nil, nil, err
	}

	return prog, t, nil
}

// Parse decodes a program without resolving it.
func Parse(src []byte) (*ast.Program, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, errors.Wrap(err, "decode program")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("empty program")
	}

	l := &loader{}
	prog := l.program(doc.Content[0])
	if l.errs != nil {
		return nil, l.errs
	}

	return prog, nil
}

func pos(n *yaml.Node) ast.Pos {
	return ast.Pos{Line: n.Line, Col: n.Column}
}

func (l *loader) errorf(n *yaml.Node, format string, args ...interface{}) {
	l.errs = multierr.Append(l.errs, &Error{Pos: pos(n), Msg: fmt.Sprintf(format, args...)})
}

func (l *loader) program(n *yaml.Node) *ast.Program {
	prog := &ast.Program{Pos: pos(n)}
	if n.Kind != yaml.SequenceNode {
		l.errorf(n, "program must be a sequence of declarations")
		return prog
	}

	prog.Decls = l.decls(n)
	return prog
}

func (l *loader) decls(n *yaml.Node) []ast.Decl {
	if n.Kind != yaml.SequenceNode {
		l.errorf(n, "expected a sequence of declarations")
		return nil
	}

	var decls []ast.Decl
	for _, d := range n.Content {
		if decl := l.decl(d); decl != nil {
			decls = append(decls, decl)
		}
	}
	return decls
}

func (l *loader) decl(n *yaml.Node) ast.Decl {
	fs := l.fields(n, "fun", "var", "typ", "type", "pars", "body")
	if fs == nil {
		return nil
	}

	switch {
	case fs["fun"] != nil:
		fun := &ast.FunDecl{Pos: pos(n), Name: l.ident(fs["fun"]), Type: l.typeExpr(fs["type"], n)}
		if pars := fs["pars"]; pars != nil {
			fun.Pars = l.pars(pars)
		}
		if body := fs["body"]; body != nil {
			fun.Expr = l.expr(body)
		}
		return fun

	case fs["var"] != nil:
		l.only(n, fs, "var")
		return &ast.VarDecl{Pos: pos(n), Name: l.ident(fs["var"]), Type: l.typeExpr(fs["type"], n)}

	case fs["typ"] != nil:
		l.only(n, fs, "typ")
		return &ast.TypeDecl{Pos: pos(n), Name: l.ident(fs["typ"]), Type: l.typeExpr(fs["type"], n)}
	}

	l.errorf(n, "declaration must be one of fun, var or typ")
	return nil
}

// only reports function-only fields on other declarations.
func (l *loader) only(n *yaml.Node, fs map[string]*yaml.Node, kind string) {
	for _, f := range []string{"fun", "var", "typ", "pars", "body"} {
		if f != kind && fs[f] != nil {
			l.errorf(n, "field %q not allowed in %s declaration", f, kind)
		}
	}
}

func (l *loader) pars(n *yaml.Node) []*ast.ParDecl {
	if n.Kind != yaml.SequenceNode {
		l.errorf(n, "parameters must be a sequence")
		return nil
	}

	pars := make([]*ast.ParDecl, 0, len(n.Content))
	for _, p := range n.Content {
		if p.Kind != yaml.MappingNode || len(p.Content) != 2 {
			l.errorf(p, "parameter must be a single name: type pair")
			continue
		}
		pars = append(pars, &ast.ParDecl{
			Pos:  pos(p),
			Name: l.ident(p.Content[0]),
			Type: l.typeExpr(p.Content[1], p),
		})
	}
	return pars
}

func (l *loader) typeExpr(n, parent *yaml.Node) *ast.TypeExpr {
	if n == nil {
		l.errorf(parent, "missing type")
		return &ast.TypeExpr{Pos: pos(parent)}
	}
	if n.Kind != yaml.ScalarNode {
		l.errorf(n, "type must be a string")
		return &ast.TypeExpr{Pos: pos(n)}
	}
	return &ast.TypeExpr{Pos: pos(n), Text: n.Value}
}

func (l *loader) ident(n *yaml.Node) string {
	if n.Kind != yaml.ScalarNode || !isIdent(n.Value) {
		l.errorf(n, "expected an identifier")
		return ""
	}
	return n.Value
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

func (l *loader) fields(n *yaml.Node, allowed ...string) map[string]*yaml.Node {
	if n.Kind != yaml.MappingNode {
		l.errorf(n, "expected a mapping")
		return nil
	}

	fs := make(map[string]*yaml.Node)
next:
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		for _, a := range allowed {
			if key == a {
				fs[key] = n.Content[i+1]
				continue next
			}
		}
		l.errorf(n.Content[i], "unknown field %q", key)
	}
	return fs
}

func (l *loader) pair(n *yaml.Node, op string) (*yaml.Node, *yaml.Node, bool) {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 2 {
		l.errorf(n, "%s takes exactly two operands", op)
		return nil, nil, false
	}
	return n.Content[0], n.Content[1], true
}

func (l *loader) expr(n *yaml.Node) ast.Expr {
	switch n.Kind {
	case yaml.ScalarNode:
		return l.scalar(n)
	case yaml.SequenceNode:
		return &ast.StmtExpr{Pos: pos(n), Stmts: l.stmts(n)}
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			l.errorf(n, "expression must name exactly one operator")
			return nil
		}
		return l.operator(n, n.Content[0].Value, n.Content[1])
	}

	l.errorf(n, "aliases are not supported")
	return nil
}

func (l *loader) scalar(n *yaml.Node) ast.Expr {
	p := pos(n)
	switch n.Tag {
	case "!!int":
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			l.errorf(n, "integer constant %s out of range", n.Value)
			return nil
		}
		return &ast.Atom{Pos: p, Kind: ast.AtomInt, Value: strconv.FormatInt(v, 10)}
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			l.errorf(n, "malformed boolean %s", n.Value)
			return nil
		}
		return &ast.Atom{Pos: p, Kind: ast.AtomBool, Value: strconv.FormatBool(b)}
	case "!!null":
		return &ast.Atom{Pos: p, Kind: ast.AtomPtr, Value: "nil"}
	}

	if n.Value == "none" {
		return &ast.Atom{Pos: p, Kind: ast.AtomVoid, Value: "none"}
	}
	return &ast.Name{Pos: p, Ident: l.ident(n)}
}

func (l *loader) operator(n *yaml.Node, op string, v *yaml.Node) ast.Expr {
	p := pos(n)

	if bop, ok := binOps[op]; ok {
		fst, snd, ok := l.pair(v, op)
		if !ok {
			return nil
		}
		return &ast.Bin{Pos: p, Op: bop, Fst: l.expr(fst), Snd: l.expr(snd)}
	}

	if pop, ok := pfxOps[op]; ok {
		return &ast.Pfx{Pos: p, Op: pop, Expr: l.expr(v)}
	}

	switch op {
	case "deref":
		return &ast.Sfx{Pos: p, Expr: l.expr(v)}

	case "char":
		if v.Kind != yaml.ScalarNode || len(v.Value) != 1 {
			l.errorf(v, "char constant must be a single character")
			return nil
		}
		return &ast.Atom{Pos: p, Kind: ast.AtomChar, Value: "'" + v.Value + "'"}

	case "str":
		if v.Kind != yaml.ScalarNode {
			l.errorf(v, "string constant must be a scalar")
			return nil
		}
		return &ast.Atom{Pos: p, Kind: ast.AtomStr, Value: v.Value}

	case "index":
		arr, idx, ok := l.pair(v, op)
		if !ok {
			return nil
		}
		return &ast.Arr{Pos: p, Arr: l.expr(arr), Idx: l.expr(idx)}

	case "field":
		rec, comp, ok := l.pair(v, op)
		if !ok {
			return nil
		}
		return &ast.Rec{Pos: p, Rec: l.expr(rec), Comp: &ast.Name{Pos: pos(comp), Ident: l.ident(comp)}}

	case "call":
		if v.Kind != yaml.SequenceNode || len(v.Content) == 0 {
			l.errorf(v, "call takes a function name followed by arguments")
			return nil
		}
		call := &ast.Call{Pos: p, Ident: l.ident(v.Content[0])}
		for _, a := range v.Content[1:] {
			call.Args = append(call.Args, l.expr(a))
		}
		return call

	case "cast":
		e, typ, ok := l.pair(v, op)
		if !ok {
			return nil
		}
		return &ast.Cast{Pos: p, Expr: l.expr(e), Type: l.typeExpr(typ, v)}

	case "where":
		fs := l.fields(v, "decls", "expr")
		if fs == nil {
			return nil
		}
		if fs["expr"] == nil {
			l.errorf(v, "where needs an expr")
			return nil
		}
		w := &ast.Where{Pos: p, Expr: l.expr(fs["expr"])}
		if ds := fs["decls"]; ds != nil {
			w.Decls = l.decls(ds)
		}
		return w
	}

	l.errorf(n, "unknown operator %q", op)
	return nil
}

func (l *loader) stmts(n *yaml.Node) []ast.Stmt {
	stmts := make([]ast.Stmt, 0, len(n.Content))
	for _, s := range n.Content {
		if st := l.stmt(s); st != nil {
			stmts = append(stmts, st)
		}
	}
	return stmts
}

func (l *loader) stmt(n *yaml.Node) ast.Stmt {
	p := pos(n)
	if n.Kind == yaml.MappingNode && len(n.Content) == 2 {
		v := n.Content[1]
		switch n.Content[0].Value {
		case "assign":
			dst, src, ok := l.pair(v, "assign")
			if !ok {
				return nil
			}
			return &ast.AssignStmt{Pos: p, Dst: l.expr(dst), Src: l.expr(src)}

		case "if":
			fs := l.fields(v, "cond", "then", "else")
			if fs == nil || fs["cond"] == nil || fs["then"] == nil {
				l.errorf(v, "if needs cond and then")
				return nil
			}
			s := &ast.IfStmt{Pos: p, Cond: l.expr(fs["cond"]), Then: l.stmt(fs["then"])}
			if els := fs["else"]; els != nil {
				s.Else = l.stmt(els)
			}
			return s

		case "while":
			fs := l.fields(v, "cond", "do")
			if fs == nil || fs["cond"] == nil || fs["do"] == nil {
				l.errorf(v, "while needs cond and do")
				return nil
			}
			return &ast.WhileStmt{Pos: p, Cond: l.expr(fs["cond"]), Body: l.stmt(fs["do"])}
		}
	}

	return &ast.ExprStmt{Pos: p, Expr: l.expr(n)}
}
