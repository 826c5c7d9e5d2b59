package ast

// Inspect traverses the tree rooted at n in depth-first order, calling f for
// every node. Children are skipped when f returns false.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}

	switch n := n.(type) {
	case *Program:
		for _, d := range n.Decls {
			Inspect(d, f)
		}
	case *FunDecl:
		for _, p := range n.Pars {
			Inspect(p, f)
		}
		if n.Expr != nil {
			Inspect(n.Expr, f)
		}
	case *Pfx:
		Inspect(n.Expr, f)
	case *Sfx:
		Inspect(n.Expr, f)
	case *Bin:
		Inspect(n.Fst, f)
		Inspect(n.Snd, f)
	case *Arr:
		Inspect(n.Arr, f)
		Inspect(n.Idx, f)
	case *Rec:
		Inspect(n.Rec, f)
		Inspect(n.Comp, f)
	case *Call:
		for _, a := range n.Args {
			Inspect(a, f)
		}
	case *StmtExpr:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
	case *Cast:
		Inspect(n.Expr, f)
	case *Where:
		for _, d := range n.Decls {
			Inspect(d, f)
		}
		Inspect(n.Expr, f)
	case *ExprStmt:
		Inspect(n.Expr, f)
	case *AssignStmt:
		Inspect(n.Dst, f)
		Inspect(n.Src, f)
	case *IfStmt:
		Inspect(n.Cond, f)
		Inspect(n.Then, f)
		if n.Else != nil {
			Inspect(n.Else, f)
		}
	case *WhileStmt:
		Inspect(n.Cond, f)
		Inspect(n.Body, f)
	}
}

// Functions lists every function declaration of the program in source
// order, nested functions right after the declarations enclosing them
// have started.
func Functions(prog *Program) []*FunDecl {
	var funs []*FunDecl
	Inspect(prog, func(n Node) bool {
		if fun, ok := n.(*FunDecl); ok {
			funs = append(funs, fun)
		}
		return true
	})
	return funs
}
