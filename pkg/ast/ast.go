// Package ast defines the typed abstract syntax tree handed to the code
// generator. Nodes carry no semantic attributes themselves: bindings, types,
// frames and generated code are kept in the side tables of package attr.
package ast

// Pos is a source position.
type Pos struct {
	Line int
	Col  int
}

// Position returns the position itself; embedding Pos gives every node the method.
func (p Pos) Position() Pos { return p }

// Node is any syntax tree node.
type Node interface {
	Position() Pos
}

// Expr is an expression node.
type Expr interface {
	Node
	implExpr()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	implStmt()
}

// Decl is a declaration node.
type Decl interface {
	Node
	implDecl()
	DeclName() string
}

// Program is a list of top-level declarations.
type Program struct {
	Pos
	Decls []Decl
}

// TypeExpr is a type as written in the source.
type TypeExpr struct {
	Pos
	Text string
}

// --- Expressions ---

type AtomKind int

const (
	AtomVoid AtomKind = iota
	AtomPtr           // nil
	AtomBool
	AtomChar
	AtomInt
	AtomStr
)

// Atom is a literal. Value holds the source text: the digits of an int,
// "true"/"false", a quoted char such as 'a', or the string contents.
type Atom struct {
	Pos
	Kind  AtomKind
	Value string
}

type PfxOp int

const (
	PfxAdd PfxOp = iota
	PfxSub
	PfxNot
	PfxPtr // address-of
	PfxNew
	PfxDel
)

// Pfx is a prefix operator application.
type Pfx struct {
	Pos
	Op   PfxOp
	Expr Expr
}

// Sfx is the postfix dereference e^.
type Sfx struct {
	Pos
	Expr Expr
}

type BinOp int

const (
	Or BinOp = iota
	And
	Equ
	Neq
	Lth
	Gth
	Leq
	Geq
	Add
	Sub
	Mul
	Div
	Mod
)

// Bin is a binary operator application.
type Bin struct {
	Pos
	Op  BinOp
	Fst Expr
	Snd Expr
}

// Name refers to a variable, a parameter or a parameterless function.
type Name struct {
	Pos
	Ident string
}

// Arr is array indexing arr[idx].
type Arr struct {
	Pos
	Arr Expr
	Idx Expr
}

// Rec is record component access rec.comp.
type Rec struct {
	Pos
	Rec  Expr
	Comp *Name
}

// Call is a function call.
type Call struct {
	Pos
	Ident string
	Args  []Expr
}

// StmtExpr is a block {s1; ...; sn} whose value is the last statement's
// value if it is an expression statement.
type StmtExpr struct {
	Pos
	Stmts []Stmt
}

// Cast is (expr : type).
type Cast struct {
	Pos
	Expr Expr
	Type *TypeExpr
}

// Where is expr where { decls }.
type Where struct {
	Pos
	Expr  Expr
	Decls []Decl
}

func (*Atom) implExpr()     {}
func (*Pfx) implExpr()      {}
func (*Sfx) implExpr()      {}
func (*Bin) implExpr()      {}
func (*Name) implExpr()     {}
func (*Arr) implExpr()      {}
func (*Rec) implExpr()      {}
func (*Call) implExpr()     {}
func (*StmtExpr) implExpr() {}
func (*Cast) implExpr()     {}
func (*Where) implExpr()    {}

// --- Statements ---

type ExprStmt struct {
	Pos
	Expr Expr
}

type AssignStmt struct {
	Pos
	Dst Expr
	Src Expr
}

type IfStmt struct {
	Pos
	Cond Expr
	Then Stmt
	Else Stmt
}

type WhileStmt struct {
	Pos
	Cond Expr
	Body Stmt
}

func (*ExprStmt) implStmt()   {}
func (*AssignStmt) implStmt() {}
func (*IfStmt) implStmt()     {}
func (*WhileStmt) implStmt()  {}

// --- Declarations ---

// FunDecl declares a function. Expr is nil for external functions.
type FunDecl struct {
	Pos
	Name string
	Pars []*ParDecl
	Type *TypeExpr
	Expr Expr
}

type ParDecl struct {
	Pos
	Name string
	Type *TypeExpr
}

type VarDecl struct {
	Pos
	Name string
	Type *TypeExpr
}

type TypeDecl struct {
	Pos
	Name string
	Type *TypeExpr
}

// CompDecl is a record component. Component declarations are owned by the
// record type they belong to.
type CompDecl struct {
	Pos
	Name string
	Type *TypeExpr
}

func (*FunDecl) implDecl()  {}
func (*ParDecl) implDecl()  {}
func (*VarDecl) implDecl()  {}
func (*TypeDecl) implDecl() {}
func (*CompDecl) implDecl() {}

func (d *FunDecl) DeclName() string  { return d.Name }
func (d *ParDecl) DeclName() string  { return d.Name }
func (d *VarDecl) DeclName() string  { return d.Name }
func (d *TypeDecl) DeclName() string { return d.Name }
func (d *CompDecl) DeclName() string { return d.Name }
