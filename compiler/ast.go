package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for FOOL
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// MakeSpan creates a span from two positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// Line returns the 1-based line the span starts on.
func (s Span) Line() int {
	return s.Start.Line
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Decl is the interface for declarations that may appear in a let block.
type Decl interface {
	Node
	decl() // marker method
	DeclName() string
}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Program is the root of a FOOL compilation unit. A program without a
// let block has no declarations.
type Program struct {
	SpanVal Span
	Classes []*ClassDecl
	Decls   []Decl
	Body    Expr
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

// HasLet reports whether the program was written as let ... in ... .
func (n *Program) HasLet() bool {
	return len(n.Classes) > 0 || len(n.Decls) > 0
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// VarDecl represents var id:type = exp;
type VarDecl struct {
	SpanVal Span
	Name    string
	Type    Type
	Value   Expr
}

func (n *VarDecl) Span() Span       { return n.SpanVal }
func (n *VarDecl) node()            {}
func (n *VarDecl) decl()            {}
func (n *VarDecl) DeclName() string { return n.Name }

// ParDecl is a formal parameter of a function or method.
type ParDecl struct {
	SpanVal Span
	Name    string
	Type    Type
}

func (n *ParDecl) Span() Span { return n.SpanVal }
func (n *ParDecl) node()      {}

// FunDecl represents fun id:type (params) let decls in body;
type FunDecl struct {
	SpanVal Span
	Name    string
	RetType Type
	Params  []*ParDecl
	Decls   []Decl
	Body    Expr
}

func (n *FunDecl) Span() Span       { return n.SpanVal }
func (n *FunDecl) node()            {}
func (n *FunDecl) decl()            {}
func (n *FunDecl) DeclName() string { return n.Name }

// ArrowType builds the functional type of the function from its signature.
func (n *FunDecl) ArrowType() *ArrowType {
	return signature(n.Params, n.RetType)
}

// FieldDecl is a constructor field of a class.
type FieldDecl struct {
	SpanVal Span
	Name    string
	Type    Type

	// Set by the symbol table pass.
	Offset int
}

func (n *FieldDecl) Span() Span { return n.SpanVal }
func (n *FieldDecl) node()      {}

// MethodDecl is a method of a class. It has the same shape as a function.
type MethodDecl struct {
	SpanVal Span
	Name    string
	RetType Type
	Params  []*ParDecl
	Decls   []Decl
	Body    Expr

	// Set by the symbol table pass.
	Offset int
	// Set by the code generator.
	Label string
}

func (n *MethodDecl) Span() Span { return n.SpanVal }
func (n *MethodDecl) node()      {}

// ArrowType builds the functional type of the method from its signature.
func (n *MethodDecl) ArrowType() *ArrowType {
	return signature(n.Params, n.RetType)
}

// ClassDecl represents class id [extends id] (fields) { methods }.
type ClassDecl struct {
	SpanVal    Span
	Name       string
	Superclass string // empty when there is no superclass
	Fields     []*FieldDecl
	Methods    []*MethodDecl

	// Set by the symbol table pass.
	Entry      *Entry
	SuperEntry *Entry
}

func (n *ClassDecl) Span() Span       { return n.SpanVal }
func (n *ClassDecl) node()            {}
func (n *ClassDecl) decl()            {}
func (n *ClassDecl) DeclName() string { return n.Name }

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// BinaryExpr holds the operands shared by all binary operators.
type BinaryExpr struct {
	SpanVal Span
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// Operands returns the left and right operand.
func (n *BinaryExpr) Operands() (Expr, Expr) { return n.Left, n.Right }

// BinaryOp is implemented by every binary operator node.
type BinaryOp interface {
	Expr
	Operands() (Expr, Expr)
}

// PlusExpr represents left + right.
type PlusExpr struct{ BinaryExpr }

// MinusExpr represents left - right.
type MinusExpr struct{ BinaryExpr }

// TimesExpr represents left * right.
type TimesExpr struct{ BinaryExpr }

// DivExpr represents left / right.
type DivExpr struct{ BinaryExpr }

// EqualExpr represents left == right.
type EqualExpr struct{ BinaryExpr }

// LessEqualExpr represents left <= right.
type LessEqualExpr struct{ BinaryExpr }

// GreaterEqualExpr represents left >= right.
type GreaterEqualExpr struct{ BinaryExpr }

// AndExpr represents left && right.
type AndExpr struct{ BinaryExpr }

// OrExpr represents left || right.
type OrExpr struct{ BinaryExpr }

// NotExpr represents !exp.
type NotExpr struct {
	SpanVal Span
	Operand Expr
}

func (n *NotExpr) Span() Span { return n.SpanVal }
func (n *NotExpr) node()      {}
func (n *NotExpr) expr()      {}

// IfExpr represents if cond then { then } else { else }.
type IfExpr struct {
	SpanVal Span
	Cond    Expr
	Then    Expr
	Else    Expr
}

func (n *IfExpr) Span() Span { return n.SpanVal }
func (n *IfExpr) node()      {}
func (n *IfExpr) expr()      {}

// PrintExpr represents print(exp). Its value is the printed value.
type PrintExpr struct {
	SpanVal Span
	Value   Expr
}

func (n *PrintExpr) Span() Span { return n.SpanVal }
func (n *PrintExpr) node()      {}
func (n *PrintExpr) expr()      {}

// IntLit represents an integer literal.
type IntLit struct {
	SpanVal Span
	Value   int
}

func (n *IntLit) Span() Span { return n.SpanVal }
func (n *IntLit) node()      {}
func (n *IntLit) expr()      {}

// BoolLit represents true or false.
type BoolLit struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLit) Span() Span { return n.SpanVal }
func (n *BoolLit) node()      {}
func (n *BoolLit) expr()      {}

// NullLit represents the null reference.
type NullLit struct {
	SpanVal Span
}

func (n *NullLit) Span() Span { return n.SpanVal }
func (n *NullLit) node()      {}
func (n *NullLit) expr()      {}

// Ref is the resolution recorded on every use site: the entry the name
// resolved to and the nesting level of the use.
type Ref struct {
	Entry        *Entry
	NestingLevel int
}

// Hops returns the number of access links to follow from the use site to
// the frame holding the declaration.
func (r Ref) Hops() int {
	return accessHops(r.NestingLevel, r.Entry.Level)
}

// IdExpr represents a variable, parameter or field reference.
type IdExpr struct {
	SpanVal Span
	Name    string
	Ref
}

func (n *IdExpr) Span() Span { return n.SpanVal }
func (n *IdExpr) node()      {}
func (n *IdExpr) expr()      {}

// CallExpr represents id(args). The callee is a function or, inside a
// class, a sibling method.
type CallExpr struct {
	SpanVal Span
	Name    string
	Args    []Expr
	Ref
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// NewExpr represents new C(args).
type NewExpr struct {
	SpanVal   Span
	ClassName string
	Args      []Expr

	// Set by the symbol table pass.
	ClassEntry *Entry
}

func (n *NewExpr) Span() Span { return n.SpanVal }
func (n *NewExpr) node()      {}
func (n *NewExpr) expr()      {}

// MethodCallExpr represents receiver.method(args).
type MethodCallExpr struct {
	SpanVal  Span
	Receiver string
	Method   string
	Args     []Expr
	Ref      // resolution of the receiver

	// Set by the symbol table pass.
	MethodEntry *Entry
}

func (n *MethodCallExpr) Span() Span { return n.SpanVal }
func (n *MethodCallExpr) node()      {}
func (n *MethodCallExpr) expr()      {}
