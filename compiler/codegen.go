package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Codegen: compile the resolved AST to SVM assembly
// ---------------------------------------------------------------------------

// Generator is the third pass. It emits the program body into the main
// code stream and every function and method body into a subroutine pool
// appended after halt.
type Generator struct {
	ctx *Context

	code []string // stream currently written
	pool []string // subroutine bodies

	labelCount    int
	funLabelCount int
}

// NewGenerator creates a code generator. ctx must have been filled by the
// symbol table pass.
func NewGenerator(ctx *Context) *Generator {
	return &Generator{ctx: ctx}
}

// Generate returns the assembly text of prog.
func Generate(ctx *Context, prog *Program) string {
	return NewGenerator(ctx).Generate(prog)
}

// Generate compiles prog: main body first, ending in halt, followed by all
// subroutine bodies.
func (g *Generator) Generate(prog *Program) string {
	g.code = nil
	g.pool = nil

	if prog.HasLet() {
		// Slot of the return address in the global frame.
		g.emit("push 0")
		if len(prog.Classes) > 0 {
			g.emit(saveGlobalFrame()...)
		}
		for _, class := range prog.Classes {
			g.genClass(class)
		}
		for _, dec := range prog.Decls {
			g.genDecl(dec)
		}
	}
	g.genExpr(prog.Body)
	g.emit("halt")

	lines := append(g.code, g.pool...)
	log.Debugf("generated %d lines (%d in subroutines)", len(lines), len(g.pool))
	return strings.Join(lines, "\n") + "\n"
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (g *Generator) emit(instrs ...string) {
	g.code = append(g.code, instrs...)
}

func (g *Generator) label(name string) {
	g.code = append(g.code, name+":")
}

func (g *Generator) push(n int) {
	g.emit("push " + strconv.Itoa(n))
}

func (g *Generator) freshLabel() string {
	l := "label" + strconv.Itoa(g.labelCount)
	g.labelCount++
	return l
}

func (g *Generator) freshFunLabel() string {
	l := "function" + strconv.Itoa(g.funLabelCount)
	g.funLabelCount++
	return l
}

// frame emits the code that leaves on the stack the address of the frame
// declaring the name ref resolved to.
func (g *Generator) frame(ref Ref) []string {
	return followAccessLinks(ref.Hops())
}

// load emits the code that loads the value of the name ref resolved to.
func (g *Generator) load(ref Ref) {
	g.emit(g.frame(ref)...)
	g.push(ref.Entry.Offset)
	g.emit("add", "lw")
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (g *Generator) genDecl(dec Decl) {
	switch d := dec.(type) {
	case *VarDecl:
		g.genExpr(d.Value)
	case *FunDecl:
		label := g.freshFunLabel()
		g.genSubroutine(label, d.Params, d.Decls, d.Body)
		g.emit("push " + label)
	case *ClassDecl:
		g.genClass(d)
	default:
		panic(fmt.Sprintf("codegen: unsupported declaration %T", dec))
	}
}

// genSubroutine compiles a function or method body into the subroutine
// pool, following the calling convention described in frame.go.
func (g *Generator) genSubroutine(label string, params []*ParDecl, decls []Decl, body Expr) {
	saved := g.code
	g.code = nil

	g.label(label)
	g.emit("cfp", "lra")
	for _, dec := range decls {
		g.genDecl(dec)
	}
	g.genExpr(body)
	g.emit("stm")
	for range decls {
		g.emit("pop")
	}
	g.emit("sra", "pop")
	for range params {
		g.emit("pop")
	}
	g.emit("sfp", "ltm", "lra", "js")

	g.pool = append(g.pool, g.code...)
	g.code = saved
}

// genClass compiles the methods of a class and allocates its dispatch table
// in the heap. The value left on the stack is the dispatch pointer.
func (g *Generator) genClass(n *ClassDecl) {
	var dispatch []string
	if n.Superclass != "" {
		dispatch = append(dispatch, g.ctx.DispatchTables[n.Superclass]...)
	}

	for _, m := range n.Methods {
		m.Label = g.freshFunLabel()
		g.genSubroutine(m.Label, m.Params, m.Decls, m.Body)
		dispatch = setSlot(dispatch, methodIndex(m.Offset), m.Label)
	}
	g.ctx.DispatchTables[n.Name] = dispatch

	g.emit("lhp")
	for _, label := range dispatch {
		g.emit("push "+label, "lhp", "sw")
		g.emit("lhp", "push 1", "add", "shp")
	}
}

func setSlot(table []string, i int, label string) []string {
	for len(table) <= i {
		table = append(table, "")
	}
	table[i] = label
	return table
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *Generator) genExpr(expr Expr) {
	switch e := expr.(type) {
	case *PlusExpr:
		g.genOperands(e)
		g.emit("add")
	case *MinusExpr:
		g.genOperands(e)
		g.emit("sub")
	case *TimesExpr:
		g.genOperands(e)
		g.emit("mult")
	case *DivExpr:
		g.genOperands(e)
		g.emit("div")

	case *EqualExpr:
		g.genOperands(e)
		g.genBranchToBool("beq")
	case *LessEqualExpr:
		// a <= b: branch when a <= b.
		g.genOperands(e)
		g.genBranchToBool("bleq")
	case *GreaterEqualExpr:
		// a >= b: branch when b <= a.
		g.genExpr(e.Right)
		g.genExpr(e.Left)
		g.genBranchToBool("bleq")

	case *AndExpr:
		g.genShortCircuit(e, 0)
	case *OrExpr:
		g.genShortCircuit(e, 1)

	case *NotExpr:
		g.genExpr(e.Operand)
		g.push(0)
		g.genBranchToBool("beq")

	case *IfExpr:
		thenLabel := g.freshLabel()
		endLabel := g.freshLabel()
		g.genExpr(e.Cond)
		g.push(1)
		g.emit("beq " + thenLabel)
		g.genExpr(e.Else)
		g.emit("b " + endLabel)
		g.label(thenLabel)
		g.genExpr(e.Then)
		g.label(endLabel)

	case *PrintExpr:
		g.genExpr(e.Value)
		g.emit("print")

	case *IntLit:
		g.push(e.Value)
	case *BoolLit:
		if e.Value {
			g.push(1)
		} else {
			g.push(0)
		}
	case *NullLit:
		g.push(NullPointer)

	case *IdExpr:
		g.load(e.Ref)

	case *CallExpr:
		g.genCallPrologue(e.Args)
		g.emit(g.frame(e.Ref)...)
		if e.Entry.Kind == KindMethod {
			// Sibling method: the access link is the object pointer.
			g.genDispatch(e.Entry.Offset)
		} else {
			g.emit("stm", "ltm", "ltm")
			g.push(e.Entry.Offset)
			g.emit("add", "lw", "js")
		}

	case *NewExpr:
		g.genNew(e)

	case *MethodCallExpr:
		g.genCallPrologue(e.Args)
		g.load(e.Ref)
		g.genDispatch(e.MethodEntry.Offset)

	default:
		panic(fmt.Sprintf("codegen: unsupported expression %T", expr))
	}
}

func (g *Generator) genOperands(e BinaryOp) {
	left, right := e.Operands()
	g.genExpr(left)
	g.genExpr(right)
}

// genBranchToBool consumes the two values on top of the stack with a
// compare-and-branch instruction and pushes 1 if the branch is taken, 0
// otherwise.
func (g *Generator) genBranchToBool(branch string) {
	trueLabel := g.freshLabel()
	endLabel := g.freshLabel()
	g.emit(branch + " " + trueLabel)
	g.push(0)
	g.emit("b " + endLabel)
	g.label(trueLabel)
	g.push(1)
	g.label(endLabel)
}

// genShortCircuit compiles && (decisive = 0) and || (decisive = 1): the
// right operand is evaluated only if the left one is not decisive.
func (g *Generator) genShortCircuit(e BinaryOp, decisive int) {
	left, right := e.Operands()
	shortLabel := g.freshLabel()
	endLabel := g.freshLabel()

	g.genExpr(left)
	g.push(decisive)
	g.emit("beq " + shortLabel)
	g.genExpr(right)
	g.push(decisive)
	g.emit("beq " + shortLabel)
	g.push(1 - decisive)
	g.emit("b " + endLabel)
	g.label(shortLabel)
	g.push(decisive)
	g.label(endLabel)
}

// genCallPrologue pushes the control link and the arguments, last first.
func (g *Generator) genCallPrologue(args []Expr) {
	g.emit("lfp")
	for i := len(args) - 1; i >= 0; i-- {
		g.genExpr(args[i])
	}
}

// genDispatch expects the object pointer on top of the stack. It keeps it
// as the access link and jumps through the dispatch table.
func (g *Generator) genDispatch(methodOffset int) {
	g.emit("stm", "ltm", "ltm")
	g.emit("lw")
	g.push(methodOffset)
	g.emit("add", "lw", "js")
}

// genNew copies the arguments into fresh heap cells, appends the dispatch
// pointer of the class and leaves the object pointer on the stack.
func (g *Generator) genNew(e *NewExpr) {
	for _, arg := range e.Args {
		g.genExpr(arg)
	}
	for range e.Args {
		g.emit("lhp", "sw")
		g.emit("lhp", "push 1", "add", "shp")
	}
	// Classes live in the global frame. Inside a method body the access
	// links lead to the object rather than to the enclosing frames.
	g.emit(loadGlobal(e.ClassEntry.Offset)...)
	g.emit("lhp", "sw")
	g.emit("lhp")
	g.emit("lhp", "push 1", "add", "shp")
}
