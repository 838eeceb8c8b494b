package compiler

import (
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// AST printer
// ---------------------------------------------------------------------------

// Dump writes an indented tree of node to w. Resolved entries are shown
// once the symbol table pass has run.
func Dump(w io.Writer, node Node) {
	d := &dumper{w: w}
	d.node(node)
}

// DumpString returns the output of Dump as a string.
func DumpString(node Node) string {
	var b strings.Builder
	Dump(&b, node)
	return b.String()
}

type dumper struct {
	w      io.Writer
	indent int
}

func (d *dumper) line(format string, args ...interface{}) {
	fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", d.indent), fmt.Sprintf(format, args...))
}

func (d *dumper) nested(f func()) {
	d.indent++
	f()
	d.indent--
}

func refString(r Ref) string {
	if r.Entry == nil {
		return ""
	}
	return fmt.Sprintf(" at nestinglevel %d [%s]", r.NestingLevel, r.Entry)
}

func (d *dumper) node(node Node) {
	switch n := node.(type) {
	case nil:
		d.line("<nil>")
	case *Program:
		if n.HasLet() {
			d.line("ProgLetIn")
		} else {
			d.line("Prog")
		}
		d.nested(func() {
			for _, c := range n.Classes {
				d.node(c)
			}
			for _, dec := range n.Decls {
				d.node(dec)
			}
			d.node(n.Body)
		})

	case *ClassDecl:
		if n.Superclass != "" {
			d.line("Class: %s extends %s", n.Name, n.Superclass)
		} else {
			d.line("Class: %s", n.Name)
		}
		d.nested(func() {
			for _, f := range n.Fields {
				d.line("Field: %s %s offset %d", f.Name, TypeString(f.Type), f.Offset)
			}
			for _, m := range n.Methods {
				d.line("Method: %s %s offset %d", m.Name, TypeString(m.ArrowType()), m.Offset)
				d.nested(func() { d.body(m.Params, m.Decls, m.Body) })
			}
		})

	case *FunDecl:
		d.line("Fun: %s %s", n.Name, TypeString(signature(n.Params, n.RetType)))
		d.nested(func() { d.body(n.Params, n.Decls, n.Body) })

	case *VarDecl:
		d.line("Var: %s %s", n.Name, TypeString(n.Type))
		d.nested(func() { d.node(n.Value) })

	case BinaryOp:
		d.line("%s", strings.TrimSuffix(strings.TrimPrefix(fmt.Sprintf("%T", n), "*compiler."), "Expr"))
		left, right := n.Operands()
		d.nested(func() {
			d.node(left)
			d.node(right)
		})

	case *NotExpr:
		d.line("Not")
		d.nested(func() { d.node(n.Operand) })

	case *IfExpr:
		d.line("If")
		d.nested(func() {
			d.node(n.Cond)
			d.node(n.Then)
			d.node(n.Else)
		})

	case *PrintExpr:
		d.line("Print")
		d.nested(func() { d.node(n.Value) })

	case *IntLit:
		d.line("Int: %d", n.Value)
	case *BoolLit:
		d.line("Bool: %t", n.Value)
	case *NullLit:
		d.line("Empty")

	case *IdExpr:
		d.line("Id: %s%s", n.Name, refString(n.Ref))

	case *CallExpr:
		d.line("Call: %s%s", n.Name, refString(n.Ref))
		d.nested(func() { d.args(n.Args) })

	case *NewExpr:
		if n.ClassEntry != nil {
			d.line("New: %s [%s]", n.ClassName, n.ClassEntry)
		} else {
			d.line("New: %s", n.ClassName)
		}
		d.nested(func() { d.args(n.Args) })

	case *MethodCallExpr:
		d.line("ClassCall: %s.%s%s", n.Receiver, n.Method, refString(n.Ref))
		d.nested(func() {
			if n.MethodEntry != nil {
				d.line("Method entry [%s]", n.MethodEntry)
			}
			d.args(n.Args)
		})

	default:
		d.line("%T", node)
	}
}

func (d *dumper) body(params []*ParDecl, decls []Decl, body Expr) {
	for _, p := range params {
		d.line("Par: %s %s", p.Name, TypeString(p.Type))
	}
	for _, dec := range decls {
		d.node(dec)
	}
	d.node(body)
}

func (d *dumper) args(args []Expr) {
	for _, a := range args {
		d.node(a)
	}
}
