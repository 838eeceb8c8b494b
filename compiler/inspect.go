package compiler

// Inspect traverses the AST rooted at node in depth-first order. It calls
// f(node) first; if f returns true, Inspect visits each non-nil child of
// node. Types in annotations are not visited.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}

	switch n := node.(type) {
	case *Program:
		for _, c := range n.Classes {
			Inspect(c, f)
		}
		inspectList(n.Decls, f)
		inspectExprs(f, n.Body)
	case *ClassDecl:
		for _, fd := range n.Fields {
			Inspect(fd, f)
		}
		for _, m := range n.Methods {
			Inspect(m, f)
		}
	case *MethodDecl:
		for _, p := range n.Params {
			Inspect(p, f)
		}
		inspectList(n.Decls, f)
		inspectExprs(f, n.Body)
	case *FunDecl:
		for _, p := range n.Params {
			Inspect(p, f)
		}
		inspectList(n.Decls, f)
		inspectExprs(f, n.Body)
	case *VarDecl:
		inspectExprs(f, n.Value)
	case BinaryOp:
		l, r := n.Operands()
		inspectExprs(f, l, r)
	case *NotExpr:
		inspectExprs(f, n.Operand)
	case *IfExpr:
		inspectExprs(f, n.Cond, n.Then, n.Else)
	case *PrintExpr:
		inspectExprs(f, n.Value)
	case *CallExpr:
		inspectExprs(f, n.Args...)
	case *NewExpr:
		inspectExprs(f, n.Args...)
	case *MethodCallExpr:
		inspectExprs(f, n.Args...)
	}
}

func inspectList(decls []Decl, f func(Node) bool) {
	for _, d := range decls {
		if d != nil {
			Inspect(d, f)
		}
	}
}

func inspectExprs(f func(Node) bool, exprs ...Expr) {
	for _, e := range exprs {
		if e != nil {
			Inspect(e, f)
		}
	}
}
