package compiler

import "errors"

// ---------------------------------------------------------------------------
// Type Checker
// ---------------------------------------------------------------------------

// TypeChecker is the second semantic pass. It runs over a program whose
// references were resolved by the symbol table pass and computes the type
// of every expression bottom-up.
type TypeChecker struct {
	diagnosticList
	ctx *Context
}

// NewTypeChecker creates a type checker reading class relations from ctx.
func NewTypeChecker(ctx *Context) *TypeChecker {
	return &TypeChecker{
		diagnosticList: diagnosticList{phase: PhaseType},
		ctx:            ctx,
	}
}

// TypeCheck checks prog and returns the type of its body together with the
// type errors found. The type is nil when the body itself is ill-typed.
func TypeCheck(ctx *Context, prog *Program) (Type, []Diagnostic) {
	tc := NewTypeChecker(ctx)
	t := tc.Check(prog)
	return t, tc.Diagnostics()
}

// Check type checks every declaration independently, then the body.
func (tc *TypeChecker) Check(prog *Program) Type {
	for _, class := range prog.Classes {
		tc.checkDecl(class)
	}
	for _, dec := range prog.Decls {
		tc.checkDecl(dec)
	}
	t, err := tc.visit(prog.Body)
	if err != nil {
		tc.report(err)
		return nil
	}
	return t
}

// checkDecl checks one declaration. An error aborts only that declaration.
func (tc *TypeChecker) checkDecl(dec Decl) {
	if err := tc.visitDecl(dec); err != nil {
		tc.report(err)
	}
}

// report turns an error returned by the visit functions into a diagnostic.
// Incomplete types produce no diagnostic.
func (tc *TypeChecker) report(err error) {
	var te *TypeError
	switch {
	case errors.As(err, &te):
		tc.diags = append(tc.diags, Diagnostic{Pos: te.Pos, Phase: PhaseType, Message: te.Msg})
	case errors.Is(err, ErrIncomplete):
		log.Debugf("skipping check on incomplete type: %v", err)
	default:
		tc.diags = append(tc.diags, Diagnostic{Phase: PhaseType, Message: err.Error()})
	}
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (tc *TypeChecker) visitDecl(dec Decl) error {
	switch d := dec.(type) {
	case *VarDecl:
		if err := checkComplete(d.Type); err != nil {
			return err
		}
		t, err := tc.visit(d.Value)
		if err != nil {
			return err
		}
		if !IsSubtype(tc.ctx, t, d.Type) {
			return typeErrorf(d, "incompatible value for variable %s: %s is not a subtype of %s",
				d.Name, TypeString(t), d.Type)
		}
		return nil

	case *FunDecl:
		return tc.checkBody(d, "function", d.Name, signature(d.Params, d.RetType), d.Decls, d.Body)

	case *ClassDecl:
		return tc.visitClass(d)
	}
	return typeErrorf(dec, "unsupported declaration %T", dec)
}

// checkBody checks the local declarations and body of a function or method
// against its declared signature.
func (tc *TypeChecker) checkBody(at Node, what, name string, sig *ArrowType, decls []Decl, body Expr) error {
	if err := checkComplete(sig); err != nil {
		return err
	}
	for _, dec := range decls {
		tc.checkDecl(dec)
	}
	t, err := tc.visit(body)
	if err != nil {
		return err
	}
	if !IsSubtype(tc.ctx, t, sig.Ret) {
		return typeErrorf(at, "wrong return type for %s %s: %s is not a subtype of %s",
			what, name, TypeString(t), TypeString(sig.Ret))
	}
	return nil
}

func (tc *TypeChecker) visitClass(n *ClassDecl) error {
	for _, m := range n.Methods {
		if err := tc.checkBody(m, "method", m.Name, m.ArrowType(), m.Decls, m.Body); err != nil {
			tc.report(err)
		}
	}
	if n.SuperEntry == nil {
		return nil
	}

	own, ok := classTypeOf(n.Entry)
	if !ok {
		return ErrIncomplete
	}
	super, ok := classTypeOf(n.SuperEntry)
	if !ok {
		return ErrIncomplete
	}

	// Redeclared members must refine the member at the same position.
	for _, f := range n.Fields {
		i := fieldIndex(f.Offset)
		if i >= len(super.Fields) {
			continue
		}
		if !IsSubtype(tc.ctx, own.Fields[i], super.Fields[i]) {
			tc.errorAt(f, "wrong type for field %s of class %s: %s is not a subtype of %s",
				f.Name, n.Name, TypeString(own.Fields[i]), TypeString(super.Fields[i]))
		}
	}
	for _, m := range n.Methods {
		i := methodIndex(m.Offset)
		if i >= len(super.Methods) {
			continue
		}
		if !IsSubtype(tc.ctx, own.Methods[i], super.Methods[i]) {
			tc.errorAt(m, "wrong type for method %s of class %s: %s does not override %s",
				m.Name, n.Name, TypeString(own.Methods[i]), TypeString(super.Methods[i]))
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (tc *TypeChecker) visit(expr Expr) (Type, error) {
	switch e := expr.(type) {
	case *PlusExpr:
		return tc.arithmetic(e, "+")
	case *MinusExpr:
		return tc.arithmetic(e, "-")
	case *TimesExpr:
		return tc.arithmetic(e, "*")
	case *DivExpr:
		return tc.arithmetic(e, "/")
	case *EqualExpr:
		return tc.comparison(e, "==")
	case *LessEqualExpr:
		return tc.comparison(e, "<=")
	case *GreaterEqualExpr:
		return tc.comparison(e, ">=")
	case *AndExpr:
		return tc.logical(e, "&&")
	case *OrExpr:
		return tc.logical(e, "||")

	case *NotExpr:
		t, err := tc.visit(e.Operand)
		if err != nil {
			return nil, err
		}
		if !IsSubtype(tc.ctx, t, &BoolType{}) {
			return nil, typeErrorf(e, "non boolean operand in !")
		}
		return &BoolType{}, nil

	case *IfExpr:
		c, err := tc.visit(e.Cond)
		if err != nil {
			return nil, err
		}
		if !IsSubtype(tc.ctx, c, &BoolType{}) {
			return nil, typeErrorf(e, "non boolean condition in if")
		}
		t, err := tc.visit(e.Then)
		if err != nil {
			return nil, err
		}
		f, err := tc.visit(e.Else)
		if err != nil {
			return nil, err
		}
		result := moreGeneral(tc.ctx, t, f)
		if result == nil {
			return nil, typeErrorf(e, "incompatible types in then-else branches: %s and %s",
				TypeString(t), TypeString(f))
		}
		return result, nil

	case *PrintExpr:
		return tc.visit(e.Value)

	case *IntLit:
		return &IntType{}, nil
	case *BoolLit:
		return &BoolType{}, nil
	case *NullLit:
		return &EmptyType{}, nil

	case *IdExpr:
		return tc.visitId(e)

	case *CallExpr:
		if e.Entry == nil {
			return nil, typeErrorf(e, "unresolved function %s", e.Name)
		}
		at, ok := e.Entry.Type.(*ArrowType)
		if !ok {
			return nil, typeErrorf(e, "invocation of a non-function %s", e.Name)
		}
		return tc.checkCall(e, e.Name, at, e.Args)

	case *NewExpr:
		return tc.visitNew(e)

	case *MethodCallExpr:
		if e.MethodEntry == nil {
			return nil, typeErrorf(e, "unresolved method %s.%s", e.Receiver, e.Method)
		}
		at, ok := e.MethodEntry.Type.(*ArrowType)
		if !ok {
			return nil, typeErrorf(e, "invocation of a non-method %s.%s", e.Receiver, e.Method)
		}
		return tc.checkCall(e, e.Receiver+"."+e.Method, at, e.Args)
	}
	return nil, typeErrorf(expr, "unsupported expression %T", expr)
}

func (tc *TypeChecker) operands(e BinaryOp) (Type, Type, error) {
	left, right := e.Operands()
	l, err := tc.visit(left)
	if err != nil {
		return nil, nil, err
	}
	r, err := tc.visit(right)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func (tc *TypeChecker) arithmetic(e BinaryOp, op string) (Type, error) {
	l, r, err := tc.operands(e)
	if err != nil {
		return nil, err
	}
	if !IsSubtype(tc.ctx, l, &IntType{}) || !IsSubtype(tc.ctx, r, &IntType{}) {
		return nil, typeErrorf(e, "non integers in %s", op)
	}
	return &IntType{}, nil
}

func (tc *TypeChecker) comparison(e BinaryOp, op string) (Type, error) {
	l, r, err := tc.operands(e)
	if err != nil {
		return nil, err
	}
	if !related(tc.ctx, l, r) {
		return nil, typeErrorf(e, "incompatible types in %s: %s and %s", op, TypeString(l), TypeString(r))
	}
	return &BoolType{}, nil
}

func (tc *TypeChecker) logical(e BinaryOp, op string) (Type, error) {
	l, r, err := tc.operands(e)
	if err != nil {
		return nil, err
	}
	if !IsSubtype(tc.ctx, l, &BoolType{}) || !IsSubtype(tc.ctx, r, &BoolType{}) {
		return nil, typeErrorf(e, "non booleans in %s", op)
	}
	return &BoolType{}, nil
}

// visitId types an identifier used as a value. Functions, methods and
// classes are not values.
func (tc *TypeChecker) visitId(e *IdExpr) (Type, error) {
	if e.Entry == nil {
		return nil, typeErrorf(e, "unresolved identifier %s", e.Name)
	}
	switch e.Entry.Kind {
	case KindFun, KindMethod:
		return nil, typeErrorf(e, "wrong usage of function identifier %s", e.Name)
	case KindClass:
		return nil, typeErrorf(e, "wrong usage of class identifier %s", e.Name)
	}
	if err := checkComplete(e.Entry.Type); err != nil {
		return nil, err
	}
	return e.Entry.Type, nil
}

// checkCall checks arity and argument types of a call and yields the
// declared return type.
func (tc *TypeChecker) checkCall(at Node, name string, sig *ArrowType, args []Expr) (Type, error) {
	if err := checkComplete(sig); err != nil {
		return nil, err
	}
	if len(args) != len(sig.Params) {
		return nil, typeErrorf(at, "wrong number of parameters in the invocation of %s: got %d, want %d",
			name, len(args), len(sig.Params))
	}
	for i, arg := range args {
		t, err := tc.visit(arg)
		if err != nil {
			return nil, err
		}
		if !IsSubtype(tc.ctx, t, sig.Params[i]) {
			return nil, typeErrorf(arg, "wrong type for parameter %d in the invocation of %s: %s is not a subtype of %s",
				i+1, name, TypeString(t), TypeString(sig.Params[i]))
		}
	}
	return sig.Ret, nil
}

func (tc *TypeChecker) visitNew(e *NewExpr) (Type, error) {
	if e.ClassEntry == nil {
		return nil, typeErrorf(e, "unresolved class %s", e.ClassName)
	}
	ct, ok := classTypeOf(e.ClassEntry)
	if !ok {
		return nil, typeErrorf(e, "invocation of a non-class %s", e.ClassName)
	}
	if err := checkComplete(ct); err != nil {
		return nil, err
	}
	if len(e.Args) != len(ct.Fields) {
		return nil, typeErrorf(e, "wrong number of parameters in the instantiation of %s: got %d, want %d",
			e.ClassName, len(e.Args), len(ct.Fields))
	}
	for i, arg := range e.Args {
		t, err := tc.visit(arg)
		if err != nil {
			return nil, err
		}
		if !IsSubtype(tc.ctx, t, ct.Fields[i]) {
			return nil, typeErrorf(arg, "wrong type for field %d in the instantiation of %s: %s is not a subtype of %s",
				i+1, e.ClassName, TypeString(t), TypeString(ct.Fields[i]))
		}
	}
	return &RefType{Class: e.ClassName}, nil
}
