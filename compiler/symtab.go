package compiler

// ---------------------------------------------------------------------------
// Symbol Table Builder: nesting levels, offsets and virtual tables
// ---------------------------------------------------------------------------

// SymbolTableBuilder is the first semantic pass. It resolves every name
// use to the entry of its declaration, assigns frame, field and method
// offsets and builds the virtual table of every class.
type SymbolTableBuilder struct {
	diagnosticList
	ctx *Context

	scopes       []map[string]*Entry // scopes[i] holds the names of nesting level i
	nestingLevel int
	decOffset    int // offset of the next local declaration at the current level
}

// NewSymbolTableBuilder creates a builder that records classes in ctx.
func NewSymbolTableBuilder(ctx *Context) *SymbolTableBuilder {
	return &SymbolTableBuilder{
		diagnosticList: diagnosticList{phase: PhaseScope},
		ctx:            ctx,
		decOffset:      FirstLocalOffset,
	}
}

// BuildSymbolTable runs the symbol table pass over prog and returns the
// scope errors it found.
func BuildSymbolTable(ctx *Context, prog *Program) []Diagnostic {
	b := NewSymbolTableBuilder(ctx)
	b.Build(prog)
	return b.Diagnostics()
}

// Build resolves the whole program.
func (b *SymbolTableBuilder) Build(prog *Program) {
	b.scopes = []map[string]*Entry{make(map[string]*Entry)}
	b.nestingLevel = 0
	b.decOffset = FirstLocalOffset

	for _, class := range prog.Classes {
		b.visitClass(class)
	}
	for _, dec := range prog.Decls {
		b.visitDecl(dec)
	}
	b.visitExpr(prog.Body)

	b.scopes = nil
}

// ---------------------------------------------------------------------------
// Scope handling
// ---------------------------------------------------------------------------

// lookup walks the scope stack outward from the current nesting level.
func (b *SymbolTableBuilder) lookup(name string) *Entry {
	for j := b.nestingLevel; j >= 0; j-- {
		if entry, ok := b.scopes[j][name]; ok {
			return entry
		}
	}
	return nil
}

// declare adds an entry to the current scope. The first declaration of a
// name stays authoritative.
func (b *SymbolTableBuilder) declare(node Node, what, name string, entry *Entry) bool {
	scope := b.scopes[b.nestingLevel]
	if _, exists := scope[name]; exists {
		b.errorAt(node, "%s %s already declared", what, name)
		return false
	}
	scope[name] = entry
	return true
}

// enterScope pushes a new nesting level and returns the offset counter of
// the enclosing level, to be passed to exitScope.
func (b *SymbolTableBuilder) enterScope(scope map[string]*Entry) int {
	b.nestingLevel++
	b.scopes = append(b.scopes, scope)
	saved := b.decOffset
	b.decOffset = FirstLocalOffset
	return saved
}

// exitScope pops the current nesting level and restores the offset counter.
func (b *SymbolTableBuilder) exitScope(savedOffset int) {
	b.scopes = b.scopes[:b.nestingLevel]
	b.nestingLevel--
	b.decOffset = savedOffset
}

// nextLocalOffset returns the offset of the next declaration at the
// current nesting level. Every declaration occupies a slot, duplicates
// included, because the code generator pushes a value for each of them.
func (b *SymbolTableBuilder) nextLocalOffset() int {
	off := b.decOffset
	b.decOffset--
	return off
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (b *SymbolTableBuilder) visitDecl(dec Decl) {
	switch d := dec.(type) {
	case *VarDecl:
		b.visitVar(d)
	case *FunDecl:
		b.visitFun(d)
	case *ClassDecl:
		b.visitClass(d)
	default:
		b.errorAt(dec, "unsupported declaration %T", dec)
	}
}

func (b *SymbolTableBuilder) visitVar(n *VarDecl) {
	// The initializer cannot see the variable it initializes.
	b.visitExpr(n.Value)
	b.checkTypeNames(n, n.Type)
	entry := &Entry{Level: b.nestingLevel, Type: n.Type, Offset: b.nextLocalOffset(), Kind: KindVar, Decl: n}
	b.declare(n, "var", n.Name, entry)
}

func (b *SymbolTableBuilder) visitFun(n *FunDecl) {
	b.checkTypeNames(n, n.RetType)
	entry := &Entry{
		Level:  b.nestingLevel,
		Type:   signature(n.Params, n.RetType),
		Offset: b.nextLocalOffset(),
		Kind:   KindFun,
		Decl:   n,
	}
	b.declare(n, "fun", n.Name, entry)

	saved := b.enterScope(make(map[string]*Entry))
	b.declareParams(n.Params)
	for _, dec := range n.Decls {
		b.visitDecl(dec)
	}
	b.visitExpr(n.Body)
	b.exitScope(saved)
}

func (b *SymbolTableBuilder) declareParams(params []*ParDecl) {
	parOffset := FirstParamOffset
	for _, par := range params {
		b.checkTypeNames(par, par.Type)
		entry := &Entry{Level: b.nestingLevel, Type: par.Type, Offset: parOffset, Kind: KindPar, Decl: par}
		parOffset++
		b.declare(par, "par", par.Name, entry)
	}
}

func (b *SymbolTableBuilder) visitClass(n *ClassDecl) {
	classType := &ClassType{SpanVal: n.SpanVal}
	vt := NewVirtualTable()

	if n.Superclass != "" {
		superEntry := b.lookup(n.Superclass)
		superVT, isClass := b.ctx.ClassTable[n.Superclass]
		superType, hasType := classTypeOf(superEntry)
		if superEntry == nil || superEntry.Kind != KindClass || !isClass || !hasType {
			b.errorAt(n, "class %s extends undeclared class %s", n.Name, n.Superclass)
		} else {
			n.SuperEntry = superEntry
			classType.Fields = append(classType.Fields, superType.Fields...)
			classType.Methods = append(classType.Methods, superType.Methods...)
			vt = superVT.Copy()
		}
	}

	entry := &Entry{Level: b.nestingLevel, Type: classType, Offset: b.nextLocalOffset(), Kind: KindClass, Decl: n}
	n.Entry = entry
	if b.declare(n, "class", n.Name, entry) {
		b.ctx.ClassTable[n.Name] = vt
		b.ctx.Classes[n.Name] = n
		if n.SuperEntry != nil {
			b.ctx.SuperType[n.Name] = n.Superclass
		}
	}

	saved := b.enterScope(vt.Entries)
	declared := make(map[string]bool)
	b.declareFields(n, classType, vt, declared)
	b.declareMethods(n, classType, vt, declared)

	for _, m := range n.Methods {
		b.visitMethodBody(m)
	}
	b.exitScope(saved)

	log.Debugf("class %s: %d fields, %d methods", n.Name, len(classType.Fields), len(classType.Methods))
}

// declareFields installs the fields of a class into its virtual table. A
// field redeclaring an inherited one keeps the inherited offset.
func (b *SymbolTableBuilder) declareFields(n *ClassDecl, classType *ClassType, vt *VirtualTable, declared map[string]bool) {
	nextOffset := fieldOffset(len(classType.Fields))
	for _, f := range n.Fields {
		b.checkTypeNames(f, f.Type)
		if declared[f.Name] {
			b.errorAt(f, "field %s already declared in class %s", f.Name, n.Name)
			continue
		}
		declared[f.Name] = true

		if inherited := vt.Lookup(f.Name); inherited != nil {
			if inherited.Kind != KindField {
				b.errorAt(f, "field %s of class %s overrides a method", f.Name, n.Name)
				continue
			}
			f.Offset = inherited.Offset
			classType.Fields[fieldIndex(f.Offset)] = f.Type
		} else {
			f.Offset = nextOffset
			nextOffset--
			classType.Fields = append(classType.Fields, f.Type)
		}
		vt.Put(f.Name, &Entry{Level: b.nestingLevel, Type: f.Type, Offset: f.Offset, Kind: KindField, Decl: f})
	}
}

// declareMethods installs the method signatures of a class into its virtual
// table before any body is resolved, so methods can call each other. An
// overriding method keeps the inherited dispatch slot.
func (b *SymbolTableBuilder) declareMethods(n *ClassDecl, classType *ClassType, vt *VirtualTable, declared map[string]bool) {
	nextOffset := methodOffset(len(classType.Methods))
	for _, m := range n.Methods {
		b.checkTypeNames(m, m.RetType)
		if declared[m.Name] {
			b.errorAt(m, "method %s already declared in class %s", m.Name, n.Name)
			continue
		}
		declared[m.Name] = true

		arrow := m.ArrowType()
		if inherited := vt.Lookup(m.Name); inherited != nil {
			if inherited.Kind != KindMethod {
				b.errorAt(m, "method %s of class %s overrides a field", m.Name, n.Name)
				continue
			}
			m.Offset = inherited.Offset
			classType.Methods[methodIndex(m.Offset)] = arrow
		} else {
			m.Offset = nextOffset
			nextOffset++
			classType.Methods = append(classType.Methods, arrow)
		}
		vt.Put(m.Name, &Entry{Level: b.nestingLevel, Type: arrow, Offset: m.Offset, Kind: KindMethod, Decl: m})
	}
}

func (b *SymbolTableBuilder) visitMethodBody(n *MethodDecl) {
	saved := b.enterScope(make(map[string]*Entry))
	b.declareParams(n.Params)
	for _, dec := range n.Decls {
		b.visitDecl(dec)
	}
	b.visitExpr(n.Body)
	b.exitScope(saved)
}

// checkTypeNames reports class names in a type annotation that do not
// denote a declared class.
func (b *SymbolTableBuilder) checkTypeNames(at Node, t Type) {
	if isNil(t) {
		return
	}
	switch v := t.(type) {
	case *RefType:
		if v.Class != "" && !b.ctx.IsClass(v.Class) {
			b.errorAt(at, "class %s not declared", v.Class)
		}
	case *ArrowType:
		for _, p := range v.Params {
			b.checkTypeNames(at, p)
		}
		b.checkTypeNames(at, v.Ret)
	}
}

// classTypeOf returns the class type held by a class entry.
func classTypeOf(e *Entry) (*ClassType, bool) {
	if e == nil {
		return nil, false
	}
	ct, ok := e.Type.(*ClassType)
	return ct, ok
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (b *SymbolTableBuilder) visitExpr(expr Expr) {
	switch e := expr.(type) {
	case nil:
	case BinaryOp:
		left, right := e.Operands()
		b.visitExpr(left)
		b.visitExpr(right)
	case *NotExpr:
		b.visitExpr(e.Operand)
	case *IfExpr:
		b.visitExpr(e.Cond)
		b.visitExpr(e.Then)
		b.visitExpr(e.Else)
	case *PrintExpr:
		b.visitExpr(e.Value)
	case *IntLit, *BoolLit, *NullLit:
	case *IdExpr:
		if entry := b.lookup(e.Name); entry == nil {
			b.errorAt(e, "var or par %s not declared", e.Name)
		} else {
			e.Ref = Ref{Entry: entry, NestingLevel: b.nestingLevel}
		}
	case *CallExpr:
		if entry := b.lookup(e.Name); entry == nil {
			b.errorAt(e, "fun %s not declared", e.Name)
		} else {
			e.Ref = Ref{Entry: entry, NestingLevel: b.nestingLevel}
		}
		b.visitArgs(e.Args)
	case *NewExpr:
		entry := b.lookup(e.ClassName)
		switch {
		case entry == nil:
			b.errorAt(e, "class %s not declared", e.ClassName)
		case entry.Kind != KindClass || !b.ctx.IsClass(e.ClassName):
			b.errorAt(e, "%s is not a class", e.ClassName)
		default:
			e.ClassEntry = entry
		}
		b.visitArgs(e.Args)
	case *MethodCallExpr:
		b.visitMethodCall(e)
		b.visitArgs(e.Args)
	default:
		b.errorAt(expr, "unsupported expression %T", expr)
	}
}

func (b *SymbolTableBuilder) visitArgs(args []Expr) {
	for _, arg := range args {
		b.visitExpr(arg)
	}
}

// visitMethodCall resolves the receiver through the scope stack, then the
// method through the virtual table of the receiver's declared class.
func (b *SymbolTableBuilder) visitMethodCall(e *MethodCallExpr) {
	entry := b.lookup(e.Receiver)
	if entry == nil {
		b.errorAt(e, "object %s not declared", e.Receiver)
		return
	}
	e.Ref = Ref{Entry: entry, NestingLevel: b.nestingLevel}

	ref, ok := entry.Type.(*RefType)
	if !ok {
		b.errorAt(e, "%s is not an object reference", e.Receiver)
		return
	}
	vt, ok := b.ctx.ClassTable[ref.Class]
	if !ok {
		b.errorAt(e, "class %s of object %s not declared", ref.Class, e.Receiver)
		return
	}
	method := vt.Lookup(e.Method)
	if method == nil || method.Kind != KindMethod {
		b.errorAt(e, "object %s of class %s has no method %s", e.Receiver, ref.Class, e.Method)
		return
	}
	e.MethodEntry = method
}
