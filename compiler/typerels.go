package compiler

// ---------------------------------------------------------------------------
// Type relations
// ---------------------------------------------------------------------------

// IsSubtype reports whether a is a subtype of b. Reference types are related
// through the superclass relation recorded in ctx.
func IsSubtype(ctx *Context, a, b Type) bool {
	if isNil(a) || isNil(b) {
		return false
	}
	switch x := a.(type) {
	case *IntType:
		_, ok := b.(*IntType)
		return ok
	case *BoolType:
		switch b.(type) {
		case *BoolType, *IntType:
			return true
		}
		return false
	case *EmptyType:
		switch b.(type) {
		case *EmptyType, *RefType:
			return true
		}
		return false
	case *RefType:
		y, ok := b.(*RefType)
		if !ok {
			return false
		}
		if x.Class == y.Class {
			return true
		}
		for _, super := range ctx.Superclasses(x.Class) {
			if super == y.Class {
				return true
			}
		}
		return false
	case *ArrowType:
		y, ok := b.(*ArrowType)
		if !ok || len(x.Params) != len(y.Params) {
			return false
		}
		if !IsSubtype(ctx, x.Ret, y.Ret) {
			return false
		}
		for i := range x.Params {
			if !IsSubtype(ctx, y.Params[i], x.Params[i]) {
				return false
			}
		}
		return true
	case *ClassType:
		y, ok := b.(*ClassType)
		return ok && x == y
	}
	return false
}

// related reports whether a and b are comparable: one is a subtype of the
// other.
func related(ctx *Context, a, b Type) bool {
	return IsSubtype(ctx, a, b) || IsSubtype(ctx, b, a)
}

// moreGeneral returns the branch type that the other is a subtype of, or
// nil when the two are unrelated.
func moreGeneral(ctx *Context, a, b Type) Type {
	switch {
	case IsSubtype(ctx, a, b):
		return b
	case IsSubtype(ctx, b, a):
		return a
	}
	return nil
}
