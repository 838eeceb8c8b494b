package compiler

import (
	"errors"
	"strings"
)

// ---------------------------------------------------------------------------
// Types: type expressions and semantic types
// ---------------------------------------------------------------------------

// Type is implemented by both written type annotations and the types the
// checker computes. The two are the same values.
type Type interface {
	Node
	typ() // marker method
	String() string
}

// ErrIncomplete is returned when a declared type is missing components,
// typically because the front end could not build it. It is recoverable:
// the enclosing declaration is skipped without a diagnostic.
var ErrIncomplete = errors.New("incomplete type")

// IntType is the type of integers.
type IntType struct{ SpanVal Span }

func (t *IntType) Span() Span     { return t.SpanVal }
func (t *IntType) node()          {}
func (t *IntType) typ()           {}
func (t *IntType) String() string { return "int" }

// BoolType is the type of booleans. Bool is a subtype of Int.
type BoolType struct{ SpanVal Span }

func (t *BoolType) Span() Span     { return t.SpanVal }
func (t *BoolType) node()          {}
func (t *BoolType) typ()           {}
func (t *BoolType) String() string { return "bool" }

// EmptyType is the type of null, a subtype of every reference type.
type EmptyType struct{ SpanVal Span }

func (t *EmptyType) Span() Span     { return t.SpanVal }
func (t *EmptyType) node()          {}
func (t *EmptyType) typ()           {}
func (t *EmptyType) String() string { return "null" }

// ArrowType is the type of functions and methods.
type ArrowType struct {
	SpanVal Span
	Params  []Type
	Ret     Type
}

func (t *ArrowType) Span() Span { return t.SpanVal }
func (t *ArrowType) node()      {}
func (t *ArrowType) typ()       {}

func (t *ArrowType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range t.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(TypeString(p))
	}
	b.WriteString(") -> ")
	b.WriteString(TypeString(t.Ret))
	return b.String()
}

// RefType is the type of references to instances of a class.
type RefType struct {
	SpanVal Span
	Class   string
}

func (t *RefType) Span() Span     { return t.SpanVal }
func (t *RefType) node()          {}
func (t *RefType) typ()           {}
func (t *RefType) String() string { return t.Class }

// ClassType is the type bound to a class name: all fields and all methods
// including inherited ones, indexed by offset.
// Fields[i] is the field at offset -i-1, Methods[i] the method at offset i.
type ClassType struct {
	SpanVal Span
	Fields  []Type
	Methods []*ArrowType
}

func (t *ClassType) Span() Span { return t.SpanVal }
func (t *ClassType) node()      {}
func (t *ClassType) typ()       {}

func (t *ClassType) String() string {
	var b strings.Builder
	b.WriteString("class(")
	for i, f := range t.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(TypeString(f))
	}
	b.WriteString(") {")
	for i, m := range t.Methods {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(TypeString(m))
	}
	b.WriteByte('}')
	return b.String()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// signature builds the arrow type of a function or method declaration.
func signature(params []*ParDecl, ret Type) *ArrowType {
	parTypes := make([]Type, len(params))
	for i, p := range params {
		parTypes[i] = p.Type
	}
	return &ArrowType{Params: parTypes, Ret: ret}
}

// TypeString renders a possibly nil type. A nil type renders as "?".
func TypeString(t Type) string {
	if isNil(t) {
		return "?"
	}
	return t.String()
}

// isNil reports whether t is nil or a typed nil pointer.
func isNil(t Type) bool {
	if t == nil {
		return true
	}
	switch v := t.(type) {
	case *IntType:
		return v == nil
	case *BoolType:
		return v == nil
	case *EmptyType:
		return v == nil
	case *ArrowType:
		return v == nil
	case *RefType:
		return v == nil
	case *ClassType:
		return v == nil
	}
	return false
}

// checkComplete verifies that a declared type has every component the
// later passes need. It returns ErrIncomplete otherwise.
func checkComplete(t Type) error {
	if isNil(t) {
		return ErrIncomplete
	}
	switch v := t.(type) {
	case *ArrowType:
		for _, p := range v.Params {
			if err := checkComplete(p); err != nil {
				return err
			}
		}
		return checkComplete(v.Ret)
	case *RefType:
		if v.Class == "" {
			return ErrIncomplete
		}
	case *ClassType:
		for _, f := range v.Fields {
			if err := checkComplete(f); err != nil {
				return err
			}
		}
		for _, m := range v.Methods {
			if err := checkComplete(m); err != nil {
				return err
			}
		}
	}
	return nil
}
