package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Diagnostics: errors reported by the passes
// ---------------------------------------------------------------------------

// Phase names the pass that reported a diagnostic.
type Phase string

const (
	PhaseSyntax Phase = "Syntax"
	PhaseScope  Phase = "Scope"
	PhaseType   Phase = "Type"
)

// Diagnostic is a single error with the source position it refers to.
type Diagnostic struct {
	Pos     Position
	Phase   Phase
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s error at line %d: %s", d.Phase, d.Pos.Line, d.Message)
}

// ErrorList is returned by the pipeline when a pass boundary is reached
// with accumulated diagnostics.
type ErrorList []Diagnostic

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors:", len(l))
	for _, d := range l {
		b.WriteString("\n  ")
		b.WriteString(d.String())
	}
	return b.String()
}

// TypeError aborts type evaluation of the enclosing expression.
type TypeError struct {
	Pos Position
	Msg string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("Type error at line %d: %s", e.Pos.Line, e.Msg)
}

// typeErrorf creates a TypeError positioned at node.
func typeErrorf(node Node, format string, args ...interface{}) *TypeError {
	return &TypeError{Pos: node.Span().Start, Msg: fmt.Sprintf(format, args...)}
}

// diagnosticList accumulates diagnostics for one pass.
type diagnosticList struct {
	phase Phase
	diags []Diagnostic
}

// errorAt records an error with position information.
func (l *diagnosticList) errorAt(node Node, format string, args ...interface{}) {
	l.diags = append(l.diags, Diagnostic{
		Pos:     node.Span().Start,
		Phase:   l.phase,
		Message: fmt.Sprintf(format, args...),
	})
}

// Diagnostics returns the accumulated diagnostics.
func (l *diagnosticList) Diagnostics() []Diagnostic {
	return l.diags
}
