package compiler

import (
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// ---------------------------------------------------------------------------
// Pipeline: parse, resolve, type check, generate
// ---------------------------------------------------------------------------

var log = commonlog.GetLogger("fool.compiler")

// Result is the outcome of a compilation.
type Result struct {
	Program *Program
	Context *Context
	Type    Type   // type of the program body
	Asm     string // SVM assembly, empty unless every pass succeeded
}

// Compile runs every pass over src. Each pass fully completes before the
// next one starts; a pass that reports errors stops the pipeline and the
// errors are returned as an ErrorList.
func Compile(src string) (*Result, error) {
	prog, err := Parse(src)
	if err != nil {
		log.Infof("parse failed: %v", err)
		return nil, err
	}
	return CompileProgram(prog)
}

// CompileProgram runs the semantic passes and code generation over an
// already parsed program.
func CompileProgram(prog *Program) (*Result, error) {
	res, diags := check(prog)
	if len(diags) > 0 {
		return nil, ErrorList(diags)
	}
	res.Asm = Generate(res.Context, prog)
	return res, nil
}

// Check parses and checks src without generating code. Diagnostics of the
// first failing phase are returned along with whatever the passes that ran
// produced, so callers can still inspect resolved names.
func Check(src string) (*Result, []Diagnostic) {
	p := NewParser(src)
	prog := p.ParseProgram()
	if diags := p.Diagnostics(); len(diags) > 0 {
		return &Result{Context: NewContext()}, diags
	}
	return check(prog)
}

func check(prog *Program) (*Result, []Diagnostic) {
	res := &Result{Program: prog, Context: NewContext()}

	if diags := BuildSymbolTable(res.Context, prog); len(diags) > 0 {
		log.Infof("symbol table: %d errors", len(diags))
		return res, diags
	}
	log.Debugf("symbol table: %d classes", len(res.Context.ClassTable))

	t, diags := TypeCheck(res.Context, prog)
	if len(diags) > 0 {
		log.Infof("type check: %d errors", len(diags))
		return res, diags
	}
	res.Type = t
	log.Debugf("type check: program has type %s", TypeString(t))
	return res, nil
}
