package compiler

import (
	"errors"
	"io"
	"testing"

	"github.com/chazu/fool/vm"
)

// fuzzSeeds covers every construct of the language plus a few broken
// inputs.
var fuzzSeeds = []string{
	// Literals and operators
	`42;`, `-5;`, `true;`, `false;`, `null;`,
	`1 + 2 * 3 - 4 / 2;`,
	`1 <= 2 && 3 >= 2 || !(1 == 2);`,
	`print(if true then { 1 } else { 2 });`,
	// Declarations
	`let var x:int = 5; in print(x + 1);`,
	`let fun fact:int (n:int) if n <= 1 then { 1 } else { n * fact(n - 1) }; in print(fact(5));`,
	`let fun f:int (a:int) let var b:int = a * a; in b; in f(3);`,
	`let var k:int = 10; fun outer:int (a:int) let fun inner:int (b:int) a + b + k; in inner(a); in outer(1);`,
	// Classes
	"let\n  class A () { fun s:int () 0; }\n  class B extends A () { fun s:int () 1; }\n  var a:A = new B();\nin print(a.s());",
	"let\n  class P (x:int, y:int) { fun sum:int () x + y; }\n  class Q extends P (z:int) { fun all:int () sum() + z; }\n  var q:Q = new Q(1, 2, 3);\nin q.all();",
	"let\n  class L (h:int, t:L) { fun len:int () if t == null then { 1 } else { 1 + t.len() }; }\n  var l:L = new L(1, new L(2, null));\nin l.len();",
	"let\n  class A () { fun v:int () 5; }\n  class B () { fun make:A () new A(); }\n  var b:B = new B();\n  var a:A = b.make();\nin a.v();",
	// Comments
	"// line\n1; /* block */",
	// Scope and type errors
	`let var x:int = 1; var x:int = 2; in x;`,
	`let var x:bool = 1; in x;`,
	`let fun f:int (a:int) a; in f(true, 2);`,
	`let class A extends Ghost () {} in 0;`,
	`let var g:Ghost = null; in 0;`,
	"let\n  class A () { fun m:int (x:int) x; }\n  class B extends A () { fun m:bool (x:int) true; }\nin 0;",
	`let fun f:int () 1; in f;`,
	`new Nothing();`,
	// Runtime errors
	`print(1 / 0);`,
	"let\n  class A () { fun s:int () 0; }\n  var a:A = null;\nin a.s();",
	`let fun loop:int (n:int) loop(n + 1); in loop(0);`,
	// Broken syntax
	``, `;`, `let`, `let in`, `(`, `)`, `{`, `}`, `1 +`, `if`, `new`, `a.`, `class`,
	`/* unterminated`, `@#$`, `99999999999999999999999;`,
}

// ---------------------------------------------------------------------------
// FuzzLexer: the lexer never panics and always reaches EOF or an error.
// ---------------------------------------------------------------------------

func FuzzLexer(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("lexer panicked on input %q: %v", data, r)
			}
		}()

		l := NewLexer(data)
		for i := 0; ; i++ {
			if i > len(data)+1 {
				t.Fatalf("lexer did not terminate on input %q", data)
			}
			tok := l.NextToken()
			if tok.Type == TokenEOF || tok.Type == TokenError {
				break
			}
		}
		_ = Tokenize(data)
	})
}

// ---------------------------------------------------------------------------
// FuzzParser: parse errors are acceptable, panics are not. A failed parse
// reports exactly one syntax diagnostic.
// ---------------------------------------------------------------------------

func FuzzParser(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("parser panicked on input %q: %v", data, r)
			}
		}()

		p := NewParser(data)
		prog := p.ParseProgram()
		diags := p.Diagnostics()
		if len(diags) > 1 {
			t.Fatalf("parser reported %d errors on %q, want at most one", len(diags), data)
		}
		if len(diags) == 0 && prog == nil {
			t.Fatalf("parser returned no program and no error on %q", data)
		}
		for _, d := range diags {
			if d.Phase != PhaseSyntax {
				t.Fatalf("parser reported a %s error on %q", d.Phase, data)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// FuzzSemantic: the symbol table and type checking passes never panic,
// whatever the parsed program.
// ---------------------------------------------------------------------------

func FuzzSemantic(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		prog, err := Parse(data)
		if err != nil {
			return
		}

		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("semantic passes panicked on input %q: %v", data, r)
			}
		}()

		ctx := NewContext()
		if diags := BuildSymbolTable(ctx, prog); len(diags) > 0 {
			for _, d := range diags {
				if d.Phase != PhaseScope {
					t.Fatalf("symbol table reported a %s error on %q", d.Phase, data)
				}
			}
			return
		}
		if _, diags := TypeCheck(ctx, prog); len(diags) > 0 {
			for _, d := range diags {
				if d.Phase != PhaseType {
					t.Fatalf("type checker reported a %s error on %q", d.Phase, data)
				}
			}
		}
	})
}

// ---------------------------------------------------------------------------
// FuzzCompileAndRun: every program that compiles yields assembly that
// assembles, and running it either halts or fails with a RuntimeError.
// ---------------------------------------------------------------------------

func FuzzCompileAndRun(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("pipeline panicked on input %q: %v", data, r)
			}
		}()

		res, err := Compile(data)
		if err != nil {
			var list ErrorList
			if !errors.As(err, &list) || len(list) == 0 {
				t.Fatalf("Compile(%q) error %v, want a non-empty ErrorList", data, err)
			}
			return
		}

		prog, err := vm.Assemble(res.Asm)
		if err != nil {
			t.Fatalf("generated assembly for %q does not assemble: %v\n%s", data, err, res.Asm)
		}

		err = vm.New(vm.Config{MemSize: 2000, Output: io.Discard}).Run(prog)
		var rerr *vm.RuntimeError
		if err != nil && !errors.As(err, &rerr) {
			t.Fatalf("Run(%q) = %v, want nil or a RuntimeError", data, err)
		}
	})
}
