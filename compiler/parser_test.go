package compiler

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return prog
}

func TestParseLetIn(t *testing.T) {
	prog := mustParse(t, "let var x:int = 5; in print(x + 1);")

	if !prog.HasLet() {
		t.Fatal("HasLet() = false, want true")
	}
	if len(prog.Decls) != 1 {
		t.Fatalf("len(Decls) = %d, want 1", len(prog.Decls))
	}
	v, ok := prog.Decls[0].(*VarDecl)
	if !ok {
		t.Fatalf("Decls[0] is %T, want *VarDecl", prog.Decls[0])
	}
	if v.Name != "x" {
		t.Errorf("var name = %q, want x", v.Name)
	}
	if _, ok := v.Type.(*IntType); !ok {
		t.Errorf("var type = %T, want *IntType", v.Type)
	}
	if lit, ok := v.Value.(*IntLit); !ok || lit.Value != 5 {
		t.Errorf("var value = %#v, want IntLit 5", v.Value)
	}

	p, ok := prog.Body.(*PrintExpr)
	if !ok {
		t.Fatalf("body is %T, want *PrintExpr", prog.Body)
	}
	plus, ok := p.Value.(*PlusExpr)
	if !ok {
		t.Fatalf("print argument is %T, want *PlusExpr", p.Value)
	}
	if id, ok := plus.Left.(*IdExpr); !ok || id.Name != "x" {
		t.Errorf("left operand = %#v, want Id x", plus.Left)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		input string
		check func(Expr) bool
		desc  string
	}{
		{"1 + 2 * 3;", func(e Expr) bool {
			p, ok := e.(*PlusExpr)
			if !ok {
				return false
			}
			_, ok = p.Right.(*TimesExpr)
			return ok
		}, "times binds tighter than plus"},
		{"1 - 2 - 3;", func(e Expr) bool {
			m, ok := e.(*MinusExpr)
			if !ok {
				return false
			}
			_, ok = m.Left.(*MinusExpr)
			return ok
		}, "minus is left associative"},
		{"a == b && c <= d;", func(e Expr) bool {
			and, ok := e.(*AndExpr)
			if !ok {
				return false
			}
			_, lok := and.Left.(*EqualExpr)
			_, rok := and.Right.(*LessEqualExpr)
			return lok && rok
		}, "comparison binds tighter than &&"},
		{"1 + 2 >= 3;", func(e Expr) bool {
			ge, ok := e.(*GreaterEqualExpr)
			if !ok {
				return false
			}
			_, ok = ge.Left.(*PlusExpr)
			return ok
		}, "sum binds tighter than >="},
		{"(1 + 2) * 3;", func(e Expr) bool {
			m, ok := e.(*TimesExpr)
			if !ok {
				return false
			}
			_, ok = m.Left.(*PlusExpr)
			return ok
		}, "parentheses"},
		{"!a || b;", func(e Expr) bool {
			or, ok := e.(*OrExpr)
			if !ok {
				return false
			}
			_, ok = or.Left.(*NotExpr)
			return ok
		}, "not is prefix on a factor"},
		{"3 - -5;", func(e Expr) bool {
			m, ok := e.(*MinusExpr)
			if !ok {
				return false
			}
			lit, ok := m.Right.(*IntLit)
			return ok && lit.Value == -5
		}, "negative literal"},
	}

	for _, tc := range tests {
		prog, err := Parse(tc.input)
		if err != nil {
			t.Errorf("%s: parse error: %v", tc.desc, err)
			continue
		}
		if !tc.check(prog.Body) {
			t.Errorf("%s: unexpected tree for %q:\n%s", tc.desc, tc.input, DumpString(prog.Body))
		}
	}
}

func TestParseExpressionForms(t *testing.T) {
	prog := mustParse(t, `
let
  var o:A = null;
in
  if o.get(1, true) == f(2) then { new A(3) } else { print(x) };
`)

	ifExpr, ok := prog.Body.(*IfExpr)
	if !ok {
		t.Fatalf("body is %T, want *IfExpr", prog.Body)
	}
	eq, ok := ifExpr.Cond.(*EqualExpr)
	if !ok {
		t.Fatalf("condition is %T, want *EqualExpr", ifExpr.Cond)
	}
	mc, ok := eq.Left.(*MethodCallExpr)
	if !ok {
		t.Fatalf("left of == is %T, want *MethodCallExpr", eq.Left)
	}
	if mc.Receiver != "o" || mc.Method != "get" || len(mc.Args) != 2 {
		t.Errorf("method call = %s.%s/%d, want o.get/2", mc.Receiver, mc.Method, len(mc.Args))
	}
	call, ok := eq.Right.(*CallExpr)
	if !ok || call.Name != "f" || len(call.Args) != 1 {
		t.Errorf("right of == = %#v, want call f/1", eq.Right)
	}
	if n, ok := ifExpr.Then.(*NewExpr); !ok || n.ClassName != "A" || len(n.Args) != 1 {
		t.Errorf("then branch = %#v, want new A/1", ifExpr.Then)
	}
	if _, ok := ifExpr.Else.(*PrintExpr); !ok {
		t.Errorf("else branch = %T, want *PrintExpr", ifExpr.Else)
	}
}

func TestParseClasses(t *testing.T) {
	prog := mustParse(t, `
let
  class A (x:int) {
    fun get:int () x;
  }
  class B extends A (x:int, flag:bool) {
    fun get:int () let var y:int = 2; in x + y;
    fun test:bool (n:int, other:A) flag;
  }
  var a:A = new B(1, true);
in a.get();
`)

	if len(prog.Classes) != 2 {
		t.Fatalf("len(Classes) = %d, want 2", len(prog.Classes))
	}
	b := prog.Classes[1]
	if b.Name != "B" || b.Superclass != "A" {
		t.Errorf("class = %s extends %s, want B extends A", b.Name, b.Superclass)
	}
	if len(b.Fields) != 2 || b.Fields[1].Name != "flag" {
		t.Errorf("fields of B = %v", b.Fields)
	}
	if len(b.Methods) != 2 {
		t.Fatalf("len(Methods) = %d, want 2", len(b.Methods))
	}
	if len(b.Methods[0].Decls) != 1 {
		t.Errorf("get has %d local declarations, want 1", len(b.Methods[0].Decls))
	}
	test := b.Methods[1]
	if len(test.Params) != 2 {
		t.Fatalf("test has %d params, want 2", len(test.Params))
	}
	if ref, ok := test.Params[1].Type.(*RefType); !ok || ref.Class != "A" {
		t.Errorf("param type = %v, want A", test.Params[1].Type)
	}
	if _, ok := test.RetType.(*BoolType); !ok {
		t.Errorf("return type = %v, want bool", test.RetType)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		line  int
		msg   string
	}{
		{"let in 1;", 1, "expected a declaration"},
		{"1 + 2", 1, "expected ;"},
		{"print(1;", 1, "expected )"},
		{"let\n var x = 1;\nin x;", 2, "expected :"},
		{"let var x:int = 1; in x; x;", 1, "after end of program"},
		{"if true then 1 else 2;", 1, "expected {"},
		{"1 # 2;", 1, "unexpected character"},
	}

	for _, tc := range tests {
		_, err := Parse(tc.input)
		if err == nil {
			t.Errorf("Parse(%q): expected error", tc.input)
			continue
		}
		var list ErrorList
		if !errors.As(err, &list) || len(list) != 1 {
			t.Errorf("Parse(%q): error = %v, want a single diagnostic", tc.input, err)
			continue
		}
		d := list[0]
		if d.Phase != PhaseSyntax {
			t.Errorf("Parse(%q): phase = %v, want %v", tc.input, d.Phase, PhaseSyntax)
		}
		if d.Pos.Line != tc.line {
			t.Errorf("Parse(%q): line = %d, want %d", tc.input, d.Pos.Line, tc.line)
		}
		if !strings.Contains(d.Message, tc.msg) {
			t.Errorf("Parse(%q): message = %q, want it to contain %q", tc.input, d.Message, tc.msg)
		}
	}
}
