package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/fool/compiler"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix_SimpleWord(t *testing.T) {
	text := "new Dog"
	pos := protocol.Position{Line: 0, Character: 7}
	prefix := extractPrefix(text, pos)
	if prefix != "Dog" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "Dog")
	}
}

func TestExtractPrefix_AfterDot(t *testing.T) {
	text := "a.sou"
	pos := protocol.Position{Line: 0, Character: 5}
	prefix := extractPrefix(text, pos)
	if prefix != "sou" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "sou")
	}
}

func TestExtractPrefix_MultiLine(t *testing.T) {
	text := "first line\nsecond line\nAni"
	pos := protocol.Position{Line: 2, Character: 3}
	prefix := extractPrefix(text, pos)
	if prefix != "Ani" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "Ani")
	}
}

func TestExtractPrefix_CursorAtBeginning(t *testing.T) {
	text := "hello"
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix at position 0 = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix beyond doc = %q, want empty string", prefix)
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		text string
		pos  protocol.Position
		want string
	}{
		{"hello world", protocol.Position{Line: 0, Character: 3}, "hello"},
		{"hello world", protocol.Position{Line: 0, Character: 5}, "hello"},
		{"hello world", protocol.Position{Line: 0, Character: 8}, "world"},
		{"a.sound()", protocol.Position{Line: 0, Character: 4}, "sound"},
		{"first\nmy_var + 1", protocol.Position{Line: 1, Character: 2}, "my_var"},
		{"", protocol.Position{Line: 0, Character: 0}, ""},
		{"x", protocol.Position{Line: 3, Character: 0}, ""},
	}
	for _, tc := range tests {
		if got := extractWord(tc.text, tc.pos); got != tc.want {
			t.Errorf("extractWord(%q, %v) = %q, want %q", tc.text, tc.pos, got, tc.want)
		}
	}
}

func TestOffsetOf(t *testing.T) {
	text := "ab\ncde\nf"
	tests := []struct {
		pos  protocol.Position
		want int
	}{
		{protocol.Position{Line: 0, Character: 0}, 0},
		{protocol.Position{Line: 1, Character: 2}, 5},
		{protocol.Position{Line: 1, Character: 99}, 6},
		{protocol.Position{Line: 2, Character: 1}, 8},
		{protocol.Position{Line: 9, Character: 0}, 8},
	}
	for _, tc := range tests {
		if got := offsetOf(text, tc.pos); got != tc.want {
			t.Errorf("offsetOf(%v) = %d, want %d", tc.pos, got, tc.want)
		}
	}
}

func TestLSPPosition(t *testing.T) {
	got := lspPosition(compiler.Position{Line: 3, Column: 7})
	if got.Line != 2 || got.Character != 6 {
		t.Errorf("lspPosition = %+v, want 2:6", got)
	}
	if got := lspPosition(compiler.Position{}); got.Line != 0 || got.Character != 0 {
		t.Errorf("lspPosition of zero position = %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Analysis-backed features
// ---------------------------------------------------------------------------

const animals = `let
  class Animal () { fun sound:int () 0; }
  class Dog extends Animal () { fun sound:int () 1; }
  var a:Animal = new Dog();
in a.sound();
`

func newTestServer() *LspServer {
	return &LspServer{docs: make(map[string]*document)}
}

func openDoc(t *testing.T, s *LspServer, text string) *document {
	t.Helper()
	const uri = "file:///test.fool"
	s.update(uri, text)
	doc := s.lookup(uri)
	if doc == nil {
		t.Fatal("document not stored")
	}
	return doc
}

func TestDiagnostics(t *testing.T) {
	s := newTestServer()
	diags := s.update("file:///bad.fool", "let var x:bool = 1; in x;")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Range.Start.Line != 0 {
		t.Errorf("diagnostic on line %d, want 0", d.Range.Start.Line)
	}
	if !strings.Contains(d.Message, "incompatible value for variable x") {
		t.Errorf("message = %q", d.Message)
	}
	if d.Code == nil || d.Code.Value != string(compiler.PhaseType) {
		t.Errorf("code = %v, want %s", d.Code, compiler.PhaseType)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("diagnostic should be an error")
	}

	if diags := s.update("file:///bad.fool", "let var x:bool = true; in x;"); len(diags) != 0 {
		t.Errorf("fixed document still has %d diagnostics", len(diags))
	}
}

func TestSyntaxErrorDropsAnalysis(t *testing.T) {
	s := newTestServer()
	doc := openDoc(t, s, "let var x:int = ; in x;")
	if doc.result != nil {
		t.Error("unparsable document kept an analysis")
	}
	if len(doc.diags) != 1 || doc.diags[0].Phase != compiler.PhaseSyntax {
		t.Errorf("diags = %v, want one syntax error", doc.diags)
	}
	if doc.declarationAt(protocol.Position{Line: 0, Character: 21}) != nil {
		t.Error("navigation should be unavailable without an AST")
	}
}

func TestDefinition(t *testing.T) {
	doc := openDoc(t, newTestServer(), animals)

	tests := []struct {
		desc string
		pos  protocol.Position
		kind string
		name string
		line int // 1-based line of the declaration
	}{
		{"receiver", protocol.Position{Line: 4, Character: 3}, "var", "a", 4},
		{"method by static type", protocol.Position{Line: 4, Character: 6}, "method", "sound", 2},
		{"class in new", protocol.Position{Line: 3, Character: 22}, "class", "Dog", 3},
		{"class in annotation", protocol.Position{Line: 3, Character: 10}, "class", "Animal", 2},
		{"superclass", protocol.Position{Line: 2, Character: 22}, "class", "Animal", 2},
		{"declaration itself", protocol.Position{Line: 3, Character: 6}, "var", "a", 4},
	}

	for _, tc := range tests {
		decl := doc.declarationAt(tc.pos)
		if decl == nil {
			t.Errorf("%s: no declaration found", tc.desc)
			continue
		}
		var kind, name string
		switch n := decl.(type) {
		case *compiler.VarDecl:
			kind, name = "var", n.Name
		case *compiler.MethodDecl:
			kind, name = "method", n.Name
		case *compiler.ClassDecl:
			kind, name = "class", n.Name
		}
		if kind != tc.kind || name != tc.name {
			t.Errorf("%s: resolved to %s %s, want %s %s", tc.desc, kind, name, tc.kind, tc.name)
		}
		if line := decl.Span().Start.Line; line != tc.line {
			t.Errorf("%s: declaration on line %d, want %d", tc.desc, line, tc.line)
		}
	}

	if decl := doc.declarationAt(protocol.Position{Line: 4, Character: 0}); decl != nil {
		t.Errorf("keyword resolved to %T", decl)
	}
}

func TestReferences(t *testing.T) {
	doc := openDoc(t, newTestServer(), animals)

	varA := doc.declarationAt(protocol.Position{Line: 3, Character: 6})
	if uses := doc.references(varA); len(uses) != 1 {
		t.Errorf("a has %d uses, want 1", len(uses))
	}

	dog := doc.declarationAt(protocol.Position{Line: 3, Character: 22})
	uses := doc.references(dog)
	if len(uses) != 1 {
		t.Fatalf("Dog has %d uses, want 1", len(uses))
	}
	if _, ok := uses[0].(*compiler.NewExpr); !ok {
		t.Errorf("use of Dog is %T, want *compiler.NewExpr", uses[0])
	}
}

func TestHoverClassLayout(t *testing.T) {
	doc := openDoc(t, newTestServer(), `let
  class Point (x:int, y:int) { fun sum:int () x + y; }
  class Point3 extends Point (z:int) { fun norm:int () z; }
in new Point3(1, 2, 3);
`)

	hover := doc.hover(protocol.Position{Line: 3, Character: 8})
	if hover == nil {
		t.Fatal("no hover for Point3")
	}
	mc, ok := hover.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
	}
	for _, want := range []string{
		"**class Point3** extends Point",
		"- `-1` x: int",
		"- `-2` y: int",
		"- `-3` z: int",
		"- `0` sum: () -> int",
		"- `1` norm: () -> int",
		"**Hierarchy:** Point → **Point3**",
	} {
		if !strings.Contains(mc.Value, want) {
			t.Errorf("hover lacks %q:\n%s", want, mc.Value)
		}
	}
}

func TestHoverDeclarations(t *testing.T) {
	doc := openDoc(t, newTestServer(), "let fun f:bool (n:int) n <= 1; in f(2);\n")

	tests := []struct {
		pos  protocol.Position
		want string
	}{
		{protocol.Position{Line: 0, Character: 35}, "**fun** `f`"},
		{protocol.Position{Line: 0, Character: 24}, "**par** `n`: int"},
	}
	for _, tc := range tests {
		hover := doc.hover(tc.pos)
		if hover == nil {
			t.Errorf("no hover at %v", tc.pos)
			continue
		}
		if mc := hover.Contents.(protocol.MarkupContent); !strings.Contains(mc.Value, tc.want) {
			t.Errorf("hover at %v = %q, want %q", tc.pos, mc.Value, tc.want)
		}
	}
}

func TestComplete(t *testing.T) {
	doc := openDoc(t, newTestServer(), animals)

	labels := func(prefix string) map[string]protocol.CompletionItemKind {
		out := make(map[string]protocol.CompletionItemKind)
		for _, item := range doc.complete(prefix) {
			out[item.Label] = *item.Kind
		}
		return out
	}

	if got := labels("D"); got["Dog"] != protocol.CompletionItemKindClass || len(got) != 1 {
		t.Errorf("complete(D) = %v", got)
	}
	if got := labels("so"); got["sound"] != protocol.CompletionItemKindMethod || len(got) != 1 {
		t.Errorf("complete(so) = %v, want sound once", got)
	}
	if got := labels("cl"); got["class"] != protocol.CompletionItemKindKeyword {
		t.Errorf("complete(cl) = %v", got)
	}
}

func TestSymbols(t *testing.T) {
	doc := openDoc(t, newTestServer(), animals)
	symbols := doc.symbols()
	if len(symbols) != 3 {
		t.Fatalf("got %d symbols, want 3", len(symbols))
	}
	if symbols[1].Name != "Dog" || symbols[1].Kind != protocol.SymbolKindClass {
		t.Errorf("symbol 1 = %s", symbols[1].Name)
	}
	if len(symbols[1].Children) != 1 || symbols[1].Children[0].Name != "sound" {
		t.Errorf("Dog children = %v", symbols[1].Children)
	}
	if symbols[2].Name != "a" || symbols[2].Kind != protocol.SymbolKindVariable {
		t.Errorf("symbol 2 = %s", symbols[2].Name)
	}
}

func TestDocumentStore(t *testing.T) {
	s := newTestServer()
	s.update("file:///a.fool", "1;")
	first := s.lookup("file:///a.fool")
	s.update("file:///a.fool", "2;")
	second := s.lookup("file:///a.fool")
	if first == second {
		t.Error("update should replace the document")
	}
	if first.text != "1;" || second.text != "2;" {
		t.Errorf("texts = %q, %q", first.text, second.text)
	}

	s.mu.Lock()
	delete(s.docs, "file:///a.fool")
	s.mu.Unlock()
	if s.lookup("file:///a.fool") != nil {
		t.Error("document should be removed after close")
	}
}
