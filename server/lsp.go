package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/fool/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "fool-lsp"

var log = commonlog.GetLogger("fool.lsp")

var keywords = []string{
	"let", "in", "var", "fun", "class", "extends", "new", "null",
	"if", "then", "else", "true", "false", "print", "int", "bool",
}

// document is an open editor buffer and the outcome of checking it.
// Documents are replaced on every change, never mutated.
type document struct {
	text  string
	diags []compiler.Diagnostic
	// result is nil when the text does not parse.
	result *compiler.Result
}

// LspServer serves FOOL diagnostics and navigation over LSP. Every change
// re-runs the front end and the semantic passes on the whole document.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document // URI → document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentHover:          s.textDocumentHover,
		TextDocumentDefinition:     s.textDocumentDefinition,
		TextDocumentReferences:     s.textDocumentReferences,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Infof("FOOL LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true
	capabilities.DocumentSymbolProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	diagnostics := s.update(string(uri), params.TextDocument.Text)
	s.publish(ctx, uri, diagnostics)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			diagnostics := s.update(string(uri), whole.Text)
			s.publish(ctx, uri, diagnostics)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	s.publish(ctx, uri, []protocol.Diagnostic{})
	return nil
}

func (s *LspServer) publish(ctx *glsp.Context, uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Language features ---

// lookup returns the document for uri, or nil.
func (s *LspServer) lookup(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return doc.complete(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.hover(params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc := s.lookup(uri)
	if doc == nil {
		return nil, nil
	}
	decl := doc.declarationAt(params.Position)
	if decl == nil {
		return nil, nil
	}
	return []protocol.Location{{URI: uri, Range: spanRange(decl.Span())}}, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	doc := s.lookup(uri)
	if doc == nil {
		return nil, nil
	}
	decl := doc.declarationAt(params.Position)
	if decl == nil {
		return nil, nil
	}
	var locations []protocol.Location
	if params.Context.IncludeDeclaration {
		locations = append(locations, protocol.Location{URI: uri, Range: spanRange(decl.Span())})
	}
	for _, use := range doc.references(decl) {
		locations = append(locations, protocol.Location{URI: uri, Range: spanRange(use.Span())})
	}
	return locations, nil
}

func (s *LspServer) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.symbols(), nil
}

// --- Analysis ---

// update stores text for uri, checks it and returns the diagnostics to
// publish.
func (s *LspServer) update(uri, text string) []protocol.Diagnostic {
	result, diags := compiler.Check(text)

	doc := &document{text: text, diags: diags}
	if result != nil && result.Program != nil {
		doc.result = result
	}

	s.mu.Lock()
	s.docs[uri] = doc
	s.mu.Unlock()

	log.Debugf("%s: %d diagnostics", uri, len(diags))
	return toProtocol(diags)
}

func toProtocol(diags []compiler.Diagnostic) []protocol.Diagnostic {
	diagnostics := make([]protocol.Diagnostic, 0, len(diags))
	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, d := range diags {
		pos := lspPosition(d.Pos)
		code := string(d.Phase)
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    protocol.Range{Start: pos, End: pos},
			Severity: &severity,
			Code:     &protocol.IntegerOrString{Value: code},
			Source:   &source,
			Message:  d.Message,
		})
	}
	return diagnostics
}

// program returns the last parsed program of the document, or nil.
func (d *document) program() *compiler.Program {
	if d.result == nil {
		return nil
	}
	return d.result.Program
}

func (d *document) complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)

	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if seen[label] || !strings.HasPrefix(label, prefix) {
			return
		}
		seen[label] = true
		labelCopy, detailCopy := label, detail
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detailCopy,
			InsertText: &labelCopy,
		})
	}

	if prog := d.program(); prog != nil {
		compiler.Inspect(prog, func(n compiler.Node) bool {
			switch n := n.(type) {
			case *compiler.ClassDecl:
				add(n.Name, "class", protocol.CompletionItemKindClass)
			case *compiler.FunDecl:
				add(n.Name, "fun "+compiler.TypeString(n.ArrowType()), protocol.CompletionItemKindFunction)
			case *compiler.MethodDecl:
				add(n.Name, "method "+compiler.TypeString(n.ArrowType()), protocol.CompletionItemKindMethod)
			case *compiler.FieldDecl:
				add(n.Name, "field "+compiler.TypeString(n.Type), protocol.CompletionItemKindField)
			case *compiler.VarDecl:
				add(n.Name, "var "+compiler.TypeString(n.Type), protocol.CompletionItemKindVariable)
			case *compiler.ParDecl:
				add(n.Name, "par "+compiler.TypeString(n.Type), protocol.CompletionItemKindVariable)
			}
			return true
		})
	}
	for _, kw := range keywords {
		add(kw, "keyword", protocol.CompletionItemKindKeyword)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

// declarationAt resolves the identifier under the cursor to the node that
// declares it.
func (d *document) declarationAt(pos protocol.Position) compiler.Node {
	prog := d.program()
	if prog == nil {
		return nil
	}
	word := extractWord(d.text, pos)
	if word == "" {
		return nil
	}
	offset := offsetOf(d.text, pos)

	var decl compiler.Node
	for _, n := range enclosing(prog, offset) {
		if found := resolveIn(n, word); found != nil {
			decl = found
			break
		}
	}
	if decl == nil {
		// Type annotations are not nodes of the tree.
		if class, ok := d.result.Context.Classes[word]; ok {
			decl = class
		}
	}
	return decl
}

// enclosing returns the nodes whose span contains offset, innermost first.
func enclosing(prog *compiler.Program, offset int) []compiler.Node {
	var path []compiler.Node
	compiler.Inspect(prog, func(n compiler.Node) bool {
		span := n.Span()
		if offset < span.Start.Offset || offset > span.End.Offset {
			return false
		}
		path = append(path, n)
		return true
	})
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// resolveIn returns the declaration that word denotes within node n, or
// nil when n does not mention word.
func resolveIn(n compiler.Node, word string) compiler.Node {
	switch n := n.(type) {
	case *compiler.IdExpr:
		if n.Name == word {
			return entryDecl(n.Entry)
		}
	case *compiler.CallExpr:
		if n.Name == word {
			return entryDecl(n.Entry)
		}
	case *compiler.NewExpr:
		if n.ClassName == word {
			return entryDecl(n.ClassEntry)
		}
	case *compiler.MethodCallExpr:
		if n.Method == word {
			return entryDecl(n.MethodEntry)
		}
		if n.Receiver == word {
			return entryDecl(n.Entry)
		}
	case *compiler.ClassDecl:
		if n.Name == word {
			return n
		}
		if n.Superclass == word {
			return entryDecl(n.SuperEntry)
		}
	case *compiler.FunDecl:
		if n.Name == word {
			return n
		}
	case *compiler.MethodDecl:
		if n.Name == word {
			return n
		}
	case *compiler.VarDecl:
		if n.Name == word {
			return n
		}
	case *compiler.ParDecl:
		if n.Name == word {
			return n
		}
	case *compiler.FieldDecl:
		if n.Name == word {
			return n
		}
	}
	return nil
}

func entryDecl(e *compiler.Entry) compiler.Node {
	if e == nil {
		return nil
	}
	return e.Decl
}

// references returns the uses of decl in the document.
func (d *document) references(decl compiler.Node) []compiler.Node {
	prog := d.program()
	if prog == nil {
		return nil
	}
	var uses []compiler.Node
	compiler.Inspect(prog, func(n compiler.Node) bool {
		var target *compiler.Entry
		switch n := n.(type) {
		case *compiler.IdExpr:
			target = n.Entry
		case *compiler.CallExpr:
			target = n.Entry
		case *compiler.NewExpr:
			target = n.ClassEntry
		case *compiler.MethodCallExpr:
			if entryDecl(n.Entry) == decl {
				uses = append(uses, n)
				return true
			}
			target = n.MethodEntry
		}
		if target != nil && target.Decl == decl {
			uses = append(uses, n)
		}
		return true
	})
	return uses
}

func (d *document) hover(pos protocol.Position) *protocol.Hover {
	decl := d.declarationAt(pos)
	if decl == nil {
		return nil
	}

	var b strings.Builder
	switch n := decl.(type) {
	case *compiler.ClassDecl:
		writeClassLayout(&b, d.result.Context, n)
	case *compiler.FunDecl:
		fmt.Fprintf(&b, "**fun** `%s`: %s", n.Name, compiler.TypeString(n.ArrowType()))
	case *compiler.MethodDecl:
		fmt.Fprintf(&b, "**method** `%s`: %s\n\ndispatch offset %d", n.Name, compiler.TypeString(n.ArrowType()), n.Offset)
	case *compiler.FieldDecl:
		fmt.Fprintf(&b, "**field** `%s`: %s\n\nobject offset %d", n.Name, compiler.TypeString(n.Type), n.Offset)
	case *compiler.VarDecl:
		fmt.Fprintf(&b, "**var** `%s`: %s", n.Name, compiler.TypeString(n.Type))
	case *compiler.ParDecl:
		fmt.Fprintf(&b, "**par** `%s`: %s", n.Name, compiler.TypeString(n.Type))
	default:
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// writeClassLayout renders the object layout and dispatch table of a class.
func writeClassLayout(b *strings.Builder, ctx *compiler.Context, n *compiler.ClassDecl) {
	fmt.Fprintf(b, "**class %s**", n.Name)
	if n.Superclass != "" {
		fmt.Fprintf(b, " extends %s", n.Superclass)
	}
	b.WriteString("\n\n")

	vt := ctx.ClassTable[n.Name]
	if vt == nil {
		return
	}
	var fields, methods []string
	for _, name := range vt.Names {
		e := vt.Entries[name]
		switch e.Kind {
		case compiler.KindField:
			fields = append(fields, fmt.Sprintf("- `%d` %s: %s", e.Offset, name, compiler.TypeString(e.Type)))
		case compiler.KindMethod:
			methods = append(methods, fmt.Sprintf("- `%d` %s: %s", e.Offset, name, compiler.TypeString(e.Type)))
		}
	}
	if len(fields) > 0 {
		b.WriteString("Fields:\n")
		b.WriteString(strings.Join(fields, "\n"))
		b.WriteString("\n\n")
	}
	if len(methods) > 0 {
		b.WriteString("Methods:\n")
		b.WriteString(strings.Join(methods, "\n"))
		b.WriteString("\n\n")
	}

	if supers := ctx.Superclasses(n.Name); len(supers) > 0 {
		fmt.Fprintf(b, "**Hierarchy:** %s → **%s**", strings.Join(reversed(supers), " → "), n.Name)
	}
}

func reversed(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[len(names)-1-i] = name
	}
	return out
}

func (d *document) symbols() []protocol.DocumentSymbol {
	prog := d.program()
	if prog == nil {
		return nil
	}

	symbol := func(name, detail string, kind protocol.SymbolKind, span compiler.Span) protocol.DocumentSymbol {
		r := spanRange(span)
		return protocol.DocumentSymbol{
			Name:           name,
			Detail:         &detail,
			Kind:           kind,
			Range:          r,
			SelectionRange: r,
		}
	}

	var out []protocol.DocumentSymbol
	for _, c := range prog.Classes {
		cs := symbol(c.Name, "class", protocol.SymbolKindClass, c.Span())
		for _, f := range c.Fields {
			cs.Children = append(cs.Children, symbol(f.Name, compiler.TypeString(f.Type), protocol.SymbolKindField, f.Span()))
		}
		for _, m := range c.Methods {
			cs.Children = append(cs.Children, symbol(m.Name, compiler.TypeString(m.ArrowType()), protocol.SymbolKindMethod, m.Span()))
		}
		out = append(out, cs)
	}
	for _, dec := range prog.Decls {
		switch n := dec.(type) {
		case *compiler.FunDecl:
			out = append(out, symbol(n.Name, compiler.TypeString(n.ArrowType()), protocol.SymbolKindFunction, n.Span()))
		case *compiler.VarDecl:
			out = append(out, symbol(n.Name, compiler.TypeString(n.Type), protocol.SymbolKindVariable, n.Span()))
		}
	}
	return out
}

// --- Position helpers ---

// lspPosition converts a 1-based compiler position to a 0-based LSP one.
func lspPosition(p compiler.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

func spanRange(s compiler.Span) protocol.Range {
	return protocol.Range{Start: lspPosition(s.Start), End: lspPosition(s.End)}
}

// offsetOf converts an LSP position to a byte offset in text.
func offsetOf(text string, pos protocol.Position) int {
	offset := 0
	for line := 0; line < int(pos.Line); line++ {
		nl := strings.IndexByte(text[offset:], '\n')
		if nl < 0 {
			return len(text)
		}
		offset += nl + 1
	}
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		end = len(text) - offset
	}
	col := int(pos.Character)
	if col > end {
		col = end
	}
	return offset + col
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}

	return line[start:end]
}

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
