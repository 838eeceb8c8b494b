package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for FOOL syntax
// ---------------------------------------------------------------------------
//
//	prog    = "let" cldec* dec* "in" exp ";" | exp ";"
//	cldec   = "class" ID ["extends" ID] "(" [ID ":" type {"," ID ":" type}] ")" "{" methdec* "}"
//	methdec = "fun" ID ":" type "(" params ")" ["let" dec+ "in"] exp ";"
//	dec     = "var" ID ":" type "=" exp ";"
//	        | "fun" ID ":" type "(" params ")" ["let" dec+ "in"] exp ";"
//	type    = "int" | "bool" | ID
//	exp     = cmp {("&&" | "||") cmp}
//	cmp     = sum {("==" | "<=" | ">=") sum}
//	sum     = term {("+" | "-") term}
//	term    = factor {("*" | "/") factor}
//	factor  = "!" factor | "(" exp ")" | ["-"] NUM | "true" | "false" | "null"
//	        | "new" ID "(" args ")" | "if" exp "then" "{" exp "}" "else" "{" exp "}"
//	        | "print" "(" exp ")" | ID | ID "(" args ")" | ID "." ID "(" args ")"

// Parser parses FOOL source code into an AST. It stops at the first
// syntax error.
type Parser struct {
	diagnosticList
	lexer     *Lexer
	curToken  Token
	peekToken Token
	prevEnd   Position // end of the last consumed token
	failed    bool
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		diagnosticList: diagnosticList{phase: PhaseSyntax},
		lexer:          NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete FOOL program.
func Parse(src string) (*Program, error) {
	p := NewParser(src)
	prog := p.ParseProgram()
	if diags := p.Diagnostics(); len(diags) > 0 {
		return nil, ErrorList(diags)
	}
	return prog, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prevEnd = tokenEnd(p.curToken)
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	if p.curToken.Type == TokenError {
		p.errorf("%s", p.curToken.Literal)
	}
}

func tokenEnd(t Token) Position {
	n := len(t.Literal)
	return Position{Offset: t.Pos.Offset + n, Line: t.Pos.Line, Column: t.Pos.Column + n}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.failed {
		return false
	}
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken)
	return false
}

// expectIdent consumes an identifier and returns its text.
func (p *Parser) expectIdent() (string, bool) {
	name := p.curToken.Literal
	if !p.expect(TokenIdentifier) {
		return "", false
	}
	return name, true
}

// errorf records a parse error at the current token. Only the first error
// is kept.
func (p *Parser) errorf(format string, args ...interface{}) {
	if p.failed {
		return
	}
	p.failed = true
	p.diags = append(p.diags, Diagnostic{
		Pos:     p.curToken.Pos,
		Phase:   PhaseSyntax,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) span(start Position) Span {
	return MakeSpan(start, p.prevEnd)
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses a whole compilation unit.
func (p *Parser) ParseProgram() *Program {
	start := p.curToken.Pos
	prog := &Program{}

	if p.curTokenIs(TokenLet) {
		p.nextToken()
		for p.curTokenIs(TokenClass) && !p.failed {
			if class := p.parseClass(); class != nil {
				prog.Classes = append(prog.Classes, class)
			}
		}
		prog.Decls = p.parseDecs()
		if len(prog.Classes) == 0 && len(prog.Decls) == 0 {
			p.errorf("expected a declaration after let, got %s", p.curToken)
		}
		p.expect(TokenIn)
	}

	prog.Body = p.ParseExpression()
	p.expect(TokenSemicolon)
	if !p.curTokenIs(TokenEOF) {
		p.errorf("unexpected %s after end of program", p.curToken)
	}
	prog.SpanVal = p.span(start)

	if p.failed {
		return nil
	}
	return prog
}

// parseDecs parses var and fun declarations until neither keyword follows.
func (p *Parser) parseDecs() []Decl {
	var decs []Decl
	for !p.failed {
		switch {
		case p.curTokenIs(TokenVar):
			if d := p.parseVar(); d != nil {
				decs = append(decs, d)
			}
		case p.curTokenIs(TokenFun):
			if d := p.parseFun(); d != nil {
				decs = append(decs, d)
			}
		default:
			return decs
		}
	}
	return decs
}

func (p *Parser) parseVar() *VarDecl {
	start := p.curToken.Pos
	p.expect(TokenVar)
	name, _ := p.expectIdent()
	p.expect(TokenColon)
	typ := p.parseType()
	p.expect(TokenAssign)
	value := p.ParseExpression()
	p.expect(TokenSemicolon)
	if p.failed {
		return nil
	}
	return &VarDecl{SpanVal: p.span(start), Name: name, Type: typ, Value: value}
}

// funParts holds what functions and methods share syntactically.
type funParts struct {
	name    string
	retType Type
	params  []*ParDecl
	decls   []Decl
	body    Expr
}

func (p *Parser) parseFunParts() funParts {
	var f funParts
	p.expect(TokenFun)
	f.name, _ = p.expectIdent()
	p.expect(TokenColon)
	f.retType = p.parseType()
	p.expect(TokenLParen)
	f.params = p.parseParams(TokenRParen)
	p.expect(TokenRParen)
	if p.curTokenIs(TokenLet) {
		p.nextToken()
		f.decls = p.parseDecs()
		if len(f.decls) == 0 {
			p.errorf("expected a declaration after let, got %s", p.curToken)
		}
		p.expect(TokenIn)
	}
	f.body = p.ParseExpression()
	p.expect(TokenSemicolon)
	return f
}

func (p *Parser) parseFun() *FunDecl {
	start := p.curToken.Pos
	f := p.parseFunParts()
	if p.failed {
		return nil
	}
	return &FunDecl{
		SpanVal: p.span(start),
		Name:    f.name,
		RetType: f.retType,
		Params:  f.params,
		Decls:   f.decls,
		Body:    f.body,
	}
}

// parseParams parses a possibly empty list of id:type pairs up to end.
func (p *Parser) parseParams(end TokenType) []*ParDecl {
	var params []*ParDecl
	if p.curTokenIs(end) {
		return params
	}
	for !p.failed {
		start := p.curToken.Pos
		name, _ := p.expectIdent()
		p.expect(TokenColon)
		typ := p.parseType()
		if p.failed {
			return nil
		}
		params = append(params, &ParDecl{SpanVal: p.span(start), Name: name, Type: typ})
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	return params
}

func (p *Parser) parseClass() *ClassDecl {
	start := p.curToken.Pos
	p.expect(TokenClass)
	class := &ClassDecl{}
	class.Name, _ = p.expectIdent()
	if p.curTokenIs(TokenExtends) {
		p.nextToken()
		class.Superclass, _ = p.expectIdent()
	}

	p.expect(TokenLParen)
	for _, par := range p.parseParams(TokenRParen) {
		class.Fields = append(class.Fields, &FieldDecl{SpanVal: par.SpanVal, Name: par.Name, Type: par.Type})
	}
	p.expect(TokenRParen)

	p.expect(TokenLBrace)
	for p.curTokenIs(TokenFun) && !p.failed {
		mstart := p.curToken.Pos
		f := p.parseFunParts()
		if p.failed {
			break
		}
		class.Methods = append(class.Methods, &MethodDecl{
			SpanVal: p.span(mstart),
			Name:    f.name,
			RetType: f.retType,
			Params:  f.params,
			Decls:   f.decls,
			Body:    f.body,
		})
	}
	p.expect(TokenRBrace)
	if p.failed {
		return nil
	}
	class.SpanVal = p.span(start)
	return class
}

// parseType parses int, bool or a class name.
func (p *Parser) parseType() Type {
	tok := p.curToken
	span := Span{Start: tok.Pos, End: tokenEnd(tok)}
	switch tok.Type {
	case TokenInt:
		p.nextToken()
		return &IntType{SpanVal: span}
	case TokenBool:
		p.nextToken()
		return &BoolType{SpanVal: span}
	case TokenIdentifier:
		p.nextToken()
		return &RefType{SpanVal: span, Class: tok.Literal}
	}
	p.errorf("expected a type, got %s", tok)
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseLogic()
}

// binaryLevel parses a left-associative chain of operators at one
// precedence level.
func (p *Parser) binaryLevel(next func() Expr, build map[TokenType]func(BinaryExpr) Expr) Expr {
	start := p.curToken.Pos
	left := next()
	for !p.failed {
		mk, ok := build[p.curToken.Type]
		if !ok {
			break
		}
		p.nextToken()
		right := next()
		if p.failed {
			return nil
		}
		left = mk(BinaryExpr{SpanVal: p.span(start), Left: left, Right: right})
	}
	if p.failed {
		return nil
	}
	return left
}

var logicOps = map[TokenType]func(BinaryExpr) Expr{
	TokenAnd: func(b BinaryExpr) Expr { return &AndExpr{b} },
	TokenOr:  func(b BinaryExpr) Expr { return &OrExpr{b} },
}

var compareOps = map[TokenType]func(BinaryExpr) Expr{
	TokenEqual:        func(b BinaryExpr) Expr { return &EqualExpr{b} },
	TokenLessEqual:    func(b BinaryExpr) Expr { return &LessEqualExpr{b} },
	TokenGreaterEqual: func(b BinaryExpr) Expr { return &GreaterEqualExpr{b} },
}

var sumOps = map[TokenType]func(BinaryExpr) Expr{
	TokenPlus:  func(b BinaryExpr) Expr { return &PlusExpr{b} },
	TokenMinus: func(b BinaryExpr) Expr { return &MinusExpr{b} },
}

var termOps = map[TokenType]func(BinaryExpr) Expr{
	TokenTimes: func(b BinaryExpr) Expr { return &TimesExpr{b} },
	TokenDiv:   func(b BinaryExpr) Expr { return &DivExpr{b} },
}

func (p *Parser) parseLogic() Expr   { return p.binaryLevel(p.parseCompare, logicOps) }
func (p *Parser) parseCompare() Expr { return p.binaryLevel(p.parseSum, compareOps) }
func (p *Parser) parseSum() Expr     { return p.binaryLevel(p.parseTerm, sumOps) }
func (p *Parser) parseTerm() Expr    { return p.binaryLevel(p.parseFactor, termOps) }

func (p *Parser) parseFactor() Expr {
	if p.failed {
		return nil
	}
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenNot:
		p.nextToken()
		operand := p.parseFactor()
		if p.failed {
			return nil
		}
		return &NotExpr{SpanVal: p.span(start), Operand: operand}

	case TokenLParen:
		p.nextToken()
		e := p.ParseExpression()
		p.expect(TokenRParen)
		if p.failed {
			return nil
		}
		return e

	case TokenMinus:
		if !p.peekTokenIs(TokenInteger) {
			p.errorf("expected a number after -, got %s", p.peekToken)
			return nil
		}
		p.nextToken()
		return p.parseInteger(start, true)

	case TokenInteger:
		return p.parseInteger(start, false)

	case TokenTrue, TokenFalse:
		value := p.curTokenIs(TokenTrue)
		p.nextToken()
		return &BoolLit{SpanVal: p.span(start), Value: value}

	case TokenNull:
		p.nextToken()
		return &NullLit{SpanVal: p.span(start)}

	case TokenNew:
		p.nextToken()
		name, _ := p.expectIdent()
		args := p.parseArgs()
		if p.failed {
			return nil
		}
		return &NewExpr{SpanVal: p.span(start), ClassName: name, Args: args}

	case TokenIf:
		return p.parseIf(start)

	case TokenPrint:
		p.nextToken()
		p.expect(TokenLParen)
		value := p.ParseExpression()
		p.expect(TokenRParen)
		if p.failed {
			return nil
		}
		return &PrintExpr{SpanVal: p.span(start), Value: value}

	case TokenIdentifier:
		return p.parseIdentifier(start)
	}

	p.errorf("unexpected %s in expression", p.curToken)
	return nil
}

func (p *Parser) parseInteger(start Position, negative bool) Expr {
	lit := p.curToken.Literal
	if negative {
		lit = "-" + lit
	}
	n, err := strconv.Atoi(lit)
	if err != nil {
		p.errorf("invalid integer %s", lit)
		return nil
	}
	p.nextToken()
	return &IntLit{SpanVal: p.span(start), Value: n}
}

func (p *Parser) parseIf(start Position) Expr {
	p.expect(TokenIf)
	cond := p.ParseExpression()
	p.expect(TokenThen)
	p.expect(TokenLBrace)
	then := p.ParseExpression()
	p.expect(TokenRBrace)
	p.expect(TokenElse)
	p.expect(TokenLBrace)
	els := p.ParseExpression()
	p.expect(TokenRBrace)
	if p.failed {
		return nil
	}
	return &IfExpr{SpanVal: p.span(start), Cond: cond, Then: then, Else: els}
}

// parseIdentifier parses a variable reference, a call or a method call.
func (p *Parser) parseIdentifier(start Position) Expr {
	name := p.curToken.Literal
	p.nextToken()

	switch {
	case p.curTokenIs(TokenLParen):
		args := p.parseArgs()
		if p.failed {
			return nil
		}
		return &CallExpr{SpanVal: p.span(start), Name: name, Args: args}

	case p.curTokenIs(TokenDot):
		p.nextToken()
		method, _ := p.expectIdent()
		args := p.parseArgs()
		if p.failed {
			return nil
		}
		return &MethodCallExpr{SpanVal: p.span(start), Receiver: name, Method: method, Args: args}
	}
	return &IdExpr{SpanVal: p.span(start), Name: name}
}

// parseArgs parses a parenthesized, comma separated argument list.
func (p *Parser) parseArgs() []Expr {
	p.expect(TokenLParen)
	var args []Expr
	if p.curTokenIs(TokenRParen) {
		p.nextToken()
		return args
	}
	for !p.failed {
		arg := p.ParseExpression()
		if p.failed {
			return nil
		}
		args = append(args, arg)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRParen)
	return args
}
