package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the FOOL lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42
	TokenIdentifier // x, Animal

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenTimes        // *
	TokenDiv          // /
	TokenEqual        // ==
	TokenLessEqual    // <=
	TokenGreaterEqual // >=
	TokenAnd          // &&
	TokenOr           // ||
	TokenNot          // !

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenSemicolon // ;
	TokenColon     // :
	TokenDot       // .
	TokenAssign    // =

	// Reserved words
	TokenLet
	TokenIn
	TokenVar
	TokenFun
	TokenClass
	TokenExtends
	TokenNew
	TokenNull
	TokenTrue
	TokenFalse
	TokenIf
	TokenThen
	TokenElse
	TokenPrint
	TokenInt
	TokenBool
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenError:        "ERROR",
	TokenInteger:      "INTEGER",
	TokenIdentifier:   "IDENTIFIER",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenTimes:        "*",
	TokenDiv:          "/",
	TokenEqual:        "==",
	TokenLessEqual:    "<=",
	TokenGreaterEqual: ">=",
	TokenAnd:          "&&",
	TokenOr:           "||",
	TokenNot:          "!",
	TokenLParen:       "(",
	TokenRParen:       ")",
	TokenLBrace:       "{",
	TokenRBrace:       "}",
	TokenComma:        ",",
	TokenSemicolon:    ";",
	TokenColon:        ":",
	TokenDot:          ".",
	TokenAssign:       "=",
	TokenLet:          "let",
	TokenIn:           "in",
	TokenVar:          "var",
	TokenFun:          "fun",
	TokenClass:        "class",
	TokenExtends:      "extends",
	TokenNew:          "new",
	TokenNull:         "null",
	TokenTrue:         "true",
	TokenFalse:        "false",
	TokenIf:           "if",
	TokenThen:         "then",
	TokenElse:         "else",
	TokenPrint:        "print",
	TokenInt:          "int",
	TokenBool:         "bool",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"let":     TokenLet,
	"in":      TokenIn,
	"var":     TokenVar,
	"fun":     TokenFun,
	"class":   TokenClass,
	"extends": TokenExtends,
	"new":     TokenNew,
	"null":    TokenNull,
	"true":    TokenTrue,
	"false":   TokenFalse,
	"if":      TokenIf,
	"then":    TokenThen,
	"else":    TokenElse,
	"print":   TokenPrint,
	"int":     TokenInt,
	"bool":    TokenBool,
}
