// Package rackql implements the rackq inventory query language: a lexer,
// a recursive-descent parser for the fully parenthesized prefix grammar,
// and a set evaluator that runs the resulting expression tree against an
// inventory snapshot.
//
// A query is a single parenthesized expression. Prefix operators ('&'
// intersection, '|' union) take any number of parenthesized subqueries;
// infix comparators ('=', '!=', '>', '<', '^' starts-with, ',' ends-with)
// compare a built-in search keyword (pool, name, clusto_type, datacenter)
// or an "attr KEY[.SUBKEY]" reference against a literal:
//
//	(& (pool 'frontend') (attr status.health = 'ok'))
//
// The ',' symbol for ends-with is a historical wart kept for query
// compatibility.
package rackql

import "fmt"

// TokenType classifies a lexical token.
type TokenType int

const (
	// TokenKeyword covers operator symbols, search keywords, "attr" and
	// parentheses. Text holds the symbol.
	TokenKeyword TokenType = iota
	TokenString
	TokenInt
	TokenFloat
)

// Token is one lexical token. Literal tokens keep their source text in
// Text; numeric literals additionally carry the coerced value.
type Token struct {
	Type  TokenType
	Text  string
	Int   int64
	Float float64
}

// Keyword builds a keyword token for the given symbol.
func Keyword(sym string) Token {
	return Token{Type: TokenKeyword, Text: sym}
}

// IsKeyword reports whether t is the keyword token for sym.
func (t Token) IsKeyword(sym string) bool {
	return t.Type == TokenKeyword && t.Text == sym
}

// Value returns the literal's Go value: string, int64 or float64.
// Keyword tokens return their symbol.
func (t Token) Value() any {
	switch t.Type {
	case TokenInt:
		return t.Int
	case TokenFloat:
		return t.Float
	default:
		return t.Text
	}
}

func (t Token) String() string {
	switch t.Type {
	case TokenKeyword:
		return fmt.Sprintf("%q", t.Text)
	case TokenString:
		return fmt.Sprintf("'%s'", t.Text)
	default:
		return t.Text
	}
}
