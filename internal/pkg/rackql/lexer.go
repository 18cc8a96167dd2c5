package rackql

import (
	"strconv"
	"strings"
	"unicode"
)

// Lexer tokenizes a raw query string against a fixed operator registry.
type Lexer struct {
	input string
	pos   int
	reg   *Registry
}

// NewLexer creates a Lexer for the given input.
func NewLexer(input string, reg *Registry) *Lexer {
	return &Lexer{input: input, reg: reg}
}

// Lex tokenizes the whole input in one pass.
func Lex(input string, reg *Registry) ([]Token, error) {
	return NewLexer(input, reg).Tokens()
}

// Tokens consumes the remaining input and returns the token sequence.
// Keywords are matched longest-first so multi-character operators win over
// their prefixes; anything that is not a keyword must lex as a literal.
func (l *Lexer) Tokens() ([]Token, error) {
	var tokens []Token
	for {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			return tokens, nil
		}

		if sym, ok := l.matchKeyword(); ok {
			tokens = append(tokens, Keyword(sym))
			continue
		}

		tok, err := l.readLiteral()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

func (l *Lexer) matchKeyword() (string, bool) {
	rest := l.input[l.pos:]
	for _, sym := range l.reg.Keywords() {
		if strings.HasPrefix(rest, sym) {
			l.pos += len(sym)
			return sym, true
		}
	}
	return "", false
}

func (l *Lexer) readLiteral() (Token, error) {
	switch l.input[l.pos] {
	case '\'', '"':
		return l.readQuoted(l.input[l.pos])
	}
	return l.readBare()
}

// readQuoted consumes a quoted string. A backslash escapes the next
// character, which allows the quote itself to appear inside the literal.
// Quoted literals are always strings, never numbers.
func (l *Lexer) readQuoted(quote byte) (Token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch ch {
		case '\\':
			if l.pos+1 < len(l.input) {
				sb.WriteByte(l.input[l.pos+1])
				l.pos += 2
				continue
			}
			l.pos++
		case quote:
			l.pos++
			return Token{Type: TokenString, Text: sb.String()}, nil
		default:
			sb.WriteByte(ch)
			l.pos++
		}
	}
	return Token{}, &LexError{Rest: l.input[start:]}
}

// readBare consumes a maximal run of word characters, dots and hyphens and
// applies the numeric coercion rule: all digits is an integer; digits with
// a single decimal point is a float when parseable; everything else stays
// a string.
func (l *Lexer) readBare() (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && isBareChar(l.input[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		return Token{}, &LexError{Rest: l.input[start:]}
	}
	return coerceLiteral(l.input[start:l.pos]), nil
}

func coerceLiteral(text string) Token {
	digits, dots := 0, 0
	for i := 0; i < len(text); i++ {
		switch {
		case text[i] >= '0' && text[i] <= '9':
			digits++
		case text[i] == '.':
			dots++
		}
	}
	if digits == len(text) {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return Token{Type: TokenInt, Text: text, Int: n}
		}
	}
	if dots <= 1 && digits+dots == len(text) {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return Token{Type: TokenFloat, Text: text, Float: f}
		}
	}
	return Token{Type: TokenString, Text: text}
}

func isBareChar(ch byte) bool {
	r := rune(ch)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || ch == '_' || ch == '.' || ch == '-'
}
