package rackql

import "strings"

// Parser consumes a token sequence and produces a single query expression.
//
// Grammar:
//
//	subquery    := "(" ( prefix_expr | infix_expr | attr_expr | keyword_expr ) ")"
//	prefix_expr := PREFIX_OP subquery*
//	infix_expr  := INFIX_OP lhs literal
//	attr_expr   := "attr" ATTRNAME [INFIX_OP] literal
//	keyword_expr:= SEARCH_KEYWORD [INFIX_OP] literal
//	lhs         := "attr" ATTRNAME | SEARCH_KEYWORD
//
// Comparisons are accepted both operator-first ("(= name 'web01')") and
// keyword-first ("(name = 'web01')"); a keyword-first comparison with no
// operator defaults to equality, which is what makes the "(pool 'frontend')"
// shorthand work.
type Parser struct {
	reg    *Registry
	tokens []Token
	pos    int
}

// Parse consumes exactly one fully parenthesized query from tokens and
// returns the AST plus any leftover tokens. Leftover tokens are not an
// error; the caller decides whether to warn about them.
func Parse(tokens []Token, reg *Registry) (Node, []Token, error) {
	p := &Parser{reg: reg, tokens: tokens}
	node, err := p.parseSubquery()
	if err != nil {
		return nil, nil, err
	}
	return node, p.tokens[p.pos:], nil
}

// ParseQuery lexes and parses raw in one step.
func ParseQuery(raw string, reg *Registry) (Node, []Token, error) {
	tokens, err := Lex(raw, reg)
	if err != nil {
		return nil, nil, err
	}
	return Parse(tokens, reg)
}

func (p *Parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *Parser) next() (Token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

// expectKeyword consumes the next token, requiring it to be the given
// keyword symbol.
func (p *Parser) expectKeyword(sym string) error {
	tok, ok := p.next()
	if !ok {
		return &ExpectedTokenError{Expected: quoted(sym), Found: EndOfInput}
	}
	if !tok.IsKeyword(sym) {
		return &ExpectedTokenError{Expected: quoted(sym), Found: tok.String()}
	}
	return nil
}

func (p *Parser) parseSubquery() (Node, error) {
	if err := p.expectKeyword("("); err != nil {
		return nil, err
	}

	tok, ok := p.peek()
	if !ok {
		return nil, &ExpectedTokenError{Expected: "an operator or search keyword", Found: EndOfInput}
	}

	var node Node
	var err error
	switch {
	case tok.Type == TokenKeyword && hasPrefix(p.reg, tok.Text):
		p.pos++
		op, _ := p.reg.Prefix(tok.Text)
		node, err = p.parsePrefix(op)
	case tok.Type == TokenKeyword && hasInfix(p.reg, tok.Text):
		p.pos++
		op, _ := p.reg.Infix(tok.Text)
		node, err = p.parseOpFirst(op)
	case tok.IsKeyword("attr"):
		p.pos++
		var ref *AttrRef
		ref, err = p.parseAttrRef()
		if err == nil {
			node, err = p.parseComparison("", ref)
		}
	case tok.Type == TokenKeyword && p.reg.IsSearchKeyword(tok.Text):
		p.pos++
		node, err = p.parseComparison(tok.Text, nil)
	default:
		return nil, &UnexpectedTokenError{Remaining: p.tokens[p.pos:]}
	}
	if err != nil {
		return nil, err
	}

	if err := p.expectKeyword(")"); err != nil {
		return nil, err
	}
	return node, nil
}

// parsePrefix greedily consumes parenthesized child subqueries until the
// next token is not an opening parenthesis. Zero children is legal.
func (p *Parser) parsePrefix(op PrefixOp) (Node, error) {
	expr := PrefixExpr{Op: op}
	for {
		tok, ok := p.peek()
		if !ok || !tok.IsKeyword("(") {
			return expr, nil
		}
		child, err := p.parseSubquery()
		if err != nil {
			return nil, err
		}
		expr.Children = append(expr.Children, child)
	}
}

// parseAttrRef reads the attribute name following "attr". The name's first
// dot, if any, splits key from subkey.
func (p *Parser) parseAttrRef() (*AttrRef, error) {
	tok, ok := p.next()
	if !ok {
		return nil, &ExpectedTokenError{Expected: "an attribute name", Found: EndOfInput}
	}
	if tok.Type != TokenString {
		return nil, &ExpectedTokenError{Expected: "an attribute name", Found: tok.String()}
	}

	ref := &AttrRef{Key: tok.Text}
	if i := strings.Index(tok.Text, "."); i >= 0 {
		ref.Key, ref.Subkey = tok.Text[:i], tok.Text[i+1:]
	}
	return ref, nil
}

// parseOpFirst parses the operator-first comparison form: the comparator
// has been consumed, a search keyword or attr reference and a literal
// follow.
func (p *Parser) parseOpFirst(op InfixOp) (Node, error) {
	tok, ok := p.next()
	if !ok {
		return nil, &ExpectedTokenError{Expected: "a search keyword or attr reference", Found: EndOfInput}
	}

	var keyword string
	var ref *AttrRef
	switch {
	case tok.IsKeyword("attr"):
		var err error
		ref, err = p.parseAttrRef()
		if err != nil {
			return nil, err
		}
	case tok.Type == TokenKeyword && p.reg.IsSearchKeyword(tok.Text):
		keyword = tok.Text
	default:
		return nil, &ExpectedTokenError{Expected: "a search keyword or attr reference", Found: tok.String()}
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return InfixExpr{Keyword: keyword, Attr: ref, Op: op, Literal: lit}, nil
}

// parseComparison parses the keyword-first comparison tail: an optional
// comparator (equality when omitted) and a literal.
func (p *Parser) parseComparison(keyword string, attr *AttrRef) (Node, error) {
	op := Eq
	if tok, ok := p.peek(); ok && tok.Type == TokenKeyword {
		if found, isOp := p.reg.Infix(tok.Text); isOp {
			op = found
			p.pos++
		}
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return InfixExpr{Keyword: keyword, Attr: attr, Op: op, Literal: lit}, nil
}

func (p *Parser) parseLiteral() (Token, error) {
	lit, ok := p.next()
	if !ok {
		return Token{}, &ExpectedTokenError{Expected: "a literal value", Found: EndOfInput}
	}
	if lit.Type == TokenKeyword {
		return Token{}, &ExpectedTokenError{Expected: "a literal value", Found: lit.String()}
	}
	return lit, nil
}

func hasPrefix(reg *Registry, sym string) bool {
	_, ok := reg.Prefix(sym)
	return ok
}

func hasInfix(reg *Registry, sym string) bool {
	_, ok := reg.Infix(sym)
	return ok
}

func quoted(sym string) string {
	return "\"" + sym + "\""
}
