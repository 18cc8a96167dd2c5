package rackql

import (
	"fmt"
	"strings"
)

// EndOfInput is reported as the found token when the parser runs off the
// end of the token sequence.
const EndOfInput = "end of input"

// LexError reports input text that matches neither a keyword nor the
// literal grammar. Lexing aborts at the first such run.
type LexError struct {
	Rest string // unconsumed input at the point of failure
}

func (e *LexError) Error() string {
	return fmt.Sprintf("cannot tokenize input near %q", e.Rest)
}

// ExpectedTokenError reports a required token (a parenthesis, an operator,
// a literal) that was not found where the grammar demands it.
type ExpectedTokenError struct {
	Expected string
	Found    string // token text, or EndOfInput
}

func (e *ExpectedTokenError) Error() string {
	return fmt.Sprintf("expected %s but found %s", e.Expected, e.Found)
}

// UnexpectedTokenError reports a subquery head that matches no registered
// operator or search keyword.
type UnexpectedTokenError struct {
	Remaining []Token
}

func (e *UnexpectedTokenError) Error() string {
	parts := make([]string, 0, len(e.Remaining))
	for _, t := range e.Remaining {
		parts = append(parts, t.String())
	}
	return fmt.Sprintf("unexpected token at %s", strings.Join(parts, " "))
}

// TypeMismatchError reports a comparator applied to operand types it cannot
// compare. It is local to one entity's evaluation: the evaluator converts
// it into "no match" rather than failing the query.
type TypeMismatchError struct {
	Op    InfixOp
	Value any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("operator %q cannot compare value %v (%T)", e.Op, e.Value, e.Value)
}

// AttributeError reports a field lookup against an entity record that has
// no such field. Like TypeMismatchError it only ever excludes the one
// entity.
type AttributeError struct {
	Entity EntityKey
	Field  string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("entity %s/%s has no field %q", e.Entity.Type, e.Entity.Name, e.Field)
}
