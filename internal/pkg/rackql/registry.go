package rackql

import "sort"

// PrefixOp is a set-combining prefix operator.
type PrefixOp int

const (
	Intersection PrefixOp = iota // &
	Union                        // |
)

func (op PrefixOp) String() string {
	if op == Union {
		return "|"
	}
	return "&"
}

// InfixOp is a value comparator applied between an attribute and a literal.
type InfixOp int

const (
	Eq         InfixOp = iota // =
	Ne                        // !=
	Gt                        // >
	Lt                        // <
	StartsWith                // ^
	EndsWith                  // ,
)

func (op InfixOp) String() string {
	switch op {
	case Eq:
		return "="
	case Ne:
		return "!="
	case Gt:
		return ">"
	case Lt:
		return "<"
	case StartsWith:
		return "^"
	default:
		return ","
	}
}

// SearchKeywords are the built-in attribute shortcuts usable as the head of
// an infix expression.
var SearchKeywords = []string{"pool", "name", "clusto_type", "datacenter"}

// Registry maps operator symbols to their grammar roles. It is constructed
// once at startup and never mutated afterwards; lexer and parser both hold
// a reference to the same table.
type Registry struct {
	prefix   map[string]PrefixOp
	infix    map[string]InfixOp
	search   map[string]struct{}
	keywords []string // every symbol the lexer matches, longest first
}

// NewRegistry builds the operator table for the full query grammar.
func NewRegistry() *Registry {
	r := &Registry{
		prefix: map[string]PrefixOp{
			"&": Intersection,
			"|": Union,
		},
		infix: map[string]InfixOp{
			"=":  Eq,
			"!=": Ne,
			">":  Gt,
			"<":  Lt,
			"^":  StartsWith,
			",":  EndsWith,
		},
		search: make(map[string]struct{}),
	}

	for _, kw := range SearchKeywords {
		r.search[kw] = struct{}{}
		r.keywords = append(r.keywords, kw)
	}
	for sym := range r.prefix {
		r.keywords = append(r.keywords, sym)
	}
	for sym := range r.infix {
		r.keywords = append(r.keywords, sym)
	}
	r.keywords = append(r.keywords, "attr", "(", ")")

	// Longest first so multi-character symbols are not shadowed by their
	// prefixes ("!=" before "=", "clusto_type" before anything shorter).
	sort.Slice(r.keywords, func(i, j int) bool {
		if len(r.keywords[i]) != len(r.keywords[j]) {
			return len(r.keywords[i]) > len(r.keywords[j])
		}
		return r.keywords[i] < r.keywords[j]
	})

	return r
}

// Prefix looks up the prefix operator bound to sym.
func (r *Registry) Prefix(sym string) (PrefixOp, bool) {
	op, ok := r.prefix[sym]
	return op, ok
}

// Infix looks up the infix comparator bound to sym.
func (r *Registry) Infix(sym string) (InfixOp, bool) {
	op, ok := r.infix[sym]
	return op, ok
}

// IsSearchKeyword reports whether sym is a built-in search keyword.
func (r *Registry) IsSearchKeyword(sym string) bool {
	_, ok := r.search[sym]
	return ok
}

// Keywords returns every recognizable symbol, longest first. Callers must
// not modify the returned slice.
func (r *Registry) Keywords() []string {
	return r.keywords
}
