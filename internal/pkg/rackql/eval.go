package rackql

import (
	"sort"
	"strings"
)

// Set is a candidate set of entity keys.
type Set map[EntityKey]struct{}

// NewSet builds a Set from keys.
func NewSet(keys ...EntityKey) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Contains reports membership of key.
func (s Set) Contains(key EntityKey) bool {
	_, ok := s[key]
	return ok
}

// SortedKeys returns the set's keys ordered by (type, name).
func (s Set) SortedKeys() []EntityKey {
	keys := make([]EntityKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].Name < keys[j].Name
	})
	return keys
}

// Run evaluates the query AST against the candidate set and returns the
// matching subset. Per-entity resolution failures (missing attributes,
// uncomparable types) exclude the entity and never fail the query.
func Run(node Node, candidates Set, ctx *Context, inv Inventory) Set {
	switch n := node.(type) {
	case PrefixExpr:
		return evalPrefix(n, candidates, ctx, inv)
	case InfixExpr:
		return evalInfix(n, candidates, ctx, inv)
	default:
		// AttrRef is a carrier, never evaluated on its own.
		return make(Set)
	}
}

func evalPrefix(expr PrefixExpr, candidates Set, ctx *Context, inv Inventory) Set {
	switch expr.Op {
	case Union:
		// Each child runs against the ORIGINAL candidates; a branch never
		// benefits from narrowing by its siblings.
		result := make(Set)
		for _, child := range expr.Children {
			for k := range Run(child, candidates, ctx, inv) {
				result[k] = struct{}{}
			}
		}
		return result
	default:
		// Narrowing fold: each child only ever sees entities that already
		// survived the children before it.
		result := candidates
		for _, child := range expr.Children {
			result = intersect(result, Run(child, result, ctx, inv))
		}
		return result
	}
}

func intersect(a, b Set) Set {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(Set, len(a))
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

// evalInfix keeps each candidate for which any resolved attribute value
// satisfies the comparator (existential semantics over multi-valued
// attributes).
func evalInfix(expr InfixExpr, candidates Set, ctx *Context, inv Inventory) Set {
	result := make(Set)
	for key := range candidates {
		values, err := resolveAttribute(expr, key, ctx, inv)
		if err != nil {
			continue
		}
		for _, v := range values {
			ok, err := compare(expr.Op, v, expr.Literal)
			if err != nil {
				continue
			}
			if ok {
				result[key] = struct{}{}
				break
			}
		}
	}
	return result
}

// resolveAttribute produces the value sequence the comparator tests for one
// entity: backend attribute values for an AttrRef, the entity type for
// clusto_type, ancestor container names for hierarchy keywords, and a
// record field lookup for anything else.
func resolveAttribute(expr InfixExpr, key EntityKey, ctx *Context, inv Inventory) ([]any, error) {
	if expr.Attr != nil {
		return inv.Attrs(key, expr.Attr.Key, expr.Attr.Subkey), nil
	}

	switch {
	case expr.Keyword == "clusto_type":
		return []any{key.Type}, nil
	case ctx.IsHierarchy(expr.Keyword):
		names := ctx.ContainerNames(expr.Keyword, key)
		values := make([]any, len(names))
		for i, n := range names {
			values[i] = n
		}
		return values, nil
	default:
		v, ok := inv.Field(key, expr.Keyword)
		if !ok {
			return nil, &AttributeError{Entity: key, Field: expr.Keyword}
		}
		return []any{v}, nil
	}
}

// compare applies op between one resolved value and the literal. Ordering
// follows the literal's type: numeric literals compare numerically and
// require a numeric value, string literals compare lexicographically and
// require a string. Starts-with and ends-with are defined for strings only.
func compare(op InfixOp, value any, lit Token) (bool, error) {
	switch op {
	case Eq:
		return equalValue(value, lit), nil
	case Ne:
		return !equalValue(value, lit), nil
	case Gt, Lt:
		return compareOrdered(op, value, lit)
	default:
		return compareAffix(op, value, lit)
	}
}

func equalValue(value any, lit Token) bool {
	if lit.Type == TokenString {
		s, ok := value.(string)
		return ok && s == lit.Text
	}
	f, ok := asFloat(value)
	if !ok {
		return false
	}
	lf, _ := asFloat(lit.Value())
	return f == lf
}

func compareOrdered(op InfixOp, value any, lit Token) (bool, error) {
	if lit.Type == TokenString {
		s, ok := value.(string)
		if !ok {
			return false, &TypeMismatchError{Op: op, Value: value}
		}
		if op == Gt {
			return s > lit.Text, nil
		}
		return s < lit.Text, nil
	}

	f, ok := asFloat(value)
	if !ok {
		return false, &TypeMismatchError{Op: op, Value: value}
	}
	lf, _ := asFloat(lit.Value())
	if op == Gt {
		return f > lf, nil
	}
	return f < lf, nil
}

func compareAffix(op InfixOp, value any, lit Token) (bool, error) {
	if lit.Type != TokenString {
		return false, &TypeMismatchError{Op: op, Value: lit.Value()}
	}
	s, ok := value.(string)
	if !ok {
		return false, &TypeMismatchError{Op: op, Value: value}
	}
	if op == StartsWith {
		return strings.HasPrefix(s, lit.Text), nil
	}
	return strings.HasSuffix(s, lit.Text), nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
