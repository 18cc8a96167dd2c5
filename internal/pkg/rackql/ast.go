package rackql

// Node is the interface implemented by all AST nodes. The node set is
// closed; evaluation is a type switch in eval.go.
type Node interface {
	node() // marker method
}

// PrefixExpr combines the result sets of its children. Children are kept in
// source order: Intersection folds left to right, Union evaluates each
// child against the original candidates.
type PrefixExpr struct {
	Op       PrefixOp
	Children []Node
}

func (PrefixExpr) node() {}

// AttrRef names a key[.subkey]-addressed attribute. It is only ever the
// left-hand carrier of an InfixExpr, never evaluated on its own.
type AttrRef struct {
	Key    string
	Subkey string // empty when the reference has no subkey segment
}

func (AttrRef) node() {}

// InfixExpr compares an entity attribute against a literal. Exactly one of
// Keyword (a built-in search keyword) or Attr is set.
type InfixExpr struct {
	Keyword string
	Attr    *AttrRef
	Op      InfixOp
	Literal Token
}

func (InfixExpr) node() {}
