// Package ast holds the abstract syntax tree a parsed DQL query is delivered
// as: a generic n-ary Node with a kind tag, plus the variable table that owns
// every Variable a query mentions.
//
// Statement kinds (For, Filter, Let, ...) appear as members of a Root node in
// source order. Expression kinds (Value, Reference, BinaryOp, ...) appear as
// operands of statements. The plan package lowers a Root node into an
// execution plan; it never mutates the tree.
package ast

import (
	"fmt"
	"strings"
)

// NodeKind discriminates AST nodes.
type NodeKind uint8

const (
	KindNop NodeKind = iota
	KindRoot

	// statements
	KindFor
	KindFilter
	KindLet
	KindSort
	KindSortElement
	KindCollect
	KindAssign
	KindLimit
	KindReturn
	KindRemove
	KindInsert
	KindUpdate
	KindReplace
	KindSubquery

	// expressions
	KindValue
	KindVariable
	KindReference
	KindCollection
	KindRange
	KindList
	KindObject
	KindObjectElement
	KindBinaryOp
	KindAttributeAccess
	KindFunctionCall
)

var kindNames = map[NodeKind]string{
	KindNop:             "nop",
	KindRoot:            "root",
	KindFor:             "for",
	KindFilter:          "filter",
	KindLet:             "let",
	KindSort:            "sort",
	KindSortElement:     "sort element",
	KindCollect:         "collect",
	KindAssign:          "assign",
	KindLimit:           "limit",
	KindReturn:          "return",
	KindRemove:          "remove",
	KindInsert:          "insert",
	KindUpdate:          "update",
	KindReplace:         "replace",
	KindSubquery:        "subquery",
	KindValue:           "value",
	KindVariable:        "variable",
	KindReference:       "reference",
	KindCollection:      "collection",
	KindRange:           "range",
	KindList:            "list",
	KindObject:          "object",
	KindObjectElement:   "object element",
	KindBinaryOp:        "binary op",
	KindAttributeAccess: "attribute access",
	KindFunctionCall:    "function call",
}

// String returns the kind's canonical name (also used in the persisted form).
func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// Node is one AST node. Which fields are meaningful depends on Kind:
//
//	Value     - literal payload for KindValue
//	Name      - collection name, object key, operator, or function name
//	Variable  - payload for KindVariable and KindReference
//	Ascending - sort direction for KindSortElement
//
// Members are ordered and their positions are fixed per kind; the statement
// constructors below document each layout.
type Node struct {
	Kind      NodeKind
	Members   []*Node
	Value     interface{}
	Name      string
	Variable  *Variable
	Ascending bool
}

// Member returns the i-th member or nil if out of range.
func (n *Node) Member(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Members) {
		return nil
	}
	return n.Members[i]
}

// IsConstant reports whether the node is a literal value.
func (n *Node) IsConstant() bool {
	return n != nil && n.Kind == KindValue
}

// BoolValue coerces a literal to bool. Non-literals and non-bools yield false.
func (n *Node) BoolValue() bool {
	if !n.IsConstant() {
		return false
	}
	b, _ := n.Value.(bool)
	return b
}

// IntValue coerces a literal to a non-negative int64. The second return is
// false if the node is not an integer literal or is negative.
func (n *Node) IntValue() (int64, bool) {
	if !n.IsConstant() {
		return 0, false
	}
	var v int64
	switch x := n.Value.(type) {
	case int:
		v = int64(x)
	case int64:
		v = x
	case float64:
		// JSON numbers arrive as float64; accept only integral ones
		if x != float64(int64(x)) {
			return 0, false
		}
		v = int64(x)
	default:
		return 0, false
	}
	if v < 0 {
		return 0, false
	}
	return v, true
}

// ReferencedVariables appends every variable referenced anywhere below the
// node, in first-mention order, without duplicates.
func (n *Node) ReferencedVariables() []*Variable {
	var out []*Variable
	seen := make(map[VariableID]bool)
	n.walkReferences(func(v *Variable) {
		if !seen[v.ID] {
			seen[v.ID] = true
			out = append(out, v)
		}
	})
	return out
}

func (n *Node) walkReferences(fn func(*Variable)) {
	if n == nil {
		return
	}
	if n.Kind == KindReference && n.Variable != nil {
		fn(n.Variable)
	}
	for _, m := range n.Members {
		m.walkReferences(fn)
	}
}

// String renders the node as a compact s-expression. The rendering is
// deterministic, so it doubles as a cache key for plan caching.
func (n *Node) String() string {
	if n == nil {
		return "nil"
	}
	var sb strings.Builder
	n.render(&sb)
	return sb.String()
}

func (n *Node) render(sb *strings.Builder) {
	switch n.Kind {
	case KindValue:
		fmt.Fprintf(sb, "%v", n.Value)
		return
	case KindVariable, KindReference:
		if n.Variable != nil {
			sb.WriteString(n.Variable.Name)
		} else {
			sb.WriteString("?")
		}
		return
	case KindCollection:
		sb.WriteString(n.Name)
		return
	}

	sb.WriteByte('(')
	sb.WriteString(kindNames[n.Kind])
	if n.Name != "" {
		sb.WriteByte(' ')
		sb.WriteString(n.Name)
	}
	if n.Kind == KindSortElement {
		if n.Ascending {
			sb.WriteString(" asc")
		} else {
			sb.WriteString(" desc")
		}
	}
	for _, m := range n.Members {
		sb.WriteByte(' ')
		if m == nil {
			sb.WriteString("nil")
			continue
		}
		m.render(sb)
	}
	sb.WriteByte(')')
}
