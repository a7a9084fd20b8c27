package ast

// AST is a parsed query: a Root statement list plus the variable table that
// owns every variable the statements mention.
type AST struct {
	Root      *Node
	Variables *VariableTable
}

// New creates an empty AST with a fresh variable table.
func New() *AST {
	return &AST{
		Root:      &Node{Kind: KindRoot},
		Variables: NewVariableTable(),
	}
}

// Add appends a statement to the root statement list.
func (a *AST) Add(stmt *Node) {
	a.Root.Members = append(a.Root.Members, stmt)
}

// Statement constructors. Member layouts here are load-bearing: the plan
// builder indexes into Members by position.

// NewFor builds `FOR v IN source`. Members: [variable, source expression].
func NewFor(v *Variable, source *Node) *Node {
	return &Node{Kind: KindFor, Members: []*Node{NewVariableNode(v), source}}
}

// NewFilter builds `FILTER condition`. Members: [condition].
func NewFilter(condition *Node) *Node {
	return &Node{Kind: KindFilter, Members: []*Node{condition}}
}

// NewLet builds `LET v = expr`. Members: [variable, expression]. The
// expression may be a KindSubquery node.
func NewLet(v *Variable, expr *Node) *Node {
	return &Node{Kind: KindLet, Members: []*Node{NewVariableNode(v), expr}}
}

// NewSubquery wraps a statement list as a subquery expression. The members
// are the statements themselves, in order.
func NewSubquery(statements ...*Node) *Node {
	return &Node{Kind: KindSubquery, Members: statements}
}

// NewSort builds `SORT e1 dir1, e2 dir2, ...`. Members: [list of sort
// elements].
func NewSort(elements ...*Node) *Node {
	list := &Node{Kind: KindList, Members: elements}
	return &Node{Kind: KindSort, Members: []*Node{list}}
}

// NewSortElement builds one sort criterion. Members: [expression].
func NewSortElement(expr *Node, ascending bool) *Node {
	return &Node{Kind: KindSortElement, Members: []*Node{expr}, Ascending: ascending}
}

// NewCollect builds `COLLECT out1 = e1, ... [INTO groups]`. Members: [list of
// assigns] or [list of assigns, group variable].
func NewCollect(assignments []*Node, groupVariable *Variable) *Node {
	list := &Node{Kind: KindList, Members: assignments}
	n := &Node{Kind: KindCollect, Members: []*Node{list}}
	if groupVariable != nil {
		n.Members = append(n.Members, NewVariableNode(groupVariable))
	}
	return n
}

// NewAssign builds `v = expr` inside a COLLECT. Members: [variable,
// expression].
func NewAssign(v *Variable, expr *Node) *Node {
	return &Node{Kind: KindAssign, Members: []*Node{NewVariableNode(v), expr}}
}

// NewLimit builds `LIMIT offset, count`. Members: [offset, count].
func NewLimit(offset, count *Node) *Node {
	return &Node{Kind: KindLimit, Members: []*Node{offset, count}}
}

// NewReturn builds `RETURN expr`. Members: [expression].
func NewReturn(expr *Node) *Node {
	return &Node{Kind: KindReturn, Members: []*Node{expr}}
}

// NewRemove builds `REMOVE expr IN collection OPTIONS opts`. Members:
// [options, collection, expression]; options may be nil.
func NewRemove(options *Node, collection string, expr *Node) *Node {
	return &Node{Kind: KindRemove, Members: []*Node{options, NewCollectionNode(collection), expr}}
}

// NewInsert builds `INSERT expr INTO collection OPTIONS opts`. Members:
// [options, collection, expression]; options may be nil.
func NewInsert(options *Node, collection string, expr *Node) *Node {
	return &Node{Kind: KindInsert, Members: []*Node{options, NewCollectionNode(collection), expr}}
}

// NewUpdate builds `UPDATE [key WITH] doc IN collection OPTIONS opts`.
// Members: [options, collection, document] or [options, collection, document,
// key]; options and key may be nil.
func NewUpdate(options *Node, collection string, doc, key *Node) *Node {
	n := &Node{Kind: KindUpdate, Members: []*Node{options, NewCollectionNode(collection), doc}}
	if key != nil {
		n.Members = append(n.Members, key)
	}
	return n
}

// NewReplace builds `REPLACE [key WITH] doc IN collection OPTIONS opts`, with
// the same member layout as NewUpdate.
func NewReplace(options *Node, collection string, doc, key *Node) *Node {
	n := &Node{Kind: KindReplace, Members: []*Node{options, NewCollectionNode(collection), doc}}
	if key != nil {
		n.Members = append(n.Members, key)
	}
	return n
}

// Expression constructors.

func NewValueNode(v interface{}) *Node {
	return &Node{Kind: KindValue, Value: v}
}

func NewVariableNode(v *Variable) *Node {
	return &Node{Kind: KindVariable, Variable: v}
}

// NewReferenceNode builds a use of an already-bound variable.
func NewReferenceNode(v *Variable) *Node {
	return &Node{Kind: KindReference, Variable: v}
}

func NewCollectionNode(name string) *Node {
	return &Node{Kind: KindCollection, Name: name}
}

// NewRangeNode builds `low..high`.
func NewRangeNode(low, high *Node) *Node {
	return &Node{Kind: KindRange, Members: []*Node{low, high}}
}

func NewListNode(members ...*Node) *Node {
	return &Node{Kind: KindList, Members: members}
}

// NewObjectNode builds an object literal from alternating key/value pairs.
func NewObjectNode(elements ...*Node) *Node {
	return &Node{Kind: KindObject, Members: elements}
}

// NewObjectElement builds one `key: value` entry of an object literal.
// Members: [value].
func NewObjectElement(key string, value *Node) *Node {
	return &Node{Kind: KindObjectElement, Name: key, Members: []*Node{value}}
}

// NewBinaryOp builds `left op right`, e.g. NewBinaryOp("*", x, two).
func NewBinaryOp(op string, left, right *Node) *Node {
	return &Node{Kind: KindBinaryOp, Name: op, Members: []*Node{left, right}}
}

// NewAttributeAccess builds `object.attr`. Members: [object expression].
func NewAttributeAccess(object *Node, attr string) *Node {
	return &Node{Kind: KindAttributeAccess, Name: attr, Members: []*Node{object}}
}

// NewFunctionCall builds `name(args...)`.
func NewFunctionCall(name string, args ...*Node) *Node {
	return &Node{Kind: KindFunctionCall, Name: name, Members: args}
}
