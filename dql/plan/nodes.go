package plan

import (
	"github.com/ehollis/quarry-dql/dql/ast"
	"github.com/ehollis/quarry-dql/dql/query"
)

// The concrete node kinds. Each kind knows which variables it reads and
// binds from its own operands alone; graph-wide liveness lives in the
// annotations computed by FindVarUsage.

// SingletonNode produces exactly one empty row. Every chain starts with one.
type SingletonNode struct {
	baseNode
}

func (n *SingletonNode) Type() NodeType                 { return TypeSingleton }
func (n *SingletonNode) UsedVariables() []*ast.Variable { return nil }
func (n *SingletonNode) SetVariables() []*ast.Variable  { return nil }

func (n *SingletonNode) clone() ExecutionNode {
	c := &SingletonNode{}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *SingletonNode) encodeInto(rec *nodeRecord) {}

// EnumerateCollectionNode emits one row per document of a collection,
// binding each document to OutVariable.
type EnumerateCollectionNode struct {
	baseNode
	Collection  *query.Collection
	OutVariable *ast.Variable
}

func (n *EnumerateCollectionNode) Type() NodeType                 { return TypeEnumerateCollection }
func (n *EnumerateCollectionNode) UsedVariables() []*ast.Variable { return nil }
func (n *EnumerateCollectionNode) SetVariables() []*ast.Variable {
	return []*ast.Variable{n.OutVariable}
}

func (n *EnumerateCollectionNode) clone() ExecutionNode {
	c := &EnumerateCollectionNode{Collection: n.Collection, OutVariable: n.OutVariable}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *EnumerateCollectionNode) encodeInto(rec *nodeRecord) {
	rec.Collection = n.Collection.Name
	rec.OutVariable = newVarRecord(n.OutVariable)
}

// EnumerateListNode emits one row per element of the list bound to
// InVariable, binding each element to OutVariable.
type EnumerateListNode struct {
	baseNode
	InVariable  *ast.Variable
	OutVariable *ast.Variable
}

func (n *EnumerateListNode) Type() NodeType { return TypeEnumerateList }
func (n *EnumerateListNode) UsedVariables() []*ast.Variable {
	return []*ast.Variable{n.InVariable}
}
func (n *EnumerateListNode) SetVariables() []*ast.Variable {
	return []*ast.Variable{n.OutVariable}
}

func (n *EnumerateListNode) clone() ExecutionNode {
	c := &EnumerateListNode{InVariable: n.InVariable, OutVariable: n.OutVariable}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *EnumerateListNode) encodeInto(rec *nodeRecord) {
	rec.InVariable = newVarRecord(n.InVariable)
	rec.OutVariable = newVarRecord(n.OutVariable)
}

// FilterNode drops rows for which the boolean bound to InVariable is false.
type FilterNode struct {
	baseNode
	InVariable *ast.Variable
}

func (n *FilterNode) Type() NodeType { return TypeFilter }
func (n *FilterNode) UsedVariables() []*ast.Variable {
	return []*ast.Variable{n.InVariable}
}
func (n *FilterNode) SetVariables() []*ast.Variable { return nil }

func (n *FilterNode) clone() ExecutionNode {
	c := &FilterNode{InVariable: n.InVariable}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *FilterNode) encodeInto(rec *nodeRecord) {
	rec.InVariable = newVarRecord(n.InVariable)
}

// CalculationNode evaluates an expression per row and binds the result to
// OutVariable. Implicit calculations introduced by lowering bind temporary
// variables.
type CalculationNode struct {
	baseNode
	Expression  *ast.Node
	OutVariable *ast.Variable
}

func (n *CalculationNode) Type() NodeType { return TypeCalculation }
func (n *CalculationNode) UsedVariables() []*ast.Variable {
	return n.Expression.ReferencedVariables()
}
func (n *CalculationNode) SetVariables() []*ast.Variable {
	return []*ast.Variable{n.OutVariable}
}

func (n *CalculationNode) clone() ExecutionNode {
	c := &CalculationNode{Expression: n.Expression, OutVariable: n.OutVariable}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *CalculationNode) encodeInto(rec *nodeRecord) {
	rec.Expression = n.Expression
	rec.OutVariable = newVarRecord(n.OutVariable)
}

// SubqueryNode evaluates an independently rooted subtree per row and binds
// the subquery's result list to OutVariable. The subtree's nodes live in the
// same registry as the outer chain but are never linked into it; the only
// connection is the root id held here.
type SubqueryNode struct {
	baseNode
	subqueryRoot NodeID
	OutVariable  *ast.Variable
}

func (n *SubqueryNode) Type() NodeType { return TypeSubquery }

// UsedVariables returns nil: uses inside the subquery do not leak past the
// subquery boundary, and the node itself reads nothing from the outer row.
func (n *SubqueryNode) UsedVariables() []*ast.Variable { return nil }
func (n *SubqueryNode) SetVariables() []*ast.Variable {
	return []*ast.Variable{n.OutVariable}
}

// SubqueryRoot returns the id of the subtree's root node.
func (n *SubqueryNode) SubqueryRoot() NodeID { return n.subqueryRoot }

func (n *SubqueryNode) setSubqueryRoot(id NodeID) { n.subqueryRoot = id }

func (n *SubqueryNode) clone() ExecutionNode {
	c := &SubqueryNode{subqueryRoot: n.subqueryRoot, OutVariable: n.OutVariable}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *SubqueryNode) encodeInto(rec *nodeRecord) {
	rec.OutVariable = newVarRecord(n.OutVariable)
	// the nested subtree itself is attached by the serializer
}

// SortElement is one sort criterion: a variable and a direction.
type SortElement struct {
	Variable  *ast.Variable
	Ascending bool
}

// SortNode orders rows by its elements, in declared order. Stable sorts are
// injected in front of aggregation to establish grouping order.
type SortNode struct {
	baseNode
	Elements []SortElement
	Stable   bool
}

func (n *SortNode) Type() NodeType { return TypeSort }
func (n *SortNode) UsedVariables() []*ast.Variable {
	out := make([]*ast.Variable, len(n.Elements))
	for i, e := range n.Elements {
		out[i] = e.Variable
	}
	return out
}
func (n *SortNode) SetVariables() []*ast.Variable { return nil }

func (n *SortNode) clone() ExecutionNode {
	c := &SortNode{Elements: append([]SortElement(nil), n.Elements...), Stable: n.Stable}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *SortNode) encodeInto(rec *nodeRecord) {
	for _, e := range n.Elements {
		rec.Elements = append(rec.Elements, sortElementRecord{
			Variable:  *newVarRecord(e.Variable),
			Ascending: e.Ascending,
		})
	}
	stable := n.Stable
	rec.Stable = &stable
}

// AggregateAssignment maps a grouping output variable to its source
// variable.
type AggregateAssignment struct {
	Out *ast.Variable
	In  *ast.Variable
}

// AggregateNode groups rows by its assignments' source variables, binding
// each group key to the matching output variable. OutVariable, when present,
// captures the whole group.
type AggregateNode struct {
	baseNode
	Aggregates  []AggregateAssignment
	OutVariable *ast.Variable // optional
}

func (n *AggregateNode) Type() NodeType { return TypeAggregate }
func (n *AggregateNode) UsedVariables() []*ast.Variable {
	out := make([]*ast.Variable, len(n.Aggregates))
	for i, a := range n.Aggregates {
		out[i] = a.In
	}
	return out
}
func (n *AggregateNode) SetVariables() []*ast.Variable {
	out := make([]*ast.Variable, 0, len(n.Aggregates)+1)
	for _, a := range n.Aggregates {
		out = append(out, a.Out)
	}
	if n.OutVariable != nil {
		out = append(out, n.OutVariable)
	}
	return out
}

func (n *AggregateNode) clone() ExecutionNode {
	c := &AggregateNode{
		Aggregates:  append([]AggregateAssignment(nil), n.Aggregates...),
		OutVariable: n.OutVariable,
	}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *AggregateNode) encodeInto(rec *nodeRecord) {
	for _, a := range n.Aggregates {
		rec.Aggregates = append(rec.Aggregates, aggregateRecord{
			OutVariable: *newVarRecord(a.Out),
			InVariable:  *newVarRecord(a.In),
		})
	}
	rec.OutVariable = newVarRecord(n.OutVariable)
}

// LimitNode skips Offset rows and passes at most Count rows on.
type LimitNode struct {
	baseNode
	Offset uint64
	Count  uint64
}

func (n *LimitNode) Type() NodeType                 { return TypeLimit }
func (n *LimitNode) UsedVariables() []*ast.Variable { return nil }
func (n *LimitNode) SetVariables() []*ast.Variable  { return nil }

func (n *LimitNode) clone() ExecutionNode {
	c := &LimitNode{Offset: n.Offset, Count: n.Count}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *LimitNode) encodeInto(rec *nodeRecord) {
	offset, count := n.Offset, n.Count
	rec.Offset = &offset
	rec.Count = &count
}

// ReturnNode emits the value bound to InVariable as the query result.
type ReturnNode struct {
	baseNode
	InVariable *ast.Variable
}

func (n *ReturnNode) Type() NodeType { return TypeReturn }
func (n *ReturnNode) UsedVariables() []*ast.Variable {
	return []*ast.Variable{n.InVariable}
}
func (n *ReturnNode) SetVariables() []*ast.Variable { return nil }

func (n *ReturnNode) clone() ExecutionNode {
	c := &ReturnNode{InVariable: n.InVariable}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *ReturnNode) encodeInto(rec *nodeRecord) {
	rec.InVariable = newVarRecord(n.InVariable)
}

// ModificationOptions configures write nodes. Parsed from the statement's
// OPTIONS literal; unrecognized keys are ignored.
type ModificationOptions struct {
	WaitForSync     bool `json:"waitForSync"`
	IgnoreErrors    bool `json:"ignoreErrors"`
	NullMeansRemove bool `json:"nullMeansRemove"` // stored inverse of the user-facing keepNull
}

// modificationNode carries the state shared by the four write kinds.
type modificationNode struct {
	baseNode
	Collection *query.Collection
	Options    ModificationOptions
}

func (m *modificationNode) encodeCommon(rec *nodeRecord) {
	rec.Collection = m.Collection.Name
	opts := m.Options
	rec.Options = &opts
}

// RemoveNode deletes the document identified by InVariable from the
// collection.
type RemoveNode struct {
	modificationNode
	InVariable *ast.Variable
}

func (n *RemoveNode) Type() NodeType { return TypeRemove }
func (n *RemoveNode) UsedVariables() []*ast.Variable {
	return []*ast.Variable{n.InVariable}
}
func (n *RemoveNode) SetVariables() []*ast.Variable { return nil }

func (n *RemoveNode) clone() ExecutionNode {
	c := &RemoveNode{
		modificationNode: modificationNode{Collection: n.Collection, Options: n.Options},
		InVariable:       n.InVariable,
	}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *RemoveNode) encodeInto(rec *nodeRecord) {
	n.encodeCommon(rec)
	rec.InVariable = newVarRecord(n.InVariable)
}

// InsertNode inserts the document bound to InVariable into the collection.
type InsertNode struct {
	modificationNode
	InVariable *ast.Variable
}

func (n *InsertNode) Type() NodeType { return TypeInsert }
func (n *InsertNode) UsedVariables() []*ast.Variable {
	return []*ast.Variable{n.InVariable}
}
func (n *InsertNode) SetVariables() []*ast.Variable { return nil }

func (n *InsertNode) clone() ExecutionNode {
	c := &InsertNode{
		modificationNode: modificationNode{Collection: n.Collection, Options: n.Options},
		InVariable:       n.InVariable,
	}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *InsertNode) encodeInto(rec *nodeRecord) {
	n.encodeCommon(rec)
	rec.InVariable = newVarRecord(n.InVariable)
}

// UpdateNode partially updates documents with the patch bound to
// InDocVariable. InKeyVariable, when present, identifies the target document
// separately from the patch.
type UpdateNode struct {
	modificationNode
	InDocVariable *ast.Variable
	InKeyVariable *ast.Variable // optional
}

func (n *UpdateNode) Type() NodeType { return TypeUpdate }
func (n *UpdateNode) UsedVariables() []*ast.Variable {
	out := []*ast.Variable{n.InDocVariable}
	if n.InKeyVariable != nil {
		out = append(out, n.InKeyVariable)
	}
	return out
}
func (n *UpdateNode) SetVariables() []*ast.Variable { return nil }

func (n *UpdateNode) clone() ExecutionNode {
	c := &UpdateNode{
		modificationNode: modificationNode{Collection: n.Collection, Options: n.Options},
		InDocVariable:    n.InDocVariable,
		InKeyVariable:    n.InKeyVariable,
	}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *UpdateNode) encodeInto(rec *nodeRecord) {
	n.encodeCommon(rec)
	rec.InVariable = newVarRecord(n.InDocVariable)
	rec.InKeyVariable = newVarRecord(n.InKeyVariable)
}

// ReplaceNode wholly replaces documents with the document bound to
// InDocVariable, with the same key handling as UpdateNode.
type ReplaceNode struct {
	modificationNode
	InDocVariable *ast.Variable
	InKeyVariable *ast.Variable // optional
}

func (n *ReplaceNode) Type() NodeType { return TypeReplace }
func (n *ReplaceNode) UsedVariables() []*ast.Variable {
	out := []*ast.Variable{n.InDocVariable}
	if n.InKeyVariable != nil {
		out = append(out, n.InKeyVariable)
	}
	return out
}
func (n *ReplaceNode) SetVariables() []*ast.Variable { return nil }

func (n *ReplaceNode) clone() ExecutionNode {
	c := &ReplaceNode{
		modificationNode: modificationNode{Collection: n.Collection, Options: n.Options},
		InDocVariable:    n.InDocVariable,
		InKeyVariable:    n.InKeyVariable,
	}
	n.cloneInto(&c.baseNode)
	return c
}

func (n *ReplaceNode) encodeInto(rec *nodeRecord) {
	n.encodeCommon(rec)
	rec.InVariable = newVarRecord(n.InDocVariable)
	rec.InKeyVariable = newVarRecord(n.InKeyVariable)
}
