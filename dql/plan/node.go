// Package plan lowers a parsed DQL query into an execution plan: a chain of
// typed nodes rooted at the output node, with subqueries attached as
// independently rooted subtrees.
//
// File organization:
//   - plan.go: ExecutionPlan, the id-addressed node registry, clone
//   - node.go: node type tags, the ExecutionNode interface, shared node state
//   - nodes.go: the concrete node kinds
//   - builder.go: AST lowering (FromAST)
//   - edit.go: structural mutation primitives used by optimizer rules
//   - varusage.go: variable liveness/scoping analysis
//   - validate.go: linkage consistency diagnostics
//   - serialize.go: persisted JSON form, both directions
//   - walker.go: dependency-order traversal with subquery hooks
//   - cache.go: in-memory plan cache
//
// Start with FromAST in builder.go to understand the lowering flow.
package plan

import (
	"sort"

	"github.com/ehollis/quarry-dql/dql/ast"
)

// NodeID identifies one node within its owning plan. Ids are positive and
// monotonically assigned; 0 is reserved.
type NodeID uint64

// NodeType tags the concrete kind of an execution node.
type NodeType uint8

const (
	TypeSingleton NodeType = iota
	TypeEnumerateCollection
	TypeEnumerateList
	TypeFilter
	TypeCalculation
	TypeSubquery
	TypeSort
	TypeAggregate
	TypeLimit
	TypeReturn
	TypeRemove
	TypeInsert
	TypeUpdate
	TypeReplace
)

var typeNames = map[NodeType]string{
	TypeSingleton:           "SingletonNode",
	TypeEnumerateCollection: "EnumerateCollectionNode",
	TypeEnumerateList:       "EnumerateListNode",
	TypeFilter:              "FilterNode",
	TypeCalculation:         "CalculationNode",
	TypeSubquery:            "SubqueryNode",
	TypeSort:                "SortNode",
	TypeAggregate:           "AggregateNode",
	TypeLimit:               "LimitNode",
	TypeReturn:              "ReturnNode",
	TypeRemove:              "RemoveNode",
	TypeInsert:              "InsertNode",
	TypeUpdate:              "UpdateNode",
	TypeReplace:             "ReplaceNode",
}

var typeByName = func() map[string]NodeType {
	m := make(map[string]NodeType, len(typeNames))
	for t, name := range typeNames {
		m[name] = t
	}
	return m
}()

// String returns the type tag as recorded in the persisted form.
func (t NodeType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UnknownNode"
}

// ExecutionNode is one step of an execution plan. The set of concrete kinds
// is closed; all implementations live in this package. Edges between nodes
// are id references resolved through the owning plan, never direct pointers,
// so dependency/parent back-edges stay cheap to validate and impossible to
// leak.
type ExecutionNode interface {
	// ID returns the node's plan-unique id.
	ID() NodeID

	// Type returns the node's type tag.
	Type() NodeType

	// Dependencies returns the node's input nodes, in execution input order.
	Dependencies() []NodeID

	// Parents returns the node's consumers. A node in a linear chain
	// position has at most one parent.
	Parents() []NodeID

	// UsedVariables returns the variables the node itself reads.
	UsedVariables() []*ast.Variable

	// SetVariables returns the variables the node itself binds.
	SetVariables() []*ast.Variable

	// VarsUsedLater returns the liveness annotation computed by
	// FindVarUsage: variables consumed strictly downstream of this node.
	VarsUsedLater() VarSet

	// VarsValid returns the scope annotation computed by FindVarUsage:
	// variables in scope at this node.
	VarsValid() VarSet

	// clone copies the node itself (same id, fresh edge slices). The plan
	// handles subtree recursion.
	clone() ExecutionNode

	// encodeInto writes the node's type-specific persisted fields.
	encodeInto(rec *nodeRecord)

	base() *baseNode
}

// baseNode carries the state every node kind shares.
type baseNode struct {
	id      NodeID
	deps    []NodeID
	parents []NodeID

	varsUsedLater VarSet
	varsValid     VarSet
	varUsageValid bool
}

func (b *baseNode) ID() NodeID             { return b.id }
func (b *baseNode) Dependencies() []NodeID { return b.deps }
func (b *baseNode) Parents() []NodeID      { return b.parents }
func (b *baseNode) VarsUsedLater() VarSet  { return b.varsUsedLater }
func (b *baseNode) VarsValid() VarSet      { return b.varsValid }
func (b *baseNode) base() *baseNode        { return b }

func (b *baseNode) hasDependency(id NodeID) bool {
	for _, d := range b.deps {
		if d == id {
			return true
		}
	}
	return false
}

func (b *baseNode) hasParent(id NodeID) bool {
	for _, p := range b.parents {
		if p == id {
			return true
		}
	}
	return false
}

func (b *baseNode) removeDependency(id NodeID) bool {
	for i, d := range b.deps {
		if d == id {
			b.deps = append(b.deps[:i], b.deps[i+1:]...)
			return true
		}
	}
	return false
}

func (b *baseNode) removeParent(id NodeID) {
	for i, p := range b.parents {
		if p == id {
			b.parents = append(b.parents[:i], b.parents[i+1:]...)
			return
		}
	}
}

// replaceDependency swaps old for new in place, preserving input order.
func (b *baseNode) replaceDependency(old, new NodeID) bool {
	for i, d := range b.deps {
		if d == old {
			b.deps[i] = new
			return true
		}
	}
	return false
}

func (b *baseNode) invalidateVarUsage() {
	b.varsUsedLater = nil
	b.varsValid = nil
	b.varUsageValid = false
}

// cloneInto copies the shared state, dropping liveness annotations. Cloned
// plans are rewritten immediately, so the annotations would go stale anyway.
func (b *baseNode) cloneInto(dst *baseNode) {
	dst.id = b.id
	dst.deps = append([]NodeID(nil), b.deps...)
	dst.parents = append([]NodeID(nil), b.parents...)
}

// VarSet is a set of variables keyed by id.
type VarSet map[ast.VariableID]*ast.Variable

func (s VarSet) Add(v *ast.Variable) {
	if v != nil {
		s[v.ID] = v
	}
}

func (s VarSet) Contains(v *ast.Variable) bool {
	if v == nil {
		return false
	}
	_, ok := s[v.ID]
	return ok
}

// Clone returns an independent shallow copy.
func (s VarSet) Clone() VarSet {
	out := make(VarSet, len(s))
	for id, v := range s {
		out[id] = v
	}
	return out
}

// Slice returns the variables ordered by id, for deterministic output.
func (s VarSet) Slice() []*ast.Variable {
	out := make([]*ast.Variable, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
