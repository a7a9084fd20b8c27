package plan

import (
	"fmt"

	"github.com/ehollis/quarry-dql/dql/ast"
)

// ExecutionPlan owns every node of one plan through an id-addressed registry.
// The root is the final/output node of the outer chain; subquery subtrees are
// registered alongside but reachable only through their SubqueryNode.
//
// A plan is not safe for concurrent use. Lowering, editing, analysis and
// serialization all run on the caller's goroutine.
type ExecutionPlan struct {
	nodes  map[NodeID]ExecutionNode
	root   NodeID
	nextID NodeID

	varUsageComputed bool
	varSetBy         map[ast.VariableID]NodeID

	appliedRules []string
}

// NewPlan creates an empty plan; populate it with FromAST or UnmarshalPlan.
func NewPlan() *ExecutionPlan {
	return &ExecutionPlan{
		nodes:    make(map[NodeID]ExecutionNode),
		varSetBy: make(map[ast.VariableID]NodeID),
	}
}

// NewID returns a fresh plan-unique node id, strictly increasing from 1.
func (p *ExecutionPlan) NewID() NodeID {
	p.nextID++
	return p.nextID
}

// Root returns the plan's root node, or nil if the plan is empty.
func (p *ExecutionPlan) Root() ExecutionNode {
	if p.root == 0 {
		return nil
	}
	return p.nodes[p.root]
}

// GetNodeByID returns the node with the given id.
func (p *ExecutionPlan) GetNodeByID(id NodeID) (ExecutionNode, error) {
	n, ok := p.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: node [%d] was not found", ErrUnknownNode, id)
	}
	return n, nil
}

// mustGet resolves an id that the plan's own bookkeeping guarantees exists.
func (p *ExecutionPlan) mustGet(id NodeID) ExecutionNode {
	n, ok := p.nodes[id]
	if !ok {
		panic(fmt.Sprintf("plan invariant violated: node [%d] missing from registry", id))
	}
	return n
}

// NodeCount returns the number of registered nodes, subquery subtrees
// included.
func (p *ExecutionPlan) NodeCount() int {
	return len(p.nodes)
}

// registerNode takes ownership of a freshly built node. Registration is
// all-or-nothing: a node that fails to register is not handed back.
func (p *ExecutionPlan) registerNode(n ExecutionNode) (ExecutionNode, error) {
	if n.ID() == 0 {
		return nil, fmt.Errorf("%w: node id 0 is reserved", ErrDuplicateID)
	}
	if _, exists := p.nodes[n.ID()]; exists {
		return nil, fmt.Errorf("%w: id %d", ErrDuplicateID, n.ID())
	}
	p.nodes[n.ID()] = n
	return n, nil
}

// CreateCalculationNode registers a fresh, unlinked CalculationNode for use
// with ReplaceNode or InsertDependency.
func (p *ExecutionPlan) CreateCalculationNode(expr *ast.Node, out *ast.Variable) (*CalculationNode, error) {
	n := &CalculationNode{
		baseNode:    baseNode{id: p.NewID()},
		Expression:  expr,
		OutVariable: out,
	}
	if _, err := p.registerNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateFilterNode registers a fresh, unlinked FilterNode.
func (p *ExecutionPlan) CreateFilterNode(in *ast.Variable) (*FilterNode, error) {
	n := &FilterNode{
		baseNode:   baseNode{id: p.NewID()},
		InVariable: in,
	}
	if _, err := p.registerNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateLimitNode registers a fresh, unlinked LimitNode.
func (p *ExecutionPlan) CreateLimitNode(offset, count uint64) (*LimitNode, error) {
	n := &LimitNode{
		baseNode: baseNode{id: p.NewID()},
		Offset:   offset,
		Count:    count,
	}
	if _, err := p.registerNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// UnregisterNode removes a node from the registry without touching its
// edges. Used when an optimizer rule splices a node out and takes over its
// retention.
func (p *ExecutionPlan) UnregisterNode(id NodeID) error {
	if _, ok := p.nodes[id]; !ok {
		return fmt.Errorf("%w: node [%d] was not found", ErrUnknownNode, id)
	}
	delete(p.nodes, id)
	return nil
}

// VarUsageComputed reports whether the liveness annotations are current.
func (p *ExecutionPlan) VarUsageComputed() bool {
	return p.varUsageComputed
}

// VarSetBy returns the node that binds the given variable. Valid only while
// VarUsageComputed reports true.
func (p *ExecutionPlan) VarSetBy(id ast.VariableID) (ExecutionNode, bool) {
	if !p.varUsageComputed {
		return nil, false
	}
	nodeID, ok := p.varSetBy[id]
	if !ok {
		return nil, false
	}
	return p.nodes[nodeID], true
}

// AppliedRules returns the ordered optimizer rule identifiers applied to
// produce this plan.
func (p *ExecutionPlan) AppliedRules() []string {
	return append([]string(nil), p.appliedRules...)
}

// AddAppliedRule records an optimizer rule identifier.
func (p *ExecutionPlan) AddAppliedRule(rule string) {
	p.appliedRules = append(p.appliedRules, rule)
}

// FindNodesOfType collects every node of the given type reachable from the
// root, optionally descending into subquery subtrees, in visit order.
func (p *ExecutionPlan) FindNodesOfType(t NodeType, enterSubqueries bool) ([]ExecutionNode, error) {
	finder := &nodeFinder{lookingFor: t, enterSubqueries: enterSubqueries}
	if err := p.Walk(p.root, finder); err != nil {
		return nil, err
	}
	return finder.out, nil
}

type nodeFinder struct {
	BaseVisitor
	lookingFor      NodeType
	enterSubqueries bool
	out             []ExecutionNode
}

func (f *nodeFinder) Before(n ExecutionNode) bool {
	if n.Type() == f.lookingFor {
		f.out = append(f.out, n)
	}
	return false
}

func (f *nodeFinder) EnterSubquery(super, sub ExecutionNode) bool {
	return f.enterSubqueries
}

// Clone deep-copies the subtree reachable from the root (subquery subtrees
// included) into a fresh plan, carrying over the id counter and the applied
// rules list. Liveness annotations are not recomputed: a clone is normally
// rewritten immediately, so callers run FindVarUsage themselves when they
// need the annotations.
func (p *ExecutionPlan) Clone() (*ExecutionPlan, error) {
	out := NewPlan()
	out.root = p.root
	out.nextID = p.nextID
	out.appliedRules = append([]string(nil), p.appliedRules...)

	adder := &cloneAdder{dst: out}
	if err := p.Walk(p.root, adder); err != nil {
		return nil, err
	}
	if adder.err != nil {
		return nil, fmt.Errorf("could not clone plan: %w", adder.err)
	}
	return out, nil
}

type cloneAdder struct {
	BaseVisitor
	dst *ExecutionPlan
	err error
}

func (a *cloneAdder) Before(n ExecutionNode) bool {
	if _, err := a.dst.registerNode(n.clone()); err != nil && a.err == nil {
		a.err = err
	}
	return false
}

func (a *cloneAdder) EnterSubquery(super, sub ExecutionNode) bool {
	return true
}
