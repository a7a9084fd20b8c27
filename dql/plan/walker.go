package plan

// Visitor receives callbacks during a dependency-order walk. Before runs when
// a node is first reached (ahead of its dependencies); returning true aborts
// the walk from that node downward. After runs once the node's dependencies
// and attached subquery are done. EnterSubquery decides whether to descend
// into a SubqueryNode's subtree.
type Visitor interface {
	Before(n ExecutionNode) bool
	After(n ExecutionNode)
	EnterSubquery(super, sub ExecutionNode) bool
	LeaveSubquery(super, sub ExecutionNode)
}

// BaseVisitor is a no-op Visitor for embedding; concrete visitors override
// only the hooks they need. By default subqueries are not entered.
type BaseVisitor struct{}

func (BaseVisitor) Before(ExecutionNode) bool                     { return false }
func (BaseVisitor) After(ExecutionNode)                           {}
func (BaseVisitor) EnterSubquery(_, _ ExecutionNode) bool         { return false }
func (BaseVisitor) LeaveSubquery(_, _ ExecutionNode)              {}

// Walk traverses the subtree rooted at the given node: Before, then each
// dependency in input order, then the subquery subtree if the visitor enters
// it, then After. Resolution of an id that is missing from the registry
// surfaces ErrUnknownNode.
func (p *ExecutionPlan) Walk(root NodeID, v Visitor) error {
	n, err := p.GetNodeByID(root)
	if err != nil {
		return err
	}
	return p.walkNode(n, v)
}

func (p *ExecutionPlan) walkNode(n ExecutionNode, v Visitor) error {
	if v.Before(n) {
		return nil
	}

	for _, depID := range n.Dependencies() {
		dep, err := p.GetNodeByID(depID)
		if err != nil {
			return err
		}
		if err := p.walkNode(dep, v); err != nil {
			return err
		}
	}

	if sq, ok := n.(*SubqueryNode); ok {
		sub, err := p.GetNodeByID(sq.SubqueryRoot())
		if err != nil {
			return err
		}
		if v.EnterSubquery(n, sub) {
			if err := p.walkNode(sub, v); err != nil {
				return err
			}
			v.LeaveSubquery(n, sub)
		}
	}

	v.After(n)
	return nil
}
