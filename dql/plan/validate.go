package plan

import "fmt"

// LinkageIssue describes one inconsistency found by CheckLinkage.
type LinkageIssue struct {
	NodeID  NodeID
	Problem string
}

func (i LinkageIssue) String() string {
	return fmt.Sprintf("node [%d]: %s", i.NodeID, i.Problem)
}

// CheckLinkage is a read-only consistency check over the whole graph,
// subquery subtrees included: every dependency must list the node among its
// parents, every parent must list the node among its dependencies, and a
// node in the chain must not have more than one parent. It reports issues
// instead of failing; it exists to catch graph-editing bugs during
// development and testing, not to run on the production path.
func (p *ExecutionPlan) CheckLinkage() ([]LinkageIssue, error) {
	checker := &linkChecker{plan: p}
	if err := p.Walk(p.root, checker); err != nil {
		return nil, err
	}
	return checker.issues, nil
}

type linkChecker struct {
	BaseVisitor
	plan   *ExecutionPlan
	issues []LinkageIssue
}

func (c *linkChecker) Before(n ExecutionNode) bool {
	for _, depID := range n.Dependencies() {
		dep, ok := c.plan.nodes[depID]
		if !ok {
			c.issues = append(c.issues, LinkageIssue{n.ID(),
				fmt.Sprintf("dependency [%d] is not registered", depID)})
			continue
		}
		if !dep.base().hasParent(n.ID()) {
			c.issues = append(c.issues, LinkageIssue{n.ID(),
				fmt.Sprintf("dependency [%d] does not have this node as a parent", depID)})
		}
	}

	parents := n.Parents()
	if len(parents) > 1 {
		c.issues = append(c.issues, LinkageIssue{n.ID(),
			fmt.Sprintf("node has %d parents", len(parents))})
	}
	for _, parentID := range parents {
		parent, ok := c.plan.nodes[parentID]
		if !ok {
			c.issues = append(c.issues, LinkageIssue{n.ID(),
				fmt.Sprintf("parent [%d] is not registered", parentID)})
			continue
		}
		if !parent.base().hasDependency(n.ID()) {
			c.issues = append(c.issues, LinkageIssue{n.ID(),
				fmt.Sprintf("parent [%d] does not have this node as a dependency", parentID)})
		}
	}
	return false
}

func (c *linkChecker) EnterSubquery(super, sub ExecutionNode) bool {
	return true
}
