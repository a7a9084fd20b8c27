package plan

import "fmt"

// Structural mutation primitives used by optimizer rules. Every edit keeps
// dependency/parent edges mutually consistent and invalidates the liveness
// annotations; rerun FindVarUsage before reading them again.

// UnlinkNode splices a node out of the chain, reconnecting each former
// parent directly to each former dependency. The node stays registered; it
// is just no longer reachable from the root. The root itself cannot be
// unlinked.
func (p *ExecutionPlan) UnlinkNode(id NodeID) error {
	node, err := p.GetNodeByID(id)
	if err != nil {
		return err
	}

	parents := append([]NodeID(nil), node.Parents()...)
	if len(parents) == 0 {
		return fmt.Errorf("%w: node [%d]", ErrRootRemoval, id)
	}

	deps := append([]NodeID(nil), node.Dependencies()...)
	for _, parentID := range parents {
		parent := p.mustGet(parentID)
		parent.base().removeDependency(id)
		node.base().removeParent(parentID)
		for _, depID := range deps {
			if _, err := p.addDependency(p.mustGet(depID), parent); err != nil {
				return err
			}
		}
	}
	for _, depID := range deps {
		node.base().removeDependency(depID)
		p.mustGet(depID).base().removeParent(id)
	}

	p.invalidateVarUsage()
	return nil
}

// UnlinkNodes unlinks every node in the set.
func (p *ExecutionPlan) UnlinkNodes(ids []NodeID) error {
	for _, id := range ids {
		if err := p.UnlinkNode(id); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceNode swaps newNode in for oldNode: oldNode's dependencies move to
// newNode, then every parent of oldNode is rewired to depend on newNode.
// newNode must already be registered, have no dependencies yet, and carry a
// different id than oldNode. The root cannot be replaced. oldNode is left
// with no parents and no dependencies but stays registered.
func (p *ExecutionPlan) ReplaceNode(oldID, newID NodeID) error {
	if oldID == newID {
		return fmt.Errorf("%w: cannot replace node [%d] with itself", ErrRewireFailed, oldID)
	}
	oldNode, err := p.GetNodeByID(oldID)
	if err != nil {
		return err
	}
	newNode, err := p.GetNodeByID(newID)
	if err != nil {
		return err
	}
	if len(newNode.Dependencies()) != 0 {
		return fmt.Errorf("%w: replacement node [%d] already has dependencies", ErrRewireFailed, newID)
	}
	if oldID == p.root {
		return fmt.Errorf("%w: node [%d]", ErrRootRemoval, oldID)
	}

	deps := append([]NodeID(nil), oldNode.Dependencies()...)
	for _, depID := range deps {
		if _, err := p.addDependency(p.mustGet(depID), newNode); err != nil {
			return err
		}
		oldNode.base().removeDependency(depID)
		p.mustGet(depID).base().removeParent(oldID)
	}

	parents := append([]NodeID(nil), oldNode.Parents()...)
	for _, parentID := range parents {
		parent := p.mustGet(parentID)
		if !parent.base().replaceDependency(oldID, newID) {
			return fmt.Errorf("%w: parent [%d] does not depend on node [%d]", ErrRewireFailed, parentID, oldID)
		}
		oldNode.base().removeParent(parentID)
		newNode.base().parents = append(newNode.base().parents, parentID)
	}

	p.invalidateVarUsage()
	return nil
}

// InsertDependency inserts newNode between oldNode and its single current
// dependency: newNode becomes oldNode's sole dependency and takes over the
// former one. oldNode must have exactly one dependency and newNode must be
// registered with none.
func (p *ExecutionPlan) InsertDependency(oldID, newID NodeID) error {
	if oldID == newID {
		return fmt.Errorf("%w: cannot insert node [%d] below itself", ErrRewireFailed, oldID)
	}
	oldNode, err := p.GetNodeByID(oldID)
	if err != nil {
		return err
	}
	newNode, err := p.GetNodeByID(newID)
	if err != nil {
		return err
	}
	if len(newNode.Dependencies()) != 0 {
		return fmt.Errorf("%w: inserted node [%d] already has dependencies", ErrRewireFailed, newID)
	}
	if len(oldNode.Dependencies()) != 1 {
		return fmt.Errorf("%w: node [%d] must have exactly one dependency, has %d",
			ErrRewireFailed, oldID, len(oldNode.Dependencies()))
	}

	formerDepID := oldNode.Dependencies()[0]
	formerDep := p.mustGet(formerDepID)

	if !oldNode.base().replaceDependency(formerDepID, newID) {
		return fmt.Errorf("%w: node [%d] does not depend on node [%d]", ErrRewireFailed, oldID, formerDepID)
	}
	formerDep.base().removeParent(oldID)
	newNode.base().parents = append(newNode.base().parents, oldID)

	if _, err := p.addDependency(formerDep, newNode); err != nil {
		return err
	}

	p.invalidateVarUsage()
	return nil
}

func (p *ExecutionPlan) invalidateVarUsage() {
	p.varUsageComputed = false
}
