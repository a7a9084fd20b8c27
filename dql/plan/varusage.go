package plan

import "github.com/ehollis/quarry-dql/dql/ast"

// FindVarUsage computes the liveness annotations in a single traversal from
// the root toward the leaves, stamping each node with the variables still
// needed downstream of it ("used later") and the variables in scope at it
// ("valid"), and building the variable-to-definer mapping.
//
// Subquery scoping: the subtree is analyzed with a copy of the current valid
// set (the subquery sees everything in scope outside it) but a fresh
// used-later accumulation, so uses inside the subquery do not leak upstream
// past the SubqueryNode itself.
//
// Every graph edit clears the annotations; rerun this before reading them.
func (p *ExecutionPlan) FindVarUsage() error {
	varSetBy := make(map[ast.VariableID]NodeID)
	finder := &varUsageFinder{
		plan:      p,
		usedLater: make(VarSet),
		valid:     make(VarSet),
		varSetBy:  varSetBy,
	}
	if err := p.Walk(p.root, finder); err != nil {
		return err
	}
	if finder.err != nil {
		return finder.err
	}

	p.varSetBy = varSetBy
	p.varUsageComputed = true
	return nil
}

type varUsageFinder struct {
	BaseVisitor
	plan      *ExecutionPlan
	usedLater VarSet
	valid     VarSet
	varSetBy  map[ast.VariableID]NodeID
	err       error
}

func (f *varUsageFinder) Before(n ExecutionNode) bool {
	b := n.base()
	b.invalidateVarUsage()

	// snapshot before adding this node's own uses: "used later" means
	// strictly downstream of the node
	b.varsUsedLater = f.usedLater.Clone()
	for _, v := range n.UsedVariables() {
		f.usedLater.Add(v)
	}
	return false
}

func (f *varUsageFinder) After(n ExecutionNode) {
	b := n.base()
	for _, v := range n.SetVariables() {
		if v == nil {
			continue
		}
		f.valid.Add(v)
		f.varSetBy[v.ID] = n.ID()
	}
	b.varsValid = f.valid.Clone()
	b.varUsageValid = true
}

func (f *varUsageFinder) EnterSubquery(super, sub ExecutionNode) bool {
	subfinder := &varUsageFinder{
		plan:      f.plan,
		usedLater: make(VarSet),     // fresh accumulation: subquery uses stay inside
		valid:     f.valid.Clone(),  // the subquery sees the outer scope
		varSetBy:  f.varSetBy,
	}
	if err := f.plan.walkNode(sub, subfinder); err != nil && f.err == nil {
		f.err = err
	}
	if subfinder.err != nil && f.err == nil {
		f.err = subfinder.err
	}

	// the subquery has been fully processed here
	return false
}
