package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehollis/quarry-dql/dql/ast"
	"github.com/ehollis/quarry-dql/dql/query"
)

// editFixture lowers `LET y = 5 FILTER y RETURN y`, a four node chain:
// Singleton, Calculation, Filter, Return.
func editFixture(t *testing.T) (*ExecutionPlan, *ast.AST) {
	t.Helper()

	a := ast.New()
	y := a.Variables.CreateVariable("y")
	a.Add(ast.NewLet(y, ast.NewValueNode(int64(5))))
	a.Add(ast.NewFilter(ast.NewReferenceNode(y)))
	a.Add(ast.NewReturn(ast.NewReferenceNode(y)))

	p, err := FromAST(a, query.NewCollections())
	require.NoError(t, err)
	require.Equal(t, 4, p.NodeCount())
	return p, a
}

func nodeOfType(t *testing.T, p *ExecutionPlan, nodeType NodeType) ExecutionNode {
	t.Helper()
	found, err := p.FindNodesOfType(nodeType, true)
	require.NoError(t, err)
	require.Len(t, found, 1)
	return found[0]
}

func TestUnlinkNodeReconnectsChain(t *testing.T) {
	p, _ := editFixture(t)

	filter := nodeOfType(t, p, TypeFilter)
	calc := nodeOfType(t, p, TypeCalculation)
	ret := nodeOfType(t, p, TypeReturn)

	require.NoError(t, p.UnlinkNode(filter.ID()))

	// the former parent now depends directly on the former dependency
	assert.Equal(t, []NodeID{calc.ID()}, ret.Dependencies())
	assert.Equal(t, []NodeID{ret.ID()}, calc.Parents())

	// the unlinked node is edge-free but stays registered
	assert.Empty(t, filter.Dependencies())
	assert.Empty(t, filter.Parents())
	assert.Equal(t, 4, p.NodeCount())

	assert.False(t, p.VarUsageComputed())

	issues, err := p.CheckLinkage()
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestUnlinkNodeRejectsRoot(t *testing.T) {
	p, _ := editFixture(t)

	err := p.UnlinkNode(p.Root().ID())
	assert.ErrorIs(t, err, ErrRootRemoval)

	err = p.UnlinkNode(NodeID(99))
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestUnlinkNodeTwice(t *testing.T) {
	p, _ := editFixture(t)
	filter := nodeOfType(t, p, TypeFilter)

	require.NoError(t, p.UnlinkNode(filter.ID()))

	// the second unlink finds a node with no parents, which only the root
	// is allowed to be
	err := p.UnlinkNode(filter.ID())
	assert.ErrorIs(t, err, ErrRootRemoval)
}

func TestUnlinkNodes(t *testing.T) {
	p, _ := editFixture(t)
	filter := nodeOfType(t, p, TypeFilter)
	calc := nodeOfType(t, p, TypeCalculation)
	singleton := nodeOfType(t, p, TypeSingleton)
	ret := nodeOfType(t, p, TypeReturn)

	require.NoError(t, p.UnlinkNodes([]NodeID{filter.ID(), calc.ID()}))

	assert.Equal(t, []NodeID{singleton.ID()}, ret.Dependencies())
	assert.Equal(t, []NodeID{ret.ID()}, singleton.Parents())
}

func TestReplaceNode(t *testing.T) {
	p, a := editFixture(t)
	filter := nodeOfType(t, p, TypeFilter)
	calc := nodeOfType(t, p, TypeCalculation)
	ret := nodeOfType(t, p, TypeReturn)

	cond := a.Variables.CreateVariable("cond")
	replacement, err := p.CreateFilterNode(cond)
	require.NoError(t, err)

	require.NoError(t, p.ReplaceNode(filter.ID(), replacement.ID()))

	assert.Equal(t, []NodeID{calc.ID()}, replacement.Dependencies())
	assert.Equal(t, []NodeID{ret.ID()}, replacement.Parents())
	assert.Equal(t, []NodeID{replacement.ID()}, ret.Dependencies())

	// the replaced node is fully detached but still owned by the plan
	assert.Empty(t, filter.Dependencies())
	assert.Empty(t, filter.Parents())
	_, err = p.GetNodeByID(filter.ID())
	assert.NoError(t, err)

	assert.False(t, p.VarUsageComputed())
}

func TestReplaceNodeRejectsBadArguments(t *testing.T) {
	p, a := editFixture(t)
	filter := nodeOfType(t, p, TypeFilter)
	ret := nodeOfType(t, p, TypeReturn)

	assert.ErrorIs(t, p.ReplaceNode(filter.ID(), filter.ID()), ErrRewireFailed)
	assert.ErrorIs(t, p.ReplaceNode(filter.ID(), NodeID(99)), ErrUnknownNode)
	assert.ErrorIs(t, p.ReplaceNode(NodeID(99), filter.ID()), ErrUnknownNode)

	// a node that is already linked cannot serve as replacement
	assert.ErrorIs(t, p.ReplaceNode(filter.ID(), ret.ID()), ErrRewireFailed)

	cond := a.Variables.CreateVariable("cond")
	replacement, err := p.CreateFilterNode(cond)
	require.NoError(t, err)
	assert.ErrorIs(t, p.ReplaceNode(p.Root().ID(), replacement.ID()), ErrRootRemoval)
}

func TestInsertDependency(t *testing.T) {
	p, _ := editFixture(t)
	filter := nodeOfType(t, p, TypeFilter)
	ret := nodeOfType(t, p, TypeReturn)

	limit, err := p.CreateLimitNode(0, 10)
	require.NoError(t, err)

	require.NoError(t, p.InsertDependency(ret.ID(), limit.ID()))

	assert.Equal(t, []NodeID{limit.ID()}, ret.Dependencies())
	assert.Equal(t, []NodeID{filter.ID()}, limit.Dependencies())
	assert.Equal(t, []NodeID{ret.ID()}, limit.Parents())
	assert.Equal(t, []NodeID{limit.ID()}, filter.Parents())

	issues, err := p.CheckLinkage()
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestInsertDependencyRejectsBadArguments(t *testing.T) {
	p, _ := editFixture(t)
	singleton := nodeOfType(t, p, TypeSingleton)
	ret := nodeOfType(t, p, TypeReturn)

	limit, err := p.CreateLimitNode(0, 10)
	require.NoError(t, err)

	// the singleton has no dependency to take over
	assert.ErrorIs(t, p.InsertDependency(singleton.ID(), limit.ID()), ErrRewireFailed)
	assert.ErrorIs(t, p.InsertDependency(ret.ID(), ret.ID()), ErrRewireFailed)
	assert.ErrorIs(t, p.InsertDependency(NodeID(99), limit.ID()), ErrUnknownNode)
}

func TestCloneIsIndependent(t *testing.T) {
	a := ast.New()
	outer := a.Variables.CreateVariable("outer")
	inner := a.Variables.CreateVariable("inner")
	sub := a.Variables.CreateVariable("sub")

	a.Add(ast.NewLet(outer, ast.NewListNode(ast.NewValueNode(int64(1)))))
	a.Add(ast.NewLet(sub, ast.NewSubquery(
		ast.NewFor(inner, ast.NewReferenceNode(outer)),
		ast.NewReturn(ast.NewReferenceNode(inner)))))
	a.Add(ast.NewFilter(ast.NewReferenceNode(sub)))
	a.Add(ast.NewReturn(ast.NewReferenceNode(sub)))

	p, err := FromAST(a, query.NewCollections())
	require.NoError(t, err)
	p.AddAppliedRule("remove-redundant-sorts")

	clone, err := p.Clone()
	require.NoError(t, err)

	assert.Equal(t, p.NodeCount(), clone.NodeCount())
	assert.Equal(t, p.Root().ID(), clone.Root().ID())
	assert.Equal(t, p.AppliedRules(), clone.AppliedRules())
	assert.Equal(t, typesInExecutionOrder(t, p), typesInExecutionOrder(t, clone))

	// same ids, distinct node instances
	for id, original := range p.nodes {
		cloned, err := clone.GetNodeByID(id)
		require.NoError(t, err)
		assert.NotSame(t, original, cloned)
		assert.Equal(t, original.Type(), cloned.Type())
		assert.Equal(t, original.Dependencies(), cloned.Dependencies())
	}

	// annotations are dropped, not copied
	assert.False(t, clone.VarUsageComputed())

	// editing the clone leaves the original untouched
	filter := nodeOfType(t, clone, TypeFilter)
	require.NoError(t, clone.UnlinkNode(filter.ID()))

	originalFilter := nodeOfType(t, p, TypeFilter)
	assert.Len(t, originalFilter.Parents(), 1)

	// fresh ids never collide between the two plans
	assert.Equal(t, p.NewID(), clone.NewID())
}
