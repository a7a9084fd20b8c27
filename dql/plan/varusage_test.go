package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehollis/quarry-dql/dql/ast"
	"github.com/ehollis/quarry-dql/dql/query"
)

func TestFindVarUsageAnnotations(t *testing.T) {
	a := ast.New()
	x := a.Variables.CreateVariable("x")
	y := a.Variables.CreateVariable("y")

	// LET x = 1  LET y = x + 1  RETURN y
	a.Add(ast.NewLet(x, ast.NewValueNode(int64(1))))
	a.Add(ast.NewLet(y, ast.NewBinaryOp("+", ast.NewReferenceNode(x), ast.NewValueNode(int64(1)))))
	a.Add(ast.NewReturn(ast.NewReferenceNode(y)))

	p, err := FromAST(a, query.NewCollections())
	require.NoError(t, err)
	require.True(t, p.VarUsageComputed())

	singleton := nodeOfType(t, p, TypeSingleton)
	ret := nodeOfType(t, p, TypeReturn)

	// nodes are found root-first, so the y calculation comes before x's
	calcs, err := p.FindNodesOfType(TypeCalculation, false)
	require.NoError(t, err)
	require.Len(t, calcs, 2)
	calcY, calcX := calcs[0].(*CalculationNode), calcs[1].(*CalculationNode)
	require.Same(t, x, calcX.OutVariable)
	require.Same(t, y, calcY.OutVariable)

	// "used later" is strictly downstream: the root needs nothing
	assert.Empty(t, ret.VarsUsedLater())
	assert.True(t, calcY.VarsUsedLater().Contains(y))
	assert.False(t, calcY.VarsUsedLater().Contains(x))
	assert.True(t, calcX.VarsUsedLater().Contains(x))
	assert.True(t, calcX.VarsUsedLater().Contains(y))
	assert.True(t, singleton.VarsUsedLater().Contains(x))

	// "valid" accumulates leaf-to-root
	assert.Empty(t, singleton.VarsValid())
	assert.True(t, calcX.VarsValid().Contains(x))
	assert.False(t, calcX.VarsValid().Contains(y))
	assert.True(t, calcY.VarsValid().Contains(x))
	assert.True(t, calcY.VarsValid().Contains(y))
	assert.True(t, ret.VarsValid().Contains(y))

	setter, ok := p.VarSetBy(x.ID)
	require.True(t, ok)
	assert.Equal(t, calcX.ID(), setter.ID())
	setter, ok = p.VarSetBy(y.ID)
	require.True(t, ok)
	assert.Equal(t, calcY.ID(), setter.ID())
	_, ok = p.VarSetBy(ast.VariableID(99))
	assert.False(t, ok)
}

func TestFindVarUsageIsIdempotent(t *testing.T) {
	a, _ := rangeQuery()
	p, err := FromAST(a, query.NewCollections())
	require.NoError(t, err)

	before := make(map[NodeID]int)
	for id, n := range p.nodes {
		before[id] = len(n.VarsValid())
	}

	require.NoError(t, p.FindVarUsage())
	require.True(t, p.VarUsageComputed())

	for id, n := range p.nodes {
		assert.Equal(t, before[id], len(n.VarsValid()), "node [%d]", id)
	}
}

func TestFindVarUsageSubqueryScoping(t *testing.T) {
	a := ast.New()
	outer := a.Variables.CreateVariable("outer")
	inner := a.Variables.CreateVariable("inner")
	sub := a.Variables.CreateVariable("sub")

	// LET outer = [1]  LET sub = (FOR inner IN outer RETURN inner)  RETURN sub
	a.Add(ast.NewLet(outer, ast.NewListNode(ast.NewValueNode(int64(1)))))
	a.Add(ast.NewLet(sub, ast.NewSubquery(
		ast.NewFor(inner, ast.NewReferenceNode(outer)),
		ast.NewReturn(ast.NewReferenceNode(inner)))))
	a.Add(ast.NewReturn(ast.NewReferenceNode(sub)))

	p, err := FromAST(a, query.NewCollections())
	require.NoError(t, err)

	sq := nodeOfType(t, p, TypeSubquery).(*SubqueryNode)
	subRoot, err := p.GetNodeByID(sq.SubqueryRoot())
	require.NoError(t, err)

	// the subquery sees the outer scope
	assert.True(t, subRoot.VarsValid().Contains(outer))
	assert.True(t, subRoot.VarsValid().Contains(inner))

	// but inner never leaks into the outer chain
	outerCalc := p.mustGet(p.varSetBy[outer.ID])
	assert.False(t, outerCalc.VarsUsedLater().Contains(inner))
	assert.True(t, outerCalc.VarsUsedLater().Contains(sub))

	// the enumeration of outer happens inside the subquery only, so the use
	// of outer stays behind the subquery boundary too
	assert.False(t, outerCalc.VarsUsedLater().Contains(outer))

	// definers are tracked across the boundary
	setter, ok := p.VarSetBy(inner.ID)
	require.True(t, ok)
	assert.Equal(t, TypeEnumerateList, setter.Type())
	setter, ok = p.VarSetBy(sub.ID)
	require.True(t, ok)
	assert.Equal(t, sq.ID(), setter.ID())
}

func TestEditsInvalidateVarUsage(t *testing.T) {
	p, _ := editFixture(t)
	require.True(t, p.VarUsageComputed())

	filter := nodeOfType(t, p, TypeFilter)
	require.NoError(t, p.UnlinkNode(filter.ID()))

	assert.False(t, p.VarUsageComputed())
	_, ok := p.VarSetBy(ast.VariableID(1))
	assert.False(t, ok)

	// recomputing restores the annotations for the remaining chain
	require.NoError(t, p.FindVarUsage())
	assert.True(t, p.VarUsageComputed())
	_, ok = p.VarSetBy(ast.VariableID(1))
	assert.True(t, ok)
}
