package plan

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehollis/quarry-dql/dql/query"
)

func TestCheckLinkageCleanPlan(t *testing.T) {
	a, _ := rangeQuery()
	p, err := FromAST(a, query.NewCollections())
	require.NoError(t, err)

	issues, err := p.CheckLinkage()
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestCheckLinkageMissingBackEdge(t *testing.T) {
	p, _ := editFixture(t)
	filter := nodeOfType(t, p, TypeFilter)

	// drop the parent back-edge on the filter's dependency
	dep := p.mustGet(filter.Dependencies()[0])
	dep.base().removeParent(filter.ID())

	issues, err := p.CheckLinkage()
	require.NoError(t, err)
	require.NotEmpty(t, issues)
	assert.Equal(t, filter.ID(), issues[0].NodeID)
	assert.Contains(t, issues[0].String(), "does not have this node as a parent")
}

func TestCheckLinkageExtraParent(t *testing.T) {
	p, _ := editFixture(t)
	filter := nodeOfType(t, p, TypeFilter)
	singleton := nodeOfType(t, p, TypeSingleton)

	// give the filter a second, unreciprocated parent
	filter.base().parents = append(filter.base().parents, singleton.ID())

	issues, err := p.CheckLinkage()
	require.NoError(t, err)

	var problems []string
	for _, issue := range issues {
		problems = append(problems, issue.String())
	}
	assert.Contains(t, problems, LinkageIssue{filter.ID(), "node has 2 parents"}.String())
	assert.Contains(t, problems, LinkageIssue{filter.ID(),
		fmt.Sprintf("parent [%d] does not have this node as a dependency", singleton.ID())}.String())
}

func TestCheckLinkageUnregisteredDependency(t *testing.T) {
	p, _ := editFixture(t)
	ret := nodeOfType(t, p, TypeReturn)

	ret.base().deps = append(ret.base().deps, NodeID(42))

	issues, err := p.CheckLinkage()
	require.NoError(t, err)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0].String(), "dependency [42] is not registered")
}
