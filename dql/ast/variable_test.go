package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableTableAssignsMonotonicIDs(t *testing.T) {
	table := NewVariableTable()

	a := table.CreateVariable("a")
	b := table.CreateVariable("b")
	tmp := table.CreateTemporaryVariable()

	assert.Equal(t, VariableID(1), a.ID)
	assert.Equal(t, VariableID(2), b.ID)
	assert.Equal(t, VariableID(3), tmp.ID)

	assert.True(t, a.IsUserDefined())
	assert.False(t, tmp.IsUserDefined())

	assert.Same(t, a, table.Get(a.ID))
	assert.Nil(t, table.Get(VariableID(99)))
}

func TestVariableTableRestore(t *testing.T) {
	table := NewVariableTable()

	v, err := table.Restore(7, "doc")
	require.NoError(t, err)
	assert.Equal(t, VariableID(7), v.ID)

	// restoring the same id again returns the same instance
	again, err := table.Restore(7, "doc")
	require.NoError(t, err)
	assert.Same(t, v, again)

	// restoring with a conflicting name fails
	_, err = table.Restore(7, "other")
	assert.Error(t, err)

	// the counter stays ahead of restored ids
	next := table.CreateVariable("next")
	assert.Equal(t, VariableID(8), next.ID)

	_, err = table.Restore(0, "zero")
	assert.Error(t, err)
}

func TestCanonicalizeRelinksReferences(t *testing.T) {
	table := NewVariableTable()
	orphan := &Variable{ID: 3, Name: "x"}
	expr := NewBinaryOp("*", NewReferenceNode(orphan), NewValueNode(2))

	require.NoError(t, table.Canonicalize(expr))

	canonical := table.Get(3)
	require.NotNil(t, canonical)
	assert.Same(t, canonical, expr.Members[0].Variable)

	// a second canonicalization is a no-op
	require.NoError(t, table.Canonicalize(expr))
	assert.Same(t, canonical, expr.Members[0].Variable)
}
