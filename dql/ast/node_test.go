package ast

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeAccessors(t *testing.T) {
	value := NewValueNode(int64(42))
	assert.True(t, value.IsConstant())

	n, ok := value.IntValue()
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = NewValueNode(int64(-1)).IntValue()
	assert.False(t, ok, "negative literals are rejected")

	_, ok = NewValueNode("hello").IntValue()
	assert.False(t, ok)

	_, ok = NewValueNode(1.5).IntValue()
	assert.False(t, ok, "fractional literals are rejected")

	n, ok = NewValueNode(float64(3)).IntValue()
	require.True(t, ok, "integral float literals are accepted")
	assert.Equal(t, int64(3), n)

	assert.True(t, NewValueNode(true).BoolValue())
	assert.False(t, NewValueNode("yes").BoolValue())

	list := NewListNode(value)
	assert.Same(t, value, list.Member(0))
	assert.Nil(t, list.Member(1))
	assert.Nil(t, list.Member(-1))
}

func TestReferencedVariablesDeduplicates(t *testing.T) {
	table := NewVariableTable()
	x := table.CreateVariable("x")
	y := table.CreateVariable("y")

	// x appears twice, y once
	expr := NewBinaryOp("+",
		NewBinaryOp("*", NewReferenceNode(x), NewReferenceNode(y)),
		NewReferenceNode(x))

	vars := expr.ReferencedVariables()
	require.Len(t, vars, 2)
	assert.Same(t, x, vars[0])
	assert.Same(t, y, vars[1])
}

func TestNodeStringIsDeterministic(t *testing.T) {
	table := NewVariableTable()
	x := table.CreateVariable("x")

	build := func() *Node {
		return NewBinaryOp("*", NewReferenceNode(x), NewValueNode(int64(2)))
	}
	assert.Equal(t, build().String(), build().String())
	assert.Contains(t, build().String(), "x")
}

func TestNodeJSONRoundTrip(t *testing.T) {
	table := NewVariableTable()
	x := table.CreateVariable("x")

	expr := NewBinaryOp("*",
		NewReferenceNode(x),
		NewValueNode(float64(2)))

	data, err := json.Marshal(expr)
	require.NoError(t, err)

	var decoded Node
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, KindBinaryOp, decoded.Kind)
	assert.Equal(t, "*", decoded.Name)
	require.Len(t, decoded.Members, 2)
	assert.Equal(t, KindReference, decoded.Members[0].Kind)
	require.NotNil(t, decoded.Members[0].Variable)
	assert.Equal(t, x.ID, decoded.Members[0].Variable.ID)
	assert.Equal(t, "x", decoded.Members[0].Variable.Name)
	assert.Equal(t, float64(2), decoded.Members[1].Value)
}

func TestNodeJSONRejectsUnknownKind(t *testing.T) {
	var decoded Node
	err := json.Unmarshal([]byte(`{"kind":"flux capacitor"}`), &decoded)
	assert.Error(t, err)
}

func TestSortElementJSONKeepsDirection(t *testing.T) {
	elem := NewSortElement(NewValueNode("k"), false)

	data, err := json.Marshal(elem)
	require.NoError(t, err)

	var decoded Node
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, KindSortElement, decoded.Kind)
	assert.False(t, decoded.Ascending)
}
