package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON form of an AST node, used when expressions are embedded in a persisted
// execution plan. Variables serialize as {id, name} pairs; after decoding, run
// VariableTable.Canonicalize to re-link them to the owning table.

var kindByName = func() map[string]NodeKind {
	m := make(map[string]NodeKind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

type variableJSON struct {
	ID   VariableID `json:"id"`
	Name string     `json:"name"`
}

type nodeJSON struct {
	Kind      string        `json:"kind"`
	Members   []*Node       `json:"members,omitempty"`
	Value     interface{}   `json:"value,omitempty"`
	Name      string        `json:"name,omitempty"`
	Variable  *variableJSON `json:"variable,omitempty"`
	Ascending *bool         `json:"ascending,omitempty"`
}

func (n *Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{
		Kind:    n.Kind.String(),
		Members: n.Members,
		Value:   n.Value,
		Name:    n.Name,
	}
	if n.Variable != nil {
		out.Variable = &variableJSON{ID: n.Variable.ID, Name: n.Variable.Name}
	}
	if n.Kind == KindSortElement {
		asc := n.Ascending
		out.Ascending = &asc
	}
	return json.Marshal(out)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("ast node cannot be null")
	}
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	kind, ok := kindByName[in.Kind]
	if !ok {
		return fmt.Errorf("unknown ast node kind %q", in.Kind)
	}
	n.Kind = kind
	n.Members = in.Members
	n.Value = in.Value
	n.Name = in.Name
	if in.Variable != nil {
		n.Variable = &Variable{ID: in.Variable.ID, Name: in.Variable.Name}
	}
	if in.Ascending != nil {
		n.Ascending = *in.Ascending
	}
	return nil
}
