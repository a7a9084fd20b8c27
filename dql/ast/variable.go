package ast

import (
	"fmt"
	"strings"
)

// VariableID uniquely identifies a variable within one query.
type VariableID uint64

// Variable is a named value slot produced by one plan node and consumed by
// others. Variables are owned by the VariableTable; plan nodes only hold
// references to them.
type Variable struct {
	ID   VariableID
	Name string
}

// IsUserDefined reports whether the variable was named in the query text.
// Temporary variables introduced for implicit calculations get purely numeric
// names and are not user defined.
func (v *Variable) IsUserDefined() bool {
	return v != nil && !strings.HasPrefix(v.Name, tempVariablePrefix)
}

func (v *Variable) String() string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%d)", v.Name, v.ID)
}

const tempVariablePrefix = "#"

// VariableTable owns every variable of a query. IDs are assigned
// monotonically starting at 1; id 0 is invalid.
type VariableTable struct {
	vars   map[VariableID]*Variable
	nextID VariableID
}

func NewVariableTable() *VariableTable {
	return &VariableTable{
		vars:   make(map[VariableID]*Variable),
		nextID: 1,
	}
}

// CreateVariable registers a new user-defined variable.
func (t *VariableTable) CreateVariable(name string) *Variable {
	v := &Variable{ID: t.nextID, Name: name}
	t.nextID++
	t.vars[v.ID] = v
	return v
}

// CreateTemporaryVariable registers a fresh compiler-generated variable, used
// as the output of implicit calculation nodes.
func (t *VariableTable) CreateTemporaryVariable() *Variable {
	v := &Variable{ID: t.nextID, Name: fmt.Sprintf("%s%d", tempVariablePrefix, t.nextID)}
	t.nextID++
	t.vars[v.ID] = v
	return v
}

// Get returns the variable with the given id, or nil.
func (t *VariableTable) Get(id VariableID) *Variable {
	return t.vars[id]
}

// Restore re-registers a variable recovered from a persisted plan, keeping
// the table's id counter ahead of every restored id. Restoring the same id
// twice returns the already-registered variable.
func (t *VariableTable) Restore(id VariableID, name string) (*Variable, error) {
	if id == 0 {
		return nil, fmt.Errorf("cannot restore variable with id 0")
	}
	if existing, ok := t.vars[id]; ok {
		if existing.Name != name {
			return nil, fmt.Errorf("variable id %d already bound to %q, cannot rebind to %q",
				id, existing.Name, name)
		}
		return existing, nil
	}
	v := &Variable{ID: id, Name: name}
	t.vars[id] = v
	if id >= t.nextID {
		t.nextID = id + 1
	}
	return v, nil
}

// Canonicalize rewrites every variable payload below the node to the table's
// own instance, restoring missing ones. Used after deserializing expressions
// so that identity comparisons on variables keep working.
func (t *VariableTable) Canonicalize(n *Node) error {
	if n == nil {
		return nil
	}
	if (n.Kind == KindVariable || n.Kind == KindReference) && n.Variable != nil {
		v, err := t.Restore(n.Variable.ID, n.Variable.Name)
		if err != nil {
			return err
		}
		n.Variable = v
	}
	for _, m := range n.Members {
		if err := t.Canonicalize(m); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of registered variables.
func (t *VariableTable) Count() int {
	return len(t.vars)
}
