package plan

import (
	"encoding/json"
	"fmt"

	"github.com/ehollis/quarry-dql/dql/ast"
	"github.com/ehollis/quarry-dql/dql/query"
)

// Persisted plan representation: a tree-shaped JSON document listing every
// node in dependency-first order, the applied optimizer rules, and the
// distinct collections the query touches. Subquery subtrees nest as their
// own node list under the owning SubqueryNode's record.

type varRecord struct {
	ID   ast.VariableID `json:"id"`
	Name string         `json:"name"`
}

func newVarRecord(v *ast.Variable) *varRecord {
	if v == nil {
		return nil
	}
	return &varRecord{ID: v.ID, Name: v.Name}
}

type sortElementRecord struct {
	Variable  varRecord `json:"variable"`
	Ascending bool      `json:"ascending"`
}

type aggregateRecord struct {
	OutVariable varRecord `json:"outVariable"`
	InVariable  varRecord `json:"inVariable"`
}

type collectionRecord struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type nodeRecord struct {
	ID           NodeID   `json:"id"`
	Type         string   `json:"type"`
	Dependencies []NodeID `json:"dependencies"`

	OutVariable   *varRecord           `json:"outVariable,omitempty"`
	InVariable    *varRecord           `json:"inVariable,omitempty"`
	InKeyVariable *varRecord           `json:"inKeyVariable,omitempty"`
	Collection    string               `json:"collection,omitempty"`
	Expression    *ast.Node            `json:"expression,omitempty"`
	Elements      []sortElementRecord  `json:"elements,omitempty"`
	Stable        *bool                `json:"stable,omitempty"`
	Aggregates    []aggregateRecord    `json:"aggregates,omitempty"`
	Offset        *uint64              `json:"offset,omitempty"`
	Count         *uint64              `json:"count,omitempty"`
	Options       *ModificationOptions `json:"options,omitempty"`
	Subquery      *persistedPlan       `json:"subquery,omitempty"`
}

type persistedPlan struct {
	Nodes       []nodeRecord       `json:"nodes"`
	Rules       []string           `json:"rules,omitempty"`
	Collections []collectionRecord `json:"collections,omitempty"`
}

// MarshalPlan serializes the subtree reachable from the plan's root together
// with the applied-rule list and the collections the owning query touches.
func MarshalPlan(p *ExecutionPlan, cols *query.Collections) ([]byte, error) {
	if p.root == 0 {
		return nil, fmt.Errorf("cannot serialize a plan without a root")
	}

	subtree, err := p.encodeSubtree(p.root)
	if err != nil {
		return nil, err
	}

	persisted := persistedPlan{
		Nodes: subtree.Nodes,
		Rules: append([]string{}, p.appliedRules...),
	}
	for _, c := range cols.All() {
		persisted.Collections = append(persisted.Collections, collectionRecord{
			Name: c.Name,
			Type: c.Access.String(),
		})
	}

	return json.Marshal(persisted)
}

// encodeSubtree emits the records of one chain in dependency-first order,
// nesting any subquery subtrees inside their owning node's record.
func (p *ExecutionPlan) encodeSubtree(root NodeID) (*persistedPlan, error) {
	enc := &planEncoder{plan: p}
	if err := p.Walk(root, enc); err != nil {
		return nil, err
	}
	if enc.err != nil {
		return nil, enc.err
	}
	return &persistedPlan{Nodes: enc.records}, nil
}

type planEncoder struct {
	BaseVisitor
	plan    *ExecutionPlan
	records []nodeRecord
	err     error
}

// After emits dependencies before dependents, which keeps the reconstruction
// passes simple to eyeball even though relinking is two-pass anyway.
func (e *planEncoder) After(n ExecutionNode) {
	if e.err != nil {
		return
	}

	rec := nodeRecord{
		ID:           n.ID(),
		Type:         n.Type().String(),
		Dependencies: append(make([]NodeID, 0, len(n.Dependencies())), n.Dependencies()...),
	}
	n.encodeInto(&rec)

	if sq, ok := n.(*SubqueryNode); ok {
		nested, err := e.plan.encodeSubtree(sq.SubqueryRoot())
		if err != nil {
			e.err = err
			return
		}
		rec.Subquery = nested
	}

	e.records = append(e.records, rec)
}

// UnmarshalPlan reconstructs a plan from its persisted form. Collections
// recorded in the document are re-registered with cols, variables are
// restored into the AST's table, and the liveness annotations are
// recomputed. Reconstruction is two-pass: every node is instantiated and
// registered first, then dependencies are re-linked by id, so forward
// references need no special handling.
func UnmarshalPlan(data []byte, a *ast.AST, cols *query.Collections) (*ExecutionPlan, error) {
	var persisted persistedPlan
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}

	for _, c := range persisted.Collections {
		mode, err := query.ParseAccessMode(c.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: collection %q: %v", ErrMalformedPlan, c.Name, err)
		}
		cols.Add(c.Name, mode)
	}

	p := NewPlan()
	root, err := p.decodeNodes(a, cols, persisted.Nodes)
	if err != nil {
		return nil, err
	}
	p.root = root
	p.appliedRules = persisted.Rules

	if err := p.FindVarUsage(); err != nil {
		return nil, err
	}
	return p, nil
}

// decodeNodes reconstructs one node list and returns the root id (the last
// record, as the list is dependency-first). Nested subquery lists are
// reconstructed recursively during pass 1; their nodes share the registry.
func (p *ExecutionPlan) decodeNodes(a *ast.AST, cols *query.Collections, records []nodeRecord) (NodeID, error) {
	if len(records) == 0 {
		return 0, fmt.Errorf("%w: empty node list", ErrMalformedPlan)
	}

	// pass 1: instantiate and register every node
	for i := range records {
		rec := &records[i]
		if rec.ID == 0 {
			return 0, fmt.Errorf("%w: node id 0 is invalid", ErrMalformedPlan)
		}

		node, err := p.nodeFromRecord(a, cols, rec)
		if err != nil {
			return 0, err
		}
		if _, err := p.registerNode(node); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
		}
		if rec.ID > p.nextID {
			p.nextID = rec.ID
		}

		if sq, ok := node.(*SubqueryNode); ok {
			if rec.Subquery == nil {
				return 0, fmt.Errorf("%w: SubqueryNode [%d] without subquery", ErrMalformedPlan, rec.ID)
			}
			subRoot, err := p.decodeNodes(a, cols, rec.Subquery.Nodes)
			if err != nil {
				return 0, err
			}
			sq.setSubqueryRoot(subRoot)
		}
	}

	// pass 2: every node exists now, re-link dependencies by id
	for i := range records {
		rec := &records[i]
		node := p.mustGet(rec.ID)
		for _, depID := range rec.Dependencies {
			dep, err := p.GetNodeByID(depID)
			if err != nil {
				return 0, fmt.Errorf("%w: node [%d] depends on unknown node [%d]", ErrMalformedPlan, rec.ID, depID)
			}
			if _, err := p.addDependency(dep, node); err != nil {
				return 0, err
			}
		}
	}

	return records[len(records)-1].ID, nil
}

func (p *ExecutionPlan) restoreVariable(a *ast.AST, rec *varRecord) (*ast.Variable, error) {
	if rec == nil {
		return nil, nil
	}
	v, err := a.Variables.Restore(rec.ID, rec.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	return v, nil
}

func (p *ExecutionPlan) requireVariable(a *ast.AST, rec *varRecord, nodeID NodeID, field string) (*ast.Variable, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: node [%d] is missing %s", ErrMalformedPlan, nodeID, field)
	}
	return p.restoreVariable(a, rec)
}

// nodeFromRecord instantiates one node from its record, dispatching on the
// recorded type tag. Dependencies are not linked here.
func (p *ExecutionPlan) nodeFromRecord(a *ast.AST, cols *query.Collections, rec *nodeRecord) (ExecutionNode, error) {
	nodeType, ok := typeByName[rec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown node type %q", ErrMalformedPlan, rec.Type)
	}
	base := baseNode{id: rec.ID}

	switch nodeType {
	case TypeSingleton:
		return &SingletonNode{baseNode: base}, nil

	case TypeEnumerateCollection:
		col := cols.Get(rec.Collection)
		if col == nil {
			return nil, fmt.Errorf("%w: %q for EnumerateCollectionNode [%d]", ErrUnknownCollection, rec.Collection, rec.ID)
		}
		out, err := p.requireVariable(a, rec.OutVariable, rec.ID, "outVariable")
		if err != nil {
			return nil, err
		}
		return &EnumerateCollectionNode{baseNode: base, Collection: col, OutVariable: out}, nil

	case TypeEnumerateList:
		in, err := p.requireVariable(a, rec.InVariable, rec.ID, "inVariable")
		if err != nil {
			return nil, err
		}
		out, err := p.requireVariable(a, rec.OutVariable, rec.ID, "outVariable")
		if err != nil {
			return nil, err
		}
		return &EnumerateListNode{baseNode: base, InVariable: in, OutVariable: out}, nil

	case TypeFilter:
		in, err := p.requireVariable(a, rec.InVariable, rec.ID, "inVariable")
		if err != nil {
			return nil, err
		}
		return &FilterNode{baseNode: base, InVariable: in}, nil

	case TypeCalculation:
		if rec.Expression == nil {
			return nil, fmt.Errorf("%w: CalculationNode [%d] without expression", ErrMalformedPlan, rec.ID)
		}
		if err := a.Variables.Canonicalize(rec.Expression); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
		}
		out, err := p.requireVariable(a, rec.OutVariable, rec.ID, "outVariable")
		if err != nil {
			return nil, err
		}
		return &CalculationNode{baseNode: base, Expression: rec.Expression, OutVariable: out}, nil

	case TypeSubquery:
		out, err := p.requireVariable(a, rec.OutVariable, rec.ID, "outVariable")
		if err != nil {
			return nil, err
		}
		// subqueryRoot is wired by the caller after the nested list decodes
		return &SubqueryNode{baseNode: base, OutVariable: out}, nil

	case TypeSort:
		if len(rec.Elements) == 0 {
			return nil, fmt.Errorf("%w: SortNode [%d] without elements", ErrMalformedPlan, rec.ID)
		}
		elements := make([]SortElement, 0, len(rec.Elements))
		for i := range rec.Elements {
			v, err := p.restoreVariable(a, &rec.Elements[i].Variable)
			if err != nil {
				return nil, err
			}
			elements = append(elements, SortElement{Variable: v, Ascending: rec.Elements[i].Ascending})
		}
		stable := rec.Stable != nil && *rec.Stable
		return &SortNode{baseNode: base, Elements: elements, Stable: stable}, nil

	case TypeAggregate:
		aggregates := make([]AggregateAssignment, 0, len(rec.Aggregates))
		for i := range rec.Aggregates {
			out, err := p.restoreVariable(a, &rec.Aggregates[i].OutVariable)
			if err != nil {
				return nil, err
			}
			in, err := p.restoreVariable(a, &rec.Aggregates[i].InVariable)
			if err != nil {
				return nil, err
			}
			aggregates = append(aggregates, AggregateAssignment{Out: out, In: in})
		}
		out, err := p.restoreVariable(a, rec.OutVariable)
		if err != nil {
			return nil, err
		}
		return &AggregateNode{baseNode: base, Aggregates: aggregates, OutVariable: out}, nil

	case TypeLimit:
		if rec.Offset == nil || rec.Count == nil {
			return nil, fmt.Errorf("%w: LimitNode [%d] without offset/count", ErrMalformedPlan, rec.ID)
		}
		return &LimitNode{baseNode: base, Offset: *rec.Offset, Count: *rec.Count}, nil

	case TypeReturn:
		in, err := p.requireVariable(a, rec.InVariable, rec.ID, "inVariable")
		if err != nil {
			return nil, err
		}
		return &ReturnNode{baseNode: base, InVariable: in}, nil

	case TypeRemove, TypeInsert, TypeUpdate, TypeReplace:
		return p.modificationFromRecord(a, cols, rec, nodeType, base)

	default:
		return nil, fmt.Errorf("%w: unknown node type %q", ErrMalformedPlan, rec.Type)
	}
}

func (p *ExecutionPlan) modificationFromRecord(a *ast.AST, cols *query.Collections, rec *nodeRecord, nodeType NodeType, base baseNode) (ExecutionNode, error) {
	col := cols.Get(rec.Collection)
	if col == nil {
		return nil, fmt.Errorf("%w: %q for %s [%d]", ErrUnknownCollection, rec.Collection, rec.Type, rec.ID)
	}
	var options ModificationOptions
	if rec.Options != nil {
		options = *rec.Options
	}
	mod := modificationNode{baseNode: base, Collection: col, Options: options}

	in, err := p.requireVariable(a, rec.InVariable, rec.ID, "inVariable")
	if err != nil {
		return nil, err
	}

	switch nodeType {
	case TypeRemove:
		return &RemoveNode{modificationNode: mod, InVariable: in}, nil
	case TypeInsert:
		return &InsertNode{modificationNode: mod, InVariable: in}, nil
	}

	key, err := p.restoreVariable(a, rec.InKeyVariable)
	if err != nil {
		return nil, err
	}
	if nodeType == TypeUpdate {
		return &UpdateNode{modificationNode: mod, InDocVariable: in, InKeyVariable: key}, nil
	}
	return &ReplaceNode{modificationNode: mod, InDocVariable: in, InKeyVariable: key}, nil
}
