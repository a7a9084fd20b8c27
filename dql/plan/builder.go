package plan

import (
	"fmt"

	"github.com/ehollis/quarry-dql/dql/ast"
	"github.com/ehollis/quarry-dql/dql/query"
)

// FromAST lowers a parsed query into an execution plan and computes the
// initial liveness annotations. Collections named by the query must already
// be registered with cols.
//
// Lowering threads a "previous tail" through the statement list: each
// statement appends one or more nodes whose sole dependency is the previous
// tail. Operands that are not bare variable references are routed through an
// implicit CalculationNode binding a temporary variable. Every node is
// registered with the plan before it is linked, so a failure partway through
// lowering leaves nothing unowned.
func FromAST(a *ast.AST, cols *query.Collections) (*ExecutionPlan, error) {
	p := NewPlan()

	root, err := p.fromStatements(a, cols, a.Root)
	if err != nil {
		return nil, err
	}
	p.root = root.ID()

	if err := p.FindVarUsage(); err != nil {
		return nil, err
	}
	return p, nil
}

// fromStatements lowers one statement list into a chain and returns the
// chain's tail. Called once for the top level and recursively per subquery.
func (p *ExecutionPlan) fromStatements(a *ast.AST, cols *query.Collections, list *ast.Node) (ExecutionNode, error) {
	en, err := p.registerNode(&SingletonNode{baseNode: baseNode{id: p.NewID()}})
	if err != nil {
		return nil, err
	}

	for _, stmt := range list.Members {
		if stmt == nil || stmt.Kind == ast.KindNop {
			continue
		}

		switch stmt.Kind {
		case ast.KindFor:
			en, err = p.fromFor(a, cols, en, stmt)
		case ast.KindFilter:
			en, err = p.fromFilter(a, en, stmt)
		case ast.KindLet:
			en, err = p.fromLet(a, cols, en, stmt)
		case ast.KindSort:
			en, err = p.fromSort(a, en, stmt)
		case ast.KindCollect:
			en, err = p.fromCollect(a, en, stmt)
		case ast.KindLimit:
			en, err = p.fromLimit(en, stmt)
		case ast.KindReturn:
			en, err = p.fromReturn(a, en, stmt)
		case ast.KindRemove:
			en, err = p.fromRemove(a, cols, en, stmt)
		case ast.KindInsert:
			en, err = p.fromInsert(a, cols, en, stmt)
		case ast.KindUpdate:
			en, err = p.fromUpdate(a, cols, en, stmt)
		case ast.KindReplace:
			en, err = p.fromReplace(a, cols, en, stmt)
		default:
			return nil, fmt.Errorf("%w: statement kind %s not handled", ErrUnsupportedConstruct, stmt.Kind)
		}
		if err != nil {
			return nil, err
		}
	}

	return en, nil
}

// createTemporaryCalculation registers an implicit CalculationNode that
// evaluates an arbitrary expression into a fresh temporary variable.
func (p *ExecutionPlan) createTemporaryCalculation(a *ast.AST, expr *ast.Node) (*CalculationNode, error) {
	out := a.Variables.CreateTemporaryVariable()

	calc := &CalculationNode{
		baseNode:    baseNode{id: p.NewID()},
		Expression:  expr,
		OutVariable: out,
	}
	if _, err := p.registerNode(calc); err != nil {
		return nil, err
	}
	return calc, nil
}

// addDependency appends prev as an input of node and returns node, keeping
// the dependency/parent edges mutually consistent.
func (p *ExecutionPlan) addDependency(prev, node ExecutionNode) (ExecutionNode, error) {
	node.base().deps = append(node.base().deps, prev.ID())
	prev.base().parents = append(prev.base().parents, node.ID())
	return node, nil
}

// resolveOperand applies the bare-variable-or-implicit-calculation rule to an
// operand: a bare reference is used directly; anything else is evaluated by
// an implicit calculation chained onto prev. Returns the operand's variable
// and the (possibly advanced) chain tail.
func (p *ExecutionPlan) resolveOperand(a *ast.AST, prev ExecutionNode, expr *ast.Node) (*ast.Variable, ExecutionNode, error) {
	if expr.Kind == ast.KindReference {
		return expr.Variable, prev, nil
	}

	calc, err := p.createTemporaryCalculation(a, expr)
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.addDependency(prev, calc); err != nil {
		return nil, nil, err
	}
	return calc.OutVariable, calc, nil
}

func (p *ExecutionPlan) fromFor(a *ast.AST, cols *query.Collections, previous ExecutionNode, stmt *ast.Node) (ExecutionNode, error) {
	v := stmt.Member(0).Variable
	expression := stmt.Member(1)

	var en ExecutionNode
	switch expression.Kind {
	case ast.KindCollection:
		col := cols.Get(expression.Name)
		if col == nil {
			return nil, fmt.Errorf("%w: %q for FOR enumeration", ErrUnknownCollection, expression.Name)
		}
		var err error
		en, err = p.registerNode(&EnumerateCollectionNode{
			baseNode:    baseNode{id: p.NewID()},
			Collection:  col,
			OutVariable: v,
		})
		if err != nil {
			return nil, err
		}

	case ast.KindReference:
		var err error
		en, err = p.registerNode(&EnumerateListNode{
			baseNode:    baseNode{id: p.NewID()},
			InVariable:  expression.Variable,
			OutVariable: v,
		})
		if err != nil {
			return nil, err
		}

	default:
		// source is some misc expression
		calc, err := p.createTemporaryCalculation(a, expression)
		if err != nil {
			return nil, err
		}
		if _, err := p.addDependency(previous, calc); err != nil {
			return nil, err
		}
		en, err = p.registerNode(&EnumerateListNode{
			baseNode:    baseNode{id: p.NewID()},
			InVariable:  calc.OutVariable,
			OutVariable: v,
		})
		if err != nil {
			return nil, err
		}
		previous = calc
	}

	return p.addDependency(previous, en)
}

func (p *ExecutionPlan) fromFilter(a *ast.AST, previous ExecutionNode, stmt *ast.Node) (ExecutionNode, error) {
	inVar, previous, err := p.resolveOperand(a, previous, stmt.Member(0))
	if err != nil {
		return nil, err
	}

	en, err := p.registerNode(&FilterNode{
		baseNode:   baseNode{id: p.NewID()},
		InVariable: inVar,
	})
	if err != nil {
		return nil, err
	}
	return p.addDependency(previous, en)
}

// fromLet also covers subqueries, which only occur as a LET's right-hand
// side. A LET names its own target, so no temporary variable is needed.
func (p *ExecutionPlan) fromLet(a *ast.AST, cols *query.Collections, previous ExecutionNode, stmt *ast.Node) (ExecutionNode, error) {
	v := stmt.Member(0).Variable
	expression := stmt.Member(1)

	var en ExecutionNode
	var err error

	if expression.Kind == ast.KindSubquery {
		sub, err := p.fromStatements(a, cols, expression)
		if err != nil {
			return nil, err
		}
		en, err = p.registerNode(&SubqueryNode{
			baseNode:     baseNode{id: p.NewID()},
			subqueryRoot: sub.ID(),
			OutVariable:  v,
		})
		if err != nil {
			return nil, err
		}
	} else {
		en, err = p.registerNode(&CalculationNode{
			baseNode:    baseNode{id: p.NewID()},
			Expression:  expression,
			OutVariable: v,
		})
		if err != nil {
			return nil, err
		}
	}

	return p.addDependency(previous, en)
}

func (p *ExecutionPlan) fromSort(a *ast.AST, previous ExecutionNode, stmt *ast.Node) (ExecutionNode, error) {
	list := stmt.Member(0)

	var elements []SortElement
	for _, element := range list.Members {
		expression := element.Member(0)

		if expression.Kind == ast.KindReference {
			elements = append(elements, SortElement{Variable: expression.Variable, Ascending: element.Ascending})
			continue
		}

		// sort criterion is some misc expression
		calc, err := p.createTemporaryCalculation(a, expression)
		if err != nil {
			return nil, err
		}
		if _, err := p.addDependency(previous, calc); err != nil {
			return nil, err
		}
		previous = calc
		elements = append(elements, SortElement{Variable: calc.OutVariable, Ascending: element.Ascending})
	}

	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: SORT without criteria", ErrUnsupportedConstruct)
	}

	en, err := p.registerNode(&SortNode{
		baseNode: baseNode{id: p.NewID()},
		Elements: elements,
		Stable:   false,
	})
	if err != nil {
		return nil, err
	}
	return p.addDependency(previous, en)
}

// fromCollect injects a stable SortNode grouping on the aggregate source
// variables directly in front of the AggregateNode; the aggregate relies on
// that grouping order.
func (p *ExecutionPlan) fromCollect(a *ast.AST, previous ExecutionNode, stmt *ast.Node) (ExecutionNode, error) {
	list := stmt.Member(0)

	var sortElements []SortElement
	var aggregates []AggregateAssignment

	for _, assigner := range list.Members {
		if assigner == nil {
			continue
		}
		out := assigner.Member(0).Variable
		expression := assigner.Member(1)

		if expression.Kind == ast.KindReference {
			in := expression.Variable
			aggregates = append(aggregates, AggregateAssignment{Out: out, In: in})
			sortElements = append(sortElements, SortElement{Variable: in, Ascending: true})
			continue
		}

		calc, err := p.createTemporaryCalculation(a, expression)
		if err != nil {
			return nil, err
		}
		if _, err := p.addDependency(previous, calc); err != nil {
			return nil, err
		}
		previous = calc

		aggregates = append(aggregates, AggregateAssignment{Out: out, In: calc.OutVariable})
		sortElements = append(sortElements, SortElement{Variable: calc.OutVariable, Ascending: true})
	}

	sortNode, err := p.registerNode(&SortNode{
		baseNode: baseNode{id: p.NewID()},
		Elements: sortElements,
		Stable:   true,
	})
	if err != nil {
		return nil, err
	}
	if _, err := p.addDependency(previous, sortNode); err != nil {
		return nil, err
	}
	previous = sortNode

	var outVariable *ast.Variable
	if group := stmt.Member(1); group != nil {
		outVariable = group.Variable
	}

	en, err := p.registerNode(&AggregateNode{
		baseNode:    baseNode{id: p.NewID()},
		Aggregates:  aggregates,
		OutVariable: outVariable,
	})
	if err != nil {
		return nil, err
	}
	return p.addDependency(previous, en)
}

func (p *ExecutionPlan) fromLimit(previous ExecutionNode, stmt *ast.Node) (ExecutionNode, error) {
	offset, ok := stmt.Member(0).IntValue()
	if !ok {
		return nil, fmt.Errorf("%w: LIMIT offset must be a non-negative integer literal", ErrUnsupportedConstruct)
	}
	count, ok := stmt.Member(1).IntValue()
	if !ok {
		return nil, fmt.Errorf("%w: LIMIT count must be a non-negative integer literal", ErrUnsupportedConstruct)
	}

	en, err := p.registerNode(&LimitNode{
		baseNode: baseNode{id: p.NewID()},
		Offset:   uint64(offset),
		Count:    uint64(count),
	})
	if err != nil {
		return nil, err
	}
	return p.addDependency(previous, en)
}

func (p *ExecutionPlan) fromReturn(a *ast.AST, previous ExecutionNode, stmt *ast.Node) (ExecutionNode, error) {
	inVar, previous, err := p.resolveOperand(a, previous, stmt.Member(0))
	if err != nil {
		return nil, err
	}

	en, err := p.registerNode(&ReturnNode{
		baseNode:   baseNode{id: p.NewID()},
		InVariable: inVar,
	})
	if err != nil {
		return nil, err
	}
	return p.addDependency(previous, en)
}

// resolveWriteTarget parses the shared leading operands of the four write
// statements: OPTIONS literal and target collection.
func resolveWriteTarget(cols *query.Collections, stmt *ast.Node, nodeName string) (ModificationOptions, *query.Collection, error) {
	options := parseModificationOptions(stmt.Member(0))

	name := stmt.Member(1).Name
	col := cols.Get(name)
	if col == nil {
		return options, nil, fmt.Errorf("%w: %q for %s", ErrUnknownCollection, name, nodeName)
	}
	return options, col, nil
}

// parseModificationOptions reads the recognized keys from an OPTIONS object
// literal. Unrecognized keys and non-literal values are ignored, not
// rejected.
func parseModificationOptions(node *ast.Node) ModificationOptions {
	var options ModificationOptions

	if node == nil || node.Kind != ast.KindObject {
		return options
	}

	for _, member := range node.Members {
		if member == nil || member.Kind != ast.KindObjectElement {
			continue
		}
		value := member.Member(0)
		if !value.IsConstant() {
			continue
		}

		switch member.Name {
		case "waitForSync":
			options.WaitForSync = value.BoolValue()
		case "ignoreErrors":
			options.IgnoreErrors = value.BoolValue()
		case "keepNull":
			// nullMeansRemove is the opposite of keepNull
			options.NullMeansRemove = !value.BoolValue()
		}
	}

	return options
}

func (p *ExecutionPlan) fromRemove(a *ast.AST, cols *query.Collections, previous ExecutionNode, stmt *ast.Node) (ExecutionNode, error) {
	options, col, err := resolveWriteTarget(cols, stmt, "RemoveNode")
	if err != nil {
		return nil, err
	}

	inVar, previous, err := p.resolveOperand(a, previous, stmt.Member(2))
	if err != nil {
		return nil, err
	}

	en, err := p.registerNode(&RemoveNode{
		modificationNode: modificationNode{
			baseNode:   baseNode{id: p.NewID()},
			Collection: col,
			Options:    options,
		},
		InVariable: inVar,
	})
	if err != nil {
		return nil, err
	}
	return p.addDependency(previous, en)
}

func (p *ExecutionPlan) fromInsert(a *ast.AST, cols *query.Collections, previous ExecutionNode, stmt *ast.Node) (ExecutionNode, error) {
	options, col, err := resolveWriteTarget(cols, stmt, "InsertNode")
	if err != nil {
		return nil, err
	}

	inVar, previous, err := p.resolveOperand(a, previous, stmt.Member(2))
	if err != nil {
		return nil, err
	}

	en, err := p.registerNode(&InsertNode{
		modificationNode: modificationNode{
			baseNode:   baseNode{id: p.NewID()},
			Collection: col,
			Options:    options,
		},
		InVariable: inVar,
	})
	if err != nil {
		return nil, err
	}
	return p.addDependency(previous, en)
}

func (p *ExecutionPlan) fromUpdate(a *ast.AST, cols *query.Collections, previous ExecutionNode, stmt *ast.Node) (ExecutionNode, error) {
	options, col, err := resolveWriteTarget(cols, stmt, "UpdateNode")
	if err != nil {
		return nil, err
	}

	var keyVariable *ast.Variable
	if keyExpression := stmt.Member(3); keyExpression != nil {
		keyVariable, previous, err = p.resolveOperand(a, previous, keyExpression)
		if err != nil {
			return nil, err
		}
	}

	docVar, previous, err := p.resolveOperand(a, previous, stmt.Member(2))
	if err != nil {
		return nil, err
	}

	en, err := p.registerNode(&UpdateNode{
		modificationNode: modificationNode{
			baseNode:   baseNode{id: p.NewID()},
			Collection: col,
			Options:    options,
		},
		InDocVariable: docVar,
		InKeyVariable: keyVariable,
	})
	if err != nil {
		return nil, err
	}
	return p.addDependency(previous, en)
}

func (p *ExecutionPlan) fromReplace(a *ast.AST, cols *query.Collections, previous ExecutionNode, stmt *ast.Node) (ExecutionNode, error) {
	options, col, err := resolveWriteTarget(cols, stmt, "ReplaceNode")
	if err != nil {
		return nil, err
	}

	var keyVariable *ast.Variable
	if keyExpression := stmt.Member(3); keyExpression != nil {
		keyVariable, previous, err = p.resolveOperand(a, previous, keyExpression)
		if err != nil {
			return nil, err
		}
	}

	docVar, previous, err := p.resolveOperand(a, previous, stmt.Member(2))
	if err != nil {
		return nil, err
	}

	en, err := p.registerNode(&ReplaceNode{
		modificationNode: modificationNode{
			baseNode:   baseNode{id: p.NewID()},
			Collection: col,
			Options:    options,
		},
		InDocVariable: docVar,
		InKeyVariable: keyVariable,
	})
	if err != nil {
		return nil, err
	}
	return p.addDependency(previous, en)
}
