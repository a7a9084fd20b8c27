package render

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ehollis/quarry-dql/dql/ast"
	"github.com/ehollis/quarry-dql/dql/plan"
)

// NodeTable renders every node of the plan as a markdown table row: id,
// type, dependencies, and the variables the node binds and reads. Rows
// appear in execution order, subquery subtrees included.
func NodeTable(p *plan.ExecutionPlan) (string, error) {
	root := p.Root()
	if root == nil {
		return "", fmt.Errorf("plan has no root")
	}

	collector := &rowCollector{}
	if err := p.Walk(root.ID(), collector); err != nil {
		return "", err
	}

	tableString := &strings.Builder{}

	alignment := make([]tw.Align, 5)
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"Id", "NodeType", "Dependencies", "Sets", "Uses"})
	for _, row := range collector.rows {
		table.Append(row)
	}
	table.Render()

	return tableString.String(), nil
}

type rowCollector struct {
	plan.BaseVisitor
	rows [][]string
}

func (c *rowCollector) After(n plan.ExecutionNode) {
	deps := make([]string, len(n.Dependencies()))
	for i, d := range n.Dependencies() {
		deps[i] = fmt.Sprintf("%d", d)
	}
	c.rows = append(c.rows, []string{
		fmt.Sprintf("%d", n.ID()),
		n.Type().String(),
		strings.Join(deps, ", "),
		formatVariables(n.SetVariables()),
		formatVariables(n.UsedVariables()),
	})
}

func (c *rowCollector) EnterSubquery(super, sub plan.ExecutionNode) bool {
	return true
}

func formatVariables(vars []*ast.Variable) string {
	names := make([]string, 0, len(vars))
	for _, v := range vars {
		if v != nil {
			names = append(names, v.Name)
		}
	}
	return strings.Join(names, ", ")
}
