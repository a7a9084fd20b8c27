// Package render pretty-prints execution plans for explain output and
// debugging: an indented tree overview and a per-node detail table.
package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/ehollis/quarry-dql/dql/plan"
)

// Tree renders the plan as an indented tree, one node per line in execution
// order (dependencies first), with subquery subtrees indented one level
// under their SubqueryNode.
func Tree(p *plan.ExecutionPlan, useColor bool) (string, error) {
	root := p.Root()
	if root == nil {
		return "", fmt.Errorf("plan has no root")
	}

	shower := &treeShower{useColor: useColor}
	if err := p.Walk(root.ID(), shower); err != nil {
		return "", err
	}
	return shower.sb.String(), nil
}

type treeShower struct {
	plan.BaseVisitor
	sb       strings.Builder
	indent   int
	useColor bool
}

func (s *treeShower) EnterSubquery(super, sub plan.ExecutionNode) bool {
	s.indent++
	return true
}

func (s *treeShower) LeaveSubquery(super, sub plan.ExecutionNode) {
	s.indent--
}

func (s *treeShower) After(n plan.ExecutionNode) {
	s.sb.WriteString(strings.Repeat("  ", s.indent))
	fmt.Fprintf(&s.sb, "%s %s\n", s.colorizeID(n.ID()), s.colorizeType(n.Type()))
}

func (s *treeShower) colorizeID(id plan.NodeID) string {
	text := fmt.Sprintf("[%d]", id)
	if !s.useColor {
		return text
	}
	return color.HiBlackString(text)
}

func (s *treeShower) colorizeType(t plan.NodeType) string {
	name := t.String()
	if !s.useColor {
		return name
	}
	switch t {
	case plan.TypeEnumerateCollection, plan.TypeEnumerateList:
		return color.CyanString(name)
	case plan.TypeCalculation:
		return color.YellowString(name)
	case plan.TypeSubquery:
		return color.MagentaString(name)
	case plan.TypeReturn:
		return color.GreenString(name)
	case plan.TypeRemove, plan.TypeInsert, plan.TypeUpdate, plan.TypeReplace:
		return color.RedString(name)
	default:
		return name
	}
}
