package planner

import (
	"fmt"
	"strings"
)

// Explain renders plan as an indented tree annotated with each node's
// estimated cost, for the statistics-driven observability surface (spec
// §12 "statistics-driven EXPLAIN").
func Explain[R any](plan *Plan[R]) string {
	var b strings.Builder
	explainNode(&b, plan, 0)
	return b.String()
}

func explainNode[R any](b *strings.Builder, plan *Plan[R], depth int) {
	if plan == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s%s", indent, plan.Kind)
	switch plan.Kind {
	case IndexScan:
		fmt.Fprintf(b, " index=%s", plan.IndexName)
		if plan.Window != nil {
			fmt.Fprint(b, " windowed")
		}
	case Limit:
		fmt.Fprintf(b, " n=%d", plan.LimitN)
	case VectorTopK:
		fmt.Fprintf(b, " k=%d", plan.VectorK)
	}
	fmt.Fprintf(b, " rows=%d io=%.1f cpu=%.1f preserves_sort=%v\n", plan.Cost.Rows, plan.Cost.IOCost, plan.Cost.CPUCost, plan.PreservesSort)

	if plan.Child != nil {
		explainNode(b, plan.Child, depth+1)
	}
	for _, c := range plan.Children {
		explainNode(b, c, depth+1)
	}
}
