package execplan

import (
	"context"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/planner"
)

// filterCursor wraps a child cursor, skipping rows the predicate rejects
// (spec §4.8 "Filter").
type filterCursor[R any] struct {
	child    Cursor[R]
	pred     planner.Predicate[R]
	accessor fieldaccessor.FieldAccessor[R]
}

func newFilter[R any](child Cursor[R], pred planner.Predicate[R], accessor fieldaccessor.FieldAccessor[R]) *filterCursor[R] {
	return &filterCursor[R]{child: child, pred: pred, accessor: accessor}
}

func (c *filterCursor[R]) Next(ctx context.Context) (Row[R], bool, error) {
	for {
		row, ok, err := c.child.Next(ctx)
		if err != nil || !ok {
			return Row[R]{}, false, err
		}
		match, err := c.pred.Evaluate(row.Record, c.accessor)
		if err != nil {
			return Row[R]{}, false, err
		}
		if match {
			return row, true, nil
		}
	}
}

func (c *filterCursor[R]) Close() { c.child.Close() }
