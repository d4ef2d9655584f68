package execplan

import (
	"context"
	"sort"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/planner"
	"github.com/erigontech/fdbrecord/tuple"
)

// sortCursor materializes its child fully, orders the rows by a composite
// key, and replays them (spec §4.8 "Sort"). A field with no extracted value
// sorts as null, and null sorts less than any non-null value: this falls
// out of the tuple encoding's own Kind tag ordering (KindNull is tag 0), so
// no special-casing is needed beyond substituting tuple.Null() when a path
// yields nothing.
type sortCursor[R any] struct {
	rows []Row[R]
	pos  int
}

func newSort[R any](ctx context.Context, child Cursor[R], accessor fieldaccessor.FieldAccessor[R], spec *planner.SortSpec) (*sortCursor[R], error) {
	var rows []Row[R]
	for {
		row, ok, err := child.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}

	keys := make([][]tuple.Element, len(rows))
	for i, row := range rows {
		k, err := sortKey(row.Record, accessor, spec)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return compareSortKeys(keys[i], keys[j], spec) < 0
	})

	return &sortCursor[R]{rows: rows}, nil
}

func sortKey[R any](r R, accessor fieldaccessor.FieldAccessor[R], spec *planner.SortSpec) ([]tuple.Element, error) {
	key := make([]tuple.Element, len(spec.Fields))
	for i, f := range spec.Fields {
		vals, err := accessor.Extract(r, f.Path)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 || len(vals[0]) == 0 {
			key[i] = tuple.Null()
			continue
		}
		key[i] = vals[0][0]
	}
	return key, nil
}

func compareSortKeys(a, b []tuple.Element, spec *planner.SortSpec) int {
	for i := range a {
		c := tuple.CompareElements(a[i], b[i])
		if spec.Fields[i].Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func (c *sortCursor[R]) Next(ctx context.Context) (Row[R], bool, error) {
	if c.pos >= len(c.rows) {
		return Row[R]{}, false, nil
	}
	row := c.rows[c.pos]
	c.pos++
	return row, true, nil
}

func (c *sortCursor[R]) Close() {}
