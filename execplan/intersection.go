package execplan

import (
	"context"
	"sort"

	"github.com/erigontech/fdbrecord/tuple"
)

// intersectionCursor materializes every child and emits rows whose primary
// key appears in all of them (spec §4.8 "Intersection"). Children backing
// a single-index equality-prefix scan are already sorted by primary key
// within their matched grouping, but mixing a plain value-index scan with a
// range-bound pair scan gives no shared ordering guarantee across the
// group, so membership is hashed on the encoded primary key rather than
// assuming a sort-merge is always safe; the surviving rows are then sorted
// by primary key before being handed back, so an Intersection yields rows
// in primary-key order whatever order its children produced.
type intersectionCursor[R any] struct {
	rows []Row[R]
	pos  int
}

func newIntersection[R any](ctx context.Context, children []Cursor[R]) (*intersectionCursor[R], error) {
	if len(children) == 0 {
		return &intersectionCursor[R]{}, nil
	}

	counts := make(map[string]int)
	first := make(map[string]Row[R])
	for i, child := range children {
		seen := make(map[string]bool)
		for {
			row, ok, err := child.Next(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			key := string(tuple.Encode(row.PK))
			if seen[key] {
				continue
			}
			seen[key] = true
			counts[key]++
			if i == 0 {
				first[key] = row
			}
		}
	}

	var rows []Row[R]
	for key, row := range first {
		if counts[key] == len(children) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return tuple.Compare(rows[i].PK, rows[j].PK) < 0 })
	return &intersectionCursor[R]{rows: rows}, nil
}

func (c *intersectionCursor[R]) Next(ctx context.Context) (Row[R], bool, error) {
	if c.pos >= len(c.rows) {
		return Row[R]{}, false, nil
	}
	row := c.rows[c.pos]
	c.pos++
	return row, true, nil
}

func (c *intersectionCursor[R]) Close() {}
