package execplan

import (
	"context"
	"sort"

	"github.com/erigontech/fdbrecord/tuple"
)

// unionCursor materializes every child and emits the distinct union of
// their rows by primary key (spec §4.8 "Union"), used for an OR predicate
// whose every branch matched a single-field index. A later branch's row for
// a primary key already emitted by an earlier branch is dropped rather than
// re-yielded. The merged set is sorted by primary key before being handed
// back, since a multi-branch union over different fields' indexes gives no
// shared ordering across branches otherwise.
type unionCursor[R any] struct {
	rows []Row[R]
	pos  int
}

func newUnion[R any](ctx context.Context, children []Cursor[R]) (*unionCursor[R], error) {
	seen := make(map[string]bool)
	var rows []Row[R]
	for _, child := range children {
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
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return tuple.Compare(rows[i].PK, rows[j].PK) < 0 })
	return &unionCursor[R]{rows: rows}, nil
}

func (c *unionCursor[R]) Next(ctx context.Context) (Row[R], bool, error) {
	if c.pos >= len(c.rows) {
		return Row[R]{}, false, nil
	}
	row := c.rows[c.pos]
	c.pos++
	return row, true, nil
}

func (c *unionCursor[R]) Close() {}
