package execplan

import (
	"context"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/index/vector"
	"github.com/erigontech/fdbrecord/kv"
)

// vectorTopKCursor runs a nearest-neighbor search once and replays the
// result in the maintainer's own best-first order (spec §4.8 "VectorTopK").
// Unlike the other plan kinds it never re-sorts by primary key: the
// underlying graph search already returns candidates ranked by distance,
// and a PK sort would destroy that ranking.
type vectorTopKCursor[R any] struct {
	ctx   context.Context
	tx    kv.Tx
	store recordLoader[R]
	rows  []Row[R]
	pos   int
}

func newVectorTopK[R any](ctx context.Context, tx kv.Tx, store recordLoader[R], indexName string, query []float64, k int) (*vectorTopKCursor[R], error) {
	maintainer, ok := store.Maintainer(indexName)
	if !ok {
		return nil, apperr.ErrUnknownIndex
	}
	vm, ok := maintainer.(*vector.Maintainer[R])
	if !ok {
		return nil, apperr.NewInternal("vector top-k plan against a non-vector index")
	}
	pks, err := vm.TopK(ctx, tx, query, k)
	if err != nil {
		return nil, err
	}

	var rows []Row[R]
	for _, pk := range pks {
		rec, found, err := store.Load(ctx, tx, pk)
		if err != nil {
			return nil, err
		}
		if !found {
			// deleted between the graph search and this load within the
			// same transaction view; drop rather than surface a stale hit.
			continue
		}
		rows = append(rows, Row[R]{PK: pk, Record: rec})
	}
	return &vectorTopKCursor[R]{ctx: ctx, tx: tx, store: store, rows: rows}, nil
}

func (c *vectorTopKCursor[R]) Next(ctx context.Context) (Row[R], bool, error) {
	if c.pos >= len(c.rows) {
		return Row[R]{}, false, nil
	}
	row := c.rows[c.pos]
	c.pos++
	return row, true, nil
}

func (c *vectorTopKCursor[R]) Close() {}
