package execplan

import (
	"context"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/planner"
	"github.com/erigontech/fdbrecord/tuple"
)

// fullScanCursor prefix-scans the record subspace, evaluating an optional
// post-filter predicate per record (spec §4.8 "FullScan").
type fullScanCursor[R any] struct {
	it         kv.Iterator
	dataSub    tuple.Subspace
	serializer fieldaccessor.Serializer[R]
	accessor   fieldaccessor.FieldAccessor[R]
	pred       planner.Predicate[R]
}

func newFullScan[R any](ctx context.Context, tx kv.Tx, dataSub tuple.Subspace, serializer fieldaccessor.Serializer[R], accessor fieldaccessor.FieldAccessor[R], pred planner.Predicate[R]) (*fullScanCursor[R], error) {
	begin, end := dataSub.Range()
	it, err := tx.GetRange(ctx, begin, end, -1, false)
	if err != nil {
		return nil, err
	}
	return &fullScanCursor[R]{it: it, dataSub: dataSub, serializer: serializer, accessor: accessor, pred: pred}, nil
}

func (c *fullScanCursor[R]) Next(ctx context.Context) (Row[R], bool, error) {
	for {
		pair, ok, err := c.it.Next()
		if err != nil || !ok {
			return Row[R]{}, false, err
		}
		pk, err := c.dataSub.Unpack(pair.Key)
		if err != nil {
			return Row[R]{}, false, err
		}
		rec, err := c.serializer.Deserialize(pair.Value)
		if err != nil {
			return Row[R]{}, false, err
		}
		if c.pred != nil {
			match, err := c.pred.Evaluate(rec, c.accessor)
			if err != nil {
				return Row[R]{}, false, err
			}
			if !match {
				continue
			}
		}
		return Row[R]{PK: pk, Record: rec}, true, nil
	}
}

func (c *fullScanCursor[R]) Close() { c.it.Close() }
