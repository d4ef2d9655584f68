package execplan

import (
	"context"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/index"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/tuple"
)

// recordLoader is the slice of recordstore.Store that IndexScan/VectorTopK
// need: loading a record by primary key and resolving a named index's
// maintainer. Declared here, rather than importing recordstore directly,
// so execplan depends on the capability it actually uses instead of the
// whole store (recordstore still satisfies it unmodified).
type recordLoader[R any] interface {
	Load(ctx context.Context, tx kv.Tx, pk tuple.Tuple) (R, bool, error)
	Maintainer(name string) (index.Maintainer[R], bool)
	Schema() *metadata.Schema[R]
}

// indexScanCursor prefix-scans an index's subspace, optionally trimmed by
// a RangeWindow, decoding the primary key from the tail of each key and
// loading the full record (spec §4.8 "IndexScan"). Covering-index
// skip-load is not implemented: FieldAccessor only supports extraction,
// not construction of a partial record from encoded tuple elements, so
// every IndexScan loads the full record regardless of Plan.Covering.
type indexScanCursor[R any] struct {
	ctx   context.Context
	tx    kv.Tx
	store recordLoader[R]
	it    kv.Iterator
	sub   tuple.Subspace
	arity int
}

func newIndexScan[R any](ctx context.Context, tx kv.Tx, store recordLoader[R], indexName string, begin, end []byte) (*indexScanCursor[R], error) {
	idx, ok := store.Schema().Indexes[indexName]
	if !ok {
		return nil, apperr.ErrUnknownIndex
	}
	maintainer, ok := store.Maintainer(indexName)
	if !ok {
		return nil, apperr.ErrUnknownIndex
	}
	it, err := tx.GetRange(ctx, begin, end, -1, false)
	if err != nil {
		return nil, err
	}
	return &indexScanCursor[R]{
		ctx: ctx, tx: tx, store: store, it: it,
		sub:   maintainer.Subspace(),
		arity: len(fieldaccessor.LeafPaths[R](idx.Expression)),
	}, nil
}

func (c *indexScanCursor[R]) Next(ctx context.Context) (Row[R], bool, error) {
	for {
		pair, ok, err := c.it.Next()
		if err != nil || !ok {
			return Row[R]{}, false, err
		}
		decoded, err := c.sub.Unpack(pair.Key)
		if err != nil {
			return Row[R]{}, false, err
		}
		if len(decoded) < c.arity {
			return Row[R]{}, false, apperr.NewInternal("index scan: key shorter than index expression arity")
		}
		pk := decoded[c.arity:]
		rec, found, err := c.store.Load(ctx, c.tx, pk)
		if err != nil {
			return Row[R]{}, false, err
		}
		if !found {
			// the record was deleted after the index entry was written but
			// before this scan reached it within the same transaction view;
			// skip rather than surface a stale entry.
			continue
		}
		return Row[R]{PK: pk, Record: rec}, true, nil
	}
}

func (c *indexScanCursor[R]) Close() { c.it.Close() }
