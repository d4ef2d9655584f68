package index

import (
	"bytes"
	"context"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/pkg/errors"
)

// ValueMaintainer stores one entry per (evaluated-expression ++ primary key)
// tuple, empty-valued (spec §4.4 "value index").
type ValueMaintainer[R any] struct{ base[R] }

func (m *ValueMaintainer[R]) Update(ctx context.Context, tx kv.Tx, old, new *R, pk tuple.Tuple) error {
	if old != nil {
		tuples, err := m.evaluate(*old)
		if err != nil {
			return err
		}
		for _, t := range tuples {
			tx.Clear(m.subspace.Pack(tuple.Concat(t, pk)))
		}
	}
	if new != nil {
		tuples, err := m.evaluate(*new)
		if err != nil {
			return err
		}
		for _, t := range tuples {
			key := m.subspace.Pack(tuple.Concat(t, pk))
			if m.idx.Unique {
				if err := m.checkUnique(ctx, tx, t, key); err != nil {
					return err
				}
			}
			tx.Set(key, []byte{})
		}
	}
	return nil
}

func (m *ValueMaintainer[R]) Scan(ctx context.Context, tx kv.Tx, rec R, pk tuple.Tuple) error {
	return m.Update(ctx, tx, nil, &rec, pk)
}

// checkUnique performs a snapshot prefix scan over t's indexed value and
// fails if any entry other than key itself is present (spec §4.4 "Unique:
// before the write, perform a snapshot range read over the K(expr(new))
// prefix; if any other key exists, fail with UniqueViolation").
func (m *ValueMaintainer[R]) checkUnique(ctx context.Context, tx kv.Tx, t tuple.Tuple, key []byte) error {
	begin, end := m.subspace.RangeFor(t)
	it, err := tx.GetRange(ctx, begin, end, 2, true)
	if err != nil {
		return err
	}
	defer it.Close()
	for {
		pair, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if !bytes.Equal(pair.Key, key) {
			return errors.Wrapf(apperr.ErrUniqueViolation, "index %q", m.idx.Name)
		}
	}
}
