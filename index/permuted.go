package index

import (
	"bytes"
	"context"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/pkg/errors"
)

// PermutedMaintainer stores entries like ValueMaintainer but reorders the
// evaluated tuple's elements per idx.Permutation before packing, so a query
// whose sort order doesn't match field declaration order can still use a
// single-index scan (spec §4.4 "permuted index"). Permutation[i] names the
// source element position that lands at output position i.
type PermutedMaintainer[R any] struct{ base[R] }

func (m *PermutedMaintainer[R]) permute(t tuple.Tuple) (tuple.Tuple, error) {
	perm := m.idx.Permutation
	if len(perm) != len(t) {
		return nil, apperr.NewInternal("permuted index: permutation length mismatch").
			WithIndex(m.idx.Name)
	}
	out := make(tuple.Tuple, len(t))
	for i, src := range perm {
		if src < 0 || src >= len(t) {
			return nil, apperr.NewInternal("permuted index: permutation index out of range").WithIndex(m.idx.Name)
		}
		out[i] = t[src]
	}
	return out, nil
}

func (m *PermutedMaintainer[R]) Update(ctx context.Context, tx kv.Tx, old, new *R, pk tuple.Tuple) error {
	if old != nil {
		tuples, err := m.evaluate(*old)
		if err != nil {
			return err
		}
		for _, t := range tuples {
			pt, err := m.permute(t)
			if err != nil {
				return err
			}
			tx.Clear(m.subspace.Pack(tuple.Concat(pt, pk)))
		}
	}
	if new != nil {
		tuples, err := m.evaluate(*new)
		if err != nil {
			return err
		}
		for _, t := range tuples {
			pt, err := m.permute(t)
			if err != nil {
				return err
			}
			key := m.subspace.Pack(tuple.Concat(pt, pk))
			if m.idx.Unique {
				if err := m.checkUnique(ctx, tx, pt, key); err != nil {
					return err
				}
			}
			tx.Set(key, []byte{})
		}
	}
	return nil
}

func (m *PermutedMaintainer[R]) checkUnique(ctx context.Context, tx kv.Tx, t tuple.Tuple, key []byte) error {
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

func (m *PermutedMaintainer[R]) Scan(ctx context.Context, tx kv.Tx, rec R, pk tuple.Tuple) error {
	return m.Update(ctx, tx, nil, &rec, pk)
}
