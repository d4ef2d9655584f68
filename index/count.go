package index

import (
	"context"

	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/tuple"
)

// CountMaintainer holds one atomic int64 counter per grouping tuple (spec
// §4.4 "count index"). Delta = (new present ? +1 : 0) - (old present ? +1
// : 0), applied per grouping tuple; a record whose grouping changed between
// old and new decrements the old group and increments the new one.
type CountMaintainer[R any] struct{ base[R] }

func (m *CountMaintainer[R]) Update(ctx context.Context, tx kv.Tx, old, new *R, pk tuple.Tuple) error {
	var oldGroups, newGroups []tuple.Tuple
	var err error
	if old != nil {
		if oldGroups, err = m.evaluate(*old); err != nil {
			return err
		}
	}
	if new != nil {
		if newGroups, err = m.evaluate(*new); err != nil {
			return err
		}
	}

	// Fast path: a single, unchanged grouping nets to a zero delta, so skip
	// the atomic op entirely.
	if len(oldGroups) == 1 && len(newGroups) == 1 && tuple.Compare(oldGroups[0], newGroups[0]) == 0 {
		return nil
	}
	for _, g := range oldGroups {
		tx.AtomicAdd(m.subspace.Pack(g), -1)
	}
	for _, g := range newGroups {
		tx.AtomicAdd(m.subspace.Pack(g), 1)
	}
	return nil
}

func (m *CountMaintainer[R]) Scan(ctx context.Context, tx kv.Tx, rec R, pk tuple.Tuple) error {
	return m.Update(ctx, tx, nil, &rec, pk)
}
