package index

import (
	"context"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/pkg/errors"
)

// SumMaintainer holds one atomic int64 total per grouping tuple, where the
// expression's last evaluated element is the addend and the rest form the
// grouping (spec §4.4 "sum index"). An addend that isn't an integer fails
// with NonNumericSummand.
type SumMaintainer[R any] struct{ base[R] }

func splitGroupingAndValue(t tuple.Tuple, indexName string) (grouping tuple.Tuple, value int64, err error) {
	if len(t) == 0 {
		return nil, 0, errors.Wrapf(apperr.ErrNonNumericSummand, "index %q: expression yielded an empty tuple", indexName)
	}
	last := t[len(t)-1]
	if last.Kind != tuple.KindInt {
		return nil, 0, errors.Wrapf(apperr.ErrNonNumericSummand, "index %q: addend has kind %d, want int", indexName, last.Kind)
	}
	return t[:len(t)-1], last.Int, nil
}

func (m *SumMaintainer[R]) Update(ctx context.Context, tx kv.Tx, old, new *R, pk tuple.Tuple) error {
	type split struct {
		grouping tuple.Tuple
		value    int64
	}
	var oldSplits, newSplits []split
	if old != nil {
		ts, err := m.evaluate(*old)
		if err != nil {
			return err
		}
		for _, t := range ts {
			g, v, err := splitGroupingAndValue(t, m.idx.Name)
			if err != nil {
				return err
			}
			oldSplits = append(oldSplits, split{g, v})
		}
	}
	if new != nil {
		ts, err := m.evaluate(*new)
		if err != nil {
			return err
		}
		for _, t := range ts {
			g, v, err := splitGroupingAndValue(t, m.idx.Name)
			if err != nil {
				return err
			}
			newSplits = append(newSplits, split{g, v})
		}
	}

	if len(oldSplits) == 1 && len(newSplits) == 1 && tuple.Compare(oldSplits[0].grouping, newSplits[0].grouping) == 0 {
		delta := newSplits[0].value - oldSplits[0].value
		if delta != 0 {
			tx.AtomicAdd(m.subspace.Pack(oldSplits[0].grouping), delta)
		}
		return nil
	}
	for _, s := range oldSplits {
		tx.AtomicAdd(m.subspace.Pack(s.grouping), -s.value)
	}
	for _, s := range newSplits {
		tx.AtomicAdd(m.subspace.Pack(s.grouping), s.value)
	}
	return nil
}

func (m *SumMaintainer[R]) Scan(ctx context.Context, tx kv.Tx, rec R, pk tuple.Tuple) error {
	return m.Update(ctx, tx, nil, &rec, pk)
}
