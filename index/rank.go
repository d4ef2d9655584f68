package index

import (
	"bytes"
	"context"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/pkg/errors"
)

// RankMaintainer stores entries exactly like ValueMaintainer (expression ++
// primary key), but also exposes RankOf, a count of entries ordered before a
// given (grouping, score) pair (spec §4.4 "rank index"). The expression's
// trailing element is the score and everything before it is the grouping,
// matching SumMaintainer's split convention.
type RankMaintainer[R any] struct{ base[R] }

func (m *RankMaintainer[R]) Update(ctx context.Context, tx kv.Tx, old, new *R, pk tuple.Tuple) error {
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

func (m *RankMaintainer[R]) checkUnique(ctx context.Context, tx kv.Tx, t tuple.Tuple, key []byte) error {
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

func (m *RankMaintainer[R]) Scan(ctx context.Context, tx kv.Tx, rec R, pk tuple.Tuple) error {
	return m.Update(ctx, tx, nil, &rec, pk)
}

// RankOf counts entries within grouping that sort strictly before score,
// i.e. the 0-based rank score would occupy (spec §4.4 "rank: 0-based
// position within the grouping, ordered by score"). It pays for a full
// prefix count on every call; RankOverlay trades that cost for an
// in-memory approximation built from a snapshot.
func (m *RankMaintainer[R]) RankOf(ctx context.Context, tx kv.Tx, grouping tuple.Tuple, score tuple.Element) (int64, error) {
	groupBegin, _ := m.subspace.RangeFor(grouping)
	scoreBound := m.subspace.Pack(tuple.Concat(grouping, tuple.Tuple{score}))
	it, err := tx.GetRange(ctx, groupBegin, scoreBound, -1, false)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var count int64
	for {
		_, ok, err := it.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return count, nil
		}
		count++
	}
}
