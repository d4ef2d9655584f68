package index

import (
	"context"

	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/tuple"
)

// VersionMaintainer stores one entry per primary key, keyed by pk ++
// versionstamp, so the latest write always sorts last within the pk's
// prefix range (spec §4.4 "version index"). Every write replaces the prior
// entry: on delete or replace, the existing entry is located by a snapshot
// prefix scan over pk and cleared before the new versionstamped entry (if
// any) is written.
type VersionMaintainer[R any] struct{ base[R] }

func (m *VersionMaintainer[R]) Update(ctx context.Context, tx kv.Tx, old, new *R, pk tuple.Tuple) error {
	if old != nil {
		begin, end := m.subspace.RangeFor(pk)
		it, err := tx.GetRange(ctx, begin, end, -1, true)
		if err != nil {
			return err
		}
		var keys [][]byte
		for {
			pair, ok, err := it.Next()
			if err != nil {
				it.Close()
				return err
			}
			if !ok {
				break
			}
			keys = append(keys, pair.Key)
		}
		it.Close()
		for _, k := range keys {
			tx.Clear(k)
		}
	}
	if new != nil {
		key := m.subspace.Pack(tuple.Concat(pk, tuple.Tuple{tuple.IncompleteVS(0)}))
		tx.AtomicSetVersionstampedKey(key, []byte{})
	}
	return nil
}

func (m *VersionMaintainer[R]) Scan(ctx context.Context, tx kv.Tx, rec R, pk tuple.Tuple) error {
	return m.Update(ctx, tx, nil, &rec, pk)
}

// CurrentVersion returns the latest versionstamp recorded for pk, or ok=false
// if none exists. Used by the record store's load_with_version operation
// (spec §4.3).
func (m *VersionMaintainer[R]) CurrentVersion(ctx context.Context, tx kv.Tx, pk tuple.Tuple) (tuple.Versionstamp, bool, error) {
	begin, end := m.subspace.RangeFor(pk)
	it, err := tx.GetRange(ctx, begin, end, -1, false)
	if err != nil {
		return tuple.Versionstamp{}, false, err
	}
	defer it.Close()
	var last []byte
	for {
		pair, ok, err := it.Next()
		if err != nil {
			return tuple.Versionstamp{}, false, err
		}
		if !ok {
			break
		}
		last = pair.Key
	}
	if last == nil {
		return tuple.Versionstamp{}, false, nil
	}
	decoded, err := m.subspace.Unpack(last)
	if err != nil {
		return tuple.Versionstamp{}, false, err
	}
	return decoded[len(decoded)-1].VS, true, nil
}
