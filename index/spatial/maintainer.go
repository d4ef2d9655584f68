package spatial

import (
	"bytes"
	"context"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/pkg/errors"
)

// Maintainer stores one entry per (Z-order key ++ primary key) tuple, like
// a value index but with the Z-order byte string standing in for the
// evaluated expression (spec §4.4 "spatial index"). It duck-types the same
// shape as index.Maintainer[R] without importing that package.
type Maintainer[R any] struct {
	idx      metadata.Index[R]
	accessor fieldaccessor.FieldAccessor[R]
	subspace tuple.Subspace
}

func New[R any](idx metadata.Index[R], accessor fieldaccessor.FieldAccessor[R], subspace tuple.Subspace) *Maintainer[R] {
	return &Maintainer[R]{idx: idx, accessor: accessor, subspace: subspace}
}

func (m *Maintainer[R]) Name() string             { return m.idx.Name }
func (m *Maintainer[R]) Kind() metadata.IndexKind { return metadata.KindSpatial }
func (m *Maintainer[R]) Subspace() tuple.Subspace { return m.subspace }

func (m *Maintainer[R]) coordsOf(r R) ([]float64, error) {
	tuples, err := m.idx.Expression.Evaluate(r, m.accessor)
	if err != nil {
		return nil, err
	}
	if len(tuples) != 1 {
		return nil, apperr.ErrVectorExpressionArity
	}
	t := tuples[0]
	if len(t) != m.idx.Spatial.Dimensions {
		return nil, apperr.NewInternal("spatial index: expression arity does not match configured dimensions").WithIndex(m.idx.Name)
	}
	coords := make([]float64, len(t))
	for i, e := range t {
		if e.Kind != tuple.KindFloat {
			return nil, apperr.NewInternal("spatial index: expression element is not a float").WithIndex(m.idx.Name)
		}
		coords[i] = e.Float
	}
	return coords, nil
}

func (m *Maintainer[R]) key(coords []float64, pk tuple.Tuple) ([]byte, error) {
	z, err := Encode(m.idx.Spatial, coords)
	if err != nil {
		return nil, err
	}
	return m.subspace.Pack(tuple.Concat(tuple.Tuple{tuple.Bytes(z)}, pk)), nil
}

func (m *Maintainer[R]) Update(ctx context.Context, tx kv.Tx, old, new *R, pk tuple.Tuple) error {
	if old != nil {
		coords, err := m.coordsOf(*old)
		if err != nil {
			return err
		}
		key, err := m.key(coords, pk)
		if err != nil {
			return err
		}
		tx.Clear(key)
	}
	if new != nil {
		coords, err := m.coordsOf(*new)
		if err != nil {
			return err
		}
		key, err := m.key(coords, pk)
		if err != nil {
			return err
		}
		if m.idx.Unique {
			zKey, _ := Encode(m.idx.Spatial, coords)
			begin, end := m.subspace.RangeFor(tuple.Tuple{tuple.Bytes(zKey)})
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
					break
				}
				if !bytes.Equal(pair.Key, key) {
					return errors.Wrapf(apperr.ErrUniqueViolation, "index %q", m.idx.Name)
				}
			}
		}
		tx.Set(key, []byte{})
	}
	return nil
}

func (m *Maintainer[R]) Scan(ctx context.Context, tx kv.Tx, rec R, pk tuple.Tuple) error {
	return m.Update(ctx, tx, nil, &rec, pk)
}

// ScanRange is one contiguous KV byte range within this maintainer's
// subspace, covering a subset of its Z-order keyspace.
type ScanRange struct{ Begin, End []byte }

// CoveringRanges exposes the Z-order box decomposition, scoped into this
// maintainer's subspace. No planner plan kind or execplan cursor calls it;
// a caller scans the returned ranges itself.
func (m *Maintainer[R]) CoveringRanges(lo, hi []float64) ([]ScanRange, error) {
	ranges, err := CoveringRanges(m.idx.Spatial, lo, hi)
	if err != nil {
		return nil, err
	}
	out := make([]ScanRange, len(ranges))
	for i, r := range ranges {
		out[i] = ScanRange{
			Begin: m.subspace.Pack(tuple.Tuple{tuple.Bytes(r.Begin)}),
			End:   m.subspace.Pack(tuple.Tuple{tuple.Bytes(r.End)}),
		}
	}
	return out, nil
}
