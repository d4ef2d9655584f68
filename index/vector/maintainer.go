package vector

import (
	"context"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/tuple"
)

// Maintainer implements the same shape as index.Maintainer[R] (Update,
// Scan, Name, Kind) without importing that package, so the vector and
// spatial kinds can live outside the index package's plain-KV maintainers
// while still satisfying the shared interface structurally.
type Maintainer[R any] struct {
	idx      metadata.Index[R]
	accessor fieldaccessor.FieldAccessor[R]
	graph    *graph
}

func New[R any](idx metadata.Index[R], accessor fieldaccessor.FieldAccessor[R], subspace tuple.Subspace) *Maintainer[R] {
	return &Maintainer[R]{idx: idx, accessor: accessor, graph: newGraph(subspace, idx.Vector)}
}

func (m *Maintainer[R]) Name() string             { return m.idx.Name }
func (m *Maintainer[R]) Kind() metadata.IndexKind { return metadata.KindVector }
func (m *Maintainer[R]) Subspace() tuple.Subspace { return m.graph.subspace }

func (m *Maintainer[R]) vectorOf(r R) ([]float64, error) {
	tuples, err := m.idx.Expression.Evaluate(r, m.accessor)
	if err != nil {
		return nil, err
	}
	if len(tuples) != 1 {
		return nil, apperr.ErrVectorExpressionArity
	}
	return extractVector(tuples[0], m.idx.Vector.Dimensions)
}

func (m *Maintainer[R]) Update(ctx context.Context, tx kv.Tx, old, new *R, pk tuple.Tuple) error {
	if old != nil {
		if err := m.graph.Delete(ctx, tx, pk); err != nil {
			return err
		}
	}
	if new != nil {
		v, err := m.vectorOf(*new)
		if err != nil {
			return err
		}
		if err := m.graph.Insert(ctx, tx, pk, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *Maintainer[R]) Scan(ctx context.Context, tx kv.Tx, rec R, pk tuple.Tuple) error {
	return m.Update(ctx, tx, nil, &rec, pk)
}

// TopK runs a k-nearest-neighbor search against the graph (spec §4.4, §4.8
// "VectorTopK" execution plan).
func (m *Maintainer[R]) TopK(ctx context.Context, tx kv.Tx, query []float64, k int) ([]tuple.Tuple, error) {
	cands, err := m.graph.Search(ctx, tx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]tuple.Tuple, len(cands))
	for i, c := range cands {
		out[i] = c.pk
	}
	return out, nil
}
