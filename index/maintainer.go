// Package index implements one maintainer per index kind (spec §3, §4.4).
// A maintainer applies the delta between a record's old and new value to
// the index's KV entries within the caller's transaction; the same
// maintainer drives the online indexer's scan-only backfill path (spec
// §4.4, §4.10).
package index

import (
	"context"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/tuple"
)

// Maintainer is the uniform trait every index kind implements (spec §4.4
// "Common contract", §9 "one trait with a uniform update method").
type Maintainer[R any] interface {
	// Update applies the delta from old to new for the record identified by
	// pk. Either old or new (not both) may be nil, corresponding to an
	// insert or a delete; both non-nil is a replace.
	Update(ctx context.Context, tx kv.Tx, old, new *R, pk tuple.Tuple) error

	// Scan is the online-build shorthand: maintain the index for rec as
	// though it had no prior value (spec §4.4 "no old value").
	Scan(ctx context.Context, tx kv.Tx, rec R, pk tuple.Tuple) error

	Name() string
	Kind() metadata.IndexKind

	// Subspace returns the index's KV subspace, for callers (execplan's
	// IndexScan) that need to scan the index's raw entries directly rather
	// than going through Update/Scan.
	Subspace() tuple.Subspace
}

// base carries the fields every maintainer needs: the index's own metadata,
// the record type's field accessor, and the index's KV subspace (I/<name>).
type base[R any] struct {
	idx      metadata.Index[R]
	accessor fieldaccessor.FieldAccessor[R]
	subspace tuple.Subspace
}

func (b base[R]) Name() string             { return b.idx.Name }
func (b base[R]) Kind() metadata.IndexKind { return b.idx.Kind }
func (b base[R]) Subspace() tuple.Subspace { return b.subspace }
func (b base[R]) evaluate(r R) ([]tuple.Tuple, error) {
	return b.idx.Expression.Evaluate(r, b.accessor)
}

// New builds the Maintainer for idx, dispatching on its kind (spec §9
// "tagged union over kinds").
func New[R any](idx metadata.Index[R], accessor fieldaccessor.FieldAccessor[R], subspace tuple.Subspace) (Maintainer[R], error) {
	b := base[R]{idx: idx, accessor: accessor, subspace: subspace}
	switch idx.Kind {
	case metadata.KindValue:
		return &ValueMaintainer[R]{base: b}, nil
	case metadata.KindCount:
		return &CountMaintainer[R]{base: b}, nil
	case metadata.KindSum:
		return &SumMaintainer[R]{base: b}, nil
	case metadata.KindVersion:
		return &VersionMaintainer[R]{base: b}, nil
	case metadata.KindPermuted:
		return &PermutedMaintainer[R]{base: b}, nil
	case metadata.KindRank:
		return &RankMaintainer[R]{base: b}, nil
	default:
		return nil, errUnsupportedKind(idx.Kind)
	}
}

type unsupportedKindError struct{ kind metadata.IndexKind }

func (e unsupportedKindError) Error() string {
	return "index: kind " + e.kind.String() + " is built by its own subpackage (vector, spatial), not index.New"
}

func errUnsupportedKind(k metadata.IndexKind) error { return unsupportedKindError{kind: k} }
