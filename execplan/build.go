package execplan

import (
	"context"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/planner"
	"github.com/erigontech/fdbrecord/tuple"
)

// Store is everything Build needs from a record store: recordLoader's
// Load/Maintainer/Schema plus the data subspace, serializer, and accessor
// that FullScan and Filter need. *recordstore.Store[R] satisfies it
// unmodified.
type Store[R any] interface {
	recordLoader[R]
	DataSubspace() tuple.Subspace
	Serializer() fieldaccessor.Serializer[R]
	Accessor() fieldaccessor.FieldAccessor[R]
}

// Build compiles a planner.Plan into a streaming Cursor over store, inside
// tx (spec §4.8, mirroring the planner's own cost-estimation switch on
// Plan.Kind).
func Build[R any](ctx context.Context, tx kv.Tx, store Store[R], plan *planner.Plan[R]) (Cursor[R], error) {
	switch plan.Kind {
	case planner.Empty:
		return emptyCursor[R]{}, nil

	case planner.FullScan:
		return newFullScan[R](ctx, tx, store.DataSubspace(), store.Serializer(), store.Accessor(), plan.Predicate)

	case planner.IndexScan:
		begin, end, err := indexScanRange(store, plan)
		if err != nil {
			return nil, err
		}
		return newIndexScan[R](ctx, tx, store, plan.IndexName, begin, end)

	case planner.Filter:
		child, err := Build[R](ctx, tx, store, plan.Child)
		if err != nil {
			return nil, err
		}
		return newFilter[R](child, plan.Predicate, store.Accessor()), nil

	case planner.Sort:
		child, err := Build[R](ctx, tx, store, plan.Child)
		if err != nil {
			return nil, err
		}
		return newSort[R](ctx, child, store.Accessor(), plan.Sort)

	case planner.Limit:
		child, err := Build[R](ctx, tx, store, plan.Child)
		if err != nil {
			return nil, err
		}
		return newLimit[R](child, plan.LimitN), nil

	case planner.Intersection:
		children, err := buildChildren(ctx, tx, store, plan.Children)
		if err != nil {
			return nil, err
		}
		return newIntersection[R](ctx, children)

	case planner.Union:
		children, err := buildChildren(ctx, tx, store, plan.Children)
		if err != nil {
			return nil, err
		}
		return newUnion[R](ctx, children)

	case planner.VectorTopK:
		return newVectorTopK[R](ctx, tx, store, plan.IndexName, plan.VectorQuery, plan.VectorK)

	default:
		return nil, apperr.NewInternal("execplan: unknown plan kind")
	}
}

func buildChildren[R any](ctx context.Context, tx kv.Tx, store Store[R], plans []*planner.Plan[R]) ([]Cursor[R], error) {
	children := make([]Cursor[R], len(plans))
	for i, p := range plans {
		c, err := Build[R](ctx, tx, store, p)
		if err != nil {
			return nil, err
		}
		children[i] = c
	}
	return children, nil
}

// indexScanRange derives the byte range an IndexScan plan covers from its
// grouping prefix and optional range window, the same translation the
// planner itself leans on rangeindex.Window.KeyRange for when costing a
// range-bound pair.
func indexScanRange[R any](store Store[R], plan *planner.Plan[R]) (begin, end []byte, err error) {
	maintainer, ok := store.Maintainer(plan.IndexName)
	if !ok {
		return nil, nil, apperr.ErrUnknownIndex
	}
	sub := maintainer.Subspace()
	if plan.Window != nil {
		b, e := plan.Window.KeyRange(sub, plan.Grouping)
		return b, e, nil
	}
	if len(plan.Grouping) > 0 {
		b, e := sub.RangeFor(plan.Grouping)
		return b, e, nil
	}
	b, e := sub.Range()
	return b, e, nil
}

type emptyCursor[R any] struct{}

func (emptyCursor[R]) Next(ctx context.Context) (Row[R], bool, error) { return Row[R]{}, false, nil }
func (emptyCursor[R]) Close()                                         {}
