package planner

import (
	"context"
	"testing"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/indexstate"
	"github.com/erigontech/fdbrecord/kv/memkv"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/rangeindex"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int64
	City string
	Lo   int64
	Hi   int64
}

func newItemSchema(t *testing.T, withIndexes bool) *metadata.Schema[item] {
	s := metadata.NewSchema[item]()
	s.AddRecordType(metadata.RecordType[item]{Name: "Item", RangeFields: map[string]bool{}})
	if !withIndexes {
		return s
	}
	require.NoError(t, s.AddIndex(metadata.Index[item]{
		Name: "byID", Kind: metadata.KindValue, Unique: true,
		Expression: fieldaccessor.FieldKey[item]("id"),
	}))
	require.NoError(t, s.AddIndex(metadata.Index[item]{
		Name: "byCity", Kind: metadata.KindValue,
		Expression: fieldaccessor.FieldKey[item]("city"),
	}))
	require.NoError(t, s.AddIndex(metadata.Index[item]{
		Name: "windowLower", Kind: metadata.KindValue,
		Expression: fieldaccessor.RangeKey[item]("window", fieldaccessor.LowerBound, fieldaccessor.HalfOpen),
		Range:      &metadata.RangeMetadata{Component: fieldaccessor.LowerBound, Boundary: fieldaccessor.HalfOpen, ParentField: "window"},
	}))
	require.NoError(t, s.AddIndex(metadata.Index[item]{
		Name: "windowUpper", Kind: metadata.KindValue,
		Expression: fieldaccessor.RangeKey[item]("window", fieldaccessor.UpperBound, fieldaccessor.HalfOpen),
		Range:      &metadata.RangeMetadata{Component: fieldaccessor.UpperBound, Boundary: fieldaccessor.HalfOpen, ParentField: "window"},
	}))
	return s
}

func setup(t *testing.T, withIndexes bool) (*Planner[item], *indexstate.Manager, *memkv.Store, []string) {
	ctx := context.Background()
	schema := newItemSchema(t, withIndexes)
	is := indexstate.NewManager(tuple.NewSubspace([]byte("S")), nil)
	store := memkv.New()

	var names []string
	for name := range schema.Indexes {
		names = append(names, name)
	}
	tx, _ := store.BeginTransaction(ctx)
	for _, name := range names {
		require.NoError(t, is.Create(ctx, tx, name))
		require.NoError(t, is.Transition(ctx, tx, name, indexstate.Disabled, indexstate.WriteOnly))
		require.NoError(t, is.Transition(ctx, tx, name, indexstate.WriteOnly, indexstate.Readable))
	}
	require.NoError(t, tx.Commit(ctx))

	p := New[item](schema, is, nil)
	return p, is, store, names
}

func TestFullScanChosenWithNoIndexes(t *testing.T) {
	ctx := context.Background()
	p, _, store, _ := setup(t, false)
	tx, _ := store.BeginTransaction(ctx)
	plan, err := p.Plan(ctx, tx, "Item", TypedQuery[item]{Predicate: And[item]{}})
	require.NoError(t, err)
	require.Equal(t, FullScan, plan.Kind)
}

func TestUniqueEqualityIndexShortCircuits(t *testing.T) {
	ctx := context.Background()
	p, _, store, _ := setup(t, true)
	tx, _ := store.BeginTransaction(ctx)
	q := TypedQuery[item]{Predicate: And[item]{Children: []Predicate[item]{
		FieldCompare[item]{Path: "id", Op: Eq, Value: tuple.Int(5)},
	}}}
	plan, err := p.Plan(ctx, tx, "Item", q)
	require.NoError(t, err)
	require.Equal(t, IndexScan, plan.Kind)
	require.Equal(t, "byID", plan.IndexName)
}

func TestEmptyWindowShortCircuitsToEmptyPlan(t *testing.T) {
	ctx := context.Background()
	p, _, store, _ := setup(t, true)
	tx, _ := store.BeginTransaction(ctx)
	q := TypedQuery[item]{Predicate: And[item]{Children: []Predicate[item]{
		FieldCompare[item]{Path: "price", Op: Gt, Value: tuple.Int(100)},
		FieldCompare[item]{Path: "price", Op: Lt, Value: tuple.Int(50)},
	}}}
	plan, err := p.Plan(ctx, tx, "Item", q)
	require.NoError(t, err)
	require.Equal(t, Empty, plan.Kind)
}

func TestPlanCacheReturnsSamePlanObject(t *testing.T) {
	ctx := context.Background()
	p, _, store, _ := setup(t, true)
	tx, _ := store.BeginTransaction(ctx)
	q := TypedQuery[item]{Predicate: And[item]{Children: []Predicate[item]{
		FieldCompare[item]{Path: "city", Op: Eq, Value: tuple.String("Tokyo")},
	}}}
	plan1, err := p.Plan(ctx, tx, "Item", q)
	require.NoError(t, err)
	plan2, err := p.Plan(ctx, tx, "Item", q)
	require.NoError(t, err)
	require.Same(t, plan1, plan2)
}

func TestRangeBoundPairsProduceBothIndexScans(t *testing.T) {
	ctx := context.Background()
	p, _, store, _ := setup(t, true)
	tx, _ := store.BeginTransaction(ctx)
	readable, err := p.gatherReadableIndexes(ctx, tx, "Item")
	require.NoError(t, err)

	windows := map[string]rangeindex.Window{
		"window.lowerBound": rangeindex.Unbounded().IntersectUpper(rangeindex.Bound{Value: tuple.Int(100), Inclusive: false}),
	}
	plans := p.generateRangeBoundPairs(windows, readable)
	require.Len(t, plans, 2)
	names := map[string]bool{}
	for _, pl := range plans {
		names[pl.IndexName] = true
		require.NotNil(t, pl.Window)
	}
	require.True(t, names["windowLower"])
	require.True(t, names["windowUpper"])
}

func TestIndexScanWrapsUncoveredConjunctInFilter(t *testing.T) {
	ctx := context.Background()
	p, _, store, _ := setup(t, true)
	tx, _ := store.BeginTransaction(ctx)
	q := TypedQuery[item]{Predicate: And[item]{Children: []Predicate[item]{
		FieldCompare[item]{Path: "city", Op: Eq, Value: tuple.String("Tokyo")},
		FieldCompare[item]{Path: "lo", Op: Gt, Value: tuple.Int(5)},
	}}}
	plan, err := p.Plan(ctx, tx, "Item", q)
	require.NoError(t, err)

	require.Equal(t, Filter, plan.Kind)
	require.NotNil(t, plan.Child)
	require.Equal(t, IndexScan, plan.Child.Kind)
	require.Equal(t, "byCity", plan.Child.IndexName)

	fc, ok := plan.Predicate.(FieldCompare[item])
	require.True(t, ok, "residual predicate should be the single uncovered conjunct, got %T", plan.Predicate)
	require.Equal(t, "lo", fc.Path)
	require.Equal(t, Gt, fc.Op)
}

func TestExplainRendersTree(t *testing.T) {
	ctx := context.Background()
	p, _, store, _ := setup(t, true)
	tx, _ := store.BeginTransaction(ctx)
	q := TypedQuery[item]{
		Predicate: And[item]{Children: []Predicate[item]{
			FieldCompare[item]{Path: "city", Op: Eq, Value: tuple.String("Tokyo")},
		}},
		Limit: 10,
	}
	plan, err := p.Plan(ctx, tx, "Item", q)
	require.NoError(t, err)
	out := Explain(plan)
	require.Contains(t, out, "Limit")
}
