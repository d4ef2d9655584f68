package execplan

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/indexstate"
	"github.com/erigontech/fdbrecord/kv/memkv"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/planner"
	"github.com/erigontech/fdbrecord/recordstore"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID    int64
	City  string
	Price int64
}

type widgetSerializer struct{}

func (widgetSerializer) Serialize(w widget) ([]byte, error) { return json.Marshal(w) }
func (widgetSerializer) Deserialize(b []byte) (widget, error) {
	var w widget
	err := json.Unmarshal(b, &w)
	return w, err
}

type widgetAccessor struct{}

func (widgetAccessor) Extract(r widget, path string) ([]tuple.Tuple, error) {
	switch path {
	case "city":
		return []tuple.Tuple{{tuple.String(r.City)}}, nil
	case "price":
		return []tuple.Tuple{{tuple.Int(r.Price)}}, nil
	default:
		return nil, nil
	}
}

type widgetPK struct{}

func (widgetPK) Evaluate(r widget, acc fieldaccessor.FieldAccessor[widget]) ([]tuple.Tuple, error) {
	return []tuple.Tuple{{tuple.Int(r.ID)}}, nil
}

func newWidgetSchema() *metadata.Schema[widget] {
	s := metadata.NewSchema[widget]()
	s.AddRecordType(metadata.RecordType[widget]{Name: "Widget", PrimaryKey: widgetPK{}})
	_ = s.AddIndex(metadata.Index[widget]{Name: "byCity", Kind: metadata.KindValue, Expression: fieldaccessor.FieldKey[widget]("city")})
	_ = s.AddIndex(metadata.Index[widget]{Name: "byPrice", Kind: metadata.KindValue, Expression: fieldaccessor.FieldKey[widget]("price")})
	return s
}

func setupStore(t *testing.T) (*recordstore.Store[widget], *memkv.Store) {
	t.Helper()
	ctx := context.Background()
	kvStore := memkv.New()
	schema := newWidgetSchema()
	store, err := recordstore.New[widget](tuple.NewSubspace([]byte("W")), schema, widgetSerializer{}, widgetAccessor{})
	require.NoError(t, err)

	tx, _ := kvStore.BeginTransaction(ctx)
	for name := range schema.Indexes {
		require.NoError(t, store.IndexState().Create(ctx, tx, name))
		require.NoError(t, store.IndexState().Transition(ctx, tx, name, indexstate.Disabled, indexstate.WriteOnly))
		require.NoError(t, store.IndexState().Transition(ctx, tx, name, indexstate.WriteOnly, indexstate.Readable))
	}
	require.NoError(t, tx.Commit(ctx))

	widgets := []widget{
		{ID: 1, City: "Tokyo", Price: 100},
		{ID: 2, City: "Osaka", Price: 200},
		{ID: 3, City: "Tokyo", Price: 300},
		{ID: 4, City: "Kyoto", Price: 150},
	}
	tx2, _ := kvStore.BeginTransaction(ctx)
	for _, w := range widgets {
		require.NoError(t, store.Save(ctx, tx2, "Widget", w))
	}
	require.NoError(t, tx2.Commit(ctx))

	return store, kvStore
}

func TestFullScanYieldsAllRows(t *testing.T) {
	ctx := context.Background()
	store, kvStore := setupStore(t)
	tx, _ := kvStore.BeginTransaction(ctx)

	plan := &planner.Plan[widget]{Kind: planner.FullScan}
	cur, err := Build[widget](ctx, tx, store, plan)
	require.NoError(t, err)
	defer cur.Close()

	var got []widget
	for {
		row, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, row.Record)
	}
	require.Len(t, got, 4)
}

func TestFullScanWithPredicateFiltersInline(t *testing.T) {
	ctx := context.Background()
	store, kvStore := setupStore(t)
	tx, _ := kvStore.BeginTransaction(ctx)

	pred := planner.FieldCompare[widget]{Path: "city", Op: planner.Eq, Value: tuple.String("Tokyo")}
	plan := &planner.Plan[widget]{Kind: planner.FullScan, Predicate: pred}
	cur, err := Build[widget](ctx, tx, store, plan)
	require.NoError(t, err)
	defer cur.Close()

	var got []widget
	for {
		row, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, row.Record)
	}
	require.Len(t, got, 2)
}

func TestIndexScanDecodesPrimaryKey(t *testing.T) {
	ctx := context.Background()
	store, kvStore := setupStore(t)
	tx, _ := kvStore.BeginTransaction(ctx)

	plan := &planner.Plan[widget]{
		Kind:      planner.IndexScan,
		IndexName: "byCity",
		Grouping:  tuple.Tuple{tuple.String("Tokyo")},
	}
	cur, err := Build[widget](ctx, tx, store, plan)
	require.NoError(t, err)
	defer cur.Close()

	var ids []int64
	for {
		row, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, row.Record.ID)
		require.Equal(t, tuple.Tuple{tuple.Int(row.Record.ID)}, row.PK)
	}
	require.ElementsMatch(t, []int64{1, 3}, ids)
}

func TestLimitStopsAtN(t *testing.T) {
	ctx := context.Background()
	store, kvStore := setupStore(t)
	tx, _ := kvStore.BeginTransaction(ctx)

	plan := &planner.Plan[widget]{
		Kind:   planner.Limit,
		LimitN: 2,
		Child:  &planner.Plan[widget]{Kind: planner.FullScan},
	}
	cur, err := Build[widget](ctx, tx, store, plan)
	require.NoError(t, err)
	defer cur.Close()

	count := 0
	for {
		_, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 2, count)
}

func TestSortOrdersByRequestedField(t *testing.T) {
	ctx := context.Background()
	store, kvStore := setupStore(t)
	tx, _ := kvStore.BeginTransaction(ctx)

	plan := &planner.Plan[widget]{
		Kind:  planner.Sort,
		Sort:  &planner.SortSpec{Fields: []planner.SortField{{Path: "price"}}},
		Child: &planner.Plan[widget]{Kind: planner.FullScan},
	}
	cur, err := Build[widget](ctx, tx, store, plan)
	require.NoError(t, err)
	defer cur.Close()

	var prices []int64
	for {
		row, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		prices = append(prices, row.Record.Price)
	}
	require.Equal(t, []int64{100, 150, 200, 300}, prices)
}

func TestSortDescendingReversesOrder(t *testing.T) {
	ctx := context.Background()
	store, kvStore := setupStore(t)
	tx, _ := kvStore.BeginTransaction(ctx)

	plan := &planner.Plan[widget]{
		Kind:  planner.Sort,
		Sort:  &planner.SortSpec{Fields: []planner.SortField{{Path: "price", Descending: true}}},
		Child: &planner.Plan[widget]{Kind: planner.FullScan},
	}
	cur, err := Build[widget](ctx, tx, store, plan)
	require.NoError(t, err)
	defer cur.Close()

	var prices []int64
	for {
		row, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		prices = append(prices, row.Record.Price)
	}
	require.Equal(t, []int64{300, 200, 150, 100}, prices)
}

func TestIntersectionMatchesCommonRows(t *testing.T) {
	ctx := context.Background()
	store, kvStore := setupStore(t)
	tx, _ := kvStore.BeginTransaction(ctx)

	plan := &planner.Plan[widget]{
		Kind: planner.Intersection,
		Children: []*planner.Plan[widget]{
			{Kind: planner.IndexScan, IndexName: "byCity", Grouping: tuple.Tuple{tuple.String("Tokyo")}},
			{Kind: planner.IndexScan, IndexName: "byPrice", Grouping: tuple.Tuple{tuple.Int(300)}},
		},
	}
	cur, err := Build[widget](ctx, tx, store, plan)
	require.NoError(t, err)
	defer cur.Close()

	var ids []int64
	for {
		row, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, row.Record.ID)
	}
	require.Equal(t, []int64{3}, ids)
}

func TestUnionDedupsAcrossBranches(t *testing.T) {
	ctx := context.Background()
	store, kvStore := setupStore(t)
	tx, _ := kvStore.BeginTransaction(ctx)

	plan := &planner.Plan[widget]{
		Kind: planner.Union,
		Children: []*planner.Plan[widget]{
			{Kind: planner.IndexScan, IndexName: "byCity", Grouping: tuple.Tuple{tuple.String("Tokyo")}},
			{Kind: planner.IndexScan, IndexName: "byPrice", Grouping: tuple.Tuple{tuple.Int(300)}},
		},
	}
	cur, err := Build[widget](ctx, tx, store, plan)
	require.NoError(t, err)
	defer cur.Close()

	var ids []int64
	for {
		row, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, row.Record.ID)
	}
	require.ElementsMatch(t, []int64{1, 3}, ids)
}
