package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/erigontech/fdbrecord/execplan"
	"github.com/erigontech/fdbrecord/indexstate"
	"github.com/erigontech/fdbrecord/kv/memkv"
	"github.com/erigontech/fdbrecord/metrics"
	"github.com/erigontech/fdbrecord/planner"
	"github.com/erigontech/fdbrecord/recordstore"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBenchCmd(logger *zap.Logger) *cobra.Command {
	var numRecords int
	var city string
	var seed int64

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Seed a reference record store and time a query plan against it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), logger, numRecords, city, seed)
		},
	}
	cmd.Flags().IntVar(&numRecords, "records", 10000, "number of records to seed")
	cmd.Flags().StringVar(&city, "city", "Tokyo", "city to filter by in the timed query")
	cmd.Flags().Int64Var(&seed, "seed", 1, "PRNG seed for the generated records")
	return cmd
}

func runBench(ctx context.Context, logger *zap.Logger, numRecords int, city string, seed int64) error {
	kvStore := memkv.New()
	schema := newBenchSchema()
	sub := tuple.NewSubspace([]byte("recordctl-bench"))
	store, err := recordstore.New[benchRecord](sub, schema, benchSerializer{}, benchAccessor{}, recordstore.WithLogger[benchRecord](logger))
	if err != nil {
		return err
	}

	reg := metrics.New(prometheus.NewRegistry())

	for _, name := range []string{"byCity", "byTotal"} {
		if err := enableIndexForWrites(ctx, kvStore, store, name); err != nil {
			return err
		}
	}
	if err := seedBenchRecords(ctx, kvStore, store, numRecords, seed); err != nil {
		return err
	}
	for _, name := range []string{"byCity", "byTotal"} {
		if err := markIndexReadable(ctx, kvStore, store, name); err != nil {
			return err
		}
	}

	plnr := planner.New[benchRecord](schema, store.IndexState(), nil)

	tx, err := kvStore.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Cancel()

	query := planner.TypedQuery[benchRecord]{
		Predicate: planner.FieldCompare[benchRecord]{Path: "city", Op: planner.Eq, Value: tuple.String(city)},
	}

	start := time.Now()
	plan, err := plnr.Plan(ctx, tx, recordTypeName, query)
	if err != nil {
		return err
	}
	planningLatency := time.Since(start)

	cursor, err := execplan.Build[benchRecord](ctx, tx, store, plan)
	if err != nil {
		return err
	}
	defer cursor.Close()

	start = time.Now()
	count := 0
	for {
		_, ok, err := cursor.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		count++
	}
	executionLatency := time.Since(start)

	reg.MaintainerInvocations.WithLabelValues("byCity", "value").Add(float64(count))

	fmt.Printf("plan:\n%s\n", planner.Explain(plan))
	fmt.Printf("matched %d records in %s (planning %s, execution %s)\n", count, planningLatency+executionLatency, planningLatency, executionLatency)
	return nil
}

func seedBenchRecords(ctx context.Context, kvStore *memkv.Store, store *recordstore.Store[benchRecord], numRecords int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	tx, err := kvStore.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Cancel()

	for i := 0; i < numRecords; i++ {
		rec := randomBenchRecord(rng, int64(i))
		if err := store.Save(ctx, tx, recordTypeName, rec); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// enableIndexForWrites creates indexName and moves it to WRITE_ONLY so
// Save starts maintaining it before any record exists, letting the demo
// skip a separate backfill pass.
func enableIndexForWrites(ctx context.Context, kvStore *memkv.Store, store *recordstore.Store[benchRecord], indexName string) error {
	tx, err := kvStore.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Cancel()

	if err := store.IndexState().Create(ctx, tx, indexName); err != nil {
		return err
	}
	if err := store.IndexState().Transition(ctx, tx, indexName, indexstate.Disabled, indexstate.WriteOnly); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func markIndexReadable(ctx context.Context, kvStore *memkv.Store, store *recordstore.Store[benchRecord], indexName string) error {
	tx, err := kvStore.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Cancel()

	if err := store.IndexState().Transition(ctx, tx, indexName, indexstate.WriteOnly, indexstate.Readable); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
