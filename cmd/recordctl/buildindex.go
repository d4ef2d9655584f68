package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/erigontech/fdbrecord/kv/memkv"
	"github.com/erigontech/fdbrecord/metrics"
	"github.com/erigontech/fdbrecord/onlineindex"
	"github.com/erigontech/fdbrecord/recordstore"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBuildIndexCmd(logger *zap.Logger) *cobra.Command {
	var numRecords int
	var indexName string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Seed a reference record store with a DISABLED index and drive it to READABLE",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuildIndex(cmd.Context(), logger, numRecords, indexName, batchSize)
		},
	}
	cmd.Flags().IntVar(&numRecords, "records", 10000, "number of pre-existing records to backfill")
	cmd.Flags().StringVar(&indexName, "index", "byCity", "index to build (byCity or byTotal)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "records processed per online-indexer transaction")
	return cmd
}

func runBuildIndex(ctx context.Context, logger *zap.Logger, numRecords int, indexName string, batchSize int) error {
	kvStore := memkv.New()
	schema := newBenchSchema()
	sub := tuple.NewSubspace([]byte("recordctl-build-index"))
	store, err := recordstore.New[benchRecord](sub, schema, benchSerializer{}, benchAccessor{}, recordstore.WithLogger[benchRecord](logger))
	if err != nil {
		return err
	}

	if err := writeBenchRecordsWithoutIndexing(ctx, kvStore, store, numRecords); err != nil {
		return err
	}

	tx, err := kvStore.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	if err := store.IndexState().Create(ctx, tx, indexName); err != nil {
		tx.Cancel()
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	reg := metrics.New(prometheus.NewRegistry())

	cfg := onlineindex.DefaultConfig()
	cfg.BatchSize = batchSize
	cfg.EstimatedTotalKeys = int64(numRecords)
	rangesSub := sub.Sub(tuple.Tuple{tuple.String("builder-ranges"), tuple.String(indexName)})

	builder := onlineindex.New[benchRecord](kvStore, store, store.IndexState(), indexName, rangesSub, cfg,
		onlineindex.WithLogger[benchRecord](logger),
		onlineindex.WithMetrics[benchRecord](reg))

	if err := builder.Run(ctx, indexName); err != nil {
		return err
	}

	fmt.Printf("index %q built over %d records, progress=%.2f\n", indexName, numRecords, builder.Progress())
	return nil
}

// writeBenchRecordsWithoutIndexing writes records directly to the data
// subspace, the way an index that predates a new schema's index would have
// been, so build-index has something to backfill from a DISABLED index.
func writeBenchRecordsWithoutIndexing(ctx context.Context, kvStore *memkv.Store, store *recordstore.Store[benchRecord], numRecords int) error {
	rng := rand.New(rand.NewSource(1))
	tx, err := kvStore.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Cancel()

	for i := 0; i < numRecords; i++ {
		rec := randomBenchRecord(rng, int64(i))
		raw, err := store.Serializer().Serialize(rec)
		if err != nil {
			return err
		}
		tx.Set(store.DataSubspace().Pack(tuple.Tuple{tuple.Int(rec.ID)}), raw)
	}
	return tx.Commit(ctx)
}
