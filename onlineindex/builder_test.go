package onlineindex

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/indexstate"
	"github.com/erigontech/fdbrecord/kv/memkv"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/recordstore"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/stretchr/testify/require"
)

type doc struct {
	ID  int64
	Tag string
}

type docSerializer struct{}

func (docSerializer) Serialize(d doc) ([]byte, error) { return json.Marshal(d) }
func (docSerializer) Deserialize(b []byte) (doc, error) {
	var d doc
	err := json.Unmarshal(b, &d)
	return d, err
}

type docAccessor struct{}

func (docAccessor) Extract(r doc, path string) ([]tuple.Tuple, error) {
	if path == "tag" {
		return []tuple.Tuple{{tuple.String(r.Tag)}}, nil
	}
	return nil, nil
}

type docPK struct{}

func (docPK) Evaluate(r doc, acc fieldaccessor.FieldAccessor[doc]) ([]tuple.Tuple, error) {
	return []tuple.Tuple{{tuple.Int(r.ID)}}, nil
}

func newDocSchema() *metadata.Schema[doc] {
	s := metadata.NewSchema[doc]()
	s.AddRecordType(metadata.RecordType[doc]{Name: "Doc", PrimaryKey: docPK{}})
	_ = s.AddIndex(metadata.Index[doc]{Name: "byTag", Kind: metadata.KindValue, Expression: fieldaccessor.FieldKey[doc]("tag")})
	return s
}

// TestBuilderBackfillsExistingRecordsAndTransitionsReadable writes records
// directly to the data subspace (bypassing Save, so no index entries exist
// yet) and drives a Builder over a DISABLED index, asserting it reaches
// READABLE and that every pre-existing record is now indexed.
func TestBuilderBackfillsExistingRecordsAndTransitionsReadable(t *testing.T) {
	ctx := context.Background()
	kvStore := memkv.New()
	schema := newDocSchema()
	sub := tuple.NewSubspace([]byte("D"))
	store, err := recordstore.New[doc](sub, schema, docSerializer{}, docAccessor{})
	require.NoError(t, err)

	docs := []doc{{ID: 1, Tag: "a"}, {ID: 2, Tag: "b"}, {ID: 3, Tag: "a"}}
	tx, _ := kvStore.BeginTransaction(ctx)
	require.NoError(t, store.IndexState().Create(ctx, tx, "byTag"))
	for _, d := range docs {
		raw, err := json.Marshal(d)
		require.NoError(t, err)
		tx.Set(store.DataSubspace().Pack(tuple.Tuple{tuple.Int(d.ID)}), raw)
	}
	require.NoError(t, tx.Commit(ctx))

	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.EstimatedTotalKeys = int64(len(docs))
	rangesSub := sub.Sub(tuple.Tuple{tuple.String("builder-ranges")})
	builder := New[doc](kvStore, store, store.IndexState(), "byTag", rangesSub, cfg)

	require.NoError(t, builder.Run(ctx, "byTag"))
	require.Equal(t, float64(1), builder.Progress())

	tx2, _ := kvStore.BeginTransaction(ctx)
	state, err := store.IndexState().StateOf(ctx, tx2, "byTag")
	require.NoError(t, err)
	require.Equal(t, indexstate.Readable, state)

	maintainer, ok := store.Maintainer("byTag")
	require.True(t, ok)
	begin, end := maintainer.Subspace().Range()
	it, err := tx2.GetRange(ctx, begin, end, -1, false)
	require.NoError(t, err)
	defer it.Close()
	count := 0
	for {
		_, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 3, count)
}

// TestBuilderResumesFromWatermark simulates an interrupted build: one batch
// (BatchSize 1) is run directly through runBatch, then a fresh Builder bound
// to the same ranges subspace must load the watermark the first one
// persisted, which lies just past the first record's key.
func TestBuilderResumesFromWatermark(t *testing.T) {
	ctx := context.Background()
	kvStore := memkv.New()
	schema := newDocSchema()
	sub := tuple.NewSubspace([]byte("D2"))
	store, err := recordstore.New[doc](sub, schema, docSerializer{}, docAccessor{})
	require.NoError(t, err)

	tx, _ := kvStore.BeginTransaction(ctx)
	require.NoError(t, store.IndexState().Create(ctx, tx, "byTag"))
	for i := int64(1); i <= 4; i++ {
		raw, err := json.Marshal(doc{ID: i, Tag: "x"})
		require.NoError(t, err)
		tx.Set(store.DataSubspace().Pack(tuple.Tuple{tuple.Int(i)}), raw)
	}
	require.NoError(t, tx.Commit(ctx))

	cfg := DefaultConfig()
	cfg.BatchSize = 1
	rangesSub := sub.Sub(tuple.Tuple{tuple.String("builder-ranges")})

	b1 := New[doc](kvStore, store, store.IndexState(), "byTag", rangesSub, cfg)
	done, err := b1.runBatch(ctx, "byTag")
	require.NoError(t, err)
	require.False(t, done)

	b2 := New[doc](kvStore, store, store.IndexState(), "byTag", rangesSub, cfg)
	tx2, _ := kvStore.BeginTransaction(ctx)
	watermark, err := b2.ranges.load(ctx, tx2)
	require.NoError(t, err)
	require.NotNil(t, watermark)
	require.Equal(t, store.DataSubspace().Pack(tuple.Tuple{tuple.Int(1)}), watermark[:len(watermark)-1])
}
