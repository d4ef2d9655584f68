package stats

import (
	"context"
	"testing"

	"github.com/erigontech/fdbrecord/kv/memkv"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/stretchr/testify/require"
)

func TestHLLEstimateWithinTolerance(t *testing.T) {
	h := &HLL{}
	const n = 50000
	for i := 0; i < n; i++ {
		h.Add(tuple.Encode(tuple.Tuple{tuple.Int(int64(i))}))
	}
	est := h.Estimate()
	require.InEpsilon(t, float64(n), float64(est), 0.05)
}

func TestHLLBytesRoundTrip(t *testing.T) {
	h := &HLL{}
	h.Add([]byte("a"))
	h.Add([]byte("b"))
	restored := FromBytes(h.Bytes())
	require.Equal(t, h.Estimate(), restored.Estimate())
}

func TestReservoirBoundedSize(t *testing.T) {
	r := NewReservoir(10)
	for i := 0; i < 1000; i++ {
		r.Observe(tuple.Tuple{tuple.Int(int64(i))})
	}
	require.Len(t, r.Samples(), 10)
	require.Equal(t, int64(1000), r.Seen())
}

func TestManagerObserveAndPersist(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	m, err := NewManager(tuple.NewSubspace([]byte("ST")), 16, 100)
	require.NoError(t, err)

	m.Observe("byCity", tuple.Tuple{tuple.String("Tokyo")})
	m.Observe("byCity", tuple.Tuple{tuple.String("Osaka")})

	tx, _ := store.BeginTransaction(ctx)
	m.Flush(ctx, tx, "byCity")
	require.NoError(t, tx.Commit(ctx))

	m2, err := NewManager(tuple.NewSubspace([]byte("ST")), 16, 100)
	require.NoError(t, err)
	tx2, _ := store.BeginTransaction(ctx)
	snap, err := m2.Load(ctx, tx2, "byCity")
	require.NoError(t, err)
	require.Equal(t, int64(2), snap.EntryCount)
}
