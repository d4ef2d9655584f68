package spatial

import (
	"context"
	"testing"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/kv/memkv"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/stretchr/testify/require"
)

func testOpts() metadata.SpatialOptions {
	return metadata.SpatialOptions{
		Dimensions:        2,
		AxisRanges:        [][2]float64{{-90, 90}, {-180, 180}},
		MaxDepth:          10,
		MaxCoveringRanges: 32,
	}
}

func TestEncodeIsOrderPreservingWithinAxis(t *testing.T) {
	opts := testOpts()
	k1, err := Encode(opts, []float64{0, 0})
	require.NoError(t, err)
	k2, err := Encode(opts, []float64{10, 10})
	require.NoError(t, err)
	k3, err := Encode(opts, []float64{-10, -10})
	require.NoError(t, err)
	require.Less(t, string(k3), string(k1))
	require.Less(t, string(k1), string(k2))
}

func TestCoordinateOutOfRangeWithoutClip(t *testing.T) {
	opts := testOpts()
	opts.ClipOutOfRange = false
	_, err := Encode(opts, []float64{1000, 0})
	require.Error(t, err)
}

func TestCoveringRangesCoversQueryBox(t *testing.T) {
	opts := testOpts()
	ranges, err := CoveringRanges(opts, []float64{-5, -5}, []float64{5, 5})
	require.NoError(t, err)
	require.NotEmpty(t, ranges)
	require.LessOrEqual(t, len(ranges), opts.MaxCoveringRanges)

	// A point inside the box must fall within at least one covering range.
	target, err := Encode(opts, []float64{0, 0})
	require.NoError(t, err)
	found := false
	for _, r := range ranges {
		if string(r.Begin) <= string(target) && string(target) < string(r.End) {
			found = true
			break
		}
	}
	require.True(t, found)
}

func TestHaversineZeroDistanceForSamePoint(t *testing.T) {
	require.InDelta(t, 0, HaversineMeters(35.0, 139.0, 35.0, 139.0), 1e-9)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Tokyo to Osaka is roughly 400km.
	d := HaversineMeters(35.6762, 139.6503, 34.6937, 135.5023)
	require.InDelta(t, 400000, d, 60000)
}

type place struct{ fields map[string][]tuple.Tuple }

type placeAccessor struct{}

func (placeAccessor) Extract(r place, path string) ([]tuple.Tuple, error) { return r.fields[path], nil }

func TestMaintainerInsertIsScannable(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	idx := metadata.Index[place]{
		Name: "byLocation", Kind: metadata.KindSpatial,
		Expression: fieldaccessor.FieldKey[place]("coords"),
		Spatial:    testOpts(),
	}
	m := New[place](idx, placeAccessor{}, tuple.NewSubspace([]byte("I")))

	r := place{fields: map[string][]tuple.Tuple{"coords": {{tuple.Float(0), tuple.Float(0)}}}}
	tx, _ := store.BeginTransaction(ctx)
	require.NoError(t, m.Update(ctx, tx, nil, &r, tuple.Tuple{tuple.Int(1)}))
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := store.BeginTransaction(ctx)
	ranges, err := m.CoveringRanges([]float64{-1, -1}, []float64{1, 1})
	require.NoError(t, err)
	require.NotEmpty(t, ranges)
	found := false
	for _, rg := range ranges {
		it, err := tx2.GetRange(ctx, rg.Begin, rg.End, -1, true)
		require.NoError(t, err)
		for {
			_, ok, err := it.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			found = true
		}
	}
	require.True(t, found)
}
