// Package onlineindex builds a new index over a record type's existing
// records without blocking writers (spec §4.10 "C10").
package onlineindex

import (
	"context"
	"encoding/binary"

	roaring "github.com/RoaringBitmap/roaring/v2"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/tuple"
)

// builtRanges tracks how far a backfill has progressed for one index. The
// KV-persisted state is a single watermark: every key strictly below it has
// already been fed through the target index's Scan path. An in-memory
// roaring bitmap mirrors the count of committed batches so Progress can
// answer without re-reading or re-deriving anything from KV on every call
// (spec's "built_ranges ... used to compute progress without a full KV
// scan").
type builtRanges struct {
	subspace tuple.Subspace
	batches  *roaring.Bitmap
}

func newBuiltRanges(subspace tuple.Subspace) *builtRanges {
	return &builtRanges{subspace: subspace, batches: roaring.New()}
}

func (b *builtRanges) watermarkKey() []byte {
	return b.subspace.Pack(tuple.Tuple{tuple.String("watermark")})
}
func (b *builtRanges) batchCountKey() []byte {
	return b.subspace.Pack(tuple.Tuple{tuple.String("batch_count")})
}

// load reads the persisted watermark and batch count, seeding the
// in-memory bitmap mirror so Progress is available immediately after a
// restart (spec "a restarted build reads built_ranges and skips covered
// sub-ranges").
func (b *builtRanges) load(ctx context.Context, tx kv.Tx) (watermark []byte, err error) {
	watermark, err = tx.Get(ctx, b.watermarkKey(), false)
	if err != nil {
		return nil, err
	}
	countBytes, err := tx.Get(ctx, b.batchCountKey(), false)
	if err != nil {
		return nil, err
	}
	if len(countBytes) == 8 {
		n := binary.BigEndian.Uint64(countBytes)
		if n > 0 {
			b.batches.AddRange(0, n)
		}
	}
	return watermark, nil
}

// advance persists a new watermark after a batch commits and records the
// batch in the bitmap mirror. watermark is the raw key immediately after
// the last record this batch processed (spec "mark that PK sub-range as
// built").
func (b *builtRanges) advance(tx kv.Tx, watermark []byte) {
	tx.Set(b.watermarkKey(), watermark)
	n := b.batches.GetCardinality() + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	tx.Set(b.batchCountKey(), buf)
	b.batches.Add(uint32(n - 1))
}

// progress estimates covered_keys / estimated_total_keys (spec "Progress").
// covered_keys is approximated as committed batches * batchSize, since
// tracking an exact count would require a full scan the bitmap mirror
// exists to avoid.
func (b *builtRanges) progress(batchSize int, estimatedTotalKeys int64) float64 {
	if estimatedTotalKeys <= 0 {
		return 0
	}
	covered := float64(b.batches.GetCardinality()) * float64(batchSize)
	p := covered / float64(estimatedTotalKeys)
	if p > 1 {
		p = 1
	}
	return p
}

// successor returns the smallest byte string strictly greater than key,
// the standard "key immediately after" trick: appending the lowest
// possible byte makes every string sharing key's prefix sort above key
// itself, and nothing can sort strictly between the two.
func successor(key []byte) []byte {
	out := make([]byte, len(key)+1)
	copy(out, key)
	return out
}
