package stats

import (
	"context"
	"encoding/binary"

	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/tuple"
	arc "github.com/hashicorp/golang-lru/arc/v2"
)

// Snapshot is one index's statistics (spec §4.7): an entry count
// (incremented and decremented in memory by Observe/ObserveDelete, and
// written with a plain Set by Flush), an approximate distinct-value count, and a bounded sample of observed
// values for selectivity estimation against predicates never explicitly
// counted.
type Snapshot struct {
	EntryCount int64
	HLL        *HLL
	Sample     *Reservoir
}

func newSnapshot(sampleSize int) *Snapshot {
	return &Snapshot{HLL: &HLL{}, Sample: NewReservoir(sampleSize)}
}

// Manager tracks per-index statistics under a KV subspace, cached in an
// ARC (adaptive replacement cache) so a planner consulting the same hot
// index's stats repeatedly doesn't re-read and re-deserialize the HLL
// register array on every call (spec §4.7, §11 domain-stack: ARC cache).
type Manager struct {
	subspace   tuple.Subspace
	sampleSize int
	cache      *arc.ARCCache[string, *Snapshot]
}

func NewManager(subspace tuple.Subspace, cacheSize, sampleSize int) (*Manager, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := arc.NewARC[string, *Snapshot](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Manager{subspace: subspace, sampleSize: sampleSize, cache: cache}, nil
}

func (m *Manager) countKey(indexName string) []byte {
	return m.subspace.Pack(tuple.Tuple{tuple.String(indexName), tuple.String("count")})
}

func (m *Manager) hllKey(indexName string) []byte {
	return m.subspace.Pack(tuple.Tuple{tuple.String(indexName), tuple.String("hll")})
}

// Observe records one indexed value for indexName, updating the cached
// snapshot and queuing the delta for Flush to persist (spec §4.7
// maintenance happens alongside the index write that produced the value).
func (m *Manager) Observe(indexName string, value tuple.Tuple) {
	snap, ok := m.cache.Get(indexName)
	if !ok {
		snap = newSnapshot(m.sampleSize)
		m.cache.Add(indexName, snap)
	}
	snap.EntryCount++
	snap.HLL.Add(tuple.Encode(value))
	snap.Sample.Observe(value)
}

// ObserveDelete records the removal of one indexed value, decrementing the
// exact count (the HLL and sample are not retracted: both are designed to
// tolerate being stale estimators, spec §4.7 "approximate").
func (m *Manager) ObserveDelete(indexName string) {
	snap, ok := m.cache.Get(indexName)
	if !ok {
		return
	}
	snap.EntryCount--
}

// Flush persists indexName's cached snapshot to tx. Call once per
// transaction per touched index, not once per Observe call.
func (m *Manager) Flush(ctx context.Context, tx kv.Tx, indexName string) {
	snap, ok := m.cache.Get(indexName)
	if !ok {
		return
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(snap.EntryCount))
	tx.Set(m.countKey(indexName), buf)
	tx.Set(m.hllKey(indexName), snap.HLL.Bytes())
}

// Load reads indexName's snapshot, preferring the cache and falling back
// to a KV read (spec §4.7 "survives a process restart").
func (m *Manager) Load(ctx context.Context, tx kv.Tx, indexName string) (*Snapshot, error) {
	if snap, ok := m.cache.Get(indexName); ok {
		return snap, nil
	}
	snap := newSnapshot(m.sampleSize)
	countBytes, err := tx.Get(ctx, m.countKey(indexName), false)
	if err != nil {
		return nil, err
	}
	if len(countBytes) == 8 {
		snap.EntryCount = int64(binary.BigEndian.Uint64(countBytes))
	}
	hllBytes, err := tx.Get(ctx, m.hllKey(indexName), false)
	if err != nil {
		return nil, err
	}
	if hllBytes != nil {
		snap.HLL = FromBytes(hllBytes)
	}
	m.cache.Add(indexName, snap)
	return snap, nil
}
