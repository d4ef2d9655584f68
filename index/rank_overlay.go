package index

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

// rankEntry orders by the packed (grouping ++ score ++ pk) key bytes, the
// same order the rank index's KV entries sort in.
type rankEntry struct{ key []byte }

func (e rankEntry) Less(other btree.Item) bool {
	return bytes.Compare(e.key, other.(rankEntry).key) < 0
}

// RankOverlay is an optional in-memory accelerator for RankMaintainer.RankOf,
// built from a transaction snapshot, so repeated rank queries against a
// mostly-static ranking don't each pay for a full KV prefix count (spec
// §4.4 "may be overlaid by an in-memory ordered structure... optional").
// It does not participate in transaction isolation: callers that need a
// point-in-time-consistent view should rebuild it from a single snapshot
// range scan before use.
type RankOverlay struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

func NewRankOverlay() *RankOverlay {
	return &RankOverlay{tree: btree.New(32)}
}

func (o *RankOverlay) Insert(key []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tree.ReplaceOrInsert(rankEntry{key: append([]byte{}, key...)})
}

func (o *RankOverlay) Delete(key []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tree.Delete(rankEntry{key: key})
}

// RankOf returns the count of keys strictly less than bound, scoped to the
// caller-chosen prefix range by bounding both ends with AscendRange.
func (o *RankOverlay) RankOf(groupBegin, bound []byte) int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var count int64
	o.tree.AscendRange(rankEntry{key: groupBegin}, rankEntry{key: bound}, func(_ btree.Item) bool {
		count++
		return true
	})
	return count
}
