// Package memkv is an in-memory, order-preserving reference implementation
// of kv.KVStore, used by every test in this repository and by cmd/recordctl.
// It is not the production KV store the core spec contracts against (spec
// §1 explicitly treats the KV store as an external collaborator) — it
// exists so the record store, index maintainers, planner, and online
// indexer have something concrete to run against without a real
// transactional KV service.
//
// Ordering is kept with github.com/tidwall/btree the way the teacher keeps
// in-memory ordered structures; optimistic-concurrency conflict detection
// is approximated with a read-set/write-log check rather than true MVCC.
package memkv

import (
	"bytes"
	"context"
	"sync"

	"github.com/erigontech/fdbrecord/kv"
	"github.com/tidwall/btree"
)

type entry struct {
	key   []byte
	value []byte
}

func lessEntry(a, b entry) bool { return bytes.Compare(a.key, b.key) < 0 }

// Store is a process-local, serializable-by-validation ordered KV store.
type Store struct {
	mu       sync.Mutex
	data     *btree.BTreeG[entry]
	version  uint64
	writeLog []writeLogEntry
}

type writeLogEntry struct {
	key     []byte
	version uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{data: btree.NewBTreeG[entry](lessEntry)}
}

// BeginTransaction starts a new transaction against a point-in-time snapshot
// of the store (spec §6 KVStore.begin_transaction).
func (s *Store) BeginTransaction(ctx context.Context) (kv.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Tx{
		store:        s,
		snapshot:     s.data.Copy(),
		beginVersion: s.version,
		pending:      map[string]*[]byte{},
		atomicAdds:   map[string]int64{},
		readSet:      map[string]uint64{},
	}, nil
}

// versionOf returns the version at which key was last written, or 0 if
// never written. Must be called with s.mu held.
func (s *Store) versionOf(key []byte) uint64 {
	for i := len(s.writeLog) - 1; i >= 0; i-- {
		if bytes.Equal(s.writeLog[i].key, key) {
			return s.writeLog[i].version
		}
	}
	return 0
}

// rangeWrittenSince reports whether any key in [begin, end) was written at a
// version strictly greater than sinceVersion. Must be called with s.mu held.
func (s *Store) rangeWrittenSince(begin, end []byte, sinceVersion uint64) bool {
	for _, w := range s.writeLog {
		if w.version <= sinceVersion {
			continue
		}
		if bytes.Compare(w.key, begin) >= 0 && (end == nil || bytes.Compare(w.key, end) < 0) {
			return true
		}
	}
	return false
}
