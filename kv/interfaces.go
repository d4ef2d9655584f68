// Package kv declares the downward contract the core consumes from the
// underlying ordered KV store: transactions, range scans, atomic mutations,
// and versionstamps (spec §1, §6). The core never assumes a concrete store;
// kv/memkv provides the in-memory reference implementation this repo tests
// and demonstrates against.
package kv

import "context"

// KVStore opens transactions against the store (spec §6 KVStore.begin_transaction).
type KVStore interface {
	BeginTransaction(ctx context.Context) (Tx, error)
}

// KVPair is one key/value pair returned from a range scan.
type KVPair struct {
	Key   []byte
	Value []byte
}

// Iterator streams key/value pairs in key order. Cursors in execplan hold
// one of these per child stream (spec §4.8).
type Iterator interface {
	// Next advances and returns the next pair; ok is false at end of range.
	Next() (pair KVPair, ok bool, err error)
	Close()
}

// Tx is one KV-store transaction (spec §6). A transaction is not safe for
// concurrent use by more than one goroutine at a time (spec §5 "Transaction
// handles: owned by the caller; never shared across tasks").
type Tx interface {
	// Get reads key. snapshot reads bypass this transaction's conflict
	// detection (used for optimistic-concurrency version checks and
	// maintainer uniqueness probes, spec §4.3, §4.4).
	Get(ctx context.Context, key []byte, snapshot bool) ([]byte, error)

	// GetRange streams [begin, end); limit <= 0 means unlimited.
	GetRange(ctx context.Context, begin, end []byte, limit int, snapshot bool) (Iterator, error)

	Set(key, value []byte)
	Clear(key []byte)
	ClearRange(begin, end []byte)

	// AtomicAdd adds delta to the little-endian int64 stored at key,
	// treating an absent key as zero (spec §4.4 count/sum maintainers).
	AtomicAdd(key []byte, delta int64)

	// AtomicSetVersionstampedKey writes value at a key built from
	// keyTemplate, with the template's embedded incomplete versionstamp
	// (tuple.IncompleteVS) replaced by the store-assigned commit version at
	// commit time (spec §4.4 version-index maintainer, spec §3 "Versionstamp").
	AtomicSetVersionstampedKey(keyTemplate, value []byte)

	Commit(ctx context.Context) error
	Cancel()
}
