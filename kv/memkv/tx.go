package memkv

import (
	"bytes"
	"context"
	"encoding/binary"
	"sort"

	"github.com/erigontech/fdbrecord/kv"
	"github.com/tidwall/btree"
)

type versionstampWrite struct {
	template []byte
	value    []byte
}

// Tx implements kv.Tx against a Store snapshot.
type Tx struct {
	store        *Store
	snapshot     *btree.BTreeG[entry]
	beginVersion uint64

	pending    map[string]*[]byte // nil value = tombstone
	clears     [][2][]byte        // [begin,end) ranges cleared wholesale
	atomicAdds map[string]int64
	vsWrites   []versionstampWrite

	readSet    map[string]uint64 // point reads: key -> version observed
	rangeReads []rangeRead
	done       bool
}

type rangeRead struct {
	begin, end []byte
}

func (t *Tx) localLookup(key string) (val []byte, present bool) {
	if v, ok := t.pending[key]; ok {
		return *v, true // *v may be nil meaning tombstone; present=true tells caller "resolved locally"
	}
	for _, cr := range t.clears {
		if withinRange(key, cr[0], cr[1]) {
			return nil, true
		}
	}
	return nil, false
}

func withinRange(key string, begin, end []byte) bool {
	k := []byte(key)
	if bytes.Compare(k, begin) < 0 {
		return false
	}
	if end != nil && bytes.Compare(k, end) >= 0 {
		return false
	}
	return true
}

func (t *Tx) Get(ctx context.Context, key []byte, snapshot bool) ([]byte, error) {
	if v, present := t.localLookup(string(key)); present {
		return v, nil
	}
	e, ok := t.snapshot.Get(entry{key: key})
	if !snapshot {
		ver := t.store.versionOfLocked(key)
		t.readSet[string(key)] = ver
	}
	if !ok {
		return nil, nil
	}
	return e.value, nil
}

func (t *Tx) GetRange(ctx context.Context, begin, end []byte, limit int, snapshot bool) (kv.Iterator, error) {
	if !snapshot {
		t.rangeReads = append(t.rangeReads, rangeRead{begin: append([]byte{}, begin...), end: append([]byte{}, end...)})
	}
	merged := map[string][]byte{}
	t.snapshot.Ascend(entry{key: begin}, func(e entry) bool {
		if end != nil && bytes.Compare(e.key, end) >= 0 {
			return false
		}
		merged[string(e.key)] = e.value
		return true
	})
	for k, v := range t.pending {
		if withinRange(k, begin, end) {
			if v == nil {
				delete(merged, k)
			} else {
				merged[k] = *v
			}
		}
	}
	for _, cr := range t.clears {
		for k := range merged {
			if withinRange(k, cr[0], cr[1]) {
				delete(merged, k)
			}
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	pairs := make([]kv.KVPair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, kv.KVPair{Key: []byte(k), Value: merged[k]})
	}
	return &sliceIterator{pairs: pairs}, nil
}

func (t *Tx) Set(key, value []byte) {
	k := string(key)
	v := append([]byte{}, value...)
	t.pending[k] = &v
	delete(t.atomicAdds, k)
}

func (t *Tx) Clear(key []byte) {
	t.pending[string(key)] = nil
}

func (t *Tx) ClearRange(begin, end []byte) {
	t.clears = append(t.clears, [2][]byte{append([]byte{}, begin...), append([]byte{}, end...)})
	for k := range t.pending {
		if withinRange(k, begin, end) {
			delete(t.pending, k)
		}
	}
}

func (t *Tx) AtomicAdd(key []byte, delta int64) {
	t.atomicAdds[string(key)] += delta
}

func (t *Tx) AtomicSetVersionstampedKey(keyTemplate, value []byte) {
	t.vsWrites = append(t.vsWrites, versionstampWrite{
		template: append([]byte{}, keyTemplate...),
		value:    append([]byte{}, value...),
	})
}

func (t *Tx) Cancel() {
	t.done = true
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for key, ver := range t.readSet {
		if t.store.versionOf([]byte(key)) != ver {
			return kv.ConflictError
		}
	}
	for _, rr := range t.rangeReads {
		if t.store.rangeWrittenSince(rr.begin, rr.end, t.beginVersion) {
			return kv.ConflictError
		}
	}

	t.store.version++
	newVersion := t.store.version

	for k, v := range t.pending {
		if v == nil {
			t.store.data.Delete(entry{key: []byte(k)})
		} else {
			t.store.data.Set(entry{key: []byte(k), value: *v})
		}
		t.store.writeLog = append(t.store.writeLog, writeLogEntry{key: []byte(k), version: newVersion})
	}
	for _, cr := range t.clears {
		var toDelete [][]byte
		t.store.data.Ascend(entry{key: cr[0]}, func(e entry) bool {
			if cr[1] != nil && bytes.Compare(e.key, cr[1]) >= 0 {
				return false
			}
			toDelete = append(toDelete, e.key)
			return true
		})
		for _, k := range toDelete {
			t.store.data.Delete(entry{key: k})
			t.store.writeLog = append(t.store.writeLog, writeLogEntry{key: k, version: newVersion})
		}
	}
	for k, delta := range t.atomicAdds {
		cur := int64(0)
		if e, ok := t.store.data.Get(entry{key: []byte(k)}); ok && len(e.value) == 8 {
			cur = int64(binary.LittleEndian.Uint64(e.value))
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(cur+delta))
		t.store.data.Set(entry{key: []byte(k), value: buf})
		t.store.writeLog = append(t.store.writeLog, writeLogEntry{key: []byte(k), version: newVersion})
	}
	for _, vw := range t.vsWrites {
		key := append([]byte{}, vw.template...)
		offset, found := kv.FindIncompleteVersionstamp(key)
		if found {
			var tv [10]byte
			binary.BigEndian.PutUint64(tv[:8], newVersion)
			copy(key[offset:offset+10], tv[:])
			key[offset-1] = 0 // clear the incomplete flag
		}
		t.store.data.Set(entry{key: key, value: vw.value})
		t.store.writeLog = append(t.store.writeLog, writeLogEntry{key: key, version: newVersion})
	}

	t.done = true
	return nil
}

func (s *Store) versionOfLocked(key []byte) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versionOf(key)
}

type sliceIterator struct {
	pairs []kv.KVPair
	pos   int
}

func (it *sliceIterator) Next() (kv.KVPair, bool, error) {
	if it.pos >= len(it.pairs) {
		return kv.KVPair{}, false, nil
	}
	p := it.pairs[it.pos]
	it.pos++
	return p, true, nil
}

func (it *sliceIterator) Close() {}
