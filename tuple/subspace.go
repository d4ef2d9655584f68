package tuple

import (
	"bytes"

	"github.com/erigontech/fdbrecord/apperr"
)

// Subspace is an immutable byte prefix under which a set of keys is
// organized (spec §3, glossary). Extending a subspace with a tuple yields a
// new subspace; the zero value is the root subspace (empty prefix).
type Subspace struct {
	prefix []byte
}

// NewSubspace builds a root subspace from a caller-supplied byte prefix
// (the directory-layer-resolved prefix; directory namespacing itself is out
// of this module's scope per spec §1).
func NewSubspace(prefix []byte) Subspace {
	cp := make([]byte, len(prefix))
	copy(cp, prefix)
	return Subspace{prefix: cp}
}

// Sub extends the subspace with an additional tuple, returning a new
// subspace; the receiver is unchanged.
func (s Subspace) Sub(t Tuple) Subspace {
	packed := s.Pack(t)
	return Subspace{prefix: packed}
}

// SubRaw extends the subspace with a raw byte suffix, for namespacing below
// the tuple layer (e.g. the vector index's "vec"/"edges"/"entry" regions).
func (s Subspace) SubRaw(suffix []byte) Subspace {
	out := make([]byte, 0, len(s.prefix)+len(suffix))
	out = append(out, s.prefix...)
	out = append(out, suffix...)
	return Subspace{prefix: out}
}

// Bytes returns the subspace's raw prefix.
func (s Subspace) Bytes() []byte { return s.prefix }

// Pack returns prefix ++ encode(t) (spec §4.1).
func (s Subspace) Pack(t Tuple) []byte {
	enc := Encode(t)
	out := make([]byte, 0, len(s.prefix)+len(enc))
	out = append(out, s.prefix...)
	out = append(out, enc...)
	return out
}

// Unpack removes the subspace's prefix from key (strict-checking it) and
// decodes the remainder as a tuple.
func (s Subspace) Unpack(key []byte) (Tuple, error) {
	if !bytes.HasPrefix(key, s.prefix) {
		return nil, apperr.NewDecodeError(0, "key does not belong to subspace")
	}
	return Decode(key[len(s.prefix):])
}

// Range returns the half-open byte range [begin, end) covering every key in
// the subspace (spec §3: "(prefix, prefix + 0xFF)").
func (s Subspace) Range() (begin, end []byte) {
	begin = append([]byte{}, s.prefix...)
	end = append([]byte{}, s.prefix...)
	end = append(end, 0xFF)
	return begin, end
}

// RangeFor returns the half-open byte range covering every key whose tuple
// begins with t, i.e. a prefix scan scoped below t (spec §4.8 IndexScan).
func (s Subspace) RangeFor(t Tuple) (begin, end []byte) {
	p := s.Pack(t)
	begin = p
	end = append(append([]byte{}, p...), 0xFF)
	return begin, end
}

// Contains reports whether key lies within the subspace's byte range.
func (s Subspace) Contains(key []byte) bool {
	return bytes.HasPrefix(key, s.prefix)
}
