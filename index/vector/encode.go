// Package vector implements the HNSW-backed vector index maintainer (spec
// §4.4 "vector index", §4.9 algorithm notes). Its graph lives entirely in
// the KV store under the index's subspace: nodes are addressed by their
// record's primary key tuple, never by an in-process pointer, so the graph
// survives across transactions and processes exactly like every other
// index kind.
package vector

import (
	"encoding/binary"
	"math"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/tuple"
)

func extractVector(t tuple.Tuple, dims int) ([]float64, error) {
	if len(t) != dims {
		return nil, apperr.ErrDimensionMismatch
	}
	out := make([]float64, dims)
	for i, e := range t {
		if e.Kind != tuple.KindFloat {
			return nil, apperr.NewInternal("vector index: expression element is not a float").WithField("")
		}
		out[i] = e.Float
	}
	return out, nil
}

func encodeVector(v []float64, layer int) []byte {
	buf := make([]byte, 4+8*len(v))
	binary.BigEndian.PutUint32(buf[:4], uint32(layer))
	for i, f := range v {
		binary.BigEndian.PutUint64(buf[4+8*i:12+8*i], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) (v []float64, layer int, ok bool) {
	if len(b) < 4 || (len(b)-4)%8 != 0 {
		return nil, 0, false
	}
	layer = int(binary.BigEndian.Uint32(b[:4]))
	n := (len(b) - 4) / 8
	v = make([]float64, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float64frombits(binary.BigEndian.Uint64(b[4+8*i : 12+8*i]))
	}
	return v, layer, true
}

func encodeNeighbors(pks []tuple.Tuple) []byte {
	elems := make(tuple.Tuple, len(pks))
	for i, pk := range pks {
		elems[i] = tuple.Nested(pk)
	}
	return tuple.Encode(elems)
}

func decodeNeighbors(b []byte) ([]tuple.Tuple, error) {
	t, err := tuple.Decode(b)
	if err != nil {
		return nil, err
	}
	out := make([]tuple.Tuple, len(t))
	for i, e := range t {
		out[i] = e.Nested
	}
	return out, nil
}

func encodeEntry(pk tuple.Tuple, topLayer int) []byte {
	t := tuple.Tuple{tuple.Int(int64(topLayer)), tuple.Nested(pk)}
	return tuple.Encode(t)
}

func decodeEntry(b []byte) (pk tuple.Tuple, topLayer int, ok bool) {
	t, err := tuple.Decode(b)
	if err != nil || len(t) != 2 {
		return nil, 0, false
	}
	return t[1].Nested, int(t[0].Int), true
}
