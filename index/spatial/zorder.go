// Package spatial implements the Z-order (Morton code) spatial index
// maintainer (spec §4.4 "spatial index", §4.9 "bounding-box decomposition").
// Coordinates are normalized against the index's configured axis ranges,
// quantized, and bit-interleaved into a single fixed-width key so that a
// handful of contiguous KV range scans ("covering ranges") can answer a
// bounding-box query; the caller is expected to post-filter scan results
// against the exact predicate, since a covering range is a superset of the
// true query region (spec §4.9 "covering-range cap and post-filter").
package spatial

import (
	"math"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/holiman/uint256"
)

const bitsPerDim = 32 // 2-D: 64 total bits; 3-D: 96 bits, still well within uint256.

// quantize maps value's position within [lo, hi) to an integer in
// [0, 2^bitsPerDim). Out-of-range coordinates are clipped or rejected per
// opts.ClipOutOfRange (spec §4.9 CoordinateOutOfRange).
func quantize(value, lo, hi float64, clip bool) (uint32, error) {
	if hi <= lo {
		return 0, apperr.NewInternal("spatial index: axis range has zero or negative width")
	}
	if value < lo || value >= hi {
		if !clip {
			return 0, apperr.ErrCoordinateOutOfRange
		}
		if value < lo {
			value = lo
		} else {
			value = hi - (hi-lo)/float64(uint64(1)<<bitsPerDim)
		}
	}
	frac := (value - lo) / (hi - lo)
	q := uint64(frac * float64(uint64(1)<<bitsPerDim))
	if q >= uint64(1)<<bitsPerDim {
		q = uint64(1)<<bitsPerDim - 1
	}
	return uint32(q), nil
}

func dequantize(q uint32, lo, hi float64) float64 {
	frac := float64(q) / float64(uint64(1)<<bitsPerDim)
	return lo + frac*(hi-lo)
}

// interleave produces the Morton code for coords by taking one bit from
// each dimension in round-robin order, most significant bit first.
func interleave(coords []uint32) *uint256.Int {
	z := new(uint256.Int)
	for bit := bitsPerDim - 1; bit >= 0; bit-- {
		for _, c := range coords {
			z.Lsh(z, 1)
			if (c>>uint(bit))&1 == 1 {
				z.Or(z, uint256.NewInt(1))
			}
		}
	}
	return z
}

// deinterleave is interleave's inverse, used by CoveringRanges to compute a
// quad-tree node's coordinate bounds from its Morton-code prefix.
func deinterleave(z *uint256.Int, dims int) []uint32 {
	coords := make([]uint32, dims)
	tmp := new(uint256.Int).Set(z)
	for bit := 0; bit < bitsPerDim; bit++ {
		for d := dims - 1; d >= 0; d-- {
			if tmp.Bit(0) == 1 {
				coords[d] |= 1 << uint(bit)
			}
			tmp.Rsh(tmp, 1)
		}
	}
	return coords
}

// Key is the fixed-width, order-preserving byte encoding of a Morton code,
// suitable as a tuple.Bytes element (spec §4.9 "fixed-width key").
func Key(z *uint256.Int) []byte {
	b := z.Bytes32()
	return b[:]
}

// Encode computes the Z-order key bytes for coords under opts.
func Encode(opts metadata.SpatialOptions, coords []float64) ([]byte, error) {
	if len(coords) != opts.Dimensions || len(coords) != len(opts.AxisRanges) {
		return nil, apperr.NewInternal("spatial index: coordinate/axis-range arity mismatch")
	}
	q := make([]uint32, len(coords))
	for i, c := range coords {
		qi, err := quantize(c, opts.AxisRanges[i][0], opts.AxisRanges[i][1], opts.ClipOutOfRange)
		if err != nil {
			return nil, err
		}
		q[i] = qi
	}
	return Key(interleave(q)), nil
}

// node is one cell of the implicit quad/oct-tree over normalized space,
// identified by the Morton-code prefix fixed by the high `depth*dims` bits.
type node struct {
	prefix *uint256.Int // code with the undetermined low bits zeroed
	depth  int
}

func (n node) bounds(dims int) (lo, hi []uint32) {
	full := deinterleave(n.prefix, dims)
	span := uint32(1) << uint(bitsPerDim-n.depth)
	lo = make([]uint32, dims)
	hi = make([]uint32, dims)
	for d := range full {
		lo[d] = full[d]
		hi[d] = full[d] + span - 1
	}
	return lo, hi
}

func boundsOverlap(lo1, hi1, lo2, hi2 []uint32) bool {
	for d := range lo1 {
		if hi1[d] < lo2[d] || hi2[d] < lo1[d] {
			return false
		}
	}
	return true
}

func boundsContains(outerLo, outerHi, innerLo, innerHi []uint32) bool {
	for d := range outerLo {
		if innerLo[d] < outerLo[d] || innerHi[d] > outerHi[d] {
			return false
		}
	}
	return true
}

// CoveringRange is one contiguous [Begin, End) byte range over the index's
// Z-order keys that, in union with its siblings, is guaranteed to contain
// every point inside the query bounding box (and possibly some outside it,
// to be removed by the caller's post-filter).
type CoveringRange struct {
	Begin, End []byte
}

// CoveringRanges decomposes the bounding box [lo, hi) (in the index's own
// coordinate units, one pair per dimension) into at most opts.MaxCoveringRanges
// ranges over the Z-order key space (spec §4.9). Decomposition descends the
// implicit quad-tree up to opts.MaxDepth; a node that straddles the query
// box boundary but has run out of either depth budget or range budget is
// emitted whole, relying on the caller's post-filter to discard the excess.
func CoveringRanges(opts metadata.SpatialOptions, lo, hi []float64) ([]CoveringRange, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 16
	}
	maxRanges := opts.MaxCoveringRanges
	if maxRanges <= 0 {
		maxRanges = 100
	}
	dims := opts.Dimensions

	qLo := make([]uint32, dims)
	qHi := make([]uint32, dims)
	for i := 0; i < dims; i++ {
		lv, err := quantize(lo[i], opts.AxisRanges[i][0], opts.AxisRanges[i][1], true)
		if err != nil {
			return nil, err
		}
		hv, err := quantize(hi[i], opts.AxisRanges[i][0], opts.AxisRanges[i][1], true)
		if err != nil {
			return nil, err
		}
		qLo[i], qHi[i] = lv, hv
	}

	var out []CoveringRange
	emit := func(n node) {
		nLo, nHi := n.bounds(dims)
		begin := Key(n.prefix)
		span := uint32(1) << uint(bitsPerDim-n.depth)
		endCoords := make([]uint32, dims)
		for d := range nHi {
			endCoords[d] = nLo[d] + span
			if endCoords[d] < nLo[d] { // overflow at the top of the space
				endCoords[d] = 0xFFFFFFFF
			}
		}
		end := Key(interleave(endCoords))
		out = append(out, CoveringRange{Begin: begin, End: end})
	}

	var walk func(n node) bool // returns false once the range budget is exhausted
	walk = func(n node) bool {
		if len(out) >= maxRanges {
			return false
		}
		nLo, nHi := n.bounds(dims)
		if !boundsOverlap(nLo, nHi, qLo, qHi) {
			return true
		}
		if boundsContains(qLo, qHi, nLo, nHi) || n.depth >= maxDepth || len(out) == maxRanges-1 {
			emit(n)
			return true
		}
		children := 1 << uint(dims)
		for c := 0; c < children; c++ {
			childPrefix := new(uint256.Int).Set(n.prefix)
			bitPos := bitsPerDim*dims - (n.depth+1)*dims
			for d := 0; d < dims; d++ {
				if (c>>uint(dims-1-d))&1 == 1 {
					bit := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos+dims-1-d))
					childPrefix.Or(childPrefix, bit)
				}
			}
			if !walk(node{prefix: childPrefix, depth: n.depth + 1}) {
				return false
			}
		}
		return true
	}
	walk(node{prefix: new(uint256.Int), depth: 0})
	return out, nil
}

// HaversineMeters returns the great-circle distance between two WGS84
// lat/lon points in meters, for post-filtering a geodesic radius query
// (spec §4.9 "Haversine for geodesic radius").
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}
