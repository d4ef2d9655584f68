// Package rangeindex implements the range-bound index infrastructure (spec
// §3 "Range-bound index", §4.6): an intersection-window calculator over
// comparisons on a Range-typed field's lowerBound/upperBound components,
// and the half-open byte-range translation an IndexScan needs to trim its
// KV scan to that window.
package rangeindex

import "github.com/erigontech/fdbrecord/tuple"

// Bound is one side of a window: a value and whether it is included.
type Bound struct {
	Value     tuple.Element
	Inclusive bool
}

// Window is the intersection of every constraint placed on one field's
// range component so far. A nil Lower/Upper means unbounded on that side.
type Window struct {
	Lower *Bound
	Upper *Bound
}

// Unbounded returns the window with no constraints on either side.
func Unbounded() Window { return Window{} }

// IntersectLower narrows w by a new bound on the lower side. Between two lower
// bounds the tighter (larger) one wins; ties prefer exclusivity.
func (w Window) IntersectLower(b Bound) Window {
	if w.Lower == nil {
		w.Lower = &b
		return w
	}
	cmp := tuple.CompareElements(b.Value, w.Lower.Value)
	switch {
	case cmp > 0:
		w.Lower = &b
	case cmp == 0 && !b.Inclusive:
		w.Lower = &b
	}
	return w
}

// IntersectUpper narrows w by a new bound on the upper side. Between two
// upper bounds the tighter (smaller) one wins; ties prefer exclusivity.
func (w Window) IntersectUpper(b Bound) Window {
	if w.Upper == nil {
		w.Upper = &b
		return w
	}
	cmp := tuple.CompareElements(b.Value, w.Upper.Value)
	switch {
	case cmp < 0:
		w.Upper = &b
	case cmp == 0 && !b.Inclusive:
		w.Upper = &b
	}
	return w
}

// IsEmpty reports whether the window's bounds have crossed, meaning the
// constraint set can never match any record (spec §4.6 "an empty
// intersection yields zero candidate rows, not an error").
func (w Window) IsEmpty() bool {
	if w.Lower == nil || w.Upper == nil {
		return false
	}
	cmp := tuple.CompareElements(w.Lower.Value, w.Upper.Value)
	if cmp > 0 {
		return true
	}
	if cmp == 0 && !(w.Lower.Inclusive && w.Upper.Inclusive) {
		return true
	}
	return false
}

// KeyRange translates the window into a half-open byte range under
// subspace, scoped beneath the caller-supplied grouping prefix (empty for
// an ungrouped range index). An exclusive upper bound is Pack(value); an
// inclusive one is Pack(value) with a trailing 0xFF so every key sharing
// that exact tuple value is included, mirroring Subspace.RangeFor's
// "prefix scan" convention. An unbounded side falls back to the
// subspace's own Range().
func (w Window) KeyRange(subspace tuple.Subspace, grouping tuple.Tuple) (begin, end []byte) {
	subBegin, subEnd := subspace.Range()
	begin, end = subBegin, subEnd

	if w.Lower != nil {
		t := append(append(tuple.Tuple{}, grouping...), w.Lower.Value)
		if w.Lower.Inclusive {
			begin = subspace.Pack(t)
		} else {
			b, _ := subspace.RangeFor(t)
			end2 := append([]byte{}, b...)
			end2 = append(end2, 0xFF)
			begin = end2 // first key strictly after every encoding of t
		}
	} else if len(grouping) > 0 {
		begin, _ = subspace.RangeFor(grouping)
	}

	if w.Upper != nil {
		t := append(append(tuple.Tuple{}, grouping...), w.Upper.Value)
		if w.Upper.Inclusive {
			_, e := subspace.RangeFor(t)
			end = e
		} else {
			end = subspace.Pack(t)
		}
	} else if len(grouping) > 0 {
		_, end = subspace.RangeFor(grouping)
	}

	return begin, end
}
