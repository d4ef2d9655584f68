package tuple

import "bytes"

// Compare orders two tuples the same way their encodings sort
// lexicographically; exposed so callers (the range-window calculator,
// rank-index rank-by-position) can compare tuples without paying for an
// encode round-trip when they already hold decoded Elements.
func Compare(a, b Tuple) int {
	return bytes.Compare(Encode(a), Encode(b))
}

// CompareElements orders two elements of the same Kind the way their
// encodings sort. Comparing elements of different Kind falls back to tag
// order, matching Encode's byte-level behavior.
func CompareElements(a, b Element) int {
	return bytes.Compare(appendElement(nil, a), appendElement(nil, b))
}
