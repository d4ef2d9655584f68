package planner

import (
	"crypto/sha256"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheKey hashes (predicate_shape, sort_spec, limit, metadata_version)
// into a stable string, so the plan cache is invalidated automatically
// whenever the schema's version changes (spec §4.7 "Plan cache").
func cacheKey[R any](recordType string, q TypedQuery[R], metadataVersion int) string {
	h := sha256.New()
	fmt.Fprintf(h, "rt=%s\n", recordType)
	writePredicateShape(h, q.Predicate)
	if q.Sort != nil {
		for _, f := range q.Sort.Fields {
			fmt.Fprintf(h, "sort:%s:%v\n", f.Path, f.Descending)
		}
	}
	fmt.Fprintf(h, "limit=%d\n", q.Limit)
	fmt.Fprintf(h, "v=%d\n", metadataVersion)
	return string(h.Sum(nil))
}

// writePredicateShape hashes a predicate's structural shape: operator
// kinds, field paths, and comparison operators, but not literal values
// (spec §4.7: the cache key is a hash of "predicate_shape", not the
// literal predicate — two queries differing only in the constant an
// equality compares against should share one cached plan).
func writePredicateShape[R any](w io.Writer, p Predicate[R]) {
	switch v := p.(type) {
	case nil:
		fmt.Fprint(w, "nil;")
	case And[R]:
		fmt.Fprint(w, "and(")
		for _, c := range v.Children {
			writePredicateShape(w, c)
		}
		fmt.Fprint(w, ");")
	case Or[R]:
		fmt.Fprint(w, "or(")
		for _, c := range v.Children {
			writePredicateShape(w, c)
		}
		fmt.Fprint(w, ");")
	case Not[R]:
		fmt.Fprint(w, "not(")
		writePredicateShape(w, v.Child)
		fmt.Fprint(w, ");")
	case FieldCompare[R]:
		fmt.Fprintf(w, "fc(%s,%d);", v.Path, v.Op)
	case KeyExpressionCompare[R]:
		fmt.Fprintf(w, "kec(%d);", v.Op)
	case RangeOverlaps[R]:
		fmt.Fprintf(w, "ro(%s);", v.Field)
	default:
		fmt.Fprint(w, "leaf;")
	}
}

// planCache wraps an LRU of bounded size; cache hits skip statistics
// consultation entirely (spec §4.7 "A cache hit returns the cached plan
// without re-consulting statistics").
type planCache[R any] struct {
	lru *lru.Cache[string, *Plan[R]]
}

func newPlanCache[R any](size int) (*planCache[R], error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, *Plan[R]](size)
	if err != nil {
		return nil, err
	}
	return &planCache[R]{lru: c}, nil
}

func (c *planCache[R]) get(key string) (*Plan[R], bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

func (c *planCache[R]) put(key string, plan *Plan[R]) {
	if c == nil {
		return
	}
	c.lru.Add(key, plan)
}
