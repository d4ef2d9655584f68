// Package planner compiles a typed predicate/sort/limit query into a cost-
// estimated physical plan over a schema's readable indexes (spec §4.7). The
// predicate algebra below is the planner's only query surface: there is no
// string/SQL form, by design (spec §1 "no SQL surface").
package planner

import (
	"strings"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/tuple"
)

// CompareOp is one comparison a FieldCompare or KeyExpressionCompare leaf
// predicate applies.
type CompareOp uint8

const (
	Eq CompareOp = iota
	Neq
	Lt
	Lte
	Gt
	Gte
	StartsWith
)

// Predicate is the typed query algebra a TypedQuery's filter is built from
// (spec §4.7 "And | Or | Not | FieldCompare | KeyExpressionCompare |
// RangeOverlaps"). Evaluate lets Filter/FullScan plans post-filter a record
// in process; the planner additionally inspects a predicate's shape to
// choose index scans without ever evaluating it.
type Predicate[R any] interface {
	Evaluate(r R, acc fieldaccessor.FieldAccessor[R]) (bool, error)
}

// And is satisfied when every child is.
type And[R any] struct{ Children []Predicate[R] }

func (p And[R]) Evaluate(r R, acc fieldaccessor.FieldAccessor[R]) (bool, error) {
	for _, c := range p.Children {
		ok, err := c.Evaluate(r, acc)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Or is satisfied when any child is.
type Or[R any] struct{ Children []Predicate[R] }

func (p Or[R]) Evaluate(r R, acc fieldaccessor.FieldAccessor[R]) (bool, error) {
	for _, c := range p.Children {
		ok, err := c.Evaluate(r, acc)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Not negates Child.
type Not[R any] struct{ Child Predicate[R] }

func (p Not[R]) Evaluate(r R, acc fieldaccessor.FieldAccessor[R]) (bool, error) {
	ok, err := p.Child.Evaluate(r, acc)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// FieldCompare compares every element extract(r, Path) yields against Value;
// a repeated field matches if any element satisfies Op (spec §3 "Repeated
// fields yield a multi-element sequence" — this is the planner's own
// decision on existential-vs-universal semantics for comparing against a
// multi-valued field).
type FieldCompare[R any] struct {
	Path  string
	Op    CompareOp
	Value tuple.Element
}

func (p FieldCompare[R]) Evaluate(r R, acc fieldaccessor.FieldAccessor[R]) (bool, error) {
	values, err := acc.Extract(r, p.Path)
	if err != nil {
		return false, err
	}
	for _, t := range values {
		if len(t) == 0 {
			continue
		}
		if p.Op == StartsWith {
			if t[0].Kind == tuple.KindString && p.Value.Kind == tuple.KindString && strings.HasPrefix(t[0].Str, p.Value.Str) {
				return true, nil
			}
			continue
		}
		if compareMatches(p.Op, tuple.CompareElements(t[0], p.Value)) {
			return true, nil
		}
	}
	return false, nil
}

// KeyExpressionCompare compares every tuple Expression yields against Value
// by full-tuple order, the way an index scan's key would be compared (spec
// §4.7 predicate algebra).
type KeyExpressionCompare[R any] struct {
	Expression fieldaccessor.KeyExpression[R]
	Op         CompareOp
	Value      tuple.Tuple
}

func (p KeyExpressionCompare[R]) Evaluate(r R, acc fieldaccessor.FieldAccessor[R]) (bool, error) {
	values, err := p.Expression.Evaluate(r, acc)
	if err != nil {
		return false, err
	}
	for _, t := range values {
		if compareMatches(p.Op, tuple.Compare(t, p.Value)) {
			return true, nil
		}
	}
	return false, nil
}

// RangeOverlaps is satisfied when the record's [Field.lowerBound,
// Field.upperBound] interval overlaps [Lower, Upper] (spec §4.6 "overlap
// query" against a Range-typed field).
type RangeOverlaps[R any] struct {
	Field string
	Lower tuple.Element
	Upper tuple.Element
}

func (p RangeOverlaps[R]) Evaluate(r R, acc fieldaccessor.FieldAccessor[R]) (bool, error) {
	lowers, err := acc.Extract(r, p.Field+".lowerBound")
	if err != nil {
		return false, err
	}
	uppers, err := acc.Extract(r, p.Field+".upperBound")
	if err != nil {
		return false, err
	}
	if len(lowers) == 0 || len(uppers) == 0 {
		return false, nil
	}
	recLower, recUpper := lowers[0], uppers[0]
	// overlap iff recLower <= queryUpper && recUpper >= queryLower
	return tuple.CompareElements(recLower, p.Upper) <= 0 && tuple.CompareElements(recUpper, p.Lower) >= 0, nil
}

func compareMatches(op CompareOp, cmp int) bool {
	switch op {
	case Eq:
		return cmp == 0
	case Neq:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Lte:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Gte:
		return cmp >= 0
	case StartsWith:
		return cmp == 0
	default:
		return false
	}
}

// SortField is one component of a requested sort order.
type SortField struct {
	Path       string
	Descending bool
}

// SortSpec is a TypedQuery's requested output order (spec §4.7/§4.8; NULL
// sorts less than any non-null value, per the tuple encoding's own Kind
// ordering — no special case needed here).
type SortSpec struct {
	Fields []SortField
}

// TypedQuery is the planner's input (spec §4.7).
type TypedQuery[R any] struct {
	Predicate Predicate[R]
	Sort      *SortSpec
	Limit     int
}
