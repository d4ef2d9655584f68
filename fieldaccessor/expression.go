package fieldaccessor

import "github.com/erigontech/fdbrecord/tuple"

// RangeComponent selects one endpoint of a Range-typed field (spec §3
// "range-bound index").
type RangeComponent uint8

const (
	LowerBound RangeComponent = iota
	UpperBound
)

func (c RangeComponent) String() string {
	if c == LowerBound {
		return "lowerBound"
	}
	return "upperBound"
}

// BoundaryType records whether a range endpoint is half-open or closed
// (spec §3 rangeMetadata.boundaryType).
type BoundaryType uint8

const (
	HalfOpen BoundaryType = iota
	Closed
)

// KeyExpression evaluates over a record to a sequence of tuples; an index
// key is the concatenation of the evaluated tuple with the record's primary
// key (spec §4.2).
type KeyExpression[R any] interface {
	Evaluate(r R, acc FieldAccessor[R]) ([]tuple.Tuple, error)
}

// FieldKeyExpr evaluates to the sequence at path.
type FieldKeyExpr[R any] struct{ Path string }

func FieldKey[R any](path string) FieldKeyExpr[R] { return FieldKeyExpr[R]{Path: path} }

func (e FieldKeyExpr[R]) Evaluate(r R, acc FieldAccessor[R]) ([]tuple.Tuple, error) {
	return acc.Extract(r, e.Path)
}

// ConcatenateExpr takes the Cartesian product over its children, yielding
// one result tuple per combination (spec §4.2).
type ConcatenateExpr[R any] struct{ Children []KeyExpression[R] }

func Concatenate[R any](children ...KeyExpression[R]) ConcatenateExpr[R] {
	return ConcatenateExpr[R]{Children: children}
}

func (e ConcatenateExpr[R]) Evaluate(r R, acc FieldAccessor[R]) ([]tuple.Tuple, error) {
	results := [][]tuple.Tuple{{{}}} // seed: one empty-tuple combination
	for _, child := range e.Children {
		childResults, err := child.Evaluate(r, acc)
		if err != nil {
			return nil, err
		}
		results = cartesianAppend(results, childResults)
	}
	out := make([]tuple.Tuple, 0, len(results))
	for _, combo := range results {
		out = append(out, tuple.Concat(combo...))
	}
	return out, nil
}

func cartesianAppend(existing [][]tuple.Tuple, next []tuple.Tuple) [][]tuple.Tuple {
	if len(next) == 0 {
		return nil
	}
	out := make([][]tuple.Tuple, 0, len(existing)*len(next))
	for _, combo := range existing {
		for _, n := range next {
			merged := make([]tuple.Tuple, 0, len(combo)+1)
			merged = append(merged, combo...)
			merged = append(merged, n)
			out = append(out, merged)
		}
	}
	return out
}

// EmptyExpr yields exactly one empty tuple (spec §4.2); useful as the base
// key expression for a record type with no additional index material.
type EmptyExpr[R any] struct{}

func Empty[R any]() EmptyExpr[R] { return EmptyExpr[R]{} }

func (e EmptyExpr[R]) Evaluate(_ R, _ FieldAccessor[R]) ([]tuple.Tuple, error) {
	return []tuple.Tuple{{}}, nil
}

// NestExpr evaluates child within the nested record at parent: every leaf
// FieldKey/RangeKey path in child is evaluated against "parent.<path>"
// instead of "<path>" (spec §4.2).
type NestExpr[R any] struct {
	Parent string
	Child  KeyExpression[R]
}

func Nest[R any](parent string, child KeyExpression[R]) NestExpr[R] {
	return NestExpr[R]{Parent: parent, Child: child}
}

func (e NestExpr[R]) Evaluate(r R, acc FieldAccessor[R]) ([]tuple.Tuple, error) {
	return prefixPaths(e.Child, e.Parent).Evaluate(r, acc)
}

// prefixPaths rewrites every leaf path in expr to be rooted under prefix,
// so Nest can be implemented without a second, differently-typed record for
// the nested value.
func prefixPaths[R any](expr KeyExpression[R], prefix string) KeyExpression[R] {
	switch e := expr.(type) {
	case FieldKeyExpr[R]:
		return FieldKeyExpr[R]{Path: prefix + "." + e.Path}
	case RangeKeyExpr[R]:
		return RangeKeyExpr[R]{Parent: prefix + "." + e.Parent, Component: e.Component, Boundary: e.Boundary}
	case ConcatenateExpr[R]:
		children := make([]KeyExpression[R], len(e.Children))
		for i, c := range e.Children {
			children[i] = prefixPaths(c, prefix)
		}
		return ConcatenateExpr[R]{Children: children}
	case NestExpr[R]:
		return NestExpr[R]{Parent: prefix + "." + e.Parent, Child: e.Child}
	case EmptyExpr[R]:
		return e
	default:
		return expr
	}
}

// RangeKeyExpr evaluates to the chosen endpoint of a range-valued field
// (spec §4.2, §4.6).
type RangeKeyExpr[R any] struct {
	Parent    string
	Component RangeComponent
	Boundary  BoundaryType
}

func RangeKey[R any](parent string, component RangeComponent, boundary BoundaryType) RangeKeyExpr[R] {
	return RangeKeyExpr[R]{Parent: parent, Component: component, Boundary: boundary}
}

func (e RangeKeyExpr[R]) Evaluate(r R, acc FieldAccessor[R]) ([]tuple.Tuple, error) {
	return acc.Extract(r, e.Parent+"."+e.Component.String())
}
