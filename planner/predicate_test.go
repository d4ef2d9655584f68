package planner

import (
	"testing"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/stretchr/testify/require"
)

type widget struct {
	City  string
	Price int64
}

type widgetAccessor struct{}

func (widgetAccessor) Extract(r widget, path string) ([]tuple.Tuple, error) {
	switch path {
	case "city":
		return []tuple.Tuple{{tuple.String(r.City)}}, nil
	case "price":
		return []tuple.Tuple{{tuple.Int(r.Price)}}, nil
	default:
		return nil, nil
	}
}

func TestAndEvaluatesAllChildren(t *testing.T) {
	acc := widgetAccessor{}
	p := And[widget]{Children: []Predicate[widget]{
		FieldCompare[widget]{Path: "city", Op: Eq, Value: tuple.String("Tokyo")},
		FieldCompare[widget]{Path: "price", Op: Gte, Value: tuple.Int(100)},
	}}
	ok, err := p.Evaluate(widget{City: "Tokyo", Price: 150}, acc)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Evaluate(widget{City: "Tokyo", Price: 50}, acc)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNotNegatesChild(t *testing.T) {
	acc := widgetAccessor{}
	p := Not[widget]{Child: FieldCompare[widget]{Path: "city", Op: Eq, Value: tuple.String("Tokyo")}}
	ok, err := p.Evaluate(widget{City: "Osaka"}, acc)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNormalizeFlattensNestedAnd(t *testing.T) {
	inner := And[widget]{Children: []Predicate[widget]{
		FieldCompare[widget]{Path: "a", Op: Eq},
		FieldCompare[widget]{Path: "b", Op: Eq},
	}}
	outer := And[widget]{Children: []Predicate[widget]{inner, FieldCompare[widget]{Path: "c", Op: Eq}}}
	normalized := Normalize[widget](outer).(And[widget])
	require.Len(t, normalized.Children, 3)
}

func TestNormalizePushesNotThroughAndViaDeMorgan(t *testing.T) {
	p := Not[widget]{Child: And[widget]{Children: []Predicate[widget]{
		FieldCompare[widget]{Path: "a", Op: Eq},
		FieldCompare[widget]{Path: "b", Op: Eq},
	}}}
	normalized := Normalize[widget](p)
	or, ok := normalized.(Or[widget])
	require.True(t, ok)
	require.Len(t, or.Children, 2)
	for _, c := range or.Children {
		_, isNot := c.(Not[widget])
		require.True(t, isNot)
	}
}

func TestRangeOverlapsDetectsOverlap(t *testing.T) {
	acc := rangeAccessor{lo: 10, hi: 20}
	p := RangeOverlaps[rangeRecord]{Field: "window", Lower: tuple.Int(15), Upper: tuple.Int(30)}
	ok, err := p.Evaluate(rangeRecord{}, acc)
	require.NoError(t, err)
	require.True(t, ok)

	p2 := RangeOverlaps[rangeRecord]{Field: "window", Lower: tuple.Int(100), Upper: tuple.Int(200)}
	ok, err = p2.Evaluate(rangeRecord{}, acc)
	require.NoError(t, err)
	require.False(t, ok)
}

type rangeRecord struct{}

type rangeAccessor struct{ lo, hi int64 }

func (a rangeAccessor) Extract(r rangeRecord, path string) ([]tuple.Tuple, error) {
	switch path {
	case "window.lowerBound":
		return []tuple.Tuple{{tuple.Int(a.lo)}}, nil
	case "window.upperBound":
		return []tuple.Tuple{{tuple.Int(a.hi)}}, nil
	default:
		return nil, nil
	}
}

var _ fieldaccessor.FieldAccessor[widget] = widgetAccessor{}
