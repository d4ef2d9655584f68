package fieldaccessor

import (
	"strings"
	"testing"

	"github.com/erigontech/fdbrecord/tuple"
	"github.com/stretchr/testify/require"
)

// stubRecord and stubAccessor give the expression tests a tiny record shape
// without depending on any serialization concern.
type stubRecord struct {
	fields map[string][]tuple.Tuple
}

type stubAccessor struct{}

func (stubAccessor) Extract(r stubRecord, path string) ([]tuple.Tuple, error) {
	if v, ok := r.fields[path]; ok {
		return v, nil
	}
	return nil, nil
}

func rec(pairs ...any) stubRecord {
	m := map[string][]tuple.Tuple{}
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i].(string)] = pairs[i+1].([]tuple.Tuple)
	}
	return stubRecord{fields: m}
}

func TestFieldKeyEvaluate(t *testing.T) {
	r := rec("city", []tuple.Tuple{{tuple.String("Tokyo")}})
	out, err := FieldKey[stubRecord]("city").Evaluate(r, stubAccessor{})
	require.NoError(t, err)
	require.Equal(t, []tuple.Tuple{{tuple.String("Tokyo")}}, out)
}

func TestConcatenateCartesianProduct(t *testing.T) {
	r := rec(
		"tags", []tuple.Tuple{{tuple.String("a")}, {tuple.String("b")}},
		"year", []tuple.Tuple{{tuple.Int(2020)}},
	)
	expr := Concatenate[stubRecord](FieldKey[stubRecord]("tags"), FieldKey[stubRecord]("year"))
	out, err := expr.Evaluate(r, stubAccessor{})
	require.NoError(t, err)
	require.ElementsMatch(t, []tuple.Tuple{
		{tuple.String("a"), tuple.Int(2020)},
		{tuple.String("b"), tuple.Int(2020)},
	}, out)
}

func TestEmptyYieldsOneEmptyTuple(t *testing.T) {
	out, err := Empty[stubRecord]().Evaluate(stubRecord{}, stubAccessor{})
	require.NoError(t, err)
	require.Equal(t, []tuple.Tuple{{}}, out)
}

func TestNestPrefixesChildPaths(t *testing.T) {
	r := rec("address.city", []tuple.Tuple{{tuple.String("Osaka")}})
	expr := Nest[stubRecord]("address", FieldKey[stubRecord]("city"))
	out, err := expr.Evaluate(r, stubAccessor{})
	require.NoError(t, err)
	require.Equal(t, []tuple.Tuple{{tuple.String("Osaka")}}, out)
}

func TestRangeKeyEvaluatesEndpointPath(t *testing.T) {
	r := rec("period.lowerBound", []tuple.Tuple{{tuple.Int(10)}})
	expr := RangeKey[stubRecord]("period", LowerBound, HalfOpen)
	out, err := expr.Evaluate(r, stubAccessor{})
	require.NoError(t, err)
	require.Equal(t, []tuple.Tuple{{tuple.Int(10)}}, out)
	require.True(t, strings.HasSuffix("period.lowerBound", expr.Component.String()))
}
