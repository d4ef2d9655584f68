package metadata

import (
	"testing"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type event struct{}

func TestDirectRangeIndexForbidden(t *testing.T) {
	s := NewSchema[event]()
	s.AddRecordType(RecordType[event]{
		Name:        "Event",
		PrimaryKey:  fieldaccessor.FieldKey[event]("id"),
		RangeFields: map[string]bool{"period": true},
	})
	err := s.AddIndex(Index[event]{
		Name:       "byPeriod",
		Kind:       KindValue,
		Expression: fieldaccessor.FieldKey[event]("period"),
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrDirectRangeIndexForbidden))
	require.Contains(t, err.Error(), "lowerBound")
	require.Contains(t, err.Error(), "upperBound")
}

func TestRangeBoundIndexAllowed(t *testing.T) {
	s := NewSchema[event]()
	s.AddRecordType(RecordType[event]{
		Name:        "Event",
		PrimaryKey:  fieldaccessor.FieldKey[event]("id"),
		RangeFields: map[string]bool{"period": true},
	})
	err := s.AddIndex(Index[event]{
		Name:       "byPeriodLower",
		Kind:       KindValue,
		Expression: fieldaccessor.RangeKey[event]("period", fieldaccessor.LowerBound, fieldaccessor.HalfOpen),
		Range:      &RangeMetadata{Component: fieldaccessor.LowerBound, Boundary: fieldaccessor.HalfOpen, ParentField: "period"},
	})
	require.NoError(t, err)
}

func TestFormerIndexConflictWithLiveIndex(t *testing.T) {
	s := NewSchema[event]()
	require.NoError(t, s.AddIndex(Index[event]{Name: "byCity", Kind: KindValue, Expression: fieldaccessor.FieldKey[event]("city")}))
	err := s.AddFormerIndex(FormerIndex{Name: "byCity", RemovedAtVersion: 2})
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrSchemaIncompatible))
}

func TestFormerIndexConflictOnReuse(t *testing.T) {
	s := NewSchema[event]()
	require.NoError(t, s.AddFormerIndex(FormerIndex{Name: "byCity", RemovedAtVersion: 2}))
	err := s.AddIndex(Index[event]{Name: "byCity", Kind: KindValue, Expression: fieldaccessor.FieldKey[event]("city")})
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrSchemaIncompatible))
}
