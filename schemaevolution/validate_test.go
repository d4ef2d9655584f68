package schemaevolution

import (
	"testing"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   int64
	Name string
	City string
}

type widgetPK struct{}

func (widgetPK) Evaluate(w widget, acc fieldaccessor.FieldAccessor[widget]) ([]tuple.Tuple, error) {
	return []tuple.Tuple{{tuple.Int(w.ID)}}, nil
}

func baseSchema() *metadata.Schema[widget] {
	s := metadata.NewSchema[widget]()
	s.AddRecordType(metadata.RecordType[widget]{
		Name:       "Widget",
		PrimaryKey: widgetPK{},
		Fields:     map[string]bool{"id": true, "name": true, "city": true},
	})
	_ = s.AddIndex(metadata.Index[widget]{Name: "byName", Kind: metadata.KindValue, Expression: fieldaccessor.FieldKey[widget]("name")})
	return s
}

func countErrors(result ValidationResult, kind ErrorKind) int {
	n := 0
	for _, e := range result.Errors {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestValidateAcceptsUnchangedSchema(t *testing.T) {
	old := baseSchema()
	result := Validate[widget](old, baseSchema(), false)
	require.True(t, result.IsValid)
	require.Empty(t, result.Errors)
}

func TestValidateFlagsRecordTypeRemoved(t *testing.T) {
	old := baseSchema()
	next := metadata.NewSchema[widget]()
	result := Validate[widget](old, next, false)
	require.False(t, result.IsValid)
	require.Equal(t, 1, countErrors(result, RecordTypeRemoved))
}

func TestValidateFlagsPrimaryKeyChanged(t *testing.T) {
	old := baseSchema()
	next := baseSchema()
	next.RecordTypes["Widget"] = metadata.RecordType[widget]{
		Name:       "Widget",
		PrimaryKey: fieldaccessor.Concatenate[widget](widgetPK{}, fieldaccessor.FieldKey[widget]("city")),
		Fields:     map[string]bool{"id": true, "name": true, "city": true},
	}
	result := Validate[widget](old, next, false)
	require.False(t, result.IsValid)
	require.Equal(t, 1, countErrors(result, PrimaryKeyChanged))
}

func TestValidateFlagsFieldRemoved(t *testing.T) {
	old := baseSchema()
	next := baseSchema()
	next.RecordTypes["Widget"] = metadata.RecordType[widget]{
		Name:       "Widget",
		PrimaryKey: widgetPK{},
		Fields:     map[string]bool{"id": true, "name": true},
	}
	result := Validate[widget](old, next, false)
	require.False(t, result.IsValid)
	require.Equal(t, 1, countErrors(result, FieldRemoved))
}

func TestValidateSkipsFieldRemovedWhenUndeclared(t *testing.T) {
	old := metadata.NewSchema[widget]()
	old.AddRecordType(metadata.RecordType[widget]{Name: "Widget", PrimaryKey: widgetPK{}})
	next := metadata.NewSchema[widget]()
	next.AddRecordType(metadata.RecordType[widget]{Name: "Widget", PrimaryKey: widgetPK{}})
	result := Validate[widget](old, next, false)
	require.True(t, result.IsValid)
}

func TestValidateFlagsIndexRemovedWithoutFormer(t *testing.T) {
	old := baseSchema()
	next := metadata.NewSchema[widget]()
	next.AddRecordType(metadata.RecordType[widget]{Name: "Widget", PrimaryKey: widgetPK{}, Fields: map[string]bool{"id": true, "name": true, "city": true}})
	result := Validate[widget](old, next, false)
	require.Equal(t, 1, countErrors(result, IndexRemovedWithoutFormer))
}

func TestValidateAllowsIndexRemovedWithFormer(t *testing.T) {
	old := baseSchema()
	next := metadata.NewSchema[widget]()
	next.AddRecordType(metadata.RecordType[widget]{Name: "Widget", PrimaryKey: widgetPK{}, Fields: map[string]bool{"id": true, "name": true, "city": true}})
	require.NoError(t, next.AddFormerIndex(metadata.FormerIndex{Name: "byName", AddedAtVersion: 1, RemovedAtVersion: 2}))
	result := Validate[widget](old, next, false)
	require.Equal(t, 0, countErrors(result, IndexRemovedWithoutFormer))
}

func TestValidateFlagsIndexFormatChanged(t *testing.T) {
	old := baseSchema()
	next := baseSchema()
	next.Indexes["byName"] = metadata.Index[widget]{Name: "byName", Kind: metadata.KindValue, Expression: fieldaccessor.FieldKey[widget]("city")}
	result := Validate[widget](old, next, false)
	require.Equal(t, 1, countErrors(result, IndexFormatChanged))
}

func TestValidateAllowsIndexFormatChangedWhenRebuildsAllowed(t *testing.T) {
	old := baseSchema()
	next := baseSchema()
	next.Indexes["byName"] = metadata.Index[widget]{Name: "byName", Kind: metadata.KindValue, Expression: fieldaccessor.FieldKey[widget]("city")}
	result := Validate[widget](old, next, true)
	require.Equal(t, 0, countErrors(result, IndexFormatChanged))
}

func TestValidateFlagsFormerIndexConflictNewIndexReusesRetiredName(t *testing.T) {
	old := baseSchema()
	require.NoError(t, old.AddFormerIndex(metadata.FormerIndex{Name: "byCity", AddedAtVersion: 1, RemovedAtVersion: 1}))
	next := baseSchema()
	next.Indexes["byCity"] = metadata.Index[widget]{Name: "byCity", Kind: metadata.KindValue, Expression: fieldaccessor.FieldKey[widget]("city")}
	result := Validate[widget](old, next, false)
	require.Equal(t, 1, countErrors(result, FormerIndexConflict))
}

func TestValidateFlagsFormerIndexConflictWithinNewSchema(t *testing.T) {
	old := baseSchema()
	next := baseSchema()
	next.Indexes["byCity"] = metadata.Index[widget]{Name: "byCity", Kind: metadata.KindValue, Expression: fieldaccessor.FieldKey[widget]("city")}
	next.FormerIndexes = append(next.FormerIndexes, metadata.FormerIndex{Name: "byCity", AddedAtVersion: 1, RemovedAtVersion: 2})
	result := Validate[widget](old, next, false)
	require.Equal(t, 1, countErrors(result, FormerIndexConflict))
}

func TestValidateCollectsMultipleViolationsInOnePass(t *testing.T) {
	old := baseSchema()
	old.AddRecordType(metadata.RecordType[widget]{Name: "Gadget", PrimaryKey: widgetPK{}, Fields: map[string]bool{"id": true}})

	next := metadata.NewSchema[widget]()
	next.AddRecordType(metadata.RecordType[widget]{
		Name:       "Widget",
		PrimaryKey: widgetPK{},
		Fields:     map[string]bool{"id": true, "name": true}, // city dropped
	})
	// Gadget record type removed entirely; byName index removed without former.

	result := Validate[widget](old, next, false)
	require.False(t, result.IsValid)
	require.Equal(t, 1, countErrors(result, RecordTypeRemoved))
	require.Equal(t, 1, countErrors(result, FieldRemoved))
	require.Equal(t, 1, countErrors(result, IndexRemovedWithoutFormer))
	require.Len(t, result.Errors, 3)
}
