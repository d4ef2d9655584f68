// Package metadata declares the schema types the rest of the core consumes:
// record types, indexes (including range-bound, vector, and spatial), and
// former-index markers (spec §3, §6 "Schema").
package metadata

import (
	"fmt"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/pkg/errors"
)

// IndexKind is one of the eight index kinds the maintenance engine supports
// (spec §3).
type IndexKind uint8

const (
	KindValue IndexKind = iota
	KindCount
	KindSum
	KindVersion
	KindPermuted
	KindRank
	KindVector
	KindSpatial
)

func (k IndexKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindCount:
		return "count"
	case KindSum:
		return "sum"
	case KindVersion:
		return "version"
	case KindPermuted:
		return "permuted"
	case KindRank:
		return "rank"
	case KindVector:
		return "vector"
	case KindSpatial:
		return "spatial"
	default:
		return "unknown"
	}
}

// DistanceKind selects the distance function an index.Vector kind ranks by.
type DistanceKind uint8

const (
	DistanceEuclidean DistanceKind = iota
	DistanceCosine
	DistanceDotProduct
)

// VectorOptions configures a KindVector index (spec §4.4 HNSW).
type VectorOptions struct {
	Dimensions      int
	M               int // max neighbors per node
	EfConstruction  int
	EfSearch        int
	Distance        DistanceKind
	LevelMultiplier float64 // m_L in spec §4.4; defaults to 1/ln(2) if zero
}

// SpatialOptions configures a KindSpatial index (spec §4.4, §4.9).
type SpatialOptions struct {
	Dimensions        int // 2 or 3
	AxisRanges        [][2]float64
	ClipOutOfRange    bool // if false, out-of-range coordinates fail with CoordinateOutOfRange
	MaxDepth          int  // default 16, spec §4.9
	MaxCoveringRanges int  // default 100, spec §4.9
}

// RangeMetadata marks an index as bound to one endpoint of a Range-typed
// field (spec §3 "Range-bound index").
type RangeMetadata struct {
	Component   fieldaccessor.RangeComponent
	Boundary    fieldaccessor.BoundaryType
	ParentField string
}

// Index describes one maintained index (spec §3 "Index").
type Index[R any] struct {
	Name           string
	Kind           IndexKind
	Expression     fieldaccessor.KeyExpression[R]
	RecordTypes    []string // optional filter; empty means all record types
	Unique         bool
	Permutation    []int // KindPermuted only
	Vector         VectorOptions
	Spatial        SpatialOptions
	CoveringFields []string // optional: fields this index's key already carries; declared only, no scan reads it and every IndexScan loads the full record
	Range          *RangeMetadata
}

// AppliesTo reports whether this index maintains entries for recordType.
func (idx Index[R]) AppliesTo(recordType string) bool {
	if len(idx.RecordTypes) == 0 {
		return true
	}
	for _, t := range idx.RecordTypes {
		if t == recordType {
			return true
		}
	}
	return false
}

// FormerIndex records a retired index name (spec §3 "Former index").
type FormerIndex struct {
	Name             string
	AddedAtVersion   int
	RemovedAtVersion int
}

// RecordType declares a record type's primary key expression and the set of
// field paths whose value is Range-typed (needed to enforce
// DirectRangeIndexForbidden at registration time, since the generic
// FieldAccessor contract gives the core no other way to learn a field's
// type).
type RecordType[R any] struct {
	Name        string
	PrimaryKey  fieldaccessor.KeyExpression[R]
	RangeFields map[string]bool

	// VersionIndex, if set, names a KindVersion index (declared in the
	// same schema, scoped to this record type) the record store consults
	// for load_with_version (spec §4.3).
	VersionIndex string

	// Fields optionally declares every field path this record type
	// carries, the way RangeFields declares which of them are
	// Range-typed. Nil means "undeclared"; schemaevolution's FieldRemoved
	// check only fires between two schema snapshots that both declare it.
	Fields map[string]bool
}

// Schema is the full set of record types, indexes, and former indexes for
// one record store instance (spec §6 "Schema").
type Schema[R any] struct {
	Version       int
	RecordTypes   map[string]RecordType[R]
	Indexes       map[string]Index[R]
	FormerIndexes []FormerIndex
}

// NewSchema builds an empty schema at version 1.
func NewSchema[R any]() *Schema[R] {
	return &Schema[R]{
		Version:     1,
		RecordTypes: map[string]RecordType[R]{},
		Indexes:     map[string]Index[R]{},
	}
}

// AddRecordType registers a record type.
func (s *Schema[R]) AddRecordType(rt RecordType[R]) {
	s.RecordTypes[rt.Name] = rt
}

// AddIndex registers idx, enforcing DirectRangeIndexForbidden (spec §4.6)
// and FormerIndexConflict (spec §4.11) at registration time.
func (s *Schema[R]) AddIndex(idx Index[R]) error {
	for _, former := range s.FormerIndexes {
		if former.Name == idx.Name {
			return errors.Wrapf(apperr.ErrSchemaIncompatible, "former index conflict: index name %q was retired at version %d", idx.Name, former.RemovedAtVersion)
		}
	}
	if idx.Range == nil {
		for _, recordTypeName := range recordTypesFor(s, idx) {
			rt, ok := s.RecordTypes[recordTypeName]
			if !ok {
				continue
			}
			for _, leaf := range leafFieldPaths[R](idx.Expression, "") {
				if rt.RangeFields[leaf] {
					return errors.Wrapf(apperr.ErrDirectRangeIndexForbidden,
						"index %q on record type %q targets range field %q directly; select %q.lowerBound or %q.upperBound instead",
						idx.Name, recordTypeName, leaf, leaf, leaf)
				}
			}
		}
	}
	s.Indexes[idx.Name] = idx
	return nil
}

func recordTypesFor[R any](s *Schema[R], idx Index[R]) []string {
	if len(idx.RecordTypes) > 0 {
		return idx.RecordTypes
	}
	names := make([]string, 0, len(s.RecordTypes))
	for name := range s.RecordTypes {
		names = append(names, name)
	}
	return names
}

// AddFormerIndex records a retired index name, rejecting a collision with a
// currently-live index (spec §4.11 FormerIndexConflict).
func (s *Schema[R]) AddFormerIndex(f FormerIndex) error {
	if _, live := s.Indexes[f.Name]; live {
		return errors.Wrapf(apperr.ErrSchemaIncompatible, "former index conflict: %q is still a live index", f.Name)
	}
	s.FormerIndexes = append(s.FormerIndexes, f)
	return nil
}

func (idx Index[R]) String() string {
	return fmt.Sprintf("Index{%s kind=%s unique=%v}", idx.Name, idx.Kind, idx.Unique)
}
