// Package recordstore implements the record store (spec §3 "Record store",
// §4.3): save/load/delete against a schema's record types, maintaining
// every applicable index's entries as part of the same transaction, plus
// the raw full-scan query path execplan's cost-based plans run beneath.
package recordstore

import (
	"context"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/index"
	"github.com/erigontech/fdbrecord/index/spatial"
	"github.com/erigontech/fdbrecord/index/vector"
	"github.com/erigontech/fdbrecord/indexstate"
	"github.com/erigontech/fdbrecord/kv"
	"github.com/erigontech/fdbrecord/metadata"
	"github.com/erigontech/fdbrecord/stats"
	"github.com/erigontech/fdbrecord/tuple"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Store is the record store for one record type family R (spec §3).
type Store[R any] struct {
	subspace    tuple.Subspace
	dataSub     tuple.Subspace
	schema      *metadata.Schema[R]
	serializer  fieldaccessor.Serializer[R]
	accessor    fieldaccessor.FieldAccessor[R]
	indexState  *indexstate.Manager
	statsMgr    *stats.Manager
	logger      *zap.Logger
	maintainers map[string]index.Maintainer[R]
}

// New builds a Store over subspace for the given schema, applying opts
// (spec §11 functional-option configuration convention).
func New[R any](
	subspace tuple.Subspace,
	schema *metadata.Schema[R],
	serializer fieldaccessor.Serializer[R],
	accessor fieldaccessor.FieldAccessor[R],
	opts ...Option[R],
) (*Store[R], error) {
	s := &Store[R]{
		subspace:   subspace,
		dataSub:    subspace.Sub(tuple.Tuple{tuple.String("D")}),
		schema:     schema,
		serializer: serializer,
		accessor:   accessor,
		indexState: indexstate.NewManager(subspace.Sub(tuple.Tuple{tuple.String("S")}), nil),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	maintainers, err := buildMaintainers(subspace, accessor, schema)
	if err != nil {
		return nil, err
	}
	s.maintainers = maintainers
	return s, nil
}

func buildMaintainers[R any](subspace tuple.Subspace, accessor fieldaccessor.FieldAccessor[R], schema *metadata.Schema[R]) (map[string]index.Maintainer[R], error) {
	indexSub := subspace.Sub(tuple.Tuple{tuple.String("I")})
	out := make(map[string]index.Maintainer[R], len(schema.Indexes))
	for name, idx := range schema.Indexes {
		sub := indexSub.Sub(tuple.Tuple{tuple.String(name)})
		switch idx.Kind {
		case metadata.KindVector:
			out[name] = vector.New[R](idx, accessor, sub)
		case metadata.KindSpatial:
			out[name] = spatial.New[R](idx, accessor, sub)
		default:
			m, err := index.New[R](idx, accessor, sub)
			if err != nil {
				return nil, err
			}
			out[name] = m
		}
	}
	return out, nil
}

func (s *Store[R]) recordKey(pk tuple.Tuple) []byte { return s.dataSub.Pack(pk) }

func (s *Store[R]) primaryKeyOf(recordType string, rec R) (tuple.Tuple, error) {
	rt, ok := s.schema.RecordTypes[recordType]
	if !ok {
		return nil, errors.Wrapf(apperr.ErrUnknownRecordType, "%q", recordType)
	}
	tuples, err := rt.PrimaryKey.Evaluate(rec, s.accessor)
	if err != nil {
		return nil, err
	}
	if len(tuples) != 1 {
		return nil, apperr.NewInternal("primary key expression must yield exactly one tuple").WithField(recordType)
	}
	return tuples[0], nil
}

func (s *Store[R]) applicableIndexes(recordType string) []metadata.Index[R] {
	var out []metadata.Index[R]
	for _, idx := range s.schema.Indexes {
		if idx.AppliesTo(recordType) {
			out = append(out, idx)
		}
	}
	return out
}

// Save inserts or replaces rec under recordType, maintaining every
// readable-or-write-only index that applies to this record type within tx
// (spec §4.3 "save"). The read of the prior value is non-snapshot, so a
// concurrent modification of the same record conflicts at commit.
func (s *Store[R]) Save(ctx context.Context, tx kv.Tx, recordType string, rec R) error {
	pk, err := s.primaryKeyOf(recordType, rec)
	if err != nil {
		return err
	}
	raw, err := tx.Get(ctx, s.recordKey(pk), false)
	if err != nil {
		return err
	}
	var oldRec *R
	if raw != nil {
		decoded, err := s.serializer.Deserialize(raw)
		if err != nil {
			return err
		}
		oldRec = &decoded
	}

	encoded, err := s.serializer.Serialize(rec)
	if err != nil {
		return err
	}
	tx.Set(s.recordKey(pk), encoded)

	for _, idx := range s.applicableIndexes(recordType) {
		st, err := s.indexState.StateOf(ctx, tx, idx.Name)
		if err != nil {
			return err
		}
		if !st.IsMaintainable() {
			continue
		}
		m := s.maintainers[idx.Name]
		if err := m.Update(ctx, tx, oldRec, &rec, pk); err != nil {
			return err
		}
		if s.statsMgr != nil && idx.Kind == metadata.KindValue {
			if values, err := idx.Expression.Evaluate(rec, s.accessor); err == nil {
				for _, v := range values {
					s.statsMgr.Observe(idx.Name, v)
				}
			}
		}
	}
	return nil
}

// Load reads recordType's record by primary key, returning ok=false if
// absent (spec §4.3 "load").
func (s *Store[R]) Load(ctx context.Context, tx kv.Tx, pk tuple.Tuple) (rec R, ok bool, err error) {
	raw, err := tx.Get(ctx, s.recordKey(pk), false)
	if err != nil || raw == nil {
		return rec, false, err
	}
	rec, err = s.serializer.Deserialize(raw)
	if err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

// LoadWithVersion reads recordType's record along with the versionstamp of
// its most recent write, via recordType's declared VersionIndex (spec
// §4.3 "load_with_version"). It first performs a snapshot read, then a
// non-snapshot re-read of the version marker so a concurrent write is
// detected at commit even though the bulk of the record was read outside
// the conflict-tracked path.
func (s *Store[R]) LoadWithVersion(ctx context.Context, tx kv.Tx, recordType string, pk tuple.Tuple) (rec R, vs tuple.Versionstamp, ok bool, err error) {
	rt, known := s.schema.RecordTypes[recordType]
	if !known || rt.VersionIndex == "" {
		return rec, vs, false, errors.Wrapf(apperr.ErrUnknownIndex, "record type %q has no VersionIndex configured", recordType)
	}
	m, known := s.maintainers[rt.VersionIndex]
	if !known {
		return rec, vs, false, errors.Wrapf(apperr.ErrUnknownIndex, "%q", rt.VersionIndex)
	}
	vm, isVersionMaintainer := m.(*index.VersionMaintainer[R])
	if !isVersionMaintainer {
		return rec, vs, false, apperr.NewInternal("VersionIndex does not name a version-kind index").WithIndex(rt.VersionIndex)
	}

	raw, err := tx.Get(ctx, s.recordKey(pk), true)
	if err != nil || raw == nil {
		return rec, vs, false, err
	}
	rec, err = s.serializer.Deserialize(raw)
	if err != nil {
		return rec, vs, false, err
	}
	vs, found, err := vm.CurrentVersion(ctx, tx, pk)
	if err != nil || !found {
		return rec, vs, false, err
	}
	return rec, vs, true, nil
}

// Delete removes recordType's record at pk, retracting it from every
// applicable index (spec §4.3 "delete"). Deleting an absent record is a
// no-op, not an error.
func (s *Store[R]) Delete(ctx context.Context, tx kv.Tx, recordType string, pk tuple.Tuple) error {
	raw, err := tx.Get(ctx, s.recordKey(pk), false)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	oldRec, err := s.serializer.Deserialize(raw)
	if err != nil {
		return err
	}
	tx.Clear(s.recordKey(pk))

	for _, idx := range s.applicableIndexes(recordType) {
		st, err := s.indexState.StateOf(ctx, tx, idx.Name)
		if err != nil {
			return err
		}
		if !st.IsMaintainable() {
			continue
		}
		m := s.maintainers[idx.Name]
		if err := m.Update(ctx, tx, &oldRec, nil, pk); err != nil {
			return err
		}
		if s.statsMgr != nil && idx.Kind == metadata.KindValue {
			s.statsMgr.ObserveDelete(idx.Name)
		}
	}
	return nil
}

// Query performs a full primary-index scan of recordType, applying pred in
// process and stopping once limit matches are collected (limit <= 0 means
// unlimited). This is the store's raw scan path; planner/execplan builds
// the cost-based, index-accelerated plans on top of it (spec §4.3 "query",
// §4.8).
func (s *Store[R]) Query(ctx context.Context, tx kv.Tx, pred func(R) bool, limit int) ([]R, error) {
	begin, end := s.dataSub.Range()
	it, err := tx.GetRange(ctx, begin, end, -1, false)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []R
	for {
		pair, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rec, err := s.serializer.Deserialize(pair.Value)
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(rec) {
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Maintainer returns the maintainer for indexName, for callers (the online
// indexer, the execution layer) that need direct access below Save/Delete.
func (s *Store[R]) Maintainer(indexName string) (index.Maintainer[R], bool) {
	m, ok := s.maintainers[indexName]
	return m, ok
}

// DataSubspace exposes the record subspace for execplan's FullScan cursor.
func (s *Store[R]) DataSubspace() tuple.Subspace { return s.dataSub }

// IndexState exposes the index state manager for the planner's readability
// gating and the online indexer's lifecycle transitions.
func (s *Store[R]) IndexState() *indexstate.Manager { return s.indexState }

// Schema returns the store's schema.
func (s *Store[R]) Schema() *metadata.Schema[R] { return s.schema }

// Serializer returns the store's record serializer, for callers (execplan)
// that need to decode raw index/record bytes outside Save/Load/Delete.
func (s *Store[R]) Serializer() fieldaccessor.Serializer[R] { return s.serializer }

// Accessor returns the store's field accessor, for callers (execplan's
// Filter cursor) that need to evaluate a predicate against a loaded record.
func (s *Store[R]) Accessor() fieldaccessor.FieldAccessor[R] { return s.accessor }
