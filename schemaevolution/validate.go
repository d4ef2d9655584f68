// Package schemaevolution checks one schema snapshot against its
// predecessor for changes a running record store cannot absorb safely
// (spec §4.11 "C11").
package schemaevolution

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/erigontech/fdbrecord/fieldaccessor"
	"github.com/erigontech/fdbrecord/metadata"
	"golang.org/x/sync/errgroup"
)

// ErrorKind names one rule a schema transition can violate.
type ErrorKind string

const (
	RecordTypeRemoved         ErrorKind = "RecordTypeRemoved"
	PrimaryKeyChanged         ErrorKind = "PrimaryKeyChanged"
	FieldRemoved              ErrorKind = "FieldRemoved"
	IndexRemovedWithoutFormer ErrorKind = "IndexRemovedWithoutFormer"
	IndexFormatChanged        ErrorKind = "IndexFormatChanged"
	FormerIndexConflict       ErrorKind = "FormerIndexConflict"
)

// ValidationError is one rule violation, with enough detail to act on
// without re-deriving it from the two schemas.
type ValidationError struct {
	Kind   ErrorKind
	Detail string
}

func (e ValidationError) Error() string { return string(e.Kind) + ": " + e.Detail }

// ValidationResult collects every violation found in one pass (spec
// "errors are collected rather than short-circuited").
type ValidationResult struct {
	IsValid bool
	Errors  []ValidationError
}

// resultBuilder aggregates violations from concurrently-running rule
// groups behind a mutex; Validate unwraps it into a plain ValidationResult
// before returning, so callers never see the lock.
type resultBuilder struct {
	mu     sync.Mutex
	errors []ValidationError
}

func (r *resultBuilder) add(kind ErrorKind, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, ValidationError{Kind: kind, Detail: detail})
}

// Validate compares old against new, reporting every rule violation (spec
// §4.11). allowIndexRebuilds suppresses IndexFormatChanged, the one rule
// the spec makes conditional. The four rule groups touch disjoint parts of
// the two schemas and share no transaction, so they run concurrently
// rather than one after another.
func Validate[R any](old, new *metadata.Schema[R], allowIndexRebuilds bool) ValidationResult {
	var rb resultBuilder

	var g errgroup.Group
	g.Go(func() error { checkRecordTypes(old, new, &rb); return nil })
	g.Go(func() error { checkIndexRemoval(old, new, &rb); return nil })
	g.Go(func() error { checkIndexFormat(old, new, allowIndexRebuilds, &rb); return nil })
	g.Go(func() error { checkFormerIndexConflicts(old, new, &rb); return nil })
	_ = g.Wait()

	return ValidationResult{IsValid: len(rb.errors) == 0, Errors: rb.errors}
}

func checkRecordTypes[R any](old, new *metadata.Schema[R], result *resultBuilder) {
	for name, oldRT := range old.RecordTypes {
		newRT, ok := new.RecordTypes[name]
		if !ok {
			result.add(RecordTypeRemoved, fmt.Sprintf("record type %q no longer declared", name))
			continue
		}
		if !sameShape[R](oldRT.PrimaryKey, newRT.PrimaryKey) {
			result.add(PrimaryKeyChanged, fmt.Sprintf("record type %q: primary key expression shape changed", name))
			continue
		}
		checkFieldRemoval(name, oldRT, newRT, result)
	}
}

// checkFieldRemoval fires only when both snapshots declare Fields; an
// undeclared Fields map means the record type opted out of this check,
// since fields live in the caller's Go struct rather than the schema and
// Fields is this repo's opt-in declaration surface for them. This also
// catches primary-key field removal, since a primary-key field is always
// a member of the declared field set.
func checkFieldRemoval[R any](recordType string, oldRT, newRT metadata.RecordType[R], result *resultBuilder) {
	if oldRT.Fields == nil || newRT.Fields == nil {
		return
	}
	for path := range oldRT.Fields {
		if !newRT.Fields[path] {
			result.add(FieldRemoved, fmt.Sprintf("record type %q: field %q removed", recordType, path))
		}
	}
}

func checkIndexRemoval[R any](old, new *metadata.Schema[R], result *resultBuilder) {
	for name := range old.Indexes {
		if _, stillLive := new.Indexes[name]; stillLive {
			continue
		}
		if !hasFormer(new.FormerIndexes, name) {
			result.add(IndexRemovedWithoutFormer, fmt.Sprintf("index %q removed without a matching FormerIndex entry", name))
		}
	}
}

func checkIndexFormat[R any](old, new *metadata.Schema[R], allowIndexRebuilds bool, result *resultBuilder) {
	if allowIndexRebuilds {
		return
	}
	for name, oldIdx := range old.Indexes {
		newIdx, ok := new.Indexes[name]
		if !ok {
			continue // reported as IndexRemovedWithoutFormer, not a format change
		}
		if oldIdx.Kind != newIdx.Kind {
			result.add(IndexFormatChanged, fmt.Sprintf("index %q: kind changed from %s to %s", name, oldIdx.Kind, newIdx.Kind))
			continue
		}
		if !sameShape[R](oldIdx.Expression, newIdx.Expression) {
			result.add(IndexFormatChanged, fmt.Sprintf("index %q: key expression shape changed", name))
		}
	}
}

func checkFormerIndexConflicts[R any](old, new *metadata.Schema[R], result *resultBuilder) {
	for name := range new.Indexes {
		if hasFormer(old.FormerIndexes, name) {
			result.add(FormerIndexConflict, fmt.Sprintf("index %q: name collides with a former index retired in the prior schema", name))
		}
	}
	for _, f := range new.FormerIndexes {
		if _, live := new.Indexes[f.Name]; live {
			result.add(FormerIndexConflict, fmt.Sprintf("former index %q collides with a currently-live index of the same name", f.Name))
		}
	}
}

func hasFormer(formers []metadata.FormerIndex, name string) bool {
	for _, f := range formers {
		if f.Name == name {
			return true
		}
	}
	return false
}

// sameShape compares two key expressions structurally: same variant, same
// child order, same field names / nested paths (spec §4.11
// "key-expression compatibility is structural").
func sameShape[R any](a, b fieldaccessor.KeyExpression[R]) bool {
	switch av := a.(type) {
	case fieldaccessor.FieldKeyExpr[R]:
		bv, ok := b.(fieldaccessor.FieldKeyExpr[R])
		return ok && av.Path == bv.Path

	case fieldaccessor.RangeKeyExpr[R]:
		bv, ok := b.(fieldaccessor.RangeKeyExpr[R])
		return ok && av.Parent == bv.Parent && av.Component == bv.Component && av.Boundary == bv.Boundary

	case fieldaccessor.ConcatenateExpr[R]:
		bv, ok := b.(fieldaccessor.ConcatenateExpr[R])
		if !ok || len(av.Children) != len(bv.Children) {
			return false
		}
		for i := range av.Children {
			if !sameShape[R](av.Children[i], bv.Children[i]) {
				return false
			}
		}
		return true

	case fieldaccessor.NestExpr[R]:
		bv, ok := b.(fieldaccessor.NestExpr[R])
		return ok && av.Parent == bv.Parent && sameShape[R](av.Child, bv.Child)

	case fieldaccessor.EmptyExpr[R]:
		_, ok := b.(fieldaccessor.EmptyExpr[R])
		return ok

	default:
		// A caller-defined expression type matches only an expression of
		// the same Go type.
		return reflect.TypeOf(a) == reflect.TypeOf(b)
	}
}
