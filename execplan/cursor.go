// Package execplan turns a planner.Plan into a streaming cursor over a
// record store, one cursor type per plan kind (spec §4.8 "Query execution
// plans"). Cursors hold the caller's transaction reference; the caller
// retains responsibility for the transaction's lifetime, exactly as the
// record store's own Save/Load/Delete do.
package execplan

import (
	"context"

	"github.com/erigontech/fdbrecord/tuple"
)

// Row pairs a record with the primary key it was stored under, so
// PK-ordered merges (Intersection, Union) can compare rows without
// re-deriving the key from the record (spec §4.8 "merge-join on primary
// key").
type Row[R any] struct {
	PK     tuple.Tuple
	Record R
}

// Cursor is the uniform contract every plan type compiles to (spec §4.8
// "Cursor contract: next() → record? | error"). FullScan, Intersection and
// Union yield rows in primary-key order; IndexScan yields index-key order
// (indexed values, then primary key), which is primary-key order only among
// rows sharing every indexed value; Filter and Limit keep their child's
// order; Sort yields the requested order and VectorTopK best-first.
type Cursor[R any] interface {
	// Next advances and returns the next row; ok is false at end of
	// stream. A non-nil error leaves prior successfully-returned rows
	// valid for the caller (spec §4.8 "Failures").
	Next(ctx context.Context) (row Row[R], ok bool, err error)
	Close()
}
