// Package fieldaccessor defines the capability contracts the core consumes
// to get at record data without ever introspecting the record type itself
// (spec §3 "Record", §4.2 "Field accessor & expressions"). A concrete
// application plugs in a Serializer and a FieldAccessor for its own record
// type R; the core only calls through these two interfaces.
package fieldaccessor

import "github.com/erigontech/fdbrecord/tuple"

// Serializer turns a record of type R to and from bytes. Implementations
// must be total and must not reorder fields in a way that changes the wire
// contract across schema versions (spec §3).
type Serializer[R any] interface {
	Serialize(r R) ([]byte, error)
	Deserialize(b []byte) (R, error)
}

// FieldAccessor extracts tuple-encodable values from a record by dotted
// field path (e.g. "address.city"). Repeated fields yield a multi-element
// sequence; an absent optional field yields an empty sequence (spec §3).
type FieldAccessor[R any] interface {
	Extract(r R, fieldPath string) ([]tuple.Tuple, error)
}

// PrimaryKeyFunc derives a record's primary key tuple. Kept distinct from a
// general KeyExpression evaluation because the primary key must yield
// exactly one tuple per record, never zero or many.
type PrimaryKeyFunc[R any] func(r R) (tuple.Tuple, error)
