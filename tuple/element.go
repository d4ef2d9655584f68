// Package tuple implements the ordering-preserving binary encoding used for
// every key in the store: records, index entries, state markers, and
// statistics (spec §3, §4.1). Encoding is total, round-tripping, and
// order-preserving for every defined element type, so that a prefix range
// scan over encoded tuples returns values in tuple order.
package tuple

import (
	"github.com/google/uuid"
)

// Kind tags the dynamic type carried by an Element.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindBytes
	KindString
	KindUUID
	KindVersionstamp
	KindNested
)

// Versionstamp is the 12-byte monotonic identifier the KV store supplies at
// commit time (spec glossary). The first 10 bytes are the store's
// transaction-commit version; the last 2 are a caller-assigned sub-order
// used when more than one versionstamped key is written in one transaction.
// Incomplete is true for a template awaiting the store to fill in the first
// 10 bytes via atomic_set_versionstamped_key.
type Versionstamp struct {
	TransactionVersion [10]byte
	UserVersion        uint16
	Incomplete         bool
}

// Element is one value in a tuple. Exactly one of the typed fields is valid,
// selected by Kind. A struct (not an interface) keeps encoding allocation-free
// for the common scalar cases and keeps the type switch exhaustive and closed,
// matching the "defined types only" contract in spec §4.1.
type Element struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	Bytes  []byte
	Str    string
	UUID   uuid.UUID
	VS     Versionstamp
	Nested Tuple
}

// Tuple is an ordered, heterogeneous sequence of Elements (spec glossary).
type Tuple []Element

func Null() Element             { return Element{Kind: KindNull} }
func Bool(b bool) Element       { return Element{Kind: KindBool, Bool: b} }
func Int(i int64) Element       { return Element{Kind: KindInt, Int: i} }
func Float(f float64) Element   { return Element{Kind: KindFloat, Float: f} }
func Bytes(b []byte) Element    { return Element{Kind: KindBytes, Bytes: b} }
func String(s string) Element   { return Element{Kind: KindString, Str: s} }
func UUID(u uuid.UUID) Element  { return Element{Kind: KindUUID, UUID: u} }
func VS(v Versionstamp) Element { return Element{Kind: KindVersionstamp, VS: v} }
func IncompleteVS(userVersion uint16) Element {
	return Element{Kind: KindVersionstamp, VS: Versionstamp{UserVersion: userVersion, Incomplete: true}}
}
func Nested(t Tuple) Element { return Element{Kind: KindNested, Nested: t} }

// Of builds a Tuple from a variadic list of already-built Elements, the
// common case when assembling an index key by hand (grouping ++ primary key).
func Of(elems ...Element) Tuple { return Tuple(elems) }

// Append returns a new Tuple with additional elements appended; the receiver
// is left unmodified, matching Subspace's "extend yields a new value"
// contract (spec §3).
func (t Tuple) Append(elems ...Element) Tuple {
	out := make(Tuple, 0, len(t)+len(elems))
	out = append(out, t...)
	out = append(out, elems...)
	return out
}

// Concat concatenates tuples (used to build index keys from
// indexed-values++primary-key, or grouping++value-to-sum).
func Concat(parts ...Tuple) Tuple {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make(Tuple, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
