// Package apperr defines the error kinds observed at the record-store
// boundary (spec §6, §7). Contract-violation kinds are sentinel errors so
// callers can test with errors.Is; InternalError carries a stack captured at
// construction for diagnosing impossible states.
package apperr

import (
	"fmt"

	"github.com/go-stack/stack"
	"github.com/pkg/errors"
)

// Sentinel contract-violation kinds (spec §7 category 1). Wrap with
// errors.Wrapf to attach context; callers unwrap with errors.Is.
var (
	ErrUniqueViolation           = errors.New("unique index violation")
	ErrVersionMismatch           = errors.New("version mismatch")
	ErrUnknownRecordType         = errors.New("unknown record type")
	ErrUnknownIndex              = errors.New("unknown index")
	ErrDirectRangeIndexForbidden = errors.New("direct index on a range field is forbidden")
	ErrDimensionMismatch         = errors.New("vector dimension mismatch")
	ErrCoordinateOutOfRange      = errors.New("spatial coordinate out of configured range")
	ErrSchemaIncompatible        = errors.New("schema incompatible")
	ErrConcurrentStateChange     = errors.New("concurrent index state change")
	ErrNonNumericSummand         = errors.New("sum index addend does not coerce to int64")
	ErrVectorExpressionArity     = errors.New("vector index expression must yield exactly one tuple per record")
)

// InternalError represents a fatal internal error: decode failure,
// impossible state, invariant breach (spec §7 category 3). It carries
// enough context to diagnose without a debugger attached.
type InternalError struct {
	Message    string
	IndexName  string
	PrimaryKey string
	FieldPath  string
	Cause      error
	stack      stack.CallStack
}

// NewInternal builds an InternalError, capturing the caller's stack.
func NewInternal(message string) *InternalError {
	return &InternalError{Message: message, stack: stack.Trace().TrimRuntime()}
}

// WithIndex annotates the error with the offending index name.
func (e *InternalError) WithIndex(name string) *InternalError {
	e.IndexName = name
	return e
}

// WithPrimaryKey annotates the error with the record's primary key (already
// formatted by the caller; the core never assumes a record type's PK has a
// canonical string form).
func (e *InternalError) WithPrimaryKey(pk string) *InternalError {
	e.PrimaryKey = pk
	return e
}

// WithField annotates the error with the field path that triggered it.
func (e *InternalError) WithField(path string) *InternalError {
	e.FieldPath = path
	return e
}

// WithCause wraps an underlying error (decode failure, etc).
func (e *InternalError) WithCause(cause error) *InternalError {
	e.Cause = cause
	return e
}

func (e *InternalError) Error() string {
	s := fmt.Sprintf("internal error: %s", e.Message)
	if e.IndexName != "" {
		s += fmt.Sprintf(" index=%s", e.IndexName)
	}
	if e.PrimaryKey != "" {
		s += fmt.Sprintf(" pk=%s", e.PrimaryKey)
	}
	if e.FieldPath != "" {
		s += fmt.Sprintf(" field=%s", e.FieldPath)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(": %v", e.Cause)
	}
	return s
}

func (e *InternalError) Unwrap() error { return e.Cause }

// Stack returns the call stack captured when the error was created, mainly
// useful in logs (zap.Stringer("stack", err.Stack())).
func (e *InternalError) Stack() stack.CallStack { return e.stack }

// DecodeError is returned by tuple decoding on a foreign/corrupt byte string
// (spec §4.1 "a foreign byte string may fail with DecodeError").
type DecodeError struct {
	Reason string
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tuple decode error at offset %d: %s", e.Offset, e.Reason)
}

// NewDecodeError builds a DecodeError at the given byte offset.
func NewDecodeError(offset int, reason string) *DecodeError {
	return &DecodeError{Reason: reason, Offset: offset}
}
