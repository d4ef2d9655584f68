package kv

import "errors"

// ConflictError is returned by Tx.Commit when another transaction's write
// invalidated this one's read set (spec §6, §7 category 2: transient,
// retried only by the online indexer).
var ConflictError = errors.New("kv: commit conflict")

// TimeoutError is returned when a transaction exceeds the store's
// transaction-duration cap (spec §5, typically 5s).
var TimeoutError = errors.New("kv: transaction timeout")

// IsRetriable reports whether err is one of the transient kinds the online
// indexer is permitted to retry (spec §4.10, §7).
func IsRetriable(err error) bool {
	return errors.Is(err, ConflictError) || errors.Is(err, TimeoutError)
}
