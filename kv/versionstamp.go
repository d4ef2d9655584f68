package kv

// FindIncompleteVersionstamp locates the byte offset of an incomplete
// versionstamp's 10-byte transaction-version placeholder within an encoded
// key template, so a KVStore implementation can patch it in at commit time
// (spec §4.4 version-index maintainer). It mirrors the tuple package's
// versionstamp wire layout (tag, incomplete-flag, 10-byte transaction
// version, 2-byte user version) without importing tuple, to keep this
// package's only dependency the store-facing contract.
const (
	versionstampTag byte = 0x24
)

// FindIncompleteVersionstamp returns the offset of the 10-byte placeholder
// within encoded, and true if exactly one incomplete versionstamp was
// found. Encoded with more than one incomplete versionstamp is a caller
// error (the store only fills the first one, matching real KV-store
// atomic-set-versionstamped-key semantics).
func FindIncompleteVersionstamp(encoded []byte) (offset int, found bool) {
	for i := 0; i+2 <= len(encoded); i++ {
		if encoded[i] == versionstampTag && encoded[i+1] == 1 {
			return i + 2, true
		}
	}
	return 0, false
}
