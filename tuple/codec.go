package tuple

import (
	"encoding/binary"
	"math"

	"github.com/erigontech/fdbrecord/apperr"
)

// Byte tags. Ordered so that comparing the first differing tag byte between
// two encoded tuples reproduces Kind's relative order; this only matters
// when two elements at the same tuple position can legitimately differ in
// kind (the schema normally fixes the kind per position).
const (
	tagNull         byte = 0x00
	tagBoolFalse    byte = 0x01
	tagBoolTrue     byte = 0x02
	intTagMin       byte = 0x0D
	intTagZero      byte = 0x15
	intTagMax       byte = 0x1D
	tagFloat        byte = 0x20
	tagBytes        byte = 0x21
	tagString       byte = 0x22
	tagUUID         byte = 0x23
	tagVersionstamp byte = 0x24
	tagNestedStart  byte = 0x25
	tagNestedEnd    byte = 0x26
)

const escapeByte = 0x00
const escapeFollow = 0xFF

// Encode serializes t into an order-preserving byte string (spec §4.1).
func Encode(t Tuple) []byte {
	buf := make([]byte, 0, 16*len(t))
	for _, e := range t {
		buf = appendElement(buf, e)
	}
	return buf
}

func appendElement(buf []byte, e Element) []byte {
	switch e.Kind {
	case KindNull:
		return append(buf, tagNull)
	case KindBool:
		if e.Bool {
			return append(buf, tagBoolTrue)
		}
		return append(buf, tagBoolFalse)
	case KindInt:
		return appendInt(buf, e.Int)
	case KindFloat:
		return appendFloat(buf, e.Float)
	case KindBytes:
		buf = append(buf, tagBytes)
		return appendEscaped(buf, e.Bytes)
	case KindString:
		buf = append(buf, tagString)
		return appendEscaped(buf, []byte(e.Str))
	case KindUUID:
		buf = append(buf, tagUUID)
		return append(buf, e.UUID[:]...)
	case KindVersionstamp:
		buf = append(buf, tagVersionstamp)
		if e.VS.Incomplete {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, e.VS.TransactionVersion[:]...)
		var uv [2]byte
		binary.BigEndian.PutUint16(uv[:], e.VS.UserVersion)
		return append(buf, uv[:]...)
	case KindNested:
		buf = append(buf, tagNestedStart)
		for _, child := range e.Nested {
			buf = appendElement(buf, child)
		}
		return append(buf, tagNestedEnd)
	default:
		panic(apperr.NewInternal("encode: unknown tuple element kind"))
	}
}

func appendEscaped(buf, raw []byte) []byte {
	for _, b := range raw {
		if b == escapeByte {
			buf = append(buf, escapeByte, escapeFollow)
		} else {
			buf = append(buf, b)
		}
	}
	return append(buf, escapeByte)
}

// appendInt encodes a signed 64-bit integer with a length-derived tag so
// that -n, -1, 0, 1, n sort correctly (spec §4.1). Magnitude is computed in
// unsigned space to handle math.MinInt64 without overflow.
func appendInt(buf []byte, v int64) []byte {
	if v == 0 {
		return append(buf, intTagZero)
	}
	negative := v < 0
	var mag uint64
	if negative {
		mag = uint64(-(v + 1)) + 1
	} else {
		mag = uint64(v)
	}
	n := byteLen(mag)
	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], mag)
	start := 8 - n
	if negative {
		// Ones-complement within n bytes: larger magnitude -> smaller payload.
		full := payload[start:]
		for i := range full {
			full[i] = ^full[i]
		}
		buf = append(buf, intTagZero-byte(n))
		return append(buf, full...)
	}
	buf = append(buf, intTagZero+byte(n))
	return append(buf, payload[start:]...)
}

func byteLen(mag uint64) int {
	n := 0
	for m := mag; m != 0; m >>= 8 {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

// appendFloat encodes a float64 via sign-flipped IEEE-754 big-endian so that
// negative zero sorts just below positive zero (spec §4.1).
func appendFloat(buf []byte, f float64) []byte {
	bits := math.Float64bits(f)
	const signBit = uint64(1) << 63
	if bits&signBit != 0 {
		bits = ^bits
	} else {
		bits |= signBit
	}
	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], bits)
	buf = append(buf, tagFloat)
	return append(buf, payload[:]...)
}
