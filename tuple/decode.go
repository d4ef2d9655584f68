package tuple

import (
	"encoding/binary"
	"math"

	"github.com/erigontech/fdbrecord/apperr"
	"github.com/google/uuid"
)

// Decode is the inverse of Encode for any byte string Encode produced; a
// foreign byte string may fail with a *apperr.DecodeError (spec §4.1).
func Decode(data []byte) (Tuple, error) {
	var out Tuple
	pos := 0
	for pos < len(data) {
		if data[pos] == tagNestedEnd {
			return nil, apperr.NewDecodeError(pos, "unexpected nested-tuple end marker at top level")
		}
		e, next, err := decodeOne(data, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		pos = next
	}
	return out, nil
}

func decodeOne(data []byte, pos int) (Element, int, error) {
	if pos >= len(data) {
		return Element{}, pos, apperr.NewDecodeError(pos, "truncated tuple: expected tag byte")
	}
	tag := data[pos]
	switch {
	case tag == tagNull:
		return Null(), pos + 1, nil
	case tag == tagBoolFalse:
		return Bool(false), pos + 1, nil
	case tag == tagBoolTrue:
		return Bool(true), pos + 1, nil
	case tag >= intTagMin && tag <= intTagMax:
		return decodeInt(data, pos, tag)
	case tag == tagFloat:
		return decodeFloat(data, pos)
	case tag == tagBytes:
		raw, next, err := decodeEscaped(data, pos+1)
		if err != nil {
			return Element{}, pos, err
		}
		return Bytes(raw), next, nil
	case tag == tagString:
		raw, next, err := decodeEscaped(data, pos+1)
		if err != nil {
			return Element{}, pos, err
		}
		return String(string(raw)), next, nil
	case tag == tagUUID:
		if pos+17 > len(data) {
			return Element{}, pos, apperr.NewDecodeError(pos, "truncated uuid element")
		}
		var u uuid.UUID
		copy(u[:], data[pos+1:pos+17])
		return UUID(u), pos + 17, nil
	case tag == tagVersionstamp:
		return decodeVersionstamp(data, pos)
	case tag == tagNestedStart:
		return decodeNested(data, pos)
	default:
		return Element{}, pos, apperr.NewDecodeError(pos, "unrecognized tag byte")
	}
}

func decodeEscaped(data []byte, pos int) ([]byte, int, error) {
	var out []byte
	i := pos
	for {
		if i >= len(data) {
			return nil, pos, apperr.NewDecodeError(pos, "truncated string/bytes element: missing terminator")
		}
		b := data[i]
		if b == escapeByte {
			if i+1 < len(data) && data[i+1] == escapeFollow {
				out = append(out, escapeByte)
				i += 2
				continue
			}
			// bare 0x00 not followed by the escape byte is the terminator.
			return out, i + 1, nil
		}
		out = append(out, b)
		i++
	}
}

func decodeInt(data []byte, pos int, tag byte) (Element, int, error) {
	if tag == intTagZero {
		return Int(0), pos + 1, nil
	}
	negative := tag < intTagZero
	var n int
	if negative {
		n = int(intTagZero - tag)
	} else {
		n = int(tag - intTagZero)
	}
	if pos+1+n > len(data) {
		return Element{}, pos, apperr.NewDecodeError(pos, "truncated int element")
	}
	var payload [8]byte
	copy(payload[8-n:], data[pos+1:pos+1+n])
	if negative {
		for i := 8 - n; i < 8; i++ {
			payload[i] = ^payload[i]
		}
		mag := binary.BigEndian.Uint64(payload[:])
		// v = -(mag - 1) - 1, derived from the encode-side mag = uint64(-(v+1))+1.
		v := -int64(mag-1) - 1
		return Int(v), pos + 1 + n, nil
	}
	mag := binary.BigEndian.Uint64(payload[:])
	return Int(int64(mag)), pos + 1 + n, nil
}

func decodeFloat(data []byte, pos int) (Element, int, error) {
	if pos+9 > len(data) {
		return Element{}, pos, apperr.NewDecodeError(pos, "truncated float element")
	}
	bits := binary.BigEndian.Uint64(data[pos+1 : pos+9])
	const signBit = uint64(1) << 63
	if bits&signBit != 0 {
		bits &^= signBit
	} else {
		bits = ^bits
	}
	return Float(math.Float64frombits(bits)), pos + 9, nil
}

func decodeVersionstamp(data []byte, pos int) (Element, int, error) {
	if pos+1+1+10+2 > len(data) {
		return Element{}, pos, apperr.NewDecodeError(pos, "truncated versionstamp element")
	}
	i := pos + 1
	incomplete := data[i] != 0
	i++
	var vs Versionstamp
	copy(vs.TransactionVersion[:], data[i:i+10])
	i += 10
	vs.UserVersion = binary.BigEndian.Uint16(data[i : i+2])
	i += 2
	vs.Incomplete = incomplete
	return VS(vs), i, nil
}

func decodeNested(data []byte, pos int) (Element, int, error) {
	var children Tuple
	i := pos + 1
	for {
		if i >= len(data) {
			return Element{}, pos, apperr.NewDecodeError(pos, "truncated nested tuple: missing end marker")
		}
		if data[i] == tagNestedEnd {
			return Nested(children), i + 1, nil
		}
		e, next, err := decodeOne(data, i)
		if err != nil {
			return Element{}, pos, err
		}
		children = append(children, e)
		i = next
	}
}
