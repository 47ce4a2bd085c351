package typesystem

import (
	"encoding/binary"
	"math"
)

// Scalar encode/decode. All values in the synthetic memory are little-endian
// and exactly as wide as their type; helpers here are the only place that
// interprets raw bytes as numbers.

// EncodeUint writes v truncated to size bytes, little-endian.
func EncodeUint(v uint64, size int) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	out := make([]byte, size)
	copy(out, buf[:size])
	return out
}

// EncodeInt writes v truncated to size bytes, little-endian. Truncation is
// the defined wrapping behavior for oversized results.
func EncodeInt(v int64, size int) []byte {
	return EncodeUint(uint64(v), size)
}

// DecodeUint reads a little-endian unsigned scalar of up to 8 bytes.
func DecodeUint(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

// DecodeInt reads a little-endian signed scalar, sign-extending to 64 bits.
func DecodeInt(b []byte) int64 {
	v := DecodeUint(b)
	shift := uint(64 - 8*len(b))
	if shift == 0 {
		return int64(v)
	}
	return int64(v<<shift) >> shift
}

// EncodeFloat writes an IEEE-754 value of the given byte size (4 or 8).
func EncodeFloat(v float64, size int) []byte {
	if size == 4 {
		return EncodeUint(uint64(math.Float32bits(float32(v))), 4)
	}
	return EncodeUint(math.Float64bits(v), 8)
}

// DecodeFloat reads an IEEE-754 value of 4 or 8 bytes.
func DecodeFloat(b []byte) float64 {
	if len(b) == 4 {
		return float64(math.Float32frombits(uint32(DecodeUint(b))))
	}
	return math.Float64frombits(DecodeUint(b))
}

// DecodeScalar reads b under t's signedness, returning the value zero- or
// sign-extended to 64 bits (as a uint64 bit pattern for unsigned use).
func DecodeScalar(b []byte, t *Type) (signed int64, unsigned uint64) {
	if t.Signed() {
		s := DecodeInt(b)
		return s, uint64(s)
	}
	u := DecodeUint(b)
	return int64(u), u
}
