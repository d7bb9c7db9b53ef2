// Package nibble packs 4-bit values into byte streams at vector width.
//
// The layout pairs lanes across vectors rather than adjacent samples:
// packing four u16 lane vectors v0..v3 yields 32 bytes where byte j
// carries v0[j] in its low nibble and v1[j] in its high nibble, and byte
// 16+j carries v2[j] / v3[j]. Unpacking half the bytes with k=0 or k=1
// recovers the low or high nibble set. The layout is only meaningful to
// this package and its inverse; consumers rely solely on the round trip.
package nibble

import (
	"github.com/seminvestr/weightpack/simd"
)

// Bytes32 is one packed output register: 64 nibbles.
type Bytes32 [2 * simd.MaxLanes]byte

// Bytes16 is half a packed register: 32 nibbles.
type Bytes16 [simd.MaxLanes]byte

// LowerHalf returns the first 16 bytes.
func (b *Bytes32) LowerHalf() Bytes16 {
	var out Bytes16
	copy(out[:], b[:simd.MaxLanes])
	return out
}

// UpperHalf returns the last 16 bytes.
func (b *Bytes32) UpperHalf() Bytes16 {
	var out Bytes16
	copy(out[:], b[simd.MaxLanes:])
	return out
}

// OrderedPackU16 packs four vectors of 16-bit lanes, each masked to
// [0, 15], into one byte register. Reversible by OrderedUnpackU16.
func OrderedPackU16(v0, v1, v2, v3 simd.VecU16) Bytes32 {
	var out Bytes32
	for j := 0; j < simd.MaxLanes; j++ {
		out[j] = byte(v0[j]&15) | byte(v1[j]&15)<<4
		out[simd.MaxLanes+j] = byte(v2[j]&15) | byte(v3[j]&15)<<4
	}
	return out
}

// OrderedUnpackU16 extracts the k-th nibble set (k in {0, 1}) from a
// half-width byte register.
func OrderedUnpackU16(half Bytes16, k int) simd.VecU16 {
	var out simd.VecU16
	shift := uint(4 * k)
	for j := 0; j < simd.MaxLanes; j++ {
		out[j] = uint16(half[j]>>shift) & 15
	}
	return out
}

// At returns the i-th nibble of a packed run that was produced by
// consecutive OrderedPackU16 calls over a contiguous sample stream
// (64 samples per call). It inverts the lane pairing so random access
// agrees with the vector unpack.
func At(packed []byte, i int) byte {
	block := i / (4 * simd.MaxLanes)
	r := i % (4 * simd.MaxLanes)
	half := r / (2 * simd.MaxLanes)
	j := r % simd.MaxLanes
	hi := (r % (2 * simd.MaxLanes)) / simd.MaxLanes
	b := packed[block*2*simd.MaxLanes+half*simd.MaxLanes+j]
	return (b >> uint(4*hi)) & 15
}
