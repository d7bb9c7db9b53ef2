package simd

import (
	"github.com/seminvestr/weightpack/bf16"
)

// Lane is a decompressed element type: float32 for arithmetic,
// bf16.Bits for half-width storage feeding widening kernels.
type Lane interface {
	float32 | bf16.Bits
}

// VecBytes is the modeled vector register width in bytes.
// One register holds 8 float32 lanes or 16 bf16/uint16 lanes.
const VecBytes = 32

// MaxLanes is the lane count of the narrowest lane type.
const MaxLanes = VecBytes / 2

// Lanes returns the number of lanes of T per vector.
func Lanes[T Lane]() int {
	var z T
	if _, ok := any(z).(float32); ok {
		return VecBytes / 4
	}
	return VecBytes / 2
}

// Vec is one vector register's worth of lanes. The backing array is sized
// for the narrowest lane type; only the first Lanes[T]() entries are
// meaningful for wider types.
type Vec[T Lane] struct {
	Raw [MaxLanes]T
}

// Zero returns a vector with all lanes zero.
func Zero[T Lane]() Vec[T] {
	return Vec[T]{}
}

// Set returns a vector with all lanes equal to v.
func Set[T Lane](v T) Vec[T] {
	var out Vec[T]
	for i := 0; i < Lanes[T](); i++ {
		out.Raw[i] = v
	}
	return out
}

// Load reads Lanes[T]() elements from src.
func Load[T Lane](src []T) Vec[T] {
	var out Vec[T]
	copy(out.Raw[:Lanes[T]()], src)
	return out
}

// LoadN reads min(n, Lanes) elements from src; remaining lanes are zero.
// n may exceed len(src) only if it is clamped by the caller.
func LoadN[T Lane](src []T, n int) Vec[T] {
	var out Vec[T]
	l := Lanes[T]()
	if n > l {
		n = l
	}
	if n < 0 {
		n = 0
	}
	copy(out.Raw[:n], src[:n])
	return out
}

// Store writes Lanes[T]() lanes to dst.
func Store[T Lane](v Vec[T], dst []T) {
	copy(dst[:Lanes[T]()], v.Raw[:Lanes[T]()])
}

// StoreN writes min(n, Lanes) lanes to dst.
func StoreN[T Lane](v Vec[T], dst []T, n int) {
	l := Lanes[T]()
	if n > l {
		n = l
	}
	copy(dst[:n], v.Raw[:n])
}

// Add returns a + b lane-wise.
func Add(a, b Vec[float32]) Vec[float32] {
	var out Vec[float32]
	for i := 0; i < VecBytes/4; i++ {
		out.Raw[i] = a.Raw[i] + b.Raw[i]
	}
	return out
}

// Sub returns a - b lane-wise.
func Sub(a, b Vec[float32]) Vec[float32] {
	var out Vec[float32]
	for i := 0; i < VecBytes/4; i++ {
		out.Raw[i] = a.Raw[i] - b.Raw[i]
	}
	return out
}

// Mul returns a * b lane-wise.
func Mul(a, b Vec[float32]) Vec[float32] {
	var out Vec[float32]
	for i := 0; i < VecBytes/4; i++ {
		out.Raw[i] = a.Raw[i] * b.Raw[i]
	}
	return out
}

// MulAdd returns a*b + c lane-wise.
func MulAdd(a, b, c Vec[float32]) Vec[float32] {
	var out Vec[float32]
	for i := 0; i < VecBytes/4; i++ {
		out.Raw[i] = a.Raw[i]*b.Raw[i] + c.Raw[i]
	}
	return out
}

// ReduceSum returns the sum of all f32 lanes.
func ReduceSum(v Vec[float32]) float32 {
	var s float32
	for i := 0; i < VecBytes/4; i++ {
		s += v.Raw[i]
	}
	return s
}

// PromoteLower widens the lower 8 bf16 lanes to float32.
func PromoteLower(v Vec[bf16.Bits]) Vec[float32] {
	var out Vec[float32]
	for i := 0; i < VecBytes/4; i++ {
		out.Raw[i] = bf16.ToFloat32(v.Raw[i])
	}
	return out
}

// PromoteUpper widens the upper 8 bf16 lanes to float32.
func PromoteUpper(v Vec[bf16.Bits]) Vec[float32] {
	var out Vec[float32]
	for i := 0; i < VecBytes/4; i++ {
		out.Raw[i] = bf16.ToFloat32(v.Raw[VecBytes/4+i])
	}
	return out
}

// DemoteRound2 narrows two f32 vectors into one bf16 vector with
// round-to-nearest-even; a fills the lower 8 lanes, b the upper 8.
func DemoteRound2(a, b Vec[float32]) Vec[bf16.Bits] {
	var out Vec[bf16.Bits]
	for i := 0; i < VecBytes/4; i++ {
		out.Raw[i] = bf16.FromFloat32(a.Raw[i])
		out.Raw[VecBytes/4+i] = bf16.FromFloat32(b.Raw[i])
	}
	return out
}

// TableLookup replaces every lane of idx (values in [0, 16)) with
// tbl[idx]. Used to expand cluster indices into centers.
func TableLookup[T Lane](tbl *[16]T, idx VecU16) Vec[T] {
	var out Vec[T]
	for i := 0; i < Lanes[T](); i++ {
		out.Raw[i] = tbl[idx[i]&15]
	}
	return out
}

// VecU16 is one register of 16 unsigned 16-bit lanes, used by the nibble
// codec and cluster-index streams.
type VecU16 [MaxLanes]uint16

// LoadU16N reads min(n, 16) values; remaining lanes are zero.
func LoadU16N(src []uint16, n int) VecU16 {
	var out VecU16
	if n > MaxLanes {
		n = MaxLanes
	}
	copy(out[:n], src[:n])
	return out
}
