// Package compress implements the weight codecs (F32, BF16, SFP, NUQ),
// the parallel compression driver, and the decompress-and-call fusion
// that backs dot products over packed streams.
package compress

import (
	"fmt"

	"github.com/seminvestr/weightpack/bf16"
	"github.com/seminvestr/weightpack/internal/conv"
	"github.com/seminvestr/weightpack/internal/mem"
)

// SFPByte is one packed sample of the switching-float codec.
type SFPByte byte

// NUQByte is one byte of a non-uniform-quantization stream. Logical
// samples do not map 1:1 to bytes; offsets into NUQ spans are always in
// samples and the codec maps them to the group layout.
type NUQByte byte

// Packed is the set of packed sample representations.
type Packed interface {
	float32 | bf16.Bits | SFPByte | NUQByte
}

// Element is the subset of Packed usable as a decompression target:
// the f32 and bf16 lane types.
type Element interface {
	float32 | bf16.Bits
}

// Span is a bounds-checked view of a packed buffer. Capacity is counted
// in logical samples: offset i always addresses the i-th sample of the
// stream, regardless of the physical byte layout.
type Span[P Packed] struct {
	data []P
	num  int
}

// MakeSpan views data as a packed stream of num logical samples. For
// NUQ, data must hold at least NUQPackedEnd(num) bytes; for the other
// codecs, at least num elements.
func MakeSpan[P Packed](data []P, num int) Span[P] {
	return Span[P]{data: data, num: num}
}

// AllocSpan allocates a vector-aligned packed buffer sized for num
// logical samples and returns it as a span.
func AllocSpan[P Packed](num int) Span[P] {
	var z P
	var data []P
	switch any(z).(type) {
	case float32:
		data = any(mem.AllocAlignedFloat32(num)).([]P)
	case bf16.Bits:
		data = any(conv.BytesU16[bf16.Bits](mem.AllocAligned(num * 2))).([]P)
	case SFPByte:
		data = any(conv.Bytes[SFPByte](mem.AllocAligned(num))).([]P)
	default:
		data = any(conv.Bytes[NUQByte](mem.AllocAligned(NUQPackedEnd(num)))).([]P)
	}
	return Span[P]{data: data, num: num}
}

// NumElements returns the logical sample capacity.
func (s Span[P]) NumElements() int { return s.num }

// Data returns the underlying storage.
func (s Span[P]) Data() []P { return s.data }

// BoundsCheck aborts if [ofs, ofs+num) exceeds the span. Violations are
// programmer errors, not runtime conditions.
func (s Span[P]) BoundsCheck(ofs, num int) {
	if ofs < 0 || num < 0 || ofs+num > s.num {
		panic(fmt.Sprintf("compress: packed span out of bounds: ofs=%d num=%d capacity=%d",
			ofs, num, s.num))
	}
}

// Const erases mutability.
func (s Span[P]) Const() ConstSpan[P] {
	return ConstSpan[P]{data: s.data, num: s.num}
}

// ConstSpan is a read-only packed view. All decode entry points take
// ConstSpan; Encode takes Span.
type ConstSpan[P Packed] struct {
	data []P
	num  int
}

// MakeConstSpan views data as a read-only packed stream of num samples.
func MakeConstSpan[P Packed](data []P, num int) ConstSpan[P] {
	return ConstSpan[P]{data: data, num: num}
}

// NumElements returns the logical sample capacity.
func (s ConstSpan[P]) NumElements() int { return s.num }

// BoundsCheck aborts if [ofs, ofs+num) exceeds the span.
func (s ConstSpan[P]) BoundsCheck(ofs, num int) {
	if ofs < 0 || num < 0 || ofs+num > s.num {
		panic(fmt.Sprintf("compress: packed span out of bounds: ofs=%d num=%d capacity=%d",
			ofs, num, s.num))
	}
}
