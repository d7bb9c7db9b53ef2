package compress

import (
	"github.com/seminvestr/weightpack/bf16"
	"github.com/seminvestr/weightpack/simd"
)

// encode writes len(raw) samples into packed at logical offset ofs.
// Dispatch happens once per batch; the leaves are monomorphic.
func encode[P Packed](raw []float32, tls *PerThread, packed Span[P], ofs int) {
	switch p := any(packed).(type) {
	case Span[float32]:
		encF32(raw, tls, p, ofs)
	case Span[bf16.Bits]:
		encBF16(raw, tls, p, ofs)
	case Span[SFPByte]:
		encSFP(raw, tls, p, ofs)
	case Span[NUQByte]:
		encNUQ(raw, tls, p, ofs)
	}
}

// Decompress2 loads exactly 2*Lanes[T]() consecutive samples starting at
// ofs into two vectors.
func Decompress2[T Element, P Packed](packed ConstSpan[P], ofs int) (v0, v1 simd.Vec[T]) {
	packed.BoundsCheck(ofs, 2*simd.Lanes[T]())
	switch p := any(packed).(type) {
	case ConstSpan[float32]:
		return f32Load2[T](p, ofs)
	case ConstSpan[bf16.Bits]:
		return bf16Load2[T](p, ofs)
	case ConstSpan[SFPByte]:
		return sfpLoad2[T](p, ofs)
	case ConstSpan[NUQByte]:
		return nuqLoad2[T](p, ofs)
	}
	panic("compress: unreachable packed type")
}

// DecompressAndZeroPad decodes num samples starting at ofs into out,
// then zero-pads up to the next vector multiple. out must hold at least
// one full vector past num-1; the bf16-source f32-target path stores the
// tail's second vector only when the remainder spans it, so sizing out
// to a 2-vector multiple of num is always safe.
func DecompressAndZeroPad[T Element, P Packed](packed ConstSpan[P], ofs int, out []T, num int) {
	packed.BoundsCheck(ofs, num)
	switch p := any(packed).(type) {
	case ConstSpan[float32]:
		f32DZP(p, ofs, out, num)
	case ConstSpan[bf16.Bits]:
		bf16DZP(p, ofs, out, num)
	case ConstSpan[SFPByte]:
		sfpDZP(p, ofs, out, num)
	case ConstSpan[NUQByte]:
		nuqDZP(p, ofs, out, num)
	}
}

// Compress2 stores two f32 vectors to an f32 or bf16 span at ofs.
// Lets normalization-style producers write either output type.
func Compress2[P Element](v0, v1 simd.Vec[float32], packed Span[P], ofs int) {
	packed.BoundsCheck(ofs, 2*simd.Lanes[float32]())
	switch p := any(packed).(type) {
	case Span[float32]:
		simd.Store(v0, p.data[ofs:])
		simd.Store(v1, p.data[ofs+simd.Lanes[float32]():])
	case Span[bf16.Bits]:
		simd.Store(simd.DemoteRound2(v0, v1), p.data[ofs:])
	}
}

// vec2 converts a pair of concrete vectors to the generic return type.
// The conversion is an identity at runtime.
func vec2[T Element, U Element](a, b simd.Vec[U]) (simd.Vec[T], simd.Vec[T]) {
	return any(a).(simd.Vec[T]), any(b).(simd.Vec[T])
}

func isF32[T Element]() bool {
	var z T
	_, ok := any(z).(float32)
	return ok
}

// loadTail loads up to n elements from src at pos, zero-padding lanes
// past the end of src.
func loadTail[T Element](src []T, pos, n int) simd.Vec[T] {
	if n <= 0 || pos >= len(src) {
		return simd.Zero[T]()
	}
	if pos+n > len(src) {
		n = len(src) - pos
	}
	return simd.LoadN(src[pos:], n)
}
