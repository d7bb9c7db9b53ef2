package compress

import (
	"github.com/seminvestr/weightpack/bf16"
	"github.com/seminvestr/weightpack/simd"
)

// Verbatim f32 storage: encode is a copy, decode optionally narrows to
// bf16 via ordered round-demote.

func encF32(raw []float32, _ *PerThread, packed Span[float32], ofs int) {
	copy(packed.data[ofs:ofs+len(raw)], raw)
}

func f32Load2[T Element](p ConstSpan[float32], ofs int) (simd.Vec[T], simd.Vec[T]) {
	nf := simd.Lanes[float32]()
	if isF32[T]() {
		return vec2[T](simd.Load(p.data[ofs:]), simd.Load(p.data[ofs+nf:]))
	}

	f0 := simd.Load(p.data[ofs:])
	f1 := simd.Load(p.data[ofs+nf:])
	f2 := simd.Load(p.data[ofs+2*nf:])
	f3 := simd.Load(p.data[ofs+3*nf:])
	return vec2[T](simd.DemoteRound2(f0, f1), simd.DemoteRound2(f2, f3))
}

func f32DZP[T Element](p ConstSpan[float32], ofs int, out []T, num int) {
	if isF32[T]() {
		f32DZPF32(p, ofs, any(out).([]float32), num)
		return
	}
	f32DZPBF16(p, ofs, any(out).([]bf16.Bits), num)
}

func f32DZPF32(p ConstSpan[float32], ofs int, out []float32, num int) {
	nf := simd.Lanes[float32]()

	i := 0
	for ; i+nf <= num; i += nf {
		simd.Store(simd.Load(p.data[ofs+i:]), out[i:])
	}
	if remaining := num - i; remaining != 0 {
		// The full-vector store adds the zero padding.
		simd.Store(loadTail(p.data, ofs+i, remaining), out[i:])
	}
}

func f32DZPBF16(p ConstSpan[float32], ofs int, out []bf16.Bits, num int) {
	nf := simd.Lanes[float32]()

	i := 0
	for ; i+2*nf <= num; i += 2 * nf {
		f0 := simd.Load(p.data[ofs+i:])
		f1 := simd.Load(p.data[ofs+i+nf:])
		simd.Store(simd.DemoteRound2(f0, f1), out[i:])
	}
	if remaining := num - i; remaining != 0 {
		f0 := loadTail(p.data, ofs+i, remaining)
		f1 := loadTail(p.data, ofs+i+nf, remaining-nf)
		simd.Store(simd.DemoteRound2(f0, f1), out[i:])
	}
}
