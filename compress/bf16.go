package compress

import (
	"github.com/seminvestr/weightpack/bf16"
	"github.com/seminvestr/weightpack/simd"
)

// Truncated 16-bit storage. It is fine for the lower 16 mantissa bits of
// the input to be nonzero because encode rounds rather than truncates.

func encBF16(raw []float32, tls *PerThread, packed Span[bf16.Bits], ofs int) {
	nf := simd.Lanes[float32]()
	num := len(raw)

	i := 0
	for ; i+2*nf <= num; i += 2 * nf {
		raw0 := simd.Load(raw[i:])
		raw1 := simd.Load(raw[i+nf:])
		simd.Store(simd.DemoteRound2(raw0, raw1), packed.data[ofs+i:])
	}
	if remaining := num - i; remaining != 0 {
		raw0 := loadTail(raw, i, remaining)
		raw1 := loadTail(raw, i+nf, remaining-nf)
		simd.StoreN(simd.DemoteRound2(raw0, raw1), packed.data[ofs+i:], remaining)
	}

	if tls != nil && tls.collect {
		for j := 0; j < num; j++ {
			tls.Stats.Notify(raw[j], bf16.ToFloat32(packed.data[ofs+j]))
		}
	}
}

func bf16Load2[T Element](p ConstSpan[bf16.Bits], ofs int) (simd.Vec[T], simd.Vec[T]) {
	if isF32[T]() {
		packed0 := simd.Load(p.data[ofs:])
		return vec2[T](simd.PromoteLower(packed0), simd.PromoteUpper(packed0))
	}

	n16 := simd.Lanes[bf16.Bits]()
	return vec2[T](simd.Load(p.data[ofs:]), simd.Load(p.data[ofs+n16:]))
}

func bf16DZP[T Element](p ConstSpan[bf16.Bits], ofs int, out []T, num int) {
	if isF32[T]() {
		bf16DZPF32(p, ofs, any(out).([]float32), num)
		return
	}
	bf16DZPBF16(p, ofs, any(out).([]bf16.Bits), num)
}

func bf16DZPBF16(p ConstSpan[bf16.Bits], ofs int, out []bf16.Bits, num int) {
	n16 := simd.Lanes[bf16.Bits]()

	i := 0
	for ; i+n16 <= num; i += n16 {
		simd.Store(simd.Load(p.data[ofs+i:]), out[i:])
	}
	if remaining := num - i; remaining != 0 {
		simd.Store(loadTail(p.data, ofs+i, remaining), out[i:])
	}
}

func bf16DZPF32(p ConstSpan[bf16.Bits], ofs int, out []float32, num int) {
	nf := simd.Lanes[float32]()
	n16 := simd.Lanes[bf16.Bits]()

	i := 0
	for ; i+n16 <= num; i += n16 {
		packed0 := simd.Load(p.data[ofs+i:])
		simd.Store(simd.PromoteLower(packed0), out[i:])
		simd.Store(simd.PromoteUpper(packed0), out[i+nf:])
	}
	if remaining := num - i; remaining != 0 {
		packed0 := loadTail(p.data, ofs+i, remaining)
		raw0 := simd.PromoteLower(packed0)
		raw1 := simd.PromoteUpper(packed0)
		// If at most one vector, the first store adds zero padding. Check
		// before storing the second, because callers only pad to one vector.
		simd.Store(raw0, out[i:])
		if remaining >= nf {
			simd.Store(raw1, out[i+nf:])
		}
	}
}
