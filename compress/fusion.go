package compress

import (
	"github.com/seminvestr/weightpack/simd"
)

// Kernel accumulates over decompressed vector pairs. sum and comp are
// four-way unrolled f32 accumulators; comp supports compensated
// summation for kernels that want it. Kernels may hold mutable state.
type Kernel[T Element] interface {
	Update4(w0, w1, w2, w3, v0, v1, v2, v3 simd.Vec[T], sum, comp *[4]simd.Vec[float32])
	Update1(w0, v0 simd.Vec[T], sum0, comp0 *simd.Vec[float32])
	Reduce(sum, comp *[4]simd.Vec[float32]) float32
}

// DecompressAndCall decodes T-typed vectors from each of two packed
// inputs in groups of four, passes them to kernel.Update4, zero-pads the
// tail to a vector multiple and feeds it to kernel.Update1, then returns
// kernel.Reduce. Backs dot products over any packed weight type.
//
// vec should be vector-aligned (see mem.AllocAligned); the packed input
// has no alignment requirement.
func DecompressAndCall[T Element, W Packed, V Packed](
	w ConstSpan[W], wOfs int, vec []V, num int, kernel Kernel[T]) float32 {
	vSpan := MakeConstSpan(vec, num)

	var sum, comp [4]simd.Vec[float32]

	n := simd.Lanes[T]()
	i := 0
	for ; i+4*n <= num; i += 4 * n {
		w0, w1 := Decompress2[T](w, wOfs+i)
		w2, w3 := Decompress2[T](w, wOfs+i+2*n)
		v0, v1 := Decompress2[T](vSpan, i)
		v2, v3 := Decompress2[T](vSpan, i+2*n)

		kernel.Update4(w0, w1, w2, w3, v0, v1, v2, v3, &sum, &comp)
	}

	if remaining := num - i; remaining != 0 {
		var paddedW, paddedV [4 * simd.MaxLanes]T
		DecompressAndZeroPad(w, wOfs+i, paddedW[:], remaining)
		DecompressAndZeroPad(vSpan, i, paddedV[:], remaining)

		// 1..4 whole vectors, possibly zero-padded.
		for pos := 0; pos < remaining; pos += n {
			kernel.Update1(simd.Load(paddedW[pos:]), simd.Load(paddedV[pos:]), &sum[0], &comp[0])
		}
	}

	return kernel.Reduce(&sum, &comp)
}

// DecompressAndCallSelf is the single-input variant: the same vectors are
// passed for both kernel operands (self-dot convention, used by
// normalization). This is intentional, not an oversight.
func DecompressAndCallSelf[T Element, V Packed](vec []V, num int, kernel Kernel[T]) float32 {
	vSpan := MakeConstSpan(vec, num)

	var sum, comp [4]simd.Vec[float32]

	n := simd.Lanes[T]()
	i := 0
	for ; i+4*n <= num; i += 4 * n {
		v0, v1 := Decompress2[T](vSpan, i)
		v2, v3 := Decompress2[T](vSpan, i+2*n)

		kernel.Update4(v0, v1, v2, v3, v0, v1, v2, v3, &sum, &comp)
	}

	if remaining := num - i; remaining != 0 {
		var paddedV [4 * simd.MaxLanes]T
		DecompressAndZeroPad(vSpan, i, paddedV[:], remaining)

		for pos := 0; pos < remaining; pos += n {
			v0 := simd.Load(paddedV[pos:])
			kernel.Update1(v0, v0, &sum[0], &comp[0])
		}
	}

	return kernel.Reduce(&sum, &comp)
}
