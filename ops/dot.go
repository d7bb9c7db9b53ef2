// Package ops provides matrix-vector products over packed weight
// streams, built on the decompress-and-call fusion.
package ops

import (
	"math"

	"github.com/seminvestr/weightpack/bf16"
	"github.com/seminvestr/weightpack/compress"
	"github.com/seminvestr/weightpack/simd"
)

// mulAddPair accumulates w*v into sum at f32 width. A bf16 pair carries
// two f32 registers' worth of lanes and contributes two fused
// multiply-adds.
func mulAddPair[T compress.Element](w, v simd.Vec[T], sum *simd.Vec[float32]) {
	switch wv := any(w).(type) {
	case simd.Vec[float32]:
		*sum = simd.MulAdd(wv, any(v).(simd.Vec[float32]), *sum)
	case simd.Vec[bf16.Bits]:
		vv := any(v).(simd.Vec[bf16.Bits])
		*sum = simd.MulAdd(simd.PromoteLower(wv), simd.PromoteLower(vv), *sum)
		*sum = simd.MulAdd(simd.PromoteUpper(wv), simd.PromoteUpper(vv), *sum)
	}
}

// products returns the lane products of one pair at f32 width; for bf16
// inputs the two halves are returned separately.
func products[T compress.Element](w, v simd.Vec[T]) (lo, hi simd.Vec[float32], twoHalves bool) {
	switch wv := any(w).(type) {
	case simd.Vec[float32]:
		return simd.Mul(wv, any(v).(simd.Vec[float32])), simd.Vec[float32]{}, false
	case simd.Vec[bf16.Bits]:
		vv := any(v).(simd.Vec[bf16.Bits])
		lo = simd.Mul(simd.PromoteLower(wv), simd.PromoteLower(vv))
		hi = simd.Mul(simd.PromoteUpper(wv), simd.PromoteUpper(vv))
		return lo, hi, true
	}
	return
}

// DotKernel is the plain fused multiply-add kernel. Its reduction is not
// bit-exact across thread counts.
type DotKernel[T compress.Element] struct{}

// Update4 accumulates four pairs into the four sum registers.
func (DotKernel[T]) Update4(w0, w1, w2, w3, v0, v1, v2, v3 simd.Vec[T], sum, comp *[4]simd.Vec[float32]) {
	mulAddPair(w0, v0, &sum[0])
	mulAddPair(w1, v1, &sum[1])
	mulAddPair(w2, v2, &sum[2])
	mulAddPair(w3, v3, &sum[3])
}

// Update1 accumulates one pair into the first sum register.
func (DotKernel[T]) Update1(w0, v0 simd.Vec[T], sum0, comp0 *simd.Vec[float32]) {
	mulAddPair(w0, v0, sum0)
}

// Reduce returns the scalar total.
func (DotKernel[T]) Reduce(sum, comp *[4]simd.Vec[float32]) float32 {
	total := simd.Add(simd.Add(sum[0], sum[1]), simd.Add(sum[2], sum[3]))
	return simd.ReduceSum(total)
}

// CompensatedDotKernel tracks a Neumaier compensation term per lane,
// recovering the low-order bits the plain kernel drops.
type CompensatedDotKernel[T compress.Element] struct{}

func addCompensated(p simd.Vec[float32], sum, comp *simd.Vec[float32]) {
	for i := 0; i < simd.VecBytes/4; i++ {
		s := sum.Raw[i]
		pi := p.Raw[i]
		t := s + pi
		if math.Abs(float64(s)) >= math.Abs(float64(pi)) {
			comp.Raw[i] += (s - t) + pi
		} else {
			comp.Raw[i] += (pi - t) + s
		}
		sum.Raw[i] = t
	}
}

func updateCompensated[T compress.Element](w, v simd.Vec[T], sum, comp *simd.Vec[float32]) {
	lo, hi, twoHalves := products(w, v)
	addCompensated(lo, sum, comp)
	if twoHalves {
		addCompensated(hi, sum, comp)
	}
}

// Update4 accumulates four pairs with per-lane compensation.
func (CompensatedDotKernel[T]) Update4(w0, w1, w2, w3, v0, v1, v2, v3 simd.Vec[T], sum, comp *[4]simd.Vec[float32]) {
	updateCompensated(w0, v0, &sum[0], &comp[0])
	updateCompensated(w1, v1, &sum[1], &comp[1])
	updateCompensated(w2, v2, &sum[2], &comp[2])
	updateCompensated(w3, v3, &sum[3], &comp[3])
}

// Update1 accumulates one pair with compensation.
func (CompensatedDotKernel[T]) Update1(w0, v0 simd.Vec[T], sum0, comp0 *simd.Vec[float32]) {
	updateCompensated(w0, v0, sum0, comp0)
}

// Reduce folds the compensation terms into the scalar total.
func (CompensatedDotKernel[T]) Reduce(sum, comp *[4]simd.Vec[float32]) float32 {
	total := simd.Add(simd.Add(sum[0], sum[1]), simd.Add(sum[2], sum[3]))
	totalComp := simd.Add(simd.Add(comp[0], comp[1]), simd.Add(comp[2], comp[3]))
	return simd.ReduceSum(total) + simd.ReduceSum(totalComp)
}

// Dot computes the dot product of num packed weights starting at ofs
// with vec[:num], using the compensated kernel.
func Dot[W compress.Packed](w compress.ConstSpan[W], ofs int, vec []float32, num int) float32 {
	return compress.DecompressAndCall[float32](w, ofs, vec, num, CompensatedDotKernel[float32]{})
}

// DotSelf computes the sum of squares of vec[:num] via the single-input
// fusion (the normalization building block).
func DotSelf(vec []float32, num int) float32 {
	return compress.DecompressAndCallSelf[float32](vec, num, CompensatedDotKernel[float32]{})
}
