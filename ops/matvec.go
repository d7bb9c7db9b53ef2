package ops

import (
	"math/bits"

	"github.com/seminvestr/weightpack/compress"
	"github.com/seminvestr/weightpack/pool"
	"github.com/seminvestr/weightpack/simd"
)

// maxCols bounds the column tile width so one vec slice plus a strip's
// row slices stay resident in a ~32 KiB L1 cache.
const maxCols = 2048

// rowsPerStrip aims for ~128 pool tasks, at least one vector per strip,
// and a power of two for cheap division.
func rowsPerStrip(outer int) int {
	lanes := simd.Lanes[float32]()
	if outer < 128 {
		return lanes
	}
	r := 1 << (bits.Len(uint(outer/128)) - 1)
	if r < lanes {
		r = lanes
	}
	return r
}

// accumulatePartialDotProducts adds the tile's partial dot products into
// out. The upper-left coordinate of the tile is (r0, c0).
func accumulatePartialDotProducts[W compress.Packed](
	mat compress.ConstSpan[W], matOfs, stride, r0, c0, numRows, numCols int,
	vec []float32, out []float32) {
	for r := 0; r < numRows; r++ {
		rowOfs := matOfs + (r0+r)*stride
		out[r] += Dot(mat, rowOfs+c0, vec[c0:c0+numCols], numCols)
	}
}

// setFirstPartialDotProducts sets out to the tile's dot products plus
// init (when non-nil), avoiding a zero-initialize-and-accumulate pass.
func setFirstPartialDotProducts[W compress.Packed](
	mat compress.ConstSpan[W], matOfs, stride, r0, c0, numRows, numCols int,
	vec []float32, init []float32, out []float32) {
	for r := 0; r < numRows; r++ {
		rowOfs := matOfs + (r0+r)*stride
		d := Dot(mat, rowOfs+c0, vec[c0:c0+numCols], numCols)
		if init != nil {
			d += init[r0+r]
		}
		out[r] = d
	}
}

// fullDotProductsForStrip produces the complete dot products (plus the
// optional add vector) for rows [r0, r0+numRows), tiling columns so the
// working set stays in L1.
func fullDotProductsForStrip[W compress.Packed](
	mat compress.ConstSpan[W], matOfs, stride, r0, numRows int,
	vec []float32, add []float32, out []float32) {
	// Tall and skinny: a single tile covers the row.
	if stride <= maxCols {
		setFirstPartialDotProducts(mat, matOfs, stride, r0, 0, numRows, stride, vec, add, out)
		return
	}

	setFirstPartialDotProducts(mat, matOfs, stride, r0, 0, numRows, maxCols, vec, add, out)
	c0 := maxCols
	for ; c0+maxCols <= stride; c0 += maxCols {
		accumulatePartialDotProducts(mat, matOfs, stride, r0, c0, numRows, maxCols, vec, out)
	}
	if c0 < stride { // final cols
		accumulatePartialDotProducts(mat, matOfs, stride, r0, c0, numRows, stride-c0, vec, out)
	}
}

func matVec[W compress.Packed](
	mat compress.ConstSpan[W], matOfs, outer, inner int,
	vec []float32, add []float32, out []float32, p pool.Pool) {
	mat.BoundsCheck(matOfs, outer*inner)

	rps := rowsPerStrip(outer)
	numStrips := outer / rps

	p.Run(0, numStrips, func(strip, worker int) {
		r0 := strip * rps
		fullDotProductsForStrip(mat, matOfs, inner, r0, rps, vec, add, out[r0:])
	})

	// Remaining rows on the caller thread, after the join.
	if r0 := numStrips * rps; r0 < outer {
		fullDotProductsForStrip(mat, matOfs, inner, r0, outer-r0, vec, add, out[r0:])
	}
}

// MatVec computes out[r] = dot(mat[r, :], vec) for r in [0, outer) over
// a row-major packed matrix of shape [outer, inner] starting at matOfs.
func MatVec[W compress.Packed](
	mat compress.ConstSpan[W], matOfs, outer, inner int,
	vec []float32, out []float32, p pool.Pool) {
	matVec(mat, matOfs, outer, inner, vec, nil, out, p)
}

// MatVecAdd additionally adds add[r] to each output row.
func MatVecAdd[W compress.Packed](
	mat compress.ConstSpan[W], matOfs, outer, inner int,
	vec []float32, add []float32, out []float32, p pool.Pool) {
	matVec(mat, matOfs, outer, inner, vec, add, out, p)
}

func twoMatVec[W compress.Packed](
	mat0, mat1 compress.ConstSpan[W], matOfs, outer, inner int,
	vec []float32, add0, add1 []float32, out0, out1 []float32, p pool.Pool) {
	mat0.BoundsCheck(matOfs, outer*inner)
	mat1.BoundsCheck(matOfs, outer*inner)

	rps := rowsPerStrip(outer)
	numStrips := outer / rps

	// Both matrices share one task per strip: the vec slice is hot in
	// cache for the second matrix, and pool overhead is halved.
	p.Run(0, numStrips, func(strip, worker int) {
		r0 := strip * rps
		fullDotProductsForStrip(mat0, matOfs, inner, r0, rps, vec, add0, out0[r0:])
		fullDotProductsForStrip(mat1, matOfs, inner, r0, rps, vec, add1, out1[r0:])
	})

	if r0 := numStrips * rps; r0 < outer {
		fullDotProductsForStrip(mat0, matOfs, inner, r0, outer-r0, vec, add0, out0[r0:])
		fullDotProductsForStrip(mat1, matOfs, inner, r0, outer-r0, vec, add1, out1[r0:])
	}
}

// TwoMatVec computes MatVec for two matrices sharing one vector, e.g.
// the attention Q/K pattern.
func TwoMatVec[W compress.Packed](
	mat0, mat1 compress.ConstSpan[W], matOfs, outer, inner int,
	vec []float32, out0, out1 []float32, p pool.Pool) {
	twoMatVec(mat0, mat1, matOfs, outer, inner, vec, nil, nil, out0, out1, p)
}

// TwoMatVecAdd is TwoMatVec with per-matrix bias vectors.
func TwoMatVecAdd[W compress.Packed](
	mat0, mat1 compress.ConstSpan[W], matOfs, outer, inner int,
	vec []float32, add0, add1 []float32, out0, out1 []float32, p pool.Pool) {
	twoMatVec(mat0, mat1, matOfs, outer, inner, vec, add0, add1, out0, out1, p)
}
