package ops

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seminvestr/weightpack/bf16"
	"github.com/seminvestr/weightpack/compress"
	"github.com/seminvestr/weightpack/pool"
)

func gaussian(n int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(rng.NormFloat64())
	}
	return out
}

func pack[P compress.Packed](t *testing.T, raw []float32) compress.ConstSpan[P] {
	t.Helper()
	span := compress.AllocSpan[P](len(raw))
	ws := compress.NewWorkingSet(nil)
	compress.Compress(raw, len(raw), ws, span, 0, pool.Serial{})
	return span.Const()
}

func reference(mat []float32, outer, inner int, vec, add []float32) []float32 {
	out := make([]float32, outer)
	for r := 0; r < outer; r++ {
		var s float64
		for c := 0; c < inner; c++ {
			s += float64(mat[r*inner+c]) * float64(vec[c])
		}
		if add != nil {
			s += float64(add[r])
		}
		out[r] = float32(s)
	}
	return out
}

func TestMatVecIdentity(t *testing.T) {
	// S3: identity matrix returns the vector.
	mat := []float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	vec := []float32{7, -1, 0, 3}
	out := make([]float32, 4)

	MatVec(pack[float32](t, mat), 0, 4, 4, vec, out, pool.Serial{})
	assert.Equal(t, vec, out)
}

func TestMatVecAddBias(t *testing.T) {
	// S4: ones matrix with bias.
	mat := []float32{1, 1, 1, 1}
	vec := []float32{2, 3}
	add := []float32{10, -10}
	out := make([]float32, 2)

	MatVecAdd(pack[float32](t, mat), 0, 2, 2, vec, add, out, pool.Serial{})
	assert.Equal(t, []float32{15, -5}, out)
}

func TestMatVecRandomShapes(t *testing.T) {
	p := pool.New(4)
	for _, tc := range []struct{ outer, inner int }{
		{4, 4},
		{7, 33},      // remainder rows only
		{64, 128},    // strips without remainder
		{200, 100},   // 25 strips of 8 rows, no remainder
		{300, 2500},  // multiple column tiles plus residual
		{129, 2048},  // exactly one full tile
	} {
		mat := gaussian(tc.outer*tc.inner, int64(tc.outer))
		vec := gaussian(tc.inner, int64(tc.inner)+1)
		want := reference(mat, tc.outer, tc.inner, vec, nil)

		out := make([]float32, tc.outer)
		MatVec(pack[float32](t, mat), 0, tc.outer, tc.inner, vec, out, p)

		for r := range want {
			require.InDelta(t, want[r], out[r], 1e-2+1e-4*float64(tc.inner),
				"shape %dx%d row %d", tc.outer, tc.inner, r)
		}
	}
}

func TestMatVecAddRandom(t *testing.T) {
	p := pool.New(3)
	outer, inner := 150, 320
	mat := gaussian(outer*inner, 5)
	vec := gaussian(inner, 6)
	add := gaussian(outer, 7)
	want := reference(mat, outer, inner, vec, add)

	out := make([]float32, outer)
	MatVecAdd(pack[float32](t, mat), 0, outer, inner, vec, add, out, p)

	for r := range want {
		require.InDelta(t, want[r], out[r], 0.05, "row %d", r)
	}
}

func TestMatVecBF16Matrix(t *testing.T) {
	outer, inner := 40, 96
	mat := gaussian(outer*inner, 8)
	vec := gaussian(inner, 9)

	// Reference over the bf16-rounded matrix.
	rounded := make([]float32, len(mat))
	for i, v := range mat {
		rounded[i] = bf16.ToFloat32(bf16.FromFloat32(v))
	}
	want := reference(rounded, outer, inner, vec, nil)

	out := make([]float32, outer)
	MatVec(pack[bf16.Bits](t, mat), 0, outer, inner, vec, out, pool.Serial{})

	for r := range want {
		require.InDelta(t, want[r], out[r], 0.01, "row %d", r)
	}
}

func TestMatVecNUQMatrixExactLevels(t *testing.T) {
	// Matrix entries drawn from 16 bf16-exact levels reconstruct
	// exactly, so the NUQ product matches the f32 reference closely.
	outer, inner := 16, 512
	levels := make([]float32, compress.NUQClusters)
	for i := range levels {
		levels[i] = float32(i-8) / 16
	}
	rng := rand.New(rand.NewSource(10))
	mat := make([]float32, outer*inner)
	for i := range mat {
		mat[i] = levels[rng.Intn(len(levels))]
	}
	vec := gaussian(inner, 11)
	want := reference(mat, outer, inner, vec, nil)

	out := make([]float32, outer)
	MatVec(pack[compress.NUQByte](t, mat), 0, outer, inner, vec, out, pool.New(2))

	for r := range want {
		require.InDelta(t, want[r], out[r], 0.01, "row %d", r)
	}
}

func TestTwoMatVecMatchesTwoCalls(t *testing.T) {
	// P9: bit-equal to two independent MatVec calls.
	outer, inner := 96, 200
	m0 := gaussian(outer*inner, 12)
	m1 := gaussian(outer*inner, 13)
	vec := gaussian(inner, 14)

	p := pool.New(4)
	s0 := pack[float32](t, m0)
	s1 := pack[float32](t, m1)

	want0 := make([]float32, outer)
	want1 := make([]float32, outer)
	MatVec(s0, 0, outer, inner, vec, want0, p)
	MatVec(s1, 0, outer, inner, vec, want1, p)

	out0 := make([]float32, outer)
	out1 := make([]float32, outer)
	TwoMatVec(s0, s1, 0, outer, inner, vec, out0, out1, p)

	assert.Equal(t, want0, out0)
	assert.Equal(t, want1, out1)
}

func TestTwoMatVecAdd(t *testing.T) {
	outer, inner := 33, 70
	m0 := gaussian(outer*inner, 15)
	m1 := gaussian(outer*inner, 16)
	vec := gaussian(inner, 17)
	add0 := gaussian(outer, 18)
	add1 := gaussian(outer, 19)

	want0 := reference(m0, outer, inner, vec, add0)
	want1 := reference(m1, outer, inner, vec, add1)

	out0 := make([]float32, outer)
	out1 := make([]float32, outer)
	TwoMatVecAdd(pack[float32](t, m0), pack[float32](t, m1), 0, outer, inner,
		vec, add0, add1, out0, out1, pool.New(2))

	for r := 0; r < outer; r++ {
		require.InDelta(t, want0[r], out0[r], 0.02, "row %d", r)
		require.InDelta(t, want1[r], out1[r], 0.02, "row %d", r)
	}
}

func TestMatVecMatOffset(t *testing.T) {
	// The matrix lives at a nonzero offset inside a larger stream.
	outer, inner := 8, 64
	pad := 128
	stream := gaussian(pad+outer*inner, 20)
	vec := gaussian(inner, 21)
	want := reference(stream[pad:], outer, inner, vec, nil)

	out := make([]float32, outer)
	MatVec(pack[float32](t, stream), pad, outer, inner, vec, out, pool.Serial{})

	for r := range want {
		require.InDelta(t, want[r], out[r], 0.01, "row %d", r)
	}
}

func TestMatVecShapeBoundsAbort(t *testing.T) {
	mat := gaussian(16, 22)
	vec := gaussian(4, 23)
	out := make([]float32, 5)

	assert.Panics(t, func() {
		MatVec(pack[float32](t, mat), 0, 5, 4, vec, out, pool.Serial{})
	})
}

func TestDotSelf(t *testing.T) {
	v := gaussian(100, 24)
	var want float64
	for _, x := range v {
		want += float64(x) * float64(x)
	}
	assert.InDelta(t, want, float64(DotSelf(v, len(v))), 1e-3)
}

func TestDotKernelsAgree(t *testing.T) {
	num := 257
	w := gaussian(num, 25)
	v := gaussian(num, 26)
	span := pack[float32](t, w)

	plain := compress.DecompressAndCall[float32](span, 0, v, num, DotKernel[float32]{})
	comp := compress.DecompressAndCall[float32](span, 0, v, num, CompensatedDotKernel[float32]{})
	assert.InDelta(t, float64(plain), float64(comp), 1e-3)
}
