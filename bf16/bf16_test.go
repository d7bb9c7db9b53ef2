package bf16

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactValues(t *testing.T) {
	// Values whose mantissa fits in 7 bits survive the round trip exactly.
	for _, v := range []float32{0, 1, -1, 0.5, 2, 3, 4, -0.25, 1.5, 100, -384} {
		assert.Equal(t, v, ToFloat32(FromFloat32(v)), "value %v", v)
	}
}

func TestRoundToNearestEven(t *testing.T) {
	// 1 + 2^-8 sits exactly between 1.0 and 1 + 2^-7; ties go to even (1.0).
	tie := float32(1.0 + 1.0/256.0)
	assert.Equal(t, float32(1.0), ToFloat32(FromFloat32(tie)))

	// 1 + 3*2^-8 ties upward to 1 + 2^-6 (even mantissa).
	tie = float32(1.0 + 3.0/256.0)
	assert.Equal(t, float32(1.0+1.0/64.0), ToFloat32(FromFloat32(tie)))

	// Just above the tie rounds up.
	up := math.Float32frombits(math.Float32bits(1.0+1.0/256.0) + 1)
	assert.Equal(t, float32(1.0+1.0/128.0), ToFloat32(FromFloat32(up)))
}

func TestSignPreserved(t *testing.T) {
	for _, v := range []float32{0.1, -0.1, 1e-20, -1e-20, 3.7e8, -3.7e8} {
		got := ToFloat32(FromFloat32(v))
		assert.Equal(t, math.Signbit(float64(v)), math.Signbit(float64(got)))
	}
}

func TestSpecials(t *testing.T) {
	inf := float32(math.Inf(1))
	assert.Equal(t, inf, ToFloat32(FromFloat32(inf)))
	assert.Equal(t, -inf, ToFloat32(FromFloat32(-inf)))

	nan := float32(math.NaN())
	got := ToFloat32(FromFloat32(nan))
	assert.True(t, math.IsNaN(float64(got)))

	// A NaN with only low fraction bits must not decay to Inf.
	lowNaN := math.Float32frombits(0x7F80_0001)
	got = ToFloat32(FromFloat32(lowNaN))
	assert.True(t, math.IsNaN(float64(got)))
}

func TestRelativeError(t *testing.T) {
	// bf16 keeps 8 mantissa bits including the implicit one, so the
	// relative error is bounded by 2^-8.
	for _, v := range []float32{0.3, 1.7, -2.9, 123.456, 1e-3, 9.99e5} {
		got := ToFloat32(FromFloat32(v))
		rel := math.Abs(float64(got-v)) / math.Abs(float64(v))
		assert.LessOrEqual(t, rel, 1.0/256.0, "value %v", v)
	}
}

func TestSliceCodecs(t *testing.T) {
	src := []float32{1, 2, 3, 4, -0.5}
	enc := make([]Bits, len(src))
	Encode(enc, src)
	dec := make([]float32, len(src))
	Decode(dec, enc)
	assert.Equal(t, src, dec)
}
