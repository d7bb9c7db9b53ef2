package nibble

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seminvestr/weightpack/simd"
)

func iota16(start uint16) simd.VecU16 {
	var v simd.VecU16
	for i := range v {
		v[i] = (start + uint16(i)) & 15
	}
	return v
}

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := [][4]simd.VecU16{
		{iota16(0), simdSet(1), oddEven(1, 0), reverse(iota16(0))},
		{iota16(0), iota16(1), iota16(2), iota16(3)},
	}

	for _, vs := range cases {
		packed := OrderedPackU16(vs[0], vs[1], vs[2], vs[3])
		lo := packed.LowerHalf()
		hi := packed.UpperHalf()

		assert.Equal(t, vs[0], OrderedUnpackU16(lo, 0))
		assert.Equal(t, vs[1], OrderedUnpackU16(lo, 1))
		assert.Equal(t, vs[2], OrderedUnpackU16(hi, 0))
		assert.Equal(t, vs[3], OrderedUnpackU16(hi, 1))
	}
}

func TestPackUnpackRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for rep := 0; rep < 100; rep++ {
		var vs [4]simd.VecU16
		for i := range vs {
			for j := range vs[i] {
				vs[i][j] = uint16(rng.Intn(16))
			}
		}

		packed := OrderedPackU16(vs[0], vs[1], vs[2], vs[3])
		lo := packed.LowerHalf()
		hi := packed.UpperHalf()
		assert.Equal(t, vs[0], OrderedUnpackU16(lo, 0))
		assert.Equal(t, vs[1], OrderedUnpackU16(lo, 1))
		assert.Equal(t, vs[2], OrderedUnpackU16(hi, 0))
		assert.Equal(t, vs[3], OrderedUnpackU16(hi, 1))
	}
}

func TestAtAgreesWithVectorUnpack(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	samples := make([]uint16, 128)
	for i := range samples {
		samples[i] = uint16(rng.Intn(16))
	}

	var packed []byte
	for base := 0; base < len(samples); base += 64 {
		v0 := simd.LoadU16N(samples[base:], 16)
		v1 := simd.LoadU16N(samples[base+16:], 16)
		v2 := simd.LoadU16N(samples[base+32:], 16)
		v3 := simd.LoadU16N(samples[base+48:], 16)
		b := OrderedPackU16(v0, v1, v2, v3)
		packed = append(packed, b[:]...)
	}

	for i, want := range samples {
		assert.Equal(t, byte(want), At(packed, i), "sample %d", i)
	}
}

func simdSet(v uint16) simd.VecU16 {
	var out simd.VecU16
	for i := range out {
		out[i] = v
	}
	return out
}

func oddEven(odd, even uint16) simd.VecU16 {
	var out simd.VecU16
	for i := range out {
		if i%2 == 0 {
			out[i] = even
		} else {
			out[i] = odd
		}
	}
	return out
}

func reverse(v simd.VecU16) simd.VecU16 {
	var out simd.VecU16
	for i := range out {
		out[i] = v[len(v)-1-i]
	}
	return out
}
