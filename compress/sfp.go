package compress

import (
	"math"

	"github.com/seminvestr/weightpack/bf16"
	"github.com/seminvestr/weightpack/simd"
)

// Switching floating point: 8 bits per sample, 1 sign bit plus a 7-bit
// magnitude code. The mantissa width switches with the binade: values in
// [2^-8, 1.875] carry 3 mantissa bits, values in [2^-15, 2^-8) carry 2.
// Magnitudes below 2^-16 round to zero; magnitudes above SFPMax are the
// caller's responsibility to rescale before encoding.
//
// Magnitude code layout: 0 is zero; 1..28 are the 2-bit binades
// (e in [-15, -9]); 29..100 are the 3-bit binades (e in [-8, 0]).

// SFPMax is the largest encodable magnitude: (1 + 7/8) * 2^0.
const SFPMax float32 = 1.875

const (
	sfpMinExp    = -15
	sfpSwitchExp = -8
	sfpLowCodes  = 1 + (sfpSwitchExp-sfpMinExp)*4 // first code of the 3-bit band
)

func sfpEncodeByte(x float32) SFPByte {
	var sign SFPByte
	a := float64(x)
	if math.Signbit(a) {
		sign = 0x80
		a = -a
	}
	if a < 0x1p-16 {
		return sign
	}

	_, exp := math.Frexp(a) // a in [2^(exp-1), 2^exp)
	e := exp - 1
	if e > 0 {
		e = 0
	}
	if e < sfpMinExp {
		e = sfpMinExp
	}
	k := 2
	if e >= sfpSwitchExp {
		k = 3
	}

	// Round onto the grid of the binade: a = q * 2^(e-k), q in [2^k, 2^(k+1)].
	q := int(math.RoundToEven(math.Ldexp(a, k-e)))
	if q < 1<<k {
		// Only possible at e == minExp: below the smallest normal step.
		if q < 1<<(k-1) { // nearer to zero than to 2^minExp
			return sign
		}
		q = 1 << k
	}
	if q == 1<<(k+1) { // carry into the next binade
		e++
		if e > 0 { // input exceeded SFPMax; saturate
			e = 0
			k = 3
			q = 1<<(k+1) - 1
		} else {
			if e >= sfpSwitchExp {
				k = 3
			}
			q = 1 << k
		}
	}
	f := q - 1<<k

	if k == 2 {
		return sign | SFPByte(1+(e-sfpMinExp)*4+f)
	}
	return sign | SFPByte(sfpLowCodes+(e-sfpSwitchExp)*8+f)
}

func sfpDecodeByte(b SFPByte) float32 {
	m := int(b & 0x7F)
	var v float64
	switch {
	case m == 0:
		v = 0
	case m < sfpLowCodes:
		mm := m - 1
		e := sfpMinExp + mm/4
		f := mm % 4
		v = math.Ldexp(1+float64(f)/4, e)
	default:
		mm := m - sfpLowCodes
		e := sfpSwitchExp + mm/8
		f := mm % 8
		v = math.Ldexp(1+float64(f)/8, e)
	}
	if b&0x80 != 0 {
		v = -v
	}
	return float32(v)
}

func encSFP(raw []float32, tls *PerThread, packed Span[SFPByte], ofs int) {
	for i, x := range raw {
		packed.data[ofs+i] = sfpEncodeByte(x)
	}

	if tls != nil && tls.collect {
		for i, x := range raw {
			tls.Stats.Notify(x, sfpDecodeByte(packed.data[ofs+i]))
		}
	}
}

func sfpLoad2[T Element](p ConstSpan[SFPByte], ofs int) (simd.Vec[T], simd.Vec[T]) {
	n := simd.Lanes[T]()
	var v0, v1 simd.Vec[T]
	if isF32[T]() {
		a := any(&v0).(*simd.Vec[float32])
		b := any(&v1).(*simd.Vec[float32])
		for i := 0; i < n; i++ {
			a.Raw[i] = sfpDecodeByte(p.data[ofs+i])
			b.Raw[i] = sfpDecodeByte(p.data[ofs+n+i])
		}
		return v0, v1
	}
	a := any(&v0).(*simd.Vec[bf16.Bits])
	b := any(&v1).(*simd.Vec[bf16.Bits])
	for i := 0; i < n; i++ {
		// SFP values carry at most 3 mantissa bits: exact in bf16.
		a.Raw[i] = bf16.FromFloat32(sfpDecodeByte(p.data[ofs+i]))
		b.Raw[i] = bf16.FromFloat32(sfpDecodeByte(p.data[ofs+n+i]))
	}
	return v0, v1
}

func sfpDZP[T Element](p ConstSpan[SFPByte], ofs int, out []T, num int) {
	if isF32[T]() {
		o := any(out).([]float32)
		for i := 0; i < num; i++ {
			o[i] = sfpDecodeByte(p.data[ofs+i])
		}
		zeroPadF32(o, num)
		return
	}
	o := any(out).([]bf16.Bits)
	for i := 0; i < num; i++ {
		o[i] = bf16.FromFloat32(sfpDecodeByte(p.data[ofs+i]))
	}
	zeroPadBF16(o, num)
}

func zeroPadF32(out []float32, num int) {
	nf := simd.Lanes[float32]()
	for i := num; i%nf != 0; i++ {
		out[i] = 0
	}
}

func zeroPadBF16(out []bf16.Bits, num int) {
	n16 := simd.Lanes[bf16.Bits]()
	for i := num; i%n16 != 0; i++ {
		out[i] = 0
	}
}
