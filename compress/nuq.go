package compress

import (
	"fmt"

	"github.com/seminvestr/weightpack/bf16"
	"github.com/seminvestr/weightpack/internal/cluster"
	"github.com/seminvestr/weightpack/internal/conv"
	"github.com/seminvestr/weightpack/internal/nibble"
	"github.com/seminvestr/weightpack/simd"
)

// Non-uniform quantization: each group of 256 consecutive samples owns a
// codebook of up to 16 centers found by exact 1-D K-means. On the wire a
// group is 16 bf16 centers (32 bytes, little-endian) followed by 128
// bytes of packed 4-bit indices: 4.5 bits per sample amortized.

const (
	// NUQClusters is the codebook size per group.
	NUQClusters = cluster.MaxClusters

	// NUQGroupSize is the number of samples sharing one codebook.
	NUQGroupSize = cluster.GroupSize

	nuqHeaderBytes = NUQClusters * 2
	nuqNibbleBytes = NUQGroupSize / 2
	nuqGroupBytes  = nuqHeaderBytes + nuqNibbleBytes

	nuqBlock = 4 * simd.MaxLanes // samples per packed register
)

// NUQPackedEnd returns the total byte count of a NUQ stream holding num
// samples. The final group is padded to full size.
func NUQPackedEnd(num int) int {
	groups := (num + NUQGroupSize - 1) / NUQGroupSize
	return groups * nuqGroupBytes
}

func encNUQ(raw []float32, tls *PerThread, packed Span[NUQByte], ofs int) {
	if ofs%NUQGroupSize != 0 {
		panic(fmt.Sprintf("compress: NUQ offset %d is not group-aligned", ofs))
	}
	d := conv.ByteView(packed.data)
	num := len(raw)

	var centers [NUQClusters]float32
	if tls.nuqIndices == nil {
		tls.nuqIndices = make([]uint16, NUQGroupSize)
	}
	idx := tls.nuqIndices

	for done := 0; done < num; done += NUQGroupSize {
		n := num - done
		if n > NUQGroupSize {
			n = NUQGroupSize
		}
		group := raw[done : done+n]
		cluster.ClusterExactL2(group, &tls.Buf, &centers, idx[:n])

		base := (ofs/NUQGroupSize + done/NUQGroupSize) * nuqGroupBytes
		for c := 0; c < NUQClusters; c++ {
			bits := bf16.FromFloat32(centers[c])
			d[base+2*c] = byte(bits)
			d[base+2*c+1] = byte(bits >> 8)
		}

		for i := n; i < NUQGroupSize; i++ {
			idx[i] = 0
		}
		nib := d[base+nuqHeaderBytes : base+nuqGroupBytes]
		for block := 0; block < NUQGroupSize/nuqBlock; block++ {
			b := block * nuqBlock
			v0 := simd.LoadU16N(idx[b:], simd.MaxLanes)
			v1 := simd.LoadU16N(idx[b+simd.MaxLanes:], simd.MaxLanes)
			v2 := simd.LoadU16N(idx[b+2*simd.MaxLanes:], simd.MaxLanes)
			v3 := simd.LoadU16N(idx[b+3*simd.MaxLanes:], simd.MaxLanes)
			bytes := nibble.OrderedPackU16(v0, v1, v2, v3)
			copy(nib[block*len(bytes):], bytes[:])
		}

		if tls.collect {
			for i := 0; i < n; i++ {
				decoded := bf16.ToFloat32(bf16.FromFloat32(centers[idx[i]]))
				tls.Stats.Notify(group[i], decoded)
			}
		}
	}
}

// nuqCentersF32 loads a group's codebook, promoting the stored bf16
// centers to f32.
func nuqCentersF32(d []byte, g int, tbl *[NUQClusters]float32) {
	base := g * nuqGroupBytes
	for c := 0; c < NUQClusters; c++ {
		bits := bf16.Bits(d[base+2*c]) | bf16.Bits(d[base+2*c+1])<<8
		tbl[c] = bf16.ToFloat32(bits)
	}
}

func nuqCentersBF16(d []byte, g int, tbl *[NUQClusters]bf16.Bits) {
	base := g * nuqGroupBytes
	for c := 0; c < NUQClusters; c++ {
		tbl[c] = bf16.Bits(d[base+2*c]) | bf16.Bits(d[base+2*c+1])<<8
	}
}

func nuqNibbles(d []byte, g int) []byte {
	base := g*nuqGroupBytes + nuqHeaderBytes
	return d[base : base+nuqNibbleBytes]
}

// nuqDecodeRangeF32 decodes an arbitrary sample range, crossing group
// boundaries as needed.
func nuqDecodeRangeF32(d []byte, ofs int, out []float32, num int) {
	g := -1
	var tbl [NUQClusters]float32
	var nib []byte
	for i := 0; i < num; i++ {
		s := ofs + i
		if sg := s / NUQGroupSize; sg != g {
			g = sg
			nuqCentersF32(d, g, &tbl)
			nib = nuqNibbles(d, g)
		}
		out[i] = tbl[nibble.At(nib, s%NUQGroupSize)]
	}
}

func nuqDecodeRangeBF16(d []byte, ofs int, out []bf16.Bits, num int) {
	g := -1
	var tbl [NUQClusters]bf16.Bits
	var nib []byte
	for i := 0; i < num; i++ {
		s := ofs + i
		if sg := s / NUQGroupSize; sg != g {
			g = sg
			nuqCentersBF16(d, g, &tbl)
			nib = nuqNibbles(d, g)
		}
		out[i] = tbl[nibble.At(nib, s%NUQGroupSize)]
	}
}

func nuqLoad2[T Element](p ConstSpan[NUQByte], ofs int) (simd.Vec[T], simd.Vec[T]) {
	d := conv.ByteView(p.data)
	n := simd.Lanes[T]()
	if isF32[T]() {
		var buf [2 * simd.MaxLanes]float32
		nuqDecodeRangeF32(d, ofs, buf[:], 2*n)
		return vec2[T](simd.Load(buf[:]), simd.Load(buf[n:]))
	}
	var buf [2 * simd.MaxLanes]bf16.Bits
	nuqDecodeRangeBF16(d, ofs, buf[:], 2*n)
	return vec2[T](simd.Load(buf[:]), simd.Load(buf[n:]))
}

func nuqDZP[T Element](p ConstSpan[NUQByte], ofs int, out []T, num int) {
	d := conv.ByteView(p.data)
	if isF32[T]() {
		o := any(out).([]float32)
		nuqStreamF32(d, ofs, o, num)
		zeroPadF32(o, num)
		return
	}
	o := any(out).([]bf16.Bits)
	nuqStreamBF16(d, ofs, o, num)
	zeroPadBF16(o, num)
}

// nuqStreamBF16 walks whole 64-sample blocks with the vector unpack and
// falls back to the range decoder for unaligned edges.
func nuqStreamBF16(d []byte, ofs int, out []bf16.Bits, num int) {
	i := 0
	for i < num {
		s := ofs + i
		g := s / NUQGroupSize
		within := s % NUQGroupSize
		take := NUQGroupSize - within
		if take > num-i {
			take = num - i
		}

		if within%nuqBlock != 0 || take < nuqBlock {
			nuqDecodeRangeBF16(d, s, out[i:], take)
			i += take
			continue
		}

		var tbl [NUQClusters]bf16.Bits
		nuqCentersBF16(d, g, &tbl)
		nib := nuqNibbles(d, g)
		blocks := take / nuqBlock
		for b := 0; b < blocks; b++ {
			var reg nibble.Bytes32
			copy(reg[:], nib[within/2+b*len(reg):])
			lo, hi := reg.LowerHalf(), reg.UpperHalf()
			pos := i + b*nuqBlock
			simd.Store(simd.TableLookup(&tbl, nibble.OrderedUnpackU16(lo, 0)), out[pos:])
			simd.Store(simd.TableLookup(&tbl, nibble.OrderedUnpackU16(lo, 1)), out[pos+simd.MaxLanes:])
			simd.Store(simd.TableLookup(&tbl, nibble.OrderedUnpackU16(hi, 0)), out[pos+2*simd.MaxLanes:])
			simd.Store(simd.TableLookup(&tbl, nibble.OrderedUnpackU16(hi, 1)), out[pos+3*simd.MaxLanes:])
		}
		i += blocks * nuqBlock
	}
}

func nuqStreamF32(d []byte, ofs int, out []float32, num int) {
	i := 0
	for i < num {
		s := ofs + i
		g := s / NUQGroupSize
		within := s % NUQGroupSize
		take := NUQGroupSize - within
		if take > num-i {
			take = num - i
		}

		if within%nuqBlock != 0 || take < nuqBlock {
			nuqDecodeRangeF32(d, s, out[i:], take)
			i += take
			continue
		}

		var tbl [NUQClusters]float32
		nuqCentersF32(d, g, &tbl)
		nib := nuqNibbles(d, g)
		blocks := take / nuqBlock
		for b := 0; b < blocks; b++ {
			var reg nibble.Bytes32
			copy(reg[:], nib[within/2+b*len(reg):])
			lo, hi := reg.LowerHalf(), reg.UpperHalf()
			pos := i + b*nuqBlock
			expandU16(&tbl, nibble.OrderedUnpackU16(lo, 0), out[pos:])
			expandU16(&tbl, nibble.OrderedUnpackU16(lo, 1), out[pos+simd.MaxLanes:])
			expandU16(&tbl, nibble.OrderedUnpackU16(hi, 0), out[pos+2*simd.MaxLanes:])
			expandU16(&tbl, nibble.OrderedUnpackU16(hi, 1), out[pos+3*simd.MaxLanes:])
		}
		i += blocks * nuqBlock
	}
}

// expandU16 is the f32 table lookup over a full index register: one u16
// register expands to two f32 registers' worth of samples.
func expandU16(tbl *[NUQClusters]float32, idx simd.VecU16, out []float32) {
	for j := 0; j < simd.MaxLanes; j++ {
		out[j] = tbl[idx[j]&15]
	}
}
