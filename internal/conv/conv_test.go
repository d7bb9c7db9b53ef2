package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type myByte byte

func TestByteViewIsAView(t *testing.T) {
	s := []myByte{1, 2, 3}
	b := ByteView(s)
	assert.Equal(t, []byte{1, 2, 3}, b)

	b[1] = 9
	assert.Equal(t, myByte(9), s[1])

	assert.Nil(t, ByteView([]myByte(nil)))
}

func TestF32BytesRoundTrip(t *testing.T) {
	s := []float32{1.5, -2.25}
	b := F32Bytes(s)
	assert.Len(t, b, 8)

	got := BytesF32(b)
	assert.Equal(t, s, got)

	// Little-endian layout of 1.5.
	bits := math.Float32bits(1.5)
	assert.Equal(t, byte(bits), b[0])
	assert.Equal(t, byte(bits>>24), b[3])
}

func TestU16Round(t *testing.T) {
	s := []uint16{0x1234, 0xABCD}
	b := U16Bytes(s)
	assert.Len(t, b, 4)
	assert.Equal(t, byte(0x34), b[0])

	got := BytesU16[uint16](b)
	assert.Equal(t, s, got)
}
