package mem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestAllocAligned(t *testing.T) {
	sizes := []int{1, 10, 63, 64, 65, 100, 1024}

	for _, size := range sizes {
		buf := AllocAligned(size)
		assert.Len(t, buf, size)

		addr := uintptr(unsafe.Pointer(&buf[0]))
		assert.Equal(t, uintptr(0), addr%Alignment, "size %d", size)
	}

	assert.Nil(t, AllocAligned(0))
	assert.Nil(t, AllocAligned(-1))
}

func TestAllocAlignedFloat32(t *testing.T) {
	buf := AllocAlignedFloat32(33)
	assert.Len(t, buf, 33)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	assert.Equal(t, uintptr(0), addr%Alignment)

	buf[32] = 1.5
	assert.Equal(t, float32(1.5), buf[32])
}

func TestAllocAlignedUint16(t *testing.T) {
	buf := AllocAlignedUint16(7)
	assert.Len(t, buf, 7)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	assert.Equal(t, uintptr(0), addr%Alignment)
}
