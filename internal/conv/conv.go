// Package conv provides byte-level views for little-endian persistence
// of packed buffers. The casts are views, not copies; mutating the view
// mutates the original.
//
// Byte order: these views expose native memory order. All supported
// targets are little-endian; the on-disk format is little-endian.
package conv

import (
	"unsafe"
)

// ByteView reinterprets a slice of byte-sized elements as []byte.
func ByteView[T ~byte](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)) //nolint:gosec // fixed-size reinterpretation
}

// F32Bytes reinterprets a []float32 as []byte.
func F32Bytes(s []float32) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4) //nolint:gosec // fixed-size reinterpretation
}

// BytesF32 reinterprets a []byte as []float32. len(b) must be a
// multiple of 4.
func BytesF32(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4) //nolint:gosec // fixed-size reinterpretation
}

// U16Bytes reinterprets a slice of 16-bit elements as []byte.
func U16Bytes[T ~uint16](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*2) //nolint:gosec // fixed-size reinterpretation
}

// BytesU16 reinterprets a []byte as a slice of 16-bit elements.
// len(b) must be a multiple of 2.
func BytesU16[T ~uint16](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/2) //nolint:gosec // fixed-size reinterpretation
}

// Bytes reinterprets a []byte as a slice of byte-sized elements.
func Bytes[T ~byte](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)) //nolint:gosec // fixed-size reinterpretation
}
