// Package weightpack compresses dense neural-network weights into packed
// streams (verbatim f32, bf16, 8-bit switching float, 4.5-bit
// non-uniform quantization) and serves SIMD-friendly decode paths plus
// fused matrix-vector products over them.
//
// Offline, a Compressor encodes named tensors in parallel and persists
// them to a blob store. Online, the compress package decodes arbitrary
// sub-ranges and the ops package computes tiled, pool-parallel
// matrix-vector products directly over the packed representation.
package weightpack
