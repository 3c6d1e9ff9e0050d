//go:build goexperiment.simd && amd64

// Vectorized accumulator kernels built on Go's experimental simd package
// (AMD64 + GOEXPERIMENT=simd only). Every other build compiles
// simd_scalar.go instead; both files export the same function set, so the
// callers never know which one they got.

package sfnnue

import (
	"simd/archsimd"
)

// Lane counts for 256-bit registers.
const (
	lanesInt16 = 16
	lanesInt32 = 8
)

// SIMDAddInt16 accumulates src into dst element-wise.
func SIMDAddInt16(dst, src []int16) {
	n := len(dst)
	if n != len(src) {
		panic("SIMDAddInt16: slice length mismatch")
	}

	i := 0
	for ; i+lanesInt16 <= n; i += lanesInt16 {
		d := archsimd.LoadInt16x16(dst[i:])
		s := archsimd.LoadInt16x16(src[i:])
		archsimd.StoreInt16x16(dst[i:], d.Add(s))
	}
	for ; i < n; i++ {
		dst[i] += src[i]
	}
}

// SIMDSubInt16 subtracts src from dst element-wise.
func SIMDSubInt16(dst, src []int16) {
	n := len(dst)
	if n != len(src) {
		panic("SIMDSubInt16: slice length mismatch")
	}

	i := 0
	for ; i+lanesInt16 <= n; i += lanesInt16 {
		d := archsimd.LoadInt16x16(dst[i:])
		s := archsimd.LoadInt16x16(src[i:])
		archsimd.StoreInt16x16(dst[i:], d.Sub(s))
	}
	for ; i < n; i++ {
		dst[i] -= src[i]
	}
}

// SIMDAddInt32 accumulates src into dst element-wise.
func SIMDAddInt32(dst, src []int32) {
	n := len(dst)
	if n != len(src) {
		panic("SIMDAddInt32: slice length mismatch")
	}

	i := 0
	for ; i+lanesInt32 <= n; i += lanesInt32 {
		d := archsimd.LoadInt32x8(dst[i:])
		s := archsimd.LoadInt32x8(src[i:])
		archsimd.StoreInt32x8(dst[i:], d.Add(s))
	}
	for ; i < n; i++ {
		dst[i] += src[i]
	}
}

// SIMDSubInt32 subtracts src from dst element-wise.
func SIMDSubInt32(dst, src []int32) {
	n := len(dst)
	if n != len(src) {
		panic("SIMDSubInt32: slice length mismatch")
	}

	i := 0
	for ; i+lanesInt32 <= n; i += lanesInt32 {
		d := archsimd.LoadInt32x8(dst[i:])
		s := archsimd.LoadInt32x8(src[i:])
		archsimd.StoreInt32x8(dst[i:], d.Sub(s))
	}
	for ; i < n; i++ {
		dst[i] -= src[i]
	}
}

// SIMDCopyInt16 copies src into dst.
func SIMDCopyInt16(dst, src []int16) {
	n := min(len(dst), len(src))

	i := 0
	for ; i+lanesInt16 <= n; i += lanesInt16 {
		archsimd.StoreInt16x16(dst[i:], archsimd.LoadInt16x16(src[i:]))
	}
	for ; i < n; i++ {
		dst[i] = src[i]
	}
}

// SIMDCopyInt32 copies src into dst.
func SIMDCopyInt32(dst, src []int32) {
	n := min(len(dst), len(src))

	i := 0
	for ; i+lanesInt32 <= n; i += lanesInt32 {
		archsimd.StoreInt32x8(dst[i:], archsimd.LoadInt32x8(src[i:]))
	}
	for ; i < n; i++ {
		dst[i] = src[i]
	}
}

// SIMDAddInt16Offset adds a weight column starting at src[offset] into
// dst[0:count].
func SIMDAddInt16Offset(dst []int16, src []int16, offset, count int) {
	i := 0
	for ; i+lanesInt16 <= count; i += lanesInt16 {
		d := archsimd.LoadInt16x16(dst[i:])
		s := archsimd.LoadInt16x16(src[offset+i:])
		archsimd.StoreInt16x16(dst[i:], d.Add(s))
	}
	for ; i < count; i++ {
		dst[i] += src[offset+i]
	}
}

// SIMDSubInt16Offset subtracts a weight column starting at src[offset]
// from dst[0:count].
func SIMDSubInt16Offset(dst []int16, src []int16, offset, count int) {
	i := 0
	for ; i+lanesInt16 <= count; i += lanesInt16 {
		d := archsimd.LoadInt16x16(dst[i:])
		s := archsimd.LoadInt16x16(src[offset+i:])
		archsimd.StoreInt16x16(dst[i:], d.Sub(s))
	}
	for ; i < count; i++ {
		dst[i] -= src[offset+i]
	}
}

// SIMDDotProductInt8Uint8 returns sum(weights[i] * inputs[i]) over the
// first count elements. The experimental simd package has no
// multiply-add crossing int8 and uint8 lanes (the VPMADDUBSW shape), so
// this stays an unrolled scalar loop even on the simd build.
func SIMDDotProductInt8Uint8(weights []int8, inputs []uint8, count int) int32 {
	var s0, s1, s2, s3 int32
	i := 0
	for ; i+4 <= count; i += 4 {
		s0 += int32(weights[i]) * int32(inputs[i])
		s1 += int32(weights[i+1]) * int32(inputs[i+1])
		s2 += int32(weights[i+2]) * int32(inputs[i+2])
		s3 += int32(weights[i+3]) * int32(inputs[i+3])
	}
	sum := s0 + s1 + s2 + s3
	for ; i < count; i++ {
		sum += int32(weights[i]) * int32(inputs[i])
	}
	return sum
}

// SIMDClippedReLU writes clamp(input[i] >> shift, 0, 127) into output.
// The shift and clamp vectorize; the narrowing store to uint8 does not
// have a packed form in the experimental API, so lanes are extracted one
// at a time.
func SIMDClippedReLU(input []int32, output []uint8, shift int) {
	n := len(input)

	i := 0
	for ; i+lanesInt32 <= n; i += lanesInt32 {
		v := archsimd.LoadInt32x8(input[i:])
		v = v.ShiftRight(shift)

		zero := archsimd.Int32x8{}
		upper := archsimd.BroadcastInt32x8(127)
		v = v.Max(zero).Min(upper)

		for lane := 0; lane < lanesInt32; lane++ {
			output[i+lane] = uint8(v.Get(lane))
		}
	}
	for ; i < n; i++ {
		val := input[i] >> shift
		if val < 0 {
			val = 0
		} else if val > 127 {
			val = 127
		}
		output[i] = uint8(val)
	}
}
