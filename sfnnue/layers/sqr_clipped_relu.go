// Squared clipped ReLU activation, derived from Stockfish's
// src/nnue/layers/sqr_clipped_relu.h. Squaring before the clamp gives the
// first layer pair a cheap non-linearity with more resolution near zero.

package layers

// sqrShift removes both copies of the fixed-point scale that squaring
// doubles, plus 7 bits so the result lands in uint8 range.
const sqrShift = 2*WeightScaleBits + 7

// SqrClippedReLUHashValue chains the activation's hash onto prevHash; the
// file format uses the same constant as the plain clipped activation.
func SqrClippedReLUHashValue(prevHash uint32) uint32 {
	return reluHashSeed + prevHash
}

// SqrClippedReLU is the squared clamped activation applied to the first
// affine layer's output. Parameterless, like ClippedReLU.
type SqrClippedReLU struct {
	InputDimensions  int
	OutputDimensions int
}

// NewSqrClippedReLU creates an activation of the given width.
func NewSqrClippedReLU(dims int) *SqrClippedReLU {
	return &SqrClippedReLU{InputDimensions: dims, OutputDimensions: dims}
}

// GetHashValue returns the hash for this layer type.
func (s *SqrClippedReLU) GetHashValue(prevHash uint32) uint32 {
	return SqrClippedReLUHashValue(prevHash)
}

// ReadParameters is a no-op; the activation carries no weights.
func (s *SqrClippedReLU) ReadParameters() error {
	return nil
}

// Propagate writes min(input[i]^2 >> sqrShift, 127) into output. The
// square is computed in int64: a worst-case int32 input squared overflows
// 32 bits long before the shift brings it back down. No lower clamp is
// needed, squares are never negative.
func (s *SqrClippedReLU) Propagate(input []int32, output []uint8) {
	for i := 0; i < s.InputDimensions; i++ {
		v := int64(input[i]) * int64(input[i]) >> sqrShift
		if v > 127 {
			v = 127
		}
		output[i] = uint8(v)
	}
}
