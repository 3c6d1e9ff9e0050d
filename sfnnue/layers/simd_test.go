package layers

import "testing"

// refDotProduct is the obviously-correct reference the kernel is checked
// against.
func refDotProduct(weights []int8, inputs []uint8, count int) int32 {
	var sum int32
	for i := 0; i < count; i++ {
		sum += int32(weights[i]) * int32(inputs[i])
	}
	return sum
}

func TestDotProductMatchesReference(t *testing.T) {
	cases := []struct {
		name string
		fill func(i int) (int8, uint8)
		n    int
	}{
		{"positive ramp", func(i int) (int8, uint8) { return int8(i % 127), uint8(i % 251) }, 256},
		{"negative weights", func(i int) (int8, uint8) { return int8(i%255 - 127), uint8(i % 200) }, 256},
		{"extremes", func(i int) (int8, uint8) {
			if i%2 == 0 {
				return -128, 255
			}
			return 127, 255
		}, 512},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			weights := make([]int8, c.n)
			inputs := make([]uint8, c.n)
			for i := 0; i < c.n; i++ {
				weights[i], inputs[i] = c.fill(i)
			}
			if got, want := SIMDDotProductInt8Uint8(weights, inputs, c.n), refDotProduct(weights, inputs, c.n); got != want {
				t.Errorf("got %d, want %d", got, want)
			}
		})
	}
}

// TestDotProductOddLengths sweeps counts around the unroll width so the
// remainder loop is exercised at every offset.
func TestDotProductOddLengths(t *testing.T) {
	weights := make([]int8, 40)
	inputs := make([]uint8, 40)
	for i := range weights {
		weights[i] = int8(3*i - 60)
		inputs[i] = uint8(5 * i)
	}

	for count := 0; count <= 40; count++ {
		if got, want := SIMDDotProductInt8Uint8(weights, inputs, count), refDotProduct(weights, inputs, count); got != want {
			t.Errorf("count %d: got %d, want %d", count, got, want)
		}
	}
}

// TestDotProductClampsCount checks a count larger than the slices is
// silently bounded rather than read out of range.
func TestDotProductClampsCount(t *testing.T) {
	weights := []int8{1, 2, 3}
	inputs := []uint8{4, 5, 6}
	if got, want := SIMDDotProductInt8Uint8(weights, inputs, 100), refDotProduct(weights, inputs, 3); got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestClippedReLUPropagate(t *testing.T) {
	relu := NewClippedReLU(5)
	input := []int32{-1000, 0, 64, 127 << WeightScaleBits, 1 << 20}
	output := make([]uint8, 5)
	relu.Propagate(input, output)

	want := []uint8{0, 0, 1, 127, 127}
	for i := range want {
		if output[i] != want[i] {
			t.Errorf("output[%d] = %d, want %d", i, output[i], want[i])
		}
	}
}

func TestSqrClippedReLUPropagate(t *testing.T) {
	relu := NewSqrClippedReLU(4)
	// 127 << 6 squared, shifted by 2*6+7, lands exactly on 127*127 >> 7 = 126.
	input := []int32{0, -8128, 8128, 1 << 20}
	output := make([]uint8, 4)
	relu.Propagate(input, output)

	if output[0] != 0 {
		t.Errorf("zero input must stay 0, got %d", output[0])
	}
	if output[1] != output[2] {
		t.Errorf("squaring must make the sign irrelevant: %d != %d", output[1], output[2])
	}
	if output[2] != 126 {
		t.Errorf("output[2] = %d, want 126", output[2])
	}
	if output[3] != 127 {
		t.Errorf("large input must clamp to 127, got %d", output[3])
	}
}

func BenchmarkDotProduct1024(b *testing.B) {
	weights := make([]int8, 1024)
	inputs := make([]uint8, 1024)
	for i := range weights {
		weights[i] = int8(i%255 - 127)
		inputs[i] = uint8(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = SIMDDotProductInt8Uint8(weights, inputs, 1024)
	}
}
