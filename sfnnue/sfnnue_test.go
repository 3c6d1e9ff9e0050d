package sfnnue

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// testTransformer builds a small HalfKA-only transformer with
// deterministic, non-uniform weights so incremental-update mismatches
// cannot cancel out by accident.
func testTransformer(halfDims, inputDims int) *FeatureTransformer {
	ft := &FeatureTransformer{
		HalfDimensions:  halfDims,
		InputDimensions: inputDims,
		UseThreats:      false,
		Biases:          make([]int16, halfDims),
		Weights:         make([]int16, halfDims*inputDims),
		PSQTWeights:     make([]int32, inputDims*PSQTBuckets),
	}
	for i := range ft.Biases {
		ft.Biases[i] = int16(i%97 - 48)
	}
	for i := range ft.Weights {
		ft.Weights[i] = int16((i*31)%199 - 99)
	}
	for i := range ft.PSQTWeights {
		ft.PSQTWeights[i] = int32((i*17)%601 - 300)
	}
	return ft
}

// header serializes a network-file header with the given version and hash.
func header(version, hash uint32, description string) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, version)
	binary.Write(&buf, binary.LittleEndian, hash)
	binary.Write(&buf, binary.LittleEndian, uint32(len(description)))
	buf.WriteString(description)
	return buf.Bytes()
}

// TestLoadFailsClosedOnBadVersion feeds the loader a header whose version
// word is wrong and requires an error before any tensor is read.
func TestLoadFailsClosedOnBadVersion(t *testing.T) {
	net := NewSmallNetwork()
	data := header(Version^0xFF, net.Hash, "corrupt")
	if err := net.LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("loader accepted a file with a wrong version word")
	}
}

// TestLoadFailsClosedOnHashMismatch feeds the loader a valid version but a
// hash for a different architecture.
func TestLoadFailsClosedOnHashMismatch(t *testing.T) {
	net := NewSmallNetwork()
	data := header(Version, net.Hash^1, "wrong architecture")
	if err := net.LoadFromReader(bytes.NewReader(data)); err == nil {
		t.Fatal("loader accepted a file whose architecture hash does not match")
	}
}

// TestLoadFailsClosedOnTruncation checks a header that ends before its
// declared description length is rejected rather than silently padded.
func TestLoadFailsClosedOnTruncation(t *testing.T) {
	net := NewSmallNetwork()
	data := header(Version, net.Hash, "truncated")
	if err := net.LoadFromReader(bytes.NewReader(data[:len(data)-4])); err == nil {
		t.Fatal("loader accepted a truncated header")
	}
}

// TestBigAndSmallHashesDiffer guards the architecture constants: if the
// two configurations ever hash alike, a small-net file would load into
// the big slot.
func TestBigAndSmallHashesDiffer(t *testing.T) {
	if BigNetworkHash() == SmallNetworkHash() {
		t.Fatal("big and small architectures must not share a hash")
	}
}

// TestIncrementalUpdateMatchesFullRefresh drives one feature swap through
// the incremental path and requires bit-exact agreement with a from-
// scratch accumulation of the new feature set.
func TestIncrementalUpdateMatchesFullRefresh(t *testing.T) {
	const halfDims, inputDims = 64, 768
	ft := testTransformer(halfDims, inputDims)

	before := []int{3, 77, 150, 402, 511}
	after := []int{3, 150, 266, 402, 511} // 77 out, 266 in

	prev := NewAccumulator(halfDims)
	ft.ComputeAccumulator(before, prev.Accumulation[0], prev.PSQTAccumulation[0])
	prev.Computed[0] = true

	incr := NewAccumulator(halfDims)
	ft.ForwardUpdateIncremental(prev, incr, []int{77}, []int{266}, 0)

	full := NewAccumulator(halfDims)
	ft.ComputeAccumulator(after, full.Accumulation[0], full.PSQTAccumulation[0])

	for i := 0; i < halfDims; i++ {
		if incr.Accumulation[0][i] != full.Accumulation[0][i] {
			t.Fatalf("accumulation[%d]: incremental %d != full %d",
				i, incr.Accumulation[0][i], full.Accumulation[0][i])
		}
	}
	for i := 0; i < PSQTBuckets; i++ {
		if incr.PSQTAccumulation[0][i] != full.PSQTAccumulation[0][i] {
			t.Fatalf("psqt[%d]: incremental %d != full %d",
				i, incr.PSQTAccumulation[0][i], full.PSQTAccumulation[0][i])
		}
	}
}

// TestBackwardUpdateInvertsForward pushes a delta forward and back and
// requires the original accumulator to reappear exactly.
func TestBackwardUpdateInvertsForward(t *testing.T) {
	const halfDims, inputDims = 64, 768
	ft := testTransformer(halfDims, inputDims)

	original := NewAccumulator(halfDims)
	ft.ComputeAccumulator([]int{9, 81, 320, 700}, original.Accumulation[0], original.PSQTAccumulation[0])
	original.Computed[0] = true

	removed, added := []int{81}, []int{123}

	later := NewAccumulator(halfDims)
	ft.ForwardUpdateIncremental(original, later, removed, added, 0)

	recovered := NewAccumulator(halfDims)
	ft.BackwardUpdateIncremental(later, recovered, removed, added, 0)

	for i := 0; i < halfDims; i++ {
		if recovered.Accumulation[0][i] != original.Accumulation[0][i] {
			t.Fatalf("accumulation[%d] not restored: %d != %d",
				i, recovered.Accumulation[0][i], original.Accumulation[0][i])
		}
	}
	for i := 0; i < PSQTBuckets; i++ {
		if recovered.PSQTAccumulation[0][i] != original.PSQTAccumulation[0][i] {
			t.Fatalf("psqt[%d] not restored: %d != %d",
				i, recovered.PSQTAccumulation[0][i], original.PSQTAccumulation[0][i])
		}
	}
}

// TestDoubleUpdateEqualsTwoSingles checks the fused two-ply update against
// two chained single updates.
func TestDoubleUpdateEqualsTwoSingles(t *testing.T) {
	const halfDims, inputDims = 64, 768
	ft := testTransformer(halfDims, inputDims)

	base := NewAccumulator(halfDims)
	ft.ComputeAccumulator([]int{5, 60, 310, 444}, base.Accumulation[0], base.PSQTAccumulation[0])
	base.Computed[0] = true

	r1, a1 := []int{60}, []int{200}
	r2, a2 := []int{310}, []int{411}

	mid := NewAccumulator(halfDims)
	chained := NewAccumulator(halfDims)
	ft.ForwardUpdateIncremental(base, mid, r1, a1, 0)
	ft.ForwardUpdateIncremental(mid, chained, r2, a2, 0)

	fused := NewAccumulator(halfDims)
	ft.DoubleUpdateIncremental(base, fused, r1, a1, r2, a2, 0)

	for i := 0; i < halfDims; i++ {
		if fused.Accumulation[0][i] != chained.Accumulation[0][i] {
			t.Fatalf("accumulation[%d]: fused %d != chained %d",
				i, fused.Accumulation[0][i], chained.Accumulation[0][i])
		}
	}
	for i := 0; i < PSQTBuckets; i++ {
		if fused.PSQTAccumulation[0][i] != chained.PSQTAccumulation[0][i] {
			t.Fatalf("psqt[%d]: fused %d != chained %d",
				i, fused.PSQTAccumulation[0][i], chained.PSQTAccumulation[0][i])
		}
	}
}

// TestAccumulatorStackPushPop checks the stack's level bookkeeping: Push
// copies the parent level, Pop discards without arithmetic, and Previous*
// report nil at the bottom.
func TestAccumulatorStackPushPop(t *testing.T) {
	stack := NewAccumulatorStack()

	if stack.Size != 1 {
		t.Fatalf("fresh stack size = %d, want 1", stack.Size)
	}
	if stack.PreviousBig() != nil || stack.PreviousSmall() != nil {
		t.Error("bottom level must have no previous accumulator")
	}

	stack.CurrentBig().Accumulation[0][0] = 42
	stack.CurrentBig().Computed[0] = true

	stack.Push()
	if stack.Size != 2 {
		t.Fatalf("size after push = %d, want 2", stack.Size)
	}
	if got := stack.CurrentBig().Accumulation[0][0]; got != 42 {
		t.Errorf("push did not copy the parent level: got %d, want 42", got)
	}
	if stack.PreviousBig() == nil {
		t.Error("previous level must be reachable after a push")
	}

	stack.CurrentBig().Accumulation[0][0] = 7
	stack.Pop()
	if stack.Size != 1 {
		t.Fatalf("size after pop = %d, want 1", stack.Size)
	}
	if got := stack.CurrentBig().Accumulation[0][0]; got != 42 {
		t.Errorf("pop must restore the parent level untouched: got %d, want 42", got)
	}
}

// TestReadLEB128DecodesKnownBytes decodes a hand-assembled LEB128 section
// covering single-byte, multi-byte, and sign-extended values.
func TestReadLEB128DecodesKnownBytes(t *testing.T) {
	// Values 1, -1, 300, -300 in signed LEB128.
	payload := []byte{
		0x01,       // 1
		0x7f,       // -1
		0xac, 0x02, // 300
		0xd4, 0x7d, // -300
	}
	var buf bytes.Buffer
	buf.WriteString("COMPRESSED_LEB128")
	binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)

	out := make([]int16, 4)
	if err := ReadLEB128(bytes.NewReader(buf.Bytes()), out); err != nil {
		t.Fatalf("ReadLEB128: %v", err)
	}
	want := []int16{1, -1, 300, -300}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

// TestReadLEB128RejectsBadMagic requires the compressed-section magic to
// match before any byte is decoded.
func TestReadLEB128RejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("NOT_THE_MAGIC_AAA")
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	buf.WriteByte(0x01)

	if err := ReadLEB128(bytes.NewReader(buf.Bytes()), make([]int16, 1)); err == nil {
		t.Fatal("ReadLEB128 accepted a section with the wrong magic")
	}
}

// TestLoadNetworksMissingFiles checks the two-file loader surfaces an
// error (rather than a partial Networks value) when the files are absent.
func TestLoadNetworksMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadNetworks(filepath.Join(dir, "missing-big.nnue"), filepath.Join(dir, "missing-small.nnue"))
	if err == nil {
		t.Fatal("LoadNetworks succeeded with no files on disk")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected a not-exist error, got: %v", err)
	}
}
