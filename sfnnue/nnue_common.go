// Shared constants and tensor-reading helpers for the .nnue file format,
// derived from Stockfish's src/nnue/nnue_common.h. The generic I/O
// primitives live in the common subpackage so the layer implementations
// can share them; the wrappers here pin them to the integer types the
// format actually stores.

package sfnnue

import (
	"fmt"
	"io"

	"github.com/corvidchess/corvid/sfnnue/common"
)

// Version identifies the evaluation-file revision this package reads.
// Loading fails closed on any other value.
const Version uint32 = 0x7AF32F20

// OutputScale and WeightScaleBits fix the quantization: the final layer's
// sum is divided by OutputScale, and every affine layer's output carries
// WeightScaleBits of fixed-point scale until its activation shifts it off.
const (
	OutputScale     = 16
	WeightScaleBits = 6
)

// leb128Magic prefixes tensors stored with signed-LEB128 compression.
const leb128Magic = "COMPRESSED_LEB128"

// CeilToMultiple rounds n up to the next multiple of base.
func CeilToMultiple[T ~int | ~uint | ~int32 | ~uint32](n, base T) T {
	return T(common.CeilToMultiple(int(n), int(base)))
}

// ReadLittleEndian reads one integer from a little-endian stream.
func ReadLittleEndian[T int8 | uint8 | int16 | uint16 | int32 | uint32](r io.Reader) (T, error) {
	return common.ReadLittleEndian[T](r)
}

// ReadLittleEndianSlice reads integers in bulk from a little-endian stream.
func ReadLittleEndianSlice[T int8 | uint8 | int16 | uint16 | int32 | uint32](r io.Reader, out []T) error {
	return common.ReadLittleEndianSlice(r, out)
}

// ReadLEB128 fills out with signed integers decoded from the stream's
// LEB128 section: the magic string, a little-endian byte count, then the
// variable-length values themselves. The byte count must be consumed
// exactly; anything else means the tensor and the header disagree.
func ReadLEB128[T int16 | int32](r io.Reader, out []T) error {
	magic := make([]byte, len(leb128Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("failed to read LEB128 magic: %w", err)
	}
	if string(magic) != leb128Magic {
		return fmt.Errorf("invalid LEB128 magic: expected %q, got %q", leb128Magic, string(magic))
	}

	byteCount, err := ReadLittleEndian[uint32](r)
	if err != nil {
		return fmt.Errorf("failed to read LEB128 byte count: %w", err)
	}

	var bits uint
	switch any(T(0)).(type) {
	case int16:
		bits = 16
	default:
		bits = 32
	}

	// Buffered by hand rather than through bufio so that exactly byteCount
	// bytes are pulled from r; the next tensor follows immediately after.
	buf := make([]byte, 4096)
	remaining := int(byteCount)
	have, pos := 0, 0
	nextByte := func() (byte, error) {
		if pos == have {
			n := min(remaining, len(buf))
			if n == 0 {
				return 0, io.ErrUnexpectedEOF
			}
			if _, err := io.ReadFull(r, buf[:n]); err != nil {
				return 0, err
			}
			remaining -= n
			have, pos = n, 0
		}
		b := buf[pos]
		pos++
		return b, nil
	}

	for i := range out {
		var v T
		var shift uint
		for {
			b, err := nextByte()
			if err != nil {
				return fmt.Errorf("failed to read LEB128 data: %w", err)
			}

			v |= T(b&0x7f) << shift
			shift += 7

			if b&0x80 == 0 {
				if shift < bits && b&0x40 != 0 {
					v |= ^T(0) << shift // sign extend
				}
				break
			}
			if shift >= bits {
				break
			}
		}
		out[i] = v
	}

	if remaining != 0 || pos != have {
		return fmt.Errorf("LEB128 section has %d undecoded bytes", remaining+have-pos)
	}

	return nil
}
