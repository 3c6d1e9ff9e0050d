// Package common holds the helpers shared between the network core and
// the layer implementations: padding arithmetic and little-endian tensor
// reading for the .nnue file format.
package common

import (
	"encoding/binary"
	"io"
)

// MaxSimdWidth is the widest vector register the padding math has to
// account for, in bytes. Buffers padded to this width stay aligned no
// matter which kernel build is in use.
const MaxSimdWidth = 32

// CeilToMultiple rounds n up to the next multiple of base.
func CeilToMultiple(n, base int) int {
	return (n + base - 1) / base * base
}

// ReadLittleEndian reads one fixed-size value from r in little-endian
// byte order.
func ReadLittleEndian[T any](r io.Reader) (T, error) {
	var result T
	err := binary.Read(r, binary.LittleEndian, &result)
	return result, err
}

// ReadLittleEndianSlice fills out from r in little-endian byte order.
func ReadLittleEndianSlice[T any](r io.Reader, out []T) error {
	return binary.Read(r, binary.LittleEndian, out)
}
