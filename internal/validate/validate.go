// Package validate rejects buffer layouts that cannot be read safely.
package validate

import (
	"fmt"
	"math/bits"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// FreeMemoryFunc reports the currently free system memory in bytes.
type FreeMemoryFunc func() (uint64, error)

// Validator checks raw buffer layouts before any memory is read.
type Validator struct {
	freeMemory FreeMemoryFunc
	// limit, when non-zero, is an additional ceiling on the byte size.
	limit uint64
}

// New returns a Validator. A limit of zero means only free memory bounds the
// buffer size.
func New(freeMemory FreeMemoryFunc, limit uint64) *Validator {
	return &Validator{freeMemory: freeMemory, limit: limit}
}

// ByteSize computes height * channels * element size * row stride. ok is
// false if the product overflows. A zero factor makes the size zero even when
// the other factors overflow.
func ByteSize(f debuggee.BufferFields) (size uint64, ok bool) {
	factors := []uint64{f.Height, f.Channels, f.ElementType.Size(), f.RowStride}
	for _, factor := range factors {
		if factor == 0 {
			return 0, true
		}
	}
	size = 1
	for _, factor := range factors {
		hi, lo := bits.Mul64(size, factor)
		if hi != 0 {
			return 0, false
		}
		size = lo
	}
	return size, true
}

// Validate returns the byte size of the buffer described by f, or the first
// reason it must not be read. The checks run in order: null pointer, empty
// buffer (including zero width), width wider than the row stride, larger than
// free memory. Whether the address is actually mapped is left to the read.
func (v *Validator) Validate(f debuggee.BufferFields) (uint64, error) {
	size, ok := ByteSize(f)
	if f.Pointer == 0 {
		return 0, debuggee.ErrNullBuffer
	}
	if ok && size == 0 || f.Width == 0 {
		return 0, debuggee.ErrEmptyBuffer
	}
	if f.Width > f.RowStride {
		return 0, fmt.Errorf("%w: width %d exceeds row stride %d", debuggee.ErrNotABuffer, f.Width, f.RowStride)
	}
	if !ok {
		return 0, fmt.Errorf("%w: byte size overflows", debuggee.ErrOversizedBuffer)
	}
	free, err := v.freeMemory()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to query free memory: %v", debuggee.ErrOversizedBuffer, err)
	}
	if size >= free {
		return 0, fmt.Errorf("%w: %d bytes, %d free", debuggee.ErrOversizedBuffer, size, free)
	}
	if v.limit != 0 && size > v.limit {
		return 0, fmt.Errorf("%w: %d bytes exceeds limit of %d", debuggee.ErrOversizedBuffer, size, v.limit)
	}
	return size, nil
}
