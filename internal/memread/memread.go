// Package memread copies validated buffers out of debuggee memory.
package memread

import (
	"fmt"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// Reader is the part of debuggee.Runtime needed to copy memory.
type Reader interface {
	ProbeAddress(addr uint64) error
	ReadMemory(addr uint64, size uint64) ([]byte, error)
}

// ChunkSize bounds the size of a single ReadMemory call.
const ChunkSize = 128 << 10

// Copy reads size bytes at addr into a freshly allocated slice. Both ends of
// the range are probed before anything is copied, and any failure of the
// underlying runtime, including a panic, is reported as
// debuggee.ErrUnreadableMemory.
func Copy(r Reader, addr uint64, size uint64) (_ []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: read of %d bytes at %#x panicked: %v",
				debuggee.ErrUnreadableMemory, size, addr, p)
		}
	}()
	if size == 0 {
		return nil, nil
	}
	last := addr + size - 1
	if last < addr {
		return nil, fmt.Errorf("%w: range at %#x of %d bytes wraps the address space",
			debuggee.ErrUnreadableMemory, addr, size)
	}
	for _, a := range []uint64{addr, last} {
		if err := r.ProbeAddress(a); err != nil {
			return nil, unreadable(a, err)
		}
	}

	out := make([]byte, size)
	for off := uint64(0); off < size; off += ChunkSize {
		n := min(ChunkSize, size-off)
		chunk, err := r.ReadMemory(addr+off, n)
		if err != nil {
			return nil, unreadable(addr+off, err)
		}
		if uint64(len(chunk)) != n {
			return nil, fmt.Errorf("%w: short read at %#x: got %d of %d bytes",
				debuggee.ErrUnreadableMemory, addr+off, len(chunk), n)
		}
		copy(out[off:], chunk)
	}
	return out, nil
}

func unreadable(addr uint64, err error) error {
	return fmt.Errorf("%w: failed to read %#x: %v", debuggee.ErrUnreadableMemory, addr, err)
}
