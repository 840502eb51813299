package debuggee

import (
	"errors"

	"github.com/DataExMachina-dev/bufwatch/internal/meminfo"
)

// HostFreeMemory reports the free physical memory of the local machine. It
// can back Runtime.FreeSystemMemory for bindings that run in the same process
// as the consumer. It returns ErrNotImplemented on unsupported platforms.
func HostFreeMemory() (uint64, error) {
	n, err := meminfo.Free()
	if errors.Is(err, meminfo.ErrNotImplemented) {
		return 0, ErrNotImplemented
	}
	return n, err
}
