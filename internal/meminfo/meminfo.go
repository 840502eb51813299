// Package meminfo reports how much memory is free on the local machine.
package meminfo

import "errors"

// ErrNotImplemented is returned when free memory cannot be queried on the
// current platform.
var ErrNotImplemented = errors.New("not implemented")

// Free returns the number of bytes of physical memory currently free. It is a
// point-in-time reading used as a sanity bound, not an allocation guarantee.
func Free() (uint64, error) {
	return free()
}
