//go:build !linux && !darwin

package meminfo

func free() (uint64, error) {
	return 0, ErrNotImplemented
}
