//go:build darwin

package meminfo

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func free() (uint64, error) {
	pages, err := unix.SysctlUint32("vm.page_free_count")
	if err != nil {
		return 0, fmt.Errorf("failed to read vm.page_free_count: %w", err)
	}
	return uint64(pages) * uint64(unix.Getpagesize()), nil
}
