package meminfo

import (
	"errors"
	"runtime"
	"testing"
)

func TestFree(t *testing.T) {
	n, err := Free()
	if errors.Is(err, ErrNotImplemented) {
		t.Skipf("free memory not implemented on %s", runtime.GOOS)
	}
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("expected some free memory")
	}
}
