package debuggee

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSymbol is returned when a name does not resolve in the
	// selected frame.
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrUnknownType is returned when a type name cannot be resolved.
	ErrUnknownType = errors.New("unknown type")
	// ErrNotABuffer is returned when the inspector does not recognize a value,
	// or when the layout it reads is inconsistent.
	ErrNotABuffer = errors.New("not a buffer")
	// ErrNullBuffer is returned for a buffer whose data pointer is null.
	ErrNullBuffer = errors.New("invalid null buffer")
	// ErrEmptyBuffer is returned for a buffer of zero bytes.
	ErrEmptyBuffer = errors.New("invalid buffer of zero bytes")
	// ErrOversizedBuffer is returned for a buffer larger than available memory.
	ErrOversizedBuffer = errors.New("invalid buffer size larger than available memory")
	// ErrUnreadableMemory is returned when the buffer memory cannot be read.
	ErrUnreadableMemory = errors.New("unreadable memory")
	// ErrNotImplemented is returned by host queries unsupported on this
	// platform.
	ErrNotImplemented = errors.New("not implemented")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidSymbol, "InvalidSymbol"},
	{ErrUnknownType, "UnknownType"},
	{ErrNotABuffer, "NotABuffer"},
	{ErrNullBuffer, "NullBuffer"},
	{ErrEmptyBuffer, "EmptyBuffer"},
	{ErrOversizedBuffer, "OversizedBuffer"},
	{ErrUnreadableMemory, "UnreadableMemory"},
}

// Kind returns the name of the failure kind err belongs to, or "" if err
// wraps none of the sentinels above.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// KindError returns the sentinel with the given kind name, or nil.
func KindError(name string) error {
	for _, k := range kinds {
		if k.name == name {
			return k.err
		}
	}
	return nil
}

// FetchError reports why the buffer named by Name could not be fetched.
type FetchError struct {
	Name string
	Err  error
}

func (e *FetchError) Error() string {
	if k := Kind(e.Err); k != "" {
		return fmt.Sprintf("failed to fetch %s (%s): %v", e.Name, k, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.Name, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
