package validate

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

func freeMemory(n uint64) FreeMemoryFunc {
	return func() (uint64, error) { return n, nil }
}

func rgb(w, h uint64) debuggee.BufferFields {
	return debuggee.BufferFields{
		Pointer:     0x1000,
		Width:       w,
		Height:      h,
		Channels:    3,
		ElementType: debuggee.Uint8,
		RowStride:   w,
		PixelLayout: "rgba",
	}
}

func TestValidateSize(t *testing.T) {
	v := New(freeMemory(1<<30), 0)
	size, err := v.Validate(rgb(400, 200))
	require.NoError(t, err)
	require.Equal(t, uint64(200*3*1*400), size)

	f := rgb(400, 200)
	f.ElementType = debuggee.Float32
	f.RowStride = 512
	size, err = v.Validate(f)
	require.NoError(t, err)
	require.Equal(t, uint64(200*3*4*512), size)
}

func TestValidateNullWinsOverEverything(t *testing.T) {
	v := New(freeMemory(16), 1)
	for _, f := range []debuggee.BufferFields{
		{},
		{Width: 1, Height: 1, Channels: 1, RowStride: 1},
		{Width: math.MaxUint64, Height: math.MaxUint64, Channels: math.MaxUint64, RowStride: math.MaxUint64},
		{Height: 10, Channels: 3, ElementType: debuggee.ElementType(99), RowStride: 10},
	} {
		_, err := v.Validate(f)
		require.ErrorIs(t, err, debuggee.ErrNullBuffer, "%+v", f)
	}
}

func TestValidateEmpty(t *testing.T) {
	called := false
	v := New(func() (uint64, error) {
		called = true
		return 1 << 30, nil
	}, 0)
	zeroes := []func(*debuggee.BufferFields){
		func(f *debuggee.BufferFields) { f.Height = 0 },
		func(f *debuggee.BufferFields) { f.Channels = 0 },
		func(f *debuggee.BufferFields) { f.RowStride = 0 },
		func(f *debuggee.BufferFields) { f.ElementType = debuggee.ElementType(1) },
	}
	for i, zero := range zeroes {
		f := rgb(8, 8)
		zero(&f)
		_, err := v.Validate(f)
		require.ErrorIs(t, err, debuggee.ErrEmptyBuffer, "case %d", i)
	}

	// A zero factor wins over factors whose product overflows.
	for _, f := range []debuggee.BufferFields{
		{Pointer: 0x1000, Width: 1, Height: 1 << 40, Channels: 1 << 40, ElementType: debuggee.Uint8},
		{Pointer: 0x1000, Width: 1 << 40, Height: 1 << 40, Channels: 1 << 40, ElementType: debuggee.ElementType(1), RowStride: 1 << 40},
		{Pointer: 0x1000, Width: 1, Height: math.MaxUint64, Channels: math.MaxUint64, ElementType: debuggee.Float64, RowStride: 0},
		{Pointer: 0x1000, Width: 1, Channels: math.MaxUint64, ElementType: debuggee.Float64, RowStride: math.MaxUint64},
	} {
		_, err := v.Validate(f)
		require.ErrorIs(t, err, debuggee.ErrEmptyBuffer, "%+v", f)
		size, ok := ByteSize(f)
		require.True(t, ok)
		require.Zero(t, size)
	}

	f := rgb(8, 8)
	f.Width = 0
	_, err := v.Validate(f)
	require.ErrorIs(t, err, debuggee.ErrEmptyBuffer)
	require.False(t, called, "free memory must not be queried for empty buffers")
}

func TestValidateOversized(t *testing.T) {
	f := rgb(400, 200)
	const size = 240000

	_, err := New(freeMemory(size), 0).Validate(f)
	require.ErrorIs(t, err, debuggee.ErrOversizedBuffer)

	_, err = New(freeMemory(size+1), 0).Validate(f)
	require.NoError(t, err)

	_, err = New(freeMemory(1<<40), size-1).Validate(f)
	require.ErrorIs(t, err, debuggee.ErrOversizedBuffer)

	huge := rgb(1, 1)
	huge.Height = math.MaxUint64 / 2
	huge.RowStride = 4
	_, err = New(freeMemory(math.MaxUint64), 0).Validate(huge)
	require.ErrorIs(t, err, debuggee.ErrOversizedBuffer)
}

func TestValidateWidthWithinRowStride(t *testing.T) {
	v := New(freeMemory(1<<30), 0)

	// Garbage widths are rejected before they reach a descriptor.
	for _, width := range []uint64{9, 1 << 40, math.MaxUint64} {
		f := rgb(8, 8)
		f.Width = width
		_, err := v.Validate(f)
		require.ErrorIs(t, err, debuggee.ErrNotABuffer, "width %d", width)
	}

	padded := rgb(8, 8)
	padded.Width = 5
	size, err := v.Validate(padded)
	require.NoError(t, err)
	require.Equal(t, uint64(8*3*8), size)
}

func TestValidateFreeMemoryUnknown(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(func() (uint64, error) { return 0, boom }, 0).Validate(rgb(4, 4))
	require.ErrorIs(t, err, debuggee.ErrOversizedBuffer)
	require.Contains(t, err.Error(), "boom")
}

func TestByteSizeOverflow(t *testing.T) {
	_, ok := ByteSize(debuggee.BufferFields{
		Height:      1 << 40,
		Channels:    1 << 20,
		ElementType: debuggee.Float64,
		RowStride:   1 << 10,
	})
	require.False(t, ok)
}
