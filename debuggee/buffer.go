package debuggee

import (
	"fmt"
	"time"

	"github.com/minio/highwayhash"
)

// ElementType is the representation of one sample. The numeric values are
// the tags understood by the visualization window.
type ElementType int

const (
	Uint8   ElementType = 0
	Uint16  ElementType = 2
	Int16   ElementType = 3
	Int32   ElementType = 4
	Float32 ElementType = 5
	Float64 ElementType = 6
)

// Size returns the size in bytes of one sample, or 0 for an unknown tag.
func (t ElementType) Size() uint64 {
	switch t {
	case Uint8:
		return 1
	case Uint16, Int16:
		return 2
	case Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

func (t ElementType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("ElementType(%d)", int(t))
	}
}

// ParseElementType is the inverse of ElementType.String.
func ParseElementType(s string) (ElementType, error) {
	for _, t := range []ElementType{Uint8, Uint16, Int16, Int32, Float32, Float64} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown element type %q", s)
}

// BufferFields is the raw layout of a candidate buffer as read by an
// Inspector. Nothing about it has been validated.
type BufferFields struct {
	Pointer     uint64
	Width       uint64
	Height      uint64
	Channels    uint64
	ElementType ElementType
	// RowStride is counted in elements, not bytes.
	RowStride   uint64
	PixelLayout string
}

// Descriptor is a validated buffer whose bytes were copied out of the
// debuggee. It is immutable.
type Descriptor struct {
	Name        string
	Width       int
	Height      int
	Channels    int
	ElementType ElementType
	RowStride   int
	PixelLayout string
	CapturedAt  time.Time

	data   []byte
	digest uint64
}

var digestKey = [32]byte{}

// NewDescriptor builds a Descriptor owning data. The caller must not modify
// data afterwards.
func NewDescriptor(name string, f BufferFields, data []byte, capturedAt time.Time) *Descriptor {
	return &Descriptor{
		Name:        name,
		Width:       int(f.Width),
		Height:      int(f.Height),
		Channels:    int(f.Channels),
		ElementType: f.ElementType,
		RowStride:   int(f.RowStride),
		PixelLayout: f.PixelLayout,
		CapturedAt:  capturedAt,
		data:        data,
		digest:      highwayhash.Sum64(data, digestKey[:]),
	}
}

// Bytes returns the copied buffer contents. The slice must not be modified.
func (d *Descriptor) Bytes() []byte {
	return d.data
}

// ByteSize returns height * channels * element size * row stride.
func (d *Descriptor) ByteSize() uint64 {
	return uint64(d.Height) * uint64(d.Channels) * d.ElementType.Size() * uint64(d.RowStride)
}

// Digest is a HighwayHash-64 of Bytes.
func (d *Descriptor) Digest() uint64 {
	return d.digest
}

// Equal reports whether d and o describe the same layout and contents.
// CapturedAt is ignored.
func (d *Descriptor) Equal(o *Descriptor) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.Name == o.Name &&
		d.Width == o.Width &&
		d.Height == o.Height &&
		d.Channels == o.Channels &&
		d.ElementType == o.ElementType &&
		d.RowStride == o.RowStride &&
		d.PixelLayout == o.PixelLayout &&
		d.digest == o.digest &&
		string(d.data) == string(o.data)
}
