package fakedebuggee

import (
	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// Scalar returns a scalar value of the named type.
func (p *Process) Scalar(typeName string, u uint64) *Value {
	return &Value{typ: p.Named(typeName), u: u}
}

// String returns a string value.
func (p *Process) String(s string) *Value {
	return &Value{typ: p.Named("std::string"), text: s}
}

// Object returns an aggregate of type t. Base-class subobjects are members
// keyed by the base type's name.
func (p *Process) Object(t *Type, members map[string]*Value) *Value {
	if members == nil {
		members = map[string]*Value{}
	}
	return &Value{typ: t, members: members}
}

// Array returns an array value.
func (p *Process) Array(elemType *Type, elems ...*Value) *Value {
	return &Value{typ: p.Named(elemType.name + "[]"), elems: elems}
}

// PointerTo returns a pointer to target stored at addr.
func (p *Process) PointerTo(target *Value, addr uint64) *Value {
	return &Value{typ: target.typ.PointerType(), u: addr, target: target}
}

// BufferTypeName is the type recognized by Inspector.
const BufferTypeName = "Buffer"

// BufferType returns the fake buffer type: a data pointer followed by the
// layout fields.
func (p *Process) BufferType() *Type {
	ulong := p.Named("unsigned long")
	return p.Named(BufferTypeName,
		Member("data", p.Named("unsigned char *")),
		Member("width", ulong),
		Member("height", ulong),
		Member("channels", ulong),
		Member("type", p.Named("int")),
		Member("stride", ulong),
		Member("layout", p.Named("std::string")),
	)
}

// BufferSpec describes a buffer to place in the fake debuggee.
type BufferSpec struct {
	Width, Height, Channels uint64
	ElementType             debuggee.ElementType
	// RowStride defaults to Width.
	RowStride uint64
	Layout    string
	// Seed varies the generated contents.
	Seed byte
	// Null leaves the data pointer at zero.
	Null bool
	// Unmapped points data at an address no region covers.
	Unmapped bool
	// Data, if set, is mapped instead of a generated pattern.
	Data []byte
}

// Size returns the byte size of the buffer described by s.
func (s BufferSpec) Size() uint64 {
	stride := s.RowStride
	if stride == 0 {
		stride = s.Width
	}
	return s.Height * s.Channels * s.ElementType.Size() * stride
}

// NewBuffer maps the contents of a buffer and returns a Buffer value
// pointing at them.
func (p *Process) NewBuffer(s BufferSpec) *Value {
	if s.RowStride == 0 {
		s.RowStride = s.Width
	}
	var addr uint64
	switch {
	case s.Null:
	case s.Unmapped:
		addr = 0xdead0000
	default:
		data := s.Data
		if data == nil {
			data = Pattern(int(s.Size()), s.Seed)
		}
		addr = p.Map(data)
	}
	ulong := func(u uint64) *Value { return p.Scalar("unsigned long", u) }
	return p.Object(p.BufferType(), map[string]*Value{
		"data":     p.Scalar("unsigned char *", addr),
		"width":    ulong(s.Width),
		"height":   ulong(s.Height),
		"channels": ulong(s.Channels),
		"type":     p.Scalar("int", uint64(s.ElementType)),
		"stride":   ulong(s.RowStride),
		"layout":   p.String(s.Layout),
	})
}

// Pattern returns n deterministic bytes derived from seed.
func Pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31) ^ seed
	}
	return b
}
