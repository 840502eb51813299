package fakedebuggee

import (
	"fmt"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// Type is an in-memory debuggee.Type.
type Type struct {
	name   string
	id     uint64
	fields []debuggee.Field
	elem   *Type
	ptr    *Type
	p      *Process
}

var _ debuggee.Type = (*Type)(nil)

func (t *Type) Name() string { return t.name }
func (t *Type) ID() uint64   { return t.id }

func (t *Type) Fields() []debuggee.Field {
	return append([]debuggee.Field(nil), t.fields...)
}

func (t *Type) Pointer() debuggee.Type {
	return t.PointerType()
}

// PointerType is Pointer with the concrete type.
func (t *Type) PointerType() *Type {
	if t.ptr == nil {
		t.ptr = t.p.newType(t.name+" *", nil)
		t.ptr.elem = t
	}
	return t.ptr
}

// SetFields replaces the fields of t. It is used to build cyclic types.
func (t *Type) SetFields(fields ...debuggee.Field) {
	t.fields = fields
}

// Member returns a plain field of type ft.
func Member(name string, ft *Type) debuggee.Field {
	return debuggee.Field{Name: name, Type: ft}
}

// Base returns a base-class field of type bt.
func Base(bt *Type) debuggee.Field {
	return debuggee.Field{Name: bt.name, Type: bt, IsBaseClass: true}
}

// Value is an in-memory debuggee.Value.
type Value struct {
	typ     *Type
	u       uint64
	text    string
	members map[string]*Value
	elems   []*Value
	target  *Value
}

var _ debuggee.Value = (*Value)(nil)

func (v *Value) Type() debuggee.Type {
	if v.typ == nil {
		return nil
	}
	return v.typ
}

func (v *Value) Field(name string) (debuggee.Value, error) {
	m, ok := v.members[name]
	if !ok {
		return nil, fmt.Errorf("%s has no member named %s", v.typ.name, name)
	}
	return m, nil
}

func (v *Value) Index(i int) (debuggee.Value, error) {
	if i < 0 || i >= len(v.elems) {
		return nil, fmt.Errorf("index %d out of range [0, %d)", i, len(v.elems))
	}
	return v.elems[i], nil
}

func (v *Value) Uint64() (uint64, error) {
	if v.members != nil || v.elems != nil {
		return 0, fmt.Errorf("%s is not a scalar", v.typ.name)
	}
	return v.u, nil
}

func (v *Value) Int64() (int64, error) {
	u, err := v.Uint64()
	return int64(u), err
}

func (v *Value) Dereference() (debuggee.Value, error) {
	if v.target == nil {
		return nil, fmt.Errorf("cannot dereference %s at %#x", v.typ.name, v.u)
	}
	return v.target, nil
}

func (v *Value) Cast(t debuggee.Type) (debuggee.Value, error) {
	ft, ok := t.(*Type)
	if !ok {
		return nil, fmt.Errorf("cannot cast to foreign type %T", t)
	}
	c := *v
	c.typ = ft
	return &c, nil
}

// Text returns the string held by a string value.
func (v *Value) Text() string {
	return v.text
}
