package fakedebuggee

import (
	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// Inspector recognizes values of the fake Buffer type.
type Inspector struct{}

var _ debuggee.Inspector = Inspector{}

// IsObservable implements debuggee.Inspector.
func (Inspector) IsObservable(sym debuggee.Symbol) bool {
	return sym.Type != nil && sym.Type.Name() == BufferTypeName
}

// ExtractBufferFields implements debuggee.Inspector.
func (Inspector) ExtractBufferFields(_ debuggee.Caster, v debuggee.Value) (debuggee.BufferFields, bool) {
	if v.Type() == nil || v.Type().Name() != BufferTypeName {
		return debuggee.BufferFields{}, false
	}
	var f debuggee.BufferFields
	for _, u := range []struct {
		name string
		dst  *uint64
	}{
		{"data", &f.Pointer},
		{"width", &f.Width},
		{"height", &f.Height},
		{"channels", &f.Channels},
		{"stride", &f.RowStride},
	} {
		fv, err := v.Field(u.name)
		if err != nil {
			return debuggee.BufferFields{}, false
		}
		if *u.dst, err = fv.Uint64(); err != nil {
			return debuggee.BufferFields{}, false
		}
	}
	tv, err := v.Field("type")
	if err != nil {
		return debuggee.BufferFields{}, false
	}
	et, err := tv.Int64()
	if err != nil {
		return debuggee.BufferFields{}, false
	}
	f.ElementType = debuggee.ElementType(et)
	if lv, err := v.Field("layout"); err == nil {
		if s, ok := lv.(*Value); ok {
			f.PixelLayout = s.Text()
		}
	}
	return f, true
}
