package scopewalk

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
	"github.com/DataExMachina-dev/bufwatch/internal/fakedebuggee"
	"github.com/DataExMachina-dev/bufwatch/internal/memread"
	"github.com/DataExMachina-dev/bufwatch/internal/validate"
)

type harness struct {
	p       *fakedebuggee.Process
	w       *Walker
	skipped map[string]error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{p: fakedebuggee.NewProcess(), skipped: map[string]error{}}
	v := validate.New(h.p.FreeSystemMemory, 0)
	insp := fakedebuggee.Inspector{}
	capture := func(name string, val debuggee.Value) (*debuggee.Descriptor, error) {
		f, ok := insp.ExtractBufferFields(nil, val)
		if !ok {
			return nil, debuggee.ErrNotABuffer
		}
		size, err := v.Validate(f)
		if err != nil {
			return nil, err
		}
		data, err := memread.Copy(h.p, f.Pointer, size)
		if err != nil {
			return nil, err
		}
		return debuggee.NewDescriptor(name, f, data, time.Time{}), nil
	}
	h.w = New(h.p, insp, capture, Config{
		OnSkip: func(name string, err error) { h.skipped[name] = err },
	})
	return h
}

func (h *harness) enumerate(t *testing.T) *debuggee.SymbolTable {
	t.Helper()
	scope, err := h.p.CurrentScope()
	require.NoError(t, err)
	return h.w.EnumerateAvailable(scope)
}

func (h *harness) buffer(seed byte) *fakedebuggee.Value {
	return h.p.NewBuffer(fakedebuggee.BufferSpec{
		Width: 4, Height: 2, Channels: 1, ElementType: debuggee.Uint8, Layout: "rgba", Seed: seed,
	})
}

func local(name string, v *fakedebuggee.Value) fakedebuggee.Local {
	return fakedebuggee.Local{Name: name, Kind: debuggee.SymbolVariable, Value: v}
}

func arg(name string, v *fakedebuggee.Value) fakedebuggee.Local {
	return fakedebuggee.Local{Name: name, Kind: debuggee.SymbolArgument, Value: v}
}

func seedOf(t *testing.T, d *debuggee.Descriptor) byte {
	t.Helper()
	return d.Bytes()[0]
}

func TestInnerBlockShadowsOuter(t *testing.T) {
	h := newHarness(t)
	h.p.SetFrame(
		[]fakedebuggee.Local{local("img", h.buffer(1)), local("inner", h.buffer(2))},
		[]fakedebuggee.Local{local("img", h.buffer(3)), arg("outer", h.buffer(4))},
	)
	table := h.enumerate(t)
	require.Equal(t, []string{"img", "inner", "outer"}, table.Names())
	img, _ := table.Get("img")
	require.Equal(t, byte(1), seedOf(t, img))
}

func TestSkipsNonBuffersAndFailures(t *testing.T) {
	h := newHarness(t)
	null := h.p.NewBuffer(fakedebuggee.BufferSpec{Width: 4, Height: 4, Channels: 1, Null: true})
	unmapped := h.p.NewBuffer(fakedebuggee.BufferSpec{Width: 4, Height: 4, Channels: 1, Unmapped: true})
	empty := h.p.NewBuffer(fakedebuggee.BufferSpec{Width: 0, Height: 4, Channels: 1})
	h.p.SetFrame([]fakedebuggee.Local{
		local("n", h.p.Scalar("int", 3)),
		local("null", null),
		local("good", h.buffer(7)),
		local("unmapped", unmapped),
		local("empty", empty),
		{Name: "global", Kind: debuggee.SymbolOther, Value: h.buffer(8)},
	})
	table := h.enumerate(t)
	require.Equal(t, []string{"good"}, table.Names())
	require.ErrorIs(t, h.skipped["null"], debuggee.ErrNullBuffer)
	require.ErrorIs(t, h.skipped["unmapped"], debuggee.ErrUnreadableMemory)
	require.ErrorIs(t, h.skipped["empty"], debuggee.ErrEmptyBuffer)
	require.NotContains(t, h.skipped, "n")
	require.NotContains(t, h.skipped, "global")
}

// thisFrame selects a member function frame of obj.
func thisFrame(h *harness, obj *fakedebuggee.Value) {
	h.p.SetFrame([]fakedebuggee.Local{arg("this", h.p.PointerTo(obj, 0x7000))})
}

func TestBaseClassWinsOverOwnMember(t *testing.T) {
	h := newHarness(t)
	bt := h.p.BufferType()
	base := h.p.Named("Base", fakedebuggee.Member("a", bt))
	derived := h.p.Named("Derived",
		fakedebuggee.Base(base),
		fakedebuggee.Member("a", bt),
		fakedebuggee.Member("b", bt),
	)
	obj := h.p.Object(derived, map[string]*fakedebuggee.Value{
		"Base": h.p.Object(base, map[string]*fakedebuggee.Value{"a": h.buffer(10)}),
		"a":    h.buffer(20),
		"b":    h.buffer(30),
	})
	thisFrame(h, obj)

	table := h.enumerate(t)
	require.Equal(t, []string{"a", "b"}, table.Names())
	a, _ := table.Get("a")
	require.Equal(t, byte(10), seedOf(t, a))
}

func TestSelfFieldsMergeWithLocals(t *testing.T) {
	h := newHarness(t)
	bt := h.p.BufferType()
	widget := h.p.Named("Widget", fakedebuggee.Member("frame", bt), fakedebuggee.Member("mask", bt))
	obj := h.p.Object(widget, map[string]*fakedebuggee.Value{
		"frame": h.buffer(1),
		"mask":  h.buffer(2),
	})
	h.p.SetFrame(
		[]fakedebuggee.Local{local("frame", h.buffer(3))},
		[]fakedebuggee.Local{arg("this", h.p.PointerTo(obj, 0x7000)), local("mask", h.buffer(4))},
	)
	table := h.enumerate(t)
	require.Equal(t, []string{"frame", "mask"}, table.Names())
	frame, _ := table.Get("frame")
	mask, _ := table.Get("mask")
	require.Equal(t, byte(3), seedOf(t, frame), "inner local found before the object's field")
	require.Equal(t, byte(2), seedOf(t, mask), "this comes before mask in its block")
}

func TestCyclicTypesTerminate(t *testing.T) {
	build := func(cyclic bool) *debuggee.SymbolTable {
		h := newHarness(t)
		bt := h.p.BufferType()
		node := h.p.Named("Node")
		fields := []debuggee.Field{fakedebuggee.Member("pixels", bt)}
		members := map[string]*fakedebuggee.Value{"pixels": h.buffer(5)}
		obj := h.p.Object(node, members)
		if cyclic {
			// Malformed debug info: Node lists itself as a base class.
			fields = append([]debuggee.Field{fakedebuggee.Base(node)}, fields...)
			members["Node"] = obj
		}
		node.SetFields(fields...)
		thisFrame(h, obj)
		return h.enumerate(t)
	}

	done := make(chan *debuggee.SymbolTable)
	go func() { done <- build(true) }()
	select {
	case cyclic := <-done:
		acyclic := build(false)
		require.True(t, cyclic.Equal(acyclic))
		require.Empty(t, cmp.Diff(acyclic.Names(), cyclic.Names()))
	case <-time.After(10 * time.Second):
		t.Fatal("traversal of a cyclic type did not terminate")
	}
}

func TestMutuallyRecursiveBases(t *testing.T) {
	h := newHarness(t)
	bt := h.p.BufferType()
	a := h.p.Named("A")
	b := h.p.Named("B")
	a.SetFields(fakedebuggee.Base(b), fakedebuggee.Member("x", bt))
	b.SetFields(fakedebuggee.Base(a), fakedebuggee.Member("y", bt))
	bMembers := map[string]*fakedebuggee.Value{"y": h.buffer(2)}
	objB := h.p.Object(b, bMembers)
	objA := h.p.Object(a, map[string]*fakedebuggee.Value{"B": objB, "x": h.buffer(1)})
	bMembers["A"] = objA
	thisFrame(h, objA)

	table := h.enumerate(t)
	require.Equal(t, []string{"y", "x"}, table.Names())
}

func TestEnumerateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	bt := h.p.BufferType()
	base := h.p.Named("Base", fakedebuggee.Member("a", bt))
	derived := h.p.Named("Derived", fakedebuggee.Base(base), fakedebuggee.Member("c", bt))
	obj := h.p.Object(derived, map[string]*fakedebuggee.Value{
		"Base": h.p.Object(base, map[string]*fakedebuggee.Value{"a": h.buffer(1)}),
		"c":    h.buffer(2),
	})
	h.p.SetFrame(
		[]fakedebuggee.Local{local("img", h.buffer(3))},
		[]fakedebuggee.Local{arg("this", h.p.PointerTo(obj, 0x7000))},
	)
	first := h.enumerate(t)
	second := h.enumerate(t)
	require.Equal(t, 3, first.Len())
	require.True(t, first.Equal(second))
}

type panickyInspector struct{ fakedebuggee.Inspector }

func (panickyInspector) IsObservable(sym debuggee.Symbol) bool {
	if sym.Name == "bad" {
		panic("inspector bug")
	}
	return sym.Type != nil && sym.Type.Name() == fakedebuggee.BufferTypeName
}

func TestPanicsAreSkipped(t *testing.T) {
	h := newHarness(t)
	h.w.inspector = panickyInspector{}
	h.p.SetFrame([]fakedebuggee.Local{local("bad", h.buffer(1)), local("good", h.buffer(2))})
	table := h.enumerate(t)
	require.Equal(t, []string{"good"}, table.Names())
	require.Contains(t, h.skipped["bad"].Error(), "inspector bug")
}

func TestSelfThatCannotBeDereferenced(t *testing.T) {
	h := newHarness(t)
	h.p.SetFrame([]fakedebuggee.Local{
		arg("this", h.p.Scalar("Widget *", 0)),
		local("img", h.buffer(1)),
	})
	table := h.enumerate(t)
	require.Equal(t, []string{"img"}, table.Names())
	require.Error(t, h.skipped["this"])
	require.False(t, errors.Is(h.skipped["this"], debuggee.ErrNotABuffer))
}
