// Package luainspect is an Inspector defined by a Lua script, for buffer
// types no stock inspector knows about.
//
// The script defines two global functions:
//
//	function is_observable(name, type_name, kind) -- kind: "argument", "variable", "field"
//	  return type_name == "Image"
//	end
//
//	function extract(v)
//	  return {
//	    pointer = v:field("pixels"):uint(),
//	    width = v:field("w"):uint(),
//	    height = v:field("h"):uint(),
//	    channels = 4,
//	    type = "uint8",   -- or the numeric element type tag
//	    row_stride = v:field("pitch"):uint() / 4, -- defaults to width
//	    layout = "rgba",  -- defaults to "rgba"
//	  }
//	end
//
// Values are userdata with the methods type_name, field, index, uint, int
// and deref. The global cast(type_name, v) reinterprets v as a pointer to
// the named type. Only the base, table, string and math libraries are
// available. A script error makes the value not observable.
package luainspect

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// CallTimeout bounds a single call into the script.
const CallTimeout = time.Second

const defaultLayout = "rgba"

// Inspector implements debuggee.Inspector by calling into a Lua script. It
// is safe for concurrent use.
type Inspector struct {
	errorLogger func(error)

	mu struct {
		sync.Mutex
		L *lua.LState
		// caster is set for the duration of an extract call.
		caster debuggee.Caster
	}
}

var _ debuggee.Inspector = (*Inspector)(nil)

// Option configures an Inspector.
type Option func(*Inspector)

// WithErrorLogger sets a function called with script errors, which are
// otherwise only reported as values not being observable.
func WithErrorLogger(f func(error)) Option {
	return func(i *Inspector) {
		i.errorLogger = f
	}
}

// New compiles source and returns an Inspector running it.
func New(source string, opts ...Option) (*Inspector, error) {
	i := &Inspector{errorLogger: func(error) {}}
	for _, opt := range opts {
		opt(i)
	}
	if err := i.Reload(source); err != nil {
		return nil, err
	}
	return i, nil
}

// Load is New with the script read from path.
func Load(path string, opts ...Option) (*Inspector, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inspector script: %w", err)
	}
	return New(string(src), opts...)
}

// Reload replaces the running script with source. If source fails to load
// the previous script stays in place.
func (i *Inspector) Reload(source string) error {
	L, err := i.newState(source)
	if err != nil {
		return err
	}
	i.mu.Lock()
	old := i.mu.L
	i.mu.L = L
	i.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Close releases the Lua state.
func (i *Inspector) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.mu.L != nil {
		i.mu.L.Close()
		i.mu.L = nil
	}
}

func (i *Inspector) newState(source string) (_ *lua.LState, err error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer func() {
		if err != nil {
			L.Close()
		}
	}()
	// io, os, debug, package and channel stay closed.
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	registerValueType(L)
	L.SetGlobal("cast", L.NewFunction(i.luaCast))

	ctx, cancel := context.WithTimeout(context.Background(), CallTimeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()
	if err := L.DoString(source); err != nil {
		return nil, fmt.Errorf("failed to load inspector script: %w", err)
	}
	for _, fn := range []string{"is_observable", "extract"} {
		if L.GetGlobal(fn).Type() != lua.LTFunction {
			return nil, fmt.Errorf("inspector script does not define function %s", fn)
		}
	}
	return L, nil
}

// call calls the global function fn with args and returns its first result.
// i.mu must be held.
func (i *Inspector) call(fn string, args ...lua.LValue) (_ lua.LValue, err error) {
	L := i.mu.L
	if L == nil {
		return lua.LNil, fmt.Errorf("inspector closed")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), CallTimeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	top := L.GetTop()
	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(fn),
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		L.SetTop(top)
		return lua.LNil, fmt.Errorf("%s failed: %w", fn, err)
	}
	ret := L.Get(-1)
	L.SetTop(top)
	return ret, nil
}

// IsObservable implements debuggee.Inspector.
func (i *Inspector) IsObservable(sym debuggee.Symbol) bool {
	typeName := ""
	if sym.Type != nil {
		typeName = sym.Type.Name()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	ret, err := i.call("is_observable",
		lua.LString(sym.Name), lua.LString(typeName), lua.LString(sym.Kind.String()))
	if err != nil {
		i.errorLogger(err)
		return false
	}
	return lua.LVAsBool(ret)
}

// ExtractBufferFields implements debuggee.Inspector.
func (i *Inspector) ExtractBufferFields(c debuggee.Caster, v debuggee.Value) (debuggee.BufferFields, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.mu.L == nil {
		return debuggee.BufferFields{}, false
	}
	i.mu.caster = c
	defer func() { i.mu.caster = nil }()

	ret, err := i.call("extract", newValue(i.mu.L, v))
	if err != nil {
		i.errorLogger(err)
		return debuggee.BufferFields{}, false
	}
	t, ok := ret.(*lua.LTable)
	if !ok {
		// nil or false: not a buffer.
		return debuggee.BufferFields{}, false
	}
	f, err := fieldsFromTable(t)
	if err != nil {
		i.errorLogger(fmt.Errorf("extract returned an invalid table: %w", err))
		return debuggee.BufferFields{}, false
	}
	return f, true
}

func fieldsFromTable(t *lua.LTable) (debuggee.BufferFields, error) {
	var f debuggee.BufferFields
	var err error
	number := func(key string, required bool) uint64 {
		switch n := t.RawGetString(key).(type) {
		case lua.LNumber:
			// Negative garbage becomes huge and fails validation.
			return uint64(int64(n))
		case *lua.LNilType:
			if required && err == nil {
				err = fmt.Errorf("missing %s", key)
			}
		default:
			if err == nil {
				err = fmt.Errorf("%s is a %s, not a number", key, n.Type())
			}
		}
		return 0
	}
	f.Pointer = number("pointer", true)
	f.Width = number("width", true)
	f.Height = number("height", true)
	f.Channels = number("channels", true)
	f.RowStride = number("row_stride", false)
	if f.RowStride == 0 {
		f.RowStride = f.Width
	}
	switch et := t.RawGetString("type").(type) {
	case lua.LNumber:
		f.ElementType = debuggee.ElementType(int(et))
	case lua.LString:
		parsed, perr := debuggee.ParseElementType(string(et))
		if perr != nil && err == nil {
			err = perr
		}
		f.ElementType = parsed
	default:
		if err == nil {
			err = fmt.Errorf("missing type")
		}
	}
	f.PixelLayout = defaultLayout
	if l, ok := t.RawGetString("layout").(lua.LString); ok {
		f.PixelLayout = string(l)
	}
	return f, err
}

// luaCast implements the global cast(type_name, value).
func (i *Inspector) luaCast(L *lua.LState) int {
	typeName := L.CheckString(1)
	v := checkValue(L, 2)
	// i.mu is held by ExtractBufferFields.
	if i.mu.caster == nil {
		L.RaiseError("cast is only available inside extract")
		return 0
	}
	cv, err := i.mu.caster.Cast(typeName, v)
	if err != nil {
		L.RaiseError("cast to %s failed: %s", typeName, err.Error())
		return 0
	}
	L.Push(newValue(L, cv))
	return 1
}
