package luainspect

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

const valueTypeName = "debuggee.value"

func registerValueType(L *lua.LState) {
	mt := L.NewTypeMetatable(valueTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"type_name": valueTypeNameMethod,
		"field":     valueField,
		"index":     valueIndex,
		"uint":      valueUint,
		"int":       valueInt,
		"deref":     valueDeref,
	}))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		v := checkValue(L, 1)
		L.Push(lua.LString("<" + typeNameOf(v) + ">"))
		return 1
	}))
}

func newValue(L *lua.LState, v debuggee.Value) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = v
	L.SetMetatable(ud, L.GetTypeMetatable(valueTypeName))
	return ud
}

func checkValue(L *lua.LState, n int) debuggee.Value {
	ud := L.CheckUserData(n)
	v, ok := ud.Value.(debuggee.Value)
	if !ok {
		L.ArgError(n, "debuggee value expected")
		return nil
	}
	return v
}

func typeNameOf(v debuggee.Value) string {
	if t := v.Type(); t != nil {
		return t.Name()
	}
	return ""
}

func valueTypeNameMethod(L *lua.LState) int {
	L.Push(lua.LString(typeNameOf(checkValue(L, 1))))
	return 1
}

func valueField(L *lua.LState) int {
	v := checkValue(L, 1)
	name := L.CheckString(2)
	fv, err := v.Field(name)
	if err != nil {
		L.RaiseError("field %s: %s", name, err.Error())
		return 0
	}
	L.Push(newValue(L, fv))
	return 1
}

func valueIndex(L *lua.LState) int {
	v := checkValue(L, 1)
	i := L.CheckInt(2)
	ev, err := v.Index(i)
	if err != nil {
		L.RaiseError("index %d: %s", i, err.Error())
		return 0
	}
	L.Push(newValue(L, ev))
	return 1
}

// valueUint returns the value as a Lua number. Integers above 2^53 lose
// precision; user-space addresses fit.
func valueUint(L *lua.LState) int {
	u, err := checkValue(L, 1).Uint64()
	if err != nil {
		L.RaiseError("uint: %s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(u))
	return 1
}

func valueInt(L *lua.LState) int {
	n, err := checkValue(L, 1).Int64()
	if err != nil {
		L.RaiseError("int: %s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(n))
	return 1
}

func valueDeref(L *lua.LState) int {
	dv, err := checkValue(L, 1).Dereference()
	if err != nil {
		L.RaiseError("deref: %s", err.Error())
		return 0
	}
	L.Push(newValue(L, dv))
	return 1
}
