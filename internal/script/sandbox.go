package script

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// allowedLibs is the library allow-list. Everything else (io, os,
// package, debug, coroutine, channels) is never opened, so denied
// capabilities are absent rather than stubbed: indexing them yields nil
// and calling them is an ordinary runtime error.
var allowedLibs = []struct {
	name string
	fn   lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// deniedGlobals are base-library escape hatches stripped after opening:
// code loaders would bypass the compile step, and collectgarbage gives
// the guest a lever over host memory.
var deniedGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"require",
	"collectgarbage",
}

// newState builds a sandboxed Lua state wired to an output buffer.
// print is replaced with a capture shim; nothing in the state can reach
// the filesystem, environment, or network.
func newState(out *outputBuffer) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range allowedLibs {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range deniedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("print", L.NewFunction(capturePrint(out)))
	return L
}

// capturePrint mirrors Lua's print: arguments are rendered through
// tostring semantics and joined with tabs, one captured line per call.
func capturePrint(out *outputBuffer) lua.LGFunction {
	return func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		out.push(strings.Join(parts, "\t"))
		return 0
	}
}
