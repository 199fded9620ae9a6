package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// removedGlobals can load code from disk or strings and are removed.
var removedGlobals = []string{"dofile", "loadfile", "load", "loadstring"}

// safeModules may be required from scripts in addition to preloaded modules.
var safeModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// openSafeLibraries opens only safe Lua standard libraries.
// io, os and debug are never opened.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenPackage(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// installSandbox removes loaders and restricts require to safe modules and
// the names in preloaded.
func installSandbox(L *lua.LState, preloaded ...string) {
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	allowed := make(map[string]bool, len(safeModules)+len(preloaded))
	for name := range safeModules {
		allowed[name] = true
	}
	for _, name := range preloaded {
		allowed[name] = true
	}

	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		L.SetField(pkg, "path", lua.LString(""))
		L.SetField(pkg, "cpath", lua.LString(""))
	}

	originalRequire := L.GetGlobal("require")
	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !allowed[name] {
			L.RaiseError("module %q is not available", name)
			return 0
		}
		L.Push(originalRequire)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}
