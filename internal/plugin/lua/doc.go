// Package lua runs user Lua scripts that customize quote substitution.
//
// Scripts are plain Lua files loaded at startup: init.lua in the user
// configuration directory, then .enquote.lua in the workspace. They run in
// a sandboxed gopher-lua state with only the base, table, string and math
// libraries; loaders such as dofile and load are removed and require is
// limited to those libraries and the enquote module.
//
// # The enquote module
//
// The module is available as the global enquote and via require("enquote"):
//
//	enquote.mode()              -- "auto", "true" or "false"
//	enquote.set_mode("true")    -- runtime override, validated
//	enquote.detected()          -- csquotes import confirmed?
//	enquote.OPENING             -- "\enquote{"
//	enquote.CLOSING             -- "}"
//	enquote.on_applied(fn)      -- fn(replacement, line, column)
//	enquote.on_detected(fn)     -- fn(root_file)
//	enquote.log(msg)
//
// Positions passed to callbacks are 0-based, like every position in the
// editor core.
//
// # Execution
//
// Every script run and callback is bounded by an execution timeout enforced
// through the state's context. State methods are serialized, so callbacks
// may be delivered from any goroutine.
package lua
