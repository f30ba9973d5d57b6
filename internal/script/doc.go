// Package script runs Lua scripts against an editing session.
//
// Scripts run in a sandboxed gopher-lua state with only the base, table,
// string and math libraries. File loading and module loading are removed.
// The session is exposed as the global table doc; offsets and line numbers
// are zero-based like the engine's:
//
//	doc.insert(0, "-- generated\n")
//	local a = doc.annotate(3, "todo", "check this")
//	doc.insert(0, "\n")
//	doc.log("annotation now on line " .. doc.annotation_line(a))
//
// Functions that can fail return true on success, or nil and a message.
package script
