package script

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/linekeeper/internal/engine/annotation"
	"github.com/dshills/linekeeper/internal/engine/position"
	"github.com/dshills/linekeeper/internal/engine/tracking"
	"github.com/dshills/linekeeper/internal/logging"
)

// docTable builds the doc global.
func (r *Runner) docTable() *lua.LTable {
	t := r.L.NewTable()
	r.L.SetFuncs(t, map[string]lua.LGFunction{
		"insert":          r.luaInsert,
		"remove":          r.luaRemove,
		"replace":         r.luaReplace,
		"text":            r.luaText,
		"line_count":      r.luaLineCount,
		"line_text":       r.luaLineText,
		"undo":            r.luaUndo,
		"redo":            r.luaRedo,
		"can_undo":        r.luaCanUndo,
		"can_redo":        r.luaCanRedo,
		"save":            r.luaSave,
		"modified":        r.luaModified,
		"begin_group":     r.luaBeginGroup,
		"end_group":       r.luaEndGroup,
		"transaction":     r.luaTransaction,
		"position":        r.luaPosition,
		"position_offset": r.luaPositionOffset,
		"annotate":        r.luaAnnotate,
		"annotation_line": r.luaAnnotationLine,
		"original_line":   r.luaOriginalLine,
		"reload":          r.luaReload,
		"log":             r.luaLog,
	})
	return t
}

// result pushes true, or nil and the error message.
func result(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func (r *Runner) luaInsert(L *lua.LState) int {
	return result(L, r.eng.Insert(L.CheckInt(1), L.CheckString(2)))
}

func (r *Runner) luaRemove(L *lua.LState) int {
	return result(L, r.eng.Remove(L.CheckInt(1), L.CheckInt(2)))
}

func (r *Runner) luaReplace(L *lua.LState) int {
	return result(L, r.eng.Replace(L.CheckInt(1), L.CheckInt(2), L.CheckString(3)))
}

func (r *Runner) luaText(L *lua.LState) int {
	L.Push(lua.LString(r.eng.Text()))
	return 1
}

func (r *Runner) luaLineCount(L *lua.LState) int {
	L.Push(lua.LNumber(r.eng.LineCount()))
	return 1
}

func (r *Runner) luaLineText(L *lua.LState) int {
	s, err := r.eng.LineText(L.CheckInt(1))
	if err != nil {
		return result(L, err)
	}
	L.Push(lua.LString(s))
	return 1
}

func (r *Runner) luaUndo(L *lua.LState) int {
	return result(L, r.eng.Undo())
}

func (r *Runner) luaRedo(L *lua.LState) int {
	return result(L, r.eng.Redo())
}

func (r *Runner) luaCanUndo(L *lua.LState) int {
	L.Push(lua.LBool(r.eng.CanUndo()))
	return 1
}

func (r *Runner) luaCanRedo(L *lua.LState) int {
	L.Push(lua.LBool(r.eng.CanRedo()))
	return 1
}

// luaSave saves; an optional function argument runs as the save actions.
func (r *Runner) luaSave(L *lua.LState) int {
	var actions func() error
	if fn, ok := L.Get(1).(*lua.LFunction); ok {
		actions = func() error {
			return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
		}
	}
	return result(L, r.eng.Save(actions))
}

func (r *Runner) luaModified(L *lua.LState) int {
	L.Push(lua.LBool(r.eng.IsModified()))
	return 1
}

func (r *Runner) luaBeginGroup(L *lua.LState) int {
	r.eng.BeginGroup(L.OptString(1, "Script"))
	return 0
}

func (r *Runner) luaEndGroup(L *lua.LState) int {
	return result(L, r.eng.EndGroup())
}

// luaTransaction runs fn as one undo step. A Lua error or a false first
// return value rolls it back.
func (r *Runner) luaTransaction(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	err := r.eng.Transaction(name, func() error {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
			return err
		}
		ret := L.Get(-1)
		L.Pop(1)
		if ret == lua.LFalse {
			return errors.New("transaction aborted")
		}
		return nil
	})
	return result(L, err)
}

func (r *Runner) luaPosition(L *lua.LState) int {
	bias := position.BiasBackward
	if L.OptString(2, "backward") == "forward" {
		bias = position.BiasForward
	}
	ud := L.NewUserData()
	ud.Value = r.eng.NewPosition(L.CheckInt(1), bias)
	L.Push(ud)
	return 1
}

func (r *Runner) luaPositionOffset(L *lua.LState) int {
	p, ok := L.CheckUserData(1).Value.(*position.Position)
	if !ok {
		L.ArgError(1, "position expected")
		return 0
	}
	L.Push(lua.LNumber(p.Offset()))
	return 1
}

func (r *Runner) luaAnnotate(L *lua.LState) int {
	a, err := r.eng.Annotate(L.CheckInt(1), L.CheckString(2), L.OptString(3, ""))
	if err != nil {
		return result(L, err)
	}
	ud := L.NewUserData()
	ud.Value = a
	L.Push(ud)
	return 1
}

func (r *Runner) luaAnnotationLine(L *lua.LState) int {
	a, ok := L.CheckUserData(1).Value.(*annotation.Annotation)
	if !ok {
		L.ArgError(1, "annotation expected")
		return 0
	}
	n := r.eng.AnnotationLine(a)
	if n < 0 {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(n))
	return 1
}

func (r *Runner) luaOriginalLine(L *lua.LState) int {
	n := r.eng.OriginalLine(L.CheckInt(1))
	if n == tracking.Unresolved {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(n))
	return 1
}

func (r *Runner) luaReload(L *lua.LState) int {
	stats, err := r.eng.Reload(L.CheckString(1))
	if err != nil {
		return result(L, err)
	}
	L.Push(lua.LNumber(stats.LinesInserted))
	L.Push(lua.LNumber(stats.LinesRemoved))
	return 2
}

// luaLog logs a message: doc.log(msg [, level]).
func (r *Runner) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	switch logging.ParseLevel(L.OptString(2, "info")) {
	case logging.LevelDebug:
		r.logger.Debug("%s", msg)
	case logging.LevelWarn:
		r.logger.Warn("%s", msg)
	case logging.LevelError:
		r.logger.Error("%s", msg)
	default:
		r.logger.Info("%s", msg)
	}
	return 0
}
