// Package script exposes the core's events to Lua scripts.
//
// An Engine is not goroutine-safe. Scripts are loaded and every callback
// runs on the goroutine that ticks the core.
package script

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"deskhook/internal/core"
	"deskhook/internal/event"
	"deskhook/internal/input"
	"deskhook/internal/window"

	lua "github.com/yuin/gopher-lua"
)

// DefaultCallTimeout bounds a single script callback.
const DefaultCallTimeout = 100 * time.Millisecond

type binding struct {
	remove func() bool
}

// Engine is a sandboxed Lua state bound to a core.
type Engine struct {
	L    *lua.LState
	core *core.Core

	bindings map[int]binding
	nextID   int

	timeout time.Duration
	errors  int
	closed  bool
	logger  *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by log() and for script errors.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithCallTimeout bounds each callback invocation.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New creates an engine over c with the script API installed.
func New(c *core.Core, opts ...Option) *Engine {
	e := &Engine{
		core:     c,
		bindings: make(map[int]binding),
		timeout:  DefaultCallTimeout,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(e.L)
	e.install()
	return e
}

// openSafeLibraries opens the base, table, string and math libraries and
// removes the loaders that could reach the file system.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (e *Engine) install() {
	funcs := map[string]lua.LGFunction{
		"on_key_pressed":     e.onKey(true),
		"on_key_released":    e.onKey(false),
		"on_button_pressed":  e.onButton(true),
		"on_button_released": e.onButton(false),
		"on_window_opened":   e.onWindow(true),
		"on_window_closed":   e.onWindow(false),
		"on_tick":            e.onTick,
		"off":                e.off,
		"is_held":            e.isHeld,
		"was_pressed":        e.wasPressed,
		"cursor":             e.cursor,
		"windows":            e.windows,
		"paused":             e.paused,
		"log":                e.log,
	}
	for name, fn := range funcs {
		e.L.SetGlobal(name, e.L.NewFunction(fn))
	}
}

// DoFile runs a script file.
func (e *Engine) DoFile(path string) error {
	if e.closed {
		return ErrStateClosed
	}
	if err := e.L.DoFile(path); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	e.logger.Printf("Script: Loaded %s (%d bindings)", path, len(e.bindings))
	return nil
}

// DoString runs a chunk of Lua.
func (e *Engine) DoString(code string) error {
	if e.closed {
		return ErrStateClosed
	}
	return e.L.DoString(code)
}

// Global returns a global value, or LNil after Close.
func (e *Engine) Global(name string) lua.LValue {
	if e.closed {
		return lua.LNil
	}
	return e.L.GetGlobal(name)
}

// Bindings returns the number of live callback registrations.
func (e *Engine) Bindings() int {
	return len(e.bindings)
}

// Errors returns the number of callback invocations that failed.
func (e *Engine) Errors() int {
	return e.errors
}

// Close removes every binding from the core and releases the Lua state.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	for id, b := range e.bindings {
		b.remove()
		delete(e.bindings, id)
	}
	e.L.Close()
	e.closed = true
	return nil
}

func (e *Engine) bind(remove func() bool) lua.LNumber {
	e.nextID++
	e.bindings[e.nextID] = binding{remove: remove}
	return lua.LNumber(e.nextID)
}

// call invokes fn in protected mode under the call timeout. Failures are
// logged and counted, never propagated.
func (e *Engine) call(what string, fn *lua.LFunction, args ...lua.LValue) {
	if e.closed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()

	if err := e.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
		e.errors++
		e.logger.Printf("Script: %s callback failed: %v", what, err)
	}
}

func (e *Engine) onKey(pressed bool) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)
		k, err := input.ParseKey(name)
		if err != nil {
			L.ArgError(1, err.Error())
			return 0
		}

		cb := func(k input.Key) {
			if !e.core.Paused() {
				e.call("key "+k.String(), fn, lua.LString(k.String()))
			}
		}
		var id lua.LNumber
		if pressed {
			tok := e.core.Keys.AddOnPressed(k, cb)
			id = e.bind(func() bool { return e.core.Keys.RemoveOnPressed(tok) })
		} else {
			tok := e.core.Keys.AddOnReleased(k, cb)
			id = e.bind(func() bool { return e.core.Keys.RemoveOnReleased(tok) })
		}
		L.Push(id)
		return 1
	}
}

func (e *Engine) onButton(pressed bool) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)
		b, err := input.ParseButton(name)
		if err != nil {
			L.ArgError(1, err.Error())
			return 0
		}

		cb := func(b input.Button) {
			if !e.core.Paused() {
				e.call("button "+b.String(), fn, lua.LString(b.String()))
			}
		}
		var tok event.Token
		if pressed {
			tok = e.core.Buttons.AddOnPressed(b, cb)
			L.Push(e.bind(func() bool { return e.core.Buttons.RemoveOnPressed(tok) }))
		} else {
			tok = e.core.Buttons.AddOnReleased(b, cb)
			L.Push(e.bind(func() bool { return e.core.Buttons.RemoveOnReleased(tok) }))
		}
		return 1
	}
}

func (e *Engine) onWindow(opened bool) lua.LGFunction {
	return func(L *lua.LState) int {
		fn := L.CheckFunction(1)
		what := "window closed"
		if opened {
			what = "window opened"
		}
		cb := func(r *window.Record) {
			e.call(what, fn, e.windowTable(r.Info()))
		}
		if opened {
			tok := e.core.Windows.AddOnOpened(cb)
			L.Push(e.bind(func() bool { return e.core.Windows.RemoveOnOpened(tok) }))
		} else {
			tok := e.core.Windows.AddOnClosed(cb)
			L.Push(e.bind(func() bool { return e.core.Windows.RemoveOnClosed(tok) }))
		}
		return 1
	}
}

func (e *Engine) onTick(L *lua.LState) int {
	fn := L.CheckFunction(1)
	tok := e.core.Scheduler.Subscribe("script", func(frame uint64) {
		e.call("tick", fn, lua.LNumber(frame))
	})
	L.Push(e.bind(func() bool { return e.core.Scheduler.Unsubscribe(tok) }))
	return 1
}

func (e *Engine) off(L *lua.LState) int {
	id := L.CheckInt(1)
	b, ok := e.bindings[id]
	if ok {
		delete(e.bindings, id)
		b.remove()
	}
	L.Push(lua.LBool(ok))
	return 1
}

// query takes a key name, or a button name prefixed with "mouse:".
func (e *Engine) query(L *lua.LState, keyFn func(input.Key) bool, buttonFn func(input.Button) bool) int {
	name := L.CheckString(1)
	if rest, ok := strings.CutPrefix(name, "mouse:"); ok {
		b, err := input.ParseButton(rest)
		if err != nil {
			L.ArgError(1, err.Error())
			return 0
		}
		L.Push(lua.LBool(buttonFn(b)))
		return 1
	}
	k, err := input.ParseKey(name)
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	L.Push(lua.LBool(keyFn(k)))
	return 1
}

func (e *Engine) isHeld(L *lua.LState) int {
	return e.query(L, e.core.Keys.IsDown, e.core.Buttons.IsDown)
}

func (e *Engine) wasPressed(L *lua.LState) int {
	return e.query(L, e.core.Keys.WasPressed, e.core.Buttons.WasPressed)
}

func (e *Engine) cursor(L *lua.LState) int {
	p := e.core.Cursor.Position()
	L.Push(lua.LNumber(p.X))
	L.Push(lua.LNumber(p.Y))
	return 2
}

func (e *Engine) windows(L *lua.LState) int {
	t := L.NewTable()
	for i, info := range e.core.Windows.Infos() {
		t.RawSetInt(i+1, e.windowTable(info))
	}
	L.Push(t)
	return 1
}

func (e *Engine) windowTable(info window.Info) *lua.LTable {
	t := e.L.NewTable()
	t.RawSetString("handle", lua.LNumber(info.Handle))
	t.RawSetString("title", lua.LString(info.Title))
	t.RawSetString("x", lua.LNumber(info.Rect.X))
	t.RawSetString("y", lua.LNumber(info.Rect.Y))
	t.RawSetString("width", lua.LNumber(info.Rect.Width))
	t.RawSetString("height", lua.LNumber(info.Rect.Height))
	t.RawSetString("serial", lua.LNumber(info.Serial))
	return t
}

func (e *Engine) paused(L *lua.LState) int {
	L.Push(lua.LBool(e.core.Paused()))
	return 1
}

func (e *Engine) log(L *lua.LState) int {
	e.logger.Printf("Script: %s", L.CheckString(1))
	return 0
}
