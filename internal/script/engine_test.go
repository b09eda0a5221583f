package script

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deskhook/internal/config"
	"deskhook/internal/core"
	"deskhook/internal/geom"
	"deskhook/internal/input"
	"deskhook/internal/source"
	"deskhook/internal/window"

	lua "github.com/yuin/gopher-lua"
)

func newEngine(t *testing.T, buf *bytes.Buffer, opts ...Option) (*Engine, *core.Core, *source.Scripted) {
	t.Helper()
	src := source.NewScripted()
	c, err := core.New(config.DefaultConfig(), src, core.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("core.New: %v", err)
	}
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	opts = append([]Option{WithLogger(log.New(buf, "", 0))}, opts...)
	e := New(c, opts...)
	t.Cleanup(func() { e.Close() })
	return e, c, src
}

func number(t *testing.T, e *Engine, name string) float64 {
	t.Helper()
	n, ok := e.Global(name).(lua.LNumber)
	if !ok {
		t.Fatalf("Expected %s to be a number, got %v", name, e.Global(name))
	}
	return float64(n)
}

func TestKeyCallbacks(t *testing.T) {
	var buf bytes.Buffer
	e, c, src := newEngine(t, &buf)

	err := e.DoString(`
		presses, releases, held_in_tick = 0, 0, 0
		on_key_pressed("A", function(name) presses = presses + 1; last = name end)
		on_key_released("a", function() releases = releases + 1 end)
		on_tick(function() if is_held("A") then held_in_tick = held_in_tick + 1 end end)
	`)
	if err != nil {
		t.Fatalf("DoString: %v", err)
	}
	if e.Bindings() != 3 {
		t.Errorf("Expected 3 bindings, got %d", e.Bindings())
	}

	src.Key(input.KeyA, true)
	c.Tick()
	c.Tick()
	src.Key(input.KeyA, false)
	c.Tick()

	if number(t, e, "presses") != 1 || number(t, e, "releases") != 1 {
		t.Errorf("Expected 1 press and 1 release, got %v and %v", e.Global("presses"), e.Global("releases"))
	}
	if e.Global("last").String() != "A" {
		t.Errorf("Expected key name A, got %v", e.Global("last"))
	}
	if number(t, e, "held_in_tick") != 2 {
		t.Errorf("Expected A down during 2 ticks, got %v", e.Global("held_in_tick"))
	}
}

func TestWindowCallbacks(t *testing.T) {
	var buf bytes.Buffer
	e, c, src := newEngine(t, &buf)

	if err := e.DoString(`
		opened, closed = {}, 0
		on_window_opened(function(w) table.insert(opened, w.title .. ":" .. w.width) end)
		on_window_closed(function(w) closed = closed + 1 end)
	`); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	src.SetWindows(window.Descriptor{Handle: 5, Title: "Mail", Rect: geom.Rect{Width: 640, Height: 480}})
	c.Tick()
	src.SetWindows()
	c.Tick()

	if err := e.DoString(`first = opened[1]; count = #windows()`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	if e.Global("first").String() != "Mail:640" {
		t.Errorf("Expected Mail:640, got %v", e.Global("first"))
	}
	if number(t, e, "closed") != 1 {
		t.Errorf("Expected 1 closed window, got %v", e.Global("closed"))
	}
	if number(t, e, "count") != 0 {
		t.Errorf("Expected no live windows, got %v", e.Global("count"))
	}
}

func TestCallbackErrorIsContained(t *testing.T) {
	var buf bytes.Buffer
	e, c, src := newEngine(t, &buf)

	if err := e.DoString(`
		ok = 0
		on_key_pressed("B", function() error("boom") end)
		on_key_pressed("B", function() ok = ok + 1 end)
	`); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	src.Key(input.KeyB, true)
	c.Tick()

	if number(t, e, "ok") != 1 {
		t.Error("Expected the second callback to run")
	}
	if e.Errors() != 1 {
		t.Errorf("Expected 1 error, got %d", e.Errors())
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("Expected error to be logged, got %q", buf.String())
	}
}

func TestRunawayCallbackTimesOut(t *testing.T) {
	var buf bytes.Buffer
	e, c, _ := newEngine(t, &buf, WithCallTimeout(20*time.Millisecond))

	if err := e.DoString(`on_tick(function() while true do end end)`); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	done := make(chan struct{})
	go func() {
		c.Tick()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected the tick to return after the call timeout")
	}
	if e.Errors() != 1 {
		t.Errorf("Expected 1 error, got %d", e.Errors())
	}
}

func TestOffRemovesBinding(t *testing.T) {
	var buf bytes.Buffer
	e, c, src := newEngine(t, &buf)

	if err := e.DoString(`
		n = 0
		h = on_key_pressed("C", function() n = n + 1 end)
		removed = off(h)
		again = off(h)
	`); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	src.Key(input.KeyC, true)
	c.Tick()

	if number(t, e, "n") != 0 {
		t.Error("Expected removed callback not to run")
	}
	if e.Global("removed") != lua.LTrue || e.Global("again") != lua.LFalse {
		t.Errorf("Expected off to report true then false, got %v and %v", e.Global("removed"), e.Global("again"))
	}
}

func TestPausedSuppressesInputCallbacks(t *testing.T) {
	var buf bytes.Buffer
	e, c, src := newEngine(t, &buf)

	if err := e.DoString(`n = 0; on_button_pressed("left", function() n = n + 1 end)`); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	c.SetPaused(true)
	src.Button(input.ButtonLeft, true)
	c.Tick()
	if number(t, e, "n") != 0 {
		t.Error("Expected no callback while paused")
	}
	if err := e.DoString(`p = paused(); down = is_held("mouse:left")`); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	if e.Global("p") != lua.LTrue || e.Global("down") != lua.LTrue {
		t.Errorf("Expected paused and left button down, got %v and %v", e.Global("p"), e.Global("down"))
	}
}

func TestSandbox(t *testing.T) {
	var buf bytes.Buffer
	e, _, _ := newEngine(t, &buf)

	for _, code := range []string{`io.open("x")`, `os.exit(1)`, `dofile("x.lua")`, `require("os")`} {
		if err := e.DoString(code); err == nil {
			t.Errorf("Expected %q to fail in the sandbox", code)
		}
	}
	if err := e.DoString(`on_key_pressed("Hyper", function() end)`); err == nil {
		t.Error("Expected an unknown key name to raise")
	}
}

func TestDoFileAndClose(t *testing.T) {
	var buf bytes.Buffer
	e, _, _ := newEngine(t, &buf)

	path := filepath.Join(t.TempDir(), "init.lua")
	if err := os.WriteFile(path, []byte(`log("hello from lua"); on_tick(function() end)`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := e.DoFile(path); err != nil {
		t.Fatalf("DoFile: %v", err)
	}
	if !strings.Contains(buf.String(), "hello from lua") {
		t.Errorf("Expected log output, got %q", buf.String())
	}

	e.Close()
	if e.Bindings() != 0 {
		t.Errorf("Expected Close to drop bindings, got %d", e.Bindings())
	}
	if err := e.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Expected ErrStateClosed, got %v", err)
	}
}
