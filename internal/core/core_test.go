package core

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"deskhook/internal/config"
	"deskhook/internal/geom"
	"deskhook/internal/input"
	"deskhook/internal/protocol"
	"deskhook/internal/source"
	"deskhook/internal/window"
)

type recorder struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (r *recorder) Broadcast(m protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) types() []protocol.MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.MessageType, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Type
	}
	return out
}

func (r *recorder) count(t protocol.MessageType) int {
	n := 0
	for _, got := range r.types() {
		if got == t {
			n++
		}
	}
	return n
}

func newTestCore(t *testing.T, opts ...Option) (*Core, *source.Scripted, *recorder) {
	t.Helper()
	src := source.NewScripted()
	rec := &recorder{}
	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0)), WithBroadcaster(rec)}, opts...)
	c, err := New(config.DefaultConfig(), src, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, src, rec
}

func TestEnableDisable(t *testing.T) {
	c, src, _ := newTestCore(t)

	if err := c.Disable(); !errors.Is(err, ErrNotEnabled) {
		t.Errorf("Expected ErrNotEnabled, got %v", err)
	}
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !src.Running() {
		t.Error("Expected source to be started")
	}
	if err := c.Enable(); !errors.Is(err, ErrAlreadyEnabled) {
		t.Errorf("Expected ErrAlreadyEnabled, got %v", err)
	}
	if err := c.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if src.Running() {
		t.Error("Expected source to be stopped")
	}
	if c.Snapshot() == nil || c.Snapshot().Enabled {
		t.Error("Expected a disabled snapshot after Disable")
	}
}

func TestRawEventsReachChannelsOnTick(t *testing.T) {
	c, src, _ := newTestCore(t)
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	src.Key(input.KeyA, true)
	src.Button(input.ButtonRight, true)
	if c.Keys.WasPressed(input.KeyA) {
		t.Error("Expected raw event to wait for the tick")
	}

	c.Tick()
	if !c.Keys.WasPressed(input.KeyA) || !c.Buttons.WasPressed(input.ButtonRight) {
		t.Error("Expected queued events to be pressed after the tick")
	}

	c.Tick()
	if !c.Keys.IsHeld(input.KeyA) || !c.Buttons.IsHeld(input.ButtonRight) {
		t.Error("Expected events to be held one tick later")
	}

	snap := c.Snapshot()
	if len(snap.HeldKeys) != 1 || snap.HeldKeys[0] != "A" {
		t.Errorf("Expected held keys [A], got %v", snap.HeldKeys)
	}
	if len(snap.HeldButtons) != 1 || snap.HeldButtons[0] != "right" {
		t.Errorf("Expected held buttons [right], got %v", snap.HeldButtons)
	}
}

func TestEventsWhileDisabledAreDropped(t *testing.T) {
	c, src, _ := newTestCore(t)

	src.Key(input.KeyA, true)
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	c.Tick()
	if c.Keys.AnyPressed() {
		t.Error("Expected events from before Enable to be ignored")
	}

	if err := c.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	src.Key(input.KeyB, true)
	frame := c.Scheduler.Frame()
	if got := c.Tick(); got != frame {
		t.Errorf("Expected Tick to be a no-op while disabled, frame moved to %d", got)
	}
	if len(c.raw) != 0 {
		t.Errorf("Expected empty queue after Disable, got %d", len(c.raw))
	}
}

func TestQueueOverflowCountsDrops(t *testing.T) {
	c, src, _ := newTestCore(t, WithQueueSize(2))
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	for _, k := range []input.Key{input.KeyA, input.KeyB, input.KeyC, input.KeyD, input.KeyE} {
		src.Key(k, true)
	}
	if c.Dropped() != 3 {
		t.Errorf("Expected 3 dropped events, got %d", c.Dropped())
	}

	c.Tick()
	if !c.Keys.WasPressed(input.KeyA) || !c.Keys.WasPressed(input.KeyB) {
		t.Error("Expected the first two events to survive")
	}
	if c.Keys.WasPressed(input.KeyC) {
		t.Error("Expected dropped events to stay unobserved")
	}
	if c.Snapshot().DroppedEvents != 3 {
		t.Errorf("Expected snapshot to report 3 drops, got %d", c.Snapshot().DroppedEvents)
	}
}

func TestWindowEventsAreBroadcast(t *testing.T) {
	c, src, rec := newTestCore(t)
	src.SetWindows(window.Descriptor{Handle: 1, Title: "one", Rect: geom.Rect{Width: 100, Height: 100}})

	if err := c.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if c.Windows.Len() != 1 {
		t.Fatalf("Expected Enable to poll once, got %d windows", c.Windows.Len())
	}

	src.SetWindows(window.Descriptor{Handle: 2, Title: "two", Rect: geom.Rect{Width: 100, Height: 100}})
	c.Tick()

	if rec.count(protocol.TypeWindowOpened) != 2 || rec.count(protocol.TypeWindowClosed) != 1 {
		t.Errorf("Expected 2 opened and 1 closed, got %v", rec.types())
	}
	snap := c.Snapshot()
	if len(snap.Windows) != 1 || snap.Windows[0].Title != "two" {
		t.Errorf("Expected snapshot with window two, got %+v", snap.Windows)
	}
	if len(snap.Overlays) != 1 || snap.Overlays[0].Handle != 2 {
		t.Errorf("Expected one overlay for window two, got %+v", snap.Overlays)
	}
	if snap.Scale == nil {
		t.Error("Expected a scale in the snapshot")
	}
}

func TestEscapeHotkeyPausesStream(t *testing.T) {
	c, src, rec := newTestCore(t)
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	for _, k := range []input.Key{input.KeyLeftControl, input.KeyLeftAlt, input.KeyLeftShift, input.KeyEscape} {
		src.Key(k, true)
	}
	c.Tick()
	if !c.Paused() {
		t.Fatal("Expected escape hotkey to pause input")
	}
	if rec.count(protocol.TypePaused) != 1 {
		t.Errorf("Expected one paused message, got %v", rec.types())
	}

	keysBefore := rec.count(protocol.TypeKey)
	src.Key(input.KeyZ, true)
	c.Tick()
	if rec.count(protocol.TypeKey) != keysBefore {
		t.Error("Expected no key messages while paused")
	}
	if !c.Keys.WasPressed(input.KeyZ) {
		t.Error("Expected channels to keep tracking while paused")
	}

	src.Key(input.KeyEscape, false)
	c.Tick()
	src.Key(input.KeyEscape, true)
	c.Tick()
	if c.Paused() {
		t.Error("Expected second escape combo to resume")
	}
}

func TestModuleToggles(t *testing.T) {
	c, src, _ := newTestCore(t)
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	cfg := c.Config()
	cfg.Modules.Inputs = false
	cfg.Modules.Windows = false
	if err := c.ApplyConfig(cfg); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}

	src.Key(input.KeyA, true)
	src.SetWindows(window.Descriptor{Handle: 7, Title: "seven"})
	c.Tick()

	if c.Keys.AnyPressed() {
		t.Error("Expected inputs module off to discard events")
	}
	if len(c.raw) != 0 {
		t.Error("Expected queue to be drained with inputs off")
	}
	if c.Windows.Len() != 0 {
		t.Error("Expected windows module off to skip polling")
	}
}

func TestApplyConfigRecalculatesScale(t *testing.T) {
	c, _, _ := newTestCore(t)
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	before, err := c.Mapper.Scale()
	if err != nil {
		t.Fatalf("Scale: %v", err)
	}

	cfg := c.Config()
	cfg.Window.Viewport.Width = 960
	if err := c.ApplyConfig(cfg); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}
	c.Tick()

	after, err := c.Mapper.Scale()
	if err != nil {
		t.Fatalf("Scale: %v", err)
	}
	if after.X >= before.X || after.Y != before.Y {
		t.Errorf("Expected narrower extent with equal height, got %v then %v", before, after)
	}

	cfg.Window.TickRate = 0
	if err := c.ApplyConfig(cfg); err == nil {
		t.Error("Expected invalid config to be rejected")
	}
}

func TestDegenerateViewportKeepsScale(t *testing.T) {
	c, _, _ := newTestCore(t)
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	before, _ := c.Mapper.Scale()

	cfg := c.Config()
	cfg.Window.Viewport.Height = 0
	if err := c.ApplyConfig(cfg); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}
	c.Tick()

	after, err := c.Mapper.Scale()
	if err != nil || after != before {
		t.Errorf("Expected previous scale %v to survive, got %v (%v)", before, after, err)
	}
}

func TestBadEscapeHotkey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.General.EscapeHotkey = "Ctrl+Hyper"
	if _, err := New(cfg, source.NewScripted(), WithLogger(log.New(io.Discard, "", 0))); err == nil {
		t.Error("Expected an error for an unknown hotkey key")
	}
}

func TestUserSubscriptionsRunAfterEngines(t *testing.T) {
	c, src, _ := newTestCore(t)
	if err := c.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	sawPress := false
	c.Scheduler.Subscribe("user", func(uint64) {
		if c.Keys.WasPressed(input.KeySpace) {
			sawPress = true
		}
	})
	src.Key(input.KeySpace, true)
	c.Tick()
	if !sawPress {
		t.Error("Expected user tick callbacks to see this tick's edges")
	}
}
