// Package core wires a signal source to the input, window, cursor and
// overlay engines and drives them from a single tick goroutine.
package core

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync/atomic"

	"deskhook/internal/config"
	"deskhook/internal/coords"
	"deskhook/internal/cursor"
	"deskhook/internal/event"
	"deskhook/internal/geom"
	"deskhook/internal/hotkey"
	"deskhook/internal/input"
	"deskhook/internal/overlay"
	"deskhook/internal/protocol"
	"deskhook/internal/source"
	"deskhook/internal/tick"
	"deskhook/internal/window"
)

const defaultQueueSize = 1024

// Broadcaster receives stream messages produced on the tick goroutine. It
// must not block.
type Broadcaster interface {
	Broadcast(protocol.Message)
}

type rawEvent struct {
	isButton bool
	key      input.Key
	button   input.Button
	pressed  bool
}

// Core owns the engines. Apart from Snapshot, SetPaused, Paused,
// ApplyConfig and the raw event path, its methods must be called from the
// goroutine that runs Tick.
type Core struct {
	src    source.Source
	cfg    atomic.Pointer[config.Config]
	logger *log.Logger

	Keys      *input.Channel[input.Key]
	Buttons   *input.Channel[input.Button]
	Windows   *window.Registry
	Camera    *coords.Orthographic
	Mapper    *coords.Mapper
	Cursor    *cursor.Tracker
	Overlays  *overlay.Tracker
	Hotkeys   *hotkey.Manager
	Scheduler *tick.Scheduler

	raw       chan rawEvent
	queueSize int
	enabled   atomic.Bool
	paused    atomic.Bool
	dropped   atomic.Uint64

	// last values applied to the mapper; tick goroutine only
	viewport geom.Size
	camera   config.CameraConfig
	taskbar  *source.TaskbarInfo

	escape      event.Token
	broadcaster Broadcaster
	snapshot    atomic.Pointer[protocol.Snapshot]
}

// Option configures a Core.
type Option func(*Core)

// WithLogger sets the logger shared by every engine.
func WithLogger(l *log.Logger) Option {
	return func(c *Core) {
		c.logger = l
	}
}

// WithQueueSize bounds the raw event queue between the source and the tick.
func WithQueueSize(n int) Option {
	return func(c *Core) {
		c.queueSize = n
	}
}

// WithBroadcaster streams window and input events to b.
func WithBroadcaster(b Broadcaster) Option {
	return func(c *Core) {
		c.broadcaster = b
	}
}

// New builds a core over src. The configuration is copied.
func New(cfg *config.Config, src source.Source, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}

	c := &Core{
		src:       src,
		logger:    log.Default(),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.queueSize <= 0 {
		return nil, fmt.Errorf("core: queue size must be positive, got %d", c.queueSize)
	}
	cp := *cfg
	c.cfg.Store(&cp)

	debug := cfg.General.Debug
	c.Keys = input.NewKeys(input.WithLogger[input.Key](c.logger), input.WithDebug[input.Key](debug))
	c.Buttons = input.NewButtons(input.WithLogger[input.Button](c.logger), input.WithDebug[input.Button](debug))
	c.Windows = window.NewRegistry(src, window.WithLogger(c.logger), window.WithDebug(debug))
	c.Camera = coords.NewOrthographic(cfg.Camera.OrthographicSize, cameraPosition(cfg.Camera))
	c.Mapper = coords.NewMapper()
	c.Cursor = cursor.NewTracker(src, c.logger)
	c.Overlays = overlay.NewTracker(c.Mapper, c.logger)
	c.Overlays.Attach(c.Windows)
	c.Hotkeys = hotkey.NewManager(c.Keys, c.Buttons, c.logger)
	c.Scheduler = tick.NewScheduler(c.logger)
	c.raw = make(chan rawEvent, c.queueSize)

	if combo := cfg.General.EscapeHotkey; combo != "" {
		tok, err := c.Hotkeys.Register(combo, func() { c.SetPaused(!c.Paused()) })
		if err != nil {
			return nil, fmt.Errorf("core: escape hotkey: %w", err)
		}
		c.escape = tok
	}

	src.SubscribeRawKey(c.onRawKey)
	src.SubscribeRawButton(c.onRawButton)

	c.Keys.AddOnEdge(func(e input.Edge[input.Key]) {
		c.broadcastInput(protocol.TypeKey, e.ID.String(), e.Transition)
	})
	c.Buttons.AddOnEdge(func(e input.Edge[input.Button]) {
		c.broadcastInput(protocol.TypeButton, e.ID.String(), e.Transition)
	})
	c.Windows.AddOnOpened(func(r *window.Record) { c.broadcastWindow(protocol.TypeWindowOpened, r) })
	c.Windows.AddOnClosed(func(r *window.Record) { c.broadcastWindow(protocol.TypeWindowClosed, r) })

	c.Scheduler.Subscribe("inputs", c.stepInputs)
	c.Scheduler.Subscribe("scale", c.stepScale)
	c.Scheduler.Subscribe("windows", c.stepWindows)
	c.Scheduler.Subscribe("cursor", c.stepCursor)
	c.Scheduler.Subscribe("overlays", c.stepOverlays)
	c.Scheduler.Subscribe("snapshot", c.stepSnapshot)

	return c, nil
}

func cameraPosition(cc config.CameraConfig) geom.Vec3 {
	return geom.Vec3{X: cc.Position.X, Y: cc.Position.Y, Z: cc.Position.Z}
}

// Config returns the configuration currently in effect.
func (c *Core) Config() *config.Config {
	cp := *c.cfg.Load()
	return &cp
}

// ApplyConfig swaps in a new configuration. Module toggles, viewport and
// camera take effect on the next tick. It is safe to call from any
// goroutine.
func (c *Core) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cp := *cfg
	c.cfg.Store(&cp)
	return nil
}

// Enable starts the source and primes the engines with a first poll.
func (c *Core) Enable() error {
	if c.enabled.Load() {
		return ErrAlreadyEnabled
	}
	if err := c.src.Start(); err != nil {
		return fmt.Errorf("core: starting source: %w", err)
	}

	c.Keys.Reset()
	c.Buttons.Reset()
	c.drain(func(rawEvent) {})
	c.enabled.Store(true)

	c.stepScale(0)
	cfg := c.cfg.Load()
	if cfg.Modules.Windows {
		opened, _ := c.Windows.Poll()
		c.logger.Printf("Core: Enabled with %d visible windows", opened)
	} else {
		c.logger.Printf("Core: Enabled")
	}
	c.refreshTaskbar()
	c.stepSnapshot(c.Scheduler.Frame())
	return nil
}

// Disable stops the source. Raw events delivered afterwards are dropped.
// Live windows and key state are kept until the next Enable.
func (c *Core) Disable() error {
	if !c.enabled.Swap(false) {
		return ErrNotEnabled
	}
	if err := c.src.Stop(); err != nil {
		return fmt.Errorf("core: stopping source: %w", err)
	}
	c.logger.Printf("Core: Disabled")
	c.stepSnapshot(c.Scheduler.Frame())
	return nil
}

// Enabled reports whether the core is enabled.
func (c *Core) Enabled() bool {
	return c.enabled.Load()
}

// Tick runs one frame. It does nothing while the core is disabled.
func (c *Core) Tick() uint64 {
	if !c.enabled.Load() {
		return c.Scheduler.Frame()
	}
	return c.Scheduler.Step()
}

// Run ticks at the configured rate until ctx is done. The rate is read
// once; a changed tick rate applies on the next Run.
func (c *Core) Run(ctx context.Context) error {
	rate := c.cfg.Load().Window.TickRate
	c.logger.Printf("Core: Ticking at %d Hz", rate)

	return tick.Every(ctx, rate, func() { c.Tick() })
}

// SetPaused mutes the stream and script consumers of input events. Raw
// events keep feeding the channels so the escape hotkey can resume.
func (c *Core) SetPaused(paused bool) {
	if c.paused.Swap(paused) == paused {
		return
	}
	c.logger.Printf("Core: Input paused=%v", paused)
	if c.broadcaster != nil {
		c.broadcaster.Broadcast(protocol.Message{
			Type:    protocol.TypePaused,
			Payload: protocol.PausedPayload{Paused: paused},
		})
	}
}

// Paused reports whether input consumers are muted.
func (c *Core) Paused() bool {
	return c.paused.Load()
}

// Dropped returns the number of raw events lost to a full queue.
func (c *Core) Dropped() uint64 {
	return c.dropped.Load()
}

// Snapshot returns the state published at the end of the last tick.
func (c *Core) Snapshot() *protocol.Snapshot {
	return c.snapshot.Load()
}

func (c *Core) onRawKey(k input.Key, pressed bool) {
	c.enqueue(rawEvent{key: k, pressed: pressed})
}

func (c *Core) onRawButton(b input.Button, pressed bool) {
	c.enqueue(rawEvent{isButton: true, button: b, pressed: pressed})
}

// enqueue runs on the source's hook thread and never blocks.
func (c *Core) enqueue(ev rawEvent) {
	if !c.enabled.Load() {
		return
	}
	select {
	case c.raw <- ev:
	default:
		if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
			c.logger.Printf("Core: Raw event queue full, %d events dropped so far", n)
		}
	}
}

// drain hands every event queued so far to fn. Events that arrive while
// draining wait for the next tick.
func (c *Core) drain(fn func(rawEvent)) {
	for n := len(c.raw); n > 0; n-- {
		fn(<-c.raw)
	}
}

func (c *Core) stepInputs(uint64) {
	if !c.cfg.Load().Modules.Inputs {
		c.drain(func(rawEvent) {})
		return
	}
	c.Keys.Advance()
	c.Buttons.Advance()
	c.drain(func(ev rawEvent) {
		t := input.TransitionOf(ev.pressed)
		if ev.isButton {
			c.Buttons.OnRawEvent(ev.button, t)
		} else {
			c.Keys.OnRawEvent(ev.key, t)
		}
	})
}

func (c *Core) stepScale(uint64) {
	cfg := c.cfg.Load()
	vp := geom.Size{Width: float64(cfg.Window.Viewport.Width), Height: float64(cfg.Window.Viewport.Height)}
	if vp == c.viewport && cfg.Camera == c.camera && c.Mapper.Valid() {
		return
	}

	if cfg.Camera != c.camera {
		c.Camera.Size = cfg.Camera.OrthographicSize
		c.Camera.SetPosition(cameraPosition(cfg.Camera))
	}
	c.viewport = vp
	c.camera = cfg.Camera

	if err := c.Mapper.RecalculateScale(vp, c.Camera); err != nil {
		c.logger.Printf("Core: Keeping previous scale: %v", err)
		return
	}
	ref, _ := c.Mapper.Reference()
	c.logger.Printf("Core: Scale %s", ref)
}

func (c *Core) stepWindows(frame uint64) {
	cfg := c.cfg.Load()
	if !cfg.Modules.Windows {
		return
	}
	c.Windows.Poll()
	if frame%uint64(cfg.Window.TickRate) == 0 {
		c.refreshTaskbar()
	}
}

func (c *Core) refreshTaskbar() {
	tb, err := c.src.Taskbar()
	if err != nil {
		c.taskbar = nil
		return
	}
	c.taskbar = &tb
}

func (c *Core) stepCursor(uint64) {
	if c.cfg.Load().Modules.Cursor {
		c.Cursor.Update()
	}
}

func (c *Core) stepOverlays(uint64) {
	cfg := c.cfg.Load()
	if cfg.Modules.Overlays && cfg.Modules.Windows {
		c.Overlays.Update()
	}
}

func (c *Core) stepSnapshot(frame uint64) {
	cfg := c.cfg.Load()
	snap := &protocol.Snapshot{
		Frame:         frame,
		Enabled:       c.enabled.Load(),
		Paused:        c.paused.Load(),
		Modules:       cfg.Modules,
		HeldKeys:      names(c.Keys.Active()),
		HeldButtons:   names(c.Buttons.Active()),
		Cursor:        c.Cursor.Position(),
		CursorDelta:   c.Cursor.Delta(),
		Windows:       c.Windows.Infos(),
		Overlays:      c.Overlays.List(),
		Taskbar:       c.taskbar,
		DroppedEvents: c.dropped.Load(),
	}
	if ref, err := c.Mapper.Reference(); err == nil {
		snap.Scale = &ref
	}
	c.snapshot.Store(snap)

	if c.broadcaster != nil && frame > 0 && frame%uint64(cfg.Window.TickRate) == 0 {
		c.broadcaster.Broadcast(protocol.Message{
			Type: protocol.TypeTick,
			Payload: protocol.TickPayload{
				Frame:   frame,
				Cursor:  snap.Cursor,
				Windows: len(snap.Windows),
				Held:    len(snap.HeldKeys) + len(snap.HeldButtons),
			},
		})
	}
}

func (c *Core) broadcastInput(typ protocol.MessageType, name string, t input.Transition) {
	if c.broadcaster == nil || c.paused.Load() {
		return
	}
	c.broadcaster.Broadcast(protocol.Message{
		Type: typ,
		Payload: protocol.InputPayload{
			Frame:   c.Scheduler.Frame(),
			Name:    name,
			Pressed: t == input.Pressed,
		},
	})
}

func (c *Core) broadcastWindow(typ protocol.MessageType, r *window.Record) {
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.Broadcast(protocol.Message{
		Type:    typ,
		Payload: protocol.WindowPayload{Frame: c.Scheduler.Frame(), Window: r.Info()},
	})
}

func names[ID fmt.Stringer](ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	slices.Sort(out)
	return out
}
