package input

import (
	"log"

	"deskhook/internal/event"
)

// Channel is the edge-detection state machine for one id domain (keys or
// pointer buttons).
//
// Per id: Idle -Pressed-> JustPressed -Advance-> Held -Released->
// JustReleased -Advance-> Idle. A press while held or already just-pressed
// is swallowed; a release is always reported, even for ids never seen down.
//
// A Channel does no locking. OnRawEvent must never run concurrently with
// Advance or with another OnRawEvent; callers serialize access.
type Channel[ID comparable] struct {
	name string

	justPressed  map[ID]struct{}
	justReleased map[ID]struct{}
	held         map[ID]struct{}

	onPressed  *event.Set[ID, ID]
	onReleased *event.Set[ID, ID]
	onEdge     event.List[Edge[ID]]

	recognized func(ID) bool
	logger     *log.Logger
	debug      bool
}

// Edge is one accepted transition, as seen by AddOnEdge listeners.
type Edge[ID comparable] struct {
	ID         ID
	Transition Transition
}

// ChannelOption configures a Channel.
type ChannelOption[ID comparable] func(*Channel[ID])

// WithLogger sets the logger used for unknown ids and callback failures.
func WithLogger[ID comparable](l *log.Logger) ChannelOption[ID] {
	return func(c *Channel[ID]) {
		c.logger = l
	}
}

// WithRecognized restricts the channel to ids accepted by fn. Other ids are
// logged and dropped without touching any state.
func WithRecognized[ID comparable](fn func(ID) bool) ChannelOption[ID] {
	return func(c *Channel[ID]) {
		c.recognized = fn
	}
}

// WithDebug logs every accepted edge.
func WithDebug[ID comparable](on bool) ChannelOption[ID] {
	return func(c *Channel[ID]) {
		c.debug = on
	}
}

// NewChannel creates an empty channel. name only appears in log lines.
func NewChannel[ID comparable](name string, opts ...ChannelOption[ID]) *Channel[ID] {
	c := &Channel[ID]{
		name:         name,
		justPressed:  make(map[ID]struct{}),
		justReleased: make(map[ID]struct{}),
		held:         make(map[ID]struct{}),
		onPressed:    event.NewSet[ID, ID](),
		onReleased:   event.NewSet[ID, ID](),
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewKeys creates the keyboard channel.
func NewKeys(opts ...ChannelOption[Key]) *Channel[Key] {
	opts = append([]ChannelOption[Key]{WithRecognized(Key.Valid)}, opts...)
	return NewChannel[Key]("keys", opts...)
}

// NewButtons creates the pointer button channel.
func NewButtons(opts ...ChannelOption[Button]) *Channel[Button] {
	opts = append([]ChannelOption[Button]{WithRecognized(Button.Valid)}, opts...)
	return NewChannel[Button]("buttons", opts...)
}

// OnRawEvent feeds one raw transition into the channel. It may be called at
// any point between ticks.
func (c *Channel[ID]) OnRawEvent(id ID, t Transition) {
	if c.recognized != nil && !c.recognized(id) {
		c.logger.Printf("Input: %s: ignoring unrecognized id %v", c.name, id)
		return
	}

	switch t {
	case Pressed:
		if _, ok := c.held[id]; ok {
			return
		}
		if _, ok := c.justPressed[id]; ok {
			return
		}
		c.justPressed[id] = struct{}{}
		if c.debug {
			c.logger.Printf("Input: %s: %v pressed", c.name, id)
		}
		c.onPressed.Dispatch(id, id, c.report)
		c.onEdge.Dispatch(Edge[ID]{ID: id, Transition: Pressed}, c.report)

	case Released:
		c.justReleased[id] = struct{}{}
		if c.debug {
			c.logger.Printf("Input: %s: %v released", c.name, id)
		}
		c.onReleased.Dispatch(id, id, c.report)
		c.onEdge.Dispatch(Edge[ID]{ID: id, Transition: Released}, c.report)
		delete(c.held, id)

	default:
		c.logger.Printf("Input: %s: ignoring unknown transition %d for %v", c.name, int(t), id)
	}
}

// Advance closes the current tick: every just-pressed id becomes held and
// both transient sets are cleared. A release does not withdraw a press from
// the same tick, so an id pressed and released within one tick is held
// afterwards until its next release.
func (c *Channel[ID]) Advance() {
	for id := range c.justPressed {
		c.held[id] = struct{}{}
	}
	clear(c.justPressed)
	clear(c.justReleased)
}

// Reset drops all state, leaving callbacks registered.
func (c *Channel[ID]) Reset() {
	clear(c.justPressed)
	clear(c.justReleased)
	clear(c.held)
}

func (c *Channel[ID]) report(err error) {
	c.logger.Printf("Input: %s: %v", c.name, err)
}

// IsHeld reports whether id went down in an earlier tick and has not been
// released since.
func (c *Channel[ID]) IsHeld(id ID) bool {
	_, ok := c.held[id]
	return ok
}

// WasPressed reports whether id went down during the current tick.
func (c *Channel[ID]) WasPressed(id ID) bool {
	_, ok := c.justPressed[id]
	return ok
}

// WasReleased reports whether id went up during the current tick.
func (c *Channel[ID]) WasReleased(id ID) bool {
	_, ok := c.justReleased[id]
	return ok
}

// IsDown reports whether id is held or was pressed this tick.
func (c *Channel[ID]) IsDown(id ID) bool {
	return c.IsHeld(id) || c.WasPressed(id)
}

// AnyHeld reports whether any id is held.
func (c *Channel[ID]) AnyHeld() bool { return len(c.held) > 0 }

// AnyPressed reports whether any id went down during the current tick.
func (c *Channel[ID]) AnyPressed() bool { return len(c.justPressed) > 0 }

// AnyReleased reports whether any id went up during the current tick.
func (c *Channel[ID]) AnyReleased() bool { return len(c.justReleased) > 0 }

// Held returns a snapshot of the held ids.
func (c *Channel[ID]) Held() []ID { return keys(c.held) }

// Pressed returns a snapshot of the ids pressed this tick.
func (c *Channel[ID]) Pressed() []ID { return keys(c.justPressed) }

// Released returns a snapshot of the ids released this tick.
func (c *Channel[ID]) Released() []ID { return keys(c.justReleased) }

// Active returns a snapshot of every id currently down, whether it went
// down this tick or earlier.
func (c *Channel[ID]) Active() []ID {
	out := make([]ID, 0, len(c.held)+len(c.justPressed))
	for id := range c.held {
		out = append(out, id)
	}
	for id := range c.justPressed {
		if _, dup := c.held[id]; !dup {
			out = append(out, id)
		}
	}
	return out
}

// AddOnPressed registers cb for the pressed edge of id.
func (c *Channel[ID]) AddOnPressed(id ID, cb func(ID)) event.Token {
	return c.onPressed.Add(id, cb)
}

// AddOnReleased registers cb for the released edge of id.
func (c *Channel[ID]) AddOnReleased(id ID, cb func(ID)) event.Token {
	return c.onReleased.Add(id, cb)
}

// RemoveOnPressed detaches a pressed callback. It reports whether tok was
// registered.
func (c *Channel[ID]) RemoveOnPressed(tok event.Token) bool {
	return c.onPressed.Remove(tok)
}

// RemoveOnReleased detaches a released callback.
func (c *Channel[ID]) RemoveOnReleased(tok event.Token) bool {
	return c.onReleased.Remove(tok)
}

// AddOnEdge registers cb for every accepted edge of any id. It runs after
// the per-id callbacks.
func (c *Channel[ID]) AddOnEdge(cb func(Edge[ID])) event.Token {
	return c.onEdge.Add(cb)
}

// RemoveOnEdge detaches an edge listener.
func (c *Channel[ID]) RemoveOnEdge(tok event.Token) bool {
	return c.onEdge.Remove(tok)
}

func keys[ID comparable](set map[ID]struct{}) []ID {
	out := make([]ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
