// Package overlay keeps one world-space placement per live window so a
// renderer can put a proxy (collider, outline) on top of it.
package overlay

import (
	"errors"
	"log"
	"math"

	"deskhook/internal/coords"
	"deskhook/internal/event"
	"deskhook/internal/geom"
	"deskhook/internal/window"
)

// Placement is where a window's proxy sits in world space. Scale is zero for
// windows that should not get a proxy: zero width, or spanning the whole
// viewport width (maximized or fullscreen).
type Placement struct {
	Handle   window.Handle `json:"handle"`
	Title    string        `json:"title"`
	Position geom.Vec2     `json:"position"`
	Scale    geom.Vec3     `json:"scale"`
}

// Hidden reports whether the placement has zero scale.
func (p Placement) Hidden() bool {
	return p.Scale == geom.Vec3{}
}

type entry struct {
	record    *window.Record
	placement Placement
	placed    bool
}

// Tracker follows a window registry and recomputes placements on Update.
// Like the registry it is single-goroutine.
type Tracker struct {
	mapper  *coords.Mapper
	entries map[*window.Record]*entry
	order   []*entry

	registry *window.Registry
	tokens   [2]event.Token

	onChanged event.List[Placement]
	onRemoved event.List[Placement]

	warned bool
	logger *log.Logger
}

func NewTracker(mapper *coords.Mapper, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{
		mapper:  mapper,
		entries: make(map[*window.Record]*entry),
		logger:  logger,
	}
}

// Attach starts following reg. Windows already live in reg are adopted.
func (t *Tracker) Attach(reg *window.Registry) {
	t.Detach()
	t.registry = reg
	for _, rec := range reg.List() {
		t.add(rec)
	}
	t.tokens[0] = reg.AddOnOpened(t.add)
	t.tokens[1] = reg.AddOnClosed(t.remove)
}

// Detach stops following the registry and drops every placement.
func (t *Tracker) Detach() {
	if t.registry == nil {
		return
	}
	t.registry.RemoveOnOpened(t.tokens[0])
	t.registry.RemoveOnClosed(t.tokens[1])
	t.registry = nil
	for _, e := range t.order {
		t.onRemoved.Dispatch(e.placement, t.report)
	}
	clear(t.entries)
	t.order = nil
}

func (t *Tracker) add(rec *window.Record) {
	if _, ok := t.entries[rec]; ok {
		return
	}
	e := &entry{record: rec, placement: Placement{Handle: rec.Handle(), Title: rec.Title()}}
	t.entries[rec] = e
	t.order = append(t.order, e)
}

func (t *Tracker) remove(rec *window.Record) {
	e, ok := t.entries[rec]
	if !ok {
		return
	}
	delete(t.entries, rec)
	for i, o := range t.order {
		if o == e {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	t.onRemoved.Dispatch(e.placement, t.report)
}

// Update recomputes every placement from the current window rects and
// camera. Placements stay unchanged while the mapper has no scale.
func (t *Tracker) Update() {
	ref, err := t.mapper.Reference()
	if err != nil {
		if !t.warned {
			t.logger.Printf("Overlay: skipping update: %v", err)
			t.warned = true
		}
		return
	}
	t.warned = false

	for _, e := range t.order {
		next, err := t.place(e.record, ref.Viewport.Width)
		if err != nil {
			if !errors.Is(err, coords.ErrScaleUndefined) {
				t.logger.Printf("Overlay: %s: %v", e.record.Handle(), err)
			}
			continue
		}
		if e.placed && next == e.placement {
			continue
		}
		e.placement = next
		e.placed = true
		t.onChanged.Dispatch(next, t.report)
	}
}

func (t *Tracker) place(rec *window.Record, viewportWidth float64) (Placement, error) {
	rect := rec.Rect()
	pos, err := t.mapper.ScreenToWorldPosition(rect.Position())
	if err != nil {
		return Placement{}, err
	}

	var scale geom.Vec3
	if rect.Width != 0 && math.Abs(rect.Width) < viewportWidth {
		scale, err = t.mapper.ScreenToWorldSize(rect.Size())
		if err != nil {
			return Placement{}, err
		}
	}
	return Placement{Handle: rec.Handle(), Title: rec.Title(), Position: pos, Scale: scale}, nil
}

func (t *Tracker) report(err error) {
	t.logger.Printf("Overlay: %v", err)
}

// List returns the current placements in window first-seen order.
func (t *Tracker) List() []Placement {
	out := make([]Placement, len(t.order))
	for i, e := range t.order {
		out[i] = e.placement
	}
	return out
}

// Get returns the placement for a live window.
func (t *Tracker) Get(rec *window.Record) (Placement, bool) {
	e, ok := t.entries[rec]
	if !ok {
		return Placement{}, false
	}
	return e.placement, true
}

// Len returns the number of tracked windows.
func (t *Tracker) Len() int {
	return len(t.order)
}

// AddOnChanged registers cb for placements that moved, resized or appeared.
func (t *Tracker) AddOnChanged(cb func(Placement)) event.Token {
	return t.onChanged.Add(cb)
}

// AddOnRemoved registers cb for placements whose window closed.
func (t *Tracker) AddOnRemoved(cb func(Placement)) event.Token {
	return t.onRemoved.Add(cb)
}

func (t *Tracker) RemoveOnChanged(tok event.Token) bool {
	return t.onChanged.Remove(tok)
}

func (t *Tracker) RemoveOnRemoved(tok event.Token) bool {
	return t.onRemoved.Remove(tok)
}
