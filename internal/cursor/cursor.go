// Package cursor tracks the desktop pointer position once per tick.
package cursor

import (
	"errors"
	"fmt"
	"log"

	"deskhook/internal/geom"
)

// ErrNoMover is returned by SetPosition and Move when the locator cannot
// warp the cursor.
var ErrNoMover = errors.New("cursor cannot be moved on this source")

// Locator reports the cursor position in desktop pixels.
type Locator interface {
	CursorPosition() (geom.Point, error)
}

// Mover warps the cursor.
type Mover interface {
	SetCursorPosition(geom.Point) error
}

// Tracker samples the cursor on every Update. A failing sample keeps the
// last known position.
type Tracker struct {
	locator  Locator
	position geom.Point
	delta    geom.Point
	sampled  bool
	lastErr  string
	logger   *log.Logger
}

func NewTracker(locator Locator, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{locator: locator, logger: logger}
}

// Update samples the cursor. Delta is zero on the first successful sample.
func (t *Tracker) Update() {
	p, err := t.locator.CursorPosition()
	if err != nil {
		if msg := err.Error(); msg != t.lastErr {
			t.logger.Printf("Cursor: sampling failed: %v", err)
			t.lastErr = msg
		}
		t.delta = geom.Point{}
		return
	}
	t.lastErr = ""

	if t.sampled {
		t.delta = p.Sub(t.position)
	}
	t.position = p
	t.sampled = true
}

// Position is the cursor position as of the last Update.
func (t *Tracker) Position() geom.Point {
	return t.position
}

// Delta is the movement between the last two samples.
func (t *Tracker) Delta() geom.Point {
	return t.delta
}

// SetPosition warps the cursor to p. The tracked position follows on the
// next Update.
func (t *Tracker) SetPosition(p geom.Point) error {
	m, ok := t.locator.(Mover)
	if !ok {
		return ErrNoMover
	}
	if err := m.SetCursorPosition(p); err != nil {
		return fmt.Errorf("set cursor position: %w", err)
	}
	return nil
}

// Move warps the cursor by (dx, dy) pixels relative to the tracked position.
func (t *Tracker) Move(dx, dy int) error {
	return t.SetPosition(geom.Point{X: t.position.X + dx, Y: t.position.Y + dy})
}
