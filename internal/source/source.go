// Package source delivers raw desktop signals: key and button transitions
// pushed from OS hooks, and on-demand enumeration of visible windows.
package source

import (
	"fmt"
	"iter"
	"sync"

	"deskhook/internal/geom"
	"deskhook/internal/input"
	"deskhook/internal/window"
)

// KeyFunc receives raw key transitions. It may run on an OS hook thread
// with a system-enforced deadline and must return quickly.
type KeyFunc func(key input.Key, pressed bool)

// ButtonFunc receives raw pointer button transitions, under the same
// constraints as KeyFunc.
type ButtonFunc func(button input.Button, pressed bool)

// Source is the capability interface the core is built on.
type Source interface {
	Start() error
	Stop() error
	SubscribeRawKey(KeyFunc)
	SubscribeRawButton(ButtonFunc)
	EnumerateVisibleWindows() iter.Seq[window.Descriptor]
	CursorPosition() (geom.Point, error)
	Taskbar() (TaskbarInfo, error)
}

// CursorMover is implemented by sources that can warp the cursor.
type CursorMover interface {
	SetCursorPosition(geom.Point) error
}

// Edge is the screen edge a taskbar is docked to.
type Edge int

const (
	EdgeUnknown Edge = iota - 1
	EdgeLeft
	EdgeTop
	EdgeRight
	EdgeBottom
)

func (e Edge) String() string {
	switch e {
	case EdgeLeft:
		return "left"
	case EdgeTop:
		return "top"
	case EdgeRight:
		return "right"
	case EdgeBottom:
		return "bottom"
	default:
		return "unknown"
	}
}

func (e Edge) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// TaskbarInfo describes the shell taskbar.
type TaskbarInfo struct {
	Edge Edge      `json:"edge"`
	Rect geom.Rect `json:"rect"`
}

func (t TaskbarInfo) String() string {
	return fmt.Sprintf("taskbar %s %s", t.Edge, t.Rect)
}

// subscribers is a copy-on-write list readable from hook threads.
type subscribers[F any] struct {
	mu  sync.Mutex
	fns []F
}

func (s *subscribers[F]) add(fn F) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns[:len(s.fns):len(s.fns)], fn)
}

func (s *subscribers[F]) snapshot() []F {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fns
}
