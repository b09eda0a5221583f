package source

import (
	"iter"
	"slices"
	"sync"

	"deskhook/internal/geom"
	"deskhook/internal/input"
	"deskhook/internal/window"
)

// Scripted is an in-memory Source. Tests and demo mode inject transitions
// and window snapshots by hand.
type Scripted struct {
	mu       sync.Mutex
	running  bool
	windows  []window.Descriptor
	failEnum bool
	cursor   geom.Point
	taskbar  TaskbarInfo

	keys    subscribers[KeyFunc]
	buttons subscribers[ButtonFunc]
}

func NewScripted() *Scripted {
	return &Scripted{taskbar: TaskbarInfo{Edge: EdgeUnknown}}
}

func (s *Scripted) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}
	s.running = true
	return nil
}

func (s *Scripted) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scripted) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scripted) SubscribeRawKey(fn KeyFunc)       { s.keys.add(fn) }
func (s *Scripted) SubscribeRawButton(fn ButtonFunc) { s.buttons.add(fn) }

// Key delivers a raw key transition to subscribers. Like a real hook it
// fires whether or not anyone is listening.
func (s *Scripted) Key(k input.Key, pressed bool) {
	for _, fn := range s.keys.snapshot() {
		fn(k, pressed)
	}
}

// Tap delivers a press followed by a release.
func (s *Scripted) Tap(k input.Key) {
	s.Key(k, true)
	s.Key(k, false)
}

// Button delivers a raw button transition to subscribers.
func (s *Scripted) Button(b input.Button, pressed bool) {
	for _, fn := range s.buttons.snapshot() {
		fn(b, pressed)
	}
}

// SetWindows replaces the snapshot returned by later enumerations.
func (s *Scripted) SetWindows(ws ...window.Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = slices.Clone(ws)
}

// FailEnumeration makes enumerations yield nothing, as a failing OS call
// would.
func (s *Scripted) FailEnumeration(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failEnum = fail
}

func (s *Scripted) EnumerateVisibleWindows() iter.Seq[window.Descriptor] {
	s.mu.Lock()
	ws := s.windows
	if s.failEnum {
		ws = nil
	}
	s.mu.Unlock()
	return slices.Values(ws)
}

func (s *Scripted) CursorPosition() (geom.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, nil
}

func (s *Scripted) SetCursorPosition(p geom.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = p
	return nil
}

func (s *Scripted) Taskbar() (TaskbarInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskbar, nil
}

func (s *Scripted) SetTaskbar(t TaskbarInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskbar = t
}
