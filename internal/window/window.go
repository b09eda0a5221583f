// Package window keeps a live set of top-level OS windows by diffing
// successive full enumerations.
package window

import (
	"fmt"
	"iter"

	"deskhook/internal/geom"
)

// Handle is the OS identifier of a top-level window. It is stable for the
// window's lifetime but may be reused by the OS afterwards.
type Handle uintptr

func (h Handle) String() string {
	return fmt.Sprintf("0x%X", uintptr(h))
}

// Descriptor is one entry of a raw enumeration.
type Descriptor struct {
	Handle Handle
	Title  string
	Rect   geom.Rect
}

// Enumerator produces a fresh, finite sequence of visible windows each time
// it is called. Filtering (shell window, cloaked, untitled) is its job.
type Enumerator interface {
	EnumerateVisibleWindows() iter.Seq[Descriptor]
}

// EnumeratorFunc adapts a function to Enumerator.
type EnumeratorFunc func() iter.Seq[Descriptor]

func (f EnumeratorFunc) EnumerateVisibleWindows() iter.Seq[Descriptor] {
	return f()
}

// Record is a live window tracked by a Registry. The registry updates title
// and rect in place on every poll that sees the window again, so holders of
// a *Record always read current values. Callers must not mutate it.
type Record struct {
	handle Handle
	title  string
	rect   geom.Rect
	serial uint64
}

func (r *Record) Handle() Handle  { return r.handle }
func (r *Record) Title() string   { return r.title }
func (r *Record) Rect() geom.Rect { return r.rect }

// Serial distinguishes records for the same handle: a window that closes and
// comes back gets a record with a higher serial.
func (r *Record) Serial() uint64 { return r.serial }

func (r *Record) String() string {
	return fmt.Sprintf("%s %q %s", r.handle, r.title, r.rect)
}

// Info is a detached copy of a record.
type Info struct {
	Handle Handle    `json:"handle"`
	Title  string    `json:"title"`
	Rect   geom.Rect `json:"rect"`
	Serial uint64    `json:"serial"`
}

// Info returns a copy that stays valid after the record changes.
func (r *Record) Info() Info {
	return Info{Handle: r.handle, Title: r.title, Rect: r.rect, Serial: r.serial}
}
