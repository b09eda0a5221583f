package window

import (
	"log"
	"slices"

	"deskhook/internal/event"
)

// Registry diffs repeated enumerations into opened/closed notifications.
//
// Every record that is announced as opened is later announced as closed
// exactly once, provided each enumeration is complete. An enumeration that
// fails and yields nothing closes every live window; callers that need to
// ride out such failures must debounce before calling Poll.
//
// A Registry does no locking; Poll and the callback registration methods
// must be called from a single goroutine.
type Registry struct {
	source Enumerator

	live  map[Handle]*Record
	order []*Record // first-seen order of live records
	// reused across polls; holds handles not yet re-confirmed by the
	// current enumeration
	pending map[Handle]struct{}
	serial  uint64

	onOpened event.List[*Record]
	onClosed event.List[*Record]

	logger *log.Logger
	debug  bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for callback failures and debug lines.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithDebug logs every open and close.
func WithDebug(on bool) Option {
	return func(r *Registry) {
		r.debug = on
	}
}

// NewRegistry creates an empty registry reading from source.
func NewRegistry(source Enumerator, opts ...Option) *Registry {
	r := &Registry{
		source:  source,
		live:    make(map[Handle]*Record),
		pending: make(map[Handle]struct{}),
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Poll enumerates once and reconciles the live set. It returns how many
// windows were opened and closed by this call.
func (r *Registry) Poll() (opened, closed int) {
	clear(r.pending)
	for h := range r.live {
		r.pending[h] = struct{}{}
	}

	if r.source != nil {
		for d := range r.source.EnumerateVisibleWindows() {
			if rec, ok := r.live[d.Handle]; ok {
				rec.title = d.Title
				rec.rect = d.Rect
				delete(r.pending, d.Handle)
				continue
			}

			r.serial++
			rec := &Record{handle: d.Handle, title: d.Title, rect: d.Rect, serial: r.serial}
			r.live[d.Handle] = rec
			r.order = append(r.order, rec)
			opened++
			if r.debug {
				r.logger.Printf("Window: opened %s", rec)
			}
			r.onOpened.Dispatch(rec, r.report)
		}
	}

	if len(r.pending) == 0 {
		return opened, 0
	}

	var gone []*Record
	r.order = slices.DeleteFunc(r.order, func(rec *Record) bool {
		if _, ok := r.pending[rec.handle]; !ok {
			return false
		}
		gone = append(gone, rec)
		return true
	})
	for _, rec := range gone {
		delete(r.live, rec.handle)
	}
	for _, rec := range gone {
		closed++
		if r.debug {
			r.logger.Printf("Window: closed %s", rec)
		}
		r.onClosed.Dispatch(rec, r.report)
	}
	return opened, closed
}

// Clear closes every live record, as if an enumeration returned nothing.
func (r *Registry) Clear() int {
	gone := r.order
	r.order = nil
	clear(r.live)
	for _, rec := range gone {
		r.onClosed.Dispatch(rec, r.report)
	}
	return len(gone)
}

func (r *Registry) report(err error) {
	r.logger.Printf("Window: %v", err)
}

// List returns the live records in first-seen order. The slice is a copy;
// the records are shared and read-only.
func (r *Registry) List() []*Record {
	return slices.Clone(r.order)
}

// Infos returns detached copies of the live records.
func (r *Registry) Infos() []Info {
	out := make([]Info, len(r.order))
	for i, rec := range r.order {
		out[i] = rec.Info()
	}
	return out
}

// Get looks up the live record for h.
func (r *Registry) Get(h Handle) (*Record, bool) {
	rec, ok := r.live[h]
	return rec, ok
}

// Len returns the number of live windows.
func (r *Registry) Len() int {
	return len(r.live)
}

// AddOnOpened registers cb for newly seen windows.
func (r *Registry) AddOnOpened(cb func(*Record)) event.Token {
	return r.onOpened.Add(cb)
}

// AddOnClosed registers cb for windows that disappeared. The record carries
// the last known title and rect; its handle may no longer be valid for
// platform calls.
func (r *Registry) AddOnClosed(cb func(*Record)) event.Token {
	return r.onClosed.Add(cb)
}

// RemoveOnOpened detaches an opened callback. It reports whether tok was
// registered.
func (r *Registry) RemoveOnOpened(tok event.Token) bool {
	return r.onOpened.Remove(tok)
}

// RemoveOnClosed detaches a closed callback.
func (r *Registry) RemoveOnClosed(tok event.Token) bool {
	return r.onClosed.Remove(tok)
}
