// Package tick drives per-frame work at a fixed rate.
package tick

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"deskhook/internal/event"
)

// Scheduler is an ordered set of per-tick callbacks. Subscribe and
// Unsubscribe may be called from any goroutine, including from inside a
// callback; changes apply from the next Step.
type Scheduler struct {
	mu    sync.Mutex
	list  event.List[uint64]
	names map[event.Token]string

	frame  atomic.Uint64
	logger *log.Logger
}

// NewScheduler creates an empty scheduler. A nil logger means log.Default().
func NewScheduler(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		names:  make(map[event.Token]string),
		logger: logger,
	}
}

// Subscribe appends fn to the tick order. fn receives the frame number.
func (s *Scheduler) Subscribe(name string, fn func(frame uint64)) event.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := s.list.Add(fn)
	s.names[tok] = name
	return tok
}

// Unsubscribe removes a callback. It reports whether tok was subscribed.
func (s *Scheduler) Unsubscribe(tok event.Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.names, tok)
	return s.list.Remove(tok)
}

// Len returns the number of subscribed callbacks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Len()
}

// Frame returns the number of completed steps.
func (s *Scheduler) Frame() uint64 {
	return s.frame.Load()
}

// Step runs every subscribed callback once, in subscription order. A
// callback that panics is logged and skipped; the rest still run.
func (s *Scheduler) Step() uint64 {
	s.mu.Lock()
	snapshot := s.list
	s.mu.Unlock()

	frame := s.frame.Add(1)
	snapshot.Dispatch(frame, s.report)
	return frame
}

func (s *Scheduler) report(err error) {
	name := "?"
	var cbErr *event.CallbackError
	if errors.As(err, &cbErr) {
		s.mu.Lock()
		if n, ok := s.names[cbErr.Token]; ok {
			name = n
		}
		s.mu.Unlock()
	}
	s.logger.Printf("Tick: %s failed: %v", name, err)
}

// Run calls Step rate times per second until ctx is done.
func (s *Scheduler) Run(ctx context.Context, rate int) error {
	return Every(ctx, rate, func() { s.Step() })
}

// Every calls fn rate times per second until ctx is done. A slow fn makes
// the ticker drop ticks rather than queue them.
func Every(ctx context.Context, rate int, fn func()) error {
	if rate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %d", rate)
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}
