package tick

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"
)

func TestStepOrder(t *testing.T) {
	s := NewScheduler(log.New(&bytes.Buffer{}, "", 0))
	var order []string
	s.Subscribe("advance", func(uint64) { order = append(order, "advance") })
	s.Subscribe("poll", func(uint64) { order = append(order, "poll") })

	if f := s.Step(); f != 1 {
		t.Errorf("Expected frame 1, got %d", f)
	}
	if strings.Join(order, ",") != "advance,poll" {
		t.Errorf("Expected advance,poll, got %v", order)
	}
	if s.Frame() != 1 {
		t.Errorf("Expected Frame() 1, got %d", s.Frame())
	}
}

func TestUnsubscribeFromCallback(t *testing.T) {
	s := NewScheduler(log.New(&bytes.Buffer{}, "", 0))
	calls := 0
	tok := s.Subscribe("counter", func(uint64) { calls++ })
	s.Subscribe("remover", func(uint64) { s.Unsubscribe(tok) })

	s.Step()
	s.Step()
	if calls != 1 {
		t.Errorf("Expected counter to run once, ran %d times", calls)
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 subscriber left, got %d", s.Len())
	}
}

func TestPanicIsLoggedByName(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(log.New(&buf, "", 0))
	ran := false
	s.Subscribe("broken", func(uint64) { panic("nope") })
	s.Subscribe("fine", func(uint64) { ran = true })

	s.Step()
	if !ran {
		t.Error("Expected later callback to run")
	}
	if !strings.Contains(buf.String(), "broken") {
		t.Errorf("Expected log to name the failing callback, got %q", buf.String())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewScheduler(log.New(&bytes.Buffer{}, "", 0))
	ctx, cancel := context.WithCancel(context.Background())
	s.Subscribe("stop", func(frame uint64) {
		if frame == 3 {
			cancel()
		}
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 200) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	if s.Frame() < 3 {
		t.Errorf("Expected at least 3 frames, got %d", s.Frame())
	}
}

func TestRunRejectsBadRate(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.Run(context.Background(), 0); err == nil {
		t.Error("Expected error for zero rate")
	}
}
