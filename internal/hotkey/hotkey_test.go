package hotkey

import (
	"bytes"
	"log"
	"testing"

	"deskhook/internal/input"
)

func newManager() (*Manager, *input.Channel[input.Key], *input.Channel[input.Button]) {
	quiet := log.New(&bytes.Buffer{}, "", 0)
	keys := input.NewKeys(input.WithLogger[input.Key](quiet))
	buttons := input.NewButtons(input.WithLogger[input.Button](quiet))
	return NewManager(keys, buttons, quiet), keys, buttons
}

func TestComboFiresOnCompletingEdge(t *testing.T) {
	m, keys, _ := newManager()
	fired := 0
	if _, err := m.Register("Ctrl+Alt+Shift+Esc", func() { fired++ }); err != nil {
		t.Fatal(err)
	}

	keys.OnRawEvent(input.KeyLeftControl, input.Pressed)
	keys.OnRawEvent(input.KeyRightAlt, input.Pressed)
	keys.Advance()
	keys.OnRawEvent(input.KeyLeftShift, input.Pressed)
	if fired != 0 {
		t.Fatalf("Expected no trigger before Esc, got %d", fired)
	}

	keys.OnRawEvent(input.KeyEscape, input.Pressed)
	if fired != 1 {
		t.Errorf("Expected 1 trigger, got %d", fired)
	}

	keys.Advance()
	keys.OnRawEvent(input.KeyEscape, input.Pressed)
	if fired != 1 {
		t.Errorf("Expected held Esc not to refire, got %d", fired)
	}
}

func TestComboNeedsEveryPart(t *testing.T) {
	m, keys, _ := newManager()
	fired := 0
	m.Register("Ctrl+S", func() { fired++ })

	keys.OnRawEvent(input.KeyS, input.Pressed)
	keys.OnRawEvent(input.KeyLeftControl, input.Released)
	if fired != 0 {
		t.Errorf("Expected no trigger without Ctrl, got %d", fired)
	}
}

func TestMouseCombo(t *testing.T) {
	m, keys, buttons := newManager()
	fired := 0
	if _, err := m.Register("Ctrl+Mouse4", func() { fired++ }); err != nil {
		t.Fatal(err)
	}

	keys.OnRawEvent(input.KeyRightControl, input.Pressed)
	buttons.OnRawEvent(input.ButtonBack, input.Pressed)
	if fired != 1 {
		t.Errorf("Expected mouse combo to fire once, got %d", fired)
	}
}

func TestUnregister(t *testing.T) {
	m, keys, _ := newManager()
	fired := 0
	tok, _ := m.Register("F5", func() { fired++ })

	if !m.Unregister(tok) {
		t.Fatal("Expected Unregister to succeed")
	}
	keys.OnRawEvent(input.KeyF5, input.Pressed)
	if fired != 0 {
		t.Errorf("Expected unregistered hotkey to stay quiet, got %d", fired)
	}
	if m.Len() != 0 {
		t.Errorf("Expected no hotkeys, got %d", m.Len())
	}
}

func TestInvalidCombos(t *testing.T) {
	for _, combo := range []string{"", "Ctrl+Hyper", "Ctrl++"} {
		if err := Validate(combo); err == nil {
			t.Errorf("Expected %q to be rejected", combo)
		}
	}

	quiet := log.New(&bytes.Buffer{}, "", 0)
	m := NewManager(input.NewKeys(input.WithLogger[input.Key](quiet)), nil, quiet)
	if _, err := m.Register("Mouse1", func() {}); err == nil {
		t.Error("Expected mouse combo without a button channel to fail")
	}
}

func TestClear(t *testing.T) {
	m, keys, _ := newManager()
	fired := 0
	m.Register("A", func() { fired++ })
	m.Register("B", func() { fired++ })
	m.Clear()

	keys.OnRawEvent(input.KeyA, input.Pressed)
	keys.OnRawEvent(input.KeyB, input.Pressed)
	if fired != 0 || m.Len() != 0 {
		t.Errorf("Expected cleared hotkeys, got fired=%d len=%d", fired, m.Len())
	}
}
