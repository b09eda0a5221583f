// Package hotkey matches key and button combinations against the input
// channels.
package hotkey

import (
	"fmt"
	"log"
	"strings"

	"deskhook/internal/event"
	"deskhook/internal/input"
)

// Manager handles hotkey registration and matching. A combo fires on the
// pressed edge that completes it, on the goroutine that feeds the channels.
type Manager struct {
	keys    *input.Channel[input.Key]
	buttons *input.Channel[input.Button]
	hotkeys map[event.Token]*registeredHotkey
	logger  *log.Logger
}

// group is satisfied when any of its keys or buttons is down; "Ctrl"
// expands to both control keys.
type group struct {
	keys    []input.Key
	buttons []input.Button
}

type registeredHotkey struct {
	groups    []group
	original  string
	callbacks event.List[string]
	keyTokens []event.Token
	btnTokens []event.Token
}

// NewManager creates a manager over the given channels. buttons may be nil
// when no combo uses mouse buttons.
func NewManager(keys *input.Channel[input.Key], buttons *input.Channel[input.Button], logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		keys:    keys,
		buttons: buttons,
		hotkeys: make(map[event.Token]*registeredHotkey),
		logger:  logger,
	}
}

var modifierAliases = map[string][]input.Key{
	"CTRL":    {input.KeyLeftControl, input.KeyRightControl},
	"CONTROL": {input.KeyLeftControl, input.KeyRightControl},
	"ALT":     {input.KeyLeftAlt, input.KeyRightAlt},
	"SHIFT":   {input.KeyLeftShift, input.KeyRightShift},
	"WIN":     {input.KeyLeftWindows, input.KeyRightWindows},
	"CMD":     {input.KeyLeftWindows, input.KeyRightWindows},
}

var mouseAliases = map[string]input.Button{
	"MOUSE1": input.ButtonLeft,
	"MOUSE2": input.ButtonMiddle,
	"MOUSE3": input.ButtonRight,
	"MOUSE4": input.ButtonBack,
	"MOUSE5": input.ButtonForward,
}

// Validate reports whether combo can be registered.
func Validate(combo string) error {
	_, err := parse(combo)
	return err
}

// parse splits a combo such as "Ctrl+Alt+Shift+Esc" or "Ctrl+Mouse4".
func parse(combo string) ([]group, error) {
	if strings.TrimSpace(combo) == "" {
		return nil, fmt.Errorf("empty hotkey")
	}
	var groups []group
	for _, part := range strings.Split(combo, "+") {
		name := strings.ToUpper(strings.TrimSpace(part))
		if keys, ok := modifierAliases[name]; ok {
			groups = append(groups, group{keys: keys})
			continue
		}
		if b, ok := mouseAliases[name]; ok {
			groups = append(groups, group{buttons: []input.Button{b}})
			continue
		}
		k, err := input.ParseKey(name)
		if err != nil {
			return nil, fmt.Errorf("hotkey %q: %w", combo, err)
		}
		groups = append(groups, group{keys: []input.Key{k}})
	}
	return groups, nil
}

// Register parses combo and calls callback each time it completes.
func (m *Manager) Register(combo string, callback func()) (event.Token, error) {
	groups, err := parse(combo)
	if err != nil {
		return event.Token{}, err
	}

	hk := &registeredHotkey{groups: groups, original: combo}
	tok := hk.callbacks.Add(func(string) { callback() })

	check := func() { m.check(hk) }
	for _, g := range groups {
		for _, k := range g.keys {
			hk.keyTokens = append(hk.keyTokens, m.keys.AddOnPressed(k, func(input.Key) { check() }))
		}
		for _, b := range g.buttons {
			if m.buttons == nil {
				m.unhook(hk)
				return event.Token{}, fmt.Errorf("hotkey %q uses mouse buttons but no button channel is attached", combo)
			}
			hk.btnTokens = append(hk.btnTokens, m.buttons.AddOnPressed(b, func(input.Button) { check() }))
		}
	}
	m.hotkeys[tok] = hk
	return tok, nil
}

// Unregister removes a hotkey. It reports whether tok was registered.
func (m *Manager) Unregister(tok event.Token) bool {
	hk, ok := m.hotkeys[tok]
	if !ok {
		return false
	}
	delete(m.hotkeys, tok)
	m.unhook(hk)
	return true
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	for tok, hk := range m.hotkeys {
		m.unhook(hk)
		delete(m.hotkeys, tok)
	}
}

// Len returns the number of registered hotkeys.
func (m *Manager) Len() int {
	return len(m.hotkeys)
}

func (m *Manager) unhook(hk *registeredHotkey) {
	for _, t := range hk.keyTokens {
		m.keys.RemoveOnPressed(t)
	}
	for _, t := range hk.btnTokens {
		m.buttons.RemoveOnPressed(t)
	}
}

func (m *Manager) check(hk *registeredHotkey) {
	for _, g := range hk.groups {
		if !m.satisfied(g) {
			return
		}
	}
	m.logger.Printf("Hotkey triggered: %s", hk.original)
	hk.callbacks.Dispatch(hk.original, func(err error) {
		m.logger.Printf("Hotkey: %s: %v", hk.original, err)
	})
}

func (m *Manager) satisfied(g group) bool {
	for _, k := range g.keys {
		if m.keys.IsDown(k) {
			return true
		}
	}
	for _, b := range g.buttons {
		if m.buttons.IsDown(b) {
			return true
		}
	}
	return false
}
