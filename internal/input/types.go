// Package input turns raw, asynchronously delivered key and button
// transitions into tick-quantized press/hold/release edges.
package input

import (
	"fmt"
	"strings"
)

// Transition is a raw edge reported by the signal source.
type Transition int

const (
	Pressed Transition = iota
	Released
)

func (t Transition) String() string {
	switch t {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// TransitionOf converts the source's boolean form.
func TransitionOf(pressed bool) Transition {
	if pressed {
		return Pressed
	}
	return Released
}

// Button identifies a pointer button.
type Button uint8

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
	ButtonBack
	ButtonForward

	buttonCount
)

var buttonNames = [...]string{"left", "right", "middle", "back", "forward"}

// Valid reports whether b is a recognized button.
func (b Button) Valid() bool {
	return b < buttonCount
}

func (b Button) String() string {
	if b.Valid() {
		return buttonNames[b]
	}
	return fmt.Sprintf("button(%d)", uint8(b))
}

// ParseButton accepts a button name or its number.
func ParseButton(s string) (Button, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range buttonNames {
		if s == name || s == fmt.Sprint(i) {
			return Button(i), nil
		}
	}
	return 0, fmt.Errorf("unknown button %q", s)
}
