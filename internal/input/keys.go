package input

import (
	"fmt"
	"strings"
)

// Key identifies a keyboard key independent of the platform's scan or
// virtual-key codes.
type Key uint16

const (
	KeyNone Key = iota
	KeyBackspace
	KeyTab
	KeyClear
	KeyReturn
	KeyPause
	KeyEscape
	KeySpace
	KeyPlus
	KeyComma
	KeyMinus
	KeyPeriod
	KeySlash
	KeySemicolon
	KeyQuote
	KeyBackQuote
	KeyBackslash
	KeyLeftBracket
	KeyRightBracket
	KeyAsterisk
	KeyHelp
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	KeyDelete
	KeyUp
	KeyDown
	KeyRight
	KeyLeft
	KeyInsert
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyF13
	KeyF14
	KeyF15
	KeyNumLock
	KeyCapsLock
	KeyScrollLock
	KeyLeftShift
	KeyRightShift
	KeyLeftControl
	KeyRightControl
	KeyLeftAlt
	KeyRightAlt
	KeyLeftWindows
	KeyRightWindows
	KeyPrint
	KeyBreak

	keyCount
)

var keyNames = func() [keyCount]string {
	var n [keyCount]string
	fixed := map[Key]string{
		KeyNone:         "None",
		KeyBackspace:    "Backspace",
		KeyTab:          "Tab",
		KeyClear:        "Clear",
		KeyReturn:       "Return",
		KeyPause:        "Pause",
		KeyEscape:       "Escape",
		KeySpace:        "Space",
		KeyPlus:         "Plus",
		KeyComma:        "Comma",
		KeyMinus:        "Minus",
		KeyPeriod:       "Period",
		KeySlash:        "Slash",
		KeySemicolon:    "Semicolon",
		KeyQuote:        "Quote",
		KeyBackQuote:    "BackQuote",
		KeyBackslash:    "Backslash",
		KeyLeftBracket:  "LeftBracket",
		KeyRightBracket: "RightBracket",
		KeyAsterisk:     "Asterisk",
		KeyHelp:         "Help",
		KeyDelete:       "Delete",
		KeyUp:           "Up",
		KeyDown:         "Down",
		KeyRight:        "Right",
		KeyLeft:         "Left",
		KeyInsert:       "Insert",
		KeyHome:         "Home",
		KeyEnd:          "End",
		KeyPageUp:       "PageUp",
		KeyPageDown:     "PageDown",
		KeyNumLock:      "NumLock",
		KeyCapsLock:     "CapsLock",
		KeyScrollLock:   "ScrollLock",
		KeyLeftShift:    "LeftShift",
		KeyRightShift:   "RightShift",
		KeyLeftControl:  "LeftControl",
		KeyRightControl: "RightControl",
		KeyLeftAlt:      "LeftAlt",
		KeyRightAlt:     "RightAlt",
		KeyLeftWindows:  "LeftWindows",
		KeyRightWindows: "RightWindows",
		KeyPrint:        "Print",
		KeyBreak:        "Break",
	}
	for k, name := range fixed {
		n[k] = name
	}
	for k := Key0; k <= Key9; k++ {
		n[k] = string(rune('0' + (k - Key0)))
	}
	for k := KeyA; k <= KeyZ; k++ {
		n[k] = string(rune('A' + (k - KeyA)))
	}
	for k := KeyF1; k <= KeyF15; k++ {
		n[k] = fmt.Sprintf("F%d", k-KeyF1+1)
	}
	return n
}()

var keyByName = func() map[string]Key {
	m := make(map[string]Key, keyCount)
	for k := KeyNone + 1; k < keyCount; k++ {
		m[strings.ToUpper(keyNames[k])] = k
	}
	aliases := map[string]Key{
		"ESC":         KeyEscape,
		"ENTER":       KeyReturn,
		"DEL":         KeyDelete,
		"INS":         KeyInsert,
		"PGUP":        KeyPageUp,
		"PGDN":        KeyPageDown,
		"LSHIFT":      KeyLeftShift,
		"RSHIFT":      KeyRightShift,
		"LCTRL":       KeyLeftControl,
		"RCTRL":       KeyRightControl,
		"LALT":        KeyLeftAlt,
		"RALT":        KeyRightAlt,
		"LWIN":        KeyLeftWindows,
		"RWIN":        KeyRightWindows,
		"PRINTSCREEN": KeyPrint,
	}
	for alias, k := range aliases {
		m[alias] = k
	}
	return m
}()

// Valid reports whether k is a recognized key.
func (k Key) Valid() bool {
	return k > KeyNone && k < keyCount
}

func (k Key) String() string {
	if k < keyCount {
		return keyNames[k]
	}
	return fmt.Sprintf("Key(%d)", uint16(k))
}

// ParseKey resolves a case-insensitive key name such as "A", "F5", "Esc" or
// "LeftControl".
func ParseKey(name string) (Key, error) {
	if k, ok := keyByName[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	return KeyNone, fmt.Errorf("unknown key %q", name)
}
