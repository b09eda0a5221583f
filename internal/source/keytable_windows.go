//go:build windows

package source

import "deskhook/internal/input"

var vkTable = map[uint32]input.Key{
	0x03: input.KeyBreak,
	0x08: input.KeyBackspace,
	0x09: input.KeyTab,
	0x0C: input.KeyClear,
	0x0D: input.KeyReturn,
	0x13: input.KeyPause,
	0x14: input.KeyCapsLock,
	0x1B: input.KeyEscape,
	0x20: input.KeySpace,
	0x21: input.KeyPageUp,
	0x22: input.KeyPageDown,
	0x23: input.KeyEnd,
	0x24: input.KeyHome,
	0x25: input.KeyLeft,
	0x26: input.KeyUp,
	0x27: input.KeyRight,
	0x28: input.KeyDown,
	0x2A: input.KeyPrint,
	0x2C: input.KeyPrint,
	0x2D: input.KeyInsert,
	0x2E: input.KeyDelete,
	0x2F: input.KeyHelp,
	0x5B: input.KeyLeftWindows,
	0x5C: input.KeyRightWindows,
	0x6A: input.KeyAsterisk,
	0x6B: input.KeyPlus,
	0x6D: input.KeyMinus,
	0x90: input.KeyNumLock,
	0x91: input.KeyScrollLock,
	0xA0: input.KeyLeftShift,
	0xA1: input.KeyRightShift,
	0xA2: input.KeyLeftControl,
	0xA3: input.KeyRightControl,
	0xA4: input.KeyLeftAlt,
	0xA5: input.KeyRightAlt,
	0xBA: input.KeySemicolon,
	0xBB: input.KeyPlus,
	0xBC: input.KeyComma,
	0xBD: input.KeyMinus,
	0xBE: input.KeyPeriod,
	0xBF: input.KeySlash,
	0xC0: input.KeyBackQuote,
	0xDB: input.KeyLeftBracket,
	0xDC: input.KeyBackslash,
	0xDD: input.KeyRightBracket,
	0xDE: input.KeyQuote,
}

// keyFromVK maps a Windows virtual-key code.
func keyFromVK(vk uint32) (input.Key, bool) {
	switch {
	case vk >= '0' && vk <= '9':
		return input.Key0 + input.Key(vk-'0'), true
	case vk >= 'A' && vk <= 'Z':
		return input.KeyA + input.Key(vk-'A'), true
	case vk >= 0x70 && vk <= 0x7E: // F1..F15
		return input.KeyF1 + input.Key(vk-0x70), true
	}
	k, ok := vkTable[vk]
	return k, ok
}
