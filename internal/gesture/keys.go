package gesture

import (
	"fmt"
	"strings"
)

// Flags is a modifier bitmask using the macOS CGEventFlags bit layout.
type Flags uint64

const (
	FlagShift   Flags = 0x00020000
	FlagControl Flags = 0x00040000
	FlagOption  Flags = 0x00080000
	FlagCommand Flags = 0x00100000
)

// KeyEscape is the virtual key code of the Escape key.
const KeyEscape uint16 = 53

// digitKeyCodes maps ANSI virtual key codes for the top-row digits.
// Characters are unreliable here because a held Option rewrites them.
var digitKeyCodes = map[uint16]int{
	18: 1, 19: 2, 20: 3, 21: 4, 23: 5, 22: 6, 26: 7, 28: 8, 25: 9,
}

// ParseModifier converts a config name to its flag.
func ParseModifier(name string) (Flags, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "option", "alt", "opt":
		return FlagOption, nil
	case "command", "cmd":
		return FlagCommand, nil
	case "control", "ctrl":
		return FlagControl, nil
	case "shift":
		return FlagShift, nil
	}
	return 0, fmt.Errorf("unknown modifier %q", name)
}

func (f Flags) String() string {
	var parts []string
	for _, m := range []struct {
		flag Flags
		name string
	}{
		{FlagControl, "control"},
		{FlagOption, "option"},
		{FlagShift, "shift"},
		{FlagCommand, "command"},
	} {
		if f&m.flag != 0 {
			parts = append(parts, m.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// digitFor returns 1-9 for a digit key, or 0.
func digitFor(code uint16, chars string) int {
	if n, ok := digitKeyCodes[code]; ok {
		return n
	}
	if len(chars) == 1 && chars[0] >= '1' && chars[0] <= '9' {
		return int(chars[0] - '0')
	}
	return 0
}
