package hotkeys

import (
	"fmt"
	"strings"
)

// Modifiers is the canonical modifier set of a Hotkey.
type Modifiers uint8

const (
	ModControl Modifiers = 1 << iota
	ModShift
	ModAlt
)

// Native RegisterHotKey modifier flags.
const (
	nativeModAlt      uint32 = 0x0001
	nativeModControl  uint32 = 0x0002
	nativeModShift    uint32 = 0x0004
	nativeModNoRepeat uint32 = 0x4000
)

// String renders the set as "Ctrl+Shift+Alt" (members in that order).
func (m Modifiers) String() string {
	parts := make([]string, 0, 3)
	if m&ModControl != 0 {
		parts = append(parts, "Ctrl")
	}
	if m&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	if m&ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	return strings.Join(parts, "+")
}

// Hotkey is an immutable key + modifier combination. Hotkey values are
// comparable and may be used as map keys.
type Hotkey struct {
	key  Key
	mods Modifiers
}

// NewHotkey builds a Hotkey from a primary key and any number of modifier
// keys. Each modifier key may be a flag (KeyControl), a generic key
// (KeyControlKey) or a side-specific key (KeyLControl); all collapse to the
// same canonical modifier. The primary key must not itself be a modifier.
func NewHotkey(key Key, modifierKeys ...Key) (Hotkey, error) {
	if key&KeyModifierMask != 0 || key.isControl() || key.isShift() || key.isAlt() {
		return Hotkey{}, fmt.Errorf("%w: %s is a modifier; pass it as a modifier key", ErrInvalidKey, describeKey(key))
	}

	var mods Modifiers
	for _, mk := range modifierKeys {
		if mk.isControl() {
			mods |= ModControl
		}
		if mk.isShift() {
			mods |= ModShift
		}
		if mk.isAlt() {
			mods |= ModAlt
		}
	}
	return Hotkey{key: key, mods: mods}, nil
}

// MustHotkey is like NewHotkey but panics on error. Intended for
// package-level hotkey literals.
func MustHotkey(key Key, modifierKeys ...Key) Hotkey {
	hk, err := NewHotkey(key, modifierKeys...)
	if err != nil {
		panic(err)
	}
	return hk
}

// Key returns the primary key.
func (h Hotkey) Key() Key { return h.key }

// Modifiers returns the canonical modifier set.
func (h Hotkey) Modifiers() Modifiers { return h.mods }

// IsZero reports whether neither a key nor a modifier is set.
func (h Hotkey) IsZero() bool { return h.key == KeyNone && h.mods == 0 }

// NativeModifiers projects the modifier set onto the RegisterHotKey flag
// bits. MOD_WIN is never produced.
func (h Hotkey) NativeModifiers() uint32 {
	var native uint32
	if h.mods&ModAlt != 0 {
		native |= nativeModAlt
	}
	if h.mods&ModControl != 0 {
		native |= nativeModControl
	}
	if h.mods&ModShift != 0 {
		native |= nativeModShift
	}
	return native
}

func (h Hotkey) String() string {
	switch {
	case h.key == KeyNone && h.mods == 0:
		return "None"
	case h.key == KeyNone:
		return h.mods.String()
	case h.mods == 0:
		return h.key.String()
	default:
		return h.mods.String() + " + " + h.key.String()
	}
}

func describeKey(k Key) string {
	if k&KeyModifierMask != 0 {
		return fmt.Sprintf("key 0x%08X", uint32(k))
	}
	return k.String()
}
