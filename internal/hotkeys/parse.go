package hotkeys

import (
	"fmt"
	"strconv"
	"strings"
)

var modifierByName = map[string]Key{
	"CTRL":    KeyControl,
	"CONTROL": KeyControl,
	"SHIFT":   KeyShift,
	"ALT":     KeyAlt,
	"MENU":    KeyAlt,
	"OPTION":  KeyAlt,
}

// The OS reserves the Windows key for itself, so bindings may not use it.
var reservedModifierNames = map[string]struct{}{
	"WIN":   {},
	"SUPER": {},
	"CMD":   {},
	"META":  {},
}

var keyByName = map[string]Key{
	"SPACE":       KeySpace,
	"TAB":         KeyTab,
	"ENTER":       KeyReturn,
	"RETURN":      KeyReturn,
	"ESC":         KeyEscape,
	"ESCAPE":      KeyEscape,
	"BACKSPACE":   KeyBack,
	"DELETE":      KeyDelete,
	"DEL":         KeyDelete,
	"INSERT":      KeyInsert,
	"INS":         KeyInsert,
	"HOME":        KeyHome,
	"END":         KeyEnd,
	"PAGEUP":      KeyPrior,
	"PGUP":        KeyPrior,
	"PAGEDOWN":    KeyNext,
	"PGDN":        KeyNext,
	"LEFT":        KeyLeft,
	"RIGHT":       KeyRight,
	"UP":          KeyUp,
	"DOWN":        KeyDown,
	"PAUSE":       KeyPause,
	"PRINTSCREEN": KeyPrint,
	"BACKQUOTE":   KeyOem3,
	"GRAVE":       KeyOem3,
	"`":           KeyOem3,
}

// ParseHotkey parses a binding like "Ctrl+Shift+F12". Tokens are
// case-insensitive and may be padded with whitespace. The last token is the
// primary key; every preceding token must be a modifier. A binding with no
// modifiers ("F13") is accepted.
func ParseHotkey(spec string) (Hotkey, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return Hotkey{}, fmt.Errorf("hotkey spec is empty")
	}

	parts := strings.Split(raw, "+")
	modifierKeys := make([]Key, 0, len(parts)-1)
	for _, token := range parts[:len(parts)-1] {
		name := strings.ToUpper(strings.TrimSpace(token))
		if _, reserved := reservedModifierNames[name]; reserved {
			return Hotkey{}, fmt.Errorf("modifier %q is reserved by the OS in hotkey %q", strings.TrimSpace(token), raw)
		}
		mod, ok := modifierByName[name]
		if !ok {
			return Hotkey{}, fmt.Errorf("unknown modifier %q in hotkey %q", token, raw)
		}
		modifierKeys = append(modifierKeys, mod)
	}

	keyToken := strings.TrimSpace(parts[len(parts)-1])
	key, err := parseKey(keyToken)
	if err != nil {
		return Hotkey{}, fmt.Errorf("%w in hotkey %q", err, raw)
	}
	return NewHotkey(key, modifierKeys...)
}

// MustParseHotkey is like ParseHotkey but panics on error.
func MustParseHotkey(spec string) Hotkey {
	hk, err := ParseHotkey(spec)
	if err != nil {
		panic(err)
	}
	return hk
}

func parseKey(raw string) (Key, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	if token == "" {
		return KeyNone, fmt.Errorf("missing hotkey key token")
	}
	if _, isModifier := modifierByName[token]; isModifier {
		return KeyNone, fmt.Errorf("%w: modifier %q used as key", ErrInvalidKey, raw)
	}
	if key, ok := keyByName[token]; ok {
		return key, nil
	}

	if len(token) == 1 {
		ch := token[0]
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			return Key(ch), nil
		}
	}

	if strings.HasPrefix(token, "F") && len(token) <= 3 {
		if n, err := strconv.Atoi(token[1:]); err == nil && n >= 1 && n <= 24 {
			return KeyF1 + Key(n-1), nil
		}
	}

	if strings.HasPrefix(token, "0X") {
		value, err := strconv.ParseUint(token[2:], 16, 16)
		if err != nil {
			return KeyNone, fmt.Errorf("invalid hex key %q", raw)
		}
		if value == 0 {
			return KeyNone, fmt.Errorf("key code 0x0000 is not a valid virtual key")
		}
		return Key(value), nil
	}

	return KeyNone, fmt.Errorf("unknown key %q", raw)
}
