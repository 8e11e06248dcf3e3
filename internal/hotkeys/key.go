package hotkeys

import (
	"fmt"
	"strconv"
)

// Key is a Win32 virtual-key code in the low 16 bits, optionally combined
// with modifier flag bits in the high word (the layout of the WinForms Keys
// enumeration). Only the modifier parameter of NewHotkey may carry flags.
type Key uint32

const (
	// KeyCodeMask selects the virtual-key code.
	KeyCodeMask Key = 0x0000FFFF
	// KeyModifierMask selects the modifier flag bits.
	KeyModifierMask Key = 0xFFFF0000

	KeyShift   Key = 0x00010000
	KeyControl Key = 0x00020000
	KeyAlt     Key = 0x00040000
)

const (
	KeyNone Key = 0x00

	KeyBack   Key = 0x08
	KeyTab    Key = 0x09
	KeyReturn Key = 0x0D
	KeyPause  Key = 0x13
	KeyEscape Key = 0x1B
	KeySpace  Key = 0x20
	KeyPrior  Key = 0x21
	KeyNext   Key = 0x22
	KeyEnd    Key = 0x23
	KeyHome   Key = 0x24
	KeyLeft   Key = 0x25
	KeyUp     Key = 0x26
	KeyRight  Key = 0x27
	KeyDown   Key = 0x28
	KeyPrint  Key = 0x2C
	KeyInsert Key = 0x2D
	KeyDelete Key = 0x2E

	Key0 Key = 0x30
	Key1 Key = 0x31
	Key2 Key = 0x32
	Key3 Key = 0x33
	Key4 Key = 0x34
	Key5 Key = 0x35
	Key6 Key = 0x36
	Key7 Key = 0x37
	Key8 Key = 0x38
	Key9 Key = 0x39

	KeyA Key = 0x41
	KeyB Key = 0x42
	KeyC Key = 0x43
	KeyD Key = 0x44
	KeyE Key = 0x45
	KeyF Key = 0x46
	KeyG Key = 0x47
	KeyH Key = 0x48
	KeyI Key = 0x49
	KeyJ Key = 0x4A
	KeyK Key = 0x4B
	KeyL Key = 0x4C
	KeyM Key = 0x4D
	KeyN Key = 0x4E
	KeyO Key = 0x4F
	KeyP Key = 0x50
	KeyQ Key = 0x51
	KeyR Key = 0x52
	KeyS Key = 0x53
	KeyT Key = 0x54
	KeyU Key = 0x55
	KeyV Key = 0x56
	KeyW Key = 0x57
	KeyX Key = 0x58
	KeyY Key = 0x59
	KeyZ Key = 0x5A

	KeyF1  Key = 0x70
	KeyF2  Key = 0x71
	KeyF3  Key = 0x72
	KeyF4  Key = 0x73
	KeyF5  Key = 0x74
	KeyF6  Key = 0x75
	KeyF7  Key = 0x76
	KeyF8  Key = 0x77
	KeyF9  Key = 0x78
	KeyF10 Key = 0x79
	KeyF11 Key = 0x7A
	KeyF12 Key = 0x7B
	KeyF13 Key = 0x7C
	KeyF14 Key = 0x7D
	KeyF15 Key = 0x7E
	KeyF16 Key = 0x7F
	KeyF17 Key = 0x80
	KeyF18 Key = 0x81
	KeyF19 Key = 0x82
	KeyF20 Key = 0x83
	KeyF21 Key = 0x84
	KeyF22 Key = 0x85
	KeyF23 Key = 0x86
	KeyF24 Key = 0x87

	KeyOem3 Key = 0xC0 // backquote on US layouts
)

// Modifier key families. A hotkey's primary key may never be one of these.
const (
	KeyShiftKey   Key = 0x10
	KeyControlKey Key = 0x11
	KeyMenu       Key = 0x12 // Alt
	KeyLWin       Key = 0x5B
	KeyRWin       Key = 0x5C
	KeyLShift     Key = 0xA0
	KeyRShift     Key = 0xA1
	KeyLControl   Key = 0xA2
	KeyRControl   Key = 0xA3
	KeyLMenu      Key = 0xA4
	KeyRMenu      Key = 0xA5
)

// Code returns the virtual-key code without modifier flags.
func (k Key) Code() Key { return k & KeyCodeMask }

func (k Key) isControl() bool {
	if k&KeyControl != 0 {
		return true
	}
	switch k.Code() {
	case KeyControlKey, KeyLControl, KeyRControl:
		return true
	}
	return false
}

func (k Key) isShift() bool {
	if k&KeyShift != 0 {
		return true
	}
	switch k.Code() {
	case KeyShiftKey, KeyLShift, KeyRShift:
		return true
	}
	return false
}

func (k Key) isAlt() bool {
	if k&KeyAlt != 0 {
		return true
	}
	switch k.Code() {
	case KeyMenu, KeyLMenu, KeyRMenu:
		return true
	}
	return false
}

// String renders the key with the same names ParseHotkey accepts.
func (k Key) String() string {
	code := k.Code()
	if name, ok := keyNames[code]; ok {
		return name
	}
	switch {
	case code >= KeyA && code <= KeyZ, code >= Key0 && code <= Key9:
		return string(rune(code))
	case code >= KeyF1 && code <= KeyF24:
		return "F" + strconv.Itoa(int(code-KeyF1)+1)
	}
	return fmt.Sprintf("0x%04X", uint16(code))
}

var keyNames = map[Key]string{
	KeyBack:       "Backspace",
	KeyTab:        "Tab",
	KeyReturn:     "Enter",
	KeyPause:      "Pause",
	KeyEscape:     "Esc",
	KeySpace:      "Space",
	KeyPrior:      "PageUp",
	KeyNext:       "PageDown",
	KeyEnd:        "End",
	KeyHome:       "Home",
	KeyLeft:       "Left",
	KeyUp:         "Up",
	KeyRight:      "Right",
	KeyDown:       "Down",
	KeyPrint:      "PrintScreen",
	KeyInsert:     "Insert",
	KeyDelete:     "Delete",
	KeyOem3:       "`",
	KeyShiftKey:   "ShiftKey",
	KeyControlKey: "ControlKey",
	KeyMenu:       "Menu",
	KeyLWin:       "LWin",
	KeyRWin:       "RWin",
	KeyLShift:     "LShiftKey",
	KeyRShift:     "RShiftKey",
	KeyLControl:   "LControlKey",
	KeyRControl:   "RControlKey",
	KeyLMenu:      "LMenu",
	KeyRMenu:      "RMenu",
}
