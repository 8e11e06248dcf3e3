//go:build windows

package hotkeys

import (
	"log/slog"
	"unsafe"
)

var procSystemParametersInfoW = user32DLL.NewProc("SystemParametersInfoW")

const (
	spiGetKeyboardSpeed = 0x000A
	spiGetKeyboardDelay = 0x0016
)

type systemKeyboardSettings struct{}

// SystemKeyboardSettings reads the repeat settings with SystemParametersInfoW.
func SystemKeyboardSettings() KeyboardSettings { return systemKeyboardSettings{} }

func (systemKeyboardSettings) Query(setting KeyboardSetting) (uint32, bool) {
	var action uintptr
	switch setting {
	case RepeatSpeed:
		action = spiGetKeyboardSpeed
	case RepeatDelay:
		action = spiGetKeyboardDelay
	default:
		return 0, false
	}
	if err := user32DLL.Load(); err != nil {
		return 0, false
	}
	var value uint32
	res, _, err := procSystemParametersInfoW.Call(action, 0, uintptr(unsafe.Pointer(&value)), 0)
	if res == 0 {
		slog.Debug("[DEBUG-HOTKEY] SystemParametersInfoW failed", "setting", setting.String(), "error", err)
		return 0, false
	}
	return value, true
}
