//go:build !windows

package hotkeys

type unknownKeyboardSettings struct{}

// SystemKeyboardSettings has no source for repeat settings off Windows;
// every query fails, so the maximum value of each setting is assumed
// (fastest repeat, longest delay).
func SystemKeyboardSettings() KeyboardSettings { return unknownKeyboardSettings{} }

func (unknownKeyboardSettings) Query(KeyboardSetting) (uint32, bool) { return 0, false }
