package hotkeys

import (
	"log/slog"
	"time"
)

// KeyboardSetting selects one of the OS keyboard repeat settings.
type KeyboardSetting int

const (
	// RepeatSpeed is the hardware repeat rate, 0 (about 2.5/s) to 31 (about 30/s).
	RepeatSpeed KeyboardSetting = iota
	// RepeatDelay is the delay before repeating starts, 0 (about 250ms) to 3 (about 1s).
	RepeatDelay
)

func (s KeyboardSetting) String() string {
	switch s {
	case RepeatSpeed:
		return "repeat-speed"
	case RepeatDelay:
		return "repeat-delay"
	default:
		return "unknown"
	}
}

const (
	maxRepeatSpeed uint32 = 31
	maxRepeatDelay uint32 = 3

	// debounceSlack absorbs dispatch lag between the OS repeat and our clock.
	debounceSlack = 100 * time.Millisecond
)

// KeyboardSettings reads the keyboard repeat settings from the host.
type KeyboardSettings interface {
	Query(setting KeyboardSetting) (value uint32, ok bool)
}

// KeyboardSettingsFunc adapts a function to KeyboardSettings.
type KeyboardSettingsFunc func(KeyboardSetting) (uint32, bool)

// Query calls f.
func (f KeyboardSettingsFunc) Query(s KeyboardSetting) (uint32, bool) { return f(s) }

// KeyboardTiming holds the raw repeat settings.
type KeyboardTiming struct {
	Speed uint32
	Delay uint32
}

// ReadKeyboardTiming queries src once per setting. A failed query falls back
// to the maximum value of that setting, which only ever lengthens the
// debounce interval. Out-of-range values are clamped.
func ReadKeyboardTiming(src KeyboardSettings) KeyboardTiming {
	read := func(setting KeyboardSetting, maxValue uint32) uint32 {
		if src == nil {
			return maxValue
		}
		v, ok := src.Query(setting)
		if !ok {
			slog.Debug("[DEBUG-HOTKEY] keyboard setting unavailable, assuming maximum",
				"setting", setting.String(), "fallback", maxValue)
			return maxValue
		}
		return min(v, maxValue)
	}
	return KeyboardTiming{
		Speed: read(RepeatSpeed, maxRepeatSpeed),
		Delay: read(RepeatDelay, maxRepeatDelay),
	}
}

// RepeatInterval approximates the time between auto-repeats:
// ceil(1000 / (27.5*speed/31 + 2.5)) ms. It is evaluated as
// ceil(62000 / (55*speed + 155)) to stay in integer arithmetic.
func (t KeyboardTiming) RepeatInterval() time.Duration {
	speed := min(t.Speed, maxRepeatSpeed)
	den := 55*speed + 155
	ms := (62000 + den - 1) / den
	return time.Duration(ms) * time.Millisecond
}

// RepeatDelay approximates the time before auto-repeat starts:
// 750*delay/3 + 250 ms.
func (t KeyboardTiming) RepeatDelay() time.Duration {
	delay := min(t.Delay, maxRepeatDelay)
	return time.Duration(250*delay+250) * time.Millisecond
}

// DebounceInterval returns the window inside which a repeated notification
// is treated as auto-repeat. No key-release event is available, so a held
// key and a quick second press look the same; the larger of the two
// hardware timings (plus slack) is used.
func DebounceInterval(t KeyboardTiming) time.Duration {
	return max(t.RepeatInterval()+debounceSlack, t.RepeatDelay()+debounceSlack)
}
