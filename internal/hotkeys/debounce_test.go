package hotkeys

import (
	"testing"
	"time"
)

func TestKeyboardTimingCurves(t *testing.T) {
	tests := []struct {
		name         string
		timing       KeyboardTiming
		wantInterval time.Duration
		wantDelay    time.Duration
		wantDebounce time.Duration
	}{
		{
			name:         "fastest repeat shortest delay",
			timing:       KeyboardTiming{Speed: 31, Delay: 0},
			wantInterval: 34 * time.Millisecond,
			wantDelay:    250 * time.Millisecond,
			wantDebounce: 350 * time.Millisecond,
		},
		{
			name:         "slowest repeat",
			timing:       KeyboardTiming{Speed: 0, Delay: 0},
			wantInterval: 400 * time.Millisecond,
			wantDelay:    250 * time.Millisecond,
			wantDebounce: 500 * time.Millisecond,
		},
		{
			name:         "longest delay",
			timing:       KeyboardTiming{Speed: 31, Delay: 3},
			wantInterval: 34 * time.Millisecond,
			wantDelay:    1000 * time.Millisecond,
			wantDebounce: 1100 * time.Millisecond,
		},
		{
			// 62000 / (55*15+155) = 63.26..., rounded up.
			name:         "mid speed",
			timing:       KeyboardTiming{Speed: 15, Delay: 1},
			wantInterval: 64 * time.Millisecond,
			wantDelay:    500 * time.Millisecond,
			wantDebounce: 600 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.timing.RepeatInterval(); got != tt.wantInterval {
				t.Errorf("RepeatInterval() = %v, want %v", got, tt.wantInterval)
			}
			if got := tt.timing.RepeatDelay(); got != tt.wantDelay {
				t.Errorf("RepeatDelay() = %v, want %v", got, tt.wantDelay)
			}
			if got := DebounceInterval(tt.timing); got != tt.wantDebounce {
				t.Errorf("DebounceInterval() = %v, want %v", got, tt.wantDebounce)
			}
		})
	}
}

func TestReadKeyboardTiming(t *testing.T) {
	tests := []struct {
		name string
		src  KeyboardSettings
		want KeyboardTiming
	}{
		{
			name: "both settings read",
			src: KeyboardSettingsFunc(func(s KeyboardSetting) (uint32, bool) {
				if s == RepeatSpeed {
					return 20, true
				}
				return 2, true
			}),
			want: KeyboardTiming{Speed: 20, Delay: 2},
		},
		{
			name: "failed queries fall back to maximum",
			src:  KeyboardSettingsFunc(func(KeyboardSetting) (uint32, bool) { return 7, false }),
			want: KeyboardTiming{Speed: 31, Delay: 3},
		},
		{
			name: "speed fails delay succeeds",
			src: KeyboardSettingsFunc(func(s KeyboardSetting) (uint32, bool) {
				return 0, s == RepeatDelay
			}),
			want: KeyboardTiming{Speed: 31, Delay: 0},
		},
		{
			name: "out of range values are clamped",
			src:  KeyboardSettingsFunc(func(KeyboardSetting) (uint32, bool) { return 500, true }),
			want: KeyboardTiming{Speed: 31, Delay: 3},
		},
		{
			name: "nil source",
			src:  nil,
			want: KeyboardTiming{Speed: 31, Delay: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReadKeyboardTiming(tt.src); got != tt.want {
				t.Errorf("ReadKeyboardTiming() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
