//go:build windows

package hotkeys

import (
	"testing"
	"unsafe"
)

// TestWinMsgSize verifies that the winMsg struct matches the Win32 MSG layout.
func TestWinMsgSize(t *testing.T) {
	// On amd64 (64-bit): 48 bytes. On 386 (32-bit): 28 bytes.
	ptrSize := unsafe.Sizeof(uintptr(0))
	var expectedSize uintptr
	switch ptrSize {
	case 8: // 64-bit
		expectedSize = 48
	case 4: // 32-bit
		expectedSize = 28
	default:
		t.Skipf("unknown pointer size %d", ptrSize)
	}
	if got := unsafe.Sizeof(winMsg{}); got != expectedSize {
		t.Fatalf("unsafe.Sizeof(winMsg{}) = %d, want %d (pointer size=%d)", got, expectedSize, ptrSize)
	}
}

func TestWndClassExSize(t *testing.T) {
	// WNDCLASSEXW: 80 bytes on 64-bit, 48 bytes on 32-bit.
	ptrSize := unsafe.Sizeof(uintptr(0))
	var expectedSize uintptr
	switch ptrSize {
	case 8:
		expectedSize = 80
	case 4:
		expectedSize = 48
	default:
		t.Skipf("unknown pointer size %d", ptrSize)
	}
	if got := unsafe.Sizeof(wndClassEx{}); got != expectedSize {
		t.Fatalf("unsafe.Sizeof(wndClassEx{}) = %d, want %d", got, expectedSize)
	}
}

func TestWindowSinkLifecycle(t *testing.T) {
	sink, err := OpenNativeSink(func(uint16) {})
	if err != nil {
		t.Skipf("native sink unavailable: %v", err)
	}

	const id = MaxHotkeyID
	hk := MustHotkey(KeyF24, KeyControl, KeyShift, KeyAlt)
	if err := sink.Register(id, hk.NativeModifiers()|nativeModNoRepeat, uint32(hk.Key())); err != nil {
		// Another process may own the combination on a developer machine.
		t.Logf("Register() error = %v", err)
	} else if err := sink.Unregister(id); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := sink.Register(id, 0, uint32(KeyF24)); err == nil {
		t.Fatal("Register() after Close succeeded")
	}
}

func TestSystemKeyboardSettingsInRange(t *testing.T) {
	timing := ReadKeyboardTiming(SystemKeyboardSettings())
	if timing.Speed > maxRepeatSpeed || timing.Delay > maxRepeatDelay {
		t.Fatalf("ReadKeyboardTiming() = %+v, out of range", timing)
	}
}
