package hotkeys

import "errors"

var errSinkClosed = errors.New("hotkey sink closed")

// NotifyFunc receives the id of a hotkey the OS reported as pressed.
type NotifyFunc func(id uint16)

// Sink owns the native endpoint hotkeys are registered against and turns
// the OS "hotkey pressed" message into NotifyFunc calls. A Sink knows
// nothing about debounce or registration state; it only moves ids.
//
// Implementations deliver notifications serially, from one goroutine.
type Sink interface {
	// Register binds id to the native modifier bitmask and virtual-key code.
	Register(id uint16, nativeModifiers uint32, key uint32) error
	// Unregister releases id.
	Unregister(id uint16) error
	// Close releases the native endpoint. Calling Close more than once is a no-op.
	Close() error
}

// SinkOpener acquires a Sink that reports presses to notify.
type SinkOpener func(notify NotifyFunc) (Sink, error)
