package hotkeys

import "errors"

var (
	// ErrInvalidKey reports a primary key that carries a modifier, or a
	// hotkey that cannot be registered (no primary key).
	ErrInvalidKey = errors.New("invalid hotkey key")

	// ErrInvalidRegistration reports a nil registration handle or one issued
	// by a different Manager.
	ErrInvalidRegistration = errors.New("invalid hotkey registration")

	// ErrHotkeyInUse reports that the OS refused the registration, usually
	// because another process already owns the combination.
	ErrHotkeyInUse = errors.New("hotkey already registered")

	// ErrIDsExhausted reports that the registration id range is used up.
	// Ids are never reused, so this is permanent for the allocator.
	ErrIDsExhausted = errors.New("hotkey id range exhausted")

	// ErrManagerClosed is returned by operations on a closed Manager.
	ErrManagerClosed = errors.New("hotkey manager closed")

	// ErrUnsupportedPlatform is returned by OpenNativeSink where no native
	// hotkey backend exists.
	ErrUnsupportedPlatform = errors.New("global hotkeys are not supported on this platform")
)
