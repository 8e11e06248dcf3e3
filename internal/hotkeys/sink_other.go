//go:build !windows && !darwin && !linux

package hotkeys

import "fmt"

// OpenNativeSink reports that no hotkey backend exists on this platform.
// Use a FakeSink through ManagerOptions.OpenSink instead.
func OpenNativeSink(NotifyFunc) (Sink, error) {
	return nil, fmt.Errorf("%w: no native hotkey sink", ErrUnsupportedPlatform)
}
