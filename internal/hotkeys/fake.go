package hotkeys

import (
	"fmt"
	"sync"
)

// FakeSink is an in-memory Sink for tests. Fire simulates the OS reporting
// a press; conflicts can be injected per key combination.
type FakeSink struct {
	mu         sync.Mutex
	notify     NotifyFunc
	registered map[uint16]FakeBinding
	conflicts  map[FakeBinding]struct{}
	unregs     []uint16
	closed     bool
}

// FakeBinding is what a FakeSink recorded for one id.
type FakeBinding struct {
	Modifiers uint32
	Key       uint32
}

// NewFakeSink returns an empty FakeSink. Use Opener to hand it to a Manager.
func NewFakeSink() *FakeSink {
	return &FakeSink{
		registered: map[uint16]FakeBinding{},
		conflicts:  map[FakeBinding]struct{}{},
	}
}

// Opener returns a SinkOpener that binds notify to this sink.
func (f *FakeSink) Opener() SinkOpener {
	return func(notify NotifyFunc) (Sink, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.notify = notify
		return f, nil
	}
}

// Claim makes later registrations of hk fail as if another process owned it.
// The no-repeat flag is ignored when matching.
func (f *FakeSink) Claim(hk Hotkey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicts[FakeBinding{Modifiers: hk.NativeModifiers(), Key: uint32(hk.Key())}] = struct{}{}
}

// Register implements Sink.
func (f *FakeSink) Register(id uint16, nativeModifiers uint32, key uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("fake sink closed")
	}
	binding := FakeBinding{Modifiers: nativeModifiers, Key: key}
	if _, taken := f.conflicts[FakeBinding{Modifiers: nativeModifiers &^ nativeModNoRepeat, Key: key}]; taken {
		return fmt.Errorf("fake sink: combination 0x%X/0x%X is claimed", nativeModifiers, key)
	}
	for _, existing := range f.registered {
		if existing.Key == key && existing.Modifiers&^nativeModNoRepeat == nativeModifiers&^nativeModNoRepeat {
			return fmt.Errorf("fake sink: combination 0x%X/0x%X already registered", nativeModifiers, key)
		}
	}
	f.registered[id] = binding
	return nil
}

// Unregister implements Sink.
func (f *FakeSink) Unregister(id uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregs = append(f.unregs, id)
	if _, ok := f.registered[id]; !ok {
		return fmt.Errorf("fake sink: id %d not registered", id)
	}
	delete(f.registered, id)
	return nil
}

// Close implements Sink.
func (f *FakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Fire delivers a press for id synchronously on the calling goroutine,
// whether or not id is registered.
func (f *FakeSink) Fire(id uint16) {
	f.mu.Lock()
	notify := f.notify
	f.mu.Unlock()
	if notify != nil {
		notify(id)
	}
}

// Binding returns what was registered for id.
func (f *FakeSink) Binding(id uint16) (FakeBinding, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.registered[id]
	return b, ok
}

// RegisteredCount returns the number of live registrations.
func (f *FakeSink) RegisteredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registered)
}

// Unregistered returns every id passed to Unregister, in call order.
func (f *FakeSink) Unregistered() []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint16(nil), f.unregs...)
}

// Closed reports whether Close was called.
func (f *FakeSink) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
