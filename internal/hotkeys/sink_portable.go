//go:build darwin || linux

package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.design/x/hotkey"
)

// pendingNotifications bounds presses queued behind a slow listener.
const pendingNotifications = 64

// portableSink binds hotkeys through golang.design/x/hotkey. Key repeat
// suppression is left to the Manager's debounce since the backends have no
// no-repeat flag.
//
// The library exposes one keydown channel per hotkey. A forwarder per
// registration moves presses into pending, and a single dispatch goroutine
// calls notify, so listeners never run concurrently.
type portableSink struct {
	notify  NotifyFunc
	pending chan uint16
	done    chan struct{}

	mu      sync.Mutex
	entries map[uint16]*portableEntry
	closed  bool
	wg      sync.WaitGroup
}

type portableEntry struct {
	hk   *hotkey.Hotkey
	stop chan struct{}
}

// OpenNativeSink returns a sink backed by the desktop hotkey service
// (X11 on Linux, Carbon on macOS).
func OpenNativeSink(notify NotifyFunc) (Sink, error) {
	if notify == nil {
		return nil, errors.New("notify callback is required")
	}
	return newPortableSink(notify), nil
}

func newPortableSink(notify NotifyFunc) *portableSink {
	s := &portableSink{
		notify:  notify,
		pending: make(chan uint16, pendingNotifications),
		done:    make(chan struct{}),
		entries: make(map[uint16]*portableEntry),
	}
	s.wg.Go(s.dispatch)
	return s
}

func (s *portableSink) Register(id uint16, nativeModifiers uint32, key uint32) error {
	code, ok := portableKeys[Key(key)]
	if !ok {
		return fmt.Errorf("key %s is not supported on this platform", Key(key))
	}
	mods := portableModifiers(nativeModifiers)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	if _, exists := s.entries[id]; exists {
		return fmt.Errorf("hotkey id %d already bound", id)
	}

	hk := hotkey.New(mods, code)
	if err := hk.Register(); err != nil {
		return err
	}
	entry := &portableEntry{hk: hk, stop: make(chan struct{})}
	s.entries[id] = entry
	s.wg.Go(func() { s.forward(id, entry.hk.Keydown(), entry.stop) })
	return nil
}

// forward queues every press from keydown until stop or the sink closes.
func (s *portableSink) forward(id uint16, keydown <-chan hotkey.Event, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-s.done:
			return
		case _, ok := <-keydown:
			if !ok {
				return
			}
			select {
			case s.pending <- id:
			case <-stop:
				return
			case <-s.done:
				return
			}
		}
	}
}

// dispatch is the only caller of notify.
func (s *portableSink) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case id := <-s.pending:
			s.notify(id)
		}
	}
}

func (s *portableSink) Unregister(id uint16) error {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("hotkey id %d is not bound", id)
	}
	close(entry.stop)
	return entry.hk.Unregister()
}

func (s *portableSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	entries := s.entries
	s.entries = nil
	close(s.done)
	s.mu.Unlock()

	var errs []error
	for id, entry := range entries {
		close(entry.stop)
		if err := entry.hk.Unregister(); err != nil {
			slog.Debug("[DEBUG-HOTKEY] unregister during sink close failed", "id", id, "error", err)
			errs = append(errs, err)
		}
	}
	// Listeners may close the sink from the dispatch goroutine, so the
	// wait happens in the background.
	go s.wg.Wait()
	return errors.Join(errs...)
}

func portableModifiers(native uint32) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if native&nativeModControl != 0 {
		mods = append(mods, hotkey.ModCtrl)
	}
	if native&nativeModShift != 0 {
		mods = append(mods, hotkey.ModShift)
	}
	if native&nativeModAlt != 0 {
		mods = append(mods, altModifier)
	}
	return mods
}

var portableKeys = map[Key]hotkey.Key{
	KeyA: hotkey.KeyA, KeyB: hotkey.KeyB, KeyC: hotkey.KeyC, KeyD: hotkey.KeyD,
	KeyE: hotkey.KeyE, KeyF: hotkey.KeyF, KeyG: hotkey.KeyG, KeyH: hotkey.KeyH,
	KeyI: hotkey.KeyI, KeyJ: hotkey.KeyJ, KeyK: hotkey.KeyK, KeyL: hotkey.KeyL,
	KeyM: hotkey.KeyM, KeyN: hotkey.KeyN, KeyO: hotkey.KeyO, KeyP: hotkey.KeyP,
	KeyQ: hotkey.KeyQ, KeyR: hotkey.KeyR, KeyS: hotkey.KeyS, KeyT: hotkey.KeyT,
	KeyU: hotkey.KeyU, KeyV: hotkey.KeyV, KeyW: hotkey.KeyW, KeyX: hotkey.KeyX,
	KeyY: hotkey.KeyY, KeyZ: hotkey.KeyZ,

	Key0: hotkey.Key0, Key1: hotkey.Key1, Key2: hotkey.Key2, Key3: hotkey.Key3,
	Key4: hotkey.Key4, Key5: hotkey.Key5, Key6: hotkey.Key6, Key7: hotkey.Key7,
	Key8: hotkey.Key8, Key9: hotkey.Key9,

	KeyF1: hotkey.KeyF1, KeyF2: hotkey.KeyF2, KeyF3: hotkey.KeyF3, KeyF4: hotkey.KeyF4,
	KeyF5: hotkey.KeyF5, KeyF6: hotkey.KeyF6, KeyF7: hotkey.KeyF7, KeyF8: hotkey.KeyF8,
	KeyF9: hotkey.KeyF9, KeyF10: hotkey.KeyF10, KeyF11: hotkey.KeyF11, KeyF12: hotkey.KeyF12,

	KeySpace:  hotkey.KeySpace,
	KeyTab:    hotkey.KeyTab,
	KeyReturn: hotkey.KeyReturn,
	KeyEscape: hotkey.KeyEscape,
	KeyDelete: deleteKey,
	KeyLeft:   hotkey.KeyLeft,
	KeyRight:  hotkey.KeyRight,
	KeyUp:     hotkey.KeyUp,
	KeyDown:   hotkey.KeyDown,
}
