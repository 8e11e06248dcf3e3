//go:build darwin || linux

package hotkeys

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.design/x/hotkey"
)

func TestPortableSinkNotifiesSerially(t *testing.T) {
	const (
		forwarders = 4
		presses    = 10
	)

	var active, peak, delivered atomic.Int32
	s := newPortableSink(func(uint16) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		delivered.Add(1)
	})
	defer s.Close()

	stop := make(chan struct{})
	defer close(stop)
	keydowns := make([]chan hotkey.Event, forwarders)
	for i := range keydowns {
		keydowns[i] = make(chan hotkey.Event)
		s.wg.Go(func() { s.forward(uint16(i+1), keydowns[i], stop) })
	}

	var wg sync.WaitGroup
	for i := range keydowns {
		wg.Go(func() {
			for range presses {
				keydowns[i] <- hotkey.Event{}
			}
		})
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for delivered.Load() != forwarders*presses {
		if time.Now().After(deadline) {
			t.Fatalf("delivered %d notifications, want %d", delivered.Load(), forwarders*presses)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := peak.Load(); got != 1 {
		t.Fatalf("notify ran %d times concurrently, want 1", got)
	}
}

func TestPortableSinkForwarderStops(t *testing.T) {
	tests := []struct {
		name  string
		close func(s *portableSink, stop chan struct{}, keydown chan hotkey.Event)
	}{
		{name: "unregistered", close: func(_ *portableSink, stop chan struct{}, _ chan hotkey.Event) { close(stop) }},
		{name: "sink closed", close: func(s *portableSink, _ chan struct{}, _ chan hotkey.Event) { s.Close() }},
		{name: "keydown closed", close: func(_ *portableSink, _ chan struct{}, keydown chan hotkey.Event) { close(keydown) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newPortableSink(func(uint16) {})
			defer s.Close()
			stop := make(chan struct{})
			keydown := make(chan hotkey.Event)
			exited := make(chan struct{})
			go func() {
				s.forward(1, keydown, stop)
				close(exited)
			}()

			tt.close(s, stop, keydown)
			select {
			case <-exited:
			case <-time.After(2 * time.Second):
				t.Fatal("forwarder did not exit")
			}
		})
	}
}

func TestPortableSinkRegisterAfterClose(t *testing.T) {
	s := newPortableSink(func(uint16) {})
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := s.Register(1, nativeModControl, uint32(KeyA)); err != errSinkClosed {
		t.Fatalf("Register() error = %v, want %v", err, errSinkClosed)
	}
}

func TestPortableKeyDeleteIsForwardDelete(t *testing.T) {
	got, ok := portableKeys[KeyDelete]
	if !ok {
		t.Fatal("KeyDelete is not mapped")
	}
	want := hotkey.KeyDelete
	if runtime.GOOS == "darwin" {
		// kVK_ForwardDelete; 0x33 is Backspace.
		want = hotkey.Key(0x75)
	}
	if got != want {
		t.Fatalf("portableKeys[KeyDelete] = %#x, want %#x", got, want)
	}
}
