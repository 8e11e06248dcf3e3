//go:build windows

package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procRegisterClassExW = user32DLL.NewProc("RegisterClassExW")
	procCreateWindowExW  = user32DLL.NewProc("CreateWindowExW")
	procDestroyWindow    = user32DLL.NewProc("DestroyWindow")
	procDefWindowProcW   = user32DLL.NewProc("DefWindowProcW")
	procGetMessageW      = user32DLL.NewProc("GetMessageW")
	procTranslateMessage = user32DLL.NewProc("TranslateMessage")
	procDispatchMessageW = user32DLL.NewProc("DispatchMessageW")
	procPostMessageW     = user32DLL.NewProc("PostMessageW")
	procPostQuitMessage  = user32DLL.NewProc("PostQuitMessage")
	procRegisterHotKey   = user32DLL.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32DLL.NewProc("UnregisterHotKey")
)

const (
	wmDestroy = 0x0002
	wmClose   = 0x0010
	wmHotkey  = 0x0312
	wmApp     = 0x8000
	// wmInvoke asks the window thread to run queued sink calls.
	wmInvoke = wmApp + 1

	// hwndMessage is HWND_MESSAGE ((HWND)-3): the parent of message-only windows.
	hwndMessage = ^uintptr(2)

	sinkClassName    = "hotkeyhub.HotkeySink"
	sinkCloseTimeout = 2 * time.Second
)

// point mirrors the Win32 POINT struct.
type point struct {
	x int32
	y int32
}

// winMsg mirrors the Win32 MSG struct (tagMSG from winuser.h).
// Field order and types must not be changed -- the layout must match
// the Win32 binary layout on both 32-bit and 64-bit Windows.
type winMsg struct {
	hWnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       point
	lPrivate uint32
}

// wndClassEx mirrors WNDCLASSEXW.
type wndClassEx struct {
	size       uint32
	style      uint32
	wndProc    uintptr
	clsExtra   int32
	wndExtra   int32
	instance   windows.Handle
	icon       windows.Handle
	cursor     windows.Handle
	background windows.Handle
	menuName   *uint16
	className  *uint16
	iconSm     windows.Handle
}

var sinkClass struct {
	once     sync.Once
	name     *uint16
	instance windows.Handle
	err      error
}

// sinksByWindow routes window-procedure calls to their sink. The window
// procedure is shared by every sink window in the process.
var sinksByWindow sync.Map // uintptr -> *windowSink

type sinkCall struct {
	fn   func(hwnd uintptr) error
	done chan error
}

// windowSink owns a hidden message-only window on a goroutine locked to one
// OS thread. RegisterHotKey binds to the calling thread's window, so every
// registration is executed on that thread.
type windowSink struct {
	notify NotifyFunc

	hwnd     atomic.Uintptr // zero once Close has started
	threadID uint32         // set before OpenNativeSink returns
	done     chan struct{}  // closed when the message loop exits

	pendingMu sync.Mutex
	pending   []sinkCall

	closeOnce sync.Once
	closeErr  error
}

// OpenNativeSink creates the hidden window and starts its message loop.
func OpenNativeSink(notify NotifyFunc) (Sink, error) {
	if notify == nil {
		return nil, errors.New("notify callback is required")
	}
	// Pre-check DLL availability so that failures produce clean errors
	// instead of panics from LazyProc.Call.
	if err := user32DLL.Load(); err != nil {
		return nil, fmt.Errorf("user32.dll is unavailable: %w", err)
	}
	if err := registerSinkClass(); err != nil {
		return nil, err
	}

	s := &windowSink{
		notify: notify,
		done:   make(chan struct{}),
	}
	ready := make(chan error, 1)
	go s.run(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return s, nil
}

func registerSinkClass() error {
	sinkClass.once.Do(func() {
		var instance windows.Handle
		if err := windows.GetModuleHandleEx(0, nil, &instance); err != nil {
			sinkClass.err = fmt.Errorf("GetModuleHandleEx: %w", err)
			return
		}
		name, err := windows.UTF16PtrFromString(sinkClassName)
		if err != nil {
			sinkClass.err = err
			return
		}
		wc := wndClassEx{
			wndProc:   windows.NewCallback(sinkWndProc),
			instance:  instance,
			className: name,
		}
		wc.size = uint32(unsafe.Sizeof(wc))
		atom, _, callErr := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc)))
		if atom == 0 {
			sinkClass.err = win32Error("RegisterClassExW", callErr)
			return
		}
		sinkClass.name = name
		sinkClass.instance = instance
	})
	return sinkClass.err
}

func (s *windowSink) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.done)

	hwnd, _, callErr := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(sinkClass.name)),
		0,
		0,
		0, 0, 0, 0,
		hwndMessage,
		0,
		uintptr(sinkClass.instance),
		0,
	)
	if hwnd == 0 {
		ready <- win32Error("CreateWindowExW", callErr)
		return
	}
	s.threadID = windows.GetCurrentThreadId()
	s.hwnd.Store(hwnd)
	sinksByWindow.Store(hwnd, s)
	defer sinksByWindow.Delete(hwnd)
	ready <- nil

	for {
		var msg winMsg
		ret, _, lastErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			slog.Warn("[DEBUG-HOTKEY] GetMessageW returned error, exiting sink loop", "error", lastErr)
			if s.hwnd.Swap(0) != 0 {
				procDestroyWindow.Call(hwnd)
			}
			return
		case 0:
			slog.Debug("[DEBUG-HOTKEY] sink loop received WM_QUIT, exiting normally")
			return
		}
		// TranslateMessage and DispatchMessageW return values are informational
		// and are not error indicators here.
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}
}

func sinkWndProc(hwnd, msg, wParam, lParam uintptr) (result uintptr) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] hotkey sink window procedure recovered from panic",
				"message", msg, "panic", rec, "stack", string(debug.Stack()))
			result = 0
		}
	}()

	switch msg {
	case wmHotkey:
		if s, ok := lookupSink(hwnd); ok {
			s.notify(uint16(wParam))
		}
		return 0
	case wmInvoke:
		if s, ok := lookupSink(hwnd); ok {
			s.runPending(hwnd)
		}
		return 0
	case wmDestroy:
		procPostQuitMessage.Call(0)
		return 0
	}
	ret, _, _ := procDefWindowProcW.Call(hwnd, msg, wParam, lParam)
	return ret
}

func lookupSink(hwnd uintptr) (*windowSink, bool) {
	v, ok := sinksByWindow.Load(hwnd)
	if !ok {
		return nil, false
	}
	return v.(*windowSink), true
}

func (s *windowSink) runPending(hwnd uintptr) {
	s.pendingMu.Lock()
	calls := s.pending
	s.pending = nil
	s.pendingMu.Unlock()
	for _, call := range calls {
		call.done <- call.fn(hwnd)
	}
}

// invoke runs fn on the window thread and waits for its result. Calls made
// from the window thread itself (a listener removing its own hotkey) run
// inline.
func (s *windowSink) invoke(fn func(hwnd uintptr) error) error {
	hwnd := s.hwnd.Load()
	if hwnd == 0 {
		return errSinkClosed
	}
	if windows.GetCurrentThreadId() == s.threadID {
		return fn(hwnd)
	}

	call := sinkCall{fn: fn, done: make(chan error, 1)}
	s.pendingMu.Lock()
	s.pending = append(s.pending, call)
	s.pendingMu.Unlock()

	if err := postMessage(hwnd, wmInvoke); err != nil {
		return err
	}
	select {
	case err := <-call.done:
		return err
	case <-s.done:
		return errSinkClosed
	}
}

func (s *windowSink) Register(id uint16, nativeModifiers uint32, key uint32) error {
	return s.invoke(func(hwnd uintptr) error {
		res, _, err := procRegisterHotKey.Call(hwnd, uintptr(id), uintptr(nativeModifiers), uintptr(key))
		if res != 0 {
			return nil
		}
		return win32Error("RegisterHotKey", err)
	})
}

func (s *windowSink) Unregister(id uint16) error {
	return s.invoke(func(hwnd uintptr) error {
		res, _, err := procUnregisterHotKey.Call(hwnd, uintptr(id))
		if res != 0 {
			return nil
		}
		return win32Error("UnregisterHotKey", err)
	})
}

// Close destroys the window exactly once. Destroying the window also drops
// any hotkeys still bound to it.
func (s *windowSink) Close() error {
	s.closeOnce.Do(func() {
		hwnd := s.hwnd.Swap(0)
		if hwnd == 0 {
			return
		}
		if windows.GetCurrentThreadId() == s.threadID {
			// Closing from inside a listener: the loop exits once the
			// listener returns and WM_QUIT is read.
			if res, _, err := procDestroyWindow.Call(hwnd); res == 0 {
				s.closeErr = win32Error("DestroyWindow", err)
			}
			return
		}

		if err := postMessage(hwnd, wmClose); err != nil {
			s.closeErr = err
			return
		}
		timer := time.NewTimer(sinkCloseTimeout)
		defer timer.Stop()
		select {
		case <-s.done:
		case <-timer.C:
			s.closeErr = fmt.Errorf("hotkey sink message loop stop timed out")
			slog.Warn("[DEBUG-HOTKEY] sink message loop stop timed out, goroutine/thread may leak")
		}
	})
	return s.closeErr
}

func postMessage(hwnd uintptr, msg uint32) error {
	res, _, err := procPostMessageW.Call(hwnd, uintptr(msg), 0, 0)
	if res != 0 {
		return nil
	}
	return win32Error("PostMessageW", err)
}

func win32Error(op string, err error) error {
	if err == nil || err == syscall.Errno(0) {
		return fmt.Errorf("%s failed", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
