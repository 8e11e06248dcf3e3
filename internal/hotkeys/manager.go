package hotkeys

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ManagerOptions configures NewManager. Zero-value fields take defaults:
// the native sink, the host keyboard settings, the process-wide id
// allocator, time.Now, and a debounce interval computed from the keyboard
// settings.
type ManagerOptions struct {
	// OpenSink acquires the native endpoint. nil means OpenNativeSink.
	OpenSink SinkOpener

	// Settings is read once, at construction. nil means SystemKeyboardSettings().
	Settings KeyboardSettings

	// IDs allocates registration ids. nil means SharedIDs(), which keeps ids
	// unique across every Manager in the process.
	IDs *IDAllocator

	// Now is the clock used for debounce decisions. nil means time.Now.
	Now func() time.Time

	// Debounce overrides the computed interval when positive.
	Debounce time.Duration
}

func (opts ManagerOptions) applyDefaults() ManagerOptions {
	if opts.OpenSink == nil {
		opts.OpenSink = OpenNativeSink
	}
	if opts.Settings == nil {
		opts.Settings = SystemKeyboardSettings()
	}
	if opts.IDs == nil {
		opts.IDs = SharedIDs()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

type subscriber struct {
	seq uint64
	fn  ActivationFunc
}

// Manager registers hotkeys with the OS and dispatches their activations,
// dropping notifications that arrive inside the debounce interval unless
// the registration allows repeats.
//
// Lock ordering: mu and subsMu are never held together, and neither is held
// while calling the sink or a listener.
type Manager struct {
	token    uuid.UUID
	sink     Sink
	ids      *IDAllocator
	now      func() time.Time
	debounce time.Duration

	mu     sync.RWMutex
	table  map[uint16]*Registration
	closed bool

	subsMu  sync.Mutex
	subs    []subscriber // copy-on-write; dispatch reads a snapshot
	subsSeq uint64
}

// NewManager reads the keyboard timing, derives the debounce interval, and
// opens the sink.
func NewManager(opts ManagerOptions) (*Manager, error) {
	opts = opts.applyDefaults()

	debounce := opts.Debounce
	if debounce <= 0 {
		timing := ReadKeyboardTiming(opts.Settings)
		debounce = DebounceInterval(timing)
		slog.Debug("[DEBUG-HOTKEY] debounce interval computed",
			"repeatSpeed", timing.Speed,
			"repeatDelay", timing.Delay,
			"repeatInterval", timing.RepeatInterval(),
			"repeatDelayDuration", timing.RepeatDelay(),
			"debounce", debounce,
		)
	}

	m := &Manager{
		token:    uuid.New(),
		ids:      opts.IDs,
		now:      opts.Now,
		debounce: debounce,
		table:    map[uint16]*Registration{},
	}
	sink, err := opts.OpenSink(m.handleNotification)
	if err != nil {
		return nil, fmt.Errorf("open hotkey sink: %w", err)
	}
	m.sink = sink
	return m, nil
}

// DebounceInterval returns the interval used to suppress auto-repeat.
func (m *Manager) DebounceInterval() time.Duration { return m.debounce }

// TryAdd registers hk with the OS. When allowRepeat is false the OS is asked
// not to auto-repeat and notifications inside the debounce interval are
// dropped.
//
// Errors: ErrHotkeyInUse when the OS refuses the combination (nothing is
// recorded and the allocated id is abandoned), ErrIDsExhausted when the
// allocator is used up, ErrInvalidKey for a hotkey without a primary key,
// ErrManagerClosed after Close.
func (m *Manager) TryAdd(hk Hotkey, allowRepeat bool, opts ...AddOption) (*Registration, error) {
	if hk.Key() == KeyNone {
		return nil, fmt.Errorf("%w: %s has no primary key", ErrInvalidKey, hk)
	}
	if m.isClosed() {
		return nil, ErrManagerClosed
	}

	id, err := m.ids.Next()
	if err != nil {
		slog.Error("[DEBUG-HOTKEY] hotkey id allocation failed", "hotkey", hk.String(), "error", err)
		return nil, err
	}

	reg := &Registration{
		owner:       m.token,
		id:          id,
		hotkey:      hk,
		allowRepeat: allowRepeat,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(reg)
		}
	}

	native := hk.NativeModifiers()
	if !allowRepeat {
		native |= nativeModNoRepeat
	}
	if err := m.sink.Register(id, native, uint32(hk.Key().Code())); err != nil {
		slog.Debug("[DEBUG-HOTKEY] OS rejected hotkey registration",
			"hotkey", hk.String(), "id", id, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrHotkeyInUse, hk, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if err := m.sink.Unregister(id); err != nil {
			slog.Warn("[DEBUG-HOTKEY] unregister after concurrent close failed", "id", id, "error", err)
		}
		return nil, ErrManagerClosed
	}
	m.table[id] = reg
	m.mu.Unlock()

	slog.Debug("[DEBUG-HOTKEY] hotkey registered", "hotkey", hk.String(), "id", id, "allowRepeat", allowRepeat)
	return reg, nil
}

// Remove unregisters r. It returns false when r was already removed.
// A nil handle or one issued by another Manager yields ErrInvalidRegistration.
func (m *Manager) Remove(r *Registration) (bool, error) {
	if r == nil {
		return false, fmt.Errorf("%w: nil handle", ErrInvalidRegistration)
	}
	if r.owner != m.token {
		return false, fmt.Errorf("%w: %s belongs to another manager", ErrInvalidRegistration, r)
	}

	m.mu.Lock()
	_, present := m.table[r.id]
	delete(m.table, r.id)
	m.mu.Unlock()
	if !present {
		return false, nil
	}

	if err := m.sink.Unregister(r.id); err != nil {
		slog.Warn("[DEBUG-HOTKEY] OS unregister failed", "hotkey", r.String(), "error", err)
	}
	slog.Debug("[DEBUG-HOTKEY] hotkey removed", "hotkey", r.String())
	return true, nil
}

// Lookup returns the live registration for id.
func (m *Manager) Lookup(id uint16) (*Registration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.table[id]
	return r, ok
}

// Registrations returns the live registrations ordered by id.
func (m *Manager) Registrations() []*Registration {
	m.mu.RLock()
	out := make([]*Registration, 0, len(m.table))
	for _, r := range m.table {
		out = append(out, r)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Registration) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Subscribe adds a Manager-wide activation listener. Listeners run on the
// sink's dispatch goroutine, in subscription order, before the
// registration's own callback. The returned func removes the listener.
func (m *Manager) Subscribe(fn ActivationFunc) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	m.subsMu.Lock()
	m.subsSeq++
	seq := m.subsSeq
	next := make([]subscriber, len(m.subs), len(m.subs)+1)
	copy(next, m.subs)
	m.subs = append(next, subscriber{seq: seq, fn: fn})
	m.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			m.subs = slices.DeleteFunc(slices.Clone(m.subs), func(s subscriber) bool { return s.seq == seq })
		})
	}
}

// Close unregisters every outstanding hotkey and releases the sink.
// Calling Close again is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	outstanding := make([]*Registration, 0, len(m.table))
	for _, r := range m.table {
		outstanding = append(outstanding, r)
	}
	m.table = map[uint16]*Registration{}
	m.mu.Unlock()

	var errs []error
	for _, r := range outstanding {
		if err := m.sink.Unregister(r.id); err != nil {
			errs = append(errs, fmt.Errorf("unregister %s: %w", r, err))
		}
	}
	if err := m.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close hotkey sink: %w", err))
	}
	slog.Debug("[DEBUG-HOTKEY] manager closed", "released", len(outstanding))
	return errors.Join(errs...)
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// handleNotification is the sink callback. Unknown ids are expected when a
// notification races an unregistration and are dropped silently.
func (m *Manager) handleNotification(id uint16) {
	m.mu.RLock()
	reg, ok := m.table[id]
	m.mu.RUnlock()
	if !ok {
		slog.Debug("[DEBUG-HOTKEY] notification for unknown id ignored", "id", id)
		return
	}

	now := m.now()
	elapsed, seen := reg.observe(now)
	if !reg.allowRepeat && seen && elapsed <= m.debounce {
		slog.Debug("[DEBUG-HOTKEY] repeat suppressed",
			"hotkey", reg.String(), "elapsed", elapsed, "debounce", m.debounce)
		return
	}

	act := Activation{Registration: reg, Time: now.UTC()}
	m.subsMu.Lock()
	subs := m.subs
	m.subsMu.Unlock()
	for _, s := range subs {
		deliver("subscriber", s.fn, act)
	}
	if reg.callback != nil {
		deliver("callback", reg.callback, act)
	}
}

// deliver isolates one listener: a panic is logged and swallowed so the
// remaining listeners still run.
func deliver(kind string, fn ActivationFunc, act Activation) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("[DEBUG-PANIC] hotkey listener recovered from panic",
				"listener", kind,
				"hotkey", act.Registration.String(),
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(act)
}
