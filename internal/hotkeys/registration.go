package hotkeys

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActivationFunc is called when a registered hotkey is accepted.
type ActivationFunc func(Activation)

// Activation describes one accepted hotkey press.
type Activation struct {
	Registration *Registration
	// Time is the UTC time the notification was received.
	Time time.Time
}

// Registration is the handle returned by Manager.TryAdd. It is only valid
// with the Manager that issued it.
type Registration struct {
	owner       uuid.UUID
	id          uint16
	hotkey      Hotkey
	allowRepeat bool
	payload     any
	callback    ActivationFunc

	mu sync.Mutex
	// last is the receive time of the previous notification, accepted or
	// not. The zero value means "never".
	last time.Time
}

// ID returns the OS registration id.
func (r *Registration) ID() uint16 { return r.id }

// Hotkey returns the registered combination.
func (r *Registration) Hotkey() Hotkey { return r.hotkey }

// AllowRepeat reports whether auto-repeat notifications are delivered.
func (r *Registration) AllowRepeat() bool { return r.allowRepeat }

// Payload returns the value passed with WithPayload, or nil.
func (r *Registration) Payload() any { return r.payload }

// LastActivation returns the UTC receive time of the most recent
// notification for this hotkey, including ones suppressed as auto-repeat.
// It is the zero time until the first notification.
func (r *Registration) LastActivation() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last.IsZero() {
		return time.Time{}
	}
	return r.last.UTC()
}

func (r *Registration) String() string {
	return fmt.Sprintf("hotkey#%d[%s]", r.id, r.hotkey)
}

// observe records a notification received at now and reports the time
// elapsed since the previous one. The first notification reports seen=false.
func (r *Registration) observe(now time.Time) (elapsed time.Duration, seen bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.last
	r.last = now
	if prev.IsZero() {
		return 0, false
	}
	return now.Sub(prev), true
}

// AddOption customizes a registration created by Manager.TryAdd.
type AddOption func(*Registration)

// WithPayload attaches an arbitrary value, readable through Payload.
func WithPayload(payload any) AddOption {
	return func(r *Registration) { r.payload = payload }
}

// WithCallback sets a callback invoked for this hotkey only, after the
// Manager-wide subscribers.
func WithCallback(fn ActivationFunc) AddOption {
	return func(r *Registration) { r.callback = fn }
}
