package hotkeys

import (
	"fmt"
	"sync/atomic"
)

const (
	// MaxHotkeyID is the upper bound for application-defined hotkey ids (Win32).
	MaxHotkeyID uint16 = 0xBFFF

	firstHotkeyID uint16 = 1
)

// IDAllocator hands out hotkey ids from a fixed range using an atomic
// counter. Managers that share an allocator never see the same id. Ids are
// not recycled: once the range is used up every later Next call fails.
type IDAllocator struct {
	first uint16
	last  uint16
	// next holds the offset of the next id from first. It only grows, and
	// stops growing once it passes the range.
	next atomic.Uint32
}

var sharedIDs = NewIDAllocator()

// SharedIDs returns the process-wide allocator used by Managers that are not
// given one explicitly.
func SharedIDs() *IDAllocator { return sharedIDs }

// NewIDAllocator returns an allocator over 1..MaxHotkeyID.
func NewIDAllocator() *IDAllocator {
	return NewIDAllocatorRange(firstHotkeyID, MaxHotkeyID)
}

// NewIDAllocatorRange returns an allocator over first..last inclusive.
// last is clamped to MaxHotkeyID.
func NewIDAllocatorRange(first, last uint16) *IDAllocator {
	if last > MaxHotkeyID {
		last = MaxHotkeyID
	}
	return &IDAllocator{first: first, last: last}
}

// Next returns the next unused id or ErrIDsExhausted.
func (a *IDAllocator) Next() (uint16, error) {
	size := uint32(0)
	if a.last >= a.first {
		size = uint32(a.last-a.first) + 1
	}
	for {
		offset := a.next.Load()
		if offset >= size {
			return 0, fmt.Errorf("%w (range 0x%04X-0x%04X)", ErrIDsExhausted, a.first, a.last)
		}
		if a.next.CompareAndSwap(offset, offset+1) {
			return a.first + uint16(offset), nil
		}
	}
}

// Remaining reports how many ids can still be allocated.
func (a *IDAllocator) Remaining() int {
	size := 0
	if a.last >= a.first {
		size = int(a.last-a.first) + 1
	}
	return max(size-int(a.next.Load()), 0)
}
