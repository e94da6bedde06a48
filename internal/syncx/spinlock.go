package syncx

import (
	"sync/atomic"

	"github.com/geomtech/alos/internal/arch/amd64"
)

// Spinlock is a test-and-set lock for data only ever touched from thread
// context. It is a distinct type from IRQSpinlock on purpose: an
// interrupt handler must be unable to even name the ordinary form, so the
// compiler rejects a handler body that tries to lock one. Only
// internal/mmio's registry uses this variant today (probed from thread
// context during driver init).
type Spinlock struct {
	held atomic.Bool
}

// Lock spins (with a `pause` hint between attempts) until the lock is
// free, then takes it.
func (s *Spinlock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		amd64.Pause()
	}
}

// Unlock releases the lock. Unlocking an unheld lock is a caller bug and
// is not guarded against.
func (s *Spinlock) Unlock() {
	s.held.Store(false)
}

// TryLock attempts to take the lock without spinning, for callers that
// have a fallback. Nothing in this module calls it; the MMIO registry
// always uses Lock.
func (s *Spinlock) TryLock() bool {
	return s.held.CompareAndSwap(false, true)
}

// IRQSpinlock is the IRQ-safe variant required for anything
// also taken from an interrupt handler: the ready queue, every wait queue,
// the frame allocator's bitmap, the ARP cache/IPv4 filter, and the
// console. Lock disables interrupts first so the holder cannot be
// preempted by the very handler that might want the same lock (on this
// single-CPU design that would deadlock instantly).
type IRQSpinlock struct {
	held atomic.Bool
}

// IRQState is the saved interrupt-enable flag returned by Lock, to be
// passed back to Unlock. It is a distinct type rather than a bare bool so
// a caller cannot accidentally pass the wrong saved state to the wrong
// lock's Unlock without the compiler at least making the mismatch visible
// at the call site.
type IRQState bool

// Lock disables interrupts, then spins for the lock. The returned IRQState
// must be passed to the matching Unlock.
func (s *IRQSpinlock) Lock() IRQState {
	wasEnabled := amd64.DisableInterrupts()
	for !s.held.CompareAndSwap(false, true) {
		amd64.Pause()
	}
	return IRQState(wasEnabled)
}

// Unlock releases the lock and restores the interrupt-enable state Lock
// observed.
func (s *IRQSpinlock) Unlock(st IRQState) {
	s.held.Store(false)
	amd64.RestoreInterrupts(bool(st))
}
