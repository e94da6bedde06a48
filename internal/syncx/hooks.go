// Package syncx implements the kernel's synchronization primitives:
// spinlocks, mutex with priority inheritance, counting semaphore, condvar,
// writer-preferring rwlock, FIFO wait queues, and a worker pool. It is named syncx, not sync, only to avoid shadowing the stdlib
// package at the call site — nothing here wraps the stdlib.
//
// Blocking primitives never touch internal/sched directly: that would make
// sched and syncx import each other. Instead they call back through the
// Scheduler interface, which internal/sched implements and registers with
// SetScheduler during its own Init — a package that needs a higher layer's
// behavior takes it as an injected function/interface rather than
// importing upward.
package syncx

// ThreadID is the scheduler's opaque handle for a thread, mirrored here so
// wait queues can name a waiter without depending on internal/sched's
// Thread type.
type ThreadID uint32

// NoThread is the zero ThreadID, used as "no owner" for a mutex.
const NoThread ThreadID = 0

// Scheduler is the subset of internal/sched's behavior the blocking
// primitives need: who is running, how to block/wake a thread, and how to
// read or temporarily raise its effective priority for inheritance.
type Scheduler interface {
	// Current returns the calling thread's ID.
	Current() ThreadID

	// MarkBlocked transitions the calling thread from running to
	// blocked without rescheduling. Callers must invoke this (via
	// WaitQueue.PushTailBlocking, which calls it for them) as part of
	// the same critical section that enqueues the thread on their own
	// wait queue, and only release that section's lock afterward — the
	// handshake that keeps Tick from ever observing a thread sitting on
	// a wait queue while the scheduler still thinks it is running.
	MarkBlocked()

	// BlockCurrent reschedules away from the calling thread, which must
	// already have been transitioned out of running (via MarkBlocked
	// or SleepCurrentUntilTick). It returns once some other thread has
	// woken it via Wake.
	BlockCurrent()

	// SleepCurrentUntilTick is BlockCurrent's timed cousin: the calling
	// thread also wakes on its own if wakeTick passes before Wake(id) is
	// called. Returns true if woken by Wake, false on timeout.
	SleepCurrentUntilTick(wakeTick uint64) bool

	// Wake moves a blocked or sleeping thread back to ready. Waking a
	// thread that is not blocked/sleeping is a no-op.
	Wake(id ThreadID)

	// EffectivePriority/RaisePriority/RestoreBasePriority implement
	// priority inheritance.
	EffectivePriority(id ThreadID) int
	RaisePriority(id ThreadID, to int)
	RestoreBasePriority(id ThreadID)

	// Yield reschedules without blocking (used by condvar broadcast's
	// caller, not by the primitives themselves, but exposed here so
	// work queues can yield after a failed non-blocking dequeue).
	Yield()
}

// sched is nil until internal/sched calls SetScheduler during its Init.
// Every exported primitive here is documented as unusable before that
// point: sync primitives exist before the scheduler only as zero-value
// structs that nothing has locked yet.
var sched Scheduler

// SetScheduler registers the scheduler implementation. Called exactly once
// from internal/sched.Init.
func SetScheduler(s Scheduler) { sched = s }
