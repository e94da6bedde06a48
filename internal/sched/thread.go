// Package sched is the preemptive thread scheduler: a
// multi-band ready queue, a tick-ordered sleeping queue, thread lifecycle
// (create/yield/sleep/exit/join), and priority mutation. It implements
// syncx.Scheduler and registers itself with syncx.SetScheduler during
// Init, the seam that lets syncx's blocking primitives call back into the
// scheduler without an import cycle.
package sched

import "github.com/geomtech/alos/internal/syncx"

// Priority bands, highest first.
type Priority int

const (
	Realtime Priority = iota
	High
	Normal
	Low
	Background
	numBands
)

// State is a thread's lifecycle stage.
type State int

const (
	StateNew State = iota
	StateReady
	StateRunning
	StateSleeping
	StateBlocked
	StateExiting
	StateDead
)

// EntryFunc is a thread's top-level body.
type EntryFunc func(arg any)

// Thread is the scheduler's record for one kernel thread.
// Every field other than the lock-free saved context is read/written only
// while holding Scheduler.mu: there is exactly one scheduler-wide
// IRQ-safe spinlock guarding ready/sleeping queue membership and state
// transitions.
type Thread struct {
	ID   syncx.ThreadID
	Name string

	basePriority Priority
	effPriority  Priority
	state        State

	stack      []byte // the owned kernel stack; freed by the reaper
	savedSP    uintptr
	wakeTick   uint64
	wokenEarly bool // set by Wake when it pulls a sleeping thread off the sleep queue

	nextInQueue *Thread // intrusive link for whichever queue owns this thread
	onQueue     bool    // true while linked into any queue (ready/sleeping/wait)

	exitCode  int
	done      *syncx.Condvar // signaled on Exit; joiners wait on it
	doneMutex *syncx.Mutex

	entry EntryFunc
	arg   any

	// runCh is the hosted/test dispatch mechanism's parking channel (see
	// dispatch_fake.go): a real kernel build never sends on it, relying on
	// savedSP/amd64.SwitchContextFn instead, but the field costs nothing
	// to carry unconditionally and keeps Thread's shape build-tag free.
	runCh chan struct{}
}

// Priority returns the thread's current effective priority.
func (t *Thread) Priority() Priority {
	return t.effPriority
}

// State returns the thread's current lifecycle state.
func (t *Thread) State() State { return t.state }

// ExitCode is valid once State() == StateDead.
func (t *Thread) ExitCode() int { return t.exitCode }
