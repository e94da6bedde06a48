package syncx

import "errors"

// MutexKind selects how re-acquiring a mutex already held by the calling
// thread behaves.
type MutexKind int

const (
	// Normal deadlocks on self re-acquire, matching the source's
	// documented (if unfortunate) behavior.
	Normal MutexKind = iota
	// Recursive lets the owner re-acquire, tracked by a recursion count.
	Recursive
	// ErrorCheck returns ErrWouldDeadlock instead of blocking.
	ErrorCheck
)

// ErrWouldDeadlock is returned by an ErrorCheck mutex's Lock when the
// calling thread already owns it.
var ErrWouldDeadlock = errors.New("syncx: mutex: thread already holds this lock")

// Mutex tracks ownership, a recursion count, and priority inheritance
// bounded to the immediate owner — it does not chase inheritance across a
// chain of blocked-on-mutex threads.
type Mutex struct {
	spin      IRQSpinlock
	waiters   WaitQueue
	owner     ThreadID
	recursion int
	kind      MutexKind
	basePrio  int // owner's priority before inheritance raised it; valid iff recursion>0 and boosted
	boosted   bool
}

// NewMutex constructs an unlocked mutex of the given kind.
func NewMutex(kind MutexKind) *Mutex {
	return &Mutex{kind: kind}
}

// Lock acquires the mutex, blocking the calling thread if it is already
// held by another thread. For an ErrorCheck mutex held by the caller, it
// returns ErrWouldDeadlock instead of blocking.
func (m *Mutex) Lock() error {
	for {
		st := m.spin.Lock()
		if m.owner == NoThread {
			m.owner = sched.Current()
			m.recursion = 1
			m.spin.Unlock(st)
			return nil
		}
		self := sched.Current()
		if m.owner == self {
			switch m.kind {
			case Recursive:
				m.recursion++
				m.spin.Unlock(st)
				return nil
			case ErrorCheck:
				m.spin.Unlock(st)
				return ErrWouldDeadlock
			default: // Normal: documented deadlock
			}
		}

		// Priority inheritance: if we (about to block) outrank the
		// owner's current effective priority, raise the owner once and
		// remember its base so Release can restore it.
		selfPrio := sched.EffectivePriority(self)
		ownerPrio := sched.EffectivePriority(m.owner)
		if selfPrio > ownerPrio {
			if !m.boosted {
				m.basePrio = ownerPrio
				m.boosted = true
			}
			sched.RaisePriority(m.owner, selfPrio)
		}

		m.waiters.PushTailBlocking(self)
		m.spin.Unlock(st)
		sched.BlockCurrent()
		// Loop: re-check ownership on wake (spurious wakeups tolerated).
	}
}

// Unlock releases the mutex. Releasing a mutex the caller does not own,
// or over-releasing a recursive mutex, is a caller bug and is not
// defended against beyond the recursion-count decrement.
func (m *Mutex) Unlock() {
	st := m.spin.Lock()
	if m.kind == Recursive && m.recursion > 1 {
		m.recursion--
		m.spin.Unlock(st)
		return
	}

	wasBoosted := m.boosted
	basePrio := m.basePrio
	owner := m.owner

	m.owner = NoThread
	m.recursion = 0
	m.boosted = false

	next, ok := m.waiters.PopHead()
	m.spin.Unlock(st)

	if wasBoosted {
		sched.RaisePriority(owner, basePrio)
		sched.RestoreBasePriority(owner)
	}
	if ok {
		sched.Wake(next)
	}
}

// Owner reports the current owner, or NoThread if unlocked. Exposed for
// tests and for the mutex's own invariant checks (owner==nil ⇔ recursion==0).
func (m *Mutex) Owner() ThreadID {
	st := m.spin.Lock()
	defer m.spin.Unlock(st)
	return m.owner
}

// Recursion reports the current recursion depth.
func (m *Mutex) Recursion() int {
	st := m.spin.Lock()
	defer m.spin.Unlock(st)
	return m.recursion
}
