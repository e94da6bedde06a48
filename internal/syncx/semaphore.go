package syncx

// Semaphore is a classic counting semaphore. max==0
// means unlimited Post calls; a positive max makes Post fail once count
// would exceed it.
type Semaphore struct {
	spin    IRQSpinlock
	waiters WaitQueue
	count   int
	max     int
}

// NewSemaphore constructs a semaphore with the given initial count and
// max (0 = unlimited).
func NewSemaphore(initial, max int) *Semaphore {
	return &Semaphore{count: initial, max: max}
}

// Wait (P) blocks until count > 0, then decrements it.
func (s *Semaphore) Wait() {
	for {
		st := s.spin.Lock()
		if s.count > 0 {
			s.count--
			s.spin.Unlock(st)
			return
		}
		self := sched.Current()
		s.waiters.PushTailBlocking(self)
		s.spin.Unlock(st)
		sched.BlockCurrent()
	}
}

// TimedWait is Wait with a tick deadline; ok is false on timeout, in which
// case count is left untouched and the thread is removed from the wait
// queue.
func (s *Semaphore) TimedWait(wakeTick uint64) (ok bool) {
	for {
		st := s.spin.Lock()
		if s.count > 0 {
			s.count--
			s.spin.Unlock(st)
			return true
		}
		self := sched.Current()
		s.waiters.PushTailBlocking(self)
		s.spin.Unlock(st)

		woken := sched.SleepCurrentUntilTick(wakeTick)
		if !woken {
			s.waiters.Remove(self)
			return false
		}
		// Woken: loop to re-check count, in case of a spurious wake.
	}
}

// Post (V) increments count, or fails if that would exceed a finite max,
// then wakes one waiter if any.
func (s *Semaphore) Post() (ok bool) {
	st := s.spin.Lock()
	if s.max > 0 && s.count+1 > s.max {
		s.spin.Unlock(st)
		return false
	}
	s.count++
	next, hasWaiter := s.waiters.PopHead()
	s.spin.Unlock(st)
	if hasWaiter {
		sched.Wake(next)
	}
	return true
}

// Count reports the current value, for tests asserting the invariant
// count>=0 and count>0 ⇒ waiters empty.
func (s *Semaphore) Count() int {
	st := s.spin.Lock()
	defer s.spin.Unlock(st)
	return s.count
}

// Waiters reports the number of blocked threads.
func (s *Semaphore) Waiters() int { return s.waiters.Len() }
