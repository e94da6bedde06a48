package syncx

// Condvar is used only in conjunction with a Mutex. Signal
// against no waiters is a documented no-op — there is no queued memory of
// a missed signal, so callers must always re-check their predicate after
// waking, including on a spurious wakeup.
type Condvar struct {
	waiters WaitQueue
	signals uint64 // debugging counter only
}

// Wait atomically enqueues the calling thread and releases m, then blocks;
// on return it has re-acquired m. Spurious wakeups are possible; callers
// must loop on their predicate.
func (c *Condvar) Wait(m *Mutex) {
	self := sched.Current()
	c.waiters.PushTailBlocking(self)
	m.Unlock()
	sched.BlockCurrent()
	m.Lock()
}

// TimedWait is Wait with a tick deadline. On wake we must tell
// "signaled" from "timed out" by checking
// whether we are still enqueued, since a concurrent Signal/Broadcast and
// our own timeout can race to remove us. If Remove still finds us, we
// timed out: treat "already removed" as "signaled" and report true.
func (c *Condvar) TimedWait(m *Mutex, wakeTick uint64) (signaled bool) {
	self := sched.Current()
	c.waiters.PushTailBlocking(self)
	m.Unlock()

	woken := sched.SleepCurrentUntilTick(wakeTick)
	if !woken {
		// Our own timeout fired. If we can still remove ourselves, no
		// signal raced us: genuine timeout. If Remove fails, a
		// Signal/Broadcast already popped us — treat as signaled.
		signaled = !c.waiters.Remove(self)
	} else {
		signaled = true
	}

	m.Lock()
	return signaled
}

// Signal wakes one waiter, if any. A no-op against an empty queue.
func (c *Condvar) Signal() {
	if next, ok := c.waiters.PopHead(); ok {
		c.signals++
		sched.Wake(next)
	}
}

// Broadcast wakes every current waiter.
func (c *Condvar) Broadcast() {
	for {
		next, ok := c.waiters.PopHead()
		if !ok {
			return
		}
		c.signals++
		sched.Wake(next)
	}
}
