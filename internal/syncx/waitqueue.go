package syncx

// WaitQueue is a FIFO of blocked threads guarded by its own IRQ-safe
// spinlock. Every blocking primitive below
// (mutex, semaphore, condvar, rwlock) embeds one. A thread is a member of
// at most one WaitQueue at a time; the scheduler is the single source of
// truth for that invariant, this type only holds the FIFO order.
type WaitQueue struct {
	mu    IRQSpinlock
	order []ThreadID
}

// PushTailBlocking enqueues id at the back of the queue and marks it
// blocked in the scheduler as one critical section (interrupts stay
// disabled across both), so a timer tick landing right after can never see
// id sitting on this queue while the scheduler still thinks it is running
// — which would make Tick re-enqueue it onto the ready queue too, and the
// eventual Wake from this queue a silent no-op. Every blocking primitive's
// "about to wait" path uses this.
func (q *WaitQueue) PushTailBlocking(id ThreadID) {
	st := q.mu.Lock()
	q.order = append(q.order, id)
	sched.MarkBlocked()
	q.mu.Unlock(st)
}

// PopHead removes and returns the front of the queue. ok is false if the
// queue was empty.
func (q *WaitQueue) PopHead() (id ThreadID, ok bool) {
	st := q.mu.Lock()
	defer q.mu.Unlock(st)
	if len(q.order) == 0 {
		return NoThread, false
	}
	id = q.order[0]
	q.order = q.order[1:]
	return id, true
}

// Remove deletes id from the queue if present, for timed-wait
// cancellation. Returns whether id
// was found.
func (q *WaitQueue) Remove(id ThreadID) bool {
	st := q.mu.Lock()
	defer q.mu.Unlock(st)
	for i, v := range q.order {
		if v == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports the current queue depth, used by the semaphore/mutex
// invariants (count > 0 ⇒ waiters empty).
func (q *WaitQueue) Len() int {
	st := q.mu.Lock()
	defer q.mu.Unlock(st)
	return len(q.order)
}

// PeekMaxEffectivePriority returns the highest effective priority among
// current waiters. Returns (0, false) if the queue is empty. The mutex's
// priority-inheritance step does not call it.
func (q *WaitQueue) PeekMaxEffectivePriority() (int, bool) {
	st := q.mu.Lock()
	ids := append([]ThreadID(nil), q.order...)
	q.mu.Unlock(st)
	if len(ids) == 0 {
		return 0, false
	}
	max := sched.EffectivePriority(ids[0])
	for _, id := range ids[1:] {
		if p := sched.EffectivePriority(id); p > max {
			max = p
		}
	}
	return max, true
}
