package sched

import (
	"errors"

	"github.com/geomtech/alos/internal/console"
	"github.com/geomtech/alos/internal/syncx"
)

// ErrTimeout is returned by JoinTimeout when the deadline passes before the
// target thread exits.
var ErrTimeout = errors.New("sched: join timed out")

const defaultStackSize = 64 * 1024

// Scheduler is the single process-wide scheduler instance. Every field below is guarded by mu except the per-thread
// dispatch primitives (savedSP/runCh), which are only ever touched by the
// thread that currently owns the CPU.
type Scheduler struct {
	mu      syncx.IRQSpinlock
	threads map[syncx.ThreadID]*Thread
	nextID  syncx.ThreadID

	ready    [numBands]bandQueue
	sleeping sleepQueue

	current *Thread
	idle    *Thread
	reaper  *Thread

	exiting     []*Thread
	reaperWork  *syncx.Semaphore
	reaperMutex *syncx.Mutex // created by Init; no code path locks it

	tick           uint64
	hz             int
	preemptEnabled bool

	log *console.Logger
}

// S is the process-wide scheduler, valid once Init returns.
var S *Scheduler

// Init constructs the scheduler, creates the idle and reaper threads, and
// registers it with syncx so the blocking primitives can call back in.
// Preemption starts disabled; call EnablePreemption once boot has finished
// installing the timer.
func Init(hz int) *Scheduler {
	s := &Scheduler{
		threads:     map[syncx.ThreadID]*Thread{},
		reaperWork:  syncx.NewSemaphore(0, 0),
		reaperMutex: syncx.NewMutex(syncx.Normal),
		hz:          hz,
		log:         console.New("sched"),
	}
	syncx.SetScheduler(s)
	S = s

	boot := s.newThreadLocked("boot", nil, nil, Normal)
	boot.state = StateRunning
	s.current = boot
	bootAsCurrent(boot)

	s.idle, _ = s.Create("idle", idleBody, nil, defaultStackSize, Background)
	s.reaper, _ = s.Create("reaper", reaperBody, nil, defaultStackSize, Low)
	return s
}

// EnablePreemption flips the tick handler's "may preempt" flag. Called
// once boot has created the idle and reaper threads.
func (s *Scheduler) EnablePreemption() { s.preemptEnabled = true }

func (s *Scheduler) newThreadLocked(name string, entry EntryFunc, arg any, p Priority) *Thread {
	s.nextID++
	t := &Thread{
		ID:           s.nextID,
		Name:         name,
		basePriority: p,
		effPriority:  p,
		entry:        entry,
		arg:          arg,
		done:         &syncx.Condvar{},
		doneMutex:    syncx.NewMutex(syncx.Normal),
	}
	s.threads[t.ID] = t
	return t
}

// Create allocates a thread and enqueues it ready. The
// thread's first dispatch runs entry(arg).
func (s *Scheduler) Create(name string, entry EntryFunc, arg any, stackSize int, p Priority) (*Thread, error) {
	st := s.mu.Lock()
	t := s.newThreadLocked(name, entry, arg, p)
	t.stack = make([]byte, stackSize)
	startThread(t)
	t.state = StateReady
	s.ready[p].pushTail(t)
	s.mu.Unlock(st)
	return t, nil
}

func (s *Scheduler) pickNextLocked() *Thread {
	for b := Realtime; b < numBands; b++ {
		if t := s.ready[b].popHead(); t != nil {
			return t
		}
	}
	return nil
}

// Current implements syncx.Scheduler.
func (s *Scheduler) Current() syncx.ThreadID {
	st := s.mu.Lock()
	defer s.mu.Unlock(st)
	return s.current.ID
}

// MarkBlocked implements syncx.Scheduler: transitions the calling thread
// to blocked in place, without picking a replacement or switching. Called
// from inside the wait queue's own critical section (WaitQueue.PushTailBlocking),
// so the enqueue and the state transition land atomically — Tick can
// never see this thread sitting on a wait queue while still StateRunning.
func (s *Scheduler) MarkBlocked() {
	st := s.mu.Lock()
	s.current.state = StateBlocked
	s.mu.Unlock(st)
}

// BlockCurrent implements syncx.Scheduler: the caller has already enqueued
// itself on its own wait queue and transitioned to blocked via MarkBlocked,
// so this only needs to pick a replacement and switch.
func (s *Scheduler) BlockCurrent() {
	st := s.mu.Lock()
	cur := s.current
	cur.state = StateBlocked
	next := s.pickNextLocked()
	s.current = next
	next.state = StateRunning
	s.mu.Unlock(st)
	switchThread(cur, next)
}

// SleepCurrentUntilTick implements syncx.Scheduler.
func (s *Scheduler) SleepCurrentUntilTick(wakeTick uint64) bool {
	st := s.mu.Lock()
	cur := s.current
	cur.state = StateSleeping
	cur.wakeTick = wakeTick
	cur.wokenEarly = false
	s.sleeping.insert(cur)
	next := s.pickNextLocked()
	s.current = next
	next.state = StateRunning
	s.mu.Unlock(st)
	switchThread(cur, next)
	return cur.wokenEarly
}

// Wake implements syncx.Scheduler: moves a blocked or sleeping thread back
// to ready. A no-op against any other state.
func (s *Scheduler) Wake(id syncx.ThreadID) {
	st := s.mu.Lock()
	t, ok := s.threads[id]
	if !ok || (t.state != StateBlocked && t.state != StateSleeping) {
		s.mu.Unlock(st)
		return
	}
	if t.state == StateSleeping {
		s.sleeping.remove(t)
		t.wokenEarly = true
	}
	t.state = StateReady
	s.ready[t.effPriority].pushTail(t)
	s.mu.Unlock(st)
}

// rank converts a Priority band into the "bigger is more important"
// integer scale syncx.Scheduler's inheritance calls use; Realtime (band 0)
// is the highest band, so it gets the highest rank.
func rank(p Priority) int { return int(numBands) - int(p) }

func rankToBand(r int) Priority {
	b := int(numBands) - r
	if b < int(Realtime) {
		b = int(Realtime)
	}
	if b > int(Background) {
		b = int(Background)
	}
	return Priority(b)
}

// EffectivePriority implements syncx.Scheduler.
func (s *Scheduler) EffectivePriority(id syncx.ThreadID) int {
	st := s.mu.Lock()
	defer s.mu.Unlock(st)
	t, ok := s.threads[id]
	if !ok {
		return 0
	}
	return rank(t.effPriority)
}

// RaisePriority implements syncx.Scheduler's priority-inheritance boost.
// Only the immediate mutex owner is boosted.
func (s *Scheduler) RaisePriority(id syncx.ThreadID, to int) {
	st := s.mu.Lock()
	defer s.mu.Unlock(st)
	t, ok := s.threads[id]
	if !ok {
		return
	}
	newBand := rankToBand(to)
	if newBand < t.effPriority {
		t.effPriority = newBand
	}
}

// RestoreBasePriority implements syncx.Scheduler.
func (s *Scheduler) RestoreBasePriority(id syncx.ThreadID) {
	st := s.mu.Lock()
	defer s.mu.Unlock(st)
	t, ok := s.threads[id]
	if !ok {
		return
	}
	t.effPriority = t.basePriority
}

// Yield implements syncx.Scheduler and is also the public voluntary-yield
// operation. Unlike Tick's preemption search, Yield looks
// for another ready thread *before* re-enqueuing the caller, so a thread
// that is currently the sole member of the highest band still actually
// gives up the CPU — the point of a voluntary yield — rather than
// immediately re-selecting itself.
func (s *Scheduler) Yield() {
	st := s.mu.Lock()
	cur := s.current
	next := s.pickNextLocked()
	if next == nil {
		s.mu.Unlock(st)
		return
	}
	cur.state = StateReady
	s.ready[cur.effPriority].pushTail(cur)
	s.current = next
	next.state = StateRunning
	s.mu.Unlock(st)
	switchThread(cur, next)
}

// SleepMs parks the calling thread for approximately ms milliseconds,
// rounded up to the next tick.
func (s *Scheduler) SleepMs(ms uint64) {
	ticks := (ms*uint64(s.hz) + 999) / 1000
	s.SleepUntilTick(s.Ticks() + ticks)
}

// SleepUntilTick parks the calling thread until the scheduler's tick
// counter reaches t.
func (s *Scheduler) SleepUntilTick(t uint64) { s.SleepCurrentUntilTick(t) }

// Ticks reports the current tick count.
func (s *Scheduler) Ticks() uint64 {
	st := s.mu.Lock()
	defer s.mu.Unlock(st)
	return s.tick
}

// Exit terminates the calling thread: joiners are woken
// immediately (the exit code is already valid), and the thread is handed
// to the reaper to free its stack and record. Never returns.
func (s *Scheduler) Exit(code int) {
	st := s.mu.Lock()
	cur := s.current
	cur.exitCode = code
	cur.state = StateExiting
	s.exiting = append(s.exiting, cur)
	next := s.pickNextLocked()
	s.current = next
	next.state = StateRunning
	s.mu.Unlock(st)

	cur.done.Broadcast()
	s.reaperWork.Post()

	switchThread(cur, next) // never returns to cur
}

// Join blocks until the target thread has exited.
func (s *Scheduler) Join(id syncx.ThreadID) error {
	t, ok := s.lookup(id)
	if !ok {
		return errors.New("sched: no such thread")
	}
	t.doneMutex.Lock()
	for t.state != StateExiting && t.state != StateDead {
		t.done.Wait(t.doneMutex)
	}
	t.doneMutex.Unlock()
	return nil
}

// JoinTimeout is Join with a deadline; it returns ErrTimeout rather than
// killing the target.
func (s *Scheduler) JoinTimeout(id syncx.ThreadID, ms uint64) error {
	t, ok := s.lookup(id)
	if !ok {
		return errors.New("sched: no such thread")
	}
	deadline := s.Ticks() + (ms*uint64(s.hz)+999)/1000
	t.doneMutex.Lock()
	for t.state != StateExiting && t.state != StateDead {
		if !t.done.TimedWait(t.doneMutex, deadline) {
			t.doneMutex.Unlock()
			return ErrTimeout
		}
	}
	t.doneMutex.Unlock()
	return nil
}

// SetPriority changes a thread's base priority, moving it between ready
// bands if it is currently ready.
func (s *Scheduler) SetPriority(id syncx.ThreadID, p Priority) {
	st := s.mu.Lock()
	defer s.mu.Unlock(st)
	t, ok := s.threads[id]
	if !ok {
		return
	}
	if t.state == StateReady && t.onQueue {
		s.ready[t.effPriority].remove(t)
		s.ready[p].pushTail(t)
	}
	t.basePriority = p
	t.effPriority = p
}

// SetNice adjusts base priority by delta bands (positive = less
// important), clamped to the valid range.
func (s *Scheduler) SetNice(id syncx.ThreadID, delta int) {
	st := s.mu.Lock()
	t, ok := s.threads[id]
	if !ok {
		s.mu.Unlock(st)
		return
	}
	p := int(t.basePriority) + delta
	if p < int(Realtime) {
		p = int(Realtime)
	}
	if p > int(Background) {
		p = int(Background)
	}
	s.mu.Unlock(st)
	s.SetPriority(id, Priority(p))
}

func (s *Scheduler) lookup(id syncx.ThreadID) (*Thread, bool) {
	st := s.mu.Lock()
	defer s.mu.Unlock(st)
	t, ok := s.threads[id]
	return t, ok
}

// ThreadInfo is one thread's snapshotted state, for Dump.
type ThreadInfo struct {
	ID       syncx.ThreadID
	Name     string
	State    State
	Base     Priority
	Eff      Priority
	WakeTick uint64
}

// Dump returns every live thread's state, for a ps-style debug listing
//.
func (s *Scheduler) Dump() []ThreadInfo {
	st := s.mu.Lock()
	defer s.mu.Unlock(st)
	out := make([]ThreadInfo, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, ThreadInfo{
			ID:       t.ID,
			Name:     t.Name,
			State:    t.state,
			Base:     t.basePriority,
			Eff:      t.effPriority,
			WakeTick: t.wakeTick,
		})
	}
	return out
}

// Tick is called from the timer IRQ handler: wakes expired
// sleepers, then — only if preemption is enabled — preempts the running
// thread in favor of an equal-or-higher-priority ready thread.
func (s *Scheduler) Tick() {
	st := s.mu.Lock()
	s.tick++
	for _, t := range s.sleeping.popExpired(s.tick) {
		t.state = StateReady
		t.wokenEarly = false
		s.ready[t.effPriority].pushTail(t)
	}
	if !s.preemptEnabled {
		s.mu.Unlock(st)
		return
	}
	cur := s.current
	if cur.state != StateRunning {
		// cur already transitioned itself out of running (MarkBlocked
		// ran, or SleepCurrentUntilTick's insert did) but hasn't
		// reached its own BlockCurrent/switch yet. It is already
		// correctly queued wherever it belongs; leave it alone and let
		// it give up the CPU on its own once this tick returns.
		s.mu.Unlock(st)
		return
	}
	var next *Thread
	for b := Realtime; b <= cur.effPriority; b++ {
		if next = s.ready[b].popHead(); next != nil {
			break
		}
	}
	if next == nil {
		s.mu.Unlock(st)
		return
	}
	cur.state = StateReady
	s.ready[cur.effPriority].pushTail(cur)
	s.current = next
	next.state = StateRunning
	s.mu.Unlock(st)
	switchThread(cur, next)
}

// reapOnce runs on the reaper thread: it drains the exiting list and marks
// each thread dead, releasing its stack. Only the reaper ever transitions
// a thread to StateDead.
func (s *Scheduler) reapOnce() {
	st := s.mu.Lock()
	batch := s.exiting
	s.exiting = nil
	s.mu.Unlock(st)
	for _, t := range batch {
		t.stack = nil
		st := s.mu.Lock()
		t.state = StateDead
		delete(s.threads, t.ID)
		s.mu.Unlock(st)
	}
}
