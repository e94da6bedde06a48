package sched

import "github.com/geomtech/alos/internal/arch/amd64"

// idleBody is the lowest-priority thread's body.
// It never blocks on a wait queue: Halt itself is the suspension point,
// and the timer tick is what gives every other thread a chance to
// preempt it.
func idleBody(any) {
	for {
		amd64.Halt()
	}
}

// reaperBody waits for Scheduler.Exit to post reaperWork, then frees the
// stack and record of every thread that has exited since the last pass
//.
func reaperBody(any) {
	for {
		S.reaperWork.Wait()
		S.reapOnce()
	}
}
