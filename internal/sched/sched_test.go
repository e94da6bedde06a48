package sched

import "testing"

// TestSchedulerPreemptsBackAfterYield: thread B (high) and A (normal)
// both enter ready; the first schedule picks B; when B yields, A runs;
// when B becomes ready again (it re-enqueues itself as part of yielding)
// the next tick preempts A back to B.
func TestSchedulerPreemptsBackAfterYield(t *testing.T) {
	s := Init(1000)
	s.EnablePreemption()

	record := make(chan string, 8)

	_, err := s.Create("A", func(any) {
		record <- "A-start"
		s.Tick() // simulate the timer firing while A is current
		record <- "A-end"
	}, nil, 16*1024, Normal)
	if err != nil {
		t.Fatalf("Create A: %v", err)
	}

	_, err = s.Create("B", func(any) {
		record <- "B-start"
		s.Yield()
		record <- "B-end"
	}, nil, 16*1024, High)
	if err != nil {
		t.Fatalf("Create B: %v", err)
	}

	// Kick off the scheduler on a separate goroutine: the boot "thread"
	// parks inside Yield until something dispatches back to it, which
	// never happens in this scenario.
	go s.Yield()

	if got := <-record; got != "B-start" {
		t.Fatalf("first message = %q, want B-start (first schedule must pick the high-priority thread)", got)
	}
	if got := <-record; got != "A-start" {
		t.Fatalf("second message = %q, want A-start (B's yield should hand off to A)", got)
	}
	if got := <-record; got != "B-end" {
		t.Fatalf("third message = %q, want B-end (the tick should have preempted A back to B)", got)
	}
}

// TestSetPriorityMovesReadyBand checks SetPriority relocates a thread
// still sitting in a ready band.
func TestSetPriorityMovesReadyBand(t *testing.T) {
	s := Init(1000)
	th, _ := s.Create("x", func(any) {}, nil, 16*1024, Low)
	s.SetPriority(th.ID, Realtime)
	if th.Priority() != Realtime {
		t.Fatalf("Priority() = %v, want Realtime", th.Priority())
	}
	if s.ready[Realtime].head != th {
		t.Fatal("thread not moved onto the Realtime ready band")
	}
}

// TestJoinReturnsOnceTargetExits checks Join against a thread that has
// already exited by the time the joiner calls Join.
func TestJoinReturnsOnceTargetExits(t *testing.T) {
	s := Init(1000)
	done := make(chan error, 1)

	target, err := s.Create("target", func(any) {}, nil, 16*1024, Normal)
	if err != nil {
		t.Fatalf("Create target: %v", err)
	}
	if _, err := s.Create("joiner", func(any) {
		done <- s.Join(target.ID)
	}, nil, 16*1024, Normal); err != nil {
		t.Fatalf("Create joiner: %v", err)
	}

	go s.Yield()

	if err := <-done; err != nil {
		t.Fatalf("Join = %v, want nil", err)
	}
}
