package irq

import (
	"sync/atomic"

	"github.com/geomtech/alos/internal/syncx"
)

// ExceptionHandler services one CPU exception vector. It may mutate frame
// in place (e.g. to clear the trap flag) and return to let execution
// resume, or it may never return (the default handler logs and halts).
type ExceptionHandler func(frame *Frame)

// IRQHandler services one legacy PIC line (0..15, already translated from
// the raw vector by Dispatch).
type IRQHandler func(frame *Frame)

var (
	regMu      syncx.IRQSpinlock
	exceptions [32]ExceptionHandler
	irqs       [NumIRQs]IRQHandler

	// vectorCounts is the per-vector firing count, for the debug dump.
	// Plain atomics, not the registry spinlock: a counter bump must never
	// add contention to the hot dispatch path.
	vectorCounts [256]atomic.Uint64
)

// Stats returns the number of times vector has been dispatched since
// boot.
func Stats(vector uint64) uint64 {
	return vectorCounts[vector].Load()
}

// RegisterException installs the handler for a CPU exception vector
// (0..31). Call during boot, before interrupts are enabled.
func RegisterException(vector uint64, h ExceptionHandler) {
	st := regMu.Lock()
	exceptions[vector] = h
	regMu.Unlock(st)
}

// RegisterIRQ installs the handler for one legacy PIC line (0..15). The
// timer (line 0) and, once drivers exist, keyboard/mouse/ATA/network
// lines are the expected callers.
func RegisterIRQ(irq uint8, h IRQHandler) {
	st := regMu.Lock()
	irqs[irq] = h
	regMu.Unlock(st)
}

// Dispatch is the single entry point every vector's assembly stub calls
// into. It routes by vector number, then — for IRQ
// vectors — sends the EOI before returning. Exceptions do not EOI; they
// are not PIC-sourced.
func Dispatch(frame *Frame) {
	v := frame.Vector
	vectorCounts[v].Add(1)
	switch {
	case v < 32:
		dispatchException(frame)
	case v >= IRQBase && v < IRQBase+NumIRQs:
		dispatchIRQ(frame, uint8(v-IRQBase))
	case v == VecSyscall:
		// No syscall ABI is defined yet. Acknowledge and return rather
		// than falling into the "unknown vector" halt path, since
		// DPL=3 callers expect a return, not a panic.
	default:
		// Spurious or reserved vector outside the ranges this port
		// assigns meaning to. Nothing in this design ever triggers one
		// under normal operation; ignore and return.
	}
}

func dispatchException(frame *Frame) {
	st := regMu.Lock()
	h := exceptions[frame.Vector]
	regMu.Unlock(st)
	if h == nil {
		defaultExceptionHandler(frame)
		return
	}
	h(frame)
}

func dispatchIRQ(frame *Frame, line uint8) {
	st := regMu.Lock()
	h := irqs[line]
	regMu.Unlock(st)
	if h != nil {
		h(frame)
	}
	// Unknown IRQs are silently acknowledged.
	sendEOI(line)
}
