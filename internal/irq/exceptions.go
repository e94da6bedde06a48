package irq

import (
	"github.com/geomtech/alos/internal/arch/amd64"
	"github.com/geomtech/alos/internal/console"
)

var log = console.New("irq")

// PageFaultHandler is called by vector 14's handler with the CPU error
// code; internal/vmm registers itself here via RegisterDefaultHandlers'
// caller rather than irq importing vmm directly, keeping the dependency
// edge pointing the same direction as the rest of the core (a lower layer
// never imports a higher one — see internal/syncx's Scheduler interface
// for the same discipline applied to internal/sched).
type PageFaultHandler func(errCode uint64)

// RegisterDefaultHandlers installs the two exception vectors with
// non-fatal behavior: page fault delegates to pageFault, debug
// handles single-step. Every other vector is left unregistered, which
// dispatchException already routes to defaultExceptionHandler — log and
// halt. Called once during boot after Install(), before interrupts are
// enabled.
func RegisterDefaultHandlers(pageFault PageFaultHandler) {
	RegisterException(VecPageFault, func(f *Frame) {
		pageFault(f.ErrorCode)
	})
	RegisterException(VecDebug, handleDebugException)
}

// debugStepFlag is DR6 bit 14 (BS), set when the CPU single-stepped
// because RFLAGS.TF was set.
const debugStepFlag = 1 << 14

// handleDebugException is vector 1's handler: if DR6 shows
// a single-step event, clear the trap flag so execution free-runs again,
// zero DR6, and return. Any other debug cause (data breakpoint, I/O
// breakpoint) is not emulated by this port and falls through to the
// default halt-and-log path.
func handleDebugException(f *Frame) {
	dr6 := amd64.ReadDR6Fn()
	if dr6&debugStepFlag == 0 {
		defaultExceptionHandler(f)
		return
	}
	f.ClearTrapFlag()
	amd64.WriteDR6Fn(0)
}

// defaultExceptionHandler is the catch-all: log the vector
// name, error code, faulting RIP and RSP, then halt. This is the only
// path besides explicit page-fault/debug handling that any exception
// vector reaches; it never returns.
func defaultExceptionHandler(f *Frame) {
	log.Panic("%s (vector %d) errcode=%#x rip=%#x rsp=%#x",
		vectorName(f.Vector), f.Vector, f.ErrorCode, f.RIP, f.RSP)
}
