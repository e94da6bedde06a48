// Package amd64 isolates every instruction the core must execute in ring 0
// that plain Go cannot express: port I/O, control-register access, gate
// table loads, and the interrupt-enable flag. Each leaf is a package-level
// function variable so the rest of the core can be unit-tested on a hosted
// GOOS without touching real hardware: host builds install the fake in
// fake.go's init, freestanding builds install the asm-backed leaf from
// real_amd64.go.
package amd64

// PortIO is the minimal port-mapped I/O surface the PIC, PIT, and RTC
// drivers need.
type PortIO interface {
	Out8(port uint16, v uint8)
	In8(port uint16) uint8
}

var (
	// Ports is swapped out in tests/hosted builds for a fake that records
	// the last byte written to each port and returns it on a read.
	Ports PortIO = nullPorts{}

	// ReadCR2Fn returns the faulting linear address latched by the last
	// page fault. Mocked by vmm's page-fault tests.
	ReadCR2Fn = func() uintptr { return 0 }

	// WriteCR3Fn/ReadCR3Fn load and read the active page-table root.
	WriteCR3Fn = func(phys uintptr) {}
	ReadCR3Fn  = func() uintptr { return 0 }

	// InvalidatePageFn flushes one TLB entry (invlpg).
	InvalidatePageFn = func(virt uintptr) {}

	// ReadDR6Fn/WriteDR6Fn access the debug-status register the debug
	// exception handler inspects for a single-step event.
	ReadDR6Fn  = func() uintptr { return 0 }
	WriteDR6Fn = func(v uintptr) {}

	// LoadIDTFn/LoadGDTFn/LoadTSSFn install the three CPU-visible tables
	// (IDT, GDT, TSS) the interrupt/privilege machinery depends on.
	LoadIDTFn = func(base uintptr, limit uint16) {}
	LoadGDTFn = func(base uintptr, limit uint16) {}
	LoadTSSFn = func(selector uint16) {}

	// DisableInterruptsFn (cli) returns whether interrupts were enabled
	// beforehand, so the caller can restore the prior state rather than
	// unconditionally re-enabling (§4.F's IRQ-safe spinlock contract).
	DisableInterruptsFn = func() bool { return false }
	RestoreInterruptsFn = func(wasEnabled bool) {}
	EnableInterruptsFn  = func() {}

	// PauseFn issues the `pause` spin-loop hint.
	PauseFn = func() {}

	// HaltFn parks the CPU (hlt) until the next interrupt; used by the
	// idle thread.
	HaltFn = func() {}

	// WriteMSRFn/ReadMSRFn program EFER/STAR/LSTAR/SFMASK for syscall
	// entry.
	WriteMSRFn = func(reg uint32, v uint64) {}
	ReadMSRFn  = func(reg uint32) uint64 { return 0 }

	// SwitchContextFn performs the scheduler's cooperative context switch:
	// push the callee-saved registers, stash the resulting stack pointer
	// into *save, load next as the stack pointer, then pop and return into
	// whatever thread last parked there. internal/sched
	// is the only caller.
	SwitchContextFn = func(save *uintptr, next uintptr) {}
)

type nullPorts struct{}

func (nullPorts) Out8(uint16, uint8) {}
func (nullPorts) In8(uint16) uint8   { return 0 }

// DisableInterrupts disables maskable interrupts and reports whether they
// were enabled beforehand. Pair every call with RestoreInterrupts.
func DisableInterrupts() bool { return DisableInterruptsFn() }

// RestoreInterrupts re-enables interrupts only if they were enabled at the
// matching DisableInterrupts call.
func RestoreInterrupts(wasEnabled bool) { RestoreInterruptsFn(wasEnabled) }

// Pause issues the spin-loop hint used by Spinlock while contended.
func Pause() { PauseFn() }

// Halt parks the CPU until the next interrupt.
func Halt() { HaltFn() }
