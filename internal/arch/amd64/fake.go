//go:build !kernel

package amd64

import "sync/atomic"

// Hosted fake of the leaf operations, installed whenever the `kernel` build
// tag is not set. This is what lets internal/pmm, internal/vmm, internal/irq
// and internal/timer run their tests (and cmd/ksim's demo) as an ordinary
// hosted Go program.
type fakeState struct {
	cr2, cr3     uintptr
	dr6          uintptr
	flagsEnabled atomic.Bool
	ports        [1 << 16]uint8
}

var fake = &fakeState{}

type fakePorts struct{ s *fakeState }

func (f fakePorts) Out8(port uint16, v uint8) { f.s.ports[port] = v }
func (f fakePorts) In8(port uint16) uint8     { return f.s.ports[port] }

// SetFakeCR2 lets vmm page-fault tests script the faulting address without
// a real fault.
func SetFakeCR2(addr uintptr) { fake.cr2 = addr }

// SetFakeDR6 lets irq's debug-exception tests script a single-step event.
func SetFakeDR6(v uintptr) { fake.dr6 = v }

// FakePortWrites exposes the recorded port writes for driver tests (PIC
// remap, PIT programming) to assert against.
func FakePortWrites() *[1 << 16]uint8 { return &fake.ports }

func init() {
	Ports = fakePorts{fake}
	ReadCR2Fn = func() uintptr { return fake.cr2 }
	ReadCR3Fn = func() uintptr { return fake.cr3 }
	WriteCR3Fn = func(phys uintptr) { fake.cr3 = phys }
	InvalidatePageFn = func(uintptr) {}
	ReadDR6Fn = func() uintptr { return fake.dr6 }
	WriteDR6Fn = func(v uintptr) { fake.dr6 = v }
	LoadIDTFn = func(uintptr, uint16) {}
	LoadGDTFn = func(uintptr, uint16) {}
	LoadTSSFn = func(uint16) {}
	fake.flagsEnabled.Store(true)
	DisableInterruptsFn = func() bool { return fake.flagsEnabled.Swap(false) }
	RestoreInterruptsFn = func(wasEnabled bool) {
		if wasEnabled {
			fake.flagsEnabled.Store(true)
		}
	}
	EnableInterruptsFn = func() { fake.flagsEnabled.Store(true) }
	PauseFn = func() {}
	HaltFn = func() {}
	WriteMSRFn = func(uint32, uint64) {}
	ReadMSRFn = func(uint32) uint64 { return 0 }
	// Hosted builds never take this path: internal/sched's dispatch_fake.go
	// parks threads on goroutine channels instead of real stack switches.
	SwitchContextFn = func(save *uintptr, next uintptr) {}
}
