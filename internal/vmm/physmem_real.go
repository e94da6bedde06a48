//go:build amd64 && kernel

package vmm

import (
	"unsafe"

	"github.com/geomtech/alos/internal/pmm"
)

// hhdmPhysMem resolves a frame to the *PageTable living at its real,
// HHDM-mapped virtual address. This is the only unsafe pointer cast in
// the VMM: every other function in this package reaches a table only
// through Mem.Table, so swapping this one implementation out for
// fakePhysMem is enough to make the rest of the package hosted-testable.
type hhdmPhysMem struct {
	hhdmOffset uintptr
}

// NewHHDMPhysMem constructs the real resolver for a freestanding boot,
// given the bootloader's higher-half direct-map offset.
func NewHHDMPhysMem(hhdmOffset uintptr) PhysMem {
	return hhdmPhysMem{hhdmOffset: hhdmOffset}
}

func (m hhdmPhysMem) Table(f pmm.Frame) *PageTable {
	virt := uintptr(f.PhysAddr()) + m.hhdmOffset
	return (*PageTable)(unsafe.Pointer(virt))
}
