package vmm

import "github.com/geomtech/alos/internal/pmm"

// PhysMem resolves a physical frame (already owned by the PMM) to the
// PageTable stored in it. See the package doc comment for why this is an
// interface rather than every call site doing its own unsafe cast.
type PhysMem interface {
	Table(f pmm.Frame) *PageTable
}

// Mem is the active resolver, installed by SetPhysMem. Real boot code
// installs the HHDM-backed implementation (physmem_real.go); hosted tests
// install the arena-backed fake (physmem_fake.go) via NewFakePhysMem.
var Mem PhysMem = NewFakePhysMem()

// SetPhysMem overrides the active resolver. internal/core.Boot calls this
// once with the real implementation before touching any address space.
func SetPhysMem(m PhysMem) { Mem = m }
