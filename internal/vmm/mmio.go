package vmm

import (
	"github.com/geomtech/alos/internal/mmio"
)

// mmioPool hands out virtual addresses for device BARs from a dedicated
// slice of the kernel half, distinct from the append-only
// internal/mmio.Registry bookkeeping: the pool is
// "where do I put the next mapping", the registry is "what mappings
// exist". Ioremap always consults the registry first so re-mapping the
// same BAR twice returns the same virtual address instead of burning more
// of the pool.
type mmioPool struct {
	base   uintptr
	cursor uintptr
	limit  uintptr
	reg    *mmio.Registry
}

// NewMMIOPool carves out [base, base+size) of the kernel address space for
// device mappings and binds it to reg. Called once during boot with the
// region reserved for MMIO.
func (m *Manager) NewMMIOPool(base, size uintptr, reg *mmio.Registry) {
	m.mmio = &mmioPool{base: base, cursor: base, limit: base + size, reg: reg}
}

// Ioremap maps a device's physical BAR into the kernel address space and
// records it in the registry, returning the virtual address the driver
// should use. A second Ioremap of the same (phys, length) returns the
// existing mapping instead of consuming more pool space.
func (m *Manager) Ioremap(phys uint64, length uintptr, label string) (uintptr, error) {
	if e, ok := m.mmio.reg.FindByPhys(uintptr(phys)); ok && e.Len >= length {
		return e.Virt, nil
	}
	aligned := (length + 4095) &^ 4095
	if m.mmio.cursor+aligned > m.mmio.limit {
		return 0, ErrOutOfMemory
	}
	virt := m.mmio.cursor
	for off := uintptr(0); off < aligned; off += 4096 {
		err := m.MapPage(m.kernel, virt+off, phys+uint64(off),
			FlagPresent|FlagWritable|FlagNoCache)
		if err != nil {
			return 0, err
		}
	}
	m.mmio.cursor += aligned
	if err := m.mmio.reg.Register(uintptr(phys), virt, aligned, label); err != nil {
		return 0, err
	}
	return virt, nil
}

// Iounmap tears down a mapping previously installed by Ioremap: it unmaps
// every page in [virt, virt+length) and drops the registry entry. It does
// not return cursor space to the pool — the remap pool is a bump allocator
// with no freelist.
func (m *Manager) Iounmap(virt uintptr, length uintptr) error {
	aligned := (length + 4095) &^ 4095
	for off := uintptr(0); off < aligned; off += 4096 {
		m.UnmapPage(m.kernel, virt+off)
	}
	m.mmio.reg.Unregister(virt)
	return nil
}
