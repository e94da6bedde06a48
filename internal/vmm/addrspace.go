package vmm

import (
	"errors"

	"github.com/geomtech/alos/internal/arch/amd64"
	"github.com/geomtech/alos/internal/console"
	"github.com/geomtech/alos/internal/pmm"
)

// AddressSpace is a 4-level page-table tree rooted at a physical frame,
// identified by that root. The kernel half (entries 256..511)
// is always pointer-equal, frame for frame, to the kernel address space's:
// Create and Clone only ever copy the 256 PTE values, never allocate new
// interior tables for that half.
type AddressSpace struct {
	Root pmm.Frame
}

// ErrOutOfMemory is returned wherever a page-table operation needed a
// fresh frame and the allocator had none.
var ErrOutOfMemory = errors.New("vmm: out of physical frames")

// Manager is the VMM singleton: it owns the frame allocator used to back
// new page tables, the kernel address space every user space's upper half
// is copied from, and the MMIO remap pool.
type Manager struct {
	alloc  *pmm.Allocator
	kernel *AddressSpace
	mmio   *mmioPool
	log    *console.Logger
}

// NewManager constructs a Manager. Call AdoptKernelSpace before doing
// anything else.
func NewManager(alloc *pmm.Allocator) *Manager {
	return &Manager{alloc: alloc, log: console.New("vmm")}
}

// AdoptKernelSpace records the bootloader's existing root page table as
// the kernel address space. No pages are eagerly unmapped.
func (m *Manager) AdoptKernelSpace(root pmm.Frame) *AddressSpace {
	m.kernel = &AddressSpace{Root: root}
	return m.kernel
}

// KernelSpace returns the adopted kernel address space.
func (m *Manager) KernelSpace() *AddressSpace { return m.kernel }

func (m *Manager) allocTableFrame() (pmm.Frame, error) {
	virt, ok := m.alloc.AllocOne()
	if !ok {
		return 0, ErrOutOfMemory
	}
	f, _ := m.frameOf(virt)
	t := Mem.Table(f)
	*t = PageTable{} // fresh interior tables start zeroed/not-present
	return f, nil
}

func (m *Manager) frameOf(virt uintptr) (pmm.Frame, bool) {
	if virt < m.alloc.HHDMOffset() {
		return 0, false
	}
	return pmm.Frame((uint64(virt) - uint64(m.alloc.HHDMOffset())) / 4096), true
}

// Create allocates a fresh root frame, copies the kernel-half entries
// verbatim from the kernel address space, and leaves the user half zero
//.
func (m *Manager) Create() (*AddressSpace, error) {
	root, err := m.allocTableFrame()
	if err != nil {
		return nil, err
	}
	dst := Mem.Table(root)
	src := Mem.Table(m.kernel.Root)
	for i := kernelStart; i < 512; i++ {
		dst.Entries[i] = src.Entries[i]
	}
	return &AddressSpace{Root: root}, nil
}

// Switch writes the address space's root into the MMU base register
// (CR3), making it the active mapping.
func (m *Manager) Switch(as *AddressSpace) {
	amd64.WriteCR3Fn(uintptr(as.Root.PhysAddr()))
}

// Destroy walks the user half of as, recursively freeing every interior
// table it allocated. Huge (2 MiB) leaves and leaves with no backing frame
// the VMM itself allocated (device mappings) are skipped: the VMM only
// frees interior tables it allocated.
func (m *Manager) Destroy(as *AddressSpace) {
	root := Mem.Table(as.Root)
	for i := 0; i < kernelStart; i++ {
		e := root.Entries[i]
		if !e.HasFlags(FlagPresent) {
			continue
		}
		m.destroyLevel(e.Frame(), 1)
		root.Entries[i] = 0
	}
	m.alloc.Free(uintptr(as.Root.PhysAddr()) + m.alloc.HHDMOffset())
}

// destroyLevel frees the interior table frame f. f is at depth level
// (1=PDPT, 2=PD, 3=PT); only at depth 1 and 2 do f's entries point at
// further interior tables, so only those levels recurse. Depth 3 (the PT)
// holds leaf page entries whose frames belong to whatever mapped them
// (which may not be the VMM at all, e.g. a device mapping) — those are
// never freed here, only the PT frame itself.
func (m *Manager) destroyLevel(f pmm.Frame, level int) {
	if level < pageLevels-1 {
		t := Mem.Table(f)
		for i := range t.Entries {
			e := t.Entries[i]
			if !e.HasFlags(FlagPresent) {
				continue
			}
			if level == pageLevels-2 && e.HasFlags(FlagHuge) {
				continue // PD huge leaf: nothing further to recurse into
			}
			m.destroyLevel(e.Frame(), level+1)
		}
	}
	m.alloc.Free(uintptr(f.PhysAddr()) + m.alloc.HHDMOffset())
}

// Clone creates a new address space and shallow-copies src's user-half
// entries into it: no copy-on-write or deep copy is performed, so the two
// address spaces alias the same physical frames until one of them is
// torn down or explicitly re-mapped. See DESIGN.md for the reasoning
// behind keeping the shallow behavior.
func (m *Manager) Clone(src *AddressSpace) (*AddressSpace, error) {
	dst, err := m.Create()
	if err != nil {
		return nil, err
	}
	srcRoot := Mem.Table(src.Root)
	dstRoot := Mem.Table(dst.Root)
	for i := 0; i < kernelStart; i++ {
		dstRoot.Entries[i] = srcRoot.Entries[i]
	}
	return dst, nil
}
