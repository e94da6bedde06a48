package vmm

import (
	"errors"

	"github.com/geomtech/alos/internal/arch/amd64"
	"github.com/geomtech/alos/internal/pmm"
)

// pmmFrameOf converts a raw physical address into the frame index PTE
// storage expects; callers passing an already frame-aligned device or RAM
// address (MapPage/MapHugePage's contract).
func pmmFrameOf(phys uint64) pmm.Frame { return pmm.Frame(phys / 4096) }

// ErrAlreadyMapped is returned by MapPage when virt already has a present
// leaf entry; callers that want replace-in-place semantics should Unmap
// first.
var ErrAlreadyMapped = errors.New("vmm: address already mapped")

// ErrNotMapped is returned by operations that require an existing mapping.
var ErrNotMapped = errors.New("vmm: address not mapped")

// walk descends as's tree along virt's indices, creating interior tables
// along the way when create is true. It returns the leaf table (the PT,
// level 3) and the index into it, or ok=false if create was false and an
// interior table was missing.
func (m *Manager) walk(as *AddressSpace, virt uintptr, create bool) (leaf *PageTable, idx int, ok bool) {
	idx4 := indices(virt)
	t := Mem.Table(as.Root)
	for level := 0; level < pageLevels-1; level++ {
		e := t.Entries[idx4[level]]
		if !e.HasFlags(FlagPresent) {
			if !create {
				return nil, 0, false
			}
			frame, err := m.allocTableFrame()
			if err != nil {
				return nil, 0, false
			}
			flags := FlagPresent | FlagWritable
			if idx4[0] < kernelStart {
				flags |= FlagUser
			}
			e = PTE(0).WithFrame(frame) | flags
			t.Entries[idx4[level]] = e
		}
		if e.HasFlags(FlagHuge) {
			// Caller asked to walk past a 2 MiB leaf: there is no finer
			// table underneath it.
			return nil, 0, false
		}
		t = Mem.Table(e.Frame())
	}
	return t, idx4[pageLevels-1], true
}

// MapPage installs a single 4 KiB mapping from virt to phys with flags,
// allocating any missing interior tables along the way. It
// fails with ErrAlreadyMapped if virt already has a present leaf, and
// ErrOutOfMemory if an interior table couldn't be allocated.
func (m *Manager) MapPage(as *AddressSpace, virt uintptr, phys uint64, flags PTE) error {
	leaf, idx, ok := m.walk(as, virt, true)
	if !ok {
		if m.IsMapped(as, virt) {
			return ErrAlreadyMapped // virt lies inside a 2 MiB leaf
		}
		return ErrOutOfMemory
	}
	if leaf.Entries[idx].HasFlags(FlagPresent) {
		return ErrAlreadyMapped
	}
	leaf.Entries[idx] = PTE(0).WithFrame(pmmFrameOf(phys)) | flags | FlagPresent
	amd64.InvalidatePageFn(virt)
	return nil
}

// MapHugePage installs a 2 MiB mapping at level 2 (the PD), for ranges a
// caller knows are naturally aligned (e.g. identity-mapping all of low
// physical memory at boot).
func (m *Manager) MapHugePage(as *AddressSpace, virt uintptr, phys uint64, flags PTE) error {
	idx4 := indices(virt)
	t := Mem.Table(as.Root)
	for level := 0; level < pageLevels-2; level++ {
		e := t.Entries[idx4[level]]
		if !e.HasFlags(FlagPresent) {
			frame, err := m.allocTableFrame()
			if err != nil {
				return ErrOutOfMemory
			}
			pFlags := FlagPresent | FlagWritable
			if idx4[0] < kernelStart {
				pFlags |= FlagUser
			}
			e = PTE(0).WithFrame(frame) | pFlags
			t.Entries[idx4[level]] = e
		}
		t = Mem.Table(e.Frame())
	}
	pdIdx := idx4[pageLevels-2]
	if t.Entries[pdIdx].HasFlags(FlagPresent) {
		return ErrAlreadyMapped
	}
	t.Entries[pdIdx] = PTE(0).WithFrame(pmmFrameOf(phys)) | flags | FlagPresent | FlagHuge
	amd64.InvalidatePageFn(virt)
	return nil
}

// UnmapPage clears virt's leaf entry and invalidates the TLB entry. It is
// a no-op, not an error, if virt was never mapped, matching Free's
// double-free tolerance elsewhere in the module.
func (m *Manager) UnmapPage(as *AddressSpace, virt uintptr) {
	leaf, idx, ok := m.walk(as, virt, false)
	if !ok {
		return
	}
	leaf.Entries[idx] = 0
	amd64.InvalidatePageFn(virt)
}

// Translate returns the physical address virt currently maps to in as, and
// whether it is mapped at all.
func (m *Manager) Translate(as *AddressSpace, virt uintptr) (phys uint64, ok bool) {
	idx4 := indices(virt)
	t := Mem.Table(as.Root)
	for level := 0; level < pageLevels-1; level++ {
		e := t.Entries[idx4[level]]
		if !e.HasFlags(FlagPresent) {
			return 0, false
		}
		if e.HasFlags(FlagHuge) {
			return e.Frame().PhysAddr() + uint64(hugeOffset(virt)), true
		}
		t = Mem.Table(e.Frame())
	}
	e := t.Entries[idx4[pageLevels-1]]
	if !e.HasFlags(FlagPresent) {
		return 0, false
	}
	return e.Frame().PhysAddr() + uint64(pageOffset(virt)), true
}

// IsMapped reports whether virt has a present mapping in as.
func (m *Manager) IsMapped(as *AddressSpace, virt uintptr) bool {
	_, ok := m.Translate(as, virt)
	return ok
}

// Protect replaces the flag bits of virt's existing leaf entry, keeping its
// frame, or returns ErrNotMapped if virt has no present leaf. Huge leaves
// are protected at the PD level.
func (m *Manager) Protect(as *AddressSpace, virt uintptr, flags PTE) error {
	idx4 := indices(virt)
	t := Mem.Table(as.Root)
	for level := 0; level < pageLevels-1; level++ {
		e := t.Entries[idx4[level]]
		if !e.HasFlags(FlagPresent) {
			return ErrNotMapped
		}
		if e.HasFlags(FlagHuge) {
			t.Entries[idx4[level]] = PTE(0).WithFrame(e.Frame()) | flags | FlagPresent | FlagHuge
			amd64.InvalidatePageFn(virt)
			return nil
		}
		t = Mem.Table(e.Frame())
	}
	idx := idx4[pageLevels-1]
	e := t.Entries[idx]
	if !e.HasFlags(FlagPresent) {
		return ErrNotMapped
	}
	t.Entries[idx] = PTE(0).WithFrame(e.Frame()) | flags | FlagPresent
	amd64.InvalidatePageFn(virt)
	return nil
}

// MapKernelRangeUser grants user-mode access (FlagUser) to an existing
// range of kernel-half mappings, so a thread can e.g. share a ring buffer
// with a user-mode driver without the VMM cloning frames. Every page in
// [virtStart, virtEnd) must
// already be present; the call stops and returns ErrNotMapped at the
// first gap it finds, leaving earlier pages already updated in place.
func (m *Manager) MapKernelRangeUser(as *AddressSpace, virtStart, virtEnd uintptr) error {
	for v := virtStart; v < virtEnd; v += 4096 {
		leaf, idx, ok := m.walk(as, v, false)
		if !ok {
			return ErrNotMapped
		}
		leaf.Entries[idx] |= FlagUser
	}
	return nil
}
