package vmm

import (
	"testing"

	"github.com/geomtech/alos/internal/bootinfo"
	"github.com/geomtech/alos/internal/mmio"
	"github.com/geomtech/alos/internal/pmm"
)

func newTestManager(t *testing.T) (*Manager, *pmm.Allocator) {
	t.Helper()
	SetPhysMem(NewFakePhysMem())
	resp := &bootinfo.Response{
		MemoryMap: []bootinfo.MemMapEntry{
			{Base: 0, Length: 0x400000, Type: bootinfo.Usable},
		},
	}
	alloc := pmm.New(resp, 0x400000)
	mgr := NewManager(alloc)

	rootVirt, ok := alloc.AllocOne()
	if !ok {
		t.Fatal("could not allocate root frame")
	}
	mgr.AdoptKernelSpace(pmm.Frame(rootVirt / 4096))
	return mgr, alloc
}

// TestMapTranslateRoundTrip: in a freshly created address
// space, mapping a page makes Translate return the mapped physical
// address, and an unmapped address nearby reports not-mapped.
func TestMapTranslateRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)

	as, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const virt = uintptr(0xFFFF_8000_0000_0000)
	const phys = uint64(0x01234000)

	if err := mgr.MapPage(as, virt, phys, FlagPresent|FlagWritable); err != nil {
		t.Fatalf("MapPage: %v", err)
	}

	got, ok := mgr.Translate(as, virt)
	if !ok {
		t.Fatal("Translate reports unmapped after MapPage")
	}
	if got != phys {
		t.Fatalf("Translate = %#x, want %#x", got, phys)
	}

	if mgr.IsMapped(as, virt+0x1000) {
		t.Fatal("adjacent page should not be mapped")
	}
}

// TestMapThenUnmapRoundTrip is round-trip law #2/#8: map then translate
// returns the mapped address; unmap then translate reports not-mapped.
func TestMapThenUnmapRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	as, _ := mgr.Create()

	const virt = uintptr(0xFFFF_8000_0020_0000)
	if err := mgr.MapPage(as, virt, 0x500000, FlagPresent|FlagWritable); err != nil {
		t.Fatalf("MapPage: %v", err)
	}
	mgr.UnmapPage(as, virt)
	if mgr.IsMapped(as, virt) {
		t.Fatal("page still mapped after UnmapPage")
	}
	// Unmapping twice must not panic (double-unmap tolerance, matching the
	// PMM's double-free tolerance).
	mgr.UnmapPage(as, virt)
}

// TestMapPageAlreadyMapped is the boundary case: mapping the same address
// twice without an intervening unmap fails rather than silently replacing
// the entry.
func TestMapPageAlreadyMapped(t *testing.T) {
	mgr, _ := newTestManager(t)
	as, _ := mgr.Create()

	const virt = uintptr(0xFFFF_8000_0040_0000)
	if err := mgr.MapPage(as, virt, 0x600000, FlagPresent|FlagWritable); err != nil {
		t.Fatalf("first MapPage: %v", err)
	}
	if err := mgr.MapPage(as, virt, 0x601000, FlagPresent|FlagWritable); err != ErrAlreadyMapped {
		t.Fatalf("second MapPage = %v, want ErrAlreadyMapped", err)
	}
}

// TestCreateCopiesKernelHalfOnly is round-trip law #9: a freshly created
// address space sees every kernel-half mapping the kernel space has, and
// nothing in the user half.
func TestCreateCopiesKernelHalfOnly(t *testing.T) {
	mgr, _ := newTestManager(t)

	const kernelVirt = uintptr(0xFFFF_FFFF_8000_0000) // entry >= 256
	if err := mgr.MapPage(mgr.KernelSpace(), kernelVirt, 0x700000, FlagPresent|FlagWritable); err != nil {
		t.Fatalf("MapPage in kernel space: %v", err)
	}

	as, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, ok := mgr.Translate(as, kernelVirt)
	if !ok || got != 0x700000 {
		t.Fatalf("new address space missing kernel-half mapping: got=%#x ok=%v", got, ok)
	}

	const userVirt = uintptr(0x0000_0000_0010_0000)
	if mgr.IsMapped(as, userVirt) {
		t.Fatal("new address space should not inherit any user-half mapping")
	}
}

// TestProtectChangesFlagsKeepsFrame exercises Protect: the physical
// mapping survives a flag change.
func TestProtectChangesFlagsKeepsFrame(t *testing.T) {
	mgr, _ := newTestManager(t)
	as, _ := mgr.Create()

	const virt = uintptr(0xFFFF_8000_0060_0000)
	if err := mgr.MapPage(as, virt, 0x800000, FlagPresent|FlagWritable); err != nil {
		t.Fatalf("MapPage: %v", err)
	}
	if err := mgr.Protect(as, virt, FlagPresent); err != nil {
		t.Fatalf("Protect: %v", err)
	}
	got, ok := mgr.Translate(as, virt)
	if !ok || got != 0x800000 {
		t.Fatalf("Protect changed the mapped frame: got=%#x ok=%v", got, ok)
	}
}

// TestProtectUnmappedFails is the boundary case for Protect on an address
// with no existing mapping.
func TestProtectUnmappedFails(t *testing.T) {
	mgr, _ := newTestManager(t)
	as, _ := mgr.Create()
	if err := mgr.Protect(as, 0xFFFF_8000_0080_0000, FlagPresent); err != ErrNotMapped {
		t.Fatalf("Protect on unmapped page = %v, want ErrNotMapped", err)
	}
}

// TestHugePageTranslateUsesHugeOffset checks a 2 MiB leaf's offset is
// computed from the low 21 bits, not the low 12.
func TestHugePageTranslateUsesHugeOffset(t *testing.T) {
	mgr, _ := newTestManager(t)
	as, _ := mgr.Create()

	const virtBase = uintptr(0xFFFF_8000_0020_0000) // 2 MiB aligned
	if err := mgr.MapHugePage(as, virtBase, 0x1000000, FlagPresent|FlagWritable); err != nil {
		t.Fatalf("MapHugePage: %v", err)
	}
	const off = uintptr(0x123456)
	got, ok := mgr.Translate(as, virtBase+off)
	if !ok {
		t.Fatal("huge page translate reports unmapped")
	}
	if want := uint64(0x1000000) + uint64(off); got != want {
		t.Fatalf("Translate = %#x, want %#x", got, want)
	}
}

// TestMapKernelRangeUserRequiresExistingMapping is the boundary case for
// MapKernelRangeUser: a gap in the range fails the whole call.
func TestMapKernelRangeUserRequiresExistingMapping(t *testing.T) {
	mgr, _ := newTestManager(t)
	as, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mgr.MapKernelRangeUser(as, 0xFFFF_FFFF_9000_0000, 0xFFFF_FFFF_9000_2000); err != ErrNotMapped {
		t.Fatalf("MapKernelRangeUser over unmapped range = %v, want ErrNotMapped", err)
	}
}

// TestIoremapReusesExistingMapping exercises the vmm.Manager <-> mmio
// registry wiring: a second Ioremap of the same BAR must not advance the
// pool cursor or register a duplicate entry.
func TestIoremapReusesExistingMapping(t *testing.T) {
	mgr, _ := newTestManager(t)
	reg := &mmio.Registry{}
	mgr.NewMMIOPool(0xFFFF_A000_0000_0000, 0x10000, reg)

	v1, err := mgr.Ioremap(0xFEE00000, 0x1000, "apic")
	if err != nil {
		t.Fatalf("first Ioremap: %v", err)
	}
	v2, err := mgr.Ioremap(0xFEE00000, 0x1000, "apic")
	if err != nil {
		t.Fatalf("second Ioremap: %v", err)
	}
	if v1 != v2 {
		t.Fatalf("Ioremap not idempotent: %#x != %#x", v1, v2)
	}
	if len(reg.Dump()) != 1 {
		t.Fatalf("registry has %d entries, want 1", len(reg.Dump()))
	}
}

// TestIoremapIounmapRoundTrip checks Iounmap undoes both halves of Ioremap:
// the mapped pages stop translating, and the registry entry is gone so a
// later Ioremap of the same BAR re-walks the page tables instead of
// reusing a stale entry.
func TestIoremapIounmapRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	reg := &mmio.Registry{}
	mgr.NewMMIOPool(0xFFFF_B000_0000_0000, 0x10000, reg)

	virt, err := mgr.Ioremap(0xFEC00000, 0x1000, "ioapic")
	if err != nil {
		t.Fatalf("Ioremap: %v", err)
	}
	if !mgr.IsMapped(mgr.KernelSpace(), virt) {
		t.Fatal("Ioremap did not install a mapping")
	}

	if err := mgr.Iounmap(virt, 0x1000); err != nil {
		t.Fatalf("Iounmap: %v", err)
	}
	if mgr.IsMapped(mgr.KernelSpace(), virt) {
		t.Fatal("page still mapped after Iounmap")
	}
	if len(reg.Dump()) != 0 {
		t.Fatalf("registry has %d entries after Iounmap, want 0", len(reg.Dump()))
	}

	// The remap pool is a bump allocator with no freelist (see Iounmap's
	// doc comment), so re-mapping the same BAR after Iounmap lands at a
	// new address rather than reusing virt — Iounmap's job is dropping the
	// stale mapping and registry entry, not reclaiming pool space.
	v2, err := mgr.Ioremap(0xFEC00000, 0x1000, "ioapic")
	if err != nil {
		t.Fatalf("re-Ioremap after Iounmap: %v", err)
	}
	if v2 == virt {
		t.Fatalf("re-Ioremap reused virt %#x, want a fresh cursor position", v2)
	}
	if !mgr.IsMapped(mgr.KernelSpace(), v2) {
		t.Fatal("re-Ioremap did not install a mapping")
	}
}

// TestDestroyFreesUserHalfTables checks Destroy returns the user half's
// table frames to the allocator: the PMM's used-frame count drops. The
// fake PhysMem itself never reclaims table storage, so that is not
// checked.
func TestDestroyFreesUserHalfTables(t *testing.T) {
	mgr, alloc := newTestManager(t)
	as, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mgr.MapPage(as, 0x0000_0000_0010_0000, 0x900000, FlagPresent|FlagWritable|FlagUser); err != nil {
		t.Fatalf("MapPage: %v", err)
	}
	_, usedBefore, _ := alloc.Stats()
	mgr.Destroy(as)
	_, usedAfter, _ := alloc.Stats()
	if usedAfter >= usedBefore {
		t.Fatalf("Destroy did not free any frames: before=%d after=%d", usedBefore, usedAfter)
	}
}
