package pmm

import (
	"testing"

	"github.com/geomtech/alos/internal/bootinfo"
	"github.com/geomtech/alos/internal/kernelutil"
)

// TestFrameAllocatorAllocFreeRoundTrip: a single usable region
// [0x100000, 0x200000) gives 256 free frames; AllocOne returns
// HHDM+0x100000 and drops free_frames to 255; Free restores 256.
func TestFrameAllocatorAllocFreeRoundTrip(t *testing.T) {
	const hhdm = uintptr(0xffff800000000000)
	resp := &bootinfo.Response{
		HHDMOffset: hhdm,
		MemoryMap: []bootinfo.MemMapEntry{
			{Base: 0x100000, Length: 0x100000, Type: bootinfo.Usable},
		},
	}
	a := New(resp, 0x200000)

	_, used, free := a.Stats()
	if free != 256 {
		t.Fatalf("free = %d, want 256", free)
	}

	virt, ok := a.AllocOne()
	if !ok {
		t.Fatal("AllocOne failed")
	}
	if want := hhdm + 0x100000; virt != want {
		t.Fatalf("AllocOne = %#x, want %#x", virt, want)
	}
	_, used, free = a.Stats()
	if free != 255 {
		t.Fatalf("free after alloc = %d, want 255", free)
	}
	if used != a.Popcount() {
		t.Fatalf("used=%d popcount=%d, invariant violated", used, a.Popcount())
	}

	a.Free(virt)
	_, _, free = a.Stats()
	if free != 256 {
		t.Fatalf("free after Free = %d, want 256", free)
	}
}

func TestEveryReturnedPointerIsPageAlignedAndInHHDM(t *testing.T) {
	const hhdm = uintptr(0xffff800000000000)
	resp := &bootinfo.Response{
		HHDMOffset: hhdm,
		MemoryMap: []bootinfo.MemMapEntry{
			{Base: 0x100000, Length: 0x10000, Type: bootinfo.Usable},
		},
	}
	a := New(resp, 0x200000)

	for i := 0; i < 16; i++ {
		virt, ok := a.AllocOne()
		if !ok {
			break
		}
		if virt < hhdm {
			t.Fatalf("pointer %#x not within HHDM", virt)
		}
		if (virt-hhdm)%kernelutil.PageSize != 0 {
			t.Fatalf("pointer %#x not page-aligned", virt)
		}
	}
}

func TestAllocContigZeroFails(t *testing.T) {
	resp := &bootinfo.Response{
		MemoryMap: []bootinfo.MemMapEntry{{Base: 0, Length: 0x10000, Type: bootinfo.Usable}},
	}
	a := New(resp, 0x10000)
	if _, ok := a.AllocContig(0); ok {
		t.Fatal("AllocContig(0) should fail")
	}
}

func TestAllocContigLargerThanAnyRunFailsWithoutMutating(t *testing.T) {
	resp := &bootinfo.Response{
		MemoryMap: []bootinfo.MemMapEntry{{Base: 0, Length: 0x4000, Type: bootinfo.Usable}},
	}
	a := New(resp, 0x4000)
	_, _, freeBefore := a.Stats()

	if _, ok := a.AllocContig(1000); ok {
		t.Fatal("AllocContig should fail: no run that large exists")
	}
	_, _, freeAfter := a.Stats()
	if freeBefore != freeAfter {
		t.Fatalf("bitmap mutated on failed AllocContig: before=%d after=%d", freeBefore, freeAfter)
	}
}

func TestDoubleFreeIgnored(t *testing.T) {
	resp := &bootinfo.Response{
		MemoryMap: []bootinfo.MemMapEntry{{Base: 0x100000, Length: 0x4000, Type: bootinfo.Usable}},
	}
	a := New(resp, 0x104000)
	virt, ok := a.AllocOne()
	if !ok {
		t.Fatal("alloc failed")
	}
	a.Free(virt)
	a.Free(virt) // must not double-decrement usedFrames
	_, used, _ := a.Stats()
	if used != a.Popcount() {
		t.Fatalf("used=%d popcount=%d after double free", used, a.Popcount())
	}
}

func TestFirstMiBAndKernelImageAlwaysReserved(t *testing.T) {
	resp := &bootinfo.Response{
		MemoryMap: []bootinfo.MemMapEntry{
			{Base: 0, Length: 0x300000, Type: bootinfo.Usable},
		},
		KernelImageBase: 0x200000,
		KernelImageLen:  0x10000,
	}
	a := New(resp, 0x300000)
	for phys := uint64(0); phys < FirstMiB; phys += kernelutil.PageSize {
		if !a.bm.test(phys / kernelutil.PageSize) {
			t.Fatalf("frame at %#x in first MiB should be reserved", phys)
		}
	}
	for phys := resp.KernelImageBase; phys < resp.KernelImageBase+resp.KernelImageLen; phys += kernelutil.PageSize {
		if !a.bm.test(phys / kernelutil.PageSize) {
			t.Fatalf("kernel image frame at %#x should be reserved", phys)
		}
	}
}
