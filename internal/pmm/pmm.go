// Package pmm is the physical frame allocator: a bitmap
// over the firmware memory map, handing out single frames or contiguous
// runs as HHDM-mapped virtual pointers.
package pmm

import (
	"github.com/geomtech/alos/internal/bootinfo"
	"github.com/geomtech/alos/internal/console"
	"github.com/geomtech/alos/internal/kernelutil"
	"github.com/geomtech/alos/internal/syncx"
)

const (
	// FirstMiB is permanently reserved: real-mode legacy, VGA aperture,
	// ACPI tables.
	FirstMiB = 1 << 20
)

// Frame identifies one 4 KiB physical frame by its index: frame index =
// phys_addr / PageSize.
type Frame uint64

// PhysAddr returns the frame's physical base address.
func (f Frame) PhysAddr() uint64 { return uint64(f) * kernelutil.PageSize }

// Allocator owns every physical frame below its configured ceiling. All
// state is protected by a single IRQ-safe spinlock: the bitmap is touched
// both from thread context (most allocations) and from driver interrupt
// handlers refilling RX buffers.
type Allocator struct {
	mu          syncx.IRQSpinlock
	bm          *bitmap
	hhdmOffset  uintptr
	totalFrames uint64
	usedFrames  uint64
	log         *console.Logger
}

var logger = console.New("pmm")

// New builds an allocator for physical addresses [0, maxPhys), then seeds
// it from resp: mark every frame used, clear the bits covered by each
// USABLE region (aligning
// base up and length down to the page size), then re-reserve the first
// MiB and the kernel image unconditionally, in case a USABLE region
// overlapped them.
func New(resp *bootinfo.Response, maxPhys uint64) *Allocator {
	a := &Allocator{
		hhdmOffset:  resp.HHDMOffset,
		totalFrames: maxPhys / kernelutil.PageSize,
		log:         logger,
	}
	a.bm = newBitmap(a.totalFrames)
	a.bm.setAll()
	a.usedFrames = a.totalFrames

	for _, e := range resp.MemoryMap {
		if e.Type != bootinfo.Usable {
			continue
		}
		base := kernelutil.PageAlignUp(e.Base)
		end := kernelutil.PageAlignDown(e.Base + e.Length)
		if end <= base {
			continue
		}
		for phys := base; phys < end && phys < maxPhys; phys += kernelutil.PageSize {
			idx := phys / kernelutil.PageSize
			if a.bm.test(idx) {
				a.bm.clear(idx)
				a.usedFrames--
			}
		}
	}

	a.reserveRange(0, FirstMiB)
	a.reserveRange(resp.KernelImageBase, resp.KernelImageBase+resp.KernelImageLen)

	a.log.Infof("initialized: %d frames total, %d free", a.totalFrames, a.totalFrames-a.usedFrames)
	return a
}

func (a *Allocator) reserveRange(base, end uint64) {
	base = kernelutil.PageAlignDown(base)
	end = kernelutil.PageAlignUp(end)
	for phys := base; phys < end && phys/kernelutil.PageSize < a.totalFrames; phys += kernelutil.PageSize {
		idx := phys / kernelutil.PageSize
		if !a.bm.test(idx) {
			a.bm.set(idx)
			a.usedFrames++
		}
	}
}

// Reserve pins a single frame as used, never to be returned by AllocOne.
// New does not call it (init-time reservation goes through reserveRange);
// it is exposed so drivers that discover reserved regions after boot
// (e.g. an ACPI table outside the memory map) can pin them.
func (a *Allocator) Reserve(f Frame) {
	st := a.mu.Lock()
	defer a.mu.Unlock(st)
	idx := uint64(f)
	if idx < a.totalFrames && !a.bm.test(idx) {
		a.bm.set(idx)
		a.usedFrames++
	}
}

func (a *Allocator) toVirt(f Frame) uintptr {
	return uintptr(f.PhysAddr()) + a.hhdmOffset
}

// AllocOne returns an HHDM-mapped virtual pointer to a freshly claimed
// frame, or ok=false if none remain.
func (a *Allocator) AllocOne() (virt uintptr, ok bool) {
	st := a.mu.Lock()
	defer a.mu.Unlock(st)
	idx, found := a.bm.findFirstZero(0)
	if !found {
		return 0, false
	}
	a.bm.set(idx)
	a.usedFrames++
	return a.toVirt(Frame(idx)), true
}

// AllocContig claims n consecutive frames, tie-broken to the lowest
// starting frame, or fails without mutating the bitmap if no such run
// exists. n==0 always fails.
func (a *Allocator) AllocContig(n int) (virt uintptr, ok bool) {
	if n <= 0 {
		return 0, false
	}
	st := a.mu.Lock()
	defer a.mu.Unlock(st)
	start, found := a.bm.findFirstZeroRun(uint64(n))
	if !found {
		return 0, false
	}
	for i := uint64(0); i < uint64(n); i++ {
		a.bm.set(start + i)
	}
	a.usedFrames += uint64(n)
	return a.toVirt(Frame(start)), true
}

func (a *Allocator) fromVirt(virt uintptr) (Frame, bool) {
	if virt < a.hhdmOffset {
		return 0, false
	}
	phys := uint64(virt - a.hhdmOffset)
	idx := phys / kernelutil.PageSize
	if idx >= a.totalFrames {
		return 0, false
	}
	return Frame(idx), true
}

// Free releases a frame returned by AllocOne/AllocContig. A double-free
// (the bit is already 0) is silently ignored.
func (a *Allocator) Free(virt uintptr) {
	f, ok := a.fromVirt(virt)
	if !ok {
		return
	}
	st := a.mu.Lock()
	defer a.mu.Unlock(st)
	idx := uint64(f)
	if a.bm.test(idx) {
		a.bm.clear(idx)
		a.usedFrames--
	}
}

// FreeContig releases n consecutive frames starting at the pointer
// returned by AllocContig(n).
func (a *Allocator) FreeContig(virt uintptr, n int) {
	f, ok := a.fromVirt(virt)
	if !ok || n <= 0 {
		return
	}
	st := a.mu.Lock()
	defer a.mu.Unlock(st)
	for i := uint64(0); i < uint64(n); i++ {
		idx := uint64(f) + i
		if idx >= a.totalFrames {
			break
		}
		if a.bm.test(idx) {
			a.bm.clear(idx)
			a.usedFrames--
		}
	}
}

// Stats reports total/used/free frame counts, for the boot banner and for
// the testable invariant used_frames == popcount(bitmap).
func (a *Allocator) Stats() (total, used, free uint64) {
	st := a.mu.Lock()
	defer a.mu.Unlock(st)
	return a.totalFrames, a.usedFrames, a.totalFrames - a.usedFrames
}

// Popcount recomputes used frames directly from the bitmap, bypassing the
// cached counter, for tests asserting testable property #1.
func (a *Allocator) Popcount() uint64 {
	st := a.mu.Lock()
	defer a.mu.Unlock(st)
	return a.bm.popcount()
}

// HHDMOffset exposes the configured direct-map offset, used by vmm to
// translate a frame allocated here into the virtual address it writes a
// new page table through.
func (a *Allocator) HHDMOffset() uintptr { return a.hhdmOffset }
