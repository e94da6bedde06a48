// Package core wires every other package into the single boot sequence:
// PMM, then VMM (adopting the bootloader's root and
// carving out the MMIO pool), then the IDT/GDT and PIC, then the timer
// (which enables the tick), then the scheduler (idle+reaper, then
// preemption flipped on), then the network interface. cmd/kernel and
// cmd/ksim are both thin wrappers that call Boot against, respectively,
// the real and fake amd64 leaf implementations.
package core

import (
	"github.com/geomtech/alos/internal/arch/amd64"
	"github.com/geomtech/alos/internal/bootinfo"
	"github.com/geomtech/alos/internal/console"
	"github.com/geomtech/alos/internal/irq"
	"github.com/geomtech/alos/internal/kernelutil"
	"github.com/geomtech/alos/internal/mmio"
	"github.com/geomtech/alos/internal/net"
	"github.com/geomtech/alos/internal/pmm"
	"github.com/geomtech/alos/internal/sched"
	"github.com/geomtech/alos/internal/timer"
	"github.com/geomtech/alos/internal/vmm"
)

var log = console.New("core")

// Config carries the handful of boot-time parameters left to
// whoever calls Boot: the physical ceiling the PMM bitmap covers, the
// scheduler's tick frequency, and the MMIO pool's region of the kernel
// address space.
type Config struct {
	MaxPhys  uint64
	TickHz   int
	MMIOBase uintptr
	MMIOSize uintptr
}

// Kernel is every subsystem handle Boot wires up, returned so a driver
// layer (not implemented here) can reach them.
type Kernel struct {
	PMM   *pmm.Allocator
	VMM   *vmm.Manager
	MMIO  *mmio.Registry
	Sched *sched.Scheduler
	Net   *net.Interface
}

// Boot runs the kernel's init order once: allocator, then address space
// manager, then interrupt tables, then timer, then scheduler, then
// network interface. It must be called exactly once, after the
// bootloader handoff (resp) has been read and before any interrupt can
// fire.
func Boot(resp *bootinfo.Response, cfg Config) *Kernel {
	log.Infof("boot: starting, %d memory map entries", len(resp.MemoryMap))

	allocator := pmm.New(resp, cfg.MaxPhys)
	total, used, free := allocator.Stats()
	log.Infof("pmm: %d frames total, %d used, %d free", total, used, free)

	vmMgr := vmm.NewManager(allocator)
	rootFrame := pmm.Frame(uint64(amd64.ReadCR3Fn()) / kernelutil.PageSize)
	vmMgr.AdoptKernelSpace(rootFrame)

	registry := &mmio.Registry{}
	vmMgr.NewMMIOPool(cfg.MMIOBase, cfg.MMIOSize, registry)

	irq.InstallGDT()
	irq.Install()
	irq.RemapPIC()
	irq.RegisterDefaultHandlers(vmm.HandlePageFault)
	log.Infof("irq: gdt/idt installed, pic remapped")

	timer.Init(cfg.TickHz)

	s := sched.Init(cfg.TickHz)
	s.EnablePreemption()
	log.Infof("sched: running at %d Hz, preemption enabled", cfg.TickHz)

	ifc := &net.Interface{}

	log.Infof("boot: complete")
	return &Kernel{
		PMM:   allocator,
		VMM:   vmMgr,
		MMIO:  registry,
		Sched: s,
		Net:   ifc,
	}
}
