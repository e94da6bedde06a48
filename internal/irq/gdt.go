package irq

import (
	"unsafe"

	"github.com/geomtech/alos/internal/arch/amd64"
)

// Segment selectors. Ring is encoded in the low two bits, so the
// user selectors carry |3.
const (
	KernelCodeSelector = 0x08
	KernelDataSelector = 0x10
	UserDataSelector   = 0x18 | 3
	UserCodeSelector   = 0x20 | 3
	tssSelector        = 0x28
)

// IST indices into the TSS's interrupt-stack-table. Index 0 means "no
// IST, use the current stack."
const (
	istDoubleFault  uint8 = 1
	istNMI          uint8 = 2
	istMachineCheck uint8 = 3

	istStackSize = 16 * 1024
)

// Flat 64-bit-mode descriptor access/flag bytes. In long mode the base
// and limit of a flat code/data descriptor are ignored by the CPU (flat
// segmentation is implied), so these are just the access-byte bit
// patterns a minimal kernel needs: present, ring, descriptor type,
// executable/writable, and (for code) the 64-bit long-mode bit.
const (
	segPresent    = 1 << 7
	segRing3      = 3 << 5
	segCodeOrData = 1 << 4
	segExecutable = 1 << 3
	segRW         = 1 << 1
	segLongMode   = 1 << 1 // in the flags nibble, not the access byte
	segGranular4K = 1 << 3 // in the flags nibble
)

func flatDescriptor(access uint8, longMode bool) uint64 {
	var flags uint8
	if longMode {
		flags |= segLongMode
	}
	// limit=0xFFFFF, base=0: flat, 4K granularity assumed for data/code
	// segments with no meaningful base/limit in long mode.
	d := uint64(0xFFFF)               // limit[0:16)
	d |= uint64(access) << 40         // access byte
	d |= uint64(flags) << 52          // flags nibble (low 4 bits of that byte)
	d |= uint64(0xF) << 48            // limit[16:20)
	return d
}

// gdt is the flat 64-bit GDT: null, kernel code, kernel data, user data,
// user code, then the two-slot TSS system descriptor.
var gdt [7]uint64

// tss64 is the 64-bit Task State Segment: only RSP0 (the ring-0 stack
// loaded on a ring-3→ring-0 transition) and the three IST stacks this
// port uses are populated; everything else stays zero.
type tss64 struct {
	reserved0 uint32
	rsp0      uint64
	rsp1      uint64
	rsp2      uint64
	reserved1 uint64
	ist       [7]uint64
	reserved2 uint64
	reserved3 uint16
	ioMapBase uint16
}

var tss tss64

var (
	doubleFaultStack  [istStackSize]byte
	nmiStack          [istStackSize]byte
	machineCheckStack [istStackSize]byte
	kernelStack0      [istStackSize]byte
)

func stackTop(stack *[istStackSize]byte) uint64 {
	return uint64(uintptr(unsafe.Pointer(&stack[istStackSize-1]))) &^ 0xf
}

// tssDescriptor builds the 16-byte system descriptor for the TSS as two
// consecutive GDT slots (long mode widens the system descriptor's base
// to 64 bits, unlike flat code/data descriptors).
func tssDescriptor(base uintptr) (lo, hi uint64) {
	limit := uint64(unsafe.Sizeof(tss64{}) - 1)
	access := uint64(segPresent) | 0x9 // present, type=0x9 (64-bit TSS, available)

	lo = limit & 0xFFFF
	lo |= (uint64(base) & 0xFFFFFF) << 16
	lo |= access << 40
	lo |= ((uint64(base) >> 24) & 0xFF) << 56

	hi = (uint64(base) >> 32) & 0xFFFFFFFF
	return lo, hi
}

// InstallGDT builds the flat GDT plus the TSS's IST stacks and loads
// both. Called once during boot, before Install (the IDT
// references these selectors and IST indices).
func InstallGDT() {
	gdt[0] = 0
	gdt[1] = flatDescriptor(segPresent|segCodeOrData|segExecutable|segRW, true)
	gdt[2] = flatDescriptor(segPresent|segCodeOrData|segRW, false)
	gdt[3] = flatDescriptor(segPresent|segRing3|segCodeOrData|segRW, false)
	gdt[4] = flatDescriptor(segPresent|segRing3|segCodeOrData|segExecutable|segRW, true)

	tss = tss64{}
	tss.rsp0 = stackTop(&kernelStack0)
	tss.ist[istDoubleFault-1] = stackTop(&doubleFaultStack)
	tss.ist[istNMI-1] = stackTop(&nmiStack)
	tss.ist[istMachineCheck-1] = stackTop(&machineCheckStack)

	lo, hi := tssDescriptor(uintptr(unsafe.Pointer(&tss)))
	gdt[5] = lo
	gdt[6] = hi

	base := uintptr(unsafe.Pointer(&gdt[0]))
	limit := uint16(unsafe.Sizeof(gdt) - 1)
	amd64.LoadGDTFn(base, limit)
	amd64.LoadTSSFn(tssSelector)
}
