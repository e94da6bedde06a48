package irq

import (
	"unsafe"

	"github.com/geomtech/alos/internal/arch/amd64"
)

// gateEntry is one 16-byte x86-64 interrupt/trap gate descriptor.
type gateEntry struct {
	offsetLow  uint16
	selector   uint16
	ist        uint8
	typeAttr   uint8
	offsetMid  uint16
	offsetHigh uint32
	reserved   uint32
}

const (
	gateTypeInterrupt = 0x0E // 64-bit interrupt gate (clears IF on entry)
	gatePresent       = 0x80
)

func (e *gateEntry) set(addr uintptr, selector uint16, ist uint8, dpl uint8) {
	e.offsetLow = uint16(addr)
	e.offsetMid = uint16(addr >> 16)
	e.offsetHigh = uint32(addr >> 32)
	e.selector = selector
	e.ist = ist & 0x7
	e.typeAttr = gatePresent | (dpl&0x3)<<5 | gateTypeInterrupt
}

// idtTable is the 256-gate table. Every slot
// starts zeroed (= not present); Install only populates the vectors this
// port assigns meaning to — see idt_kernel.go/idt_fake.go's stubAddr.
var idtTable [256]gateEntry

// istIndexFor returns the IST slot or 0 (run on the current stack) for every other
// vector.
func istIndexFor(v int) uint8 {
	switch v {
	case VecDoubleFault:
		return istDoubleFault
	case VecNMI:
		return istNMI
	case VecMachineCheck:
		return istMachineCheck
	default:
		return 0
	}
}

// Install populates every gate this port uses and loads the IDT register.
// Called once during boot, after GDT/TSS are installed (the gates
// reference the kernel code selector and the TSS's IST stacks) and before
// RemapPIC/EnableInterrupts.
func Install() {
	for v := 0; v < len(idtTable); v++ {
		addr := stubAddr(v)
		if addr == 0 {
			continue
		}
		dpl := uint8(0)
		if v == VecSyscall {
			dpl = 3 // user code must be able to `int 0x80`
		}
		idtTable[v].set(addr, KernelCodeSelector, istIndexFor(v), dpl)
	}
	base := uintptr(unsafe.Pointer(&idtTable[0]))
	limit := uint16(unsafe.Sizeof(idtTable) - 1)
	amd64.LoadIDTFn(base, limit)
}

// GateInfo is one IDT slot's installed state, for cmd/idtdump.
type GateInfo struct {
	Vector  int
	Name    string
	Present bool
	DPL     uint8
	IST     uint8
	Fires   uint64
}

// Dump returns every present IDT gate in vector order, for a debug tool
// to print.
func Dump() []GateInfo {
	var out []GateInfo
	for v := range idtTable {
		e := idtTable[v]
		if e.typeAttr&gatePresent == 0 {
			continue
		}
		out = append(out, GateInfo{
			Vector:  v,
			Name:    Name(uint64(v)),
			Present: true,
			DPL:     (e.typeAttr >> 5) & 0x3,
			IST:     e.ist,
			Fires:   Stats(uint64(v)),
		})
	}
	return out
}
