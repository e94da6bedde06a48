package irq

import (
	"testing"

	"github.com/geomtech/alos/internal/arch/amd64"
)

func resetRegistries() {
	st := regMu.Lock()
	exceptions = [32]ExceptionHandler{}
	irqs = [NumIRQs]IRQHandler{}
	regMu.Unlock(st)
}

func TestRemapPICLeavesAllLinesUnmasked(t *testing.T) {
	RemapPIC()
	ports := amd64.FakePortWrites()

	if got := ports[picMasterData]; got != 0x00 {
		t.Fatalf("master data after remap = %#x, want 0x00 (all unmasked)", got)
	}
	if got := ports[picSlaveData]; got != 0x00 {
		t.Fatalf("slave data after remap = %#x, want 0x00 (all unmasked)", got)
	}
}

func TestMaskIRQSetsOnlyThatBit(t *testing.T) {
	RemapPIC()
	MaskIRQ(0) // master, bit 0
	ports := amd64.FakePortWrites()
	if got := ports[picMasterData]; got != 0x01 {
		t.Fatalf("master data after mask IRQ0 = %#x, want 0x01", got)
	}

	MaskIRQ(8) // slave, bit 0
	if got := ports[picSlaveData]; got != 0x01 {
		t.Fatalf("slave data after mask IRQ8 = %#x, want 0x01", got)
	}

	UnmaskIRQ(0)
	if got := ports[picMasterData]; got != 0x00 {
		t.Fatalf("master data after unmask IRQ0 = %#x, want 0x00", got)
	}
}

func TestEOIForSlaveLineSendsSlaveAndMaster(t *testing.T) {
	ports := amd64.FakePortWrites()
	ports[picMasterCmd] = 0
	ports[picSlaveCmd] = 0

	sendEOI(10) // a slave-owned line
	if ports[picSlaveCmd] != picEOI {
		t.Fatalf("slave EOI not sent for line >= 8")
	}
	if ports[picMasterCmd] != picEOI {
		t.Fatalf("master EOI not sent for a slave line")
	}

	ports[picMasterCmd] = 0
	sendEOI(3) // master-only line
	if ports[picMasterCmd] != picEOI {
		t.Fatalf("master EOI not sent for a master line")
	}
}

func TestDispatchRoutesExceptionByVector(t *testing.T) {
	resetRegistries()
	defer resetRegistries()

	called := false
	RegisterException(VecGPFault, func(f *Frame) {
		called = true
		if f.ErrorCode != 0x42 {
			t.Fatalf("ErrorCode = %#x, want 0x42", f.ErrorCode)
		}
	})

	f := &Frame{Vector: VecGPFault, ErrorCode: 0x42}
	Dispatch(f)

	if !called {
		t.Fatal("registered exception handler was not invoked")
	}
}

func TestDispatchIRQSendsEOIAfterHandler(t *testing.T) {
	resetRegistries()
	defer resetRegistries()

	ports := amd64.FakePortWrites()
	ports[picMasterCmd] = 0

	order := []string{}
	RegisterIRQ(0, func(f *Frame) {
		order = append(order, "handler")
	})

	f := &Frame{Vector: IRQBase + 0}
	Dispatch(f)

	if len(order) != 1 || order[0] != "handler" {
		t.Fatalf("handler call order = %v", order)
	}
	if ports[picMasterCmd] != picEOI {
		t.Fatal("EOI not sent after IRQ handler returned")
	}
}

func TestDispatchUnknownIRQStillAcksEOI(t *testing.T) {
	resetRegistries()
	defer resetRegistries()

	ports := amd64.FakePortWrites()
	ports[picMasterCmd] = 0

	f := &Frame{Vector: IRQBase + 5} // nothing registered on line 5
	Dispatch(f)

	if ports[picMasterCmd] != picEOI {
		t.Fatal("unknown IRQ was not silently acknowledged")
	}
}

func TestDebugExceptionClearsTrapFlagOnSingleStep(t *testing.T) {
	resetRegistries()
	defer resetRegistries()
	RegisterException(VecDebug, handleDebugException)

	amd64.SetFakeDR6(debugStepFlag)
	f := &Frame{Vector: VecDebug, RFlags: flagsTrapFlag | 0x2}
	Dispatch(f)

	if f.RFlags&flagsTrapFlag != 0 {
		t.Fatal("trap flag not cleared after single-step debug exception")
	}
	if amd64.ReadDR6Fn() != 0 {
		t.Fatal("DR6 not zeroed after single-step debug exception")
	}
}

func TestInstallPopulatesOnlyAssignedVectors(t *testing.T) {
	idtTable = [256]gateEntry{}
	Install()

	if idtTable[VecPageFault].typeAttr&gatePresent == 0 {
		t.Fatal("page fault gate not marked present")
	}
	if idtTable[IRQBase].typeAttr&gatePresent == 0 {
		t.Fatal("timer IRQ gate not marked present")
	}
	if idtTable[VecSyscall].typeAttr&gatePresent == 0 {
		t.Fatal("syscall gate not marked present")
	}
	if idtTable[60].typeAttr&gatePresent != 0 {
		t.Fatal("unassigned vector 60 must be left absent")
	}

	wantDPL := uint8(3)
	gotDPL := (idtTable[VecSyscall].typeAttr >> 5) & 0x3
	if gotDPL != wantDPL {
		t.Fatalf("syscall gate DPL = %d, want 3", gotDPL)
	}
	gotKernelDPL := (idtTable[VecPageFault].typeAttr >> 5) & 0x3
	if gotKernelDPL != 0 {
		t.Fatalf("page fault gate DPL = %d, want 0", gotKernelDPL)
	}

	if idtTable[VecDoubleFault].ist != istDoubleFault {
		t.Fatalf("double fault IST = %d, want %d", idtTable[VecDoubleFault].ist, istDoubleFault)
	}
}
