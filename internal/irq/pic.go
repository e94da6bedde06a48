package irq

import "github.com/geomtech/alos/internal/arch/amd64"

// Legacy 8259 PIC I/O ports and commands.
const (
	picMasterCmd  = 0x20
	picMasterData = 0x21
	picSlaveCmd   = 0xA0
	picSlaveData  = 0xA1

	icw1Init  = 0x11 // ICW1: edge-triggered, cascade mode, ICW4 needed
	icw4Mode8086 = 0x01 // ICW4: 8086/88 mode

	picEOI = 0x20
)

// RemapPIC reprograms the master/slave 8259 pair so legacy IRQ 0..7 land
// on vectors 32..39 and IRQ 8..15 land on 40..47, cascaded on IRQ 2, then zeroes both mask registers to
// unmask every line — a registered handler must already be in place (or tolerate a
// spurious firing before its driver finishes probing) before RemapPIC
// runs, since nothing here staggers individual lines.
func RemapPIC() {
	// ICW1: begin initialization on both controllers.
	amd64.Ports.Out8(picMasterCmd, icw1Init)
	amd64.Ports.Out8(picSlaveCmd, icw1Init)

	// ICW2: vector offsets.
	amd64.Ports.Out8(picMasterData, IRQBase)
	amd64.Ports.Out8(picSlaveData, IRQBase+8)

	// ICW3: tell master there is a slave on IRQ2 (bit 2), tell slave its
	// cascade identity (2).
	amd64.Ports.Out8(picMasterData, 0x04)
	amd64.Ports.Out8(picSlaveData, 0x02)

	// ICW4: 8086 mode on both.
	amd64.Ports.Out8(picMasterData, icw4Mode8086)
	amd64.Ports.Out8(picSlaveData, icw4Mode8086)

	amd64.Ports.Out8(picMasterData, 0x00)
	amd64.Ports.Out8(picSlaveData, 0x00)
}

// UnmaskIRQ clears one line's mask bit, letting it actually interrupt.
func UnmaskIRQ(line uint8) {
	port := picMasterData
	l := line
	if l >= 8 {
		port = picSlaveData
		l -= 8
	}
	cur := amd64.Ports.In8(uint16(port))
	amd64.Ports.Out8(uint16(port), cur&^(1<<l))
}

// MaskIRQ sets one line's mask bit.
func MaskIRQ(line uint8) {
	port := picMasterData
	l := line
	if l >= 8 {
		port = picSlaveData
		l -= 8
	}
	cur := amd64.Ports.In8(uint16(port))
	amd64.Ports.Out8(uint16(port), cur|(1<<l))
}

// sendEOI acknowledges line, sending it to the slave first when line is
// on the slave controller (>=8), then always to the master, since the
// master is cascaded and needs its own EOI regardless of which
// controller raised the line.
func sendEOI(line uint8) {
	if line >= 8 {
		amd64.Ports.Out8(picSlaveCmd, picEOI)
	}
	amd64.Ports.Out8(picMasterCmd, picEOI)
}
