package net

import (
	"encoding/binary"

	"github.com/geomtech/alos/internal/console"
)

var log = console.New("net")

const (
	ethHeaderLen = 14
	ethTypeARP   = 0x0806
	ethTypeIPv4  = 0x0800
	ethTypeIPv6  = 0x86DD

	ethMinFrameLen = 60 // minimum Ethernet frame size, excluding the trailing CRC
)

// Dispatch is the RX entry point: a driver hands it
// a raw frame and length, already on the driver's IRQ stack with
// interrupts disabled. Frames shorter than an Ethernet header are
// dropped; the EtherType selects ARP or IPv4, anything else (including
// IPv6, explicitly) is silently ignored.
func Dispatch(ifc *Interface, frame []byte) {
	ifc.Stats.RxFrames++
	if len(frame) < ethHeaderLen {
		ifc.Stats.RxDropped++
		return
	}

	etherType := binary.BigEndian.Uint16(frame[12:14])
	payload := frame[ethHeaderLen:]

	switch etherType {
	case ethTypeARP:
		handleARP(ifc, payload)
	case ethTypeIPv4:
		handleIPv4(ifc, payload)
	default:
		// IPv6 and anything else: silently ignored.
	}
}

// buildEthernetFrame prepends a 14-byte Ethernet II header to payload,
// pads the result to the minimum Ethernet frame size, and hands it to the
// interface's send callback.
func buildEthernetFrame(ifc *Interface, dst MAC, etherType uint16, payload []byte) {
	frameLen := ethHeaderLen + len(payload)
	if frameLen < ethMinFrameLen {
		frameLen = ethMinFrameLen
	}
	frame := make([]byte, frameLen)
	copy(frame[0:6], dst[:])
	copy(frame[6:12], ifc.MAC[:])
	binary.BigEndian.PutUint16(frame[12:14], etherType)
	copy(frame[ethHeaderLen:], payload)

	ifc.Stats.TxFrames++
	ifc.Send(frame)
}
