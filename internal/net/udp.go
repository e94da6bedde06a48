package net

import (
	"encoding/binary"

	"github.com/geomtech/alos/internal/syncx"
)

const udpHeaderLen = 8

// UDPHandler is a registered port callback.
type UDPHandler func(ifc *Interface, src IPv4, srcPort, dstPort uint16, data []byte)

// udpRegistry demultiplexes by destination port, guarded the same way as
// the ARP cache since it is reached from the same IRQ context.
type udpRegistry struct {
	mu       syncx.IRQSpinlock
	handlers map[uint16]UDPHandler
}

// RegisterUDP installs h as the handler for local port. Replaces any
// previously registered handler for the same port.
func (i *Interface) RegisterUDP(port uint16, h UDPHandler) {
	st := i.udp.mu.Lock()
	if i.udp.handlers == nil {
		i.udp.handlers = make(map[uint16]UDPHandler)
	}
	i.udp.handlers[port] = h
	i.udp.mu.Unlock(st)
}

func handleUDP(ifc *Interface, src IPv4, pkt []byte) {
	if len(pkt) < udpHeaderLen {
		ifc.Stats.RxDropped++
		return
	}

	srcPort := binary.BigEndian.Uint16(pkt[0:2])
	dstPort := binary.BigEndian.Uint16(pkt[2:4])
	length := int(binary.BigEndian.Uint16(pkt[4:6]))
	if length < udpHeaderLen || length > len(pkt) {
		ifc.Stats.RxDropped++
		return
	}
	data := pkt[udpHeaderLen:length]

	st := ifc.udp.mu.Lock()
	h, ok := ifc.udp.handlers[dstPort]
	ifc.udp.mu.Unlock(st)

	if !ok {
		ifc.Stats.RxDropped++
		return
	}
	h(ifc, src, srcPort, dstPort, data)
}
