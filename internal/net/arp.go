package net

import (
	"encoding/binary"

	"github.com/geomtech/alos/internal/syncx"
)

const (
	arpHeaderLen = 28
	arpHwTypeEth = 1

	arpOpRequest = 1
	arpOpReply   = 2

	arpCacheCapacity = 16
)

// arpEntry is one {IP, MAC, valid} cache row.
type arpEntry struct {
	ip    IPv4
	mac   MAC
	valid bool
}

// arpCache is a small fixed table, FIFO on overflow. Guarded by an
// IRQ-safe spinlock since it is touched from the driver's IRQ context.
type arpCache struct {
	mu      syncx.IRQSpinlock
	entries [arpCacheCapacity]arpEntry
	next    int // FIFO insertion cursor for a fresh (not update-in-place) entry
}

// lookup returns the cached MAC for ip and whether it was present. Absence
// is the caller's signal to emit an ARP request and retry.
func (c *arpCache) lookup(ip IPv4) (MAC, bool) {
	st := c.mu.Lock()
	defer c.mu.Unlock(st)
	for _, e := range c.entries {
		if e.valid && e.ip == ip {
			return e.mac, true
		}
	}
	return MAC{}, false
}

// update records ip -> mac, updating an existing entry in place or
// consuming the next FIFO slot when ip is new.
func (c *arpCache) update(ip IPv4, mac MAC) {
	st := c.mu.Lock()
	defer c.mu.Unlock(st)
	for i := range c.entries {
		if c.entries[i].valid && c.entries[i].ip == ip {
			c.entries[i].mac = mac
			return
		}
	}
	c.entries[c.next] = arpEntry{ip: ip, mac: mac, valid: true}
	c.next = (c.next + 1) % arpCacheCapacity
}

func handleARP(ifc *Interface, pkt []byte) {
	if len(pkt) < arpHeaderLen {
		ifc.Stats.RxDropped++
		return
	}

	hwType := binary.BigEndian.Uint16(pkt[0:2])
	protoType := binary.BigEndian.Uint16(pkt[2:4])
	if hwType != arpHwTypeEth || protoType != ethTypeIPv4 {
		ifc.Stats.RxDropped++
		return
	}

	opcode := binary.BigEndian.Uint16(pkt[6:8])
	var senderMAC, targetMAC MAC
	copy(senderMAC[:], pkt[8:14])
	var senderIP, targetIP IPv4
	copy(senderIP[:], pkt[14:18])
	copy(targetMAC[:], pkt[18:24])
	copy(targetIP[:], pkt[24:28])

	ifc.arp.update(senderIP, senderMAC)

	switch opcode {
	case arpOpRequest:
		if targetIP == ifc.IP {
			sendARPReply(ifc, senderMAC, senderIP)
		}
	case arpOpReply:
		// cache already updated above; nothing further to do.
	}
}

func sendARPReply(ifc *Interface, toMAC MAC, toIP IPv4) {
	pkt := make([]byte, arpHeaderLen)
	binary.BigEndian.PutUint16(pkt[0:2], arpHwTypeEth)
	binary.BigEndian.PutUint16(pkt[2:4], ethTypeIPv4)
	pkt[4] = 6
	pkt[5] = 4
	binary.BigEndian.PutUint16(pkt[6:8], arpOpReply)
	copy(pkt[8:14], ifc.MAC[:])
	copy(pkt[14:18], ifc.IP[:])
	copy(pkt[18:24], toMAC[:])
	copy(pkt[24:28], toIP[:])

	buildEthernetFrame(ifc, toMAC, ethTypeARP, pkt)
}

// sendARPRequest broadcasts a request for ip's hardware address. Callers
// that miss the cache use this to kick off resolution and retry later
//.
func sendARPRequest(ifc *Interface, ip IPv4) {
	pkt := make([]byte, arpHeaderLen)
	binary.BigEndian.PutUint16(pkt[0:2], arpHwTypeEth)
	binary.BigEndian.PutUint16(pkt[2:4], ethTypeIPv4)
	pkt[4] = 6
	pkt[5] = 4
	binary.BigEndian.PutUint16(pkt[6:8], arpOpRequest)
	copy(pkt[8:14], ifc.MAC[:])
	copy(pkt[14:18], ifc.IP[:])
	// target MAC is left zeroed: that's what we're asking for.
	copy(pkt[24:28], ip[:])

	buildEthernetFrame(ifc, broadcastMAC, ethTypeARP, pkt)
}
