package net

import "encoding/binary"

const (
	ipv4MinHeaderLen = 20
	ipv4Version      = 4
	ipv4FlagDF       = 0x4000 // flags+frag field, DF bit in the top nibble
	ipv4TTL          = 64

	protoICMP = 1
	protoUDP  = 17
)

// handleIPv4 validates the header and applies the four-way acceptance
// filter (destination is ours, the limited broadcast, we're unconfigured,
// or it's UDP while unconfigured) before handing the payload to ICMP or
// UDP.
func handleIPv4(ifc *Interface, pkt []byte) {
	if len(pkt) < ipv4MinHeaderLen {
		ifc.Stats.RxDropped++
		return
	}

	versionIHL := pkt[0]
	version := versionIHL >> 4
	ihl := int(versionIHL&0x0F) * 4
	totalLen := int(binary.BigEndian.Uint16(pkt[2:4]))

	if version != ipv4Version || ihl < ipv4MinHeaderLen || ihl > totalLen || totalLen > len(pkt) {
		ifc.Stats.RxDropped++
		return
	}

	protocol := pkt[9]
	var dst IPv4
	copy(dst[:], pkt[16:20])

	accepted := dst == ifc.IP ||
		dst == limitedBroadcast ||
		!ifc.Configured() ||
		(protocol == protoUDP && !ifc.Configured())
	if !accepted {
		log.Warnf("dropping ipv4 packet to %s (not ours, not broadcast, configured)", dst)
		ifc.Stats.RxDropped++
		return
	}

	var src IPv4
	copy(src[:], pkt[12:16])
	payload := pkt[ihl:totalLen]

	switch protocol {
	case protoICMP:
		handleICMP(ifc, src, payload)
	case protoUDP:
		handleUDP(ifc, src, payload)
	default:
		ifc.Stats.RxDropped++
	}
}

// sendIPv4 wraps payload in an IPv4 header addressed to dst and hands it
// to ARP resolution / Ethernet framing. totalLen, identification, DF,
// TTL, source, and checksum are all filled here; the caller supplies only protocol, destination, and payload.
func sendIPv4(ifc *Interface, dst IPv4, protocol uint8, payload []byte) {
	totalLen := ipv4MinHeaderLen + len(payload)
	hdr := make([]byte, totalLen)

	hdr[0] = ipv4Version<<4 | (ipv4MinHeaderLen / 4)
	hdr[1] = 0 // TOS
	binary.BigEndian.PutUint16(hdr[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(hdr[4:6], ifc.nextIdentification())
	binary.BigEndian.PutUint16(hdr[6:8], ipv4FlagDF)
	hdr[8] = ipv4TTL
	hdr[9] = protocol
	// checksum (hdr[10:12]) filled below, after the rest of the header.
	copy(hdr[12:16], ifc.IP[:])
	copy(hdr[16:20], dst[:])
	copy(hdr[ipv4MinHeaderLen:], payload)

	binary.BigEndian.PutUint16(hdr[10:12], checksum16(hdr[0:ipv4MinHeaderLen]))

	sendEthernetTo(ifc, dst, ethTypeIPv4, hdr)
}

// sendEthernetTo resolves dst's link-layer address via the ARP cache
// before framing, issuing an ARP request and dropping the packet when the
// address is not yet known.
func sendEthernetTo(ifc *Interface, dst IPv4, etherType uint16, payload []byte) {
	if dst == limitedBroadcast {
		buildEthernetFrame(ifc, broadcastMAC, etherType, payload)
		return
	}

	mac, ok := ifc.arp.lookup(dst)
	if !ok {
		sendARPRequest(ifc, dst)
		return
	}
	buildEthernetFrame(ifc, mac, etherType, payload)
}
