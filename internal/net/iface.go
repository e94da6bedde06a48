package net

import "fmt"

// MAC is a 6-byte Ethernet hardware address.
type MAC [6]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

var broadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IPv4 is a 4-byte address in network byte order.
type IPv4 [4]byte

func (ip IPv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

func (ip IPv4) isZero() bool {
	return ip == IPv4{}
}

var limitedBroadcast = IPv4{255, 255, 255, 255}

// Stats counts per-interface received-packet statistics.
type Stats struct {
	RxFrames  uint64
	RxDropped uint64
	TxFrames  uint64
}

// SendFunc hands a fully built Ethernet frame to the device driver below
// the interface — a collaborator this package never implements itself.
type SendFunc func(frame []byte)

// Interface is one network interface's record: name, MAC, IPv4
// configuration, a send callback into the driver below, and receive
// statistics. At most a handful coexist; Dispatch's ARP/IPv4 logic always
// operates against one specific *Interface passed in by the caller (the
// driver's RX ISR already knows which device delivered the frame).
type Interface struct {
	Name string
	MAC  MAC

	IP      IPv4
	Netmask IPv4
	Gateway IPv4
	DNS     IPv4

	Send SendFunc

	Stats Stats

	arp    arpCache
	udp    udpRegistry
	nextID uint16
}

// Configure sets the interface's static IPv4 identity. DHCP itself isn't
// implemented here, but the acceptance filter's unconfigured-vs-configured
// distinction needs both states reachable, so this is the boot-time (and
// test) path into "configured".
func (i *Interface) Configure(ip, mask, gw, dns IPv4) {
	i.IP = ip
	i.Netmask = mask
	i.Gateway = gw
	i.DNS = dns
}

// Configured reports whether the interface has a non-zero IP yet.
func (i *Interface) Configured() bool {
	return !i.IP.isZero()
}

func (i *Interface) nextIdentification() uint16 {
	i.nextID++
	return i.nextID
}
