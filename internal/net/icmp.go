package net

import (
	"encoding/binary"

	"github.com/geomtech/alos/internal/syncx"
)

const (
	icmpHeaderLen = 8

	icmpEchoRequest  = 8
	icmpEchoReply    = 0
	icmpDestUnreach  = 3
	icmpTimeExceeded = 11
)

// pingWaiters tracks identifiers a caller is blocked on via Ping, so an
// incoming echo reply can mark the matching one received. Guarded by an IRQ-safe spinlock since replies are matched
// from the driver's IRQ context.
var pingWaiters struct {
	mu      syncx.IRQSpinlock
	pending map[uint16]chan struct{}
}

func init() {
	pingWaiters.pending = make(map[uint16]chan struct{})
}

// Ping sends an ICMP echo request with the given identifier/sequence and
// returns a channel that is closed once a matching echo reply arrives.
// The caller is responsible for giving up (and calling CancelPing) on
// timeout — this package has no notion of scheduler wait queues.
func Ping(ifc *Interface, dst IPv4, id, seq uint16, data []byte) <-chan struct{} {
	done := make(chan struct{})

	st := pingWaiters.mu.Lock()
	pingWaiters.pending[id] = done
	pingWaiters.mu.Unlock(st)

	sendICMP(ifc, dst, icmpEchoRequest, 0, id, seq, data)
	return done
}

// CancelPing drops a pending identifier registered by Ping, for callers
// that timed out waiting.
func CancelPing(id uint16) {
	st := pingWaiters.mu.Lock()
	delete(pingWaiters.pending, id)
	pingWaiters.mu.Unlock(st)
}

func handleICMP(ifc *Interface, src IPv4, pkt []byte) {
	if len(pkt) < icmpHeaderLen {
		ifc.Stats.RxDropped++
		return
	}

	icmpType := pkt[0]
	code := pkt[1]
	id := binary.BigEndian.Uint16(pkt[4:6])
	seq := binary.BigEndian.Uint16(pkt[6:8])
	data := pkt[icmpHeaderLen:]

	switch icmpType {
	case icmpEchoRequest:
		if code == 0 {
			sendICMP(ifc, src, icmpEchoReply, 0, id, seq, data)
		}
	case icmpEchoReply:
		st := pingWaiters.mu.Lock()
		done, ok := pingWaiters.pending[id]
		if ok {
			delete(pingWaiters.pending, id)
		}
		pingWaiters.mu.Unlock(st)
		if ok {
			close(done)
		}
	case icmpDestUnreach:
		log.Warnf("icmp destination unreachable from %s", src)
	case icmpTimeExceeded:
		log.Warnf("icmp time exceeded from %s", src)
	default:
		log.Infof("icmp type %d from %s ignored", icmpType, src)
	}
}

// sendICMP builds an ICMP message, recomputes its checksum over the whole
// message including data, and sends it via IPv4 to dst.
func sendICMP(ifc *Interface, dst IPv4, icmpType, code uint8, id, seq uint16, data []byte) {
	msg := make([]byte, icmpHeaderLen+len(data))
	msg[0] = icmpType
	msg[1] = code
	binary.BigEndian.PutUint16(msg[2:4], 0) // checksum, filled below
	binary.BigEndian.PutUint16(msg[4:6], id)
	binary.BigEndian.PutUint16(msg[6:8], seq)
	copy(msg[icmpHeaderLen:], data)

	binary.BigEndian.PutUint16(msg[2:4], checksum16(msg))

	sendIPv4(ifc, dst, protoICMP, msg)
}
