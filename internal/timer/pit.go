// Package timer owns the two clock sources: the
// legacy PIT as the periodic tick that drives scheduling, and the CMOS
// RTC as the on-demand wall clock. Neither keeps its own notion of
// "now" beyond what the hardware can answer; internal/sched owns the
// monotonic tick counter this package feeds.
package timer

import (
	"time"

	"github.com/geomtech/alos/internal/arch/amd64"
	"github.com/geomtech/alos/internal/console"
	"github.com/geomtech/alos/internal/irq"
	"github.com/geomtech/alos/internal/sched"
)

var log = console.New("timer")

// PIT channel 0 ports and its fixed input frequency.
const (
	pitCommandPort = 0x43
	pitChannel0    = 0x40
	pitCommandByte = 0x36 // channel 0, lobyte/hibyte, mode 3 (square wave)
	pitBaseHz      = 1193182
)

var hz int

// Init programs the PIT to fire at the given frequency and registers the
// IRQ0 handler that drives the scheduler's tick. hz is clamped into the
// 16-bit divisor PIT channel 0 accepts.
func Init(wantHz int) {
	hz = wantHz
	divisor := computeDivisor(wantHz)

	amd64.Ports.Out8(pitCommandPort, pitCommandByte)
	amd64.Ports.Out8(pitChannel0, uint8(divisor&0xFF))
	amd64.Ports.Out8(pitChannel0, uint8(divisor>>8))

	irq.RegisterIRQ(0, handleTick)
}

// computeDivisor converts a desired tick frequency into the 16-bit divisor
// PIT channel 0 latches, clamped into range.
func computeDivisor(wantHz int) uint16 {
	divisor := pitBaseHz / wantHz
	if divisor > 0xFFFF {
		divisor = 0xFFFF
	}
	if divisor < 1 {
		divisor = 1
	}
	return uint16(divisor)
}

// handleTick is IRQ0's handler: advance the scheduler's tick counter. EOI
// is sent by irq.Dispatch after this returns,
// so the PIT (edge-triggered, no device-side cause to clear) needs to do
// nothing else here.
func handleTick(f *irq.Frame) {
	if sched.S != nil {
		sched.S.Tick()
	}
}

// UptimeMillis returns elapsed milliseconds since the tick counter
// started, short-circuiting the common hz==1000 case by returning the
// tick count unchanged.
func UptimeMillis() uint64 {
	ticks := sched.S.Ticks()
	if hz == 1000 {
		return ticks
	}
	return ticks * 1000 / uint64(hz)
}

// Now returns a monotonic reading with no wall-clock component, for
// computing wake_tick deadlines from a caller-supplied duration
// (join_timeout, sem_timedwait, condvar_timedwait all want this, not
// ReadWallClock's RTC snapshot).
func Now() time.Duration {
	return time.Duration(UptimeMillis()) * time.Millisecond
}
