package vmm

import (
	"github.com/geomtech/alos/internal/arch/amd64"
	"github.com/geomtech/alos/internal/console"
)

// faultLog is shared by every address space; a page fault is always
// fatal-to-the-system in this port (no demand paging, no copy-on-write
// resolution on a cloned address space), so there is no per-address-space
// state to thread through here.
var faultLog = console.New("vmm")

// Fault error-code bits, x86-64 §4.7 (SDM).
const (
	faultPresent  = 1 << 0 // 0: no translation existed. 1: protection violation
	faultWrite    = 1 << 1 // 0: read access. 1: write access
	faultUser     = 1 << 2 // 0: supervisor mode. 1: user mode
	faultReserved = 1 << 3 // reserved bit set in some paging entry
	faultFetch    = 1 << 4 // instruction fetch
)

// HandlePageFault is installed as vector 14's handler by internal/irq. The
// faulting linear address comes from CR2 (amd64.ReadCR2Fn).
//
// No fault is currently recoverable: this port never grows a stack lazily,
// never demand-pages a mapped-but-absent range, and Clone's shallow-copy
// means a write fault on a cloned user page has no copy-on-write path to
// take. Every fault is therefore logged and fatal. The decode is kept
// separate from the log call so a future handler that DOES resolve a
// fault class (stack growth, COW) can switch on these booleans without
// touching the decode logic.
func HandlePageFault(errCode uint64) {
	addr := amd64.ReadCR2Fn()
	present := errCode&faultPresent != 0
	write := errCode&faultWrite != 0
	user := errCode&faultUser != 0
	fetch := errCode&faultFetch != 0

	action := "read"
	if write {
		action = "write"
	}
	if fetch {
		action = "fetch"
	}
	mode := "kernel"
	if user {
		mode = "user"
	}
	cause := "no mapping"
	if present {
		cause = "protection violation"
	}

	faultLog.Panic("page fault: %s %s at %#x (%s)", mode, action, addr, cause)
}
