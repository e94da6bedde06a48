//go:build amd64 && kernel

// Command kernel is the real freestanding entry point: a thin wrapper
// around internal/core.Boot that runs against the real
// internal/arch/amd64 leaf implementations instead of the hosted fakes
// cmd/ksim exercises. The Limine-class bootloader handoff itself — the
// protocol used to request the memory map, HHDM offset, and framebuffer
// — is an out-of-scope external collaborator; bootResponse
// is where that glue would populate a *bootinfo.Response before main
// runs.
package main

import (
	"github.com/geomtech/alos/internal/arch/amd64"
	"github.com/geomtech/alos/internal/bootinfo"
	"github.com/geomtech/alos/internal/core"
)

const (
	defaultTickHz  = 1000
	kernelMMIOBase = 0xFFFF_9000_0000_0000
	kernelMMIOSize = 16 << 20
)

// bootResponse is populated by the bootloader handoff glue before main
// runs. It is a package variable rather than a main() parameter because
// the freestanding entry stub that calls into this package has no
// argument-passing convention to speak of: it is invoked the way the
// loader's protocol dictates, not the way a hosted `go build` binary is.
var bootResponse *bootinfo.Response

func main() {
	resp := bootResponse
	if resp == nil {
		resp = &bootinfo.Response{}
	}

	maxPhys := uint64(0)
	for _, e := range resp.MemoryMap {
		if end := e.Base + e.Length; end > maxPhys {
			maxPhys = end
		}
	}

	core.Boot(resp, core.Config{
		MaxPhys:  maxPhys,
		TickHz:   defaultTickHz,
		MMIOBase: kernelMMIOBase,
		MMIOSize: kernelMMIOSize,
	})

	amd64.EnableInterruptsFn()
	for {
		amd64.Halt()
	}
}
