//go:build amd64 && kernel

package sched

import (
	"unsafe"

	"github.com/geomtech/alos/internal/arch/amd64"
)

// Real dispatch: each thread's context is a saved stack pointer, and
// switching is amd64.SwitchContextFn's register push/pop. The boot thread's initial SP is whatever the CPU is already
// using when Init runs; it only gets populated into savedSP the first
// time something switches away from it.
func bootAsCurrent(t *Thread) {}

// funcPC extracts a Go function value's code pointer by exploiting that a
// func value is itself a pointer to a single-word struct holding the code
// address — the same trick a handful of bare-metal Go kernels use to seed
// an initial stack frame without reflect, which needs more runtime support
// than a freestanding build provides.
func funcPC(f func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&f))
}

// startThread builds an initial stack frame matching exactly what
// amd64.SwitchContextFn's epilogue pops (R15, R14, R13, R12, BX, BP, then
// a return address for RET), so the very first dispatch of a freshly
// created thread converges on the same code path as an ordinary switch
//. The return address points at threadTrampoline,
// which reads the now-current thread off the scheduler and calls
// entry(arg).
func startThread(t *Thread) {
	top := uintptr(unsafe.Pointer(&t.stack[len(t.stack)-1]))
	top &^= 0xf // 16-byte align per the SysV ABI

	const frameWords = 7
	sp := top - frameWords*8
	frame := (*[frameWords]uintptr)(unsafe.Pointer(sp))
	frame[0] = 0 // R15
	frame[1] = 0 // R14
	frame[2] = 0 // R13
	frame[3] = 0 // R12
	frame[4] = 0 // BX
	frame[5] = 0 // BP
	frame[6] = funcPC(threadTrampoline)
	t.savedSP = sp
}

// threadTrampoline is the landing pad for a thread's very first dispatch.
// It takes no arguments — SwitchContextFn's RET lands here with no
// information except "I am now running" — so it reads S.current, which
// the scheduler always sets before handing control to a thread.
func threadTrampoline() {
	t := S.current
	t.entry(t.arg)
	S.Exit(0)
}

func switchThread(prev, next *Thread) {
	amd64.SwitchContextFn(&prev.savedSP, next.savedSP)
}
