// Command ksim is the hosted simulator: an ordinary Go program (not a
// freestanding kernel image) that runs internal/core.Boot against the
// amd64 package's hosted fakes instead of real hardware. It exists to
// exercise the PMM/VMM/scheduler/net stack end to end without a
// bootloader or a CPU.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/geomtech/alos/internal/bootinfo"
	"github.com/geomtech/alos/internal/console"
	"github.com/geomtech/alos/internal/core"
	"github.com/geomtech/alos/internal/net"
	"github.com/geomtech/alos/internal/sched"
)

func main() {
	verbose := flag.Bool("v", false, "enable debug-level console logging")
	hz := flag.Int("hz", 1000, "simulated timer frequency in Hz")
	frames := flag.Uint64("frames", 16*1024*1024, "simulated physical memory size in bytes")
	interactive := flag.Bool("interactive", false, "feed host keystrokes into the console input ring")
	flag.Parse()

	sink, err := console.NewHostSink()
	if err != nil {
		log.Fatalf("ksim: could not set up host console sink: %v", err)
	}
	defer sink.Close()
	console.SetSink(sink)
	if *verbose {
		console.SetLevel(console.LevelDebug)
	}

	printIfVerbose(*verbose, "booting simulated kernel at %d Hz with %d bytes of memory...", *hz, *frames)

	resp := &bootinfo.Response{
		MemoryMap: []bootinfo.MemMapEntry{
			{Base: 0, Length: *frames, Type: bootinfo.Usable},
		},
	}

	k := core.Boot(resp, core.Config{
		MaxPhys:  *frames,
		TickHz:   *hz,
		MMIOBase: 0xFFFF_8000_0000_0000,
		MMIOSize: 1 << 20,
	})
	k.Net.MAC = net.MAC{0x52, 0x54, 0x00, 0x12, 0x34, 0x56}
	k.Net.Send = func(frame []byte) {
		printIfVerbose(*verbose, "tx: %d byte frame", len(frame))
	}

	var input console.InputRing
	if *interactive {
		go feedKeyboard(&input)
		go drainInput(&input, *verbose)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(*hz))
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sched.S.Tick()
			case <-done:
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	printIfVerbose(*verbose, "kernel running, ^C to stop")
	<-sigCh
	close(done)
	printIfVerbose(*verbose, "stopped")
}

func feedKeyboard(ring *console.InputRing) {
	for {
		ch, key, err := keyboard.GetSingleKey()
		if err != nil {
			return
		}
		if key == keyboard.KeyCtrlC {
			return
		}
		ring.Push(byte(ch))
	}
}

func drainInput(ring *console.InputRing, verbose bool) {
	for {
		if b, ok := ring.Pop(); ok {
			printIfVerbose(verbose, "console rx: %q", b)
			continue
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func printIfVerbose(verbose bool, format string, v ...interface{}) {
	if verbose {
		log.Printf(format, v...)
	}
}
