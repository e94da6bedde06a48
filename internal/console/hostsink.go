package console

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// HostSink writes console lines straight to the host terminal, with the
// terminal left in raw mode so output is unbuffered the way a real
// framebuffer console has no line discipline. This is what cmd/ksim's
// `-v` boot log writes to: a hosted console has a real terminal
// underneath it, so it can behave like the freestanding one.
type HostSink struct {
	restore func() error
}

// NewHostSink puts stdout's terminal into raw mode (best-effort: if stdout
// is not a terminal, it falls back to plain writes) and returns a sink
// that writes to it.
func NewHostSink() (*HostSink, error) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return &HostSink{restore: func() error { return nil }}, nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("console: put terminal in raw mode: %w", err)
	}
	return &HostSink{restore: func() error { return term.Restore(fd, oldState) }}, nil
}

// WriteString implements Sink. Raw mode does not translate "\n" to
// "\r\n", so it is done here explicitly — one of the console's supported
// escapes.
func (h *HostSink) WriteString(s string) {
	for _, r := range s {
		if r == '\n' {
			os.Stdout.WriteString("\r\n")
			continue
		}
		os.Stdout.WriteString(string(r))
	}
}

// Close restores the terminal's prior mode.
func (h *HostSink) Close() error { return h.restore() }
