// Package console is the kernel log / framebuffer console: a byte stream
// written straight through to the sink (no scrollback is kept), a leveled
// logger with a fixed tag per subsystem, and
// the path panics print through before the system halts. Four levels
// (error/warn/info/debug) over an IRQ-safe sink, since drivers log from
// interrupt context.
package console

import (
	"fmt"
	"sync/atomic"

	"github.com/geomtech/alos/internal/arch/amd64"
	"github.com/geomtech/alos/internal/syncx"
)

// Level orders log severity, least to most verbose.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "?"
	}
}

// Sink is anything the console can write printable bytes to: the boot
// framebuffer, a serial port, or (in the hosted simulator) the host's own
// terminal. Escapes are limited to newline, carriage return, backspace and
// tab.
type Sink interface {
	WriteString(s string)
}

var (
	mu       syncx.IRQSpinlock
	sink     Sink = discardSink{}
	minLevel atomic.Int32
)

func init() {
	minLevel.Store(int32(LevelInfo))
}

type discardSink struct{}

func (discardSink) WriteString(string) {}

// SetSink installs the console's output sink. Called once during boot
// once the framebuffer (or, in the hosted simulator, the host terminal)
// is available.
func SetSink(s Sink) { sink = s }

// SetLevel changes the minimum level that reaches the sink. Messages below
// the threshold are dropped before formatting to avoid wasted work on a
// hot IRQ path.
func SetLevel(l Level) { minLevel.Store(int32(l)) }

// Logger is a per-subsystem handle carrying a fixed tag.
type Logger struct {
	tag string
}

// New returns a Logger tagged with subsystem, e.g. console.New("pmm").
func New(subsystem string) *Logger {
	return &Logger{tag: subsystem}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if Level(minLevel.Load()) < level {
		return
	}
	line := fmt.Sprintf("[%-5s %s] %s\n", level, l.tag, fmt.Sprintf(format, args...))
	st := mu.Lock()
	sink.WriteString(line)
	mu.Unlock(st)
}

func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }

// Panic logs a fatal-to-the-system error at error level and halts forever
// with interrupts disabled. It never returns.
func (l *Logger) Panic(format string, args ...any) {
	l.log(LevelError, "PANIC: "+format, args...)
	amd64.DisableInterrupts()
	for {
		// Deliberately not amd64.Halt(): that variant re-enables
		// interrupts before parking so the idle thread stays
		// schedulable. A fatal-to-the-system halt must not let any
		// further interrupt run.
	}
}
