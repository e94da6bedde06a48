package console

import (
	"strings"
	"testing"
)

type bufSink struct{ lines []string }

func (b *bufSink) WriteString(s string) { b.lines = append(b.lines, s) }

func TestLevelFiltering(t *testing.T) {
	buf := &bufSink{}
	SetSink(buf)
	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	l := New("pmm")
	l.Debugf("should not appear")
	l.Infof("should not appear either")
	l.Warnf("boundary of the memory map is odd")
	l.Errorf("out of frames")

	if len(buf.lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(buf.lines), buf.lines)
	}
	if !strings.Contains(buf.lines[0], "WARN") || !strings.Contains(buf.lines[0], "pmm") {
		t.Fatalf("unexpected line: %q", buf.lines[0])
	}
	if !strings.Contains(buf.lines[1], "ERROR") {
		t.Fatalf("unexpected line: %q", buf.lines[1])
	}
}
