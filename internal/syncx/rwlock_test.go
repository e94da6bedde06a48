package syncx

import "testing"

func TestRwlockMultipleReaders(t *testing.T) {
	fs := newFakeScheduler()
	SetScheduler(fs)
	fs.register(1, prioNormal)

	l := NewRwlock(PreferWriter)
	l.ReadLock()
	l.ReadLock()
	if got := l.ReaderCount(); got != 2 {
		t.Fatalf("reader count = %d, want 2", got)
	}
	l.ReadUnlock()
	l.ReadUnlock()
	if got := l.ReaderCount(); got != 0 {
		t.Fatalf("reader count = %d, want 0", got)
	}
}

func TestRwlockUpgradeOnlyWhenUniqueReader(t *testing.T) {
	fs := newFakeScheduler()
	SetScheduler(fs)
	fs.register(1, prioNormal)

	l := NewRwlock(PreferWriter)
	l.ReadLock()
	if !l.TryUpgrade() {
		t.Fatal("upgrade should succeed for the unique reader")
	}
	l.WriteUnlock()

	l.ReadLock()
	l.ReadLock()
	if l.TryUpgrade() {
		t.Fatal("upgrade must fail with more than one reader")
	}
	l.ReadUnlock()
	l.ReadUnlock()
}

func TestRwlockWriteExcludesReaders(t *testing.T) {
	fs := newFakeScheduler()
	SetScheduler(fs)
	fs.register(1, prioNormal)

	l := NewRwlock(PreferWriter)
	l.WriteLock()
	if l.ReaderCount() != 0 {
		t.Fatalf("reader count = %d while writer active", l.ReaderCount())
	}
	l.WriteUnlock()
}
