// Package mmio is the append-only registry of physical-to-virtual device
// mappings. Every driver that calls the VMM's ioremap equivalent
// registers its mapping here so overlapping requests can be detected and
// so `dump` has something to enumerate.
package mmio

import (
	"fmt"

	"github.com/geomtech/alos/internal/syncx"
)

// Entry is one registered device mapping.
type Entry struct {
	Phys  uintptr
	Virt  uintptr
	Len   uintptr
	Label string
}

func (e Entry) contains(phys uintptr) bool {
	return phys >= e.Phys && phys < e.Phys+e.Len
}

func (e Entry) overlaps(phys uintptr, length uintptr) bool {
	return phys < e.Phys+e.Len && e.Phys < phys+length
}

// Registry is the append-only {phys, virt, len, label} list. It is
// guarded by an ordinary (non-IRQ) spinlock: it is only
// ever touched from thread context during driver probe, never from an
// interrupt handler.
type Registry struct {
	mu      syncx.Spinlock
	entries []Entry
}

// ErrOverlap is returned by Register when the requested range overlaps an
// existing mapping.
type ErrOverlap struct {
	New, Existing Entry
}

func (e *ErrOverlap) Error() string {
	return fmt.Sprintf("mmio: %#x..%#x (%s) overlaps existing mapping %#x..%#x (%s)",
		e.New.Phys, e.New.Phys+e.New.Len, e.New.Label,
		e.Existing.Phys, e.Existing.Phys+e.Existing.Len, e.Existing.Label)
}

// Register records a new mapping. It fails if the range overlaps any
// existing entry, including one with the exact same (phys, len): that
// reuse decision belongs to the VMM's remap pool, which calls FindByPhys
// first.
func (r *Registry) Register(phys, virt, length uintptr, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.overlaps(phys, length) {
			return &ErrOverlap{New: Entry{Phys: phys, Virt: virt, Len: length, Label: label}, Existing: e}
		}
	}
	r.entries = append(r.entries, Entry{Phys: phys, Virt: virt, Len: length, Label: label})
	return nil
}

// Unregister removes the entry whose Virt matches virt, if any.
func (r *Registry) Unregister(virt uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.Virt == virt {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// FindByPhys returns the entry containing phys, if any.
func (r *Registry) FindByPhys(phys uintptr) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.contains(phys) {
			return e, true
		}
	}
	return Entry{}, false
}

// Dump returns a snapshot of every registered mapping, in registration
// order, for a `/proc`-style debug listing.
func (r *Registry) Dump() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
