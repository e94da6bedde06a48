package vmm

import "github.com/geomtech/alos/internal/pmm"

// fakePhysMem backs page-table frames with an ordinary Go map keyed by
// frame index, so hosted tests can build and walk real page-table trees
// without a real physical address space underneath them. A frame that has
// never been written reads as an all-zero table, matching a freshly
// allocated frame (the PMM never zeroes frames itself; callers that need
// a zeroed table do it explicitly, same as here).
type fakePhysMem struct {
	tables map[pmm.Frame]*PageTable
}

// NewFakePhysMem constructs an empty arena-backed resolver.
func NewFakePhysMem() PhysMem {
	return &fakePhysMem{tables: map[pmm.Frame]*PageTable{}}
}

func (m *fakePhysMem) Table(f pmm.Frame) *PageTable {
	t, ok := m.tables[f]
	if !ok {
		t = &PageTable{}
		m.tables[f] = t
	}
	return t
}
