package bmalloc

import "sort"

// xLargeAllocated pairs an allocated range with the unaligned
// fragments split off to satisfy its alignment, so a later
// deallocateXLarge can recover and coalesce all three as one unit. Both
// prev and next are nil when the allocation needed no trimming.
type xLargeAllocated struct {
	prev      *xLargeRange
	allocated xLargeRange
	next      *xLargeRange
}

// xLargeMap indexes free xLargeRanges by address (coalescing same-
// vmState neighbors) and allocated ranges by their begin address.
type xLargeMap struct {
	free      []xLargeRange
	allocated map[uintptr]*xLargeAllocated
}

func newXLargeMap() *xLargeMap {
	return &xLargeMap{allocated: make(map[uintptr]*xLargeAllocated)}
}

func (m *xLargeMap) indexOf(begin uintptr) int {
	return sort.Search(len(m.free), func(i int) bool {
		return m.free[i].begin >= begin
	})
}

// insertFree adds r to the free side, coalescing with an address-
// adjacent neighbor only when both carry the same vmState — merging a
// Physical range into a Virtual one (or vice versa) would misreport
// committed footprint.
func (m *xLargeMap) insertFree(r xLargeRange) {
	i := m.indexOf(r.begin)
	m.free = append(m.free, xLargeRange{})
	copy(m.free[i+1:], m.free[i:])
	m.free[i] = r

	if i+1 < len(m.free) && m.free[i].vmState == m.free[i+1].vmState && m.free[i].adjacent(m.free[i+1]) {
		m.free[i].size += m.free[i+1].size
		m.free = append(m.free[:i+1], m.free[i+2:]...)
	}
	if i > 0 && m.free[i-1].vmState == m.free[i].vmState && m.free[i-1].adjacent(m.free[i]) {
		m.free[i-1].size += m.free[i].size
		m.free = append(m.free[:i], m.free[i+1:]...)
	}
}

// takeFree removes and returns a free range that contains an alignment-
// aligned size-byte region, whole (unaligned head/tail trimming is the
// caller's job), or false.
func (m *xLargeMap) takeFree(alignment, size uintptr) (xLargeRange, bool) {
	for i, r := range m.free {
		alignedBegin := (r.begin + alignment - 1) &^ (alignment - 1)
		if alignedBegin+size <= r.end() {
			m.free = append(m.free[:i], m.free[i+1:]...)
			return r, true
		}
	}
	return xLargeRange{}, false
}

// takePhysical removes and returns one Physical-tagged free range, for
// the scavenger to decommit.
func (m *xLargeMap) takePhysical() (xLargeRange, bool) {
	for i, r := range m.free {
		if r.vmState.HasPhysical() {
			m.free = append(m.free[:i], m.free[i+1:]...)
			return r, true
		}
	}
	return xLargeRange{}, false
}

func (m *xLargeMap) addAllocated(prev *xLargeRange, allocated xLargeRange, next *xLargeRange) {
	m.allocated[allocated.begin] = &xLargeAllocated{prev: prev, allocated: allocated, next: next}
}

func (m *xLargeMap) takeAllocated(begin uintptr) (*xLargeAllocated, bool) {
	e, ok := m.allocated[begin]
	if ok {
		delete(m.allocated, begin)
	}
	return e, ok
}

func (m *xLargeMap) xLargeSize(begin uintptr) (uintptr, bool) {
	e, ok := m.allocated[begin]
	if !ok {
		return 0, false
	}
	return e.allocated.size, true
}

func (m *xLargeMap) isAllocated(begin uintptr) bool {
	_, ok := m.allocated[begin]
	return ok
}

// shrinkToFit trims the free slice's backing array once it has grown
// much larger than its live length, following the scavenger's periodic
// cleanup call in the source.
func (m *xLargeMap) shrinkToFit() {
	if len(m.free) > 0 && cap(m.free) > len(m.free)*2 {
		shrunk := make([]xLargeRange, len(m.free))
		copy(shrunk, m.free)
		m.free = shrunk
	}
}
