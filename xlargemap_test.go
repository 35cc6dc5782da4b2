package bmalloc

import "testing"

import "github.com/bnclabs/bmalloc/api"

func TestXLargeMapTakeFreeAndAddAllocated(t *testing.T) {
	m := newXLargeMap()
	m.insertFree(xLargeRange{begin: 0x200000, size: 4 * 0x200000, vmState: api.Virtual})

	r, ok := m.takeFree(0x200000, 0x200000)
	if !ok {
		t.Fatal("expected a free range")
	}
	m.addAllocated(nil, xLargeRange{begin: r.begin, size: 0x200000, vmState: api.Physical}, nil)

	if !m.isAllocated(r.begin) {
		t.Fatal("expected range to be tracked as allocated")
	}
	size, ok := m.xLargeSize(r.begin)
	if !ok || size != 0x200000 {
		t.Fatalf("xLargeSize = (%v, %v), want (0x200000, true)", size, ok)
	}
}

func TestXLargeMapInsertFreeCoalescesSameVMState(t *testing.T) {
	m := newXLargeMap()
	m.insertFree(xLargeRange{begin: 0x1000, size: 0x1000, vmState: api.Virtual})
	m.insertFree(xLargeRange{begin: 0x2000, size: 0x1000, vmState: api.Virtual})

	if len(m.free) != 1 {
		t.Fatalf("expected coalesced into 1 entry, got %v", len(m.free))
	}
	if m.free[0].size != 0x2000 {
		t.Fatalf("expected merged size 0x2000, got %#x", m.free[0].size)
	}
}

func TestXLargeMapInsertFreeDoesNotCoalesceMixedVMState(t *testing.T) {
	m := newXLargeMap()
	m.insertFree(xLargeRange{begin: 0x1000, size: 0x1000, vmState: api.Physical})
	m.insertFree(xLargeRange{begin: 0x2000, size: 0x1000, vmState: api.Virtual})

	if len(m.free) != 2 {
		t.Fatalf("expected no coalescing across vmState, got %v entries", len(m.free))
	}
}

func TestXLargeMapTakePhysical(t *testing.T) {
	m := newXLargeMap()
	m.insertFree(xLargeRange{begin: 0x1000, size: 0x1000, vmState: api.Virtual})
	m.insertFree(xLargeRange{begin: 0x200000, size: 0x1000, vmState: api.Physical})

	r, ok := m.takePhysical()
	if !ok || r.vmState != api.Physical {
		t.Fatalf("expected to take the Physical entry, got %v ok=%v", r, ok)
	}
	if _, ok := m.takePhysical(); ok {
		t.Fatal("expected no more Physical entries")
	}
}

func TestXLargeMapTakeAllocatedRoundTrip(t *testing.T) {
	m := newXLargeMap()
	allocated := xLargeRange{begin: 0x400000, size: 0x200000, vmState: api.Physical}
	m.addAllocated(nil, allocated, nil)

	entry, ok := m.takeAllocated(0x400000)
	if !ok || entry.allocated != allocated {
		t.Fatalf("takeAllocated mismatch: %v ok=%v", entry, ok)
	}
	if m.isAllocated(0x400000) {
		t.Fatal("expected entry to be gone after takeAllocated")
	}
}
