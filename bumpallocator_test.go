package bmalloc

import "testing"

func TestBumpAllocatorRefillAndAllocate(t *testing.T) {
	a := newBumpAllocator(16)
	if a.canAllocate() {
		t.Fatal("fresh bumpAllocator should not be able to allocate")
	}

	a.refill(bumpRange{begin: 0x1000, objectCount: 3})
	seen := map[uintptr]bool{}
	for i := 0; i < 3; i++ {
		if !a.canAllocate() {
			t.Fatalf("expected canAllocate() true on iteration %v", i)
		}
		p := a.allocate()
		if seen[p] {
			t.Fatalf("allocate() returned duplicate address %#x", p)
		}
		seen[p] = true
	}
	if a.canAllocate() {
		t.Fatal("expected range to be exhausted after 3 allocations")
	}
}

func TestBumpAllocatorAllocateOnExhaustedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic allocating from an exhausted bumpAllocator")
		}
	}()
	newBumpAllocator(16).allocate()
}
