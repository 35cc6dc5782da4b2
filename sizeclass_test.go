package bmalloc

import "testing"

func TestSizeClassTableMonotonic(t *testing.T) {
	table := newSizeClassTable(1024)
	if table.numClasses() == 0 {
		t.Fatal("expected at least one size class")
	}
	prev := uintptr(0)
	for c := 0; c < table.numClasses(); c++ {
		sz := table.objectSize(c)
		if sz <= prev {
			t.Fatalf("class %v size %v not strictly greater than previous %v", c, sz, prev)
		}
		if sz%minObjectAlignment != 0 {
			t.Fatalf("class %v size %v not aligned to %v", c, sz, minObjectAlignment)
		}
		prev = sz
	}
	if last := table.objectSize(table.numClasses() - 1); last != 1024 {
		t.Fatalf("expected last class to be smallMax 1024, got %v", last)
	}
}

func TestSizeClassTableClassForRoundsUp(t *testing.T) {
	table := newSizeClassTable(1024)
	for _, size := range []uintptr{1, 15, 16, 17, 300, 1023, 1024} {
		class := table.classFor(size)
		got := table.objectSize(class)
		if got < size {
			t.Fatalf("classFor(%v) = class %v sized %v, smaller than request", size, class, got)
		}
		if class > 0 && table.objectSize(class-1) >= size {
			t.Fatalf("classFor(%v) picked class %v (%v) but class %v (%v) already fits",
				size, class, got, class-1, table.objectSize(class-1))
		}
	}
}
