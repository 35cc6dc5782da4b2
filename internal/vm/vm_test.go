package vm

import "testing"

func TestReserveCommitDecommit(t *testing.T) {
	size := 4 * PageSizePhysical()
	begin, err := Reserve(PageSize(), size)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer Release(begin, size)

	if begin%PageSize() != 0 {
		t.Fatalf("Reserve returned unaligned address %x", begin)
	}

	if err := Commit(begin, size); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	buf := toBytes(begin, size)
	for i := range buf {
		buf[i] = 0xAB
	}

	if err := DecommitSloppy(begin, size); err != nil {
		t.Fatalf("DecommitSloppy: %v", err)
	}
}

func TestReserveAligned(t *testing.T) {
	alignment := 2 * 1024 * 1024
	begin, err := Reserve(uintptr(alignment), uintptr(alignment))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer Release(begin, uintptr(alignment))

	if begin%uintptr(alignment) != 0 {
		t.Fatalf("Reserve(%v) returned unaligned address %x", alignment, begin)
	}
}

func TestPageSize(t *testing.T) {
	if PageSizePhysical() == 0 {
		t.Fatal("PageSizePhysical() returned 0")
	}
	if PageSize() != PageSizePhysical() {
		t.Fatalf("PageSize() = %v, want %v", PageSize(), PageSizePhysical())
	}
}
