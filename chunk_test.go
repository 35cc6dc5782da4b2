package bmalloc

import "testing"

func TestPageBase(t *testing.T) {
	pageSize := uintptr(4096)
	if got := pageBase(0x12345, pageSize); got != 0x12000 {
		t.Fatalf("pageBase(0x12345, 4096) = %#x, want 0x12000", got)
	}
	if got := pageBase(0x12000, pageSize); got != 0x12000 {
		t.Fatalf("pageBase should be idempotent on an already-aligned address, got %#x", got)
	}
}

func TestChunkContains(t *testing.T) {
	c := chunk{begin: 0x1000, size: 0x1000}
	if !c.contains(0x1000) || !c.contains(0x1fff) {
		t.Fatal("expected chunk to contain its boundary addresses")
	}
	if c.contains(0x2000) {
		t.Fatal("expected chunk to exclude its end address")
	}
}
