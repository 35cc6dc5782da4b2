package bmalloc

import "testing"

import "github.com/bnclabs/bmalloc/api"

func TestSmallPageDemotePromote(t *testing.T) {
	p := newSmallPage(0x10000, 4096, 16)
	if p.objectType != api.Large {
		t.Fatal("fresh smallPage should start tagged Large")
	}

	p.demoteToSmall(3)
	if p.objectType != api.Small || p.class != 3 || !p.hasFreeLines {
		t.Fatalf("demoteToSmall left unexpected state: %+v", p)
	}
	for i, line := range p.lines {
		if line.refcount != 0 {
			t.Fatalf("line %v refcount = %v after demote, want 0", i, line.refcount)
		}
	}

	p.lines[0].refcount = 5
	p.refcount = 5
	p.promoteToLarge()
	if p.objectType != api.Large || p.hasFreeLines {
		t.Fatalf("promoteToLarge left unexpected state: %+v", p)
	}
}

func TestSmallPageLineIndexForOffset(t *testing.T) {
	p := newSmallPage(0x10000, 4096, 16)
	if idx := p.lineIndexForOffset(0); idx != 0 {
		t.Fatalf("offset 0 -> line %v, want 0", idx)
	}
	if idx := p.lineIndexForOffset(lineSize); idx != 1 {
		t.Fatalf("offset %v -> line %v, want 1", lineSize, idx)
	}
	if idx := p.lineIndexForOffset(lineSize + 10); idx != 1 {
		t.Fatalf("offset %v -> line %v, want 1", lineSize+10, idx)
	}
}

func TestSmallPageIsEmpty(t *testing.T) {
	p := newSmallPage(0x10000, 4096, 16)
	if !p.isEmpty() {
		t.Fatal("fresh page should be empty")
	}
	p.refcount = 1
	if p.isEmpty() {
		t.Fatal("page with refcount 1 should not be empty")
	}
}
