package bmalloc

import "testing"

import "github.com/bnclabs/bmalloc/api"

func TestLargeObjectSplit(t *testing.T) {
	o := &largeObject{begin: 0x1000, size: 4096, free: true, vmState: api.Physical}
	tail := o.split(1024)

	if o.size != 3072 || o.begin != 0x1000 {
		t.Fatalf("head: got begin=%#x size=%v", o.begin, o.size)
	}
	if tail.size != 1024 || tail.begin != 0x1000+3072 {
		t.Fatalf("tail: got begin=%#x size=%v", tail.begin, tail.size)
	}
	if o.end() != tail.begin {
		t.Fatalf("split halves not adjacent: %#x != %#x", o.end(), tail.begin)
	}
}

func TestLargeObjectSplitHead(t *testing.T) {
	o := &largeObject{begin: 0x2000, size: 4096, free: true}
	head := o.splitHead(512)

	if head.begin != 0x2000 || head.size != 512 {
		t.Fatalf("head: got begin=%#x size=%v", head.begin, head.size)
	}
	if o.begin != 0x2000+512 || o.size != 4096-512 {
		t.Fatalf("remainder: got begin=%#x size=%v", o.begin, o.size)
	}
}

func TestLargeObjectMerge(t *testing.T) {
	a := &largeObject{begin: 0x1000, size: 256, free: true, vmState: api.Physical}
	b := &largeObject{begin: 0x1100, size: 256, free: true, vmState: api.Virtual}

	if !a.canMerge(b) {
		t.Fatal("expected adjacent free objects to be mergeable")
	}
	a.merge(b)
	if a.size != 512 {
		t.Fatalf("merged size = %v, want 512", a.size)
	}
	if a.vmState != api.Virtual {
		t.Fatalf("merge should pull vmState toward Virtual when either half is virtual, got %v", a.vmState)
	}
}

func TestLargeObjectCanMergeRejectsNonAdjacent(t *testing.T) {
	a := &largeObject{begin: 0x1000, size: 256, free: true}
	b := &largeObject{begin: 0x2000, size: 256, free: true}
	if a.canMerge(b) {
		t.Fatal("non-adjacent ranges should not be mergeable")
	}
}
