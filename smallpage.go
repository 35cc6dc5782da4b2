package bmalloc

import "github.com/bnclabs/bmalloc/api"

// smallPage is the per-page record for a physical page used as small-
// object storage, or currently idle on the Heap's large-object free
// list awaiting promotion. Every field is protected by the Heap's
// global mutex.
type smallPage struct {
	begin        uintptr
	pageSize     uintptr
	class        int // valid only when objectType == api.Small
	objectType   api.ObjectType
	refcount     int // number of lines with a nonzero refcount
	hasFreeLines bool
	lines        []smallLine
}

func newSmallPage(begin, pageSize uintptr, numLines int) *smallPage {
	return &smallPage{
		begin:      begin,
		pageSize:   pageSize,
		objectType: api.Large,
		lines:      make([]smallLine, numLines),
	}
}

// demoteToSmall transitions a free Large page into a Small page hosting
// size class c. Caller holds the Heap lock.
func (p *smallPage) demoteToSmall(class int) {
	p.objectType = api.Small
	p.class = class
	p.refcount = 0
	p.hasFreeLines = true
	for i := range p.lines {
		p.lines[i].refcount = 0
	}
}

// promoteToLarge transitions an empty Small page back to Large so it
// can be handed to the large-object path (by the scavenger, or by the
// harvesting loop reusing an already-idle page under a different class).
func (p *smallPage) promoteToLarge() {
	p.objectType = api.Large
	p.hasFreeLines = false
	p.class = 0
}

func (p *smallPage) isEmpty() bool {
	return p.refcount == 0
}

// lineIndexForOffset returns which line a byte offset within the page
// belongs to.
func (p *smallPage) lineIndexForOffset(offset uintptr) int {
	return int(offset / lineSize)
}
