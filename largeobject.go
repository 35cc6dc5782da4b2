package bmalloc

import "github.com/bnclabs/bmalloc/api"

// largeObject is a free or allocated mid-size range identified by its
// begin address and size. A largeMap keeps the free ones ordered by
// address, so adjacent free neighbors can always be found and merged;
// an object taken from it for allocation leaves the map.
type largeObject struct {
	begin   uintptr
	size    uintptr
	free    bool
	vmState api.VMState
}

func (o *largeObject) end() uintptr {
	return o.begin + o.size
}

// split peels off the trailing `tailSize` bytes as a new largeObject,
// shrinking o in place. Both halves keep o's free/vmState flags; the
// caller reassigns them as needed.
func (o *largeObject) split(tailSize uintptr) *largeObject {
	tail := &largeObject{
		begin:   o.begin + (o.size - tailSize),
		size:    tailSize,
		free:    o.free,
		vmState: o.vmState,
	}
	o.size -= tailSize
	return tail
}

// splitHead peels off the leading `headSize` bytes as a new
// largeObject, shrinking o (whose begin moves forward) in place.
func (o *largeObject) splitHead(headSize uintptr) *largeObject {
	head := &largeObject{
		begin:   o.begin,
		size:    headSize,
		free:    o.free,
		vmState: o.vmState,
	}
	o.begin += headSize
	o.size -= headSize
	return head
}

// canMerge reports whether o immediately precedes other in address
// space and both are free, the precondition for merge.
func (o *largeObject) canMerge(other *largeObject) bool {
	return o.free && other.free && o.end() == other.begin
}

// merge absorbs other (which must immediately follow o) into o.
func (o *largeObject) merge(other *largeObject) {
	if o.end() != other.begin {
		panicerr("largeObject.merge: non-adjacent ranges %#x+%v, %#x", o.begin, o.size, other.begin)
	}
	o.size += other.size
	if other.vmState.HasVirtual() {
		o.vmState = api.Virtual
	}
}
