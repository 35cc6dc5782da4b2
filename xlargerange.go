package bmalloc

import "github.com/bnclabs/bmalloc/api"

// xLargeRange is a huge, page-aligned virtual-memory extent. Its VM
// state is tracked independently of whether it is currently allocated,
// because the scavenger flips Physical ranges back to Virtual without
// touching the free/allocated side.
type xLargeRange struct {
	begin   uintptr
	size    uintptr
	vmState api.VMState
}

func (r xLargeRange) end() uintptr {
	return r.begin + r.size
}

func (r xLargeRange) adjacent(other xLargeRange) bool {
	return r.end() == other.begin
}
