package bmalloc

import "github.com/bnclabs/bmalloc/api"
import "github.com/bnclabs/bmalloc/internal/vm"

// vmHeap owns a largeMap of ranges reserved from the OS but not
// currently allocated to any caller. It is consulted before any fresh
// mmap is issued, and grown a chunk (or several) at a time when empty.
type vmHeap struct {
	chunkSize uintptr
	reserved  *largeMap
	chunks    []chunk
}

func newVMHeap(chunkSize uintptr) *vmHeap {
	return &vmHeap{chunkSize: chunkSize, reserved: newLargeMap()}
}

// allocateLargeObject satisfies a size-only large request from the
// reserved pool, reserving fresh chunks from the OS on a miss.
func (h *vmHeap) allocateLargeObject(size uintptr) *largeObject {
	if obj := h.reserved.take(size); obj != nil {
		return obj
	}
	h.growBy(size)
	obj := h.reserved.take(size)
	if obj == nil {
		panicerr("vmHeap: grew by %v but still can't satisfy %v", h.chunkSize, size)
	}
	return obj
}

// allocateLargeObjectAligned satisfies an (alignment, size,
// unalignedSize) large request, reserving fresh chunks on a miss.
func (h *vmHeap) allocateLargeObjectAligned(alignment, size, unalignedSize uintptr) *largeObject {
	if obj := h.reserved.takeAligned(alignment, size, unalignedSize); obj != nil {
		return obj
	}
	h.growBy(unalignedSize + alignment)
	obj := h.reserved.takeAligned(alignment, size, unalignedSize)
	if obj == nil {
		panicerr("vmHeap: grew by %v but still can't satisfy aligned %v/%v", h.chunkSize, alignment, size)
	}
	return obj
}

// growBy reserves enough whole chunks from the OS to cover atLeast
// bytes and inserts the new range into the reserved pool.
func (h *vmHeap) growBy(atLeast uintptr) {
	size := h.chunkSize
	for size < atLeast {
		size += h.chunkSize
	}
	begin, err := vm.Reserve(vm.PageSize(), size)
	if err != nil {
		panicerr("vmHeap: reserve %v bytes: %v", size, err)
	}
	for off := uintptr(0); off < size; off += h.chunkSize {
		h.chunks = append(h.chunks, chunk{begin: begin + off, size: h.chunkSize})
	}
	h.reserved.insert(&largeObject{begin: begin, size: size, free: true, vmState: api.Virtual})
}

// deallocateLargeObject reinserts obj into the reserved pool. The
// caller must hold the Heap lock and must already have decommitted and
// retagged obj (Virtual) beforehand, while it was still private to the
// scavenger — reserved is shared with the allocate path and may only
// be mutated under lock, but the decommit syscall itself must never
// run with the lock held.
func (h *vmHeap) deallocateLargeObject(obj *largeObject) {
	h.reserved.insert(obj)
}

// owns reports whether addr falls within any chunk ever reserved from
// the OS, regardless of its current free/allocated state. Used only to
// sharpen the panic message when a caller frees an address this process
// never handed out at all, as opposed to a double free.
func (h *vmHeap) owns(addr uintptr) bool {
	for _, c := range h.chunks {
		if c.contains(addr) {
			return true
		}
	}
	return false
}
