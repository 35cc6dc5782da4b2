// Package vm wraps the four operations bmalloc needs from the OS's
// virtual-memory subsystem: reserve address space aligned to a boundary,
// commit physical pages to a range, decommit physical pages from a range
// (lazily, sloppily), and query the physical page size. Everything above
// this package treats these as primitives; nothing above it talks to the
// kernel directly.
package vm

import "fmt"
import "sync"
import "unsafe"

import "golang.org/x/sys/unix"

var pageSizeOnce sync.Once
var pageSizePhysical uintptr

// PageSizePhysical returns the OS's physical page size.
func PageSizePhysical() uintptr {
	pageSizeOnce.Do(func() {
		pageSizePhysical = uintptr(unix.Getpagesize())
	})
	return pageSizePhysical
}

// PageSize returns the granularity at which virtual memory can be
// reserved. On the platforms bmalloc targets this is the same as the
// physical page size.
func PageSize() uintptr {
	return PageSizePhysical()
}

// Reserve maps `size` bytes of address space aligned to `alignment`,
// backed by no physical memory (PROT_NONE). alignment must be a power
// of two. Returns 0 on failure.
func Reserve(alignment, size uintptr) (uintptr, error) {
	if alignment <= PageSize() {
		begin, err := mmapNone(size)
		if err != nil {
			return 0, err
		}
		return begin, nil
	}

	// Overallocate by alignment so we can trim an aligned sub-range out
	// of whatever the kernel handed back, then return the slack.
	oversize := size + alignment
	begin, err := mmapNone(oversize)
	if err != nil {
		return 0, err
	}

	aligned := (begin + alignment - 1) &^ (alignment - 1)
	if head := aligned - begin; head > 0 {
		if err := munmap(begin, head); err != nil {
			return 0, fmt.Errorf("vm: munmap head: %w", err)
		}
	}
	if tail := (begin + oversize) - (aligned + size); tail > 0 {
		if err := munmap(aligned+size, tail); err != nil {
			return 0, fmt.Errorf("vm: munmap tail: %w", err)
		}
	}
	return aligned, nil
}

// Release unmaps a range previously obtained from Reserve, returning
// the address space itself to the OS. Nothing in bmalloc calls it; it
// exists for symmetry and tests.
func Release(begin, size uintptr) error {
	return munmap(begin, size)
}

// munmap unmaps [begin, begin+size) with the raw system call, since
// unix.Munmap only accepts the exact slices unix.Mmap returned, not
// trimmed or re-sliced sub-ranges of them.
func munmap(begin, size uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_MUNMAP, begin, size, 0); errno != 0 {
		return errno
	}
	return nil
}

// Commit backs [begin, begin+size) with physical pages, allowing reads
// and writes. The range must have come from Reserve.
func Commit(begin, size uintptr) error {
	if size == 0 {
		return nil
	}
	return unix.Mprotect(toBytes(begin, size), unix.PROT_READ|unix.PROT_WRITE)
}

// DecommitSloppy returns physical pages backing [begin, begin+size) to
// the OS while keeping the virtual reservation intact. Because begin and
// size need not be page-aligned, up to one physical page at each end of
// the range may remain committed ("sloppy" decommit).
func DecommitSloppy(begin, size uintptr) error {
	if size == 0 {
		return nil
	}
	pageSize := PageSizePhysical()
	alignedBegin := RoundUpToPage(begin, pageSize)
	end := begin + size
	alignedEnd := (end / pageSize) * pageSize
	if alignedEnd <= alignedBegin {
		return nil
	}
	if err := unix.Madvise(toBytes(alignedBegin, alignedEnd-alignedBegin), unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("vm: madvise dontneed: %w", err)
	}
	return nil
}

// RoundUpToPage rounds begin up to the next multiple of pageSize.
func RoundUpToPage(begin, pageSize uintptr) uintptr {
	return (begin + pageSize - 1) &^ (pageSize - 1)
}

func mmapNone(size uintptr) (uintptr, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("vm: mmap: %w", err)
	}
	return uintptr(unsafe.Pointer(&data[0])), nil
}

// toBytes reconstructs a []byte view over a previously reserved range
// so it can be handed to unix.Mprotect/Madvise, which both take
// slices rather than raw addresses.
func toBytes(begin, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(begin)), int(size))
}
