// Package bmalloc implements a general-purpose process memory
// allocator sitting between application code and the OS's
// virtual-memory primitives.
//
// Small requests (<= smallmax) are serviced from per-thread bump
// allocators carved out of 256-byte lines within a physical page.
// Mid-size requests are managed as an address-ordered free list of
// large objects, coalesced on free. Requests above largemax are mapped
// directly as page-aligned extra-large ranges. A background scavenger
// goroutine returns physical pages to the OS once the live footprint
// shrinks.
//
// api:
//
// The Allocator contract bmalloc implements, plus the ObjectType and
// VMState enums shared across packages.
//
// internal/vm:
//
// The four virtual-memory primitives (reserve, commit, decommit,
// page size) bmalloc needs from the OS, backed by golang.org/x/sys/unix.
//
// lib:
//
// Rounding, stacktrace and running-statistics helpers used throughout
// the allocator. Shall not import packages other than golang's
// standard packages.
package bmalloc
