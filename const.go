package bmalloc

// lineSize is the granularity at which a SmallPage's lines are
// refcounted. Fixed regardless of physical page size.
const lineSize = 256

// minObjectAlignment is the coarsest alignment every returned pointer
// satisfies, small or large.
const minObjectAlignment = 16

// defaultSmallMax is the upper bound of the small tier: requests at or
// below this size are serviced by a size-class bump allocator.
const defaultSmallMax = 1024

// defaultLargeMin is the lower bound of the large tier. Requests below
// this size but above defaultSmallMax do not occur: smallMax and
// largeMin coincide in this port, matching the literal values used by
// spec.md's end-to-end scenarios.
const defaultLargeMin = 1024

// defaultLargeMax is the upper bound of the large tier; requests above
// this fall through to the extra-large path. Must be at most half of
// chunkSize.
const defaultLargeMax = 256 * 1024

// defaultLargeAlignment is the unit every large-object size and every
// large-object address is rounded to.
const defaultLargeAlignment = 16

// defaultChunkSize is the unit of virtual-memory reservation. Small-page
// metadata is found by the address's page base, not its chunk base.
const defaultChunkSize = 2 * 1024 * 1024

// defaultXLargeAlignment is the alignment every extra-large range is
// rounded up to.
const defaultXLargeAlignment = 2 * 1024 * 1024

// defaultXLargeMax bounds the alignment accepted by the extra-large
// path; requests for larger alignments are rejected.
const defaultXLargeMax = 1 << 40

// defaultObjectLogCapacity is the fixed size of a thread's deallocation
// FIFO before it must drain under the Heap lock.
const defaultObjectLogCapacity = 512

// defaultBumpRangeCacheCapacity is how many extra BumpRanges a refill
// stashes alongside the one handed to the active BumpAllocator.
const defaultBumpRangeCacheCapacity = 4

// defaultScavengeSleep paces the scavenger's quiescence poll and its
// per-cycle sleep.
const defaultScavengeSleep = 250
