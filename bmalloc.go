package bmalloc

import "sync"

import "github.com/bnclabs/bmalloc/api"
import s "github.com/bnclabs/gosettings"

// process exposes the process-wide singleton Heap and the per-thread
// allocator/deallocator pools built on it. Go has no OS thread-local
// storage, so a sync.Pool stands in for it: within the span between a
// Get and its matching Put, an allocator/deallocator behaves exactly
// like a pinned per-thread one, and sync.Pool's own per-P local caches
// mean contention on the pool itself stays rare.
type process struct {
	heap  *Heap
	allocs sync.Pool
	deallocs sync.Pool
}

var defaultProcess *process
var once sync.Once

// Init starts the process-wide Heap with the given settings; nil uses
// Defaultsettings(). Safe to call more than once — only the first call
// takes effect. Most callers never need to call this directly: it runs
// lazily, with Defaultsettings(), on first use of Allocate/Deallocate/etc.
func Init(setts s.Settings) {
	once.Do(func() { defaultProcess = newProcess(setts) })
}

func ensureProcess() *process {
	once.Do(func() { defaultProcess = newProcess(nil) })
	return defaultProcess
}

func newProcess(setts s.Settings) *process {
	h := NewHeap(setts)
	p := &process{heap: h}
	p.allocs.New = func() interface{} { return newAllocator(h) }
	p.deallocs.New = func() interface{} { return newDeallocator(h) }
	return p
}

// Allocate returns a non-zero address of at least size bytes, or
// panics if the Heap cannot satisfy the request.
func Allocate(size uintptr) uintptr {
	p := ensureProcess()
	a := p.allocs.Get().(*allocator)
	defer p.allocs.Put(a)
	return a.allocate(size)
}

// TryAllocate returns 0 instead of panicking on failure.
func TryAllocate(size uintptr) uintptr {
	p := ensureProcess()
	a := p.allocs.Get().(*allocator)
	defer p.allocs.Put(a)
	addr, ok := a.tryAllocate(size)
	if !ok {
		return 0
	}
	return addr
}

// AllocateAligned returns an address aligned to alignment (a power of
// two), or panics.
func AllocateAligned(alignment, size uintptr) uintptr {
	p := ensureProcess()
	a := p.allocs.Get().(*allocator)
	defer p.allocs.Put(a)
	return a.allocateAligned(alignment, size)
}

// Deallocate frees ptr. Deallocate(0) is a no-op.
func Deallocate(ptr uintptr) {
	p := ensureProcess()
	d := p.deallocs.Get().(*deallocator)
	defer p.deallocs.Put(d)
	d.deallocate(ptr)
}

// SizeOf returns the usable size of a live allocation. Any address
// inside a page serving small objects gets that page's size class,
// whether or not an object there is live; other addresses that are not
// the start of a live Large or XLarge allocation get 0.
func SizeOf(ptr uintptr) uintptr {
	return ensureProcess().heap.sizeOf(ptr)
}

// Stats returns a human-readable footprint snapshot of the process Heap.
func Stats() string {
	return ensureProcess().heap.Stats()
}

// ShrinkInPlace reduces an existing Large or XLarge allocation down to
// newSize without moving it; a no-op for Small allocations and for
// addresses that aren't live allocations. An XLarge allocation is left
// as is when the reclaimable slack is smaller than one physical page.
// Not one of the five external operations.
func ShrinkInPlace(ptr, newSize uintptr) {
	ensureProcess().heap.ShrinkInPlace(ptr, newSize)
}

var _ api.Allocator = (*heapAllocator)(nil)

// heapAllocator adapts the package-level functions to api.Allocator
// for callers that want an interface value rather than free functions
// (for example, to inject a test double).
type heapAllocator struct{}

// NewAllocator returns an api.Allocator backed by the process-wide
// singleton Heap.
func NewAllocator() api.Allocator { return heapAllocator{} }

func (heapAllocator) Allocate(size uintptr) uintptr                  { return Allocate(size) }
func (heapAllocator) TryAllocate(size uintptr) uintptr                { return TryAllocate(size) }
func (heapAllocator) AllocateAligned(alignment, size uintptr) uintptr { return AllocateAligned(alignment, size) }
func (heapAllocator) Deallocate(ptr uintptr)                          { Deallocate(ptr) }
func (heapAllocator) SizeOf(ptr uintptr) uintptr                      { return SizeOf(ptr) }
