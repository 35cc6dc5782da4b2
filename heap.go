package bmalloc

import "fmt"
import "sync"

import "github.com/dustin/go-humanize"

import "github.com/bnclabs/bmalloc/api"
import "github.com/bnclabs/bmalloc/internal/vm"
import "github.com/bnclabs/bmalloc/lib"
import s "github.com/bnclabs/gosettings"

// Heap is the single process-wide coordinator: the large-object map,
// the extra-large map, the small-page free lists, and the scavenger.
// Every field is protected by lock; the per-thread Allocator/
// Deallocator fast paths never touch it except to take the lock on a
// cache miss.
type Heap struct {
	lock sync.Mutex

	cfg              config
	sizes            *sizeClassTable
	lineMeta         *lineMetadataTable
	physicalPageSize uintptr

	vmHeap         *vmHeap
	largeObjects   *largeMap
	allocatedLarge map[uintptr]*largeObject
	xlarge         *xLargeMap

	pageIndex               map[uintptr]*smallPage
	smallPages              []*smallPage   // idle, refcount == 0, Small-tagged
	smallPagesWithFreeLines [][]*smallPage // per size class

	isAllocatingPages bool
	scavenger         *scavenger

	// statsLock guards the two fields below independently of lock, so
	// recording a sample on the fast path never contends with the Heap's
	// allocation/free paths.
	statsLock      sync.Mutex
	allocSizes     *lib.AverageInt64
	smallHistogram *lib.HistogramInt64
}

// NewHeap constructs a Heap from settings, starting its scavenger
// goroutine. Pass nil to use Defaultsettings().
func NewHeap(setts s.Settings) *Heap {
	cfg := newConfig(setts)
	pageSize := vm.PageSizePhysical()
	sizes := newSizeClassTable(cfg.smallMax)
	lineMeta := newLineMetadataTable(sizes, pageSize)

	h := &Heap{
		cfg:                     cfg,
		sizes:                   sizes,
		lineMeta:                lineMeta,
		physicalPageSize:        pageSize,
		vmHeap:                  newVMHeap(cfg.chunkSize),
		largeObjects:            newLargeMap(),
		allocatedLarge:          make(map[uintptr]*largeObject),
		xlarge:                  newXLargeMap(),
		pageIndex:               make(map[uintptr]*smallPage),
		smallPagesWithFreeLines: make([][]*smallPage, sizes.numClasses()),
		allocSizes:              &lib.AverageInt64{},
		smallHistogram:          lib.NewhistorgramInt64(0, int64(cfg.smallMax), 64),
	}
	h.scavenger = newScavenger(h)
	h.scavenger.start()
	return h
}

// Close stops the scavenger goroutine, joining it before returning.
// Mirrors heapDestructor's "stop scavenger before releasing the mutex".
func (h *Heap) Close() {
	h.scavenger.stop()
}

// Stats reports a human-readable snapshot of the committed footprint
// and the request-size statistics, for tests and diagnostics; reserved
// but uncommitted address space is not reported. Not part of the five
// external operations.
func (h *Heap) Stats() string {
	h.lock.Lock()
	defer h.lock.Unlock()

	var committed uintptr
	for _, o := range h.largeObjects.objects {
		if !o.free && o.vmState.HasPhysical() {
			committed += o.size
		}
	}
	for _, o := range h.allocatedLarge {
		committed += o.size
	}
	for _, e := range h.xlarge.allocated {
		committed += e.allocated.size
	}
	h.statsLock.Lock()
	samples, mean := h.allocSizes.Samples(), h.allocSizes.Mean()
	histogram := h.smallHistogram.Logstring()
	h.statsLock.Unlock()

	return fmt.Sprintf("committed=%s requests=%d meansize=%d small-histogram=%s",
		humanize.Bytes(uint64(committed)), samples, mean, histogram)
}

// recordAllocSample feeds size into the running mean/variance and, for
// requests within the Small tier, the size histogram. Grounded on
// bubt's *Builder fields (a_zentries etc.), which track the same kind
// of running statistics for tree-build telemetry.
func (h *Heap) recordAllocSample(size uintptr) {
	h.statsLock.Lock()
	h.allocSizes.Add(int64(size))
	if size <= h.cfg.smallMax {
		h.smallHistogram.Add(int64(size))
	}
	h.statsLock.Unlock()
}

//---- small path (spec 4.3, 4.1's allocateSmallBumpRanges)

// allocateSmallBumpRanges harvests free contiguous runs of lines from
// one SmallPage and packs the bump allocator and cache from them.
// Caller holds the lock.
func (h *Heap) allocateSmallBumpRanges(class int, bump *bumpAllocator, cache *bumpRangeCache) {
	for attempt := 0; attempt < 4; attempt++ {
		page := h.acquireSmallPageForHarvest(class)
		h.harvestPage(page, class, bump, cache)
		if bump.canAllocate() {
			return
		}
	}
	panicerr("bmalloc: could not fill bump allocator for size class %v", class)
}

func (h *Heap) acquireSmallPageForHarvest(class int) *smallPage {
	if list := h.smallPagesWithFreeLines[class]; len(list) > 0 {
		page := list[len(list)-1]
		h.smallPagesWithFreeLines[class] = list[:len(list)-1]
		return page
	}
	if n := len(h.smallPages); n > 0 {
		page := h.smallPages[n-1]
		h.smallPages = h.smallPages[:n-1]
		page.demoteToSmall(class)
		return page
	}
	obj := h.allocateOnePhysicalPageObject()
	page := newSmallPage(obj.begin, obj.size, h.lineMeta.numLines)
	page.demoteToSmall(class)
	h.pageIndex[page.begin] = page
	return page
}

// harvestPage walks page's lines in order, merging runs of zero-
// refcount lines and packing the first run into bump, subsequent runs
// into cache, stopping when cache is full or the page is exhausted.
func (h *Heap) harvestPage(page *smallPage, class int, bump *bumpAllocator, cache *bumpRangeCache) {
	numLines := len(page.lines)
	first := true

	for i := 0; i < numLines; {
		if page.lines[i].refcount != 0 {
			i++
			continue
		}
		entry := h.lineMeta.entry(class, i)
		if entry.objectCount == 0 {
			i++
			continue
		}

		if !first && cache.isFull() {
			page.hasFreeLines = true
			h.linkPageFreeLines(page)
			return
		}

		runBegin := page.begin + uintptr(i)*lineSize + entry.startOffset
		runObjects := 0
		for i < numLines && page.lines[i].refcount == 0 {
			e := h.lineMeta.entry(class, i)
			if e.objectCount == 0 {
				break
			}
			page.lines[i].refcount = e.objectCount
			page.refcount++
			runObjects += int(e.objectCount)
			i++
		}

		r := bumpRange{begin: runBegin, objectCount: runObjects}
		if first {
			bump.refill(r)
			first = false
			continue
		}
		cache.push(r)
	}
	page.hasFreeLines = false
}

func (h *Heap) linkPageFreeLines(page *smallPage) {
	c := page.class
	h.smallPagesWithFreeLines[c] = append(h.smallPagesWithFreeLines[c], page)
}

func (h *Heap) unlinkPageFreeLines(page *smallPage) {
	c := page.class
	list := h.smallPagesWithFreeLines[c]
	for i, p := range list {
		if p == page {
			h.smallPagesWithFreeLines[c] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// deallocateSmallLine is called once a specific line's refcount has
// just reached zero (the caller already decremented it). Caller holds
// the lock.
func (h *Heap) deallocateSmallLine(page *smallPage, lineIdx int) {
	page.refcount--
	if page.refcount < 0 {
		panicerr("bmalloc: smallPage %#x refcount underflow", page.begin)
	}
	if !page.hasFreeLines {
		page.hasFreeLines = true
		h.linkPageFreeLines(page)
	}
	if page.isEmpty() {
		h.unlinkPageFreeLines(page)
		h.smallPages = append(h.smallPages, page)
		h.wakeScavengerLocked()
	}
}

//---- large path (spec 4.4)

func (h *Heap) allocateLarge(size uintptr) uintptr {
	if size > h.cfg.largeMax {
		return h.allocateXLargeSize(size)
	}
	size = lib.RoundUpToMultipleOf(h.cfg.largeAlignment, size)
	if size < h.cfg.largeMin {
		size = h.cfg.largeMin
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	var obj *largeObject
	if size <= h.physicalPageSize {
		obj = h.reclaimIdleSmallPageLocked()
	}
	if obj == nil {
		obj = h.largeObjects.take(size)
	}
	if obj == nil {
		obj = h.vmHeap.allocateLargeObject(size)
	}
	h.commitIfVirtualLocked(obj)
	h.isAllocatingPages = true

	allocated := h.splitAndAllocate(obj, size)
	h.allocatedLarge[allocated.begin] = allocated
	return allocated.begin
}

func (h *Heap) allocateLargeAligned(alignment, size uintptr) uintptr {
	if !lib.IsPowerOfTwo(alignment) {
		panicerr("bmalloc: alignment %v is not a power of two", alignment)
	}
	if size > h.cfg.largeMax || alignment > h.cfg.chunkSize/2 {
		return h.allocateXLargeAligned(alignment, size)
	}
	size = lib.RoundUpToMultipleOf(h.cfg.largeAlignment, size)
	if size < h.cfg.largeMin {
		size = h.cfg.largeMin
	}
	if alignment < h.cfg.largeAlignment {
		alignment = h.cfg.largeAlignment
	}
	unalignedSize := size + alignment - h.cfg.largeAlignment

	h.lock.Lock()
	defer h.lock.Unlock()

	obj := h.largeObjects.takeAligned(alignment, size, unalignedSize)
	if obj == nil {
		obj = h.vmHeap.allocateLargeObjectAligned(alignment, size, unalignedSize)
	}
	h.commitIfVirtualLocked(obj)
	h.isAllocatingPages = true

	allocated := h.splitAndAllocateAligned(obj, alignment, size)
	h.allocatedLarge[allocated.begin] = allocated
	return allocated.begin
}

// splitAndAllocate peels a trailing tail when there is at least
// largeMin bytes of slack and reinserts it as free; largeMap.insert
// coalesces it with a free neighbor on its far side, if there is one.
func (h *Heap) splitAndAllocate(obj *largeObject, size uintptr) *largeObject {
	if slack := obj.size - size; slack >= h.cfg.largeMin {
		tail := obj.split(slack)
		tail.free = true
		h.largeObjects.insert(tail)
	}
	obj.free = false
	return obj
}

// splitAndAllocateAligned peels an unaligned head first, then a
// trailing tail; both are merged with neighbors on reinsertion, since
// an alignment-driven split touches both of the object's boundaries.
func (h *Heap) splitAndAllocateAligned(obj *largeObject, alignment, size uintptr) *largeObject {
	alignedBegin := (obj.begin + alignment - 1) &^ (alignment - 1)
	if head := alignedBegin - obj.begin; head > 0 {
		prev := obj.splitHead(head)
		prev.free = true
		h.largeObjects.insert(prev)
	}
	if tail := obj.size - size; tail > 0 {
		next := obj.split(tail)
		next.free = true
		h.largeObjects.insert(next)
	}
	obj.free = false
	return obj
}

func (h *Heap) deallocateLarge(obj *largeObject) {
	bassert(!obj.free, "bmalloc: deallocateLarge: %#x already free", obj.begin)
	obj.free = true
	h.largeObjects.insert(obj)
	h.wakeScavengerLocked()
}

// shrinkLarge splits off and frees the tail beyond newSize.
func (h *Heap) shrinkLarge(begin uintptr, newSize uintptr) {
	h.lock.Lock()
	defer h.lock.Unlock()

	obj, ok := h.allocatedLarge[begin]
	if !ok {
		return
	}
	newSize = lib.RoundUpToMultipleOf(h.cfg.largeAlignment, newSize)
	if newSize >= obj.size {
		return
	}
	tail := obj.split(obj.size - newSize)
	tail.free = true
	h.largeObjects.insert(tail)
}

// ShrinkInPlace reduces an existing Large or XLarge allocation's
// effective size without moving it, splitting off and freeing the
// trailing slack; a no-op if p isn't a live Large/XLarge allocation.
// A Large allocation shrinks whenever the rounded newSize is smaller; an
// XLarge one only when at least one physical page would be freed. Small
// allocations are fixed to their size class and never shrink. Not one
// of the five external operations — a caller resizing an in-place
// buffer downward, mirroring Heap::shrinkLarge/shrinkXLarge.
func (h *Heap) ShrinkInPlace(p, newSize uintptr) {
	h.shrinkLarge(p, newSize)
	h.shrinkXLarge(p, newSize)
}

func (h *Heap) reclaimIdleSmallPageLocked() *largeObject {
	n := len(h.smallPages)
	if n == 0 {
		return nil
	}
	page := h.smallPages[n-1]
	h.smallPages = h.smallPages[:n-1]
	delete(h.pageIndex, page.begin)
	page.promoteToLarge()
	return &largeObject{begin: page.begin, size: page.pageSize, free: true, vmState: api.Physical}
}

func (h *Heap) allocateOnePhysicalPageObject() *largeObject {
	pageSize := h.physicalPageSize
	obj := h.largeObjects.takeAligned(pageSize, pageSize, pageSize)
	if obj == nil {
		obj = h.vmHeap.allocateLargeObjectAligned(pageSize, pageSize, pageSize)
	}
	h.commitIfVirtualLocked(obj)
	h.isAllocatingPages = true
	return h.splitAndAllocateAligned(obj, pageSize, pageSize)
}

func (h *Heap) commitIfVirtualLocked(obj *largeObject) {
	if !obj.vmState.HasPhysical() {
		if err := vm.Commit(obj.begin, obj.size); err != nil {
			panicerr("bmalloc: commit %#x+%v: %v", obj.begin, obj.size, err)
		}
		obj.vmState = api.Physical
	}
}

//---- extra-large path (spec 4.5)

func (h *Heap) allocateXLargeSize(size uintptr) uintptr {
	return h.allocateXLargeAligned(h.cfg.xLargeAlignment, size)
}

func (h *Heap) allocateXLargeAligned(alignment, size uintptr) uintptr {
	if !lib.IsPowerOfTwo(alignment) {
		panicerr("bmalloc: xlarge alignment %v is not a power of two", alignment)
	}
	if alignment > h.cfg.xLargeMax {
		panicerr("bmalloc: xlarge alignment %v exceeds xlargemax %v", alignment, h.cfg.xLargeMax)
	}
	pageSize := h.physicalPageSize
	size = lib.RoundUpToMultipleOf(pageSize, size)
	if size < pageSize {
		size = pageSize
	}
	if alignment < h.cfg.xLargeAlignment {
		alignment = h.cfg.xLargeAlignment
	} else {
		alignment = lib.RoundUpToMultipleOf(h.cfg.xLargeAlignment, alignment)
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	r, ok := h.xlarge.takeFree(alignment, size)
	if !ok {
		reserveSize := lib.RoundUpToMultipleOf(alignment, size+alignment)
		begin, err := vm.Reserve(alignment, reserveSize)
		if err != nil {
			panicerr("bmalloc: xlarge reserve %v @ align %v: %v", reserveSize, alignment, err)
		}
		r = xLargeRange{begin: begin, size: reserveSize, vmState: api.Virtual}
	}
	h.isAllocatingPages = true
	return h.splitAndAllocateXLarge(r, alignment, size)
}

// splitAndAllocateXLarge peels an unaligned head, then a trailing
// xLargeAlignment-rounded tail. Any remaining sub-xLargeAlignment
// fragment cannot itself be aligned-allocated, so it is coupled with
// the allocated body as a single addAllocated entry instead of being
// left on the free list as an unusable sliver — a deliberate
// fragmentation-avoidance choice carried over from the source.
func (h *Heap) splitAndAllocateXLarge(r xLargeRange, alignment, size uintptr) uintptr {
	var prevPtr, nextPtr *xLargeRange

	alignedBegin := (r.begin + alignment - 1) &^ (alignment - 1)
	if head := alignedBegin - r.begin; head > 0 {
		prev := xLargeRange{begin: r.begin, size: head, vmState: r.vmState}
		prevPtr = &prev
		r.begin += head
		r.size -= head
	}

	if split := lib.RoundUpToMultipleOf(h.cfg.xLargeAlignment, size); split < r.size {
		tail := xLargeRange{begin: r.begin + split, size: r.size - split, vmState: r.vmState}
		nextPtr = &tail
		r.size = split
	}
	allocated := xLargeRange{begin: r.begin, size: r.size, vmState: r.vmState}

	if !allocated.vmState.HasPhysical() {
		if err := vm.Commit(allocated.begin, allocated.size); err != nil {
			panicerr("bmalloc: xlarge commit %#x+%v: %v", allocated.begin, allocated.size, err)
		}
		allocated.vmState = api.Physical
	}

	h.xlarge.addAllocated(prevPtr, allocated, nextPtr)
	return allocated.begin
}

// deallocateXLarge is called with the lock held.
func (h *Heap) deallocateXLarge(p uintptr) {
	entry, ok := h.xlarge.takeAllocated(p)
	if !ok {
		panicerr("bmalloc: deallocateXLarge: %#x not allocated", p)
	}
	if entry.prev != nil {
		h.xlarge.insertFree(*entry.prev)
	}
	h.xlarge.insertFree(entry.allocated)
	if entry.next != nil {
		h.xlarge.insertFree(*entry.next)
	}
	h.wakeScavengerLocked()
}

func (h *Heap) shrinkXLarge(p, newSize uintptr) {
	h.lock.Lock()
	defer h.lock.Unlock()

	entry, ok := h.xlarge.allocated[p]
	if !ok {
		return
	}
	if entry.allocated.size-newSize < h.physicalPageSize {
		return
	}
	h.xlarge.takeAllocated(p)
	if entry.prev != nil {
		h.xlarge.insertFree(*entry.prev)
	}
	if entry.next != nil {
		h.xlarge.insertFree(*entry.next)
	}
	h.splitAndAllocateXLarge(entry.allocated, h.cfg.xLargeAlignment, newSize)
}

//---- dispatch shared by Allocator/Deallocator (spec 6)

// processLoggedPointer frees a pointer drained from a thread's object
// log. Caller holds the lock.
func (h *Heap) processLoggedPointer(p uintptr) {
	base := pageBase(p, h.physicalPageSize)
	if page, ok := h.pageIndex[base]; ok {
		line := page.lineIndexForOffset(p - page.begin)
		page.lines[line].refcount--
		if page.lines[line].refcount < 0 {
			panicerr("bmalloc: line refcount underflow at %#x", p)
		}
		if page.lines[line].refcount == 0 {
			h.deallocateSmallLine(page, line)
		}
		return
	}
	if obj, ok := h.allocatedLarge[p]; ok {
		delete(h.allocatedLarge, p)
		h.deallocateLarge(obj)
		return
	}
	if h.xlarge.isAllocated(p) {
		h.deallocateXLarge(p)
		return
	}
	if h.vmHeap.owns(p) {
		panicerr("bmalloc: deallocate: %#x was reserved but is not a live allocation (double free?)", p)
	}
	panicerr("bmalloc: deallocate: %#x was never allocated by this process", p)
}

func (h *Heap) sizeOf(p uintptr) uintptr {
	h.lock.Lock()
	defer h.lock.Unlock()

	if size, ok := h.xlarge.xLargeSize(p); ok {
		return size
	}
	if page, ok := h.pageIndex[pageBase(p, h.physicalPageSize)]; ok && page.objectType == api.Small {
		return h.sizes.objectSize(page.class)
	}
	if obj, ok := h.allocatedLarge[p]; ok {
		return obj.size
	}
	return 0
}

func (h *Heap) wakeScavengerLocked() {
	h.isAllocatingPages = true
	if h.scavenger != nil {
		h.scavenger.wake()
	}
}
