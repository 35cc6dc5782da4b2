package bmalloc

import "runtime/debug"
import "sync/atomic"
import "time"

import "github.com/dustin/go-humanize"

import "github.com/bnclabs/bmalloc/api"
import "github.com/bnclabs/bmalloc/internal/vm"
import "github.com/bnclabs/bmalloc/lib"

// scavenger walks the idle small-page and free large/xlarge pools on a
// timer, demoting and decommitting what it finds. Grounded on bogn's
// compactor goroutine: an atomic running-routine counter, a recover +
// stack-trace guard, and a closed flag checked each tick.
type scavenger struct {
	heap      *Heap
	sleep     time.Duration
	closed    int64
	nroutines int64
	wakech    chan struct{}
	donech    chan struct{}
}

func newScavenger(h *Heap) *scavenger {
	return &scavenger{
		heap:   h,
		sleep:  h.cfg.scavengeSleep,
		wakech: make(chan struct{}, 1),
		donech: make(chan struct{}),
	}
}

func (s *scavenger) start() {
	go s.run()
}

func (s *scavenger) stop() {
	atomic.StoreInt64(&s.closed, 1)
	s.wake()
	<-s.donech
}

// wake nudges the scavenger to run a pass sooner than its next tick,
// without blocking if one is already pending.
func (s *scavenger) wake() {
	select {
	case s.wakech <- struct{}{}:
	default:
	}
}

func (s *scavenger) run() {
	atomic.AddInt64(&s.nroutines, 1)
	debugf("scavenger starting, sleep=%v", s.sleep)
	defer func() {
		if r := recover(); r != nil {
			errorf("scavenger crashed: %v", r)
			errorf("\n%s", lib.GetStacktrace(2, debug.Stack()))
		} else {
			debugf("scavenger stopped")
		}
		atomic.AddInt64(&s.nroutines, -1)
		close(s.donech)
	}()

	ticker := time.NewTicker(s.sleep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-s.wakech:
		}
		if atomic.LoadInt64(&s.closed) == 1 {
			return
		}
		s.pass()
	}
}

// pass releases the small-page, large-object and xlarge free pools
// back to the OS, one at a time, each under its own brief lock
// acquisition and release — so a burst of allocator activity is never
// blocked behind a long scavenge sweep.
func (s *scavenger) pass() {
	reclaimedSmall := s.scavengeSmallPages()
	reclaimedLarge := s.scavengeLargeObjects()
	reclaimedXLarge := s.scavengeXLargeObjects()
	if reclaimedSmall+reclaimedLarge+reclaimedXLarge > 0 {
		debugf("scavenger reclaimed %s", humanize.Bytes(uint64(reclaimedSmall+reclaimedLarge+reclaimedXLarge)))
	}
}

// scavengeSmallPages demotes every idle SmallPage back into a free
// LargeObject. Pages already claimed by an in-flight small allocation
// between our lock acquisitions are simply not in the list yet, so
// there is no race to guard beyond the lock itself.
func (s *scavenger) scavengeSmallPages() uintptr {
	h := s.heap
	var reclaimed uintptr

	for {
		h.lock.Lock()
		if len(h.smallPages) == 0 {
			h.lock.Unlock()
			return reclaimed
		}
		n := len(h.smallPages)
		page := h.smallPages[n-1]
		h.smallPages = h.smallPages[:n-1]
		delete(h.pageIndex, page.begin)
		page.promoteToLarge()
		obj := &largeObject{begin: page.begin, size: page.pageSize, free: true, vmState: api.Physical}
		h.largeObjects.insert(obj)
		reclaimed += page.pageSize
		h.lock.Unlock()
	}
}

// scavengeLargeObjects greedily decommits whole free LargeObjects back
// to reserved (virtual) memory, one object at a time, releasing the
// lock around the actual munmap/madvise syscall so allocator fast
// paths are never blocked on I/O. Like scavengeXLargeObjects below, the
// decommit happens on the object while it is still private (already
// removed from largeObjects, not yet visible in vmHeap.reserved); the
// Virtual retag and the reinsert into the shared reserved pool run
// under the lock.
func (s *scavenger) scavengeLargeObjects() uintptr {
	h := s.heap
	var reclaimed uintptr

	for {
		h.lock.Lock()
		obj := h.largeObjects.takeGreedy()
		if obj == nil {
			h.lock.Unlock()
			return reclaimed
		}
		h.lock.Unlock()

		if err := vm.DecommitSloppy(obj.begin, obj.size); err != nil {
			errorf("scavenger: decommit large %#x+%v: %v", obj.begin, obj.size, err)
		}
		obj.free = true
		reclaimed += obj.size

		// deallocateLargeObject moves obj into vmHeap's own reserved
		// pool; it must not also be reinserted into largeObjects.
		h.lock.Lock()
		obj.vmState = api.Virtual
		h.vmHeap.deallocateLargeObject(obj)
		h.lock.Unlock()
	}
}

// scavengeXLargeObjects decommits whole free xlarge ranges directly and
// reinserts each, tagged Virtual, into the xlarge map's free side, where
// it coalesces with free neighbors and is reused (and recommitted) by a
// later xlarge allocation; unlike Large, it is not moved to vmHeap.
func (s *scavenger) scavengeXLargeObjects() uintptr {
	h := s.heap
	var reclaimed uintptr

	for {
		h.lock.Lock()
		r, ok := h.xlarge.takePhysical()
		if !ok {
			h.xlarge.shrinkToFit()
			h.lock.Unlock()
			return reclaimed
		}
		h.lock.Unlock()

		if err := vm.DecommitSloppy(r.begin, r.size); err != nil {
			errorf("scavenger: decommit xlarge %#x+%v: %v", r.begin, r.size, err)
		}
		reclaimed += r.size

		h.lock.Lock()
		h.xlarge.insertFree(xLargeRange{begin: r.begin, size: r.size, vmState: api.Virtual})
		h.lock.Unlock()
	}
}
