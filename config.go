package bmalloc

import "time"

import s "github.com/bnclabs/gosettings"
import "github.com/cloudfoundry/gosigar"

// Defaultsettings for a bmalloc Heap.
//
// "smallmax" (int64, default: 1024)
//		Requests at or below this size are serviced by the small-object
//		bump allocators; above it they fall through to the large path.
//
// "largemin" (int64, default: 1024)
//		Floor of the large tier.
//
// "largemax" (int64, default: 256*1024)
//		Ceiling of the large tier; must be <= chunksize/2.
//
// "largealignment" (int64, default: 16)
//		Every large-object size and address is a multiple of this.
//
// "chunksize" (int64, default: 2MiB)
//		Unit of virtual-memory reservation.
//
// "xlargealignment" (int64, default: 2MiB)
//		Alignment every extra-large range is rounded up to.
//
// "xlargemax" (int64, default: 1<<40)
//		Ceiling on the alignment accepted by the extra-large path.
//
// "objectlogcapacity" (int64, default: 512)
//		Per-thread deallocation FIFO depth before a drain is forced.
//
// "bumprangecachecapacity" (int64, default: 4)
//		Extra BumpRanges stashed per size class at refill time.
//
// "scavengesleepms" (int64, default: 250)
//		Scavenger poll/sleep interval, in milliseconds.
//
// "bmalloc.enabled" (bool, default: true)
//		When false, each deallocator's object log is prefilled with nulls
//		and every Deallocate frees through the Heap at once, without
//		buffering. Allocation is unaffected and still served by bmalloc;
//		nothing falls through to the OS allocator.
func Defaultsettings() s.Settings {
	_, _, free := getsysmem()
	return s.Settings{
		"smallmax":               int64(defaultSmallMax),
		"largemin":               int64(defaultLargeMin),
		"largemax":               int64(defaultLargeMax),
		"largealignment":         int64(defaultLargeAlignment),
		"chunksize":              int64(defaultChunkSize),
		"xlargealignment":        int64(defaultXLargeAlignment),
		"xlargemax":              int64(defaultXLargeMax),
		"objectlogcapacity":      int64(defaultObjectLogCapacity),
		"bumprangecachecapacity": int64(defaultBumpRangeCacheCapacity),
		"scavengesleepms":        int64(defaultScavengeSleep),
		"bmalloc.enabled":        true,
		"systotalfree":           int64(free),
	}
}

func getsysmem() (total, used, free uint64) {
	mem := sigar.Mem{}
	mem.Get()
	return mem.Total, mem.Used, mem.Free
}

// config is the resolved, typed form of a Settings map, computed once
// at Heap construction.
type config struct {
	smallMax               uintptr
	largeMin               uintptr
	largeMax               uintptr
	largeAlignment         uintptr
	chunkSize              uintptr
	xLargeAlignment        uintptr
	xLargeMax              uintptr
	objectLogCapacity      int
	bumpRangeCacheCapacity int
	scavengeSleep          time.Duration
	env                    environment
}

func newConfig(setts s.Settings) config {
	if setts == nil {
		setts = Defaultsettings()
	}
	merged := Defaultsettings().Mixin(setts)

	cfg := config{
		smallMax:               uintptr(merged.Int64("smallmax")),
		largeMin:               uintptr(merged.Int64("largemin")),
		largeMax:               uintptr(merged.Int64("largemax")),
		largeAlignment:         uintptr(merged.Int64("largealignment")),
		chunkSize:              uintptr(merged.Int64("chunksize")),
		xLargeAlignment:        uintptr(merged.Int64("xlargealignment")),
		xLargeMax:              uintptr(merged.Int64("xlargemax")),
		objectLogCapacity:      int(merged.Int64("objectlogcapacity")),
		bumpRangeCacheCapacity: int(merged.Int64("bumprangecachecapacity")),
		scavengeSleep:          time.Duration(merged.Int64("scavengesleepms")) * time.Millisecond,
		env:                    newEnvironment(merged),
	}
	if cfg.largeMax*2 > cfg.chunkSize {
		panicerr("largemax %v exceeds half of chunksize %v", cfg.largeMax, cfg.chunkSize)
	}
	return cfg
}
