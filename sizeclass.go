package bmalloc

import "github.com/bnclabs/bmalloc/lib"

// memUtilization is the target ratio of useful bytes to bytes actually
// committed for a size class; mirrors the teacher's arena-sizing target.
const memUtilization = 0.95

// sizeClassTable maps small-object request sizes to one of a fixed set
// of size classes in O(1), via a direct lookup table over the request
// size rounded up to minObjectAlignment granularity.
type sizeClassTable struct {
	objectSizes []uintptr // size class index -> object size, ascending
	lut         []int16   // (size-1)/minObjectAlignment -> class index
	smallMax    uintptr
}

func newSizeClassTable(smallMax uintptr) *sizeClassTable {
	sizes := blocksizes(minObjectAlignment, smallMax)
	lutLen := int(smallMax / minObjectAlignment)
	lut := make([]int16, lutLen+1)

	classIdx := 0
	for bucket := 0; bucket <= lutLen; bucket++ {
		size := uintptr(bucket+1) * minObjectAlignment
		if size > smallMax {
			size = smallMax
		}
		for sizes[classIdx] < size {
			classIdx++
		}
		lut[bucket] = int16(classIdx)
	}
	return &sizeClassTable{objectSizes: sizes, lut: lut, smallMax: smallMax}
}

// classFor returns the size class index servicing a request of size
// bytes. size must be <= smallMax.
func (t *sizeClassTable) classFor(size uintptr) int {
	if size == 0 {
		size = 1
	}
	bucket := (size - 1) / minObjectAlignment
	return int(t.lut[bucket])
}

// objectSize returns the object size a size class hands out.
func (t *sizeClassTable) objectSize(class int) uintptr {
	return t.objectSizes[class]
}

func (t *sizeClassTable) numClasses() int {
	return len(t.objectSizes)
}

// blocksizes generates a growth sequence of class sizes between minblock
// and maxblock (both multiples of minObjectAlignment): each step grows
// the next class until the ratio of the midpoint between the two classes
// to the new class drops to memUtilization or below, same algorithm as
// the teacher's malloc.Blocksizes.
func blocksizes(minblock, maxblock uintptr) []uintptr {
	if maxblock < minblock {
		panicerr("minblock %v > maxblock %v", minblock, maxblock)
	}

	nextsize := func(from uintptr) uintptr {
		addby := uintptr(float64(from) * (1.0 - memUtilization))
		if addby < minObjectAlignment {
			addby = minObjectAlignment
		} else {
			addby = lib.RoundUpToMultipleOf(minObjectAlignment, addby)
		}
		size := from + addby
		for (float64(from+size)/2.0)/float64(size) > memUtilization {
			size += addby
		}
		return size
	}

	sizes := make([]uintptr, 0, 64)
	for size := minblock; size < maxblock; {
		sizes = append(sizes, size)
		size = nextsize(size)
	}
	sizes = append(sizes, maxblock)
	return sizes
}
