package bmalloc

import "sort"

// largeMap indexes largeObjects ordered by address, so free neighbors
// are always the immediate slice neighbors of a newly-freed entry. The
// take functions remove the object they return; allocated objects are
// tracked outside the map (Heap.allocatedLarge). Operations run
// under the Heap's global lock; the map itself does no locking.
//
// The teacher's intrusive linked free lists (malloc/pool_flist.go) give
// O(1) push/pop but no address ordering, which boundary-tag coalescing
// needs; a slice kept sorted by begin address gives that ordering with
// O(log n) lookup and O(n) insert, acceptable at the range counts this
// allocator deals with (ranges merge aggressively, so the slice stays
// small relative to object count).
type largeMap struct {
	objects []*largeObject
}

func newLargeMap() *largeMap {
	return &largeMap{}
}

func (m *largeMap) indexOf(begin uintptr) int {
	return sort.Search(len(m.objects), func(i int) bool {
		return m.objects[i].begin >= begin
	})
}

// insert adds obj in address order and coalesces with either adjacent
// neighbor that is also free.
func (m *largeMap) insert(obj *largeObject) *largeObject {
	i := m.indexOf(obj.begin)
	m.objects = append(m.objects, nil)
	copy(m.objects[i+1:], m.objects[i:])
	m.objects[i] = obj

	if obj.free {
		if i+1 < len(m.objects) && obj.canMerge(m.objects[i+1]) {
			obj.merge(m.objects[i+1])
			m.objects = append(m.objects[:i+1], m.objects[i+2:]...)
		}
		if i > 0 && m.objects[i-1].canMerge(obj) {
			prev := m.objects[i-1]
			prev.merge(obj)
			m.objects = append(m.objects[:i], m.objects[i+1:]...)
			obj = prev
		}
	}
	return obj
}

// remove deletes obj from the map without regard to its free flag.
func (m *largeMap) remove(obj *largeObject) {
	i := m.indexOf(obj.begin)
	if i < len(m.objects) && m.objects[i] == obj {
		m.objects = append(m.objects[:i], m.objects[i+1:]...)
		return
	}
	panicerr("largeMap.remove: object at %#x not found", obj.begin)
}

// take removes and returns the smallest free object with size >= size,
// or nil.
func (m *largeMap) take(size uintptr) *largeObject {
	best := -1
	for i, o := range m.objects {
		if o.free && o.size >= size {
			if best == -1 || o.size < m.objects[best].size {
				best = i
			}
		}
	}
	if best == -1 {
		return nil
	}
	obj := m.objects[best]
	m.objects = append(m.objects[:best], m.objects[best+1:]...)
	obj.free = false
	return obj
}

// takeAligned removes and returns a free object of at least
// unalignedSize bytes whose interior contains a size-byte region
// aligned to alignment, or nil.
func (m *largeMap) takeAligned(alignment, size, unalignedSize uintptr) *largeObject {
	best := -1
	for i, o := range m.objects {
		if !o.free || o.size < unalignedSize {
			continue
		}
		alignedBegin := (o.begin + alignment - 1) &^ (alignment - 1)
		if alignedBegin+size > o.end() {
			continue
		}
		if best == -1 || o.size < m.objects[best].size {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	obj := m.objects[best]
	m.objects = append(m.objects[:best], m.objects[best+1:]...)
	obj.free = false
	return obj
}

// takeGreedy removes and returns one free object (any size), or nil.
// Used by the scavenger to drain the free large-object pool.
func (m *largeMap) takeGreedy() *largeObject {
	for i, o := range m.objects {
		if o.free {
			m.objects = append(m.objects[:i], m.objects[i+1:]...)
			return o
		}
	}
	return nil
}

func (m *largeMap) len() int {
	return len(m.objects)
}
