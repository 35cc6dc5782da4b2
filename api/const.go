// Package api exposes the types shared across bmalloc's internal
// packages: the externally visible Allocator contract plus the enums
// used to tag virtual-memory state and page tiers.
package api

import "errors"

// ErrorOutofMemory names the out-of-memory condition. bmalloc does not
// currently return or panic with it.
var ErrorOutofMemory = errors.New("bmalloc.outofmemory")

// ObjectType tags a physical page as currently backing small objects or
// acting as part of a managed large-object range.
type ObjectType int

const (
	// Large means the page is part of a mid-size or extra-large range.
	Large ObjectType = iota
	// Small means the page has been demoted to host one size class.
	Small
)

func (t ObjectType) String() string {
	if t == Small {
		return "small"
	}
	return "large"
}

// VMState tags a range of virtual memory with whether the OS has backed
// it with physical pages yet.
type VMState int

const (
	// Virtual means the address range is reserved but not committed.
	Virtual VMState = iota
	// Physical means physical pages are committed across the range.
	Physical
)

// HasVirtual reports whether any portion of the range may still be
// virtual-only, i.e. require a commit before use.
func (s VMState) HasVirtual() bool { return s == Virtual }

// HasPhysical reports whether the range is fully backed by physical pages.
func (s VMState) HasPhysical() bool { return s == Physical }

func (s VMState) String() string {
	if s == Physical {
		return "physical"
	}
	return "virtual"
}
