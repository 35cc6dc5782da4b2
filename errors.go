package bmalloc

import "fmt"

import "github.com/bnclabs/bmalloc/api"

// ErrOutofMemory re-exports api.ErrorOutofMemory. Nothing in this
// package returns or panics with it: the try* entry points report
// failure by returning 0.
var ErrOutofMemory = api.ErrorOutofMemory

// bassert panics with a formatted message when cond is false. Used for
// invariants that are cheap enough to check unconditionally; unlike the
// source's BASSERT, there is no debug-only variant since Go has no
// separate release build that strips assertions.
func bassert(cond bool, fmsg string, args ...interface{}) {
	if !cond {
		panic(fmt.Errorf(fmsg, args...))
	}
}

// releaseBassert panics regardless of build mode. Kept as a distinct
// name from bassert to mirror RELEASE_BASSERT call sites in the source,
// where the distinction documents "this check must never be compiled
// out" even though in this port both compile in always.
func releaseBassert(cond bool, fmsg string, args ...interface{}) {
	if !cond {
		panic(fmt.Errorf(fmsg, args...))
	}
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
