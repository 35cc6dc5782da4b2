package bmalloc

import "sync/atomic"

import "github.com/bnclabs/golog"

// logok gates the debugf/infof/... wrappers below. Logging is off by
// default; call LogComponents to turn it on.
var logok = int64(0)

// LogComponents enables logging. There is a single switch: any of the
// recognized names ("bmalloc", "heap", "scavenger", "self", "all")
// turns on all of the package's logging; other names are ignored.
// Call before any allocation happens — there is no per-call toggle.
func LogComponents(components ...string) {
	for _, comp := range components {
		switch comp {
		case "bmalloc", "heap", "scavenger", "self", "all":
			atomic.StoreInt64(&logok, 1)
		}
	}
}

func debugf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Debugf(format, v...)
	}
}

func infof(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Infof(format, v...)
	}
}

func warnf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Warnf(format, v...)
	}
}

func errorf(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Errorf(format, v...)
	}
}

func tracef(format string, v ...interface{}) {
	if atomic.LoadInt64(&logok) > 0 {
		log.Tracef(format, v...)
	}
}
