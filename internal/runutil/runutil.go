// internal/runutil/runutil.go
package runutil

import "math"

// MaxDefaultThreads caps the automatic worker count.
const MaxDefaultThreads = 24

// EffectiveThreads picks the worker count. A positive override wins;
// otherwise min(MaxDefaultThreads, ncpu/2), never below 1.
func EffectiveThreads(override, ncpu int) int {
	if override > 0 {
		return override
	}
	n := min(MaxDefaultThreads, ncpu/2)
	if n < 1 {
		n = 1
	}
	return n
}

// Window intersects the query window [start, start+count) with a batch
// holding items [offset, offset+n) and returns batch-local bounds. A
// negative start means 0; a negative count means "to the end".
func Window(start, count, offset int64, n int) (lo, hi int) {
	if start < 0 {
		start = 0
	}
	end := int64(math.MaxInt64)
	if count >= 0 {
		end = start + count
	}
	l := min(max(start-offset, 0), int64(n))
	h := min(max(end-offset, l), int64(n))
	return int(l), int(h)
}
