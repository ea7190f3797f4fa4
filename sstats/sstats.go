// Package sstats holds the allocator's occupancy-statistics snapshot
// types: a per-size-class cache observer plus an allocator-wide
// aggregate.
package sstats

import (
	"fmt"
	"strings"
)

// CacheStats is the occupancy snapshot for a single size class.
type CacheStats struct {
	ObjectSize   uintptr
	PartialSlabs int
	FullSlabs    int
	TotalObjects int
	UsedObjects  int
}

// Utilization returns the fraction of cells in use, in [0, 1]. It returns
// 0 when the class has no slabs yet.
func (c CacheStats) Utilization() float64 {
	if c.TotalObjects == 0 {
		return 0
	}
	return float64(c.UsedObjects) / float64(c.TotalObjects)
}

// AllocatorStats is an occupancy snapshot across every size class, in the
// same order as sallocator.Sizes.
type AllocatorStats struct {
	Classes [8]CacheStats
}

// String renders a human-readable occupancy table, one line per size
// class, suitable for cmd/slabstat's output.
func (a AllocatorStats) String() string {
	var b strings.Builder
	for _, c := range a.Classes {
		fmt.Fprintf(&b, "class %5d: partial=%-4d full=%-4d used=%d/%d (%.1f%%)\n",
			c.ObjectSize, c.PartialSlabs, c.FullSlabs, c.UsedObjects, c.TotalObjects, c.Utilization()*100)
	}
	return b.String()
}
