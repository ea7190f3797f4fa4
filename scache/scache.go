// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scache implements the size-class cache layer: an intrusive
// list-of-slabs for one object size, partitioned into a partial list
// (slabs that can still serve an allocation) and a full list (slabs that
// can't). Keeping partial slabs at the head of their list gives O(1)
// allocation; keeping full slabs out of the search path avoids repeatedly
// probing slabs that cannot serve.
package scache

import (
	"fmt"

	"github.com/respowerr/slab-allocator/slab"
)

// SCache owns every slab for a single size class. Construct one with New:
// the zero value has object size 0, so Insert rejects every slab.
type SCache struct {
	objectSize uintptr
	partial    *slab.Slab
	full       *slab.Slab
}

// New returns a cache for the given object size, with no slabs yet.
func New(objectSize uintptr) *SCache {
	return &SCache{objectSize: objectSize}
}

// ObjectSize returns the size class this cache serves.
func (c *SCache) ObjectSize() uintptr { return c.objectSize }

// Insert hands ownership of a freshly-constructed, non-full slab to the
// cache, prepending it to the partial list.
//
// Insert panics if s belongs to a different size class or is already
// full — both are programmer errors (an Allocator should never construct
// a slab this way).
func (c *SCache) Insert(s *slab.Slab) {
	if s.ObjectSize() != c.objectSize {
		panic(fmt.Sprintf("scache: slab object size %d does not match cache object size %d", s.ObjectSize(), c.objectSize))
	}
	if s.IsFull() {
		panic("scache: cannot insert an already-full slab")
	}

	s.Next = c.partial
	c.partial = s
}

// Alloc satisfies one allocation from the head of the partial list,
// migrating that slab to the full list if it just became full. It returns
// ok == false only when the partial list is empty; the caller (the
// allocator layer) is expected to refill and retry.
func (c *SCache) Alloc() (ptr uintptr, ok bool) {
	s := c.partial
	if s == nil {
		return 0, false
	}

	ptr, ok = s.Alloc()
	if !ok {
		// The invariant "every partial slab has free_count > 0" was
		// violated somewhere upstream; nothing left to do here.
		return 0, false
	}

	if s.IsFull() {
		c.partial = s.Next
		s.Next = c.full
		c.full = s
	}

	return ptr, true
}

// Dealloc finds the unique slab owning ptr and returns the cell to it,
// migrating the slab from full to partial if it was full. It reports
// whether an owning slab was found; false means ptr does not belong to
// any slab in this cache (ownership mismatch, likely a cross-class or
// foreign pointer — the caller decides how to treat that).
func (c *SCache) Dealloc(ptr uintptr) bool {
	for s := c.partial; s != nil; s = s.Next {
		if s.Contains(ptr) {
			s.Dealloc(ptr)
			return true
		}
	}

	var prev *slab.Slab
	for s := c.full; s != nil; prev, s = s, s.Next {
		if s.Contains(ptr) {
			s.Dealloc(ptr)
			c.detachFull(prev, s)
			s.Next = c.partial
			c.partial = s
			return true
		}
	}

	return false
}

// detachFull removes s from the full list, given its predecessor (nil if
// s is the head).
func (c *SCache) detachFull(prev, s *slab.Slab) {
	if prev == nil {
		c.full = s.Next
		return
	}
	prev.Next = s.Next
}

// Stats is the occupancy snapshot for one size class.
type Stats struct {
	PartialSlabs int
	FullSlabs    int
	TotalObjects int
	UsedObjects  int
}

// Stats traverses both lists and summarizes occupancy. It does not mutate
// the cache, but since it walks every slab under the caller's lock, it
// should be called with the cache's lock held (the allocator layer owns
// that lock, not this package).
func (c *SCache) Stats() Stats {
	var st Stats
	for s := c.partial; s != nil; s = s.Next {
		st.PartialSlabs++
		st.TotalObjects += s.Capacity()
		st.UsedObjects += s.UsedCount()
	}
	for s := c.full; s != nil; s = s.Next {
		st.FullSlabs++
		st.TotalObjects += s.Capacity()
		st.UsedObjects += s.UsedCount()
	}
	return st
}
