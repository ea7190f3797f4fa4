// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sallocator implements the multi-class allocator façade: it
// dispatches allocation requests by size to one of eight size-class
// caches, refills a cache from a page provider on miss, and exposes the
// standard allocate/deallocate contract under concurrent access.
package sallocator

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/cznic/mathutil"

	"github.com/respowerr/slab-allocator/internal/trace"
	"github.com/respowerr/slab-allocator/pageprovider"
	"github.com/respowerr/slab-allocator/scache"
	"github.com/respowerr/slab-allocator/slab"
	"github.com/respowerr/slab-allocator/sstats"
)

// Sizes is the fixed sequence of size classes the allocator serves.
var Sizes = [8]uintptr{8, 16, 32, 64, 128, 256, 512, 1024}

// MaxSize is the largest request this allocator will ever satisfy.
const MaxSize = 1024

var (
	// ErrOversize is returned when a request exceeds MaxSize.
	ErrOversize = errors.New("sallocator: requested size exceeds 1024 bytes")
	// ErrAlignment is returned when align exceeds the selected size class.
	ErrAlignment = errors.New("sallocator: requested alignment exceeds size class")
	// ErrExhausted is returned when the page provider could not supply a
	// new page to refill a size class, and also when a refill succeeded but
	// other goroutines took every cell of the new slab before this call
	// could allocate from it.
	ErrExhausted = errors.New("sallocator: page provider exhausted")
	// ErrForeignPointer is returned by Deallocate and DeallocateByAddr
	// when ptr was not allocated by this Allocator.
	ErrForeignPointer = errors.New("sallocator: pointer not owned by this allocator")
)

// zeroSentinel is the address returned for zero-size allocations: a fixed,
// shared, non-nil address that consumes no cell.
var zeroSentinel byte

func zeroSentinelAddr() uintptr { return uintptr(unsafe.Pointer(&zeroSentinel)) }

// minClassLog is log2(Sizes[0]); Sizes[0] == 8 == 1<<3.
const minClassLog = 3

// cacheEntry pairs a size-class cache with the lock that guards it. A
// thread holds at most one of these locks at a time.
type cacheEntry struct {
	mu    sync.Mutex
	cache *scache.SCache
}

// Allocator dispatches allocate/deallocate requests across the eight
// fixed size classes, refilling each class's cache from a page provider
// on demand. It holds no other state.
type Allocator struct {
	provider pageprovider.Provider
	classes  [8]*cacheEntry
}

// New returns an Allocator backed by provider. No pages are requested
// until the first allocation (refill is lazy).
func New(provider pageprovider.Provider) *Allocator {
	a := &Allocator{provider: provider}
	for i, size := range Sizes {
		a.classes[i] = &cacheEntry{cache: scache.New(size)}
	}
	return a
}

// classIndexFor returns the index into Sizes of the smallest class >= size,
// and ok == false if size exceeds MaxSize. It uses mathutil.BitLen to
// jump straight to a class index rather than scanning linearly, since
// the classes are themselves powers of two.
func classIndexFor(size uintptr) (idx int, ok bool) {
	if size > MaxSize {
		return 0, false
	}
	if size <= 1 {
		return 0, true
	}
	log := mathutil.BitLen(int(size - 1))
	if log < minClassLog {
		log = minClassLog
	}
	return log - minClassLog, true
}

// ObjectSizeFor returns the smallest size class able to hold a size-byte
// request, or ok == false if size exceeds 1024. It touches no mutable
// state and needs no lock.
func ObjectSizeFor(size uintptr) (class uintptr, ok bool) {
	idx, ok := classIndexFor(size)
	if !ok {
		return 0, false
	}
	return Sizes[idx], true
}

// Allocate returns the address of a size-byte (at minimum) region aligned
// to align bytes, or an error if the request can't be satisfied.
//
// size == 0 returns the shared zero-size sentinel address, consuming no
// cell.
func (a *Allocator) Allocate(size, align uintptr) (uintptr, error) {
	if size == 0 {
		return zeroSentinelAddr(), nil
	}
	if size > MaxSize {
		return 0, ErrOversize
	}

	idx, _ := classIndexFor(size)
	class := a.classes[idx]
	classSize := Sizes[idx]
	if align > classSize {
		return 0, ErrAlignment
	}

	class.mu.Lock()
	ptr, ok := class.cache.Alloc()
	class.mu.Unlock()
	if ok {
		trace.Printf("sallocator: Allocate(%d, %d) = %#x (cache hit, class %d)", size, align, ptr, classSize)
		return ptr, nil
	}

	if err := a.refill(idx); err != nil {
		trace.Printf("sallocator: Allocate(%d, %d) refill failed: %v", size, align, err)
		return 0, err
	}

	class.mu.Lock()
	ptr, ok = class.cache.Alloc()
	class.mu.Unlock()
	if !ok {
		// Another goroutine raced us to the freshly refilled slab; the
		// caller is expected to retry.
		trace.Printf("sallocator: Allocate(%d, %d) lost refill race", size, align)
		return 0, ErrExhausted
	}

	trace.Printf("sallocator: Allocate(%d, %d) = %#x (after refill, class %d)", size, align, ptr, classSize)
	return ptr, nil
}

// refill requests one page from the provider with no cache lock held,
// constructs a slab in it sized for class idx, and inserts it into that
// class's cache.
func (a *Allocator) refill(idx int) error {
	page, err := a.provider.AcquirePage()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExhausted, err)
	}

	classSize := Sizes[idx]
	s := slab.New(classSize, pageprovider.PageSize)
	s.Init(page)

	class := a.classes[idx]
	class.mu.Lock()
	class.cache.Insert(s)
	class.mu.Unlock()
	return nil
}

// Deallocate returns ptr, previously obtained from Allocate with the same
// size, to its owning slab.
func (a *Allocator) Deallocate(ptr, size uintptr) error {
	if ptr == zeroSentinelAddr() {
		return nil
	}

	idx, ok := classIndexFor(size)
	if !ok {
		return ErrOversize
	}

	class := a.classes[idx]
	class.mu.Lock()
	found := class.cache.Dealloc(ptr)
	class.mu.Unlock()

	if !found {
		trace.Printf("sallocator: Deallocate(%#x, %d) foreign pointer", ptr, size)
		return ErrForeignPointer
	}
	trace.Printf("sallocator: Deallocate(%#x, %d) ok", ptr, size)
	return nil
}

// DeallocateByAddr returns ptr without knowing its original size, by
// scanning every cache for containment. Hosts that can supply the
// original size should prefer Deallocate, which searches only the slabs
// of one size class; this is the no-side-table fallback, O(total slabs).
func (a *Allocator) DeallocateByAddr(ptr uintptr) error {
	if ptr == zeroSentinelAddr() {
		return nil
	}

	for _, class := range a.classes {
		class.mu.Lock()
		found := class.cache.Dealloc(ptr)
		class.mu.Unlock()
		if found {
			return nil
		}
	}
	return ErrForeignPointer
}

// Stats returns an occupancy snapshot across every size class.
func (a *Allocator) Stats() sstats.AllocatorStats {
	var out sstats.AllocatorStats
	for i, class := range a.classes {
		class.mu.Lock()
		cs := class.cache.Stats()
		class.mu.Unlock()
		out.Classes[i] = sstats.CacheStats{
			ObjectSize:   Sizes[i],
			PartialSlabs: cs.PartialSlabs,
			FullSlabs:    cs.FullSlabs,
			TotalObjects: cs.TotalObjects,
			UsedObjects:  cs.UsedObjects,
		}
	}
	return out
}
