// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slab implements a single fixed-size-cell memory slab: a page of
// identical cells carrying an intrusive, in-band free-list.
//
// A Slab never talks to an OS or a page provider itself; it only knows how
// to carve a caller-supplied region into cells and hand them out. Free
// cells store the address of the next free cell in their first machine
// word; allocated cells are opaque to the slab.
package slab

import (
	"fmt"
	"unsafe"
)

// MinObjectSize is the smallest object_size a Slab will accept: the
// free-list link must fit in a cell.
const MinObjectSize = unsafe.Sizeof(uintptr(0))

// Slab is a page-sized region divided into object_size-sized cells. The
// zero value is not usable; construct one with New and install backing
// memory with Init.
type Slab struct {
	memory       uintptr // address of cell 0, set by Init
	objectSize   uintptr
	capacity     int
	freeCount    int
	freeListHead uintptr // 0 is the terminal sentinel, never a valid cell address
	initialized  bool

	// Next links this slab into whichever cache list currently owns it.
	// Owned by the cache, not the slab itself.
	Next *Slab
}

// New constructs a Slab header for cells of objectSize bytes carved out of
// a region of regionBytes bytes. It does not touch any memory; call Init
// once backing memory is available.
//
// New panics if objectSize is too small to hold the free-list link or if
// regionBytes can't hold even one cell — both are programmer errors.
func New(objectSize, regionBytes uintptr) *Slab {
	if objectSize < MinObjectSize {
		panic(fmt.Sprintf("slab: object size %d below minimum %d", objectSize, MinObjectSize))
	}
	if regionBytes < objectSize {
		panic(fmt.Sprintf("slab: region of %d bytes too small for object size %d", regionBytes, objectSize))
	}

	return &Slab{
		objectSize: objectSize,
		capacity:   int(regionBytes / objectSize),
	}
}

// Init installs the backing memory and threads the free-list through every
// cell. It must be called exactly once, before any Alloc or Dealloc.
func (s *Slab) Init(memory uintptr) {
	if s.initialized {
		panic("slab: Init called twice")
	}
	s.initialized = true
	s.memory = memory
	s.freeCount = s.capacity

	for i := 0; i < s.capacity; i++ {
		cell := memory + uintptr(i)*s.objectSize
		var next uintptr
		if i < s.capacity-1 {
			next = memory + uintptr(i+1)*s.objectSize
		}
		*(*uintptr)(unsafe.Pointer(cell)) = next
	}
	s.freeListHead = memory
}

// Alloc pops the head of the free-list and returns its address, or ok ==
// false if the slab is full.
func (s *Slab) Alloc() (ptr uintptr, ok bool) {
	if s.IsFull() {
		return 0, false
	}

	head := s.freeListHead
	next := *(*uintptr)(unsafe.Pointer(head))
	s.freeListHead = next
	s.freeCount--
	return head, true
}

// Dealloc returns a previously allocated cell to the free-list. ptr must be
// cell-aligned within this slab and must not already be free; violating
// either is undefined behavior (the cache and allocator layers are
// responsible for catching foreign or double-freed pointers to the extent
// they can).
func (s *Slab) Dealloc(ptr uintptr) {
	*(*uintptr)(unsafe.Pointer(ptr)) = s.freeListHead
	s.freeListHead = ptr
	s.freeCount++
}

// Contains reports whether ptr falls within this slab's cell array. It does
// not check cell alignment or free/used status.
func (s *Slab) Contains(ptr uintptr) bool {
	start := s.memory
	end := start + uintptr(s.capacity)*s.objectSize
	return ptr >= start && ptr < end
}

// IsFull reports whether every cell is allocated.
func (s *Slab) IsFull() bool { return s.freeCount == 0 }

// IsEmpty reports whether every cell is free.
func (s *Slab) IsEmpty() bool { return s.freeCount == s.capacity }

// FreeCount returns the number of currently free cells.
func (s *Slab) FreeCount() int { return s.freeCount }

// UsedCount returns the number of currently allocated cells.
func (s *Slab) UsedCount() int { return s.capacity - s.freeCount }

// Capacity returns the total number of cells in the slab.
func (s *Slab) Capacity() int { return s.capacity }

// ObjectSize returns the cell size in bytes.
func (s *Slab) ObjectSize() uintptr { return s.objectSize }
