package scache

import (
	"testing"
	"unsafe"

	"github.com/respowerr/slab-allocator/slab"
)

func newSlab(t *testing.T, objectSize, regionBytes uintptr) *slab.Slab {
	t.Helper()
	buf := make([]byte, regionBytes)
	s := slab.New(objectSize, regionBytes)
	s.Init(uintptr(unsafe.Pointer(&buf[0])))
	return s
}

func TestInsertWrongClassPanics(t *testing.T) {
	c := New(64)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic inserting a 32-byte slab into a 64-byte cache")
		}
	}()
	c.Insert(newSlab(t, 32, 4096))
}

func TestInsertFullSlabPanics(t *testing.T) {
	c := New(64)
	s := newSlab(t, 64, 256) // capacity 4
	for i := 0; i < 4; i++ {
		if _, ok := s.Alloc(); !ok {
			t.Fatal("unexpected alloc failure filling slab")
		}
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic inserting an already-full slab")
		}
	}()
	c.Insert(s)
}

func TestAllocFromEmptyCache(t *testing.T) {
	c := New(64)
	if _, ok := c.Alloc(); ok {
		t.Fatal("alloc from a cache with no slabs should fail")
	}
}

// S5 — Bucket migration.
func TestBucketMigration(t *testing.T) {
	c := New(64)
	s := newSlab(t, 64, 256) // capacity 4
	c.Insert(s)

	var ptrs []uintptr
	for i := 0; i < 4; i++ {
		p, ok := c.Alloc()
		if !ok {
			t.Fatalf("alloc %d: unexpected failure", i)
		}
		ptrs = append(ptrs, p)
	}

	st := c.Stats()
	if st.PartialSlabs != 0 || st.FullSlabs != 1 {
		t.Fatalf("stats after filling = %+v, want 0 partial / 1 full", st)
	}

	if !c.Dealloc(ptrs[0]) {
		t.Fatal("dealloc should find the owning slab")
	}

	st = c.Stats()
	if st.PartialSlabs != 1 || st.FullSlabs != 0 {
		t.Fatalf("stats after one dealloc = %+v, want 1 partial / 0 full", st)
	}
}

func TestDeallocUnknownPointer(t *testing.T) {
	c := New(64)
	c.Insert(newSlab(t, 64, 4096))
	if c.Dealloc(0xdeadbeef) {
		t.Fatal("dealloc of a foreign pointer should report false")
	}
}

func TestMultiSlabAllocPrefersPartialHead(t *testing.T) {
	c := New(64)
	first := newSlab(t, 64, 256) // capacity 4
	c.Insert(first)
	for i := 0; i < 4; i++ {
		if _, ok := c.Alloc(); !ok {
			t.Fatal("unexpected alloc failure")
		}
	}
	// first is now full; insert a second, smaller-occupancy slab.
	second := newSlab(t, 64, 256)
	c.Insert(second)

	p, ok := c.Alloc()
	if !ok {
		t.Fatal("alloc from cache with a partial slab should succeed")
	}
	if !second.Contains(p) {
		t.Fatal("alloc should have come from the partial slab, not the full one")
	}
}

func TestStatsAggregation(t *testing.T) {
	c := New(32)
	a := newSlab(t, 32, 256) // capacity 8
	b := newSlab(t, 32, 256)
	c.Insert(a)
	c.Insert(b)

	for i := 0; i < 3; i++ {
		if _, ok := c.Alloc(); !ok {
			t.Fatal("unexpected alloc failure")
		}
	}

	st := c.Stats()
	if st.TotalObjects != 16 {
		t.Fatalf("total objects = %d, want 16", st.TotalObjects)
	}
	if st.UsedObjects != 3 {
		t.Fatalf("used objects = %d, want 3", st.UsedObjects)
	}
	if st.PartialSlabs != 2 || st.FullSlabs != 0 {
		t.Fatalf("stats = %+v, want 2 partial / 0 full", st)
	}
}
