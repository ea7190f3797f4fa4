// Command slabstat exercises a sallocator.Allocator with a scripted mix
// of allocate/deallocate calls and prints per-size-class occupancy. It is
// a demonstration binary, not part of the core allocator engine.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/respowerr/slab-allocator/pageprovider"
	"github.com/respowerr/slab-allocator/sallocator"
)

func main() {
	requests := flag.Int("requests", 10000, "number of allocate calls to issue")
	arenaMB := flag.Int("arena-mb", 16, "size in MiB of the backing arena")
	seed := flag.Int64("seed", 1, "PRNG seed for the size/keep-alive mix")
	flag.Parse()

	provider := pageprovider.NewArena(*arenaMB << 20)
	a := sallocator.New(provider)

	rng := rand.New(rand.NewSource(*seed))
	var live []liveAlloc
	for i := 0; i < *requests; i++ {
		size := uintptr(1 + rng.Intn(sallocator.MaxSize))
		ptr, err := a.Allocate(size, 1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "allocate(%d) failed: %v\n", size, err)
			continue
		}
		live = append(live, liveAlloc{ptr: ptr, size: size})

		// Slow the working set's growth by occasionally freeing something
		// already allocated, so caches churn between partial and full.
		if len(live) > 64 && rng.Intn(3) == 0 {
			victim := rng.Intn(len(live))
			if err := a.Deallocate(live[victim].ptr, live[victim].size); err != nil {
				fmt.Fprintf(os.Stderr, "deallocate failed: %v\n", err)
			}
			live[victim] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}

	fmt.Print(a.Stats())
}

type liveAlloc struct {
	ptr  uintptr
	size uintptr
}
