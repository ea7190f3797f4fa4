// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2017 The Memory Authors.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

package pageprovider

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mmap is a Provider that backs each page with its own anonymous mmap
// region, always exactly PageSize bytes — the allocator's refill step is
// the one that decides how many cells that page should be cut into.
type Mmap struct{}

// AcquirePage maps a fresh, page-aligned, zero-filled region of PageSize
// bytes.
func (Mmap) AcquirePage() (uintptr, error) {
	b, err := unix.Mmap(-1, 0, PageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return 0, err
	}

	addr := uintptr(unsafe.Pointer(&b[0]))
	if addr&(PageSize-1) != 0 {
		panic("pageprovider: mmap returned a misaligned page")
	}
	return addr, nil
}
