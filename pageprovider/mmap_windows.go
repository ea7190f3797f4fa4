// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2017 The Memory Authors.

//go:build windows

package pageprovider

import (
	"os"
	"sync"
	"syscall"
)

// Mmap is a Provider that backs each page with its own file mapping view.
type Mmap struct{}

var (
	handleMu  sync.Mutex
	handleMap = map[uintptr]syscall.Handle{}
)

// AcquirePage maps a fresh, page-aligned region of PageSize bytes.
func (Mmap) AcquirePage() (uintptr, error) {
	flProtect := uint32(syscall.PAGE_READWRITE)
	dwDesiredAccess := uint32(syscall.FILE_MAP_WRITE)

	h, errno := syscall.CreateFileMapping(syscall.Handle(^uintptr(0)), nil, flProtect, 0, uint32(PageSize), nil)
	if h == 0 {
		return 0, os.NewSyscallError("CreateFileMapping", errno)
	}

	addr, errno := syscall.MapViewOfFile(h, dwDesiredAccess, 0, 0, uintptr(PageSize))
	if addr == 0 {
		return 0, os.NewSyscallError("MapViewOfFile", errno)
	}

	if addr&(PageSize-1) != 0 {
		panic("pageprovider: mmap returned a misaligned page")
	}

	handleMu.Lock()
	handleMap[addr] = h
	handleMu.Unlock()
	return addr, nil
}
