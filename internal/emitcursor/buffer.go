// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package emitcursor owns the growable, host-executable PowerPC
// instruction buffer a Function recompiles into, and the append-only
// write head (the "Code Emission Cursor" of the recompiler design) that
// walks it. The buffer is backed by an anonymous mmap region so that,
// once finalized, the host CPU can fetch from it directly; growth is
// implemented as allocate-copy-unmap (mmap offers no in-place realloc),
// which is the same shape as the original C recompiler's realloc-based
// resize, pointer fixup and all.
package emitcursor

import (
	"fmt"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// instrSize is the size in bytes of one PowerPC instruction word.
const instrSize = 4

// Buffer is a growable, page-backed instruction buffer. It is writable
// (RW) from creation until Finalize is called, after which it is
// executable (RX) and must not be written to again.
type Buffer struct {
	mem      mmap.MMap
	capacity int // capacity in instructions
}

// NewBuffer allocates a fresh RW buffer able to hold capacity instructions.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		capacity = 1
	}
	mem, err := mmap.MapRegion(nil, capacity*instrSize, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("emitcursor: mmap %d bytes: %w", capacity*instrSize, err)
	}
	return &Buffer{mem: mem, capacity: capacity}, nil
}

// Base returns the address of the buffer's first instruction.
func (b *Buffer) Base() uintptr {
	if len(b.mem) == 0 {
		return 0
	}
	return addrOf(&b.mem[0])
}

// Cap returns the buffer's capacity in instructions.
func (b *Buffer) Cap() int { return b.capacity }

// AddressOf returns the host address of instruction slot i.
func (b *Buffer) AddressOf(i int) uintptr {
	return b.Base() + uintptr(i*instrSize)
}

// Set writes instr into slot i. The buffer must not yet be finalized.
func (b *Buffer) Set(i int, instr uint32) {
	putLE32(b.mem[i*instrSize:], instr)
}

// Get reads the instruction in slot i.
func (b *Buffer) Get(i int) uint32 {
	return getLE32(b.mem[i*instrSize:])
}

// Bytes returns the first n instructions worth of bytes, for cache
// maintenance calls.
func (b *Buffer) Bytes(n int) []byte {
	return b.mem[:n*instrSize]
}

// ReadInstrAt reads the instruction word at absolute host address addr,
// which must lie within this buffer.
func (b *Buffer) ReadInstrAt(addr uintptr) uint32 {
	return b.Get(int((addr - b.Base()) / instrSize))
}

// WriteInstrAt rewrites the instruction word at absolute host address addr,
// which must lie within this buffer. Used by Pass 2 back-patching.
func (b *Buffer) WriteInstrAt(addr uintptr, instr uint32) {
	b.Set(int((addr-b.Base())/instrSize), instr)
}

// Grow reallocates the buffer to hold at least newCapacity instructions,
// preserving the first usedInstrs instructions of content, and returns the
// signed byte delta between the new and old base addresses so the caller
// can fix up any outstanding absolute references (host_map entries,
// JumpRecord patch sites). Grow must succeed; a failure here is the
// AllocationFailure condition from the recompiler's error taxonomy and is
// fatal to the caller.
func (b *Buffer) Grow(newCapacity, usedInstrs int) (delta int64, err error) {
	if newCapacity <= b.capacity {
		newCapacity = b.capacity + 1
	}
	next, err := mmap.MapRegion(nil, newCapacity*instrSize, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return 0, fmt.Errorf("emitcursor: grow to %d instructions: %w", newCapacity, err)
	}
	oldBase := b.Base()
	copy(next, b.mem[:usedInstrs*instrSize])
	if err := b.mem.Unmap(); err != nil {
		next.Unmap()
		return 0, fmt.Errorf("emitcursor: unmap old buffer: %w", err)
	}
	b.mem = next
	b.capacity = newCapacity
	newBase := b.Base()
	return int64(newBase) - int64(oldBase), nil
}

// Finalize flushes the buffer's written bytes to backing memory and flips
// the mapping from RW to RX, enforcing W^X. It must be called once Pass 2
// back-patching is complete; the caller is still responsible for driving
// the injected CacheMaintainer's DCFlushRange/ICInvalidateRange over the
// same range before any host execution of it (see recomp.Recompiler).
func (b *Buffer) Finalize() error {
	if err := b.mem.Flush(); err != nil {
		return fmt.Errorf("emitcursor: flush (dcache writeback): %w", err)
	}
	if err := unix.Mprotect(b.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("emitcursor: mprotect RX: %w", err)
	}
	return nil
}

// Close releases the buffer's backing memory.
func (b *Buffer) Close() error {
	if b.mem == nil {
		return nil
	}
	err := b.mem.Unmap()
	b.mem = nil
	return err
}
