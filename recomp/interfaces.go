// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package recomp implements the Block Recompiler: the Pass 2 driver that
// orchestrates Branch-Target analysis, per-opcode translation,
// back-patching, buffer growth and page/function bookkeeping described by
// the recompiler design. The per-opcode translator, register allocator,
// recompilation cache eviction policy, guest MMU and host cache
// maintenance are external collaborators, injected here as interfaces.
package recomp

import "github.com/dynarecore/r4300ppc/page"

// Translator is the per-opcode translator ("convert"): it reads guest
// instructions through the Recompiler's source cursor, emits PowerPC
// instructions through its emission cursor, and may defer branch/jump
// targets via AddJump/AddJumpSpecial. Producing optimal PowerPC code,
// and the opcode semantics themselves, are out of scope for this module;
// callers supply their own Translator (see cmd/r4300dump for a stub).
type Translator interface {
	Convert(rc *Recompiler) error
}

// RegisterAllocator is the register-mapping engine's block/mapping hooks.
// Its internal state machine (which guest registers live in which host
// registers) is out of scope here; the driver only needs to tell it when
// a new block starts and when accumulated register state must be
// flushed to a concrete mapping (a branch destination, or, when
// UseRegisterMaps is false, every instruction boundary).
type RegisterAllocator interface {
	StartNewBlock()
	StartNewMapping()
}

// Cache is the recompilation cache: it owns the eviction policy for
// host-instruction buffers. Alloc provisions a fresh buffer sized for a
// newly discovered Function; Realloc grows an existing Function's buffer
// in place (the Function's Code field is mutated, its base address may
// move — the caller detects this by comparing Code.Base() before and
// after); Free releases the buffer backing the function that started at
// guestAddr. Eviction policy itself is out of scope; see PlainAllocator
// for a non-evicting default.
type Cache interface {
	Alloc(size int, guestAddr uint32, fn *page.Function) error
	Realloc(fn *page.Function, size int) error
	Free(guestAddr uint32)
}

// MMU resolves a guest virtual address to a physical one, for pages
// outside the two fixed cached/uncached mirror windows.
type MMU interface {
	VirtualToPhysical(vaddr uint32, mode int) (uint32, error)
}

// CacheMaintainer issues the host data/instruction cache maintenance
// calls required before newly emitted code may be executed.
type CacheMaintainer interface {
	DCFlushRange(addr uintptr, n int)
	ICInvalidateRange(addr uintptr, n int)
}
