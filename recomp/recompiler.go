// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recomp

import (
	"github.com/dynarecore/r4300ppc/internal/emitcursor"
	"github.com/dynarecore/r4300ppc/internal/jumptable"
	"github.com/dynarecore/r4300ppc/internal/srccursor"
	"github.com/dynarecore/r4300ppc/page"
	"github.com/dynarecore/r4300ppc/pass0"
)

// instrSize is the width, in bytes, of one host (PowerPC) instruction.
const instrSize = 4

// growHeadroom is the translate loop's slot-remaining trigger (the
// "code_length + 64 >= max_length" check).
const growHeadroom = 64

// JumpPadConfig supplies the host-ABI details the jump pad (step 11 of
// recompile_block) needs to hand control back to the dispatcher: which
// scratch/return registers it may clobber, and the address of the
// dispatcher's noCheckInterrupt flag. These are dispatcher-specific and
// therefore configuration, not something this module can hard-code.
type JumpPadConfig struct {
	ScratchReg           uint32
	ValueReg             uint32
	ReturnPCReg          uint32
	NoCheckInterruptAddr uintptr
}

// DefaultJumpPadConfig is a reasonable default for a dispatcher ABI using
// r3 as the scratch address register, r4 as the value/return-PC register.
var DefaultJumpPadConfig = JumpPadConfig{ScratchReg: 3, ValueReg: 4, ReturnPCReg: 4}

// Recompiler is the Block Recompiler: the Pass 2 driver. One Recompiler
// owns the long-lived collaborators and the page registry; RecompileBlock
// drives one page/entry-offset through the full pass sequence.
//
// RecompileBlock is not re-entrant: a Translator that itself triggered a
// nested RecompileBlock call would corrupt the cursor/jump-table state
// that call is using. The recompiling flag guards against this.
type Recompiler struct {
	Registry        *page.Registry
	InvalidCode     page.InvalidCode
	Translator      Translator
	Allocator       RegisterAllocator
	Cache           Cache
	MMU             MMU
	CacheMaintainer CacheMaintainer
	JumpPad         JumpPadConfig

	recompiling bool

	pg       *page.Page
	fn       *page.Function
	src      *srccursor.Cursor
	dst      *emitcursor.Cursor
	jumps    jumptable.Table
	pass0Res *pass0.Result
	entryOff int // the current function's entry offset within pg, in instructions
}

// New constructs a Recompiler with the given long-lived collaborators and
// the default jump-pad ABI configuration.
func New(reg *page.Registry, invalid page.InvalidCode, tr Translator, ra RegisterAllocator, cache Cache, mmu MMU, cm CacheMaintainer) *Recompiler {
	return &Recompiler{
		Registry: reg, InvalidCode: invalid, Translator: tr,
		Allocator: ra, Cache: cache, MMU: mmu, CacheMaintainer: cm,
		JumpPad: DefaultJumpPadConfig,
	}
}

// RecompileBlock is recompile_block(page, entry_guest_addr): it discovers
// the function starting at entryGuestAddr, translates it, back-patches
// its branches/jumps, and publishes it for execution.
func (rc *Recompiler) RecompileBlock(pg *page.Page, entryGuestAddr uint32) error {
	if rc.recompiling {
		panic("recomp: re-entrant RecompileBlock call")
	}
	rc.recompiling = true
	defer func() { rc.recompiling = false }()

	entryOffset := page.EntryOffset(entryGuestAddr)
	addrFirst := pg.StartAddress + uint32(entryOffset)*4
	codeSlice := pg.GuestCode[entryOffset:]

	res, err := pass0.Scan(codeSlice, entryOffset, addrFirst, pg.EndAddress)
	if err != nil {
		// AssertionFailure: fatal per the error taxonomy.
		panic(err)
	}

	startOffset := uint32(entryOffset)
	endOffset := uint32(page.EntryOffset(res.AddrLast))
	fn := &page.Function{StartOffset: startOffset, EndOffset: endOffset}

	for _, evicted := range pg.AddFunction(fn) {
		rc.Cache.Free(pg.StartAddress + evicted.StartOffset*4)
		if err := evicted.Close(); err != nil {
			logger.Printf("recompile_block: closing evicted function: %v", err)
		}
	}

	// max_length is provisioned at 4x the guest instruction count (one
	// PowerPC_instr slot per guest byte), not the guest instruction count
	// itself — Recompile.c:99,126 uses addr_last-addr_first directly as a
	// host instruction count.
	maxLength := int(res.AddrLast - addrFirst)
	if maxLength < 1 {
		maxLength = 1
	}
	if err := rc.Cache.Alloc(maxLength, addrFirst, fn); err != nil {
		return &ErrAllocation{Op: "alloc", Err: err}
	}

	rc.pg = pg
	rc.fn = fn
	rc.src = srccursor.New(codeSlice[:res.SrcLastIndex], addrFirst, 0)
	rc.dst = emitcursor.NewCursor(fn.Code)
	rc.jumps.Reset()
	rc.pass0Res = res
	rc.entryOff = entryOffset

	rc.Allocator.StartNewBlock()

	for rc.src.Remaining() > 0 {
		if rc.dst.Index()+growHeadroom >= fn.Code.Cap() {
			if err := rc.grow(fn.Code.Cap() + rc.growIncrement(fn.Code.Cap())); err != nil {
				return err
			}
		}

		local := rc.src.Index()
		pageRel := entryOffset + local
		if (pageRel < len(res.IsJumpDst) && res.IsJumpDst[pageRel]) || !res.UseRegisterMaps {
			rc.Allocator.StartNewMapping()
		}
		pg.SetHostAddress(pageRel, rc.dst.Position())

		if err := rc.Translator.Convert(rc); err != nil {
			return err
		}
		if rc.dst.Index() > fn.Code.Cap() {
			return ErrEmissionOverflow{Emitted: rc.dst.Index(), Capacity: fn.Code.Cap()}
		}
	}
	rc.Allocator.StartNewMapping()
	fn.Length = rc.dst.Index()

	if !res.UseRegisterMaps {
		if rc.dst.Index()+jumpPadSize >= fn.Code.Cap() {
			if err := rc.grow(fn.Code.Cap() + jumpPadSize); err != nil {
				return err
			}
		}
		rc.emitJumpPad(res.AddrLast)
		fn.Length = rc.dst.Index()
	}

	if err := rc.jumps.PatchAll(pg, fn.Code, pg.StartAddress, logger); err != nil {
		logger.Printf("patch_all: %v", err)
	}

	if err := fn.Code.Finalize(); err != nil {
		return &ErrAllocation{Op: "finalize", Err: err}
	}
	base := fn.Code.AddressOf(0)
	rc.CacheMaintainer.DCFlushRange(base, fn.Length*instrSize)
	rc.CacheMaintainer.ICInvalidateRange(base, fn.Length*instrSize)

	rc.pg, rc.fn, rc.src, rc.dst, rc.pass0Res = nil, nil, nil, nil, nil
	return nil
}

// growIncrement implements "grow by max(64, max_length/2)".
func (rc *Recompiler) growIncrement(maxLength int) int {
	inc := growHeadroom
	if half := maxLength / 2; half > inc {
		inc = half
	}
	return inc
}

// grow reallocates the current function's buffer to newCap instructions
// and fixes up every outstanding absolute reference (host_map entries
// already populated for this function, and jump-table patch sites
// recorded so far) by the base-address delta.
func (rc *Recompiler) grow(newCap int) error {
	oldBase := rc.fn.Code.Base()
	rc.fn.Length = rc.dst.Index()
	if err := rc.Cache.Realloc(rc.fn, newCap); err != nil {
		return &ErrAllocation{Op: "realloc", Err: err}
	}
	newBase := rc.fn.Code.Base()
	delta := int64(newBase) - int64(oldBase)
	if delta == 0 {
		return nil
	}
	for off := 0; off < len(rc.pg.HostMap); off++ {
		if !rc.fn.Contains(uint32(off)) {
			continue
		}
		if addr, ok := rc.pg.HostAddressAt(off); ok {
			rc.pg.SetHostAddress(off, uintptr(int64(addr)+delta))
		}
	}
	rc.jumps.FixupPatchSites(delta)
	return nil
}
