// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recomp

import (
	"fmt"

	"github.com/dynarecore/r4300ppc/mips"
	"github.com/dynarecore/r4300ppc/page"
)

// Guest address layout: the two segments below are cached/uncached
// mirrors of the same physical RDRAM and are treated as identity-mapped
// (no MMU involvement); anything else goes through the injected MMU.
const (
	cachedSegBase   = 0x80000000
	uncachedSegBase = 0xA0000000
	directSegEnd    = 0xC0000000
	mirrorBit       = 0x20000000 // the only bit distinguishing the two direct segments
)

// physicalPageIndex resolves a guest virtual address to the registry key
// the page aliasing rule uses: for the two direct RDRAM segments this is
// the address with the mirror bit (and everything above it) masked off,
// so both mirrors of one physical page resolve to the same index; for
// every other address it defers to the injected MMU.
func (rc *Recompiler) physicalPageIndex(vaddr uint32) (uint32, error) {
	if vaddr >= cachedSegBase && vaddr < directSegEnd {
		return (vaddr &^ (mirrorBit | 0x40000000 | 0x80000000)) >> 12, nil
	}
	if rc.MMU == nil {
		return 0, fmt.Errorf("recomp: address %#x is outside the direct RDRAM segments and no MMU is configured", vaddr)
	}
	phys, err := rc.MMU.VirtualToPhysical(vaddr, 2)
	if err != nil {
		return 0, err
	}
	return phys >> 12, nil
}

// InitBlock registers a page of guest code in the physical-page registry,
// allocating its host_map if this is the first registration for the
// physical page, and registers the physical page the block's last byte
// falls in as well (relevant for TLB-mapped regions whose start and end
// may straddle distinct physical pages). It clears the invalidation bit
// for every physical index it touches.
func (rc *Recompiler) InitBlock(startAddr uint32, guestCode []mips.Instr) (*page.Page, error) {
	endAddr := startAddr + page.InstrsPerPage*4

	startIdx, err := rc.physicalPageIndex(startAddr)
	if err != nil {
		return nil, err
	}
	pg := rc.Registry.GetOrCreate(startIdx, startAddr, endAddr, nil)
	pg.GuestCode = guestCode
	if rc.InvalidCode != nil {
		rc.InvalidCode.Set(startIdx, false)
	}

	if endIdx, err := rc.physicalPageIndex(endAddr - 4); err == nil && endIdx != startIdx {
		rc.Registry.GetOrCreate(endIdx, startAddr, endAddr, pg.HostMap)
		if rc.InvalidCode != nil {
			rc.InvalidCode.Set(endIdx, false)
		}
	}
	return pg, nil
}

// DeinitBlock tears a page's registration down entirely: it first runs
// InvalidateBlock (freeing functions and, as a side effect, re-registering
// the page), then un-registers every physical index the page touches and
// marks them invalid, leaving the page's host_map nulled out. This
// mirrors deinit_block's call-then-undo shape in the original recompiler.
func (rc *Recompiler) DeinitBlock(pg *page.Page) {
	rc.InvalidateBlock(pg)

	startIdx, err := rc.physicalPageIndex(pg.StartAddress)
	if err == nil {
		rc.Registry.Delete(startIdx)
		if rc.InvalidCode != nil {
			rc.InvalidCode.Set(startIdx, true)
		}
	}
	if endIdx, err := rc.physicalPageIndex(pg.EndAddress - 4); err == nil && endIdx != startIdx {
		rc.Registry.Delete(endIdx)
		if rc.InvalidCode != nil {
			rc.InvalidCode.Set(endIdx, true)
		}
	}
	pg.HostMap = nil
}

// InvalidateBlock frees every Function on the page through the
// recompilation cache, clears the function list and host_map, then
// re-runs InitBlock so the page remains registered and ready for the
// next RecompileBlock call.
func (rc *Recompiler) InvalidateBlock(pg *page.Page) {
	for _, fn := range pg.Functions {
		rc.Cache.Free(pg.StartAddress + fn.StartOffset*4)
		if err := fn.Close(); err != nil {
			logger.Printf("invalidate_block: closing function buffer: %v", err)
		}
	}
	pg.Functions = nil
	pg.ClearHostMap()

	if _, err := rc.InitBlock(pg.StartAddress, pg.GuestCode); err != nil {
		logger.Printf("invalidate_block: re-init failed: %v", err)
	}
}
