// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pass0 implements the Branch-Target Analyzer: a single forward
// scan over a guest MIPS instruction stream that determines where the
// enclosing function ends and which in-block offsets are reachable as
// local branch/jump destinations (register-map flush points for Pass 2).
//
// The scanning shape (walk forward, consult a small stack of "what have we
// seen so far" state, stop at a well-defined terminator) mirrors
// disasm.Disassemble's single forward pass over WebAssembly bytecode; here
// the "stack" collapses to a single 1024-bit destination vector because
// MIPS branch targets are absolute offsets, not structured block labels.
package pass0

import (
	"fmt"

	"github.com/dynarecore/r4300ppc/mips"
)

// NumSlots is the size, in bits, of the jump-destination vector.
const NumSlots = 1024

// ErrBranchOutOfRange is returned when a conditional branch's computed
// destination index falls outside [0, NumSlots) — the AssertionFailure
// condition from the spec's error taxonomy.
type ErrBranchOutOfRange struct {
	Index int
}

func (e ErrBranchOutOfRange) Error() string {
	return fmt.Sprintf("pass0: branch destination index %d out of range [0, %d)", e.Index, NumSlots)
}

// Result is the outcome of scanning one function starting at an entry
// offset within a page.
type Result struct {
	// IsJumpDst[i] is true if guest offset i (relative to the page start)
	// is a branch/jump destination within the scanned function.
	IsJumpDst [NumSlots]bool

	// SrcLastIndex is the guest offset, exclusive, one past the last
	// instruction belonging to this function (relative to the slice
	// passed to Scan).
	SrcLastIndex int

	// AddrLast is the guest virtual address, exclusive, of the end of
	// the function (or the page, if the function runs off the end).
	AddrLast uint32

	// UseRegisterMaps is true if the function terminated within this
	// page (register-map flushing may be deferred to branch
	// destinations); false if it runs past the page end (flushing must
	// happen at every instruction boundary).
	UseRegisterMaps bool
}

// Scan walks code (the guest instructions of the page, starting at the
// function's entry offset) forward. entryOffset is the page-relative
// instruction offset of code[0] (IsJumpDst is indexed page-relative, since
// it is a per-page vector, while code/addrFirst are entry-relative).
// addrFirst is the guest virtual address of code[0]; pageEndAddr is the
// guest virtual address, exclusive, of the end of the owning page. It
// returns the destination vector and function bounds described in
// spec.md §4.3.
func Scan(code []mips.Instr, entryOffset int, addrFirst, pageEndAddr uint32) (*Result, error) {
	res := &Result{AddrLast: pageEndAddr}
	n := len(code)

	i := 0
	for ; uint32(i)*4+addrFirst < pageEndAddr && i < n; i++ {
		instr := code[i]

		switch {
		case instr.IsAbsoluteJump():
			li := instr.LI()
			target := (li << 2) | (addrFirst & 0xF0000000)
			if target >= addrFirst && target < res.AddrLast {
				res.IsJumpDst[li&0x3FF] = true
			}
			if instr.IsJ() {
				// Terminate right at the delay slot: the function's
				// registered range excludes it (it is still translated,
				// just via the per-opcode translator's own lookahead
				// rather than this scan), matching spec.md's S1 example.
				i++
				return finish(res, i, n, addrFirst, pageEndAddr), nil
			}
			i++ // consume the delay slot and resume scanning after it

		case instr.IsConditionalBranch():
			bd := instr.SignExtendImmed()
			delaySlotIdx := i + 1
			entryRelIdx := delaySlotIdx + int(bd)
			inBlock := entryRelIdx >= 0 && entryRelIdx < int(pageEndAddr-addrFirst)/4
			if inBlock {
				pageRelIdx := entryRelIdx + entryOffset
				if pageRelIdx < 0 || pageRelIdx >= NumSlots {
					return nil, ErrBranchOutOfRange{Index: pageRelIdx}
				}
				res.IsJumpDst[pageRelIdx] = true
			}
			i++ // consume the delay slot and resume scanning after it

		case instr.TerminatesFunction():
			// JR/ERET: terminate right at the delay slot, same as J above.
			i++
			return finish(res, i, n, addrFirst, pageEndAddr), nil
		}
	}

	return finish(res, i, n, addrFirst, pageEndAddr), nil
}

func finish(res *Result, i, n int, addrFirst, pageEndAddr uint32) *Result {
	if uint32(i)*4+addrFirst < pageEndAddr {
		res.SrcLastIndex = i
		res.AddrLast = addrFirst + uint32(i)*4
		res.UseRegisterMaps = true
	} else {
		res.SrcLastIndex = n
		res.AddrLast = pageEndAddr
		res.UseRegisterMaps = false
	}
	return res
}
