// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recomp

import (
	"github.com/dynarecore/r4300ppc/mips"
	"github.com/dynarecore/r4300ppc/page"
	"github.com/dynarecore/r4300ppc/ppc"
)

// The methods below are the public surface RecompileBlock exposes to the
// injected Translator for the duration of one Convert call: reading the
// guest instruction stream, writing the host buffer, and deferring
// branch/jump targets. They are only valid to call from within Convert.

// GetNextSrc consumes and returns the next guest instruction.
func (rc *Recompiler) GetNextSrc() mips.Instr { return rc.src.Next() }

// PeekNextSrc returns the next guest instruction without consuming it.
func (rc *Recompiler) PeekNextSrc() mips.Instr { return rc.src.Peek() }

// HasNextSrc reports whether any guest instructions remain.
func (rc *Recompiler) HasNextSrc() bool { return rc.src.Remaining() > 0 }

// UngetLastSrc undoes the last GetNextSrc call (used to re-read a delay
// slot instruction that must be processed twice: once speculatively,
// once for real once the controlling branch's disposition is known).
func (rc *Recompiler) UngetLastSrc() { rc.src.Pushback() }

// GetSrcPC returns the guest PC of the last instruction GetNextSrc
// returned.
func (rc *Recompiler) GetSrcPC() uint32 { return rc.src.CurrentPC() }

// GetCurrDst returns the absolute host address of the next emission site.
func (rc *Recompiler) GetCurrDst() uintptr { return rc.dst.Position() }

// SetNextDst emits a host instruction at the current write head.
func (rc *Recompiler) SetNextDst(instr ppc.Instr) { rc.dst.Emit(instr) }

// NopIgnored rewinds the emission cursor by one slot. Call this only
// immediately after GetNextSrc returned a NOP occupying a delay slot
// that turned out to be unreachable (the branch preceding it was not
// taken in a way that executes the slot): the NOP byte is still present
// in the buffer but will be silently overwritten by the next SetNextDst.
func (rc *Recompiler) NopIgnored() {
	if rc.src.Remaining() > 0 {
		rc.dst.Rewind()
	}
}

// ResetCodeAddr re-records the host_map entry for the instruction
// GetSrcPC currently identifies, pointing it at the current dst
// position. Used after emitting extra flush instructions ahead of an
// instruction whose host_map slot was already provisionally set.
func (rc *Recompiler) ResetCodeAddr() {
	if rc.src.Remaining() > 0 {
		rc.pg.SetHostAddress(page.EntryOffset(rc.GetSrcPC()), rc.dst.Position())
	}
}

// IsJDst reports whether the guest instruction GetSrcPC currently
// identifies is a recorded branch/jump destination within this function
// (a register-map flush point). pass0Res.IsJumpDst is indexed
// page-relative, and page.EntryOffset already yields a page-relative
// offset, so no further adjustment against rc.entryOff is needed here.
func (rc *Recompiler) IsJDst() bool {
	off := page.EntryOffset(rc.GetSrcPC())
	return off >= 0 && off < len(rc.pass0Res.IsJumpDst) && rc.pass0Res.IsJumpDst[off]
}

// AddJump defers a normal branch/jump patch. Call it immediately after
// GetNextSrc returns the branch/jump instruction itself (before
// consuming its delay slot): the source cursor's index at that point,
// converted to page-relative (rc.entryOff + rc.src.Index()), is the
// GuestSourceIndex the jump table's patch arithmetic expects — PatchAll
// resolves it against the page-relative HostMap, not the entry-relative
// source cursor. guestRaw is the raw immediate read from the MIPS
// instruction (sign-extended displacement for branches, 26-bit LI for
// jumps).
func (rc *Recompiler) AddJump(guestRaw uint32, isJump, isOutOfBlock bool) int {
	site := rc.dst.Position() - instrSize
	return rc.jumps.AddJump(guestRaw, rc.entryOff+rc.src.Index(), site, isJump, isOutOfBlock)
}

// AddJumpSpecial defers translator-fabricated control flow whose target
// is another host site the translator will identify itself via
// SetJumpSpecial. Call it immediately after emitting the branch/jump
// instruction to be patched.
func (rc *Recompiler) AddJumpSpecial(isJump bool) int {
	site := rc.dst.Position() - instrSize
	return rc.jumps.AddJumpSpecial(site, isJump)
}

// SetJumpSpecial supplies the resolved displacement for a record created
// by AddJumpSpecial.
func (rc *Recompiler) SetJumpSpecial(id int, displacement int32) {
	rc.jumps.SetJumpSpecial(id, displacement)
}
