// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jumptable records host branch/jump instructions whose targets
// were not yet known at emission time, and back-patches them once the
// guest-PC -> host-address mapping for the enclosing page is complete.
//
// This is the same deferred-patch shape as wagon's exec/internal/compile
// block.patchOffsets/BranchTable machinery (branches are written with a
// placeholder displacement that is rewritten once the jump target's byte
// offset is known), adapted from WebAssembly's relative-depth labels to
// the MIPS->PowerPC recompiler's guest-offset/host-address targets.
package jumptable

import (
	"fmt"

	"github.com/dynarecore/r4300ppc/ppc"
)

// Kind classifies a deferred jump record.
type Kind int

const (
	// Branch is an in-block conditional-or-unconditional MIPS branch
	// whose target is another guest offset within the same page.
	Branch Kind = iota
	// Jump is an in-block MIPS J/JAL whose target is another guest
	// offset within the same page.
	Jump
	// SpecialBranch is a translator-fabricated branch (e.g. a fast-path
	// skip) whose target is another host site the translator identifies
	// itself via SetJumpSpecial.
	SpecialBranch
	// SpecialJump is the jump-form equivalent of SpecialBranch.
	SpecialJump
	// OutOfBlock marks a branch/jump whose target lies outside the
	// current block. Patching it is deprecated; see Table.PatchAll.
	OutOfBlock
)

// Record is one deferred patch-table entry.
type Record struct {
	Kind                 Kind
	GuestTargetRaw       uint32  // raw immediate as read from MIPS; unused for Special*
	GuestSourceIndex     int     // guest offset of the instruction being patched; unused for Special*
	HostPatchSite        uintptr // absolute host address of the instruction to patch
	ResolvedDisplacement int32   // filled in by PatchAll, or directly by SetJumpSpecial
}

// HostMap resolves a guest offset within the current page to the host
// address of the first instruction emitted for it. It is satisfied by
// page.Page.
type HostMap interface {
	HostAddressAt(offset int) (uintptr, bool)
}

// Patcher reads and rewrites instruction words at absolute host addresses.
// It is satisfied by emitcursor.Buffer.
type Patcher interface {
	ReadInstrAt(addr uintptr) uint32
	WriteInstrAt(addr uintptr, instr uint32)
}

// Diagnostics receives non-fatal diagnostics raised while patching (the
// DeprecatedOutOfBlockJump condition).
type Diagnostics interface {
	Printf(format string, args ...interface{})
}

// Table is a jump-patch table, scratch storage valid only for the
// lifetime of one recompile_block call. Its zero value is ready to use.
type Table struct {
	records []Record
}

// Reset discards all records, readying the table for a fresh
// recompile_block call.
func (t *Table) Reset() {
	t.records = t.records[:0]
}

// Len reports how many records are outstanding.
func (t *Table) Len() int { return len(t.records) }

// AddJump records a normal deferred branch or jump: guestRaw is the raw
// immediate (sign-extended displacement for branches, 26-bit LI for
// jumps), guestSourceIndex is the guest offset of the instruction being
// patched, and hostPatchSite is the host address of the emitted
// instruction. isJump selects Jump vs Branch; isOutOfBlock selects
// OutOfBlock regardless. It returns an opaque id for later reference.
func (t *Table) AddJump(guestRaw uint32, guestSourceIndex int, hostPatchSite uintptr, isJump, isOutOfBlock bool) int {
	kind := Branch
	switch {
	case isOutOfBlock:
		kind = OutOfBlock
	case isJump:
		kind = Jump
	}
	id := len(t.records)
	t.records = append(t.records, Record{
		Kind:             kind,
		GuestTargetRaw:   guestRaw,
		GuestSourceIndex: guestSourceIndex,
		HostPatchSite:    hostPatchSite,
	})
	return id
}

// FixupPatchSites adds delta to every outstanding record's host patch
// site. Called when the owning Function's code buffer has just been
// relocated by a Buffer.Grow; every patch site recorded so far for the
// current recompile_block call necessarily points into that one buffer.
func (t *Table) FixupPatchSites(delta int64) {
	for i := range t.records {
		t.records[i].HostPatchSite = uintptr(int64(t.records[i].HostPatchSite) + delta)
	}
}

// AddJumpSpecial records translator-fabricated control flow whose target
// the translator will itself identify later via SetJumpSpecial.
func (t *Table) AddJumpSpecial(hostPatchSite uintptr, isJump bool) int {
	kind := SpecialBranch
	if isJump {
		kind = SpecialJump
	}
	id := len(t.records)
	t.records = append(t.records, Record{Kind: kind, HostPatchSite: hostPatchSite})
	return id
}

// SetJumpSpecial supplies the resolved displacement for a record created
// by AddJumpSpecial. It is a no-op if id does not refer to a special
// record.
func (t *Table) SetJumpSpecial(id int, displacement int32) {
	if id < 0 || id >= len(t.records) {
		return
	}
	r := &t.records[id]
	if r.Kind != SpecialBranch && r.Kind != SpecialJump {
		return
	}
	r.ResolvedDisplacement = displacement
}

// PatchAll walks every outstanding record and rewrites its patch site,
// using hm to resolve in-block targets to host addresses and p to read
// and rewrite instruction words. pageStartAddress is the guest virtual
// address of offset 0 in the owning page (used to decode absolute jump
// targets). diag receives a diagnostic for every OutOfBlock record
// encountered (surfaced, not fixed — see spec.md's DeprecatedOutOfBlockJump).
//
// PatchAll always drains the table, even on a patch error for one record,
// so that the table is guaranteed empty once recompile_block returns (the
// invariant every recompile_block call relies on).
func (t *Table) PatchAll(hm HostMap, p Patcher, pageStartAddress uint32, diag Diagnostics) error {
	defer t.Reset()

	var firstErr error
	for _, r := range t.records {
		if err := t.patchOne(r, hm, p, pageStartAddress, diag); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Table) patchOne(r Record, hm HostMap, p Patcher, pageStartAddress uint32, diag Diagnostics) error {
	switch r.Kind {
	case SpecialBranch:
		instr := ppc.Instr(p.ReadInstrAt(r.HostPatchSite))
		ppc.SetBD(&instr, r.ResolvedDisplacement)
		p.WriteInstrAt(r.HostPatchSite, uint32(instr))
		return nil

	case SpecialJump:
		instr := ppc.Instr(p.ReadInstrAt(r.HostPatchSite))
		ppc.SetLI(&instr, r.ResolvedDisplacement)
		p.WriteInstrAt(r.HostPatchSite, uint32(instr))
		return nil

	case OutOfBlock:
		if diag != nil {
			diag.Printf("jumptable: deprecated out-of-block jump at %#x, left unpatched", r.HostPatchSite)
		}
		return nil

	case Branch:
		offset := r.GuestSourceIndex + int(int32(r.GuestTargetRaw))
		target, ok := hm.HostAddressAt(offset)
		if !ok {
			return fmt.Errorf("jumptable: branch target offset %d has no host mapping", offset)
		}
		disp := int32(int64(target) - int64(r.HostPatchSite))
		instr := ppc.Instr(p.ReadInstrAt(r.HostPatchSite))
		ppc.SetLI(&instr, disp) // long-form unconditional encoding; see ppc.SetBD
		p.WriteInstrAt(r.HostPatchSite, uint32(instr))
		return nil

	case Jump:
		targetAddr := (r.GuestTargetRaw << 2) | (pageStartAddress & 0xF0000000)
		offset := int((targetAddr - pageStartAddress) >> 2)
		target, ok := hm.HostAddressAt(offset)
		if !ok {
			return fmt.Errorf("jumptable: jump target offset %d has no host mapping", offset)
		}
		disp := int32(int64(target) - int64(r.HostPatchSite))
		instr := ppc.Instr(p.ReadInstrAt(r.HostPatchSite))
		ppc.SetLI(&instr, disp)
		p.WriteInstrAt(r.HostPatchSite, uint32(instr))
		return nil
	}
	return fmt.Errorf("jumptable: unknown record kind %d", r.Kind)
}
