// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mips provides decoding helpers for R4300i (MIPS) instruction
// words. It only implements the fields the block recompiler needs to
// discover branch/jump destinations and patch their targets; full
// semantic decode (the per-opcode translator) is out of scope.
package mips

// Instr is a raw 32-bit MIPS instruction word.
type Instr uint32

// Opcode family constants, as read from the top 6 bits of the word.
const (
	OpcodeSpecial Instr = 0x00 // 'R'-type: function field selects the operation (e.g. JR)
	OpcodeRegimm  Instr = 0x01 // BLTZ/BGEZ family; function field 0x11 doubles as the unconditional B encoding
	OpcodeJ       Instr = 0x02
	OpcodeJAL     Instr = 0x03
	OpcodeBEQ     Instr = 0x04
	OpcodeBNE     Instr = 0x05
	OpcodeBLEZ    Instr = 0x06
	OpcodeBGTZ    Instr = 0x07
	OpcodeCOP0    Instr = 0x10
	OpcodeCOP1    Instr = 0x11
	OpcodeBEQL    Instr = 0x14
	OpcodeBNEL    Instr = 0x15
	OpcodeBLEZL   Instr = 0x16
	OpcodeBGTZL   Instr = 0x17
)

// Function-field constants for OpcodeSpecial and OpcodeCOP0.
const (
	FuncJR   Instr = 0x08
	FuncERET Instr = 0x18
)

// FrmtBC is the MIPS_FRMT_BC sub-opcode for OpcodeCOP1, read from the RS field.
const FrmtBC = 0x08

// Opcode returns the 6-bit opcode field.
func (i Instr) Opcode() Instr { return (i >> 26) & 0x3F }

// Func returns the 6-bit function field used by 'R'-type instructions.
func (i Instr) Func() Instr { return i & 0x3F }

// RS returns the 5-bit rs field.
func (i Instr) RS() uint32 { return uint32(i>>21) & 0x1F }

// RT returns the 5-bit rt field.
func (i Instr) RT() uint32 { return uint32(i>>16) & 0x1F }

// RD returns the 5-bit rd field.
func (i Instr) RD() uint32 { return uint32(i>>11) & 0x1F }

// Immed returns the raw 16-bit immediate field, unsign-extended.
func (i Instr) Immed() uint32 { return uint32(i) & 0xFFFF }

// SignExtendImmed returns the 16-bit immediate field, sign-extended to 32 bits.
// This is the branch displacement used by conditional branches.
func (i Instr) SignExtendImmed() int32 {
	v := i.Immed()
	if v&0x8000 != 0 {
		v |= 0xFFFF0000
	}
	return int32(v)
}

// LI returns the 26-bit jump index used by J/JAL.
func (i Instr) LI() uint32 { return uint32(i) & 0x3FFFFFF }

// IsCOP1BranchCond reports whether i is the COP1 BC (floating-point
// condition branch) encoding.
func (i Instr) IsCOP1BranchCond() bool {
	return i.Opcode() == OpcodeCOP1 && i.RS() == FrmtBC
}

// IsConditionalBranch reports whether i is one of the branch families that
// Pass 0 must scan for local destinations: BEQ, BNE, BLEZ, BGTZ and their
// "likely" (L-suffixed) variants, the REGIMM family (which carries the
// unconditional 'B' encoding), plus the COP1 BC encoding.
func (i Instr) IsConditionalBranch() bool {
	switch i.Opcode() {
	case OpcodeRegimm, OpcodeBEQ, OpcodeBNE, OpcodeBLEZ, OpcodeBGTZ,
		OpcodeBEQL, OpcodeBNEL, OpcodeBLEZL, OpcodeBGTZL:
		return true
	}
	return i.IsCOP1BranchCond()
}

// IsAbsoluteJump reports whether i is J or JAL.
func (i Instr) IsAbsoluteJump() bool {
	return i.Opcode() == OpcodeJ || i.Opcode() == OpcodeJAL
}

// IsJ reports whether i is specifically J (as opposed to JAL); Pass 0
// terminates after J's delay slot but continues scanning after JAL's.
func (i Instr) IsJ() bool { return i.Opcode() == OpcodeJ }

// IsRegisterJump reports whether i is JR.
func (i Instr) IsRegisterJump() bool {
	return i.Opcode() == OpcodeSpecial && i.Func() == FuncJR
}

// IsERET reports whether i is the COP0 ERET instruction.
func (i Instr) IsERET() bool {
	return i.Opcode() == OpcodeCOP0 && i.Func() == FuncERET
}

// TerminatesFunction reports whether i ends the enclosing function for
// Pass 0's purposes (JR or ERET); its delay slot is still consumed.
func (i Instr) TerminatesFunction() bool {
	return i.IsRegisterJump() || i.IsERET()
}
