// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ppc provides the small set of PowerPC instruction-encoding
// primitives the block recompiler needs to patch branch/jump displacements
// and to emit the fixed jump-pad preamble. It deliberately does not attempt
// to be a general PowerPC assembler: the per-opcode translator that emits
// the bulk of a function's instructions is an external collaborator (see
// package recomp), and no PowerPC assembler is among this module's
// dependencies. Every encoding here is therefore hand-rolled
// bit arithmetic, mirroring the PPC_SET_BD/PPC_SET_LI macros of the
// original C recompiler.
package ppc

// Instr is a raw 32-bit PowerPC instruction word.
type Instr uint32

const (
	bMask   = 0x3FFFFFC // 'B' form LI field, pre-shifted into place (bits 2-25), AA=LK=0
	bcMask  = 0x3FFC    // 'BC' form BD field, pre-shifted into place (bits 2-15), AA=LK=0
	opB     = 18 << 26
	opBC    = 16 << 26
	opBLR   = 19<<26 | 20<<21 | 16<<1 // bclr (XO=16), BO=20 (always), BI=0, LK=0
	opAddis = 15 << 26
	opOri   = 24 << 26
	opAddi  = 14 << 26
	opStw   = 36 << 26
)

// SetLI clears the LI field of a 'B'-form branch instruction and ORs in disp
// (a byte displacement, which must fit in 26 bits including its low two
// zero bits). This is used for both the unconditional branch patch (§4.4's
// "long-form unconditional encoding") and for patching J/JAL targets.
func SetLI(instr *Instr, disp int32) {
	*instr &^= bMask
	*instr |= Instr(disp) & bMask
}

// SetBD clears the BD field of a 'BC'-form conditional branch instruction
// and ORs in disp. It patches translator-fabricated (special) branches
// only; in-block guest branches are patched with the long-form
// unconditional branch (SetLI), since PPC's 14-bit BD range cannot
// address realistic block sizes.
func SetBD(instr *Instr, disp int32) {
	*instr &^= bcMask
	*instr |= Instr(disp) & bcMask
}

// B encodes an unconditional branch (AA=0, LK=0) with LI pre-set to disp.
func B(disp int32) Instr {
	i := Instr(opB)
	SetLI(&i, disp)
	return i
}

// BLR encodes "branch to link register" (used to return to the dispatcher
// from the jump pad).
func BLR() Instr { return Instr(opBLR) }

// LIS encodes "load immediate shifted" (addis rD, 0, imm) — loads imm into
// the high 16 bits of rD.
func LIS(rD uint32, imm uint16) Instr {
	return Instr(opAddis) | Instr(rD)<<21 | Instr(imm)
}

// ORI encodes "or immediate" (ori rA, rS, imm).
func ORI(rA, rS uint32, imm uint16) Instr {
	return Instr(opOri) | Instr(rS)<<21 | Instr(rA)<<16 | Instr(imm)
}

// LI32 encodes "load immediate" (addi rD, 0, imm) for small immediates.
func LI32(rD uint32, imm uint16) Instr {
	return Instr(opAddi) | Instr(rD)<<21 | Instr(imm)
}

// STW encodes "store word" (stw rS, offset(rA)).
func STW(rS, rA uint32, offset uint16) Instr {
	return Instr(opStw) | Instr(rS)<<21 | Instr(rA)<<16 | Instr(offset)
}
