// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mips

import "testing"

func TestDecodeFields(t *testing.T) {
	// BEQ r1, r2, 0x10 -> opcode 0x04, rs=1, rt=2, immed=0x10
	i := Instr(0x04<<26 | 1<<21 | 2<<16 | 0x10)
	if got := i.Opcode(); got != OpcodeBEQ {
		t.Errorf("Opcode() = %#x, want %#x", got, OpcodeBEQ)
	}
	if got := i.RS(); got != 1 {
		t.Errorf("RS() = %d, want 1", got)
	}
	if got := i.RT(); got != 2 {
		t.Errorf("RT() = %d, want 2", got)
	}
	if got := i.Immed(); got != 0x10 {
		t.Errorf("Immed() = %#x, want 0x10", got)
	}
	if !i.IsConditionalBranch() {
		t.Error("IsConditionalBranch() = false, want true")
	}
}

func TestSignExtendImmed(t *testing.T) {
	for _, tc := range []struct {
		immed uint32
		want  int32
	}{
		{0x0003, 3},
		{0xFFFE, -2},
		{0x8000, -32768},
	} {
		i := Instr(tc.immed & 0xFFFF)
		if got := i.SignExtendImmed(); got != tc.want {
			t.Errorf("SignExtendImmed(%#x) = %d, want %d", tc.immed, got, tc.want)
		}
	}
}

func TestLI(t *testing.T) {
	// J 0x80001010 within a page based at 0x80001000: LI = addr>>2 & 0x3FFFFFF
	// = 0x404, whose low 10 bits (4) are the in-page instruction offset.
	addr := uint32(0x80001010)
	i := Instr(OpcodeJ<<26) | Instr(addr>>2)&0x3FFFFFF
	if got := i.LI(); got != 0x404 {
		t.Errorf("LI() = %#x, want 0x404", got)
	}
	if !i.IsAbsoluteJump() || !i.IsJ() {
		t.Error("expected J to be both an absolute jump and specifically J")
	}
}

func TestTerminators(t *testing.T) {
	jr := Instr(OpcodeSpecial<<26 | FuncJR)
	if !jr.IsRegisterJump() || !jr.TerminatesFunction() {
		t.Error("JR should be a register jump that terminates the function")
	}
	eret := Instr(OpcodeCOP0<<26 | FuncERET)
	if !eret.IsERET() || !eret.TerminatesFunction() {
		t.Error("ERET should terminate the function")
	}
}
