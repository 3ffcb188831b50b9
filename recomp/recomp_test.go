// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recomp

import (
	"testing"

	"github.com/dynarecore/r4300ppc/mips"
	"github.com/dynarecore/r4300ppc/page"
	"github.com/dynarecore/r4300ppc/ppc"
)

// nopTranslator consumes exactly one guest instruction and emits exactly
// one host instruction per Convert call, regardless of opcode. This is
// enough to exercise the driver's loop/growth/patch/flush mechanics
// without depending on real per-opcode semantics (the real translator is
// an out-of-scope collaborator).
type nopTranslator struct{}

func (nopTranslator) Convert(rc *Recompiler) error {
	rc.GetNextSrc()
	rc.SetNextDst(ppc.Instr(0))
	return nil
}

type countingAllocator struct {
	blocks, mappings int
}

func (c *countingAllocator) StartNewBlock()   { c.blocks++ }
func (c *countingAllocator) StartNewMapping() { c.mappings++ }

type countingMaintainer struct {
	dcFlushes, icInvalidates int
}

func (c *countingMaintainer) DCFlushRange(addr uintptr, n int)      { c.dcFlushes++ }
func (c *countingMaintainer) ICInvalidateRange(addr uintptr, n int) { c.icInvalidates++ }

func newTestRecompiler() (*Recompiler, *countingAllocator, *countingMaintainer) {
	alloc := &countingAllocator{}
	maint := &countingMaintainer{}
	rc := New(page.NewRegistry(), page.NewBitInvalidCode(1<<20), nopTranslator{}, alloc, PlainAllocator{}, nil, maint)
	return rc, alloc, maint
}

func jrInstr() mips.Instr { return mips.Instr(mips.OpcodeSpecial<<26) | mips.FuncJR }

func straightLineCode() []mips.Instr {
	code := make([]mips.Instr, page.InstrsPerPage)
	for i := 0; i < 8; i++ {
		code[i] = 0
	}
	code[8] = jrInstr()
	code[9] = 0
	return code
}

// S1: 8 arithmetic instructions, JR, delay-slot NOP.
func TestRecompileBlockStraightLine(t *testing.T) {
	rc, alloc, maint := newTestRecompiler()
	pg := page.NewPage(0x80000000, 0x80001000, straightLineCode())

	if err := rc.RecompileBlock(pg, 0x80000000); err != nil {
		t.Fatalf("RecompileBlock: %v", err)
	}
	if len(pg.Functions) != 1 {
		t.Fatalf("Functions = %d, want 1", len(pg.Functions))
	}
	fn := pg.Functions[0]
	if fn.StartOffset != 0 || fn.EndOffset != 9 {
		t.Errorf("function range = [%d,%d), want [0,9)", fn.StartOffset, fn.EndOffset)
	}
	for i := 0; i < 9; i++ {
		if _, ok := pg.HostAddressAt(i); !ok {
			t.Errorf("HostAddressAt(%d) absent, want present", i)
		}
	}
	if alloc.blocks != 1 {
		t.Errorf("StartNewBlock called %d times, want 1", alloc.blocks)
	}
	if maint.dcFlushes != 1 || maint.icInvalidates != 1 {
		t.Errorf("cache maintenance calls = (%d,%d), want (1,1)", maint.dcFlushes, maint.icInvalidates)
	}
}

// S5: function spans pages (no terminator before page end) — expect a
// jump pad appended and UseRegisterMaps-driven per-instruction flushing.
func TestRecompileBlockSpansPageAppendsJumpPad(t *testing.T) {
	rc, alloc, _ := newTestRecompiler()
	code := make([]mips.Instr, page.InstrsPerPage)
	pg := page.NewPage(0x80000000, 0x80001000, code)

	if err := rc.RecompileBlock(pg, 0x80000000); err != nil {
		t.Fatalf("RecompileBlock: %v", err)
	}
	fn := pg.Functions[0]
	if fn.Length != page.InstrsPerPage+jumpPadSize {
		t.Errorf("fn.Length = %d, want %d", fn.Length, page.InstrsPerPage+jumpPadSize)
	}
	// UseRegisterMaps false means every instruction boundary is a flush
	// point: one call per guest instruction, plus the final flush.
	if alloc.mappings != page.InstrsPerPage+1 {
		t.Errorf("StartNewMapping called %d times, want %d", alloc.mappings, page.InstrsPerPage+1)
	}
}

// S6: two recompile_block calls on the same page with overlapping
// function bounds; only the newer function survives.
func TestRecompileBlockOverlapEviction(t *testing.T) {
	rc, _, _ := newTestRecompiler()
	code := straightLineCode()
	// A second, overlapping function starting mid-way through the first.
	code[3] = jrInstr()
	code[4] = 0
	pg := page.NewPage(0x80000000, 0x80001000, code)

	if err := rc.RecompileBlock(pg, 0x80000000); err != nil {
		t.Fatalf("first RecompileBlock: %v", err)
	}
	first := pg.Functions[0]

	if err := rc.RecompileBlock(pg, 0x80000000+3*4); err != nil {
		t.Fatalf("second RecompileBlock: %v", err)
	}
	if len(pg.Functions) != 1 {
		t.Fatalf("Functions = %d after overlap, want 1", len(pg.Functions))
	}
	if pg.Functions[0] == first {
		t.Error("the overlapping (older) function survived; want only the newer one")
	}
}

func TestInitBlockRegistersAliasedMirror(t *testing.T) {
	invalid := page.NewBitInvalidCode(1 << 20)
	rc := New(page.NewRegistry(), invalid, nopTranslator{}, &countingAllocator{}, PlainAllocator{}, nil, &countingMaintainer{})

	code := make([]mips.Instr, page.InstrsPerPage)
	pg, err := rc.InitBlock(0x80000000, code)
	if err != nil {
		t.Fatalf("InitBlock: %v", err)
	}
	if invalid.Get(0) {
		t.Error("physical page 0 still marked invalid after InitBlock")
	}
	pg.SetHostAddress(5, 0xbeef)

	// The uncached mirror of the same physical page.
	again, err := rc.InitBlock(0xA0000000, code)
	if err != nil {
		t.Fatalf("mirror InitBlock: %v", err)
	}
	if again != pg {
		t.Fatal("InitBlock on the uncached mirror did not return the same canonical *Page")
	}
	if addr, ok := again.HostAddressAt(5); !ok || addr != 0xbeef {
		t.Errorf("HostAddressAt(5) = %#x, %v, want 0xbeef, true", addr, ok)
	}
}

func TestDeinitThenInitIsIdempotent(t *testing.T) {
	invalid := page.NewBitInvalidCode(1 << 20)
	rc := New(page.NewRegistry(), invalid, nopTranslator{}, &countingAllocator{}, PlainAllocator{}, nil, &countingMaintainer{})

	code := straightLineCode()
	pg, err := rc.InitBlock(0x80000000, code)
	if err != nil {
		t.Fatalf("InitBlock: %v", err)
	}
	if err := rc.RecompileBlock(pg, 0x80000000); err != nil {
		t.Fatalf("RecompileBlock: %v", err)
	}
	if len(pg.Functions) == 0 {
		t.Fatal("expected at least one function before deinit")
	}

	rc.DeinitBlock(pg)
	if !invalid.Get(0) {
		t.Error("physical page 0 not marked invalid after DeinitBlock")
	}
	if pg.HostMap != nil {
		t.Error("HostMap not nulled out after DeinitBlock")
	}

	pg2, err := rc.InitBlock(0x80000000, code)
	if err != nil {
		t.Fatalf("re-InitBlock after deinit: %v", err)
	}
	for i, addr := range pg2.HostMap {
		if addr != 0 {
			t.Fatalf("HostMap[%d] = %#x after re-init, want 0 (all-absent)", i, addr)
		}
	}
	if len(pg2.Functions) != 0 {
		t.Errorf("Functions = %d after re-init, want 0", len(pg2.Functions))
	}
}

func TestRecompileBlockPanicsOnReentry(t *testing.T) {
	rc, _, _ := newTestRecompiler()
	rc.recompiling = true
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on re-entrant RecompileBlock call")
		}
	}()
	pg := page.NewPage(0x80000000, 0x80001000, straightLineCode())
	rc.RecompileBlock(pg, 0x80000000)
}
