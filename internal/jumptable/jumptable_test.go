// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jumptable

import (
	"testing"

	"github.com/dynarecore/r4300ppc/ppc"
)

// fakeHostMap is a simple offset->address map for tests.
type fakeHostMap map[int]uintptr

func (m fakeHostMap) HostAddressAt(offset int) (uintptr, bool) {
	addr, ok := m[offset]
	return addr, ok
}

// fakePatcher stores instruction words keyed by address for tests.
type fakePatcher map[uintptr]uint32

func (p fakePatcher) ReadInstrAt(addr uintptr) uint32     { return p[addr] }
func (p fakePatcher) WriteInstrAt(addr uintptr, i uint32) { p[addr] = i }

func TestPatchAllBranchForward(t *testing.T) {
	var tbl Table
	patchSite := uintptr(0x1000)
	p := fakePatcher{patchSite: uint32(ppc.B(0))}
	hm := fakeHostMap{4: 0x1010} // target host address for offset 4

	// Branch at guest offset 0 with displacement +3 (1 (delay slot) + 3 = 4)
	tbl.AddJump(uint32(int32(3)), 1, patchSite, false, false)

	if err := tbl.PatchAll(hm, p, 0x80000000, nil); err != nil {
		t.Fatalf("PatchAll: %v", err)
	}
	instr := ppc.Instr(p[patchSite])
	gotDisp := int32(instr & 0x3FFFFFC)
	if want := int32(0x1010 - 0x1000); gotDisp != want {
		t.Errorf("resolved displacement = %#x, want %#x", gotDisp, want)
	}
	if tbl.Len() != 0 {
		t.Errorf("table not empty after PatchAll: len=%d", tbl.Len())
	}
}

func TestPatchAllBranchBackward(t *testing.T) {
	var tbl Table
	patchSite := uintptr(0x2000)
	p := fakePatcher{patchSite: uint32(ppc.B(0))}
	hm := fakeHostMap{3: 0x1F00} // backward target

	tbl.AddJump(uint32(int32(-2)), 5, patchSite, false, false)
	if err := tbl.PatchAll(hm, p, 0x80000000, nil); err != nil {
		t.Fatalf("PatchAll: %v", err)
	}
	instr := ppc.Instr(p[patchSite])
	gotDisp := int32(instr<<6) >> 6 // sign-extend 26-bit field
	want := int32(0x1F00) - int32(0x2000)
	if gotDisp != want {
		t.Errorf("resolved displacement = %d, want %d", gotDisp, want)
	}
}

func TestPatchAllJump(t *testing.T) {
	var tbl Table
	patchSite := uintptr(0x3000)
	p := fakePatcher{patchSite: uint32(ppc.B(0))}
	hm := fakeHostMap{4: 0x3040}

	li := uint32(0x80001010>>2) & 0x3FFFFFF
	tbl.AddJump(li, 0, patchSite, true, false)
	if err := tbl.PatchAll(hm, p, 0x80001000, nil); err != nil {
		t.Fatalf("PatchAll: %v", err)
	}
	instr := ppc.Instr(p[patchSite])
	gotDisp := int32(instr & 0x3FFFFFC)
	if want := int32(0x3040 - 0x3000); gotDisp != want {
		t.Errorf("resolved displacement = %#x, want %#x", gotDisp, want)
	}
}

func TestPatchAllOutOfBlockLeavesUnpatchedAndDiagnoses(t *testing.T) {
	var tbl Table
	patchSite := uintptr(0x4000)
	original := uint32(0xCAFEBABE)
	p := fakePatcher{patchSite: original}
	hm := fakeHostMap{}

	var diagMsgs []string
	diag := diagFunc(func(format string, args ...interface{}) {
		diagMsgs = append(diagMsgs, format)
	})

	tbl.AddJump(0, 0, patchSite, false, true)
	if err := tbl.PatchAll(hm, p, 0x80000000, diag); err != nil {
		t.Fatalf("PatchAll returned error for OutOfBlock record: %v", err)
	}
	if p[patchSite] != original {
		t.Errorf("OutOfBlock record was patched: got %#x, want unchanged %#x", p[patchSite], original)
	}
	if len(diagMsgs) != 1 {
		t.Errorf("diagnostics count = %d, want 1", len(diagMsgs))
	}
}

type diagFunc func(format string, args ...interface{})

func (f diagFunc) Printf(format string, args ...interface{}) { f(format, args...) }

func TestSetJumpSpecial(t *testing.T) {
	var tbl Table
	patchSite := uintptr(0x5000)
	p := fakePatcher{patchSite: uint32(ppc.B(0))}

	id := tbl.AddJumpSpecial(patchSite, true)
	tbl.SetJumpSpecial(id, 64)

	if err := tbl.PatchAll(fakeHostMap{}, p, 0, nil); err != nil {
		t.Fatalf("PatchAll: %v", err)
	}
	instr := ppc.Instr(p[patchSite])
	if got := int32(instr & 0x3FFFFFC); got != 64 {
		t.Errorf("special jump displacement = %d, want 64", got)
	}
}
