// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package page models the guest-side translation unit the recompiler
// operates on: a 4 KiB-aligned Page of guest code, the Functions
// discovered within it, the guest-PC -> host-address map those functions
// populate, and the physical-page alias registry that keeps the guest's
// several virtual windows onto one physical page coherent in the code
// cache.
package page

import "github.com/dynarecore/r4300ppc/mips"

// InstrsPerPage is the number of guest instructions in one 4 KiB page.
const InstrsPerPage = 0x1000 / 4

// Page represents a 4 KiB-aligned guest region (1024 guest instructions).
type Page struct {
	StartAddress, EndAddress uint32 // guest virtual addresses; EndAddress-StartAddress == 0x1000

	GuestCode []mips.Instr // the 1024 guest instructions backing this page

	// HostMap is shared by every virtual window onto the same physical
	// page: aliasing is implemented by multiple *Page values pointing at
	// the same backing slice (see Registry).
	HostMap []uintptr // ordered sequence of 1024 optional host addresses; 0 means untranslated

	Functions []*Function // unordered collection of functions intersecting this page
}

// NewPage allocates a Page (and its HostMap, zeroed/absent) for the given
// guest address range and backing instruction slice.
func NewPage(start, end uint32, code []mips.Instr) *Page {
	return &Page{
		StartAddress: start,
		EndAddress:   end,
		GuestCode:    code,
		HostMap:      make([]uintptr, InstrsPerPage),
	}
}

// HostAddressAt implements jumptable.HostMap: it resolves a guest offset
// (relative to StartAddress) to the host address of the first instruction
// emitted for it, if any.
func (p *Page) HostAddressAt(offset int) (uintptr, bool) {
	if offset < 0 || offset >= len(p.HostMap) {
		return 0, false
	}
	addr := p.HostMap[offset]
	return addr, addr != 0
}

// SetHostAddress records the host address of the first instruction
// emitted for guest offset (relative to StartAddress).
func (p *Page) SetHostAddress(offset int, addr uintptr) {
	p.HostMap[offset] = addr
}

// AddFunction prepends fn to the page's function list, evicting (and
// returning, for the caller to free through the recompilation cache) any
// existing function whose guest range overlaps fn's.
func (p *Page) AddFunction(fn *Function) (evicted []*Function) {
	kept := p.Functions[:0]
	for _, existing := range p.Functions {
		if fn.Overlaps(existing) {
			evicted = append(evicted, existing)
			continue
		}
		kept = append(kept, existing)
	}
	p.Functions = append([]*Function{fn}, kept...)
	return evicted
}

// RemoveFunction deletes fn from the page's function list, if present.
func (p *Page) RemoveFunction(fn *Function) {
	for i, existing := range p.Functions {
		if existing == fn {
			p.Functions = append(p.Functions[:i], p.Functions[i+1:]...)
			return
		}
	}
}

// ClearHostMap zeroes every entry, marking the whole page untranslated.
func (p *Page) ClearHostMap() {
	for i := range p.HostMap {
		p.HostMap[i] = 0
	}
}

// EntryOffset returns the in-page instruction offset for a guest address
// (the low 12 bits of addr, divided by 4).
func EntryOffset(addr uint32) int {
	return int((addr & 0xFFF) / 4)
}
