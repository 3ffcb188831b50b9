// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package page

// InvalidCode is the collaborator the MMU/memory subsystem uses to tell
// the recompiler that the guest has self-modified a region of RAM: one
// bit per 4 KiB physical page, set when the page's cached translations
// must be discarded before they are ever run again.
type InvalidCode interface {
	Get(physPage uint32) bool
	Set(physPage uint32, invalid bool)
}

// BitInvalidCode is the default InvalidCode, a flat bitset of one bit per
// 4 KiB page, sized by the numPages argument of NewBitInvalidCode (1<<20
// pages covers the whole 4 GiB address space with 128 KiB of backing
// storage). Pages beyond its size read as valid and cannot be set.
type BitInvalidCode struct {
	bits []uint64
}

// NewBitInvalidCode allocates a BitInvalidCode covering numPages pages.
func NewBitInvalidCode(numPages uint32) *BitInvalidCode {
	return &BitInvalidCode{bits: make([]uint64, (numPages+63)/64)}
}

// Get reports whether physPage is marked invalid.
func (b *BitInvalidCode) Get(physPage uint32) bool {
	word, bit := physPage/64, physPage%64
	if int(word) >= len(b.bits) {
		return false
	}
	return b.bits[word]&(1<<bit) != 0
}

// Set marks or clears physPage's invalid bit.
func (b *BitInvalidCode) Set(physPage uint32, invalid bool) {
	word, bit := physPage/64, physPage%64
	if int(word) >= len(b.bits) {
		return
	}
	if invalid {
		b.bits[word] |= 1 << bit
	} else {
		b.bits[word] &^= 1 << bit
	}
}
