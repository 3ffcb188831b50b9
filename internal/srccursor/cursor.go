// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package srccursor provides a single-item read cursor with one-slot
// pushback over a slice of guest MIPS instructions, tracking the guest
// program counter of the instruction it is positioned over. The pushback
// slot exists because delay-slot instructions must sometimes be emitted
// before the controlling branch/jump has finished being processed.
package srccursor

import "github.com/dynarecore/r4300ppc/mips"

// Cursor reads over a fixed slice of guest instructions, starting at the
// index given to New. AddrFirst is the guest virtual address
// corresponding to slice[0]; it is used by CurrentPC.
type Cursor struct {
	code      []mips.Instr
	addrFirst uint32
	pos       int  // index of the next instruction to be returned by Next
	pushed    bool // true if the last Next() should be re-returned
}

// New returns a Cursor over code, starting at startIdx, whose guest
// virtual address is addrFirst+4*startIdx.
func New(code []mips.Instr, addrFirst uint32, startIdx int) *Cursor {
	return &Cursor{code: code, addrFirst: addrFirst, pos: startIdx}
}

// Next consumes and returns the next instruction.
func (c *Cursor) Next() mips.Instr {
	if c.pushed {
		c.pushed = false
		return c.code[c.pos-1]
	}
	i := c.code[c.pos]
	c.pos++
	return i
}

// Peek returns the next instruction without consuming it.
func (c *Cursor) Peek() mips.Instr {
	if c.pushed {
		return c.code[c.pos-1]
	}
	return c.code[c.pos]
}

// Pushback undoes the last Next() call. It may only be called once between
// calls to Next.
func (c *Cursor) Pushback() {
	if c.pos == 0 {
		panic("srccursor: pushback before first Next")
	}
	c.pushed = true
}

// Remaining returns the number of instructions left to consume, including
// one already pushed back.
func (c *Cursor) Remaining() int {
	n := len(c.code) - c.pos
	if c.pushed {
		n++
	}
	return n
}

// CurrentPC returns the guest virtual address of the last instruction
// returned by Next (addr_first + 4*(consumed-1)).
func (c *Cursor) CurrentPC() uint32 {
	consumed := c.pos
	if c.pushed {
		consumed--
	}
	return c.addrFirst + uint32(consumed-1)*4
}

// Index returns the offset, relative to the start of code, of the next
// instruction Next() would return.
func (c *Cursor) Index() int {
	if c.pushed {
		return c.pos - 1
	}
	return c.pos
}
