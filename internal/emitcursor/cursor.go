// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emitcursor

import "github.com/dynarecore/r4300ppc/ppc"

// Cursor is the append-only write head into a Buffer. It tracks the next
// emission slot as an instruction index rather than a raw pointer so that
// a Buffer.Grow relocation only requires updating the Buffer, not the
// Cursor itself.
type Cursor struct {
	Buf *Buffer
	idx int // next emission slot, in instructions
}

// NewCursor returns a Cursor writing into buf starting at instruction 0.
func NewCursor(buf *Buffer) *Cursor {
	return &Cursor{Buf: buf}
}

// Emit appends instr and advances the cursor. The caller (the Block
// Recompiler) is responsible for ensuring capacity beforehand; exceeding
// capacity is a programming error, matching the spec's "emission is
// infallible once capacity is ensured" contract.
func (c *Cursor) Emit(instr ppc.Instr) {
	if c.idx >= c.Buf.Cap() {
		panic("emitcursor: emit exceeds buffer capacity")
	}
	c.Buf.Set(c.idx, uint32(instr))
	c.idx++
}

// Position returns the absolute host address of the next emission site.
func (c *Cursor) Position() uintptr {
	return c.Buf.AddressOf(c.idx)
}

// Index returns the next emission slot as an instruction index into Buf.
func (c *Cursor) Index() int { return c.idx }

// Rewind moves the cursor back one slot, used after emitting a delay-slot
// no-op that turns out to be unreachable (the instruction is left in the
// buffer but will be overwritten by the next Emit).
func (c *Cursor) Rewind() {
	if c.idx == 0 {
		panic("emitcursor: rewind before first emission")
	}
	c.idx--
}
