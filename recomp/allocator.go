// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recomp

import (
	"github.com/dynarecore/r4300ppc/internal/emitcursor"
	"github.com/dynarecore/r4300ppc/page"
)

// PlainAllocator is a non-evicting Cache: Alloc always provisions a
// fresh mmap-backed buffer and Realloc always grows the existing one.
// It mirrors the "plain allocation depending on configuration" branch of
// the original recompiler, used here and by cmd/r4300dump since
// eviction policy is an out-of-scope collaborator.
type PlainAllocator struct{}

// Alloc provisions fn.Code as a fresh buffer of size host instructions.
func (PlainAllocator) Alloc(size int, guestAddr uint32, fn *page.Function) error {
	buf, err := emitcursor.NewBuffer(size)
	if err != nil {
		return err
	}
	fn.Code = buf
	return nil
}

// Realloc grows fn.Code to hold at least size instructions, preserving
// the first fn.Length instructions already emitted.
func (PlainAllocator) Realloc(fn *page.Function, size int) error {
	_, err := fn.Code.Grow(size, fn.Length)
	return err
}

// Free is a no-op: PlainAllocator never recycles buffers, relying on the
// caller to Close a Function's buffer directly (see (*page.Function).Close).
func (PlainAllocator) Free(guestAddr uint32) {}
