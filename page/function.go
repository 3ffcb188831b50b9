// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package page

import "github.com/dynarecore/r4300ppc/internal/emitcursor"

// Function is a contiguous-in-guest translation unit discovered by Pass 0.
// It exclusively owns a resizable host-instruction buffer; host_map
// entries referencing it are non-owning.
type Function struct {
	// StartOffset, EndOffset are instruction offsets within the owning
	// page (byte offset / 4, so 0..1023), not byte offsets.
	// EndOffset == 0 means "runs to the end of the page".
	StartOffset, EndOffset uint32

	Code   *emitcursor.Buffer
	Length int // instructions actually emitted (code_length)
}

// Contains reports whether guest offset o (a 12-bit page offset) lies
// within this function's range, treating EndOffset == 0 as "to page end".
func (f *Function) Contains(o uint32) bool {
	if o < f.StartOffset {
		return false
	}
	if f.EndOffset == 0 {
		return true
	}
	return o < f.EndOffset
}

// Overlaps reports whether f and other's guest ranges intersect, treating
// EndOffset == 0 as "to page end" for either.
func (f *Function) Overlaps(other *Function) bool {
	fEnd, oEnd := f.EndOffset, other.EndOffset
	startsBeforeOtherEnds := oEnd == 0 || f.StartOffset < oEnd
	endsAfterOtherStarts := fEnd == 0 || fEnd > other.StartOffset
	return startsBeforeOtherEnds && endsAfterOtherStarts
}

// Close releases the function's host buffer.
func (f *Function) Close() error {
	if f.Code == nil {
		return nil
	}
	err := f.Code.Close()
	f.Code = nil
	return err
}
