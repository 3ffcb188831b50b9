// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recomp

import "github.com/dynarecore/r4300ppc/ppc"

// jumpPadSize is the fixed number of host instructions emitJumpPad emits.
const jumpPadSize = 7

// emitJumpPad appends the fixed epilogue emitted when a function runs off
// the end of its page (UseRegisterMaps == false): it sets the
// dispatcher's noCheckInterrupt flag, loads the resuming guest PC into
// the return-PC register, and branches back to the dispatcher via the
// link register. guestPC is addr_last, the guest PC execution resumes at.
func (rc *Recompiler) emitJumpPad(guestPC uint32) {
	cfg := rc.JumpPad

	addr := uint32(cfg.NoCheckInterruptAddr)
	rc.dst.Emit(ppc.LIS(cfg.ScratchReg, uint16(addr>>16)))
	rc.dst.Emit(ppc.ORI(cfg.ScratchReg, cfg.ScratchReg, uint16(addr)))
	rc.dst.Emit(ppc.LI32(cfg.ValueReg, 1))
	rc.dst.Emit(ppc.STW(cfg.ValueReg, cfg.ScratchReg, 0))

	rc.dst.Emit(ppc.LIS(cfg.ReturnPCReg, uint16(guestPC>>16)))
	rc.dst.Emit(ppc.ORI(cfg.ReturnPCReg, cfg.ReturnPCReg, uint16(guestPC)))

	rc.dst.Emit(ppc.BLR())
}
