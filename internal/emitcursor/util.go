// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emitcursor

import (
	"encoding/binary"
	"unsafe"
)

// hostEndian is fixed to little-endian because the reference host for this
// recompiler core runs in little-endian PowerPC mode; big-endian hosts
// would need this flipped.
var hostEndian = binary.LittleEndian

func putLE32(b []byte, v uint32) { hostEndian.PutUint32(b, v) }
func getLE32(b []byte) uint32    { return hostEndian.Uint32(b) }

func addrOf(p *byte) uintptr { return uintptr(unsafe.Pointer(p)) }
