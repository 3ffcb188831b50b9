// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recomp

import (
	"io/ioutil"
	"log"
	"os"
)

// PrintDebugInfo toggles the package logger between io.Discard and
// os.Stderr. It is read once at init time; callers that need to flip it
// at runtime (e.g. from a -v flag parsed in main) must call
// SetPrintDebugInfo instead of assigning the variable directly.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	logger = log.New(ioutil.Discard, "recomp: ", log.Lshortfile)
	if PrintDebugInfo {
		logger.SetOutput(os.Stderr)
	}
}

// SetPrintDebugInfo reconfigures the package logger's output, for use
// after flag.Parse has determined the desired verbosity.
func SetPrintDebugInfo(v bool) {
	PrintDebugInfo = v
	if v {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(ioutil.Discard)
	}
}
