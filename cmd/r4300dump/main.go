// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command r4300dump recompiles a raw 4 KiB guest MIPS page and prints the
// resulting guest-PC -> host-address map and function boundaries. It uses
// a stub Translator that emits one PowerPC NOP per guest instruction,
// since the real per-opcode translator is an out-of-scope collaborator;
// this tool exists to exercise and inspect the Block Recompiler itself.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/dynarecore/r4300ppc/mips"
	"github.com/dynarecore/r4300ppc/page"
	"github.com/dynarecore/r4300ppc/ppc"
	"github.com/dynarecore/r4300ppc/recomp"
)

func main() {
	log.SetPrefix("r4300dump: ")
	log.SetFlags(0)

	verbose := flag.Bool("v", false, "enable/disable verbose mode")
	entry := flag.Uint("entry", 0, "entry offset (bytes) into the page to start recompiling from")
	base := flag.Uint("base", 0x80000000, "guest virtual address of the page's first instruction")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	recomp.SetPrintDebugInfo(*verbose)

	if err := dump(os.Stdout, flag.Arg(0), uint32(*base), uint32(*entry)); err != nil {
		log.Fatal(err)
	}
}

func dump(w *os.File, fname string, baseAddr, entryOffset uint32) error {
	raw, err := ioutil.ReadFile(fname)
	if err != nil {
		return fmt.Errorf("reading %s: %w", fname, err)
	}
	if len(raw) != page.InstrsPerPage*4 {
		return fmt.Errorf("%s: got %d bytes, want exactly %d (one 4 KiB guest page)", fname, len(raw), page.InstrsPerPage*4)
	}

	code := make([]mips.Instr, page.InstrsPerPage)
	for i := range code {
		code[i] = mips.Instr(raw[4*i])<<24 | mips.Instr(raw[4*i+1])<<16 | mips.Instr(raw[4*i+2])<<8 | mips.Instr(raw[4*i+3])
	}

	rc := recomp.New(
		page.NewRegistry(),
		page.NewBitInvalidCode(1<<20),
		nopTranslator{},
		noopAllocator{},
		recomp.PlainAllocator{},
		nil,
		recomp.NoopCacheMaintainer{},
	)

	pg, err := rc.InitBlock(baseAddr, code)
	if err != nil {
		return fmt.Errorf("init_block: %w", err)
	}
	if err := rc.RecompileBlock(pg, baseAddr+entryOffset); err != nil {
		return fmt.Errorf("recompile_block: %w", err)
	}

	fmt.Fprintf(w, "functions (%d):\n", len(pg.Functions))
	for _, fn := range pg.Functions {
		fmt.Fprintf(w, "  [%#x, %#x) length=%d\n", fn.StartOffset, fn.EndOffset, fn.Length)
	}

	fmt.Fprintln(w, "host_map:")
	for i, addr := range pg.HostMap {
		if addr == 0 {
			continue
		}
		fmt.Fprintf(w, "  guest %#08x -> host %#x\n", baseAddr+uint32(i)*4, addr)
	}
	return nil
}

// nopTranslator emits a single PowerPC NOP-equivalent word per guest
// instruction, consuming exactly one guest instruction per call. It does
// not register any jumps: branch/jump displacement patching is
// exercised by the recomp package's own tests, not by this inspection
// tool.
type nopTranslator struct{}

func (nopTranslator) Convert(rc *recomp.Recompiler) error {
	rc.GetNextSrc()
	rc.SetNextDst(ppc.Instr(0))
	return nil
}

// noopAllocator is a stand-in RegisterAllocator: this tool has no real
// register-mapping engine wired in.
type noopAllocator struct{}

func (noopAllocator) StartNewBlock()   {}
func (noopAllocator) StartNewMapping() {}
