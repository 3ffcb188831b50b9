// Copyright 2019 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package page

import "sync"

// Registry maps physical page index -> *Page. It is the single source of
// truth for page aliasing: every virtual window that resolves to the same
// physical page index shares the *Page stored here (and therefore its
// HostMap slice and Functions list).
//
// The recompiler's own concurrency model (spec.md §5) is strictly
// single-threaded and cooperative — no lock is required for correctness
// on the hot recompile_block path. This mutex exists only so a
// stand-alone inspection tool (cmd/r4300dump, or a future debugger) can
// read the registry from a second goroutine without racing the
// dispatcher, and so `go test -race` is a meaningful gate on this type;
// it is never contended in the hot path.
type Registry struct {
	mu    sync.Mutex
	pages map[uint32]*Page
}

// NewRegistry returns an empty page registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[uint32]*Page)}
}

// Get returns the page registered for physical index idx, if any.
func (r *Registry) Get(idx uint32) (*Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pages[idx]
	return p, ok
}

// GetOrCreate returns the page registered for physical index idx, creating
// one that shares hostMap (an existing alias's map, or a fresh one if
// hostMap is nil) if none is registered yet.
func (r *Registry) GetOrCreate(idx uint32, start, end uint32, hostMap []uintptr) *Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pages[idx]; ok {
		return p
	}
	p := &Page{StartAddress: start, EndAddress: end}
	if hostMap != nil {
		p.HostMap = hostMap
	} else {
		p.HostMap = make([]uintptr, InstrsPerPage)
	}
	r.pages[idx] = p
	return p
}

// Delete removes the page registered for physical index idx.
func (r *Registry) Delete(idx uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pages, idx)
}

// Set registers p under physical index idx directly, overwriting any
// existing registration (used when re-homing an existing Page's aliases).
func (r *Registry) Set(idx uint32, p *Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[idx] = p
}
