// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memblock implements the reference-counted memory blocks owning
// array data, variable-length storage and generated code.
//
// Every block is registered under a Handle when it is created. Arrmeta never
// stores Go pointers: it stores handles, which are resolved with Lookup. A
// handle is made owning by an explicit Retain and given back with Release.
package memblock

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gx-org/dynd/base/sync"
	"github.com/pkg/errors"
)

// Kind of a memory block.
type Kind int

const (
	// KindFixedData is an array block: arrmeta followed by inline data.
	KindFixedData Kind = iota
	// KindPOD is growable storage for variable-length data.
	KindPOD
	// KindObject wraps Go or foreign storage released by a callback.
	KindObject
	// KindExecutable holds generated machine code.
	KindExecutable
)

var kindNames = [...]string{
	KindFixedData:  "fixeddata",
	KindPOD:        "pod",
	KindObject:     "object",
	KindExecutable: "executable",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Handle identifies a live block in the registry. The zero handle is never
// assigned to a block.
type Handle uintptr

// Block is a reference-counted allocation unit.
type Block interface {
	// Kind of the block.
	Kind() Kind
	// Handle under which the block is registered.
	Handle() Handle
	// Retain increments the reference count.
	Retain()
	// Release decrements the reference count and frees the storage when it
	// reaches zero.
	Release() error
	// RefCount returns the current reference count.
	RefCount() int32

	fmt.Stringer
}

var (
	blocks    = sync.Map[Handle, Block]{}
	handleIdx = atomic.Uintptr{}
	live      = atomic.Int64{}
)

func register(b Block) Handle {
	h := Handle(handleIdx.Add(1))
	if h == 0 {
		panic("memblock: ran out of handle space")
	}
	blocks.Store(h, b)
	live.Add(1)
	return h
}

func unregister(h Handle) {
	if _, ok := blocks.LoadAndDelete(h); !ok {
		panic(fmt.Sprintf("memblock: releasing unknown handle %d", h))
	}
	live.Add(-1)
}

// Lookup returns the block registered under h or nil if there is none.
func Lookup(h Handle) Block {
	if h == 0 {
		return nil
	}
	return blocks.Load(h)
}

// Retain increments the reference count of the block registered under h.
// It does nothing for the zero handle.
func Retain(h Handle) {
	if b := Lookup(h); b != nil {
		b.Retain()
	}
}

// Release decrements the reference count of the block registered under h.
// It does nothing for the zero handle.
func Release(h Handle) error {
	b := Lookup(h)
	if b == nil {
		if h != 0 {
			return errors.Errorf("memblock: release of unknown handle %d", h)
		}
		return nil
	}
	return b.Release()
}

// Count returns the number of live blocks.
func Count() int {
	return int(live.Load())
}

// Dump returns a string representation of all live blocks.
func Dump() string {
	s := strings.Builder{}
	for _, b := range blocks.Iter() {
		s.WriteString(b.String())
		s.WriteString("\n")
	}
	return s.String()
}

// refcount is embedded by every block implementation.
type refcount struct {
	kind   Kind
	handle Handle
	count  atomic.Int32
	free   func() error
}

func (r *refcount) init(kind Kind, self Block, free func() error) {
	r.kind = kind
	r.free = free
	r.count.Store(1)
	r.handle = register(self)
}

// Kind of the block.
func (r *refcount) Kind() Kind {
	return r.kind
}

// Handle under which the block is registered.
func (r *refcount) Handle() Handle {
	return r.handle
}

// RefCount returns the current reference count.
func (r *refcount) RefCount() int32 {
	return r.count.Load()
}

// Retain increments the reference count.
func (r *refcount) Retain() {
	if r.count.Add(1) <= 1 {
		panic(fmt.Sprintf("memblock: retaining %s block %d after its final release", r.kind, r.handle))
	}
}

// Release decrements the reference count. The release reaching zero
// unregisters the block and frees its storage.
func (r *refcount) Release() error {
	n := r.count.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		panic(fmt.Sprintf("memblock: %s block %d released more times than retained", r.kind, r.handle))
	}
	unregister(r.handle)
	if r.free == nil {
		return nil
	}
	return r.free()
}

func (r *refcount) header() string {
	return fmt.Sprintf("%s block %d (refcount %d)", r.kind, r.handle, r.count.Load())
}
