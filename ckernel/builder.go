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

package ckernel

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
)

// Record is a closure placed in a builder.
type Record struct {
	label      string
	req        Request
	single     SingleFunc
	strided    StridedFunc
	children   []int
	destructor func()
}

// Label describes the record in debug dumps.
func (r *Record) Label() string {
	return r.label
}

// Request returns the calling convention the record is built for.
func (r *Record) Request() Request {
	return r.req
}

// SetSingle sets the function of a single record.
func (r *Record) SetSingle(f SingleFunc) {
	if r.req.Mode != Single {
		panic(fmt.Sprintf("ckernel: setting a single function on %s record %q", r.req, r.label))
	}
	r.single = f
}

// SetStrided sets the function of a strided record.
func (r *Record) SetStrided(f StridedFunc) {
	if r.req.Mode != Strided {
		panic(fmt.Sprintf("ckernel: setting a strided function on %s record %q", r.req, r.label))
	}
	r.strided = f
}

// SetFunc sets the function of the record from a single function, looping
// over it for strided records.
func (r *Record) SetFunc(f SingleFunc) {
	if r.req.Mode == Single {
		r.single = f
		return
	}
	r.strided = StridedFromSingle(f)
}

// OnDestroy registers a function called when the builder is reset.
func (r *Record) OnDestroy(f func()) {
	r.destructor = f
}

// AddChild records that the closure at off is a child of r.
func (r *Record) AddChild(off int) {
	r.children = append(r.children, off)
}

// Children returns the offsets of the children of the record.
func (r *Record) Children() []int {
	return r.children
}

// CallSingle invokes the record with the single convention.
func (r *Record) CallSingle(dst unsafe.Pointer, src []unsafe.Pointer) error {
	if r.single == nil {
		return r.notBuiltFor(Single)
	}
	return r.single(dst, src)
}

// CallStrided invokes the record with the strided convention.
func (r *Record) CallStrided(dst unsafe.Pointer, dstStride int, src []unsafe.Pointer, srcStride []int, count int) error {
	if r.strided == nil {
		return r.notBuiltFor(Strided)
	}
	return r.strided(dst, dstStride, src, srcStride, count)
}

func (r *Record) notBuiltFor(mode Mode) error {
	if r.req.Mode != mode {
		return errors.Errorf("kernel %q is built for %s calls, not %s calls", r.label, r.req, mode)
	}
	return errors.Errorf("kernel %q is incomplete", r.label)
}

// Builder is an append-only arena of closure records.
// A Builder is not safe for concurrent use.
type Builder struct {
	records []*Record
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Reserve places a new record at off and returns it. off must be the next
// free offset of the builder.
func (b *Builder) Reserve(off int, req Request, label string) (*Record, error) {
	if off != len(b.records) {
		if off < len(b.records) {
			return nil, errors.Errorf("cannot place kernel %q at offset %d: offset already used by %q", label, off, b.records[off].label)
		}
		return nil, errors.Errorf("cannot place kernel %q at offset %d: next free offset is %d", label, off, len(b.records))
	}
	r := &Record{label: label, req: req}
	b.records = append(b.records, r)
	return r, nil
}

// Record returns the record at off or nil if there is none.
func (b *Builder) Record(off int) *Record {
	if off < 0 || off >= len(b.records) {
		return nil
	}
	return b.records[off]
}

// Len returns the next free offset.
func (b *Builder) Len() int {
	return len(b.records)
}

func (b *Builder) root(off int) (*Record, error) {
	r := b.Record(off)
	if r == nil {
		return nil, errors.Errorf("no kernel at offset %d", off)
	}
	return r, nil
}

// Single returns the single function of the kernel rooted at off.
func (b *Builder) Single(off int) (SingleFunc, error) {
	r, err := b.root(off)
	if err != nil {
		return nil, err
	}
	if r.single == nil {
		return nil, r.notBuiltFor(Single)
	}
	return r.single, nil
}

// Strided returns the strided function of the kernel rooted at off.
func (b *Builder) Strided(off int) (StridedFunc, error) {
	r, err := b.root(off)
	if err != nil {
		return nil, err
	}
	if r.strided == nil {
		return nil, r.notBuiltFor(Strided)
	}
	return r.strided, nil
}

// Reset destroys every record, last emitted first, and empties the builder.
func (b *Builder) Reset() {
	for i := len(b.records) - 1; i >= 0; i-- {
		if d := b.records[i].destructor; d != nil {
			d()
		}
	}
	b.records = b.records[:0]
}

// Walk calls f on every record of the kernel rooted at off, parents first.
func (b *Builder) Walk(off int, f func(off, depth int, r *Record)) {
	b.walk(off, 0, f)
}

func (b *Builder) walk(off, depth int, f func(off, depth int, r *Record)) {
	r := b.Record(off)
	if r == nil {
		return
	}
	f(off, depth, r)
	for _, child := range r.children {
		b.walk(child, depth+1, f)
	}
}

// String dumps the kernel tree rooted at offset 0.
func (b *Builder) String() string {
	s := strings.Builder{}
	b.Walk(0, func(off, depth int, r *Record) {
		fmt.Fprintf(&s, "%s%d: %s [%s]\n", strings.Repeat("  ", depth), off, r.label, r.req)
	})
	return s.String()
}
