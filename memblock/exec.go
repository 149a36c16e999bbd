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

package memblock

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/pkg/errors"
)

// codeAlignment is the alignment of every entry point written in an
// executable block.
const codeAlignment = 16

// Executable is a block of machine code. Code is appended with Write while the
// block is writable. Seal makes the block executable: from then on its
// content never changes.
type Executable struct {
	refcount
	mem     []byte
	used    int
	sealed  bool
	mapped  bool
	entries map[string]int
}

var _ Block = (*Executable)(nil)

// NewExecutable maps a block able to hold at least capacity bytes of code.
func NewExecutable(capacity int) (*Executable, error) {
	if capacity <= 0 {
		return nil, errors.Errorf("invalid executable block capacity %d", capacity)
	}
	size := roundUp(capacity, os.Getpagesize())
	mem, mapped, err := mapPages(size)
	if err != nil {
		return nil, err
	}
	e := &Executable{mem: mem, mapped: mapped, entries: make(map[string]int)}
	e.init(KindExecutable, e, e.free)
	return e, nil
}

func (e *Executable) free() error {
	mem := e.mem
	e.mem, e.entries = nil, nil
	if !e.mapped {
		return nil
	}
	return unmapPages(mem)
}

// Write appends code to the block and returns its offset.
func (e *Executable) Write(code []byte) (int, error) {
	if e.sealed {
		return 0, errors.Errorf("executable block %d is sealed", e.handle)
	}
	start := roundUp(e.used, codeAlignment)
	if start+len(code) > len(e.mem) {
		return 0, errors.Errorf("executable block %d is full: %d bytes used, %d bytes requested, capacity %d", e.handle, e.used, len(code), len(e.mem))
	}
	copy(e.mem[start:], code)
	e.used = start + len(code)
	return start, nil
}

// WriteNamed writes code under a name. If code has already been written
// under that name, its offset is returned and nothing is written.
func (e *Executable) WriteNamed(name string, code []byte) (int, error) {
	if off, ok := e.entries[name]; ok {
		return off, nil
	}
	off, err := e.Write(code)
	if err != nil {
		return 0, err
	}
	e.entries[name] = off
	return off, nil
}

// Seal makes the block read-only and executable.
func (e *Executable) Seal() error {
	if e.sealed {
		return nil
	}
	if e.mapped {
		if err := protectExec(e.mem); err != nil {
			return errors.Wrapf(err, "cannot make executable block %d executable", e.handle)
		}
	}
	e.sealed = true
	return nil
}

// Sealed returns true once the block has been sealed.
func (e *Executable) Sealed() bool {
	return e.sealed
}

// Executable returns true if the code in the block can be run by the
// processor once sealed.
func (e *Executable) Executable() bool {
	return e.mapped
}

// Code returns n bytes of code starting at off.
func (e *Executable) Code(off, n int) []byte {
	return e.mem[off : off+n]
}

// Entry returns the address of the code at off.
func (e *Executable) Entry(off int) uintptr {
	return uintptr(unsafe.Pointer(&e.mem[off]))
}

// Used returns the number of bytes written so far.
func (e *Executable) Used() int {
	return e.used
}

func (e *Executable) String() string {
	return fmt.Sprintf("%s: %d/%d bytes, sealed=%v, mapped=%v", e.header(), e.used, len(e.mem), e.sealed, e.mapped)
}
