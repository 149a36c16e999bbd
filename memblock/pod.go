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
	"sort"
	"unsafe"

	"github.com/pkg/errors"
)

// DefaultChunkSize is the size of the first chunk of a POD block.
const DefaultChunkSize = 256

type podChunk struct {
	base int64
	buf  []byte
	used int
}

// POD is a bump allocator for variable-length data such as the rows of a var
// dimension or the bytes of a string.
//
// Allocations are addressed by offsets. Offset 0 is never returned and stands
// for "not allocated". Memory is only given back when the block is freed or
// reset.
type POD struct {
	refcount
	chunkSize int
	chunks    []podChunk
	last      int64
	lastSize  int
	finalized bool
}

var _ Block = (*POD)(nil)

// NewPOD returns an empty POD block. chunkSize is the size of the first chunk;
// DefaultChunkSize is used if it is not positive.
func NewPOD(chunkSize int) *POD {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	p := &POD{chunkSize: chunkSize}
	p.init(KindPOD, p, p.free)
	return p
}

func (p *POD) free() error {
	p.chunks = nil
	return nil
}

func roundUp(n, align int) int {
	return (n + align - 1) / align * align
}

func (p *POD) nextBase() int64 {
	if len(p.chunks) == 0 {
		return MaxAlignment
	}
	c := p.chunks[len(p.chunks)-1]
	return c.base + int64(roundUp(len(c.buf), MaxAlignment))
}

// Allocate reserves size bytes aligned on align and returns their offset.
func (p *POD) Allocate(size, align int) (int64, error) {
	if p.finalized {
		return 0, errors.Errorf("cannot allocate %d bytes: POD block %d is finalized", size, p.handle)
	}
	if align <= 0 || align > MaxAlignment {
		return 0, errors.Errorf("unsupported alignment %d", align)
	}
	// Zero-sized allocations still take a byte so that their offset is inside a chunk.
	size = max(size, 1)
	if n := len(p.chunks); n > 0 {
		c := &p.chunks[n-1]
		start := roundUp(c.used, align)
		if start+size <= len(c.buf) {
			c.used = start + size
			p.last, p.lastSize = c.base+int64(start), size
			return p.last, nil
		}
	}
	capacity := p.chunkSize
	if n := len(p.chunks); n > 0 {
		capacity = 2 * len(p.chunks[n-1].buf)
	}
	capacity = max(capacity, size)
	p.chunks = append(p.chunks, podChunk{base: p.nextBase(), buf: alignedBytes(capacity), used: size})
	p.last, p.lastSize = p.chunks[len(p.chunks)-1].base, size
	return p.last, nil
}

// Resize changes the size of the last allocation. The data is moved if it does
// not fit in its chunk anymore: the returned offset replaces the old one.
func (p *POD) Resize(off int64, size int) (int64, error) {
	if p.finalized {
		return 0, errors.Errorf("cannot resize: POD block %d is finalized", p.handle)
	}
	if off == 0 || off != p.last {
		return 0, errors.Errorf("only the last allocation can be resized: got offset %d, last allocation at %d", off, p.last)
	}
	size = max(size, 1)
	c := &p.chunks[len(p.chunks)-1]
	start := int(off - c.base)
	if start+size <= len(c.buf) {
		c.used = start + size
		p.lastSize = size
		return off, nil
	}
	old := c.buf[start : start+p.lastSize]
	oldSize := p.lastSize
	c.used = start
	newOff, err := p.Allocate(size, MaxAlignment)
	if err != nil {
		return 0, err
	}
	copy(p.Bytes(newOff, oldSize), old)
	return newOff, nil
}

// Finalize forbids any further allocation.
func (p *POD) Finalize() {
	p.finalized = true
}

// Finalized returns true once Finalize has been called.
func (p *POD) Finalized() bool {
	return p.finalized
}

// Reset drops every allocation. Offsets returned before are invalid after it.
func (p *POD) Reset() {
	p.chunks = nil
	p.last, p.lastSize = 0, 0
	p.finalized = false
}

func (p *POD) chunkOf(off int64) (*podChunk, int) {
	i := sort.Search(len(p.chunks), func(i int) bool {
		return p.chunks[i].base > off
	}) - 1
	if i < 0 {
		panic(fmt.Sprintf("memblock: offset %d outside of POD block %d", off, p.handle))
	}
	c := &p.chunks[i]
	idx := int(off - c.base)
	if idx >= len(c.buf) {
		panic(fmt.Sprintf("memblock: offset %d outside of POD block %d", off, p.handle))
	}
	return c, idx
}

// Pointer returns a pointer to the byte at offset off.
func (p *POD) Pointer(off int64) unsafe.Pointer {
	c, idx := p.chunkOf(off)
	return unsafe.Pointer(&c.buf[idx])
}

// Bytes returns n bytes starting at offset off.
func (p *POD) Bytes(off int64, n int) []byte {
	c, idx := p.chunkOf(off)
	return c.buf[idx : idx+n]
}

// Size returns the number of bytes in use across all chunks.
func (p *POD) Size() int {
	n := 0
	for _, c := range p.chunks {
		n += c.used
	}
	return n
}

func (p *POD) String() string {
	return fmt.Sprintf("%s: %d chunks, %d bytes used, finalized=%v", p.header(), len(p.chunks), p.Size(), p.finalized)
}
