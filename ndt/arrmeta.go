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

package ndt

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"
	"unsafe"

	"fortio.org/safecast"
	"github.com/gx-org/dynd/memblock"
)

// Arrmeta is the per-value metadata of an array. Its size and content are
// defined by the type of the array. Every field is a native-endian 64-bit word.
type Arrmeta []byte

const wordSize = 8

// Int returns the integer stored at off.
func (m Arrmeta) Int(off int) int {
	return safecast.MustConv[int](int64(binary.NativeEndian.Uint64(m[off:])))
}

// SetInt stores an integer at off.
func (m Arrmeta) SetInt(off, v int) {
	binary.NativeEndian.PutUint64(m[off:], uint64(int64(v)))
}

// Handle returns the memory block handle stored at off.
func (m Arrmeta) Handle(off int) memblock.Handle {
	return memblock.Handle(binary.NativeEndian.Uint64(m[off:]))
}

// SetHandle stores a memory block handle at off.
func (m Arrmeta) SetHandle(off int, h memblock.Handle) {
	binary.NativeEndian.PutUint64(m[off:], uint64(h))
}

// ArrmetaDefaultConstruct initializes zeroed arrmeta for a new value of the type.
func (t Type) ArrmetaDefaultConstruct(meta Arrmeta) error {
	if t.ext == nil {
		return nil
	}
	return t.ext.ArrmetaDefaultConstruct(meta)
}

// ArrmetaCopyConstruct initializes dst as a copy of src.
func (t Type) ArrmetaCopyConstruct(dst, src Arrmeta) {
	if t.ext == nil {
		return
	}
	t.ext.ArrmetaCopyConstruct(dst, src)
}

// ArrmetaReset clears arrmeta without releasing the blocks it references.
func (t Type) ArrmetaReset(meta Arrmeta) {
	if t.ext == nil {
		return
	}
	t.ext.ArrmetaReset(meta)
}

// ArrmetaDestruct releases the blocks referenced by the arrmeta.
func (t Type) ArrmetaDestruct(meta Arrmeta) error {
	if t.ext == nil {
		return nil
	}
	return t.ext.ArrmetaDestruct(meta)
}

// ArrmetaDebugString returns a human readable dump of the arrmeta.
func (t Type) ArrmetaDebugString(meta Arrmeta) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "arrmeta for %s (%d bytes)\n", t, len(meta))
	if t.ext != nil {
		t.ext.ArrmetaDebugPrint(&b, meta, " ")
	}
	return b.String()
}

// NewArrmeta allocates and default constructs arrmeta for the type.
func (t Type) NewArrmeta() (Arrmeta, error) {
	meta := make(Arrmeta, t.ArrmetaSize())
	if err := t.ArrmetaDefaultConstruct(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// ApplyLinearIndex applies indices to a value of the type. The returned
// arrmeta is newly constructed and must be destructed by the caller.
func (t Type) ApplyLinearIndex(indices []Index, meta Arrmeta, data unsafe.Pointer) (IndexResult, error) {
	args := IndexArgs{Indices: indices, Leading: true, Meta: meta, Data: data}
	if len(indices) == 0 || t.ext == nil {
		return scalarIndex(t, args)
	}
	return t.ext.ApplyLinearIndex(args)
}

// applyIndex is ApplyLinearIndex on a child type.
func applyIndex(t Type, args IndexArgs) (IndexResult, error) {
	if len(args.Indices) == 0 || t.ext == nil {
		return scalarIndex(t, args)
	}
	return t.ext.ApplyLinearIndex(args)
}

// MaxDataSize is the largest data size of a type, in bytes.
const MaxDataSize = 1 << 48

// dataSizeOf returns the data size of n elements of elemSize bytes.
func dataSizeOf(n, elemSize int) (int, error) {
	hi, lo := bits.Mul64(uint64(n), uint64(elemSize))
	if hi != 0 || lo > MaxDataSize {
		return 0, invalidArgument("%d elements of %d bytes exceed the maximum data size of %d bytes", n, elemSize, MaxDataSize)
	}
	return safecast.Conv[int](lo)
}

// roundUp returns n rounded up to a multiple of align.
func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

func debugLine(b *strings.Builder, indent, format string, a ...any) {
	b.WriteString(indent)
	fmt.Fprintf(b, format, a...)
	b.WriteString("\n")
}
