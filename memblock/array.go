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
	"unsafe"

	"go.uber.org/multierr"
)

// MaxAlignment is the largest data alignment a block guarantees.
const MaxAlignment = 8

// Array is a fixed data block holding the arrmeta of an array followed by its
// data. A view has no inline data and references the block owning it instead.
type Array struct {
	refcount
	meta     []byte
	data     []byte
	ref      Block
	destruct func([]byte) error
}

var _ Block = (*Array)(nil)

// NewArray allocates an array block with metaSize bytes of arrmeta and
// dataSize bytes of zeroed data. ref, if not nil, is retained by the block and
// released after destruct has been called on the arrmeta.
func NewArray(metaSize, dataSize int, ref Block, destruct func(meta []byte) error) *Array {
	a := &Array{
		meta:     alignedBytes(metaSize),
		data:     alignedBytes(dataSize),
		ref:      ref,
		destruct: destruct,
	}
	if ref != nil {
		ref.Retain()
	}
	a.init(KindFixedData, a, a.free)
	return a
}

func (a *Array) free() error {
	var err error
	if a.destruct != nil {
		err = a.destruct(a.meta)
	}
	if a.ref != nil {
		err = multierr.Append(err, a.ref.Release())
	}
	a.meta, a.data, a.ref = nil, nil, nil
	return err
}

// Arrmeta returns the arrmeta stored in the block.
func (a *Array) Arrmeta() []byte {
	return a.meta
}

// Data returns the inline data of the block.
func (a *Array) Data() []byte {
	return a.data
}

// DataPointer returns a pointer to the inline data or nil if the block has none.
func (a *Array) DataPointer() unsafe.Pointer {
	if len(a.data) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(a.data))
}

// Reference returns the block owning the data of a view.
func (a *Array) Reference() Block {
	return a.ref
}

func (a *Array) String() string {
	s := fmt.Sprintf("%s: %d bytes arrmeta, %d bytes data", a.header(), len(a.meta), len(a.data))
	if a.ref != nil {
		s += fmt.Sprintf(", data reference %d", a.ref.Handle())
	}
	return s
}

// alignedBytes allocates n zeroed bytes aligned on MaxAlignment.
func alignedBytes(n int) []byte {
	if n <= 0 {
		return nil
	}
	words := make([]uint64, (n+MaxAlignment-1)/MaxAlignment)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), n)
}
