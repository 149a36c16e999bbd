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

// Package nd implements arrays: a type, its arrmeta and a reference to the
// memory block holding the data.
//
// Arrays are created by the constructors of this package, by indexing other
// arrays or by computing them:
//
//	a, _ := nd.FromSlice([]int32{1, 2, 3})
//	b, _ := nd.Scalar[int32](10)
//	c, _ := nd.Add(a, b)
//	fmt.Println(c) // array([11, 12, 13], type="3 * int32")
//
// Every array must be released once it is not used anymore.
package nd

import (
	"fmt"
	"unsafe"

	"github.com/gx-org/dynd/memblock"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Array is a typed view on data owned by a memory block.
type Array struct {
	tp    ndt.Type
	block *memblock.Array
	data  unsafe.Pointer
}

// newArray allocates a block for a value of type tp with meta as its arrmeta.
// The block owns the references held by meta. If owner is nil, the block holds
// the data of the value inline. Otherwise data points into owner.
func newArray(tp ndt.Type, meta ndt.Arrmeta, owner memblock.Block, data unsafe.Pointer) *Array {
	dataSize := 0
	if owner == nil {
		dataSize = tp.DataSize()
	}
	block := memblock.NewArray(len(meta), dataSize, owner, func(m []byte) error {
		return tp.ArrmetaDestruct(ndt.Arrmeta(m))
	})
	copy(block.Arrmeta(), meta)
	if owner == nil {
		data = block.DataPointer()
	}
	return &Array{tp: tp, block: block, data: data}
}

func checkConcrete(tp ndt.Type) error {
	if !tp.IsValid() {
		return errors.WithStack(&ndt.InvalidArgumentError{Msg: "cannot create an array of an uninitialized type"})
	}
	if tp.IsSymbolic() {
		return errors.WithStack(&ndt.InvalidArgumentError{Msg: fmt.Sprintf("cannot create an array of symbolic type %s", tp)})
	}
	return nil
}

// Empty returns a zeroed array of type tp. If a shape is given, tp is the
// element type of fixed dimensions of that shape. Var dimensions of the
// array are not allocated.
func Empty(tp ndt.Type, shape ...int) (*Array, error) {
	if len(shape) > 0 {
		var err error
		if tp, err = ndt.MakeFixedDims(shape, tp); err != nil {
			return nil, err
		}
	}
	if err := checkConcrete(tp); err != nil {
		return nil, err
	}
	meta, err := tp.NewArrmeta()
	if err != nil {
		return nil, err
	}
	return newArray(tp, meta, nil, nil), nil
}

// FromSlice returns a one dimensional array holding a copy of vals.
func FromSlice[T ndt.Scalar](vals []T) (*Array, error) {
	a, err := Empty(ndt.TypeFor[T](), len(vals))
	if err != nil {
		return nil, err
	}
	copy(unsafe.Slice((*T)(a.data), len(vals)), vals)
	return a, nil
}

// Scalar returns a zero dimensional array holding v.
func Scalar[T ndt.Scalar](v T) (*Array, error) {
	a, err := Empty(ndt.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	*(*T)(a.data) = v
	return a, nil
}

// FromBytes returns an array of type tp viewing buf. The array does not copy
// buf: free, if not nil, is called once the array and every view of it have
// been released.
func FromBytes(tp ndt.Type, buf []byte, free func() error) (*Array, error) {
	if err := checkConcrete(tp); err != nil {
		return nil, err
	}
	if tp.HasBlockrefs() {
		return nil, errors.WithStack(&ndt.InvalidArgumentError{Msg: fmt.Sprintf("cannot view bytes as %s: the type references memory blocks", tp)})
	}
	if len(buf) < tp.DataSize() {
		return nil, errors.WithStack(&ndt.InvalidArgumentError{Msg: fmt.Sprintf("cannot view %d bytes as %s of %d bytes", len(buf), tp, tp.DataSize())})
	}
	meta, err := tp.NewArrmeta()
	if err != nil {
		return nil, err
	}
	obj := memblock.NewObject(buf, func(any) error {
		if free == nil {
			return nil
		}
		return free()
	})
	var data unsafe.Pointer
	if len(buf) > 0 {
		data = unsafe.Pointer(unsafe.SliceData(buf))
	}
	a := newArray(tp, meta, obj, data)
	// The array holds its own reference to the object.
	if err := obj.Release(); err != nil {
		return nil, multierr.Append(err, a.Release())
	}
	return a, nil
}

// Type returns the type of the array.
func (a *Array) Type() ndt.Type {
	return a.tp
}

// Arrmeta returns the arrmeta of the array.
func (a *Array) Arrmeta() ndt.Arrmeta {
	return ndt.Arrmeta(a.block.Arrmeta())
}

// Data returns a pointer to the data of the array.
func (a *Array) Data() unsafe.Pointer {
	return a.data
}

// Block returns the memory block of the array.
func (a *Array) Block() *memblock.Array {
	return a.block
}

// dataOwner returns the block owning the data of the array.
func (a *Array) dataOwner() memblock.Block {
	if ref := a.block.Reference(); ref != nil {
		return ref
	}
	return a.block
}

// Shape returns the size of every dimension of the array. Sizes varying
// from one element to the other are -1.
func (a *Array) Shape() []int {
	return a.tp.Shape(a.Arrmeta(), a.data)
}

// Strides returns the stride in bytes of every dimension of the array.
func (a *Array) Strides() []int {
	return a.tp.Strides(a.Arrmeta())
}

// NDim returns the number of dimensions of the array.
func (a *Array) NDim() int {
	return a.tp.NDim()
}

// Release gives back the reference of the array to its memory block.
func (a *Array) Release() error {
	if a == nil || a.block == nil {
		return nil
	}
	block := a.block
	a.block, a.data = nil, nil
	return block.Release()
}

// Format returns the values of the array.
func (a *Array) Format() (string, error) {
	if a.block == nil {
		return "", errors.Errorf("array of type %s has been released", a.tp)
	}
	return a.tp.FormatData(a.Arrmeta(), a.data)
}

// String returns the values and the type of the array.
func (a *Array) String() string {
	vals, err := a.Format()
	if err != nil {
		vals = fmt.Sprintf("<%v>", err)
	}
	return fmt.Sprintf("array(%s, type=%q)", vals, a.tp.String())
}
