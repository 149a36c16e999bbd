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

// Package gxbackend converts arrays to and from the shapes and host buffers
// of GX backends.
package gxbackend

import (
	"unsafe"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/dynd/nd"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

var toDType = map[ndt.TypeID]dtype.DataType{
	ndt.BoolID:    dtype.Bool,
	ndt.Int32ID:   dtype.Int32,
	ndt.Int64ID:   dtype.Int64,
	ndt.Uint32ID:  dtype.Uint32,
	ndt.Uint64ID:  dtype.Uint64,
	ndt.Float32ID: dtype.Float32,
	ndt.Float64ID: dtype.Float64,
}

// DType returns the backend data type of a scalar type.
func DType(tp ndt.Type) (dtype.DataType, error) {
	dt, ok := toDType[tp.ID()]
	if !ok {
		return dtype.Invalid, errors.Errorf("type %s has no backend data type", tp)
	}
	return dt, nil
}

// ScalarType returns the scalar type of a backend data type.
func ScalarType(dt dtype.DataType) (ndt.Type, error) {
	for id, other := range toDType {
		if other == dt {
			return ndt.Builtin(id), nil
		}
	}
	return ndt.Type{}, errors.Errorf("backend data type %s has no array type", dt.String())
}

// Type returns the array type of a backend shape.
func Type(sh *shape.Shape) (ndt.Type, error) {
	elem, err := ScalarType(sh.DType)
	if err != nil {
		return ndt.Type{}, err
	}
	return ndt.MakeFixedDims(sh.AxisLengths, elem)
}

// Shape returns the backend shape of an array type. Only fixed dimensions of
// scalar types supported by backends can be converted.
func Shape(tp ndt.Type) (*shape.Shape, error) {
	var axes []int
	for tp.IsDim() {
		size, ok := ndt.FixedDimSize(tp)
		if !ok {
			return nil, errors.Errorf("dimension %s has no backend shape", tp)
		}
		axes = append(axes, size)
		d, _ := tp.AsDim()
		tp = d.ElementType()
	}
	dt, err := DType(tp.ValueType())
	if err != nil {
		return nil, err
	}
	return &shape.Shape{DType: dt, AxisLengths: axes}, nil
}

// ToHost returns the values of an array in a buffer laid out the way
// backends expect them, with its shape.
func ToHost(a *nd.Array) ([]byte, *shape.Shape, error) {
	sh, err := Shape(a.Type())
	if err != nil {
		return nil, nil, err
	}
	evaluated, err := a.Eval()
	if err != nil {
		return nil, nil, err
	}
	buf := make([]byte, sh.ByteSize())
	if len(buf) > 0 {
		copy(buf, unsafe.Slice((*byte)(evaluated.Data()), len(buf)))
	}
	return buf, sh, evaluated.Release()
}

// FromHost returns an array holding a copy of a backend host buffer.
func FromHost(data []byte, sh *shape.Shape) (*nd.Array, error) {
	if len(data) != sh.ByteSize() {
		return nil, errors.Errorf("buffer size is %d but shape %s specifies a buffer size of %d", len(data), sh.String(), sh.ByteSize())
	}
	tp, err := Type(sh)
	if err != nil {
		return nil, err
	}
	a, err := nd.Empty(tp)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		copy(unsafe.Slice((*byte)(a.Data()), len(data)), data)
	}
	return a, nil
}

// View returns an array reading a backend host buffer without copying it.
// release is called once the array and all its views have been released.
func View(data []byte, sh *shape.Shape, release func() error) (*nd.Array, error) {
	if len(data) != sh.ByteSize() {
		return nil, errors.Errorf("buffer size is %d but shape %s specifies a buffer size of %d", len(data), sh.String(), sh.ByteSize())
	}
	tp, err := Type(sh)
	if err != nil {
		return nil, err
	}
	return nd.FromBytes(tp, data, release)
}

// Flat returns the values of an array as a flat slice.
func Flat[T dtype.GoDataType](a *nd.Array) ([]T, error) {
	data, sh, err := ToHost(a)
	if err != nil {
		return nil, err
	}
	if want := dtype.Generic[T](); sh.DType != want {
		return nil, errors.Errorf("cannot read an array of %s as %s", sh.DType.String(), want.String())
	}
	return dtype.ToSlice[T](data), nil
}

// Atom returns the value of an array holding a single value.
func Atom[T dtype.GoDataType](a *nd.Array) (T, error) {
	var zero T
	vals, err := Flat[T](a)
	if err != nil {
		return zero, err
	}
	if len(vals) != 1 {
		return zero, errors.Errorf("array (length=%d) is not an atom", len(vals))
	}
	return vals[0], nil
}
