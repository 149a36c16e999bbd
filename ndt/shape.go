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
	"cmp"
	"slices"
	"unsafe"
)

// Shape returns the size of every leading dimension. Sizes which are not
// known are -1: symbolic dimensions, and var dimensions except the outermost
// one when data is given.
func (t Type) Shape(meta Arrmeta, data unsafe.Pointer) []int {
	var shape []int
	for axis := 0; ; axis++ {
		d, ok := t.AsDim()
		if !ok {
			return shape
		}
		if d.Flags()&FlagVariadic != 0 {
			t = d.ElementType()
			continue
		}
		size := -1
		switch e := d.(type) {
		case *fixedDim:
			size = e.DimSize(meta, nil)
		case *varDim:
			if axis == 0 && data != nil && meta != nil {
				size = e.DimSize(meta, data)
			}
		}
		shape = append(shape, size)
		if meta != nil && d.ArrmetaSize() > 0 {
			meta = d.ElementArrmeta(meta)
		}
		t = d.ElementType()
	}
}

// Strides returns the stride in bytes of every leading dimension. Without
// arrmeta, the strides of a C-contiguous layout are returned.
func (t Type) Strides(meta Arrmeta) []int {
	if meta == nil {
		return contiguousStrides(t)
	}
	var strides []int
	for {
		d, ok := t.AsDim()
		if !ok || d.Flags()&FlagVariadic != 0 {
			return strides
		}
		strides = append(strides, d.Stride(meta))
		meta = d.ElementArrmeta(meta)
		t = d.ElementType()
	}
}

func contiguousStrides(t Type) []int {
	d, ok := t.AsDim()
	if !ok || d.Flags()&FlagVariadic != 0 {
		return nil
	}
	return append([]int{d.ElementType().DataSize()}, contiguousStrides(d.ElementType())...)
}

// AxisOrder returns the axes sorted from the largest absolute stride to the
// smallest. A C-contiguous array gives 0, 1, ..., n-1.
func AxisOrder(strides []int) []int {
	axes := make([]int, len(strides))
	for i := range axes {
		axes[i] = i
	}
	abs := func(x int) int {
		if x < 0 {
			return -x
		}
		return x
	}
	slices.SortStableFunc(axes, func(a, b int) int {
		return cmp.Compare(abs(strides[b]), abs(strides[a]))
	})
	return axes
}

// IsCContiguous returns true if the data of a value of type t with the given
// arrmeta is stored contiguously in C order.
func IsCContiguous(t Type, meta Arrmeta) bool {
	switch e := t.ext.(type) {
	case nil:
		return true
	case *fixedDim:
		if !IsCContiguous(e.elem, e.ElementArrmeta(meta)) {
			return false
		}
		return e.DimSize(meta, nil) <= 1 || e.Stride(meta) == e.elem.DataSize()
	case *tuple:
		for i, field := range e.fields {
			if e.fieldOffset(meta, i) != e.dataOffsets[i] || !IsCContiguous(field, e.fieldMeta(meta, i)) {
				return false
			}
		}
		return true
	case *varDim:
		return false
	}
	return t.ArrmetaSize() == 0
}

// canCopy returns true if a value of type src can be assigned to a value of
// type dst by copying its bytes.
func canCopy(dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta) bool {
	return dst.Equal(src) && !dst.HasBlockrefs() && !dst.IsExpression() &&
		IsCContiguous(dst, dstMeta) && IsCContiguous(src, srcMeta)
}

// Canonical returns the type with every expression type replaced by its
// value type.
func (t Type) Canonical() Type {
	if !t.IsExpression() {
		return t
	}
	switch e := t.ext.(type) {
	case *tuple:
		fields := make([]Type, len(e.fields))
		for i, field := range e.fields {
			fields[i] = field.Canonical()
		}
		canonical, err := makeTuple(e.id, e.kind, fields, e.names)
		if err != nil {
			return t
		}
		return canonical
	case Dim:
		canonical, err := e.WithElement(e.ElementType().Canonical())
		if err != nil {
			return t
		}
		return canonical
	case Expr:
		return e.ValueType().Canonical()
	}
	return t
}

// ReplaceScalar returns the type with the same leading dimensions as t over
// the scalar type scalar.
func ReplaceScalar(t, scalar Type) (Type, error) {
	d, ok := t.AsDim()
	if !ok {
		return scalar, nil
	}
	elem, err := ReplaceScalar(d.ElementType(), scalar)
	if err != nil {
		return Type{}, err
	}
	return d.WithElement(elem)
}
