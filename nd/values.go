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

package nd

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/gx-org/dynd/eval"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var kindTypes = map[reflect.Kind]ndt.Type{
	reflect.Bool:       ndt.Bool,
	reflect.Int:        ndt.Int64,
	reflect.Int8:       ndt.Int8,
	reflect.Int16:      ndt.Int16,
	reflect.Int32:      ndt.Int32,
	reflect.Int64:      ndt.Int64,
	reflect.Uint:       ndt.Uint64,
	reflect.Uint8:      ndt.Uint8,
	reflect.Uint16:     ndt.Uint16,
	reflect.Uint32:     ndt.Uint32,
	reflect.Uint64:     ndt.Uint64,
	reflect.Float32:    ndt.Float32,
	reflect.Float64:    ndt.Float64,
	reflect.Complex64:  ndt.Complex64,
	reflect.Complex128: ndt.Complex128,
	reflect.String:     ndt.String,
}

func cannotInfer(format string, a ...any) error {
	return errors.WithStack(&ndt.InvalidArgumentError{Msg: fmt.Sprintf(format, a...)})
}

// FromValues returns an array holding a copy of nested Go slices or arrays
// of scalars or strings. Rows of different lengths give var dimensions:
//
//	nd.FromValues([][]float64{{0.5, 1.5}, {4}}) // type="2 * var * float64"
func FromValues(v any) (*Array, error) {
	val := reflect.ValueOf(v)
	tp, err := inferType(val)
	if err != nil {
		return nil, err
	}
	a, err := Empty(tp)
	if err != nil {
		return nil, err
	}
	if err := fill(eval.Default(), tp, a.Arrmeta(), a.data, val); err != nil {
		return nil, multierr.Append(err, a.Release())
	}
	return a, nil
}

func inferType(v reflect.Value) (ndt.Type, error) {
	switch v.Kind() {
	case reflect.Invalid:
		return ndt.Type{}, cannotInfer("cannot infer the type of a nil value")
	case reflect.Interface, reflect.Pointer:
		return inferType(v.Elem())
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			elem, err := staticType(v.Type().Elem())
			if err != nil {
				return ndt.Type{}, err
			}
			return ndt.MakeFixedDim(0, elem)
		}
		elem, err := inferType(v.Index(0))
		if err != nil {
			return ndt.Type{}, err
		}
		for i := 1; i < v.Len(); i++ {
			next, err := inferType(v.Index(i))
			if err != nil {
				return ndt.Type{}, err
			}
			if elem, err = merge(elem, next); err != nil {
				return ndt.Type{}, err
			}
		}
		return ndt.MakeFixedDim(v.Len(), elem)
	}
	if tp, ok := kindTypes[v.Kind()]; ok {
		return tp, nil
	}
	return ndt.Type{}, cannotInfer("no array type for Go values of type %s", v.Type())
}

// staticType returns the array type of a Go type.
func staticType(rt reflect.Type) (ndt.Type, error) {
	switch rt.Kind() {
	case reflect.Slice:
		elem, err := staticType(rt.Elem())
		if err != nil {
			return ndt.Type{}, err
		}
		return ndt.MakeVarDim(elem)
	case reflect.Array:
		elem, err := staticType(rt.Elem())
		if err != nil {
			return ndt.Type{}, err
		}
		return ndt.MakeFixedDim(rt.Len(), elem)
	}
	if tp, ok := kindTypes[rt.Kind()]; ok {
		return tp, nil
	}
	return ndt.Type{}, cannotInfer("no array type for Go type %s", rt)
}

// merge returns the type of the elements of a dimension whose elements have
// the types a and b.
func merge(a, b ndt.Type) (ndt.Type, error) {
	if a.Equal(b) {
		return a, nil
	}
	da, aDim := a.AsDim()
	db, bDim := b.AsDim()
	if aDim && bDim {
		elem, err := merge(da.ElementType(), db.ElementType())
		if err != nil {
			return ndt.Type{}, err
		}
		sa, aFixed := ndt.FixedDimSize(a)
		sb, bFixed := ndt.FixedDimSize(b)
		if aFixed && bFixed && sa == sb {
			return ndt.MakeFixedDim(sa, elem)
		}
		return ndt.MakeVarDim(elem)
	}
	if a.IsBuiltin() && b.IsBuiltin() {
		if tp, err := ndt.PromoteArithmetic(a, b); err == nil {
			return tp, nil
		}
	}
	return ndt.Type{}, cannotInfer("inconsistent elements of types %s and %s", a, b)
}

// fill assigns the Go value v to the value of type tp at data.
func fill(ectx *eval.Context, tp ndt.Type, meta ndt.Arrmeta, data unsafe.Pointer, v reflect.Value) error {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	d, ok := tp.AsDim()
	if !ok {
		return fillScalar(ectx, tp, meta, data, v)
	}
	if d.ID() == ndt.VarDimID {
		// Rows are filled in a fixed array first, then assigned to allocate
		// the var dimension.
		rowType, err := ndt.MakeFixedDim(v.Len(), d.ElementType())
		if err != nil {
			return err
		}
		row, err := Empty(rowType)
		if err != nil {
			return err
		}
		err = fill(ectx, rowType, row.Arrmeta(), row.data, v)
		if err == nil {
			err = ndt.Assign(tp, meta, data, rowType, row.Arrmeta(), row.data, ectx)
		}
		return multierr.Append(err, row.Release())
	}
	for i := 0; i < v.Len(); i++ {
		res, err := tp.ApplyLinearIndex([]ndt.Index{ndt.I(i)}, meta, data)
		if err != nil {
			return err
		}
		err = fill(ectx, res.Type, res.Meta, res.Data, v.Index(i))
		if err = multierr.Append(err, res.Type.ArrmetaDestruct(res.Meta)); err != nil {
			return err
		}
	}
	return nil
}

func fillScalar(ectx *eval.Context, tp ndt.Type, meta ndt.Arrmeta, data unsafe.Pointer, v reflect.Value) error {
	switch v.Kind() {
	case reflect.String:
		s := v.String()
		buf := make([]byte, max(len(s), 1))
		copy(buf, s)
		src, err := ndt.MakeFixedString(len(buf))
		if err != nil {
			return err
		}
		return ndt.Assign(tp, meta, data, src, nil, unsafe.Pointer(&buf[0]), ectx)
	case reflect.Int:
		x := v.Int()
		return ndt.Assign(tp, meta, data, ndt.Int64, nil, unsafe.Pointer(&x), ectx)
	case reflect.Uint:
		x := v.Uint()
		return ndt.Assign(tp, meta, data, ndt.Uint64, nil, unsafe.Pointer(&x), ectx)
	}
	src, ok := kindTypes[v.Kind()]
	if !ok {
		return cannotInfer("cannot assign Go values of type %s", v.Type())
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return ndt.Assign(tp, meta, data, src, nil, p.UnsafePointer(), ectx)
}
