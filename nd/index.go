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
	"unsafe"

	"github.com/gx-org/dynd/eval"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

// Index returns a view of the array selected by one index term per leading
// dimension. The view shares the data of the array.
func (a *Array) Index(terms ...ndt.Index) (*Array, error) {
	if a.block == nil {
		return nil, errors.Errorf("cannot index a released array of type %s", a.tp)
	}
	res, err := a.tp.ApplyLinearIndex(terms, a.Arrmeta(), a.data)
	if err != nil {
		return nil, err
	}
	return newArray(res.Type, res.Meta, a.dataOwner(), res.Data), nil
}

// At returns a view of the element at the given integer indices.
func (a *Array) At(indices ...int) (*Array, error) {
	terms := make([]ndt.Index, len(indices))
	for i, index := range indices {
		terms[i] = ndt.I(index)
	}
	return a.Index(terms...)
}

// Value returns the value of a zero dimensional array as a Go scalar.
func Value[T ndt.Scalar](a *Array) (T, error) {
	return ValueWith[T](eval.Default(), a)
}

// ValueWith is Value converting with the error mode of ectx.
func ValueWith[T ndt.Scalar](ectx *eval.Context, a *Array) (T, error) {
	var v T
	if a.block == nil {
		return v, errors.Errorf("cannot read a released array of type %s", a.tp)
	}
	if a.tp.IsDim() {
		return v, errors.WithStack(&ndt.InvalidArgumentError{Msg: fmt.Sprintf("cannot read an array of type %s as a %T scalar", a.tp, v)})
	}
	err := ndt.Assign(ndt.TypeFor[T](), nil, unsafe.Pointer(&v), a.tp, a.Arrmeta(), a.data, ectx)
	return v, err
}
