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

	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

// mapScalar returns tp with the type below its leading dimensions replaced
// by f applied to it.
func mapScalar(tp ndt.Type, f func(ndt.Type) (ndt.Type, error)) (ndt.Type, error) {
	d, ok := tp.AsDim()
	if !ok {
		return f(tp)
	}
	elem, err := mapScalar(d.ElementType(), f)
	if err != nil {
		return ndt.Type{}, err
	}
	return d.WithElement(elem)
}

// exprView returns a view of the array in which the scalar type is replaced
// by the expression type returned by f.
func (a *Array) exprView(f func(ndt.Type) (ndt.Type, error)) (*Array, error) {
	if err := checkLive(a); err != nil {
		return nil, err
	}
	tp, err := mapScalar(a.tp, f)
	if err != nil {
		return nil, err
	}
	if tp.ArrmetaSize() != a.tp.ArrmetaSize() {
		return nil, errors.WithStack(&ndt.InvalidArgumentError{Msg: fmt.Sprintf("cannot view %s as %s: arrmeta layouts differ", a.tp, tp)})
	}
	meta := make(ndt.Arrmeta, tp.ArrmetaSize())
	tp.ArrmetaCopyConstruct(meta, a.Arrmeta())
	return newArray(tp, meta, a.dataOwner(), a.data), nil
}

// Ucast returns a view of the array converting its scalars to tp.
func (a *Array) Ucast(tp ndt.Type) (*Array, error) {
	return a.exprView(func(scalar ndt.Type) (ndt.Type, error) {
		return ndt.MakeConvert(tp, scalar)
	})
}

// Byteswap returns a view of the array reading its scalars with their bytes
// in the opposite order.
func (a *Array) Byteswap() (*Array, error) {
	return a.exprView(ndt.MakeByteswap)
}

// View returns a view of the array reinterpreting the bytes of its scalars
// as values of type tp.
func (a *Array) View(tp ndt.Type) (*Array, error) {
	return a.exprView(func(scalar ndt.Type) (ndt.Type, error) {
		return ndt.MakeView(tp, scalar)
	})
}
