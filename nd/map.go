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

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/codegen"
	"github.com/gx-org/dynd/eval"
	"github.com/gx-org/dynd/ndt"
	"github.com/gx-org/dynd/ndt/typevar"
	"go.uber.org/multierr"
)

// Map returns the array of f applied to every scalar of a.
func Map[R, A ndt.Scalar](a *Array, f func(A) R) (*Array, error) {
	return mapKernel[R, A](eval.Default(), a, codegen.Kernelize(f))
}

// MapErr is Map for functions which can fail. The first error stops the
// evaluation.
func MapErr[R, A ndt.Scalar](a *Array, f func(A) (R, error)) (*Array, error) {
	return mapKernel[R, A](eval.Default(), a, codegen.KernelizeErr(f))
}

// Signature returns the prototype of a function of type (A) -> R lifted to
// arrays: (Dims... * A) -> Dims... * R.
func Signature[R, A ndt.Scalar]() (ndt.Type, error) {
	return ndt.Parse(fmt.Sprintf("(Dims... * %s) -> Dims... * %s", ndt.TypeFor[A](), ndt.TypeFor[R]()))
}

func mapKernel[R, A ndt.Scalar](ectx *eval.Context, a *Array, fn ckernel.SingleFunc) (*Array, error) {
	if err := checkLive(a); err != nil {
		return nil, err
	}
	proto, err := Signature[R, A]()
	if err != nil {
		return nil, err
	}
	arg, err := mapScalar(a.tp, func(scalar ndt.Type) (ndt.Type, error) {
		return scalar.ValueType(), nil
	})
	if err != nil {
		return nil, err
	}
	ret, err := typevar.MatchSignature(proto, []ndt.Type{arg}, typevar.NewMap())
	if err != nil {
		return nil, err
	}
	ectx.Log().Debug("map", "signature", proto, "arg", a.tp, "ret", ret)
	out, err := Empty(ret)
	if err != nil {
		return nil, err
	}
	to := ndt.TypeFor[A]()
	leaf := func(b *ckernel.Builder, off int, dst ndt.Type, dstMeta ndt.Arrmeta, srcs []ndt.Type, srcMetas []ndt.Arrmeta, req ckernel.Request) (int, error) {
		return ndt.MakeConvertingLeaf(b, off, fmt.Sprintf("map (%s) -> %s", to, dst), to, srcs, srcMetas, fn, req, ectx)
	}
	if err := out.evalLifted(ectx, leaf, a); err != nil {
		return nil, multierr.Append(err, out.Release())
	}
	return out, nil
}
