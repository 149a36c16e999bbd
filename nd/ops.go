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
	"slices"
	"unsafe"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// varSize marks a var dimension in a broadcast shape.
const varSize = -1

func shapeMismatch(format string, a ...any) error {
	return errors.WithStack(&ndt.ShapeMismatchError{Msg: fmt.Sprintf(format, a...)})
}

// dimSizes returns the size of every leading dimension of a type, varSize
// for var dimensions.
func dimSizes(tp ndt.Type) ([]int, error) {
	var sizes []int
	for {
		d, ok := tp.AsDim()
		if !ok {
			return sizes, nil
		}
		switch {
		case d.ID() == ndt.VarDimID:
			sizes = append(sizes, varSize)
		default:
			size, ok := ndt.FixedDimSize(tp)
			if !ok {
				return nil, errors.WithStack(&ndt.InvalidArgumentError{Msg: fmt.Sprintf("cannot broadcast symbolic type %s", tp)})
			}
			sizes = append(sizes, size)
		}
		tp = d.ElementType()
	}
}

// BroadcastShapes returns the shape of the result of an elementwise operation
// on arrays of the given shapes. Shapes are aligned on their last dimension.
// Two aligned sizes must be equal or one of them must be 1. A var dimension,
// given as -1, broadcasts with any size into a var dimension.
func BroadcastShapes(shapes ...[]int) ([]int, error) {
	ndim := 0
	for _, shape := range shapes {
		ndim = max(ndim, len(shape))
	}
	out := make([]int, ndim)
	for i := range out {
		out[i] = 1
	}
	for _, shape := range shapes {
		shift := ndim - len(shape)
		for i, size := range shape {
			cur := out[shift+i]
			switch {
			case size == varSize || cur == varSize:
				out[shift+i] = varSize
			case cur == 1:
				out[shift+i] = size
			case size != 1 && size != cur:
				return nil, shapeMismatch("cannot broadcast shapes %v together: axis %d has sizes %d and %d", shapes, shift+i, cur, size)
			}
		}
	}
	return out, nil
}

// broadcastType returns the type of the result of an elementwise operation
// on operands of the given types with scalar results of type elem.
func broadcastType(elem ndt.Type, operands ...ndt.Type) (ndt.Type, error) {
	shapes := make([][]int, len(operands))
	var errs error
	for i, operand := range operands {
		var err error
		shapes[i], err = dimSizes(operand)
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		return ndt.Type{}, errs
	}
	shape, err := BroadcastShapes(shapes...)
	if err != nil {
		return ndt.Type{}, err
	}
	tp := elem
	for _, size := range slices.Backward(shape) {
		if size == varSize {
			tp, err = ndt.MakeVarDim(tp)
		} else {
			tp, err = ndt.MakeFixedDim(size, tp)
		}
		if err != nil {
			return ndt.Type{}, err
		}
	}
	return tp, nil
}

func checkLive(arrays ...*Array) error {
	var err error
	for i, a := range arrays {
		if a == nil || a.block == nil {
			err = multierr.Append(err, errors.Errorf("operand %d has been released", i))
		}
	}
	return err
}

// elementwise evaluates a kernel emitted by leaf into a new array of the
// broadcast shape of the operands.
func elementwise(ectx *eval.Context, label string, elem ndt.Type, leaf ndt.LeafFunc, operands ...*Array) (*Array, error) {
	if err := checkLive(operands...); err != nil {
		return nil, err
	}
	srcs := make([]ndt.Type, len(operands))
	for i, operand := range operands {
		srcs[i] = operand.tp
	}
	tp, err := broadcastType(elem, srcs...)
	if err != nil {
		return nil, err
	}
	ectx.Log().Debug("elementwise operation", "op", label, "type", tp)
	out, err := Empty(tp)
	if err != nil {
		return nil, err
	}
	if err := out.evalLifted(ectx, leaf, operands...); err != nil {
		return nil, multierr.Append(err, out.Release())
	}
	return out, nil
}

// evalLifted builds and runs a kernel writing leaf results in every element
// of the array.
func (a *Array) evalLifted(ectx *eval.Context, leaf ndt.LeafFunc, operands ...*Array) error {
	srcs := make([]ndt.Type, len(operands))
	metas := make([]ndt.Arrmeta, len(operands))
	data := make([]unsafe.Pointer, len(operands))
	for i, operand := range operands {
		srcs[i], metas[i], data[i] = operand.tp, operand.Arrmeta(), operand.data
	}
	b := ckernel.NewBuilder()
	defer b.Reset()
	if _, err := ndt.MakeLiftedKernel(b, 0, a.tp, a.Arrmeta(), srcs, metas, leaf, ectx.Request, ectx); err != nil {
		return err
	}
	return run(b, ectx, a.data, data)
}

// run calls the kernel at offset 0 of b once with the calling convention
// requested by ectx.
func run(b *ckernel.Builder, ectx *eval.Context, dst unsafe.Pointer, src []unsafe.Pointer) error {
	if ectx.Request.Mode == ckernel.Strided {
		fn, err := b.Strided(0)
		if err != nil {
			return err
		}
		return fn(dst, 0, src, make([]int, len(src)), 1)
	}
	fn, err := b.Single(0)
	if err != nil {
		return err
	}
	return fn(dst, src)
}

// Binary returns a op b computed elementwise in the promoted scalar type of
// the operands.
func Binary(ectx *eval.Context, op ndt.Op, a, b *Array) (*Array, error) {
	if err := checkLive(a, b); err != nil {
		return nil, err
	}
	elem, err := ndt.PromoteArithmetic(a.tp.ScalarType(), b.tp.ScalarType())
	if err != nil {
		return nil, err
	}
	return elementwise(ectx, op.Name(), elem, exprLeaf(op, ectx), a, b)
}

func exprLeaf(op ndt.Op, ectx *eval.Context) ndt.LeafFunc {
	return func(b *ckernel.Builder, off int, dst ndt.Type, dstMeta ndt.Arrmeta, srcs []ndt.Type, srcMetas []ndt.Arrmeta, req ckernel.Request) (int, error) {
		return ndt.MakeExprKernel(b, off, dst, dstMeta, srcs, srcMetas, op, req, ectx)
	}
}

// Add returns a + b.
func Add(a, b *Array) (*Array, error) {
	return Binary(eval.Default(), ndt.Add, a, b)
}

// Subtract returns a - b.
func Subtract(a, b *Array) (*Array, error) {
	return Binary(eval.Default(), ndt.Subtract, a, b)
}

// Multiply returns a * b.
func Multiply(a, b *Array) (*Array, error) {
	return Binary(eval.Default(), ndt.Multiply, a, b)
}

// Divide returns a / b.
func Divide(a, b *Array) (*Array, error) {
	return Binary(eval.Default(), ndt.Divide, a, b)
}

// Compare returns the bool array of a op b computed elementwise.
func Compare(ectx *eval.Context, op ndt.Comparison, a, b *Array) (*Array, error) {
	return elementwise(ectx, op.String(), ndt.Bool, ndt.ComparisonLeaf(op, ectx), a, b)
}

// Less returns a < b.
func Less(a, b *Array) (*Array, error) {
	return Compare(eval.Default(), ndt.Less, a, b)
}

// LessEqual returns a <= b.
func LessEqual(a, b *Array) (*Array, error) {
	return Compare(eval.Default(), ndt.LessEqual, a, b)
}

// Equal returns a == b.
func Equal(a, b *Array) (*Array, error) {
	return Compare(eval.Default(), ndt.Equal, a, b)
}

// NotEqual returns a != b.
func NotEqual(a, b *Array) (*Array, error) {
	return Compare(eval.Default(), ndt.NotEqual, a, b)
}

// GreaterEqual returns a >= b.
func GreaterEqual(a, b *Array) (*Array, error) {
	return Compare(eval.Default(), ndt.GreaterEqual, a, b)
}

// Greater returns a > b.
func Greater(a, b *Array) (*Array, error) {
	return Compare(eval.Default(), ndt.Greater, a, b)
}

// AssignFrom assigns the values of src to the array, broadcasting src to
// the dimensions of the array.
func (a *Array) AssignFrom(src *Array) error {
	return a.AssignWith(eval.Default(), src)
}

// AssignWith is AssignFrom converting values with the error mode of ectx.
func (a *Array) AssignWith(ectx *eval.Context, src *Array) error {
	if err := checkLive(a, src); err != nil {
		return err
	}
	b := ckernel.NewBuilder()
	defer b.Reset()
	if _, err := ndt.MakeAssignmentKernel(b, 0, a.tp, a.Arrmeta(), src.tp, src.Arrmeta(), ectx.Request, ectx); err != nil {
		return err
	}
	return run(b, ectx, a.data, []unsafe.Pointer{src.data})
}

// Eval returns a new array holding the values of the array. Expression
// types are evaluated: the new array stores their value types.
func (a *Array) Eval() (*Array, error) {
	return a.EvalWith(eval.Default())
}

// EvalWith is Eval converting values with the error mode of ectx.
func (a *Array) EvalWith(ectx *eval.Context) (*Array, error) {
	if err := checkLive(a); err != nil {
		return nil, err
	}
	out, err := Empty(a.tp.Canonical())
	if err != nil {
		return nil, err
	}
	if err := out.AssignWith(ectx, a); err != nil {
		return nil, multierr.Append(err, out.Release())
	}
	return out, nil
}
