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
	"fmt"
	"unsafe"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Op is an arithmetic operator.
type Op int

const (
	Add Op = iota
	Subtract
	Multiply
	Divide
)

var opSymbols = [...]string{
	Add:      "+",
	Subtract: "-",
	Multiply: "*",
	Divide:   "/",
}

var opNames = [...]string{
	Add:      "add",
	Subtract: "subtract",
	Multiply: "multiply",
	Divide:   "divide",
}

func (op Op) String() string {
	if op < 0 || int(op) >= len(opSymbols) {
		return fmt.Sprintf("Op(%d)", int(op))
	}
	return opSymbols[op]
}

// Name of the operator.
func (op Op) Name() string {
	if op < 0 || int(op) >= len(opNames) {
		return op.String()
	}
	return opNames[op]
}

// ErrDivisionByZero is returned by kernels dividing integers by zero.
var ErrDivisionByZero = errors.New("integer division by zero")

// fitsFloat32 returns true if every value of a builtin type has an exact
// representation in single precision.
func fitsFloat32(t Type) bool {
	switch t.id {
	case BoolID, Int8ID, Int16ID, Uint8ID, Uint16ID, Float32ID, Complex64ID:
		return true
	}
	return false
}

// promoteInt applies the C integer promotions: types smaller than int32
// become int32.
func promoteInt(t Type) Type {
	if t.DataSize() < 4 {
		return Int32
	}
	return t
}

// PromoteArithmetic returns the type in which an arithmetic operation between
// values of types a and b is computed. Expression types are promoted through
// their value type.
func PromoteArithmetic(a, b Type) (Type, error) {
	a, b = a.ValueType(), b.ValueType()
	if !a.IsBuiltin() || !b.IsBuiltin() || !a.Kind().IsNumeric() || !b.Kind().IsNumeric() {
		return Type{}, errors.WithStack(&TypeError{Op: "arithmetic", Dst: a, Src: b})
	}
	ka, kb := a.Kind(), b.Kind()
	switch {
	case ka == ComplexKind || kb == ComplexKind:
		if fitsFloat32(a) && fitsFloat32(b) {
			return Complex64, nil
		}
		return Complex128, nil
	case ka == RealKind || kb == RealKind:
		if fitsFloat32(a) && fitsFloat32(b) {
			return Float32, nil
		}
		return Float64, nil
	}
	a, b = promoteInt(a), promoteInt(b)
	if a.Equal(b) {
		return a, nil
	}
	if a.Kind() == b.Kind() {
		if a.DataSize() >= b.DataSize() {
			return a, nil
		}
		return b, nil
	}
	signed, unsigned := a, b
	if a.Kind() == UintKind {
		signed, unsigned = b, a
	}
	if unsigned.DataSize() >= signed.DataSize() {
		return unsigned, nil
	}
	return signed, nil
}

// LeafFunc emits at off the kernel computing a scalar of type dst from a
// scalar of every source type.
type LeafFunc func(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, srcs []Type, srcMetas []Arrmeta, req ckernel.Request) (int, error)

// MakeLiftedKernel emits at off a kernel applying a scalar kernel emitted by
// leaf to every element of dst. Sources are broadcast to the dimensions of
// dst.
func MakeLiftedKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, srcs []Type, srcMetas []Arrmeta, leaf LeafFunc, req ckernel.Request, ectx *eval.Context) (int, error) {
	if err := checkRequest(req, append([]Type{dst}, srcs...)...); err != nil {
		return off, err
	}
	if len(srcs) != len(srcMetas) {
		return off, invalidArgument("%d source types for %d source arrmeta", len(srcs), len(srcMetas))
	}
	if dst.IsDim() {
		return emitDimLoop(b, off, dst, dstMeta, srcs, srcMetas, req, "lift "+dst.String(),
			func(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, srcs []Type, srcMetas []Arrmeta) (int, error) {
				return MakeLiftedKernel(b, off, dst, dstMeta, srcs, srcMetas, leaf, childRequest(req, ckernel.Strided), ectx)
			})
	}
	for _, src := range srcs {
		if src.IsDim() {
			return off, shapeMismatch("cannot broadcast %s into %s", src, dst)
		}
	}
	return leaf(b, off, dst, dstMeta, srcs, srcMetas, req)
}

// MakeExprKernel emits at off a kernel computing dst = srcs[0] op srcs[1]
// elementwise, with broadcasting.
func MakeExprKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, srcs []Type, srcMetas []Arrmeta, op Op, req ckernel.Request, ectx *eval.Context) (int, error) {
	if len(srcs) != 2 {
		return off, shapeMismatch("%s takes 2 operands, got %d", op.Name(), len(srcs))
	}
	ectx.Log().Debug("expression kernel", "op", op.Name(), "dst", dst, "srcs", srcs)
	return MakeLiftedKernel(b, off, dst, dstMeta, srcs, srcMetas, arithLeaf(op, ectx), req, ectx)
}

// ComparisonLeaf returns the leaf comparing two scalars into a bool.
func ComparisonLeaf(op Comparison, ectx *eval.Context) LeafFunc {
	return func(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, srcs []Type, srcMetas []Arrmeta, req ckernel.Request) (int, error) {
		if len(srcs) != 2 {
			return off, shapeMismatch("comparison takes 2 operands, got %d", len(srcs))
		}
		if !dst.Equal(Bool) {
			return off, errors.WithStack(&TypeError{Op: "comparison", Dst: dst, Src: Bool})
		}
		return MakeComparisonKernel(b, off, srcs[0], srcMetas[0], srcs[1], srcMetas[1], op, req, ectx)
	}
}

func arithLeaf(op Op, ectx *eval.Context) LeafFunc {
	return func(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, srcs []Type, srcMetas []Arrmeta, req ckernel.Request) (int, error) {
		fn := binaryFunc(op, dst.id)
		if !dst.IsBuiltin() || fn == nil {
			return off, errors.WithStack(&TypeError{Op: op.Name(), Dst: dst, Src: srcs[0]})
		}
		return MakeConvertingLeaf(b, off, fmt.Sprintf("%s %s", op.Name(), dst), dst, srcs, srcMetas, fn, req, ectx)
	}
}

// MakeConvertingLeaf emits a kernel calling fn once every source has been
// assigned to a buffer of type to. Sources of type to are passed directly.
func MakeConvertingLeaf(b *ckernel.Builder, off int, label string, to Type, srcs []Type, srcMetas []Arrmeta, fn ckernel.SingleFunc, req ckernel.Request, ectx *eval.Context) (int, error) {
	rec, err := b.Reserve(off, req, label)
	if err != nil {
		return off, err
	}
	next := off + 1
	convs := make([]ckernel.SingleFunc, len(srcs))
	bufs := make([]unsafe.Pointer, len(srcs))
	for i, src := range srcs {
		if src.Equal(to) {
			continue
		}
		childOff := next
		if next, err = MakeAssignmentKernel(b, childOff, to, nil, src, srcMetas[i], childRequest(req, ckernel.Single), ectx); err != nil {
			return off, err
		}
		rec.AddChild(childOff)
		if convs[i], err = b.Single(childOff); err != nil {
			return off, err
		}
		bufs[i] = scratch(to)
	}
	rec.SetFunc(func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		args := make([]unsafe.Pointer, len(src))
		for i, p := range src {
			if convs[i] == nil {
				args[i] = p
				continue
			}
			if err := convs[i](bufs[i], []unsafe.Pointer{p}); err != nil {
				return err
			}
			args[i] = bufs[i]
		}
		return fn(dst, args)
	})
	return next, nil
}

func binaryKernel[T any](f func(a, b T) (T, error)) ckernel.SingleFunc {
	return func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		r, err := f(load[T](src[0]), load[T](src[1]))
		if err != nil {
			return err
		}
		store(dst, r)
		return nil
	}
}

func intBinary[T constraints.Integer](op Op) ckernel.SingleFunc {
	return binaryKernel(func(a, b T) (T, error) {
		switch op {
		case Add:
			return a + b, nil
		case Subtract:
			return a - b, nil
		case Multiply:
			return a * b, nil
		}
		if b == 0 {
			return 0, errors.WithStack(ErrDivisionByZero)
		}
		return a / b, nil
	})
}

type inexactNumber interface {
	constraints.Float | constraints.Complex
}

func inexactBinary[T inexactNumber](op Op) ckernel.SingleFunc {
	return binaryKernel(func(a, b T) (T, error) {
		switch op {
		case Add:
			return a + b, nil
		case Subtract:
			return a - b, nil
		case Multiply:
			return a * b, nil
		}
		return a / b, nil
	})
}

// binaryFunc returns the function computing op on two values of a builtin
// type, nil if the type has no arithmetic.
func binaryFunc(op Op, id TypeID) ckernel.SingleFunc {
	if op < Add || op > Divide {
		return nil
	}
	switch id {
	case Int8ID:
		return intBinary[int8](op)
	case Int16ID:
		return intBinary[int16](op)
	case Int32ID:
		return intBinary[int32](op)
	case Int64ID:
		return intBinary[int64](op)
	case Uint8ID:
		return intBinary[uint8](op)
	case Uint16ID:
		return intBinary[uint16](op)
	case Uint32ID:
		return intBinary[uint32](op)
	case Uint64ID:
		return intBinary[uint64](op)
	case Float32ID:
		return inexactBinary[float32](op)
	case Float64ID:
		return inexactBinary[float64](op)
	case Complex64ID:
		return inexactBinary[complex64](op)
	case Complex128ID:
		return inexactBinary[complex128](op)
	}
	return nil
}
