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
	"strings"
	"unsafe"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
)

// exprKind distinguishes the expression types.
type exprKind int

const (
	byteswapExpr exprKind = iota
	convertExpr
	viewExpr
)

// expr stores values of an operand type and presents them as values of a
// value type.
type expr struct {
	extBase
	exprKind exprKind
	value    Type
	operand  Type
}

var _ Expr = (*expr)(nil)

func checkExprPart(what string, t Type) error {
	if !t.IsValid() {
		return invalidArgument("invalid %s type", what)
	}
	if t.IsDim() || t.ArrmetaSize() > 0 || t.IsExpression() {
		return invalidArgument("%s type %s of an expression type must be a scalar without arrmeta", what, t)
	}
	return nil
}

func newExpr(k exprKind, value, operand Type) *expr {
	return &expr{
		extBase: extBase{
			id:    []TypeID{ByteswapID, ConvertID, ViewID}[k],
			kind:  ExpressionKind,
			size:  operand.DataSize(),
			align: operand.Alignment(),
			flags: FlagExpression | (value.Flags()|operand.Flags())&FlagSymbolic,
		},
		exprKind: k,
		value:    value,
		operand:  operand,
	}
}

// MakeByteswap returns the type of values of type value stored with their
// bytes in the opposite order.
func MakeByteswap(value Type) (Type, error) {
	if err := checkExprPart("value", value); err != nil {
		return Type{}, err
	}
	if !value.IsSymbolic() && (!value.IsBuiltin() || !value.Kind().IsNumeric()) {
		return Type{}, invalidArgument("cannot byteswap non numeric type %s", value)
	}
	operand := value
	if value.IsBuiltin() {
		var err error
		if operand, err = MakeFixedBytes(value.DataSize(), value.Alignment()); err != nil {
			return Type{}, err
		}
	}
	return newType(newExpr(byteswapExpr, value, operand)), nil
}

// MakeConvert returns the type of values of type value stored as values of
// type operand, converted with assignment kernels.
func MakeConvert(value, operand Type) (Type, error) {
	if err := checkExprPart("value", value); err != nil {
		return Type{}, err
	}
	if err := checkExprPart("operand", operand); err != nil {
		return Type{}, err
	}
	return newType(newExpr(convertExpr, value, operand)), nil
}

// MakeView returns the type of values of type value whose bytes are the
// bytes of values of type operand.
func MakeView(value, operand Type) (Type, error) {
	if err := checkExprPart("value", value); err != nil {
		return Type{}, err
	}
	if err := checkExprPart("operand", operand); err != nil {
		return Type{}, err
	}
	if value.HasBlockrefs() || operand.HasBlockrefs() {
		return Type{}, invalidArgument("cannot view %s as %s", operand, value)
	}
	if !value.IsSymbolic() && !operand.IsSymbolic() && value.DataSize() != operand.DataSize() {
		return Type{}, invalidArgument("cannot view %s as %s: data sizes differ", operand, value)
	}
	return newType(newExpr(viewExpr, value, operand)), nil
}

// ExprParts returns the value and operand types given when an expression
// type was made. ok is false for other types.
func ExprParts(t Type) (value, operand Type, ok bool) {
	e, ok := t.ext.(*expr)
	if !ok {
		return Type{}, Type{}, false
	}
	if e.exprKind == byteswapExpr {
		return e.value, Type{}, true
	}
	return e.value, e.operand, true
}

// WithParts returns an expression type of the same kind with other value and
// operand types. The operand type is ignored by byteswap types.
func WithParts(t, value, operand Type) (Type, error) {
	e, ok := t.ext.(*expr)
	if !ok {
		return Type{}, invalidArgument("%s is not an expression type", t)
	}
	switch e.exprKind {
	case byteswapExpr:
		return MakeByteswap(value)
	case convertExpr:
		return MakeConvert(value, operand)
	}
	return MakeView(value, operand)
}

func (e *expr) ValueType() Type {
	return e.value
}

func (e *expr) OperandType() Type {
	return e.operand
}

func (e *expr) Print(b *strings.Builder) {
	switch e.exprKind {
	case byteswapExpr:
		fmt.Fprintf(b, "byteswap[%s]", e.value)
	case convertExpr:
		fmt.Fprintf(b, "convert[to=%s, from=%s]", e.value, e.operand)
	case viewExpr:
		fmt.Fprintf(b, "view[as=%s, original=%s]", e.value, e.operand)
	}
}

func (e *expr) Equal(other Extended) bool {
	o, ok := other.(*expr)
	return ok && o.exprKind == e.exprKind && o.value.Equal(e.value) && o.operand.Equal(e.operand)
}

// roundTrips returns true if converting a value to the operand and back
// gives the value.
func (e *expr) roundTrips() bool {
	if e.exprKind == convertExpr {
		return e.operand.IsLosslessAssignment(e.value) && e.value.IsLosslessAssignment(e.operand)
	}
	return true
}

func (e *expr) IsLosslessAssignment(dst, src Type) bool {
	if dst.ext == Extended(e) {
		return e.roundTrips() && e.value.IsLosslessAssignment(src)
	}
	return e.roundTrips() && dst.IsLosslessAssignment(e.value)
}

// scratch returns an aligned buffer able to hold a value of type t.
func scratch(t Type) unsafe.Pointer {
	buf := make([]complex128, max(1, (t.DataSize()+15)/16))
	return unsafe.Pointer(&buf[0])
}

func (e *expr) PrintData(b *strings.Builder, meta Arrmeta, data unsafe.Pointer) error {
	bld := ckernel.NewBuilder()
	defer bld.Reset()
	if _, err := e.MakeOperandToValueKernel(bld, 0, ckernel.SingleHost, eval.Default()); err != nil {
		return err
	}
	fn, err := bld.Single(0)
	if err != nil {
		return err
	}
	value := scratch(e.value)
	if err := fn(value, []unsafe.Pointer{data}); err != nil {
		return err
	}
	return e.value.PrintData(b, nil, value)
}

func (e *expr) ApplyLinearIndex(args IndexArgs) (IndexResult, error) {
	return scalarIndex(newType(e), args)
}

func (e *expr) MakeOperandToValueKernel(b *ckernel.Builder, off int, req ckernel.Request, ectx *eval.Context) (int, error) {
	switch e.exprKind {
	case byteswapExpr:
		return makeByteswap(b, off, e.value, req)
	case convertExpr:
		return MakeAssignmentKernel(b, off, e.value, nil, e.operand, nil, req, ectx)
	}
	return makeMemcpy(b, off, e.size, req, "view "+newType(e).String())
}

func (e *expr) MakeValueToOperandKernel(b *ckernel.Builder, off int, req ckernel.Request, ectx *eval.Context) (int, error) {
	switch e.exprKind {
	case byteswapExpr:
		return makeByteswap(b, off, e.value, req)
	case convertExpr:
		return MakeAssignmentKernel(b, off, e.operand, nil, e.value, nil, req, ectx)
	}
	return makeMemcpy(b, off, e.size, req, "view "+newType(e).String())
}

// makeByteswap emits a kernel reversing the bytes of a value. The real and
// imaginary parts of complex values are swapped separately.
func makeByteswap(b *ckernel.Builder, off int, value Type, req ckernel.Request) (int, error) {
	rec, err := b.Reserve(off, req, "byteswap "+value.String())
	if err != nil {
		return off, err
	}
	size, parts := value.DataSize(), 1
	if value.Kind() == ComplexKind {
		parts = 2
	}
	partSize := size / parts
	rec.SetFunc(func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		in := unsafe.Slice((*byte)(src[0]), size)
		var tmp [16]byte
		copy(tmp[:size], in)
		out := unsafe.Slice((*byte)(dst), size)
		for p := 0; p < parts; p++ {
			base := p * partSize
			for i := 0; i < partSize; i++ {
				out[base+i] = tmp[base+partSize-1-i]
			}
		}
		return nil
	})
	return off + 1, nil
}

// makeExprChain emits a kernel calling first and then second, passing the
// value computed by first through a buffer of type tmp.
func makeExprChain(b *ckernel.Builder, off int, label string, tmp Type, req ckernel.Request, first, second func(b *ckernel.Builder, off int, req ckernel.Request) (int, error)) (int, error) {
	rec, err := b.Reserve(off, req, label)
	if err != nil {
		return off, err
	}
	childReq := childRequest(req, ckernel.Single)
	firstOff := off + 1
	secondOff, err := first(b, firstOff, childReq)
	if err != nil {
		return off, err
	}
	next, err := second(b, secondOff, childReq)
	if err != nil {
		return off, err
	}
	rec.AddChild(firstOff)
	rec.AddChild(secondOff)
	fns, err := singleFuncs(b, []int{firstOff, secondOff})
	if err != nil {
		return off, err
	}
	buf := scratch(tmp)
	rec.SetFunc(func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		if err := fns[0](buf, src); err != nil {
			return err
		}
		return fns[1](dst, []unsafe.Pointer{buf})
	})
	return next, nil
}

// MakeAssignmentKernel converts values to or from the expression type
// through its value type.
func (e *expr) MakeAssignmentKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error) {
	if dst.ext == Extended(e) {
		if dst.Equal(src) {
			return makeMemcpy(b, off, e.size, req, "copy "+dst.String())
		}
		return makeExprChain(b, off, "assign "+src.String()+" to "+dst.String(), e.value, req,
			func(b *ckernel.Builder, off int, req ckernel.Request) (int, error) {
				return MakeAssignmentKernel(b, off, e.value, nil, src, srcMeta, req, ectx)
			},
			func(b *ckernel.Builder, off int, req ckernel.Request) (int, error) {
				return e.MakeValueToOperandKernel(b, off, req, ectx)
			})
	}
	return makeExprChain(b, off, "assign "+src.String()+" to "+dst.String(), e.value, req,
		func(b *ckernel.Builder, off int, req ckernel.Request) (int, error) {
			return e.MakeOperandToValueKernel(b, off, req, ectx)
		},
		func(b *ckernel.Builder, off int, req ckernel.Request) (int, error) {
			return MakeAssignmentKernel(b, off, dst, dstMeta, e.value, nil, req, ectx)
		})
}

// MakeComparisonKernel compares the values of the expression type.
func (e *expr) MakeComparisonKernel(b *ckernel.Builder, off int, src0 Type, meta0 Arrmeta, src1 Type, meta1 Arrmeta, op Comparison, req ckernel.Request, ectx *eval.Context) (int, error) {
	label := fmt.Sprintf("compare %s %s %s", src0, op, src1)
	rec, err := b.Reserve(off, req, label)
	if err != nil {
		return off, err
	}
	childReq := childRequest(req, ckernel.Single)
	convOff := off + 1
	cmpOff, err := e.MakeOperandToValueKernel(b, convOff, childReq, ectx)
	if err != nil {
		return off, err
	}
	self0 := src0.ext == Extended(e)
	var next int
	if self0 {
		next, err = MakeComparisonKernel(b, cmpOff, e.value, nil, src1, meta1, op, childReq, ectx)
	} else {
		next, err = MakeComparisonKernel(b, cmpOff, src0, meta0, e.value, nil, op, childReq, ectx)
	}
	if err != nil {
		return off, err
	}
	rec.AddChild(convOff)
	rec.AddChild(cmpOff)
	fns, err := singleFuncs(b, []int{convOff, cmpOff})
	if err != nil {
		return off, err
	}
	buf := scratch(e.value)
	rec.SetFunc(func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		i := 1
		if self0 {
			i = 0
		}
		if err := fns[0](buf, src[i:i+1]); err != nil {
			return err
		}
		args := []unsafe.Pointer{src[0], src[1]}
		args[i] = buf
		return fns[1](dst, args)
	})
	return next, nil
}
