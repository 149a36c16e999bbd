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
	"fmt"
	"unsafe"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
	"golang.org/x/exp/constraints"
)

// Comparison is a comparison operator.
type Comparison int

const (
	Less Comparison = iota
	LessEqual
	Equal
	NotEqual
	GreaterEqual
	Greater
)

var comparisonNames = [...]string{
	Less:         "<",
	LessEqual:    "<=",
	Equal:        "==",
	NotEqual:     "!=",
	GreaterEqual: ">=",
	Greater:      ">",
}

func (c Comparison) String() string {
	if c < 0 || int(c) >= len(comparisonNames) {
		return fmt.Sprintf("Comparison(%d)", int(c))
	}
	return comparisonNames[c]
}

// IsOrdering returns true for the operators requiring an order between values.
func (c Comparison) IsOrdering() bool {
	return c != Equal && c != NotEqual
}

func compareOrdered[T constraints.Ordered](c Comparison, a, b T) bool {
	switch c {
	case Less:
		return a < b
	case LessEqual:
		return a <= b
	case Equal:
		return a == b
	case NotEqual:
		return a != b
	case GreaterEqual:
		return a >= b
	case Greater:
		return a > b
	}
	return false
}

// compareInts returns -1, 0 or 1 comparing two integer or boolean values.
func compareInts(a, b scalarValue) int {
	switch {
	case a.kind == UintKind && b.kind == UintKind:
		return cmp.Compare(a.u, b.u)
	case a.kind == UintKind:
		if b.i < 0 {
			return 1
		}
		return cmp.Compare(a.u, uint64(b.i))
	case b.kind == UintKind:
		if a.i < 0 {
			return -1
		}
		return cmp.Compare(uint64(a.i), b.u)
	}
	return cmp.Compare(a.i, b.i)
}

// eval compares two builtin values. Values of different types are compared
// exactly between integers, as float64 if one of them is a real and as
// complex128 if one of them is a complex.
func (c Comparison) eval(a, b scalarValue) bool {
	switch {
	case a.kind == ComplexKind || b.kind == ComplexKind:
		eq := a.complex() == b.complex()
		if c == Equal {
			return eq
		}
		return !eq
	case a.kind == RealKind || b.kind == RealKind:
		return compareOrdered(c, a.float(), b.float())
	}
	return compareOrdered(c, compareInts(a, b), 0)
}

// MakeComparisonKernel emits at off a kernel comparing a value of type src0
// with a value of type src1 and writing a bool.
func MakeComparisonKernel(b *ckernel.Builder, off int, src0 Type, meta0 Arrmeta, src1 Type, meta1 Arrmeta, op Comparison, req ckernel.Request, ectx *eval.Context) (int, error) {
	if err := checkRequest(req, src0, src1); err != nil {
		return off, err
	}
	switch {
	case src0.ext == nil && src1.ext == nil:
		return makeBuiltinComparison(b, off, src0, src1, op, req)
	case src0.ext == nil:
		return src1.ext.MakeComparisonKernel(b, off, src0, meta0, src1, meta1, op, req, ectx)
	}
	return src0.ext.MakeComparisonKernel(b, off, src0, meta0, src1, meta1, op, req, ectx)
}

func makeBuiltinComparison(b *ckernel.Builder, off int, src0, src1 Type, op Comparison, req ckernel.Request) (int, error) {
	k0, k1 := src0.Kind(), src1.Kind()
	if !k0.IsNumeric() || !k1.IsNumeric() {
		return off, notComparable(op, src0, src1)
	}
	if op.IsOrdering() && (k0 == ComplexKind || k1 == ComplexKind) {
		return off, notComparable(op, src0, src1)
	}
	rec, err := b.Reserve(off, req, fmt.Sprintf("compare %s %s %s", src0, op, src1))
	if err != nil {
		return off, err
	}
	id0, id1 := src0.id, src1.id
	rec.SetFunc(func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		store(dst, op.eval(loadScalar(id0, src[0]), loadScalar(id1, src[1])))
		return nil
	})
	return off + 1, nil
}

// Compare compares two single values.
func Compare(op Comparison, src0 Type, meta0 Arrmeta, data0 unsafe.Pointer, src1 Type, meta1 Arrmeta, data1 unsafe.Pointer, ectx *eval.Context) (bool, error) {
	b := ckernel.NewBuilder()
	defer b.Reset()
	if _, err := MakeComparisonKernel(b, 0, src0, meta0, src1, meta1, op, ckernel.SingleHost, ectx); err != nil {
		return false, err
	}
	fn, err := b.Single(0)
	if err != nil {
		return false, err
	}
	var res bool
	if err := fn(unsafe.Pointer(&res), []unsafe.Pointer{data0, data1}); err != nil {
		return false, err
	}
	return res, nil
}
