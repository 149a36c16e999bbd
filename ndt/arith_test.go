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

package ndt_test

import (
	"testing"
	"unsafe"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

type operand struct {
	tp   ndt.Type
	meta ndt.Arrmeta
	data unsafe.Pointer
}

func operandOf[T ndt.Scalar](t *testing.T, typ string, vals ...T) operand {
	t.Helper()
	tp := ndt.MustParse(typ)
	return operand{tp: tp, meta: newMeta(t, tp), data: unsafe.Pointer(&vals[0])}
}

type leafBuilder func(b *ckernel.Builder, dst ndt.Type, dstMeta ndt.Arrmeta, srcs []ndt.Type, srcMetas []ndt.Arrmeta, ectx *eval.Context) error

func exprBuilder(op ndt.Op) leafBuilder {
	return func(b *ckernel.Builder, dst ndt.Type, dstMeta ndt.Arrmeta, srcs []ndt.Type, srcMetas []ndt.Arrmeta, ectx *eval.Context) error {
		_, err := ndt.MakeExprKernel(b, 0, dst, dstMeta, srcs, srcMetas, op, ckernel.SingleHost, ectx)
		return err
	}
}

func comparisonBuilder(op ndt.Comparison) leafBuilder {
	return func(b *ckernel.Builder, dst ndt.Type, dstMeta ndt.Arrmeta, srcs []ndt.Type, srcMetas []ndt.Arrmeta, ectx *eval.Context) error {
		_, err := ndt.MakeLiftedKernel(b, 0, dst, dstMeta, srcs, srcMetas, ndt.ComparisonLeaf(op, ectx), ckernel.SingleHost, ectx)
		return err
	}
}

// evalKernel builds a kernel writing a value of type dst from the operands,
// runs it and returns the text form of the result.
func evalKernel(t *testing.T, dst string, build leafBuilder, ops ...operand) (string, error) {
	t.Helper()
	dstType := ndt.MustParse(dst)
	dstMeta := newMeta(t, dstType)
	buf := make([]complex128, dstType.DataSize()/16+1)
	srcs, metas, ptrs := make([]ndt.Type, len(ops)), make([]ndt.Arrmeta, len(ops)), make([]unsafe.Pointer, len(ops))
	for i, op := range ops {
		srcs[i], metas[i], ptrs[i] = op.tp, op.meta, op.data
	}
	b := ckernel.NewBuilder()
	defer b.Reset()
	if err := build(b, dstType, dstMeta, srcs, metas, eval.Default()); err != nil {
		return "", err
	}
	fn, err := b.Single(0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if err := fn(unsafe.Pointer(&buf[0]), ptrs); err != nil {
		return "", err
	}
	return format(t, dstType, dstMeta, unsafe.Pointer(&buf[0])), nil
}

func TestArithmeticBroadcast(t *testing.T) {
	tests := []struct {
		name  string
		dst   string
		build leafBuilder
		ops   []operand
		want  string
	}{
		{
			name:  "3 + 1",
			dst:   "3 * int32",
			build: exprBuilder(ndt.Add),
			ops: []operand{
				operandOf(t, "3 * int32", int32(1), 2, 3),
				operandOf(t, "1 * int32", int32(10)),
			},
			want: "[11, 12, 13]",
		},
		{
			name:  "scalar times matrix",
			dst:   "2 * 3 * float64",
			build: exprBuilder(ndt.Multiply),
			ops: []operand{
				operandOf(t, "int32", int32(2)),
				operandOf(t, "2 * 3 * float64", 0, 1, 2, 3, 4, 5.5),
			},
			want: "[[0, 2, 4], [6, 8, 11]]",
		},
		{
			name:  "column minus row",
			dst:   "2 * 3 * int64",
			build: exprBuilder(ndt.Subtract),
			ops: []operand{
				operandOf(t, "2 * 1 * int64", int64(10), 20),
				operandOf(t, "3 * int8", int8(1), 2, 3),
			},
			want: "[[9, 8, 7], [19, 18, 17]]",
		},
		{
			name:  "float division",
			dst:   "2 * float32",
			build: exprBuilder(ndt.Divide),
			ops: []operand{
				operandOf(t, "2 * float32", float32(1), -3),
				operandOf(t, "float32", float32(2)),
			},
			want: "[0.5, -1.5]",
		},
		{
			name:  "integer division truncates",
			dst:   "3 * int16",
			build: exprBuilder(ndt.Divide),
			ops: []operand{
				operandOf(t, "3 * int16", int16(7), -7, 6),
				operandOf(t, "int16", int16(2)),
			},
			want: "[3, -3, 3]",
		},
		{
			name:  "greater than",
			dst:   "3 * bool",
			build: comparisonBuilder(ndt.Greater),
			ops: []operand{
				operandOf(t, "3 * int32", int32(0), 1, 2),
				operandOf(t, "float64", 0.5),
			},
			want: "[false, true, true]",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := evalKernel(t, test.dst, test.build, test.ops...)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if got != test.want {
				t.Errorf("got %s but want %s", got, test.want)
			}
		})
	}
}

func TestArithmeticErrors(t *testing.T) {
	_, err := evalKernel(t, "3 * int32", exprBuilder(ndt.Add),
		operandOf(t, "3 * int32", int32(1), 2, 3),
		operandOf(t, "2 * int32", int32(1), 2),
	)
	var shape *ndt.ShapeMismatchError
	if !errors.As(err, &shape) {
		t.Errorf("got error %v but want %T", err, shape)
	}

	_, err = evalKernel(t, "2 * int32", exprBuilder(ndt.Divide),
		operandOf(t, "2 * int32", int32(1), 2),
		operandOf(t, "2 * int32", int32(1), 0),
	)
	if !errors.Is(err, ndt.ErrDivisionByZero) {
		t.Errorf("got error %v but want %v", err, ndt.ErrDivisionByZero)
	}

	_, err = evalKernel(t, "int32", exprBuilder(ndt.Add),
		operandOf(t, "3 * int32", int32(1), 2, 3),
		operandOf(t, "int32", int32(1)),
	)
	if !errors.As(err, &shape) {
		t.Errorf("got error %v but want %T", err, shape)
	}

	_, err = evalKernel(t, "int32", exprBuilder(ndt.Add), operandOf(t, "int32", int32(1)))
	if !errors.As(err, &shape) {
		t.Errorf("got error %v but want %T", err, shape)
	}
}

func TestPromoteArithmetic(t *testing.T) {
	tests := []struct {
		a, b ndt.Type
		want ndt.Type
	}{
		{a: ndt.Int8, b: ndt.Int8, want: ndt.Int32},
		{a: ndt.Bool, b: ndt.Bool, want: ndt.Int32},
		{a: ndt.Int32, b: ndt.Int64, want: ndt.Int64},
		{a: ndt.Uint32, b: ndt.Int32, want: ndt.Uint32},
		{a: ndt.Uint16, b: ndt.Int32, want: ndt.Int32},
		{a: ndt.Int64, b: ndt.Uint64, want: ndt.Uint64},
		{a: ndt.Uint32, b: ndt.Int64, want: ndt.Int64},
		{a: ndt.Int16, b: ndt.Float32, want: ndt.Float32},
		{a: ndt.Int32, b: ndt.Float32, want: ndt.Float64},
		{a: ndt.Float32, b: ndt.Complex64, want: ndt.Complex64},
		{a: ndt.Int64, b: ndt.Complex64, want: ndt.Complex128},
		{a: ndt.MustParse("byteswap[int16]"), b: ndt.Uint8, want: ndt.Int32},
	}
	for _, test := range tests {
		got, err := ndt.PromoteArithmetic(test.a, test.b)
		if err != nil {
			t.Errorf("%s, %s: %+v", test.a, test.b, err)
			continue
		}
		if !got.Equal(test.want) {
			t.Errorf("%s, %s: got %s but want %s", test.a, test.b, got, test.want)
		}
	}
	if _, err := ndt.PromoteArithmetic(ndt.String, ndt.Int32); err == nil {
		t.Errorf("arithmetic on strings accepted")
	}
}
