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
	"math"
	"testing"
	"unsafe"

	"github.com/gx-org/dynd/eval"
	"github.com/gx-org/dynd/memblock"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

func checkBlockCount(t *testing.T, startCount int) {
	endCount := memblock.Count()
	if endCount != startCount {
		t.Errorf("memory blocks are leaking: started with %d and ended with %d\n%s", startCount, endCount, memblock.Dump())
	}
}

func conv[D, S ndt.Scalar](v S) func(eval.ErrorMode) (any, error) {
	return func(mode eval.ErrorMode) (any, error) {
		var d D
		err := ndt.Assign(
			ndt.TypeFor[D](), nil, unsafe.Pointer(&d),
			ndt.TypeFor[S](), nil, unsafe.Pointer(&v),
			eval.Default().WithErrMode(mode))
		return d, err
	}
}

var errorModes = []eval.ErrorMode{eval.ErrorNone, eval.ErrorOverflow, eval.ErrorFractional, eval.ErrorInexact}

func TestAssignBuiltin(t *testing.T) {
	tests := []struct {
		name string
		do   func(eval.ErrorMode) (any, error)
		// want is the expected value for every mode accepting the
		// conversion. Other modes must fail.
		want map[eval.ErrorMode]any
	}{
		{
			name: "int32 overflows int8",
			do:   conv[int8](int32(1000)),
			want: map[eval.ErrorMode]any{eval.ErrorNone: int8(-24)},
		},
		{
			name: "fraction of float64 dropped in int32",
			do:   conv[int32](2.5),
			want: map[eval.ErrorMode]any{eval.ErrorNone: int32(2), eval.ErrorOverflow: int32(2)},
		},
		{
			name: "integral float64 to int32",
			do:   conv[int32](3.0),
			want: map[eval.ErrorMode]any{
				eval.ErrorNone: int32(3), eval.ErrorOverflow: int32(3), eval.ErrorFractional: int32(3), eval.ErrorInexact: int32(3),
			},
		},
		{
			name: "negative int32 to uint8",
			do:   conv[uint8](int32(-1)),
			want: map[eval.ErrorMode]any{eval.ErrorNone: uint8(255)},
		},
		{
			name: "large int64 rounded in float32",
			do:   conv[float32](int64(1<<24 + 1)),
			want: map[eval.ErrorMode]any{
				eval.ErrorNone: float32(1 << 24), eval.ErrorOverflow: float32(1 << 24), eval.ErrorFractional: float32(1 << 24),
			},
		},
		{
			name: "float64 out of the float32 range",
			do:   conv[float32](1e300),
			want: map[eval.ErrorMode]any{eval.ErrorNone: float32(math.Inf(1))},
		},
		{
			name: "float64 rounded in float32",
			do:   conv[float32](0.1),
			want: map[eval.ErrorMode]any{
				eval.ErrorNone: float32(0.1), eval.ErrorOverflow: float32(0.1), eval.ErrorFractional: float32(0.1),
			},
		},
		{
			name: "imaginary part dropped",
			do:   conv[float64](complex(1, 2)),
			want: map[eval.ErrorMode]any{eval.ErrorNone: 1.0, eval.ErrorOverflow: 1.0},
		},
		{
			name: "real complex to float64",
			do:   conv[float64](complex(3, 0)),
			want: map[eval.ErrorMode]any{
				eval.ErrorNone: 3.0, eval.ErrorOverflow: 3.0, eval.ErrorFractional: 3.0, eval.ErrorInexact: 3.0,
			},
		},
		{
			name: "int32 to bool",
			do:   conv[bool](int32(2)),
			want: map[eval.ErrorMode]any{eval.ErrorNone: true},
		},
		{
			name: "bool to float64",
			do:   conv[float64](true),
			want: map[eval.ErrorMode]any{
				eval.ErrorNone: 1.0, eval.ErrorOverflow: 1.0, eval.ErrorFractional: 1.0, eval.ErrorInexact: 1.0,
			},
		},
		{
			name: "max uint64 to int64",
			do:   conv[int64](uint64(math.MaxUint64)),
			want: map[eval.ErrorMode]any{eval.ErrorNone: int64(-1)},
		},
		{
			name: "int16 widened to int64",
			do:   conv[int64](int16(-5)),
			want: map[eval.ErrorMode]any{
				eval.ErrorNone: int64(-5), eval.ErrorOverflow: int64(-5), eval.ErrorFractional: int64(-5), eval.ErrorInexact: int64(-5),
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for _, mode := range errorModes {
				got, err := test.do(mode)
				want, ok := test.want[mode]
				if !ok {
					var cerr *ndt.ConversionError
					if !errors.As(err, &cerr) {
						t.Errorf("mode %s: got %v, %v but want a conversion error", mode, got, err)
					}
					continue
				}
				if err != nil {
					t.Errorf("mode %s: %+v", mode, err)
					continue
				}
				if got != want {
					t.Errorf("mode %s: got %v (%T) but want %v (%T)", mode, got, got, want, want)
				}
			}
		})
	}
}

func TestIsLosslessAssignment(t *testing.T) {
	tests := []struct {
		dst, src string
		want     bool
	}{
		{dst: "int32", src: "int16", want: true},
		{dst: "int16", src: "int32"},
		{dst: "float64", src: "int32", want: true},
		{dst: "float64", src: "int64"},
		{dst: "float32", src: "int16", want: true},
		{dst: "complex[float32]", src: "float32", want: true},
		{dst: "float64", src: "complex[float64]"},
		{dst: "int16", src: "uint8", want: true},
		{dst: "uint64", src: "int8"},
		{dst: "int32", src: "bool", want: true},
		{dst: "3 * int64", src: "3 * int32", want: true},
		{dst: "4 * int64", src: "3 * int32"},
		{dst: "string", src: "string[8]", want: true},
		{dst: "(int64, float64)", src: "(int8, float32)", want: true},
		{dst: "(int8, float64)", src: "(int64, float32)"},
	}
	for _, test := range tests {
		dst, src := ndt.MustParse(test.dst), ndt.MustParse(test.src)
		if got := dst.IsLosslessAssignment(src); got != test.want {
			t.Errorf("%s <- %s: lossless is %v but want %v", dst, src, got, test.want)
		}
	}
}

// TestLosslessRoundTrip checks that a lossless assignment converts back
// without error in the strictest mode.
func TestLosslessRoundTrip(t *testing.T) {
	ectx := eval.Default().WithErrMode(eval.ErrorInexact)
	src := int16(-1234)
	var wide float32
	if err := ndt.Assign(ndt.Float32, nil, unsafe.Pointer(&wide), ndt.Int16, nil, unsafe.Pointer(&src), ectx); err != nil {
		t.Fatalf("%+v", err)
	}
	var back int16
	if err := ndt.Assign(ndt.Int16, nil, unsafe.Pointer(&back), ndt.Float32, nil, unsafe.Pointer(&wide), ectx); err != nil {
		t.Fatalf("%+v", err)
	}
	if back != src {
		t.Errorf("got %d after a round trip but want %d", back, src)
	}
}

func TestAssignDims(t *testing.T) {
	ectx := eval.Default()
	src := []int32{1, 2, 3}
	srcType := ndt.MustParse("3 * int32")
	srcMeta := newMeta(t, srcType)
	tests := []struct {
		dst  string
		want string
	}{
		{dst: "3 * int32", want: "[1, 2, 3]"},
		{dst: "3 * float64", want: "[1, 2, 3]"},
		{dst: "2 * 3 * int64", want: "[[1, 2, 3], [1, 2, 3]]"},
		{dst: "3 * complex[float32]", want: "[(1+0i), (2+0i), (3+0i)]"},
	}
	for _, test := range tests {
		dstType := ndt.MustParse(test.dst)
		dstMeta := newMeta(t, dstType)
		buf := make([]complex128, dstType.DataSize()/16+1)
		dst := unsafe.Pointer(&buf[0])
		if err := ndt.Assign(dstType, dstMeta, dst, srcType, srcMeta, unsafe.Pointer(&src[0]), ectx); err != nil {
			t.Errorf("%s <- %s: %+v", dstType, srcType, err)
			continue
		}
		if got := format(t, dstType, dstMeta, dst); got != test.want {
			t.Errorf("%s <- %s: got %s but want %s", dstType, srcType, got, test.want)
		}
	}
}

func TestAssignBroadcastScalar(t *testing.T) {
	dstType := ndt.MustParse("2 * 2 * float32")
	dstMeta := newMeta(t, dstType)
	dst := make([]float32, 4)
	v := int8(7)
	if err := ndt.Assign(dstType, dstMeta, unsafe.Pointer(&dst[0]), ndt.Int8, nil, unsafe.Pointer(&v), eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	for i, x := range dst {
		if x != 7 {
			t.Errorf("element %d is %v but want 7", i, x)
		}
	}
}

func TestAssignFromView(t *testing.T) {
	srcType := ndt.MustParse("4 * int32")
	src := []int32{1, 2, 3, 4}
	srcMeta := newMeta(t, srcType)
	view := applyIndex(t, srcType, srcMeta, unsafe.Pointer(&src[0]), ndt.R().By(-2))

	dstType := ndt.MustParse("2 * int64")
	dstMeta := newMeta(t, dstType)
	dst := make([]int64, 2)
	if err := ndt.Assign(dstType, dstMeta, unsafe.Pointer(&dst[0]), view.Type, view.Meta, view.Data, eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	if dst[0] != 4 || dst[1] != 2 {
		t.Errorf("got %v but want [4 2]", dst)
	}
}

func TestAssignErrors(t *testing.T) {
	tests := []struct {
		dst, src string
		check    func(error) bool
	}{
		{
			dst: "3 * int32", src: "2 * int32",
			check: func(err error) bool {
				var target *ndt.ShapeMismatchError
				return errors.As(err, &target)
			},
		},
		{
			dst: "int32", src: "3 * int32",
			check: func(err error) bool {
				var target *ndt.TypeError
				return errors.As(err, &target)
			},
		},
		{
			dst: "T", src: "int32",
			check: func(err error) bool {
				var target *ndt.InvalidArgumentError
				return errors.As(err, &target)
			},
		},
		{
			dst: "(int32, int32)", src: "(int32, int32, int32)",
			check: func(err error) bool {
				var target *ndt.TypeError
				return errors.As(err, &target)
			},
		},
	}
	for _, test := range tests {
		dst, src := ndt.MustParse(test.dst), ndt.MustParse(test.src)
		var dstMeta, srcMeta ndt.Arrmeta
		if !dst.IsSymbolic() {
			dstMeta = newMeta(t, dst)
		}
		srcMeta = newMeta(t, src)
		buf := make([]byte, 64)
		p := unsafe.Pointer(&buf[0])
		err := ndt.Assign(dst, dstMeta, p, src, srcMeta, p, eval.Default())
		if err == nil {
			t.Errorf("%s <- %s: got no error", dst, src)
			continue
		}
		if !test.check(err) {
			t.Errorf("%s <- %s: unexpected error %T: %v", dst, src, errors.Cause(err), err)
		}
	}
}
