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

package nd_test

import (
	"math"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
	"github.com/gx-org/dynd/memblock"
	"github.com/gx-org/dynd/nd"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

func checkBlockCount(t *testing.T, startCount int) {
	endCount := memblock.Count()
	if endCount != startCount {
		t.Errorf("memory blocks are leaking: started with %d and ended with %d\n%s", startCount, endCount, memblock.Dump())
	}
}

// checkLeaks registers the leak check before any other cleanup function so
// that it runs last.
func checkLeaks(t *testing.T) {
	start := memblock.Count()
	t.Cleanup(func() { checkBlockCount(t, start) })
}

// keep returns a function failing the test on error and releasing the
// array at the end of the test. It is called as keep(t)(nd.FromSlice(...)).
func keep(t *testing.T) func(*nd.Array, error) *nd.Array {
	return func(a *nd.Array, err error) *nd.Array {
		t.Helper()
		if err != nil {
			t.Fatalf("%+v", err)
		}
		t.Cleanup(func() {
			if err := a.Release(); err != nil {
				t.Errorf("%+v", err)
			}
		})
		return a
	}
}

func values(t *testing.T, a *nd.Array) string {
	t.Helper()
	s, err := a.Format()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return s
}

func TestConstructors(t *testing.T) {
	checkLeaks(t)
	tests := []struct {
		name  string
		build func() (*nd.Array, error)
		want  string
		shape []int
	}{
		{
			name:  "slice",
			build: func() (*nd.Array, error) { return nd.FromSlice([]int32{1, 2, 3}) },
			want:  `array([1, 2, 3], type="3 * int32")`,
			shape: []int{3},
		},
		{
			name:  "scalar",
			build: func() (*nd.Array, error) { return nd.Scalar(2.5) },
			want:  `array(2.5, type="float64")`,
		},
		{
			name:  "empty",
			build: func() (*nd.Array, error) { return nd.Empty(ndt.Int16, 2, 2) },
			want:  `array([[0, 0], [0, 0]], type="2 * 2 * int16")`,
			shape: []int{2, 2},
		},
		{
			name:  "values",
			build: func() (*nd.Array, error) { return nd.FromValues([][]float64{{1, 2}, {3, 4}}) },
			want:  `array([[1, 2], [3, 4]], type="2 * 2 * float64")`,
			shape: []int{2, 2},
		},
		{
			name:  "ragged",
			build: func() (*nd.Array, error) { return nd.FromValues([][]float64{{0.5, 1.5, 2.5}, {4}}) },
			want:  `array([[0.5, 1.5, 2.5], [4]], type="2 * var * float64")`,
			shape: []int{2, -1},
		},
		{
			name:  "mixed",
			build: func() (*nd.Array, error) { return nd.FromValues([]any{1, 2.5}) },
			want:  `array([1, 2.5], type="2 * float64")`,
			shape: []int{2},
		},
		{
			name:  "strings",
			build: func() (*nd.Array, error) { return nd.FromValues([]string{"a", "", "bc"}) },
			want:  `array(["a", "", "bc"], type="3 * string")`,
			shape: []int{3},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a := keep(t)(test.build())
			if got := a.String(); got != test.want {
				t.Errorf("got %s but want %s", got, test.want)
			}
			if diff := cmp.Diff(test.shape, a.Shape()); diff != "" {
				t.Errorf("unexpected shape (-want +got):\n%s", diff)
			}
			if got, want := a.NDim(), len(test.shape); got != want {
				t.Errorf("got %d dimensions but want %d", got, want)
			}
		})
	}
}

func TestConstructorErrors(t *testing.T) {
	checkLeaks(t)
	if _, err := nd.Empty(ndt.MustParse("Dims... * T")); err == nil {
		t.Errorf("array of a symbolic type created")
	}
	if _, err := nd.FromValues([]any{1, "a"}); err == nil {
		t.Errorf("array created from numbers and strings")
	}
	if _, err := nd.FromValues(nil); err == nil {
		t.Errorf("array created from nil")
	}
	if _, err := nd.FromBytes(ndt.Int64, make([]byte, 4), nil); err == nil {
		t.Errorf("4 bytes viewed as an int64")
	}
	var aerr *ndt.InvalidArgumentError
	if _, err := nd.Empty(ndt.Int32, 1<<62+2); !errors.As(err, &aerr) {
		t.Errorf("got error %v but want %T", err, aerr)
	}
	if _, err := nd.Empty(ndt.Int8, 1<<30, 1<<30, 1<<30); !errors.As(err, &aerr) {
		t.Errorf("got error %v but want %T", err, aerr)
	}
}

func TestFromBytes(t *testing.T) {
	checkLeaks(t)
	freed := 0
	buf := make([]byte, 8)
	a, err := nd.FromBytes(ndt.MustParse("2 * uint32"), buf, func() error {
		freed++
		return nil
	})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	buf[4] = 7
	second, err := a.At(1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if err := a.Release(); err != nil {
		t.Fatalf("%+v", err)
	}
	if freed != 0 {
		t.Errorf("buffer freed while referenced by a view")
	}
	got, err := nd.Value[uint32](second)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if got != 7 {
		t.Errorf("got %d but want 7", got)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("%+v", err)
	}
	if freed != 1 {
		t.Errorf("buffer freed %d times, want 1", freed)
	}
}

func TestIndex(t *testing.T) {
	checkLeaks(t)
	a := keep(t)(nd.FromSlice([]int32{1, 2, 3, 4, 5}))
	tests := []struct {
		terms []ndt.Index
		want  string
	}{
		{terms: []ndt.Index{ndt.I(-2)}, want: "4"},
		{terms: []ndt.Index{ndt.R().Ge(1).Lt(3)}, want: "[2, 3]"},
		{terms: []ndt.Index{ndt.R().By(-1)}, want: "[5, 4, 3, 2, 1]"},
		{terms: []ndt.Index{ndt.R().By(2)}, want: "[1, 3, 5]"},
	}
	for _, test := range tests {
		view := keep(t)(a.Index(test.terms...))
		if got := values(t, view); got != test.want {
			t.Errorf("%v: got %s but want %s", test.terms, got, test.want)
		}
	}
	m := keep(t)(nd.FromValues([][]int64{{1, 2, 3}, {4, 5, 6}}))
	col := keep(t)(m.Index(ndt.R(), ndt.I(1)))
	if got, want := values(t, col), "[2, 5]"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}
	if diff := cmp.Diff([]int{24}, col.Strides()); diff != "" {
		t.Errorf("unexpected strides (-want +got):\n%s", diff)
	}
	elem := keep(t)(m.At(1, 2))
	if got, err := nd.Value[int64](elem); err != nil || got != 6 {
		t.Errorf("got %d, %v but want 6", got, err)
	}

	_, err := a.At(5)
	var oob *ndt.IndexOutOfBoundsError
	if !errors.As(err, &oob) {
		t.Errorf("got error %v but want %T", err, oob)
	}
	_, err = a.At(0, 0)
	var tooMany *ndt.TooManyIndicesError
	if !errors.As(err, &tooMany) {
		t.Errorf("got error %v but want %T", err, tooMany)
	}
	if _, err := nd.Value[int32](a); err == nil {
		t.Errorf("value read from a one dimensional array")
	}
}

func TestViewsShareData(t *testing.T) {
	checkLeaks(t)
	a := keep(t)(nd.FromSlice([]float32{1, 2, 3}))
	tail := keep(t)(a.Index(ndt.R().Ge(1)))
	ten := keep(t)(nd.Scalar[float32](10))
	if err := tail.AssignFrom(ten); err != nil {
		t.Fatalf("%+v", err)
	}
	if got, want := values(t, a), "[1, 10, 10]"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}
}

func TestArithmetic(t *testing.T) {
	checkLeaks(t)
	a := keep(t)(nd.FromSlice([]int32{1, 2, 3}))
	one := keep(t)(nd.FromSlice([]int32{10}))
	f := keep(t)(nd.FromSlice([]float32{0.5, 0.25, 0.125}))
	m := keep(t)(nd.FromValues([][]int32{{1, 2, 3}, {4, 5, 6}}))
	tests := []struct {
		name string
		op   func(a, b *nd.Array) (*nd.Array, error)
		a, b *nd.Array
		want string
	}{
		{name: "broadcast one", op: nd.Add, a: a, b: one, want: `array([11, 12, 13], type="3 * int32")`},
		{name: "subtract", op: nd.Subtract, a: a, b: a, want: `array([0, 0, 0], type="3 * int32")`},
		{name: "promote", op: nd.Multiply, a: a, b: f, want: `array([0.5, 0.5, 0.375], type="3 * float64")`},
		{name: "matrix", op: nd.Add, a: m, b: a, want: `array([[2, 4, 6], [5, 7, 9]], type="2 * 3 * int32")`},
		{name: "divide", op: nd.Divide, a: m, b: one, want: `array([[0, 0, 0], [0, 0, 0]], type="2 * 3 * int32")`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := keep(t)(test.op(test.a, test.b))
			if got := res.String(); got != test.want {
				t.Errorf("got %s but want %s", got, test.want)
			}
		})
	}
}

func TestArithmeticErrors(t *testing.T) {
	checkLeaks(t)
	a := keep(t)(nd.FromSlice([]int32{1, 2, 3}))
	b := keep(t)(nd.FromSlice([]int32{1, 2}))
	_, err := nd.Add(a, b)
	var shape *ndt.ShapeMismatchError
	if !errors.As(err, &shape) {
		t.Errorf("got error %v but want %T", err, shape)
	}
	zero := keep(t)(nd.Scalar[int32](0))
	if _, err := nd.Divide(a, zero); !errors.Is(err, ndt.ErrDivisionByZero) {
		t.Errorf("got error %v but want %v", err, ndt.ErrDivisionByZero)
	}
	s := keep(t)(nd.FromValues([]string{"a", "b", "c"}))
	var typeErr *ndt.TypeError
	if _, err := nd.Add(a, s); !errors.As(err, &typeErr) {
		t.Errorf("got error %v but want %T", err, typeErr)
	}
	released, err := nd.FromSlice([]int32{1})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if err := released.Release(); err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := nd.Add(a, released); err == nil {
		t.Errorf("released array used as an operand")
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		shapes [][]int
		want   []int
	}{
		{shapes: [][]int{{3}, {1}}, want: []int{3}},
		{shapes: [][]int{{2, 1}, {4}}, want: []int{2, 4}},
		{shapes: [][]int{{}, {2, 3}}, want: []int{2, 3}},
		{shapes: [][]int{{2, -1}, {3}}, want: []int{2, -1}},
	}
	for _, test := range tests {
		got, err := nd.BroadcastShapes(test.shapes...)
		if err != nil {
			t.Errorf("%v: %+v", test.shapes, err)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%v: unexpected shape (-want +got):\n%s", test.shapes, diff)
		}
	}
	if _, err := nd.BroadcastShapes([]int{2}, []int{3}); err == nil {
		t.Errorf("shapes [2] and [3] broadcast together")
	}
}

func TestCompare(t *testing.T) {
	checkLeaks(t)
	a := keep(t)(nd.FromSlice([]int32{1, 2, 3}))
	two := keep(t)(nd.Scalar[float64](2))
	tests := []struct {
		op   func(a, b *nd.Array) (*nd.Array, error)
		want string
	}{
		{op: nd.Less, want: "[true, false, false]"},
		{op: nd.LessEqual, want: "[true, true, false]"},
		{op: nd.Equal, want: "[false, true, false]"},
		{op: nd.NotEqual, want: "[true, false, true]"},
		{op: nd.GreaterEqual, want: "[false, true, true]"},
		{op: nd.Greater, want: "[false, false, true]"},
	}
	for i, test := range tests {
		res := keep(t)(test.op(a, two))
		if got := values(t, res); got != test.want {
			t.Errorf("test %d: got %s but want %s", i, got, test.want)
		}
		if got, want := res.Type().String(), "3 * bool"; got != want {
			t.Errorf("test %d: got type %s but want %s", i, got, want)
		}
	}
	c := keep(t)(nd.Scalar(complex(1, 1)))
	var notComparable *ndt.NotComparableError
	if _, err := nd.Less(c, c); !errors.As(err, &notComparable) {
		t.Errorf("got error %v but want %T", err, notComparable)
	}
}

func TestExpressionViews(t *testing.T) {
	checkLeaks(t)
	a := keep(t)(nd.FromSlice([]int32{1, 2, 3}))
	cast := keep(t)(a.Ucast(ndt.Float64))
	if got, want := values(t, cast), "[1, 2, 3]"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}
	evaluated := keep(t)(cast.Eval())
	if got, want := evaluated.Type().String(), "3 * float64"; got != want {
		t.Errorf("got type %s but want %s", got, want)
	}

	u := keep(t)(nd.FromSlice([]uint16{0x0102}))
	swapped := keep(t)(u.Byteswap())
	if got, want := values(t, swapped), "[513]"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}

	f := keep(t)(nd.FromSlice([]float32{1}))
	bits := keep(t)(f.View(ndt.Uint32))
	if got, want := values(t, bits), "["+strconv.FormatUint(uint64(math.Float32bits(1)), 10)+"]"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}
	sum := keep(t)(nd.Add(swapped, u))
	if got, want := values(t, sum), "[771]"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}
	if _, err := f.View(ndt.Uint16); err == nil {
		t.Errorf("float32 viewed as uint16")
	}
}

func TestAssignErrorMode(t *testing.T) {
	checkLeaks(t)
	dst := keep(t)(nd.Empty(ndt.Int8, 2))
	src := keep(t)(nd.FromSlice([]int32{1, 300}))
	var conv *ndt.ConversionError
	if err := dst.AssignFrom(src); !errors.As(err, &conv) {
		t.Errorf("got error %v but want %T", err, conv)
	}
	if err := dst.AssignWith(eval.Default().WithErrMode(eval.ErrorNone), src); err != nil {
		t.Fatalf("%+v", err)
	}
	if got, want := values(t, dst), "[1, 44]"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}
}

func TestMap(t *testing.T) {
	checkLeaks(t)
	a := keep(t)(nd.FromValues([][]int32{{1, 4}, {9, 16}}))
	roots := keep(t)(nd.Map(a, func(x int32) float64 { return math.Sqrt(float64(x)) }))
	if got, want := roots.String(), `array([[1, 2], [3, 4]], type="2 * 2 * float64")`; got != want {
		t.Errorf("got %s but want %s", got, want)
	}

	ragged := keep(t)(nd.FromValues([][]int32{{1, 2, 3}, {4}}))
	neg := keep(t)(nd.Map(ragged, func(x int32) int32 { return -x }))
	if got, want := neg.String(), `array([[-1, -2, -3], [-4]], type="2 * var * int32")`; got != want {
		t.Errorf("got %s but want %s", got, want)
	}

	if _, err := nd.Map(a, func(x float32) float32 { return x }); err == nil {
		t.Errorf("int32 array mapped by a float32 function")
	}
	fail := errors.New("odd value")
	_, err := nd.MapErr(a, func(x int32) (int32, error) {
		if x%2 == 1 {
			return 0, fail
		}
		return x, nil
	})
	if !errors.Is(err, fail) {
		t.Errorf("got error %v but want %v", err, fail)
	}
}

func TestSignature(t *testing.T) {
	proto, err := nd.Signature[float64, int32]()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if got, want := proto.String(), "(Dims... * int32) -> Dims... * float64"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}
}

func TestRequest(t *testing.T) {
	checkLeaks(t)
	a := keep(t)(nd.FromValues([][]int32{{1, 2}, {3, 4}}))
	b := keep(t)(nd.FromSlice([]int32{10, 20}))
	for _, req := range []ckernel.Request{ckernel.SingleHost, ckernel.StridedHost} {
		ectx := eval.Default()
		ectx.Request = req
		sum := keep(t)(nd.Binary(ectx, ndt.Add, a, b))
		if got, want := values(t, sum), "[[11, 22], [13, 24]]"; got != want {
			t.Errorf("%s: got %s but want %s", req, got, want)
		}
		dst := keep(t)(nd.Empty(ndt.Float64, 2, 2))
		if err := dst.AssignWith(ectx, a); err != nil {
			t.Fatalf("%s: %+v", req, err)
		}
		if got, want := values(t, dst), "[[1, 2], [3, 4]]"; got != want {
			t.Errorf("%s: got %s but want %s", req, got, want)
		}
	}
	ectx := eval.Default()
	ectx.Request = ckernel.Request{Mode: ckernel.Strided, Target: ckernel.Device}
	if res, err := nd.Binary(ectx, ndt.Add, a, b); err == nil {
		res.Release()
		t.Errorf("device request did not fail")
	}
	dst := keep(t)(nd.Empty(ndt.Int32, 2, 2))
	if err := dst.AssignWith(ectx, a); err == nil {
		t.Errorf("device request did not fail")
	}
}
