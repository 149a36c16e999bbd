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
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

func compareScalars[A, B ndt.Scalar](op ndt.Comparison, a A, b B) func() (bool, error) {
	return func() (bool, error) {
		return ndt.Compare(op,
			ndt.TypeFor[A](), nil, unsafe.Pointer(&a),
			ndt.TypeFor[B](), nil, unsafe.Pointer(&b),
			eval.Default())
	}
}

func TestCompareBuiltin(t *testing.T) {
	tests := []struct {
		name string
		cmp  func() (bool, error)
		want bool
	}{
		{name: "1 < 2.5", cmp: compareScalars(ndt.Less, int32(1), 2.5), want: true},
		{name: "3 == 3.0", cmp: compareScalars(ndt.Equal, int64(3), 3.0), want: true},
		{name: "3 != 3.0", cmp: compareScalars(ndt.NotEqual, int64(3), 3.0)},
		{name: "-1 < max uint64", cmp: compareScalars(ndt.Less, int8(-1), uint64(math.MaxUint64)), want: true},
		{name: "max uint64 > -1", cmp: compareScalars(ndt.Greater, uint64(math.MaxUint64), int64(-1)), want: true},
		{name: "-1 >= 0", cmp: compareScalars(ndt.GreaterEqual, int16(-1), uint8(0))},
		{name: "2 <= 2", cmp: compareScalars(ndt.LessEqual, uint16(2), float32(2)), want: true},
		{name: "1+2i == 1+2i", cmp: compareScalars(ndt.Equal, complex64(1+2i), complex(1, 2)), want: true},
		{name: "true == 1", cmp: compareScalars(ndt.Equal, true, int32(1)), want: true},
		{name: "NaN == NaN", cmp: compareScalars(ndt.Equal, math.NaN(), math.NaN())},
	}
	for _, test := range tests {
		got, err := test.cmp()
		if err != nil {
			t.Errorf("%s: %+v", test.name, err)
			continue
		}
		if got != test.want {
			t.Errorf("%s: got %v but want %v", test.name, got, test.want)
		}
	}
}

func TestCompareNotComparable(t *testing.T) {
	tests := []struct {
		name string
		cmp  func() (bool, error)
	}{
		{name: "complex ordering", cmp: compareScalars(ndt.Less, complex(1, 0), complex(2, 0))},
		{name: "complex with real ordering", cmp: compareScalars(ndt.Greater, 1.0, complex64(2))},
	}
	for _, test := range tests {
		_, err := test.cmp()
		var target *ndt.NotComparableError
		if !errors.As(err, &target) {
			t.Errorf("%s: got error %v but want %T", test.name, err, target)
		}
	}
}

func TestCompareTuples(t *testing.T) {
	type pair struct {
		a int32
		b float64
	}
	tp := ndt.MustParse("(int32, float64)")
	meta := newMeta(t, tp)
	x, y, z := pair{1, 2.5}, pair{1, 2.5}, pair{1, 3}
	compare := func(op ndt.Comparison, a, b *pair) (bool, error) {
		return ndt.Compare(op, tp, meta, unsafe.Pointer(a), tp, meta, unsafe.Pointer(b), eval.Default())
	}
	if eq, err := compare(ndt.Equal, &x, &y); err != nil || !eq {
		t.Errorf("%v == %v: got %v, %v but want true", x, y, eq, err)
	}
	if eq, err := compare(ndt.Equal, &x, &z); err != nil || eq {
		t.Errorf("%v == %v: got %v, %v but want false", x, z, eq, err)
	}
	if ne, err := compare(ndt.NotEqual, &x, &z); err != nil || !ne {
		t.Errorf("%v != %v: got %v, %v but want true", x, z, ne, err)
	}
	_, err := compare(ndt.Less, &x, &z)
	var target *ndt.NotComparableError
	if !errors.As(err, &target) {
		t.Errorf("%v < %v: got error %v but want %T", x, z, err, target)
	}
}

func TestComparisonString(t *testing.T) {
	ops := map[ndt.Comparison]string{
		ndt.Less:         "<",
		ndt.LessEqual:    "<=",
		ndt.Equal:        "==",
		ndt.NotEqual:     "!=",
		ndt.GreaterEqual: ">=",
		ndt.Greater:      ">",
	}
	for op, want := range ops {
		if got := op.String(); got != want {
			t.Errorf("got %q but want %q", got, want)
		}
		if got, want := op.IsOrdering(), op != ndt.Equal && op != ndt.NotEqual; got != want {
			t.Errorf("%s: ordering is %v but want %v", op, got, want)
		}
	}
}
