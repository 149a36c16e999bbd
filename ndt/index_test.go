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

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

func newMeta(t *testing.T, tp ndt.Type) ndt.Arrmeta {
	t.Helper()
	meta, err := tp.NewArrmeta()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	t.Cleanup(func() {
		if err := tp.ArrmetaDestruct(meta); err != nil {
			t.Errorf("%+v", err)
		}
	})
	return meta
}

func applyIndex(t *testing.T, tp ndt.Type, meta ndt.Arrmeta, data unsafe.Pointer, indices ...ndt.Index) ndt.IndexResult {
	t.Helper()
	res, err := tp.ApplyLinearIndex(indices, meta, data)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	t.Cleanup(func() {
		if err := res.Type.ArrmetaDestruct(res.Meta); err != nil {
			t.Errorf("%+v", err)
		}
	})
	return res
}

func format(t *testing.T, tp ndt.Type, meta ndt.Arrmeta, data unsafe.Pointer) string {
	t.Helper()
	s, err := tp.FormatData(meta, data)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return s
}

func TestIndexInteger(t *testing.T) {
	tp := ndt.MustParse("5 * int32")
	data := []int32{1, 2, 3, 4, 5}
	meta := newMeta(t, tp)
	res := applyIndex(t, tp, meta, unsafe.Pointer(&data[0]), ndt.I(-2))
	if !res.Type.Equal(ndt.Int32) {
		t.Errorf("got type %s but want int32", res.Type)
	}
	if got := *(*int32)(res.Data); got != 4 {
		t.Errorf("a(-2) = %d but want 4", got)
	}
}

func TestIndexRange(t *testing.T) {
	tp := ndt.MustParse("5 * int32")
	data := []int32{1, 2, 3, 4, 5}
	meta := newMeta(t, tp)
	tests := []struct {
		index ndt.Index
		str   string
		want  string
		shape []int
	}{
		{index: ndt.R().Ge(1).Lt(3), str: "1 <= i < 3", want: "[2, 3]", shape: []int{2}},
		{index: ndt.R().By(-1), str: "i/-1", want: "[5, 4, 3, 2, 1]", shape: []int{5}},
		{index: ndt.R().By(2), str: "i/2", want: "[1, 3, 5]", shape: []int{3}},
		{index: ndt.R().Ge(-2), str: "-2 <= i", want: "[4, 5]", shape: []int{2}},
		{index: ndt.R().Le(3).By(-2).Ge(0), str: "0 <= i/-2 <= 3", want: "[4, 2]", shape: []int{2}},
		{index: ndt.R().Ge(3).Lt(1), str: "3 <= i < 1", want: "[]", shape: []int{0}},
	}
	for _, test := range tests {
		t.Run(test.str, func(t *testing.T) {
			if got := test.index.String(); got != test.str {
				t.Errorf("index printed as %q but want %q", got, test.str)
			}
			res := applyIndex(t, tp, meta, unsafe.Pointer(&data[0]), test.index)
			if got := format(t, res.Type, res.Meta, res.Data); got != test.want {
				t.Errorf("got %s but want %s", got, test.want)
			}
			if diff := cmp.Diff(test.shape, res.Type.Shape(res.Meta, res.Data)); diff != "" {
				t.Errorf("unexpected shape (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIndexFullRangeIsView(t *testing.T) {
	tp := ndt.MustParse("2 * 3 * int16")
	data := []int16{0, 1, 2, 3, 4, 5}
	meta := newMeta(t, tp)
	res := applyIndex(t, tp, meta, unsafe.Pointer(&data[0]), ndt.R(), ndt.R())
	if !res.Type.Equal(tp) {
		t.Errorf("got type %s but want %s", res.Type, tp)
	}
	if res.Data != unsafe.Pointer(&data[0]) {
		t.Errorf("full range view does not point to the original data")
	}
	if diff := cmp.Diff(tp.Shape(meta, nil), res.Type.Shape(res.Meta, nil)); diff != "" {
		t.Errorf("unexpected shape (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(tp.Strides(meta), res.Type.Strides(res.Meta)); diff != "" {
		t.Errorf("unexpected strides (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{6, 2}, tp.Strides(nil)); diff != "" {
		t.Errorf("unexpected contiguous strides (-want +got):\n%s", diff)
	}
}

func TestIndexMultiDim(t *testing.T) {
	tp := ndt.MustParse("2 * 3 * int32")
	data := []int32{0, 1, 2, 3, 4, 5}
	meta := newMeta(t, tp)
	tests := []struct {
		indices []ndt.Index
		typ     string
		want    string
		strides []int
	}{
		{indices: []ndt.Index{ndt.R(), ndt.I(1)}, typ: "2 * int32", want: "[1, 4]", strides: []int{12}},
		{indices: []ndt.Index{ndt.I(1), ndt.R().By(-1)}, typ: "3 * int32", want: "[5, 4, 3]", strides: []int{-4}},
		{indices: []ndt.Index{ndt.I(-1)}, typ: "3 * int32", want: "[3, 4, 5]", strides: []int{4}},
		{indices: []ndt.Index{ndt.R().By(-1), ndt.R().Ge(1)}, typ: "2 * 2 * int32", want: "[[4, 5], [1, 2]]", strides: []int{-12, 4}},
		{indices: []ndt.Index{ndt.I(0), ndt.I(2)}, typ: "int32", want: "2"},
	}
	for _, test := range tests {
		res := applyIndex(t, tp, meta, unsafe.Pointer(&data[0]), test.indices...)
		if got := res.Type.String(); got != test.typ {
			t.Errorf("%v: got type %s but want %s", test.indices, got, test.typ)
		}
		if got := format(t, res.Type, res.Meta, res.Data); got != test.want {
			t.Errorf("%v: got %s but want %s", test.indices, got, test.want)
		}
		if diff := cmp.Diff(test.strides, res.Type.Strides(res.Meta)); diff != "" {
			t.Errorf("%v: unexpected strides (-want +got):\n%s", test.indices, diff)
		}
	}
}

func TestIndexErrors(t *testing.T) {
	tp := ndt.MustParse("5 * int32")
	data := []int32{1, 2, 3, 4, 5}
	meta := newMeta(t, tp)
	tests := []struct {
		indices []ndt.Index
		check   func(error) bool
	}{
		{
			indices: []ndt.Index{ndt.I(5)},
			check: func(err error) bool {
				var target *ndt.IndexOutOfBoundsError
				return errors.As(err, &target) && target.Index == 5 && target.DimSize == 5
			},
		},
		{
			indices: []ndt.Index{ndt.I(-6)},
			check: func(err error) bool {
				var target *ndt.IndexOutOfBoundsError
				return errors.As(err, &target)
			},
		},
		{
			indices: []ndt.Index{ndt.R().Ge(0).Lt(6)},
			check: func(err error) bool {
				var target *ndt.RangeOutOfBoundsError
				return errors.As(err, &target)
			},
		},
		{
			indices: []ndt.Index{ndt.I(0), ndt.I(0)},
			check: func(err error) bool {
				var target *ndt.TooManyIndicesError
				return errors.As(err, &target) && target.Count == 2 && target.NDim == 1
			},
		},
		{
			indices: []ndt.Index{ndt.R().By(0)},
			check: func(err error) bool {
				var target *ndt.InvalidArgumentError
				return errors.As(err, &target)
			},
		},
	}
	for _, test := range tests {
		res, err := tp.ApplyLinearIndex(test.indices, meta, unsafe.Pointer(&data[0]))
		if err == nil {
			t.Errorf("%v: got %s but want an error", test.indices, res.Type)
			continue
		}
		if !test.check(err) {
			t.Errorf("%v: unexpected error %T: %v", test.indices, errors.Cause(err), err)
		}
	}
}

func TestAxisOrder(t *testing.T) {
	tests := []struct {
		strides []int
		want    []int
	}{
		{strides: []int{24, 8}, want: []int{0, 1}},
		{strides: []int{8, 24}, want: []int{1, 0}},
		{strides: []int{-24, 8, 48}, want: []int{2, 0, 1}},
		{strides: []int{0, 4}, want: []int{1, 0}},
	}
	for _, test := range tests {
		if diff := cmp.Diff(test.want, ndt.AxisOrder(test.strides)); diff != "" {
			t.Errorf("strides %v: unexpected axis order (-want +got):\n%s", test.strides, diff)
		}
	}
}
