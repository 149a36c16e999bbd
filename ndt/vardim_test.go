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
	"github.com/gx-org/dynd/eval"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

func TestVarDimAssign(t *testing.T) {
	checkLeaks(t)
	tp := ndt.MustParse("var * int32")
	meta := newMeta(t, tp)
	var row [2]int64
	if got := tp.Shape(meta, unsafe.Pointer(&row)); !cmp.Equal(got, []int{0}) {
		t.Errorf("unallocated row has shape %v", got)
	}

	srcType := ndt.MustParse("3 * int32")
	src := []int32{1, 2, 3}
	srcMeta := newMeta(t, srcType)
	if err := ndt.Assign(tp, meta, unsafe.Pointer(&row), srcType, srcMeta, unsafe.Pointer(&src[0]), eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	if got, want := format(t, tp, meta, unsafe.Pointer(&row)), "[1, 2, 3]"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}
	if diff := cmp.Diff([]int{3}, tp.Shape(meta, unsafe.Pointer(&row))); diff != "" {
		t.Errorf("unexpected shape (-want +got):\n%s", diff)
	}

	res := applyIndex(t, tp, meta, unsafe.Pointer(&row), ndt.I(-1))
	if got := *(*int32)(res.Data); got != 3 {
		t.Errorf("got %d but want 3", got)
	}
	full := applyIndex(t, tp, meta, unsafe.Pointer(&row), ndt.R())
	if !full.Type.Equal(tp) {
		t.Errorf("full range of %s has type %s", tp, full.Type)
	}
	if got, want := format(t, full.Type, full.Meta, full.Data), "[1, 2, 3]"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}
	_, err := tp.ApplyLinearIndex([]ndt.Index{ndt.I(3)}, meta, unsafe.Pointer(&row))
	var oob *ndt.IndexOutOfBoundsError
	if !errors.As(err, &oob) {
		t.Errorf("got error %v but want %T", err, oob)
	}

	// The row is allocated: a source of another size does not fit.
	other := []int32{1, 2}
	otherType := ndt.MustParse("2 * int32")
	otherMeta := newMeta(t, otherType)
	err = ndt.Assign(tp, meta, unsafe.Pointer(&row), otherType, otherMeta, unsafe.Pointer(&other[0]), eval.Default())
	var shape *ndt.ShapeMismatchError
	if !errors.As(err, &shape) {
		t.Errorf("got error %v but want %T", err, shape)
	}
}

func TestRaggedArray(t *testing.T) {
	checkLeaks(t)
	tp := ndt.MustParse("2 * var * float64")
	meta := newMeta(t, tp)
	var rows [2][2]int64

	firstType := ndt.MustParse("3 * float64")
	first := []float64{0.5, 1.5, 2.5}
	firstMeta := newMeta(t, firstType)
	row0 := applyIndex(t, tp, meta, unsafe.Pointer(&rows), ndt.I(0))
	if err := ndt.Assign(row0.Type, row0.Meta, row0.Data, firstType, firstMeta, unsafe.Pointer(&first[0]), eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	second := int8(4)
	row1 := applyIndex(t, tp, meta, unsafe.Pointer(&rows), ndt.I(1))
	if err := ndt.Assign(row1.Type, row1.Meta, row1.Data, ndt.Int8, nil, unsafe.Pointer(&second), eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	if got, want := format(t, tp, meta, unsafe.Pointer(&rows)), "[[0.5, 1.5, 2.5], [4]]"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}

	// Copying into a fresh ragged array allocates its rows.
	copyMeta := newMeta(t, tp)
	var copyRows [2][2]int64
	if err := ndt.Assign(tp, copyMeta, unsafe.Pointer(&copyRows), tp, meta, unsafe.Pointer(&rows), eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	if got, want := format(t, tp, copyMeta, unsafe.Pointer(&copyRows)), "[[0.5, 1.5, 2.5], [4]]"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}
	if copyRows[0][0] == rows[0][0] && copyMeta.Handle(0) == meta.Handle(0) {
		t.Errorf("copy shares the rows of its source")
	}
}

func TestVarDimDebugString(t *testing.T) {
	checkLeaks(t)
	tp := ndt.MustParse("var * string")
	meta := newMeta(t, tp)
	got := tp.ArrmetaDebugString(meta)
	if got == "" {
		t.Errorf("empty arrmeta debug string")
	}
	if _, err := ndt.MustParse("var * T").NewArrmeta(); err == nil {
		t.Errorf("arrmeta of a symbolic type constructed")
	}
}
