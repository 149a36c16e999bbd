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

package ckernel_test

import (
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/dynd/ckernel"
)

func double(dst unsafe.Pointer, src []unsafe.Pointer) error {
	*(*int32)(dst) = 2 * *(*int32)(src[0])
	return nil
}

// emitLoop emits a parent kernel calling its child on every element of a
// 4-element int32 row.
func emitLoop(t *testing.T, b *ckernel.Builder, req ckernel.Request) int {
	parent, err := b.Reserve(0, req, "loop")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	child, err := b.Reserve(1, ckernel.StridedHost, "double")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	child.SetFunc(double)
	parent.AddChild(1)
	parent.SetFunc(func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		return child.CallStrided(dst, 4, src, []int{4}, 4)
	})
	return b.Len()
}

func TestBuilderSingle(t *testing.T) {
	b := ckernel.NewBuilder()
	if got := emitLoop(t, b, ckernel.SingleHost); got != 2 {
		t.Errorf("got next offset %d but want 2", got)
	}
	fn, err := b.Single(0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	src := []int32{1, 2, 3, 4}
	dst := make([]int32, 4)
	if err := fn(unsafe.Pointer(&dst[0]), []unsafe.Pointer{unsafe.Pointer(&src[0])}); err != nil {
		t.Fatalf("%+v", err)
	}
	if want := []int32{2, 4, 6, 8}; !cmp.Equal(dst, want) {
		t.Errorf("got %v but want %v", dst, want)
	}
	if _, err := b.Strided(0); err == nil {
		t.Errorf("single kernel called with the strided convention did not fail")
	}
	want := "0: loop [single/host]\n  1: double [strided/host]\n"
	if got := b.String(); got != want {
		t.Errorf("got dump\n%s\nbut want\n%s", got, want)
	}
}

func TestBuilderStrided(t *testing.T) {
	b := ckernel.NewBuilder()
	emitLoop(t, b, ckernel.StridedHost)
	fn, err := b.Strided(0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	src := []int32{1, 2, 3, 4, 5, 6, 7, 8}
	dst := make([]int32, 8)
	if err := fn(unsafe.Pointer(&dst[0]), 16, []unsafe.Pointer{unsafe.Pointer(&src[0])}, []int{16}, 2); err != nil {
		t.Fatalf("%+v", err)
	}
	if want := []int32{2, 4, 6, 8, 10, 12, 14, 16}; !cmp.Equal(dst, want) {
		t.Errorf("got %v but want %v", dst, want)
	}
}

func TestBuilderReset(t *testing.T) {
	b := ckernel.NewBuilder()
	var order []string
	for i, name := range []string{"a", "b", "c"} {
		r, err := b.Reserve(i, ckernel.SingleHost, name)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		r.OnDestroy(func() { order = append(order, name) })
	}
	if _, err := b.Reserve(1, ckernel.SingleHost, "d"); err == nil {
		t.Errorf("reserving a used offset did not fail")
	}
	if _, err := b.Reserve(5, ckernel.SingleHost, "d"); err == nil {
		t.Errorf("reserving past the next free offset did not fail")
	}
	b.Reset()
	if want := []string{"c", "b", "a"}; !cmp.Equal(order, want) {
		t.Errorf("got destruction order %v but want %v", order, want)
	}
	if b.Len() != 0 {
		t.Errorf("builder not empty after reset")
	}
}

func TestIncompleteKernel(t *testing.T) {
	b := ckernel.NewBuilder()
	if _, err := b.Reserve(0, ckernel.SingleHost, "empty"); err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := b.Single(0); err == nil {
		t.Errorf("calling an incomplete kernel did not fail")
	}
	if _, err := b.Single(3); err == nil {
		t.Errorf("calling a missing kernel did not fail")
	}
}

func TestParseRequest(t *testing.T) {
	for _, test := range []struct {
		in   string
		want ckernel.Request
	}{
		{in: "single", want: ckernel.SingleHost},
		{in: "strided", want: ckernel.StridedHost},
	} {
		got, err := ckernel.ParseRequest(test.in)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if got != test.want {
			t.Errorf("ParseRequest(%q) = %v but want %v", test.in, got, test.want)
		}
	}
	if _, err := ckernel.ParseRequest("device"); err == nil {
		t.Errorf("parsing an unknown request did not fail")
	}
}
