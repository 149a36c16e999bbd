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
	"math/bits"
	"testing"
	"unsafe"

	"github.com/gx-org/dynd/eval"
	"github.com/gx-org/dynd/ndt"
	"github.com/pkg/errors"
)

func TestByteswap(t *testing.T) {
	tp := ndt.MustParse("byteswap[int32]")
	if got := tp.ValueType(); !got.Equal(ndt.Int32) {
		t.Errorf("got value type %s but want int32", got)
	}
	if got, want := tp.OperandType().String(), "fixed_bytes[4, align=4]"; got != want {
		t.Errorf("got operand type %s but want %s", got, want)
	}
	stored := uint32(0x01020304)
	var v int32
	if err := ndt.Assign(ndt.Int32, nil, unsafe.Pointer(&v), tp, nil, unsafe.Pointer(&stored), eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	if want := int32(bits.ReverseBytes32(stored)); v != want {
		t.Errorf("got %#x but want %#x", v, want)
	}

	// Assigning back swaps again.
	var back uint32
	if err := ndt.Assign(tp, nil, unsafe.Pointer(&back), ndt.Int32, nil, unsafe.Pointer(&v), eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	if back != stored {
		t.Errorf("got %#x but want %#x", back, stored)
	}
}

func TestByteswapComplex(t *testing.T) {
	tp := ndt.MustParse("byteswap[complex[float32]]")
	value := complex64(complex(1.5, -2))
	stored := [2]uint32{
		bits.ReverseBytes32(math.Float32bits(real(value))),
		bits.ReverseBytes32(math.Float32bits(imag(value))),
	}
	var got complex64
	if err := ndt.Assign(ndt.Complex64, nil, unsafe.Pointer(&got), tp, nil, unsafe.Pointer(&stored), eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	if got != value {
		t.Errorf("got %v but want %v", got, value)
	}
}

func TestConvert(t *testing.T) {
	tp := ndt.MustParse("convert[to=float64, from=int32]")
	stored := int32(7)
	var f float64
	if err := ndt.Assign(ndt.Float64, nil, unsafe.Pointer(&f), tp, nil, unsafe.Pointer(&stored), eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	if f != 7 {
		t.Errorf("got %v but want 7", f)
	}
	if got, want := format(t, tp, nil, unsafe.Pointer(&stored)), "7"; got != want {
		t.Errorf("got %s but want %s", got, want)
	}

	f = 2.5
	err := ndt.Assign(tp, nil, unsafe.Pointer(&stored), ndt.Float64, nil, unsafe.Pointer(&f), eval.Default())
	var cerr *ndt.ConversionError
	if !errors.As(err, &cerr) {
		t.Errorf("got error %v but want %T", err, cerr)
	}
	f = -3
	if err := ndt.Assign(tp, nil, unsafe.Pointer(&stored), ndt.Float64, nil, unsafe.Pointer(&f), eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	if stored != -3 {
		t.Errorf("got %d but want -3", stored)
	}

	less, err := ndt.Compare(ndt.Less, tp, nil, unsafe.Pointer(&stored), ndt.Float64, nil, unsafe.Pointer(&f), eval.Default())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if less {
		t.Errorf("-3 < -3 is true")
	}
}

func TestView(t *testing.T) {
	tp := ndt.MustParse("view[as=uint32, original=float32]")
	stored := float32(1)
	var u uint32
	if err := ndt.Assign(ndt.Uint32, nil, unsafe.Pointer(&u), tp, nil, unsafe.Pointer(&stored), eval.Default()); err != nil {
		t.Fatalf("%+v", err)
	}
	if want := math.Float32bits(1); u != want {
		t.Errorf("got %#x but want %#x", u, want)
	}
	if _, err := ndt.MakeView(ndt.Int64, ndt.Float32); err == nil {
		t.Errorf("view of a float32 as an int64 accepted")
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		src, want string
	}{
		{src: "3 * byteswap[int32]", want: "3 * int32"},
		{src: "(convert[to=float64, from=int32], int8)", want: "(float64, int8)"},
		{src: "var * view[as=uint32, original=float32]", want: "var * uint32"},
		{src: "2 * int16", want: "2 * int16"},
	}
	for _, test := range tests {
		if got := ndt.MustParse(test.src).Canonical().String(); got != test.want {
			t.Errorf("%s: got canonical type %s but want %s", test.src, got, test.want)
		}
	}
}
