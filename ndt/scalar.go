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
	"math"
	"strconv"
	"strings"
	"unsafe"

	"fortio.org/safecast"
	"github.com/gx-org/dynd/eval"
	"golang.org/x/exp/constraints"
)

// scalarValue holds a builtin value while it is converted. Booleans and
// signed integers are stored in i, unsigned integers in u.
type scalarValue struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	c    complex128
}

func (v scalarValue) float() float64 {
	switch v.kind {
	case BoolKind, IntKind:
		return float64(v.i)
	case UintKind:
		return float64(v.u)
	case ComplexKind:
		return real(v.c)
	}
	return v.f
}

func (v scalarValue) complex() complex128 {
	if v.kind == ComplexKind {
		return v.c
	}
	return complex(v.float(), 0)
}

func (v scalarValue) String() string {
	switch v.kind {
	case BoolKind:
		return strconv.FormatBool(v.i != 0)
	case IntKind:
		return strconv.FormatInt(v.i, 10)
	case UintKind:
		return strconv.FormatUint(v.u, 10)
	case RealKind:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case ComplexKind:
		return strconv.FormatComplex(v.c, 'g', -1, 128)
	}
	return "void"
}

func load[T any](p unsafe.Pointer) T {
	return *(*T)(p)
}

func intValue[T constraints.Signed](p unsafe.Pointer) scalarValue {
	return scalarValue{kind: IntKind, i: int64(load[T](p))}
}

func uintValue[T constraints.Unsigned](p unsafe.Pointer) scalarValue {
	return scalarValue{kind: UintKind, u: uint64(load[T](p))}
}

func loadScalar(id TypeID, p unsafe.Pointer) scalarValue {
	switch id {
	case BoolID:
		v := scalarValue{kind: BoolKind}
		if load[bool](p) {
			v.i = 1
		}
		return v
	case Int8ID:
		return intValue[int8](p)
	case Int16ID:
		return intValue[int16](p)
	case Int32ID:
		return intValue[int32](p)
	case Int64ID:
		return intValue[int64](p)
	case Uint8ID:
		return uintValue[uint8](p)
	case Uint16ID:
		return uintValue[uint16](p)
	case Uint32ID:
		return uintValue[uint32](p)
	case Uint64ID:
		return uintValue[uint64](p)
	case Float32ID:
		return scalarValue{kind: RealKind, f: float64(load[float32](p))}
	case Float64ID:
		return scalarValue{kind: RealKind, f: load[float64](p)}
	case Complex64ID:
		return scalarValue{kind: ComplexKind, c: complex128(load[complex64](p))}
	case Complex128ID:
		return scalarValue{kind: ComplexKind, c: load[complex128](p)}
	}
	return scalarValue{kind: VoidKind}
}

// loss is what a conversion drops from a value.
type loss int

const (
	lossNone loss = iota
	lossInexact
	lossFractional
	lossOverflow
)

func (l loss) String() string {
	switch l {
	case lossInexact:
		return "inexact conversion"
	case lossFractional:
		return "fractional part lost"
	case lossOverflow:
		return "value out of range"
	}
	return "no loss"
}

// checkedBy returns true if the error mode rejects the loss.
func (l loss) checkedBy(mode eval.ErrorMode) bool {
	switch l {
	case lossOverflow:
		return mode >= eval.ErrorOverflow
	case lossFractional:
		return mode >= eval.ErrorFractional
	case lossInexact:
		return mode >= eval.ErrorInexact
	}
	return false
}

func store[T any](p unsafe.Pointer, v T) {
	*(*T)(p) = v
}

func storeBool(p unsafe.Pointer, v scalarValue) loss {
	var nonZero, exact bool
	switch v.kind {
	case BoolKind, IntKind:
		nonZero, exact = v.i != 0, v.i == 0 || v.i == 1
	case UintKind:
		nonZero, exact = v.u != 0, v.u <= 1
	case RealKind:
		nonZero, exact = v.f != 0, v.f == 0 || v.f == 1
	case ComplexKind:
		nonZero, exact = v.c != 0, v.c == 0 || v.c == 1
	}
	store(p, nonZero)
	if !exact {
		return lossOverflow
	}
	return lossNone
}

func floatToInt[T constraints.Integer](f float64) (T, loss) {
	out, err := safecast.Truncate[T](f)
	if err != nil {
		return T(f), lossOverflow
	}
	if float64(out) != f {
		return out, lossFractional
	}
	return out, lossNone
}

func storeInt[T constraints.Integer](p unsafe.Pointer, v scalarValue) loss {
	var out T
	var err error
	l := lossNone
	switch v.kind {
	case BoolKind, IntKind:
		out, err = safecast.Conv[T](v.i)
	case UintKind:
		out, err = safecast.Conv[T](v.u)
	case RealKind:
		out, l = floatToInt[T](v.f)
	case ComplexKind:
		out, l = floatToInt[T](real(v.c))
		if l == lossNone && imag(v.c) != 0 {
			l = lossFractional
		}
	}
	if err != nil {
		l = lossOverflow
	}
	store(p, out)
	return l
}

func storeFloat[T constraints.Float](p unsafe.Pointer, v scalarValue) loss {
	var out T
	var err error
	l := lossNone
	switch v.kind {
	case BoolKind, IntKind:
		out, err = safecast.Convert[T](v.i)
	case UintKind:
		out, err = safecast.Convert[T](v.u)
	case RealKind, ComplexKind:
		f := v.float()
		out = T(f)
		switch back := float64(out); {
		case math.IsInf(back, 0) && !math.IsInf(f, 0):
			l = lossOverflow
		case back != f && !math.IsNaN(f):
			l = lossInexact
		}
		if v.kind == ComplexKind && imag(v.c) != 0 {
			l = max(l, lossFractional)
		}
	}
	if err != nil {
		// Integers are always in the range of floating point types.
		out, l = T(v.float()), lossInexact
	}
	store(p, out)
	return l
}

func storeComplex[T constraints.Complex](p unsafe.Pointer, v scalarValue, single bool) loss {
	store(p, T(v.complex()))
	re := v
	if v.kind == ComplexKind {
		re = scalarValue{kind: RealKind, f: real(v.c)}
	}
	im := scalarValue{kind: RealKind, f: imag(v.complex())}
	if single {
		var f float32
		return max(storeFloat[float32](unsafe.Pointer(&f), re), storeFloat[float32](unsafe.Pointer(&f), im))
	}
	var f float64
	return storeFloat[float64](unsafe.Pointer(&f), re)
}

// storeScalar converts v to the builtin type id and stores it at p. The
// value is stored whatever the loss is.
func storeScalar(id TypeID, p unsafe.Pointer, v scalarValue) loss {
	switch id {
	case BoolID:
		return storeBool(p, v)
	case Int8ID:
		return storeInt[int8](p, v)
	case Int16ID:
		return storeInt[int16](p, v)
	case Int32ID:
		return storeInt[int32](p, v)
	case Int64ID:
		return storeInt[int64](p, v)
	case Uint8ID:
		return storeInt[uint8](p, v)
	case Uint16ID:
		return storeInt[uint16](p, v)
	case Uint32ID:
		return storeInt[uint32](p, v)
	case Uint64ID:
		return storeInt[uint64](p, v)
	case Float32ID:
		return storeFloat[float32](p, v)
	case Float64ID:
		return storeFloat[float64](p, v)
	case Complex64ID:
		return storeComplex[complex64](p, v, true)
	case Complex128ID:
		return storeComplex[complex128](p, v, false)
	}
	return lossNone
}

// parseScalar parses the text form of a value of kind k.
func parseScalar(k Kind, s string) (scalarValue, error) {
	s = strings.TrimSpace(s)
	v := scalarValue{kind: k}
	var err error
	switch k {
	case BoolKind:
		var b bool
		if b, err = strconv.ParseBool(s); b {
			v.i = 1
		}
	case IntKind:
		v.i, err = strconv.ParseInt(s, 0, 64)
	case UintKind:
		v.u, err = strconv.ParseUint(s, 0, 64)
	case RealKind:
		v.f, err = strconv.ParseFloat(s, 64)
	case ComplexKind:
		v.c, err = strconv.ParseComplex(s, 128)
	default:
		return v, invalidArgument("cannot parse a value of kind %s", k)
	}
	return v, err
}

// printBuiltin writes the text form of a builtin value.
func printBuiltin(b *strings.Builder, id TypeID, p unsafe.Pointer) error {
	if !id.IsBuiltin() {
		return invalidArgument("cannot print a value of type %s", id)
	}
	if id == VoidID {
		b.WriteString("void")
		return nil
	}
	v := loadScalar(id, p)
	switch id {
	case Float32ID:
		b.WriteString(strconv.FormatFloat(v.f, 'g', -1, 32))
	case Complex64ID:
		b.WriteString(strconv.FormatComplex(v.c, 'g', -1, 64))
	default:
		b.WriteString(v.String())
	}
	return nil
}
