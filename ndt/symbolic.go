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
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
	"unsafe"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
)

// symbolic implements the operations which do not apply to patterns.
type symbolic struct {
	extBase
}

func (s *symbolic) PrintData(*strings.Builder, Arrmeta, unsafe.Pointer) error {
	return invalidArgument("symbolic type %s has no value", s.id)
}

func (s *symbolic) ApplyLinearIndex(args IndexArgs) (IndexResult, error) {
	return IndexResult{}, invalidArgument("cannot index a value of symbolic type %s", s.id)
}

func (s *symbolic) MakeAssignmentKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error) {
	return off, invalidArgument("cannot build a kernel for symbolic types %s and %s", dst, src)
}

func (s *symbolic) MakeComparisonKernel(b *ckernel.Builder, off int, src0 Type, meta0 Arrmeta, src1 Type, meta1 Arrmeta, op Comparison, req ckernel.Request, ectx *eval.Context) (int, error) {
	return off, invalidArgument("cannot build a kernel for symbolic types %s and %s", src0, src1)
}

// IsTypevarName returns true if name can name a type variable: an
// identifier starting with an uppercase letter.
func IsTypevarName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(r) {
		return false
	}
	for _, r := range name {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func checkTypevarName(name string) error {
	if !IsTypevarName(name) {
		return invalidArgument("invalid type variable name %q: must start with an uppercase letter", name)
	}
	return nil
}

// typevar is a variable standing for a type without leading dimensions.
type typevar struct {
	symbolic
	name string
}

// MakeTypevar returns a type variable.
func MakeTypevar(name string) (Type, error) {
	if err := checkTypevarName(name); err != nil {
		return Type{}, err
	}
	return newType(&typevar{
		symbolic: symbolic{extBase{id: TypevarID, kind: TypevarKind, align: 1, flags: FlagSymbolic}},
		name:     name,
	}), nil
}

func (t *typevar) Print(b *strings.Builder) {
	b.WriteString(t.name)
}

func (t *typevar) Equal(other Extended) bool {
	o, ok := other.(*typevar)
	return ok && o.name == t.name
}

func (t *typevar) PrintData(*strings.Builder, Arrmeta, unsafe.Pointer) error {
	return invalidArgument("type variable %s has no value", t.name)
}

// symbolicDim implements the dimension operations of dimension patterns.
type symbolicDim struct {
	symbolic
	elem Type
}

func newSymbolicDim(id TypeID, elem Type, flags Flags) (symbolicDim, error) {
	if err := checkElement(elem); err != nil {
		return symbolicDim{}, err
	}
	return symbolicDim{
		symbolic: symbolic{extBase{id: id, kind: DimKind, align: 1, flags: flags | FlagSymbolic | elem.Flags()&propagated}},
		elem:     elem,
	}, nil
}

func (d *symbolicDim) ElementType() Type {
	return d.elem
}

func (d *symbolicDim) ElementArrmeta(meta Arrmeta) Arrmeta {
	return meta
}

func (d *symbolicDim) DimSize(Arrmeta, unsafe.Pointer) int {
	return -1
}

func (d *symbolicDim) Stride(Arrmeta) int {
	return 0
}

func (d *symbolicDim) ForeachLeading(Arrmeta, unsafe.Pointer, func(Arrmeta, unsafe.Pointer) error) error {
	return invalidArgument("cannot iterate over a symbolic dimension")
}

// typevarDim is a variable standing for one dimension.
type typevarDim struct {
	symbolicDim
	name string
}

var _ Dim = (*typevarDim)(nil)

// MakeTypevarDim returns a dimension variable over elem.
func MakeTypevarDim(name string, elem Type) (Type, error) {
	if err := checkTypevarName(name); err != nil {
		return Type{}, err
	}
	base, err := newSymbolicDim(TypevarDimID, elem, 0)
	if err != nil {
		return Type{}, err
	}
	return newType(&typevarDim{symbolicDim: base, name: name}), nil
}

func (d *typevarDim) WithElement(elem Type) (Type, error) {
	return MakeTypevarDim(d.name, elem)
}

func (d *typevarDim) Print(b *strings.Builder) {
	b.WriteString(d.name)
	b.WriteString(" * ")
	d.elem.print(b)
}

func (d *typevarDim) Equal(other Extended) bool {
	o, ok := other.(*typevarDim)
	return ok && o.name == d.name && o.elem.Equal(d.elem)
}

// ellipsisDim stands for any number of dimensions. A named ellipsis is a
// variable binding the dimensions it matches.
type ellipsisDim struct {
	symbolicDim
	name string
}

var _ Dim = (*ellipsisDim)(nil)

// MakeEllipsisDim returns an ellipsis over elem. name is empty for an
// anonymous ellipsis.
func MakeEllipsisDim(name string, elem Type) (Type, error) {
	if name != "" {
		if err := checkTypevarName(name); err != nil {
			return Type{}, err
		}
	}
	base, err := newSymbolicDim(EllipsisDimID, elem, FlagVariadic)
	if err != nil {
		return Type{}, err
	}
	return newType(&ellipsisDim{symbolicDim: base, name: name}), nil
}

func (d *ellipsisDim) WithElement(elem Type) (Type, error) {
	return MakeEllipsisDim(d.name, elem)
}

func (d *ellipsisDim) Print(b *strings.Builder) {
	b.WriteString(d.name)
	b.WriteString("... * ")
	d.elem.print(b)
}

func (d *ellipsisDim) Equal(other Extended) bool {
	o, ok := other.(*ellipsisDim)
	return ok && o.name == d.name && o.elem.Equal(d.elem)
}

// powDim repeats a base dimension a variable number of times.
type powDim struct {
	symbolicDim
	base     Type
	exponent string
}

var _ Dim = (*powDim)(nil)

// MakePowDim returns the dimension base repeated exponent times over elem.
// base is a dimension over void.
func MakePowDim(base Type, exponent string, elem Type) (Type, error) {
	if err := checkTypevarName(exponent); err != nil {
		return Type{}, err
	}
	d, ok := base.AsDim()
	if !ok || !d.ElementType().Equal(Void) || d.Flags()&FlagVariadic != 0 {
		return Type{}, invalidArgument("base of a power dimension must be a dimension over void, got %s", base)
	}
	sd, err := newSymbolicDim(PowDimID, elem, FlagVariadic)
	if err != nil {
		return Type{}, err
	}
	return newType(&powDim{symbolicDim: sd, base: base, exponent: exponent}), nil
}

// PowDimParts returns the base and the exponent of a power dimension.
func PowDimParts(t Type) (base Type, exponent string, ok bool) {
	d, ok := t.ext.(*powDim)
	if !ok {
		return Type{}, "", false
	}
	return d.base, d.exponent, true
}

func (d *powDim) WithElement(elem Type) (Type, error) {
	return MakePowDim(d.base, d.exponent, elem)
}

func (d *powDim) Print(b *strings.Builder) {
	b.WriteString(strings.TrimSuffix(d.base.String(), " * void"))
	b.WriteString("**")
	b.WriteString(d.exponent)
	b.WriteString(" * ")
	d.elem.print(b)
}

func (d *powDim) Equal(other Extended) bool {
	o, ok := other.(*powDim)
	return ok && o.exponent == d.exponent && o.base.Equal(d.base) && o.elem.Equal(d.elem)
}

// TypevarName returns the name of a type variable, dimension variable or
// named ellipsis.
func TypevarName(t Type) (string, bool) {
	switch e := t.ext.(type) {
	case *typevar:
		return e.name, true
	case *typevarDim:
		return e.name, true
	case *ellipsisDim:
		return e.name, e.name != ""
	}
	return "", false
}

// Sizes of the dimensions of a fragment which are not fixed.
const (
	// FragmentFixed is a fixed dimension of unknown size.
	FragmentFixed = -1
	// FragmentVar is a var dimension.
	FragmentVar = -2
)

// dimFragment is the value bound to an ellipsis variable: a sequence of
// dimensions without element type.
type dimFragment struct {
	symbolic
	dims []int
}

// MakeDimFragment returns a fragment of dimensions. Every dimension is a
// fixed size, FragmentFixed or FragmentVar.
func MakeDimFragment(dims []int) (Type, error) {
	for _, d := range dims {
		if d < FragmentVar {
			return Type{}, invalidArgument("invalid dimension %d in fragment", d)
		}
	}
	return newType(&dimFragment{
		symbolic: symbolic{extBase{id: DimFragmentID, kind: DimKind, align: 1, flags: FlagSymbolic}},
		dims:     append([]int{}, dims...),
	}), nil
}

// FragmentOf returns the fragment of the first ndim leading dimensions of t.
func FragmentOf(t Type, ndim int) (Type, error) {
	dims := make([]int, 0, ndim)
	for range ndim {
		switch e := t.ext.(type) {
		case *fixedDim:
			dims = append(dims, e.dimSize)
			t = e.elem
		case *varDim:
			dims = append(dims, FragmentVar)
			t = e.elem
		default:
			return Type{}, invalidArgument("%s has no %d leading concrete dimensions", t, ndim)
		}
	}
	return MakeDimFragment(dims)
}

// FragmentDims returns the dimensions of a fragment.
func FragmentDims(t Type) ([]int, bool) {
	f, ok := t.ext.(*dimFragment)
	if !ok {
		return nil, false
	}
	return f.dims, true
}

// BroadcastFragments merges two fragments aligned on their last dimension.
// ok is false if a pair of dimensions cannot be broadcast.
func BroadcastFragments(a, b Type) (Type, bool) {
	da, okA := FragmentDims(a)
	db, okB := FragmentDims(b)
	if !okA || !okB {
		return Type{}, false
	}
	if len(da) < len(db) {
		da, db = db, da
	}
	dims := append([]int{}, da...)
	shift := len(da) - len(db)
	for i, d := range db {
		merged, ok := broadcastDim(dims[shift+i], d)
		if !ok {
			return Type{}, false
		}
		dims[shift+i] = merged
	}
	res, err := MakeDimFragment(dims)
	return res, err == nil
}

func broadcastDim(a, b int) (int, bool) {
	switch {
	case a == b:
		return a, true
	case a == 1 || a == FragmentFixed && b >= 0:
		return b, true
	case b == 1 || b == FragmentFixed && a >= 0:
		return a, true
	case a == FragmentVar || b == FragmentVar:
		return FragmentVar, true
	}
	return 0, false
}

// ApplyFragment returns elem under the dimensions of a fragment.
func ApplyFragment(fragment, elem Type) (Type, error) {
	dims, ok := FragmentDims(fragment)
	if !ok {
		return Type{}, invalidArgument("%s is not a dimension fragment", fragment)
	}
	t := elem
	for i := len(dims) - 1; i >= 0; i-- {
		var err error
		switch d := dims[i]; d {
		case FragmentFixed:
			t, err = MakeSymbolicFixedDim(t)
		case FragmentVar:
			t, err = MakeVarDim(t)
		default:
			t, err = MakeFixedDim(d, t)
		}
		if err != nil {
			return Type{}, err
		}
	}
	return t, nil
}

func (f *dimFragment) Print(b *strings.Builder) {
	b.WriteString("dim_fragment[")
	for i, d := range f.dims {
		if i > 0 {
			b.WriteString(" * ")
		}
		switch d {
		case FragmentFixed:
			b.WriteString("fixed")
		case FragmentVar:
			b.WriteString("var")
		default:
			b.WriteString(strconv.Itoa(d))
		}
	}
	b.WriteString("]")
}

func (f *dimFragment) Equal(other Extended) bool {
	o, ok := other.(*dimFragment)
	if !ok || len(o.dims) != len(f.dims) {
		return false
	}
	for i, d := range f.dims {
		if o.dims[i] != d {
			return false
		}
	}
	return true
}

// funcProto is the signature of a function.
type funcProto struct {
	symbolic
	params []Type
	ret    Type
}

// MakeFuncProto returns the prototype of a function.
func MakeFuncProto(params []Type, ret Type) (Type, error) {
	var flags Flags
	for _, p := range append([]Type{ret}, params...) {
		if !p.IsValid() {
			return Type{}, invalidArgument("invalid function prototype type")
		}
		if p.Kind() == FuncKind {
			return Type{}, invalidArgument("function prototype %s cannot be a parameter or a result", p)
		}
		flags |= p.Flags() & FlagSymbolic
	}
	return newType(&funcProto{
		symbolic: symbolic{extBase{id: FuncProtoID, kind: FuncKind, align: 1, flags: flags}},
		params:   append([]Type{}, params...),
		ret:      ret,
	}), nil
}

// FuncProto returns the parameters and the result of a function prototype.
func FuncProto(t Type) (params []Type, ret Type, ok bool) {
	f, ok := t.ext.(*funcProto)
	if !ok {
		return nil, Type{}, false
	}
	return f.params, f.ret, true
}

func (f *funcProto) Print(b *strings.Builder) {
	b.WriteString("(")
	for i, p := range f.params {
		if i > 0 {
			b.WriteString(", ")
		}
		p.print(b)
	}
	b.WriteString(") -> ")
	f.ret.print(b)
}

func (f *funcProto) Equal(other Extended) bool {
	o, ok := other.(*funcProto)
	if !ok || len(o.params) != len(f.params) || !o.ret.Equal(f.ret) {
		return false
	}
	for i, p := range f.params {
		if !p.Equal(o.params[i]) {
			return false
		}
	}
	return true
}
