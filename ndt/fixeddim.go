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
	"unsafe"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
)

// Arrmeta of a fixed dimension: {size, stride} followed by the element arrmeta.
const fixedDimArrmetaSize = 2 * wordSize

// fixedDim is a dimension whose size is part of the type. A negative size
// is the symbolic "fixed" dimension, of unspecified size.
type fixedDim struct {
	extBase
	dimSize int
	elem    Type
}

var _ Dim = (*fixedDim)(nil)

func checkElement(elem Type) error {
	if !elem.IsValid() {
		return invalidArgument("invalid element type")
	}
	if elem.Kind() == FuncKind {
		return invalidArgument("function prototype %s cannot be an array element", elem)
	}
	return nil
}

// MakeFixedDim returns the type of size elements of type elem.
func MakeFixedDim(size int, elem Type) (Type, error) {
	if size < 0 {
		return Type{}, invalidArgument("negative dimension size %d", size)
	}
	return makeFixedDim(size, elem)
}

// MakeSymbolicFixedDim returns the pattern of a fixed dimension of any size.
func MakeSymbolicFixedDim(elem Type) (Type, error) {
	return makeFixedDim(-1, elem)
}

func makeFixedDim(size int, elem Type) (Type, error) {
	if err := checkElement(elem); err != nil {
		return Type{}, err
	}
	d := &fixedDim{
		extBase: extBase{
			id:    FixedDimID,
			kind:  DimKind,
			align: elem.Alignment(),
			flags: elem.Flags() & propagated,
		},
		dimSize: size,
		elem:    elem,
	}
	if size < 0 {
		d.flags |= FlagSymbolic
	} else if !elem.IsSymbolic() {
		var err error
		if d.size, err = dataSizeOf(size, elem.DataSize()); err != nil {
			return Type{}, err
		}
	}
	return newType(d), nil
}

// MakeFixedDims wraps elem in fixed dimensions of the given shape, outermost first.
func MakeFixedDims(shape []int, elem Type) (Type, error) {
	t := elem
	for i := len(shape) - 1; i >= 0; i-- {
		var err error
		if t, err = MakeFixedDim(shape[i], t); err != nil {
			return Type{}, err
		}
	}
	return t, nil
}

// FixedDimSize returns the size of a fixed dimension type. ok is false if t
// is not a fixed dimension; the size is negative for the symbolic dimension.
func FixedDimSize(t Type) (size int, ok bool) {
	d, ok := t.ext.(*fixedDim)
	if !ok {
		return 0, false
	}
	return d.dimSize, true
}

func (d *fixedDim) ElementType() Type {
	return d.elem
}

func (d *fixedDim) ElementArrmeta(meta Arrmeta) Arrmeta {
	return meta[fixedDimArrmetaSize:]
}

func (d *fixedDim) DimSize(meta Arrmeta, data unsafe.Pointer) int {
	if meta == nil {
		return d.dimSize
	}
	return meta.Int(0)
}

func (d *fixedDim) Stride(meta Arrmeta) int {
	return meta.Int(wordSize)
}

func (d *fixedDim) WithElement(elem Type) (Type, error) {
	return makeFixedDim(d.dimSize, elem)
}

func (d *fixedDim) isSymbolic() bool {
	return d.dimSize < 0
}

func (d *fixedDim) Print(b *strings.Builder) {
	if d.isSymbolic() {
		b.WriteString("fixed")
	} else {
		b.WriteString(strconv.Itoa(d.dimSize))
	}
	b.WriteString(" * ")
	d.elem.print(b)
}

func (d *fixedDim) Equal(other Extended) bool {
	o, ok := other.(*fixedDim)
	return ok && o.dimSize == d.dimSize && o.elem.Equal(d.elem)
}

func (d *fixedDim) IsLosslessAssignment(dst, src Type) bool {
	dd, ok := dst.ext.(*fixedDim)
	if !ok {
		return false
	}
	sd, ok := src.ext.(*fixedDim)
	if !ok {
		return false
	}
	return dd.dimSize == sd.dimSize && dd.elem.IsLosslessAssignment(sd.elem)
}

func (d *fixedDim) ArrmetaSize() int {
	return fixedDimArrmetaSize + d.elem.ArrmetaSize()
}

func (d *fixedDim) ArrmetaDefaultConstruct(meta Arrmeta) error {
	if d.isSymbolic() {
		return invalidArgument("cannot construct arrmeta of symbolic type %s", newType(d))
	}
	meta.SetInt(0, d.dimSize)
	meta.SetInt(wordSize, d.elem.DataSize())
	return d.elem.ArrmetaDefaultConstruct(meta[fixedDimArrmetaSize:])
}

func (d *fixedDim) ArrmetaCopyConstruct(dst, src Arrmeta) {
	copy(dst[:fixedDimArrmetaSize], src[:fixedDimArrmetaSize])
	d.elem.ArrmetaCopyConstruct(dst[fixedDimArrmetaSize:], src[fixedDimArrmetaSize:])
}

func (d *fixedDim) ArrmetaReset(meta Arrmeta) {
	clear(meta[:fixedDimArrmetaSize])
	d.elem.ArrmetaReset(meta[fixedDimArrmetaSize:])
}

func (d *fixedDim) ArrmetaDestruct(meta Arrmeta) error {
	return d.elem.ArrmetaDestruct(meta[fixedDimArrmetaSize:])
}

func (d *fixedDim) ArrmetaDebugPrint(b *strings.Builder, meta Arrmeta, indent string) {
	debugLine(b, indent, "fixed_dim size: %d, stride: %d", meta.Int(0), meta.Int(wordSize))
	if d.elem.ext != nil {
		d.elem.ext.ArrmetaDebugPrint(b, meta[fixedDimArrmetaSize:], indent+" ")
	}
}

func (d *fixedDim) ForeachLeading(meta Arrmeta, data unsafe.Pointer, f func(Arrmeta, unsafe.Pointer) error) error {
	n, stride := d.DimSize(meta, data), d.Stride(meta)
	elemMeta := d.ElementArrmeta(meta)
	for i := 0; i < n; i++ {
		if err := f(elemMeta, unsafe.Add(data, i*stride)); err != nil {
			return err
		}
	}
	return nil
}

func (d *fixedDim) PrintData(b *strings.Builder, meta Arrmeta, data unsafe.Pointer) error {
	return printDim(b, d, meta, data)
}

func (d *fixedDim) ApplyLinearIndex(args IndexArgs) (IndexResult, error) {
	ix := args.Indices[0]
	n, stride := d.DimSize(args.Meta, args.Data), d.Stride(args.Meta)
	elemMeta := d.ElementArrmeta(args.Meta)
	if !ix.IsRange() {
		i, err := ix.ResolveInt(n, args.Axis)
		if err != nil {
			return IndexResult{}, err
		}
		return applyIndex(d.elem, args.next(elemMeta, advance(args.Data, i*stride), args.Leading))
	}
	start, step, count, err := ix.Resolve(n, args.Axis)
	if err != nil {
		return IndexResult{}, err
	}
	data := args.Data
	if count == 0 {
		data = nil
	} else {
		data = advance(data, start*stride)
	}
	res, err := applyIndex(d.elem, args.next(elemMeta, data, false))
	if err != nil {
		return IndexResult{}, err
	}
	tp, err := MakeFixedDim(count, res.Type)
	if err != nil {
		return IndexResult{}, err
	}
	meta := make(Arrmeta, fixedDimArrmetaSize+len(res.Meta))
	meta.SetInt(0, count)
	meta.SetInt(wordSize, stride*step)
	copy(meta[fixedDimArrmetaSize:], res.Meta)
	return IndexResult{Type: tp, Meta: meta, Data: res.Data}, nil
}

func (d *fixedDim) MakeAssignmentKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error) {
	if dst.ext != Extended(d) {
		return off, assignmentError(dst, src)
	}
	return makeDimAssignment(b, off, dst, dstMeta, src, srcMeta, req, ectx)
}

func (d *fixedDim) MakeComparisonKernel(b *ckernel.Builder, off int, src0 Type, meta0 Arrmeta, src1 Type, meta1 Arrmeta, op Comparison, req ckernel.Request, ectx *eval.Context) (int, error) {
	return off, notComparable(op, src0, src1)
}

// advance returns p moved by off bytes. A nil pointer stays nil.
func advance(p unsafe.Pointer, off int) unsafe.Pointer {
	if p == nil {
		return nil
	}
	return unsafe.Add(p, off)
}

// printDim writes the elements of a dimension between brackets.
func printDim(b *strings.Builder, d Dim, meta Arrmeta, data unsafe.Pointer) error {
	b.WriteString("[")
	elem := d.ElementType()
	i := 0
	err := d.ForeachLeading(meta, data, func(elemMeta Arrmeta, elemData unsafe.Pointer) error {
		if i > 0 {
			b.WriteString(", ")
		}
		i++
		return elem.PrintData(b, elemMeta, elemData)
	})
	if err != nil {
		return err
	}
	b.WriteString("]")
	return nil
}
