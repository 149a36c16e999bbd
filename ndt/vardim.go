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
	"strings"
	"unsafe"

	"fortio.org/safecast"
	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
	"github.com/gx-org/dynd/memblock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Arrmeta of a var dimension: {POD block handle, stride, offset} followed by
// the element arrmeta.
const varDimArrmetaSize = 3 * wordSize

// Data of a var dimension or of a string: {begin, size}. begin is an offset
// in the POD block referenced by the arrmeta, 0 while the row is not allocated.
const rowDataSize = 2 * wordSize

// varDim is a dimension whose size varies from one value to the other.
type varDim struct {
	extBase
	elem Type
}

var _ Dim = (*varDim)(nil)

// MakeVarDim returns the type of a variable number of elems.
func MakeVarDim(elem Type) (Type, error) {
	if err := checkElement(elem); err != nil {
		return Type{}, err
	}
	return newType(&varDim{
		extBase: extBase{
			id:    VarDimID,
			kind:  DimKind,
			size:  rowDataSize,
			align: wordSize,
			flags: elem.Flags()&propagated | FlagBlockref,
		},
		elem: elem,
	}), nil
}

type row struct {
	begin int64
	size  int64
}

func loadRow(p unsafe.Pointer) (begin int64, size int) {
	r := (*row)(p)
	return r.begin, safecast.MustConv[int](r.size)
}

func storeRow(p unsafe.Pointer, begin int64, size int) {
	r := (*row)(p)
	r.begin, r.size = begin, int64(size)
}

// podOf returns the POD block referenced by the handle at off in meta.
func podOf(meta Arrmeta, off int) (*memblock.POD, error) {
	h := meta.Handle(off)
	pod, ok := memblock.Lookup(h).(*memblock.POD)
	if !ok {
		return nil, errors.Errorf("arrmeta does not reference a POD block (handle %d)", h)
	}
	return pod, nil
}

// rowPointer returns a pointer to the first byte of a row. Empty rows have
// no data.
func rowPointer(pod *memblock.POD, begin int64, offset, size int) unsafe.Pointer {
	if size == 0 || begin == 0 {
		return nil
	}
	return pod.Pointer(begin + int64(offset))
}

func (d *varDim) ElementType() Type {
	return d.elem
}

func (d *varDim) ElementArrmeta(meta Arrmeta) Arrmeta {
	return meta[varDimArrmetaSize:]
}

func (d *varDim) DimSize(meta Arrmeta, data unsafe.Pointer) int {
	if data == nil {
		return -1
	}
	_, size := loadRow(data)
	return size
}

func (d *varDim) Stride(meta Arrmeta) int {
	return meta.Int(wordSize)
}

func (d *varDim) offset(meta Arrmeta) int {
	return meta.Int(2 * wordSize)
}

func (d *varDim) WithElement(elem Type) (Type, error) {
	return MakeVarDim(elem)
}

func (d *varDim) Print(b *strings.Builder) {
	b.WriteString("var * ")
	d.elem.print(b)
}

func (d *varDim) Equal(other Extended) bool {
	o, ok := other.(*varDim)
	return ok && o.elem.Equal(d.elem)
}

func (d *varDim) IsLosslessAssignment(dst, src Type) bool {
	dd, ok := dst.ext.(*varDim)
	if !ok {
		return false
	}
	sd, ok := src.ext.(*varDim)
	if !ok {
		return false
	}
	return dd.elem.IsLosslessAssignment(sd.elem)
}

func (d *varDim) ArrmetaSize() int {
	return varDimArrmetaSize + d.elem.ArrmetaSize()
}

func (d *varDim) ArrmetaDefaultConstruct(meta Arrmeta) error {
	if d.elem.IsSymbolic() {
		return invalidArgument("cannot construct arrmeta of symbolic type %s", newType(d))
	}
	pod := memblock.NewPOD(0)
	meta.SetHandle(0, pod.Handle())
	meta.SetInt(wordSize, d.elem.DataSize())
	meta.SetInt(2*wordSize, 0)
	if err := d.elem.ArrmetaDefaultConstruct(meta[varDimArrmetaSize:]); err != nil {
		return multierr.Append(err, pod.Release())
	}
	return nil
}

func (d *varDim) ArrmetaCopyConstruct(dst, src Arrmeta) {
	copy(dst[:varDimArrmetaSize], src[:varDimArrmetaSize])
	memblock.Retain(src.Handle(0))
	d.elem.ArrmetaCopyConstruct(dst[varDimArrmetaSize:], src[varDimArrmetaSize:])
}

func (d *varDim) ArrmetaReset(meta Arrmeta) {
	clear(meta[:varDimArrmetaSize])
	d.elem.ArrmetaReset(meta[varDimArrmetaSize:])
}

func (d *varDim) ArrmetaDestruct(meta Arrmeta) error {
	err := d.elem.ArrmetaDestruct(meta[varDimArrmetaSize:])
	h := meta.Handle(0)
	meta.SetHandle(0, 0)
	return multierr.Append(err, memblock.Release(h))
}

func (d *varDim) ArrmetaDebugPrint(b *strings.Builder, meta Arrmeta, indent string) {
	debugLine(b, indent, "var_dim block: %d, stride: %d, offset: %d", meta.Handle(0), meta.Int(wordSize), meta.Int(2*wordSize))
	if d.elem.ext != nil {
		d.elem.ext.ArrmetaDebugPrint(b, meta[varDimArrmetaSize:], indent+" ")
	}
}

func (d *varDim) ForeachLeading(meta Arrmeta, data unsafe.Pointer, f func(Arrmeta, unsafe.Pointer) error) error {
	pod, err := podOf(meta, 0)
	if err != nil {
		return err
	}
	begin, size := loadRow(data)
	stride, elemMeta := d.Stride(meta), d.ElementArrmeta(meta)
	base := rowPointer(pod, begin, d.offset(meta), size)
	for i := 0; i < size; i++ {
		if err := f(elemMeta, unsafe.Add(base, i*stride)); err != nil {
			return err
		}
	}
	return nil
}

func (d *varDim) PrintData(b *strings.Builder, meta Arrmeta, data unsafe.Pointer) error {
	return printDim(b, d, meta, data)
}

func (d *varDim) ApplyLinearIndex(args IndexArgs) (IndexResult, error) {
	ix := args.Indices[0]
	elemMeta := d.ElementArrmeta(args.Meta)
	if ix.IsRange() {
		if !ix.IsFull() {
			return IndexResult{}, invalidArgument("range %s on axis %d: a var dimension only accepts integer indices and unconstrained ranges", ix, args.Axis)
		}
		res, err := applyIndex(d.elem, args.next(elemMeta, nil, false))
		if err != nil {
			return IndexResult{}, err
		}
		tp, err := MakeVarDim(res.Type)
		if err != nil {
			return IndexResult{}, err
		}
		meta := make(Arrmeta, varDimArrmetaSize+len(res.Meta))
		copy(meta, args.Meta[:varDimArrmetaSize])
		memblock.Retain(meta.Handle(0))
		copy(meta[varDimArrmetaSize:], res.Meta)
		return IndexResult{Type: tp, Meta: meta, Data: args.Data}, nil
	}
	if !args.Leading {
		return IndexResult{}, invalidArgument("index %s on axis %d: a var dimension below a range cannot take an integer index", ix, args.Axis)
	}
	pod, err := podOf(args.Meta, 0)
	if err != nil {
		return IndexResult{}, err
	}
	begin, size := loadRow(args.Data)
	i, err := ix.ResolveInt(size, args.Axis)
	if err != nil {
		return IndexResult{}, err
	}
	data := unsafe.Add(rowPointer(pod, begin, d.offset(args.Meta), size), i*d.Stride(args.Meta))
	return applyIndex(d.elem, args.next(elemMeta, data, true))
}

func (d *varDim) MakeAssignmentKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error) {
	if dst.ext != Extended(d) {
		return off, assignmentError(dst, src)
	}
	return makeDimAssignment(b, off, dst, dstMeta, src, srcMeta, req, ectx)
}

func (d *varDim) MakeComparisonKernel(b *ckernel.Builder, off int, src0 Type, meta0 Arrmeta, src1 Type, meta1 Arrmeta, op Comparison, req ckernel.Request, ectx *eval.Context) (int, error) {
	return off, notComparable(op, src0, src1)
}
