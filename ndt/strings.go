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
	"fmt"
	"strconv"
	"strings"
	"unsafe"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
	"github.com/gx-org/dynd/memblock"
	"github.com/pkg/errors"
)

// fixedString is a UTF-8 string stored in a fixed number of bytes, padded
// with zeros.
type fixedString struct {
	extBase
}

// MakeFixedString returns the type of strings of at most n bytes.
func MakeFixedString(n int) (Type, error) {
	if n <= 0 || n > MaxDataSize {
		return Type{}, invalidArgument("fixed string size must be in [1, %d], got %d", MaxDataSize, n)
	}
	return newType(&fixedString{extBase: extBase{
		id:    FixedStringID,
		kind:  StringKind,
		size:  n,
		align: 1,
	}}), nil
}

func (s *fixedString) Print(b *strings.Builder) {
	fmt.Fprintf(b, "string[%d]", s.size)
}

func (s *fixedString) Equal(other Extended) bool {
	o, ok := other.(*fixedString)
	return ok && o.size == s.size
}

func (s *fixedString) IsLosslessAssignment(dst, src Type) bool {
	return isLosslessString(dst, src)
}

func (s *fixedString) PrintData(b *strings.Builder, meta Arrmeta, data unsafe.Pointer) error {
	b.WriteString(strconv.Quote(s.read(data)))
	return nil
}

func (s *fixedString) read(p unsafe.Pointer) string {
	buf := unsafe.Slice((*byte)(p), s.size)
	return strings.TrimRight(string(buf), "\x00")
}

func (s *fixedString) write(p unsafe.Pointer, v string, src Type, mode eval.ErrorMode) error {
	if len(v) > s.size {
		if mode >= eval.ErrorOverflow {
			return errors.WithStack(&ConversionError{Dst: newType(s), Src: src, Value: strconv.Quote(v), Reason: "string too long"})
		}
		v = v[:s.size]
	}
	buf := unsafe.Slice((*byte)(p), s.size)
	clear(buf[copy(buf, v):])
	return nil
}

func (s *fixedString) ApplyLinearIndex(args IndexArgs) (IndexResult, error) {
	return scalarIndex(newType(s), args)
}

func (s *fixedString) MakeAssignmentKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error) {
	return makeStringAssignment(b, off, dst, dstMeta, src, srcMeta, req, ectx)
}

func (s *fixedString) MakeComparisonKernel(b *ckernel.Builder, off int, src0 Type, meta0 Arrmeta, src1 Type, meta1 Arrmeta, op Comparison, req ckernel.Request, ectx *eval.Context) (int, error) {
	return makeStringComparison(b, off, src0, meta0, src1, meta1, op, req)
}

// Arrmeta of a variable length string: {POD block handle}.
const varStringArrmetaSize = wordSize

// varString is a UTF-8 string of any length. Its bytes are stored in the
// POD block referenced by its arrmeta.
type varString struct {
	extBase
}

// String is the type of variable length strings.
var String = newType(&varString{extBase: extBase{
	id:    StringID,
	kind:  StringKind,
	size:  rowDataSize,
	align: wordSize,
	flags: FlagBlockref,
}})

func (s *varString) Print(b *strings.Builder) {
	b.WriteString("string")
}

func (s *varString) Equal(other Extended) bool {
	_, ok := other.(*varString)
	return ok
}

func (s *varString) IsLosslessAssignment(dst, src Type) bool {
	return isLosslessString(dst, src)
}

func (s *varString) PrintData(b *strings.Builder, meta Arrmeta, data unsafe.Pointer) error {
	pod, err := podOf(meta, 0)
	if err != nil {
		return err
	}
	b.WriteString(strconv.Quote(readVarString(pod, data)))
	return nil
}

func readVarString(pod *memblock.POD, p unsafe.Pointer) string {
	begin, size := loadRow(p)
	if begin == 0 || size == 0 {
		return ""
	}
	return string(pod.Bytes(begin, size))
}

func writeVarString(pod *memblock.POD, p unsafe.Pointer, v string) error {
	begin, err := pod.Allocate(len(v), 1)
	if err != nil {
		return err
	}
	copy(pod.Bytes(begin, len(v)), v)
	storeRow(p, begin, len(v))
	return nil
}

func (s *varString) ArrmetaSize() int {
	return varStringArrmetaSize
}

func (s *varString) ArrmetaDefaultConstruct(meta Arrmeta) error {
	meta.SetHandle(0, memblock.NewPOD(0).Handle())
	return nil
}

func (s *varString) ArrmetaCopyConstruct(dst, src Arrmeta) {
	copy(dst[:varStringArrmetaSize], src[:varStringArrmetaSize])
	memblock.Retain(src.Handle(0))
}

func (s *varString) ArrmetaReset(meta Arrmeta) {
	clear(meta[:varStringArrmetaSize])
}

func (s *varString) ArrmetaDestruct(meta Arrmeta) error {
	h := meta.Handle(0)
	meta.SetHandle(0, 0)
	return memblock.Release(h)
}

func (s *varString) ArrmetaDebugPrint(b *strings.Builder, meta Arrmeta, indent string) {
	debugLine(b, indent, "string block: %d", meta.Handle(0))
}

func (s *varString) ApplyLinearIndex(args IndexArgs) (IndexResult, error) {
	return scalarIndex(String, args)
}

func (s *varString) MakeAssignmentKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error) {
	return makeStringAssignment(b, off, dst, dstMeta, src, srcMeta, req, ectx)
}

func (s *varString) MakeComparisonKernel(b *ckernel.Builder, off int, src0 Type, meta0 Arrmeta, src1 Type, meta1 Arrmeta, op Comparison, req ckernel.Request, ectx *eval.Context) (int, error) {
	return makeStringComparison(b, off, src0, meta0, src1, meta1, op, req)
}

func isLosslessString(dst, src Type) bool {
	switch d := dst.ext.(type) {
	case *varString:
		return src.Kind() == StringKind
	case *fixedString:
		s, ok := src.ext.(*fixedString)
		return ok && d.size >= s.size
	}
	return false
}

// stringReader returns a function reading the value of a string type.
func stringReader(t Type, meta Arrmeta) (func(unsafe.Pointer) string, error) {
	switch s := t.ext.(type) {
	case *fixedString:
		return s.read, nil
	case *varString:
		pod, err := podOf(meta, 0)
		if err != nil {
			return nil, err
		}
		return func(p unsafe.Pointer) string {
			return readVarString(pod, p)
		}, nil
	}
	return nil, invalidArgument("%s is not a string type", t)
}

// stringWriter returns a function writing a value of a string type.
func stringWriter(t Type, meta Arrmeta, src Type, mode eval.ErrorMode) (func(unsafe.Pointer, string) error, error) {
	switch s := t.ext.(type) {
	case *fixedString:
		return func(p unsafe.Pointer, v string) error {
			return s.write(p, v, src, mode)
		}, nil
	case *varString:
		pod, err := podOf(meta, 0)
		if err != nil {
			return nil, err
		}
		return func(p unsafe.Pointer, v string) error {
			return writeVarString(pod, p, v)
		}, nil
	}
	return nil, invalidArgument("%s is not a string type", t)
}

// makeStringAssignment assigns between strings, and between strings and
// builtin values through their text form.
func makeStringAssignment(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error) {
	dstKind, srcKind := dst.Kind(), src.Kind()
	var fn ckernel.SingleFunc
	switch {
	case dstKind == StringKind && srcKind == StringKind:
		read, err := stringReader(src, srcMeta)
		if err != nil {
			return off, err
		}
		write, err := stringWriter(dst, dstMeta, src, ectx.ErrMode)
		if err != nil {
			return off, err
		}
		fn = func(dstData unsafe.Pointer, srcData []unsafe.Pointer) error {
			return write(dstData, read(srcData[0]))
		}
	case dstKind == StringKind && src.IsBuiltin() && srcKind.IsNumeric():
		write, err := stringWriter(dst, dstMeta, src, ectx.ErrMode)
		if err != nil {
			return off, err
		}
		fn = func(dstData unsafe.Pointer, srcData []unsafe.Pointer) error {
			s := strings.Builder{}
			if err := printBuiltin(&s, src.id, srcData[0]); err != nil {
				return err
			}
			return write(dstData, s.String())
		}
	case srcKind == StringKind && dst.IsBuiltin() && dstKind.IsNumeric():
		read, err := stringReader(src, srcMeta)
		if err != nil {
			return off, err
		}
		mode := ectx.ErrMode
		fn = func(dstData unsafe.Pointer, srcData []unsafe.Pointer) error {
			s := read(srcData[0])
			v, err := parseScalar(dstKind, s)
			if err != nil {
				return errors.WithStack(&ConversionError{Dst: dst, Src: src, Value: strconv.Quote(s), Reason: "invalid syntax"})
			}
			if l := storeScalar(dst.id, dstData, v); l.checkedBy(mode) {
				return conversionError(dst, src, v, l)
			}
			return nil
		}
	default:
		return off, assignmentError(dst, src)
	}
	rec, err := b.Reserve(off, req, "assign "+src.String()+" to "+dst.String())
	if err != nil {
		return off, err
	}
	rec.SetFunc(fn)
	return off + 1, nil
}

func makeStringComparison(b *ckernel.Builder, off int, src0 Type, meta0 Arrmeta, src1 Type, meta1 Arrmeta, op Comparison, req ckernel.Request) (int, error) {
	if src0.Kind() != StringKind || src1.Kind() != StringKind {
		return off, notComparable(op, src0, src1)
	}
	read0, err := stringReader(src0, meta0)
	if err != nil {
		return off, err
	}
	read1, err := stringReader(src1, meta1)
	if err != nil {
		return off, err
	}
	rec, err := b.Reserve(off, req, fmt.Sprintf("compare %s %s %s", src0, op, src1))
	if err != nil {
		return off, err
	}
	rec.SetFunc(func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		store(dst, compareOrdered(op, read0(src[0]), read1(src[1])))
		return nil
	})
	return off + 1, nil
}

// fixedBytes is an opaque sequence of bytes with an alignment.
type fixedBytes struct {
	extBase
}

// MakeFixedBytes returns the type of size bytes aligned on align.
func MakeFixedBytes(size, align int) (Type, error) {
	if size <= 0 || size > MaxDataSize {
		return Type{}, invalidArgument("fixed bytes size must be in [1, %d], got %d", MaxDataSize, size)
	}
	if align <= 0 || align > 16 || align&(align-1) != 0 {
		return Type{}, invalidArgument("fixed bytes alignment must be a power of two up to 16, got %d", align)
	}
	if size%align != 0 {
		return Type{}, invalidArgument("fixed bytes size %d is not a multiple of its alignment %d", size, align)
	}
	return newType(&fixedBytes{extBase: extBase{
		id:    FixedBytesID,
		kind:  BytesKind,
		size:  size,
		align: align,
	}}), nil
}

func (f *fixedBytes) Print(b *strings.Builder) {
	if f.align == 1 {
		fmt.Fprintf(b, "fixed_bytes[%d]", f.size)
		return
	}
	fmt.Fprintf(b, "fixed_bytes[%d, align=%d]", f.size, f.align)
}

func (f *fixedBytes) Equal(other Extended) bool {
	o, ok := other.(*fixedBytes)
	return ok && o.size == f.size && o.align == f.align
}

func (f *fixedBytes) IsLosslessAssignment(dst, src Type) bool {
	return dst.Kind() == BytesKind && dst.DataSize() == src.DataSize()
}

func (f *fixedBytes) PrintData(b *strings.Builder, meta Arrmeta, data unsafe.Pointer) error {
	fmt.Fprintf(b, "0x%x", unsafe.Slice((*byte)(data), f.size))
	return nil
}

func (f *fixedBytes) ApplyLinearIndex(args IndexArgs) (IndexResult, error) {
	return scalarIndex(newType(f), args)
}

func (f *fixedBytes) MakeAssignmentKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error) {
	if dst.Kind() != BytesKind || src.Kind() != BytesKind || dst.DataSize() != src.DataSize() {
		return off, assignmentError(dst, src)
	}
	return makeMemcpy(b, off, dst.DataSize(), req, "copy "+dst.String())
}

func (f *fixedBytes) MakeComparisonKernel(b *ckernel.Builder, off int, src0 Type, meta0 Arrmeta, src1 Type, meta1 Arrmeta, op Comparison, req ckernel.Request, ectx *eval.Context) (int, error) {
	if op.IsOrdering() || src0.Kind() != BytesKind || src1.Kind() != BytesKind || src0.DataSize() != src1.DataSize() {
		return off, notComparable(op, src0, src1)
	}
	rec, err := b.Reserve(off, req, fmt.Sprintf("compare %s %s %s", src0, op, src1))
	if err != nil {
		return off, err
	}
	size := f.size
	rec.SetFunc(func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		x := unsafe.Slice((*byte)(src[0]), size)
		y := unsafe.Slice((*byte)(src[1]), size)
		store(dst, (string(x) == string(y)) == (op == Equal))
		return nil
	})
	return off + 1, nil
}
