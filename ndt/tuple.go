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
	"strings"
	"unsafe"

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
	"go.uber.org/multierr"
)

// tuple is a sequence of fields stored one after the other. Structs are
// tuples with a name for every field.
//
// The arrmeta starts with the data offset of every field, followed by the
// arrmeta of every field.
type tuple struct {
	extBase
	fields      []Type
	names       []string
	dataOffsets []int
	metaOffsets []int
	metaSize    int
}

// MakeTuple returns the type of a tuple of fields.
func MakeTuple(fields ...Type) (Type, error) {
	return makeTuple(TupleID, TupleKind, fields, nil)
}

// MakeStruct returns the type of a struct. names and fields must have the
// same length and the names must be unique.
func MakeStruct(names []string, fields []Type) (Type, error) {
	if len(names) != len(fields) {
		return Type{}, invalidArgument("struct has %d names for %d fields", len(names), len(fields))
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" {
			return Type{}, invalidArgument("empty struct field name")
		}
		if seen[name] {
			return Type{}, invalidArgument("duplicate struct field %q", name)
		}
		seen[name] = true
	}
	return makeTuple(StructID, StructKind, fields, names)
}

func makeTuple(id TypeID, kind Kind, fields []Type, names []string) (Type, error) {
	t := &tuple{
		extBase: extBase{
			id:    id,
			kind:  kind,
			align: 1,
		},
		fields:      append([]Type{}, fields...),
		names:       append([]string(nil), names...),
		dataOffsets: make([]int, len(fields)),
		metaOffsets: make([]int, len(fields)),
	}
	dataOff, metaOff := 0, len(fields)*wordSize
	for i, field := range fields {
		if err := checkElement(field); err != nil {
			return Type{}, err
		}
		t.flags |= field.Flags() & propagated
		t.align = max(t.align, field.Alignment())
		dataOff = roundUp(dataOff, field.Alignment())
		t.dataOffsets[i] = dataOff
		dataOff += field.DataSize()
		if dataOff > MaxDataSize {
			return Type{}, invalidArgument("fields exceed the maximum data size of %d bytes", MaxDataSize)
		}
		t.metaOffsets[i] = metaOff
		metaOff += field.ArrmetaSize()
	}
	t.metaSize = metaOff
	if !t.isSymbolic() {
		t.size = roundUp(dataOff, t.align)
	}
	return newType(t), nil
}

func (t *tuple) isSymbolic() bool {
	return t.flags&FlagSymbolic != 0
}

// Fields returns the field types of a tuple or struct type, with the field
// names of a struct. ok is false for other types.
func Fields(t Type) (fields []Type, names []string, ok bool) {
	tp, ok := t.ext.(*tuple)
	if !ok {
		return nil, nil, false
	}
	return tp.fields, tp.names, true
}

func (t *tuple) isStruct() bool {
	return t.id == StructID
}

func (t *tuple) Print(b *strings.Builder) {
	if t.isStruct() {
		b.WriteString("{")
	} else {
		b.WriteString("(")
	}
	for i, field := range t.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		if t.isStruct() {
			b.WriteString(t.names[i])
			b.WriteString(": ")
		}
		field.print(b)
	}
	if t.isStruct() {
		b.WriteString("}")
	} else {
		b.WriteString(")")
	}
}

func (t *tuple) Equal(other Extended) bool {
	o, ok := other.(*tuple)
	if !ok || o.id != t.id || len(o.fields) != len(t.fields) {
		return false
	}
	for i, field := range t.fields {
		if !field.Equal(o.fields[i]) {
			return false
		}
		if t.isStruct() && t.names[i] != o.names[i] {
			return false
		}
	}
	return true
}

// pairFields returns, for every field of dst, the index of the src field
// assigned to it: by name between structs, by position otherwise.
func pairFields(dst, src *tuple) ([]int, bool) {
	if len(dst.fields) != len(src.fields) {
		return nil, false
	}
	pairs := make([]int, len(dst.fields))
	for i := range dst.fields {
		pairs[i] = i
		if !dst.isStruct() || !src.isStruct() {
			continue
		}
		j := 0
		for j < len(src.names) && src.names[j] != dst.names[i] {
			j++
		}
		if j == len(src.names) {
			return nil, false
		}
		pairs[i] = j
	}
	return pairs, true
}

func (t *tuple) IsLosslessAssignment(dst, src Type) bool {
	d, ok := dst.ext.(*tuple)
	if !ok {
		return false
	}
	s, ok := src.ext.(*tuple)
	if !ok {
		return false
	}
	pairs, ok := pairFields(d, s)
	if !ok {
		return false
	}
	for i, j := range pairs {
		if !d.fields[i].IsLosslessAssignment(s.fields[j]) {
			return false
		}
	}
	return true
}

func (t *tuple) ArrmetaSize() int {
	return t.metaSize
}

func (t *tuple) fieldOffset(meta Arrmeta, i int) int {
	return meta.Int(i * wordSize)
}

func (t *tuple) fieldMeta(meta Arrmeta, i int) Arrmeta {
	return meta[t.metaOffsets[i]:]
}

func (t *tuple) ArrmetaDefaultConstruct(meta Arrmeta) error {
	if t.isSymbolic() {
		return invalidArgument("cannot construct arrmeta of symbolic type %s", newType(t))
	}
	for i, field := range t.fields {
		meta.SetInt(i*wordSize, t.dataOffsets[i])
		if err := field.ArrmetaDefaultConstruct(t.fieldMeta(meta, i)); err != nil {
			for j := i - 1; j >= 0; j-- {
				err = multierr.Append(err, t.fields[j].ArrmetaDestruct(t.fieldMeta(meta, j)))
			}
			return err
		}
	}
	return nil
}

func (t *tuple) ArrmetaCopyConstruct(dst, src Arrmeta) {
	n := len(t.fields) * wordSize
	copy(dst[:n], src[:n])
	for i, field := range t.fields {
		field.ArrmetaCopyConstruct(t.fieldMeta(dst, i), t.fieldMeta(src, i))
	}
}

func (t *tuple) ArrmetaReset(meta Arrmeta) {
	clear(meta[:len(t.fields)*wordSize])
	for i, field := range t.fields {
		field.ArrmetaReset(t.fieldMeta(meta, i))
	}
}

func (t *tuple) ArrmetaDestruct(meta Arrmeta) error {
	var err error
	for i, field := range t.fields {
		err = multierr.Append(err, field.ArrmetaDestruct(t.fieldMeta(meta, i)))
	}
	return err
}

func (t *tuple) ArrmetaDebugPrint(b *strings.Builder, meta Arrmeta, indent string) {
	offsets := make([]int, len(t.fields))
	for i := range t.fields {
		offsets[i] = t.fieldOffset(meta, i)
	}
	debugLine(b, indent, "%s offsets: %v", t.id, offsets)
	for i, field := range t.fields {
		if field.ext != nil {
			field.ext.ArrmetaDebugPrint(b, t.fieldMeta(meta, i), indent+" ")
		}
	}
}

func (t *tuple) PrintData(b *strings.Builder, meta Arrmeta, data unsafe.Pointer) error {
	lp, rp := "(", ")"
	if t.isStruct() {
		lp, rp = "{", "}"
	}
	b.WriteString(lp)
	for i, field := range t.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		if t.isStruct() {
			fmt.Fprintf(b, "%s: ", t.names[i])
		}
		if err := field.PrintData(b, t.fieldMeta(meta, i), unsafe.Add(data, t.fieldOffset(meta, i))); err != nil {
			return err
		}
	}
	b.WriteString(rp)
	return nil
}

// ApplyLinearIndex selects a field with an integer index.
func (t *tuple) ApplyLinearIndex(args IndexArgs) (IndexResult, error) {
	ix := args.Indices[0]
	if ix.IsRange() {
		return IndexResult{}, invalidArgument("range %s on axis %d: fields of %s can only be selected by an integer index", ix, args.Axis, newType(t))
	}
	i, err := ix.ResolveInt(len(t.fields), args.Axis)
	if err != nil {
		return IndexResult{}, err
	}
	data := advance(args.Data, t.fieldOffset(args.Meta, i))
	return applyIndex(t.fields[i], args.next(t.fieldMeta(args.Meta, i), data, args.Leading))
}

func (t *tuple) MakeAssignmentKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error) {
	if dst.ext != Extended(t) {
		return off, assignmentError(dst, src)
	}
	s, ok := src.ext.(*tuple)
	if !ok {
		return off, assignmentError(dst, src)
	}
	pairs, ok := pairFields(t, s)
	if !ok {
		return off, assignmentError(dst, src)
	}
	if canCopy(dst, dstMeta, src, srcMeta) {
		ectx.Log().Debug("identical tuple layout", "type", dst)
		return makeMemcpy(b, off, dst.DataSize(), req, "copy "+dst.String())
	}
	rec, err := b.Reserve(off, req, "assign "+dst.String())
	if err != nil {
		return off, err
	}
	next := off + 1
	children := make([]int, len(t.fields))
	for i, j := range pairs {
		children[i] = next
		if next, err = MakeAssignmentKernel(b, next, t.fields[i], t.fieldMeta(dstMeta, i), s.fields[j], s.fieldMeta(srcMeta, j), childRequest(req, ckernel.Single), ectx); err != nil {
			return off, err
		}
		rec.AddChild(children[i])
	}
	fns, err := singleFuncs(b, children)
	if err != nil {
		return off, err
	}
	dstOffsets, srcOffsets := make([]int, len(pairs)), make([]int, len(pairs))
	for i, j := range pairs {
		dstOffsets[i], srcOffsets[i] = t.fieldOffset(dstMeta, i), s.fieldOffset(srcMeta, j)
	}
	rec.SetFunc(func(dstData unsafe.Pointer, srcData []unsafe.Pointer) error {
		for i, fn := range fns {
			if err := fn(unsafe.Add(dstData, dstOffsets[i]), []unsafe.Pointer{unsafe.Add(srcData[0], srcOffsets[i])}); err != nil {
				return err
			}
		}
		return nil
	})
	return next, nil
}

// MakeComparisonKernel compares tuples and structs for equality, field by field.
func (t *tuple) MakeComparisonKernel(b *ckernel.Builder, off int, src0 Type, meta0 Arrmeta, src1 Type, meta1 Arrmeta, op Comparison, req ckernel.Request, ectx *eval.Context) (int, error) {
	t0, ok0 := src0.ext.(*tuple)
	t1, ok1 := src1.ext.(*tuple)
	if !ok0 || !ok1 || op.IsOrdering() {
		return off, notComparable(op, src0, src1)
	}
	pairs, ok := pairFields(t0, t1)
	if !ok {
		return off, notComparable(op, src0, src1)
	}
	rec, err := b.Reserve(off, req, fmt.Sprintf("compare %s %s %s", src0, op, src1))
	if err != nil {
		return off, err
	}
	next := off + 1
	children := make([]int, len(pairs))
	for i, j := range pairs {
		children[i] = next
		if next, err = MakeComparisonKernel(b, next, t0.fields[i], t0.fieldMeta(meta0, i), t1.fields[j], t1.fieldMeta(meta1, j), Equal, childRequest(req, ckernel.Single), ectx); err != nil {
			return off, err
		}
		rec.AddChild(children[i])
	}
	fns, err := singleFuncs(b, children)
	if err != nil {
		return off, err
	}
	offsets0, offsets1 := make([]int, len(pairs)), make([]int, len(pairs))
	for i, j := range pairs {
		offsets0[i], offsets1[i] = t0.fieldOffset(meta0, i), t1.fieldOffset(meta1, j)
	}
	rec.SetFunc(func(dst unsafe.Pointer, src []unsafe.Pointer) error {
		equal := true
		for i, fn := range fns {
			var eq bool
			if err := fn(unsafe.Pointer(&eq), []unsafe.Pointer{unsafe.Add(src[0], offsets0[i]), unsafe.Add(src[1], offsets1[i])}); err != nil {
				return err
			}
			if !eq {
				equal = false
				break
			}
		}
		store(dst, equal == (op == Equal))
		return nil
	})
	return next, nil
}

// singleFuncs returns the single functions of the records at offs.
func singleFuncs(b *ckernel.Builder, offs []int) ([]ckernel.SingleFunc, error) {
	fns := make([]ckernel.SingleFunc, len(offs))
	for i, off := range offs {
		var err error
		if fns[i], err = b.Single(off); err != nil {
			return nil, err
		}
	}
	return fns, nil
}
