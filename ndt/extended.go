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

	"github.com/gx-org/dynd/ckernel"
	"github.com/gx-org/dynd/eval"
	"github.com/pkg/errors"
)

// IndexArgs are the inputs of ApplyLinearIndex.
type IndexArgs struct {
	// Indices still to apply, outermost first.
	Indices []Index
	// Axis of the first index in the original array.
	Axis int
	// Leading is true while every index applied so far was an integer, that
	// is while Data points to a single value of the type.
	Leading bool
	// Meta is the arrmeta of the value being indexed.
	Meta Arrmeta
	// Data points to the value being indexed.
	Data unsafe.Pointer
}

func (a IndexArgs) next(meta Arrmeta, data unsafe.Pointer, leading bool) IndexArgs {
	return IndexArgs{Indices: a.Indices[1:], Axis: a.Axis + 1, Leading: leading, Meta: meta, Data: data}
}

// IndexResult is the outcome of ApplyLinearIndex.
type IndexResult struct {
	// Type of the indexed value.
	Type Type
	// Meta is newly constructed arrmeta for Type. It owns references to the
	// blocks it refers to and must be destructed.
	Meta Arrmeta
	// Data points to the indexed value.
	Data unsafe.Pointer
}

// Extended is the capability table every non-builtin type implements.
type Extended interface {
	ID() TypeID
	Kind() Kind
	DataSize() int
	Alignment() int
	Flags() Flags

	// Print writes the type string.
	Print(b *strings.Builder)
	// Equal returns true if other describes the same layout.
	Equal(other Extended) bool
	// IsLosslessAssignment reports if src values assign to dst without loss.
	// The receiver is either dst or src.
	IsLosslessAssignment(dst, src Type) bool
	// PrintData writes the text form of a value.
	PrintData(b *strings.Builder, meta Arrmeta, data unsafe.Pointer) error

	// ArrmetaSize returns the size of the arrmeta of a value.
	ArrmetaSize() int
	// ArrmetaDefaultConstruct initializes zeroed arrmeta for a new value,
	// allocating the memory blocks it references.
	ArrmetaDefaultConstruct(meta Arrmeta) error
	// ArrmetaCopyConstruct initializes dst from src, retaining the blocks
	// src references.
	ArrmetaCopyConstruct(dst, src Arrmeta)
	// ArrmetaReset clears the arrmeta without releasing what it references.
	ArrmetaReset(meta Arrmeta)
	// ArrmetaDestruct releases the blocks the arrmeta references.
	ArrmetaDestruct(meta Arrmeta) error
	// ArrmetaDebugPrint writes the content of the arrmeta.
	ArrmetaDebugPrint(b *strings.Builder, meta Arrmeta, indent string)

	// ApplyLinearIndex consumes indices and returns the indexed value.
	ApplyLinearIndex(args IndexArgs) (IndexResult, error)

	// MakeAssignmentKernel emits at off a kernel assigning src values to dst
	// values and returns the next free offset. The receiver is either dst or src.
	MakeAssignmentKernel(b *ckernel.Builder, off int, dst Type, dstMeta Arrmeta, src Type, srcMeta Arrmeta, req ckernel.Request, ectx *eval.Context) (int, error)
	// MakeComparisonKernel emits at off a kernel comparing src0 and src1 values,
	// writing a bool. The receiver is either src0 or src1.
	MakeComparisonKernel(b *ckernel.Builder, off int, src0 Type, meta0 Arrmeta, src1 Type, meta1 Arrmeta, op Comparison, req ckernel.Request, ectx *eval.Context) (int, error)
}

// Dim is implemented by dimension types.
type Dim interface {
	Extended

	// ElementType is the type of the elements along the dimension.
	ElementType() Type
	// ElementArrmeta returns the arrmeta of the elements.
	ElementArrmeta(meta Arrmeta) Arrmeta
	// DimSize returns the number of elements. data is only read by
	// dimensions whose size varies per value: nil data gives -1 for them.
	DimSize(meta Arrmeta, data unsafe.Pointer) int
	// Stride returns the distance in bytes between two elements.
	Stride(meta Arrmeta) int
	// WithElement returns the same dimension over another element type.
	WithElement(elem Type) (Type, error)
	// ForeachLeading calls f on every element of the dimension.
	ForeachLeading(meta Arrmeta, data unsafe.Pointer, f func(elemMeta Arrmeta, elemData unsafe.Pointer) error) error
}

// Expr is implemented by expression types.
type Expr interface {
	Extended

	// ValueType is the type of the values after conversion.
	ValueType() Type
	// OperandType is the type of the stored data.
	OperandType() Type
	// MakeOperandToValueKernel emits a kernel converting stored data to values.
	MakeOperandToValueKernel(b *ckernel.Builder, off int, req ckernel.Request, ectx *eval.Context) (int, error)
	// MakeValueToOperandKernel emits a kernel converting values to stored data.
	MakeValueToOperandKernel(b *ckernel.Builder, off int, req ckernel.Request, ectx *eval.Context) (int, error)
}

// extBase holds the properties shared by all extended types and the default
// behavior of types without arrmeta.
type extBase struct {
	id    TypeID
	kind  Kind
	size  int
	align int
	flags Flags
}

func (e *extBase) ID() TypeID {
	return e.id
}

func (e *extBase) Kind() Kind {
	return e.kind
}

func (e *extBase) DataSize() int {
	return e.size
}

func (e *extBase) Alignment() int {
	return e.align
}

func (e *extBase) Flags() Flags {
	return e.flags
}

func (e *extBase) IsLosslessAssignment(dst, src Type) bool {
	return false
}

func (e *extBase) ArrmetaSize() int {
	return 0
}

func (e *extBase) ArrmetaDefaultConstruct(Arrmeta) error {
	return nil
}

func (e *extBase) ArrmetaCopyConstruct(dst, src Arrmeta) {}

func (e *extBase) ArrmetaReset(Arrmeta) {}

func (e *extBase) ArrmetaDestruct(Arrmeta) error {
	return nil
}

func (e *extBase) ArrmetaDebugPrint(*strings.Builder, Arrmeta, string) {}

// scalarIndex is ApplyLinearIndex for types without any dimension: only an
// empty list of indices is accepted.
func scalarIndex(self Type, args IndexArgs) (IndexResult, error) {
	if len(args.Indices) > 0 {
		return IndexResult{}, errors.WithStack(&TooManyIndicesError{Count: args.Axis + len(args.Indices), NDim: args.Axis})
	}
	meta := make(Arrmeta, self.ArrmetaSize())
	self.ArrmetaCopyConstruct(meta, args.Meta)
	return IndexResult{Type: self, Meta: meta, Data: args.Data}, nil
}
